package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staffdesk/client/internal/apiclient"
	"staffdesk/client/internal/credstore"
	"staffdesk/client/internal/logging"
	"staffdesk/client/internal/state"
)

const requestTimeout = 15 * time.Second

// Session управляет жизненным циклом сессии: возобновление, вход, отправка
// формы, выход. Результаты сетевых вызовов возвращаются в state machine
// событиями; токен хранится только в credstore.
type Session struct {
	base     context.Context
	api      *apiclient.Client
	creds    credstore.Store
	logger   *logging.Logger
	dispatch func(state.Event) error
}

// NewSession создаёт session controller поверх готового API-клиента.
func NewSession(base context.Context, api *apiclient.Client, creds credstore.Store, logger *logging.Logger, dispatch func(state.Event) error) *Session {
	if base == nil {
		base = context.Background()
	}
	return &Session{base: base, api: api, creds: creds, logger: logger, dispatch: dispatch}
}

// StartResume проверяет, сохранён ли токен с прошлого запуска.
func (s *Session) StartResume(_ *state.AppContext) {
	if _, ok := s.creds.Get(); ok {
		s.logger.Infof("persisted session found, resuming")
		s.send(state.Event{Type: state.EventSysSessionActive})
		return
	}
	s.send(state.Event{Type: state.EventSysSessionAbsent})
}

// StartLogin выполняет вход и сохраняет полученный токен.
func (s *Session) StartLogin(_ *state.AppContext, username, password string) {
	ctx, cancel := context.WithTimeout(s.base, requestTimeout)
	defer cancel()
	token, err := s.api.Login(ctx, username, password)
	if err != nil {
		s.logger.Errorf("login request failed: %v", err)
		s.send(state.Event{Type: state.EventSysLoginFailure, Payload: buildLoginFailurePayload(err)})
		return
	}
	if err := s.creds.Set(token); err != nil {
		s.logger.Errorf("persist session token failed: %v", err)
		s.send(state.Event{Type: state.EventSysLoginFailure, Payload: state.ResultPayload{
			Kind:             state.ErrorKindConfigFailed,
			Message:          "Impossible d'enregistrer la session",
			TechnicalMessage: err.Error(),
		}})
		return
	}
	s.logger.Infof("login succeeded, token length %d", len(token))
	s.send(state.Event{Type: state.EventSysLoginSuccess})
}

// StartSubmit отправляет поля формы создания сотрудника.
func (s *Session) StartSubmit(_ *state.AppContext, fields map[string]string) {
	ctx, cancel := context.WithTimeout(s.base, requestTimeout)
	defer cancel()
	err := s.api.CreateEmployee(ctx, fields)
	if err == nil {
		s.logger.Infof("employee created")
		s.send(state.Event{Type: state.EventSysSubmitSuccess})
		return
	}
	s.logger.Warnf("create employee rejected: %v", err)
	var cErr *apiclient.Error
	if errors.As(err, &cErr) && cErr.Kind == state.ErrorKindUnauthorized {
		// сервер счёл токен недействительным — уничтожаем его
		if clearErr := s.creds.Clear(); clearErr != nil {
			s.logger.Errorf("clear invalidated token failed: %v", clearErr)
		}
		s.send(state.Event{Type: state.EventSysUnauthorized, Payload: state.ResultPayload{
			Kind:             state.ErrorKindUnauthorized,
			Message:          "Session expirée, veuillez vous reconnecter",
			TechnicalMessage: err.Error(),
		}})
		return
	}
	s.send(state.Event{Type: state.EventSysSubmitFailure, Payload: buildSubmitFailurePayload(err)})
}

// StartLogout очищает токен сессии.
func (s *Session) StartLogout(_ *state.AppContext) {
	if err := s.creds.Clear(); err != nil {
		s.logger.Errorf("logout: clear token failed: %v", err)
	} else {
		s.logger.Infof("logged out, token cleared")
	}
	s.send(state.Event{Type: state.EventSysLogoutDone})
}

func (s *Session) send(evt state.Event) {
	if s.dispatch == nil {
		return
	}
	if err := s.dispatch(evt); err != nil && s.logger != nil {
		s.logger.Errorf("dispatch %s failed: %v", evt.Type, err)
	}
}

func buildLoginFailurePayload(err error) state.ResultPayload {
	payload := state.ResultPayload{
		Kind:    state.ErrorKindUnknown,
		Message: "Échec de la connexion: erreur inconnue",
	}
	if err == nil {
		return payload
	}
	payload.TechnicalMessage = err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		payload.Kind = state.ErrorKindUnreachable
		payload.Message = "Le serveur d'authentification ne répond pas"
		return payload
	}
	var cErr *apiclient.Error
	if errors.As(err, &cErr) {
		if cErr.Kind != "" {
			payload.Kind = cErr.Kind
		}
		switch cErr.Kind {
		case state.ErrorKindUnreachable:
			payload.Message = "Impossible de joindre le serveur"
		case state.ErrorKindRejected, state.ErrorKindUnauthorized:
			if msg := apiclient.UserMessage(cErr.Detail); msg != "" {
				payload.Message = "Échec de la connexion: " + msg
			} else if cErr.Status > 0 {
				payload.Message = fmt.Sprintf("Échec de la connexion (code %d)", cErr.Status)
			}
		case state.ErrorKindMalformed:
			// успешный ответ без access_token
			if msg := apiclient.UserMessage(cErr.Detail); msg != "" {
				payload.Message = "Échec de la connexion: " + msg
			}
		}
	}
	return payload
}

func buildSubmitFailurePayload(err error) state.ResultPayload {
	payload := state.ResultPayload{
		Kind:    state.ErrorKindUnknown,
		Message: "Erreur lors de l'ajout de l'employé",
	}
	if err == nil {
		return payload
	}
	payload.TechnicalMessage = err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		payload.Kind = state.ErrorKindUnreachable
		payload.Message = "Erreur lors de l'ajout de l'employé: le serveur ne répond pas"
		return payload
	}
	var cErr *apiclient.Error
	if errors.As(err, &cErr) {
		if cErr.Kind != "" {
			payload.Kind = cErr.Kind
		}
		switch cErr.Kind {
		case state.ErrorKindUnreachable:
			payload.Message = "Erreur lors de l'ajout de l'employé: réseau indisponible"
		default:
			// в уведомление попадает сериализованное тело ошибки целиком
			if detail := strings.TrimSpace(cErr.Detail); detail != "" {
				payload.Message = "Erreur lors de l'ajout de l'employé: " + detail
			} else if cErr.Status > 0 {
				payload.Message = fmt.Sprintf("Erreur lors de l'ajout de l'employé (code %d)", cErr.Status)
			}
		}
	}
	return payload
}
