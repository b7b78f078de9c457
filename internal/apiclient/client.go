package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"staffdesk/client/internal/credstore"
	"staffdesk/client/internal/logging"
	"staffdesk/client/internal/state"
)

// Client инкапсулирует HTTP-взаимодействия с сервером администрирования RH.
// Токен сессии читается из credstore на каждый запрос; клиент никогда не
// изменяет содержимое хранилища.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *logging.Logger
	creds      credstore.Store
	csrfToken  string
}

// Options позволяет переопределить зависимости клиента.
type Options struct {
	HTTPClient  *http.Client
	Logger      *logging.Logger
	Credentials credstore.Store
	// CSRFToken — непрозрачная строка анти-CSRF, выдаваемая сервером при
	// развёртывании; клиент только передаёт её, не создаёт.
	CSRFToken string
}

const (
	defaultTimeout = 15 * time.Second

	loginPath     = "/api/v1/login/"
	employeesPath = "/api/employees/"
)

// New создаёт новый клиент API.
func New(baseURL string, opts Options) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is empty")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse baseURL: %w", err)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	creds := opts.Credentials
	if creds == nil {
		creds = credstore.NewMemoryStore()
	}
	return &Client{
		baseURL:    parsed,
		httpClient: client,
		logger:     opts.Logger,
		creds:      creds,
		csrfToken:  opts.CSRFToken,
	}, nil
}

// Error описывает классифицированный исход неуспешного запроса.
type Error struct {
	Op     string
	Kind   state.ErrorKind
	Status int
	// Detail — сериализованное тело ошибки сервера (JSON либо сырой текст).
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "api client error"
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Login выполняет неавторизованный POST /api/v1/login/ и возвращает токен
// сессии. Bearer-заголовок не отправляется: токена ещё нет.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	const op = "Login"
	payload := LoginRequest{Username: username, Password: password}
	raw, err := c.send(ctx, op, http.MethodPost, loginPath, payload, false)
	if err != nil {
		return "", err
	}
	var body LoginResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", &Error{Op: op, Kind: state.ErrorKindMalformed, Status: http.StatusOK, Err: fmt.Errorf("decode login response: %w", err)}
	}
	if strings.TrimSpace(body.AccessToken) == "" {
		detail := strings.TrimSpace(body.ErrorMessage)
		return "", &Error{Op: op, Kind: state.ErrorKindMalformed, Status: http.StatusOK, Detail: detail, Err: errors.New("login response without access_token")}
	}
	return body.AccessToken, nil
}

// CreateEmployee выполняет авторизованный POST /api/employees/ с плоским
// JSON-объектом полей формы.
func (c *Client) CreateEmployee(ctx context.Context, fields map[string]string) error {
	const op = "CreateEmployee"
	_, err := c.send(ctx, op, http.MethodPost, employeesPath, fields, true)
	return err
}

// Send выполняет произвольный авторизованный запрос и возвращает тело
// успешного ответа как сырой JSON.
func (c *Client) Send(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	return c.send(ctx, "Send", method, path, payload, true)
}

func (c *Client) send(ctx context.Context, op, method, path string, payload any, withAuth bool) (json.RawMessage, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return nil, &Error{Op: op, Kind: state.ErrorKindUnknown, Err: err}
	}
	full := c.baseURL.ResolveReference(rel)

	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return nil, &Error{Op: op, Kind: state.ErrorKindUnknown, Err: err}
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, full.String(), body)
	if err != nil {
		return nil, &Error{Op: op, Kind: state.ErrorKindUnknown, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.csrfToken != "" {
		req.Header.Set("X-CSRFToken", c.csrfToken)
	}
	authenticated := false
	if withAuth {
		if token, ok := c.creds.Get(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
			authenticated = true
		}
	}

	requestID := uuid.NewString()
	if c.logger != nil {
		c.logger.Debugf("request %s: %s %s auth=%t", requestID, method, path, authenticated)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Debugf("request %s: transport failure: %v", requestID, err)
		}
		return nil, &Error{Op: op, Kind: state.ErrorKindUnreachable, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: op, Kind: state.ErrorKindUnreachable, Status: resp.StatusCode, Err: err}
	}
	if c.logger != nil {
		c.logger.Debugf("request %s: status %d, %d bytes", requestID, resp.StatusCode, len(raw))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, nil
	}

	detail := compactDetail(raw)
	kind := state.ErrorKindRejected
	if authenticated && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		// сервер счёл токен недействительным
		kind = state.ErrorKindUnauthorized
	}
	return nil, &Error{
		Op:     op,
		Kind:   kind,
		Status: resp.StatusCode,
		Detail: detail,
		Err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
	}
}

// compactDetail сериализует тело ошибки: валидный JSON пересобирается в
// компактную форму, всё остальное возвращается как обрезанный сырой текст.
func compactDetail(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	if json.Valid(trimmed) {
		buf := &bytes.Buffer{}
		if err := json.Compact(buf, trimmed); err == nil {
			return buf.String()
		}
	}
	return string(trimmed)
}
