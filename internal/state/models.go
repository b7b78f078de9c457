package state

import (
	"time"

	"staffdesk/client/internal/config"
)

// ErrorKind описывает тип ошибки, отображаемой пользователю и используемой для логики состояния.
type ErrorKind string

const (
	// ErrorKindUnreachable — транспортный сбой, ответ сервера не получен.
	ErrorKindUnreachable ErrorKind = "Unreachable"
	// ErrorKindRejected — сервер ответил неуспешным статусом.
	ErrorKindRejected ErrorKind = "Rejected"
	// ErrorKindUnauthorized — сервер счёл токен сессии недействительным.
	ErrorKindUnauthorized ErrorKind = "Unauthorized"
	// ErrorKindMalformed — успешный ответ без ожидаемого поля.
	ErrorKindMalformed ErrorKind = "Malformed"
	// ErrorKindConfigFailed — проблема с конфигурацией приложения.
	ErrorKindConfigFailed ErrorKind = "ConfigFailed"
	// ErrorKindUnknown — неклассифицированная ошибка.
	ErrorKindUnknown ErrorKind = "Unknown"
)

// ErrorInfo описывает ошибку для UI и логов.
type ErrorInfo struct {
	Kind             ErrorKind
	UserMessage      string
	TechnicalMessage string
	OccurredAt       time.Time
}

// FormField описывает одно поле формы создания сотрудника.
// Ключи совпадают с полями API /api/employees/.
type FormField struct {
	Key   string
	Label string
}

// EmployeeFormFields перечисляет поля формы в порядке отображения.
var EmployeeFormFields = []FormField{
	{Key: "first_name", Label: "Prénom"},
	{Key: "last_name", Label: "Nom"},
	{Key: "gender", Label: "Genre (M/F)"},
	{Key: "date_of_birth", Label: "Date de naissance"},
	{Key: "nationality", Label: "Nationalité"},
	{Key: "contact", Label: "Contact"},
	{Key: "employment_type", Label: "Type d'emploi"},
	{Key: "department", Label: "Direction"},
	{Key: "position", Label: "Poste"},
	{Key: "date_joined", Label: "Date d'entrée en service"},
}

// UIState хранит минимально необходимую информацию для управления UI.
type UIState struct {
	IsLoginVisible      bool
	IsMainVisible       bool
	IsCreateFormVisible bool
	IsSubmitting        bool
	StatusText          string
	UsernameInput       string
	PasswordInput       string
	CanLogin            bool
	CanSubmit           bool
	Nav                 NavigationState
}

// AppContext содержит всё состояние приложения, кроме токена сессии:
// токен принадлежит исключительно credstore и не копируется сюда.
type AppContext struct {
	Config    *config.Config
	Operator  string
	LastError *ErrorInfo
	UI        UIState
	State     State
}

// NewAppContext создаёт AppContext в начальном состоянии.
func NewAppContext(cfg *config.Config) *AppContext {
	return &AppContext{
		Config: cfg,
		State:  StateAppStarting,
	}
}
