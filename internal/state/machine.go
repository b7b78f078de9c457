package state

import (
	"errors"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"staffdesk/client/internal/logging"
)

// State описывает состояние конечного автомата приложения.
type State string

const (
	StateAppStarting      State = "AppStarting"
	StateResumingSession  State = "ResumingSession"
	StateWaitingLogin     State = "WaitingLogin"
	StateAuthInProgress   State = "AuthInProgress"
	StateBrowsing         State = "Browsing"
	StateCreatingEmployee State = "CreatingEmployee"
	StateSubmitInProgress State = "SubmitInProgress"
	StateLoggingOut       State = "LoggingOut"
	StateExiting          State = "Exiting"
)

// EventType представляет собой тип события из очереди state machine.
type EventType string

const (
	EventUILaunch             EventType = "UI_LAUNCH"
	EventUICredentialsChanged EventType = "UI_CREDENTIALS_CHANGED"
	EventUIClickLogin         EventType = "UI_CLICK_LOGIN"
	EventUIClickLogout        EventType = "UI_CLICK_LOGOUT"
	EventUIOpenCreateForm     EventType = "UI_OPEN_CREATE_FORM"
	EventUICancelCreateForm   EventType = "UI_CANCEL_CREATE_FORM"
	EventUISubmitEmployee     EventType = "UI_SUBMIT_EMPLOYEE"
	EventUIExit               EventType = "UI_EXIT"

	EventUITogglePanel    EventType = "UI_TOGGLE_PANEL"
	EventUIClickBackdrop  EventType = "UI_CLICK_BACKDROP"
	EventUIToggleUserMenu EventType = "UI_TOGGLE_USER_MENU"
	EventUIClickOutside   EventType = "UI_CLICK_OUTSIDE"
	EventUIToggleSubmenu  EventType = "UI_TOGGLE_SUBMENU"
	EventUIResize         EventType = "UI_RESIZE"

	EventSysSessionActive EventType = "SYS_SESSION_ACTIVE"
	EventSysSessionAbsent EventType = "SYS_SESSION_ABSENT"
	EventSysLoginSuccess  EventType = "SYS_LOGIN_SUCCESS"
	EventSysLoginFailure  EventType = "SYS_LOGIN_FAILURE"
	EventSysSubmitSuccess EventType = "SYS_SUBMIT_SUCCESS"
	EventSysSubmitFailure EventType = "SYS_SUBMIT_FAILURE"
	EventSysUnauthorized  EventType = "SYS_UNAUTHORIZED"
	EventSysLogoutDone    EventType = "SYS_LOGOUT_DONE"
)

// Event инкапсулирует событие очереди и произвольную полезную нагрузку.
type Event struct {
	Type    EventType
	Payload any
	TS      time.Time
}

// CredentialsPayload передаёт логин/пароль из UI.
type CredentialsPayload struct {
	Username string
	Password string
}

// SubmitPayload передаёт поля формы создания сотрудника, уже сведённые
// в плоское отображение имя→значение.
type SubmitPayload struct {
	Fields map[string]string
}

// SubmenuPayload указывает группу подменю для переключения.
type SubmenuPayload struct {
	Group GroupID
}

// ResizePayload передаёт новую ширину окна.
type ResizePayload struct {
	Width float32
}

// ResultPayload описывает успех/ошибку сетевых сценариев.
type ResultPayload struct {
	Kind             ErrorKind
	Message          string
	TechnicalMessage string
}

// Callbacks содержит функции, вызываемые state machine для побочных эффектов.
type Callbacks struct {
	StartResume     func(ctx *AppContext)
	StartLogin      func(ctx *AppContext, username, password string)
	StartSubmit     func(ctx *AppContext, fields map[string]string)
	StartLogout     func(ctx *AppContext)
	CleanupAndExit  func(ctx *AppContext)
	ShowLoginWindow func(ctx *AppContext)
	ShowMainWindow  func(ctx *AppContext)
	UpdateUI        func(ctx *AppContext)
	ShowToast       func(message string, success bool)
}

// Machine инкапсулирует event-loop и текущее состояние приложения.
type Machine struct {
	ctx       *AppContext
	callbacks Callbacks
	logger    *logging.Logger
	events    chan Event
	priority  chan Event
	done      chan struct{}
	stopped   atomic.Bool
	loopOnce  sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// ErrMachineStopped возвращается при попытке отправить событие после остановки петли.
var ErrMachineStopped = errors.New("state machine stopped")

// NewMachine создаёт новый state machine в состоянии AppStarting.
func NewMachine(ctx *AppContext, logger *logging.Logger, callbacks Callbacks) *Machine {
	return &Machine{
		ctx:       ctx,
		callbacks: callbacks,
		logger:    logger,
		events:    make(chan Event, 64),
		priority:  make(chan Event, 8),
		done:      make(chan struct{}),
	}
}

// Start запускает event-loop в отдельной горутине.
func (m *Machine) Start() {
	m.loopOnce.Do(func() {
		go m.loopSafely()
	})
}

// Stop завершает event-loop.
func (m *Machine) Stop() {
	m.stopOnce.Do(func() {
		m.stopped.Store(true)
		close(m.done)
		close(m.priority)
		close(m.events)
	})
}

// WaitAsync ждёт завершения фоновых задач, запущенных state machine.
func (m *Machine) WaitAsync(timeout time.Duration) bool {
	if m == nil {
		return true
	}
	if timeout <= 0 {
		m.wg.Wait()
		return true
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Dispatch отправляет событие в очередь state machine.
func (m *Machine) Dispatch(evt Event) error {
	if m.stopped.Load() {
		return ErrMachineStopped
	}
	if m.logger != nil {
		m.logger.Debugf("event queued: %s", evt.Type)
	}
	ch := m.events
	if evt.Type == EventUIExit {
		ch = m.priority
	}
	select {
	case <-m.done:
		return ErrMachineStopped
	case ch <- evt:
		return nil
	default:
		// если канал заполнен, блокируемся, пока возможно отправить
		if m.stopped.Load() {
			return ErrMachineStopped
		}
		if m.safeSend(ch, evt) {
			return nil
		}
		return ErrMachineStopped
	}
}

func (m *Machine) loop() {
	for {
		if m.stopped.Load() {
			return
		}

		select {
		case evt, ok := <-m.priority:
			if !ok {
				return
			}
			m.handleEvent(evt)
			continue
		default:
		}

		select {
		case evt, ok := <-m.priority:
			if !ok {
				return
			}
			m.handleEvent(evt)
		case evt, ok := <-m.events:
			if !ok {
				return
			}
			m.handleEvent(evt)
		}
	}
}

func (m *Machine) loopSafely() {
	defer m.logPanic("state loop")
	m.loop()
}

func (m *Machine) handleEvent(evt Event) {
	if evt.TS.IsZero() {
		evt.TS = time.Now()
	}
	if m.logger != nil {
		m.logger.Debugf("event handle: %s state=%s", evt.Type, m.ctx.State)
	}
	if evt.Type == EventUIExit {
		m.transition(StateExiting)
		m.invokeCleanup()
		return
	}
	if m.handleNavigation(evt) {
		return
	}

	switch m.ctx.State {
	case StateAppStarting:
		m.handleAppStarting(evt)
	case StateResumingSession:
		m.handleResumingSession(evt)
	case StateWaitingLogin:
		m.handleWaitingLogin(evt)
	case StateAuthInProgress:
		m.handleAuthInProgress(evt)
	case StateBrowsing:
		m.handleBrowsing(evt)
	case StateCreatingEmployee:
		m.handleCreatingEmployee(evt)
	case StateSubmitInProgress:
		m.handleSubmitInProgress(evt)
	case StateLoggingOut:
		m.handleLoggingOut(evt)
	case StateExiting:
		// игнор
	default:
		m.logger.Debugf("state machine: unknown state %s", m.ctx.State)
	}
}

// handleNavigation применяет события навигационной оболочки независимо от
// состояния сессии: панель, меню пользователя и подменю живут своей жизнью,
// даже пока идёт сетевой запрос.
func (m *Machine) handleNavigation(evt Event) bool {
	nav := &m.ctx.UI.Nav
	switch evt.Type {
	case EventUITogglePanel:
		nav.TogglePanel()
	case EventUIClickBackdrop:
		nav.ClickBackdrop()
	case EventUIToggleUserMenu:
		nav.ToggleUserMenu()
	case EventUIClickOutside:
		nav.ClickOutside()
	case EventUIToggleSubmenu:
		if payload, ok := evt.Payload.(SubmenuPayload); ok {
			nav.ToggleSubmenu(payload.Group)
		}
	case EventUIResize:
		if payload, ok := evt.Payload.(ResizePayload); ok {
			nav.Resize(payload.Width)
		}
	default:
		return false
	}
	m.refreshUI()
	return true
}

func (m *Machine) handleAppStarting(evt Event) {
	switch evt.Type {
	case EventUILaunch:
		m.ctx.UI.StatusText = "Connexion au service RH..."
		m.transition(StateResumingSession)
		m.invokeResume()
	case EventUICredentialsChanged:
		m.applyCredentials(evt)
	default:
		m.logger.Debugf("appStarting: ignored %s", evt.Type)
	}
}

func (m *Machine) handleResumingSession(evt Event) {
	switch evt.Type {
	case EventSysSessionActive:
		m.ctx.UI.StatusText = ""
		m.transition(StateBrowsing)
		m.invokeShowMain()
	case EventSysSessionAbsent:
		m.ctx.UI.StatusText = "Veuillez vous connecter"
		m.transition(StateWaitingLogin)
		m.invokeShowLogin()
	case EventUICredentialsChanged:
		m.applyCredentials(evt)
	default:
		m.logger.Debugf("resumingSession: ignored %s", evt.Type)
	}
}

func (m *Machine) handleWaitingLogin(evt Event) {
	switch evt.Type {
	case EventUICredentialsChanged:
		m.applyCredentials(evt)
	case EventUIClickLogin:
		m.applyCredentials(evt)
		if strings.TrimSpace(m.ctx.UI.UsernameInput) == "" || strings.TrimSpace(m.ctx.UI.PasswordInput) == "" {
			m.ctx.UI.StatusText = "Saisissez le nom d'utilisateur et le mot de passe"
			m.refreshUI()
			return
		}
		m.ctx.UI.StatusText = "Connexion en cours..."
		m.transition(StateAuthInProgress)
		m.invokeLogin()
	default:
		m.logger.Debugf("waitingLogin: ignored %s", evt.Type)
	}
}

func (m *Machine) handleAuthInProgress(evt Event) {
	switch evt.Type {
	case EventSysLoginSuccess:
		m.ctx.Operator = strings.TrimSpace(m.ctx.UI.UsernameInput)
		m.ctx.UI.PasswordInput = ""
		m.ctx.LastError = nil
		m.ctx.UI.StatusText = ""
		m.transition(StateBrowsing)
		m.invokeShowMain()
	case EventSysLoginFailure:
		payload, _ := evt.Payload.(ResultPayload)
		m.recordFailure(payload, "Échec de la connexion")
		m.transition(StateWaitingLogin)
		m.refreshUI()
	case EventUIClickLogin:
		// запрос уже в полёте, повторная отправка игнорируется
		m.logger.Debugf("authInProgress: duplicate login click ignored")
	case EventUICredentialsChanged:
		m.applyCredentials(evt)
	default:
		m.logger.Debugf("authInProgress: ignored %s", evt.Type)
	}
}

func (m *Machine) handleBrowsing(evt Event) {
	switch evt.Type {
	case EventUIOpenCreateForm:
		m.transition(StateCreatingEmployee)
	case EventUIClickLogout:
		m.transition(StateLoggingOut)
		m.invokeLogout()
	case EventSysUnauthorized:
		m.onSessionInvalid(evt)
	default:
		m.logger.Debugf("browsing: ignored %s", evt.Type)
	}
}

func (m *Machine) handleCreatingEmployee(evt Event) {
	switch evt.Type {
	case EventUISubmitEmployee:
		payload, ok := evt.Payload.(SubmitPayload)
		if !ok || len(payload.Fields) == 0 {
			m.logger.Debugf("creatingEmployee: submit without fields ignored")
			return
		}
		m.transition(StateSubmitInProgress)
		m.invokeSubmit(payload.Fields)
	case EventUICancelCreateForm:
		m.transition(StateBrowsing)
	case EventUIClickLogout:
		m.transition(StateLoggingOut)
		m.invokeLogout()
	case EventSysUnauthorized:
		m.onSessionInvalid(evt)
	default:
		m.logger.Debugf("creatingEmployee: ignored %s", evt.Type)
	}
}

func (m *Machine) handleSubmitInProgress(evt Event) {
	switch evt.Type {
	case EventSysSubmitSuccess:
		m.showToast("Employé ajouté avec succès!", true)
		m.transition(StateBrowsing)
	case EventSysSubmitFailure:
		payload, _ := evt.Payload.(ResultPayload)
		m.recordFailure(payload, "Erreur lors de l'ajout de l'employé")
		m.showToast(m.ctx.LastError.UserMessage, false)
		// форма остаётся заполненной, пользователь может исправить и повторить
		m.transition(StateCreatingEmployee)
	case EventSysUnauthorized:
		m.onSessionInvalid(evt)
	case EventUISubmitEmployee:
		// запрос уже в полёте, повторная отправка игнорируется
		m.logger.Debugf("submitInProgress: duplicate submit ignored")
	default:
		m.logger.Debugf("submitInProgress: ignored %s", evt.Type)
	}
}

func (m *Machine) handleLoggingOut(evt Event) {
	switch evt.Type {
	case EventSysLogoutDone:
		m.ctx.Operator = ""
		m.ctx.UI.StatusText = "Veuillez vous connecter"
		m.transition(StateWaitingLogin)
		m.invokeShowLogin()
	default:
		m.logger.Debugf("loggingOut: ignored %s", evt.Type)
	}
}

// onSessionInvalid обрабатывает отклонённый сервером токен: credstore уже
// очищен на стороне session controller, остаётся вернуть окно логина.
func (m *Machine) onSessionInvalid(evt Event) {
	payload, _ := evt.Payload.(ResultPayload)
	message := strings.TrimSpace(payload.Message)
	if message == "" {
		message = "Session expirée, veuillez vous reconnecter"
	}
	m.ctx.Operator = ""
	m.ctx.UI.StatusText = message
	m.transition(StateWaitingLogin)
	m.invokeShowLogin()
}

func (m *Machine) recordFailure(payload ResultPayload, fallback string) {
	kind := payload.Kind
	if kind == "" {
		kind = ErrorKindUnknown
	}
	message := strings.TrimSpace(payload.Message)
	if message == "" {
		message = fallback
	}
	technical := payload.TechnicalMessage
	if technical == "" {
		technical = strings.ToLower(fallback)
	}
	m.ctx.LastError = &ErrorInfo{
		Kind:             kind,
		UserMessage:      message,
		TechnicalMessage: technical,
		OccurredAt:       time.Now(),
	}
	m.ctx.UI.StatusText = message
}

func (m *Machine) applyCredentials(evt Event) {
	if payload, ok := evt.Payload.(CredentialsPayload); ok {
		m.ctx.UI.UsernameInput = payload.Username
		m.ctx.UI.PasswordInput = payload.Password
	}
}

func (m *Machine) transition(next State) {
	if m.ctx.State == next {
		return
	}
	prev := m.ctx.State
	m.ctx.State = next
	m.logger.Debugf("state transition %s -> %s", prev, next)
	m.updateUIForState(next)
}

func (m *Machine) updateUIForState(state State) {
	m.ctx.UI.CanLogin = false
	m.ctx.UI.CanSubmit = false
	m.ctx.UI.IsSubmitting = false
	switch state {
	case StateWaitingLogin:
		m.ctx.UI.IsLoginVisible = true
		m.ctx.UI.IsMainVisible = false
		m.ctx.UI.IsCreateFormVisible = false
		m.ctx.UI.CanLogin = true
	case StateAuthInProgress:
		m.ctx.UI.IsLoginVisible = true
		m.ctx.UI.IsMainVisible = false
	case StateBrowsing:
		m.ctx.UI.IsLoginVisible = false
		m.ctx.UI.IsMainVisible = true
		m.ctx.UI.IsCreateFormVisible = false
	case StateCreatingEmployee:
		m.ctx.UI.IsLoginVisible = false
		m.ctx.UI.IsMainVisible = true
		m.ctx.UI.IsCreateFormVisible = true
		m.ctx.UI.CanSubmit = true
	case StateSubmitInProgress:
		m.ctx.UI.IsCreateFormVisible = true
		m.ctx.UI.IsSubmitting = true
	}
	m.refreshUI()
}

func (m *Machine) invokeResume() {
	if m.callbacks.StartResume != nil {
		m.runAsync(func() { m.callbacks.StartResume(m.ctx) })
	}
}

func (m *Machine) invokeLogin() {
	if m.callbacks.StartLogin != nil {
		username := m.ctx.UI.UsernameInput
		password := m.ctx.UI.PasswordInput
		m.runAsync(func() { m.callbacks.StartLogin(m.ctx, username, password) })
	}
}

func (m *Machine) invokeSubmit(fields map[string]string) {
	if m.callbacks.StartSubmit != nil {
		m.runAsync(func() { m.callbacks.StartSubmit(m.ctx, fields) })
	}
}

func (m *Machine) invokeLogout() {
	if m.callbacks.StartLogout != nil {
		m.runAsync(func() { m.callbacks.StartLogout(m.ctx) })
	}
}

func (m *Machine) invokeCleanup() {
	if m.callbacks.CleanupAndExit != nil {
		m.callbacks.CleanupAndExit(m.ctx)
		return
	}
	if !m.stopped.Load() {
		m.Stop()
	}
}

func (m *Machine) invokeShowLogin() {
	if m.callbacks.ShowLoginWindow != nil {
		m.callbacks.ShowLoginWindow(m.ctx)
	}
}

func (m *Machine) invokeShowMain() {
	if m.callbacks.ShowMainWindow != nil {
		m.callbacks.ShowMainWindow(m.ctx)
	}
}

func (m *Machine) showToast(message string, success bool) {
	if m.callbacks.ShowToast != nil {
		m.callbacks.ShowToast(message, success)
	} else {
		m.logger.Infof("toast: %s", message)
	}
}

func (m *Machine) refreshUI() {
	if m.callbacks.UpdateUI != nil {
		m.callbacks.UpdateUI(m.ctx)
	}
}

func (m *Machine) runAsync(fn func()) {
	if fn == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.logPanic("async task")
		fn()
	}()
}

func (m *Machine) logPanic(scope string) {
	if r := recover(); r != nil {
		if m.logger != nil {
			m.logger.Errorf("panic in %s: %v\n%s", scope, r, debug.Stack())
		}
		panic(r)
	}
}

func (m *Machine) safeSend(ch chan Event, evt Event) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	ch <- evt
	return true
}
