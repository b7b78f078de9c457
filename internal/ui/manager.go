package ui

import (
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"staffdesk/client/internal/logging"
	"staffdesk/client/internal/state"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"golang.org/x/text/encoding/charmap"
)

// Options описывает параметры инициализации UI Manager.
type Options struct {
	AppID    string
	AppName  string
	Logger   *logging.Logger
	Dispatch func(state.Event) error
}

// Manager управляет окнами Fyne и связывает их со state machine.
// Вся навигационная логика живёт в state.NavigationState; Manager только
// переводит клики в события и применяет снимки состояния к виджетам.
type Manager struct {
	app      fyne.App
	appName  string
	logger   *logging.Logger
	dispatch func(state.Event) error

	loginWin        fyne.Window
	mainWin         fyne.Window
	loginWinVisible bool
	mainWinVisible  bool

	usernameEntry *widget.Entry
	passwordEntry *widget.Entry
	loginStatus   *widget.Label
	loginBtn      *widget.Button

	menuBtn       *widget.Button
	userBtn       *widget.Button
	operatorLabel *widget.Label
	dropdownWrap  *fyne.Container
	fixedNav      *navPanel
	overlayNav    *navPanel
	overlayWrap   *fyne.Container
	backdrop      *backdropWidget

	listView      *fyne.Container
	formView      *fyne.Container
	formEntries   map[string]*widget.Entry
	submitBtn     *widget.Button
	cancelBtn     *widget.Button
	submitSpinner *widget.ProgressBarInfinite

	suppressCredEvents bool

	updateCh     chan uiSnapshot
	stopCh       chan struct{}
	runOnce      sync.Once
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// uiSnapshot переносит срез состояния UI из state machine в goroutine UI.
type uiSnapshot struct {
	LoginVisible      bool
	MainVisible       bool
	CreateFormVisible bool
	IsSubmitting      bool
	StatusText        string
	CanLogin          bool
	CanSubmit         bool
	UsernameInput     string
	PasswordInput     string
	Operator          string
	PanelOpen         bool
	UserMenuOpen      bool
	ExpandedSubmenu   state.GroupID
	Wide              bool
}

// navItem описывает один пункт подменю.
type navItem struct {
	label  string
	tapped func()
}

// navGroup описывает раскрываемую группу бокового меню.
type navGroup struct {
	id    state.GroupID
	title string
	items []navItem
}

// navPanel — построенная панель навигации с доступом к контейнерам подменю.
type navPanel struct {
	root     *fyne.Container
	submenus map[state.GroupID]*fyne.Container
}

// NewManager создаёт новый UI Manager.
func NewManager(opts Options) *Manager {
	appID := strings.TrimSpace(opts.AppID)
	if appID == "" {
		appID = "staffdesk.client"
	}
	name := strings.TrimSpace(opts.AppName)
	if name == "" {
		name = "StaffDesk"
	}
	fyneApp := fyneapp.NewWithID(appID)
	fyneApp.Settings().SetTheme(newDeskTheme())
	m := &Manager{
		app:      fyneApp,
		appName:  name,
		logger:   opts.Logger,
		dispatch: opts.Dispatch,
		updateCh: make(chan uiSnapshot, 16),
		stopCh:   make(chan struct{}),
	}
	m.buildLoginWindow()
	m.buildMainWindow()
	return m
}

// Start запускает фоновую goroutine обновлений UI.
func (m *Manager) Start() {
	m.runOnce.Do(func() {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.processUpdates()
		}()
	})
}

// RunMainLoop блокирует текущую горутину до завершения цикла Fyne.
func (m *Manager) RunMainLoop() {
	if m.app == nil {
		return
	}
	m.app.Run()
}

// Shutdown останавливает обновления и закрывает Fyne-приложение.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		close(m.stopCh)
		m.callOnUI(func() {
			if m.mainWin != nil {
				m.mainWin.Close()
			}
			if m.loginWin != nil {
				m.loginWin.Close()
			}
			m.mainWinVisible = false
			m.loginWinVisible = false
			if m.app != nil {
				m.app.Quit()
			}
		})
	})
}

// WaitAsync ждёт завершения фоновых UI goroutine.
func (m *Manager) WaitAsync(timeout time.Duration) bool {
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

// ShowLoginWindow отображает окно входа.
func (m *Manager) ShowLoginWindow(_ *state.AppContext) {
	m.callOnUI(func() {
		if m.mainWin != nil {
			m.mainWin.Hide()
			m.mainWinVisible = false
		}
		if m.loginWin != nil {
			wasVisible := m.loginWinVisible
			if !wasVisible {
				m.loginWin.Show()
			}
			if !wasVisible && m.usernameEntry != nil {
				if canvas := m.loginWin.Canvas(); canvas != nil {
					canvas.Focus(m.usernameEntry)
				}
			}
			m.loginWinVisible = true
		}
	})
}

// ShowMainWindow отображает главное окно.
func (m *Manager) ShowMainWindow(_ *state.AppContext) {
	m.callOnUI(func() {
		if m.loginWin != nil {
			m.loginWin.Hide()
			m.loginWinVisible = false
		}
		if m.mainWin != nil {
			m.mainWin.Show()
			m.mainWin.RequestFocus()
			m.mainWinVisible = true
		}
	})
}

// UpdateUI передаёт снимок состояния UI в безопасную для Fyne goroutine.
func (m *Manager) UpdateUI(ctx *state.AppContext) {
	if ctx == nil {
		return
	}
	snap := uiSnapshot{
		LoginVisible:      ctx.UI.IsLoginVisible,
		MainVisible:       ctx.UI.IsMainVisible,
		CreateFormVisible: ctx.UI.IsCreateFormVisible,
		IsSubmitting:      ctx.UI.IsSubmitting,
		StatusText:        ctx.UI.StatusText,
		CanLogin:          ctx.UI.CanLogin,
		CanSubmit:         ctx.UI.CanSubmit,
		UsernameInput:     ctx.UI.UsernameInput,
		PasswordInput:     ctx.UI.PasswordInput,
		Operator:          ctx.Operator,
		PanelOpen:         ctx.UI.Nav.PanelOpen,
		UserMenuOpen:      ctx.UI.Nav.UserMenuOpen,
		ExpandedSubmenu:   ctx.UI.Nav.ExpandedSubmenu,
		Wide:              ctx.UI.Nav.Wide,
	}
	select {
	case <-m.stopCh:
		return
	case m.updateCh <- snap:
	default:
		select {
		case <-m.updateCh:
		default:
		}
		m.updateCh <- snap
	}
}

// ShowToast отображает уведомление об исходе операции.
func (m *Manager) ShowToast(message string, success bool) {
	if strings.TrimSpace(message) == "" {
		return
	}
	m.callOnUI(func() {
		message := normalizeUserText(message)
		win := m.activeWindow()
		if success {
			dialog.ShowInformation(m.appName, message, win)
			return
		}
		dialog.ShowError(errors.New(message), win)
	})
}

func (m *Manager) processUpdates() {
	for {
		select {
		case <-m.stopCh:
			return
		case snap := <-m.updateCh:
			m.applySnapshot(snap)
		}
	}
}

func (m *Manager) applySnapshot(snap uiSnapshot) {
	m.callOnUI(func() {
		snap.StatusText = normalizeUserText(snap.StatusText)
		m.updateLoginControls(snap)
		m.updateCredentials(snap.UsernameInput, snap.PasswordInput)
		m.updateHeader(snap)
		m.updateNavigation(snap)
		m.updateContent(snap)
	})
}

func (m *Manager) updateLoginControls(snap uiSnapshot) {
	if m.loginStatus != nil {
		m.loginStatus.SetText(snap.StatusText)
	}
	if m.loginBtn != nil {
		if snap.CanLogin {
			m.loginBtn.Enable()
		} else {
			m.loginBtn.Disable()
		}
	}
}

func (m *Manager) updateCredentials(username, password string) {
	if m.usernameEntry == nil || m.passwordEntry == nil {
		return
	}
	m.suppressCredEvents = true
	if m.usernameEntry.Text != username {
		m.usernameEntry.SetText(username)
	}
	if m.passwordEntry.Text != password {
		m.passwordEntry.SetText(password)
	}
	m.suppressCredEvents = false
}

func (m *Manager) updateHeader(snap uiSnapshot) {
	if m.menuBtn != nil {
		if snap.Wide {
			m.menuBtn.Hide()
		} else {
			m.menuBtn.Show()
		}
	}
	if m.userBtn != nil {
		label := "Compte"
		if snap.Operator != "" {
			label = snap.Operator
		}
		if m.userBtn.Text != label {
			m.userBtn.SetText(label)
		}
	}
	if m.operatorLabel != nil {
		text := "Session active"
		if snap.Operator != "" {
			text = "Connecté: " + snap.Operator
		}
		m.operatorLabel.SetText(text)
	}
}

func (m *Manager) updateNavigation(snap uiSnapshot) {
	if m.fixedNav != nil {
		if snap.Wide {
			m.fixedNav.root.Show()
		} else {
			m.fixedNav.root.Hide()
		}
		m.fixedNav.applyExpanded(snap.ExpandedSubmenu)
	}
	overlayVisible := snap.PanelOpen && !snap.Wide
	if m.backdrop != nil {
		if overlayVisible {
			m.backdrop.Show()
		} else {
			m.backdrop.Hide()
		}
	}
	if m.overlayWrap != nil {
		if overlayVisible {
			m.overlayWrap.Show()
		} else {
			m.overlayWrap.Hide()
		}
	}
	if m.overlayNav != nil {
		m.overlayNav.applyExpanded(snap.ExpandedSubmenu)
	}
	if m.dropdownWrap != nil {
		if snap.UserMenuOpen {
			m.dropdownWrap.Show()
		} else {
			m.dropdownWrap.Hide()
		}
	}
}

func (m *Manager) updateContent(snap uiSnapshot) {
	if m.listView == nil || m.formView == nil {
		return
	}
	if snap.CreateFormVisible {
		m.listView.Hide()
		m.formView.Show()
	} else {
		m.formView.Hide()
		m.listView.Show()
		// уход с формы означает успешную отправку либо отмену
		m.clearFormEntries()
	}
	if m.submitBtn != nil {
		if snap.CanSubmit && !snap.IsSubmitting {
			m.submitBtn.Enable()
		} else {
			m.submitBtn.Disable()
		}
	}
	if m.cancelBtn != nil {
		if snap.IsSubmitting {
			m.cancelBtn.Disable()
		} else {
			m.cancelBtn.Enable()
		}
	}
	if m.submitSpinner != nil {
		if snap.IsSubmitting {
			m.submitSpinner.Show()
			m.submitSpinner.Start()
		} else {
			m.submitSpinner.Stop()
			m.submitSpinner.Hide()
		}
	}
}

func (m *Manager) clearFormEntries() {
	for _, entry := range m.formEntries {
		if entry.Text != "" {
			entry.SetText("")
		}
	}
}

func (m *Manager) buildLoginWindow() {
	if m.app == nil {
		return
	}
	win := m.app.NewWindow(m.appName + " — Connexion")
	win.Resize(fyne.NewSize(440, 520))
	win.CenterOnScreen()
	win.SetFixedSize(true)

	title := widget.NewLabelWithStyle(m.appName, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	subtitle := widget.NewLabel("Authentification")

	m.usernameEntry = widget.NewEntry()
	m.usernameEntry.SetPlaceHolder("Nom d'utilisateur")
	m.usernameEntry.OnChanged = func(string) { m.handleCredentialsEdited() }
	m.usernameEntry.OnSubmitted = func(string) { m.handleLoginClicked() }

	m.passwordEntry = widget.NewPasswordEntry()
	m.passwordEntry.SetPlaceHolder("Mot de passe")
	m.passwordEntry.OnChanged = func(string) { m.handleCredentialsEdited() }
	m.passwordEntry.OnSubmitted = func(string) { m.handleLoginClicked() }

	loginButton := widget.NewButton("Se connecter", m.handleLoginClicked)
	loginButton.Importance = widget.HighImportance
	loginButton.Disable()
	m.loginBtn = loginButton

	m.loginStatus = widget.NewLabel("Connexion au service RH...")
	m.loginStatus.Wrapping = fyne.TextWrapWord

	fields := container.NewVBox(
		widget.NewLabelWithStyle("Nom d'utilisateur", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		m.usernameEntry,
		widget.NewLabelWithStyle("Mot de passe", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		m.passwordEntry,
	)
	header := container.NewVBox(title, subtitle)
	form := container.NewVBox(fields, loginButton, layout.NewSpacer())
	statusArea := container.NewVBox(widget.NewSeparator(), m.loginStatus)
	content := container.NewBorder(header, statusArea, nil, nil, form)
	win.SetContent(container.NewPadded(content))
	win.SetCloseIntercept(func() {
		m.sendSimpleEvent(state.EventUIExit)
	})
	win.Show()
	m.loginWin = win
	m.loginWinVisible = true
}

func (m *Manager) buildMainWindow() {
	if m.app == nil {
		return
	}
	win := m.app.NewWindow(m.appName)
	win.Resize(fyne.NewSize(1120, 640))

	m.menuBtn = widget.NewButtonWithIcon("", theme.MenuIcon(), func() {
		m.sendSimpleEvent(state.EventUITogglePanel)
	})
	m.userBtn = widget.NewButton("Compte", func() {
		// клик по кнопке не доходит до tapCatcher, аналог stopPropagation
		m.sendSimpleEvent(state.EventUIToggleUserMenu)
	})
	title := widget.NewLabelWithStyle(m.appName, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	header := container.NewHBox(m.menuBtn, title, layout.NewSpacer(), m.userBtn)

	m.fixedNav = m.buildNavPanel()
	m.overlayNav = m.buildNavPanel()

	m.buildListView()
	m.buildFormView()
	contentStack := container.NewStack(m.listView, m.formView)
	m.formView.Hide()

	outsideCatcher := newTapCatcher(func() {
		m.sendSimpleEvent(state.EventUIClickOutside)
	})
	page := container.NewStack(outsideCatcher, container.NewPadded(contentStack))

	body := container.NewBorder(header, nil, m.fixedNav.root, nil, page)

	m.backdrop = newBackdrop(func() {
		m.sendSimpleEvent(state.EventUIClickBackdrop)
	})
	m.backdrop.Hide()

	overlayCard := widget.NewCard("", "", m.overlayNav.root)
	m.overlayWrap = container.NewHBox(overlayCard)
	m.overlayWrap.Hide()

	m.operatorLabel = widget.NewLabel("Session active")
	logoutBtn := widget.NewButton("Se déconnecter", func() {
		m.sendSimpleEvent(state.EventUIClickLogout)
	})
	dropdownBody := container.NewStack(
		// подложка глотает клики внутри меню, состояние не меняется
		newTapCatcher(nil),
		container.NewVBox(m.operatorLabel, widget.NewSeparator(), logoutBtn),
	)
	dropdownCard := widget.NewCard("", "", dropdownBody)
	m.dropdownWrap = container.NewVBox(container.NewHBox(layout.NewSpacer(), dropdownCard))
	m.dropdownWrap.Hide()

	rootStack := container.NewStack(body, m.backdrop, m.overlayWrap, m.dropdownWrap)
	watched := container.New(&widthWatcher{onWidth: m.handleResized}, rootStack)
	win.SetContent(watched)
	win.SetCloseIntercept(func() {
		m.sendSimpleEvent(state.EventUIExit)
	})
	win.Hide()
	m.mainWin = win
}

func (m *Manager) buildListView() {
	newEmployeeBtn := widget.NewButton("Nouvel employé", func() {
		m.sendSimpleEvent(state.EventUIOpenCreateForm)
	})
	newEmployeeBtn.Importance = widget.HighImportance
	body := container.NewVBox(
		widget.NewLabel("Gestion du personnel de l'administration."),
		newEmployeeBtn,
	)
	m.listView = container.NewVBox(widget.NewCard("Employés", "Liste des employés", body))
}

func (m *Manager) buildFormView() {
	m.formEntries = make(map[string]*widget.Entry, len(state.EmployeeFormFields))
	rows := make([]*widget.FormItem, 0, len(state.EmployeeFormFields))
	for _, field := range state.EmployeeFormFields {
		entry := widget.NewEntry()
		m.formEntries[field.Key] = entry
		rows = append(rows, widget.NewFormItem(field.Label, entry))
	}
	form := widget.NewForm(rows...)

	m.submitBtn = widget.NewButton("Enregistrer", m.handleSubmitClicked)
	m.submitBtn.Importance = widget.HighImportance
	m.cancelBtn = widget.NewButton("Annuler", func() {
		m.sendSimpleEvent(state.EventUICancelCreateForm)
	})
	m.submitSpinner = widget.NewProgressBarInfinite()
	m.submitSpinner.Hide()

	controls := container.NewHBox(m.submitBtn, m.cancelBtn, layout.NewSpacer(), m.submitSpinner)
	body := container.NewVBox(form, controls)
	m.formView = container.NewVBox(widget.NewCard("Nouvel employé", "", body))
}

// buildNavPanel строит панель навигации. Каждая группа — кнопка-заголовок
// и скрытый контейнер пунктов; раскрытие управляется только снимками
// состояния, не самими виджетами.
func (m *Manager) buildNavPanel() *navPanel {
	groups := []navGroup{
		{
			id:    state.GroupEmployees,
			title: "Employés",
			items: []navItem{
				{label: "Liste des employés", tapped: func() { m.sendSimpleEvent(state.EventUICancelCreateForm) }},
				{label: "Nouvel employé", tapped: func() { m.sendSimpleEvent(state.EventUIOpenCreateForm) }},
			},
		},
		{
			id:    state.GroupAttendance,
			title: "Présence",
			items: []navItem{
				{label: "Pointages"},
				{label: "Rapports"},
			},
		},
		{
			id:    state.GroupLeave,
			title: "Congés",
			items: []navItem{
				{label: "Demandes"},
				{label: "Validation"},
			},
		},
		{
			id:    state.GroupPayroll,
			title: "Paie",
			items: []navItem{
				{label: "Bulletins"},
				{label: "Éléments variables"},
			},
		},
		{
			id:    state.GroupDocuments,
			title: "Documents",
			items: []navItem{
				{label: "Dossiers"},
				{label: "Modèles"},
			},
		},
	}

	panel := &navPanel{submenus: make(map[state.GroupID]*fyne.Container, len(groups))}
	boxes := make([]fyne.CanvasObject, 0, len(groups)*2)
	for _, group := range groups {
		group := group
		groupBtn := widget.NewButton(group.title, func() {
			m.dispatchEvent(state.Event{
				Type:    state.EventUIToggleSubmenu,
				Payload: state.SubmenuPayload{Group: group.id},
				TS:      time.Now(),
			})
		})
		groupBtn.Alignment = widget.ButtonAlignLeading
		items := make([]fyne.CanvasObject, 0, len(group.items))
		for _, item := range group.items {
			item := item
			tapped := item.tapped
			if tapped == nil {
				label := item.label
				tapped = func() { m.logUnimplemented(label) }
			}
			itemBtn := widget.NewButton("  "+item.label, tapped)
			itemBtn.Alignment = widget.ButtonAlignLeading
			itemBtn.Importance = widget.LowImportance
			items = append(items, itemBtn)
		}
		submenu := container.NewVBox(items...)
		submenu.Hide()
		panel.submenus[group.id] = submenu
		boxes = append(boxes, groupBtn, submenu)
	}
	panel.root = container.NewVBox(boxes...)
	return panel
}

// applyExpanded раскрывает ровно одну группу подменю согласно снимку.
func (p *navPanel) applyExpanded(expanded state.GroupID) {
	for id, submenu := range p.submenus {
		if id == expanded {
			submenu.Show()
		} else {
			submenu.Hide()
		}
	}
	p.root.Refresh()
}

func (m *Manager) handleLoginClicked() {
	if m.usernameEntry == nil || m.passwordEntry == nil {
		m.sendSimpleEvent(state.EventUIClickLogin)
		return
	}
	payload := state.CredentialsPayload{
		Username: m.usernameEntry.Text,
		Password: m.passwordEntry.Text,
	}
	m.dispatchEvent(state.Event{Type: state.EventUIClickLogin, Payload: payload, TS: time.Now()})
}

func (m *Manager) handleCredentialsEdited() {
	if m.suppressCredEvents {
		return
	}
	payload := state.CredentialsPayload{
		Username: m.usernameEntry.Text,
		Password: m.passwordEntry.Text,
	}
	m.dispatchEvent(state.Event{Type: state.EventUICredentialsChanged, Payload: payload, TS: time.Now()})
}

func (m *Manager) handleSubmitClicked() {
	fields := make(map[string]string, len(m.formEntries))
	for key, entry := range m.formEntries {
		fields[key] = strings.TrimSpace(entry.Text)
	}
	payload := state.SubmitPayload{Fields: fields}
	m.dispatchEvent(state.Event{Type: state.EventUISubmitEmployee, Payload: payload, TS: time.Now()})
}

func (m *Manager) handleResized(width float32) {
	m.dispatchEvent(state.Event{
		Type:    state.EventUIResize,
		Payload: state.ResizePayload{Width: width},
		TS:      time.Now(),
	})
}

func (m *Manager) logUnimplemented(label string) {
	if m.logger != nil {
		m.logger.Debugf("nav item %q: section non implémentée", label)
	}
}

func (m *Manager) sendSimpleEvent(t state.EventType) {
	m.dispatchEvent(state.Event{Type: t, TS: time.Now()})
}

func (m *Manager) dispatchEvent(evt state.Event) {
	if m.dispatch == nil {
		return
	}
	if err := m.dispatch(evt); err != nil && m.logger != nil {
		m.logger.Errorf("ui dispatch %s failed: %v", evt.Type, err)
	}
}

func (m *Manager) activeWindow() fyne.Window {
	if m.loginWinVisible && m.loginWin != nil {
		return m.loginWin
	}
	if m.mainWinVisible && m.mainWin != nil {
		return m.mainWin
	}
	if m.loginWin != nil {
		return m.loginWin
	}
	return m.mainWin
}

func (m *Manager) callOnUI(fn func()) {
	if m.app == nil || fn == nil {
		return
	}
	if drv := m.app.Driver(); drv != nil {
		drv.DoFromGoroutine(fn, true)
		return
	}
	fn()
}

// normalizeUserText чинит сообщения сервера, пришедшие в Windows-1252:
// часть текстов RH-бэкенда отдаётся в Latin-1.
func normalizeUserText(message string) string {
	message = strings.TrimSpace(message)
	if message == "" || utf8.ValidString(message) {
		return message
	}
	decoded, err := charmap.Windows1252.NewDecoder().String(message)
	if err != nil {
		return message
	}
	return decoded
}
