package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"staffdesk/client/internal/apiclient"
	"staffdesk/client/internal/config"
	"staffdesk/client/internal/credstore"
	"staffdesk/client/internal/logging"
	"staffdesk/client/internal/state"
	"staffdesk/client/internal/ui"
)

// Application связывает state machine, session controller и UI.
type Application struct {
	cfg       *config.Config
	logger    *logging.Logger
	creds     credstore.Store
	api       *apiclient.Client
	session   *Session
	machine   *state.Machine
	ctx       *state.AppContext
	ui        *ui.Manager
	shutdown  chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	stopOnce  sync.Once
}

// New создаёт Application и настраивает state machine callbacks.
func New(cfg *config.Config, logger *logging.Logger) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	creds, err := credstore.NewFileStore(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("init credential store: %w", err)
	}
	api, err := apiclient.New(cfg.APIBaseURL, apiclient.Options{
		Logger:      logger,
		Credentials: creds,
		CSRFToken:   cfg.CSRFToken,
	})
	if err != nil {
		return nil, fmt.Errorf("init api client: %w", err)
	}
	stateCtx := state.NewAppContext(cfg)
	runCtx, runCancel := context.WithCancel(context.Background())
	app := &Application{
		cfg:       cfg,
		logger:    logger,
		creds:     creds,
		api:       api,
		ctx:       stateCtx,
		shutdown:  make(chan struct{}),
		runCtx:    runCtx,
		runCancel: runCancel,
	}
	app.session = NewSession(runCtx, api, creds, logger, app.dispatch)
	uiManager := ui.NewManager(ui.Options{
		AppID:    "staffdesk.client",
		AppName:  "StaffDesk RH",
		Logger:   logger,
		Dispatch: app.dispatch,
	})
	app.ui = uiManager
	callbacks := state.Callbacks{
		StartResume:     app.session.StartResume,
		StartLogin:      app.session.StartLogin,
		StartSubmit:     app.session.StartSubmit,
		StartLogout:     app.session.StartLogout,
		CleanupAndExit:  app.cleanupAndExit,
		ShowLoginWindow: uiManager.ShowLoginWindow,
		ShowMainWindow:  uiManager.ShowMainWindow,
		UpdateUI:        uiManager.UpdateUI,
		ShowToast:       uiManager.ShowToast,
	}
	app.machine = state.NewMachine(stateCtx, logger, callbacks)
	return app, nil
}

// Run запускает state machine и инициирует сценарий старта.
func (a *Application) Run() error {
	if a.machine == nil {
		return fmt.Errorf("machine is not initialized")
	}
	if a.ui != nil {
		a.ui.Start()
		a.ui.UpdateUI(a.ctx)
	}
	a.machine.Start()
	return a.dispatch(state.Event{Type: state.EventUILaunch, TS: time.Now()})
}

// RunUILoop запускает главный цикл Fyne и блокирует вызывающую горутину до выхода.
func (a *Application) RunUILoop() {
	if a.ui == nil {
		return
	}
	a.ui.RunMainLoop()
}

// Stop останавливает state machine и UI.
func (a *Application) Stop() {
	a.stopOnce.Do(func() {
		if a.runCancel != nil {
			a.runCancel()
		}
		if a.ui != nil {
			a.ui.Shutdown()
			if !a.ui.WaitAsync(3*time.Second) && a.logger != nil {
				a.logger.Errorf("ui background tasks did not finish before timeout")
			}
		}
		if a.machine != nil {
			a.machine.Stop()
			if !a.machine.WaitAsync(3*time.Second) && a.logger != nil {
				a.logger.Errorf("state machine background tasks did not finish before timeout")
			}
		}
		close(a.shutdown)
	})
}

// Done возвращает канал, закрывающийся после полной остановки приложения.
func (a *Application) Done() <-chan struct{} {
	return a.shutdown
}

func (a *Application) dispatch(evt state.Event) error {
	if err := a.machine.Dispatch(evt); err != nil {
		a.logger.Errorf("dispatch %s failed: %v", evt.Type, err)
		return err
	}
	return nil
}

func (a *Application) cleanupAndExit(_ *state.AppContext) {
	a.logger.Infof("state machine requested shutdown")
	a.Stop()
}
