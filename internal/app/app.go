package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gitlab.com/nevasik7/alerting/logger"
)

type HTTPServer interface {
	Start(errCh chan<- error) error
	Shutdown(ctx context.Context) error
}

// BotRunner blocks until ctx is done, see bot.Bot
type BotRunner interface {
	Run(ctx context.Context) error
}

// App runs the telegram poller and the optional HTTP API side by side
type App struct {
	log     logger.Logger
	bot     BotRunner
	httpSrv HTTPServer // optional

	errCh   chan error
	stopBot context.CancelFunc
	botDone chan struct{}
	once    sync.Once
}

func NewApp(log logger.Logger, bot BotRunner, httpSrv HTTPServer) *App {
	return &App{
		log:     log,
		bot:     bot,
		httpSrv: httpSrv,
		errCh:   make(chan error, 2),
		botDone: make(chan struct{}),
	}
}

// Errors fatal runtime failures of the bot or the http server
func (a *App) Errors() <-chan error {
	return a.errCh
}

func (a *App) Start(ctx context.Context) error {
	a.log.Debug("App started begin...")

	if a.httpSrv != nil {
		if err := a.httpSrv.Start(a.errCh); err != nil {
			return fmt.Errorf("start HTTP server is failed, error=%w", err)
		}
	}

	botCtx, cancel := context.WithCancel(ctx)
	a.stopBot = cancel

	go func() {
		defer close(a.botDone)
		if err := a.bot.Run(botCtx); err != nil {
			a.errCh <- fmt.Errorf("telegram bot stopped, error=%w", err)
		}
	}()

	a.log.Info("App started")
	return nil
}

// Shutdown stops polling first, in-flight replies finish, then the HTTP server drains
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	a.once.Do(func() {
		a.log.Debug("App stopped begin...")

		if a.stopBot != nil {
			a.stopBot()
			select {
			case <-a.botDone:
			case <-ctx.Done():
				errs = append(errs, fmt.Errorf("telegram bot did not stop in time, error=%w", ctx.Err()))
			}
		}

		if a.httpSrv != nil {
			if err := a.httpSrv.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown HTTP server is failed, error=%w", err))
			}
		}

		a.log.Info("App stopped")
	})

	return errors.Join(errs...)
}
