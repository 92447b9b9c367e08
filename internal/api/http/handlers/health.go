package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"walletbot/internal/report"
	"walletbot/internal/service"
	"walletbot/pkg/httputil"

	"gitlab.com/nevasik7/alerting/logger"
)

const readinessTimeout = 5 * time.Second

type ReportService interface {
	Report(ctx context.Context, req service.Request) (report.Report, error)
}

// CheckFunc pings one external dependency
type CheckFunc func(ctx context.Context) error

type Handler struct {
	Log    logger.Logger
	Svc    ReportService
	Checks map[string]CheckFunc // redis, clickhouse, nats... only configured ones
}

func NewHandler(log logger.Logger, svc ReportService, checks map[string]CheckFunc) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("report service cannot be nil")
	}
	if checks == nil {
		checks = map[string]CheckFunc{}
	}

	return &Handler{Log: log, Svc: svc, Checks: checks}, nil
}

func (a *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	if err := httputil.JSON(w, http.StatusOK, map[string]any{}, nil); err != nil {
		a.Log.Errorf("Healthz handler error: %s", err.Error())
	}
}

// Readiness pings every configured dependency concurrently
func (a *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	failed := a.checkDependencies(ctx)
	if len(failed) > 0 {
		err := httputil.Error(w, r, http.StatusServiceUnavailable, "dependencies_unhealthy", "dependencies check failed", failed)
		if err != nil {
			a.Log.Errorf("Readiness handler error: %s", err.Error())
		}
		return
	}

	names := make([]string, 0, len(a.Checks))
	for name := range a.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	if err := httputil.JSON(w, http.StatusOK, map[string]any{"dependencies": "healthy", "checked": names}, nil); err != nil {
		a.Log.Errorf("Readiness handler error: %s", err.Error())
	}
}

func (a *Handler) checkDependencies(ctx context.Context) map[string]string {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		failed = map[string]string{}
	)

	for name, check := range a.Checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			if err := check(ctx); err != nil {
				a.Log.Warnf("Dependency %s is not ready, error=%v", name, err)
				mu.Lock()
				failed[name] = err.Error()
				mu.Unlock()
			}
		}(name, check)
	}
	wg.Wait()

	return failed
}
