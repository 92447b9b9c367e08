package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"walletbot/internal/domain"
	"walletbot/internal/report"
	"walletbot/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	loggerCfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

// ========== Mocks ==========

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) Report(ctx context.Context, req service.Request) (report.Report, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(report.Report), args.Error(1)
}

// ========== Test Helpers ==========

func newTestLogger() logger.Logger {
	return logger.New(loggerCfg.LoggerCfg{
		Level:  "error",
		Format: "json",
	})
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func newReportRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/wallets/{address}/report", h.WalletReport)
	return r
}

// ========== Constructor Tests ==========

func TestNewHandler(t *testing.T) {
	_, err := NewHandler(newTestLogger(), nil, nil)
	assert.Error(t, err)

	h, err := NewHandler(newTestLogger(), new(MockReportService), nil)
	require.NoError(t, err)
	assert.NotNil(t, h.Checks)
}

// ========== Health Tests ==========

func TestHealthz(t *testing.T) {
	h, err := NewHandler(newTestLogger(), new(MockReportService), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec).Status)
}

func TestReadiness_AllHealthy(t *testing.T) {
	checks := map[string]CheckFunc{
		"redis":      func(context.Context) error { return nil },
		"clickhouse": func(context.Context) error { return nil },
	}
	h, err := NewHandler(newTestLogger(), new(MockReportService), checks)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readiness", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Dependencies string   `json:"dependencies"`
		Checked      []string `json:"checked"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	assert.Equal(t, "healthy", data.Dependencies)
	assert.Equal(t, []string{"clickhouse", "redis"}, data.Checked)
}

func TestReadiness_FailingDependency(t *testing.T) {
	checks := map[string]CheckFunc{
		"redis": func(context.Context) error { return nil },
		"nats":  func(context.Context) error { return errors.New("nats connection is not established") },
	}
	h, err := NewHandler(newTestLogger(), new(MockReportService), checks)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readiness", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "dependencies_unhealthy", env.Error.Code)
	assert.Equal(t, map[string]string{"nats": "nats connection is not established"}, env.Error.Details)
}

func TestReadiness_NoChecks(t *testing.T) {
	h, err := NewHandler(newTestLogger(), new(MockReportService), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readiness", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

// ========== WalletReport Tests ==========

func TestWalletReport_OK(t *testing.T) {
	svc := new(MockReportService)
	svc.On("Report", mock.Anything, service.Request{
		Source: domain.SourceHTTP,
		Args:   []string{"0xabc"},
	}).Return(report.Report{Wallet: "0xabc", Text: "summary", Swaps: 2}, nil).Once()

	h, err := NewHandler(newTestLogger(), svc, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	newReportRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/wallets/0xabc/report", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var rep report.Report
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &rep))
	assert.Equal(t, "0xabc", rep.Wallet)
	assert.Equal(t, "summary", rep.Text)
	assert.Equal(t, 2, rep.Swaps)
	svc.AssertExpectations(t)
}

func TestWalletReport_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid address", fmt.Errorf("%w: want 0x prefix", domain.ErrValidation), http.StatusBadRequest, "invalid_wallet"},
		{"rate limited", fmt.Errorf("ip: %w", domain.ErrRateLimited), http.StatusTooManyRequests, "rate_limited"},
		{"fetch failed", fmt.Errorf("%w: status 500", domain.ErrFetch), http.StatusBadGateway, "fetch_failed"},
		{"parse failed", &domain.ParseError{Index: 0, Field: "amountUSD", Err: errors.New("bad")}, http.StatusBadGateway, "fetch_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockReportService)
			svc.On("Report", mock.Anything, mock.Anything).Return(report.Report{}, tt.err).Once()

			h, err := NewHandler(newTestLogger(), svc, nil)
			require.NoError(t, err)

			rec := httptest.NewRecorder()
			newReportRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/wallets/abc/report", nil))

			assert.Equal(t, tt.status, rec.Code)
			env := decode(t, rec)
			assert.Equal(t, "error", env.Status)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestWalletReport_FetchFailureHidesCause(t *testing.T) {
	svc := new(MockReportService)
	svc.On("Report", mock.Anything, mock.Anything).
		Return(report.Report{}, fmt.Errorf("%w: dial tcp 10.0.0.1:443: connection refused", domain.ErrFetch)).Once()

	h, err := NewHandler(newTestLogger(), svc, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	newReportRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/wallets/0xabc/report", nil))

	assert.Equal(t, service.MsgFetchFailed, decode(t, rec).Error.Message)
	assert.NotContains(t, rec.Body.String(), "10.0.0.1")
}
