package handlers

import (
	"net/http"
	"time"

	"walletbot/internal/domain"
	"walletbot/internal/service"
	"walletbot/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

// WalletReport GET /api/wallets/{address}/report, same pipeline and validation as the chat command
func (a *Handler) WalletReport(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	rep, err := a.Svc.Report(r.Context(), service.Request{
		Source: domain.SourceHTTP,
		Args:   []string{address},
	})
	if err != nil {
		a.writeReportError(w, r, err)
		return
	}

	if err = httputil.JSON(w, http.StatusOK, rep, map[string]string{"Cache-Control": "no-store"}); err != nil {
		a.Log.Errorf("WalletReport handler error: %s", err.Error())
	}
}

func (a *Handler) writeReportError(w http.ResponseWriter, r *http.Request, err error) {
	var werr error
	switch domain.OutcomeOf(err) {
	case domain.OutcomeInvalid:
		werr = httputil.Error(w, r, http.StatusBadRequest, "invalid_wallet", "wallet address must start with 0x", nil)
	case domain.OutcomeLimited:
		werr = httputil.TooManyRequests(w, r, time.Second, service.MsgRateLimited)
	default:
		werr = httputil.Error(w, r, http.StatusBadGateway, "fetch_failed", service.MsgFetchFailed, nil)
	}

	if werr != nil {
		a.Log.Errorf("WalletReport handler error: %s", werr.Error())
	}
}
