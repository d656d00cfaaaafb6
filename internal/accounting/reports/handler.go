package reports

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler serves the trial balance and account statement projections.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs the reports handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/account-statement", h.accountStatement)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		h.fail(w, "trial balance", err)
		return
	}
	includeZero, _ := strconv.ParseBool(r.URL.Query().Get("include_zero"))
	tb, err := h.service.TrialBalance(r.Context(), TrialBalanceRequest{Range: rng, IncludeZeroBalance: includeZero})
	if err != nil {
		h.fail(w, "trial balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) accountStatement(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		h.fail(w, "account statement", err)
		return
	}
	accountID, err := strconv.ParseInt(r.URL.Query().Get("account_id"), 10, 64)
	if err != nil {
		accountID = 0
	}
	st, err := h.service.Statement(r.Context(), StatementRequest{
		Range:     rng,
		AccountID: accountID,
		Page:      httpx.QueryInt(r, "page", 1),
		PerPage:   httpx.QueryInt(r, "per_page", 0),
	})
	if err != nil {
		h.fail(w, "account statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func parseRange(r *http.Request) (Range, error) {
	start, err := httpx.QueryDate(r, "start_date")
	if err != nil {
		return Range{}, err
	}
	end, err := httpx.QueryDate(r, "end_date")
	if err != nil {
		return Range{}, err
	}
	return Range{Start: start, End: end}, nil
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if shared.KindOf(err) == shared.KindInternal {
		h.logger.Error(msg, slog.Any("error", err))
	} else {
		h.logger.Debug(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
