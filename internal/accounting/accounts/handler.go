package accounts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler serves chart of accounts lookups for voucher composition.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs the accounts handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.list)
	r.Get("/cost-centers", h.costCenters)
}

type accountResponse struct {
	ID         int64  `json:"id"`
	Code       string `json:"code"`
	NameAr     string `json:"name_ar"`
	NameEn     string `json:"name_en"`
	ParentID   *int64 `json:"parent_id"`
	IsPostable bool   `json:"is_postable"`
	NormalSide Side   `json:"normal_side"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	postable, _ := strconv.ParseBool(r.URL.Query().Get("postable"))
	found, err := h.service.Search(r.Context(), r.URL.Query().Get("q"), postable)
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(found))
	for _, a := range found {
		out = append(out, accountResponse{
			ID:         a.ID,
			Code:       a.Code,
			NameAr:     a.NameAr,
			NameEn:     a.NameEn,
			ParentID:   a.ParentID,
			IsPostable: a.IsPostable,
			NormalSide: a.NormalSide,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) costCenters(w http.ResponseWriter, r *http.Request) {
	centers, err := h.service.CostCenters(r.Context())
	if err != nil {
		h.logger.Error("list cost centers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(centers))
	for _, cc := range centers {
		out = append(out, map[string]any{"id": cc.ID, "code": cc.Code, "name": cc.Name})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out})
}
