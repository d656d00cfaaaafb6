package vouchers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/attachments"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	coreshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// BlobReader returns stored attachment bytes.
type BlobReader interface {
	Read(ctx context.Context, ref string) ([]byte, error)
}

// Handler exposes payment and receipt vouchers over HTTP.
type Handler struct {
	service   *Service
	blobs     BlobReader
	logger    *slog.Logger
	validator *validator.Validate
}

// NewHandler constructs the voucher handler. blobs may be nil when
// attachments are disabled.
func NewHandler(logger *slog.Logger, service *Service, blobs BlobReader) *Handler {
	return &Handler{logger: logger, service: service, blobs: blobs, validator: validator.New()}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	from, err := httpx.QueryDate(r, "from")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryDate(r, "to")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	items, meta, err := h.service.List(r.Context(), ListFilter{
		Kind:    Kind(q.Get("kind")),
		Status:  Status(q.Get("status")),
		From:    from,
		To:      to,
		Page:    httpx.QueryInt(r, "page", 1),
		PerPage: httpx.QueryInt(r, "per_page", 0),
	})
	if err != nil {
		h.fail(w, "list vouchers", err)
		return
	}
	out := make([]voucherResponse, 0, len(items))
	for _, v := range items {
		out = append(out, toResponse(v))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out, "meta": meta})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	v, err := h.service.Create(r.Context(), req.input(coreshared.ActorFromContext(r.Context())))
	if err != nil {
		h.fail(w, "create voucher", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(v))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.voucherID(w, r)
	if !ok {
		return
	}
	v, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get voucher", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(v))
}

func (h *Handler) UpdateHeader(w http.ResponseWriter, r *http.Request) {
	id, ok := h.voucherID(w, r)
	if !ok {
		return
	}
	var req headerRequest
	if !h.decode(w, r, &req) {
		return
	}
	v, err := h.service.UpdateHeader(r.Context(), id, req.input())
	if err != nil {
		h.fail(w, "update voucher header", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(v))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.voucherID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id, coreshared.ActorFromContext(r.Context())); err != nil {
		h.fail(w, "delete voucher", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	id, ok := h.voucherID(w, r)
	if !ok {
		return
	}
	v, err := h.service.Post(r.Context(), id, coreshared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "post voucher", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(v))
}

func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.voucherID(w, r)
	if !ok {
		return
	}
	var req lineRequest
	if !h.decode(w, r, &req) {
		return
	}
	v, err := h.service.AddLine(r.Context(), id, req.input())
	if err != nil {
		h.fail(w, "add voucher line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(v))
}

func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.voucherID(w, r)
	if !ok {
		return
	}
	lineID, err := httpx.URLInt64(r, "lineID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req lineRequest
	if !h.decode(w, r, &req) {
		return
	}
	v, err := h.service.UpdateLine(r.Context(), id, lineID, req.input())
	if err != nil {
		h.fail(w, "update voucher line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(v))
}

func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.voucherID(w, r)
	if !ok {
		return
	}
	lineID, err := httpx.URLInt64(r, "lineID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.RemoveLine(r.Context(), id, lineID)
	if err != nil {
		h.fail(w, "remove voucher line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(v))
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := h.voucherID(w, r)
	if !ok {
		return
	}
	attachmentID, err := uuid.Parse(chi.URLParam(r, "attachmentID"))
	if err != nil || h.blobs == nil {
		httpx.RespondError(w, fmt.Errorf("%w: attachment", shared.ErrNotFound))
		return
	}
	v, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get voucher", err)
		return
	}
	for _, att := range v.Attachments {
		if att.ID != attachmentID {
			continue
		}
		data, err := h.blobs.Read(r.Context(), att.BlobRef)
		if err == nil {
			err = attachments.Verify(att, data)
		}
		if err != nil {
			h.fail(w, "read attachment", err)
			return
		}
		w.Header().Set("Content-Type", att.ContentType)
		w.Header().Set("Content-Length", strconv.FormatInt(att.ByteSize, 10))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.FileName))
		_, _ = w.Write(data)
		return
	}
	httpx.RespondError(w, fmt.Errorf("%w: attachment %s", shared.ErrNotFound, attachmentID))
}

func (h *Handler) voucherID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.BadRequest(w, err.Error())
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	switch shared.KindOf(err) {
	case shared.KindInternal, shared.KindTransient:
		h.logger.Error(msg, slog.Any("error", err))
	case shared.KindConflict:
		h.logger.Warn(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
