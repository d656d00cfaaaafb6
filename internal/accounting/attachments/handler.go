package attachments

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	coreshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler exposes composition sessions so uploads can span several requests
// before the voucher is created.
type Handler struct {
	store  *Store
	logger *slog.Logger
}

// NewHandler constructs the composition handler.
func NewHandler(logger *slog.Logger, store *Store) *Handler {
	return &Handler{logger: logger, store: store}
}

// MountRoutes registers composition routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.begin)
	r.Get("/{id}", h.show)
	r.Delete("/{id}", h.abandon)
	r.Post("/{id}/attachments", h.attach)
	r.Delete("/{id}/attachments/{attachmentID}", h.detach)
}

// Response is the JSON form of an attachment.
type Response struct {
	ID          uuid.UUID `json:"id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	ByteSize    int64     `json:"byte_size"`
	Checksum    string    `json:"checksum"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToResponse renders an attachment for JSON payloads.
func ToResponse(a Attachment) Response {
	return Response{
		ID:          a.ID,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		ByteSize:    a.ByteSize,
		Checksum:    a.Checksum,
		CreatedAt:   a.CreatedAt,
	}
}

func (h *Handler) begin(w http.ResponseWriter, r *http.Request) {
	sess := h.store.Begin(r.Context(), coreshared.ActorFromContext(r.Context()))
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": sess.ID(), "attachments": []Response{}})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	held := sess.Held()
	out := make([]Response, 0, len(held))
	for _, a := range held {
		out = append(out, ToResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": sess.ID(), "attachments": out})
}

func (h *Handler) attach(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.store.MaxBytes()+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.BadRequest(w, "multipart field \"file\" required")
		return
	}
	defer file.Close()
	att, err := sess.Attach(r.Context(), File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     file,
	})
	if err != nil {
		h.fail(w, "attach file", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ToResponse(att))
}

func (h *Handler) detach(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	attachmentID, err := uuid.Parse(chi.URLParam(r, "attachmentID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid attachment id", shared.ErrValidation))
		return
	}
	if err := sess.Detach(r.Context(), attachmentID); err != nil {
		h.fail(w, "detach file", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) abandon(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := sess.Abandon(r.Context()); err != nil {
		h.fail(w, "abandon composition", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// session resolves the route session and hides sessions of other actors.
func (h *Handler) session(r *http.Request) (*Session, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid composition id", shared.ErrValidation)
	}
	sess, err := h.store.Lookup(id)
	if err != nil {
		return nil, err
	}
	if sess.Owner() != coreshared.ActorFromContext(r.Context()) {
		return nil, fmt.Errorf("%w: composition session %s", shared.ErrNotFound, id)
	}
	return sess, nil
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if shared.KindOf(err) == shared.KindInternal {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
