package vouchers

import "github.com/go-chi/chi/v5"

// MountRoutes registers voucher routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Show)
		r.Put("/", h.UpdateHeader)
		r.Delete("/", h.Delete)
		r.Post("/post", h.Post)
		r.Post("/lines", h.AddLine)
		r.Put("/lines/{lineID}", h.UpdateLine)
		r.Delete("/lines/{lineID}", h.RemoveLine)
		r.Get("/attachments/{attachmentID}", h.Download)
	})
}
