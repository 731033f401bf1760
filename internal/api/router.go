package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/travelogue/internal/postservice"
)

// NewRouter creates a chi router with all API routes mounted.
// Read routes are public; authEnabled and token guard the admin routes.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc *postservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	// Tags.
	r.Get("/tags", h.ListTags)
	r.Get("/tags/*", h.GetTag)

	// Posts. Series part slugs contain a slash.
	r.Get("/posts", h.ListPosts)
	r.Get("/posts/id/{id}", h.GetPostByID)
	r.Get("/posts/*", h.GetPost)
	r.Get("/series/*", h.GetSeries)

	r.Get("/photo-tags", h.PhotoTags)
	r.Get("/status", h.Status)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))
		r.Post("/admin/refresh", h.Refresh)
	})

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
