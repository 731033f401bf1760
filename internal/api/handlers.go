package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/travelogue/internal/apperr"
	"github.com/starford/travelogue/internal/postservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *postservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *postservice.Service) *Handler {
	return &Handler{svc: svc}
}

// slugParam extracts the wildcard slug from the URL. Encoded slashes
// (owyhee%2Fday-1) are accepted.
func slugParam(r *http.Request) string {
	raw := strings.Trim(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// writeError maps service errors onto HTTP statuses.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrNotReady):
		w.Header().Set("Retry-After", "5")
		writeJSON(w, http.StatusServiceUnavailable, errorBody("library is loading"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("library load in progress"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListTags handles GET /api/tags.
//
//	@Summary		List the tag tree
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagListResponse
//	@Failure		503	{object}	errResponse
//	@Router			/tags [get]
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.ListTags(r.Context())
	if err != nil {
		writeError(w, "list tags", err)
		return
	}
	writeCachedJSON(w, r, TagListResponse{Tags: tags})
}

// GetTag handles GET /api/tags/*.
//
//	@Summary		Get a tag by slug or parent/child path
//	@Tags			tags
//	@Produce		json
//	@Param			slug	path		string	true	"Tag slug"
//	@Success		200		{object}	TagDetail
//	@Failure		404		{object}	errResponse
//	@Router			/tags/{slug} [get]
func (h *Handler) GetTag(w http.ResponseWriter, r *http.Request) {
	slug := slugParam(r)
	if slug == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("slug is required"))
		return
	}
	tag, err := h.svc.GetTag(r.Context(), slug)
	if err != nil {
		writeError(w, "get tag", err)
		return
	}
	writeCachedJSON(w, r, tag)
}

// ListPosts handles GET /api/posts.
//
//	@Summary		List posts newest first
//	@Tags			posts
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag title"
//	@Success		200		{object}	PostListResponse
//	@Router			/posts [get]
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListPosts(r.Context(), q.Get("tag"), limit, offset)
	if err != nil {
		writeError(w, "list posts", err)
		return
	}
	writeCachedJSON(w, r, PostListResponse{Posts: items, Total: total})
}

// GetPost handles GET /api/posts/*.
//
//	@Summary		Get a post by slug
//	@Tags			posts
//	@Produce		json
//	@Param			slug	path		string	true	"Post slug, e.g. owyhee/day-1"
//	@Success		200		{object}	PostDetail
//	@Failure		404		{object}	errResponse
//	@Router			/posts/{slug} [get]
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	slug := slugParam(r)
	if slug == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("slug is required"))
		return
	}
	post, err := h.svc.GetPost(r.Context(), slug)
	if err != nil {
		writeError(w, "get post", err)
		return
	}
	writeCachedJSON(w, r, post)
}

// GetPostByID handles GET /api/posts/id/{id}.
func (h *Handler) GetPostByID(w http.ResponseWriter, r *http.Request) {
	post, err := h.svc.GetPostByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get post by id", err)
		return
	}
	writeCachedJSON(w, r, post)
}

// GetSeries handles GET /api/series/*.
//
//	@Summary		List every part of the series a post belongs to
//	@Tags			posts
//	@Produce		json
//	@Param			slug	path		string	true	"Slug of any part, or the bare series slug"
//	@Success		200		{object}	SeriesResponse
//	@Failure		404		{object}	errResponse
//	@Router			/series/{slug} [get]
func (h *Handler) GetSeries(w http.ResponseWriter, r *http.Request) {
	parts, err := h.svc.FindSeries(r.Context(), slugParam(r))
	if err != nil {
		writeError(w, "get series", err)
		return
	}
	writeCachedJSON(w, r, SeriesResponse{Parts: parts})
}

// PhotoTags handles GET /api/photo-tags.
func (h *Handler) PhotoTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.PhotoTags(r.Context())
	if err != nil {
		writeError(w, "photo tags", err)
		return
	}
	writeCachedJSON(w, r, PhotoTagsResponse{PhotoTags: tags})
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status(r.Context()))
}

// Refresh handles POST /api/admin/refresh.
//
//	@Summary		Discard the cached library and reload it from the photo host
//	@Tags			admin
//	@Produce		json
//	@Success		202	{object}	RefreshResponse
//	@Failure		409	{object}	errResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/admin/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Refresh(r.Context()); err != nil {
		writeError(w, "refresh", err)
		return
	}
	writeJSON(w, http.StatusAccepted, RefreshResponse{Status: "accepted"})
}
