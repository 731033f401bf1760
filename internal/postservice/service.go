// Package postservice answers read queries against the published library
// and forwards refresh requests. It is shared by the HTTP and MCP surfaces.
package postservice

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/starford/travelogue/internal/apperr"
	"github.com/starford/travelogue/internal/library"
	"github.com/starford/travelogue/internal/librarysync"
)

// Syncer is the part of librarysync.Sync the service reads from.
type Syncer interface {
	Library() *library.Library
	PhotoTags() map[string]string
	Status() librarysync.Status
	Refresh() bool
}

// TagSummary describes a tag and its subtree.
type TagSummary struct {
	Title     string       `json:"title"`
	Slug      string       `json:"slug"`
	Path      string       `json:"path"`
	PostCount int          `json:"postCount"`
	Children  []TagSummary `json:"children"`
}

// PostRef is a link to another post.
type PostRef struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	SubTitle string `json:"subTitle,omitempty"`
}

// PostListItem is a post as shown in listings.
type PostListItem struct {
	ID         string     `json:"id"`
	Slug       string     `json:"slug"`
	Title      string     `json:"title"`
	SubTitle   string     `json:"subTitle,omitempty"`
	Part       int        `json:"part,omitempty"`
	TotalParts int        `json:"totalParts,omitempty"`
	PhotoCount int        `json:"photoCount"`
	Thumbnail  string     `json:"thumbnail,omitempty"`
	CreatedOn  *time.Time `json:"createdOn,omitempty"`
}

// PostDetail is the full representation of a post.
type PostDetail struct {
	PostListItem
	Description   string    `json:"description"`
	Tags          []string  `json:"tags"`
	IsSeriesStart bool      `json:"isSeriesStart"`
	InfoLoaded    bool      `json:"infoLoaded"`
	Next          *PostRef  `json:"next,omitempty"`
	Previous      *PostRef  `json:"previous,omitempty"`
	Series        []PostRef `json:"series,omitempty"`
}

// TagDetail is a tag with its children and posts. The summary fields are
// spelled out rather than embedded: goccy/go-json cannot compile an
// embedded recursive struct.
type TagDetail struct {
	Title     string         `json:"title"`
	Slug      string         `json:"slug"`
	Path      string         `json:"path"`
	PostCount int            `json:"postCount"`
	Children  []TagSummary   `json:"children"`
	Posts     []PostListItem `json:"posts"`
}

// Service reads from the library published by a Syncer.
type Service struct {
	sync Syncer
}

// NewService creates a new post service.
func NewService(sync Syncer) *Service {
	return &Service{sync: sync}
}

func (s *Service) library() (*library.Library, error) {
	lib := s.sync.Library()
	if lib == nil {
		return nil, apperr.ErrNotReady
	}
	return lib, nil
}

// ListTags returns the tag tree, root tags in source order.
func (s *Service) ListTags(_ context.Context) ([]TagSummary, error) {
	lib, err := s.library()
	if err != nil {
		return nil, err
	}
	roots := lib.RootTags()
	out := make([]TagSummary, 0, len(roots))
	for _, t := range roots {
		out = append(out, summarize(t, ""))
	}
	return out, nil
}

func summarize(t *library.Tag, parent string) TagSummary {
	path := t.Slug
	if parent != "" {
		path = parent + "/" + t.Slug
	}
	sum := TagSummary{
		Title:     t.Title,
		Slug:      t.Slug,
		Path:      path,
		PostCount: len(t.Posts),
		Children:  make([]TagSummary, 0, len(t.Children)),
	}
	for _, c := range t.Children {
		sum.Children = append(sum.Children, summarize(c, path))
	}
	return sum
}

// GetTag resolves a tag by slug or "parent/child" path.
func (s *Service) GetTag(_ context.Context, slug string) (*TagDetail, error) {
	lib, err := s.library()
	if err != nil {
		return nil, err
	}
	t, ok := lib.TagBySlug(slug)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	parent := ""
	if path, ok := tagPath(lib.RootTags(), t, ""); ok {
		if i := strings.LastIndexByte(path, '/'); i >= 0 {
			parent = path[:i]
		}
	}
	sum := summarize(t, parent)
	detail := &TagDetail{
		Title:     sum.Title,
		Slug:      sum.Slug,
		Path:      sum.Path,
		PostCount: sum.PostCount,
		Children:  sum.Children,
		Posts:     make([]PostListItem, 0, len(t.Posts)),
	}
	for _, p := range t.Posts {
		detail.Posts = append(detail.Posts, listItem(p))
	}
	return detail, nil
}

func tagPath(tags []*library.Tag, want *library.Tag, parent string) (string, bool) {
	for _, t := range tags {
		path := t.Slug
		if parent != "" {
			path = parent + "/" + t.Slug
		}
		if t == want {
			return path, true
		}
		if p, ok := tagPath(t.Children, want, path); ok {
			return p, true
		}
	}
	return "", false
}

// ListPosts returns posts newest first, optionally only those carrying the
// tag with the given title. limit <= 0 selects 50.
func (s *Service) ListPosts(_ context.Context, tag string, limit, offset int) ([]PostListItem, int, error) {
	lib, err := s.library()
	if err != nil {
		return nil, 0, err
	}
	posts := lib.Posts
	if tag != "" {
		posts = lib.PostsWithTag(tag)
	}
	total := len(posts)
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := min(offset+limit, total)

	items := make([]PostListItem, 0, end-offset)
	for _, p := range posts[offset:end] {
		items = append(items, listItem(p))
	}
	return items, total, nil
}

// GetPost resolves a post by slug. A series slug yields its first part.
func (s *Service) GetPost(_ context.Context, slug string) (*PostDetail, error) {
	lib, err := s.library()
	if err != nil {
		return nil, err
	}
	p, ok := lib.PostBySlug(slug)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return detail(lib, p), nil
}

// GetPostByID resolves a post by source id.
func (s *Service) GetPostByID(_ context.Context, id string) (*PostDetail, error) {
	lib, err := s.library()
	if err != nil {
		return nil, err
	}
	p, ok := lib.PostByID(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return detail(lib, p), nil
}

// FindSeries returns every part of the series containing the post with the
// given slug, first part first. Posts outside a series yield ErrNotFound.
func (s *Service) FindSeries(_ context.Context, slug string) ([]PostListItem, error) {
	lib, err := s.library()
	if err != nil {
		return nil, err
	}
	p, ok := lib.PostBySlug(slug)
	if !ok || !p.IsPartial() {
		return nil, apperr.ErrNotFound
	}
	parts := lib.SeriesOf(p)
	out := make([]PostListItem, 0, len(parts))
	for _, part := range parts {
		out = append(out, listItem(part))
	}
	return out, nil
}

// PhotoTag is one entry of the photo tag lookup.
type PhotoTag struct {
	CleanName string `json:"cleanName"`
	RawName   string `json:"rawName"`
}

// PhotoTags returns the photo tag lookup sorted by clean name.
func (s *Service) PhotoTags(_ context.Context) ([]PhotoTag, error) {
	tags := s.sync.PhotoTags()
	if tags == nil {
		return nil, apperr.ErrNotReady
	}
	out := make([]PhotoTag, 0, len(tags))
	for clean, raw := range tags {
		out = append(out, PhotoTag{CleanName: clean, RawName: raw})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CleanName < out[j].CleanName })
	return out, nil
}

// Status reports the sync pipeline state.
func (s *Service) Status(_ context.Context) librarysync.Status {
	return s.sync.Status()
}

// Refresh asks for a full reload. It returns ErrConflict when a load is in
// progress.
func (s *Service) Refresh(_ context.Context) error {
	if s.sync.Library() == nil {
		return apperr.ErrNotReady
	}
	if !s.sync.Refresh() {
		return apperr.ErrConflict
	}
	return nil
}

func listItem(p *library.Post) PostListItem {
	item := PostListItem{
		ID:         p.ID,
		Slug:       p.Slug,
		Title:      p.Title,
		SubTitle:   p.SubTitle,
		Part:       p.Part,
		TotalParts: p.TotalParts,
		PhotoCount: p.PhotoCount,
		Thumbnail:  p.Thumbnail,
	}
	if !p.CreatedOn.IsZero() {
		t := p.CreatedOn
		item.CreatedOn = &t
	}
	return item
}

func ref(p *library.Post) *PostRef {
	if p == nil {
		return nil
	}
	return &PostRef{ID: p.ID, Slug: p.Slug, Title: p.Title, SubTitle: p.SubTitle}
}

func detail(lib *library.Library, p *library.Post) *PostDetail {
	d := &PostDetail{
		PostListItem:  listItem(p),
		Description:   p.Description,
		Tags:          append([]string{}, p.Tags...),
		IsSeriesStart: p.IsSeriesStart,
		InfoLoaded:    p.InfoLoaded,
		Next:          ref(p.Next),
		Previous:      ref(p.Previous),
	}
	if p.IsPartial() {
		for _, part := range lib.SeriesOf(p) {
			d.Series = append(d.Series, *ref(part))
		}
	}
	return d
}
