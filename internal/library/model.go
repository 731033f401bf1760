// Package library holds the in-memory post and tag graph served by the site.
package library

import (
	"strings"
	"time"

	"github.com/starford/travelogue/internal/models"
)

// Tag is a category in the library. Posts may be shared between tags.
type Tag struct {
	Title    string
	Slug     string
	Children []*Tag
	Posts    []*Post
}

// Post is one photo set. Exactly one Post exists per source id.
type Post struct {
	ID            string
	OriginalTitle string
	Title         string
	// SubTitle is empty when the post is not part of a series.
	SubTitle string
	Slug     string
	Tags     []string

	// Next is the chronologically newer neighbour, Previous the older one.
	Next     *Post
	Previous *Post

	Part          int
	TotalParts    int
	IsSeriesStart bool

	// Timebound is false for synthetic posts that never take part in
	// chronological linking or series correlation.
	Timebound bool

	InfoLoaded  bool
	Description string
	CreatedOn   time.Time
	PhotoCount  int
	Thumbnail   string
}

// IsPartial reports whether the post belongs to a series of two or more parts.
func (p *Post) IsPartial() bool {
	return p.TotalParts > 1
}

// HasTag reports whether the post is referenced by a tag with the given title.
func (p *Post) HasTag(title string) bool {
	for _, t := range p.Tags {
		if t == title {
			return true
		}
	}
	return false
}

// Merge copies hydrated detail onto the post.
func (p *Post) Merge(d *models.PostDetail) {
	p.Description = d.Description
	p.CreatedOn = d.CreatedOn
	p.PhotoCount = d.PhotoCount
	p.Thumbnail = d.ThumbnailURL
	p.InfoLoaded = true
}

// Library is the aggregate root. A published Library must be treated as
// read-only; a refresh replaces it wholesale.
type Library struct {
	// Tags holds root tags keyed by title.
	Tags map[string]*Tag
	// Posts holds every post once, in source (newest first) order.
	Posts          []*Post
	PostInfoLoaded bool

	tree     *models.Tree
	tagOrder []string
}

func newLibrary(tree *models.Tree) *Library {
	return &Library{
		Tags: make(map[string]*Tag),
		tree: tree,
	}
}

// Tree returns the source tree the library was built from.
func (l *Library) Tree() *models.Tree {
	return l.tree
}

// RootTags returns root tags in source order.
func (l *Library) RootTags() []*Tag {
	out := make([]*Tag, 0, len(l.tagOrder))
	for _, title := range l.tagOrder {
		out = append(out, l.Tags[title])
	}
	return out
}

// PostByID returns the post with the given source id.
func (l *Library) PostByID(id string) (*Post, bool) {
	for _, p := range l.Posts {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// PostBySlug returns the post with the given slug. A bare series slug
// resolves to the first part of that series.
func (l *Library) PostBySlug(slug string) (*Post, bool) {
	slug = strings.Trim(strings.ToLower(slug), "/")
	for _, p := range l.Posts {
		if p.Slug == slug {
			return p, true
		}
	}
	for _, p := range l.Posts {
		if p.IsSeriesStart && Slugify(p.Title) == slug {
			return p, true
		}
	}
	return nil, false
}

// TagBySlug searches the whole tag tree for a tag with the given slug.
// A "parent/child" slug is resolved along the path.
func (l *Library) TagBySlug(slug string) (*Tag, bool) {
	segments := strings.Split(strings.Trim(strings.ToLower(slug), "/"), "/")
	if len(segments) > 1 {
		tags := l.RootTags()
		var found *Tag
		for _, seg := range segments {
			found = nil
			for _, t := range tags {
				if t.Slug == seg {
					found = t
					break
				}
			}
			if found == nil {
				return nil, false
			}
			tags = found.Children
		}
		return found, true
	}
	var search func(tags []*Tag) *Tag
	search = func(tags []*Tag) *Tag {
		for _, t := range tags {
			if t.Slug == segments[0] {
				return t
			}
			if hit := search(t.Children); hit != nil {
				return hit
			}
		}
		return nil
	}
	t := search(l.RootTags())
	return t, t != nil
}

// PostsWithTag returns every post referenced by a tag with the given title.
func (l *Library) PostsWithTag(title string) []*Post {
	var out []*Post
	for _, p := range l.Posts {
		if p.HasTag(title) {
			out = append(out, p)
		}
	}
	return out
}

// SeriesOf returns all parts of the series the post belongs to, first
// part first. A post outside any series yields only itself.
func (l *Library) SeriesOf(p *Post) []*Post {
	if !p.IsPartial() {
		return []*Post{p}
	}
	first := p
	for first.Previous != nil && first.Part > 1 && first.Previous.Title == p.Title {
		first = first.Previous
	}
	out := make([]*Post, 0, p.TotalParts)
	for cur := first; cur != nil && len(out) < p.TotalParts; cur = cur.Next {
		out = append(out, cur)
	}
	return out
}

// Attach merges loaded detail into matching posts. It reports the ids of
// posts that had no detail.
func (l *Library) Attach(details map[string]*models.PostDetail) []string {
	var missing []string
	for _, p := range l.Posts {
		d, ok := details[p.ID]
		if !ok || d == nil {
			missing = append(missing, p.ID)
			continue
		}
		p.Merge(d)
	}
	return missing
}
