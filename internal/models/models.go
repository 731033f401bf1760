// Package models defines the source-side shapes exchanged with the photo host.
package models

import "time"

// Tree is the nested collection tree returned by the photo host.
type Tree struct {
	Tags []TagSource `json:"tags"`
}

// TagSource is one collection in the tree. It may hold child collections,
// member post summaries, or neither.
type TagSource struct {
	Title string        `json:"title"`
	Tags  []TagSource   `json:"tags,omitempty"`
	Posts []PostSummary `json:"posts,omitempty"`
}

// PostSummary is the minimal description of a post carried by the tree.
type PostSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// PostDetail is the per-post information loaded after the tree.
type PostDetail struct {
	Description  string    `json:"description"`
	CreatedOn    time.Time `json:"createdOn"`
	PhotoCount   int       `json:"photoCount"`
	ThumbnailURL string    `json:"thumbnailUrl"`
}

// PhotoTag maps a normalized photo tag to its display form.
type PhotoTag struct {
	CleanName string `json:"cleanName"`
	RawName   string `json:"rawName"`
}

// PostIDs returns every post id in the tree once, in depth-first order.
func (t *Tree) PostIDs() []string {
	seen := make(map[string]struct{})
	var out []string
	var walk func(tags []TagSource)
	walk = func(tags []TagSource) {
		for _, tag := range tags {
			for _, p := range tag.Posts {
				if _, ok := seen[p.ID]; ok {
					continue
				}
				seen[p.ID] = struct{}{}
				out = append(out, p.ID)
			}
			walk(tag.Tags)
		}
	}
	walk(t.Tags)
	return out
}

// Without returns a copy of the tree with the given post ids removed from
// every collection. Collections left empty are kept.
func (t *Tree) Without(ids map[string]struct{}) *Tree {
	var filter func(tags []TagSource) []TagSource
	filter = func(tags []TagSource) []TagSource {
		if tags == nil {
			return nil
		}
		out := make([]TagSource, 0, len(tags))
		for _, tag := range tags {
			next := TagSource{Title: tag.Title, Tags: filter(tag.Tags)}
			for _, p := range tag.Posts {
				if _, drop := ids[p.ID]; !drop {
					next.Posts = append(next.Posts, p)
				}
			}
			out = append(out, next)
		}
		return out
	}
	return &Tree{Tags: filter(t.Tags)}
}
