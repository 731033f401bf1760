package library

import (
	"strconv"
	"strings"

	"github.com/starford/travelogue/internal/models"
)

// DefaultSeparator splits a source title into title and subtitle.
const DefaultSeparator = ":"

// Synthetic describes a non-timebound post appended to every library.
type Synthetic struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
}

// Options configures a Builder.
type Options struct {
	// Separator splits "Title: Subtitle" source titles. Empty means DefaultSeparator.
	Separator string
	// Synthetic posts are appended after all tree posts.
	Synthetic []Synthetic
}

// Builder turns a source collection tree into a Library. A Builder holds
// state only for the duration of one Build call.
type Builder struct {
	opts Options

	lib           *Library
	index         map[string]*Post
	lastTimebound *Post
}

// NewBuilder creates a builder with the given options.
func NewBuilder(opts Options) *Builder {
	if opts.Separator == "" {
		opts.Separator = DefaultSeparator
	}
	return &Builder{opts: opts}
}

// Build converts tree into a library with chronological links populated.
// Series correlation is not applied; see Build for the combined step.
func (b *Builder) Build(tree *models.Tree) *Library {
	if tree == nil {
		tree = &models.Tree{}
	}
	b.lib = newLibrary(tree)
	b.index = make(map[string]*Post)
	b.lastTimebound = nil
	defer func() {
		b.lib = nil
		b.index = nil
		b.lastTimebound = nil
	}()

	for _, src := range tree.Tags {
		tag, ok := b.lib.Tags[src.Title]
		if !ok {
			tag = &Tag{Title: src.Title, Slug: uniqueSlug(Slugify(src.Title), b.lib.RootTags())}
			b.lib.Tags[src.Title] = tag
			b.lib.tagOrder = append(b.lib.tagOrder, src.Title)
		}
		b.fill(tag, src)
	}

	for _, s := range b.opts.Synthetic {
		if _, dup := b.index[s.ID]; dup || s.ID == "" {
			continue
		}
		p := &Post{
			ID:            s.ID,
			OriginalTitle: s.Title,
			Title:         s.Title,
			Slug:          Slugify(s.Title),
		}
		b.index[s.ID] = p
		b.append(p)
	}

	return b.lib
}

// fill adds src's posts and child tags to tag.
func (b *Builder) fill(tag *Tag, src models.TagSource) {
	for _, summary := range src.Posts {
		p, ok := b.index[summary.ID]
		if !ok {
			p = b.newPost(summary)
			b.index[summary.ID] = p
			b.append(p)
		}
		if !containsPost(tag.Posts, p) {
			tag.Posts = append(tag.Posts, p)
		}
		if !p.HasTag(tag.Title) {
			p.Tags = append(p.Tags, tag.Title)
		}
	}

	for _, childSrc := range src.Tags {
		var child *Tag
		for _, c := range tag.Children {
			if c.Title == childSrc.Title {
				child = c
				break
			}
		}
		if child == nil {
			child = &Tag{Title: childSrc.Title, Slug: uniqueSlug(Slugify(childSrc.Title), tag.Children)}
			tag.Children = append(tag.Children, child)
		}
		b.fill(child, childSrc)
	}
}

func (b *Builder) newPost(summary models.PostSummary) *Post {
	p := &Post{
		ID:            summary.ID,
		OriginalTitle: summary.Title,
		Title:         summary.Title,
		Timebound:     true,
	}
	if i := strings.Index(summary.Title, b.opts.Separator); i >= 0 {
		title := strings.TrimSpace(summary.Title[:i])
		sub := strings.TrimSpace(summary.Title[i+len(b.opts.Separator):])
		if title != "" && sub != "" {
			p.Title = title
			p.SubTitle = sub
		}
	}
	p.Slug = postSlug(p)
	return p
}

// append adds p to the flat post list, linking it behind the previously
// appended timebound post. Source order is newest first, so each new post
// is older than the last one.
func (b *Builder) append(p *Post) {
	if p.Timebound {
		if b.lastTimebound != nil {
			p.Next = b.lastTimebound
			b.lastTimebound.Previous = p
		}
		b.lastTimebound = p
	}
	b.lib.Posts = append(b.lib.Posts, p)
}

// Build runs a Builder and then correlates series.
func Build(tree *models.Tree, opts Options) *Library {
	lib := NewBuilder(opts).Build(tree)
	Correlate(lib.Posts)
	return lib
}

func postSlug(p *Post) string {
	if p.SubTitle == "" {
		return Slugify(p.Title)
	}
	return Slugify(p.Title) + "/" + Slugify(p.SubTitle)
}

func containsPost(posts []*Post, p *Post) bool {
	for _, existing := range posts {
		if existing == p {
			return true
		}
	}
	return false
}

// uniqueSlug suffixes slug with a counter until no sibling uses it.
func uniqueSlug(slug string, siblings []*Tag) string {
	taken := func(s string) bool {
		for _, t := range siblings {
			if t.Slug == s {
				return true
			}
		}
		return false
	}
	if !taken(slug) {
		return slug
	}
	for n := 2; ; n++ {
		candidate := slug + "-" + strconv.Itoa(n)
		if !taken(candidate) {
			return candidate
		}
	}
}
