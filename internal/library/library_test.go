package library

import (
	"testing"

	"github.com/starford/travelogue/internal/models"
)

var testOpts = Options{
	Separator: ":",
	Synthetic: []Synthetic{
		{ID: "feature", Title: "Featured"},
		{ID: "ruminations", Title: "Ruminations"},
	},
}

// sampleTree lists posts newest first, the way the photo host does.
func sampleTree() *models.Tree {
	return &models.Tree{Tags: []models.TagSource{
		{
			Title: "When",
			Tags: []models.TagSource{
				{Title: "2016", Posts: []models.PostSummary{
					{ID: "5", Title: "Owyhee: Day 3"},
					{ID: "4", Title: "Owyhee: Day 2"},
					{ID: "3", Title: "Owyhee: Day 1"},
				}},
				{Title: "2015", Posts: []models.PostSummary{
					{ID: "2", Title: "Boise River: Spring"},
					{ID: "1", Title: "Silver City"},
				}},
			},
		},
		{
			Title: "Where",
			Tags: []models.TagSource{
				{Title: "Owyhee County", Posts: []models.PostSummary{
					{ID: "4", Title: "Owyhee: Day 2"},
					{ID: "1", Title: "Silver City"},
				}},
				{Title: "Nowhere Yet"},
			},
		},
	}}
}

func TestBuild_DeduplicatesSharedPosts(t *testing.T) {
	lib := Build(sampleTree(), testOpts)

	seen := make(map[string]int)
	for _, p := range lib.Posts {
		seen[p.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("post %s appears %d times", id, n)
		}
	}
	if len(lib.Posts) != 7 {
		t.Fatalf("len(posts) = %d, want 7 (5 tree + 2 synthetic)", len(lib.Posts))
	}

	when, _ := lib.TagBySlug("when/2016")
	where, _ := lib.TagBySlug("owyhee-county")
	if when == nil || where == nil {
		t.Fatal("expected tags 2016 and owyhee-county")
	}
	if when.Posts[1] != where.Posts[0] {
		t.Error("post 4 should be the same object under both tags")
	}
	p4, _ := lib.PostByID("4")
	if len(p4.Tags) != 2 || p4.Tags[0] != "2016" || p4.Tags[1] != "Owyhee County" {
		t.Errorf("post 4 tags = %v", p4.Tags)
	}
}

func TestBuild_RepeatedTaggingIsIdempotent(t *testing.T) {
	tree := &models.Tree{Tags: []models.TagSource{
		{Title: "Rivers", Posts: []models.PostSummary{{ID: "1", Title: "Snake"}, {ID: "1", Title: "Snake"}}},
	}}
	lib := Build(tree, Options{})
	tag := lib.Tags["Rivers"]
	if len(tag.Posts) != 1 {
		t.Errorf("tag posts = %d, want 1", len(tag.Posts))
	}
	if got := lib.Posts[0].Tags; len(got) != 1 {
		t.Errorf("post tags = %v, want one entry", got)
	}
}

func TestBuild_ChronologicalLinks(t *testing.T) {
	lib := Build(sampleTree(), testOpts)

	var timebound []*Post
	for _, p := range lib.Posts {
		if p.Timebound {
			timebound = append(timebound, p)
		}
	}
	if len(timebound) != 5 {
		t.Fatalf("timebound = %d, want 5", len(timebound))
	}
	if timebound[0].Next != nil {
		t.Error("newest post should have no next")
	}
	if timebound[len(timebound)-1].Previous != nil {
		t.Error("oldest post should have no previous")
	}
	for _, p := range lib.Posts {
		if p.Next != nil && p.Next.Previous != p {
			t.Errorf("post %s: next.previous mismatch", p.ID)
		}
		if p.Previous != nil && p.Previous.Next != p {
			t.Errorf("post %s: previous.next mismatch", p.ID)
		}
	}

	// Walking previous from the newest visits every timebound post once.
	visited := 0
	for p := timebound[0]; p != nil; p = p.Previous {
		visited++
		if visited > len(timebound) {
			t.Fatal("cycle in chronological list")
		}
	}
	if visited != len(timebound) {
		t.Errorf("visited %d, want %d", visited, len(timebound))
	}
}

func TestBuild_SyntheticPosts(t *testing.T) {
	lib := Build(sampleTree(), testOpts)
	feature, ok := lib.PostByID("feature")
	if !ok {
		t.Fatal("featured post missing")
	}
	if feature.Timebound || feature.Next != nil || feature.Previous != nil {
		t.Error("synthetic post must not be linked")
	}
	if len(feature.Tags) != 0 {
		t.Errorf("synthetic post tags = %v", feature.Tags)
	}
	if feature.Slug != "featured" {
		t.Errorf("slug = %q", feature.Slug)
	}
	if last := lib.Posts[len(lib.Posts)-1]; last.ID != "ruminations" {
		t.Errorf("last post = %s, want ruminations", last.ID)
	}
}

func TestBuild_EmptyTagKept(t *testing.T) {
	lib := Build(sampleTree(), testOpts)
	tag, ok := lib.TagBySlug("nowhere-yet")
	if !ok {
		t.Fatal("empty tag should be kept")
	}
	if len(tag.Posts) != 0 || len(tag.Children) != 0 {
		t.Errorf("unexpected content in empty tag: %+v", tag)
	}
	roots := lib.RootTags()
	if len(roots) != 2 || roots[0].Title != "When" || roots[1].Title != "Where" {
		t.Errorf("root order = %v", roots)
	}
}

func TestBuild_SiblingSlugsUnique(t *testing.T) {
	tree := &models.Tree{Tags: []models.TagSource{
		{Title: "Rock & Roll"},
		{Title: "Rock and Roll"},
	}}
	lib := Build(tree, Options{})
	roots := lib.RootTags()
	if roots[0].Slug != "rock-and-roll" || roots[1].Slug != "rock-and-roll-2" {
		t.Errorf("slugs = %q, %q", roots[0].Slug, roots[1].Slug)
	}
}

func TestCorrelate_ThreePartSeries(t *testing.T) {
	tree := &models.Tree{Tags: []models.TagSource{{Title: "Trips", Posts: []models.PostSummary{
		{ID: "d3", Title: "Trip: Day 3"},
		{ID: "d2", Title: "Trip: Day 2"},
		{ID: "d1", Title: "Trip: Day 1"},
	}}}}
	lib := Build(tree, Options{})
	d1, _ := lib.PostByID("d1")
	d2, _ := lib.PostByID("d2")
	d3, _ := lib.PostByID("d3")

	if d1.Next != d2 || d2.Next != d3 {
		t.Fatal("expected Day 1 -> Day 2 -> Day 3 chronological order")
	}
	if !d1.IsSeriesStart || d1.Part != 1 {
		t.Errorf("day 1: start=%v part=%d", d1.IsSeriesStart, d1.Part)
	}
	if d2.Part != 2 || d2.IsSeriesStart {
		t.Errorf("day 2: part=%d start=%v", d2.Part, d2.IsSeriesStart)
	}
	if d3.TotalParts != 3 {
		t.Errorf("day 3 total = %d", d3.TotalParts)
	}
	if d1.Slug != "trip/day-1" || d3.Slug != "trip/day-3" {
		t.Errorf("slugs = %q, %q", d1.Slug, d3.Slug)
	}
	series := lib.SeriesOf(d2)
	if len(series) != 3 || series[0] != d1 || series[2] != d3 {
		t.Errorf("SeriesOf = %v", series)
	}
	if p, ok := lib.PostBySlug("trip"); !ok || p != d1 {
		t.Error("bare series slug should resolve to part 1")
	}
}

func TestCorrelate_LonePostUngrouped(t *testing.T) {
	tree := &models.Tree{Tags: []models.TagSource{{Title: "Trips", Posts: []models.PostSummary{
		{ID: "b", Title: "Later Ride"},
		{ID: "a", Title: "Trip: Solo"},
		{ID: "z", Title: "Earlier Ride"},
	}}}}
	lib := Build(tree, Options{})
	solo, _ := lib.PostByID("a")
	if solo.SubTitle != "" {
		t.Errorf("subtitle = %q, want empty", solo.SubTitle)
	}
	if solo.Title != "Trip: Solo" {
		t.Errorf("title = %q", solo.Title)
	}
	if solo.Slug != "trip-solo" {
		t.Errorf("slug = %q, want trip-solo", solo.Slug)
	}
	if solo.IsSeriesStart || solo.TotalParts > 1 {
		t.Error("lone post must not be a series")
	}
}

func TestCorrelate_GapBreaksRun(t *testing.T) {
	tree := &models.Tree{Tags: []models.TagSource{{Title: "Trips", Posts: []models.PostSummary{
		{ID: "4", Title: "Loop: Part 2"},
		{ID: "3", Title: "Loop: Part 1"},
		{ID: "2", Title: "Intermission"},
		{ID: "1", Title: "Loop: Part 0"},
	}}}}
	lib := Build(tree, Options{})
	p1, _ := lib.PostByID("1")
	p3, _ := lib.PostByID("3")
	if p3.TotalParts != 2 || !p3.IsSeriesStart {
		t.Errorf("post 3: total=%d start=%v", p3.TotalParts, p3.IsSeriesStart)
	}
	if p1.TotalParts != 0 || p1.SubTitle != "" || p1.Slug != "loop-part-0" {
		t.Errorf("post 1 should be ungrouped: %+v", p1)
	}
}

func TestCorrelate_Idempotent(t *testing.T) {
	lib := Build(sampleTree(), testOpts)
	type snapshot struct {
		title, sub, slug string
		part, total      int
		start            bool
	}
	take := func() map[string]snapshot {
		out := make(map[string]snapshot)
		for _, p := range lib.Posts {
			out[p.ID] = snapshot{p.Title, p.SubTitle, p.Slug, p.Part, p.TotalParts, p.IsSeriesStart}
		}
		return out
	}
	before := take()
	Correlate(lib.Posts)
	after := take()
	for id, b := range before {
		if after[id] != b {
			t.Errorf("post %s changed on second pass: %+v -> %+v", id, b, after[id])
		}
	}
}

func TestSeriesInvariants(t *testing.T) {
	lib := Build(sampleTree(), testOpts)
	for _, p := range lib.Posts {
		if p.IsSeriesStart && (p.Part != 1 || p.TotalParts <= 1) {
			t.Errorf("post %s: series start with part=%d total=%d", p.ID, p.Part, p.TotalParts)
		}
		if p.TotalParts <= 1 && p.SubTitle != "" {
			t.Errorf("post %s: subtitle %q outside a series", p.ID, p.SubTitle)
		}
		if p.TotalParts <= 1 && p.Slug != Slugify(p.Title) {
			t.Errorf("post %s: slug %q is not the title slug", p.ID, p.Slug)
		}
	}
	river, _ := lib.PostByID("2")
	if river.Slug != "boise-river-spring" {
		t.Errorf("ungrouped slug = %q", river.Slug)
	}
}

func TestAttach(t *testing.T) {
	lib := Build(sampleTree(), testOpts)
	missing := lib.Attach(map[string]*models.PostDetail{
		"1": {Description: "ghost town", PhotoCount: 12},
	})
	if len(missing) != len(lib.Posts)-1 {
		t.Errorf("missing = %d, want %d", len(missing), len(lib.Posts)-1)
	}
	p, _ := lib.PostByID("1")
	if !p.InfoLoaded || p.PhotoCount != 12 || p.Description != "ghost town" {
		t.Errorf("merge failed: %+v", p)
	}
}
