// Package testutil provides shared test helpers: a scripted photo-host
// source, sample collection trees and fixture directories.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/starford/travelogue/internal/models"
	"github.com/starford/travelogue/internal/source"
)

// SampleTree returns a small library: a three-day trip series, two
// unrelated posts, a post shared by two tags and an empty tag.
func SampleTree() *models.Tree {
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

// SampleDetails returns a detail document for every post in SampleTree.
func SampleDetails() map[string]*models.PostDetail {
	base := time.Date(2015, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make(map[string]*models.PostDetail)
	for i, id := range []string{"1", "2", "3", "4", "5"} {
		out[id] = &models.PostDetail{
			Description:  "post " + id,
			CreatedOn:    base.AddDate(0, i*3, 0),
			PhotoCount:   10 + i,
			ThumbnailURL: fmt.Sprintf("https://example.test/%s_q.jpg", id),
		}
	}
	return out
}

// SamplePhotoTags returns a short photo tag list.
func SamplePhotoTags() []models.PhotoTag {
	return []models.PhotoTag{
		{CleanName: "boiseriver", RawName: "Boise River"},
		{CleanName: "sagebrush", RawName: "Sagebrush"},
	}
}

// ErrUnavailable is the cause used for scripted transient failures.
var ErrUnavailable = errors.New("service unavailable")

// FakeSource is a scripted source.Source. Zero-value fields behave as an
// empty photo host; configure it before handing it to the code under test.
type FakeSource struct {
	mu sync.Mutex

	Tree    *models.Tree
	Details map[string]*models.PostDetail
	TagList []models.PhotoTag

	// TreeFailures makes the next N CollectionTree calls fail transiently.
	TreeFailures int
	// DetailFailures makes the next N PostDetail calls for an id fail
	// transiently.
	DetailFailures map[string]int
	// Gone lists post ids reported as permanently missing.
	Gone map[string]bool
	// PhotoTagFailures makes the next N PhotoTags calls fail transiently.
	PhotoTagFailures int
	// PhotoTagsGone makes every PhotoTags call fail permanently.
	PhotoTagsGone bool
	// DetailGate, when set, blocks every PostDetail call until a value is
	// received from it or ctx ends.
	DetailGate chan struct{}

	calls map[string]int
	order []string
}

// FeatureID is the synthetic post id the sync tests configure.
const FeatureID = "feature"

// NewFakeSource returns a FakeSource serving the sample library plus a
// detail for the FeatureID synthetic post.
func NewFakeSource() *FakeSource {
	details := SampleDetails()
	details[FeatureID] = &models.PostDetail{
		Description: "Featured posts",
		CreatedOn:   time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	return &FakeSource{
		Tree:    SampleTree(),
		Details: details,
		TagList: SamplePhotoTags(),
	}
}

func (f *FakeSource) record(op, id string) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
	if id != "" {
		op += ":" + id
		f.calls[op]++
	}
	f.order = append(f.order, op)
}

// Calls returns how often op was requested. Post detail calls are counted
// under "post_detail" and "post_detail:<id>".
func (f *FakeSource) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls returns the number of requests of any kind.
func (f *FakeSource) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

// DetailOrder returns the post ids requested, in request order.
func (f *FakeSource) DetailOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, op := range f.order {
		if id, ok := strings.CutPrefix(op, source.OpPostDetail+":"); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// SetTree replaces the served tree.
func (f *FakeSource) SetTree(tree *models.Tree) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tree = tree
}

// SetPhotoTagFailures makes the next n PhotoTags calls fail transiently.
func (f *FakeSource) SetPhotoTagFailures(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PhotoTagFailures = n
}

func (f *FakeSource) CollectionTree(ctx context.Context) (*models.Tree, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(source.OpCollectionTree, "")
	if f.TreeFailures > 0 {
		f.TreeFailures--
		return nil, &source.Error{Kind: source.Transient, Op: source.OpCollectionTree, Err: ErrUnavailable}
	}
	if f.Tree == nil {
		return &models.Tree{Tags: []models.TagSource{}}, nil
	}
	// Hand out a copy so callers cannot alter the script.
	return f.Tree.Without(nil), nil
}

func (f *FakeSource) PostDetail(ctx context.Context, id string) (*models.PostDetail, error) {
	f.mu.Lock()
	gate := f.DetailGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &source.Error{Kind: source.Transient, Op: source.OpPostDetail, ID: id, Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(source.OpPostDetail, id)

	if f.DetailFailures[id] > 0 {
		f.DetailFailures[id]--
		return nil, &source.Error{Kind: source.Transient, Op: source.OpPostDetail, ID: id, Err: ErrUnavailable}
	}
	d, ok := f.Details[id]
	if f.Gone[id] || !ok {
		return nil, &source.Error{Kind: source.Permanent, Op: source.OpPostDetail, ID: id, Err: errors.New("not found")}
	}
	cp := *d
	return &cp, nil
}

func (f *FakeSource) PhotoTags(ctx context.Context) ([]models.PhotoTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(source.OpPhotoTags, "")
	if f.PhotoTagFailures > 0 {
		f.PhotoTagFailures--
		return nil, &source.Error{Kind: source.Transient, Op: source.OpPhotoTags, Err: ErrUnavailable}
	}
	if f.PhotoTagsGone {
		return nil, &source.Error{Kind: source.Permanent, Op: source.OpPhotoTags, Err: errors.New("not found")}
	}
	return append([]models.PhotoTag(nil), f.TagList...), nil
}

// WriteFixtures exports tree, details and photo tags into a new temporary
// directory in the layout read by source.File.
func WriteFixtures(t *testing.T, tree *models.Tree, details map[string]*models.PostDetail, tags []models.PhotoTag) string {
	t.Helper()
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, source.TreeFile), tree)
	for id, d := range details {
		writeJSON(t, filepath.Join(dir, source.PostsDir, id+".json"), d)
	}
	if tags != nil {
		writeJSON(t, filepath.Join(dir, source.PhotoTagsFile), tags)
	}
	return dir
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}
