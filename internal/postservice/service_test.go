package postservice

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/travelogue/internal/apperr"
	"github.com/starford/travelogue/internal/library"
	"github.com/starford/travelogue/internal/librarysync"
	"github.com/starford/travelogue/internal/testutil"
)

type stubSync struct {
	lib       *library.Library
	photoTags map[string]string
	accept    bool
	refreshes int
}

func (s *stubSync) Library() *library.Library    { return s.lib }
func (s *stubSync) PhotoTags() map[string]string { return s.photoTags }
func (s *stubSync) Status() librarysync.Status   { return librarysync.Status{State: "ready"} }
func (s *stubSync) Refresh() bool                { s.refreshes++; return s.accept }

func sampleService(t *testing.T) (*Service, *stubSync) {
	t.Helper()
	lib := library.Build(testutil.SampleTree(), library.Options{
		Synthetic: []library.Synthetic{{ID: "feature", Title: "Featured"}},
	})
	lib.Attach(testutil.SampleDetails())
	lib.PostInfoLoaded = true
	stub := &stubSync{
		lib:       lib,
		photoTags: library.PhotoTagMap(testutil.SamplePhotoTags()),
		accept:    true,
	}
	return NewService(stub), stub
}

func TestService_NotReady(t *testing.T) {
	svc := NewService(&stubSync{})
	ctx := context.Background()

	if _, err := svc.ListTags(ctx); !errors.Is(err, apperr.ErrNotReady) {
		t.Errorf("ListTags err = %v", err)
	}
	if _, err := svc.GetPost(ctx, "silver-city"); !errors.Is(err, apperr.ErrNotReady) {
		t.Errorf("GetPost err = %v", err)
	}
	if _, err := svc.PhotoTags(ctx); !errors.Is(err, apperr.ErrNotReady) {
		t.Errorf("PhotoTags err = %v", err)
	}
	if err := svc.Refresh(ctx); !errors.Is(err, apperr.ErrNotReady) {
		t.Errorf("Refresh err = %v", err)
	}
}

func TestService_ListTags(t *testing.T) {
	svc, _ := sampleService(t)
	tags, err := svc.ListTags(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 2 || tags[0].Title != "When" || tags[1].Title != "Where" {
		t.Fatalf("roots = %+v", tags)
	}
	where := tags[1]
	if len(where.Children) != 2 {
		t.Fatalf("where children = %+v", where.Children)
	}
	county := where.Children[0]
	if county.Path != "where/owyhee-county" || county.PostCount != 2 {
		t.Errorf("county = %+v", county)
	}
	if empty := where.Children[1]; empty.PostCount != 0 || empty.Children == nil {
		t.Errorf("empty tag = %+v", empty)
	}
}

func TestService_GetTag(t *testing.T) {
	svc, _ := sampleService(t)
	ctx := context.Background()

	tag, err := svc.GetTag(ctx, "owyhee-county")
	if err != nil {
		t.Fatal(err)
	}
	if tag.Path != "where/owyhee-county" || len(tag.Posts) != 2 {
		t.Errorf("tag = %+v", tag)
	}
	if _, err := svc.GetTag(ctx, "nowhere"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing tag err = %v", err)
	}
}

func TestService_GetPostSeries(t *testing.T) {
	svc, _ := sampleService(t)
	ctx := context.Background()

	p, err := svc.GetPost(ctx, "owyhee")
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != "3" || p.Slug != "owyhee/day-1" || !p.IsSeriesStart || p.Part != 1 || p.TotalParts != 3 {
		t.Errorf("bare series slug should resolve to part 1, got %+v", p)
	}
	if len(p.Series) != 3 || p.Series[2].ID != "5" {
		t.Errorf("series = %+v", p.Series)
	}
	if p.Next == nil || p.Next.ID != "4" {
		t.Errorf("next = %+v", p.Next)
	}
	if p.Previous == nil || p.Previous.Slug != "boise-river-spring" {
		t.Errorf("previous = %+v", p.Previous)
	}
	if !p.InfoLoaded || p.Description != "post 3" || p.CreatedOn == nil {
		t.Errorf("detail not carried: %+v", p)
	}

	parts, err := svc.FindSeries(ctx, "owyhee/day-2")
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 3 || parts[0].ID != "3" || parts[1].Part != 2 {
		t.Errorf("parts = %+v", parts)
	}
	if _, err := svc.FindSeries(ctx, "silver-city"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("single post should not be a series, err = %v", err)
	}
}

func TestService_GetPostByID(t *testing.T) {
	svc, _ := sampleService(t)
	ctx := context.Background()

	p, err := svc.GetPostByID(ctx, "feature")
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "Featured" || p.Next != nil || p.Previous != nil {
		t.Errorf("synthetic post = %+v", p)
	}
	if _, err := svc.GetPostByID(ctx, "404"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestService_ListPosts(t *testing.T) {
	svc, _ := sampleService(t)
	ctx := context.Background()

	all, total, err := svc.ListPosts(ctx, "", 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if total != 6 || len(all) != 2 || all[0].ID != "4" {
		t.Errorf("page = %+v total=%d", all, total)
	}

	tagged, total, _ := svc.ListPosts(ctx, "Owyhee County", 0, 0)
	if total != 2 || len(tagged) != 2 {
		t.Errorf("tagged = %+v", tagged)
	}

	past, total, _ := svc.ListPosts(ctx, "", 10, 100)
	if len(past) != 0 || total != 6 {
		t.Errorf("offset past end = %+v, %d", past, total)
	}
}

func TestService_PhotoTagsSorted(t *testing.T) {
	svc, _ := sampleService(t)
	tags, err := svc.PhotoTags(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 2 || tags[0].CleanName != "boiseriver" || tags[1].RawName != "Sagebrush" {
		t.Errorf("tags = %+v", tags)
	}
}

func TestService_Refresh(t *testing.T) {
	svc, stub := sampleService(t)
	ctx := context.Background()

	if err := svc.Refresh(ctx); err != nil {
		t.Errorf("accepted refresh err = %v", err)
	}
	stub.accept = false
	if err := svc.Refresh(ctx); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("rejected refresh err = %v", err)
	}
	if stub.refreshes != 2 {
		t.Errorf("refreshes = %d", stub.refreshes)
	}
}
