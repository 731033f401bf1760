package library

import (
	"testing"
	"time"

	"github.com/starford/travelogue/internal/models"
)

func TestTreeRoundTripRebuildsSameLibrary(t *testing.T) {
	original := Build(sampleTree(), testOpts)

	raw, err := EncodeTree(original.Tree())
	if err != nil {
		t.Fatalf("EncodeTree: %v", err)
	}
	tree, err := DecodeTree(raw)
	if err != nil {
		t.Fatalf("DecodeTree: %v", err)
	}
	rebuilt := Build(tree, testOpts)

	if len(rebuilt.Posts) != len(original.Posts) {
		t.Fatalf("posts = %d, want %d", len(rebuilt.Posts), len(original.Posts))
	}
	for i, p := range original.Posts {
		q := rebuilt.Posts[i]
		if p.ID != q.ID || p.Slug != q.Slug || p.Part != q.Part || p.TotalParts != q.TotalParts {
			t.Errorf("post %d differs: %+v vs %+v", i, p, q)
		}
	}
}

func TestDecodeTree_Corrupt(t *testing.T) {
	for _, raw := range []string{"", "{", `{"tags":null}`, "[]"} {
		if _, err := DecodeTree(raw); err == nil {
			t.Errorf("DecodeTree(%q) should fail", raw)
		}
	}
}

func TestEncodeTree_EmptyTreeDecodes(t *testing.T) {
	raw, err := EncodeTree(&models.Tree{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeTree(raw); err != nil {
		t.Errorf("empty tree should decode: %v", err)
	}
}

func TestDetailRoundTrip(t *testing.T) {
	in := &models.PostDetail{
		Description:  "Snow on the pass",
		CreatedOn:    time.Date(2016, 5, 1, 0, 0, 0, 0, time.UTC),
		PhotoCount:   42,
		ThumbnailURL: "https://example.test/t.jpg",
	}
	raw, err := EncodeDetail(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := DecodeDetail(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !out.CreatedOn.Equal(in.CreatedOn) || out.PhotoCount != 42 || out.ThumbnailURL != in.ThumbnailURL {
		t.Errorf("round trip = %+v", out)
	}
}

func TestPhotoTagMap(t *testing.T) {
	m := PhotoTagMap([]models.PhotoTag{
		{CleanName: "boiseriver", RawName: "Boise River"},
		{CleanName: "boiseriver", RawName: "boise river"},
		{CleanName: "", RawName: "ignored"},
		{CleanName: "snow"},
	})
	if len(m) != 2 || m["boiseriver"] != "Boise River" || m["snow"] != "snow" {
		t.Errorf("map = %v", m)
	}
}
