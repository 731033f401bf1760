package library

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/starford/travelogue/internal/models"
)

// EncodeTree serializes the source tree. Posts are stored as id and title
// references so shared posts are not duplicated per tag.
func EncodeTree(tree *models.Tree) (string, error) {
	if tree.Tags == nil {
		tree = &models.Tree{Tags: []models.TagSource{}}
	}
	data, err := json.Marshal(tree)
	if err != nil {
		return "", fmt.Errorf("library: encode tree: %w", err)
	}
	return string(data), nil
}

// DecodeTree parses a tree written by EncodeTree.
func DecodeTree(raw string) (*models.Tree, error) {
	if raw == "" {
		return nil, fmt.Errorf("library: decode tree: empty value")
	}
	var tree models.Tree
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return nil, fmt.Errorf("library: decode tree: %w", err)
	}
	if tree.Tags == nil {
		return nil, fmt.Errorf("library: decode tree: no tags")
	}
	return &tree, nil
}

// EncodeDetail serializes one post's detail.
func EncodeDetail(d *models.PostDetail) (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("library: encode detail: %w", err)
	}
	return string(data), nil
}

// DecodeDetail parses detail written by EncodeDetail.
func DecodeDetail(raw string) (*models.PostDetail, error) {
	if raw == "" {
		return nil, fmt.Errorf("library: decode detail: empty value")
	}
	var d models.PostDetail
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("library: decode detail: %w", err)
	}
	return &d, nil
}

// EncodePhotoTags serializes the photo tag lookup.
func EncodePhotoTags(tags map[string]string) (string, error) {
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("library: encode photo tags: %w", err)
	}
	return string(data), nil
}

// DecodePhotoTags parses a lookup written by EncodePhotoTags.
func DecodePhotoTags(raw string) (map[string]string, error) {
	var tags map[string]string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("library: decode photo tags: %w", err)
	}
	if tags == nil {
		return nil, fmt.Errorf("library: decode photo tags: null value")
	}
	return tags, nil
}

// PhotoTagMap builds the clean-name lookup from a source tag list. Later
// entries do not override earlier ones.
func PhotoTagMap(list []models.PhotoTag) map[string]string {
	out := make(map[string]string, len(list))
	for _, t := range list {
		if t.CleanName == "" {
			continue
		}
		if _, ok := out[t.CleanName]; ok {
			continue
		}
		raw := t.RawName
		if raw == "" {
			raw = t.CleanName
		}
		out[t.CleanName] = raw
	}
	return out
}
