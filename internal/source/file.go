package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/starford/travelogue/internal/models"
)

// Fixture file layout under the File root.
const (
	TreeFile      = "tree.json"
	PostsDir      = "posts"
	PhotoTagsFile = "photo-tags.json"
)

// File serves a photo library exported to a directory:
//
//	tree.json            collection tree
//	posts/<id>.json      one detail document per post
//	photo-tags.json      photo tag list
type File struct {
	root string // absolute path to the fixture directory
}

// NewFile creates a File source rooted at dir. The directory must exist.
func NewFile(dir string) (*File, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("source: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("source: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source: root is not a directory: %s", abs)
	}
	return &File{root: abs}, nil
}

// Root returns the absolute fixture directory.
func (f *File) Root() string { return f.root }

// safePath resolves rel against the root and rejects anything that escapes it.
func (f *File) safePath(rel string) (string, error) {
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes fixture root: %s", rel)
	}
	return abs, nil
}

// read loads and decodes rel. A missing file is reported through missing so
// each operation can decide how to classify it.
func (f *File) read(op, id, rel string, missing Kind, out any) error {
	abs, err := f.safePath(rel)
	if err != nil {
		return permanent(op, id, err)
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return &Error{Kind: missing, Op: op, ID: id, Err: err}
	}
	if err != nil {
		return transient(op, id, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		// Likely a half-written file; the next read may succeed.
		return transient(op, id, fmt.Errorf("decode %s: %w", rel, err))
	}
	return nil
}

func (f *File) CollectionTree(ctx context.Context) (*models.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, transient(OpCollectionTree, "", err)
	}
	var tree models.Tree
	if err := f.read(OpCollectionTree, "", TreeFile, Transient, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// PostDetail reads posts/<id>.json. A missing file means the post is gone.
func (f *File) PostDetail(ctx context.Context, id string) (*models.PostDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, transient(OpPostDetail, id, err)
	}
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, permanent(OpPostDetail, id, errors.New("invalid post id"))
	}
	var detail models.PostDetail
	if err := f.read(OpPostDetail, id, filepath.Join(PostsDir, id+".json"), Permanent, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// PhotoTags reads photo-tags.json. A missing file yields an empty list.
func (f *File) PhotoTags(ctx context.Context) ([]models.PhotoTag, error) {
	if err := ctx.Err(); err != nil {
		return nil, transient(OpPhotoTags, "", err)
	}
	var tags []models.PhotoTag
	err := f.read(OpPhotoTags, "", PhotoTagsFile, Permanent, &tags)
	if IsPermanent(err) && errors.Is(err, fs.ErrNotExist) {
		return []models.PhotoTag{}, nil
	}
	if err != nil {
		return nil, err
	}
	return tags, nil
}
