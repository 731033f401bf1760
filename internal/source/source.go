// Package source talks to the photo host that owns the collection tree,
// per-post detail and the photo tag list.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/starford/travelogue/internal/models"
)

// Source is the photo-host contract consumed by library sync.
type Source interface {
	CollectionTree(ctx context.Context) (*models.Tree, error)
	PostDetail(ctx context.Context, id string) (*models.PostDetail, error)
	PhotoTags(ctx context.Context) ([]models.PhotoTag, error)
}

// Kind classifies a source failure.
type Kind int

const (
	// Transient failures are retried.
	Transient Kind = iota
	// Permanent failures mean the item is gone.
	Permanent
)

func (k Kind) String() string {
	if k == Permanent {
		return "permanent"
	}
	return "transient"
}

// Error is returned by every Source implementation.
type Error struct {
	Kind Kind
	Op   string
	ID   string
	Err  error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("source: %s %s (%s): %v", e.Op, e.ID, e.Kind, e.Err)
	}
	return fmt.Sprintf("source: %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func transient(op, id string, err error) *Error {
	return &Error{Kind: Transient, Op: op, ID: id, Err: err}
}

func permanent(op, id string, err error) *Error {
	return &Error{Kind: Permanent, Op: op, ID: id, Err: err}
}

// IsPermanent reports whether err is a permanent source failure.
func IsPermanent(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == Permanent
}

// IsTransient reports whether err should be retried. Errors that are not
// a *Error count as transient.
func IsTransient(err error) bool {
	return err != nil && !IsPermanent(err)
}

// Operation names, used in errors and metrics.
const (
	OpCollectionTree = "collection_tree"
	OpPostDetail     = "post_detail"
	OpPhotoTags      = "photo_tags"
)
