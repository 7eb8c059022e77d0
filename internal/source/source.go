// Package source defines the remote document store consumed by the
// ingestion pipeline. Adapters live in the sub-packages.
package source

import (
	"context"
	"io"
	"time"
)

// ContentTypePDF is the only content type the pipeline lists.
const ContentTypePDF = "application/pdf"

// File is one remote document returned by List.
type File struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	Link      string    `json:"link"`
	Size      int64     `json:"size"`
}

// Uploaded identifies a document stored by Upload.
type Uploaded struct {
	ID   string `json:"id"`
	Link string `json:"link"`
}

// Source lists, fetches and stores documents. Implementations report
// failures as faults.ErrTransfer and missing setup as faults.ErrConfiguration.
type Source interface {
	// List returns documents of contentType under scope created at or after
	// since. An empty scope lists everything visible to the adapter.
	List(ctx context.Context, scope, contentType string, since time.Time) ([]File, error)
	Download(ctx context.Context, id string) (io.ReadCloser, error)
	Upload(ctx context.Context, r io.Reader, name, scope string) (Uploaded, error)
}

// ExtensionFor maps a content type to the file suffix adapters without
// native type metadata match on.
func ExtensionFor(contentType string) string {
	switch contentType {
	case ContentTypePDF:
		return ".pdf"
	default:
		return ""
	}
}

// Unconfigured stands in for an adapter that could not be built. Every call
// returns Err so the fault reaches the caller of each operation.
type Unconfigured struct {
	Err error
}

func (u Unconfigured) List(ctx context.Context, scope, contentType string, since time.Time) ([]File, error) {
	return nil, u.Err
}

func (u Unconfigured) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	return nil, u.Err
}

func (u Unconfigured) Upload(ctx context.Context, r io.Reader, name, scope string) (Uploaded, error) {
	return Uploaded{}, u.Err
}
