// Package blobstore defines the attachment sink used for invoice images.
// Keys are logical, slash-separated paths; each backend maps them onto its
// own namespace (a directory, an S3 bucket, a MinIO bucket).
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Open and Delete when no blob exists under a key.
var ErrNotFound = errors.New("blob not found")

type Store interface {
	// Put durably writes size bytes from r under key. size may be -1 when unknown.
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// NewKey builds a collision-free key of the form invoices/YYYY/MM/<uuid><ext>,
// keeping the lower-cased extension of the client supplied file name.
func NewKey(now time.Time, filename string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(filename, `\`, "/")))
	if len(ext) > 10 || strings.ContainsAny(ext, " /") {
		ext = ""
	}
	return fmt.Sprintf("invoices/%04d/%02d/%s%s", now.Year(), int(now.Month()), uuid.NewString(), ext)
}
