// Package storage keeps sale attachments and receipts in an object store.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

var ErrObjectNotFound = errors.New("object_not_found")

type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

const unnamedSegment = "unnamed"

// ObjectKey builds sales/<customer>/<project>/<kind>/<id><ext>. Every segment
// is slugged so user input can never escape the prefix.
func ObjectKey(customer, project, kind, id, originalName string) string {
	return path.Join(
		"sales",
		segment(customer),
		segment(project),
		segment(kind),
		segment(id)+extension(originalName),
	)
}

func segment(raw string) string {
	s := slug.Make(raw)
	if s == "" {
		return unnamedSegment
	}
	return s
}

func extension(name string) string {
	ext := strings.TrimPrefix(path.Ext(strings.ReplaceAll(name, "\\", "/")), ".")
	ext = slug.Make(ext)
	if ext == "" || len(ext) > 10 || strings.Contains(ext, "-") {
		return ""
	}
	return "." + ext
}
