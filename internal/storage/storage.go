// Package storage persists uploaded banner images. The default backend is
// local disk served under /storage/; an S3-compatible backend can be selected
// through configuration.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// BlobStore writes and removes uploaded files. Save returns the public path
// recorded on the product; Delete accepts that same path and ignores paths it
// does not own.
type BlobStore interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, publicPath string) error
}

// ObjectKey builds a collision-resistant key for an uploaded file, prefixing
// the original name with the upload timestamp.
func ObjectKey(filename string) string {
	return fmt.Sprintf("products/%d_%s", time.Now().Unix(), sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '.', c == '-', c == '_':
			b.WriteRune(c)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "upload"
	}
	return b.String()
}
