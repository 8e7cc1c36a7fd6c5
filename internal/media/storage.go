// Package media stores event cover images.
package media

import (
	"context"
	"io"
	"strings"
)

// Storage is a blob store addressed by key that can publish objects under a URL.
type Storage interface {
	// Write stores content from the reader with the given key.
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Delete removes the object. Missing objects are not an error.
	Delete(ctx context.Context, key string) error

	// URL returns the public URL of key.
	URL(key string) string

	// Key reverses URL. It reports false for URLs this storage did not issue.
	Key(url string) (string, bool)
}

func joinURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(key, "/")
}

func trimURL(base, url string) (string, bool) {
	prefix := strings.TrimSuffix(base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	return key, key != ""
}
