package storage

import (
	"context"
	"io"
	"net/url"
	"strings"
)

// ObjectStorage defines common object operations across media-host backends.
// Delete must succeed when the object is already absent.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	Bucket() string
}

// publicURL joins a base URL, bucket, and object key into a browsable URL,
// percent-encoding each key segment but keeping the slashes.
func publicURL(base, bucket, key string) string {
	segments := strings.Split(key, "/")
	escaped := make([]string, 0, len(segments))
	for _, segment := range segments {
		escaped = append(escaped, url.PathEscape(segment))
	}
	return strings.TrimSuffix(base, "/") + "/" + bucket + "/" + strings.Join(escaped, "/")
}
