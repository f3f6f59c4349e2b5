// Package media wraps the remote media host. It owns the temp-file cleanup
// contract for uploads and the idempotent-delete contract for removals.
package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Anupam-Kumar2505/djsce-resources/internal/storage"
)

// ErrRemoteRemove marks a failure to delete an object from the media host.
// Callers must not delete the catalogue record when they see this.
var ErrRemoteRemove = errors.New("remote removal failed")

var whitespaceRun = regexp.MustCompile(`\s+`)

// UploadResult describes a durably stored object.
type UploadResult struct {
	URL string
	Key string
}

// Gateway is the single entry point to the remote media host. It is
// constructed once at startup with an explicit backend, never a
// process-wide singleton, so tests can swap the backend.
type Gateway struct {
	backend storage.ObjectStorage
}

func NewGateway(backend storage.ObjectStorage) *Gateway {
	return &Gateway{backend: backend}
}

// EnsureBucket prepares the remote bucket at startup.
func (g *Gateway) EnsureBucket(ctx context.Context) error {
	return g.backend.EnsureBucket(ctx)
}

// Upload streams the local file at localPath to the media host under
// folder/name. The local file is deleted on every exit path, success or
// failure. The object key is stable: re-uploading the same name into the
// same folder overwrites the prior remote object.
func (g *Gateway) Upload(ctx context.Context, localPath, folder, name string) (UploadResult, error) {
	defer func() {
		_ = os.Remove(localPath)
	}()

	file, err := os.Open(localPath)
	if err != nil {
		return UploadResult{}, fmt.Errorf("open temp file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return UploadResult{}, fmt.Errorf("stat temp file: %w", err)
	}

	key := ObjectKey(folder, name)
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := g.backend.Put(ctx, key, file, info.Size(), contentType); err != nil {
		return UploadResult{}, fmt.Errorf("upload %q: %w", key, err)
	}

	return UploadResult{
		URL: g.backend.PublicURL(key),
		Key: key,
	}, nil
}

// Remove deletes the remote object. A host-side "not found" counts as
// success so deletes are idempotent; any other failure wraps
// ErrRemoteRemove.
func (g *Gateway) Remove(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty object key", ErrRemoteRemove)
	}
	if err := g.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteRemove, err)
	}
	return nil
}

// KeyFromURL recovers the object key from a stored public URL: the
// percent-decoded path segments after the bucket. It exists only as a
// fallback for records created before the key was persisted alongside the
// URL; new records carry their key.
func (g *Gateway) KeyFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse file url: %w", err)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) > 0 && segments[0] == g.backend.Bucket() {
		segments = segments[1:]
	}
	if len(segments) == 0 || segments[0] == "" {
		return "", fmt.Errorf("no object key in url %q", rawURL)
	}

	decoded := make([]string, 0, len(segments))
	for _, segment := range segments {
		part, err := url.PathUnescape(segment)
		if err != nil {
			return "", fmt.Errorf("decode url segment %q: %w", segment, err)
		}
		decoded = append(decoded, part)
	}
	return strings.Join(decoded, "/"), nil
}

// ObjectKey builds the stable remote key for an original filename inside a
// logical folder. The base name keeps its extension; whitespace collapses
// to underscores so keys stay URL-friendly.
func ObjectKey(folder, name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	logical := strings.TrimSuffix(base, ext)
	logical = whitespaceRun.ReplaceAllString(strings.TrimSpace(logical), "_")
	if logical == "" {
		logical = "file"
	}
	return path.Join(folder, logical+strings.ToLower(ext))
}

// YearFolder is the logical folder files for a study year land in.
func YearFolder(year string) string {
	return "resources/year_" + year
}
