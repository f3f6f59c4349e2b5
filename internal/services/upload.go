package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Anupam-Kumar2505/djsce-resources/internal/logging"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/media"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/store"
	"github.com/Anupam-Kumar2505/djsce-resources/types"
	"golang.org/x/sync/errgroup"
)

const batchConcurrency = 4

// MediaGateway defines the remote media host operations the workflows use.
type MediaGateway interface {
	Upload(ctx context.Context, localPath, folder, name string) (media.UploadResult, error)
	Remove(ctx context.Context, key string) error
	KeyFromURL(rawURL string) (string, error)
}

// UploadItem is one file of a batch, already spooled to local temp storage.
type UploadItem struct {
	TempPath     string
	OriginalName string
}

// BatchInput is a single upload request: shared metadata plus up to
// maxFiles spooled files.
type BatchInput struct {
	Type    string
	Subject string
	Year    string
	Items   []UploadItem
}

// BatchResult reports the partial-success outcome of a batch.
type BatchResult struct {
	Files          []types.File
	TotalRequested int
	TotalUploaded  int
	Warnings       []string
}

// UploadService orchestrates multi-file intake: remote upload per file,
// then a catalogue record per successful upload, aggregating per-file
// failures instead of aborting the batch.
type UploadService struct {
	files    FileCatalogue
	gateway  MediaGateway
	events   Events
	log      logging.Logger
	maxFiles int
	timeout  time.Duration
}

func NewUploadService(files FileCatalogue, gateway MediaGateway, events Events, log logging.Logger, maxFiles int, timeout time.Duration) *UploadService {
	if maxFiles <= 0 {
		maxFiles = 10
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &UploadService{
		files:    files,
		gateway:  gateway,
		events:   events,
		log:      log,
		maxFiles: maxFiles,
		timeout:  timeout,
	}
}

// UploadBatch processes one batch. Batch-level fields are validated before
// any file I/O. Files are uploaded in bounded parallel with no ordering
// guarantee; a per-file failure records a warning and the rest continue.
// Every temp file is gone by the time this returns: the gateway removes
// the ones it consumed, and a final sweep catches the rest.
func (s *UploadService) UploadBatch(ctx context.Context, in BatchInput) (BatchResult, error) {
	defer SweepTempFiles(in.Items)

	if err := validateBatch(in, s.maxFiles); err != nil {
		return BatchResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	folder := media.YearFolder(in.Year)

	type itemResult struct {
		file    types.File
		created bool
		warning string
	}
	results := make([]itemResult, len(in.Items))

	g := new(errgroup.Group)
	g.SetLimit(batchConcurrency)
	for i, item := range in.Items {
		g.Go(func() error {
			uploaded, err := s.gateway.Upload(ctx, item.TempPath, folder, item.OriginalName)
			if err != nil {
				s.log.Warn(ctx, "remote upload failed", "name", item.OriginalName, "err", err)
				results[i].warning = fmt.Sprintf("%s: upload to media host failed", item.OriginalName)
				return nil
			}

			file := types.File{
				FileURL:   uploaded.URL,
				RemoteKey: uploaded.Key,
				Name:      item.OriginalName,
				Subject:   in.Subject,
				Type:      in.Type,
				Year:      in.Year,
			}
			created, err := s.files.Create(ctx, file)
			if err != nil {
				// The remote object exists but the catalogue write failed.
				// Compensate with a best-effort remote delete so the host
				// does not accumulate unrecorded objects.
				if rmErr := s.gateway.Remove(ctx, uploaded.Key); rmErr != nil {
					s.log.Error(ctx, "compensating remote delete failed", "key", uploaded.Key, "err", rmErr)
				}
				if errors.Is(err, store.ErrConflict) {
					results[i].warning = fmt.Sprintf("%s: already catalogued", item.OriginalName)
				} else {
					s.log.Error(ctx, "catalogue write failed", "name", item.OriginalName, "err", err)
					results[i].warning = fmt.Sprintf("%s: failed to save record", item.OriginalName)
				}
				return nil
			}

			results[i] = itemResult{file: created, created: true}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return BatchResult{}, fmt.Errorf("upload batch aborted: %w", err)
	}

	out := BatchResult{TotalRequested: len(in.Items)}
	for _, result := range results {
		if result.created {
			out.Files = append(out.Files, result.file)
			continue
		}
		out.Warnings = append(out.Warnings, result.warning)
	}
	out.TotalUploaded = len(out.Files)

	if out.TotalUploaded == 0 {
		return out, ErrBatchFailed
	}

	for _, file := range out.Files {
		s.events.Publish(ctx, EventResourceUploaded, file)
	}
	return out, nil
}

func validateBatch(in BatchInput, maxFiles int) error {
	if in.Type == "" || in.Subject == "" || in.Year == "" {
		return fmt.Errorf("%w: type, subject, and year are required", ErrInvalidInput)
	}
	if !types.ValidType(in.Type) {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidInput, in.Type)
	}
	if !types.ValidYear(in.Year) {
		return fmt.Errorf("%w: unknown year %q", ErrInvalidInput, in.Year)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: no files uploaded", ErrInvalidInput)
	}
	if len(in.Items) > maxFiles {
		return fmt.Errorf("%w: at most %d files per upload", ErrInvalidInput, maxFiles)
	}
	return nil
}

// SweepTempFiles removes any spooled file still on disk. Files the gateway
// consumed are already gone; removal errors are irrelevant here.
func SweepTempFiles(items []UploadItem) {
	for _, item := range items {
		_ = os.Remove(item.TempPath)
	}
}
