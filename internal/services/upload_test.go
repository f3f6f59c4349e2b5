package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Anupam-Kumar2505/djsce-resources/internal/logging"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/media"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/store"
	"github.com/Anupam-Kumar2505/djsce-resources/types"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeCatalogue struct {
	mu    sync.Mutex
	files map[int]types.File
	seq   int

	createErr    error
	createErrFor map[string]error

	updateErr  error
	approveErr error
	deleteErr  error
}

func newFakeCatalogue() *fakeCatalogue {
	return &fakeCatalogue{files: map[int]types.File{}}
}

func (f *fakeCatalogue) Get(ctx context.Context, id int) (types.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[id]
	if !ok {
		return types.File{}, store.ErrNotFound
	}
	return file, nil
}

func (f *fakeCatalogue) ListYears(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (f *fakeCatalogue) ListByYear(ctx context.Context, year string) ([]types.File, []types.File, error) {
	return nil, nil, nil
}

func (f *fakeCatalogue) ListApprovedByYear(ctx context.Context, year string) ([]types.File, error) {
	return nil, nil
}

func (f *fakeCatalogue) ListPending(ctx context.Context) ([]types.File, error) {
	return nil, nil
}

func (f *fakeCatalogue) Create(ctx context.Context, file types.File) (types.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.createErrFor[file.Name]; ok {
		return types.File{}, err
	}
	if f.createErr != nil {
		return types.File{}, f.createErr
	}
	f.seq++
	file.ID = f.seq
	f.files[file.ID] = file
	return file, nil
}

func (f *fakeCatalogue) UpdateFields(ctx context.Context, id int, name, subject, fileType string) (types.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return types.File{}, f.updateErr
	}
	file, ok := f.files[id]
	if !ok {
		return types.File{}, store.ErrNotFound
	}
	if name != "" {
		file.Name = name
	}
	if subject != "" {
		file.Subject = subject
	}
	if fileType != "" {
		file.Type = fileType
	}
	f.files[id] = file
	return file, nil
}

func (f *fakeCatalogue) Approve(ctx context.Context, id int) (types.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.approveErr != nil {
		return types.File{}, f.approveErr
	}
	file, ok := f.files[id]
	if !ok {
		return types.File{}, store.ErrNotFound
	}
	file.Approved = true
	f.files[id] = file
	return file, nil
}

func (f *fakeCatalogue) Delete(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.files[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.files, id)
	return nil
}

type fakeGateway struct {
	mu sync.Mutex

	uploadErrFor map[string]error
	uploads      []string

	removeErr error
	removed   []string
}

func (f *fakeGateway) Upload(ctx context.Context, localPath, folder, name string) (media.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.uploadErrFor[name]; ok {
		return media.UploadResult{}, err
	}
	f.uploads = append(f.uploads, name)
	key := folder + "/" + name
	return media.UploadResult{URL: "http://host/resources/" + key, Key: key}, nil
}

func (f *fakeGateway) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, key)
	return nil
}

func (f *fakeGateway) KeyFromURL(rawURL string) (string, error) {
	trimmed := strings.TrimPrefix(rawURL, "http://host/resources/")
	if trimmed == rawURL {
		return "", errors.New("unknown url")
	}
	return trimmed, nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) Publish(ctx context.Context, event string, file types.File) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func batchInput(names ...string) BatchInput {
	items := make([]UploadItem, 0, len(names))
	for _, name := range names {
		items = append(items, UploadItem{TempPath: "temp/" + name, OriginalName: name})
	}
	return BatchInput{
		Type:    types.TypeClassNotes,
		Subject: "Mathematics",
		Year:    "2",
		Items:   items,
	}
}

func TestUploadBatch_AllSucceed(t *testing.T) {
	catalogue := newFakeCatalogue()
	gateway := &fakeGateway{}
	events := &recordingEvents{}
	svc := NewUploadService(catalogue, gateway, events, testLogger(), 10, time.Minute)

	result, err := svc.UploadBatch(context.Background(), batchInput("a.pdf", "b.pdf", "c.pdf"))
	if err != nil {
		t.Fatalf("UploadBatch error: %v", err)
	}
	if result.TotalRequested != 3 || result.TotalUploaded != 3 {
		t.Fatalf("unexpected totals: %+v", result)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
	for _, file := range result.Files {
		if file.Approved {
			t.Fatalf("new records must start unapproved: %+v", file)
		}
		if file.RemoteKey == "" {
			t.Fatalf("remote key must be persisted: %+v", file)
		}
	}
	if len(events.events) != 3 {
		t.Fatalf("expected 3 uploaded events, got %v", events.events)
	}
}

func TestUploadBatch_PartialFailure(t *testing.T) {
	catalogue := newFakeCatalogue()
	gateway := &fakeGateway{uploadErrFor: map[string]error{"b.pdf": errors.New("host down")}}
	svc := NewUploadService(catalogue, gateway, &recordingEvents{}, testLogger(), 10, time.Minute)

	result, err := svc.UploadBatch(context.Background(), batchInput("a.pdf", "b.pdf", "c.pdf"))
	if err != nil {
		t.Fatalf("UploadBatch error: %v", err)
	}
	if result.TotalUploaded != 2 {
		t.Fatalf("expected 2 uploaded, got %d", result.TotalUploaded)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "b.pdf") {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
}

func TestUploadBatch_AllFail(t *testing.T) {
	catalogue := newFakeCatalogue()
	gateway := &fakeGateway{uploadErrFor: map[string]error{
		"a.pdf": errors.New("host down"),
		"b.pdf": errors.New("host down"),
	}}
	events := &recordingEvents{}
	svc := NewUploadService(catalogue, gateway, events, testLogger(), 10, time.Minute)

	result, err := svc.UploadBatch(context.Background(), batchInput("a.pdf", "b.pdf"))
	if !errors.Is(err, ErrBatchFailed) {
		t.Fatalf("want ErrBatchFailed, got %v", err)
	}
	if result.TotalUploaded != 0 || len(result.Warnings) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(events.events) != 0 {
		t.Fatalf("no events expected, got %v", events.events)
	}
}

func TestUploadBatch_CompensatesFailedCatalogueWrite(t *testing.T) {
	catalogue := newFakeCatalogue()
	catalogue.createErrFor = map[string]error{"b.pdf": fmt.Errorf("db down")}
	gateway := &fakeGateway{}
	svc := NewUploadService(catalogue, gateway, &recordingEvents{}, testLogger(), 10, time.Minute)

	result, err := svc.UploadBatch(context.Background(), batchInput("a.pdf", "b.pdf"))
	if err != nil {
		t.Fatalf("UploadBatch error: %v", err)
	}
	if result.TotalUploaded != 1 {
		t.Fatalf("expected 1 uploaded, got %d", result.TotalUploaded)
	}
	if len(gateway.removed) != 1 || !strings.HasSuffix(gateway.removed[0], "b.pdf") {
		t.Fatalf("expected compensating remote delete for b.pdf, got %v", gateway.removed)
	}
}

func TestUploadBatch_ConflictWarning(t *testing.T) {
	catalogue := newFakeCatalogue()
	catalogue.createErrFor = map[string]error{"a.pdf": store.ErrConflict}
	gateway := &fakeGateway{}
	svc := NewUploadService(catalogue, gateway, &recordingEvents{}, testLogger(), 10, time.Minute)

	result, err := svc.UploadBatch(context.Background(), batchInput("a.pdf", "b.pdf"))
	if err != nil {
		t.Fatalf("UploadBatch error: %v", err)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "already catalogued") {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
}

func TestUploadBatch_Validation(t *testing.T) {
	svc := NewUploadService(newFakeCatalogue(), &fakeGateway{}, &recordingEvents{}, testLogger(), 2, time.Minute)

	tests := []struct {
		name   string
		mutate func(*BatchInput)
	}{
		{"missing subject", func(in *BatchInput) { in.Subject = "" }},
		{"unknown type", func(in *BatchInput) { in.Type = "Homework" }},
		{"unknown year", func(in *BatchInput) { in.Year = "5" }},
		{"no files", func(in *BatchInput) { in.Items = nil }},
		{"too many files", func(in *BatchInput) {
			in.Items = append(in.Items, UploadItem{OriginalName: "c.pdf"}, UploadItem{OriginalName: "d.pdf"})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := batchInput("a.pdf")
			tt.mutate(&in)
			if _, err := svc.UploadBatch(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("want ErrInvalidInput, got %v", err)
			}
		})
	}
}
