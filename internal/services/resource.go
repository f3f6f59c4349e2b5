package services

import (
	"context"
	"strings"

	"github.com/Anupam-Kumar2505/djsce-resources/types"
)

// FileCatalogue defines persistence operations for catalogue records.
type FileCatalogue interface {
	Get(ctx context.Context, id int) (types.File, error)
	ListYears(ctx context.Context) ([]string, error)
	ListByYear(ctx context.Context, year string) (approved, pending []types.File, err error)
	ListApprovedByYear(ctx context.Context, year string) ([]types.File, error)
	ListPending(ctx context.Context) ([]types.File, error)
	Create(ctx context.Context, file types.File) (types.File, error)
	UpdateFields(ctx context.Context, id int, name, subject, fileType string) (types.File, error)
	Approve(ctx context.Context, id int) (types.File, error)
	Delete(ctx context.Context, id int) error
}

// ResourceService encapsulates public catalogue use-cases.
type ResourceService struct {
	files FileCatalogue
}

func NewResourceService(files FileCatalogue) *ResourceService {
	return &ResourceService{files: files}
}

func (s *ResourceService) ListYears(ctx context.Context) ([]string, error) {
	return s.files.ListYears(ctx)
}

// ListByYear returns the year's approved and pending records, each newest
// first.
func (s *ResourceService) ListByYear(ctx context.Context, year string) (approved, pending []types.File, err error) {
	return s.files.ListByYear(ctx, year)
}

// ListApprovedByYear returns only the year's approved records, newest first.
func (s *ResourceService) ListApprovedByYear(ctx context.Context, year string) ([]types.File, error) {
	return s.files.ListApprovedByYear(ctx, year)
}

// ListPending returns every unapproved record, newest first.
func (s *ResourceService) ListPending(ctx context.Context) ([]types.File, error) {
	return s.files.ListPending(ctx)
}

// Rename updates the display name only. Any authenticated user may rename.
func (s *ResourceService) Rename(ctx context.Context, id int, name string) (types.File, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.File{}, ErrInvalidInput
	}
	return s.files.UpdateFields(ctx, id, name, "", "")
}
