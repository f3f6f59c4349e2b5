package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Anupam-Kumar2505/djsce-resources/internal/logging"
	"github.com/Anupam-Kumar2505/djsce-resources/types"
)

// EditInput carries the mutable metadata fields. Empty fields are left
// untouched; URL and year are never editable.
type EditInput struct {
	Name    string
	Subject string
	Type    string
}

// ModerationService implements the admin-only operations on catalogue
// records: approve, edit, and the two-phase delete.
type ModerationService struct {
	files   FileCatalogue
	gateway MediaGateway
	events  Events
	log     logging.Logger
}

func NewModerationService(files FileCatalogue, gateway MediaGateway, events Events, log logging.Logger) *ModerationService {
	return &ModerationService{
		files:   files,
		gateway: gateway,
		events:  events,
		log:     log,
	}
}

// Approve flips the record's approval flag. Approval is terminal: there is
// no transition back to pending.
func (s *ModerationService) Approve(ctx context.Context, id int) (types.File, error) {
	file, err := s.files.Approve(ctx, id)
	if err != nil {
		return types.File{}, err
	}
	s.events.Publish(ctx, EventResourceApproved, file)
	return file, nil
}

// Edit merges the provided metadata fields. At least one must be set.
func (s *ModerationService) Edit(ctx context.Context, id int, in EditInput) (types.File, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Type = strings.TrimSpace(in.Type)
	if in.Name == "" && in.Subject == "" && in.Type == "" {
		return types.File{}, fmt.Errorf("%w: at least one of name, subject, type is required", ErrInvalidInput)
	}
	if in.Type != "" && !types.ValidType(in.Type) {
		return types.File{}, fmt.Errorf("%w: unknown type %q", ErrInvalidInput, in.Type)
	}
	return s.files.UpdateFields(ctx, id, in.Name, in.Subject, in.Type)
}

// Delete removes the record in two phases: remote object first, catalogue
// row second. The catalogue row is never deleted while the remote object
// may still exist, so a failed remote removal leaves the record intact and
// surfaces media.ErrRemoteRemove. Rejecting a pending file is this same
// operation.
func (s *ModerationService) Delete(ctx context.Context, id int) (types.File, error) {
	file, err := s.files.Get(ctx, id)
	if err != nil {
		return types.File{}, err
	}

	key := file.RemoteKey
	if key == "" {
		// Records created before the key column existed carry only the URL.
		key, err = s.gateway.KeyFromURL(file.FileURL)
		if err != nil {
			s.log.Error(ctx, "cannot resolve remote key", "file_id", id, "url", file.FileURL, "err", err)
			return types.File{}, err
		}
	}

	if err := s.gateway.Remove(ctx, key); err != nil {
		s.log.Error(ctx, "remote delete failed, keeping catalogue record", "file_id", id, "key", key, "err", err)
		return types.File{}, err
	}

	if err := s.files.Delete(ctx, id); err != nil {
		return types.File{}, err
	}
	s.events.Publish(ctx, EventResourceDeleted, file)
	return file, nil
}
