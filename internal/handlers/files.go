package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Anupam-Kumar2505/djsce-resources/config"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/media"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/services"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/store"
	"github.com/Anupam-Kumar2505/djsce-resources/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	maxMultipartMemory = 32 << 20

	formFieldFiles   = "files"
	formFieldType    = "type"
	formFieldSubject = "subject"
	formFieldYear    = "year"
)

// FilesHandler provides the upload and moderation HTTP surface.
type FilesHandler struct {
	resourceService   *services.ResourceService
	uploadService     *services.UploadService
	moderationService *services.ModerationService
	uploadCfg         config.UploadConfig
}

// NewFilesHandler constructs a handler with the provided services.
func NewFilesHandler(
	resourceService *services.ResourceService,
	uploadService *services.UploadService,
	moderationService *services.ModerationService,
	uploadCfg config.UploadConfig,
) *FilesHandler {
	return &FilesHandler{
		resourceService:   resourceService,
		uploadService:     uploadService,
		moderationService: moderationService,
		uploadCfg:         uploadCfg,
	}
}

// FilesRouter registers upload and moderation routes. Every mutating route
// requires at least session auth; moderation routes require the admin role.
func FilesRouter(
	r chi.Router,
	resourceService *services.ResourceService,
	uploadService *services.UploadService,
	moderationService *services.ModerationService,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
	uploadCfg config.UploadConfig,
) {
	handler := NewFilesHandler(resourceService, uploadService, moderationService, uploadCfg)

	requireAdmin := adminOnly(userService)

	r.With(authMiddleware).Post("/upload", handler.Upload)
	r.With(authMiddleware).Patch("/files/{fileID}", handler.RenameFile)
	r.With(authMiddleware, requireAdmin).Get("/pending", handler.ListPending)
	r.Route("/file/{fileID}", func(r chi.Router) {
		r.Use(authMiddleware, requireAdmin)
		r.Put("/", handler.EditFile)
		r.Patch("/approve", handler.ApproveFile)
		r.Delete("/", handler.DeleteFile)
	})
}

// Upload handles a multipart batch: spools each file to local temp storage,
// then hands the batch to the upload workflow. Partial success is reported
// with warnings, not failure.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	fileType := strings.TrimSpace(r.FormValue(formFieldType))
	subject := strings.TrimSpace(r.FormValue(formFieldSubject))
	year := strings.TrimSpace(r.FormValue(formFieldYear))
	if fileType == "" || subject == "" || year == "" {
		writeError(w, http.StatusBadRequest, "type, subject, and year are required")
		return
	}

	form := r.MultipartForm
	if form == nil || len(form.File[formFieldFiles]) == 0 {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	fileHeaders := form.File[formFieldFiles]
	if len(fileHeaders) > h.uploadCfg.MaxFiles {
		writeError(w, http.StatusBadRequest, "too many files in one upload")
		return
	}
	for _, fileHeader := range fileHeaders {
		if fileHeader.Size > h.uploadCfg.MaxFileSize {
			writeError(w, http.StatusBadRequest, fileHeader.Filename+" exceeds the file size limit")
			return
		}
	}

	items, err := h.spoolUploads(fileHeaders)
	if err != nil {
		services.SweepTempFiles(items)
		writeError(w, http.StatusInternalServerError, "failed to store uploads")
		return
	}

	result, err := h.uploadService.UploadBatch(r.Context(), services.BatchInput{
		Type:    fileType,
		Subject: subject,
		Year:    year,
		Items:   items,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrBatchFailed):
			writeJSON(w, http.StatusInternalServerError, UploadFailureResponse{
				Error:    "all uploads failed",
				Warnings: result.Warnings,
			})
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusInternalServerError, "upload timed out")
		default:
			writeError(w, http.StatusInternalServerError, "upload failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Files:          result.Files,
		TotalRequested: result.TotalRequested,
		TotalUploaded:  result.TotalUploaded,
		Warnings:       result.Warnings,
	})
}

// RenameFile updates only the display name. Requires session auth.
func (h *FilesHandler) RenameFile(w http.ResponseWriter, r *http.Request) {
	id, err := parseFileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "file name is required")
		return
	}

	file, err := h.resourceService.Rename(r.Context(), id, req.Name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update file")
		return
	}
	writeJSON(w, http.StatusOK, FileResponse{File: file})
}

// ListPending returns all unapproved files. Admin only.
func (h *FilesHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.resourceService.ListPending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pending files")
		return
	}
	writeJSON(w, http.StatusOK, PendingResponse{PendingFiles: pending, Count: len(pending)})
}

// EditFile merges name/subject/type changes. Admin only.
func (h *FilesHandler) EditFile(w http.ResponseWriter, r *http.Request) {
	id, err := parseFileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	file, err := h.moderationService.Edit(r.Context(), id, services.EditInput{
		Name:    req.Name,
		Subject: req.Subject,
		Type:    req.Type,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "file not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update file")
		}
		return
	}
	writeJSON(w, http.StatusOK, FileResponse{File: file})
}

// ApproveFile flips the approval flag. Admin only.
func (h *FilesHandler) ApproveFile(w http.ResponseWriter, r *http.Request) {
	id, err := parseFileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, err := h.moderationService.Approve(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to approve file")
		return
	}
	writeJSON(w, http.StatusOK, FileResponse{File: file})
}

// DeleteFile removes the remote object and then the catalogue record.
// Admin only. Rejecting a pending file uses this same endpoint.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := parseFileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, err := h.moderationService.Delete(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "file not found")
		case errors.Is(err, media.ErrRemoteRemove):
			writeError(w, http.StatusInternalServerError, "failed to remove file from media host")
		default:
			writeError(w, http.StatusInternalServerError, "failed to delete file")
		}
		return
	}
	writeJSON(w, http.StatusOK, DeletedFileResponse{DeletedFile: file})
}

// spoolUploads writes each part to the temp directory under a
// request-unique name so concurrent batches never collide.
func (h *FilesHandler) spoolUploads(fileHeaders []*multipart.FileHeader) ([]services.UploadItem, error) {
	if err := os.MkdirAll(h.uploadCfg.TempDir, 0o755); err != nil {
		return nil, err
	}

	items := make([]services.UploadItem, 0, len(fileHeaders))
	for _, fileHeader := range fileHeaders {
		src, err := fileHeader.Open()
		if err != nil {
			return items, err
		}

		name := filepath.Base(fileHeader.Filename)
		tempPath := filepath.Join(h.uploadCfg.TempDir, uuid.NewString()+"-"+name)
		dst, err := os.Create(tempPath)
		if err != nil {
			_ = src.Close()
			return items, err
		}

		_, err = io.Copy(dst, src)
		_ = src.Close()
		if closeErr := dst.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(tempPath)
			return items, err
		}

		items = append(items, services.UploadItem{
			TempPath:     tempPath,
			OriginalName: name,
		})
	}
	return items, nil
}

type RenameRequest struct {
	Name string `json:"name"`
}

type EditRequest struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Type    string `json:"type"`
}

type FileResponse struct {
	File types.File `json:"file"`
}

type DeletedFileResponse struct {
	DeletedFile types.File `json:"deletedFile"`
}

type PendingResponse struct {
	PendingFiles []types.File `json:"pendingFiles"`
	Count        int          `json:"count"`
}

type UploadResponse struct {
	Files          []types.File `json:"files"`
	TotalRequested int          `json:"totalRequested"`
	TotalUploaded  int          `json:"totalUploaded"`
	Warnings       []string     `json:"warnings,omitempty"`
}

type UploadFailureResponse struct {
	Error    string   `json:"error"`
	Warnings []string `json:"warnings"`
}

func parseFileID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "fileID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid file id")
	}
	return id, nil
}
