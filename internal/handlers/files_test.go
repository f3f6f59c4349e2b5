package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Anupam-Kumar2505/djsce-resources/config"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/logging"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/media"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/services"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/store"
	"github.com/Anupam-Kumar2505/djsce-resources/types"
	"github.com/go-chi/chi/v5"
)

type fakeFiles struct {
	mu    sync.Mutex
	files map[int]types.File
	seq   int
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{files: map[int]types.File{}}
}

func (f *fakeFiles) add(file types.File) types.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	file.ID = f.seq
	f.files[file.ID] = file
	return file
}

func (f *fakeFiles) Get(ctx context.Context, id int) (types.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[id]
	if !ok {
		return types.File{}, store.ErrNotFound
	}
	return file, nil
}

func (f *fakeFiles) ListYears(ctx context.Context) ([]string, error) {
	return []string{"1", "2"}, nil
}

func (f *fakeFiles) ListByYear(ctx context.Context, year string) ([]types.File, []types.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	approved := []types.File{}
	pending := []types.File{}
	for id := 1; id <= f.seq; id++ {
		file, ok := f.files[id]
		if !ok || file.Year != year {
			continue
		}
		if file.Approved {
			approved = append(approved, file)
		} else {
			pending = append(pending, file)
		}
	}
	return approved, pending, nil
}

func (f *fakeFiles) ListApprovedByYear(ctx context.Context, year string) ([]types.File, error) {
	approved, _, err := f.ListByYear(ctx, year)
	return approved, err
}

func (f *fakeFiles) ListPending(ctx context.Context) ([]types.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pending := []types.File{}
	for id := 1; id <= f.seq; id++ {
		if file, ok := f.files[id]; ok && !file.Approved {
			pending = append(pending, file)
		}
	}
	return pending, nil
}

func (f *fakeFiles) Create(ctx context.Context, file types.File) (types.File, error) {
	file.Approved = false
	return f.add(file), nil
}

func (f *fakeFiles) UpdateFields(ctx context.Context, id int, name, subject, fileType string) (types.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
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

func (f *fakeFiles) Approve(ctx context.Context, id int) (types.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[id]
	if !ok {
		return types.File{}, store.ErrNotFound
	}
	file.Approved = true
	f.files[id] = file
	return file, nil
}

func (f *fakeFiles) Delete(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.files, id)
	return nil
}

type fakeMedia struct {
	mu        sync.Mutex
	removeErr error
	removed   []string
}

func (f *fakeMedia) Upload(ctx context.Context, localPath, folder, name string) (media.UploadResult, error) {
	key := folder + "/" + name
	return media.UploadResult{URL: "http://host/resources/" + key, Key: key}, nil
}

func (f *fakeMedia) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, key)
	return nil
}

func (f *fakeMedia) KeyFromURL(rawURL string) (string, error) {
	return strings.TrimPrefix(rawURL, "http://host/resources/"), nil
}

type testEnv struct {
	router  chi.Router
	users   *fakeUserRepo
	files   *fakeFiles
	gateway *fakeMedia
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newFakeUserRepo()
	files := newFakeFiles()
	gateway := &fakeMedia{}
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	uploadCfg := config.UploadConfig{
		TempDir:      t.TempDir(),
		MaxFiles:     3,
		MaxFileSize:  1 << 20,
		BatchTimeout: time.Minute,
	}

	resourceService := services.NewResourceService(files)
	uploadService := services.NewUploadService(files, gateway, services.NoopEvents{}, log, uploadCfg.MaxFiles, uploadCfg.BatchTimeout)
	moderationService := services.NewModerationService(files, gateway, services.NoopEvents{}, log)
	userService := services.NewUserService(users)

	router := chi.NewRouter()
	YearsRouter(router, resourceService)
	router.Route("/api", func(r chi.Router) {
		FilesRouter(r, resourceService, uploadService, moderationService, userService, RequireAuth(testSecret), uploadCfg)
	})

	return &testEnv{router: router, users: users, files: files, gateway: gateway}
}

func (e *testEnv) memberToken(t *testing.T) string {
	t.Helper()
	user := e.users.add(types.User{Username: fmt.Sprintf("member%d", e.users.seq+1), Role: types.RoleUser})
	token, err := issueToken(user.ID, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	user := e.users.add(types.User{Username: fmt.Sprintf("admin%d", e.users.seq+1), Role: types.RoleAdmin})
	token, err := issueToken(user.ID, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func multipartUpload(t *testing.T, fields map[string]string, fileNames ...string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		_ = writer.WriteField(key, value)
	}
	for _, name := range fileNames {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte("pdf bytes")); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func uploadFields() map[string]string {
	return map[string]string{
		"type":    types.TypeClassNotes,
		"subject": "Mathematics",
		"year":    "2",
	}
}

func doRequest(env *testEnv, req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestUpload_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, uploadFields(), "notes.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(env, req, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUpload_Success(t *testing.T) {
	env := newTestEnv(t)
	token := env.memberToken(t)

	body, contentType := multipartUpload(t, uploadFields(), "a.pdf", "b.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(env, req, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp UploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalRequested != 2 || resp.TotalUploaded != 2 {
		t.Fatalf("unexpected totals: %+v", resp)
	}
	for _, file := range resp.Files {
		if file.Approved {
			t.Fatalf("uploaded files must start unapproved: %+v", file)
		}
	}
}

func TestUpload_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	token := env.memberToken(t)

	fields := uploadFields()
	delete(fields, "subject")
	body, contentType := multipartUpload(t, fields, "notes.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(env, req, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUpload_NoFiles(t *testing.T) {
	env := newTestEnv(t)
	token := env.memberToken(t)

	body, contentType := multipartUpload(t, uploadFields())
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(env, req, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUpload_TooManyFiles(t *testing.T) {
	env := newTestEnv(t)
	token := env.memberToken(t)

	body, contentType := multipartUpload(t, uploadFields(), "a.pdf", "b.pdf", "c.pdf", "d.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(env, req, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListPending_AdminOnly(t *testing.T) {
	env := newTestEnv(t)
	env.files.add(types.File{Name: "notes.pdf", Year: "2"})

	memberRec := doRequest(env, httptest.NewRequest(http.MethodGet, "/api/pending", nil), env.memberToken(t))
	if memberRec.Code != http.StatusForbidden {
		t.Fatalf("member status %d: %s", memberRec.Code, memberRec.Body.String())
	}

	adminRec := doRequest(env, httptest.NewRequest(http.MethodGet, "/api/pending", nil), env.adminToken(t))
	if adminRec.Code != http.StatusOK {
		t.Fatalf("admin status %d: %s", adminRec.Code, adminRec.Body.String())
	}
	var resp PendingResponse
	if err := json.NewDecoder(adminRec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("unexpected count: %d", resp.Count)
	}
}

func TestApproveFile(t *testing.T) {
	env := newTestEnv(t)
	file := env.files.add(types.File{Name: "notes.pdf", Year: "2"})

	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/api/file/%d/approve", file.ID), nil)
	rec := doRequest(env, req, env.adminToken(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp FileResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.File.Approved {
		t.Fatalf("approval flag not set: %+v", resp.File)
	}
}

func TestApproveFile_MemberForbidden(t *testing.T) {
	env := newTestEnv(t)
	file := env.files.add(types.File{Name: "notes.pdf", Year: "2"})

	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/api/file/%d/approve", file.ID), nil)
	rec := doRequest(env, req, env.memberToken(t))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteFile_Success(t *testing.T) {
	env := newTestEnv(t)
	file := env.files.add(types.File{
		Name:      "notes.pdf",
		Year:      "2",
		RemoteKey: "resources/year_2/notes.pdf",
		FileURL:   "http://host/resources/resources/year_2/notes.pdf",
	})

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/file/%d", file.ID), nil)
	rec := doRequest(env, req, env.adminToken(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp DeletedFileResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.DeletedFile.ID != file.ID {
		t.Fatalf("unexpected deleted file: %+v", resp.DeletedFile)
	}
	if len(env.gateway.removed) != 1 {
		t.Fatalf("remote object not removed: %v", env.gateway.removed)
	}
}

func TestDeleteFile_RemoteFailureKeepsRecord(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.removeErr = fmt.Errorf("%w: host down", media.ErrRemoteRemove)
	file := env.files.add(types.File{
		Name:      "notes.pdf",
		Year:      "2",
		RemoteKey: "resources/year_2/notes.pdf",
	})

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/file/%d", file.ID), nil)
	rec := doRequest(env, req, env.adminToken(t))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "media host") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
	if _, err := env.files.Get(context.Background(), file.ID); err != nil {
		t.Fatalf("record must survive a failed remote delete: %v", err)
	}
}

func TestEditFile(t *testing.T) {
	env := newTestEnv(t)
	file := env.files.add(types.File{
		Name:    "notes.pdf",
		Subject: "Mathematics",
		Type:    types.TypeClassNotes,
		Year:    "2",
	})

	payload, _ := json.Marshal(EditRequest{Subject: "Physics"})
	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/file/%d", file.ID), bytes.NewReader(payload))
	rec := doRequest(env, req, env.adminToken(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp FileResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.File.Subject != "Physics" || resp.File.Name != "notes.pdf" {
		t.Fatalf("unexpected merge result: %+v", resp.File)
	}
}

func TestEditFile_EmptyPayload(t *testing.T) {
	env := newTestEnv(t)
	file := env.files.add(types.File{Name: "notes.pdf", Year: "2"})

	payload, _ := json.Marshal(EditRequest{})
	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/file/%d", file.ID), bytes.NewReader(payload))
	rec := doRequest(env, req, env.adminToken(t))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRenameFile_RequiresSession(t *testing.T) {
	env := newTestEnv(t)
	file := env.files.add(types.File{Name: "notes.pdf", Year: "2"})

	payload, _ := json.Marshal(RenameRequest{Name: "renamed.pdf"})
	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/api/files/%d", file.ID), bytes.NewReader(payload))
	rec := doRequest(env, req, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRenameFile_MemberAllowed(t *testing.T) {
	env := newTestEnv(t)
	file := env.files.add(types.File{Name: "notes.pdf", Year: "2"})

	payload, _ := json.Marshal(RenameRequest{Name: "renamed.pdf"})
	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/api/files/%d", file.ID), bytes.NewReader(payload))
	rec := doRequest(env, req, env.memberToken(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp FileResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.File.Name != "renamed.pdf" {
		t.Fatalf("unexpected name: %q", resp.File.Name)
	}
}

func TestYearListing_Public(t *testing.T) {
	env := newTestEnv(t)
	env.files.add(types.File{Name: "a.pdf", Year: "2", Approved: true})
	env.files.add(types.File{Name: "b.pdf", Year: "2"})

	rec := doRequest(env, httptest.NewRequest(http.MethodGet, "/year/2", nil), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp YearListingResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Files) != 1 || len(resp.PendingFiles) != 1 {
		t.Fatalf("unexpected listing: %+v", resp)
	}
}

func TestYearListing_ApprovedOnly(t *testing.T) {
	env := newTestEnv(t)
	env.files.add(types.File{Name: "a.pdf", Year: "2", Approved: true})
	env.files.add(types.File{Name: "b.pdf", Year: "2"})

	rec := doRequest(env, httptest.NewRequest(http.MethodGet, "/year/2?approvedOnly=true", nil), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp YearListingResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Files) != 1 || resp.Files[0].Name != "a.pdf" {
		t.Fatalf("unexpected approved listing: %+v", resp.Files)
	}
	if len(resp.PendingFiles) != 0 {
		t.Fatalf("pending files must not leak into the approved-only listing: %+v", resp.PendingFiles)
	}
}

func TestYearListing_InvalidYear(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(env, httptest.NewRequest(http.MethodGet, "/year/9", nil), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}
