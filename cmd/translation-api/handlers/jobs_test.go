package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traduceo/translation-engine/internal/blob"
	"github.com/traduceo/translation-engine/internal/cache"
	"github.com/traduceo/translation-engine/internal/observability"
	"github.com/traduceo/translation-engine/internal/pipeline"
	"github.com/traduceo/translation-engine/internal/storage"
)

type fakeJobStore struct {
	jobs   map[string]*storage.TranslationJob
	events []*storage.JobEvent
	pages  map[string][]*storage.JobPage
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		jobs:  map[string]*storage.TranslationJob{},
		pages: map[string][]*storage.JobPage{},
	}
}

func (s *fakeJobStore) Create(ctx context.Context, job *storage.TranslationJob) error {
	if job.ID == "" {
		job.ID = "job-" + time.Now().Format("150405.000000000")
	}
	if job.Status == "" {
		job.Status = storage.JobStatusQueued
	}
	if job.CurrentStage == "" {
		job.CurrentStage = storage.StagePrepare
	}
	if job.EnginePreference == "" {
		job.EnginePreference = "auto"
	}
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	s.jobs[job.ID] = job
	return nil
}

func (s *fakeJobStore) GetByID(ctx context.Context, id string) (*storage.TranslationJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *fakeJobStore) List(ctx context.Context, userID string, limit, offset int) ([]*storage.TranslationJob, error) {
	var out []*storage.TranslationJob
	for _, job := range s.jobs {
		if userID != "" && job.UserID != userID {
			continue
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeJobStore) Update(ctx context.Context, id string, upd storage.JobUpdate) error {
	job, ok := s.jobs[id]
	if !ok {
		return storage.ErrNotFound
	}
	if upd.Status != nil {
		job.Status = *upd.Status
	}
	if upd.CancelledAt != nil {
		job.CancelledAt = sql.NullTime{Time: *upd.CancelledAt, Valid: true}
	}
	job.UpdatedAt = time.Now()
	return nil
}

func (s *fakeJobStore) InsertEvent(ctx context.Context, ev *storage.JobEvent) error {
	ev.CreatedAt = time.Now()
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeJobStore) ListEvents(ctx context.Context, jobID string) ([]*storage.JobEvent, error) {
	var out []*storage.JobEvent
	for _, ev := range s.events {
		if ev.JobID == jobID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *fakeJobStore) ListPages(ctx context.Context, jobID string) ([]*storage.JobPage, error) {
	return s.pages[jobID], nil
}

type fakeEnqueuer struct {
	jobIDs []string
}

func (e *fakeEnqueuer) Enqueue(ctx context.Context, jobID string) error {
	e.jobIDs = append(e.jobIDs, jobID)
	return nil
}

func testLogger() *observability.Logger {
	return observability.Nop()
}

func newTestRouter(h *JobsHandler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Route("/{jobId}", func(r chi.Router) {
			r.Get("/", h.Detail)
			r.Get("/status", h.Status)
			r.Post("/cancel", h.Cancel)
			r.Get("/download", h.Download)
			r.Get("/preview", h.Preview)
		})
	})
	return r
}

func multipartUpload(t *testing.T, fields map[string]string, fileName string, fileBody []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(fileBody)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func TestCreateJobStoresSourceAndEnqueues(t *testing.T) {
	store := newFakeJobStore()
	sources := blob.NewMemoryStore()
	enqueuer := &fakeEnqueuer{}
	h := NewJobsHandler(testLogger(), store, sources, nil, nil, enqueuer, nil, 0)

	body, contentType := multipartUpload(t, map[string]string{
		"targetLanguage": "de",
		"title":          "Manual",
		"ocrEnabled":     "true",
	}, "user manual (v2).pdf", []byte("%PDF-1.4 test"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Job JobDTO `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "de", resp.Job.TargetLanguage)
	assert.Equal(t, "user-1", resp.Job.UserID)
	assert.Equal(t, "queued", resp.Job.Status)
	assert.Equal(t, "prepare", resp.Job.CurrentStage)
	assert.True(t, resp.Job.OCREnabled)
	assert.True(t, strings.HasPrefix(resp.Job.SourceFileKey, "sources/user-1/"))
	assert.Contains(t, resp.Job.SourceFileKey, "user-manual-v2-.pdf")

	// Source document must be retrievable under the recorded key
	data, err := sources.Get(context.Background(), resp.Job.SourceFileKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 test"), data)

	// Creation event and queue hand-off
	require.Len(t, store.events, 1)
	assert.Equal(t, "Job created and awaiting processing", store.events[0].Message)
	assert.Equal(t, storage.EventQueued, store.events[0].Status)
	assert.Equal(t, storage.StagePrepare, store.events[0].Stage)
	assert.Equal(t, []string{resp.Job.ID}, enqueuer.jobIDs)
}

func TestCreateJobRequiresFileAndTargetLanguage(t *testing.T) {
	h := NewJobsHandler(testLogger(), newFakeJobStore(), blob.NewMemoryStore(), nil, nil, nil, nil, 0)
	router := newTestRouter(h)

	// No file part
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("targetLanguage", "fr"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE_REQUIRED")

	// No target language
	body, contentType := multipartUpload(t, nil, "doc.pdf", []byte("%PDF-1.4"))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
}

func TestCancelJob(t *testing.T) {
	store := newFakeJobStore()
	store.jobs["j1"] = &storage.TranslationJob{
		ID:           "j1",
		UserID:       "user-1",
		Status:       storage.JobStatusProcessing,
		CurrentStage: storage.StageTranslate,
	}
	h := NewJobsHandler(testLogger(), store, blob.NewMemoryStore(), nil, nil, nil, nil, 0)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/j1/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, storage.JobStatusCancelled, store.jobs["j1"].Status)
	assert.True(t, store.jobs["j1"].CancelledAt.Valid)
	require.Len(t, store.events, 1)
	assert.Equal(t, "Job cancelled by user", store.events[0].Message)
	assert.Equal(t, storage.StageTranslate, store.events[0].Stage)
	assert.Equal(t, storage.EventCancelled, store.events[0].Status)
}

func TestCancelJobRejections(t *testing.T) {
	store := newFakeJobStore()
	store.jobs["done"] = &storage.TranslationJob{
		ID:     "done",
		UserID: "user-1",
		Status: storage.JobStatusCompleted,
	}
	store.jobs["busy"] = &storage.TranslationJob{
		ID:     "busy",
		UserID: "user-1",
		Status: storage.JobStatusProcessing,
	}
	h := NewJobsHandler(testLogger(), store, blob.NewMemoryStore(), nil, nil, nil, nil, 0)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/missing/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")

	req = httptest.NewRequest(http.MethodPost, "/api/v1/jobs/done/cancel", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ALREADY_COMPLETED")

	req = httptest.NewRequest(http.MethodPost, "/api/v1/jobs/busy/cancel", nil)
	req.Header.Set("X-User-ID", "somebody-else")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, storage.JobStatusProcessing, store.jobs["busy"].Status)
}

func TestDownloadInlineOutput(t *testing.T) {
	store := newFakeJobStore()
	store.jobs["j1"] = &storage.TranslationJob{
		ID:            "j1",
		Status:        storage.JobStatusCompleted,
		Title:         sql.NullString{String: "Manual.pdf", Valid: true},
		OutputFileKey: sql.NullString{String: pipeline.InlinePDF([]byte("%PDF-1.4 output")), Valid: true},
	}
	h := NewJobsHandler(testLogger(), store, blob.NewMemoryStore(), nil, nil, nil, nil, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/j1/download", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Manual.pdf")
	assert.Equal(t, "%PDF-1.4 output", rec.Body.String())
}

func TestDownloadFromObjectStore(t *testing.T) {
	store := newFakeJobStore()
	artifacts := blob.NewMemoryStore()
	require.NoError(t, artifacts.Put(context.Background(),
		"outputs/anonymous/j1/123.pdf", []byte("%PDF-1.4 stored"), "application/pdf"))
	store.jobs["j1"] = &storage.TranslationJob{
		ID:            "j1",
		Status:        storage.JobStatusCompleted,
		OutputFileKey: sql.NullString{String: "outputs/anonymous/j1/123.pdf", Valid: true},
	}
	h := NewJobsHandler(testLogger(), store, blob.NewMemoryStore(), artifacts, nil, nil, nil, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/j1/download", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.4 stored", rec.Body.String())
}

func TestPreviewNotReady(t *testing.T) {
	store := newFakeJobStore()
	store.jobs["j1"] = &storage.TranslationJob{ID: "j1", Status: storage.JobStatusProcessing}
	h := NewJobsHandler(testLogger(), store, blob.NewMemoryStore(), nil, nil, nil, nil, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/j1/preview", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_READY")
}

func TestStatusPrefersCache(t *testing.T) {
	store := newFakeJobStore()
	store.jobs["j1"] = &storage.TranslationJob{
		ID:           "j1",
		Status:       storage.JobStatusProcessing,
		CurrentStage: storage.StagePrepare,
		Progress:     14,
	}
	cacheClient := cache.NewMemoryClient()
	require.NoError(t, cache.StoreProgress(context.Background(), cacheClient, cache.ProgressSnapshot{
		JobID:    "j1",
		Status:   "processing",
		Stage:    "translate",
		Progress: 57,
	}))
	h := NewJobsHandler(testLogger(), store, blob.NewMemoryStore(), nil, cacheClient, nil, nil, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/j1/status", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snap cache.ProgressSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "translate", snap.Stage)
	assert.Equal(t, 57, snap.Progress)
}

func TestStatusFallsBackToDatabase(t *testing.T) {
	store := newFakeJobStore()
	store.jobs["j1"] = &storage.TranslationJob{
		ID:           "j1",
		Status:       storage.JobStatusCompleted,
		CurrentStage: storage.StagePublish,
		Progress:     100,
	}
	h := NewJobsHandler(testLogger(), store, blob.NewMemoryStore(), nil, cache.NewMemoryClient(), nil, nil, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/j1/status", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snap cache.ProgressSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "completed", snap.Status)
	assert.Equal(t, 100, snap.Progress)
}

func TestListFiltersByUser(t *testing.T) {
	store := newFakeJobStore()
	store.jobs["a"] = &storage.TranslationJob{ID: "a", UserID: "user-1", Status: storage.JobStatusQueued}
	store.jobs["b"] = &storage.TranslationJob{ID: "b", UserID: "user-2", Status: storage.JobStatusQueued}
	h := NewJobsHandler(testLogger(), store, blob.NewMemoryStore(), nil, nil, nil, nil, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs?userId=user-1", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Jobs []JobDTO `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "a", resp.Jobs[0].ID)
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "user-manual-v2-.pdf", sanitizeFileName("user manual (v2).pdf"))
	assert.Equal(t, "document.pdf", sanitizeFileName("???"))
	assert.Equal(t, "report.pdf", sanitizeFileName("--report.pdf--"))
}
