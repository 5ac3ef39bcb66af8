// Package handlers provides HTTP handlers for the translation API.
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/traduceo/translation-engine/internal/blob"
	"github.com/traduceo/translation-engine/internal/cache"
	"github.com/traduceo/translation-engine/internal/observability"
	"github.com/traduceo/translation-engine/internal/pipeline"
	"github.com/traduceo/translation-engine/internal/storage"
)

// JobStore is the slice of the storage layer the handlers drive.
type JobStore interface {
	Create(ctx context.Context, job *storage.TranslationJob) error
	GetByID(ctx context.Context, id string) (*storage.TranslationJob, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*storage.TranslationJob, error)
	Update(ctx context.Context, id string, upd storage.JobUpdate) error
	InsertEvent(ctx context.Context, ev *storage.JobEvent) error
	ListEvents(ctx context.Context, jobID string) ([]*storage.JobEvent, error)
	ListPages(ctx context.Context, jobID string) ([]*storage.JobPage, error)
}

// Enqueuer hands a created job to the worker queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

// Runner executes a job in-process when no queue is configured.
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

// JobsHandler handles translation job requests.
type JobsHandler struct {
	logger         *observability.Logger
	jobs           JobStore
	sources        blob.Store
	artifacts      blob.Store
	cache          cache.Client
	enqueuer       Enqueuer
	runner         Runner
	maxUploadBytes int64
	now            func() time.Time
}

// NewJobsHandler creates a new jobs handler. The enqueuer may be nil, in
// which case created jobs are run in-process through the runner. The
// artifacts store may be nil when no object store is configured.
func NewJobsHandler(logger *observability.Logger, jobs JobStore, sources, artifacts blob.Store, cacheClient cache.Client, enqueuer Enqueuer, runner Runner, maxUploadBytes int64) *JobsHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 64 << 20
	}
	return &JobsHandler{
		logger:         logger,
		jobs:           jobs,
		sources:        sources,
		artifacts:      artifacts,
		cache:          cacheClient,
		enqueuer:       enqueuer,
		runner:         runner,
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
	}
}

// JobDTO represents a translation job in API responses.
type JobDTO struct {
	ID               string  `json:"id"`
	UserID           string  `json:"userId"`
	TeamID           *string `json:"teamId"`
	Title            *string `json:"title"`
	SourceLanguage   *string `json:"sourceLanguage"`
	TargetLanguage   string  `json:"targetLanguage"`
	Industry         *string `json:"industry"`
	GlossaryID       *string `json:"glossaryId"`
	EnginePreference string  `json:"enginePreference"`
	OCREnabled       bool    `json:"ocrEnabled"`
	Priority         int     `json:"priority"`
	Status           string  `json:"status"`
	CurrentStage     string  `json:"currentStage"`
	Progress         int     `json:"progress"`
	SourceFileKey    string  `json:"sourceFileKey"`
	SourceFileName   *string `json:"sourceFileName"`
	SourceFileSize   int64   `json:"sourceFileSize"`
	OutputFileKey    *string `json:"outputFileKey"`
	PreviewBundleKey *string `json:"previewBundleKey"`
	PageCount        int     `json:"pageCount"`
	SegmentCount     int     `json:"segmentCount"`
	ErrorMessage     *string `json:"errorMessage"`
	CreatedAt        string  `json:"createdAt"`
	UpdatedAt        string  `json:"updatedAt"`
	StartedAt        *string `json:"startedAt"`
	CompletedAt      *string `json:"completedAt"`
	CancelledAt      *string `json:"cancelledAt"`
}

// PageDTO represents one page of a job in API responses.
type PageDTO struct {
	ID                 string  `json:"id"`
	PageNumber         int     `json:"pageNumber"`
	Width              int     `json:"width"`
	Height             int     `json:"height"`
	Rotation           int     `json:"rotation"`
	BackgroundAssetKey *string `json:"backgroundAssetKey"`
	OCRJSONAssetKey    *string `json:"ocrJsonAssetKey"`
}

// EventDTO represents one job event in API responses.
type EventDTO struct {
	ID        string  `json:"id"`
	Stage     string  `json:"stage"`
	Status    string  `json:"status"`
	Message   string  `json:"message"`
	Meta      *string `json:"meta"`
	CreatedAt string  `json:"createdAt"`
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9.\-_]+`)
var dashRuns = regexp.MustCompile(`-+`)

func sanitizeFileName(name string) string {
	base := unsafeNameChars.ReplaceAllString(name, "-")
	base = dashRuns.ReplaceAllString(base, "-")
	trimmed := strings.Trim(base, "-")
	if trimmed == "" {
		trimmed = "document.pdf"
	}
	if len(trimmed) > 120 {
		trimmed = trimmed[:120]
	}
	return trimmed
}

func resolveBoolean(value string) bool {
	switch value {
	case "true", "TRUE", "True", "1", "yes", "on":
		return true
	}
	return false
}

func userScope(userID string) string {
	if userID == "" {
		return "anonymous"
	}
	return userID
}

// Create handles POST /jobs: a multipart upload that stores the source
// document and records the job for processing.
func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "FILE_REQUIRED", "")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		h.writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			fmt.Sprintf("maximum upload size is %d bytes", h.maxUploadBytes))
		return
	}

	targetLanguage := r.FormValue("targetLanguage")
	if targetLanguage == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_INPUT", "targetLanguage is required")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read upload", err.Error())
		return
	}

	userID := r.Header.Get("X-User-ID")
	if v := r.FormValue("userId"); v != "" {
		userID = v
	}

	safeName := sanitizeFileName(header.Filename)
	now := h.now()
	objectKey := fmt.Sprintf("sources/%s/%s/%d-%s-%s",
		userScope(userID), now.Format("2006-01-02"), now.UnixMilli(), uuid.NewString(), safeName)

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}

	if err := h.sources.Put(ctx, objectKey, data, contentType); err != nil {
		h.logger.Error().Err(err).Str("key", objectKey).Msg("Failed to store source document")
		h.writeError(w, http.StatusInternalServerError, "failed to store source document", err.Error())
		return
	}

	priority := 0
	if v := r.FormValue("priority"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			priority = n
		}
	}

	title := r.FormValue("title")
	if title == "" {
		title = safeName
	}

	job := &storage.TranslationJob{
		UserID:           userID,
		TeamID:           nullString(r.FormValue("teamId")),
		Title:            nullString(title),
		SourceLanguage:   nullString(r.FormValue("sourceLanguage")),
		TargetLanguage:   targetLanguage,
		Industry:         nullString(r.FormValue("industry")),
		GlossaryID:       nullString(r.FormValue("glossaryId")),
		EnginePreference: r.FormValue("enginePreference"),
		OCREnabled:       resolveBoolean(r.FormValue("ocrEnabled")),
		Priority:         priority,
		SourceFileKey:    objectKey,
		SourceFileName:   nullString(header.Filename),
		SourceFileSize:   header.Size,
		SourceFileMime:   nullString(contentType),
	}

	if err := h.jobs.Create(ctx, job); err != nil {
		h.logger.Error().Err(err).Msg("Failed to create job")
		h.writeError(w, http.StatusInternalServerError, "failed to create job", err.Error())
		return
	}

	meta, _ := json.Marshal(map[string]any{
		"userId":        userID,
		"teamId":        r.FormValue("teamId"),
		"sourceFileKey": objectKey,
	})
	if err := h.jobs.InsertEvent(ctx, &storage.JobEvent{
		JobID:   job.ID,
		Stage:   storage.StagePrepare,
		Status:  storage.EventQueued,
		Message: "Job created and awaiting processing",
		Meta:    sql.NullString{String: string(meta), Valid: true},
	}); err != nil {
		h.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to record creation event")
	}

	h.logger.Info().
		Str("job_id", job.ID).
		Str("target_language", targetLanguage).
		Int64("size", header.Size).
		Msg("Translation job created")

	h.dispatch(job.ID)

	h.writeJSON(w, http.StatusCreated, map[string]any{"job": toJobDTO(job)})
}

// dispatch hands the job to the queue, or runs it in-process when no
// queue is configured.
func (h *JobsHandler) dispatch(jobID string) {
	if h.enqueuer != nil {
		err := h.enqueuer.Enqueue(context.Background(), jobID)
		if err == nil {
			return
		}
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to enqueue job, falling back to in-process run")
	}
	if h.runner != nil {
		go func() {
			if err := h.runner.Run(context.Background(), jobID); err != nil {
				h.logger.Error().Err(err).Str("job_id", jobID).Msg("In-process job run failed")
			}
		}()
	}
}

// List handles GET /jobs.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = r.Header.Get("X-User-ID")
	}

	limit := 25
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	jobs, err := h.jobs.List(ctx, userID, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		h.writeError(w, http.StatusInternalServerError, "failed to list jobs", err.Error())
		return
	}

	dtos := make([]*JobDTO, 0, len(jobs))
	for _, job := range jobs {
		dtos = append(dtos, toJobDTO(job))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"jobs": dtos})
}

// Detail handles GET /jobs/{jobId}: the job with its pages and events.
func (h *JobsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")

	job, err := h.jobs.GetByID(ctx, jobID)
	if err != nil {
		h.jobError(w, jobID, err)
		return
	}

	pages, err := h.jobs.ListPages(ctx, jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to list pages")
		h.writeError(w, http.StatusInternalServerError, "failed to load pages", err.Error())
		return
	}

	events, err := h.jobs.ListEvents(ctx, jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to list events")
		h.writeError(w, http.StatusInternalServerError, "failed to load events", err.Error())
		return
	}

	pageDTOs := make([]*PageDTO, 0, len(pages))
	for _, p := range pages {
		pageDTOs = append(pageDTOs, &PageDTO{
			ID:                 p.ID,
			PageNumber:         p.PageNumber,
			Width:              p.Width,
			Height:             p.Height,
			Rotation:           p.Rotation,
			BackgroundAssetKey: nullStr(p.BackgroundAssetKey),
			OCRJSONAssetKey:    nullStr(p.OCRJSONAssetKey),
		})
	}

	eventDTOs := make([]*EventDTO, 0, len(events))
	for _, ev := range events {
		eventDTOs = append(eventDTOs, &EventDTO{
			ID:        ev.ID,
			Stage:     string(ev.Stage),
			Status:    string(ev.Status),
			Message:   ev.Message,
			Meta:      nullStr(ev.Meta),
			CreatedAt: ev.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"job":    toJobDTO(job),
		"pages":  pageDTOs,
		"events": eventDTOs,
	})
}

// Status handles GET /jobs/{jobId}/status. The progress cache is consulted
// first; the database is only hit on a miss.
func (h *JobsHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")

	if snap, err := cache.LoadProgress(ctx, h.cache, jobID); err == nil {
		h.writeJSON(w, http.StatusOK, snap)
		return
	}

	job, err := h.jobs.GetByID(ctx, jobID)
	if err != nil {
		h.jobError(w, jobID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, cache.ProgressSnapshot{
		JobID:     job.ID,
		Status:    string(job.Status),
		Stage:     string(job.CurrentStage),
		Progress:  job.Progress,
		UpdatedAt: job.UpdatedAt,
	})
}

// Cancel handles POST /jobs/{jobId}/cancel.
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")

	job, err := h.jobs.GetByID(ctx, jobID)
	if err != nil {
		h.jobError(w, jobID, err)
		return
	}

	if userID := r.Header.Get("X-User-ID"); userID != "" && job.UserID != "" && job.UserID != userID {
		h.writeError(w, http.StatusForbidden, "FORBIDDEN", "")
		return
	}

	switch job.Status {
	case storage.JobStatusCompleted, storage.JobStatusCancelled, storage.JobStatusFailed:
		h.writeError(w, http.StatusBadRequest, "ALREADY_COMPLETED", "")
		return
	}

	now := h.now()
	cancelled := storage.JobStatusCancelled
	if err := h.jobs.Update(ctx, jobID, storage.JobUpdate{
		Status:      &cancelled,
		CancelledAt: &now,
	}); err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to cancel job")
		h.writeError(w, http.StatusInternalServerError, "failed to cancel job", err.Error())
		return
	}

	if err := h.jobs.InsertEvent(ctx, &storage.JobEvent{
		JobID:   jobID,
		Stage:   job.CurrentStage,
		Status:  storage.EventCancelled,
		Message: "Job cancelled by user",
	}); err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to record cancellation event")
	}

	h.logger.Info().Str("job_id", jobID).Msg("Job cancelled")
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Download handles GET /jobs/{jobId}/download: streams the rendered PDF.
func (h *JobsHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")

	job, err := h.jobs.GetByID(ctx, jobID)
	if err != nil {
		h.jobError(w, jobID, err)
		return
	}

	if !job.OutputFileKey.Valid || job.OutputFileKey.String == "" {
		h.writeError(w, http.StatusBadRequest, "NOT_READY", "")
		return
	}

	filename := "translated.pdf"
	if job.Title.Valid && job.Title.String != "" {
		filename = job.Title.String
	} else if job.SourceFileName.Valid && job.SourceFileName.String != "" {
		filename = job.SourceFileName.String
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	h.serveArtifact(ctx, w, job.OutputFileKey.String, "application/pdf", "OUTPUT_NOT_AVAILABLE")
}

// Preview handles GET /jobs/{jobId}/preview: streams the HTML preview.
func (h *JobsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")

	job, err := h.jobs.GetByID(ctx, jobID)
	if err != nil {
		h.jobError(w, jobID, err)
		return
	}

	if !job.PreviewBundleKey.Valid || job.PreviewBundleKey.String == "" {
		h.writeError(w, http.StatusBadRequest, "NOT_READY", "")
		return
	}

	h.serveArtifact(ctx, w, job.PreviewBundleKey.String, "text/html; charset=utf-8", "PREVIEW_NOT_AVAILABLE")
}

// serveArtifact resolves an artifact key, decoding inline payloads and
// falling back to the object store.
func (h *JobsHandler) serveArtifact(ctx context.Context, w http.ResponseWriter, key, contentType, missingError string) {
	if data, ok := pipeline.DecodeInline(key); ok {
		w.Header().Set("Content-Type", contentType)
		w.Write(data)
		return
	}

	store := h.artifacts
	if store == nil {
		store = h.sources
	}
	data, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, missingError, "")
			return
		}
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to fetch artifact")
		h.writeError(w, http.StatusInternalServerError, "failed to fetch artifact", err.Error())
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

func (h *JobsHandler) jobError(w http.ResponseWriter, jobID string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "")
		return
	}
	h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to load job")
	h.writeError(w, http.StatusInternalServerError, "failed to load job", err.Error())
}

func toJobDTO(job *storage.TranslationJob) *JobDTO {
	return &JobDTO{
		ID:               job.ID,
		UserID:           job.UserID,
		TeamID:           nullStr(job.TeamID),
		Title:            nullStr(job.Title),
		SourceLanguage:   nullStr(job.SourceLanguage),
		TargetLanguage:   job.TargetLanguage,
		Industry:         nullStr(job.Industry),
		GlossaryID:       nullStr(job.GlossaryID),
		EnginePreference: job.EnginePreference,
		OCREnabled:       job.OCREnabled,
		Priority:         job.Priority,
		Status:           string(job.Status),
		CurrentStage:     string(job.CurrentStage),
		Progress:         job.Progress,
		SourceFileKey:    job.SourceFileKey,
		SourceFileName:   nullStr(job.SourceFileName),
		SourceFileSize:   job.SourceFileSize,
		OutputFileKey:    nullStr(job.OutputFileKey),
		PreviewBundleKey: nullStr(job.PreviewBundleKey),
		PageCount:        job.PageCount,
		SegmentCount:     job.SegmentCount,
		ErrorMessage:     nullStr(job.ErrorMessage),
		CreatedAt:        job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        job.UpdatedAt.UTC().Format(time.RFC3339),
		StartedAt:        nullTime(job.StartedAt),
		CompletedAt:      nullTime(job.CompletedAt),
		CancelledAt:      nullTime(job.CancelledAt),
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTime(v sql.NullTime) *string {
	if !v.Valid {
		return nil
	}
	s := v.Time.UTC().Format(time.RFC3339)
	return &s
}

func (h *JobsHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *JobsHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}
