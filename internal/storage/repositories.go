package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Repositories bundles all repositories over one connection.
type Repositories struct {
	Jobs       *JobRepository
	Glossaries *GlossaryRepository
}

// NewRepositories creates the repository bundle.
func NewRepositories(db DB) *Repositories {
	return &Repositories{
		Jobs:       NewJobRepository(db),
		Glossaries: NewGlossaryRepository(db),
	}
}

// JobRepository handles translation jobs and their child records.
type JobRepository struct {
	db DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, user_id, team_id, title, source_language, target_language,
	industry, glossary_id, engine_preference, ocr_enabled, priority, status,
	current_stage, progress, source_file_key, source_file_name, source_file_size,
	source_file_mime, output_file_key, preview_bundle_key, page_count,
	segment_count, error_message, created_at, updated_at, started_at,
	completed_at, cancelled_at`

func scanJob(row interface{ Scan(...interface{}) error }) (*TranslationJob, error) {
	job := &TranslationJob{}
	var ocrEnabled int
	err := row.Scan(
		&job.ID, &job.UserID, &job.TeamID, &job.Title, &job.SourceLanguage,
		&job.TargetLanguage, &job.Industry, &job.GlossaryID, &job.EnginePreference,
		&ocrEnabled, &job.Priority, &job.Status, &job.CurrentStage, &job.Progress,
		&job.SourceFileKey, &job.SourceFileName, &job.SourceFileSize,
		&job.SourceFileMime, &job.OutputFileKey, &job.PreviewBundleKey,
		&job.PageCount, &job.SegmentCount, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.StartedAt, &job.CompletedAt,
		&job.CancelledAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	job.OCREnabled = ocrEnabled != 0
	return job, nil
}

// Create inserts a new job record.
func (r *JobRepository) Create(ctx context.Context, job *TranslationJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = JobStatusQueued
	}
	if job.CurrentStage == "" {
		job.CurrentStage = StagePrepare
	}
	if job.EnginePreference == "" {
		job.EnginePreference = "auto"
	}
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt

	ocrEnabled := 0
	if job.OCREnabled {
		ocrEnabled = 1
	}

	query := `
		INSERT INTO translation_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.UserID, job.TeamID, job.Title, job.SourceLanguage,
		job.TargetLanguage, job.Industry, job.GlossaryID, job.EnginePreference,
		ocrEnabled, job.Priority, job.Status, job.CurrentStage, job.Progress,
		job.SourceFileKey, job.SourceFileName, job.SourceFileSize,
		job.SourceFileMime, job.OutputFileKey, job.PreviewBundleKey,
		job.PageCount, job.SegmentCount, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.StartedAt, job.CompletedAt,
		job.CancelledAt,
	)
	return err
}

// GetByID retrieves a job by ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*TranslationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM translation_jobs WHERE id = $1`
	return scanJob(r.db.QueryRowContext(ctx, query, id))
}

// GetStatus retrieves only the status column of a job. Used by the
// cancellation poll between pipeline stages.
func (r *JobRepository) GetStatus(ctx context.Context, id string) (JobStatus, error) {
	var status JobStatus
	err := r.db.QueryRowContext(ctx,
		`SELECT status FROM translation_jobs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return status, err
}

// List returns jobs ordered by creation time, newest first. An empty userID
// lists jobs for all users.
func (r *JobRepository) List(ctx context.Context, userID string, limit, offset int) ([]*TranslationJob, error) {
	if limit <= 0 {
		limit = 25
	}

	query := `SELECT ` + jobColumns + ` FROM translation_jobs`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, userID, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*TranslationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Update applies a partial update to a job record.
func (r *JobRepository) Update(ctx context.Context, id string, upd JobUpdate) error {
	sets := []string{}
	args := []interface{}{}
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if upd.Status != nil {
		sets = append(sets, "status = "+next(*upd.Status))
	}
	if upd.CurrentStage != nil {
		sets = append(sets, "current_stage = "+next(*upd.CurrentStage))
	}
	if upd.Progress != nil {
		sets = append(sets, "progress = "+next(*upd.Progress))
	}
	if upd.ErrorMessage != nil {
		sets = append(sets, "error_message = "+next(*upd.ErrorMessage))
	}
	if upd.OutputFileKey != nil {
		sets = append(sets, "output_file_key = "+next(*upd.OutputFileKey))
	}
	if upd.PreviewBundleKey != nil {
		sets = append(sets, "preview_bundle_key = "+next(*upd.PreviewBundleKey))
	}
	if upd.PageCount != nil {
		sets = append(sets, "page_count = "+next(*upd.PageCount))
	}
	if upd.SegmentCount != nil {
		sets = append(sets, "segment_count = "+next(*upd.SegmentCount))
	}
	if upd.StartedAt != nil {
		sets = append(sets, "started_at = "+next(*upd.StartedAt))
	}
	if upd.CompletedAt != nil {
		sets = append(sets, "completed_at = "+next(*upd.CompletedAt))
	}
	if upd.CancelledAt != nil {
		sets = append(sets, "cancelled_at = "+next(*upd.CancelledAt))
	}

	sets = append(sets, "updated_at = "+next(time.Now()))

	query := "UPDATE translation_jobs SET " + strings.Join(sets, ", ") +
		" WHERE id = " + next(id)
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// InsertEvent appends an immutable event to a job's timeline.
func (r *JobRepository) InsertEvent(ctx context.Context, ev *JobEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO translation_job_events (id, job_id, stage, status, message, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		ev.ID, ev.JobID, ev.Stage, ev.Status, ev.Message, ev.Meta, ev.CreatedAt,
	)
	return err
}

// ListEvents returns a job's events, newest first.
func (r *JobRepository) ListEvents(ctx context.Context, jobID string) ([]*JobEvent, error) {
	query := `
		SELECT id, job_id, stage, status, message, meta, created_at
		FROM translation_job_events
		WHERE job_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*JobEvent
	for rows.Next() {
		ev := &JobEvent{}
		if err := rows.Scan(&ev.ID, &ev.JobID, &ev.Stage, &ev.Status,
			&ev.Message, &ev.Meta, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ReplacePages deletes all pages for a job and inserts the given set.
func (r *JobRepository) ReplacePages(ctx context.Context, jobID string, pages []*JobPage) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM translation_job_pages WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("delete pages: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO translation_job_pages (id, job_id, page_number, width, height,
			dpi, rotation, original_asset_key, background_asset_key,
			text_layer_asset_key, ocr_json_asset_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	for _, page := range pages {
		if page.ID == "" {
			page.ID = uuid.NewString()
		}
		page.JobID = jobID
		page.CreatedAt = now
		page.UpdatedAt = now
		if _, err := r.db.ExecContext(ctx, query,
			page.ID, page.JobID, page.PageNumber, page.Width, page.Height,
			page.DPI, page.Rotation, page.OriginalAssetKey, page.BackgroundAssetKey,
			page.TextLayerAssetKey, page.OCRJSONAssetKey, page.CreatedAt, page.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert page %d: %w", page.PageNumber, err)
		}
	}
	return nil
}

// ListPages returns a job's pages ordered by page number.
func (r *JobRepository) ListPages(ctx context.Context, jobID string) ([]*JobPage, error) {
	query := `
		SELECT id, job_id, page_number, width, height, dpi, rotation,
			original_asset_key, background_asset_key, text_layer_asset_key,
			ocr_json_asset_key, created_at, updated_at
		FROM translation_job_pages
		WHERE job_id = $1
		ORDER BY page_number ASC
	`
	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*JobPage
	for rows.Next() {
		page := &JobPage{}
		if err := rows.Scan(&page.ID, &page.JobID, &page.PageNumber, &page.Width,
			&page.Height, &page.DPI, &page.Rotation, &page.OriginalAssetKey,
			&page.BackgroundAssetKey, &page.TextLayerAssetKey, &page.OCRJSONAssetKey,
			&page.CreatedAt, &page.UpdatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// SetPageOCRAsset records the OCR JSON artifact key on a page.
func (r *JobRepository) SetPageOCRAsset(ctx context.Context, pageID, key string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE translation_job_pages SET ocr_json_asset_key = $1, updated_at = $2 WHERE id = $3`,
		key, time.Now(), pageID)
	return err
}

// DeleteSegments removes all segments for a job.
func (r *JobRepository) DeleteSegments(ctx context.Context, jobID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM translation_segments WHERE job_id = $1`, jobID)
	return err
}

// ReplaceSegments deletes all segments for a job and inserts the given set.
func (r *JobRepository) ReplaceSegments(ctx context.Context, jobID string, segments []*Segment) error {
	if err := r.DeleteSegments(ctx, jobID); err != nil {
		return fmt.Errorf("delete segments: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO translation_segments (id, job_id, page_id, page_number,
			block_id, sequence, segment_type, source_text, normalized_source_text,
			bounding_box, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	for _, seg := range segments {
		if seg.ID == "" {
			seg.ID = uuid.NewString()
		}
		seg.JobID = jobID
		seg.CreatedAt = now
		seg.UpdatedAt = now

		var metadata string
		if len(seg.Metadata) > 0 {
			data, err := json.Marshal(seg.Metadata)
			if err == nil {
				metadata = string(data)
			}
		}

		if _, err := r.db.ExecContext(ctx, query,
			seg.ID, seg.JobID, seg.PageID, seg.PageNumber, seg.BlockID,
			seg.Sequence, seg.Type, seg.SourceText, seg.NormalizedSourceText,
			MarshalBox(seg.BoundingBox), metadata, seg.CreatedAt, seg.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert segment %d: %w", seg.Sequence, err)
		}
	}
	return nil
}

// ReplaceTranslations deletes all translations for a job and inserts the
// given set.
func (r *JobRepository) ReplaceTranslations(ctx context.Context, jobID string, translations []*SegmentTranslation) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM translation_segment_translations WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("delete translations: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO translation_segment_translations (id, job_id, segment_id,
			engine, target_locale, target_text, raw_response, glossary_matches,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, tr := range translations {
		if tr.ID == "" {
			tr.ID = uuid.NewString()
		}
		tr.JobID = jobID
		tr.CreatedAt = now
		tr.UpdatedAt = now
		if _, err := r.db.ExecContext(ctx, query,
			tr.ID, tr.JobID, tr.SegmentID, tr.Engine, tr.TargetLocale,
			tr.TargetText, tr.RawResponse, tr.GlossaryMatches,
			tr.CreatedAt, tr.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert translation for segment %s: %w", tr.SegmentID, err)
		}
	}
	return nil
}

// GlossaryRepository handles glossary reads.
type GlossaryRepository struct {
	db DB
}

// NewGlossaryRepository creates a new glossary repository.
func NewGlossaryRepository(db DB) *GlossaryRepository {
	return &GlossaryRepository{db: db}
}

// LoadEntries returns all entries of a glossary.
func (r *GlossaryRepository) LoadEntries(ctx context.Context, glossaryID string) ([]*GlossaryEntry, error) {
	query := `
		SELECT id, glossary_id, source_term, target_term, part_of_speech,
			synonyms, attributes, created_at, updated_at
		FROM translation_glossary_entries
		WHERE glossary_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, glossaryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*GlossaryEntry
	for rows.Next() {
		entry := &GlossaryEntry{}
		if err := rows.Scan(&entry.ID, &entry.GlossaryID, &entry.SourceTerm,
			&entry.TargetTerm, &entry.PartOfSpeech, &entry.Synonyms,
			&entry.Attributes, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
