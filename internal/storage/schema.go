package storage

import (
	"context"
	"fmt"
)

// Schema statements are written in the common subset understood by both
// SQLite and Postgres.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS translation_jobs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		team_id TEXT,
		title TEXT,
		source_language TEXT,
		target_language TEXT NOT NULL,
		industry TEXT,
		glossary_id TEXT,
		engine_preference TEXT NOT NULL DEFAULT 'auto',
		ocr_enabled INTEGER NOT NULL DEFAULT 0,
		priority INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'queued',
		current_stage TEXT NOT NULL DEFAULT 'prepare',
		progress INTEGER NOT NULL DEFAULT 0,
		source_file_key TEXT NOT NULL,
		source_file_name TEXT,
		source_file_size BIGINT NOT NULL DEFAULT 0,
		source_file_mime TEXT,
		output_file_key TEXT,
		preview_bundle_key TEXT,
		page_count INTEGER NOT NULL DEFAULT 0,
		segment_count INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		started_at TIMESTAMP,
		completed_at TIMESTAMP,
		cancelled_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS translation_job_pages (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		dpi INTEGER,
		rotation INTEGER NOT NULL DEFAULT 0,
		original_asset_key TEXT,
		background_asset_key TEXT,
		text_layer_asset_key TEXT,
		ocr_json_asset_key TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_job_pages_job ON translation_job_pages (job_id, page_number)`,
	`CREATE TABLE IF NOT EXISTS translation_segments (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		page_id TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		block_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		segment_type TEXT NOT NULL DEFAULT 'text',
		source_text TEXT NOT NULL,
		normalized_source_text TEXT NOT NULL,
		bounding_box TEXT,
		metadata TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_segments_job ON translation_segments (job_id, sequence)`,
	`CREATE TABLE IF NOT EXISTS translation_segment_translations (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		segment_id TEXT NOT NULL,
		engine TEXT NOT NULL,
		target_locale TEXT NOT NULL,
		target_text TEXT NOT NULL,
		raw_response TEXT,
		glossary_matches TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_translations_job ON translation_segment_translations (job_id)`,
	`CREATE TABLE IF NOT EXISTS translation_job_events (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT NOT NULL,
		meta TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_job_events_job ON translation_job_events (job_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS translation_glossaries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		team_id TEXT,
		name TEXT NOT NULL,
		source_language TEXT NOT NULL,
		target_language TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS translation_glossary_entries (
		id TEXT PRIMARY KEY,
		glossary_id TEXT NOT NULL,
		source_term TEXT NOT NULL,
		target_term TEXT NOT NULL,
		part_of_speech TEXT,
		synonyms TEXT,
		attributes TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_glossary_entries_glossary ON translation_glossary_entries (glossary_id)`,
}

// Bootstrap creates the schema if it does not exist yet.
func Bootstrap(ctx context.Context, db DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return nil
}
