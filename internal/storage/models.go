// Package storage provides database models and repositories for the translation engine.
package storage

import (
	"database/sql"
	"encoding/json"
	"time"
)

// JobStatus represents the lifecycle status of a translation job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// JobStage represents one step of the fixed pipeline sequence.
type JobStage string

const (
	StagePrepare   JobStage = "prepare"
	StageOCR       JobStage = "ocr"
	StageSegment   JobStage = "segment"
	StageTranslate JobStage = "translate"
	StageLayout    JobStage = "layout"
	StageRender    JobStage = "render"
	StagePublish   JobStage = "publish"
)

// SegmentType classifies a translation segment. Only text segments are
// produced by the pipeline today.
type SegmentType string

const (
	SegmentTypeText      SegmentType = "text"
	SegmentTypeTableCell SegmentType = "table_cell"
	SegmentTypeCaption   SegmentType = "caption"
	SegmentTypeFootnote  SegmentType = "footnote"
	SegmentTypeOther     SegmentType = "other"
)

// BoundingBox locates a segment on its page, in page points.
type BoundingBox struct {
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	Rotation *float64 `json:"rotation,omitempty"`
}

// MarshalBox serializes a bounding box for a JSON column. Returns an empty
// string for a nil box.
func MarshalBox(box *BoundingBox) string {
	if box == nil {
		return ""
	}
	data, err := json.Marshal(box)
	if err != nil {
		return ""
	}
	return string(data)
}

// UnmarshalBox parses a bounding box from a JSON column value.
func UnmarshalBox(raw string) *BoundingBox {
	if raw == "" {
		return nil
	}
	var box BoundingBox
	if err := json.Unmarshal([]byte(raw), &box); err != nil {
		return nil
	}
	return &box
}

// TranslationJob is one translation request.
type TranslationJob struct {
	ID               string
	UserID           string
	TeamID           sql.NullString
	Title            sql.NullString
	SourceLanguage   sql.NullString
	TargetLanguage   string
	Industry         sql.NullString
	GlossaryID       sql.NullString
	EnginePreference string
	OCREnabled       bool
	Priority         int
	Status           JobStatus
	CurrentStage     JobStage
	Progress         int
	SourceFileKey    string
	SourceFileName   sql.NullString
	SourceFileSize   int64
	SourceFileMime   sql.NullString
	OutputFileKey    sql.NullString
	PreviewBundleKey sql.NullString
	PageCount        int
	SegmentCount     int
	ErrorMessage     sql.NullString
	CreatedAt        time.Time
	UpdatedAt        time.Time
	StartedAt        sql.NullTime
	CompletedAt      sql.NullTime
	CancelledAt      sql.NullTime
}

// JobPage is one page of the source document.
type JobPage struct {
	ID                 string
	JobID              string
	PageNumber         int
	Width              int
	Height             int
	DPI                sql.NullInt64
	Rotation           int
	OriginalAssetKey   sql.NullString
	BackgroundAssetKey sql.NullString
	TextLayerAssetKey  sql.NullString
	OCRJSONAssetKey    sql.NullString
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Segment is one translatable unit of text on a page.
type Segment struct {
	ID                   string
	JobID                string
	PageID               string
	PageNumber           int
	BlockID              string
	Sequence             int
	Type                 SegmentType
	SourceText           string
	NormalizedSourceText string
	BoundingBox          *BoundingBox
	Metadata             map[string]any
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// SegmentTranslation is the per-segment output of one pipeline run.
type SegmentTranslation struct {
	ID              string
	JobID           string
	SegmentID       string
	Engine          string
	TargetLocale    string
	TargetText      string
	RawResponse     sql.NullString
	GlossaryMatches string // JSON {"matches":[...]} or empty
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EventStatus describes what a job event records for its stage.
type EventStatus string

const (
	EventStarted   EventStatus = "started"
	EventCompleted EventStatus = "completed"
	EventSkipped   EventStatus = "skipped"
	EventFailed    EventStatus = "failed"
	EventCancelled EventStatus = "cancelled"
	EventQueued    EventStatus = "queued"
)

// JobEvent is an immutable log entry on a job's timeline.
type JobEvent struct {
	ID        string
	JobID     string
	Stage     JobStage
	Status    EventStatus
	Message   string
	Meta      sql.NullString
	CreatedAt time.Time
}

// Glossary is a named set of term substitutions.
type Glossary struct {
	ID             string
	UserID         string
	TeamID         sql.NullString
	Name           string
	SourceLanguage string
	TargetLanguage string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GlossaryEntry is a source-term to target-term pair.
type GlossaryEntry struct {
	ID           string
	GlossaryID   string
	SourceTerm   string
	TargetTerm   string
	PartOfSpeech sql.NullString
	Synonyms     sql.NullString
	Attributes   sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// JobUpdate carries a partial update to a job record. Nil fields are left
// untouched.
type JobUpdate struct {
	Status           *JobStatus
	CurrentStage     *JobStage
	Progress         *int
	ErrorMessage     *string
	OutputFileKey    *string
	PreviewBundleKey *string
	PageCount        *int
	SegmentCount     *int
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
}
