package pipeline

import (
	"context"

	"github.com/traduceo/translation-engine/internal/mtengine"
	"github.com/traduceo/translation-engine/internal/prepare"
	"github.com/traduceo/translation-engine/internal/storage"
)

// JobStore is the slice of the storage layer the pipeline drives.
type JobStore interface {
	GetByID(ctx context.Context, id string) (*storage.TranslationJob, error)
	GetStatus(ctx context.Context, id string) (storage.JobStatus, error)
	Update(ctx context.Context, id string, upd storage.JobUpdate) error
	InsertEvent(ctx context.Context, ev *storage.JobEvent) error
	ReplacePages(ctx context.Context, jobID string, pages []*storage.JobPage) error
	SetPageOCRAsset(ctx context.Context, pageID, key string) error
	DeleteSegments(ctx context.Context, jobID string) error
	ReplaceSegments(ctx context.Context, jobID string, segments []*storage.Segment) error
	ReplaceTranslations(ctx context.Context, jobID string, translations []*storage.SegmentTranslation) error
}

// GlossaryStore loads glossary terms for a job.
type GlossaryStore interface {
	LoadEntries(ctx context.Context, glossaryID string) ([]*storage.GlossaryEntry, error)
}

// Preparer calls the document preparation service.
type Preparer interface {
	Enabled() bool
	Prepare(ctx context.Context, req prepare.Request) (*prepare.Response, error)
}

// Translator resolves one text through the engine attempt list.
type Translator interface {
	Translate(ctx context.Context, req mtengine.Request, order []mtengine.Kind) *mtengine.Result
}

// Renderer converts HTML to a PDF, or declines with (nil, nil).
type Renderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}
