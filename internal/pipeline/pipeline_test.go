package pipeline

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traduceo/translation-engine/internal/blob"
	"github.com/traduceo/translation-engine/internal/config"
	"github.com/traduceo/translation-engine/internal/mtengine"
	"github.com/traduceo/translation-engine/internal/observability"
	"github.com/traduceo/translation-engine/internal/prepare"
	"github.com/traduceo/translation-engine/internal/storage"
)

// fakeStore keeps the whole job graph in memory.
type fakeStore struct {
	mu           sync.Mutex
	jobs         map[string]*storage.TranslationJob
	events       []*storage.JobEvent
	pages        map[string][]*storage.JobPage
	segments     map[string][]*storage.Segment
	translations map[string][]*storage.SegmentTranslation
	progress     []int

	// cancelAtStage makes GetStatus report cancellation once the job
	// reaches the given stage.
	cancelAtStage storage.JobStage
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:         make(map[string]*storage.TranslationJob),
		pages:        make(map[string][]*storage.JobPage),
		segments:     make(map[string][]*storage.Segment),
		translations: make(map[string][]*storage.SegmentTranslation),
	}
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (*storage.TranslationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *fakeStore) GetStatus(ctx context.Context, id string) (storage.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return "", storage.ErrNotFound
	}
	if s.cancelAtStage != "" && job.CurrentStage == s.cancelAtStage {
		return storage.JobStatusCancelled, nil
	}
	return job.Status, nil
}

func (s *fakeStore) Update(ctx context.Context, id string, upd storage.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	if upd.Status != nil {
		job.Status = *upd.Status
	}
	if upd.CurrentStage != nil {
		job.CurrentStage = *upd.CurrentStage
	}
	if upd.Progress != nil {
		job.Progress = *upd.Progress
		s.progress = append(s.progress, *upd.Progress)
	}
	if upd.ErrorMessage != nil {
		job.ErrorMessage = storageNullString(*upd.ErrorMessage)
	}
	if upd.OutputFileKey != nil {
		job.OutputFileKey = storageNullString(*upd.OutputFileKey)
	}
	if upd.PreviewBundleKey != nil {
		job.PreviewBundleKey = storageNullString(*upd.PreviewBundleKey)
	}
	if upd.PageCount != nil {
		job.PageCount = *upd.PageCount
	}
	if upd.SegmentCount != nil {
		job.SegmentCount = *upd.SegmentCount
	}
	return nil
}

func (s *fakeStore) InsertEvent(ctx context.Context, ev *storage.JobEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeStore) ReplacePages(ctx context.Context, jobID string, pages []*storage.JobPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[jobID] = pages
	return nil
}

func (s *fakeStore) SetPageOCRAsset(ctx context.Context, pageID, key string) error {
	return nil
}

func (s *fakeStore) DeleteSegments(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.segments, jobID)
	return nil
}

func (s *fakeStore) ReplaceSegments(ctx context.Context, jobID string, segments []*storage.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[jobID] = segments
	return nil
}

func (s *fakeStore) ReplaceTranslations(ctx context.Context, jobID string, translations []*storage.SegmentTranslation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.translations[jobID] = translations
	return nil
}

func (s *fakeStore) eventMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Message)
	}
	return out
}

type fakeGlossaries struct {
	entries []*storage.GlossaryEntry
}

func (g *fakeGlossaries) LoadEntries(ctx context.Context, glossaryID string) ([]*storage.GlossaryEntry, error) {
	return g.entries, nil
}

type fakePreparer struct {
	response *prepare.Response
}

func (f *fakePreparer) Enabled() bool { return f.response != nil }

func (f *fakePreparer) Prepare(ctx context.Context, req prepare.Request) (*prepare.Response, error) {
	return f.response, nil
}

func storageNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func seedJob(store *fakeStore, sources *blob.MemoryStore, pdf []byte) *storage.TranslationJob {
	jobID := uuid.NewString()
	sourceKey := "sources/u1/" + jobID + ".pdf"
	sources.Put(context.Background(), sourceKey, pdf, "application/pdf")

	job := &storage.TranslationJob{
		ID:               jobID,
		UserID:           "u1",
		TargetLanguage:   "fr",
		EnginePreference: "auto",
		Status:           storage.JobStatusQueued,
		CurrentStage:     storage.StagePrepare,
		SourceFileKey:    sourceKey,
	}
	store.jobs[jobID] = job
	return job
}

func offlineTranslator() *mtengine.Translator {
	// No credentials configured and a dead LibreTranslate port: every
	// segment falls back to its source text.
	return mtengine.NewTranslator(config.EnginesConfig{
		Timeout: time.Second,
		Libre:   config.LibreEngineConfig{URL: "http://127.0.0.1:1"},
	}, observability.Nop())
}

func newTestPipeline(store *fakeStore, sources *blob.MemoryStore, preparer Preparer) *Pipeline {
	return New(Deps{
		Jobs:       store,
		Glossaries: &fakeGlossaries{},
		Sources:    sources,
		Preparer:   preparer,
		Translator: offlineTranslator(),
		Logger:     observability.Nop(),
	})
}

func TestRunCompletesWithSourceTextFallback(t *testing.T) {
	store := newFakeStore()
	sources := blob.NewMemoryStore()
	pdf := []byte("%PDF-1.4\nBT (Hello world. Nice to meet you.) Tj ET")
	job := seedJob(store, sources, pdf)

	p := newTestPipeline(store, sources, nil)
	require.NoError(t, p.Run(context.Background(), job.ID))

	final := store.jobs[job.ID]
	assert.Equal(t, storage.JobStatusCompleted, final.Status)
	assert.Equal(t, storage.StagePublish, final.CurrentStage)
	assert.Equal(t, 100, final.Progress)
	assert.Equal(t, 1, final.PageCount)
	assert.Equal(t, 2, final.SegmentCount)
	assert.True(t, strings.HasPrefix(final.OutputFileKey.String, InlinePDFPrefix))
	assert.True(t, strings.HasPrefix(final.PreviewBundleKey.String, InlineHTMLPrefix))

	segments := store.segments[job.ID]
	require.Len(t, segments, 2)
	assert.Equal(t, "Hello world.", segments[0].SourceText)
	assert.Equal(t, "Nice to meet you.", segments[1].SourceText)
	assert.Equal(t, 0, segments[0].Sequence)
	assert.Equal(t, "page1_block_0", segments[0].BlockID)
	require.NotNil(t, segments[0].BoundingBox)
	assert.Equal(t, 48.0, segments[0].BoundingBox.X)

	translations := store.translations[job.ID]
	require.Len(t, translations, 2)
	assert.Equal(t, "auto", translations[0].Engine)
	assert.Equal(t, "Hello world.", translations[0].TargetText)
	assert.Equal(t, "fr", translations[0].TargetLocale)
	assert.Contains(t, translations[0].RawResponse.String, `"fallback":true`)
}

func TestRunProgressSequence(t *testing.T) {
	store := newFakeStore()
	sources := blob.NewMemoryStore()
	job := seedJob(store, sources, []byte("BT (One sentence.) Tj ET"))

	p := newTestPipeline(store, sources, nil)
	require.NoError(t, p.Run(context.Background(), job.ID))

	assert.Equal(t, []int{14, 29, 43, 57, 71, 86, 100, 100}, store.progress,
		"one write per stage plus the publish update")
}

func TestRunEventTrail(t *testing.T) {
	store := newFakeStore()
	sources := blob.NewMemoryStore()
	job := seedJob(store, sources, []byte("BT (One sentence.) Tj ET"))

	p := newTestPipeline(store, sources, nil)
	require.NoError(t, p.Run(context.Background(), job.ID))

	messages := store.eventMessages()
	assert.Equal(t, []string{
		"Preparing source document",
		"Detected 1 page(s).",
		"Running OCR for scanned content",
		"OCR skipped: OCR not requested",
		"Generating translation segments",
		"Persisted 1 segment(s).",
		"Translating text",
		"Translated 1 segment(s) via auto.",
		"Reconstructing translated layout",
		"Generated HTML preview",
		"Rendering translated PDF",
		"Rendered PDF (local fallback)",
		"Publishing translated artifacts",
		"Translation published",
	}, messages)
}

func TestRunCancelledMidway(t *testing.T) {
	store := newFakeStore()
	sources := blob.NewMemoryStore()
	job := seedJob(store, sources, []byte("BT (One sentence.) Tj ET"))
	store.cancelAtStage = storage.StageTranslate

	p := newTestPipeline(store, sources, nil)
	require.NoError(t, p.Run(context.Background(), job.ID))

	messages := store.eventMessages()
	require.NotEmpty(t, messages)
	assert.Equal(t, "Job cancelled during processing", messages[len(messages)-1])
	assert.NotContains(t, messages, "Translation published")

	events := store.events
	last := events[len(events)-1]
	assert.Equal(t, storage.EventCancelled, last.Status)
	assert.Equal(t, storage.StageTranslate, last.Stage)
}

func TestRunSkipsGracefullyWithoutText(t *testing.T) {
	store := newFakeStore()
	sources := blob.NewMemoryStore()
	job := seedJob(store, sources, []byte("BT (unused) Tj ET"))

	// Prepare service reports a page with no text at all.
	preparer := &fakePreparer{response: &prepare.Response{
		PageCount: 1,
		Pages:     []prepare.Page{{PageNumber: 1, Width: 612, Height: 792}},
	}}

	p := newTestPipeline(store, sources, preparer)
	require.NoError(t, p.Run(context.Background(), job.ID))

	final := store.jobs[job.ID]
	assert.Equal(t, storage.JobStatusCompleted, final.Status)
	assert.Equal(t, 0, final.SegmentCount)
	assert.Empty(t, store.segments[job.ID])

	messages := store.eventMessages()
	assert.Contains(t, messages, "Segment skipped: No textual content detected")
	assert.Contains(t, messages, "Translate skipped: No segments available for translation")
	assert.Contains(t, messages, "Layout skipped: Translations not ready")
	assert.Contains(t, messages, "Translation published")
}

func TestRunIgnoresFinishedJobs(t *testing.T) {
	store := newFakeStore()
	sources := blob.NewMemoryStore()
	job := seedJob(store, sources, []byte("BT (x) Tj ET"))
	store.jobs[job.ID].Status = storage.JobStatusCompleted

	p := newTestPipeline(store, sources, nil)
	require.NoError(t, p.Run(context.Background(), job.ID))

	assert.Empty(t, store.events)
}

func TestRunMissingJobIsNoOp(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, blob.NewMemoryStore(), nil)

	assert.NoError(t, p.Run(context.Background(), "nope"))
}

func TestDecodeInlineRoundTrip(t *testing.T) {
	pdfKey := InlinePDF([]byte("%PDF-data"))
	data, ok := DecodeInline(pdfKey)
	require.True(t, ok)
	assert.Equal(t, "%PDF-data", string(data))

	htmlKey := InlineHTML("<html></html>")
	data, ok = DecodeInline(htmlKey)
	require.True(t, ok)
	assert.Equal(t, "<html></html>", string(data))

	_, ok = DecodeInline("outputs/u/j/1.pdf")
	assert.False(t, ok)
}
