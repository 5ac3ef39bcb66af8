// Package pipeline runs translation jobs through their fixed stage
// sequence: prepare, ocr, segment, translate, layout, render, publish.
//
// Stages that cannot contribute skip forward instead of failing; the run
// only fails on infrastructure errors. Cancellation is honored at stage
// boundaries and inside the long per-segment loops.
package pipeline

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/traduceo/translation-engine/internal/blob"
	"github.com/traduceo/translation-engine/internal/cache"
	"github.com/traduceo/translation-engine/internal/glossary"
	"github.com/traduceo/translation-engine/internal/layout"
	"github.com/traduceo/translation-engine/internal/mtengine"
	"github.com/traduceo/translation-engine/internal/observability"
	"github.com/traduceo/translation-engine/internal/ocr"
	"github.com/traduceo/translation-engine/internal/pdftext"
	"github.com/traduceo/translation-engine/internal/prepare"
	"github.com/traduceo/translation-engine/internal/render"
	"github.com/traduceo/translation-engine/internal/storage"
)

// ErrCancelled aborts a run when the job was cancelled underneath it.
var ErrCancelled = errors.New("job cancelled")

const (
	maxErrorMessageLen  = 2000
	maxRawResponseLen   = 2000
	cancelCheckInterval = 50
)

// Deps wires a Pipeline. Sources is required; Artifacts may be nil, in
// which case previews and outputs are embedded as inline artifact keys.
// Recognizer, Cache, Preparer and Renderer are optional.
type Deps struct {
	Jobs       JobStore
	Glossaries GlossaryStore
	Sources    blob.Store
	Artifacts  blob.Store
	Cache      cache.Client
	Preparer   Preparer
	Recognizer ocr.Provider
	Translator Translator
	Renderer   Renderer
	Logger     *observability.Logger
	Now        func() time.Time
}

// Pipeline executes translation jobs.
type Pipeline struct {
	jobs       JobStore
	glossaries GlossaryStore
	sources    blob.Store
	artifacts  blob.Store
	cache      cache.Client
	preparer   Preparer
	recognizer ocr.Provider
	translator Translator
	renderer   Renderer
	logger     *observability.Logger
	now        func() time.Time
}

// New assembles a Pipeline from its dependencies.
func New(deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = observability.Nop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		jobs:       deps.Jobs,
		glossaries: deps.Glossaries,
		sources:    deps.Sources,
		artifacts:  deps.Artifacts,
		cache:      deps.Cache,
		preparer:   deps.Preparer,
		recognizer: deps.Recognizer,
		translator: deps.Translator,
		renderer:   deps.Renderer,
		logger:     logger,
		now:        now,
	}
}

// Run drives one job through every stage. A missing, finished, or
// cancelled job is a no-op. Stage failures are recorded on the job rather
// than returned; the error return covers storage access problems only.
func (p *Pipeline) Run(ctx context.Context, jobID string) error {
	log := p.logger.WithJob(jobID)

	job, err := p.jobs.GetByID(ctx, jobID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn().Msg("job not found, skipping run")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Status == storage.JobStatusCancelled || job.Status == storage.JobStatusCompleted {
		return nil
	}

	st := &state{
		pageIDByNumber: make(map[int]string),
		requiresOCR:    job.OCREnabled,
		previewKey:     job.PreviewBundleKey.String,
		outputKey:      job.OutputFileKey.String,
	}
	if job.GlossaryID.Valid {
		terms, err := p.loadGlossary(ctx, job.GlossaryID.String)
		if err != nil {
			return fmt.Errorf("load glossary: %w", err)
		}
		st.glossary = terms
	}

	now := p.now()
	started := now
	if job.StartedAt.Valid {
		started = job.StartedAt.Time
	}
	if err := p.jobs.Update(ctx, jobID, storage.JobUpdate{
		Status:    ptr(storage.JobStatusProcessing),
		StartedAt: &started,
	}); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	completed := 0
	lastStage := storage.StagePrepare

	runErr := func() error {
		for _, stage := range stageSequence {
			lastStage = stage
			if err := p.enterStage(ctx, jobID, stage); err != nil {
				return err
			}
			if err := p.checkCancelled(ctx, jobID); err != nil {
				return err
			}

			result, err := p.runStage(ctx, stage, job, st)
			if err != nil {
				return err
			}

			if !result.quiet {
				status := storage.EventCompleted
				if result.skipped {
					status = storage.EventSkipped
				}
				p.logEvent(ctx, jobID, stage, status, result.completionMessage(stage))
			}

			completed++
			p.updateProgress(ctx, jobID, stage, completed)
			if err := p.checkCancelled(ctx, jobID); err != nil {
				return err
			}
		}
		return nil
	}()

	if runErr == nil {
		return nil
	}

	if errors.Is(runErr, ErrCancelled) {
		p.logEvent(ctx, jobID, lastStage, storage.EventCancelled, "Job cancelled during processing")
		p.mirrorProgress(ctx, jobID, storage.JobStatusCancelled, lastStage, job.Progress)
		log.Info().Str("stage", string(lastStage)).Msg("job cancelled during processing")
		return nil
	}

	message := truncate(runErr.Error(), maxErrorMessageLen)
	log.Error().Err(runErr).Str("stage", string(lastStage)).Msg("pipeline failed")

	if err := p.jobs.Update(ctx, jobID, storage.JobUpdate{
		Status:       ptr(storage.JobStatusFailed),
		CurrentStage: &lastStage,
		ErrorMessage: &message,
	}); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	p.logEvent(ctx, jobID, lastStage, storage.EventFailed, message)
	p.mirrorProgress(ctx, jobID, storage.JobStatusFailed, lastStage, job.Progress)
	return nil
}

func (p *Pipeline) runStage(ctx context.Context, stage storage.JobStage, job *storage.TranslationJob, st *state) (stageResult, error) {
	switch stage {
	case storage.StagePrepare:
		return p.stagePrepare(ctx, job, st)
	case storage.StageOCR:
		return p.stageOCR(ctx, job, st)
	case storage.StageSegment:
		return p.stageSegment(ctx, job, st)
	case storage.StageTranslate:
		return p.stageTranslate(ctx, job, st)
	case storage.StageLayout:
		return p.stageLayout(ctx, job, st)
	case storage.StageRender:
		return p.stageRender(ctx, job, st)
	case storage.StagePublish:
		return p.stagePublish(ctx, job, st)
	default:
		return stageResult{}, fmt.Errorf("unknown stage %q", stage)
	}
}

func (p *Pipeline) stagePrepare(ctx context.Context, job *storage.TranslationJob, st *state) (stageResult, error) {
	pdf, err := p.loadSource(ctx, job, st)
	if err != nil {
		return stageResult{}, err
	}
	if err := p.checkCancelled(ctx, job.ID); err != nil {
		return stageResult{}, err
	}

	var svc *prepare.Response
	if p.preparer != nil && p.preparer.Enabled() {
		svc, err = p.preparer.Prepare(ctx, prepare.Request{
			JobID:        job.ID,
			FileName:     sourceFileName(job),
			PDF:          pdf,
			OCRPreferred: job.OCREnabled,
		})
		if err != nil {
			p.logger.WithJob(job.ID).Warn().Err(err).Msg("document prepare service failed")
			svc = nil
		}
	}

	var pages []*pageState
	var blueprints []blueprint
	if svc != nil && len(svc.Pages) > 0 {
		pages = normalizePreparedPages(svc.Pages)
		blueprints = blueprintsFromPrepared(svc.Pages)
	}
	if svc != nil && svc.RequiresOCR != nil {
		st.requiresOCR = *svc.RequiresOCR
	}

	if len(pages) == 0 {
		pages = fallbackPages(pdf)
		blueprints = fallbackBlueprints(pages)
	}
	if len(blueprints) == 0 {
		blueprints = fallbackBlueprints(pages)
	}

	if err := p.persistPages(ctx, job, st, pages); err != nil {
		return stageResult{}, err
	}

	st.pages = pages
	st.blueprints = blueprints

	return stageResult{message: fmt.Sprintf("Detected %d page(s).", len(pages))}, nil
}

func (p *Pipeline) stageOCR(ctx context.Context, job *storage.TranslationJob, st *state) (stageResult, error) {
	if !st.requiresOCR {
		return stageResult{skipped: true, skipReason: "OCR not requested"}, nil
	}

	pdf, err := p.loadSource(ctx, job, st)
	if err != nil {
		return stageResult{}, err
	}
	if err := p.checkCancelled(ctx, job.ID); err != nil {
		return stageResult{}, err
	}

	var result *ocr.Result
	if p.recognizer != nil {
		result, err = p.recognizer.Recognize(ctx, ocr.Request{
			JobID:     job.ID,
			FileName:  sourceFileName(job),
			PDF:       pdf,
			PageCount: len(st.pages),
		})
		if err != nil {
			p.logger.WithJob(job.ID).Warn().Err(err).Msg("ocr failed")
			result = nil
		}
	}

	st.requiresOCR = false
	if result == nil || len(result.Pages) == 0 {
		return stageResult{skipped: true, skipReason: "No OCR provider configured or no OCR data returned"}, nil
	}

	artifacts := 0
	var blueprints []blueprint
	for _, page := range result.Pages {
		pageID, ok := st.pageIDByNumber[page.PageNumber]
		if !ok {
			continue
		}

		if page.JSON != nil {
			key := pageAssetKey("ocr", job.UserID, job.ID, page.PageNumber, pageID+"-ocr.json")
			if err := p.putArtifact(ctx, key, page.JSON, "application/json"); err != nil {
				p.logger.WithJob(job.ID).Warn().Err(err).Str("key", key).Msg("ocr artifact upload failed")
			} else {
				artifacts++
				if err := p.jobs.SetPageOCRAsset(ctx, pageID, key); err != nil {
					return stageResult{}, fmt.Errorf("record ocr asset: %w", err)
				}
			}
		}

		for i, block := range page.Blocks {
			text := strings.TrimSpace(block.Text)
			if text == "" {
				continue
			}
			blockID := block.Key()
			if blockID == "" {
				blockID = fmt.Sprintf("ocr_%d_%d", page.PageNumber, i)
			}
			blueprints = append(blueprints, blueprint{
				PageNumber: page.PageNumber,
				BlockID:    blockID,
				Text:       text,
				Box:        block.Box().Normalize(),
				Metadata:   block.Metadata,
			})
		}
	}

	if len(blueprints) > 0 {
		st.blueprints = blueprints
	}

	n := artifacts
	if n == 0 {
		n = len(result.Pages)
	}
	return stageResult{message: fmt.Sprintf("OCR completed for %d page(s).", n)}, nil
}

func (p *Pipeline) stageSegment(ctx context.Context, job *storage.TranslationJob, st *state) (stageResult, error) {
	blueprints := st.blueprints
	if len(blueprints) == 0 {
		blueprints = fallbackBlueprintsFor(st)
	}
	if len(blueprints) == 0 {
		return stageResult{skipped: true, skipReason: "No textual content detected"}, nil
	}

	if err := p.jobs.DeleteSegments(ctx, job.ID); err != nil {
		return stageResult{}, fmt.Errorf("clear segments: %w", err)
	}

	var segments []*storage.Segment
	sequence := 0
	for _, bp := range blueprints {
		pageID, ok := st.pageIDByNumber[bp.PageNumber]
		if !ok {
			continue
		}
		sourceText := strings.TrimSpace(bp.Text)
		if sourceText == "" {
			continue
		}

		blockID := bp.BlockID
		if blockID == "" {
			blockID = fmt.Sprintf("block_%d_%d", bp.PageNumber, sequence)
		}

		segments = append(segments, &storage.Segment{
			ID:                   uuid.NewString(),
			PageID:               pageID,
			PageNumber:           bp.PageNumber,
			BlockID:              blockID,
			Sequence:             sequence,
			Type:                 storage.SegmentTypeText,
			SourceText:           sourceText,
			NormalizedSourceText: pdftext.NormalizeWhitespace(sourceText),
			BoundingBox:          clampBox(bp.Box, st.page(bp.PageNumber)),
			Metadata:             bp.Metadata,
		})

		sequence++
		if sequence%cancelCheckInterval == 0 {
			if err := p.checkCancelled(ctx, job.ID); err != nil {
				return stageResult{}, err
			}
		}
	}

	if len(segments) == 0 {
		return stageResult{skipped: true, skipReason: "No segments persisted"}, nil
	}

	if err := p.jobs.ReplaceSegments(ctx, job.ID, segments); err != nil {
		return stageResult{}, fmt.Errorf("persist segments: %w", err)
	}

	st.segments = segments
	st.blueprints = blueprints

	return stageResult{message: fmt.Sprintf("Persisted %d segment(s).", len(segments))}, nil
}

func (p *Pipeline) stageTranslate(ctx context.Context, job *storage.TranslationJob, st *state) (stageResult, error) {
	if len(st.segments) == 0 {
		return stageResult{skipped: true, skipReason: "No segments available for translation"}, nil
	}

	order := mtengine.Order(mtengine.ParseKind(job.EnginePreference), job.Industry.String)

	var translations []*storage.SegmentTranslation
	var enginesUsed []string
	for _, segment := range st.segments {
		if err := p.checkCancelled(ctx, job.ID); err != nil {
			return stageResult{}, err
		}

		result := p.translator.Translate(ctx, mtengine.Request{
			Text:           segment.SourceText,
			SourceLanguage: job.SourceLanguage.String,
			TargetLanguage: job.TargetLanguage,
			Industry:       job.Industry.String,
			Glossary:       st.glossary,
		}, order)

		translations = append(translations, &storage.SegmentTranslation{
			ID:              uuid.NewString(),
			SegmentID:       segment.ID,
			Engine:          string(result.Engine),
			TargetLocale:    job.TargetLanguage,
			TargetText:      result.Text,
			RawResponse:     nullString(truncate(result.Raw, maxRawResponseLen)),
			GlossaryMatches: encodeMatches(result.Matches),
		})
		enginesUsed = appendUnique(enginesUsed, string(result.Engine))
	}

	if err := p.jobs.ReplaceTranslations(ctx, job.ID, translations); err != nil {
		return stageResult{}, fmt.Errorf("persist translations: %w", err)
	}

	st.translations = translations

	engines := strings.Join(enginesUsed, ", ")
	if engines == "" {
		engines = "auto"
	}
	return stageResult{message: fmt.Sprintf("Translated %d segment(s) via %s.", len(translations), engines)}, nil
}

func (p *Pipeline) stageLayout(ctx context.Context, job *storage.TranslationJob, st *state) (stageResult, error) {
	if len(st.translations) == 0 {
		return stageResult{skipped: true, skipReason: "Translations not ready"}, nil
	}

	html := p.composeLayout(st)
	st.layoutHTML = html

	key := InlineHTML(html)
	uploaded := false
	if p.artifacts != nil {
		candidate := previewKey(job.UserID, job.ID, p.now())
		if err := p.putArtifact(ctx, candidate, []byte(html), "text/html; charset=utf-8"); err != nil {
			p.logger.WithJob(job.ID).Warn().Err(err).Msg("preview upload failed, using inline artifact")
		} else {
			key = candidate
			uploaded = true
		}
	}
	st.previewKey = key

	message := "Generated HTML preview"
	if uploaded {
		message = "Generated HTML preview and uploaded to object storage"
	}
	return stageResult{message: message}, nil
}

func (p *Pipeline) stageRender(ctx context.Context, job *storage.TranslationJob, st *state) (stageResult, error) {
	html := st.layoutHTML
	if html == "" {
		html = p.composeLayout(st)
	}

	texts := make([]string, 0, len(st.translations))
	for _, tr := range st.translations {
		texts = append(texts, tr.TargetText)
	}

	var pdf []byte
	if p.renderer != nil {
		rendered, err := p.renderer.RenderPDF(ctx, html)
		if err != nil {
			p.logger.WithJob(job.ID).Warn().Err(err).Msg("browser rendering failed")
		} else {
			pdf = rendered
		}
	}
	if pdf == nil {
		pdf = render.SimplePDF(strings.Join(texts, "\n\n"))
	}

	key := InlinePDF(pdf)
	uploaded := false
	if p.artifacts != nil {
		candidate := outputKey(job.UserID, job.ID, p.now())
		if err := p.putArtifact(ctx, candidate, pdf, "application/pdf"); err != nil {
			p.logger.WithJob(job.ID).Warn().Err(err).Msg("output upload failed, using inline artifact")
		} else {
			key = candidate
			uploaded = true
		}
	}
	st.outputKey = key

	message := "Rendered PDF (local fallback)"
	if uploaded {
		message = "Rendered PDF uploaded"
	}
	return stageResult{message: message}, nil
}

func (p *Pipeline) stagePublish(ctx context.Context, job *storage.TranslationJob, st *state) (stageResult, error) {
	now := p.now()

	output := st.outputKey
	if output == "" {
		output = job.OutputFileKey.String
	}
	preview := st.previewKey
	if preview == "" {
		preview = job.PreviewBundleKey.String
	}

	if err := p.jobs.Update(ctx, job.ID, storage.JobUpdate{
		Status:           ptr(storage.JobStatusCompleted),
		CurrentStage:     ptr(storage.StagePublish),
		Progress:         ptr(100),
		CompletedAt:      &now,
		OutputFileKey:    &output,
		PreviewBundleKey: &preview,
		PageCount:        ptr(len(st.pages)),
		SegmentCount:     ptr(len(st.segments)),
	}); err != nil {
		return stageResult{}, fmt.Errorf("publish job: %w", err)
	}

	p.logEvent(ctx, job.ID, storage.StagePublish, storage.EventCompleted, "Translation published")
	p.mirrorProgress(ctx, job.ID, storage.JobStatusCompleted, storage.StagePublish, 100)

	return stageResult{quiet: true, message: "Job completed"}, nil
}

// --- helpers ---

func (p *Pipeline) loadSource(ctx context.Context, job *storage.TranslationJob, st *state) ([]byte, error) {
	if st.sourcePDF != nil {
		return st.sourcePDF, nil
	}
	if job.SourceFileKey == "" {
		return nil, errors.New("source file key missing")
	}
	data, err := p.sources.Get(ctx, job.SourceFileKey)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, errors.New("PDF not found in storage")
	}
	if err != nil {
		return nil, fmt.Errorf("load source pdf: %w", err)
	}
	st.sourcePDF = data
	return data, nil
}

func (p *Pipeline) loadGlossary(ctx context.Context, glossaryID string) ([]glossary.Term, error) {
	entries, err := p.glossaries.LoadEntries(ctx, glossaryID)
	if err != nil {
		return nil, err
	}
	terms := make([]glossary.Term, 0, len(entries))
	for _, entry := range entries {
		terms = append(terms, glossary.Term{Source: entry.SourceTerm, Target: entry.TargetTerm})
	}
	return terms, nil
}

// persistPages uploads page backdrops and replaces the job's page rows.
func (p *Pipeline) persistPages(ctx context.Context, job *storage.TranslationJob, st *state, pages []*pageState) error {
	rows := make([]*storage.JobPage, 0, len(pages))
	for _, page := range pages {
		page.PageID = uuid.NewString()

		if page.BackgroundDataURI != "" {
			if contentType, data, ok := parseDataURI(page.BackgroundDataURI); ok {
				key := pageAssetKey("backgrounds", job.UserID, job.ID, page.Number, page.PageID+".png")
				if err := p.putArtifact(ctx, key, data, contentType); err != nil {
					p.logger.WithJob(job.ID).Warn().Err(err).Str("key", key).Msg("background upload failed")
				} else {
					page.BackgroundKey = key
				}
			}
		}

		row := &storage.JobPage{
			ID:               page.PageID,
			PageNumber:       page.Number,
			Width:            int(page.Width + 0.5),
			Height:           int(page.Height + 0.5),
			Rotation:         page.Rotation,
			OriginalAssetKey: nullString(job.SourceFileKey),
		}
		if page.DPI != nil {
			row.DPI = sql.NullInt64{Int64: int64(*page.DPI), Valid: true}
		}
		if page.BackgroundKey != "" {
			row.BackgroundAssetKey = nullString(page.BackgroundKey)
		}
		rows = append(rows, row)
		st.pageIDByNumber[page.Number] = page.PageID
	}

	if err := p.jobs.ReplacePages(ctx, job.ID, rows); err != nil {
		return fmt.Errorf("persist pages: %w", err)
	}
	return nil
}

// putArtifact writes to the artifact store, falling back to the source
// store when no dedicated artifact store is wired.
func (p *Pipeline) putArtifact(ctx context.Context, key string, data []byte, contentType string) error {
	store := p.artifacts
	if store == nil {
		store = p.sources
	}
	return store.Put(ctx, key, data, contentType)
}

func (p *Pipeline) composeLayout(st *state) string {
	pages := make([]layout.Page, 0, len(st.pages))
	for _, page := range st.pages {
		pages = append(pages, layout.Page{
			Number:            page.Number,
			Width:             page.Width,
			Height:            page.Height,
			BackgroundDataURI: page.BackgroundDataURI,
		})
	}

	segments := make([]layout.Segment, 0, len(st.segments))
	for _, seg := range st.segments {
		segments = append(segments, layout.Segment{
			ID:         seg.ID,
			PageNumber: seg.PageNumber,
			Box:        seg.BoundingBox,
		})
	}

	translations := make([]layout.Translation, 0, len(st.translations))
	for _, tr := range st.translations {
		translations = append(translations, layout.Translation{
			SegmentID: tr.SegmentID,
			Text:      tr.TargetText,
		})
	}

	return layout.ComposeHTML(pages, segments, translations)
}

func (p *Pipeline) enterStage(ctx context.Context, jobID string, stage storage.JobStage) error {
	if err := p.jobs.Update(ctx, jobID, storage.JobUpdate{
		Status:       ptr(storage.JobStatusProcessing),
		CurrentStage: &stage,
	}); err != nil {
		return fmt.Errorf("enter stage %s: %w", stage, err)
	}
	p.logEvent(ctx, jobID, stage, storage.EventStarted, stageStartMessages[stage])
	return nil
}

func (p *Pipeline) checkCancelled(ctx context.Context, jobID string) error {
	status, err := p.jobs.GetStatus(ctx, jobID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("poll job status: %w", err)
	}
	if status == storage.JobStatusCancelled {
		return ErrCancelled
	}
	return nil
}

func (p *Pipeline) logEvent(ctx context.Context, jobID string, stage storage.JobStage, status storage.EventStatus, message string) {
	err := p.jobs.InsertEvent(ctx, &storage.JobEvent{
		JobID:   jobID,
		Stage:   stage,
		Status:  status,
		Message: message,
	})
	if err != nil {
		p.logger.WithJob(jobID).Warn().Err(err).Msg("event insert failed")
	}
}

func (p *Pipeline) updateProgress(ctx context.Context, jobID string, stage storage.JobStage, completedStages int) {
	progress := min(100, int(float64(completedStages)/float64(len(stageSequence))*100+0.5))
	if err := p.jobs.Update(ctx, jobID, storage.JobUpdate{Progress: &progress}); err != nil {
		p.logger.WithJob(jobID).Warn().Err(err).Msg("progress update failed")
		return
	}
	p.mirrorProgress(ctx, jobID, storage.JobStatusProcessing, stage, progress)
}

// mirrorProgress keeps the cache snapshot in step with the database so
// status polling stays cheap. Failures are logged and ignored.
func (p *Pipeline) mirrorProgress(ctx context.Context, jobID string, status storage.JobStatus, stage storage.JobStage, progress int) {
	if p.cache == nil {
		return
	}
	err := cache.StoreProgress(ctx, p.cache, cache.ProgressSnapshot{
		JobID:    jobID,
		Status:   string(status),
		Stage:    string(stage),
		Progress: progress,
	})
	if err != nil {
		p.logger.WithJob(jobID).Debug().Err(err).Msg("progress cache write failed")
	}
}

// --- pure helpers ---

func normalizePreparedPages(pages []prepare.Page) []*pageState {
	out := make([]*pageState, 0, len(pages))
	for i, page := range pages {
		number := page.PageNumber
		if number <= 0 {
			number = i + 1
		}
		width := page.Width
		if width <= 0 {
			width = defaultPageWidth
		}
		height := page.Height
		if height <= 0 {
			height = defaultPageHeight
		}

		dataURI := ""
		if bg := page.BackgroundImage; bg != nil {
			if bg.DataURI != "" {
				dataURI = bg.DataURI
			} else if bg.Data != "" {
				contentType := bg.ContentType
				if contentType == "" {
					contentType = "image/png"
				}
				dataURI = "data:" + contentType + ";base64," + bg.Data
			}
		}

		out = append(out, &pageState{
			Number:            number,
			Width:             width,
			Height:            height,
			Rotation:          page.Rotation,
			DPI:               page.DPI,
			BackgroundDataURI: dataURI,
			TextContent:       page.TextContent,
		})
	}
	return out
}

func blueprintsFromPrepared(pages []prepare.Page) []blueprint {
	var out []blueprint
	for i, page := range pages {
		number := page.PageNumber
		if number <= 0 {
			number = i + 1
		}
		for blockIndex, block := range page.Blocks {
			text := strings.TrimSpace(block.Text)
			if text == "" {
				continue
			}
			blockID := block.BlockID
			if blockID == "" {
				blockID = block.ID
			}
			if blockID == "" {
				blockID = fmt.Sprintf("blk_%d_%d", number, blockIndex)
			}
			box := block.BBox
			if box == nil {
				box = block.BoundingBox
			}
			out = append(out, blueprint{
				PageNumber: number,
				BlockID:    blockID,
				Text:       text,
				Box:        box.Normalize(),
				Metadata:   block.Metadata,
			})
		}
	}
	return out
}

// fallbackPages represents the whole document as one default-sized page
// whose text comes straight out of the PDF bytes.
func fallbackPages(pdf []byte) []*pageState {
	segments := pdftext.ExtractSegments(pdf)
	return []*pageState{{
		Number:      1,
		Width:       defaultPageWidth,
		Height:      defaultPageHeight,
		TextContent: strings.Join(segments, "\n\n"),
	}}
}

func fallbackBlueprints(pages []*pageState) []blueprint {
	var out []blueprint
	for _, page := range pages {
		for i, block := range pdftext.SplitIntoBlocks(page.TextContent) {
			if strings.TrimSpace(block) == "" {
				continue
			}
			out = append(out, blueprint{
				PageNumber: page.Number,
				BlockID:    fmt.Sprintf("page%d_block_%d", page.Number, i),
				Text:       block,
				Box:        fallbackBox(i, page),
			})
		}
	}
	return out
}

func fallbackBlueprintsFor(st *state) []blueprint {
	return fallbackBlueprints(st.pages)
}

var dataURIPattern = regexp.MustCompile(`^data:(.+?);base64,(.+)$`)

func parseDataURI(uri string) (contentType string, data []byte, ok bool) {
	match := dataURIPattern.FindStringSubmatch(uri)
	if match == nil {
		return "", nil, false
	}
	decoded, err := base64.StdEncoding.DecodeString(match[2])
	if err != nil {
		return "", nil, false
	}
	return match[1], decoded, true
}

func encodeMatches(matches []glossary.Match) string {
	if len(matches) == 0 {
		return ""
	}
	data, err := json.Marshal(map[string]any{"matches": matches})
	if err != nil {
		return ""
	}
	return string(data)
}

func sourceFileName(job *storage.TranslationJob) string {
	if job.SourceFileName.Valid && job.SourceFileName.String != "" {
		return job.SourceFileName.String
	}
	return job.ID + ".pdf"
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

func ptr[T any](v T) *T {
	return &v
}
