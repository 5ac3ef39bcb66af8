package pipeline

import (
	"github.com/traduceo/translation-engine/internal/storage"
)

// Stages run in this fixed order; each counts for an equal share of the
// job's progress.
var stageSequence = []storage.JobStage{
	storage.StagePrepare,
	storage.StageOCR,
	storage.StageSegment,
	storage.StageTranslate,
	storage.StageLayout,
	storage.StageRender,
	storage.StagePublish,
}

var stageLabels = map[storage.JobStage]string{
	storage.StagePrepare:   "Prepare",
	storage.StageOCR:       "OCR",
	storage.StageSegment:   "Segment",
	storage.StageTranslate: "Translate",
	storage.StageLayout:    "Layout",
	storage.StageRender:    "Render",
	storage.StagePublish:   "Publish",
}

var stageStartMessages = map[storage.JobStage]string{
	storage.StagePrepare:   "Preparing source document",
	storage.StageOCR:       "Running OCR for scanned content",
	storage.StageSegment:   "Generating translation segments",
	storage.StageTranslate: "Translating text",
	storage.StageLayout:    "Reconstructing translated layout",
	storage.StageRender:    "Rendering translated PDF",
	storage.StagePublish:   "Publishing translated artifacts",
}

// stageResult is what a stage handler reports back to the runner.
type stageResult struct {
	message    string
	skipped    bool
	skipReason string
	quiet      bool
}

func (r stageResult) completionMessage(stage storage.JobStage) string {
	if r.message != "" {
		return r.message
	}
	if r.skipped {
		if r.skipReason != "" {
			return stageLabels[stage] + " skipped: " + r.skipReason
		}
		return stageLabels[stage] + " skipped"
	}
	return stageLabels[stage] + " complete"
}
