package pipeline

import (
	"github.com/traduceo/translation-engine/internal/glossary"
	"github.com/traduceo/translation-engine/internal/storage"
)

// Default page geometry for documents the prepare service cannot describe.
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
	defaultFontSize   = 12.0
)

// pageState is one page as it moves through the stages.
type pageState struct {
	Number            int
	Width             float64
	Height            float64
	Rotation          int
	DPI               *int
	BackgroundDataURI string
	BackgroundKey     string
	TextContent       string
	PageID            string
}

// blueprint is a segment candidate waiting for persistence.
type blueprint struct {
	PageNumber int
	BlockID    string
	Text       string
	Box        *storage.BoundingBox
	Metadata   map[string]any
}

// state accumulates the pipeline run. Stages read and mutate it in order.
type state struct {
	sourcePDF      []byte
	pages          []*pageState
	pageIDByNumber map[int]string
	blueprints     []blueprint
	segments       []*storage.Segment
	translations   []*storage.SegmentTranslation
	requiresOCR    bool
	layoutHTML     string
	previewKey     string
	outputKey      string
	glossary       []glossary.Term
}

func (s *state) page(number int) *pageState {
	for _, p := range s.pages {
		if p.Number == number {
			return p
		}
	}
	return nil
}

// clampBox confines a bounding box to its page.
func clampBox(box *storage.BoundingBox, page *pageState) *storage.BoundingBox {
	if box == nil || page == nil {
		return box
	}
	maxWidth := page.Width
	if maxWidth == 0 {
		maxWidth = defaultPageWidth
	}
	maxHeight := page.Height
	if maxHeight == 0 {
		maxHeight = defaultPageHeight
	}

	clamped := *box
	clamped.X = max(0, min(box.X, maxWidth))
	clamped.Y = max(0, min(box.Y, maxHeight))
	clamped.Width = min(box.Width, max(0, maxWidth-clamped.X))
	clamped.Height = min(box.Height, max(0, maxHeight-clamped.Y))
	return &clamped
}

// fallbackBox positions the index-th flowed block on a page that carries
// no layout information.
func fallbackBox(index int, page *pageState) *storage.BoundingBox {
	pageWidth := defaultPageWidth
	pageHeight := defaultPageHeight
	if page != nil {
		if page.Width > 0 {
			pageWidth = page.Width
		}
		if page.Height > 0 {
			pageHeight = page.Height
		}
	}

	const topPadding = 72.0
	lineHeight := defaultFontSize * 1.8
	y := min(pageHeight-lineHeight-24, topPadding+float64(index)*(lineHeight+6))

	return &storage.BoundingBox{
		X:      48,
		Y:      y,
		Width:  max(100, pageWidth-96),
		Height: lineHeight,
	}
}
