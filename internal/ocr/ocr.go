// Package ocr recovers text from scanned documents, either through a
// dedicated OCR service or through the Google Vision API.
package ocr

import (
	"context"
	"encoding/json"

	"github.com/traduceo/translation-engine/internal/storage"
)

// Box is the bounding box shape OCR services return.
type Box struct {
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	Rotation *float64 `json:"rotation"`
}

// Normalize converts to a storage box with non-negative origin and
// dimensions of at least one point.
func (b *Box) Normalize() *storage.BoundingBox {
	if b == nil {
		return nil
	}
	box := &storage.BoundingBox{
		X:      max(0, b.X),
		Y:      max(0, b.Y),
		Width:  max(1, b.Width),
		Height: max(1, b.Height),
	}
	if b.Rotation != nil {
		r := *b.Rotation
		box.Rotation = &r
	}
	return box
}

// Block is one recognized text region.
type Block struct {
	ID          string         `json:"id"`
	BlockID     string         `json:"blockId"`
	Text        string         `json:"text"`
	BoundingBox *Box           `json:"boundingBox"`
	BBox        *Box           `json:"bbox"`
	Metadata    map[string]any `json:"metadata"`
}

// Key returns the block's identifier, preferring blockId over id.
func (b Block) Key() string {
	if b.BlockID != "" {
		return b.BlockID
	}
	return b.ID
}

// Box returns whichever bounding box field the service populated.
func (b Block) Box() *Box {
	if b.BoundingBox != nil {
		return b.BoundingBox
	}
	return b.BBox
}

// Page is the OCR output for one page. JSON holds the raw per-page payload
// that gets archived alongside the structured blocks.
type Page struct {
	PageNumber int             `json:"pageNumber"`
	JSON       json.RawMessage `json:"json"`
	Blocks     []Block         `json:"blocks"`
}

// Result is the normalized output of an OCR run.
type Result struct {
	Pages []Page `json:"pages"`
}

// Provider runs OCR on a PDF. A nil result with a nil error means the
// provider had nothing to contribute.
type Provider interface {
	Recognize(ctx context.Context, req Request) (*Result, error)
}

// Request describes a document to recognize.
type Request struct {
	JobID     string
	FileName  string
	PDF       []byte
	PageCount int
}

// Chain tries each provider in order and returns the first non-nil result.
// Provider errors propagate immediately.
type Chain []Provider

func (c Chain) Recognize(ctx context.Context, req Request) (*Result, error) {
	for _, p := range c {
		res, err := p.Recognize(ctx, req)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}
	return nil, nil
}
