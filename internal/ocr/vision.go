package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/traduceo/translation-engine/internal/pdftext"
)

// DefaultVisionBaseURL is the production Google Vision endpoint.
const DefaultVisionBaseURL = "https://vision.googleapis.com"

// VisionClient runs document text detection through the Google Vision
// files:annotate API.
type VisionClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewVisionClient creates a Vision provider. An empty apiKey yields a
// provider that always declines.
func NewVisionClient(baseURL, apiKey string, timeout time.Duration) *VisionClient {
	if baseURL == "" {
		baseURL = DefaultVisionBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &VisionClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type visionVertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type visionBoundingBox struct {
	Vertices []visionVertex `json:"vertices"`
}

type visionSymbol struct {
	Text string `json:"text"`
}

type visionWord struct {
	Symbols []visionSymbol `json:"symbols"`
}

type visionParagraph struct {
	Words       []visionWord       `json:"words"`
	BoundingBox *visionBoundingBox `json:"boundingBox"`
}

type visionBlock struct {
	Paragraphs []visionParagraph `json:"paragraphs"`
}

type visionPage struct {
	PageNumber *int          `json:"pageNumber"`
	Confidence float64       `json:"confidence"`
	Blocks     []visionBlock `json:"blocks"`
}

type visionAnnotation struct {
	Text  string       `json:"text"`
	Pages []visionPage `json:"pages"`
}

type visionResponse struct {
	Responses []struct {
		FullTextAnnotation *visionAnnotation `json:"fullTextAnnotation"`
	} `json:"responses"`
}

func (c *VisionClient) Recognize(ctx context.Context, req Request) (*Result, error) {
	if c.apiKey == "" {
		return nil, nil
	}

	payload := map[string]any{
		"requests": []map[string]any{{
			"inputConfig": map[string]any{
				"content":  base64.StdEncoding.EncodeToString(req.PDF),
				"mimeType": "application/pdf",
			},
			"features": []map[string]any{{"type": "DOCUMENT_TEXT_DETECTION"}},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode vision request: %w", err)
	}

	endpoint := c.baseURL + "/v1/files:annotate?key=" + url.QueryEscape(c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call vision api: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read vision response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Google Vision OCR failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	return normalizeVision(data)
}

// normalizeVision flattens Vision's block/paragraph hierarchy: each
// paragraph becomes one block with a box derived from its vertices. When
// the annotation has no page structure, the full text is split into
// sentence blocks on a single synthetic page.
func normalizeVision(data []byte) (*Result, error) {
	var parsed visionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode vision response: %w", err)
	}
	if len(parsed.Responses) == 0 || parsed.Responses[0].FullTextAnnotation == nil {
		return nil, nil
	}
	annotation := parsed.Responses[0].FullTextAnnotation

	if len(annotation.Pages) == 0 {
		var blocks []Block
		for i, entry := range pdftext.SplitIntoBlocks(annotation.Text) {
			blocks = append(blocks, Block{
				BlockID: fmt.Sprintf("gcv_fallback_%d", i),
				Text:    entry,
			})
		}
		return &Result{Pages: []Page{{
			PageNumber: 1,
			JSON:       json.RawMessage(data),
			Blocks:     blocks,
		}}}, nil
	}

	result := &Result{Pages: make([]Page, 0, len(annotation.Pages))}
	for pageIndex, page := range annotation.Pages {
		var blocks []Block
		for blockIndex, block := range page.Blocks {
			for paragraphIndex, paragraph := range block.Paragraphs {
				text := paragraphText(paragraph)
				if strings.TrimSpace(text) == "" {
					continue
				}
				entry := Block{
					BlockID: fmt.Sprintf("gcv_%d_%d_%d", pageIndex+1, blockIndex, paragraphIndex),
					Text:    text,
				}
				if paragraph.BoundingBox != nil {
					entry.BoundingBox = boxFromVertices(paragraph.BoundingBox.Vertices)
				}
				blocks = append(blocks, entry)
			}
		}

		number := pageIndex + 1
		if page.PageNumber != nil {
			number = *page.PageNumber
		}
		meta, _ := json.Marshal(map[string]any{
			"confidence": page.Confidence,
			"blockCount": len(page.Blocks),
		})
		result.Pages = append(result.Pages, Page{
			PageNumber: number,
			JSON:       meta,
			Blocks:     blocks,
		})
	}
	return result, nil
}

func paragraphText(paragraph visionParagraph) string {
	words := make([]string, 0, len(paragraph.Words))
	for _, word := range paragraph.Words {
		var sb strings.Builder
		for _, symbol := range word.Symbols {
			sb.WriteString(symbol.Text)
		}
		if sb.Len() > 0 {
			words = append(words, sb.String())
		}
	}
	return strings.Join(words, " ")
}

func boxFromVertices(vertices []visionVertex) *Box {
	if len(vertices) == 0 {
		return nil
	}
	minX, maxX := vertices[0].X, vertices[0].X
	minY, maxY := vertices[0].Y, vertices[0].Y
	for _, v := range vertices[1:] {
		minX = min(minX, v.X)
		maxX = max(maxX, v.X)
		minY = min(minY, v.Y)
		maxY = max(maxY, v.Y)
	}
	return &Box{
		X:      minX,
		Y:      minY,
		Width:  max(1, maxX-minX),
		Height: max(1, maxY-minY),
	}
}
