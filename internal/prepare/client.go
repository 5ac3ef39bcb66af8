// Package prepare talks to the external document preparation service,
// which rasterizes PDF pages and extracts positioned text blocks.
package prepare

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/traduceo/translation-engine/internal/storage"
)

// Box mirrors the service's bounding box payload. Services disagree on
// field names, so both spellings are accepted.
type Box struct {
	X        *float64 `json:"x"`
	Left     *float64 `json:"left"`
	Y        *float64 `json:"y"`
	Top      *float64 `json:"top"`
	Width    *float64 `json:"width"`
	W        *float64 `json:"w"`
	Height   *float64 `json:"height"`
	H        *float64 `json:"h"`
	Rotation *float64 `json:"rotation"`
}

// Normalize turns the flexible payload into a bounding box with origin
// clamped to non-negative and dimensions of at least one point. A nil box
// normalizes to nil.
func (b *Box) Normalize() *storage.BoundingBox {
	if b == nil {
		return nil
	}
	pick := func(a, alt *float64) float64 {
		if a != nil {
			return *a
		}
		if alt != nil {
			return *alt
		}
		return 0
	}
	box := &storage.BoundingBox{
		X:      max(0, pick(b.X, b.Left)),
		Y:      max(0, pick(b.Y, b.Top)),
		Width:  max(1, pick(b.Width, b.W)),
		Height: max(1, pick(b.Height, b.H)),
	}
	if b.Rotation != nil {
		r := *b.Rotation
		box.Rotation = &r
	}
	return box
}

// Block is one positioned text block on a page.
type Block struct {
	ID          string         `json:"id"`
	BlockID     string         `json:"blockId"`
	Text        string         `json:"text"`
	BBox        *Box           `json:"bbox"`
	BoundingBox *Box           `json:"boundingBox"`
	Metadata    map[string]any `json:"metadata"`
}

// BackgroundImage carries the rasterized page backdrop, either as a full
// data URI or as raw base64 plus a content type.
type BackgroundImage struct {
	Data        string `json:"data"`
	DataURI     string `json:"dataUri"`
	ContentType string `json:"contentType"`
}

// Page is one prepared page.
type Page struct {
	PageNumber      int              `json:"pageNumber"`
	Width           float64          `json:"width"`
	Height          float64          `json:"height"`
	Rotation        int              `json:"rotation"`
	DPI             *int             `json:"dpi"`
	BackgroundImage *BackgroundImage `json:"backgroundImage"`
	TextContent     string           `json:"textContent"`
	Blocks          []Block          `json:"blocks"`
}

// Response is the prepare service's result. RequiresOCR is a pointer so an
// absent field can be told apart from an explicit false.
type Response struct {
	PageCount   int    `json:"pageCount"`
	RequiresOCR *bool  `json:"requiresOcr"`
	Pages       []Page `json:"pages"`
}

// Request describes a document to prepare.
type Request struct {
	JobID        string
	FileName     string
	PDF          []byte
	OCRPreferred bool
}

// Client calls the prepare service over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a prepare client. An empty baseURL disables the
// client; callers should check Enabled before use.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a service URL is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Prepare submits the PDF and returns the service's page breakdown.
func (c *Client) Prepare(ctx context.Context, req Request) (*Response, error) {
	payload := map[string]any{
		"jobId":        req.JobID,
		"fileName":     req.FileName,
		"fileBase64":   base64.StdEncoding.EncodeToString(req.PDF),
		"ocrPreferred": req.OCRPreferred,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode prepare request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		authorize(httpReq, c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call prepare service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read prepare response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("document prepare service failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed Response
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode prepare response: %w", err)
	}
	return &parsed, nil
}

func authorize(req *http.Request, token string) {
	if strings.HasPrefix(token, "Bearer ") {
		req.Header.Set("Authorization", token)
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}
