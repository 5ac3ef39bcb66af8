package ocr

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
)

// ServiceClient calls a dedicated OCR service.
type ServiceClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewServiceClient creates an OCR service client. An empty baseURL yields
// a provider that always declines.
func NewServiceClient(baseURL, token string, timeout time.Duration) *ServiceClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ServiceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type externalPage struct {
	PageNumber *int            `json:"pageNumber"`
	Number     *int            `json:"number"`
	JSON       json.RawMessage `json:"json"`
	Raw        json.RawMessage `json:"raw"`
	Blocks     []Block         `json:"blocks"`
	Segments   []Block         `json:"segments"`
}

type externalResponse struct {
	Pages []json.RawMessage `json:"pages"`
}

func (c *ServiceClient) Recognize(ctx context.Context, req Request) (*Result, error) {
	if c.baseURL == "" {
		return nil, nil
	}

	payload := map[string]any{
		"jobId":      req.JobID,
		"fileName":   req.FileName,
		"fileBase64": base64.StdEncoding.EncodeToString(req.PDF),
		"pageCount":  req.PageCount,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode ocr request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		token := c.token
		if !strings.HasPrefix(token, "Bearer ") {
			token = "Bearer " + token
		}
		httpReq.Header.Set("Authorization", token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call ocr service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ocr response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("custom OCR service failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	return normalizeExternal(data)
}

// normalizeExternal maps the service's loosely specified payload onto a
// Result. Pages may carry blocks under "blocks" or "segments"; the raw
// payload is preserved under "json", "raw", or the page object itself.
func normalizeExternal(data []byte) (*Result, error) {
	var outer externalResponse
	if err := json.Unmarshal(data, &outer); err != nil || outer.Pages == nil {
		return nil, nil
	}

	result := &Result{Pages: make([]Page, 0, len(outer.Pages))}
	for i, rawPage := range outer.Pages {
		var page externalPage
		if err := json.Unmarshal(rawPage, &page); err != nil {
			continue
		}

		number := i + 1
		if page.PageNumber != nil {
			number = *page.PageNumber
		} else if page.Number != nil {
			number = *page.Number
		}

		raw := page.JSON
		if raw == nil {
			raw = page.Raw
		}
		if raw == nil {
			raw = rawPage
		}

		blocks := page.Blocks
		if blocks == nil {
			blocks = page.Segments
		}

		result.Pages = append(result.Pages, Page{
			PageNumber: number,
			JSON:       raw,
			Blocks:     blocks,
		})
	}
	return result, nil
}
