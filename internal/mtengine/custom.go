package mtengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/traduceo/translation-engine/internal/config"
	"github.com/traduceo/translation-engine/internal/glossary"
)

// CustomClient posts to a user-provided translation endpoint. The endpoint
// receives the full glossary so it can apply terminology itself; the
// response is still enforced locally.
type CustomClient struct {
	endpoint string
	token    string
	http     *http.Client
}

func NewCustomClient(cfg config.CustomEngineConfig, timeout time.Duration) *CustomClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &CustomClient{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		http:     &http.Client{Timeout: timeout},
	}
}

type customResponse struct {
	Translation string `json:"translation"`
	Text        string `json:"text"`
}

func (c *CustomClient) Translate(ctx context.Context, req Request) (*Result, error) {
	if c.endpoint == "" {
		return nil, nil
	}

	terms := make([]map[string]string, 0, len(req.Glossary))
	for _, term := range req.Glossary {
		terms = append(terms, map[string]string{"source": term.Source, "target": term.Target})
	}
	payload := map[string]any{
		"text":           req.Text,
		"sourceLanguage": req.SourceLanguage,
		"targetLanguage": req.TargetLanguage,
		"industry":       req.Industry,
		"glossary":       terms,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
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
		return nil, fmt.Errorf("call custom translation endpoint: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read custom translation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("custom translation endpoint failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed customResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode custom translation response: %w", err)
	}
	output := strings.TrimSpace(parsed.Translation)
	if output == "" {
		output = strings.TrimSpace(parsed.Text)
	}
	if output == "" {
		return nil, nil
	}

	text, matches := glossary.Apply(output, req.Glossary)
	return &Result{
		Text:    text,
		Engine:  KindCustom,
		Raw:     string(data),
		Matches: matches,
	}, nil
}
