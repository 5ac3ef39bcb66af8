package mtengine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/traduceo/translation-engine/internal/config"
	"github.com/traduceo/translation-engine/internal/glossary"
)

// LibreClient is the last rung of the auto chain: a LibreTranslate
// instance that needs no credential. Failures are swallowed so the caller
// can fall back to the source text.
type LibreClient struct {
	baseURL string
	http    *http.Client
}

func NewLibreClient(cfg config.LibreEngineConfig, timeout time.Duration) *LibreClient {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = "https://libretranslate.com"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &LibreClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type libreResponse struct {
	TranslatedText string `json:"translatedText"`
}

func (c *LibreClient) Translate(ctx context.Context, req Request) (*Result, error) {
	source := req.SourceLanguage
	if source == "" {
		source = "auto"
	}
	payload := map[string]string{
		"q":      req.Text,
		"source": source,
		"target": req.TargetLanguage,
		"format": "text",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil
	}

	var parsed libreResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, nil
	}
	output := strings.TrimSpace(parsed.TranslatedText)
	if output == "" {
		return nil, nil
	}

	text, matches := glossary.Apply(output, req.Glossary)
	return &Result{
		Text:    text,
		Engine:  KindAuto,
		Raw:     string(data),
		Matches: matches,
	}, nil
}
