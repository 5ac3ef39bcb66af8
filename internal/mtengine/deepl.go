package mtengine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/traduceo/translation-engine/internal/config"
	"github.com/traduceo/translation-engine/internal/glossary"
)

// DeepLClient translates through the DeepL v2 REST API.
type DeepLClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewDeepLClient(cfg config.DeepLEngineConfig, timeout time.Duration) *DeepLClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api-free.deepl.com"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &DeepLClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type deepLResponse struct {
	Translations []struct {
		Text                   string `json:"text"`
		DetectedSourceLanguage string `json:"detected_source_language"`
	} `json:"translations"`
}

func (c *DeepLClient) Translate(ctx context.Context, req Request) (*Result, error) {
	if c.apiKey == "" {
		return nil, nil
	}

	form := url.Values{}
	form.Set("text", req.Text)
	form.Set("target_lang", strings.ToUpper(req.TargetLanguage))
	if req.SourceLanguage != "" && req.SourceLanguage != "auto" {
		form.Set("source_lang", strings.ToUpper(req.SourceLanguage))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/translate",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call deepl: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read deepl response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DeepL translation failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed deepLResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode deepl response: %w", err)
	}
	if len(parsed.Translations) == 0 {
		return nil, nil
	}
	output := strings.TrimSpace(parsed.Translations[0].Text)
	if output == "" {
		return nil, nil
	}

	text, matches := glossary.Apply(output, req.Glossary)
	raw, _ := json.Marshal(map[string]string{
		"detectedSourceLanguage": parsed.Translations[0].DetectedSourceLanguage,
	})
	return &Result{
		Text:    text,
		Engine:  KindDeepL,
		Raw:     string(raw),
		Matches: matches,
	}, nil
}
