package mtengine

import (
	"bytes"
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

// GoogleClient translates through the Google Translate v2 API.
type GoogleClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewGoogleClient(cfg config.GoogleEngineConfig, timeout time.Duration) *GoogleClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://translation.googleapis.com"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &GoogleClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type googleResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
}

func (c *GoogleClient) Translate(ctx context.Context, req Request) (*Result, error) {
	if c.apiKey == "" {
		return nil, nil
	}

	payload := map[string]any{
		"q":      req.Text,
		"target": req.TargetLanguage,
		"format": "text",
	}
	if req.SourceLanguage != "" && req.SourceLanguage != "auto" {
		payload["source"] = req.SourceLanguage
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/language/translate/v2?key=" + url.QueryEscape(c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call google translate: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read google translate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Google Translate failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed googleResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode google translate response: %w", err)
	}
	if len(parsed.Data.Translations) == 0 {
		return nil, nil
	}
	output := parsed.Data.Translations[0].TranslatedText
	if strings.TrimSpace(output) == "" {
		return nil, nil
	}

	text, matches := glossary.Apply(output, req.Glossary)
	raw, _ := json.Marshal(map[string]string{
		"detectedSourceLanguage": parsed.Data.Translations[0].DetectedSourceLanguage,
	})
	return &Result{
		Text:    text,
		Engine:  KindGoogle,
		Raw:     string(raw),
		Matches: matches,
	}, nil
}
