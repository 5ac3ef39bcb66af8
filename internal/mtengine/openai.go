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

// OpenAIClient translates through the chat completions API with a
// translation-assistant system prompt.
type OpenAIClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

func NewOpenAIClient(cfg config.OpenAIEngineConfig, timeout time.Duration) *OpenAIClient {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIClient{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClient) Translate(ctx context.Context, req Request) (*Result, error) {
	if c.apiKey == "" {
		return nil, nil
	}

	parts := []string{"You are a professional PDF translation assistant."}
	if req.Industry != "" {
		parts = append(parts, fmt.Sprintf("Translate using terminology appropriate for the %s industry.", req.Industry))
	}
	if len(req.Glossary) > 0 {
		pairs := make([]string, 0, len(req.Glossary))
		for _, term := range req.Glossary {
			pairs = append(pairs, term.Source+" -> "+term.Target)
		}
		parts = append(parts, "Enforce the following terminology replacements where appropriate: "+strings.Join(pairs, "; ")+".")
	}
	parts = append(parts, fmt.Sprintf("Translate from %s to %s.", sourceOrAuto(req.SourceLanguage), req.TargetLanguage))
	parts = append(parts, "Return only the translated text without additional commentary.")

	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": strings.Join(parts, " ")},
			{"role": "user", "content": req.Text},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call openai: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read openai response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAI translation failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, nil
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return nil, nil
	}

	text, matches := glossary.Apply(content, req.Glossary)
	raw, _ := json.Marshal(map[string]string{"id": parsed.ID, "model": parsed.Model})
	return &Result{
		Text:    text,
		Engine:  KindOpenAI,
		Raw:     string(raw),
		Matches: matches,
	}, nil
}

func sourceOrAuto(lang string) string {
	if lang == "" {
		return "auto"
	}
	return lang
}
