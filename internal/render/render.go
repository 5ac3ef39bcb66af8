// Package render converts the HTML preview into a PDF, trying a dedicated
// browser rendering service first, then Cloudflare's browser rendering API.
// When neither produces a document the caller uses SimplePDF.
package render

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
	"github.com/traduceo/translation-engine/internal/observability"
)

// DefaultCloudBaseURL is the production Cloudflare API endpoint.
const DefaultCloudBaseURL = "https://api.cloudflare.com"

// Renderer produces a PDF from HTML. A nil result with a nil error means
// no renderer is available; callers fall back to SimplePDF.
type Renderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// Client chains the configured rendering backends.
type Client struct {
	serviceURL   string
	serviceToken string
	accountID    string
	cloudToken   string
	cloudBaseURL string
	http         *http.Client
	logger       *observability.Logger
}

// NewClient builds a renderer from configuration.
func NewClient(cfg config.RenderServiceConfig, logger *observability.Logger) *Client {
	baseURL := cfg.CloudBaseURL
	if baseURL == "" {
		baseURL = DefaultCloudBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		serviceURL:   cfg.URL,
		serviceToken: cfg.Token,
		accountID:    cfg.CloudAccountID,
		cloudToken:   cfg.CloudToken,
		cloudBaseURL: strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

// RenderPDF tries each backend in turn. Backend failures are logged, not
// returned: rendering is best effort and the caller has a local fallback.
func (c *Client) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	if html == "" {
		return nil, nil
	}

	if c.serviceURL != "" {
		pdf, err := c.renderWithService(ctx, html)
		if err != nil {
			c.logger.Warn().Err(err).Msg("browser render service failed")
		} else if pdf != nil {
			return pdf, nil
		}
	}

	if c.accountID != "" && c.cloudToken != "" {
		pdf, err := c.renderWithCloudflare(ctx, html)
		if err != nil {
			c.logger.Warn().Err(err).Msg("cloudflare browser rendering failed")
		} else if pdf != nil {
			return pdf, nil
		}
	}

	return nil, nil
}

func (c *Client) renderWithService(ctx context.Context, html string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{"html": html})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.serviceToken != "" {
		token := c.serviceToken
		if !strings.HasPrefix(token, "Bearer ") {
			token = "Bearer " + token
		}
		req.Header.Set("Authorization", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call render service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("render service failed (%d)", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) renderWithCloudflare(ctx context.Context, html string) ([]byte, error) {
	payload := map[string]any{
		"html":          html,
		"wait_until":    []string{"load", "networkidle"},
		"response_type": "pdf",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/client/v4/accounts/%s/browser_rendering/render/html", c.cloudBaseURL, c.accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cloudToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call cloudflare rendering: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cloudflare rendering failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return io.ReadAll(resp.Body)
}
