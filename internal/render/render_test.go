package render

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traduceo/translation-engine/internal/config"
	"github.com/traduceo/translation-engine/internal/observability"
)

func TestSimplePDFStructure(t *testing.T) {
	pdf := string(SimplePDF("Bonjour le monde\nDeuxième ligne"))

	assert.True(t, strings.HasPrefix(pdf, "%PDF-1.4\n"))
	assert.True(t, strings.HasSuffix(pdf, "%%EOF"))
	assert.Contains(t, pdf, "/Type /Catalog")
	assert.Contains(t, pdf, "/MediaBox [0 0 612 792]")
	assert.Contains(t, pdf, "/BaseFont /Helvetica")
	assert.Contains(t, pdf, "(Bonjour le monde) Tj")
	assert.Contains(t, pdf, "(Deuxième ligne) Tj")
	assert.Contains(t, pdf, "xref\n0 6\n")
}

func TestSimplePDFEscapesLiterals(t *testing.T) {
	pdf := string(SimplePDF(`a (b) c\d`))

	assert.Contains(t, pdf, `(a \(b\) c\\d) Tj`)
}

func TestSimplePDFXrefOffsetsPointAtObjects(t *testing.T) {
	pdf := SimplePDF("hello")
	raw := string(pdf)

	start := strings.Index(raw, "xref\n0 6\n")
	require.Greater(t, start, 0)
	lines := strings.Split(raw[start:], "\n")
	// lines[2:7] are the five in-use entries.
	for i, line := range lines[2:7] {
		require.GreaterOrEqual(t, len(line), 10)
		offset, err := strconv.Atoi(line[:10])
		require.NoError(t, err)
		wantPrefix := fmt.Sprintf("%d 0 obj", i+1)
		assert.True(t, strings.HasPrefix(raw[offset:], wantPrefix),
			"xref entry %d should point at %q", i, wantPrefix)
	}
}

func TestRenderPDFUsesService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte("%PDF-rendered"))
	}))
	defer srv.Close()

	client := NewClient(config.RenderServiceConfig{URL: srv.URL, Token: "tok"}, observability.Nop())
	pdf, err := client.RenderPDF(context.Background(), "<html></html>")

	require.NoError(t, err)
	assert.Equal(t, "%PDF-rendered", string(pdf))
}

func TestRenderPDFFallsBackToCloudflare(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	cloud := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/client/v4/accounts/acct/browser_rendering/render/html", r.URL.Path)
		assert.Equal(t, "Bearer cftok", r.Header.Get("Authorization"))
		w.Write([]byte("%PDF-cloud"))
	}))
	defer cloud.Close()

	client := NewClient(config.RenderServiceConfig{
		URL:            broken.URL,
		CloudAccountID: "acct",
		CloudToken:     "cftok",
		CloudBaseURL:   cloud.URL,
	}, observability.Nop())

	pdf, err := client.RenderPDF(context.Background(), "<html></html>")

	require.NoError(t, err)
	assert.Equal(t, "%PDF-cloud", string(pdf))
}

func TestRenderPDFDeclinesWhenUnconfigured(t *testing.T) {
	client := NewClient(config.RenderServiceConfig{}, observability.Nop())

	pdf, err := client.RenderPDF(context.Background(), "<html></html>")

	assert.NoError(t, err)
	assert.Nil(t, pdf)
}
