package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeExternalBlocksAndSegments(t *testing.T) {
	payload := []byte(`{"pages":[
		{"pageNumber":2,"json":{"a":1},"blocks":[{"blockId":"b1","text":"hi"}]},
		{"segments":[{"id":"s1","text":"there"}]}
	]}`)

	result, err := normalizeExternal(payload)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Pages, 2)

	assert.Equal(t, 2, result.Pages[0].PageNumber)
	assert.Equal(t, "b1", result.Pages[0].Blocks[0].Key())

	// Second page has no number, so it takes its position.
	assert.Equal(t, 2, result.Pages[1].PageNumber)
	assert.Equal(t, "s1", result.Pages[1].Blocks[0].Key())
	assert.Equal(t, "there", result.Pages[1].Blocks[0].Text)
}

func TestNormalizeExternalRejectsUnknownShape(t *testing.T) {
	result, err := normalizeExternal([]byte(`{"text":"no pages here"}`))

	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestNormalizeVisionParagraphs(t *testing.T) {
	payload := []byte(`{"responses":[{"fullTextAnnotation":{
		"text":"Hello world",
		"pages":[{"confidence":0.97,"blocks":[{"paragraphs":[{
			"words":[
				{"symbols":[{"text":"H"},{"text":"e"},{"text":"l"},{"text":"l"},{"text":"o"}]},
				{"symbols":[{"text":"w"},{"text":"o"},{"text":"r"},{"text":"l"},{"text":"d"}]}
			],
			"boundingBox":{"vertices":[{"x":10,"y":20},{"x":110,"y":20},{"x":110,"y":44},{"x":10,"y":44}]}
		}]}]}]
	}}]}`)

	result, err := normalizeVision(payload)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Pages, 1)

	page := result.Pages[0]
	assert.Equal(t, 1, page.PageNumber)
	require.Len(t, page.Blocks, 1)
	assert.Equal(t, "Hello world", page.Blocks[0].Text)
	assert.Equal(t, "gcv_1_0_0", page.Blocks[0].BlockID)

	box := page.Blocks[0].Box()
	require.NotNil(t, box)
	assert.Equal(t, 10.0, box.X)
	assert.Equal(t, 100.0, box.Width)
	assert.Equal(t, 24.0, box.Height)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(page.JSON, &meta))
	assert.Equal(t, 0.97, meta["confidence"])
}

func TestNormalizeVisionTextFallback(t *testing.T) {
	payload := []byte(`{"responses":[{"fullTextAnnotation":{"text":"One thing. Another thing."}}]}`)

	result, err := normalizeVision(payload)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Pages, 1)
	require.Len(t, result.Pages[0].Blocks, 2)
	assert.Equal(t, "gcv_fallback_0", result.Pages[0].Blocks[0].BlockID)
	assert.Equal(t, "One thing.", result.Pages[0].Blocks[0].Text)
}

func TestVisionClientDisabledWithoutKey(t *testing.T) {
	client := NewVisionClient("", "", 0)

	result, err := client.Recognize(context.Background(), Request{PDF: []byte("%PDF")})

	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestServiceClientSendsDocument(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pages":[{"pageNumber":1,"blocks":[{"blockId":"b","text":"scanned"}]}]}`))
	}))
	defer srv.Close()

	client := NewServiceClient(srv.URL, "secret", 0)
	result, err := client.Recognize(context.Background(), Request{
		JobID:     "job-1",
		FileName:  "doc.pdf",
		PDF:       []byte("%PDF"),
		PageCount: 3,
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "job-1", got["jobId"])
	assert.Equal(t, float64(3), got["pageCount"])
	assert.Equal(t, "scanned", result.Pages[0].Blocks[0].Text)
}

func TestChainFirstResultWins(t *testing.T) {
	decline := NewServiceClient("", "", 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pages":[{"pageNumber":1}]}`))
	}))
	defer srv.Close()

	chain := Chain{decline, NewServiceClient(srv.URL, "", 0)}
	result, err := chain.Recognize(context.Background(), Request{PDF: []byte("%PDF")})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Len(t, result.Pages, 1)
}
