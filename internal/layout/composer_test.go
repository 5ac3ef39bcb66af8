package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/traduceo/translation-engine/internal/storage"
)

func box(x, y, w, h float64) *storage.BoundingBox {
	return &storage.BoundingBox{X: x, Y: y, Width: w, Height: h}
}

func TestComposeHTMLAbsoluteOverlay(t *testing.T) {
	pages := []Page{{Number: 1, Width: 612, Height: 792}}
	segments := []Segment{
		{ID: "s1", PageNumber: 1, Box: box(48, 72, 200, 20)},
		{ID: "s2", PageNumber: 1, Box: box(48, 100, 200, 20)},
	}
	translations := []Translation{
		{SegmentID: "s1", Text: "Bonjour"},
		{SegmentID: "s2", Text: "Au revoir"},
	}

	html := ComposeHTML(pages, segments, translations)

	assert.Contains(t, html, `data-page="1"`)
	assert.Contains(t, html, `style="width:612px;height:792px;"`)
	assert.Contains(t, html, `class="page__textbox" style="left:48px;top:72px;width:200px;height:20px;"`)
	assert.Contains(t, html, ">Bonjour</div>")
	assert.NotContains(t, html, "page__overlay--flow")
}

func TestComposeHTMLFlowsWhenAnyBoxMissing(t *testing.T) {
	pages := []Page{{Number: 1, Width: 612, Height: 792}}
	segments := []Segment{
		{ID: "s1", PageNumber: 1, Box: box(48, 72, 200, 20)},
		{ID: "s2", PageNumber: 1},
	}
	translations := []Translation{
		{SegmentID: "s1", Text: "Un"},
		{SegmentID: "s2", Text: "Deux"},
	}

	html := ComposeHTML(pages, segments, translations)

	assert.Contains(t, html, "page__overlay--flow")
	assert.Contains(t, html, `<p class="page__paragraph">Un</p>`)
	assert.Contains(t, html, `<p class="page__paragraph">Deux</p>`)
	assert.NotContains(t, html, "page__textbox")
}

func TestComposeHTMLEscapesText(t *testing.T) {
	pages := []Page{{Number: 1, Width: 612, Height: 792}}
	segments := []Segment{{ID: "s1", PageNumber: 1, Box: box(0, 0, 10, 10)}}
	translations := []Translation{{SegmentID: "s1", Text: `<b>&"bold"</b>`}}

	html := ComposeHTML(pages, segments, translations)

	assert.Contains(t, html, "&lt;b&gt;&amp;")
	assert.NotContains(t, html, "<b>&")
}

func TestComposeHTMLBackgroundBackdrop(t *testing.T) {
	pages := []Page{{Number: 2, Width: 612, Height: 792, BackgroundDataURI: "data:image/png;base64,AAAA"}}

	html := ComposeHTML(pages, nil, nil)

	assert.Contains(t, html, `src="data:image/png;base64,AAAA"`)
	assert.Contains(t, html, `alt="Page 2 background"`)
}

func TestComposeHTMLSkipsUntranslatedSegments(t *testing.T) {
	pages := []Page{{Number: 1, Width: 612, Height: 792}}
	segments := []Segment{{ID: "s1", PageNumber: 1, Box: box(0, 0, 10, 10)}}

	html := ComposeHTML(pages, segments, nil)

	assert.NotContains(t, html, `class="page__textbox"`,
		"segment without translation should not render a textbox")
}
