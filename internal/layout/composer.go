// Package layout reconstructs the translated document as an HTML preview.
//
// Pages whose segments all carry bounding boxes are rendered as absolutely
// positioned overlays on top of the page backdrop; pages with any unboxed
// segment degrade to a flowed column of paragraphs.
package layout

import (
	"fmt"
	"html"
	"strings"

	"github.com/traduceo/translation-engine/internal/storage"
)

// Page is one page to compose.
type Page struct {
	Number            int
	Width             float64
	Height            float64
	BackgroundDataURI string
}

// Segment is one translatable region on a page.
type Segment struct {
	ID         string
	PageNumber int
	Box        *storage.BoundingBox
}

// Translation pairs a segment with its translated text.
type Translation struct {
	SegmentID string
	Text      string
}

// ComposeHTML builds the full preview document.
func ComposeHTML(pages []Page, segments []Segment, translations []Translation) string {
	texts := make(map[string]string, len(translations))
	for _, tr := range translations {
		texts[tr.SegmentID] = tr.Text
	}

	byPage := make(map[int][]Segment)
	for _, seg := range segments {
		byPage[seg.PageNumber] = append(byPage[seg.PageNumber], seg)
	}

	var sections []string
	for _, page := range pages {
		sections = append(sections, composePage(page, byPage[page.Number], texts))
	}

	return fmt.Sprintf(documentTemplate, strings.Join(sections, "\n"))
}

func composePage(page Page, segments []Segment, translations map[string]string) string {
	boxed := true
	for _, seg := range segments {
		if seg.Box == nil {
			boxed = false
			break
		}
	}

	var parts []string
	for _, seg := range segments {
		text, ok := translations[seg.ID]
		if !ok {
			continue
		}
		if boxed {
			box := seg.Box
			parts = append(parts, fmt.Sprintf(
				`<div class="page__textbox" style="left:%gpx;top:%gpx;width:%gpx;height:%gpx;">%s</div>`,
				box.X, box.Y, box.Width, box.Height, html.EscapeString(text)))
		} else {
			parts = append(parts, fmt.Sprintf(
				`<p class="page__paragraph">%s</p>`, html.EscapeString(text)))
		}
	}

	background := ""
	if page.BackgroundDataURI != "" {
		background = fmt.Sprintf(
			`<img class="page__background" src="%s" alt="Page %d background" />`,
			page.BackgroundDataURI, page.Number)
	}

	overlayClass := "page__overlay"
	if !boxed {
		overlayClass = "page__overlay page__overlay--flow"
	}

	return fmt.Sprintf(`<section class="page" data-page="%d" style="width:%gpx;height:%gpx;">
  %s
  <div class="%s">
    %s
  </div>
</section>`, page.Number, page.Width, page.Height, background, overlayClass, strings.Join(parts, "\n"))
}

const documentTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Translated PDF Preview</title>
  <style>
    :root { color-scheme: light; }
    * { box-sizing: border-box; }
    body {
      margin: 0;
      padding: 32px;
      background: #f3f4f6;
      font-family: "Inter", "Helvetica", sans-serif;
    }
    main {
      max-width: 960px;
      margin: 0 auto;
    }
    .page {
      position: relative;
      margin: 24px auto;
      background: #fff;
      border-radius: 6px;
      box-shadow: 0 15px 45px rgba(15, 23, 42, 0.15);
      overflow: hidden;
    }
    .page__background {
      position: absolute;
      inset: 0;
      width: 100%%;
      height: 100%%;
      object-fit: cover;
      filter: opacity(0.2);
    }
    .page__overlay {
      position: absolute;
      inset: 0;
      padding: 48px 56px;
      font-size: 14px;
      line-height: 1.6;
      color: #111827;
    }
    .page__overlay--flow {
      display: flex;
      flex-direction: column;
      gap: 12px;
      position: relative;
    }
    .page__textbox {
      position: absolute;
      white-space: pre-wrap;
      overflow-wrap: anywhere;
    }
    .page__paragraph {
      margin: 0;
      white-space: pre-wrap;
    }
  </style>
</head>
<body>
  <main>
    %s
  </main>
</body>
</html>`
