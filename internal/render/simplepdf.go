package render

import (
	"fmt"
	"strings"
)

// SimplePDF writes a minimal single-page PDF containing the given text,
// one line per source line in Helvetica 12. It exists so the pipeline can
// still publish a valid output when no browser renderer is reachable.
func SimplePDF(text string) []byte {
	header := "%PDF-1.4\n"

	var body strings.Builder
	var offsets []int
	addObject := func(content string) {
		offsets = append(offsets, len(header)+body.Len())
		body.WriteString(content)
		body.WriteString("\n")
	}

	streamLines := []string{"BT", "/F1 12 Tf", "50 750 Td"}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		streamLines = append(streamLines, fmt.Sprintf("0 -16 Td (%s) Tj", sanitizeLiteral(line)))
	}
	streamLines = append(streamLines, "ET")
	stream := strings.Join(streamLines, "\n")

	addObject("1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj")
	addObject("2 0 obj << /Type /Pages /Kids [3 0 R] /Count 1 >> endobj")
	addObject("3 0 obj << /Type /Page /Parent 2 0 R /Resources << /Font << /F1 5 0 R >> >> /MediaBox [0 0 612 792] /Contents 4 0 R >> endobj")
	addObject(fmt.Sprintf("4 0 obj << /Length %d >> stream\n%s\nendstream endobj", len(stream), stream))
	addObject("5 0 obj << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> endobj")

	xrefOffset := len(header) + body.Len()
	var xref strings.Builder
	fmt.Fprintf(&xref, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, offset := range offsets {
		fmt.Fprintf(&xref, "%010d 00000 n \n", offset)
	}
	fmt.Fprintf(&xref, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF", len(offsets)+1, xrefOffset)

	return []byte(header + body.String() + xref.String())
}

// sanitizeLiteral escapes the characters PDF string literals reserve.
func sanitizeLiteral(input string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(input)
}
