// Package pdftext extracts translatable text from raw PDF bytes and splits
// it into sentence-level blocks.
//
// The extractor reads literal-string show operators directly; it is not a
// full PDF parser. Compressed content streams fall back to a printable-byte
// scan so every document yields at least one segment.
package pdftext

import (
	"regexp"
	"strings"
	"unicode"
)

// NoTextPlaceholder is emitted when a document yields nothing extractable.
const NoTextPlaceholder = "(no extractable text)"

var (
	tjPattern        = regexp.MustCompile(`\(([^()]*)\)\s*Tj`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
	nonPrintableRuns = regexp.MustCompile(`[^\x20-\x7E\n]+`)
)

// ExtractSegments pulls text out of raw PDF bytes. Each Tj literal string
// becomes one entry. When no Tj operators are found, the printable bytes of
// the whole document form a single entry.
func ExtractSegments(pdf []byte) []string {
	raw := latin1String(pdf)

	var segments []string
	for _, match := range tjPattern.FindAllStringSubmatch(raw, -1) {
		value := unescapeLiteral(match[1])
		cleaned := NormalizeWhitespace(value)
		if cleaned != "" {
			segments = append(segments, cleaned)
		}
	}

	if len(segments) == 0 {
		fallback := strings.TrimSpace(nonPrintableRuns.ReplaceAllString(raw, " "))
		if fallback != "" {
			return []string{fallback}
		}
		return []string{NoTextPlaceholder}
	}
	return segments
}

// latin1String decodes bytes 1:1 into runes so regexp matching sees every
// byte of the stream.
func latin1String(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

func unescapeLiteral(s string) string {
	r := strings.NewReplacer(`\(`, "(", `\)`, ")", `\n`, "\n", `\r`, "\r")
	return r.Replace(s)
}

// NormalizeWhitespace collapses whitespace runs to single spaces and trims.
func NormalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// SplitIntoBlocks splits text into sentence blocks at periods, keeping
// decimal numbers like "3.14" and ellipses intact. Each block keeps its
// trailing period.
func SplitIntoBlocks(text string) []string {
	normalized := NormalizeWhitespace(text)
	if normalized == "" {
		return nil
	}

	var blocks []string
	runes := []rune(normalized)
	start := 0
	for i, r := range runes {
		if r != '.' {
			continue
		}
		if i > 0 && runes[i-1] == '.' {
			continue
		}
		if i+1 < len(runes) && unicode.IsDigit(runes[i+1]) {
			continue
		}
		part := strings.TrimSpace(string(runes[start:i]))
		if part != "" {
			blocks = append(blocks, part+".")
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		if !strings.HasSuffix(tail, ".") {
			tail += "."
		}
		blocks = append(blocks, tail)
	}

	if len(blocks) == 0 {
		return []string{normalized}
	}
	return blocks
}
