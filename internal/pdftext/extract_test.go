package pdftext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSegmentsFromShowOperators(t *testing.T) {
	pdf := []byte("%PDF-1.4\nBT (Hello world) Tj ET\nBT (Second \\(line\\)) Tj ET")

	segments := ExtractSegments(pdf)

	assert.Equal(t, []string{"Hello world", "Second (line)"}, segments)
}

func TestExtractSegmentsFallsBackToPrintableBytes(t *testing.T) {
	pdf := append([]byte{0x01, 0x02}, []byte("plain words here")...)

	segments := ExtractSegments(pdf)

	assert.Equal(t, []string{"plain words here"}, segments)
}

func TestExtractSegmentsPlaceholderWhenEmpty(t *testing.T) {
	segments := ExtractSegments([]byte{0x00, 0x01, 0x02})

	assert.Equal(t, []string{NoTextPlaceholder}, segments)
}

func TestSplitIntoBlocksSentences(t *testing.T) {
	blocks := SplitIntoBlocks("Hello world. Nice to meet you.")

	assert.Equal(t, []string{"Hello world.", "Nice to meet you."}, blocks)
}

func TestSplitIntoBlocksKeepsDecimals(t *testing.T) {
	blocks := SplitIntoBlocks("Pi is 3.14 exactly. More text")

	assert.Equal(t, []string{"Pi is 3.14 exactly.", "More text."}, blocks)
}

func TestSplitIntoBlocksEmpty(t *testing.T) {
	assert.Nil(t, SplitIntoBlocks("   "))
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeWhitespace("  a\n\tb   c "))
}
