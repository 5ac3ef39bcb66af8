package pipeline

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Artifact keys are scoped by user and job. When no object store is
// reachable the artifact is embedded in the key itself behind an inline
// prefix, so downstream consumers can always resolve it.
const (
	InlinePDFPrefix  = "inline-pdf:"
	InlineHTMLPrefix = "inline-html:"
)

func userScope(userID string) string {
	if userID == "" {
		return "anonymous"
	}
	return userID
}

func pageAssetKey(scope, userID, jobID string, pageNumber int, fileName string) string {
	return fmt.Sprintf("%s/%s/%s/page-%d/%s", scope, userScope(userID), jobID, pageNumber, fileName)
}

func previewKey(userID, jobID string, now time.Time) string {
	return fmt.Sprintf("previews/%s/%s/%d.html", userScope(userID), jobID, now.UnixMilli())
}

func outputKey(userID, jobID string, now time.Time) string {
	return fmt.Sprintf("outputs/%s/%s/%d.pdf", userScope(userID), jobID, now.UnixMilli())
}

// InlinePDF wraps PDF bytes as an inline artifact key.
func InlinePDF(data []byte) string {
	return InlinePDFPrefix + base64.StdEncoding.EncodeToString(data)
}

// InlineHTML wraps an HTML document as an inline artifact key.
func InlineHTML(html string) string {
	return InlineHTMLPrefix + base64.StdEncoding.EncodeToString([]byte(html))
}

// DecodeInline resolves an inline artifact key back to its payload. The
// second return is false when the key is a plain storage key.
func DecodeInline(key string) ([]byte, bool) {
	var encoded string
	switch {
	case strings.HasPrefix(key, InlinePDFPrefix):
		encoded = key[len(InlinePDFPrefix):]
	case strings.HasPrefix(key, InlineHTMLPrefix):
		encoded = key[len(InlineHTMLPrefix):]
	default:
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	return data, true
}
