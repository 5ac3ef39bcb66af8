// Package glossary enforces term substitutions on translated text.
package glossary

import (
	"regexp"
	"strings"
)

// Term is one source-to-target substitution.
type Term struct {
	Source string
	Target string
}

// Match records one enforced term and how many times it was applied.
type Match struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Count  int    `json:"count"`
}

// Apply replaces every whole-word, case-insensitive occurrence of each
// term's source with its target. Terms with an empty source or target are
// ignored. Replacement is literal, so targets containing $ are safe.
func Apply(text string, terms []Term) (string, []Match) {
	if text == "" || len(terms) == 0 {
		return text, nil
	}

	var matches []Match
	result := text
	for _, term := range terms {
		source := strings.TrimSpace(term.Source)
		target := strings.TrimSpace(term.Target)
		if source == "" || target == "" {
			continue
		}

		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(source) + `\b`)
		if err != nil {
			continue
		}
		count := len(re.FindAllStringIndex(result, -1))
		if count == 0 {
			continue
		}
		result = re.ReplaceAllLiteralString(result, target)
		matches = append(matches, Match{Source: source, Target: target, Count: count})
	}
	return result, matches
}
