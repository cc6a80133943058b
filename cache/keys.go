package cache

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
)

// maxKeyLen bounds identifiers before they are folded into an md5 form.
// Keeps file-backed keys under filesystem name limits.
const maxKeyLen = 160

// KeyFor builds a stable identifier from an endpoint name and its
// parameters. Parameters are folded in sorted order so logically equal
// requests always produce the same key.
func KeyFor(endpoint string, params map[string]string) string {
	clean := strings.ReplaceAll(strings.Trim(endpoint, "/"), "/", "_")
	if len(params) == 0 {
		return boundKey(clean)
	}

	parts := make([]string, 0, len(params))
	for k, v := range params {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)

	return boundKey(clean + "__" + strings.Join(parts, "__"))
}

// QuestionKey builds the lossy assistant cache key: normalized question
// text plus only the last window turns of history, hashed. Two
// conversations sharing a normalized tail intentionally collide; that is
// the hit-rate tradeoff, not a defect.
func QuestionKey(question string, history []string, window int) string {
	if window < 0 {
		window = 0
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}

	parts := make([]string, 0, len(history)+1)
	parts = append(parts, Normalize(question))
	for _, h := range history {
		parts = append(parts, Normalize(h))
	}

	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("q_%x", sum)
}

// Normalize lower-cases text and collapses runs of whitespace so
// semantically identical questions map to the same key.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// boundKey replaces an identifier over maxKeyLen with an md5 form.
func boundKey(key string) string {
	if len(key) > maxKeyLen {
		sum := md5.Sum([]byte(key))
		return fmt.Sprintf("k_%x", sum)
	}
	return key
}
