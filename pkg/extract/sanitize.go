package extract

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	utterancePolicyOnce sync.Once
	utterancePolicy     *bluemonday.Policy
)

// Sanitize strips markup from a user utterance and returns plain text. Entity
// escapes introduced by the policy are decoded again so quotes and ampersands
// survive into extraction.
func Sanitize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	cleaned := utteranceSanitizer().Sanitize(trimmed)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

func utteranceSanitizer() *bluemonday.Policy {
	utterancePolicyOnce.Do(func() {
		utterancePolicy = bluemonday.StrictPolicy()
	})
	return utterancePolicy
}
