package summarize

import (
	"strings"

	"github.com/vrsandeep/pagesum-go/internal/config"
	"github.com/vrsandeep/pagesum-go/internal/extract"
)

// BuildPrompt truncates text to maxChars runes and places it in template at
// the first %s, or after the template when it has none.
func BuildPrompt(template, text string, maxChars int) string {
	text = extract.Truncate(text, maxChars)
	if template == "" {
		template = config.DefaultPromptTemplate
	}
	if strings.Contains(template, "%s") {
		return strings.Replace(template, "%s", text, 1)
	}
	return template + "\n\n" + text
}
