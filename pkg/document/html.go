package document

import (
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	htmlPolicy     = bluemonday.StrictPolicy()
	htmlBlockBreak = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|li|tr|h[1-6]|blockquote|pre)\s*>`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
)

func readHTML(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	marked := htmlBlockBreak.ReplaceAllStringFunc(string(data), func(tag string) string {
		return tag + "\n"
	})
	text := html.UnescapeString(htmlPolicy.Sanitize(marked))

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}

	return strings.TrimSpace(blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")), nil
}
