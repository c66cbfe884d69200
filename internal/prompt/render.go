package prompt

import (
	"regexp"
	"strings"

	"github.com/hpungsan/quill/internal/errors"
)

var placeholderRegex = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Render substitutes {{name}} placeholders with vars. Unknown placeholders are
// left in place unless strict is set, in which case they are reported.
func Render(content string, vars map[string]string, strict bool) (string, error) {
	var missing []string
	seen := make(map[string]bool)

	out := placeholderRegex.ReplaceAllStringFunc(content, func(m string) string {
		name := placeholderRegex.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
		return m
	})

	if strict && len(missing) > 0 {
		return "", errors.NewInvalidRequest("missing values for placeholders: " + strings.Join(missing, ", "))
	}
	return out, nil
}

// Placeholders lists the distinct placeholder names in content, in order of
// first appearance.
func Placeholders(content string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderRegex.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
