// Package render substitutes job data into template placeholders.
package render

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Render replaces every {name} placeholder in text with the matching value
// from data. A placeholder with no matching key fails the whole render.
func Render(text string, data map[string]any) (string, error) {
	var missing []string

	rendered := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1 : len(match)-1]

		value, ok := data[name]
		if !ok {
			missing = append(missing, name)
			return match
		}

		return fmt.Sprint(value)
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}

	return rendered, nil
}
