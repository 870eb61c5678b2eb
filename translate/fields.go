package translate

import (
	"fmt"
	"regexp"
	"strings"
)

// Marketplace records carry per-language field variants (name_ar,
// description_bn, ...) whose values must reach the user untouched. Before
// outbound translation the values matching the target language are swapped
// for a placeholder, then restored afterwards.

const preservedPlaceholder = "[PRESERVED]"

var languageFieldNames = []string{"name", "description", "specification", "brand"}

var languageFieldPatterns = func() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(languageFieldNames))
	for _, name := range languageFieldNames {
		patterns[name] = regexp.MustCompile(`(?i)` + name + `_(en|ar|bn)\s*:\s*"([^"]*)"`)
	}
	return patterns
}()

// PreserveFields replaces values of language-suffixed fields matching the
// target language with a placeholder so the translator cannot mangle them.
// It returns the cleaned text and the preserved values keyed by field name.
func PreserveFields(text, targetLang string) (string, map[string]string) {
	preserved := map[string]string{}
	cleaned := text

	for fieldName, pattern := range languageFieldPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			suffix, value := match[1], match[2]
			if !strings.EqualFold(suffix, targetLang) {
				continue
			}

			key := fieldName + "_" + strings.ToLower(suffix)
			preserved[key] = value

			fieldPattern := regexp.MustCompile(key + `\s*:\s*"[^"]*"`)
			cleaned = fieldPattern.ReplaceAllString(cleaned, fmt.Sprintf("%s: %q", key, preservedPlaceholder))
		}
	}

	return cleaned, preserved
}

// RestoreFields puts preserved field values back in place of their
// placeholders. Values whose placeholder did not survive translation are
// appended so the information is never lost.
func RestoreFields(translated string, preserved map[string]string) string {
	out := translated

	for key, value := range preserved {
		placeholder := fmt.Sprintf("%s: %q", key, preservedPlaceholder)
		if strings.Contains(out, placeholder) {
			out = strings.ReplaceAll(out, placeholder, fmt.Sprintf("%s: %q", key, value))
			continue
		}
		out += fmt.Sprintf("\n%s: %q", key, value)
	}

	return out
}
