package translate

import (
	"regexp"
	"strings"
	"sync"
)

// TermMemory pins the Arabic rendering of domain vocabulary that general
// translation tends to get wrong (trade terms, the BDT currency). It is
// applied after the model translation on the outbound path and in reverse
// before translating Arabic input to English. Only Arabic carries a term
// memory; Bengali output is used as translated.
type TermMemory struct {
	mu       sync.RWMutex
	terms    map[string]string         // lowercase English term -> Arabic rendering
	patterns map[string]*regexp.Regexp // lowercase English term -> compiled word-boundary match
}

// NewTermMemory returns a memory seeded with the client-provided Arabic
// vocabulary.
func NewTermMemory() *TermMemory {
	m := &TermMemory{
		terms: map[string]string{
			"sample":                 "العينة",
			"order":                  "الطلب",
			"quotation":              "عرض الأسعار",
			"bulk tanker":            "ناقل البضائع السائبة",
			"ex factory":             "التسليم من المصنع",
			"bdt":                    "تاكا بنغلاديشي",
			"bangladeshi taka":       "تاكا بنغلاديشي",
			"taka":                   "تاكا",
			"bdt (bangladeshi taka)": "تاكا بنغلاديشي",
			"price in bdt":           "السعر بالتاكا البنغلاديشي",
			"bangladeshi taka (bdt)": "تاكا بنغلاديشي",
		},
	}

	m.patterns = make(map[string]*regexp.Regexp, len(m.terms))
	for term := range m.terms {
		m.patterns[term] = compileTermPattern(term)
	}

	return m
}

func compileTermPattern(englishTerm string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(englishTerm) + `\b`)
}

var termVariations = map[string]string{
	"ex-factory":           "ex factory",
	"ex works":             "ex factory",
	"bulk-tanker":          "bulk tanker",
	"bulk-carrier":         "bulk carrier",
	"t.t":                  "tt",
	"telegraphic transfer": "tt",
	"letter of credit":     "lc",
	"full lc":              "full letter of credit",
}

// NormalizeTerm lowercases a term and collapses known spelling variations.
func NormalizeTerm(term string) string {
	normalized := strings.ToLower(strings.TrimSpace(term))
	if canonical, ok := termVariations[normalized]; ok {
		return canonical
	}
	return normalized
}

// Add registers or overrides the Arabic rendering of an English term. An
// empty rendering keeps the English term as-is.
func (m *TermMemory) Add(englishTerm, arabicRendering string) {
	if arabicRendering == "" {
		arabicRendering = englishTerm
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(englishTerm)
	m.terms[key] = arabicRendering
	m.patterns[key] = compileTermPattern(key)
}

// Terms returns the known English terms.
func (m *TermMemory) Terms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.terms))
	for term := range m.terms {
		out = append(out, term)
	}

	return out
}

// ApplyArabic replaces any remembered English terms that survived the model
// translation untranslated with their pinned Arabic rendering. It returns the
// corrected text and the substitutions made.
func (m *TermMemory) ApplyArabic(translated string) (string, map[string]string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	applied := map[string]string{}
	out := translated

	for englishTerm, arabic := range m.terms {
		pattern := m.patterns[englishTerm]

		if match := pattern.FindString(out); match != "" {
			out = pattern.ReplaceAllString(out, arabic)
			applied[match] = arabic
		}
	}

	return out, applied
}

// ReverseLookup swaps pinned Arabic renderings back to their English terms
// before the text is handed to the translator. It returns the processed text
// and the substitutions made.
func (m *TermMemory) ReverseLookup(text string) (string, map[string]string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	applied := map[string]string{}
	out := text

	for englishTerm, arabic := range m.terms {
		if strings.Contains(out, arabic) {
			out = strings.ReplaceAll(out, arabic, englishTerm)
			applied[arabic] = englishTerm
		}
	}

	return out, applied
}
