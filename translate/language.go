package translate

import "strings"

// Supported language codes. English is the pipeline's working language;
// Arabic and Bengali are translated at the edges.
const (
	LangEnglish = "en"
	LangArabic  = "ar"
	LangBengali = "bn"
)

// DefaultLanguage is used when a request carries no language or an
// unsupported one.
const DefaultLanguage = LangEnglish

var languageAliases = map[string]string{
	"en":      LangEnglish,
	"english": LangEnglish,
	"ar":      LangArabic,
	"arabic":  LangArabic,
	"bn":      LangBengali,
	"bengali": LangBengali,
	"bangla":  LangBengali,
}

// Normalize maps a language code or English language name (case-insensitive)
// to its canonical code. The second return value reports whether the input
// named a supported language.
func Normalize(language string) (string, bool) {
	code, ok := languageAliases[strings.ToLower(strings.TrimSpace(language))]
	return code, ok
}

// Supported reports whether the given language code or name is supported.
func Supported(language string) bool {
	_, ok := Normalize(language)
	return ok
}
