package services

import (
	"strings"
	"unicode"
)

const (
	// EnglishCode is the single canonical code every English variant maps to.
	EnglishCode = "en-IN"

	// SafeDefaultLanguage is used whenever the outbound target is missing,
	// unknown or English, and when a translation leaks Latin script.
	SafeDefaultLanguage     = "hi-IN"
	safeDefaultLanguageName = "Hindi"
	safeDefaultScript       = "Devanagari"
)

var languageCodes = map[string]string{
	"hindi":     "hi-IN",
	"punjabi":   "pa-IN",
	"marathi":   "mr-IN",
	"bengali":   "bn-IN",
	"telugu":    "te-IN",
	"tamil":     "ta-IN",
	"gujarati":  "gu-IN",
	"kannada":   "kn-IN",
	"malayalam": "ml-IN",
	"odia":      "or-IN",
	"assamese":  "as-IN",
	"urdu":      "ur-IN",
	"sanskrit":  "sa-IN",
	"english":   EnglishCode,
}

var languageNames = func() map[string]string {
	names := make(map[string]string, len(languageCodes))
	for name, code := range languageCodes {
		names[strings.ToLower(code)] = strings.ToUpper(name[:1]) + name[1:]
	}
	return names
}()

// NormalizeLanguageCode maps a language name or code to the code the
// translation API expects. Unknown values pass through untouched.
func NormalizeLanguageCode(lang string) string {
	trimmed := strings.TrimSpace(lang)
	code, ok := languageCodes[strings.ToLower(trimmed)]
	if !ok {
		code = trimmed
	}
	if IsEnglish(code) {
		return EnglishCode
	}
	return code
}

// IsEnglish reports whether a language name or code denotes English.
func IsEnglish(lang string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(lang)), "en")
}

// SameLanguage reports whether two language names/codes denote the same language.
func SameLanguage(a, b string) bool {
	if IsEnglish(a) && IsEnglish(b) {
		return true
	}
	return strings.EqualFold(NormalizeLanguageCode(a), NormalizeLanguageCode(b))
}

// IsKnownLanguage reports whether lang maps to a supported language code.
func IsKnownLanguage(lang string) bool {
	_, ok := languageNames[strings.ToLower(NormalizeLanguageCode(lang))]
	return ok
}

// LanguageLabel returns a human-readable name for prompts, e.g. "Hindi".
func LanguageLabel(lang string) string {
	if IsEnglish(lang) {
		return "English"
	}
	if name, ok := languageNames[strings.ToLower(NormalizeLanguageCode(lang))]; ok {
		return name
	}
	return strings.TrimSpace(lang)
}

// OutboundTarget chooses the language an answer is translated into.
// Missing, unknown and English codes all resolve to the safe default.
func OutboundTarget(lang string) string {
	if strings.TrimSpace(lang) == "" || strings.EqualFold(strings.TrimSpace(lang), "unknown") || IsEnglish(lang) {
		return SafeDefaultLanguage
	}
	if !IsKnownLanguage(lang) {
		return SafeDefaultLanguage
	}
	return NormalizeLanguageCode(lang)
}

// ContainsLatin reports whether text has any Latin-alphabet letter.
func ContainsLatin(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Latin, r) {
			return true
		}
	}
	return false
}
