package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/janani/maai/models"
)

// LanguageIdentifier asks the language model to name the language of a
// patient message and translate it to English in one call.
type LanguageIdentifier struct {
	llm Completer
}

func NewLanguageIdentifier(llm Completer) *LanguageIdentifier {
	return &LanguageIdentifier{llm: llm}
}

// Identify returns the detected language and English translation. Any
// malformed answer is an error; callers fall back to plain translation.
func (d *LanguageIdentifier) Identify(ctx context.Context, text string) (models.LanguageIdentification, error) {
	var out models.LanguageIdentification

	raw, err := d.llm.Complete(ctx, identifyPrompt(text))
	if err != nil {
		return out, fmt.Errorf("language identification failed: %w", err)
	}
	cleaned := strings.Trim(stripCodeFence(raw), "`")
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return out, fmt.Errorf("language identification returned malformed json: %w", err)
	}
	out.EnglishTranslation = strings.TrimSpace(out.EnglishTranslation)
	if out.EnglishTranslation == "" {
		return out, ErrEmptyTranslation
	}
	out.DetectedLanguage = strings.TrimSpace(out.DetectedLanguage)
	return out, nil
}

func identifyPrompt(text string) string {
	return "Identify the language of this text and translate it to English. " +
		"The text is from a rural Indian patient about pregnancy health. " +
		`Provide the response as JSON only: {"detected_language": "...", "english_translation": "..."}.` +
		"\n\nTEXT: " + text
}
