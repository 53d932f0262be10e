package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/janani/maai/models"

	"go.uber.org/zap"
)

// ErrEmptyTranslation is returned by a strategy that produced no text.
var ErrEmptyTranslation = errors.New("translation produced no text")

// Translator converts text between a local language and English. It never
// fails: when every strategy fails the original text comes back.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) string
	// TranslateEnforced is the outbound variant: a result that still
	// contains Latin letters is retried once in the safe default language.
	TranslateEnforced(ctx context.Context, text, sourceLang, targetLang string) models.TranslationResult
}

// TranslationStrategy is one link of the fallback chain. Codes passed in
// are already normalised.
type TranslationStrategy interface {
	Name() string
	Translate(ctx context.Context, text, sourceCode, targetCode string) (string, error)
}

// TranslationCache is a strategy that can also remember results.
type TranslationCache interface {
	TranslationStrategy
	Store(ctx context.Context, text, sourceCode, targetCode, translated string) error
}

type translatorImpl struct {
	strategies []TranslationStrategy
	cache      TranslationCache
	escalator  Completer
	logger     *zap.Logger
}

// NewTranslator builds the fallback chain: cache (optional), the remote
// translation API (optional), then the language model. The language model
// also performs the safe-default escalation.
func NewTranslator(primary TranslationStrategy, cache TranslationCache, llm Completer, logger *zap.Logger) Translator {
	t := &translatorImpl{escalator: llm, cache: cache, logger: logger}
	if cache != nil {
		t.strategies = append(t.strategies, cache)
	}
	if primary != nil {
		t.strategies = append(t.strategies, primary)
	}
	if llm != nil {
		t.strategies = append(t.strategies, &llmTranslation{llm: llm})
	}
	return t
}

func (t *translatorImpl) Translate(ctx context.Context, text, sourceLang, targetLang string) string {
	if strings.TrimSpace(text) == "" || SameLanguage(sourceLang, targetLang) {
		return text
	}

	src := NormalizeLanguageCode(sourceLang)
	tgt := NormalizeLanguageCode(targetLang)

	for i, s := range t.strategies {
		out, err := s.Translate(ctx, text, src, tgt)
		if err != nil {
			if !errors.Is(err, ErrCacheMiss) {
				t.logger.Warn("TRANSLATOR: strategy failed, trying next",
					zap.String("strategy", s.Name()),
					zap.String("source", src),
					zap.String("target", tgt),
					zap.Error(err))
			}
			continue
		}
		t.logger.Debug("TRANSLATOR: translated",
			zap.String("strategy", s.Name()),
			zap.String("source", src),
			zap.String("target", tgt))
		if t.cache != nil && i > 0 {
			if err := t.cache.Store(ctx, text, src, tgt, out); err != nil {
				t.logger.Warn("TRANSLATOR: cache write failed", zap.Error(err))
			}
		}
		return out
	}

	t.logger.Error("TRANSLATOR: all strategies failed, returning original text",
		zap.String("source", src), zap.String("target", tgt))
	return text
}

func (t *translatorImpl) TranslateEnforced(ctx context.Context, text, sourceLang, targetLang string) models.TranslationResult {
	result := models.TranslationResult{
		Text:             t.Translate(ctx, text, sourceLang, targetLang),
		ResolvedLanguage: NormalizeLanguageCode(targetLang),
	}
	if IsEnglish(targetLang) || !ContainsLatin(result.Text) || t.escalator == nil {
		return result
	}

	t.logger.Warn("TRANSLATOR: Latin script found in native answer, escalating to safe default",
		zap.String("target", result.ResolvedLanguage),
		zap.String("default", SafeDefaultLanguage))

	escalated, err := t.escalator.Complete(ctx, escalationPrompt(text))
	if err != nil {
		t.logger.Error("TRANSLATOR: escalation failed, keeping first translation", zap.Error(err))
		return result
	}
	escalated = strings.TrimSpace(escalated)
	if escalated == "" {
		return result
	}
	return models.TranslationResult{Text: escalated, ResolvedLanguage: SafeDefaultLanguage}
}

// llmTranslation is the language-model link of the chain.
type llmTranslation struct {
	llm Completer
}

func (l *llmTranslation) Name() string { return "llm" }

func (l *llmTranslation) Translate(ctx context.Context, text, _, targetCode string) (string, error) {
	out, err := l.llm.Complete(ctx, fallbackTranslationPrompt(text, LanguageLabel(targetCode)))
	if err != nil {
		return "", err
	}
	out = firstLine(out)
	if out == "" {
		return "", ErrEmptyTranslation
	}
	return out, nil
}

func fallbackTranslationPrompt(text, label string) string {
	return fmt.Sprintf("Translate the following to %s using native script only. "+
		"Provide ONLY the translation, nothing else:\n\n%s", label, text)
}

func escalationPrompt(text string) string {
	return fmt.Sprintf("The previous translation had English. Translate strictly to %s using %s script. "+
		"NEVER use English or Latin letters. Provide ONLY the %s translation:\n\n%s",
		strings.ToUpper(safeDefaultLanguageName), safeDefaultScript, safeDefaultLanguageName, text)
}

// firstLine returns the first non-blank line of s, trimmed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
