package services

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"strings"
	"time"

	"github.com/janani/maai/models"

	"go.uber.org/zap"
)

// AnswerGenerator produces the grounded English answer as a stream.
type AnswerGenerator interface {
	// Generate retrieves context, then yields voice-safe fragments as the
	// model produces them. An upstream failure is yielded as an error.
	Generate(ctx context.Context, query, patientData string, history []models.ChatMessage) iter.Seq2[string, error]
}

type generatorImpl struct {
	retriever Retriever
	streamer  TokenStreamer
	timeout   time.Duration
	logger    *zap.Logger
}

// NewAnswerGenerator wires a retriever to one of the streaming providers
// (GeminiModel or LangChainModel).
func NewAnswerGenerator(retriever Retriever, streamer TokenStreamer, timeout time.Duration, logger *zap.Logger) AnswerGenerator {
	return &generatorImpl{retriever: retriever, streamer: streamer, timeout: timeout, logger: logger}
}

func (g *generatorImpl) Generate(ctx context.Context, query, patientData string, history []models.ChatMessage) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		retrieved, err := g.retriever.Retrieve(ctx, query)
		if err != nil {
			yield("", fmt.Errorf("retrieval failed: %w", err))
			return
		}
		g.logger.Info("GENERATOR: context retrieved",
			zap.Int("passages", len(retrieved.Passages)),
			zap.Strings("sources", retrieved.Sources()))

		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}

		prompt := buildQuestionPrompt(retrieved.Context(), patientData, query)
		filter := &voiceFilter{atLineStart: true}
		for fragment, err := range g.streamer.Stream(ctx, GetSystemPrompt(), models.TrimHistory(history), prompt) {
			if err != nil {
				yield("", fmt.Errorf("generation failed: %w", err))
				return
			}
			clean := filter.Clean(fragment)
			if clean == "" {
				continue
			}
			if !yield(clean, nil) {
				return
			}
		}
		if rest := filter.Flush(); rest != "" {
			yield(rest, nil)
		}
	}
}

// CollectAnswer drains a fragment stream into the final trimmed answer.
func CollectAnswer(fragments iter.Seq2[string, error]) (string, error) {
	var b strings.Builder
	for fragment, err := range fragments {
		if err != nil {
			return "", err
		}
		b.WriteString(fragment)
	}
	return strings.TrimSpace(b.String()), nil
}

var (
	bulletPrefix  = regexp.MustCompile(`(\n)[ \t]*[-•][ \t]+`)
	markdownMarks = strings.NewReplacer("*", "", "#", "", "`", "")
)

// voiceFilter strips markdown from streamed fragments. It remembers whether
// the previous fragment ended a line so bullets split across fragments are
// still caught. A bare "-" or "•" at a line start is held until the next
// fragment shows whether a space follows it.
type voiceFilter struct {
	atLineStart bool
	pending     string
}

func (f *voiceFilter) Clean(fragment string) string {
	s := markdownMarks.Replace(fragment)
	if f.pending != "" {
		if s == "" {
			return ""
		}
		held := f.pending
		f.pending = ""
		if s[0] == ' ' || s[0] == '\t' {
			marker := strings.TrimLeft(held, " \t")
			s = strings.TrimSuffix(held, marker) + strings.TrimLeft(s, " \t")
		} else {
			s = held + s
		}
	}

	s = bulletPrefix.ReplaceAllString(s, "$1")
	if f.atLineStart {
		trimmed := strings.TrimLeft(s, " \t")
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "• ") {
			s = strings.TrimLeft(strings.TrimLeft(trimmed, "-•"), " \t")
		}
	}

	tail, lineStart := s, f.atLineStart
	if nl := strings.LastIndexByte(s, '\n'); nl >= 0 {
		tail, lineStart = s[nl+1:], true
	}
	if marker := strings.TrimLeft(tail, " \t"); lineStart && (marker == "-" || marker == "•") {
		f.pending = tail
		s = strings.TrimSuffix(s, tail)
	}

	switch {
	case strings.TrimSpace(s) == "":
		if strings.Contains(s, "\n") {
			f.atLineStart = true
		}
	default:
		f.atLineStart = strings.HasSuffix(strings.TrimRight(s, " \t"), "\n")
	}
	return s
}

// Flush returns a marker still held when the stream ends.
func (f *voiceFilter) Flush() string {
	held := f.pending
	f.pending = ""
	return held
}
