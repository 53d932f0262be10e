package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/janani/maai/models"

	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"
)

// ErrEmptyCompletion is returned when a model answers with no text.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// Completer is a free-form prompt-in, text-out language model. It backs the
// translation fallback, language identification and clinical extraction.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// TokenStreamer streams generated text fragments. Iteration stops at the
// first error, which is yielded with an empty fragment.
type TokenStreamer interface {
	Stream(ctx context.Context, system string, history []models.ChatMessage, prompt string) iter.Seq2[string, error]
}

// GeminiModel talks to Gemini through the genai SDK.
type GeminiModel struct {
	client *genai.Client
	model  string
	config genai.GenerateContentConfig
}

type GeminiOption func(*GeminiModel)

// WithGeminiTemperature sets the sampling temperature.
func WithGeminiTemperature(t float32) GeminiOption {
	return func(g *GeminiModel) { g.config.Temperature = genai.Ptr(t) }
}

// WithGeminiJSONSchema forces JSON output matching schema.
func WithGeminiJSONSchema(schema *genai.Schema) GeminiOption {
	return func(g *GeminiModel) {
		g.config.ResponseMIMEType = "application/json"
		g.config.ResponseSchema = schema
	}
}

func NewGeminiModel(client *genai.Client, model string, opts ...GeminiOption) *GeminiModel {
	g := &GeminiModel{client: client, model: model}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Complete implements Completer.
func (g *GeminiModel) Complete(ctx context.Context, prompt string) (string, error) {
	cfg := g.config
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &cfg)
	if err != nil {
		return "", fmt.Errorf("gemini api call failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// Stream implements TokenStreamer.
func (g *GeminiModel) Stream(ctx context.Context, system string, history []models.ChatMessage, prompt string) iter.Seq2[string, error] {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		role := genai.Role(genai.RoleModel)
		if msg.Role == models.RoleUser {
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	cfg := g.config
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	return func(yield func(string, error) bool) {
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, &cfg) {
			if err != nil {
				yield("", fmt.Errorf("gemini stream failed: %w", err))
				return
			}
			if text := resp.Text(); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

// LangChainModel adapts any langchaingo model; in production it is the
// OpenAI-compatible Groq endpoint.
type LangChainModel struct {
	llm         llms.Model
	temperature float64
}

func NewLangChainModel(llm llms.Model, temperature float64) *LangChainModel {
	return &LangChainModel{llm: llm, temperature: temperature}
}

// Complete implements Completer.
func (m *LangChainModel) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, m.llm, prompt, llms.WithTemperature(m.temperature))
	if err != nil {
		return "", fmt.Errorf("langchain completion failed: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyCompletion
	}
	return out, nil
}

type streamResult struct {
	resp *llms.ContentResponse
	err  error
}

// Stream implements TokenStreamer on top of the streaming callback.
func (m *LangChainModel) Stream(ctx context.Context, system string, history []models.ChatMessage, prompt string) iter.Seq2[string, error] {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	if system != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	for _, msg := range history {
		role := llms.ChatMessageTypeAI
		if msg.Role == models.RoleUser {
			role = llms.ChatMessageTypeHuman
		}
		messages = append(messages, llms.TextParts(role, msg.Content))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		chunks := make(chan string)
		done := make(chan streamResult, 1)
		go func() {
			resp, err := m.llm.GenerateContent(ctx, messages,
				llms.WithTemperature(m.temperature),
				llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
					select {
					case chunks <- string(chunk):
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				}),
			)
			done <- streamResult{resp: resp, err: err}
			close(chunks)
		}()

		streamed := false
		for chunk := range chunks {
			if chunk == "" {
				continue
			}
			streamed = true
			if !yield(chunk, nil) {
				return
			}
		}

		res := <-done
		if res.err != nil {
			yield("", fmt.Errorf("langchain stream failed: %w", res.err))
			return
		}
		// Models without streaming support only return the final content.
		if !streamed && res.resp != nil && len(res.resp.Choices) > 0 && res.resp.Choices[0].Content != "" {
			yield(res.resp.Choices[0].Content, nil)
		}
	}
}

type boundedCompleter struct {
	next    Completer
	timeout time.Duration
}

// WithCompletionTimeout bounds every Complete call made through c.
func WithCompletionTimeout(c Completer, timeout time.Duration) Completer {
	if timeout <= 0 {
		return c
	}
	return &boundedCompleter{next: c, timeout: timeout}
}

func (b *boundedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.Complete(ctx, prompt)
}
