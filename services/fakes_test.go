package services

import (
	"context"
	"iter"
	"sync"

	"github.com/janani/maai/models"
)

type fakeCompleter struct {
	mu      sync.Mutex
	fn      func(prompt string) (string, error)
	prompts []string
}

func completerReturning(out string, err error) *fakeCompleter {
	return &fakeCompleter{fn: func(string) (string, error) { return out, err }}
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.fn(prompt)
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeStrategy struct {
	name  string
	out   string
	err   error
	calls int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Translate(context.Context, string, string, string) (string, error) {
	f.calls++
	return f.out, f.err
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), float32(i)}
	}
	return out, nil
}

// memoryIndex is an in-process VectorIndex. Query returns chunks in
// insertion order.
type memoryIndex struct {
	mu       sync.Mutex
	chunks   []IndexedChunk
	queryErr error
	deleted  []string
}

func (m *memoryIndex) Query(_ context.Context, _ []float32, n int) ([]models.Passage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	var out []models.Passage
	for _, c := range m.chunks {
		if len(out) == n {
			break
		}
		out = append(out, models.Passage{Content: c.Text, SourceID: c.Source})
	}
	return out, nil
}

func (m *memoryIndex) Add(_ context.Context, chunk IndexedChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, chunk)
	return nil
}

func (m *memoryIndex) DeleteBySource(_ context.Context, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, source)
	kept := m.chunks[:0]
	for _, c := range m.chunks {
		if c.Source != source {
			kept = append(kept, c)
		}
	}
	m.chunks = kept
	return nil
}

func (m *memoryIndex) SourceHashes(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	for _, c := range m.chunks {
		out[c.Source] = c.FileHash
	}
	return out, nil
}

func (m *memoryIndex) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks), nil
}

func (m *memoryIndex) chunksFor(source string) []IndexedChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []IndexedChunk
	for _, c := range m.chunks {
		if c.Source == source {
			out = append(out, c)
		}
	}
	return out
}

type fakeStreamer struct {
	fragments []string
	err       error
	system    string
	history   []models.ChatMessage
	prompt    string
	// yielded counts fragments handed to the consumer so far.
	yielded int
}

func (f *fakeStreamer) Stream(_ context.Context, system string, history []models.ChatMessage, prompt string) iter.Seq2[string, error] {
	f.system, f.history, f.prompt = system, history, prompt
	return func(yield func(string, error) bool) {
		for _, frag := range f.fragments {
			f.yielded++
			if !yield(frag, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", f.err)
		}
	}
}
