package services

import (
	"context"
	"fmt"
	"time"

	"github.com/janani/maai/models"

	"go.uber.org/zap"
)

// TopK is the fixed number of passages fetched per query.
const TopK = 5

// Embedder turns text into vectors with the fixed corpus embedding model.
// langchaingo's embeddings.EmbedderImpl satisfies it.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever finds grounding passages for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (models.RetrievalResult, error)
}

type retrieverImpl struct {
	embedder Embedder
	index    VectorIndex
	timeout  time.Duration
	logger   *zap.Logger
}

func NewRetriever(embedder Embedder, index VectorIndex, timeout time.Duration, logger *zap.Logger) Retriever {
	return &retrieverImpl{embedder: embedder, index: index, timeout: timeout, logger: logger}
}

func (r *retrieverImpl) Retrieve(ctx context.Context, query string) (models.RetrievalResult, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return models.RetrievalResult{}, fmt.Errorf("failed to embed query text: %w", err)
	}

	passages, err := r.index.Query(ctx, vector, TopK)
	if err != nil {
		return models.RetrievalResult{}, fmt.Errorf("failed to query index: %w", err)
	}

	r.logger.Debug("RETRIEVER: retrieved passages", zap.Int("count", len(passages)))
	return models.RetrievalResult{Passages: passages}, nil
}
