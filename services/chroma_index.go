package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/janani/maai/models"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/google/uuid"
)

const (
	metaSource   = "source"
	metaFileHash = "file_hash"
	metaChunkNum = "chunk_num"

	unknownSource = "Unknown"
)

// ErrEmptyIndex means the corpus has not been ingested yet.
var ErrEmptyIndex = errors.New("vector index is empty")

// IndexedChunk is one embedded window of the corpus ready to be stored.
type IndexedChunk struct {
	Text      string
	Embedding []float32
	Source    string
	FileHash  string
	ChunkNum  int
}

// VectorIndex is the nearest-neighbour store behind the retriever and the
// ingestion job.
type VectorIndex interface {
	Query(ctx context.Context, embedding []float32, n int) ([]models.Passage, error)
	Add(ctx context.Context, chunk IndexedChunk) error
	DeleteBySource(ctx context.Context, source string) error
	// SourceHashes maps every indexed source to the hash it was indexed at.
	SourceHashes(ctx context.Context) (map[string]string, error)
	Count(ctx context.Context) (int, error)
}

// ChromaIndex stores the corpus in a chroma collection.
type ChromaIndex struct {
	collection chromago.Collection
}

func NewChromaIndex(collection chromago.Collection) *ChromaIndex {
	return &ChromaIndex{collection: collection}
}

// GetOrCreateCollection opens the corpus collection, creating it on first start.
func GetOrCreateCollection(ctx context.Context, client chromago.Client, name string) (chromago.Collection, error) {
	return client.GetOrCreateCollection(
		ctx,
		name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "maternal health reference corpus"),
				chromago.NewStringAttribute("created_by", "maai"),
			),
		),
	)
}

func (c *ChromaIndex) Query(ctx context.Context, embedding []float32, n int) ([]models.Passage, error) {
	results, err := c.collection.Query(
		ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(embedding)),
		chromago.WithNResults(n),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromadb: %w", err)
	}

	var passages []models.Passage
	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	if len(documentGroups) == 0 {
		return passages, nil
	}
	for i, doc := range documentGroups[0] {
		text := doc.ContentString()
		if text == "" {
			continue
		}
		var meta map[string]interface{}
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) {
			meta = metadataToMap(metadataGroups[0][i])
		}
		passages = append(passages, models.Passage{Content: text, SourceID: sourceFromMetadata(meta)})
	}
	return passages, nil
}

func (c *ChromaIndex) Add(ctx context.Context, chunk IndexedChunk) error {
	metadata := chromago.NewDocumentMetadata(
		chromago.NewStringAttribute(metaSource, chunk.Source),
		chromago.NewStringAttribute(metaFileHash, chunk.FileHash),
		chromago.NewIntAttribute(metaChunkNum, int64(chunk.ChunkNum)),
	)
	docID := chromago.DocumentID(fmt.Sprintf("%s-chunk%d", uuid.New().String(), chunk.ChunkNum))
	err := c.collection.Add(ctx,
		chromago.WithIDs(docID),
		chromago.WithTexts(chunk.Text),
		chromago.WithEmbeddings(embeddings.NewEmbeddingFromFloat32(chunk.Embedding)),
		chromago.WithMetadatas(metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to add chunk %d of %s to chromadb: %w", chunk.ChunkNum, chunk.Source, err)
	}
	return nil
}

func (c *ChromaIndex) DeleteBySource(ctx context.Context, source string) error {
	return c.collection.Delete(ctx, chromago.WithWhereDelete(chromago.EqString(metaSource, source)))
}

func (c *ChromaIndex) SourceHashes(ctx context.Context) (map[string]string, error) {
	results, err := c.collection.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents from chromadb: %w", err)
	}
	state := make(map[string]string)
	for _, meta := range results.GetMetadatas() {
		m := metadataToMap(meta)
		source, ok := m[metaSource].(string)
		if !ok {
			continue
		}
		hash, _ := m[metaFileHash].(string)
		if _, exists := state[source]; !exists {
			state[source] = hash
		}
	}
	return state, nil
}

func (c *ChromaIndex) Count(ctx context.Context) (int, error) {
	count, err := c.collection.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count items in collection: %w", err)
	}
	return int(count), nil
}

// metadataToMap converts chroma document metadata into a plain map. The
// metadata type exposes no accessor for all values, so it goes through JSON.
func metadataToMap(meta interface{}) map[string]interface{} {
	if meta == nil {
		return nil
	}
	jsonBytes, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &m); err != nil {
		return nil
	}
	return m
}

func sourceFromMetadata(meta map[string]interface{}) string {
	for _, key := range []string{metaSource, "source_file"} {
		if s, ok := meta[key].(string); ok && s != "" {
			return s
		}
	}
	return unknownSource
}
