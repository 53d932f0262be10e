package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"
)

const (
	chunkSize    = 1000
	chunkOverlap = 100
)

// IndexStats summarises one directory sync.
type IndexStats struct {
	Indexed int
	Skipped int
	Removed int
	Failed  int
}

// FileIndexingService splits, embeds and stores the reference corpus. It
// runs as a batch job or watcher, never inside the request path.
type FileIndexingService struct {
	index    VectorIndex
	embedder Embedder
	splitter textsplitter.TextSplitter
	logger   *zap.Logger
}

func NewFileIndexingService(index VectorIndex, embedder Embedder, logger *zap.Logger) *FileIndexingService {
	return &FileIndexingService{
		index:    index,
		embedder: embedder,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		logger: logger,
	}
}

// IngestText indexes raw text under source, replacing anything previously
// stored for that source. It returns the number of chunks written.
func (s *FileIndexingService) IngestText(ctx context.Context, source, text string) (int, error) {
	sum := sha256.Sum256([]byte(text))
	if err := s.index.DeleteBySource(ctx, source); err != nil {
		return 0, fmt.Errorf("failed to clear old chunks of %s: %w", source, err)
	}
	return s.embedAndStore(ctx, source, hex.EncodeToString(sum[:]), text)
}

// ScanAndIndexDirectory syncs the index with dirPath: new and changed files
// are (re)indexed, unchanged ones skipped, deleted ones removed.
func (s *FileIndexingService) ScanAndIndexDirectory(ctx context.Context, dirPath string) (IndexStats, error) {
	var stats IndexStats
	s.logger.Info("INDEXER: starting directory scan", zap.String("dir", dirPath))

	indexed, err := s.index.SourceHashes(ctx)
	if err != nil {
		return stats, fmt.Errorf("could not get current index state: %w", err)
	}
	s.logger.Info("INDEXER: sources currently in the index", zap.Int("count", len(indexed)))

	localFiles := make(map[string]bool)
	err = filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isSupportedFile(path) {
			return nil
		}
		localFiles[path] = true

		hash, err := calculateFileHash(path)
		if err != nil {
			s.logger.Warn("INDEXER: could not hash file", zap.String("path", path), zap.Error(err))
			stats.Failed++
			return nil
		}
		if old, ok := indexed[path]; ok {
			if old == hash {
				stats.Skipped++
				return nil
			}
			s.logger.Info("INDEXER: file changed, re-indexing", zap.String("path", path))
			if err := s.index.DeleteBySource(ctx, path); err != nil {
				s.logger.Error("INDEXER: failed to delete old version", zap.String("path", path), zap.Error(err))
				stats.Failed++
				return nil
			}
		}

		if _, err := s.processAndEmbedFile(ctx, path, hash); err != nil {
			s.logger.Error("INDEXER: failed to process file", zap.String("path", path), zap.Error(err))
			stats.Failed++
			return nil
		}
		stats.Indexed++
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("error walking %s: %w", dirPath, err)
	}

	for path := range indexed {
		if localFiles[path] {
			continue
		}
		s.logger.Info("INDEXER: file deleted, removing from index", zap.String("path", path))
		if err := s.index.DeleteBySource(ctx, path); err != nil {
			s.logger.Error("INDEXER: failed to delete records", zap.String("path", path), zap.Error(err))
			stats.Failed++
			continue
		}
		stats.Removed++
	}

	s.logger.Info("INDEXER: directory scan finished",
		zap.Int("indexed", stats.Indexed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("removed", stats.Removed),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

// WatchDirectory keeps the index in sync with dirPath and every directory
// below it until ctx is done.
func (s *FileIndexingService) WatchDirectory(ctx context.Context, dirPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchTree(watcher, dirPath); err != nil {
		return err
	}
	s.logger.Info("WATCHER: watching directory",
		zap.String("dir", dirPath),
		zap.Int("directories", len(watcher.WatchList())))

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					s.watchNewDirectory(ctx, watcher, event.Name)
					continue
				}
			}
			if isSupportedFile(event.Name) {
				s.handleEvent(ctx, event)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("WATCHER: error", zap.Error(err))
		case <-ctx.Done():
			s.logger.Info("WATCHER: context cancelled, shutting down watcher")
			return nil
		}
	}
}

// watchTree adds root and all of its subdirectories to the watcher.
func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// watchNewDirectory starts watching a directory created while the watcher
// runs and indexes the files already written into it.
func (s *FileIndexingService) watchNewDirectory(ctx context.Context, watcher *fsnotify.Watcher, dir string) {
	if err := watchTree(watcher, dir); err != nil {
		s.logger.Error("WATCHER: failed to watch new directory", zap.String("dir", dir), zap.Error(err))
		return
	}
	s.logger.Info("WATCHER: watching new directory", zap.String("dir", dir))
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && isSupportedFile(path) {
			s.handleEvent(ctx, fsnotify.Event{Name: path, Op: fsnotify.Create})
		}
		return nil
	})
}

func (s *FileIndexingService) handleEvent(ctx context.Context, event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		hash, err := calculateFileHash(event.Name)
		if err != nil {
			s.logger.Warn("WATCHER: could not hash file", zap.String("path", event.Name), zap.Error(err))
			return
		}
		if err := s.index.DeleteBySource(ctx, event.Name); err != nil {
			s.logger.Error("WATCHER: failed to delete old version", zap.String("path", event.Name), zap.Error(err))
			return
		}
		if _, err := s.processAndEmbedFile(ctx, event.Name, hash); err != nil {
			s.logger.Error("WATCHER: failed to process file", zap.String("path", event.Name), zap.Error(err))
		}
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if err := s.index.DeleteBySource(ctx, event.Name); err != nil {
			s.logger.Error("WATCHER: failed to delete records", zap.String("path", event.Name), zap.Error(err))
		}
	}
}

func (s *FileIndexingService) processAndEmbedFile(ctx context.Context, path, hash string) (int, error) {
	content, err := ExtractTextFromFile(path)
	if err != nil {
		return 0, err
	}
	return s.embedAndStore(ctx, path, hash, content)
}

func (s *FileIndexingService) embedAndStore(ctx context.Context, source, hash, content string) (int, error) {
	chunks, err := s.splitter.SplitText(content)
	if err != nil {
		return 0, fmt.Errorf("failed to split %s: %w", source, err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("could not embed chunks of %s: %w", source, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	for i, chunk := range chunks {
		err := s.index.Add(ctx, IndexedChunk{
			Text:      chunk,
			Embedding: vectors[i],
			Source:    source,
			FileHash:  hash,
			ChunkNum:  i,
		})
		if err != nil {
			return i, err
		}
	}
	s.logger.Info("INDEXER: indexed source", zap.String("source", source), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

func calculateFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
