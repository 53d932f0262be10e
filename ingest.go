package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/janani/maai/services"
)

var (
	ingestDir   string
	ingestWatch bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index the reference corpus into the vector store",
	Long: `Scans a directory of .txt, .md and .pdf files, splits them into
overlapping windows, embeds them and stores them in chroma. Unchanged files
are skipped, changed files re-indexed and deleted files removed.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "corpus directory (default CORPUS_DIR)")
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "keep watching the directory after the initial sync")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	defer log.Sync()

	dir := ingestDir
	if dir == "" {
		dir = cfg.CorpusDir
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("corpus directory %q not found", dir)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	corpus, err := openCorpusIndex(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer corpus.close()

	indexer := services.NewFileIndexingService(corpus.index, corpus.embedder, log)
	stats, err := indexer.ScanAndIndexDirectory(ctx, dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d, skipped %d, removed %d, failed %d\n",
		stats.Indexed, stats.Skipped, stats.Removed, stats.Failed)

	if !ingestWatch {
		return nil
	}
	log.Info("Watching corpus for changes", zap.String("dir", dir))
	return indexer.WatchDirectory(ctx, dir)
}
