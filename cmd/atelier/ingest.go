package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"atelier/internal/config"
	"atelier/internal/embedding"
	"atelier/internal/knowledge"
	"atelier/internal/logging"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [directory]",
	Short: "Ingest reference documents into the knowledge collection",
	Long: `Reads .txt and .md files from a directory, chunks them, embeds them when
an embedding provider is configured, and stores them for the domain expert's
grounded answers.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logging.Initialize("."); err != nil {
		return fmt.Errorf("failed to initialize file logging: %w", err)
	}

	store, err := knowledge.Open(cfg.Knowledge.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open knowledge collection: %w", err)
	}
	defer store.Close()

	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		logger.Warn("embedding engine unavailable, documents stored for keyword search only", zap.Error(err))
		engine = nil
	}
	store.SetEmbeddingEngine(engine)

	n, err := store.IngestDir(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	stats, err := store.Stats()
	if err == nil {
		fmt.Printf("ingested %d chunks from %s (collection now: %v documents)\n", n, args[0], stats["total_documents"])
	} else {
		fmt.Printf("ingested %d chunks from %s\n", n, args[0])
	}
	return nil
}
