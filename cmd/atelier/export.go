package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"atelier/internal/cognition"
	"atelier/internal/config"
	"atelier/internal/embedding"
	"atelier/internal/linkography"
	"atelier/internal/logging"
	"atelier/internal/session"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export [session-file]",
	Short: "Export the linkograph and cognitive report for a saved session",
	Long: `Loads a session saved with /save, rebuilds its linkograph, computes the
cognitive mapping report, and writes both as one JSON document.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logging.Initialize("."); err != nil {
		return fmt.Errorf("failed to initialize file logging: %w", err)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read session file: %w", err)
	}
	state, err := session.Deserialize(data)
	if err != nil {
		return err
	}

	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		logger.Warn("embedding engine unavailable, using word-overlap similarity", zap.Error(err))
		engine = nil
	}

	view := state.Snapshot()
	lg, err := linkography.NewEngine(cfg.Linkography, engine).Build(context.Background(), view)
	if err != nil {
		return fmt.Errorf("failed to build linkograph: %w", err)
	}
	report := cognition.NewMapper().Compute(lg, view)

	out, err := json.MarshalIndent(struct {
		SessionID  string                  `json:"session_id"`
		Linkograph *linkography.Linkograph `json:"linkograph"`
		Report     cognition.Report        `json:"cognitive_report"`
	}{state.ID, lg, report}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}

	if exportOut == "" {
		fmt.Println(string(out))
		return nil
	}
	if err := os.WriteFile(exportOut, out, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Printf("exported %s (%d moves, %d links)\n", exportOut, len(lg.Moves), len(lg.Links))
	return nil
}
