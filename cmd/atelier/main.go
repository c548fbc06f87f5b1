package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"atelier/internal/agents"
	"atelier/internal/classify"
	"atelier/internal/cognition"
	"atelier/internal/config"
	"atelier/internal/embedding"
	"atelier/internal/knowledge"
	"atelier/internal/linkography"
	"atelier/internal/llm"
	"atelier/internal/logging"
	"atelier/internal/orchestrator"
	"atelier/internal/phase"
	"atelier/internal/validation"
	"atelier/internal/vision"
)

var (
	// Global flags
	verbose    bool
	configPath string
	domain     string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "atelier",
	Short: "atelier - multi-agent tutor for architectural design education",
	Long: `atelier is a multi-agent pedagogical assistant for design studios.

Each student turn is validated, classified, and routed to a set of
specialized agents (socratic tutor, domain expert, cognitive enhancement,
analysis). Their contributions are synthesized into one reply, while a
linkography engine maps the student's design moves and a cognitive mapper
tracks engagement across six dimensions.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// pipeline bundles everything a command needs after wiring.
type pipeline struct {
	cfg   *config.Config
	orch  *orchestrator.Orchestrator
	store *knowledge.Store
	linko *linkography.Engine
	vis   *vision.Analyzer
}

func (p *pipeline) close() {
	if p.store != nil {
		_ = p.store.Close()
	}
}

// buildPipeline loads configuration and wires the turn pipeline. Missing
// collaborators (LLM key, embedding provider, knowledge collection) degrade to
// the offline heuristics rather than failing startup.
func buildPipeline() (*pipeline, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if err := logging.Initialize("."); err != nil {
		return nil, fmt.Errorf("failed to initialize file logging: %w", err)
	}

	var llmClient llm.LLMClient
	if cfg.HasLLM() {
		llmClient, err = llm.NewClient(cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
	} else {
		logger.Warn("no LLM API key configured, running with heuristics and templates only")
	}

	embedEngine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		logger.Warn("embedding engine unavailable, using word-overlap similarity", zap.Error(err))
		embedEngine = nil
	}

	var store *knowledge.Store
	var retriever agents.Retriever
	if cfg.Knowledge.DatabasePath != "" {
		store, err = knowledge.Open(cfg.Knowledge.DatabasePath)
		if err != nil {
			logger.Warn("knowledge collection unavailable, expert answers will be ungrounded", zap.Error(err))
		} else {
			store.SetEmbeddingEngine(embedEngine)
			retriever = store
		}
	}

	registry := agents.NewRegistry(
		agents.NewSocraticTutor(llmClient),
		agents.NewDomainExpert(llmClient, retriever, cfg.Knowledge.TopK, cfg.Knowledge.MinSimilarity, cfg.Orchestrator.CacheCapacity),
		agents.NewCognitiveEnhancement(llmClient, cognition.NewMapper()),
		agents.NewAnalysisAgent(llmClient),
	)

	var visionClient vision.Client
	if cfg.HasLLM() && cfg.LLM.Provider == "openai" {
		visionClient = vision.NewOpenAIVisionClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
	}

	linko := linkography.NewEngine(cfg.Linkography, embedEngine)
	orch := orchestrator.New(
		cfg.Orchestrator,
		validation.New(llmClient, cfg.Orchestrator.CacheCapacity, time.Now().UnixNano()),
		classify.New(llmClient),
		phase.New(cfg.Phase),
		registry,
		linko,
		cognition.NewMapper(),
	)

	return &pipeline{cfg: cfg, orch: orch, store: store, linko: linko, vis: vision.New(visionClient)}, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".atelier/config.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&domain, "domain", "architecture", "design domain for new sessions")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
