package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"atelier/internal/session"
	"atelier/internal/types"
)

var (
	tutorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	metaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive tutoring session",
	Long: `Starts a REPL where each message runs through the full pipeline.

Slash commands inside the session:
  /phase          show the current design phase and socratic step
  /metrics        show the session's cognitive and linkography metrics
  /sketch <file>  attach a sketch image and run vision analysis on it
  /save           write the session state to a JSON file
  /export         write the current linkograph to a JSON file
  /quit           end the session`,
	RunE: runChat,
}

var resumePath string

func init() {
	chatCmd.Flags().StringVar(&resumePath, "resume", "", "resume a session saved with /save")
}

func runChat(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if p.store != nil && p.cfg.Knowledge.WatchEnabled && p.cfg.Knowledge.DocumentsDir != "" {
		go func() {
			if err := p.store.Watch(ctx, p.cfg.Knowledge.DocumentsDir); err != nil {
				logger.Warn("document watcher stopped", zap.Error(err))
			}
		}()
	}

	var state *session.State
	if resumePath != "" {
		data, err := os.ReadFile(resumePath)
		if err != nil {
			return fmt.Errorf("failed to read session file: %w", err)
		}
		state, err = session.Deserialize(data)
		if err != nil {
			return err
		}
		fmt.Println(metaStyle.Render(fmt.Sprintf("resumed session %s (%d messages, phase %s)",
			state.ID, state.MessageCount(), state.Snapshot().DesignPhase)))
	} else {
		state = session.New(domain)
	}

	fmt.Println(tutorStyle.Render("atelier") + metaStyle.Render("  session "+state.ID))
	fmt.Println(metaStyle.Render("Tell me about your design project. /quit to end."))
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if done := handleCommand(ctx, p, state, input); done {
				break
			}
			continue
		}

		result, err := p.orch.ProcessTurn(ctx, state, input)
		if err != nil {
			fmt.Println(errorStyle.Render("error: " + err.Error()))
			continue
		}

		fmt.Println()
		fmt.Println(tutorStyle.Render("tutor> ") + result.Response.ResponseText)
		if verbose {
			fmt.Println(metaStyle.Render(fmt.Sprintf("  [route=%s intent=%s elapsed=%s]",
				result.RouteDecision.Route, result.Classification.UserIntent, result.Elapsed.Round(time.Millisecond))))
		}
		fmt.Println()
	}

	fmt.Println(metaStyle.Render("session ended"))
	return nil
}

// handleCommand runs a slash command; returns true when the REPL should exit.
func handleCommand(ctx context.Context, p *pipeline, state *session.State, input string) bool {
	switch strings.Fields(input)[0] {
	case "/quit", "/exit":
		return true

	case "/phase":
		view := state.Snapshot()
		fmt.Println(metaStyle.Render(fmt.Sprintf("phase: %s (entered at message %d), step: %s",
			view.DesignPhase, view.PhaseEnteredN, view.SocraticStep)))

	case "/metrics":
		view := state.Snapshot()
		if len(view.Metrics) == 0 {
			fmt.Println(metaStyle.Render("no metrics yet"))
			break
		}
		keys := make([]string, 0, len(view.Metrics))
		for k := range view.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Println(metaStyle.Render(fmt.Sprintf("  %-36s %.3f", k, view.Metrics[k])))
		}

	case "/sketch":
		fields := strings.Fields(input)
		if len(fields) < 2 {
			fmt.Println(metaStyle.Render("usage: /sketch <image-file>"))
			break
		}
		data, err := os.ReadFile(fields[1])
		if err != nil {
			fmt.Println(errorStyle.Render("sketch failed: " + err.Error()))
			break
		}
		artifact := types.VisualArtifact{Type: "sketch", ImagePath: fields[1], ImageBytes: data}
		if p.vis.Enabled() {
			analysis, err := p.vis.Analyze(ctx, &artifact)
			if err != nil {
				fmt.Println(errorStyle.Render("analysis failed, sketch attached unanalyzed: " + err.Error()))
			} else {
				fmt.Println(metaStyle.Render(fmt.Sprintf("analyzed: %d spatial elements, confidence %.2f",
					len(analysis.SpatialElements), analysis.AnalysisConfidence)))
				if analysis.Summary != "" {
					fmt.Println(metaStyle.Render("  " + analysis.Summary))
				}
			}
		} else {
			fmt.Println(metaStyle.Render("no vision provider configured, sketch attached unanalyzed"))
		}
		state.AddArtifact(artifact)

	case "/save":
		path := fmt.Sprintf("session-%s.json", state.ID[:8])
		data, err := state.Serialize()
		if err == nil {
			err = os.WriteFile(path, data, 0644)
		}
		if err != nil {
			fmt.Println(errorStyle.Render("save failed: " + err.Error()))
			break
		}
		fmt.Println(metaStyle.Render("saved " + path))

	case "/export":
		lg, err := p.linko.Build(ctx, state.Snapshot())
		if err != nil {
			fmt.Println(errorStyle.Render("export failed: " + err.Error()))
			break
		}
		data, err := lg.Export()
		if err != nil {
			fmt.Println(errorStyle.Render("export failed: " + err.Error()))
			break
		}
		path := fmt.Sprintf("linkograph-%s.json", state.ID[:8])
		if err := os.WriteFile(path, data, 0644); err != nil {
			fmt.Println(errorStyle.Render("export failed: " + err.Error()))
			break
		}
		fmt.Println(metaStyle.Render(fmt.Sprintf("exported %s (%d moves, %d links)", path, len(lg.Moves), len(lg.Links))))

	default:
		fmt.Println(metaStyle.Render("commands: /phase /metrics /sketch /save /export /quit"))
	}
	return false
}
