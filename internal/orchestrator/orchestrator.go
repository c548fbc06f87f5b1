// Package orchestrator runs the per-turn pipeline: validate, classify, detect
// phase, route, dispatch agents concurrently, synthesize, then instrument. The
// orchestrator is the only writer of session state; agents see snapshots and
// their failures are isolated so one broken collaborator never sinks a turn.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"atelier/internal/agents"
	"atelier/internal/classify"
	"atelier/internal/cognition"
	"atelier/internal/config"
	"atelier/internal/linkography"
	"atelier/internal/logging"
	"atelier/internal/phase"
	"atelier/internal/router"
	"atelier/internal/session"
	"atelier/internal/synthesis"
	"atelier/internal/types"
	"atelier/internal/validation"
)

// TurnResult is what one processed user turn hands back to the caller.
type TurnResult struct {
	Response       types.AgentResponse  `json:"response"`
	Classification types.Classification `json:"classification"`
	RouteDecision  types.RouteDecision  `json:"route_decision"`
	Metrics        map[string]float64   `json:"metrics,omitempty"`
	Elapsed        time.Duration        `json:"elapsed"`
}

// Orchestrator coordinates the turn pipeline over one or more sessions.
type Orchestrator struct {
	cfg        config.OrchestratorConfig
	validator  *validation.Validator
	classifier *classify.Classifier
	phases     *phase.Manager
	registry   agents.Registry
	synth      *synthesis.Synthesizer
	linko      *linkography.Engine
	mapper     *cognition.Mapper
}

// New wires the pipeline together.
func New(
	cfg config.OrchestratorConfig,
	validator *validation.Validator,
	classifier *classify.Classifier,
	phases *phase.Manager,
	registry agents.Registry,
	linko *linkography.Engine,
	mapper *cognition.Mapper,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		validator:  validator,
		classifier: classifier,
		phases:     phases,
		registry:   registry,
		synth:      synthesis.New(cfg.WordBudget),
		linko:      linko,
		mapper:     mapper,
	}
}

// ProcessTurn runs one user message through the full pipeline. On success the
// session has gained exactly two messages: the user's and the reply.
func (o *Orchestrator) ProcessTurn(ctx context.Context, state *session.State, input string) (TurnResult, error) {
	start := time.Now()
	timer := logging.StartTimer(logging.CategoryAgents, "ProcessTurn")
	defer timer.Stop()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.TurnDeadlineDuration())
	defer cancel()

	if err := state.AppendUser(input); err != nil {
		return TurnResult{}, fmt.Errorf("rejected user message: %w", err)
	}
	view := state.Snapshot()

	// Step 1: gate the input before any expensive work.
	verdict := o.validator.Validate(ctx, input, view.RecentMessages(6))
	if !verdict.IsAppropriate || !verdict.IsOnTopic {
		return o.finishRedirected(state, verdict, start), nil
	}

	// Step 2: classify the turn.
	c := o.classifier.Classify(ctx, input, view)
	if c.IsFirstMessage && view.DesignBrief == "" {
		state.SetBrief(input)
	}

	// Step 3: phase and socratic step detection, applied before routing so
	// the turn that earns a transition is answered in the new phase.
	pr := o.phases.Detect(view)
	if pr.Phase != view.DesignPhase {
		state.AdvancePhase(pr.Phase)
	}
	state.SetSocraticStep(pr.Step)
	view = state.Snapshot()

	// Step 4: linkograph and cognitive mapping feed the agents as derived
	// context. Both are advisory; a failure leaves them nil.
	aux := agents.Aux{Step: pr.Step}
	if o.linko != nil {
		if lg, err := o.linko.Build(ctx, view); err == nil {
			aux.Linkograph = lg
		} else {
			logging.Linkography("build failed, agents run without linkograph: %v", err)
		}
	}
	if o.mapper != nil {
		report := o.mapper.Compute(aux.Linkograph, view)
		aux.Report = &report
	}

	// Step 5: route and dispatch.
	rd := router.Decide(c, view.Profile.SkillLevel, view.DesignPhase)
	responses := o.dispatch(ctx, view, c, rd, aux)

	// Step 6: synthesize. A fully failed dispatch becomes an apology turn.
	var final types.AgentResponse
	if allFailed(responses) && ctx.Err() != nil {
		final = synthesis.Apology(fmt.Sprintf("turn deadline exceeded: %v", ctx.Err()))
	} else {
		final = o.synth.Synthesize(responses, rd)
	}

	// Step 7: apply agent profile deltas in a defined order.
	sort.Slice(responses, func(i, j int) bool { return responses[i].AgentName < responses[j].AgentName })
	for i := range responses {
		state.ApplyProfileDelta(responses[i].ProgressUpdate)
	}

	// Step 8: append the reply with the turn's routing metadata.
	state.AppendAssistant(final.ResponseText, turnMetadata(c, rd, final))

	// Step 9: instrumentation. Metrics are merged, never blocking.
	metrics := collectMetrics(aux)
	state.UpdateMetrics(metrics)
	state.RecordTurn(session.TurnRecord{
		Classification: c,
		RouteDecision:  rd,
		AgentsUsed:     agentNames(responses),
		Sources:        final.SourcesUsed,
		Metrics:        metrics,
	})

	logging.Agents("Turn complete: route=%s agents=%d elapsed=%s", rd.Route, len(responses), time.Since(start))
	return TurnResult{
		Response:       final,
		Classification: c,
		RouteDecision:  rd,
		Metrics:        metrics,
		Elapsed:        time.Since(start),
	}, nil
}

// finishRedirected closes a turn the validator rejected. The student gets the
// redirection text; no agents run.
func (o *Orchestrator) finishRedirected(state *session.State, verdict types.ValidationResult, start time.Time) TurnResult {
	text := verdict.SuggestedResponse
	if text == "" {
		text = "Let's keep our focus on your design work. What part of your project are you thinking about?"
	}
	final := types.AgentResponse{
		ResponseText:    text,
		ResponseType:    "redirection",
		AgentName:       "validator",
		QualityScore:    0.5,
		ConfidenceScore: verdict.Confidence,
	}
	rd := types.RouteDecision{
		Route:  types.RouteError,
		Reason: "validation: " + verdict.Reason,
	}

	state.AppendAssistant(final.ResponseText, turnMetadata(types.Classification{}, rd, final))
	state.RecordTurn(session.TurnRecord{
		RouteDecision: rd,
		Extra:         map[string]interface{}{"validation_reason": verdict.Reason},
	})

	logging.Validation("Turn redirected: %s", verdict.Reason)
	return TurnResult{Response: final, RouteDecision: rd, Elapsed: time.Since(start)}
}

// dispatch fans the routed agents out concurrently. Each call gets its own
// timeout and one retry; a failed agent yields a marker response with no text
// so synthesis simply skips it.
func (o *Orchestrator) dispatch(ctx context.Context, view session.Snapshot, c types.Classification, rd types.RouteDecision, aux agents.Aux) []types.AgentResponse {
	if len(rd.Agents) == 0 {
		return nil
	}

	responses := make([]types.AgentResponse, len(rd.Agents))
	g, gctx := errgroup.WithContext(ctx)

	for i, name := range rd.Agents {
		agent, ok := o.registry[name]
		if !ok {
			responses[i] = types.AgentResponse{AgentName: name, ErrorMessage: "agent not registered"}
			continue
		}
		g.Go(func() error {
			responses[i] = o.callAgent(gctx, agent, view, c, rd, aux)
			return nil
		})
	}

	_ = g.Wait()
	return responses
}

// callAgent runs one agent under the per-call timeout, retrying once.
func (o *Orchestrator) callAgent(ctx context.Context, agent agents.Agent, view session.Snapshot, c types.Classification, rd types.RouteDecision, aux agents.Aux) types.AgentResponse {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeoutDuration())
		resp, err := agent.Respond(callCtx, view, c, rd, aux)
		cancel()
		if err == nil {
			return resp
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		logging.Get(logging.CategoryAgents).Warn("%s attempt %d failed: %v", agent.Name(), attempt+1, err)
	}

	logging.Get(logging.CategoryAgents).Error("%s failed, isolated: %v", agent.Name(), lastErr)
	return types.AgentResponse{
		AgentName:    agent.Name(),
		ErrorMessage: lastErr.Error(),
		FallbackUsed: true,
	}
}

func allFailed(responses []types.AgentResponse) bool {
	for _, r := range responses {
		if r.ResponseText != "" {
			return false
		}
	}
	return true
}

func agentNames(responses []types.AgentResponse) []types.AgentName {
	names := make([]types.AgentName, 0, len(responses))
	for _, r := range responses {
		if r.AgentName != "" && r.ErrorMessage == "" {
			names = append(names, r.AgentName)
		}
	}
	return names
}

func turnMetadata(c types.Classification, rd types.RouteDecision, final types.AgentResponse) map[string]interface{} {
	md := map[string]interface{}{
		"route":        string(rd.Route),
		"route_reason": rd.Reason,
		"agents":       rd.Agents,
		"intent":       string(c.UserIntent),
	}
	if len(final.SourcesUsed) > 0 {
		md["sources"] = final.SourcesUsed
	}
	if final.FallbackUsed {
		md["fallback_used"] = true
	}
	return md
}

// collectMetrics flattens the turn's derived measurements into the session
// metrics map.
func collectMetrics(aux agents.Aux) map[string]float64 {
	m := make(map[string]float64)
	if aux.Linkograph != nil {
		lm := aux.Linkograph.Metrics
		m["link_density"] = lm.LinkDensity
		m["critical_move_ratio"] = lm.CriticalMoveRatio
		m["entropy"] = lm.Entropy
		m["orphan_move_ratio"] = lm.OrphanMoveRatio
		m["avg_link_strength"] = lm.AvgLinkStrength
	}
	if aux.Report != nil {
		m["overall_improvement"] = aux.Report.OverallImprovement
		for _, s := range aux.Report.Scores {
			m[string(s.Dimension)] = s.Current
		}
	}
	return m
}
