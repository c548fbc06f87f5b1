package agents

import (
	"context"
	"fmt"
	"strings"

	"atelier/internal/llm"
	"atelier/internal/logging"
	"atelier/internal/session"
	"atelier/internal/types"
)

const analysisSystemPrompt = `You are an observing design-education analyst.
Summarize the student's conversation in 2-3 sentences: what they are designing,
where their thinking currently is, and the single biggest risk to watch.
Plain prose, no lists.`

// AnalysisAgent observes the whole conversation and produces a structured
// meta-analysis: cognitive flags, a synthesis summary, a confidence estimate,
// and recommended focus areas. Used standalone and as the Watch line input in
// multi-agent synthesis.
type AnalysisAgent struct {
	client llm.LLMClient
}

// NewAnalysisAgent creates the agent.
func NewAnalysisAgent(client llm.LLMClient) *AnalysisAgent {
	return &AnalysisAgent{client: client}
}

// Name implements Agent.
func (a *AnalysisAgent) Name() types.AgentName { return types.AgentAnalysis }

// Respond implements Agent.
func (a *AnalysisAgent) Respond(ctx context.Context, view session.Snapshot, c types.Classification, rd types.RouteDecision, aux Aux) (types.AgentResponse, error) {
	flags := analysisFlags(view, c, aux)
	focus := focusAreas(view, aux)

	response := types.AgentResponse{
		ResponseType:     "analysis",
		AgentName:        types.AgentAnalysis,
		CognitiveFlags:   flags,
		JourneyAlignment: strings.Join(focus, ", "),
		QualityScore:     0.7,
		ConfidenceScore:  confidenceEstimate(view, aux),
	}

	if a.client != nil {
		text, err := a.client.CompleteWithSystem(ctx, analysisSystemPrompt, renderRecent(view, 8))
		if err == nil && strings.TrimSpace(text) != "" {
			response.ResponseText = strings.TrimSpace(text)
			response.QualityScore = 0.8
			return response, nil
		}
		logging.Get(logging.CategoryAnalysis).Warn("summary generation failed, using template: %v", err)
		response.FallbackUsed = true
	}

	response.ResponseText = templateSummary(view, flags, focus)
	return response, nil
}

// analysisFlags detects conversation-level warning signs.
func analysisFlags(view session.Snapshot, c types.Classification, aux Aux) []string {
	var flags []string

	if c.OffloadingDetected {
		flags = append(flags, "cognitive_offloading")
	}
	if c.ConfidenceLevel == types.ConfidenceOverconfident {
		flags = append(flags, "unexamined_confidence")
	}
	if view.UserMessages > 6 && view.DesignPhase == types.PhaseIdeation {
		flags = append(flags, "slow_phase_progression")
	}
	if aux.Linkograph != nil && aux.Linkograph.Metrics.OrphanMoveRatio > 0.5 {
		flags = append(flags, "fragmented_thinking")
	}
	if view.Profile.EngagementLevel < 0.3 {
		flags = append(flags, "low_engagement")
	}

	return flags
}

// focusAreas recommends what the next turns should concentrate on.
func focusAreas(view session.Snapshot, aux Aux) []string {
	var areas []string

	if aux.Report != nil {
		weakest := types.DimDeepThinking
		lowest := 2.0
		for _, s := range aux.Report.Scores {
			if s.Target > 0 && s.Current/s.Target < lowest {
				lowest = s.Current / s.Target
				weakest = s.Dimension
			}
		}
		areas = append(areas, string(weakest))
	}

	switch view.DesignPhase {
	case types.PhaseIdeation:
		areas = append(areas, "concept articulation")
	case types.PhaseVisualization:
		areas = append(areas, "spatial development")
	case types.PhaseMaterialization:
		areas = append(areas, "construction logic")
	}

	return areas
}

// confidenceEstimate grows with conversation length and link coherence.
func confidenceEstimate(view session.Snapshot, aux Aux) float64 {
	confidence := 0.4 + float64(view.UserMessages)*0.03
	if aux.Linkograph != nil {
		confidence += aux.Linkograph.Metrics.LinkDensity * 0.1
	}
	return types.Clamp01(confidence)
}

func templateSummary(view session.Snapshot, flags, focus []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The student is in the %s phase after %d messages.", view.DesignPhase, view.UserMessages)
	if len(flags) > 0 {
		fmt.Fprintf(&sb, " Watch for: %s.", strings.Join(flags, ", "))
	} else {
		sb.WriteString(" The conversation is progressing without warning signs.")
	}
	if len(focus) > 0 {
		fmt.Fprintf(&sb, " Suggested focus: %s.", strings.Join(focus, ", "))
	}
	return sb.String()
}
