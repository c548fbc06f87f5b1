// Package agents holds the four capability-bearing responders: the Socratic
// tutor, the domain expert, the cognitive enhancement agent, and the analysis
// agent. All share one contract: they read an immutable session view and
// return a structured AgentResponse, never touching session state directly.
// Every agent degrades to a deterministic template when the LLM is missing or
// fails, marking the response with fallback_used.
package agents

import (
	"context"
	"strings"

	"atelier/internal/cognition"
	"atelier/internal/linkography"
	"atelier/internal/session"
	"atelier/internal/types"
)

// Aux carries per-turn derived context the orchestrator hands to agents.
type Aux struct {
	Linkograph *linkography.Linkograph
	Report     *cognition.Report
	Step       types.SocraticStep
}

// Agent is the uniform responder contract.
type Agent interface {
	Name() types.AgentName
	Respond(ctx context.Context, view session.Snapshot, c types.Classification, rd types.RouteDecision, aux Aux) (types.AgentResponse, error)
}

// Registry maps agent names to instances for dispatch.
type Registry map[types.AgentName]Agent

// NewRegistry builds the standard four-agent registry.
func NewRegistry(socratic *SocraticTutor, expert *DomainExpert, cognitive *CognitiveEnhancement, analysis *AnalysisAgent) Registry {
	return Registry{
		types.AgentSocratic:  socratic,
		types.AgentExpert:    expert,
		types.AgentCognitive: cognitive,
		types.AgentAnalysis:  analysis,
	}
}

// truncateWords limits s to at most n words.
func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ") + "..."
}
