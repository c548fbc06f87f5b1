// Package router maps a turn's classification and session facts onto exactly
// one interaction route. Decide is a pure function over its inputs: the rule
// table is evaluated top to bottom and the first match wins, so identical
// inputs always produce identical decisions.
package router

import (
	"fmt"

	"atelier/internal/logging"
	"atelier/internal/types"
)

// rule is one row of the decision table.
type rule struct {
	name  string
	match func(c types.Classification, skill types.SkillLevel) bool
	route types.Route
}

var rules = []rule{
	{
		name:  "first message",
		match: func(c types.Classification, _ types.SkillLevel) bool { return c.IsFirstMessage },
		route: types.RouteProgressiveOpening,
	},
	{
		name: "topic transition",
		match: func(c types.Classification, _ types.SkillLevel) bool {
			return c.UserIntent == types.IntentTopicTransition
		},
		route: types.RouteTopicTransition,
	},
	{
		name: "cognitive offloading",
		match: func(c types.Classification, _ types.SkillLevel) bool {
			return c.UserIntent == types.IntentCognitiveOffloading
		},
		route: types.RouteCognitiveIntervention,
	},
	{
		name: "overconfident statement",
		match: func(c types.Classification, _ types.SkillLevel) bool {
			return c.UserIntent == types.IntentOverconfident
		},
		route: types.RouteCognitiveChallenge,
	},
	{
		name: "beginner confusion",
		match: func(c types.Classification, skill types.SkillLevel) bool {
			return c.UserIntent == types.IntentConfusion && skill == types.SkillBeginner
		},
		route: types.RouteSupportiveScaffolding,
	},
	{
		name: "confusion",
		match: func(c types.Classification, _ types.SkillLevel) bool {
			return c.UserIntent == types.IntentConfusion
		},
		route: types.RouteSocraticClarification,
	},
	{
		name: "pure technical question",
		match: func(c types.Classification, _ types.SkillLevel) bool {
			return c.UserIntent == types.IntentTechnicalQuestion && c.IsPureKnowledgeRequest
		},
		route: types.RouteKnowledgeOnly,
	},
	{
		name: "example request",
		match: func(c types.Classification, _ types.SkillLevel) bool {
			return c.UserIntent == types.IntentExampleRequest
		},
		route: types.RouteKnowledgeOnly,
	},
	{
		name: "engaged knowledge request",
		match: func(c types.Classification, _ types.SkillLevel) bool {
			return c.UserIntent == types.IntentKnowledgeRequest && c.EngagementLevel == types.LevelHigh
		},
		route: types.RouteKnowledgeChallenge,
	},
	{
		name: "knowledge request",
		match: func(c types.Classification, _ types.SkillLevel) bool {
			return c.UserIntent == types.IntentKnowledgeRequest
		},
		route: types.RouteKnowledgeOnly,
	},
	{
		name: "beginner implementation request",
		match: func(c types.Classification, skill types.SkillLevel) bool {
			return c.UserIntent == types.IntentImplementation && skill == types.SkillBeginner
		},
		route: types.RouteFoundationalBuilding,
	},
	{
		name: "design work",
		match: func(c types.Classification, _ types.SkillLevel) bool {
			switch c.UserIntent {
			case types.IntentDesignExploration, types.IntentDesignGuidance, types.IntentDesignProblem:
				return true
			}
			return false
		},
		route: types.RouteBalancedGuidance,
	},
	{
		name: "evaluation or feedback",
		match: func(c types.Classification, _ types.SkillLevel) bool {
			return c.UserIntent == types.IntentEvaluationRequest || c.UserIntent == types.IntentFeedbackRequest
		},
		route: types.RouteMultiAgent,
	},
}

// Decide picks the route for a turn. The router is total: when no rule
// matches it falls through to balanced guidance.
func Decide(c types.Classification, skill types.SkillLevel, phase types.Phase) types.RouteDecision {
	for _, r := range rules {
		if r.match(c, skill) {
			decision := types.RouteDecision{
				Route:  r.route,
				Reason: fmt.Sprintf("%s (intent=%s, skill=%s)", r.name, c.UserIntent, skill),
				Agents: AgentsFor(r.route),
				Metadata: map[string]interface{}{
					"phase":    string(phase),
					"llm_used": c.LLMUsed,
				},
			}
			logging.Routing("Route %s: %s", decision.Route, decision.Reason)
			return decision
		}
	}

	decision := types.RouteDecision{
		Route:  types.RouteBalancedGuidance,
		Reason: fmt.Sprintf("default (intent=%s, skill=%s)", c.UserIntent, skill),
		Agents: AgentsFor(types.RouteBalancedGuidance),
		Metadata: map[string]interface{}{
			"phase":    string(phase),
			"llm_used": c.LLMUsed,
		},
	}
	logging.Routing("Route %s: %s", decision.Route, decision.Reason)
	return decision
}

// AgentsFor returns the agent set a route dispatches to.
func AgentsFor(route types.Route) []types.AgentName {
	switch route {
	case types.RouteKnowledgeOnly:
		return []types.AgentName{types.AgentExpert}
	case types.RouteKnowledgeChallenge, types.RouteBalancedGuidance:
		return []types.AgentName{types.AgentExpert, types.AgentSocratic}
	case types.RouteMultiAgent:
		return []types.AgentName{
			types.AgentAnalysis,
			types.AgentExpert,
			types.AgentSocratic,
			types.AgentCognitive,
		}
	case types.RouteDesignGuidance:
		return []types.AgentName{types.AgentAnalysis, types.AgentExpert}
	case types.RouteCognitiveChallenge, types.RouteCognitiveIntervention:
		return []types.AgentName{types.AgentCognitive}
	case types.RouteError:
		return nil
	default:
		// progressive_opening, topic_transition, socratic_clarification,
		// socratic_exploration, supportive_scaffolding, foundational_building
		return []types.AgentName{types.AgentSocratic}
	}
}
