package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atelier/internal/types"
)

func classified(intent types.Intent) types.Classification {
	return types.Classification{
		UserIntent:         intent,
		UnderstandingLevel: types.LevelMedium,
		ConfidenceLevel:    types.ConfidenceConfident,
		EngagementLevel:    types.LevelMedium,
	}
}

func TestDecisionTable(t *testing.T) {
	tests := []struct {
		name           string
		classification types.Classification
		skill          types.SkillLevel
		want           types.Route
	}{
		{
			name: "first message wins over everything",
			classification: func() types.Classification {
				c := classified(types.IntentCognitiveOffloading)
				c.IsFirstMessage = true
				return c
			}(),
			skill: types.SkillIntermediate,
			want:  types.RouteProgressiveOpening,
		},
		{
			name:           "topic transition",
			classification: classified(types.IntentTopicTransition),
			skill:          types.SkillIntermediate,
			want:           types.RouteTopicTransition,
		},
		{
			name:           "offloading intervention",
			classification: classified(types.IntentCognitiveOffloading),
			skill:          types.SkillAdvanced,
			want:           types.RouteCognitiveIntervention,
		},
		{
			name:           "overconfidence challenged",
			classification: classified(types.IntentOverconfident),
			skill:          types.SkillIntermediate,
			want:           types.RouteCognitiveChallenge,
		},
		{
			name:           "beginner confusion scaffolded",
			classification: classified(types.IntentConfusion),
			skill:          types.SkillBeginner,
			want:           types.RouteSupportiveScaffolding,
		},
		{
			name:           "non-beginner confusion clarified",
			classification: classified(types.IntentConfusion),
			skill:          types.SkillAdvanced,
			want:           types.RouteSocraticClarification,
		},
		{
			name: "pure technical question",
			classification: func() types.Classification {
				c := classified(types.IntentTechnicalQuestion)
				c.IsTechnicalQuestion = true
				c.IsPureKnowledgeRequest = true
				return c
			}(),
			skill: types.SkillIntermediate,
			want:  types.RouteKnowledgeOnly,
		},
		{
			name:           "technical question with reasoning falls through",
			classification: classified(types.IntentTechnicalQuestion),
			skill:          types.SkillIntermediate,
			want:           types.RouteBalancedGuidance,
		},
		{
			name:           "example request",
			classification: classified(types.IntentExampleRequest),
			skill:          types.SkillIntermediate,
			want:           types.RouteKnowledgeOnly,
		},
		{
			name: "engaged knowledge request gets a challenge",
			classification: func() types.Classification {
				c := classified(types.IntentKnowledgeRequest)
				c.EngagementLevel = types.LevelHigh
				return c
			}(),
			skill: types.SkillIntermediate,
			want:  types.RouteKnowledgeChallenge,
		},
		{
			name:           "plain knowledge request",
			classification: classified(types.IntentKnowledgeRequest),
			skill:          types.SkillIntermediate,
			want:           types.RouteKnowledgeOnly,
		},
		{
			name:           "beginner implementation request",
			classification: classified(types.IntentImplementation),
			skill:          types.SkillBeginner,
			want:           types.RouteFoundationalBuilding,
		},
		{
			name:           "advanced implementation request falls through",
			classification: classified(types.IntentImplementation),
			skill:          types.SkillAdvanced,
			want:           types.RouteBalancedGuidance,
		},
		{
			name:           "design exploration",
			classification: classified(types.IntentDesignExploration),
			skill:          types.SkillIntermediate,
			want:           types.RouteBalancedGuidance,
		},
		{
			name:           "evaluation request",
			classification: classified(types.IntentEvaluationRequest),
			skill:          types.SkillIntermediate,
			want:           types.RouteMultiAgent,
		},
		{
			name:           "feedback request",
			classification: classified(types.IntentFeedbackRequest),
			skill:          types.SkillIntermediate,
			want:           types.RouteMultiAgent,
		},
		{
			name:           "general statement defaults",
			classification: classified(types.IntentGeneralStatement),
			skill:          types.SkillIntermediate,
			want:           types.RouteBalancedGuidance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Decide(tt.classification, tt.skill, types.PhaseIdeation)
			assert.Equal(t, tt.want, decision.Route)
			assert.NotEmpty(t, decision.Reason)
			if decision.Route != types.RouteError {
				assert.NotEmpty(t, decision.Agents)
			}
		})
	}
}

func TestDeterminism(t *testing.T) {
	c := classified(types.IntentKnowledgeRequest)
	c.EngagementLevel = types.LevelHigh

	first := Decide(c, types.SkillIntermediate, types.PhaseVisualization)
	for i := 0; i < 10; i++ {
		again := Decide(c, types.SkillIntermediate, types.PhaseVisualization)
		assert.Equal(t, first.Route, again.Route)
		assert.Equal(t, first.Reason, again.Reason)
		assert.Equal(t, first.Agents, again.Agents)
	}
}

func TestAgentsFor(t *testing.T) {
	assert.Equal(t, []types.AgentName{types.AgentExpert}, AgentsFor(types.RouteKnowledgeOnly))
	assert.Equal(t, []types.AgentName{types.AgentExpert, types.AgentSocratic}, AgentsFor(types.RouteBalancedGuidance))
	assert.Equal(t, []types.AgentName{types.AgentCognitive}, AgentsFor(types.RouteCognitiveIntervention))
	assert.Equal(t, []types.AgentName{types.AgentSocratic}, AgentsFor(types.RouteProgressiveOpening))
	assert.Equal(t, []types.AgentName{types.AgentAnalysis, types.AgentExpert}, AgentsFor(types.RouteDesignGuidance))

	multi := AgentsFor(types.RouteMultiAgent)
	require.Len(t, multi, 4)
	assert.Contains(t, multi, types.AgentAnalysis)
	assert.Contains(t, multi, types.AgentExpert)
	assert.Contains(t, multi, types.AgentSocratic)
	assert.Contains(t, multi, types.AgentCognitive)

	assert.Nil(t, AgentsFor(types.RouteError))
}
