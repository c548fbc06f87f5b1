package agents

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atelier/internal/cognition"
	"atelier/internal/knowledge"
	"atelier/internal/session"
	"atelier/internal/types"
)

type fakeClient struct {
	response string
	err      error
	calls    int
}

func (f *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	return f.CompleteWithSystem(ctx, "", prompt)
}

func (f *fakeClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeRetriever struct {
	results []knowledge.SearchResult
	err     error
	calls   int
}

func (f *fakeRetriever) Search(ctx context.Context, query string, n int, minSim float64) ([]knowledge.SearchResult, error) {
	f.calls++
	return f.results, f.err
}

func testView(t *testing.T, contents ...string) session.Snapshot {
	t.Helper()
	s := session.New("architecture")
	for _, c := range contents {
		require.NoError(t, s.AppendUser(c))
		s.AppendAssistant("a question back", nil)
	}
	return s.Snapshot()
}

func classification() types.Classification {
	return types.Classification{
		UserIntent:         types.IntentDesignExploration,
		UnderstandingLevel: types.LevelMedium,
		ConfidenceLevel:    types.ConfidenceConfident,
		EngagementLevel:    types.LevelMedium,
	}
}

// =============================================================================
// SOCRATIC TUTOR
// =============================================================================

func TestSocraticLLMQuestion(t *testing.T) {
	client := &fakeClient{response: "What does the courtyard give the readers that a skylight could not?"}
	tutor := NewSocraticTutor(client)

	resp, err := tutor.Respond(context.Background(), testView(t, "I'm adding a courtyard to my library"), classification(), types.RouteDecision{}, Aux{})
	require.NoError(t, err)
	assert.Equal(t, "socratic", resp.ResponseType)
	assert.Contains(t, resp.ResponseText, "?")
	assert.False(t, resp.FallbackUsed)
	assert.NotEmpty(t, resp.PedagogicalIntent)
}

func TestSocraticFallbackQuotesStudent(t *testing.T) {
	client := &fakeClient{err: fmt.Errorf("provider down")}
	tutor := NewSocraticTutor(client)

	resp, err := tutor.Respond(context.Background(), testView(t, "I'm adding a courtyard to my library"), classification(), types.RouteDecision{}, Aux{})
	require.NoError(t, err)
	assert.True(t, resp.FallbackUsed)
	assert.Contains(t, resp.ResponseText, "courtyard")
}

func TestSocraticGapPriority(t *testing.T) {
	// Fresh session with no brief: brief clarification outranks everything.
	view := testView(t, "hello")
	c := classification()
	c.ConfidenceLevel = types.ConfidenceUncertain

	flags := detectGaps(view, c)
	assert.Contains(t, flags, gapBriefClarification)
	assert.Contains(t, flags, gapConfidence)
	assert.Equal(t, gapBriefClarification, selectGap(flags))

	// Without the brief gap, confidence wins over complexity flags.
	assert.Equal(t, gapConfidence, selectGap([]string{gapComplexityMismatchHigh, gapConfidence}))
	assert.Equal(t, gapSpatialThinking, selectGap(nil))
}

func TestSocraticNilClientUsesTemplate(t *testing.T) {
	tutor := NewSocraticTutor(nil)

	resp, err := tutor.Respond(context.Background(), testView(t, "the entry faces north"), classification(), types.RouteDecision{}, Aux{})
	require.NoError(t, err)
	assert.True(t, resp.FallbackUsed)
	assert.NotEmpty(t, resp.ResponseText)
}

// =============================================================================
// DOMAIN EXPERT
// =============================================================================

func TestExpertGroundedAnswer(t *testing.T) {
	retriever := &fakeRetriever{results: []knowledge.SearchResult{
		{Document: knowledge.Document{ID: "ada-1", Content: "ADA ramps max slope 1:12"}, Similarity: 0.8},
	}}
	client := &fakeClient{response: "Ramps must not exceed 1:12 [ada-1]."}
	expert := NewDomainExpert(client, retriever, 5, 0.3, 16)

	resp, err := expert.Respond(context.Background(), testView(t, "What are the ADA requirements for ramp slopes?"), classification(), types.RouteDecision{}, Aux{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ada-1"}, resp.SourcesUsed)
	assert.False(t, resp.FallbackUsed)
	assert.Contains(t, resp.ResponseText, "1:12")
}

func TestExpertRetrievalCached(t *testing.T) {
	retriever := &fakeRetriever{results: []knowledge.SearchResult{
		{Document: knowledge.Document{ID: "d1", Content: "passage"}, Similarity: 0.5},
	}}
	expert := NewDomainExpert(nil, retriever, 5, 0.3, 16)
	view := testView(t, "What are the ADA requirements for ramp slopes?")

	_, err := expert.Respond(context.Background(), view, classification(), types.RouteDecision{}, Aux{})
	require.NoError(t, err)
	_, err = expert.Respond(context.Background(), view, classification(), types.RouteDecision{}, Aux{})
	require.NoError(t, err)
	assert.Equal(t, 1, retriever.calls)
}

func TestExpertNoPassagesShortQueryAsksClarification(t *testing.T) {
	expert := NewDomainExpert(nil, &fakeRetriever{}, 5, 0.3, 16)

	resp, err := expert.Respond(context.Background(), testView(t, "ramp rules?"), classification(), types.RouteDecision{}, Aux{})
	require.NoError(t, err)
	assert.True(t, resp.FallbackUsed)
	assert.Equal(t, "clarification", resp.ResponseType)
	assert.Empty(t, resp.SourcesUsed)
}

func TestExpertNoPassagesLongQueryUngroundedAnswer(t *testing.T) {
	client := &fakeClient{response: "In general terms, not grounded in the library: start from the local code."}
	expert := NewDomainExpert(client, &fakeRetriever{}, 5, 0.3, 16)

	resp, err := expert.Respond(context.Background(), testView(t, "what spacing should columns have in an underground parking garage"), classification(), types.RouteDecision{}, Aux{})
	require.NoError(t, err)
	assert.True(t, resp.FallbackUsed)
	assert.NotEmpty(t, resp.ResponseText)
}

func TestExpertRetrieverErrorDegrades(t *testing.T) {
	retriever := &fakeRetriever{err: fmt.Errorf("database locked")}
	expert := NewDomainExpert(nil, retriever, 5, 0.3, 16)

	resp, err := expert.Respond(context.Background(), testView(t, "what spacing should columns have in a parking garage"), classification(), types.RouteDecision{}, Aux{})
	require.NoError(t, err)
	assert.True(t, resp.FallbackUsed)
}

// =============================================================================
// COGNITIVE ENHANCEMENT
// =============================================================================

func TestCognitiveOverconfidentForcesMetacognition(t *testing.T) {
	agent := NewCognitiveEnhancement(nil, cognition.NewMapper())
	c := classification()
	c.ConfidenceLevel = types.ConfidenceOverconfident

	resp, err := agent.Respond(context.Background(), testView(t, "my design is perfect"), c, types.RouteDecision{}, Aux{})
	require.NoError(t, err)
	assert.Equal(t, "cognitive_challenge", resp.ResponseType)
	assert.Contains(t, resp.PedagogicalIntent, string(types.DimMetacognition))
	require.Len(t, resp.ScientificMetrics, 6)
	for _, s := range resp.ScientificMetrics {
		assert.Greater(t, s.Target, s.Baseline)
	}
}

func TestCognitiveUncertainForcesOffloadingPrevention(t *testing.T) {
	agent := NewCognitiveEnhancement(nil, cognition.NewMapper())
	c := classification()
	c.ConfidenceLevel = types.ConfidenceUncertain

	resp, err := agent.Respond(context.Background(), testView(t, "maybe the entry goes here, not sure"), c, types.RouteDecision{}, Aux{})
	require.NoError(t, err)
	assert.Contains(t, resp.PedagogicalIntent, string(types.DimOffloadingPrev))
}

func TestCognitiveLLMContextualizes(t *testing.T) {
	client := &fakeClient{response: "Argue against your courtyard: what is the strongest case it fails the readers?"}
	agent := NewCognitiveEnhancement(client, cognition.NewMapper())

	resp, err := agent.Respond(context.Background(), testView(t, "the courtyard organizes everything"), classification(), types.RouteDecision{}, Aux{})
	require.NoError(t, err)
	assert.Contains(t, resp.ResponseText, "courtyard")
	assert.False(t, resp.FallbackUsed)
	assert.NotEmpty(t, resp.EnhancementMetrics)
}

// =============================================================================
// ANALYSIS AGENT
// =============================================================================

func TestAnalysisFlagsAndSummary(t *testing.T) {
	agent := NewAnalysisAgent(nil)
	view := testView(t,
		"thought one", "thought two", "thought three", "thought four",
		"thought five", "thought six", "thought seven",
	)
	c := classification()
	c.OffloadingDetected = true

	resp, err := agent.Respond(context.Background(), view, c, types.RouteDecision{}, Aux{})
	require.NoError(t, err)
	assert.Equal(t, "analysis", resp.ResponseType)
	assert.Contains(t, resp.CognitiveFlags, "cognitive_offloading")
	assert.Contains(t, resp.CognitiveFlags, "slow_phase_progression")
	assert.NotEmpty(t, resp.ResponseText)
	assert.GreaterOrEqual(t, resp.ConfidenceScore, 0.0)
	assert.LessOrEqual(t, resp.ConfidenceScore, 1.0)
	assert.NotEmpty(t, resp.JourneyAlignment)
}

func TestAnalysisLLMSummary(t *testing.T) {
	client := &fakeClient{response: "The student is shaping a library around a courtyard; the risk is circulation."}
	agent := NewAnalysisAgent(client)

	resp, err := agent.Respond(context.Background(), testView(t, "my library wraps a courtyard"), classification(), types.RouteDecision{}, Aux{})
	require.NoError(t, err)
	assert.Contains(t, resp.ResponseText, "library")
	assert.False(t, resp.FallbackUsed)
}

// =============================================================================
// REGISTRY
// =============================================================================

func TestRegistryContainsAllFour(t *testing.T) {
	reg := NewRegistry(
		NewSocraticTutor(nil),
		NewDomainExpert(nil, nil, 5, 0.3, 16),
		NewCognitiveEnhancement(nil, nil),
		NewAnalysisAgent(nil),
	)

	for _, name := range []types.AgentName{
		types.AgentSocratic, types.AgentExpert, types.AgentCognitive, types.AgentAnalysis,
	} {
		agent, ok := reg[name]
		require.True(t, ok, name)
		assert.Equal(t, name, agent.Name())
	}
}
