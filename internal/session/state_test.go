package session

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atelier/internal/types"
)

func TestNewSessionDefaults(t *testing.T) {
	s := New("architecture")

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, types.PhaseIdeation, s.DesignPhase)
	assert.Equal(t, types.StepInitialContext, s.SocraticStep)
	assert.Equal(t, types.SkillIntermediate, s.Profile.SkillLevel)
	assert.Equal(t, "architecture", s.Domain)
	assert.Zero(t, s.MessageCount())
}

func TestAppendOrdering(t *testing.T) {
	s := New("architecture")

	require.NoError(t, s.AppendUser("I want to design a community library"))
	s.AppendAssistant("What draws you to a library?", map[string]interface{}{"route": "progressive_opening"})
	require.NoError(t, s.AppendUser("The idea of a shared civic living room"))

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, types.RoleUser, snap.Messages[0].Role)
	assert.Equal(t, types.RoleAssistant, snap.Messages[1].Role)
	assert.Equal(t, types.RoleUser, snap.Messages[2].Role)
	assert.Equal(t, 2, snap.UserMessages)
	assert.Equal(t, "The idea of a shared civic living room", snap.LastUserMessage())
}

func TestAppendUserRejectsEmpty(t *testing.T) {
	s := New("architecture")
	assert.Error(t, s.AppendUser(""))
	assert.Zero(t, s.MessageCount())
}

func TestPhaseNeverRegresses(t *testing.T) {
	s := New("architecture")

	assert.True(t, s.AdvancePhase(types.PhaseVisualization))
	assert.Equal(t, types.PhaseVisualization, s.DesignPhase)

	// Regression is rejected, state unchanged.
	assert.False(t, s.AdvancePhase(types.PhaseIdeation))
	assert.Equal(t, types.PhaseVisualization, s.DesignPhase)

	// Same phase is a no-op.
	assert.False(t, s.AdvancePhase(types.PhaseVisualization))

	assert.True(t, s.AdvancePhase(types.PhaseMaterialization))
	assert.False(t, s.AdvancePhase(types.PhaseVisualization))
	assert.Equal(t, types.PhaseMaterialization, s.DesignPhase)
}

func TestPhaseEnteredTracksUserCount(t *testing.T) {
	s := New("architecture")
	for i := 0; i < 8; i++ {
		require.NoError(t, s.AppendUser("message"))
	}
	s.AdvancePhase(types.PhaseVisualization)
	assert.Equal(t, 8, s.Snapshot().PhaseEnteredN)
}

func TestSnapshotIsolation(t *testing.T) {
	s := New("architecture")
	require.NoError(t, s.AppendUser("original"))

	snap := s.Snapshot()
	snap.Messages[0].Content = "tampered"
	snap.Metrics["link_density"] = 99

	fresh := s.Snapshot()
	assert.Equal(t, "original", fresh.Messages[0].Content)
	assert.NotContains(t, fresh.Metrics, "link_density")
}

func TestApplyProfileDelta(t *testing.T) {
	s := New("architecture")

	load := 1.7 // out of range, should clamp
	engagement := 0.8
	s.ApplyProfileDelta(&types.ProfileDelta{
		CognitiveLoad:   &load,
		EngagementLevel: &engagement,
		KnowledgeGaps:   []string{"structural systems"},
		Strengths:       []string{"site analysis"},
	})

	assert.Equal(t, 1.0, s.Profile.CognitiveLoad)
	assert.Equal(t, 0.8, s.Profile.EngagementLevel)
	assert.Equal(t, []string{"structural systems"}, s.Profile.KnowledgeGaps)

	// Duplicate gaps are not re-added.
	s.ApplyProfileDelta(&types.ProfileDelta{KnowledgeGaps: []string{"structural systems", "egress"}})
	assert.Equal(t, []string{"structural systems", "egress"}, s.Profile.KnowledgeGaps)

	// Nil delta is a no-op.
	s.ApplyProfileDelta(nil)
	assert.Equal(t, 0.8, s.Profile.EngagementLevel)
}

func TestRecordTurn(t *testing.T) {
	s := New("architecture")
	s.RecordTurn(TurnRecord{
		Classification: types.Classification{UserIntent: types.IntentDesignExploration},
		RouteDecision:  types.RouteDecision{Route: types.RouteSocraticExploration},
		AgentsUsed:     []types.AgentName{types.AgentSocratic},
	})

	require.Len(t, s.Turns, 1)
	assert.Equal(t, types.RouteSocraticExploration, s.Turns[0].RouteDecision.Route)
	assert.False(t, s.Turns[0].Timestamp.IsZero())
}

func TestSerializeRoundTrip(t *testing.T) {
	s := New("architecture")
	require.NoError(t, s.AppendUser("I want to design a pavilion"))
	s.AppendAssistant("What site are you imagining?", map[string]interface{}{"route": "progressive_opening"})
	s.SetBrief("riverside pavilion")
	s.AdvancePhase(types.PhaseVisualization)
	s.UpdateMetrics(map[string]float64{"link_density": 0.42})
	s.RecordTurn(TurnRecord{RouteDecision: types.RouteDecision{Route: types.RouteProgressiveOpening}})

	data, err := s.Serialize()
	require.NoError(t, err)

	restored, err := Deserialize(data)
	require.NoError(t, err)

	opts := cmp.Options{
		cmpopts.IgnoreUnexported(State{}),
		cmpopts.EquateApproxTime(time.Second),
	}
	if diff := cmp.Diff(s, restored, opts...); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDeserializeDefaults(t *testing.T) {
	restored, err := Deserialize([]byte(`{"id":"abc","messages":[]}`))
	require.NoError(t, err)
	assert.Equal(t, types.PhaseIdeation, restored.DesignPhase)
	assert.NotNil(t, restored.Metrics)
	assert.NotNil(t, restored.AgentContext)
}

func TestDeserializeInvalid(t *testing.T) {
	_, err := Deserialize([]byte("{not json"))
	assert.Error(t, err)
}

func TestPhaseLogAndPhaseAt(t *testing.T) {
	s := New("architecture")
	for i := 0; i < 8; i++ {
		require.NoError(t, s.AppendUser("m"))
	}
	require.True(t, s.AdvancePhase(types.PhaseVisualization))
	for i := 0; i < 8; i++ {
		require.NoError(t, s.AppendUser("m"))
	}
	require.True(t, s.AdvancePhase(types.PhaseMaterialization))

	snap := s.Snapshot()
	require.Len(t, snap.PhaseLog, 3)
	assert.Equal(t, types.PhaseIdeation, snap.PhaseAt(7))
	assert.Equal(t, types.PhaseVisualization, snap.PhaseAt(8))
	assert.Equal(t, types.PhaseVisualization, snap.PhaseAt(15))
	assert.Equal(t, types.PhaseMaterialization, snap.PhaseAt(16))
}

func TestRecentMessages(t *testing.T) {
	s := New("architecture")
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendUser("m"))
	}
	snap := s.Snapshot()

	assert.Len(t, snap.RecentMessages(3), 3)
	assert.Len(t, snap.RecentMessages(10), 5)
	assert.Nil(t, snap.RecentMessages(0))
}
