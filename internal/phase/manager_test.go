package phase

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atelier/internal/config"
	"atelier/internal/session"
	"atelier/internal/types"
)

func newManager() *Manager {
	return New(config.DefaultConfig().Phase)
}

func addTurns(t *testing.T, s *session.State, contents ...string) {
	t.Helper()
	for _, c := range contents {
		require.NoError(t, s.AppendUser(c))
		s.AppendAssistant("a question back", nil)
	}
}

func fillerTurns(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("thinking about the project, point %d", i)
	}
	return out
}

func TestFreshSessionStaysInIdeation(t *testing.T) {
	m := newManager()
	s := session.New("architecture")
	addTurns(t, s, "I'm designing a community center")

	result := m.Detect(s.Snapshot())
	assert.Equal(t, types.PhaseIdeation, result.Phase)
	assert.Equal(t, types.StepInitialContext, result.Step)
	assert.False(t, result.TransitionReady)
}

func TestKeywordsAloneDoNotAdvanceEarly(t *testing.T) {
	m := newManager()
	s := session.New("architecture")
	// Strong visualization evidence but only 3 user messages.
	addTurns(t, s,
		"the layout should follow the site",
		"circulation wraps the courtyard",
		"I'll place the lobby to the south",
	)

	result := m.Detect(s.Snapshot())
	assert.Equal(t, types.PhaseIdeation, result.Phase)
}

func TestEighthTurnWithEvidenceAdvancesToVisualization(t *testing.T) {
	m := newManager()
	s := session.New("architecture")
	addTurns(t, s, fillerTurns(7)...)
	addTurns(t, s, "For the layout I'll place the lobby to the south so circulation stays clear")

	result := m.Detect(s.Snapshot())
	assert.Equal(t, types.PhaseVisualization, result.Phase)
	assert.True(t, result.TransitionReady)
}

func TestCountWithoutKeywordsStaysInIdeation(t *testing.T) {
	m := newManager()
	s := session.New("architecture")
	addTurns(t, s, fillerTurns(10)...)

	result := m.Detect(s.Snapshot())
	assert.Equal(t, types.PhaseIdeation, result.Phase)
	assert.True(t, result.TransitionReady, "budget spent, waiting on evidence")
}

func TestMaterializationRequiresBudgetInCurrentPhase(t *testing.T) {
	m := newManager()
	s := session.New("architecture")
	addTurns(t, s, fillerTurns(7)...)
	addTurns(t, s, "For the layout I'll place the lobby to the south so circulation stays clear")
	require.True(t, s.AdvancePhase(types.PhaseVisualization))

	// Materialization evidence right away, but only 2 messages into the
	// visualization phase.
	addTurns(t, s,
		"I'm thinking concrete and timber for the structure",
		"the construction detail at the roof edge matters",
	)
	result := m.Detect(s.Snapshot())
	assert.Equal(t, types.PhaseVisualization, result.Phase)

	// Spend the budget; now the same evidence advances.
	addTurns(t, s, fillerTurns(6)...)
	result = m.Detect(s.Snapshot())
	assert.Equal(t, types.PhaseMaterialization, result.Phase)
}

func TestDetectNeverProposesRegression(t *testing.T) {
	m := newManager()
	s := session.New("architecture")
	addTurns(t, s, fillerTurns(9)...)
	require.True(t, s.AdvancePhase(types.PhaseMaterialization))

	result := m.Detect(s.Snapshot())
	assert.Equal(t, types.PhaseMaterialization, result.Phase)
}

func TestStepLadder(t *testing.T) {
	m := newManager()

	s := session.New("architecture")
	addTurns(t, s, fillerTurns(6)...)
	addTurns(t, s, "I chose this because the site slopes, therefore the entry moves up")
	result := m.Detect(s.Snapshot())
	assert.Equal(t, types.StepKnowledgeSynthesis, result.Step)

	addTurns(t, s, fillerTurns(3)...)
	addTurns(t, s, "for example the Exeter library handles this with a central atrium")
	result = m.Detect(s.Snapshot())
	assert.Equal(t, types.StepSocraticQuestion, result.Step)

	addTurns(t, s, fillerTurns(4)...)
	addTurns(t, s, "the construction detail at the parapet needs a thermal break")
	result = m.Detect(s.Snapshot())
	assert.Equal(t, types.StepMetacognitive, result.Step)
}

func TestStepRequiresBothDepthAndCount(t *testing.T) {
	m := newManager()

	// Depth markers present but too early.
	s := session.New("architecture")
	addTurns(t, s, "because the site slopes, therefore the entry moves")
	result := m.Detect(s.Snapshot())
	assert.Equal(t, types.StepInitialContext, result.Step)

	// Enough messages but the recent window has no depth markers.
	s2 := session.New("architecture")
	addTurns(t, s2, fillerTurns(8)...)
	result = m.Detect(s2.Snapshot())
	assert.Equal(t, types.StepInitialContext, result.Step)
}

func TestZeroConfigGetsDefaults(t *testing.T) {
	m := New(config.PhaseConfig{})
	assert.Equal(t, 8, m.cfg.VisualizationMinMessages)
	assert.Equal(t, 16, m.cfg.MaterializationMinMessages)
	assert.Equal(t, 2, m.cfg.MinPhaseKeywords)
	assert.Equal(t, 8, m.cfg.QuestionBudget)
}
