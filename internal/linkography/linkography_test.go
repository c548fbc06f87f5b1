package linkography

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atelier/internal/config"
	"atelier/internal/session"
	"atelier/internal/types"
)

func defaultEngine() *Engine {
	return NewEngine(config.DefaultConfig().Linkography, nil)
}

func sessionFrom(t *testing.T, contents ...string) session.Snapshot {
	t.Helper()
	s := session.New("architecture")
	for _, c := range contents {
		require.NoError(t, s.AppendUser(c))
		s.AppendAssistant("a question back", nil)
	}
	return s.Snapshot()
}

var conversation = []string{
	"I'm designing a community library with a central reading courtyard",
	"the courtyard should bring daylight into the reading rooms",
	"circulation wraps around the courtyard connecting the reading rooms",
	"I'm worried the entry sequence feels disconnected from the courtyard",
	"maybe the entry could open directly into the courtyard garden",
	"the structure could be timber columns around the courtyard edge",
	"timber columns would give the reading rooms a warm rhythm",
	"what about acoustics in the big reading rooms",
}

func TestMoveExtraction(t *testing.T) {
	view := sessionFrom(t, conversation...)
	moves := ExtractMoves(view)

	require.Len(t, moves, len(conversation))
	for i, mv := range moves {
		assert.Equal(t, i+1, mv.SequenceNumber, "sequence numbers are contiguous and 1-indexed")
		assert.Equal(t, SourceUserGenerated, mv.MoveSource)
		assert.Equal(t, ModalityText, mv.Modality)
		assert.NotEmpty(t, mv.ID)
		assert.NotEmpty(t, mv.MoveType)
		assert.NotEmpty(t, mv.DesignFocus)
		assert.GreaterOrEqual(t, mv.ComplexityScore, 0.0)
		assert.LessOrEqual(t, mv.ComplexityScore, 1.0)
	}
}

func TestLinkInvariants(t *testing.T) {
	e := defaultEngine()
	lg, err := e.Build(context.Background(), sessionFrom(t, conversation...))
	require.NoError(t, err)
	require.NotEmpty(t, lg.Links, "a topically coherent conversation produces links")

	byID := make(map[string]DesignMove)
	for _, mv := range lg.Moves {
		byID[mv.ID] = mv
	}

	seen := make(map[[2]string]bool)
	for _, l := range lg.Links {
		src, ok := byID[l.SourceMoveID]
		require.True(t, ok, "source move exists")
		tgt, ok := byID[l.TargetMoveID]
		require.True(t, ok, "target move exists")

		assert.Greater(t, tgt.SequenceNumber, src.SequenceNumber, "edges point forward in time")
		assert.Equal(t, tgt.SequenceNumber-src.SequenceNumber, l.TemporalDistance)
		assert.LessOrEqual(t, l.TemporalDistance, e.cfg.Window)

		assert.GreaterOrEqual(t, l.Strength, e.cfg.Threshold)
		assert.LessOrEqual(t, l.Strength, 1.0)
		assert.InDelta(t, minFloat(1, l.Strength*1.5), l.Confidence, 1e-9)

		pair := [2]string{l.SourceMoveID, l.TargetMoveID}
		assert.False(t, seen[pair], "no duplicate links for an ordered pair")
		seen[pair] = true
	}
}

func TestWindowLimitsLinks(t *testing.T) {
	// Identical content everywhere; only the window limits reach.
	contents := make([]string, 12)
	for i := range contents {
		contents[i] = "the timber courtyard library reading room"
	}
	e := NewEngine(config.LinkographyConfig{Window: 3, Threshold: 0.1}, nil)
	lg, err := e.Build(context.Background(), sessionFrom(t, contents...))
	require.NoError(t, err)

	for _, l := range lg.Links {
		assert.LessOrEqual(t, l.TemporalDistance, 3)
	}
	assert.Equal(t, 3, lg.Metrics.MaxLinkRange)
}

func TestNoLinksBelowThreshold(t *testing.T) {
	e := defaultEngine()
	lg, err := e.Build(context.Background(), sessionFrom(t,
		"the courtyard brings daylight inside",
		"zebras migrate across distant savannas yearly",
	))
	require.NoError(t, err)
	assert.Empty(t, lg.Links)
	assert.InDelta(t, 1.0, lg.Metrics.OrphanMoveRatio, 1e-9)
}

func TestMetricsRecomputeIdentical(t *testing.T) {
	e := defaultEngine()
	lg, err := e.Build(context.Background(), sessionFrom(t, conversation...))
	require.NoError(t, err)

	recomputed := ComputeMetrics(lg.Moves, lg.Links)
	assert.Equal(t, lg.Metrics, recomputed)
}

func TestMetricsRanges(t *testing.T) {
	e := defaultEngine()
	lg, err := e.Build(context.Background(), sessionFrom(t, conversation...))
	require.NoError(t, err)

	m := lg.Metrics
	assert.GreaterOrEqual(t, m.CriticalMoveRatio, 0.0)
	assert.LessOrEqual(t, m.CriticalMoveRatio, 1.0)
	assert.GreaterOrEqual(t, m.OrphanMoveRatio, 0.0)
	assert.LessOrEqual(t, m.OrphanMoveRatio, 1.0)
	assert.GreaterOrEqual(t, m.AvgLinkStrength, 0.0)
	assert.LessOrEqual(t, m.AvgLinkStrength, 1.0)
	assert.GreaterOrEqual(t, m.Entropy, 0.0)
	assert.LessOrEqual(t, m.Entropy, 1.0)

	var total float64
	for _, ratio := range m.PhaseBalance {
		total += ratio
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestEmptySessionMetrics(t *testing.T) {
	m := ComputeMetrics(nil, nil)
	assert.Zero(t, m.LinkDensity)
	assert.Zero(t, m.OrphanMoveRatio)
	assert.Empty(t, m.PhaseBalance)
}

func TestMotifCountsMonotoneInLinks(t *testing.T) {
	view := sessionFrom(t, conversation...)
	moves := ExtractMoves(view)

	// Sparse: adjacent pairs only. Dense: the sparse set plus more edges.
	var sparse []Link
	for i := 0; i+1 < len(moves); i++ {
		sparse = append(sparse, Link{
			SourceMoveID:     moves[i].ID,
			TargetMoveID:     moves[i+1].ID,
			Strength:         0.5,
			Confidence:       0.75,
			TemporalDistance: 1,
			LinkType:         LinkSemantic,
		})
	}
	dense := make([]Link, len(sparse))
	copy(dense, sparse)
	for i := 0; i+3 < len(moves); i++ {
		dense = append(dense, Link{
			SourceMoveID:     moves[i].ID,
			TargetMoveID:     moves[i+3].ID,
			Strength:         0.4,
			Confidence:       0.6,
			TemporalDistance: 3,
			LinkType:         LinkSemantic,
		})
	}

	sparseM := ComputeMetrics(moves, sparse)
	denseM := ComputeMetrics(moves, dense)

	assert.GreaterOrEqual(t, denseM.ChunkCount, sparseM.ChunkCount)
	assert.GreaterOrEqual(t, denseM.WebCount, sparseM.WebCount)
	assert.GreaterOrEqual(t, denseM.LinkDensity, sparseM.LinkDensity)
	assert.LessOrEqual(t, denseM.OrphanMoveRatio, sparseM.OrphanMoveRatio)
}

func TestPhaseBalanceTracksPhaseLog(t *testing.T) {
	s := session.New("architecture")
	for i := 0; i < 8; i++ {
		require.NoError(t, s.AppendUser(fmt.Sprintf("ideation thought %d", i)))
	}
	require.True(t, s.AdvancePhase(types.PhaseVisualization))
	for i := 0; i < 8; i++ {
		require.NoError(t, s.AppendUser(fmt.Sprintf("visualization thought %d", i)))
	}

	moves := ExtractMoves(s.Snapshot())
	m := ComputeMetrics(moves, nil)

	assert.InDelta(t, 7.0/16.0, m.PhaseBalance[types.PhaseIdeation], 1e-9)
	assert.InDelta(t, 9.0/16.0, m.PhaseBalance[types.PhaseVisualization], 1e-9)
}

func TestExportRoundTrip(t *testing.T) {
	e := defaultEngine()
	lg, err := e.Build(context.Background(), sessionFrom(t, conversation...))
	require.NoError(t, err)

	data, err := lg.Export()
	require.NoError(t, err)

	var decoded Linkograph
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, lg.SessionID, decoded.SessionID)
	assert.Len(t, decoded.Moves, len(lg.Moves))
	assert.Len(t, decoded.Links, len(lg.Links))
	assert.InDelta(t, lg.Metrics.LinkDensity, decoded.Metrics.LinkDensity, 1e-9)
}

func TestMoveTypeClassifier(t *testing.T) {
	assert.Equal(t, MoveProposal, classifyMoveType("i'll place the lobby to the south"))
	assert.Equal(t, MoveReflection, classifyMoveType("looking back, the courtyard drove everything"))
	assert.Equal(t, MoveEvaluation, classifyMoveType("the second scheme works well in comparison"))
	assert.Equal(t, MoveTransformation, classifyMoveType("instead of a wall, use a screen"))
	assert.Equal(t, MoveSynthesis, classifyMoveType("combine the garden and the entry"))
	assert.Equal(t, MoveAnalysis, classifyMoveType("the site slopes toward the river"))
}

func TestDesignFocusClassifier(t *testing.T) {
	assert.Equal(t, FocusMaterial, classifyDesignFocus("exposed concrete and timber surfaces"))
	assert.Equal(t, FocusStructure, classifyDesignFocus("the column grid and beam spans"))
	assert.Equal(t, FocusContext, classifyDesignFocus("the site and its urban neighborhood"))
	assert.Equal(t, FocusForm, classifyDesignFocus("a stepped massing with a bold silhouette"))
	assert.Equal(t, FocusFunction, classifyDesignFocus("nothing specific at all"))
}
