// Package cognition maps a session onto six cognitive-engagement dimensions
// and compares them against calibrated baseline and target vectors. When a
// linkograph with at least two moves exists its metrics drive the scores;
// otherwise the mapper falls back to keyword statistics over the user's
// messages. Every mapping carries all six dimensions, clamped to [0,1].
package cognition

import (
	"strings"

	"atelier/internal/linkography"
	"atelier/internal/logging"
	"atelier/internal/session"
	"atelier/internal/types"
)

// baselines and targets are the calibrated reference vectors.
var baselines = types.CognitiveMapping{
	types.DimDeepThinking:   0.35,
	types.DimOffloadingPrev: 0.65,
	types.DimScaffolding:    0.45,
	types.DimIntegration:    0.40,
	types.DimProgression:    0.30,
	types.DimMetacognition:  0.25,
}

var targets = types.CognitiveMapping{
	types.DimDeepThinking:   0.75,
	types.DimOffloadingPrev: 0.85,
	types.DimScaffolding:    0.80,
	types.DimIntegration:    0.70,
	types.DimProgression:    0.65,
	types.DimMetacognition:  0.60,
}

// Baseline returns the calibrated starting value for a dimension.
func Baseline(d types.Dimension) float64 { return baselines.Get(d) }

// Target returns the calibrated goal value for a dimension.
func Target(d types.Dimension) float64 { return targets.Get(d) }

// Report is the mapper's full output for one computation.
type Report struct {
	Mapping            types.CognitiveMapping `json:"mapping"`
	Scores             []types.DimensionScore `json:"scores"`
	OverallImprovement float64                `json:"overall_improvement"`
	Mode               string                 `json:"mode"` // linkography or keyword
}

// Mapper computes cognitive mappings.
type Mapper struct{}

// NewMapper creates a mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// Compute derives the mapping for a session. lg may be nil; the keyword
// fallback is used when it is nil or has fewer than two moves.
func (m *Mapper) Compute(lg *linkography.Linkograph, view session.Snapshot) Report {
	var mapping types.CognitiveMapping
	mode := "keyword"
	if lg != nil && len(lg.Moves) >= 2 {
		mapping = fromLinkograph(lg)
		mode = "linkography"
	} else {
		mapping = fromKeywords(view.UserContents())
	}
	mapping.Clamp()

	scores := make([]types.DimensionScore, 0, 6)
	var improvementSum float64
	for _, d := range types.AllDimensions() {
		current := mapping.Get(d)
		baseline := baselines.Get(d)
		improvement := (current - baseline) / baseline * 100
		scores = append(scores, types.DimensionScore{
			Dimension:          d,
			Baseline:           baseline,
			Target:             targets.Get(d),
			Current:            current,
			ImprovementPercent: improvement,
		})
		improvementSum += improvement
	}

	report := Report{
		Mapping:            mapping,
		Scores:             scores,
		OverallImprovement: improvementSum / 6,
		Mode:               mode,
	}
	logging.Cognition("Computed mapping (%s mode), overall improvement %.1f%%", mode, report.OverallImprovement)
	return report
}

// fromLinkograph derives scores from graph structure.
func fromLinkograph(lg *linkography.Linkograph) types.CognitiveMapping {
	metrics := lg.Metrics

	userShare := moveShare(lg.Moves, func(mv linkography.DesignMove) bool {
		return mv.MoveSource == linkography.SourceUserGenerated
	})
	reflectiveShare := moveShare(lg.Moves, func(mv linkography.DesignMove) bool {
		return mv.MoveType == linkography.MoveReflection
	})

	return types.CognitiveMapping{
		types.DimDeepThinking:   types.Clamp01((metrics.AvgLinkStrength + metrics.CriticalMoveRatio) / 2 * 1.5),
		types.DimOffloadingPrev: types.Clamp01((1 - metrics.OrphanMoveRatio) * userShare),
		types.DimScaffolding:    scaffoldingScore(lg.Links),
		types.DimIntegration:    integrationScore(lg),
		types.DimProgression:    progressionScore(lg),
		types.DimMetacognition:  types.Clamp01(reflectiveShare * 3),
	}
}

// scaffoldingScore rewards small-step progression: the mean inverse temporal
// distance over all links. Adjacent links score 1, long jumps approach 0.
func scaffoldingScore(links []linkography.Link) float64 {
	if len(links) == 0 {
		return 0
	}
	var sum float64
	for _, l := range links {
		if l.TemporalDistance > 0 {
			sum += 1 / float64(l.TemporalDistance)
		}
	}
	return types.Clamp01(sum / float64(len(links)))
}

// integrationScore is the share of links that cross design-focus categories.
func integrationScore(lg *linkography.Linkograph) float64 {
	if len(lg.Links) == 0 {
		return 0
	}
	focus := make(map[string]linkography.DesignFocus, len(lg.Moves))
	for _, mv := range lg.Moves {
		focus[mv.ID] = mv.DesignFocus
	}
	crossing := 0
	for _, l := range lg.Links {
		if focus[l.SourceMoveID] != focus[l.TargetMoveID] {
			crossing++
		}
	}
	return types.Clamp01(float64(crossing) / float64(len(lg.Links)))
}

// progressionScore combines link activity in the recent half of the session
// with the spread of the phase balance.
func progressionScore(lg *linkography.Linkograph) float64 {
	spread := float64(len(lg.Metrics.PhaseBalance)) / 3

	if len(lg.Links) == 0 {
		return types.Clamp01(spread * 0.5)
	}

	seq := make(map[string]int, len(lg.Moves))
	for _, mv := range lg.Moves {
		seq[mv.ID] = mv.SequenceNumber
	}
	half := len(lg.Moves) / 2
	recent := 0
	for _, l := range lg.Links {
		if seq[l.TargetMoveID] > half {
			recent++
		}
	}
	recentShare := float64(recent) / float64(len(lg.Links))
	return types.Clamp01(0.5*recentShare + 0.5*spread)
}

func moveShare(moves []linkography.DesignMove, pred func(linkography.DesignMove) bool) float64 {
	if len(moves) == 0 {
		return 0
	}
	n := 0
	for _, mv := range moves {
		if pred(mv) {
			n++
		}
	}
	return float64(n) / float64(len(moves))
}

// =============================================================================
// KEYWORD FALLBACK
// =============================================================================

var (
	thinkingMarkers = []string{
		"because", "therefore", "consider", "trade-off", "tradeoff",
		"implication", "reasoning", "which means", "on the other hand",
	}
	helpRequestMarkers = []string{
		"just tell me", "give me the answer", "what's the answer",
		"do it for me", "tell me what to do",
	}
	connectiveMarkers = []string{
		"builds on", "following from", "based on what", "as we discussed",
		"earlier", "previous", "so that",
	}
	comparativeMarkers = []string{
		"compare", "similar to", "different from", "like the", "whereas",
		"in contrast", "versus",
	}
	temporalMarkers = []string{
		"first", "then", "next", "after", "before", "finally", "now that",
	}
	selfReferentialMarkers = []string{
		"i think", "i realize", "i'm not sure", "i wonder", "my assumption",
		"i was wrong", "i learned", "i notice",
	}
)

// fromKeywords scores each dimension as a marker statistic over the user's
// messages. Help-request markers invert: asking for answers lowers
// offloading prevention.
func fromKeywords(userContents []string) types.CognitiveMapping {
	if len(userContents) == 0 {
		return types.CognitiveMapping{
			types.DimDeepThinking:   0.5,
			types.DimOffloadingPrev: 0.5,
			types.DimScaffolding:    0.5,
			types.DimIntegration:    0.5,
			types.DimProgression:    0.5,
			types.DimMetacognition:  0.5,
		}
	}

	return types.CognitiveMapping{
		types.DimDeepThinking:   markerShare(userContents, thinkingMarkers, 2),
		types.DimOffloadingPrev: types.Clamp01(1 - markerShare(userContents, helpRequestMarkers, 3)),
		types.DimScaffolding:    markerShare(userContents, connectiveMarkers, 2),
		types.DimIntegration:    markerShare(userContents, comparativeMarkers, 2.5),
		types.DimProgression:    markerShare(userContents, temporalMarkers, 1.5),
		types.DimMetacognition:  markerShare(userContents, selfReferentialMarkers, 2.5),
	}
}

// markerShare is the fraction of messages containing any marker, scaled and
// clamped to [0,1].
func markerShare(contents []string, markers []string, scale float64) float64 {
	matched := 0
	for _, c := range contents {
		lowered := strings.ToLower(c)
		for _, m := range markers {
			if strings.Contains(lowered, m) {
				matched++
				break
			}
		}
	}
	return types.Clamp01(float64(matched) / float64(len(contents)) * scale)
}
