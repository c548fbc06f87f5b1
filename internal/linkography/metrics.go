package linkography

import (
	"math"

	"atelier/internal/types"
)

// ComputeMetrics derives the aggregate measures from a move/link set. The
// function is deterministic: recomputing over a stored linkograph reproduces
// identical values.
func ComputeMetrics(moves []DesignMove, links []Link) Metrics {
	m := Metrics{
		PhaseBalance: make(map[types.Phase]float64),
	}
	if len(moves) == 0 {
		return m
	}

	m.LinkDensity = float64(len(links)) / float64(len(moves))

	// Per-move degree distribution. Indexed by move id.
	degree := make(map[string]int, len(moves))
	for _, mv := range moves {
		degree[mv.ID] = 0
	}
	var strengthSum float64
	for _, l := range links {
		degree[l.SourceMoveID]++
		degree[l.TargetMoveID]++
		strengthSum += l.Strength
		if l.TemporalDistance > m.MaxLinkRange {
			m.MaxLinkRange = l.TemporalDistance
		}
	}

	if len(links) > 0 {
		m.AvgLinkStrength = strengthSum / float64(len(links))
	}

	mean, std := degreeStats(moves, degree)
	critical, orphans := 0, 0
	for _, mv := range moves {
		d := degree[mv.ID]
		if d == 0 {
			orphans++
		}
		if d > 0 && float64(d) >= mean+std {
			critical++
		}
	}
	m.CriticalMoveRatio = float64(critical) / float64(len(moves))
	m.OrphanMoveRatio = float64(orphans) / float64(len(moves))

	m.Entropy = linkEntropy(moves, links)

	for _, mv := range moves {
		m.PhaseBalance[mv.Phase] += 1.0 / float64(len(moves))
	}

	m.ChunkCount, m.WebCount, m.SawtoothCount = countMotifs(moves, links, degree)

	return m
}

func degreeStats(moves []DesignMove, degree map[string]int) (mean, std float64) {
	for _, mv := range moves {
		mean += float64(degree[mv.ID])
	}
	mean /= float64(len(moves))

	var variance float64
	for _, mv := range moves {
		d := float64(degree[mv.ID]) - mean
		variance += d * d
	}
	variance /= float64(len(moves))
	return mean, math.Sqrt(variance)
}

// linkEntropy is the binary entropy of link occupancy over all candidate
// windowed pairs. Maximal when half the possible links exist, zero when the
// graph is empty or saturated.
func linkEntropy(moves []DesignMove, links []Link) float64 {
	// Candidate pairs are bounded by the links' observed window; use the full
	// ordered-pair count as the conservative denominator for small graphs.
	n := len(moves)
	if n < 2 {
		return 0
	}
	candidates := float64(n*(n-1)) / 2
	p := float64(len(links)) / candidates
	if p <= 0 || p >= 1 {
		return 0
	}
	return -p*math.Log2(p) - (1-p)*math.Log2(1-p)
}

// countMotifs identifies structural patterns:
//   - chunk: a run of three or more consecutive moves where every adjacent
//     pair is linked (a locally dense cluster).
//   - web: a move with degree >= 4 (a many-to-many region pivot).
//   - sawtooth: an adjacent-link chain of exactly two steps whose endpoints
//     are not directly linked (the zigzag of alternating small steps).
//
// Detectors are intentionally simple; callers rely only on their monotone
// response to added links.
func countMotifs(moves []DesignMove, links []Link, degree map[string]int) (chunks, webs, sawteeth int) {
	idBySeq := make(map[int]string, len(moves))
	for _, mv := range moves {
		idBySeq[mv.SequenceNumber] = mv.ID
	}
	linked := make(map[[2]string]bool, len(links))
	for _, l := range links {
		linked[[2]string{l.SourceMoveID, l.TargetMoveID}] = true
	}
	adjacent := func(seq int) bool {
		a, okA := idBySeq[seq]
		b, okB := idBySeq[seq+1]
		return okA && okB && linked[[2]string{a, b}]
	}

	// Chunks: maximal runs of adjacent links with length >= 2 (three moves).
	run := 0
	maxSeq := 0
	for _, mv := range moves {
		if mv.SequenceNumber > maxSeq {
			maxSeq = mv.SequenceNumber
		}
	}
	for seq := 1; seq < maxSeq; seq++ {
		if adjacent(seq) {
			run++
			continue
		}
		if run >= 2 {
			chunks++
		}
		run = 0
	}
	if run >= 2 {
		chunks++
	}

	for _, mv := range moves {
		if degree[mv.ID] >= 4 {
			webs++
		}
	}

	for seq := 1; seq+1 < maxSeq+1; seq++ {
		if !adjacent(seq) || !adjacent(seq+1) {
			continue
		}
		a, okA := idBySeq[seq]
		c, okC := idBySeq[seq+2]
		if okA && okC && !linked[[2]string{a, c}] {
			sawteeth++
		}
	}

	return chunks, webs, sawteeth
}
