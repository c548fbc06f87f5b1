// Package linkography converts the conversation into a linkograph: a directed
// graph of design moves with weighted semantic links. Every user message
// becomes one move; ordered move pairs within a sliding window are linked when
// their semantic similarity clears a threshold. Metrics derived from the graph
// feed the cognitive mapper.
package linkography

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"atelier/internal/config"
	"atelier/internal/embedding"
	"atelier/internal/logging"
	"atelier/internal/session"
	"atelier/internal/types"
)

// MoveType categorizes the cognitive character of a design move.
type MoveType string

const (
	MoveAnalysis       MoveType = "analysis"
	MoveSynthesis      MoveType = "synthesis"
	MoveEvaluation     MoveType = "evaluation"
	MoveTransformation MoveType = "transformation"
	MoveReflection     MoveType = "reflection"
	MoveProposal       MoveType = "proposal"
)

// Modality is the channel the move arrived through.
type Modality string

const (
	ModalityText    Modality = "text"
	ModalitySketch  Modality = "sketch"
	ModalityGesture Modality = "gesture"
	ModalityVerbal  Modality = "verbal"
)

// MoveSource distinguishes student-originated moves from AI-prompted ones.
type MoveSource string

const (
	SourceUserGenerated MoveSource = "user_generated"
	SourceAIPrompted    MoveSource = "ai_prompted"
)

// DesignFocus is the aspect of the design a move addresses.
type DesignFocus string

const (
	FocusForm      DesignFocus = "form"
	FocusFunction  DesignFocus = "function"
	FocusStructure DesignFocus = "structure"
	FocusMaterial  DesignFocus = "material"
	FocusContext   DesignFocus = "context"
)

// LinkType categorizes a link's direction and nature.
type LinkType string

const (
	LinkBackward LinkType = "backward"
	LinkForward  LinkType = "forward"
	LinkLateral  LinkType = "lateral"
	LinkSemantic LinkType = "semantic"
)

// DesignMove is one cognitive step by the student.
type DesignMove struct {
	ID                 string      `json:"id"`
	SessionID          string      `json:"session_id"`
	SequenceNumber     int         `json:"sequence_number"`
	Timestamp          time.Time   `json:"timestamp"`
	Content            string      `json:"content"`
	MoveType           MoveType    `json:"move_type"`
	Phase              types.Phase `json:"phase"`
	Modality           Modality    `json:"modality"`
	CognitiveOperation string      `json:"cognitive_operation"`
	DesignFocus        DesignFocus `json:"design_focus"`
	MoveSource         MoveSource  `json:"move_source"`
	ComplexityScore    float64     `json:"complexity_score"`
	CognitiveLoad      types.Level `json:"cognitive_load"`
}

// Link is one weighted directed edge between two moves.
type Link struct {
	SourceMoveID       string   `json:"source_move_id"`
	TargetMoveID       string   `json:"target_move_id"`
	Strength           float64  `json:"strength"`
	Confidence         float64  `json:"confidence"`
	SemanticSimilarity float64  `json:"semantic_similarity"`
	TemporalDistance   int      `json:"temporal_distance"`
	LinkType           LinkType `json:"link_type"`
}

// Metrics are the per-linkograph aggregate measures.
type Metrics struct {
	LinkDensity       float64                 `json:"link_density"`
	CriticalMoveRatio float64                 `json:"critical_move_ratio"`
	Entropy           float64                 `json:"entropy"`
	PhaseBalance      map[types.Phase]float64 `json:"phase_balance"`
	AvgLinkStrength   float64                 `json:"avg_link_strength"`
	MaxLinkRange      int                     `json:"max_link_range"`
	OrphanMoveRatio   float64                 `json:"orphan_move_ratio"`
	ChunkCount        int                     `json:"chunk_count"`
	WebCount          int                     `json:"web_count"`
	SawtoothCount     int                     `json:"sawtooth_count"`
}

// Linkograph is the full graph for one session.
type Linkograph struct {
	SessionID   string       `json:"session_id"`
	Moves       []DesignMove `json:"moves"`
	Links       []Link       `json:"links"`
	Metrics     Metrics      `json:"metrics"`
	Phase       types.Phase  `json:"phase"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// Export renders the linkograph in the exchange JSON format.
func (lg *Linkograph) Export() ([]byte, error) {
	return json.MarshalIndent(lg, "", "  ")
}

// Engine builds linkographs from session snapshots.
type Engine struct {
	cfg    config.LinkographyConfig
	engine embedding.Engine
}

// NewEngine creates an engine. A nil embedding engine selects Jaccard
// word-overlap similarity; otherwise cosine similarity over embeddings is
// used, with Jaccard as the failure fallback.
func NewEngine(cfg config.LinkographyConfig, emb embedding.Engine) *Engine {
	if cfg.Window <= 0 {
		cfg.Window = 8
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.1
	}
	return &Engine{cfg: cfg, engine: emb}
}

// Build derives the linkograph for the session's current state.
func (e *Engine) Build(ctx context.Context, view session.Snapshot) (*Linkograph, error) {
	timer := logging.StartTimer(logging.CategoryLinkography, "Build")
	defer timer.Stop()

	moves := ExtractMoves(view)
	links := e.buildLinks(ctx, moves)

	lg := &Linkograph{
		SessionID:   view.ID,
		Moves:       moves,
		Links:       links,
		Metrics:     ComputeMetrics(moves, links),
		Phase:       view.DesignPhase,
		GeneratedAt: time.Now(),
	}

	logging.Linkography("Built linkograph: %d moves, %d links, density %.3f",
		len(moves), len(links), lg.Metrics.LinkDensity)
	return lg, nil
}

// ExtractMoves converts each user message into one design move. Sequence
// numbers form a contiguous 1..N range in message order.
func ExtractMoves(view session.Snapshot) []DesignMove {
	var moves []DesignMove
	seq := 0
	for _, m := range view.Messages {
		if m.Role != types.RoleUser {
			continue
		}
		seq++
		content := m.Content
		lowered := strings.ToLower(content)
		moveType := classifyMoveType(lowered)
		complexity := complexityScore(content, lowered)

		moves = append(moves, DesignMove{
			ID:                 uuid.NewString(),
			SessionID:          view.ID,
			SequenceNumber:     seq,
			Timestamp:          m.Timestamp,
			Content:            content,
			MoveType:           moveType,
			Phase:              view.PhaseAt(seq),
			Modality:           ModalityText,
			CognitiveOperation: cognitiveOperation(moveType),
			DesignFocus:        classifyDesignFocus(lowered),
			MoveSource:         SourceUserGenerated,
			ComplexityScore:    complexity,
			CognitiveLoad:      loadFromComplexity(complexity),
		})
	}
	return moves
}

// buildLinks emits a directed edge for every windowed ordered pair whose
// similarity clears the threshold. No self-links, no duplicates.
func (e *Engine) buildLinks(ctx context.Context, moves []DesignMove) []Link {
	if len(moves) < 2 {
		return nil
	}

	sim := e.similarityMatrix(ctx, moves)

	var links []Link
	for i := 0; i < len(moves); i++ {
		for j := i + 1; j < len(moves) && j-i <= e.cfg.Window; j++ {
			s := sim[i][j]
			if s < e.cfg.Threshold {
				continue
			}
			links = append(links, Link{
				SourceMoveID:       moves[i].ID,
				TargetMoveID:       moves[j].ID,
				Strength:           s,
				Confidence:         minFloat(1, s*1.5),
				SemanticSimilarity: s,
				TemporalDistance:   j - i,
				LinkType:           LinkSemantic,
			})
		}
	}
	return links
}

// similarityMatrix computes pairwise similarities for all windowed pairs.
// Embedding cosine when available, Jaccard word overlap otherwise.
func (e *Engine) similarityMatrix(ctx context.Context, moves []DesignMove) [][]float64 {
	n := len(moves)
	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
	}

	if e.engine != nil {
		texts := make([]string, n)
		for i, m := range moves {
			texts[i] = m.Content
		}
		vectors, err := e.engine.EmbedBatch(ctx, texts)
		if err == nil && len(vectors) == n {
			for i := 0; i < n; i++ {
				for j := i + 1; j < n && j-i <= e.cfg.Window; j++ {
					if s, err := embedding.CosineSimilarity(vectors[i], vectors[j]); err == nil {
						sim[i][j] = types.Clamp01(s)
					}
				}
			}
			return sim
		}
		logging.Get(logging.CategoryLinkography).Warn("embedding similarity failed, using word overlap: %v", err)
	}

	tokens := make([]map[string]bool, n)
	for i, m := range moves {
		tokens[i] = contentWords(m.Content)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n && j-i <= e.cfg.Window; j++ {
			sim[i][j] = jaccard(tokens[i], tokens[j])
		}
	}
	return sim
}

// jaccard is intersection-over-union on content word sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func contentWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	}) {
		if len(w) < 3 || moveStopWords[w] {
			continue
		}
		words[w] = true
	}
	return words
}

var moveStopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "this": true,
	"that": true, "with": true, "from": true, "will": true, "would": true,
	"what": true, "about": true, "should": true, "could": true, "have": true,
	"been": true, "its": true, "into": true, "then": true, "than": true,
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// =============================================================================
// MOVE CLASSIFIERS
// =============================================================================

var (
	reflectionMarkers = []string{
		"i realize", "looking back", "i learned", "i wonder", "reflect",
		"thinking about it", "in retrospect", "i notice that i",
	}
	transformationMarkers = []string{
		"instead", "change", "replace", "convert", "shift", "rework",
		"turn it into", "flip",
	}
	evaluationMarkers = []string{
		"better", "worse", "prefer", "compare", "evaluate", "works well",
		"doesn't work", "problem with", "strength", "weakness",
	}
	proposalMarkers = []string{
		"i'll", "i will", "propose", "my approach", "what if", "let's try",
		"i want to", "my idea",
	}
	synthesisMarkers = []string{
		"combine", "integrate", "connect", "bring together", "merge",
		"overlap", "weave",
	}
)

func classifyMoveType(lowered string) MoveType {
	switch {
	case containsAny(lowered, reflectionMarkers):
		return MoveReflection
	case containsAny(lowered, transformationMarkers):
		return MoveTransformation
	case containsAny(lowered, evaluationMarkers):
		return MoveEvaluation
	case containsAny(lowered, proposalMarkers):
		return MoveProposal
	case containsAny(lowered, synthesisMarkers):
		return MoveSynthesis
	default:
		return MoveAnalysis
	}
}

var focusKeywords = []struct {
	focus DesignFocus
	words []string
}{
	{FocusMaterial, []string{"material", "concrete", "timber", "steel", "brick", "glass", "stone", "finish"}},
	{FocusStructure, []string{"structure", "structural", "column", "beam", "load", "span", "frame", "truss"}},
	{FocusContext, []string{"site", "context", "neighborhood", "landscape", "urban", "street", "climate", "surrounding"}},
	{FocusForm, []string{"form", "shape", "massing", "geometry", "volume", "silhouette", "proportion"}},
	{FocusFunction, []string{"program", "function", "use", "activity", "circulation", "layout", "room", "space"}},
}

func classifyDesignFocus(lowered string) DesignFocus {
	best := FocusFunction
	bestCount := 0
	for _, fk := range focusKeywords {
		n := 0
		for _, w := range fk.words {
			if strings.Contains(lowered, w) {
				n++
			}
		}
		if n > bestCount {
			best = fk.focus
			bestCount = n
		}
	}
	return best
}

func cognitiveOperation(mt MoveType) string {
	switch mt {
	case MoveAnalysis:
		return "analyzing"
	case MoveSynthesis:
		return "synthesizing"
	case MoveEvaluation:
		return "evaluating"
	case MoveTransformation:
		return "transforming"
	case MoveReflection:
		return "reflecting"
	case MoveProposal:
		return "proposing"
	default:
		return "analyzing"
	}
}

var connectives = []string{
	"because", "therefore", "which means", "so that", "as a result", "since",
}

func complexityScore(content, lowered string) float64 {
	words := len(strings.Fields(content))
	score := float64(words) / 60.0 * 0.6
	for _, c := range connectives {
		if strings.Contains(lowered, c) {
			score += 0.15
		}
	}
	return types.Clamp01(score)
}

func loadFromComplexity(c float64) types.Level {
	switch {
	case c >= 0.66:
		return types.LevelHigh
	case c >= 0.33:
		return types.LevelMedium
	default:
		return types.LevelLow
	}
}

func containsAny(lowered string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(lowered, m) {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer for debugging output.
func (m DesignMove) String() string {
	return fmt.Sprintf("move %d [%s/%s]", m.SequenceNumber, m.MoveType, m.DesignFocus)
}
