// Package phase tracks where the student is in the design process. Detection
// is question-count-dominant and keyword-weak: message counts gate every
// advancement, keywords and phrasing only confirm it. Phases never regress;
// the manager only ever proposes the same or a later phase.
package phase

import (
	"strings"

	"atelier/internal/config"
	"atelier/internal/logging"
	"atelier/internal/session"
	"atelier/internal/types"
)

// Keyword evidence per phase. Matched against the lowercased concatenation of
// all user messages.
var (
	visualizationKeywords = []string{
		"layout", "circulation", "plan", "section", "sketch", "diagram",
		"drawing", "massing", "composition", "arrangement", "axis",
		"zoning", "adjacency", "spatial organization", "floor plan",
	}
	materializationKeywords = []string{
		"material", "materials", "construction", "detail", "structure",
		"structural", "concrete", "timber", "steel", "brick", "joint",
		"assembly", "glazing", "specification", "facade system",
	}
	designActionPhrases = []string{
		"i'll place", "i will place", "i'll locate", "i will locate",
		"i'll arrange", "i will arrange", "i'll put", "i will put",
		"i'll position", "i will position",
	}
	proposalPhrases = []string{
		"my approach is", "my approach would be", "my proposal",
		"i propose", "my strategy is", "my plan is", "my concept is",
	}

	// Depth signals for socratic step progression, checked in the three most
	// recent user messages only.
	depthMarkers = []string{
		"because", "therefore", "which means", "so that", "as a result",
		"this implies", "since", "the reason",
	}
	exampleMarkers = []string{
		"for example", "for instance", "precedent", "case study",
		"like the", "similar to", "reminds me of",
	}
	implementationMarkers = []string{
		"detail", "construction", "dimension", "specification",
		"build", "assembly", "joint", "tolerance",
	}
)

// Result is the manager's read of the session.
type Result struct {
	Phase           types.Phase
	Step            types.SocraticStep
	TransitionReady bool
}

// Manager detects phase and socratic step from conversational evidence.
type Manager struct {
	cfg config.PhaseConfig
}

// New creates a phase manager with the given thresholds.
func New(cfg config.PhaseConfig) *Manager {
	if cfg.VisualizationMinMessages <= 0 {
		cfg.VisualizationMinMessages = 8
	}
	if cfg.MaterializationMinMessages <= 0 {
		cfg.MaterializationMinMessages = 16
	}
	if cfg.MinPhaseKeywords <= 0 {
		cfg.MinPhaseKeywords = 2
	}
	if cfg.QuestionBudget <= 0 {
		cfg.QuestionBudget = 8
	}
	return &Manager{cfg: cfg}
}

// Detect returns the phase and socratic step the session should be in.
// The returned phase is never earlier than the session's current phase, and
// advances at most one phase per call: keyword evidence proposes, the
// question budget (user messages spent in the current phase) disposes.
func (m *Manager) Detect(view session.Snapshot) Result {
	userContents := view.UserContents()
	n := len(userContents)
	all := strings.ToLower(strings.Join(userContents, "\n"))

	ready := n-view.PhaseEnteredN >= m.cfg.QuestionBudget

	phase := view.DesignPhase
	evidence := m.evidencePhase(all, n)
	if ready && evidence.Ordinal() > phase.Ordinal() {
		phase = phase.Next()
		logging.Phase("Advancement %s -> %s at N=%d", view.DesignPhase, phase, n)
	}

	return Result{
		Phase:           phase,
		Step:            m.detectStep(userContents, n),
		TransitionReady: ready,
	}
}

// evidencePhase returns the latest phase the conversation's keyword and
// phrasing evidence supports, ignoring the session's current phase.
func (m *Manager) evidencePhase(all string, n int) types.Phase {
	phase := types.PhaseIdeation

	if n >= m.cfg.VisualizationMinMessages &&
		countDistinct(all, visualizationKeywords) >= m.cfg.MinPhaseKeywords &&
		(containsAny(all, designActionPhrases) || containsAny(all, proposalPhrases)) {
		phase = types.PhaseVisualization
	}

	if n >= m.cfg.MaterializationMinMessages &&
		countDistinct(all, materializationKeywords) >= m.cfg.MinPhaseKeywords &&
		(strings.Contains(all, "construction") || strings.Contains(all, "detail")) {
		phase = types.PhaseMaterialization
	}

	return phase
}

// detectStep walks the four-step ladder using depth signals from the most
// recent three user messages.
func (m *Manager) detectStep(userContents []string, n int) types.SocraticStep {
	recent := userContents
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	window := strings.ToLower(strings.Join(recent, "\n"))

	switch {
	case n > 15 && containsAny(window, implementationMarkers):
		return types.StepMetacognitive
	case n > 10 && containsAny(window, exampleMarkers):
		return types.StepSocraticQuestion
	case n > 5 && containsAny(window, depthMarkers):
		return types.StepKnowledgeSynthesis
	default:
		return types.StepInitialContext
	}
}

func countDistinct(haystack string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			n++
		}
	}
	return n
}

func containsAny(haystack string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(haystack, p) {
			return true
		}
	}
	return false
}
