package agents

import (
	"context"
	"fmt"
	"strings"

	"atelier/internal/llm"
	"atelier/internal/logging"
	"atelier/internal/session"
	"atelier/internal/types"
)

// Cognitive gaps the tutor addresses, in priority order.
const (
	gapBriefClarification     = "brief_clarification"
	gapAccessibility          = "accessibility"
	gapSpatialThinking        = "spatial_thinking"
	gapConfidence             = "confidence"
	gapComplexityMismatchHigh = "complexity_mismatch_high"
	gapComplexityMismatchLow  = "complexity_mismatch_low"
)

var gapPriority = []string{
	gapBriefClarification,
	gapAccessibility,
	gapSpatialThinking,
	gapConfidence,
	gapComplexityMismatchHigh,
	gapComplexityMismatchLow,
}

// questionStrategies gives the tutor a framing per gap.
var questionStrategies = map[string]string{
	gapBriefClarification:     "draw out what the project actually is: who it serves, where it sits, what it must do",
	gapAccessibility:          "probe how every kind of user, including those with disabilities, moves through and uses the design",
	gapSpatialThinking:        "push the student to describe spatial relationships: adjacency, sequence, scale, light",
	gapConfidence:             "help the student articulate the reasoning behind a choice they are unsure about",
	gapComplexityMismatchHigh: "narrow the scope to one decidable question so the student is not overwhelmed",
	gapComplexityMismatchLow:  "raise the stakes by introducing a constraint or consequence the student has not considered",
}

// fallbackQuestions are used when the LLM is unavailable. Each quotes the
// student's latest utterance.
var fallbackQuestions = map[string]string{
	gapBriefClarification:     "You said %q. Before we go further, who is this project for, and what must it give them?",
	gapAccessibility:          "You said %q. How would someone using a wheelchair experience that part of your design?",
	gapSpatialThinking:        "You said %q. Can you walk me through that space: what do you see first, and where does it lead?",
	gapConfidence:             "You said %q. What is the strongest reason behind that choice, in your own words?",
	gapComplexityMismatchHigh: "You said %q. If you had to resolve only one part of that today, which would it be, and why?",
	gapComplexityMismatchLow:  "You said %q. What would break in that idea if the budget were halved?",
}

const socraticSystemPrompt = `You are a Socratic design tutor for architecture students.
Ask exactly ONE question. Never give answers, prescriptions, or lists.
The question must build directly on the student's latest message and follow the given strategy.
Keep it under 40 words.`

// SocraticTutor asks one contextualized question per turn.
type SocraticTutor struct {
	client llm.LLMClient
}

// NewSocraticTutor creates the tutor. A nil client selects template fallbacks.
func NewSocraticTutor(client llm.LLMClient) *SocraticTutor {
	return &SocraticTutor{client: client}
}

// Name implements Agent.
func (a *SocraticTutor) Name() types.AgentName { return types.AgentSocratic }

// Respond implements Agent.
func (a *SocraticTutor) Respond(ctx context.Context, view session.Snapshot, c types.Classification, rd types.RouteDecision, aux Aux) (types.AgentResponse, error) {
	flags := detectGaps(view, c)
	gap := selectGap(flags)
	strategy := questionStrategies[gap]
	lastUser := view.LastUserMessage()

	logging.Get(logging.CategorySocratic).Info("Selected gap %s (flags: %v)", gap, flags)

	response := types.AgentResponse{
		ResponseType:      "socratic",
		AgentName:         types.AgentSocratic,
		CognitiveFlags:    flags,
		PedagogicalIntent: fmt.Sprintf("address %s via socratic questioning", gap),
		QualityScore:      0.7,
		ConfidenceScore:   0.7,
	}

	if a.client != nil {
		prompt := fmt.Sprintf(
			"Design phase: %s. Socratic step: %s.\nStrategy: %s.\nStudent's latest message: %q\nRecent conversation:\n%s",
			view.DesignPhase, aux.Step, strategy, lastUser, renderRecent(view, 4),
		)
		text, err := a.client.CompleteWithSystem(ctx, socraticSystemPrompt, prompt)
		if err == nil && strings.TrimSpace(text) != "" {
			response.ResponseText = strings.TrimSpace(text)
			response.QualityScore = 0.8
			return response, nil
		}
		logging.Get(logging.CategorySocratic).Warn("question generation failed, using template: %v", err)
	}

	response.ResponseText = fmt.Sprintf(fallbackQuestions[gap], truncateWords(lastUser, 18))
	response.FallbackUsed = true
	response.QualityScore = 0.55
	response.ConfidenceScore = 0.6
	return response, nil
}

// detectGaps derives cognitive flags from the session view and the turn's
// classification.
func detectGaps(view session.Snapshot, c types.Classification) []string {
	var flags []string

	if strings.TrimSpace(view.DesignBrief) == "" && view.UserMessages <= 2 {
		flags = append(flags, gapBriefClarification)
	}
	for _, gap := range view.Profile.KnowledgeGaps {
		if strings.Contains(strings.ToLower(gap), "accessibility") {
			flags = append(flags, gapAccessibility)
			break
		}
	}
	if view.DesignPhase != types.PhaseIdeation && !mentionsSpatialLanguage(view) {
		flags = append(flags, gapSpatialThinking)
	}
	if c.ConfidenceLevel == types.ConfidenceUncertain {
		flags = append(flags, gapConfidence)
	}
	if view.Profile.CognitiveLoad >= 0.75 {
		flags = append(flags, gapComplexityMismatchHigh)
	} else if view.Profile.CognitiveLoad <= 0.25 {
		flags = append(flags, gapComplexityMismatchLow)
	}

	return flags
}

// selectGap returns the highest-priority flagged gap, defaulting to spatial
// thinking when nothing specific is flagged.
func selectGap(flags []string) string {
	for _, gap := range gapPriority {
		for _, f := range flags {
			if f == gap {
				return gap
			}
		}
	}
	return gapSpatialThinking
}

var spatialWords = []string{
	"space", "spatial", "adjacency", "sequence", "section", "plan",
	"circulation", "scale", "proportion", "light",
}

func mentionsSpatialLanguage(view session.Snapshot) bool {
	recent := view.RecentMessages(6)
	for _, m := range recent {
		if m.Role != types.RoleUser {
			continue
		}
		lowered := strings.ToLower(m.Content)
		for _, w := range spatialWords {
			if strings.Contains(lowered, w) {
				return true
			}
		}
	}
	return false
}

// renderRecent formats the last k messages for prompt context.
func renderRecent(view session.Snapshot, k int) string {
	var sb strings.Builder
	for _, m := range view.RecentMessages(k) {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, truncateWords(m.Content, 60))
	}
	return sb.String()
}
