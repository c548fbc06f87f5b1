// Package classify produces the structured Classification of each user turn.
// Detection is layered: deterministic keyword and structural heuristics run
// first, and the LLM is consulted only when they come up ambiguous. The
// classifier stays fully functional with no LLM configured.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"atelier/internal/llm"
	"atelier/internal/logging"
	"atelier/internal/session"
	"atelier/internal/types"
)

// Classifier turns user text into a Classification.
type Classifier struct {
	client llm.LLMClient
}

// New creates a classifier. A nil client keeps it in heuristic-only mode.
func New(client llm.LLMClient) *Classifier {
	return &Classifier{client: client}
}

// Keyword groups for intent heuristics. Checked against lowercased input.
var (
	overconfidentMarkers = []string{
		"perfect", "flawless", "definitely works", "definitely work",
		"will work for everyone", "no doubt", "obviously correct",
		"can't be improved", "cannot be improved",
	}
	offloadingMarkers = []string{
		"just tell me", "give me the answer", "tell me the answer",
		"tell me what to do", "just give me", "do it for me",
		"give me the solution", "what's the answer",
	}
	confusionMarkers = []string{
		"confused", "don't understand", "dont understand", "i'm lost",
		"im lost", "makes no sense", "not following", "unclear to me",
	}
	transitionMarkers = []string{
		"let's move on", "lets move on", "moving on", "switch topics",
		"different topic", "new topic", "change the subject",
		"let's talk about something else",
	}
	exampleMarkers = []string{
		"example", "examples", "precedent", "precedents", "case study",
		"case studies", "show me a project", "built project",
	}
	evaluationMarkers = []string{
		"feedback", "evaluate", "critique", "review my", "assess my",
		"what do you think of my", "how is my", "comprehensive feedback",
	}
	implementationMarkers = []string{
		"how do i build", "how to build", "how do i construct",
		"how to construct", "how do i detail", "construction sequence",
		"how would this be built",
	}
	problemMarkers = []string{
		"problem", "struggling", "stuck", "issue with", "doesn't work",
		"conflict between", "can't resolve", "cannot resolve",
	}
	explorationMarkers = []string{
		"i'm designing", "im designing", "i am designing", "i'm thinking",
		"im thinking", "what if", "i want to explore", "exploring",
		"considering", "my concept", "my idea",
	}
	guidanceMarkers = []string{
		"how should i", "where should i", "should i place",
		"guide me", "what direction", "which approach",
	}
	knowledgeMarkers = []string{
		"what is", "what are", "tell me about", "explain", "how does",
		"how do", "define", "why does", "why do",
	}
	technicalTerms = []string{
		"ada", "code", "requirement", "requirements", "slope", "load",
		"loads", "span", "spans", "u-value", "r-value", "fire rating",
		"egress", "setback", "clearance", "tolerance", "dimension",
		"dimensions", "psf", "regulation", "regulations", "standard",
		"standards",
	}
	reasoningConnectives = []string{
		"because", "therefore", "which means", "so that", "as a result",
		"this implies", "consequently", "since",
	}
	hedgeMarkers = []string{
		"maybe", "perhaps", "not sure", "i guess", "i suppose",
		"possibly", "might", "uncertain",
	}
)

const llmClassifyPrompt = `You classify one student message from an architectural design tutoring session.
Choose user_intent from exactly this list: first_message, topic_transition, confusion_expression, knowledge_request, example_request, design_exploration, design_guidance, overconfident_statement, design_problem, technical_question, evaluation_request, feedback_request, implementation_request, cognitive_offloading, general_statement.
Reply with ONLY a JSON object:
{"user_intent": "...", "is_technical_question": bool, "is_pure_knowledge_request": bool, "understanding_level": "low|medium|high", "confidence_level": "uncertain|confident|overconfident", "engagement_level": "low|medium|high"}`

// Classify analyzes the latest user turn in the context of the session view.
func (c *Classifier) Classify(ctx context.Context, input string, view session.Snapshot) types.Classification {
	timer := logging.StartTimer(logging.CategoryClassification, "Classify")
	defer timer.Stop()

	result := c.heuristic(input, view)

	// First-message policy always wins, and the strong phrase policies are
	// deterministic enough to skip the LLM entirely.
	if result.IsFirstMessage ||
		result.UserIntent == types.IntentOverconfident ||
		result.UserIntent == types.IntentCognitiveOffloading {
		logging.Classification("Heuristic intent=%s (policy)", result.UserIntent)
		return result
	}

	if c.client != nil && result.UserIntent == types.IntentGeneralStatement {
		if refined, ok := c.llmClassify(ctx, input, view); ok {
			refined.IsFirstMessage = result.IsFirstMessage
			refined.OffloadingDetected = refined.UserIntent == types.IntentCognitiveOffloading
			refined.LLMUsed = true
			logging.Classification("LLM intent=%s", refined.UserIntent)
			return refined
		}
	}

	logging.Classification("Heuristic intent=%s", result.UserIntent)
	return result
}

// heuristic is the deterministic layered pass. It always returns a total
// Classification with every boolean populated.
func (c *Classifier) heuristic(input string, view session.Snapshot) types.Classification {
	lowered := strings.ToLower(input)

	result := types.Classification{
		IsFirstMessage:     view.UserMessages <= 1,
		UnderstandingLevel: understandingLevel(lowered),
		ConfidenceLevel:    confidenceLevel(lowered),
		EngagementLevel:    engagementLevel(input, lowered),
	}

	isTechnical := containsAny(lowered, technicalTerms) && strings.Contains(input, "?")
	result.IsTechnicalQuestion = isTechnical

	switch {
	case result.IsFirstMessage:
		result.UserIntent = types.IntentFirstMessage
	case containsAny(lowered, offloadingMarkers):
		result.UserIntent = types.IntentCognitiveOffloading
		result.OffloadingDetected = true
	case containsAny(lowered, overconfidentMarkers):
		result.UserIntent = types.IntentOverconfident
		result.ConfidenceLevel = types.ConfidenceOverconfident
	case containsAny(lowered, transitionMarkers):
		result.UserIntent = types.IntentTopicTransition
	case containsAny(lowered, confusionMarkers):
		result.UserIntent = types.IntentConfusion
	case containsAny(lowered, evaluationMarkers):
		result.UserIntent = evaluationIntent(lowered)
	case containsAny(lowered, implementationMarkers):
		result.UserIntent = types.IntentImplementation
	case isTechnical:
		result.UserIntent = types.IntentTechnicalQuestion
		result.IsPureKnowledgeRequest = pureKnowledge(lowered)
	case containsAny(lowered, exampleMarkers):
		result.UserIntent = types.IntentExampleRequest
	case containsAny(lowered, guidanceMarkers):
		result.UserIntent = types.IntentDesignGuidance
	case containsAny(lowered, knowledgeMarkers):
		result.UserIntent = types.IntentKnowledgeRequest
		result.IsPureKnowledgeRequest = pureKnowledge(lowered)
	case containsAny(lowered, problemMarkers):
		result.UserIntent = types.IntentDesignProblem
	case containsAny(lowered, explorationMarkers):
		result.UserIntent = types.IntentDesignExploration
	default:
		result.UserIntent = types.IntentGeneralStatement
	}

	return result
}

// llmClassify asks the LLM for an authoritative intent when heuristics were
// ambiguous. Returns false when the call or parse fails.
func (c *Classifier) llmClassify(ctx context.Context, input string, view session.Snapshot) (types.Classification, bool) {
	var sb strings.Builder
	for _, m := range view.RecentMessages(3) {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&sb, "Message to classify: %s", input)

	raw, err := c.client.CompleteWithSystem(ctx, llmClassifyPrompt, sb.String())
	if err != nil {
		logging.Get(logging.CategoryClassification).Warn("LLM classification failed, keeping heuristics: %v", err)
		return types.Classification{}, false
	}

	var parsed struct {
		UserIntent             string `json:"user_intent"`
		IsTechnicalQuestion    bool   `json:"is_technical_question"`
		IsPureKnowledgeRequest bool   `json:"is_pure_knowledge_request"`
		UnderstandingLevel     string `json:"understanding_level"`
		ConfidenceLevel        string `json:"confidence_level"`
		EngagementLevel        string `json:"engagement_level"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		logging.Get(logging.CategoryClassification).Warn("unparseable classification: %v", err)
		return types.Classification{}, false
	}

	intent := types.Intent(parsed.UserIntent)
	if !validIntent(intent) {
		return types.Classification{}, false
	}

	return types.Classification{
		UserIntent:             intent,
		IsTechnicalQuestion:    parsed.IsTechnicalQuestion,
		IsPureKnowledgeRequest: parsed.IsPureKnowledgeRequest,
		UnderstandingLevel:     parseLevel(parsed.UnderstandingLevel, types.LevelMedium),
		ConfidenceLevel:        parseConfidence(parsed.ConfidenceLevel),
		EngagementLevel:        parseLevel(parsed.EngagementLevel, types.LevelMedium),
	}, true
}

// evaluationIntent splits the evaluation marker group into its two intents.
func evaluationIntent(lowered string) types.Intent {
	if strings.Contains(lowered, "feedback") {
		return types.IntentFeedbackRequest
	}
	return types.IntentEvaluationRequest
}

// pureKnowledge reports whether the turn is a bare factual request with no
// design reasoning attached.
func pureKnowledge(lowered string) bool {
	return !containsAny(lowered, reasoningConnectives) &&
		!containsAny(lowered, explorationMarkers) &&
		!containsAny(lowered, guidanceMarkers)
}

func understandingLevel(lowered string) types.Level {
	n := 0
	for _, m := range reasoningConnectives {
		if strings.Contains(lowered, m) {
			n++
		}
	}
	switch {
	case n >= 2:
		return types.LevelHigh
	case n == 1:
		return types.LevelMedium
	default:
		return types.LevelLow
	}
}

func confidenceLevel(lowered string) types.ConfidenceLevel {
	if containsAny(lowered, overconfidentMarkers) {
		return types.ConfidenceOverconfident
	}
	if containsAny(lowered, hedgeMarkers) {
		return types.ConfidenceUncertain
	}
	return types.ConfidenceConfident
}

func engagementLevel(input, lowered string) types.Level {
	score := 0
	if len(input) > 120 {
		score++
	}
	if strings.Contains(input, "?") {
		score++
	}
	if containsAny(lowered, reasoningConnectives) {
		score++
	}
	switch {
	case score >= 2:
		return types.LevelHigh
	case score == 1:
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

func validIntent(i types.Intent) bool {
	switch i {
	case types.IntentFirstMessage, types.IntentTopicTransition, types.IntentConfusion,
		types.IntentKnowledgeRequest, types.IntentExampleRequest, types.IntentDesignExploration,
		types.IntentDesignGuidance, types.IntentOverconfident, types.IntentDesignProblem,
		types.IntentTechnicalQuestion, types.IntentEvaluationRequest, types.IntentFeedbackRequest,
		types.IntentImplementation, types.IntentCognitiveOffloading, types.IntentGeneralStatement:
		return true
	}
	return false
}

func parseLevel(s string, fallback types.Level) types.Level {
	switch types.Level(s) {
	case types.LevelLow, types.LevelMedium, types.LevelHigh:
		return types.Level(s)
	}
	return fallback
}

func parseConfidence(s string) types.ConfidenceLevel {
	switch types.ConfidenceLevel(s) {
	case types.ConfidenceUncertain, types.ConfidenceConfident, types.ConfidenceOverconfident:
		return types.ConfidenceLevel(s)
	}
	return types.ConfidenceConfident
}

// extractJSON pulls the first {...} block out of an LLM reply.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
