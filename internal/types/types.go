// Package types provides shared type definitions used across atelier packages.
// This package exists to break import cycles between the orchestrator, agents,
// and the instrumentation layer. Types here are foundational data structures
// with no dependencies beyond the standard library.
package types

import (
	"time"
)

// =============================================================================
// CONVERSATION TYPES
// =============================================================================

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry in the ordered, append-only session log.
type Message struct {
	Role      Role                   `json:"role"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// =============================================================================
// STUDENT PROFILE
// =============================================================================

// SkillLevel describes the student's design skill.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillExpert       SkillLevel = "expert"
)

// StudentProfile tracks the evolving picture of the student.
// Mutated only by the classifier and by post-turn profile deltas from agents,
// applied by the orchestrator.
type StudentProfile struct {
	SkillLevel      SkillLevel `json:"skill_level"`
	LearningStyle   string     `json:"learning_style"`
	CognitiveLoad   float64    `json:"cognitive_load"`   // [0,1]
	EngagementLevel float64    `json:"engagement_level"` // [0,1]
	KnowledgeGaps   []string   `json:"knowledge_gaps"`
	Strengths       []string   `json:"strengths"`
}

// DefaultProfile returns the profile a fresh session starts with.
func DefaultProfile() StudentProfile {
	return StudentProfile{
		SkillLevel:      SkillIntermediate,
		CognitiveLoad:   0.5,
		EngagementLevel: 0.5,
	}
}

// VisualArtifact is an uploaded sketch or image, append-only per session.
type VisualArtifact struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	ImagePath  string                 `json:"image_path,omitempty"`
	ImageBytes []byte                 `json:"image_bytes,omitempty"`
	Analysis   map[string]interface{} `json:"analysis,omitempty"`
}

// =============================================================================
// DESIGN PHASES
// =============================================================================

// Phase is a coarse stage of the design process. Phases are ordered and a
// session's phase never regresses.
type Phase string

const (
	PhaseIdeation        Phase = "ideation"
	PhaseVisualization   Phase = "visualization"
	PhaseMaterialization Phase = "materialization"
)

// Ordinal returns the position of the phase in the progression, for
// monotonicity checks. Unknown phases sort before ideation.
func (p Phase) Ordinal() int {
	switch p {
	case PhaseIdeation:
		return 1
	case PhaseVisualization:
		return 2
	case PhaseMaterialization:
		return 3
	default:
		return 0
	}
}

// Next returns the following phase, or the same phase at the end of the
// progression.
func (p Phase) Next() Phase {
	switch p {
	case PhaseIdeation:
		return PhaseVisualization
	case PhaseVisualization:
		return PhaseMaterialization
	default:
		return p
	}
}

// SocraticStep is one of four progressive questioning modes within a phase.
type SocraticStep string

const (
	StepInitialContext     SocraticStep = "initial_context_reasoning"
	StepKnowledgeSynthesis SocraticStep = "knowledge_synthesis_trigger"
	StepSocraticQuestion   SocraticStep = "socratic_questioning"
	StepMetacognitive      SocraticStep = "metacognitive_prompt"
)

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Intent is the closed enum of recognized user intents.
type Intent string

const (
	IntentFirstMessage        Intent = "first_message"
	IntentTopicTransition     Intent = "topic_transition"
	IntentConfusion           Intent = "confusion_expression"
	IntentKnowledgeRequest    Intent = "knowledge_request"
	IntentExampleRequest      Intent = "example_request"
	IntentDesignExploration   Intent = "design_exploration"
	IntentDesignGuidance      Intent = "design_guidance"
	IntentOverconfident       Intent = "overconfident_statement"
	IntentDesignProblem       Intent = "design_problem"
	IntentTechnicalQuestion   Intent = "technical_question"
	IntentEvaluationRequest   Intent = "evaluation_request"
	IntentFeedbackRequest     Intent = "feedback_request"
	IntentImplementation      Intent = "implementation_request"
	IntentCognitiveOffloading Intent = "cognitive_offloading"
	IntentGeneralStatement    Intent = "general_statement"
)

// Level is a coarse low/medium/high scale.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// ConfidenceLevel describes how the student holds their position.
type ConfidenceLevel string

const (
	ConfidenceUncertain     ConfidenceLevel = "uncertain"
	ConfidenceConfident     ConfidenceLevel = "confident"
	ConfidenceOverconfident ConfidenceLevel = "overconfident"
)

// Classification is the structured read of a single user turn.
// Immutable once produced. All booleans are total: the classifier always
// populates them, never leaves them implicit.
type Classification struct {
	UserIntent             Intent          `json:"user_intent"`
	IsFirstMessage         bool            `json:"is_first_message"`
	IsTechnicalQuestion    bool            `json:"is_technical_question"`
	IsPureKnowledgeRequest bool            `json:"is_pure_knowledge_request"`
	OffloadingDetected     bool            `json:"cognitive_offloading_detected"`
	UnderstandingLevel     Level           `json:"understanding_level"`
	ConfidenceLevel        ConfidenceLevel `json:"confidence_level"`
	EngagementLevel        Level           `json:"engagement_level"`
	LLMUsed                bool            `json:"llm_used"`
}

// =============================================================================
// ROUTING
// =============================================================================

// Route is the closed enum of interaction routes.
type Route string

const (
	RouteProgressiveOpening    Route = "progressive_opening"
	RouteTopicTransition       Route = "topic_transition"
	RouteKnowledgeOnly         Route = "knowledge_only"
	RouteSocraticExploration   Route = "socratic_exploration"
	RouteCognitiveChallenge    Route = "cognitive_challenge"
	RouteMultiAgent            Route = "multi_agent_comprehensive"
	RouteSocraticClarification Route = "socratic_clarification"
	RouteSupportiveScaffolding Route = "supportive_scaffolding"
	RouteFoundationalBuilding  Route = "foundational_building"
	RouteKnowledgeChallenge    Route = "knowledge_with_challenge"
	RouteBalancedGuidance      Route = "balanced_guidance"
	RouteDesignGuidance        Route = "design_guidance"
	RouteCognitiveIntervention Route = "cognitive_intervention"
	RouteError                 Route = "error"
)

// AgentName identifies one of the capability-bearing responders.
type AgentName string

const (
	AgentSocratic  AgentName = "socratic_tutor"
	AgentExpert    AgentName = "domain_expert"
	AgentCognitive AgentName = "cognitive_enhancement"
	AgentAnalysis  AgentName = "analysis_agent"
)

// RouteDecision is the derived, immutable routing result for one turn.
type RouteDecision struct {
	Route    Route                  `json:"route"`
	Reason   string                 `json:"reason"`
	Agents   []AgentName            `json:"agents"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// =============================================================================
// COGNITIVE DIMENSIONS
// =============================================================================

// Dimension names one of the six cognitive-engagement dimensions.
type Dimension string

const (
	DimDeepThinking   Dimension = "deep_thinking_engagement"
	DimOffloadingPrev Dimension = "cognitive_offloading_prevention"
	DimScaffolding    Dimension = "scaffolding_effectiveness"
	DimIntegration    Dimension = "knowledge_integration"
	DimProgression    Dimension = "learning_progression"
	DimMetacognition  Dimension = "metacognitive_awareness"
)

// AllDimensions lists the six dimensions in canonical order.
func AllDimensions() []Dimension {
	return []Dimension{
		DimDeepThinking,
		DimOffloadingPrev,
		DimScaffolding,
		DimIntegration,
		DimProgression,
		DimMetacognition,
	}
}

// CognitiveMapping holds a score in [0,1] per dimension. A missing dimension
// reads as 0.5.
type CognitiveMapping map[Dimension]float64

// Get returns the score for a dimension, defaulting to 0.5 when absent.
func (m CognitiveMapping) Get(d Dimension) float64 {
	if m == nil {
		return 0.5
	}
	if v, ok := m[d]; ok {
		return v
	}
	return 0.5
}

// Clamp forces every score into [0,1] in place.
func (m CognitiveMapping) Clamp() {
	for d, v := range m {
		if v < 0 {
			m[d] = 0
		} else if v > 1 {
			m[d] = 1
		}
	}
}

// DimensionScore carries the baseline/target/current triple for one dimension.
type DimensionScore struct {
	Dimension          Dimension `json:"dimension"`
	Baseline           float64   `json:"baseline"`
	Target             float64   `json:"target"`
	Current            float64   `json:"current"`
	ImprovementPercent float64   `json:"improvement_percentage"`
}

// =============================================================================
// AGENT RESPONSES
// =============================================================================

// ProfileDelta is an immutable change request an agent may return instead of
// mutating session state directly. The orchestrator applies deltas in a
// defined order after the turn's agents have all completed.
type ProfileDelta struct {
	CognitiveLoad   *float64 `json:"cognitive_load,omitempty"`
	EngagementLevel *float64 `json:"engagement_level,omitempty"`
	KnowledgeGaps   []string `json:"knowledge_gaps,omitempty"`
	Strengths       []string `json:"strengths,omitempty"`
}

// AgentResponse is the uniform result of one agent's contribution to a turn.
type AgentResponse struct {
	ResponseText       string           `json:"response_text"`
	ResponseType       string           `json:"response_type"`
	CognitiveFlags     []string         `json:"cognitive_flags,omitempty"`
	EnhancementMetrics CognitiveMapping `json:"enhancement_metrics,omitempty"`
	ScientificMetrics  []DimensionScore `json:"scientific_metrics,omitempty"`
	ProgressUpdate     *ProfileDelta    `json:"progress_update,omitempty"`
	JourneyAlignment   string           `json:"journey_alignment,omitempty"`
	QualityScore       float64          `json:"quality_score"`
	ConfidenceScore    float64          `json:"confidence_score"`
	AgentName          AgentName        `json:"agent_name"`
	SourcesUsed        []string         `json:"sources_used,omitempty"`
	PedagogicalIntent  string           `json:"pedagogical_intent,omitempty"`
	ErrorMessage       string           `json:"error_message,omitempty"`
	FallbackUsed       bool             `json:"fallback_used"`
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationResult is the question validator's verdict on a user turn.
type ValidationResult struct {
	IsAppropriate     bool    `json:"is_appropriate"`
	IsOnTopic         bool    `json:"is_on_topic"`
	Confidence        float64 `json:"confidence"`
	Reason            string  `json:"reason"`
	SuggestedResponse string  `json:"suggested_response,omitempty"`
}

// Clamp01 limits v to the [0,1] interval.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
