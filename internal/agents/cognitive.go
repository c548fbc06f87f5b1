package agents

import (
	"context"
	"fmt"
	"strings"

	"atelier/internal/cognition"
	"atelier/internal/llm"
	"atelier/internal/logging"
	"atelier/internal/session"
	"atelier/internal/types"
)

// challengeTemplates hold one fixed challenge per dimension. The LLM
// contextualizes the chosen template to the student's topic; without an LLM
// the template is issued with the topic substituted.
var challengeTemplates = map[types.Dimension]string{
	types.DimDeepThinking:   "Take your current position on %s and argue against it: what is the strongest case that it fails?",
	types.DimOffloadingPrev: "Before asking for more input on %s, write down the decision you would make right now and the one fact that would change it.",
	types.DimScaffolding:    "Connect your last idea about %s to the very first idea you had in this session. What survived, and why?",
	types.DimIntegration:    "Pick two aspects of %s you have treated separately and describe one move that addresses both at once.",
	types.DimProgression:    "Name the one decision about %s you have been deferring, and commit to a testable answer for it.",
	types.DimMetacognition:  "Describe how you reached your current conclusion about %s. Which step are you least certain of?",
}

const cognitiveSystemPrompt = `You are a cognitive coach for architecture students.
Rewrite the given challenge so it speaks directly to the student's current topic and latest message.
Output ONE challenge, phrased as a single question or directive. Under 50 words. Do not answer it.`

// CognitiveEnhancement issues targeted challenges against the student's
// weakest cognitive dimension.
type CognitiveEnhancement struct {
	client llm.LLMClient
	mapper *cognition.Mapper
}

// NewCognitiveEnhancement creates the agent.
func NewCognitiveEnhancement(client llm.LLMClient, mapper *cognition.Mapper) *CognitiveEnhancement {
	if mapper == nil {
		mapper = cognition.NewMapper()
	}
	return &CognitiveEnhancement{client: client, mapper: mapper}
}

// Name implements Agent.
func (a *CognitiveEnhancement) Name() types.AgentName { return types.AgentCognitive }

// Respond implements Agent.
func (a *CognitiveEnhancement) Respond(ctx context.Context, view session.Snapshot, c types.Classification, rd types.RouteDecision, aux Aux) (types.AgentResponse, error) {
	report := aux.Report
	if report == nil {
		r := a.mapper.Compute(aux.Linkograph, view)
		report = &r
	}

	dimension := a.selectDimension(*report, c)
	topic := topicFrom(view)

	logging.Get(logging.CategoryCognitive).Info("Challenging dimension %s", dimension)

	response := types.AgentResponse{
		ResponseType:       "cognitive_challenge",
		AgentName:          types.AgentCognitive,
		EnhancementMetrics: report.Mapping,
		ScientificMetrics:  report.Scores,
		PedagogicalIntent:  fmt.Sprintf("strengthen %s", dimension),
		QualityScore:       0.7,
		ConfidenceScore:    0.7,
	}

	template := fmt.Sprintf(challengeTemplates[dimension], topic)

	if a.client != nil {
		prompt := fmt.Sprintf("Challenge to contextualize: %s\nStudent's latest message: %q\nTopic: %s",
			template, view.LastUserMessage(), topic)
		text, err := a.client.CompleteWithSystem(ctx, cognitiveSystemPrompt, prompt)
		if err == nil && strings.TrimSpace(text) != "" {
			response.ResponseText = strings.TrimSpace(text)
			response.QualityScore = 0.8
			return response, nil
		}
		logging.Get(logging.CategoryCognitive).Warn("challenge contextualization failed, using template: %v", err)
		response.FallbackUsed = true
	}

	response.ResponseText = template
	return response, nil
}

// selectDimension picks the weakest dimension by current/target ratio, with
// classification overrides: overconfidence forces metacognitive awareness,
// uncertainty forces offloading prevention.
func (a *CognitiveEnhancement) selectDimension(report cognition.Report, c types.Classification) types.Dimension {
	switch c.ConfidenceLevel {
	case types.ConfidenceOverconfident:
		return types.DimMetacognition
	case types.ConfidenceUncertain:
		return types.DimOffloadingPrev
	}

	weakest := types.DimDeepThinking
	weakestRatio := 2.0
	for _, d := range types.AllDimensions() {
		target := cognition.Target(d)
		if target <= 0 {
			continue
		}
		ratio := report.Mapping.Get(d) / target
		if ratio < weakestRatio {
			weakest = d
			weakestRatio = ratio
		}
	}
	return weakest
}

// topicFrom extracts a short topic phrase from the latest user message.
func topicFrom(view session.Snapshot) string {
	last := strings.TrimSpace(view.LastUserMessage())
	if last == "" {
		return "your design"
	}
	return truncateWords(strings.TrimRight(last, ".?!"), 8)
}
