// Package synthesis merges the turn's agent responses into the single reply
// the student sees. Single-agent routes pass through; multi-agent routes
// follow a fixed Insight/Watch/Direction template. The merge order is
// deterministic (sorted by agent name) so equal inputs produce equal output.
package synthesis

import (
	"sort"
	"strings"

	"atelier/internal/logging"
	"atelier/internal/types"
)

// Synthesizer merges agent responses under a soft word budget.
type Synthesizer struct {
	wordBudget int
}

// New creates a synthesizer. The budget bounds the emitted response length;
// non-positive values select the 220-word default.
func New(wordBudget int) *Synthesizer {
	if wordBudget <= 0 {
		wordBudget = 220
	}
	return &Synthesizer{wordBudget: wordBudget}
}

// Synthesize produces the final response for a turn. Responses with no text
// are treated as absent; if everything is absent the result is a safe apology
// with fallback_used set.
func (s *Synthesizer) Synthesize(responses []types.AgentResponse, rd types.RouteDecision) types.AgentResponse {
	usable := make([]types.AgentResponse, 0, len(responses))
	for _, r := range responses {
		if strings.TrimSpace(r.ResponseText) != "" {
			usable = append(usable, r)
		}
	}
	sort.Slice(usable, func(i, j int) bool { return usable[i].AgentName < usable[j].AgentName })

	if len(usable) == 0 {
		return types.AgentResponse{
			ResponseText:    "I ran into trouble putting a response together. Could you tell me a bit more about where your design stands right now?",
			ResponseType:    "fallback",
			AgentName:       "synthesizer",
			QualityScore:    0.3,
			ConfidenceScore: 0.3,
			FallbackUsed:    true,
			ErrorMessage:    "no agent produced output",
		}
	}

	merged := s.merge(usable, rd)

	if len(usable) == 1 {
		merged.ResponseText = usable[0].ResponseText
	} else {
		merged.ResponseText = s.compose(usable)
	}
	merged.ResponseText = s.enforceBudget(merged.ResponseText)

	logging.Synthesis("Synthesized %d responses (route %s, %d words)",
		len(usable), rd.Route, len(strings.Fields(merged.ResponseText)))
	return merged
}

// merge folds scores, flags, sources, and metrics across contributors.
// Quality and confidence are arithmetic means; flags and sources are sorted
// unions; enhancement metrics are per-dimension means over the agents that
// reported them.
func (s *Synthesizer) merge(usable []types.AgentResponse, rd types.RouteDecision) types.AgentResponse {
	merged := types.AgentResponse{
		ResponseType: "synthesis",
		AgentName:    "synthesizer",
	}
	if len(usable) == 1 {
		merged.ResponseType = usable[0].ResponseType
		merged.AgentName = usable[0].AgentName
		merged.PedagogicalIntent = usable[0].PedagogicalIntent
	}

	flagSet := make(map[string]bool)
	sourceSet := make(map[string]bool)
	metricSums := make(types.CognitiveMapping)
	metricCounts := make(map[types.Dimension]int)
	fallback := false

	var qualitySum, confidenceSum float64
	for _, r := range usable {
		qualitySum += r.QualityScore
		confidenceSum += r.ConfidenceScore
		fallback = fallback || r.FallbackUsed
		for _, f := range r.CognitiveFlags {
			flagSet[f] = true
		}
		for _, src := range r.SourcesUsed {
			sourceSet[src] = true
		}
		for d, v := range r.EnhancementMetrics {
			metricSums[d] += v
			metricCounts[d]++
		}
	}

	merged.QualityScore = qualitySum / float64(len(usable))
	merged.ConfidenceScore = confidenceSum / float64(len(usable))
	merged.FallbackUsed = fallback
	merged.CognitiveFlags = sortedKeys(flagSet)
	merged.SourcesUsed = sortedKeys(sourceSet)

	if len(metricSums) > 0 {
		merged.EnhancementMetrics = make(types.CognitiveMapping, len(metricSums))
		for d, sum := range metricSums {
			merged.EnhancementMetrics[d] = sum / float64(metricCounts[d])
		}
	}

	return merged
}

// compose renders the multi-agent template. The domain expert provides the
// Insight, the analysis agent the Watch, and the socratic tutor (or, absent
// that, the cognitive agent) the Direction question.
func (s *Synthesizer) compose(usable []types.AgentResponse) string {
	byName := make(map[types.AgentName]types.AgentResponse, len(usable))
	for _, r := range usable {
		byName[r.AgentName] = r
	}

	sectionBudget := s.wordBudget / 3
	var lines []string

	if r, ok := byName[types.AgentExpert]; ok {
		lines = append(lines, "Insight: "+truncateSentences(r.ResponseText, sectionBudget))
	}
	if r, ok := byName[types.AgentAnalysis]; ok {
		lines = append(lines, "Watch: "+truncateSentences(r.ResponseText, sectionBudget))
	}
	if r, ok := byName[types.AgentSocratic]; ok {
		lines = append(lines, "Direction: "+truncateSentences(r.ResponseText, sectionBudget))
	} else if r, ok := byName[types.AgentCognitive]; ok {
		lines = append(lines, "Direction: "+truncateSentences(r.ResponseText, sectionBudget))
	}

	// Contributors outside the template roles (unexpected but possible when
	// routes change) are appended in merge order.
	if len(lines) == 0 {
		for _, r := range usable {
			lines = append(lines, r.ResponseText)
		}
	}

	return strings.Join(lines, "\n\n")
}

// enforceBudget compresses over-long drafts, preferring sentence boundaries.
func (s *Synthesizer) enforceBudget(text string) string {
	if len(strings.Fields(text)) <= s.wordBudget {
		return text
	}
	return truncateSentences(text, s.wordBudget)
}

// truncateSentences keeps whole sentences while they fit within the word
// limit; if even the first sentence is too long it is cut at the word limit.
func truncateSentences(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	sentences := splitSentences(text)
	var out []string
	used := 0
	for _, sentence := range sentences {
		n := len(strings.Fields(sentence))
		if used+n > limit {
			break
		}
		out = append(out, sentence)
		used += n
	}
	if len(out) == 0 {
		words := strings.Fields(text)
		if len(words) > limit {
			words = words[:limit]
		}
		return strings.Join(words, " ") + "..."
	}
	return strings.Join(out, " ")
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '?' || r == '!' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Apology builds the error-route response used when a turn fails entirely.
func Apology(reason string) types.AgentResponse {
	return types.AgentResponse{
		ResponseText:    "I'm sorry, I couldn't process that properly. Let's pick it back up: what part of your design are you working on right now?",
		ResponseType:    "error",
		AgentName:       "synthesizer",
		QualityScore:    0.2,
		ConfidenceScore: 0.2,
		FallbackUsed:    true,
		ErrorMessage:    reason,
	}
}
