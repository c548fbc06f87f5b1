// Package validation gates each user turn before routing. Cheap deterministic
// checks run first (block patterns, then domain vocabulary); only ambiguous
// turns reach the LLM, whose verdicts are cached for the session. The
// validator fails open so the tutor keeps working offline.
package validation

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"atelier/internal/cache"
	"atelier/internal/llm"
	"atelier/internal/logging"
	"atelier/internal/types"
)

// blockPatterns are substrings that mark a turn as inappropriate regardless
// of context: prompt manipulation, explicit content, injection attempts.
var blockPatterns = []string{
	"ignore your instructions",
	"ignore previous instructions",
	"ignore all previous",
	"disregard your system prompt",
	"you are now",
	"pretend you are",
	"act as if you have no",
	"jailbreak",
	"developer mode",
	"repeat your system prompt",
	"reveal your prompt",
	"nsfw",
	"explicit sexual",
	"how to make a bomb",
	"how to make explosives",
}

// redirections are rotated when a blocked turn needs a reply.
var redirections = []string{
	"Let's keep our focus on your design work. What part of your project would you like to develop next?",
	"I'd rather stay with your architectural thinking. What question about your design is on your mind?",
	"That's outside what we're here for. Tell me where your design stands right now and we'll pick it up from there.",
}

// domainKeywords is the curated architecture vocabulary for the on-topic
// short-circuit.
var domainKeywords = []string{
	"design", "building", "space", "spatial", "site", "plan", "section",
	"elevation", "facade", "form", "massing", "program", "circulation",
	"structure", "structural", "material", "concrete", "timber", "steel",
	"glass", "brick", "light", "daylight", "shadow", "scale", "proportion",
	"context", "urban", "landscape", "courtyard", "entrance", "lobby",
	"threshold", "sketch", "model", "diagram", "layout", "zoning",
	"accessibility", "ada", "egress", "sustainability", "ventilation",
	"orientation", "envelope", "detail", "construction", "tectonic",
	"community", "dwelling", "housing", "pavilion", "museum", "library",
	"studio", "precedent", "typology", "architect", "architecture",
	"architectural", "room", "floor", "roof", "wall", "window", "ramp",
	"stair", "atrium", "void", "axis", "grid", "module",
}

const llmVerdictPrompt = `You review one student message from an architectural design tutoring session.
Decide whether it is appropriate and whether it relates to architecture, design, or the student's project.
Reply with ONLY a JSON object:
{"is_appropriate": bool, "is_on_topic": bool, "confidence": number 0-1, "reason": "short explanation"}`

// Validator is the per-session question gate.
type Validator struct {
	client llm.LLMClient
	mu     sync.Mutex
	cache  *cache.LRU[string, types.ValidationResult]
	rng    *rand.Rand
}

// New creates a validator. A nil client keeps the validator in
// deterministic-only mode; ambiguous turns then pass with mid confidence.
func New(client llm.LLMClient, cacheCapacity int, seed int64) *Validator {
	return &Validator{
		client: client,
		cache:  cache.NewLRU[string, types.ValidationResult](cacheCapacity),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Validate decides whether input is appropriate and on-topic.
func (v *Validator) Validate(ctx context.Context, input string, recent []types.Message) types.ValidationResult {
	lowered := strings.ToLower(strings.TrimSpace(input))
	if lowered == "" {
		return types.ValidationResult{
			IsAppropriate: false,
			IsOnTopic:     false,
			Confidence:    1.0,
			Reason:        "empty message",
		}
	}

	for _, pattern := range blockPatterns {
		if strings.Contains(lowered, pattern) {
			logging.Validation("Blocked turn (pattern %q)", pattern)
			return types.ValidationResult{
				IsAppropriate:     false,
				IsOnTopic:         false,
				Confidence:        0.95,
				Reason:            "matched block pattern",
				SuggestedResponse: v.pickRedirection(),
			}
		}
	}

	if n := countDomainKeywords(lowered); n >= 2 {
		logging.Validation("On-topic short-circuit (%d domain tokens)", n)
		return types.ValidationResult{
			IsAppropriate: true,
			IsOnTopic:     true,
			Confidence:    0.8,
			Reason:        fmt.Sprintf("%d domain keywords present", n),
		}
	}

	key := hashInput(lowered)
	v.mu.Lock()
	cached, ok := v.cache.Get(key)
	v.mu.Unlock()
	if ok {
		logging.Validation("Verdict cache hit")
		return cached
	}

	result := v.llmVerdict(ctx, input, recent)

	v.mu.Lock()
	v.cache.Put(key, result)
	v.mu.Unlock()

	return result
}

// llmVerdict asks the LLM for a judgment, failing open on any error.
func (v *Validator) llmVerdict(ctx context.Context, input string, recent []types.Message) types.ValidationResult {
	failOpen := types.ValidationResult{
		IsAppropriate: true,
		IsOnTopic:     true,
		Confidence:    0.5,
		Reason:        "validator unavailable, passing turn through",
	}

	if v.client == nil {
		return failOpen
	}

	var sb strings.Builder
	for _, m := range recent {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&sb, "Message to review: %s", input)

	raw, err := v.client.CompleteWithSystem(ctx, llmVerdictPrompt, sb.String())
	if err != nil {
		logging.Get(logging.CategoryValidation).Warn("LLM verdict failed, failing open: %v", err)
		return failOpen
	}

	var verdict struct {
		IsAppropriate bool    `json:"is_appropriate"`
		IsOnTopic     bool    `json:"is_on_topic"`
		Confidence    float64 `json:"confidence"`
		Reason        string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &verdict); err != nil {
		logging.Get(logging.CategoryValidation).Warn("unparseable verdict, failing open: %v", err)
		return failOpen
	}

	result := types.ValidationResult{
		IsAppropriate: verdict.IsAppropriate,
		IsOnTopic:     verdict.IsOnTopic,
		Confidence:    types.Clamp01(verdict.Confidence),
		Reason:        verdict.Reason,
	}
	if !result.IsAppropriate || !result.IsOnTopic {
		result.SuggestedResponse = v.pickRedirection()
	}
	return result
}

func (v *Validator) pickRedirection() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return redirections[v.rng.Intn(len(redirections))]
}

func countDomainKeywords(lowered string) int {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(lowered, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		words[w] = true
	}

	n := 0
	for _, kw := range domainKeywords {
		if words[kw] {
			n++
		}
	}
	return n
}

func hashInput(lowered string) string {
	sum := sha1.Sum([]byte(lowered))
	return fmt.Sprintf("%x", sum)
}

// extractJSON pulls the first {...} block out of an LLM reply that may be
// wrapped in prose or code fences.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
