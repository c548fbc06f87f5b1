package agents

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"atelier/internal/cache"
	"atelier/internal/knowledge"
	"atelier/internal/llm"
	"atelier/internal/logging"
	"atelier/internal/session"
	"atelier/internal/types"
)

// Retriever is the read-only slice of the knowledge collection the expert
// needs. *knowledge.Store satisfies it.
type Retriever interface {
	Search(ctx context.Context, query string, nResults int, minSimilarity float64) ([]knowledge.SearchResult, error)
}

const expertSystemPrompt = `You are a domain expert in architecture supporting a design student.
Answer the student's question grounded ONLY in the provided reference passages.
Cite passages inline as [source-id]. Be concrete and brief (under 120 words).
If the passages do not cover the question, say what is known and what is not.`

// DomainExpert answers knowledge questions grounded in retrieved passages.
type DomainExpert struct {
	client        llm.LLMClient
	retriever     Retriever
	topK          int
	minSimilarity float64

	mu         sync.Mutex
	queryCache *cache.LRU[string, []knowledge.SearchResult]
}

// NewDomainExpert creates the expert. retriever may be nil (no knowledge
// collection configured); answers are then explicitly ungrounded.
func NewDomainExpert(client llm.LLMClient, retriever Retriever, topK int, minSimilarity float64, cacheCapacity int) *DomainExpert {
	if topK <= 0 {
		topK = 5
	}
	if minSimilarity <= 0 {
		minSimilarity = 0.3
	}
	return &DomainExpert{
		client:        client,
		retriever:     retriever,
		topK:          topK,
		minSimilarity: minSimilarity,
		queryCache:    cache.NewLRU[string, []knowledge.SearchResult](cacheCapacity),
	}
}

// Name implements Agent.
func (a *DomainExpert) Name() types.AgentName { return types.AgentExpert }

// Respond implements Agent.
func (a *DomainExpert) Respond(ctx context.Context, view session.Snapshot, c types.Classification, rd types.RouteDecision, aux Aux) (types.AgentResponse, error) {
	query := view.LastUserMessage()

	response := types.AgentResponse{
		ResponseType:    "knowledge",
		AgentName:       types.AgentExpert,
		QualityScore:    0.75,
		ConfidenceScore: 0.75,
	}

	passages := a.retrieve(ctx, query)
	if len(passages) == 0 {
		return a.ungrounded(ctx, query, response)
	}

	for _, p := range passages {
		response.SourcesUsed = append(response.SourcesUsed, p.ID)
	}

	if a.client != nil {
		text, err := a.client.CompleteWithSystem(ctx, expertSystemPrompt, renderQuery(query, passages))
		if err == nil && strings.TrimSpace(text) != "" {
			response.ResponseText = strings.TrimSpace(text)
			response.QualityScore = 0.85
			response.ConfidenceScore = 0.8
			return response, nil
		}
		logging.Get(logging.CategoryExpert).Warn("grounded answer generation failed: %v", err)
	}

	// Template composition from the retrieved passages.
	var sb strings.Builder
	sb.WriteString("From the reference material:\n")
	for _, p := range passages {
		fmt.Fprintf(&sb, "- %s [%s]\n", truncateWords(p.Content, 40), p.ID)
	}
	response.ResponseText = sb.String()
	response.FallbackUsed = a.client != nil
	return response, nil
}

// retrieve runs the cached knowledge search. Errors degrade to no passages.
func (a *DomainExpert) retrieve(ctx context.Context, query string) []knowledge.SearchResult {
	if a.retriever == nil {
		return nil
	}

	key := strings.ToLower(strings.TrimSpace(query))
	a.mu.Lock()
	cached, ok := a.queryCache.Get(key)
	a.mu.Unlock()
	if ok {
		return cached
	}

	results, err := a.retriever.Search(ctx, query, a.topK, a.minSimilarity)
	if err != nil {
		logging.Get(logging.CategoryExpert).Warn("knowledge search failed: %v", err)
		return nil
	}

	a.mu.Lock()
	a.queryCache.Put(key, results)
	a.mu.Unlock()

	logging.Get(logging.CategoryExpert).Info("Retrieved %d passages for %q", len(results), truncateWords(query, 10))
	return results
}

// ungrounded handles the no-passages case: either a clarifying question for a
// vague query, or an explicitly marked ungrounded answer for a specific one.
func (a *DomainExpert) ungrounded(ctx context.Context, query string, response types.AgentResponse) (types.AgentResponse, error) {
	response.FallbackUsed = true
	response.QualityScore = 0.5
	response.ConfidenceScore = 0.45

	if len(strings.Fields(query)) < 6 {
		response.ResponseText = fmt.Sprintf(
			"I don't have reference material matching %q. Can you say more precisely what you need: a standard, a precedent, or a rule of thumb?",
			truncateWords(query, 12))
		response.ResponseType = "clarification"
		return response, nil
	}

	if a.client != nil {
		text, err := a.client.CompleteWithSystem(ctx,
			"You are an architecture domain expert. Answer briefly from general knowledge and say explicitly that this is not grounded in the reference library.",
			query)
		if err == nil && strings.TrimSpace(text) != "" {
			response.ResponseText = strings.TrimSpace(text)
			return response, nil
		}
		logging.Get(logging.CategoryExpert).Warn("ungrounded answer generation failed: %v", err)
	}

	response.ResponseText = fmt.Sprintf(
		"I don't have reference material for %q, so take this as general orientation only: start from the governing code or a canonical precedent for this topic, then verify against your project's constraints.",
		truncateWords(query, 12))
	return response, nil
}

func renderQuery(query string, passages []knowledge.SearchResult) string {
	var sb strings.Builder
	sb.WriteString("Reference passages:\n")
	for _, p := range passages {
		fmt.Fprintf(&sb, "[%s] (similarity %.2f) %s\n", p.ID, p.Similarity, p.Content)
	}
	fmt.Fprintf(&sb, "\nStudent's question: %s", query)
	return sb.String()
}
