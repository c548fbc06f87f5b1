package llm

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// LimitedClient wraps an LLMClient with a process-wide admission limit.
// At most maxInFlight calls run concurrently; additional callers block until
// a slot frees or their context is cancelled.
type LimitedClient struct {
	inner LLMClient
	sem   *semaphore.Weighted
}

// NewLimitedClient wraps inner with a bounded-concurrency admission gate.
func NewLimitedClient(inner LLMClient, maxInFlight int) *LimitedClient {
	if maxInFlight <= 0 {
		maxInFlight = 8
	}
	return &LimitedClient{
		inner: inner,
		sem:   semaphore.NewWeighted(int64(maxInFlight)),
	}
}

// Complete acquires a slot then delegates to the wrapped client.
func (c *LimitedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem acquires a slot then delegates to the wrapped client.
func (c *LimitedClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("admission cancelled: %w", err)
	}
	defer c.sem.Release(1)

	return c.inner.CompleteWithSystem(ctx, systemPrompt, userPrompt)
}
