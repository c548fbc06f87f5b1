// Package session holds per-conversation mutable state. The orchestrator is
// the single writer; agents and the instrumentation layer receive snapshot
// views. The message log is append-only and the design phase never regresses.
package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"atelier/internal/logging"
	"atelier/internal/types"
)

// TurnRecord is the per-turn audit entry persisted alongside the transcript.
type TurnRecord struct {
	Classification types.Classification   `json:"classification"`
	RouteDecision  types.RouteDecision    `json:"route_decision"`
	AgentsUsed     []types.AgentName      `json:"agents_used"`
	Sources        []string               `json:"sources,omitempty"`
	Metrics        map[string]float64     `json:"metrics,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Extra          map[string]interface{} `json:"extra,omitempty"`
}

// PhaseChange records a phase entry and the user-message count at which it
// happened. The first entry is always ideation at 0.
type PhaseChange struct {
	Phase         types.Phase `json:"phase"`
	AtUserMessage int         `json:"at_user_message"`
}

// State is the process-local record of one conversation.
type State struct {
	mu sync.RWMutex

	ID            string                 `json:"id"`
	Messages      []types.Message        `json:"messages"`
	DesignBrief   string                 `json:"current_design_brief"`
	DesignPhase   types.Phase            `json:"design_phase"`
	SocraticStep  types.SocraticStep     `json:"socratic_step"`
	Profile       types.StudentProfile   `json:"student_profile"`
	Metrics       map[string]float64     `json:"session_metrics"`
	Domain        string                 `json:"domain"`
	Artifacts     []types.VisualArtifact `json:"visual_artifacts,omitempty"`
	LastAgent     types.AgentName        `json:"last_agent,omitempty"`
	NextAgent     types.AgentName        `json:"next_agent,omitempty"`
	AgentContext  map[string]interface{} `json:"agent_context,omitempty"`
	Turns         []TurnRecord           `json:"turns"`
	PhaseEnteredN int                    `json:"phase_entered_n"` // user-message count when the phase was entered
	PhaseLog      []PhaseChange          `json:"phase_log"`
	CreatedAt     time.Time              `json:"created_at"`
}

// New creates a fresh session in ideation.
func New(domain string) *State {
	s := &State{
		ID:           uuid.NewString(),
		DesignPhase:  types.PhaseIdeation,
		SocraticStep: types.StepInitialContext,
		Profile:      types.DefaultProfile(),
		Metrics:      make(map[string]float64),
		Domain:       domain,
		AgentContext: make(map[string]interface{}),
		PhaseLog:     []PhaseChange{{Phase: types.PhaseIdeation, AtUserMessage: 0}},
		CreatedAt:    time.Now(),
	}
	logging.Session("Created session %s (domain=%s)", s.ID, domain)
	return s
}

// AppendUser appends a user message. Empty content is rejected and the state
// is left untouched.
func (s *State) AppendUser(content string) error {
	if content == "" {
		return fmt.Errorf("empty message")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, types.Message{
		Role:      types.RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	})
	return nil
}

// AppendAssistant appends an assistant message with turn metadata.
func (s *State) AppendAssistant(content string, metadata map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, types.Message{
		Role:      types.RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
		Metadata:  metadata,
	})
}

// MessageCount returns the total number of messages.
func (s *State) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Messages)
}

// UserMessageCount returns the number of user messages.
func (s *State) UserMessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.Messages {
		if m.Role == types.RoleUser {
			n++
		}
	}
	return n
}

// AdvancePhase moves the session to phase p if and only if p is strictly
// later than the current phase. Regression attempts are logged and ignored,
// preserving the monotonicity invariant.
func (s *State) AdvancePhase(p types.Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Ordinal() <= s.DesignPhase.Ordinal() {
		if p.Ordinal() < s.DesignPhase.Ordinal() {
			logging.Get(logging.CategorySession).Warn("phase regression rejected: %s -> %s", s.DesignPhase, p)
		}
		return false
	}
	logging.Phase("Session %s phase %s -> %s", s.ID, s.DesignPhase, p)
	s.DesignPhase = p
	s.PhaseEnteredN = s.userMessageCountLocked()
	s.PhaseLog = append(s.PhaseLog, PhaseChange{Phase: p, AtUserMessage: s.PhaseEnteredN})
	return true
}

func (s *State) userMessageCountLocked() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == types.RoleUser {
			n++
		}
	}
	return n
}

// SetSocraticStep records the current socratic sub-step.
func (s *State) SetSocraticStep(step types.SocraticStep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SocraticStep = step
}

// SetBrief stores the current design brief.
func (s *State) SetBrief(brief string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DesignBrief = brief
}

// AddArtifact appends a visual artifact.
func (s *State) AddArtifact(a types.VisualArtifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.Artifacts = append(s.Artifacts, a)
}

// ApplyProfileDelta applies an agent's profile delta. Values are clamped to
// their valid ranges; tag lists are unioned.
func (s *State) ApplyProfileDelta(d *types.ProfileDelta) {
	if d == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.CognitiveLoad != nil {
		s.Profile.CognitiveLoad = types.Clamp01(*d.CognitiveLoad)
	}
	if d.EngagementLevel != nil {
		s.Profile.EngagementLevel = types.Clamp01(*d.EngagementLevel)
	}
	s.Profile.KnowledgeGaps = unionTags(s.Profile.KnowledgeGaps, d.KnowledgeGaps)
	s.Profile.Strengths = unionTags(s.Profile.Strengths, d.Strengths)
}

// SetProfile replaces the student profile (classifier updates).
func (s *State) SetProfile(p types.StudentProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Profile = p
}

// UpdateMetrics merges m into the session metrics map.
func (s *State) UpdateMetrics(m map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range m {
		s.Metrics[k] = v
	}
}

// RecordTurn appends a per-turn audit record.
func (s *State) RecordTurn(r TurnRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	s.Turns = append(s.Turns, r)
}

func unionTags(existing, added []string) []string {
	if len(added) == 0 {
		return existing
	}
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[t] = true
	}
	for _, t := range added {
		if !seen[t] {
			existing = append(existing, t)
			seen[t] = true
		}
	}
	return existing
}

// =============================================================================
// SNAPSHOT VIEW
// =============================================================================

// Snapshot is an immutable view of session state handed to agents. Slices are
// copies; mutating a snapshot never affects the session.
type Snapshot struct {
	ID            string
	Messages      []types.Message
	DesignBrief   string
	DesignPhase   types.Phase
	SocraticStep  types.SocraticStep
	Profile       types.StudentProfile
	Metrics       map[string]float64
	Domain        string
	UserMessages  int
	PhaseEnteredN int
	PhaseLog      []PhaseChange
	ArtifactCount int
	LastAgent     types.AgentName
}

// Snapshot captures the current state for read-only consumers.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]types.Message, len(s.Messages))
	copy(messages, s.Messages)

	metrics := make(map[string]float64, len(s.Metrics))
	for k, v := range s.Metrics {
		metrics[k] = v
	}

	phaseLog := make([]PhaseChange, len(s.PhaseLog))
	copy(phaseLog, s.PhaseLog)

	return Snapshot{
		ID:            s.ID,
		Messages:      messages,
		DesignBrief:   s.DesignBrief,
		DesignPhase:   s.DesignPhase,
		SocraticStep:  s.SocraticStep,
		Profile:       s.Profile,
		Metrics:       metrics,
		Domain:        s.Domain,
		UserMessages:  s.userMessageCountLocked(),
		PhaseEnteredN: s.PhaseEnteredN,
		PhaseLog:      phaseLog,
		ArtifactCount: len(s.Artifacts),
		LastAgent:     s.LastAgent,
	}
}

// RecentMessages returns up to k trailing messages from the snapshot.
func (v Snapshot) RecentMessages(k int) []types.Message {
	if k <= 0 || len(v.Messages) == 0 {
		return nil
	}
	if k > len(v.Messages) {
		k = len(v.Messages)
	}
	return v.Messages[len(v.Messages)-k:]
}

// LastUserMessage returns the content of the most recent user message.
func (v Snapshot) LastUserMessage() string {
	for i := len(v.Messages) - 1; i >= 0; i-- {
		if v.Messages[i].Role == types.RoleUser {
			return v.Messages[i].Content
		}
	}
	return ""
}

// PhaseAt returns the phase the n-th user message (1-indexed) was made in.
// A message made on the turn a phase was entered belongs to the new phase.
func (v Snapshot) PhaseAt(n int) types.Phase {
	phase := types.PhaseIdeation
	for _, ch := range v.PhaseLog {
		if ch.AtUserMessage <= n {
			phase = ch.Phase
		}
	}
	return phase
}

// UserContents returns all user message contents in order.
func (v Snapshot) UserContents() []string {
	out := make([]string, 0, len(v.Messages))
	for _, m := range v.Messages {
		if m.Role == types.RoleUser {
			out = append(out, m.Content)
		}
	}
	return out
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// Serialize renders the full session state as JSON.
func (s *State) Serialize() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type alias State // drop the mutex and methods
	return json.MarshalIndent((*alias)(s), "", "  ")
}

// Deserialize reconstructs a session state from JSON produced by Serialize.
func Deserialize(data []byte) (*State, error) {
	type alias State
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse session state: %w", err)
	}
	s := (*State)(&a)
	if s.Metrics == nil {
		s.Metrics = make(map[string]float64)
	}
	if s.AgentContext == nil {
		s.AgentContext = make(map[string]interface{})
	}
	if s.DesignPhase == "" {
		s.DesignPhase = types.PhaseIdeation
	}
	if len(s.PhaseLog) == 0 {
		s.PhaseLog = []PhaseChange{{Phase: types.PhaseIdeation, AtUserMessage: 0}}
	}
	return s, nil
}
