package analysis

import "sync"

type AgentStatus string

const (
	StatusWaiting    AgentStatus = "waiting"
	StatusProcessing AgentStatus = "processing"
	StatusComplete   AgentStatus = "complete"
	StatusFailed     AgentStatus = "failed"
)

// Progress values reported while a category runs.
const (
	progressStarted  = 20
	progressFinished = 100
)

// AgentState is the progress of one category's agent.
type AgentState struct {
	Status   AgentStatus `json:"status"`
	Progress int         `json:"progress"`
}

// ProgressFunc is called after every agent state change.
type ProgressFunc func(c Category, state AgentState)

// Tracker holds the agent states of one session.
type Tracker struct {
	mu     sync.RWMutex
	agents map[string]AgentState
}

func NewTracker() *Tracker {
	t := &Tracker{}
	t.Reset()
	return t
}

// Reset puts every agent back to waiting with zero progress.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.agents = make(map[string]AgentState, len(AllCategories))
	for _, c := range AllCategories {
		t.agents[c.AgentKey()] = AgentState{Status: StatusWaiting}
	}
}

func (t *Tracker) Set(c Category, status AgentStatus, progress int) AgentState {
	state := AgentState{Status: status, Progress: progress}
	t.mu.Lock()
	t.agents[c.AgentKey()] = state
	t.mu.Unlock()
	return state
}

func (t *Tracker) Get(c Category) AgentState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.agents[c.AgentKey()]
}

// Snapshot returns a copy keyed by agent name ("vision", "ux", "market").
func (t *Tracker) Snapshot() map[string]AgentState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]AgentState, len(t.agents))
	for k, v := range t.agents {
		out[k] = v
	}
	return out
}
