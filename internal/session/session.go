// Package session keeps per-browser dashboard state in memory.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raine/ai-design-team/internal/analysis"
	"github.com/rs/zerolog/log"
)

// State is the dashboard context of one browser session.
type State struct {
	ID     string
	Agents *analysis.Tracker

	mu            sync.Mutex
	apiKey        string
	categories    []analysis.Category
	focusAreas    []analysis.FocusArea
	designContext string
	lastReport    *analysis.Report
	lastSeen      time.Time

	// Held for the duration of an analysis run.
	runMu sync.Mutex
}

func newState(id string, now time.Time) *State {
	return &State{
		ID:         id,
		Agents:     analysis.NewTracker(),
		categories: append([]analysis.Category(nil), analysis.DefaultCategories...),
		focusAreas: append([]analysis.FocusArea(nil), analysis.DefaultFocusAreas...),
		lastSeen:   now,
	}
}

func (s *State) APIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiKey
}

func (s *State) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
}

// Selection holds the form choices last submitted by the session.
type Selection struct {
	Categories []analysis.Category
	FocusAreas []analysis.FocusArea
	Context    string
}

func (s *State) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Selection{
		Categories: append([]analysis.Category(nil), s.categories...),
		FocusAreas: append([]analysis.FocusArea(nil), s.focusAreas...),
		Context:    s.designContext,
	}
}

func (s *State) SetSelection(sel Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append([]analysis.Category(nil), sel.Categories...)
	s.focusAreas = append([]analysis.FocusArea(nil), sel.FocusAreas...)
	s.designContext = sel.Context
}

func (s *State) LastReport() *analysis.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

func (s *State) SetLastReport(r *analysis.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = r
}

// TryBeginRun reserves the session for an analysis run. It returns false
// while another run is in progress.
func (s *State) TryBeginRun() bool {
	return s.runMu.TryLock()
}

func (s *State) EndRun() {
	s.runMu.Unlock()
}

func (s *State) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *State) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Store holds sessions keyed by id.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*State
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a store whose sessions expire after ttl of inactivity.
// A zero ttl disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*State),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the session for id, creating a new one with a fresh id when id
// is empty or unknown. The second result reports whether it was created.
func (st *Store) Get(id string) (*State, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	if state, ok := st.sessions[id]; ok && id != "" {
		state.touch(now)
		return state, false
	}

	state := newState(uuid.NewString(), now)
	st.sessions[state.ID] = state
	log.Debug().Str("sessionId", state.ID).Msg("new dashboard session created")
	return state, true
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep removes sessions idle longer than the ttl and returns how many were removed.
func (st *Store) Sweep() int {
	if st.ttl <= 0 {
		return 0
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	cutoff := st.now().Add(-st.ttl)
	removed := 0
	for id, state := range st.sessions {
		if state.idleSince().Before(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps expired sessions every interval until ctx is done.
func (st *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				log.Info().Int("count", n).Int("remaining", st.Len()).Msg("expired dashboard sessions removed")
			}
		}
	}
}
