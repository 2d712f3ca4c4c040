// Package session keeps transient onboarding state for the bot.
package session

import (
	"context"
	"sync"

	"refgrow/internal/referral"
)

// Memory is a process-local session store. State is lost on restart, which
// only means a participant gets prompted again.
type Memory struct {
	mu     sync.Mutex
	states map[int64]referral.SessionState
}

var _ referral.SessionStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{states: make(map[int64]referral.SessionState)}
}

func (m *Memory) Get(_ context.Context, participantID int64) (referral.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[participantID], nil
}

func (m *Memory) Put(_ context.Context, participantID int64, state referral.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state == referral.SessionNone {
		delete(m.states, participantID)
		return nil
	}
	m.states[participantID] = state
	return nil
}

func (m *Memory) Reset(_ context.Context, participantID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, participantID)
	return nil
}
