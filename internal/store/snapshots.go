package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/goliatone/go-formchat/pkg/document"
	"github.com/goliatone/go-formchat/pkg/turn"
)

// Snapshot is the conversation state of one session between turns.
type Snapshot struct {
	SessionID string         `json:"session_id"`
	FormID    string         `json:"form_id"`
	Document  map[string]any `json:"document"`
	Messages  []turn.Message `json:"messages"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Document = document.Clone(s.Document)
	out.Messages = append([]turn.Message(nil), s.Messages...)
	return out
}

// Snapshots persists session snapshots.
type Snapshots interface {
	Load(ctx context.Context, sessionID string) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Delete(ctx context.Context, sessionID string) error
}

var errNoSessionID = errors.New("store: session id is required")

// MemorySnapshots keeps snapshots in process memory. A positive TTL expires
// snapshots that were not saved within it.
type MemorySnapshots struct {
	mu    sync.RWMutex
	items map[string]Snapshot
	ttl   time.Duration
	clock clock.Clock
}

var _ Snapshots = (*MemorySnapshots)(nil)

// NewMemorySnapshots creates an empty in-memory store. A nil clock uses the
// wall clock.
func NewMemorySnapshots(ttl time.Duration, c clock.Clock) *MemorySnapshots {
	if c == nil {
		c = clock.New()
	}
	return &MemorySnapshots{items: make(map[string]Snapshot), ttl: ttl, clock: c}
}

// Load returns a copy of the stored snapshot.
func (m *MemorySnapshots) Load(ctx context.Context, sessionID string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.RLock()
	snap, ok := m.items[sessionID]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	if m.ttl > 0 && m.clock.Since(snap.UpdatedAt) > m.ttl {
		m.mu.Lock()
		delete(m.items, sessionID)
		m.mu.Unlock()
		return Snapshot{}, ErrNotFound
	}
	return snap.clone(), nil
}

// Save stores a copy of snap, stamping UpdatedAt.
func (m *MemorySnapshots) Save(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(snap.SessionID) == "" {
		return errNoSessionID
	}
	stored := snap.clone()
	stored.UpdatedAt = m.clock.Now()

	m.mu.Lock()
	m.items[snap.SessionID] = stored
	m.mu.Unlock()
	return nil
}

// Delete removes a snapshot. Missing snapshots are not an error.
func (m *MemorySnapshots) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.items, sessionID)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored snapshots, expired ones included.
func (m *MemorySnapshots) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
