package state

import (
	"sync"
	"time"
)

// SessionStatus is the presence state of a tracked player.
type SessionStatus string

const (
	StatusOnline  SessionStatus = "online"
	StatusOffline SessionStatus = "offline"
)

// PlayerSession is the best-effort presence record for one player.
// Sessions survive a disconnect (marked offline) and are only removed by
// tenant cleanup.
type PlayerSession struct {
	PlayerID   string
	PlayerName string
	TenantID   string
	Status     SessionStatus
	JoinedAt   time.Time
	LeftAt     *time.Time
}

// lifecycleEntry bridges the connection-queue line (which carries the
// human-readable name) to the later registration line (which only carries
// the player id).
type lifecycleEntry struct {
	Name          string
	QueueJoinedAt time.Time
}

// Tracker is the in-memory session and lifecycle bookkeeping consumed by
// the line processor. It is rebuilt from scratch on process restart.
// Safe for concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	sessions  map[TenantPlayerKey]PlayerSession
	lifecycle map[TenantPlayerKey]lifecycleEntry
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		sessions:  make(map[TenantPlayerKey]PlayerSession),
		lifecycle: make(map[TenantPlayerKey]lifecycleEntry),
	}
}

// CacheQueueName stores the display name seen on a connection-queue line
// so the later registration line can resolve it.
func (t *Tracker) CacheQueueName(key TenantPlayerKey, name string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lifecycle[key] = lifecycleEntry{Name: name, QueueJoinedAt: at}
}

// QueueName returns the cached display name for a player, if any.
func (t *Tracker) QueueName(key TenantPlayerKey) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.lifecycle[key]
	if !ok {
		return "", false
	}
	return entry.Name, true
}

// RecordJoin creates or overwrites the player's session as online.
func (t *Tracker) RecordJoin(key TenantPlayerKey, name string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[key] = PlayerSession{
		PlayerID:   key.PlayerID,
		PlayerName: name,
		TenantID:   key.TenantID,
		Status:     StatusOnline,
		JoinedAt:   at,
	}
}

// RecordLeave marks the player's session offline, recording the leave
// time. No-op if no session exists.
func (t *Tracker) RecordLeave(key TenantPlayerKey, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	session, ok := t.sessions[key]
	if !ok {
		return
	}
	session.Status = StatusOffline
	session.LeftAt = &at
	t.sessions[key] = session
}

// SessionName returns the display name recorded on the player's session.
func (t *Tracker) SessionName(key TenantPlayerKey) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	session, ok := t.sessions[key]
	if !ok {
		return "", false
	}
	return session.PlayerName, true
}

// ActivePlayers returns the online sessions for one tenant.
func (t *Tracker) ActivePlayers(tenantID string) []PlayerSession {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var active []PlayerSession
	for key, session := range t.sessions {
		if key.TenantID != tenantID {
			continue
		}
		if session.Status == StatusOnline {
			active = append(active, session)
		}
	}
	return active
}

// ActiveCount returns the number of online sessions across all tenants.
// Used by diagnostic reporting only.
func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, session := range t.sessions {
		if session.Status == StatusOnline {
			n++
		}
	}
	return n
}

// CleanupTenant removes every session and lifecycle entry belonging to
// the tenant. Other tenants' entries are untouched.
func (t *Tracker) CleanupTenant(tenantID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.sessions {
		if key.TenantID == tenantID {
			delete(t.sessions, key)
		}
	}
	for key := range t.lifecycle {
		if key.TenantID == tenantID {
			delete(t.lifecycle, key)
		}
	}
}
