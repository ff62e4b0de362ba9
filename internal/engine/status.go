package engine

import (
	"context"
	"sync"

	"github.com/sfpslog/sfpslog-go/internal/state"
)

// ServerStateReport is the isolated diagnostic view for one
// (tenant, server) pair.
type ServerStateReport struct {
	FileState     state.FileState
	Tracked       bool
	ActivePlayers []state.PlayerSession
	Connected     bool
}

// StatusReport summarizes the whole engine for diagnostics.
type StatusReport struct {
	ActiveSessions int
	TrackedServers int
	Connections    int
}

// TenantServerState returns the diagnostic snapshot for one server.
// Player state is scoped to the tenant, never global.
func (e *Engine) TenantServerState(tenantID, serverID string) ServerStateReport {
	key := state.TenantServerKey{TenantID: tenantID, ServerID: serverID}
	fs, tracked := e.fileState(key)
	return ServerStateReport{
		FileState:     fs,
		Tracked:       tracked,
		ActivePlayers: e.sessions.ActivePlayers(tenantID),
		Connected:     e.fetcher.HasConnection(tenantID, serverID),
	}
}

// Status returns process-wide counters for diagnostics.
func (e *Engine) Status() StatusReport {
	e.mu.Lock()
	tracked := len(e.fileStates)
	e.mu.Unlock()
	return StatusReport{
		ActiveSessions: e.sessions.ActiveCount(),
		TrackedServers: tracked,
		Connections:    e.fetcher.ConnectionCount(),
	}
}

// ResetServer deletes the offset for one key so its next cycle is a cold
// start.
func (e *Engine) ResetServer(ctx context.Context, tenantID, serverID string) {
	key := state.TenantServerKey{TenantID: tenantID, ServerID: serverID}
	lock := e.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	e.mu.Lock()
	delete(e.fileStates, key)
	snapshot := e.snapshotLocked()
	e.mu.Unlock()
	e.persist(ctx, snapshot)
	e.log.Info().Str("tenant", tenantID).Str("server", serverID).Msg("offset reset")
}

// ResetTenant deletes every offset belonging to the tenant. Matching is
// by equality on the tenant component, never by key-prefix.
func (e *Engine) ResetTenant(ctx context.Context, tenantID string) {
	e.lockTenant(tenantID, func() {
		e.mu.Lock()
		removed := 0
		for key := range e.fileStates {
			if key.TenantID == tenantID {
				delete(e.fileStates, key)
				removed++
			}
		}
		snapshot := e.snapshotLocked()
		e.mu.Unlock()
		e.persist(ctx, snapshot)
		e.log.Info().Str("tenant", tenantID).Int("servers", removed).Msg("tenant offsets reset")
	})
}

// ResetAll deletes every stored offset.
func (e *Engine) ResetAll(ctx context.Context) {
	e.mu.Lock()
	e.fileStates = make(map[state.TenantServerKey]state.FileState)
	snapshot := e.snapshotLocked()
	e.mu.Unlock()
	e.persist(ctx, snapshot)
	e.log.Info().Msg("all offsets reset")
}

// CleanupTenant removes every piece of state for one tenant: offsets,
// sessions, lifecycle cache and connections. Other tenants are untouched.
// Runs exclusively with respect to in-flight cycles for that tenant.
func (e *Engine) CleanupTenant(ctx context.Context, tenantID string) {
	e.lockTenant(tenantID, func() {
		e.mu.Lock()
		for key := range e.fileStates {
			if key.TenantID == tenantID {
				delete(e.fileStates, key)
			}
		}
		snapshot := e.snapshotLocked()
		e.mu.Unlock()
		e.persist(ctx, snapshot)

		e.sessions.CleanupTenant(tenantID)
		e.fetcher.CleanupTenant(tenantID)
		e.log.Info().Str("tenant", tenantID).Msg("tenant state cleaned up")
	})
}

// lockTenant holds every per-key lock belonging to the tenant while fn
// runs, making bulk operations stop-the-world for that tenant only.
func (e *Engine) lockTenant(tenantID string, fn func()) {
	e.mu.Lock()
	var locks []*sync.Mutex
	for key, lock := range e.locks {
		if key.TenantID == tenantID {
			locks = append(locks, lock)
		}
	}
	e.mu.Unlock()

	for _, lock := range locks {
		lock.Lock()
	}
	defer func() {
		for _, lock := range locks {
			lock.Unlock()
		}
	}()
	fn()
}

func (e *Engine) persist(ctx context.Context, snapshot map[state.TenantServerKey]state.FileState) {
	if err := e.store.Save(ctx, snapshot); err != nil {
		e.log.Error().Err(err).Msg("failed to persist offsets")
	}
}
