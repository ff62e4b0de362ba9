// Package engine implements the incremental, multi-tenant log ingestion
// cycle: fetch remote content, compute the new slice from the stored
// offset, extract events and route them to the notifier.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sfpslog/sfpslog-go/internal/config"
	"github.com/sfpslog/sfpslog-go/internal/fetch"
	"github.com/sfpslog/sfpslog-go/internal/parser"
	"github.com/sfpslog/sfpslog-go/internal/route"
	"github.com/sfpslog/sfpslog-go/internal/state"
)

// ErrSafetyBreak reports that event emission exceeded the runaway limit
// for a cycle. Events emitted before the break are still delivered.
var ErrSafetyBreak = errors.New("event emission safety break")

// Fetcher retrieves remote log content. Implemented by fetch.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, tenantID string, srv config.ServerConfig) ([]byte, error)
	HasConnection(tenantID, serverID string) bool
	ConnectionCount() int
	CleanupTenant(tenantID string)
}

// Notifier receives routed event records. Delivery retries and rendering
// internals are the notifier's problem, not the engine's.
type Notifier interface {
	Notify(ctx context.Context, batch []Notification) error
}

// Engine drives one fetch-and-process cycle per (tenant, server).
// Construction is pure; Initialize must be called before the first cycle.
type Engine struct {
	log      zerolog.Logger
	store    state.OffsetStore
	fetcher  Fetcher
	notifier Notifier
	catalog  *parser.Catalog
	sessions *state.Tracker

	mu         sync.Mutex
	fileStates map[state.TenantServerKey]state.FileState
	locks      map[state.TenantServerKey]*sync.Mutex

	now func() time.Time
}

// New wires an engine. No I/O happens here.
func New(log zerolog.Logger, store state.OffsetStore, fetcher Fetcher, notifier Notifier) *Engine {
	return &Engine{
		log:        log,
		store:      store,
		fetcher:    fetcher,
		notifier:   notifier,
		catalog:    parser.NewCatalog(),
		sessions:   state.NewTracker(),
		fileStates: make(map[state.TenantServerKey]state.FileState),
		locks:      make(map[state.TenantServerKey]*sync.Mutex),
		now:        time.Now,
	}
}

// Initialize loads persisted offsets. A load failure is non-fatal: the
// engine starts empty and every server goes through a cold start again.
func (e *Engine) Initialize(ctx context.Context) error {
	states, err := e.store.Load(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to load persisted offsets, starting empty")
		return nil
	}
	e.mu.Lock()
	e.fileStates = states
	e.mu.Unlock()
	e.log.Info().Int("servers", len(states)).Msg("loaded persisted offsets")
	return nil
}

// keyLock returns the mutex serializing cycles for one key. Cycles for
// different keys never contend on it.
func (e *Engine) keyLock(key state.TenantServerKey) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[key] = lock
	}
	return lock
}

func (e *Engine) fileState(key state.TenantServerKey) (state.FileState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fs, ok := e.fileStates[key]
	return fs, ok
}

// setFileState overwrites the key's state and persists the whole map.
// Persistence errors are logged, not fatal: the in-memory state still
// protects the current process from reprocessing.
func (e *Engine) setFileState(ctx context.Context, key state.TenantServerKey, lineCount int) {
	e.mu.Lock()
	e.fileStates[key] = state.FileState{LineCount: lineCount, LastUpdated: e.now()}
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	if err := e.store.Save(ctx, snapshot); err != nil {
		e.log.Error().Err(err).
			Str("tenant", key.TenantID).Str("server", key.ServerID).
			Msg("failed to persist offsets")
	}
}

func (e *Engine) snapshotLocked() map[state.TenantServerKey]state.FileState {
	snapshot := make(map[state.TenantServerKey]state.FileState, len(e.fileStates))
	for k, v := range e.fileStates {
		snapshot[k] = v
	}
	return snapshot
}

// RunAll processes every server of every tenant in the registry. Failures
// are isolated per server: one tenant's misconfiguration never affects
// another tenant's processing.
func (e *Engine) RunAll(ctx context.Context, reg *config.Registry) {
	processed := 0
	for _, tenant := range reg.Tenants {
		if len(tenant.Servers) == 0 {
			e.log.Debug().Str("tenant", tenant.ID).Msg("no servers configured")
			continue
		}
		for _, srv := range tenant.Servers {
			if ctx.Err() != nil {
				return
			}
			if err := e.ProcessServer(ctx, tenant, srv); err != nil {
				e.log.Error().Err(err).
					Str("tenant", tenant.ID).Str("server", srv.ID).
					Msg("server cycle failed")
				continue
			}
			processed++
		}
	}
	e.log.Info().Int("servers", processed).Msg("ingestion pass complete")
}

// ProcessServer runs one fetch-and-process cycle for a single server.
// Cycles for the same key are serialized; the offset is written before
// extraction so a crash mid-extraction never reprocesses claimed lines.
func (e *Engine) ProcessServer(ctx context.Context, tenant config.TenantConfig, srv config.ServerConfig) error {
	key := state.TenantServerKey{TenantID: tenant.ID, ServerID: srv.ID}
	lock := e.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	content, err := e.fetcher.Fetch(ctx, tenant.ID, srv)
	if err != nil {
		switch {
		case errors.Is(err, fetch.ErrLogNotFound):
			e.log.Warn().Str("tenant", tenant.ID).Str("server", srv.ID).
				Msg("log file not found")
			return nil
		case errors.Is(err, fetch.ErrInvalidHost), errors.Is(err, fetch.ErrMissingCredentials):
			e.log.Warn().Err(err).Str("tenant", tenant.ID).Str("server", srv.ID).
				Msg("server misconfigured, skipping cycle")
			return nil
		default:
			return fmt.Errorf("fetching log: %w", err)
		}
	}

	lines := splitLines(content)
	if len(lines) == 0 {
		e.log.Debug().Str("tenant", tenant.ID).Str("server", srv.ID).Msg("log file is empty")
		return nil
	}

	stored, tracked := e.fileState(key)
	if !tracked {
		return e.coldStart(ctx, key, lines)
	}
	return e.hotStart(ctx, tenant, srv, key, stored, lines)
}

// coldStart scans every line to build session and lifecycle state but
// suppresses all event emission, then records the full line count.
func (e *Engine) coldStart(ctx context.Context, key state.TenantServerKey, lines []string) error {
	e.log.Info().Str("tenant", key.TenantID).Str("server", key.ServerID).
		Int("lines", len(lines)).Msg("cold start, absorbing history")

	records, err := e.processSlice(key, lines, false)
	if err != nil && !errors.Is(err, ErrSafetyBreak) {
		return err
	}
	_ = records // emission suppressed on cold start

	e.setFileState(ctx, key, len(lines))
	e.log.Info().Str("tenant", key.TenantID).Str("server", key.ServerID).
		Int("lines", len(lines)).Msg("cold start complete")
	return nil
}

// hotStart processes only the lines appended since the stored offset.
func (e *Engine) hotStart(ctx context.Context, tenant config.TenantConfig, srv config.ServerConfig, key state.TenantServerKey, stored state.FileState, lines []string) error {
	total := len(lines)
	if total <= stored.LineCount {
		// Nothing new. A shrunken file (rotation) also lands here: no
		// automatic reset, an explicit reset is required.
		e.log.Debug().Str("tenant", key.TenantID).Str("server", key.ServerID).
			Int("stored", stored.LineCount).Int("total", total).
			Msg("no new lines")
		return nil
	}

	slice := lines[stored.LineCount:]
	e.log.Info().Str("tenant", key.TenantID).Str("server", key.ServerID).
		Int("from", stored.LineCount).Int("to", total).
		Msg("hot start, processing new lines")

	// Claim the lines before extraction. A retry after a crash during
	// extraction loses these events rather than duplicating them.
	e.setFileState(ctx, key, total)

	records, err := e.processSlice(key, slice, true)
	if err != nil && !errors.Is(err, ErrSafetyBreak) {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	return e.deliver(ctx, tenant, srv.ID, records)
}

// deliver resolves destinations and hands the batch to the notifier.
// Records with no configured destination are silently dropped.
func (e *Engine) deliver(ctx context.Context, tenant config.TenantConfig, serverID string, records []EventRecord) error {
	batch := make([]Notification, 0, len(records))
	for _, rec := range records {
		dest, ok := route.Resolve(tenant.Channels, serverID, rec.Category)
		if !ok {
			e.log.Debug().Str("tenant", tenant.ID).Str("server", serverID).
				Str("category", rec.Category).Msg("no destination configured, dropping event")
			continue
		}
		batch = append(batch, Notification{Record: rec, Destination: dest})
	}
	if len(batch) == 0 {
		return nil
	}
	if err := e.notifier.Notify(ctx, batch); err != nil {
		return fmt.Errorf("notifying: %w", err)
	}
	return nil
}
