package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfpslog/sfpslog-go/internal/config"
	"github.com/sfpslog/sfpslog-go/internal/fetch"
	"github.com/sfpslog/sfpslog-go/internal/state"
)

// memStore is an in-memory OffsetStore.
type memStore struct {
	mu      sync.Mutex
	saved   map[state.TenantServerKey]state.FileState
	saves   int
	loadErr error
	saveErr error
}

func (s *memStore) Load(ctx context.Context) (map[state.TenantServerKey]state.FileState, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[state.TenantServerKey]state.FileState, len(s.saved))
	for k, v := range s.saved {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) Save(ctx context.Context, states map[state.TenantServerKey]state.FileState) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = make(map[state.TenantServerKey]state.FileState, len(states))
	for k, v := range states {
		s.saved[k] = v
	}
	s.saves++
	return nil
}

func (s *memStore) Close() error { return nil }

// fakeFetcher serves canned content per (tenant, server).
type fakeFetcher struct {
	mu      sync.Mutex
	content map[state.TenantServerKey][]byte
	errs    map[state.TenantServerKey]error
	cleaned []string
}

func (f *fakeFetcher) set(tenantID, serverID string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.content == nil {
		f.content = make(map[state.TenantServerKey][]byte)
	}
	f.content[state.TenantServerKey{TenantID: tenantID, ServerID: serverID}] = content
}

func (f *fakeFetcher) fail(tenantID, serverID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[state.TenantServerKey]error)
	}
	f.errs[state.TenantServerKey{TenantID: tenantID, ServerID: serverID}] = err
}

func (f *fakeFetcher) Fetch(ctx context.Context, tenantID string, srv config.ServerConfig) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := state.TenantServerKey{TenantID: tenantID, ServerID: srv.ID}
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	return f.content[key], nil
}

func (f *fakeFetcher) HasConnection(tenantID, serverID string) bool { return false }
func (f *fakeFetcher) ConnectionCount() int                         { return 0 }

func (f *fakeFetcher) CleanupTenant(tenantID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = append(f.cleaned, tenantID)
}

// captureNotifier records every delivered batch.
type captureNotifier struct {
	mu      sync.Mutex
	batches [][]Notification
	err     error
}

func (n *captureNotifier) Notify(ctx context.Context, batch []Notification) error {
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, batch)
	return nil
}

func (n *captureNotifier) all() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Notification
	for _, b := range n.batches {
		out = append(out, b...)
	}
	return out
}

type fixture struct {
	engine   *Engine
	store    *memStore
	fetcher  *fakeFetcher
	notifier *captureNotifier
	tenant   config.TenantConfig
	server   config.ServerConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &memStore{}
	fetcher := &fakeFetcher{}
	notifier := &captureNotifier{}
	e := New(zerolog.Nop(), store, fetcher, notifier)
	e.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	srv := config.ServerConfig{
		ID: "alpha", Host: "game.example.com", Username: "deploy", Password: "hunter2",
	}
	tenant := config.TenantConfig{
		ID:      "t1",
		Servers: []config.ServerConfig{srv},
		Channels: config.ChannelTable{
			Servers:  map[string]map[string]string{"alpha": {"events": "srv-events"}},
			Defaults: map[string]string{"connections": "default-conns"},
		},
	}
	return &fixture{engine: e, store: store, fetcher: fetcher, notifier: notifier, tenant: tenant, server: srv}
}

func content(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

func TestColdStartSuppressesEmission(t *testing.T) {
	fx := newFixture(t)
	fx.fetcher.set("t1", "alpha", content(
		queueLine("abc123", "Alice"),
		registeredLine("abc123"),
		missionStateLine("GA_Military_02_Mis1", "READY"),
		"LogTemp: noise",
	))

	require.NoError(t, fx.engine.ProcessServer(context.Background(), fx.tenant, fx.server))

	// Historical events are absorbed, never delivered.
	assert.Empty(t, fx.notifier.all())

	key := state.TenantServerKey{TenantID: "t1", ServerID: "alpha"}
	fs, ok := fx.engine.fileState(key)
	require.True(t, ok)
	assert.Equal(t, 4, fs.LineCount)

	// The offset survived to the store.
	assert.Equal(t, 4, fx.store.saved[key].LineCount)

	// Session state was still built from history.
	name, ok := fx.engine.sessions.SessionName(state.TenantPlayerKey{TenantID: "t1", PlayerID: "abc123"})
	require.True(t, ok)
	assert.Equal(t, "Alice", name)
}

func TestHotStartEmitsOnlyNewLines(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	old := []string{
		missionStateLine("GA_Military_02_Mis1", "READY"),
		"LogTemp: noise",
	}
	fx.fetcher.set("t1", "alpha", content(old...))
	require.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))
	require.Empty(t, fx.notifier.all())

	fx.fetcher.set("t1", "alpha", content(append(old,
		missionStateLine("GA_Sawmill_01_Mis1", "COMPLETED"),
	)...))
	require.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))

	got := fx.notifier.all()
	require.Len(t, got, 1)
	assert.Equal(t, "Mission Completed", got[0].Record.Title)
	assert.Equal(t, "Sawmill Mission #1", got[0].Record.MissionName)
	assert.Equal(t, "srv-events", got[0].Destination)

	key := state.TenantServerKey{TenantID: "t1", ServerID: "alpha"}
	fs, _ := fx.engine.fileState(key)
	assert.Equal(t, 3, fs.LineCount)
}

func TestUnchangedFileIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.fetcher.set("t1", "alpha", content(
		missionStateLine("GA_Military_02_Mis1", "READY"),
	))
	require.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))

	key := state.TenantServerKey{TenantID: "t1", ServerID: "alpha"}
	before, _ := fx.engine.fileState(key)
	saves := fx.store.saves

	require.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))

	assert.Empty(t, fx.notifier.all())
	after, _ := fx.engine.fileState(key)
	assert.Equal(t, before, after)
	assert.Equal(t, saves, fx.store.saves, "an unchanged file must not rewrite state")
}

func TestShrunkenFileIsNoop(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.fetcher.set("t1", "alpha", content(
		"LogTemp: one", "LogTemp: two", "LogTemp: three",
	))
	require.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))

	// Rotation shrank the file. No automatic reset, no emission.
	fx.fetcher.set("t1", "alpha", content(
		missionStateLine("GA_Military_02_Mis1", "READY"),
	))
	require.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))

	assert.Empty(t, fx.notifier.all())
	fs, _ := fx.engine.fileState(state.TenantServerKey{TenantID: "t1", ServerID: "alpha"})
	assert.Equal(t, 3, fs.LineCount)
}

func TestResetServerForcesColdStart(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.fetcher.set("t1", "alpha", content(
		missionStateLine("GA_Military_02_Mis1", "READY"),
	))
	require.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))

	fx.engine.ResetServer(ctx, "t1", "alpha")
	_, tracked := fx.engine.fileState(state.TenantServerKey{TenantID: "t1", ServerID: "alpha"})
	assert.False(t, tracked)

	// Next cycle is a cold start again: the same line is absorbed silently.
	require.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))
	assert.Empty(t, fx.notifier.all())
}

func TestNameBridgingAcrossCycles(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// The queue join lands in the historical portion of the file.
	fx.fetcher.set("t1", "alpha", content(queueLine("abc123", "Alice")))
	require.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))

	// The registration arrives a cycle later.
	fx.fetcher.set("t1", "alpha", content(
		queueLine("abc123", "Alice"),
		registeredLine("abc123"),
	))
	require.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))

	got := fx.notifier.all()
	require.Len(t, got, 1)
	assert.Equal(t, "Alice", got[0].Record.PlayerName)
	assert.Equal(t, "default-conns", got[0].Destination)
}

func TestOffsetClaimedBeforeDelivery(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.fetcher.set("t1", "alpha", content("LogTemp: noise"))
	require.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))

	fx.notifier.err = errors.New("webhook down")
	fx.fetcher.set("t1", "alpha", content(
		"LogTemp: noise",
		missionStateLine("GA_Military_02_Mis1", "READY"),
	))
	err := fx.engine.ProcessServer(ctx, fx.tenant, fx.server)
	require.Error(t, err)

	// The lines were claimed before delivery was attempted; a retry will
	// not duplicate the event.
	fs, _ := fx.engine.fileState(state.TenantServerKey{TenantID: "t1", ServerID: "alpha"})
	assert.Equal(t, 2, fs.LineCount)
}

func TestSafetyBreakStillDeliversPartialBatch(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.fetcher.set("t1", "alpha", content("LogTemp: noise"))
	require.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))

	// One appended line yielding three events trips the runaway limit.
	runaway := missionStateLine("GA_Military_02_Mis1", "READY") +
		" LogSFPS: Mission GA_Military_02_Mis1 will respawn in 60 " +
		registeredLine("abc123")
	fx.fetcher.set("t1", "alpha", content("LogTemp: noise", runaway))
	require.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))

	// Everything emitted before the break is still delivered.
	got := fx.notifier.all()
	require.Len(t, got, 3)
	assert.Equal(t, CategoryPlayerJoin, got[0].Record.Category)
	assert.Equal(t, "default-conns", got[0].Destination)
	assert.Equal(t, CategoryMission, got[1].Record.Category)
	assert.Equal(t, "srv-events", got[1].Destination)
	assert.Equal(t, CategoryMission, got[2].Record.Category)
}

func TestUnroutableEventsAreDropped(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.tenant.Channels = config.ChannelTable{}

	fx.fetcher.set("t1", "alpha", content("LogTemp: noise"))
	require.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))

	fx.fetcher.set("t1", "alpha", content(
		"LogTemp: noise",
		missionStateLine("GA_Military_02_Mis1", "READY"),
	))
	require.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))
	assert.Empty(t, fx.notifier.all())
}

func TestFetchErrorHandling(t *testing.T) {
	ctx := context.Background()

	t.Run("missing log is not fatal", func(t *testing.T) {
		fx := newFixture(t)
		fx.fetcher.fail("t1", "alpha", fetch.ErrLogNotFound)
		assert.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))
	})

	t.Run("misconfiguration skips the cycle", func(t *testing.T) {
		fx := newFixture(t)
		fx.fetcher.fail("t1", "alpha", fetch.ErrMissingCredentials)
		assert.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))
	})

	t.Run("transport errors surface", func(t *testing.T) {
		fx := newFixture(t)
		fx.fetcher.fail("t1", "alpha", errors.New("connection reset"))
		assert.Error(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))
	})

	t.Run("empty file is a valid no-op", func(t *testing.T) {
		fx := newFixture(t)
		fx.fetcher.set("t1", "alpha", nil)
		assert.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))
		_, tracked := fx.engine.fileState(state.TenantServerKey{TenantID: "t1", ServerID: "alpha"})
		assert.False(t, tracked)
	})
}

func TestInitializeLoadFailureStartsEmpty(t *testing.T) {
	fx := newFixture(t)
	fx.store.loadErr = errors.New("disk gone")
	require.NoError(t, fx.engine.Initialize(context.Background()))
	assert.Equal(t, 0, fx.engine.Status().TrackedServers)
}

func TestInitializeRestoresOffsets(t *testing.T) {
	fx := newFixture(t)
	key := state.TenantServerKey{TenantID: "t1", ServerID: "alpha"}
	fx.store.saved = map[state.TenantServerKey]state.FileState{
		key: {LineCount: 2},
	}
	require.NoError(t, fx.engine.Initialize(context.Background()))

	// Restored offsets make the first cycle a hot start.
	fx.fetcher.set("t1", "alpha", content(
		"LogTemp: one", "LogTemp: two",
		missionStateLine("GA_Military_02_Mis1", "READY"),
	))
	require.NoError(t, fx.engine.ProcessServer(context.Background(), fx.tenant, fx.server))
	require.Len(t, fx.notifier.all(), 1)
}

func TestRunAllIsolatesServerFailures(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	other := config.TenantConfig{
		ID:      "t2",
		Servers: []config.ServerConfig{{ID: "beta", Host: "h", Username: "u", Password: "p"}},
		Channels: config.ChannelTable{
			Defaults: map[string]string{"events": "t2-events"},
		},
	}
	reg := &config.Registry{Tenants: []config.TenantConfig{fx.tenant, other}}

	fx.fetcher.fail("t1", "alpha", errors.New("connection reset"))
	fx.fetcher.set("t2", "beta", content("LogTemp: noise"))
	fx.engine.RunAll(ctx, reg)

	// t2 completed its cold start despite t1's failure.
	_, tracked := fx.engine.fileState(state.TenantServerKey{TenantID: "t2", ServerID: "beta"})
	assert.True(t, tracked)

	fx.fetcher.set("t2", "beta", content(
		"LogTemp: noise",
		missionStateLine("GA_Military_02_Mis1", "READY"),
	))
	fx.engine.RunAll(ctx, reg)
	got := fx.notifier.all()
	require.Len(t, got, 1)
	assert.Equal(t, "t2-events", got[0].Destination)
}

func TestCleanupTenantIsolation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	other := config.TenantConfig{
		ID:      "t2",
		Servers: []config.ServerConfig{{ID: "beta", Host: "h", Username: "u", Password: "p"}},
	}
	fx.fetcher.set("t1", "alpha", content(registeredLine("abc123")))
	fx.fetcher.set("t2", "beta", content(registeredLine("abc123")))
	require.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))
	require.NoError(t, fx.engine.ProcessServer(ctx, other, other.Servers[0]))
	require.Equal(t, 2, fx.engine.Status().TrackedServers)
	require.Equal(t, 2, fx.engine.Status().ActiveSessions)

	fx.engine.CleanupTenant(ctx, "t1")

	status := fx.engine.Status()
	assert.Equal(t, 1, status.TrackedServers)
	assert.Equal(t, 1, status.ActiveSessions)
	assert.Equal(t, []string{"t1"}, fx.fetcher.cleaned)

	// t2's offset survived, including in the store.
	_, tracked := fx.engine.fileState(state.TenantServerKey{TenantID: "t2", ServerID: "beta"})
	assert.True(t, tracked)
	_, ok := fx.store.saved[state.TenantServerKey{TenantID: "t2", ServerID: "beta"}]
	assert.True(t, ok)
}

func TestResetTenantKeepsOtherTenants(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	other := config.TenantConfig{
		ID:      "t2",
		Servers: []config.ServerConfig{{ID: "alpha", Host: "h", Username: "u", Password: "p"}},
	}
	fx.fetcher.set("t1", "alpha", content("LogTemp: one"))
	fx.fetcher.set("t2", "alpha", content("LogTemp: one"))
	require.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))
	require.NoError(t, fx.engine.ProcessServer(ctx, other, other.Servers[0]))

	fx.engine.ResetTenant(ctx, "t1")

	_, t1tracked := fx.engine.fileState(state.TenantServerKey{TenantID: "t1", ServerID: "alpha"})
	_, t2tracked := fx.engine.fileState(state.TenantServerKey{TenantID: "t2", ServerID: "alpha"})
	assert.False(t, t1tracked)
	assert.True(t, t2tracked)
}

func TestTenantServerStateScopedToTenant(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	other := config.TenantConfig{
		ID:      "t2",
		Servers: []config.ServerConfig{{ID: "beta", Host: "h", Username: "u", Password: "p"}},
	}
	fx.fetcher.set("t1", "alpha", content(
		queueLine("abc123", "Alice"),
		registeredLine("abc123"),
	))
	fx.fetcher.set("t2", "beta", content(registeredLine("ffee00")))
	require.NoError(t, fx.engine.ProcessServer(ctx, fx.tenant, fx.server))
	require.NoError(t, fx.engine.ProcessServer(ctx, other, other.Servers[0]))

	report := fx.engine.TenantServerState("t1", "alpha")
	assert.True(t, report.Tracked)
	assert.Equal(t, 2, report.FileState.LineCount)
	require.Len(t, report.ActivePlayers, 1)
	assert.Equal(t, "Alice", report.ActivePlayers[0].PlayerName)

	missing := fx.engine.TenantServerState("t1", "nope")
	assert.False(t, missing.Tracked)
}
