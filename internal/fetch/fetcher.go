// Package fetch retrieves remote log files over SSH/SFTP, reusing one
// authenticated connection per (tenant, server, host, port).
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/sfpslog/sfpslog-go/internal/config"
)

var (
	// ErrInvalidHost is returned when the configured host is empty after
	// trimming. No retry; this is a configuration error.
	ErrInvalidHost = errors.New("invalid or empty host")

	// ErrMissingCredentials is returned when username or password is
	// absent. No retry; this is a configuration error.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrLogNotFound is returned when the remote log file does not exist.
	// Distinct from transport errors so callers can log it as a warning.
	ErrLogNotFound = errors.New("log file not found")
)

// ConnKey identifies one cached connection. The tenant component keeps
// connections from ever being shared across tenant boundaries, even when
// two tenants point at the same host.
type ConnKey struct {
	TenantID string
	ServerID string
	Host     string
	Port     int
}

// Fetcher manages SSH connections and reads full log file contents.
// Safe for concurrent use; fetches for different keys do not block each
// other beyond the brief map access.
type Fetcher struct {
	log zerolog.Logger

	mu    sync.Mutex
	conns map[ConnKey]*ssh.Client

	// dial is swapped out in tests.
	dial func(addr string, cfg *ssh.ClientConfig) (*ssh.Client, error)
}

// New returns a Fetcher with no open connections.
func New(log zerolog.Logger) *Fetcher {
	return &Fetcher{
		log:   log,
		conns: make(map[ConnKey]*ssh.Client),
		dial: func(addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
			return ssh.Dial("tcp", addr, cfg)
		},
	}
}

// remotePath returns the configured log path or the conventional
// {host}_{server_id}/Logs/Deadside.log layout.
func remotePath(host string, srv config.ServerConfig) string {
	if srv.LogPath != "" {
		return srv.LogPath
	}
	return fmt.Sprintf("./%s_%s/Logs/Deadside.log", host, srv.ID)
}

// Fetch returns the full current contents of the server's log file.
// An empty file is a valid result with empty content. A missing file is
// reported as ErrLogNotFound.
func (f *Fetcher) Fetch(ctx context.Context, tenantID string, srv config.ServerConfig) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	host := strings.TrimSpace(srv.Host)
	if host == "" {
		return nil, fmt.Errorf("server %s: %w", srv.ID, ErrInvalidHost)
	}
	if srv.Username == "" || srv.Password == "" {
		return nil, fmt.Errorf("server %s: %w", srv.ID, ErrMissingCredentials)
	}

	port := srv.Port
	if port == 0 {
		port = 22
	}
	key := ConnKey{TenantID: tenantID, ServerID: srv.ID, Host: host, Port: port}

	conn, err := f.connection(key, srv.Username, srv.Password)
	if err != nil {
		return nil, err
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		// The cached handle has gone bad; drop it so the next cycle
		// re-establishes a fresh one.
		f.discard(key)
		return nil, fmt.Errorf("opening sftp session to %s:%d: %w", host, port, err)
	}
	defer client.Close()

	path := remotePath(host, srv)
	info, err := client.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrLogNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	f.log.Debug().
		Str("tenant", tenantID).Str("server", srv.ID).
		Str("path", path).Int64("size", info.Size()).
		Msg("reading remote log")

	file, err := client.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return content, nil
}

// connection returns the cached client for the key, dialing a new one if
// none exists. Failed dials are not cached.
func (f *Fetcher) connection(key ConnKey, user, password string) (*ssh.Client, error) {
	f.mu.Lock()
	if conn, ok := f.conns[key]; ok {
		f.mu.Unlock()
		return conn, nil
	}
	f.mu.Unlock()

	addr := fmt.Sprintf("%s:%d", key.Host, key.Port)
	conn, err := f.dial(addr, clientConfig(user, password))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	f.log.Info().Str("tenant", key.TenantID).Str("server", key.ServerID).
		Str("addr", addr).Msg("ssh connection established")

	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.conns[key]; ok {
		// Another fetch won the race; keep its connection.
		_ = conn.Close()
		return existing, nil
	}
	f.conns[key] = conn
	return conn, nil
}

// discard closes and forgets the cached connection for the key.
func (f *Fetcher) discard(key ConnKey) {
	f.mu.Lock()
	conn, ok := f.conns[key]
	delete(f.conns, key)
	f.mu.Unlock()
	if ok {
		f.closeLogged(key, conn)
	}
}

// HasConnection reports whether a live connection exists for the tenant
// and server. Diagnostic use only.
func (f *Fetcher) HasConnection(tenantID, serverID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.conns {
		if key.TenantID == tenantID && key.ServerID == serverID {
			return true
		}
	}
	return false
}

// ConnectionCount returns the number of cached connections.
func (f *Fetcher) ConnectionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// CleanupTenant closes every connection belonging to the tenant. Close is
// best-effort, but failures are logged so they stay observable.
func (f *Fetcher) CleanupTenant(tenantID string) {
	f.mu.Lock()
	var doomed []ConnKey
	for key := range f.conns {
		if key.TenantID == tenantID {
			doomed = append(doomed, key)
		}
	}
	conns := make(map[ConnKey]*ssh.Client, len(doomed))
	for _, key := range doomed {
		conns[key] = f.conns[key]
		delete(f.conns, key)
	}
	f.mu.Unlock()

	for key, conn := range conns {
		f.closeLogged(key, conn)
	}
}

// Close closes every cached connection.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	conns := f.conns
	f.conns = make(map[ConnKey]*ssh.Client)
	f.mu.Unlock()

	for key, conn := range conns {
		f.closeLogged(key, conn)
	}
	return nil
}

func (f *Fetcher) closeLogged(key ConnKey, conn *ssh.Client) {
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		f.log.Warn().Err(err).
			Str("tenant", key.TenantID).Str("server", key.ServerID).
			Msg("failed to close ssh connection")
		return
	}
	f.log.Debug().Str("tenant", key.TenantID).Str("server", key.ServerID).
		Msg("ssh connection closed")
}
