package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// stateDocID is the fixed document id the whole offset map is stored
// under. The map is replaced wholesale on every save (last writer wins);
// concurrent writers from different processes are not supported.
const stateDocID = "log_ingest_offsets"

// OffsetStore persists the (tenant, server) -> FileState map across
// process restarts.
type OffsetStore interface {
	// Load reads the full offset map. A missing document yields an empty
	// map and no error.
	Load(ctx context.Context) (map[TenantServerKey]FileState, error)

	// Save replaces the stored document with the given map.
	Save(ctx context.Context, states map[TenantServerKey]FileState) error

	Close() error
}

// offsetRecord is the serialized shape of one map entry. Keys are stored
// as explicit fields, never as concatenated strings.
type offsetRecord struct {
	TenantID    string    `json:"tenant_id"`
	ServerID    string    `json:"server_id"`
	LineCount   int       `json:"line_count"`
	LastUpdated time.Time `json:"last_updated"`
}

type offsetDocument struct {
	FileStates []offsetRecord `json:"file_states"`
}

// SQLiteStore is the default OffsetStore, backed by a single-row SQLite
// table. SQLite gives us durable single-document semantics without an
// external service.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens the offset database at the given path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open offset database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to offset database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS parser_state (
    id         TEXT PRIMARY KEY,
    doc        TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load implements OffsetStore.
func (s *SQLiteStore) Load(ctx context.Context) (map[TenantServerKey]FileState, error) {
	states := make(map[TenantServerKey]FileState)

	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM parser_state WHERE id = ?`, stateDocID).Scan(&raw)
	if err == sql.ErrNoRows {
		return states, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read offset document: %w", err)
	}

	var doc offsetDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode offset document: %w", err)
	}
	for _, rec := range doc.FileStates {
		key := TenantServerKey{TenantID: rec.TenantID, ServerID: rec.ServerID}
		states[key] = FileState{LineCount: rec.LineCount, LastUpdated: rec.LastUpdated}
	}
	return states, nil
}

// Save implements OffsetStore.
func (s *SQLiteStore) Save(ctx context.Context, states map[TenantServerKey]FileState) error {
	doc := offsetDocument{FileStates: make([]offsetRecord, 0, len(states))}
	for key, fs := range states {
		doc.FileStates = append(doc.FileStates, offsetRecord{
			TenantID:    key.TenantID,
			ServerID:    key.ServerID,
			LineCount:   fs.LineCount,
			LastUpdated: fs.LastUpdated,
		})
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode offset document: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO parser_state (id, doc, updated_at) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		stateDocID, string(raw), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write offset document: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
