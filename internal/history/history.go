// Package history keeps a local log of dispatches. It is write-only with
// respect to dispatching: nothing here is ever used to answer a request.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/randombk/llm2sh/internal/config"
)

const (
	HistoryFileName = "history.db"
	schemaVersion   = "1"
)

// Outcome is what happened to a dispatch's commands.
type Outcome string

const (
	OutcomeExecuted  Outcome = "executed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeCopied    Outcome = "copied"
	OutcomeDryRun    Outcome = "dry-run"
	OutcomeEmpty     Outcome = "empty"
	OutcomeError     Outcome = "error"
)

// Entry represents a single dispatch
type Entry struct {
	ID            string
	Timestamp     time.Time
	Request       string
	Model         string
	Commands      []string
	Modifications []string
	Outcome       Outcome
	Error         string
}

// Executed reports whether the commands were handed to a shell.
func (e Entry) Executed() bool {
	return e.Outcome == OutcomeExecuted || e.Outcome == OutcomeFailed
}

// NewEntry creates a new history entry
func NewEntry(request, model string, commands []string, outcome Outcome, modifications []string) Entry {
	return Entry{
		ID:            uuid.NewString(),
		Timestamp:     time.Now(),
		Request:       request,
		Model:         model,
		Commands:      commands,
		Modifications: modifications,
		Outcome:       outcome,
	}
}

// Store is a SQLite-backed history log.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// GetHistoryPath returns the path to the history database
func GetHistoryPath() (string, error) {
	dir, err := config.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, HistoryFileName), nil
}

// Open opens or creates the history database at path, or at the default
// location when path is empty.
func Open(path string) (*Store, error) {
	if path == "" {
		var err error
		if path, err = GetHistoryPath(); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		request TEXT NOT NULL,
		model TEXT NOT NULL,
		commands_json TEXT NOT NULL,
		modifications_json TEXT,
		outcome TEXT NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_created_at ON entries(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT OR IGNORE INTO metadata (key, value) VALUES ('version', ?)`, schemaVersion)
	return err
}

// Add appends an entry.
func (s *Store) Add(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Commands == nil {
		e.Commands = []string{}
	}

	commandsJSON, err := json.Marshal(e.Commands)
	if err != nil {
		return fmt.Errorf("failed to encode commands: %w", err)
	}
	var modsJSON []byte
	if len(e.Modifications) > 0 {
		if modsJSON, err = json.Marshal(e.Modifications); err != nil {
			return fmt.Errorf("failed to encode modifications: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries (id, created_at, request, model, commands_json, modifications_json, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Timestamp.UnixNano(), e.Request, e.Model, string(commandsJSON), nullString(modsJSON), string(e.Outcome), e.Error)
	if err != nil {
		return fmt.Errorf("failed to save history entry: %w", err)
	}
	return nil
}

// List returns up to n entries, newest first. n <= 0 returns all of them.
func (s *Store) List(ctx context.Context, n int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id, created_at, request, model, commands_json, modifications_json, outcome, error
		FROM entries ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if n > 0 {
		query += ` LIMIT ?`
		args = append(args, n)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e            Entry
			createdAt    int64
			commandsJSON string
			modsJSON     sql.NullString
			outcome      string
			errText      sql.NullString
		)
		if err := rows.Scan(&e.ID, &createdAt, &e.Request, &e.Model, &commandsJSON, &modsJSON, &outcome, &errText); err != nil {
			return nil, fmt.Errorf("failed to read history entry: %w", err)
		}
		if err := json.Unmarshal([]byte(commandsJSON), &e.Commands); err != nil {
			return nil, fmt.Errorf("corrupt commands in history entry %s: %w", e.ID, err)
		}
		if modsJSON.Valid && modsJSON.String != "" {
			if err := json.Unmarshal([]byte(modsJSON.String), &e.Modifications); err != nil {
				return nil, fmt.Errorf("corrupt modifications in history entry %s: %w", e.ID, err)
			}
		}
		e.Timestamp = time.Unix(0, createdAt)
		e.Outcome = Outcome(outcome)
		e.Error = errText.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored entries
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Version returns the schema version recorded in the database.
func (s *Store) Version(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = 'version'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("metadata key not found: version")
	}
	return value, err
}

func nullString(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
