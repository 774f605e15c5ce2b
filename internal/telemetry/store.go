package telemetry

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// MetricsFileName is the JSON store's file under the data directory.
const MetricsFileName = "metrics.json"

// MetricsDBName is the SQLite store's file under the data directory.
const MetricsDBName = "metrics.db"

// ErrCorrupt is returned by Store.Load when the persisted document cannot
// be decoded.
var ErrCorrupt = errors.New("metrics document is corrupt")

// Store persists the metrics document.
type Store interface {
	// Load returns the saved document, or nil when nothing has been saved.
	Load() (*Document, error)

	// Save replaces the saved document durably.
	Save(doc *Document) error

	Close() error
}

// decodeDocument decodes the counters and then each log entry on its own,
// so one unreadable entry is dropped instead of discarding the document.
func decodeDocument(data []byte) (*Document, error) {
	var raw struct {
		Document
		QueriesLog []json.RawMessage `json:"queries_log"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	doc := raw.Document
	doc.QueriesLog = make([]QueryLogEntry, 0, len(raw.QueriesLog))
	dropped := 0
	for _, msg := range raw.QueriesLog {
		var entry QueryLogEntry
		if err := json.Unmarshal(msg, &entry); err != nil {
			dropped++
			continue
		}
		doc.QueriesLog = append(doc.QueriesLog, entry)
	}
	if dropped > 0 {
		slog.Warn("metrics_entries_dropped",
			slog.Int("dropped", dropped),
			slog.Int("kept", len(doc.QueriesLog)))
	}
	return &doc, nil
}

// =============================================================================
// JSON file store
// =============================================================================

// JSONFileStore keeps the document in a single JSON file, replaced
// atomically on every save.
type JSONFileStore struct {
	path string
}

var _ Store = (*JSONFileStore)(nil)

// NewJSONFileStore creates a store at path. The file is created on first
// save.
func NewJSONFileStore(path string) *JSONFileStore {
	return &JSONFileStore{path: path}
}

// Path returns the backing file path.
func (s *JSONFileStore) Path() string {
	return s.path
}

// Load reads the file. A missing file is not an error.
func (s *JSONFileStore) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metrics: %w", err)
	}
	return decodeDocument(data)
}

// Save writes the document with indentation.
func (s *JSONFileStore) Save(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *JSONFileStore) Close() error {
	return nil
}

// =============================================================================
// SQLite store
// =============================================================================

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const metricsKey = "metrics"

// SQLiteStore keeps the same JSON document in a single row of a kv table.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLiteStore opens (or creates) the database at path. An empty path
// opens an in-memory database.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create metrics directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open metrics database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.Exec(kvSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create metrics schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load reads the metrics row.
func (s *SQLiteStore) Load() (*Document, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", metricsKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metrics: %w", err)
	}
	return decodeDocument([]byte(value))
}

// Save upserts the metrics row.
func (s *SQLiteStore) Save(doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, metricsKey, string(data))
	if err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// OpenStore opens the store named by backend ("json" or "sqlite") under
// dataDir.
func OpenStore(backend, dataDir string) (Store, error) {
	switch backend {
	case "", "json":
		return NewJSONFileStore(filepath.Join(dataDir, MetricsFileName)), nil
	case "sqlite":
		s, err := OpenSQLiteStore(filepath.Join(dataDir, MetricsDBName))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown metrics backend %q", backend)
	}
}
