package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/companion-state/internal/model"
)

// timeFormat is fixed-width so stored timestamps sort lexicographically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// NewID returns a new lexicographically sortable identifier.
func NewID() string {
	return ulid.Make().String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS relationships (
		user_id           INTEGER NOT NULL,
		companion_id      INTEGER NOT NULL,
		intimacy          REAL NOT NULL,
		trust             REAL NOT NULL,
		compatibility     REAL NOT NULL,
		communication     REAL NOT NULL,
		consistency       REAL NOT NULL,
		recent            TEXT NOT NULL DEFAULT '[]',
		interaction_count INTEGER NOT NULL DEFAULT 0,
		type_counts       TEXT NOT NULL DEFAULT '{}',
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL,
		PRIMARY KEY (user_id, companion_id)
	);

	CREATE TABLE IF NOT EXISTS interaction_events (
		id               TEXT PRIMARY KEY,
		user_id          INTEGER NOT NULL,
		companion_id     INTEGER NOT NULL,
		type             TEXT NOT NULL,
		quality          REAL NOT NULL,
		emotional_depth  REAL NOT NULL,
		shared_interests REAL NOT NULL,
		consistency      REAL NOT NULL,
		created_at       TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_pair ON interaction_events(user_id, companion_id, created_at);

	CREATE TABLE IF NOT EXISTS memory_facts (
		id               TEXT PRIMARY KEY,
		user_id          INTEGER NOT NULL,
		companion_id     INTEGER NOT NULL,
		type             TEXT NOT NULL,
		text             TEXT NOT NULL,
		created_at       TEXT NOT NULL,
		last_accessed_at TEXT NOT NULL,
		access_count     INTEGER NOT NULL DEFAULT 0,
		salience         REAL NOT NULL DEFAULT 0,
		state            TEXT NOT NULL DEFAULT 'active',
		archived_at      TEXT,
		deleted_at       TEXT,
		embedding        BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_facts_scope ON memory_facts(user_id, companion_id, state);
	CREATE INDEX IF NOT EXISTS idx_facts_accessed ON memory_facts(last_accessed_at DESC);

	CREATE TABLE IF NOT EXISTS reflections (
		id                    TEXT PRIMARY KEY,
		user_id               INTEGER NOT NULL,
		companion_id          INTEGER NOT NULL,
		type                  TEXT NOT NULL,
		content               TEXT NOT NULL,
		insights              TEXT NOT NULL,
		key_themes            TEXT NOT NULL,
		emotional_patterns    TEXT NOT NULL,
		relationship_progress TEXT NOT NULL,
		trigger_reason        TEXT NOT NULL,
		created_at            TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reflections_pair ON reflections(user_id, companion_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS dreams (
		id              TEXT PRIMARY KEY,
		user_id         INTEGER NOT NULL,
		companion_id    INTEGER NOT NULL,
		content         TEXT NOT NULL,
		emotional_state TEXT NOT NULL,
		symbolism       TEXT NOT NULL,
		connections     TEXT NOT NULL,
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_dreams_pair ON dreams(user_id, companion_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS cooldowns (
		companion_id INTEGER NOT NULL,
		type         TEXT NOT NULL,
		fired_at     TEXT NOT NULL,
		PRIMARY KEY (companion_id, type)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ListPairs returns every pair that has relationship or memory state.
func (s *SQLiteStore) ListPairs(ctx context.Context) ([]model.Pair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, companion_id FROM relationships
		UNION
		SELECT user_id, companion_id FROM memory_facts
		ORDER BY 1, 2`)
	if err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}
	defer rows.Close()

	var pairs []model.Pair
	for rows.Next() {
		var p model.Pair
		if err := rows.Scan(&p.UserID, &p.CompanionID); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(v string) time.Time {
	t, _ := time.Parse(timeFormat, v)
	return t
}

func nullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := formatTime(*t)
	return &v
}

func scanNullTime(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t := parseTime(v.String)
	return &t
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func encodeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	result := make([]float32, len(data)/4)
	for i := range result {
		result[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return result
}
