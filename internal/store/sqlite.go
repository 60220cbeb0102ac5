package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nubilum/nubilum/jsonv"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Content encodings recorded per row.
const (
	encodingJSON = "json"
	encodingZstd = "zstd"
)

// DB wraps a SQLite database connection.
type DB struct {
	*sql.DB
}

// Open creates a new SQLite database connection.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	return &DB{DB: db}, nil
}

// Migrate runs all pending migrations.
func (db *DB) Migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("query migrations: %w", err)
	}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("scan migration: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var migrations []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			migrations = append(migrations, entry.Name())
		}
	}
	sort.Strings(migrations)

	for _, name := range migrations {
		version := strings.TrimSuffix(name, ".sql")
		if applied[version] {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}

	return nil
}

// SQLiteStore implements Store on SQLite. Content is kept as canonical
// JSON text, zstd-compressed when compression is enabled.
type SQLiteStore struct {
	db       *DB
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

// NewSQLiteStore opens path, migrates it and returns a store.
func NewSQLiteStore(path string, compress bool) (*SQLiteStore, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &SQLiteStore{db: db, compress: compress, enc: enc, dec: dec}, nil
}

// Append stores m.
func (s *SQLiteStore) Append(ctx context.Context, m Message) (int64, error) {
	encoding, content := s.encode(m.Content)

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (envelope_id, header, importance, timestamp, notify,
			encoding, content, conn_id, remote, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.EnvelopeID, m.Header, m.Importance, m.Timestamp, m.Notify,
		encoding, content, m.ConnID, m.Remote, m.ReceivedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	return result.LastInsertId()
}

// Get retrieves a message by sequence number.
func (s *SQLiteStore) Get(ctx context.Context, seq int64) (Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, envelope_id, header, importance, timestamp, notify,
			encoding, content, conn_id, remote, received_at
		FROM messages
		WHERE seq = ?
	`, seq)

	m, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	return m, err
}

// List returns messages in sequence order.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Message, error) {
	query := `
		SELECT seq, envelope_id, header, importance, timestamp, notify,
			encoding, content, conn_id, remote, received_at
		FROM messages
		WHERE seq > ?`
	args := []any{f.AfterSeq}
	if f.Header != "" {
		query += " AND header = ?"
		args = append(args, f.Header)
	}
	query += " ORDER BY seq LIMIT ?"
	args = append(args, f.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Count returns the number of stored messages.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&n)
	return n, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scan(row rowScanner) (Message, error) {
	var (
		m          Message
		encoding   string
		content    []byte
		receivedAt int64
	)
	err := row.Scan(&m.Seq, &m.EnvelopeID, &m.Header, &m.Importance, &m.Timestamp, &m.Notify,
		&encoding, &content, &m.ConnID, &m.Remote, &receivedAt)
	if err != nil {
		return Message{}, err
	}

	m.Content, err = s.decode(encoding, content)
	if err != nil {
		return Message{}, fmt.Errorf("message %d: %w", m.Seq, err)
	}
	m.ReceivedAt = time.UnixMilli(receivedAt)
	return m, nil
}

func (s *SQLiteStore) encode(v *jsonv.Value) (string, []byte) {
	text := jsonv.AppendDump(nil, v)
	if !s.compress {
		return encodingJSON, text
	}
	return encodingZstd, s.enc.EncodeAll(text, nil)
}

func (s *SQLiteStore) decode(encoding string, content []byte) (*jsonv.Value, error) {
	switch encoding {
	case encodingJSON:
	case encodingZstd:
		var err error
		content, err = s.dec.DecodeAll(content, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress content: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown content encoding %q", encoding)
	}

	v, err := jsonv.ParseBytes(content, jsonv.Standard)
	if err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	return v, nil
}
