// Package sqlitestore keeps notes in a single SQLCipher database file, one row
// per document. When a key is configured the file is encrypted at rest.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kuitang/notes-backend/internal/notes"
)

const (
	// MaxOpenConns bounds the pool. SQLite is single-writer, so high
	// connection counts are counterproductive.
	MaxOpenConns = 4
	MaxIdleConns = 2
)

const schema = `
CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_user_id ON notes(user_id);
`

const columns = `id, user_id, title, content, created_at, updated_at`

// Options configures Open.
type Options struct {
	// Path is the database file. Parent directories are created.
	Path string
	// Key is the raw SQLCipher key. Nil leaves the file unencrypted.
	Key []byte
}

// Store is a notes.Store over database/sql.
type Store struct {
	db *sql.DB
}

var (
	_ notes.Store              = (*Store)(nil)
	_ notes.ConditionalCreator = (*Store)(nil)
)

// Open opens (creating if needed) the database at opts.Path and applies the
// schema. A wrong key surfaces here as an error.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("sqlitestore: path is required")
	}
	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dsn(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open note database: %w", err)
	}
	db.SetMaxOpenConns(MaxOpenConns)
	db.SetMaxIdleConns(MaxIdleConns)

	// Touching sqlite_master forces SQLCipher to decrypt page 1.
	var tables int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&tables); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify note database (wrong key?): %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize note schema: %w", err)
	}
	return &Store{db: db}, nil
}

func dsn(opts Options) string {
	params := []string{"_journal_mode=WAL", "_synchronous=NORMAL", "_busy_timeout=5000"}
	if len(opts.Key) > 0 {
		// Format: file.db?_pragma_key=x'HEX_KEY'&_pragma_cipher_page_size=4096
		params = append([]string{
			fmt.Sprintf("_pragma_key=x'%s'", hex.EncodeToString(opts.Key)),
			"_pragma_cipher_page_size=4096",
		}, params...)
	}
	return opts.Path + "?" + strings.Join(params, "&")
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, id string) (notes.Note, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM notes WHERE id = ?`, id)
	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return notes.Note{}, false, nil
	}
	if err != nil {
		return notes.Note{}, false, fmt.Errorf("get note: %w", err)
	}
	return note, true, nil
}

func (s *Store) Put(ctx context.Context, note notes.Note, mode notes.PutMode) error {
	var query string
	switch mode {
	case notes.PutMerge:
		query = `INSERT INTO notes (` + columns + `) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				content = excluded.content,
				updated_at = excluded.updated_at`
	default:
		query = `INSERT INTO notes (` + columns + `) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				user_id = excluded.user_id,
				title = excluded.title,
				content = excluded.content,
				created_at = excluded.created_at,
				updated_at = excluded.updated_at`
	}
	if _, err := s.db.ExecContext(ctx, query, noteArgs(note)...); err != nil {
		return fmt.Errorf("put note: %w", err)
	}
	return nil
}

// Create inserts note unless its id is taken, in which case it returns
// notes.ErrAlreadyExists. The primary key makes this atomic.
func (s *Store) Create(ctx context.Context, note notes.Note) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (`+columns+`) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		noteArgs(note)...)
	if err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	if n == 0 {
		return notes.ErrAlreadyExists
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]notes.Note, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM notes WHERE user_id = ?`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []notes.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (notes.Note, error) {
	var n notes.Note
	err := row.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func noteArgs(n notes.Note) []any {
	return []any{n.ID, n.OwnerID, n.Title, n.Content, n.CreatedAt, n.UpdatedAt}
}
