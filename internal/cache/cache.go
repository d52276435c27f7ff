// Package cache stores assembled bytecode in SQLite, keyed by the hash of
// its text. Entries are identified by UUID.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/funvibe/shadevm/internal/logging"
	"github.com/funvibe/shadevm/internal/vm"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for ids the cache does not hold.
var ErrNotFound = errors.New("program not in cache")

// MemoryPath opens a private in-memory cache.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS programs (
	id      TEXT PRIMARY KEY,
	hash    TEXT NOT NULL UNIQUE,
	kind    TEXT NOT NULL,
	name    TEXT NOT NULL,
	uses    INTEGER NOT NULL,
	text    TEXT NOT NULL,
	created INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS programs_name ON programs(name);
`

// Entry is one cached program.
type Entry struct {
	ID      uuid.UUID
	Hash    string
	Kind    string
	Name    string
	Uses    uint64
	Text    string
	Created time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	db   *sql.DB
	path string
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", path, err)
	}
	if path == MemoryPath {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema in %s: %w", path, err)
	}
	logging.Logger().Debug("cache opened", "path", path)
	return &Cache{db: db, path: path}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// Hash is the content key of a bytecode text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Put assembles text and stores it. Storing text that is already cached
// returns the existing entry.
func (c *Cache) Put(ctx context.Context, file, text string) (Entry, error) {
	prog, err := vm.Assemble(file, text)
	if err != nil {
		return Entry{}, err
	}
	hash := Hash(text)
	if e, err := c.byHash(ctx, hash); err == nil {
		return e, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Entry{}, err
	}

	e := Entry{
		ID:      uuid.New(),
		Hash:    hash,
		Kind:    prog.Kind,
		Name:    prog.Name,
		Uses:    prog.Uses,
		Text:    text,
		Created: time.Now().UTC(),
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO programs (id, hash, kind, name, uses, text, created) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(hash) DO NOTHING`,
		e.ID.String(), e.Hash, e.Kind, e.Name, int64(e.Uses), e.Text, e.Created.UnixNano())
	if err != nil {
		return Entry{}, fmt.Errorf("storing %s: %w", prog.Name, err)
	}
	// A concurrent Put of the same text may have won.
	stored, err := c.byHash(ctx, hash)
	if err != nil {
		return Entry{}, err
	}
	if stored.ID == e.ID {
		logging.Logger().Info("program cached", "id", e.ID, "shader", e.Name)
	}
	return stored, nil
}

const columns = `id, hash, kind, name, uses, text, created`

func scan(row interface{ Scan(...any) error }) (Entry, error) {
	var (
		e       Entry
		id      string
		uses    int64
		created int64
	)
	if err := row.Scan(&id, &e.Hash, &e.Kind, &e.Name, &uses, &e.Text, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Entry{}, fmt.Errorf("corrupt cache id %q: %w", id, err)
	}
	e.ID = parsed
	e.Uses = uint64(uses)
	e.Created = time.Unix(0, created).UTC()
	return e, nil
}

func (c *Cache) byHash(ctx context.Context, hash string) (Entry, error) {
	return scan(c.db.QueryRowContext(ctx, `SELECT `+columns+` FROM programs WHERE hash = ?`, hash))
}

// Get returns the entry with the given id.
func (c *Cache) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	e, err := scan(c.db.QueryRowContext(ctx, `SELECT `+columns+` FROM programs WHERE id = ?`, id.String()))
	if err != nil {
		return Entry{}, fmt.Errorf("get %s: %w", id, err)
	}
	return e, nil
}

// Program loads the cached program with the given id.
func (c *Cache) Program(ctx context.Context, id uuid.UUID) (*vm.Program, error) {
	e, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return vm.Assemble(e.Name+".slx", e.Text)
}

// List returns every entry, newest first.
func (c *Cache) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+columns+` FROM programs ORDER BY created DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes one entry.
func (c *Cache) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM programs WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	return nil
}

// Purge removes every entry and returns how many there were.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM programs`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
