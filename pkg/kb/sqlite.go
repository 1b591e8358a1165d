package kb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/willbeason/table-linking/pkg/workers"
	_ "modernc.org/sqlite"
)

// maxVariables bounds the number of ids bound into a single IN clause.
const maxVariables = 500

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	id          TEXT PRIMARY KEY,
	label       TEXT NOT NULL,
	description TEXT NOT NULL,
	popularity  REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS aliases (
	entity_id TEXT NOT NULL,
	position  INTEGER NOT NULL,
	alias     TEXT NOT NULL,
	PRIMARY KEY (entity_id, position)
);
CREATE TABLE IF NOT EXISTS instance_of (
	entity_id TEXT NOT NULL,
	position  INTEGER NOT NULL,
	type_id   TEXT NOT NULL,
	PRIMARY KEY (entity_id, position)
);
CREATE TABLE IF NOT EXISTS subclass_of (
	type_id   TEXT NOT NULL,
	position  INTEGER NOT NULL,
	parent_id TEXT NOT NULL,
	PRIMARY KEY (type_id, position)
);
`

var ErrSQLiteStore = errors.New("sqlite entity store")

// SQLiteStore is an EntityStore and Ontology backed by a sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the knowledge base at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %q: %w", ErrSQLiteStore, path, err)
	}

	_, err = db.ExecContext(ctx, schema)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: creating schema: %w", ErrSQLiteStore, err)
	}

	return &SQLiteStore{db: db}, nil
}

// DB exposes the underlying handle so the search index can share the file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Import writes records in a single transaction, replacing existing entries.
func (s *SQLiteStore) Import(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: starting import: %w", ErrSQLiteStore, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, r := range records {
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO entities (id, label, description, popularity) VALUES (?, ?, ?, ?)`,
			r.ID, r.Label, r.Description, r.Popularity)
		if err != nil {
			return fmt.Errorf("%w: inserting entity %q: %w", ErrSQLiteStore, r.ID, err)
		}

		err = replaceList(ctx, tx, "aliases", "entity_id", "alias", r.ID, r.Aliases)
		if err != nil {
			return err
		}
		err = replaceList(ctx, tx, "instance_of", "entity_id", "type_id", r.ID, r.InstanceOf)
		if err != nil {
			return err
		}
		err = replaceList(ctx, tx, "subclass_of", "type_id", "parent_id", r.ID, r.SubclassOf)
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("%w: committing import: %w", ErrSQLiteStore, err)
	}
	return nil
}

func replaceList(ctx context.Context, tx *sql.Tx, table, keyColumn, valueColumn, key string, values []string) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, table, keyColumn), key)
	if err != nil {
		return fmt.Errorf("%w: clearing %s for %q: %w", ErrSQLiteStore, table, key, err)
	}

	insert := fmt.Sprintf(`INSERT INTO %s (%s, position, %s) VALUES (?, ?, ?)`, table, keyColumn, valueColumn)
	for i, v := range values {
		_, err = tx.ExecContext(ctx, insert, key, i, v)
		if err != nil {
			return fmt.Errorf("%w: inserting into %s for %q: %w", ErrSQLiteStore, table, key, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Metadata(ctx context.Context, ids []string) (map[string]Metadata, error) {
	result := make(map[string]Metadata, len(ids))

	for _, chunk := range workers.Chunk(ids, maxVariables) {
		query := `SELECT id, label, description FROM entities WHERE id IN (` + placeholders(len(chunk)) + `)`
		rows, err := s.db.QueryContext(ctx, query, toArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("%w: querying metadata: %w", ErrSQLiteStore, err)
		}
		for rows.Next() {
			var id string
			var m Metadata
			err = rows.Scan(&id, &m.Label, &m.Description)
			if err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("%w: scanning metadata: %w", ErrSQLiteStore, err)
			}
			result[id] = m
		}
		err = closeRows(rows)
		if err != nil {
			return nil, err
		}

		aliases, err := s.lists(ctx, "aliases", "entity_id", "alias", chunk)
		if err != nil {
			return nil, err
		}
		for id, a := range aliases {
			m, ok := result[id]
			if !ok {
				continue
			}
			m.Aliases = a
			result[id] = m
		}
	}

	return result, nil
}

func (s *SQLiteStore) Popularity(ctx context.Context, ids []string) (map[string]float64, error) {
	result := make(map[string]float64, len(ids))

	for _, chunk := range workers.Chunk(ids, maxVariables) {
		query := `SELECT id, popularity FROM entities WHERE id IN (` + placeholders(len(chunk)) + `)`
		rows, err := s.db.QueryContext(ctx, query, toArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("%w: querying popularity: %w", ErrSQLiteStore, err)
		}
		for rows.Next() {
			var id string
			var popularity float64
			err = rows.Scan(&id, &popularity)
			if err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("%w: scanning popularity: %w", ErrSQLiteStore, err)
			}
			result[id] = popularity
		}
		err = closeRows(rows)
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (s *SQLiteStore) InstanceOf(ctx context.Context, ids []string) (map[string][]string, error) {
	result := make(map[string][]string, len(ids))
	for _, chunk := range workers.Chunk(ids, maxVariables) {
		types, err := s.lists(ctx, "instance_of", "entity_id", "type_id", chunk)
		if err != nil {
			return nil, err
		}
		for id, t := range types {
			result[id] = t
		}
	}
	return result, nil
}

func (s *SQLiteStore) Parents(ctx context.Context, typeID string) ([]string, error) {
	parents, err := s.lists(ctx, "subclass_of", "type_id", "parent_id", []string{typeID})
	if err != nil {
		return nil, err
	}
	return parents[typeID], nil
}

// lists reads the ordered values of a (key, position, value) table.
func (s *SQLiteStore) lists(ctx context.Context, table, keyColumn, valueColumn string, keys []string) (map[string][]string, error) {
	query := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s IN (%s) ORDER BY %s, position`,
		keyColumn, valueColumn, table, keyColumn, placeholders(len(keys)), keyColumn)
	rows, err := s.db.QueryContext(ctx, query, toArgs(keys)...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %w", ErrSQLiteStore, table, err)
	}

	result := make(map[string][]string)
	for rows.Next() {
		var key, value string
		err = rows.Scan(&key, &value)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("%w: scanning %s: %w", ErrSQLiteStore, table, err)
		}
		result[key] = append(result[key], value)
	}
	err = closeRows(rows)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if err != nil {
		_ = rows.Close()
		return fmt.Errorf("%w: iterating rows: %w", ErrSQLiteStore, err)
	}
	return rows.Close()
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func toArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
