package search

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultLimit is the number of matches kept per query.
const DefaultLimit = 100

// overFetch widens the fts query since one entity may match through several
// of its names.
const overFetch = 4

var ErrSQLiteIndex = errors.New("sqlite search index")

var notAlphanumeric = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// BuildIndex (re)creates the full-text table over entity labels and aliases.
// It expects the entities and aliases tables written by kb.SQLiteStore.
func BuildIndex(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`DROP TABLE IF EXISTS entity_names`,
		`CREATE VIRTUAL TABLE entity_names USING fts5(id UNINDEXED, name)`,
		`INSERT INTO entity_names (id, name) SELECT id, label FROM entities WHERE label != ''`,
		`INSERT INTO entity_names (id, name) SELECT entity_id, alias FROM aliases`,
	}
	for _, stmt := range statements {
		_, err := db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("%w: building index: %w", ErrSQLiteIndex, err)
		}
	}
	return nil
}

// SQLiteIndex is a Searcher over the entity_names fts5 table. Scores are
// negated bm25 ranks, so larger is better.
type SQLiteIndex struct {
	db    *sql.DB
	limit int
}

func NewSQLiteIndex(db *sql.DB, limit int) *SQLiteIndex {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &SQLiteIndex{db: db, limit: limit}
}

func (s *SQLiteIndex) BatchQuery(ctx context.Context, queries []string) (map[string][]Match, error) {
	result := make(map[string][]Match, len(queries))
	for _, q := range queries {
		if _, done := result[q]; done {
			continue
		}
		matches, err := s.query(ctx, q)
		if err != nil {
			return nil, err
		}
		result[q] = matches
	}
	return result, nil
}

func (s *SQLiteIndex) query(ctx context.Context, text string) ([]Match, error) {
	expr := MatchExpression(text)
	if expr == "" {
		return []Match{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, rank FROM entity_names WHERE entity_names MATCH ? ORDER BY rank LIMIT ?`,
		expr, s.limit*overFetch)
	if err != nil {
		return nil, fmt.Errorf("%w: querying %q: %w", ErrSQLiteIndex, text, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	matches := []Match{}
	seen := make(map[string]bool)
	for rows.Next() {
		var id string
		var rank float64
		err = rows.Scan(&id, &rank)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning %q: %w", ErrSQLiteIndex, text, err)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		matches = append(matches, Match{ID: id, Score: -rank})
		if len(matches) == s.limit {
			break
		}
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("%w: iterating %q: %w", ErrSQLiteIndex, text, err)
	}

	return matches, nil
}

// MatchExpression turns free text into an fts5 query matching any of its
// lower-cased alphanumeric tokens. Text without tokens yields "".
func MatchExpression(text string) string {
	words := strings.Fields(notAlphanumeric.ReplaceAllString(strings.ToLower(text), " "))
	if len(words) == 0 {
		return ""
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = `"` + w + `"`
	}
	return strings.Join(quoted, " OR ")
}
