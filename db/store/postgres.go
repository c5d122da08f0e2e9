package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const (
	getDocument = `SELECT value, version FROM documents WHERE path = $1`

	listChildren = `SELECT path, value FROM documents WHERE parent = $1`

	upsertDocument = `INSERT INTO documents (path, parent, value, version)
VALUES ($1, $2, $3, 1)
ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, version = documents.version + 1, updated_at = now()`

	mergeDocument = `INSERT INTO documents (path, parent, value, version)
VALUES ($1, $2, $3, 1)
ON CONFLICT (path) DO UPDATE SET value = (documents.value || EXCLUDED.value) - ARRAY(SELECT jsonb_array_elements_text($4::jsonb)), version = documents.version + 1, updated_at = now()`

	insertDocumentIfAbsent = `INSERT INTO documents (path, parent, value, version)
VALUES ($1, $2, $3, 1)
ON CONFLICT (path) DO NOTHING`

	compareAndSwapDocument = `UPDATE documents SET value = $2, version = version + 1, updated_at = now()
WHERE path = $1 AND version = $3`
)

// PostgresStore keeps every path as a row of the documents table. The version
// column turns each Transaction into a conditional UPDATE, which is the same
// single-path compare-and-swap the other backends offer.
type PostgresStore struct {
	db      *sql.DB
	retries int
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, retries: DefaultTxRetries}
}

// Migrate brings the documents schema up to date.
func Migrate(sourceURL, databaseURL string) error {
	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return fmt.Errorf("unable to instantiate the database schema migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("unable to migrate up to the latest database schema: %w", err)
	}
	return nil
}

func parentOf(clean string) string {
	parent := path.Dir(clean)
	if parent == "." {
		return ""
	}
	return parent
}

func (s *PostgresStore) read(ctx context.Context, clean string) ([]byte, int64, error) {
	var raw []byte
	var version int64
	err := s.db.QueryRowContext(ctx, getDocument, clean).Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	return raw, version, err
}

func (s *PostgresStore) Get(ctx context.Context, p string, v interface{}) (bool, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return false, err
	}
	raw, _, err := s.read(ctx, clean)
	if err != nil {
		return false, err
	}
	node := RawNode{Raw: raw}
	if !node.Exists() {
		return false, nil
	}
	return true, node.Unmarshal(v)
}

func (s *PostgresStore) Set(ctx context.Context, p string, v interface{}) error {
	clean, err := CleanPath(p)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, upsertDocument, clean, parentOf(clean), string(raw))
	return err
}

func (s *PostgresStore) Update(ctx context.Context, p string, fields map[string]interface{}) error {
	clean, err := CleanPath(p)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return errors.New("store: update requires at least one field")
	}
	raw, err := mergeFields(nil, fields)
	if err != nil {
		return err
	}
	removed := []string{}
	for k, v := range fields {
		if v == nil {
			removed = append(removed, k)
		}
	}
	sort.Strings(removed)
	removedRaw, err := json.Marshal(removed)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, mergeDocument, clean, parentOf(clean), string(raw), string(removedRaw))
	return err
}

func (s *PostgresStore) Push(ctx context.Context, p string, v interface{}) (string, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return "", err
	}
	key := uuid.Must(uuid.NewV7()).String()
	if err := s.Set(ctx, Join(clean, key), v); err != nil {
		return "", err
	}
	return key, nil
}

func (s *PostgresStore) Children(ctx context.Context, p string) (map[string]Node, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, listChildren, clean)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Node)
	for rows.Next() {
		var child string
		var raw []byte
		if err := rows.Scan(&child, &raw); err != nil {
			return nil, err
		}
		node := RawNode{Raw: raw}
		if node.Exists() {
			out[path.Base(child)] = node
		}
	}
	return out, rows.Err()
}

func (s *PostgresStore) Transaction(ctx context.Context, p string, fn UpdateFunc) (TxResult, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return TxResult{}, err
	}

	for i := 0; i < s.retries; i++ {
		current, version, err := s.read(ctx, clean)
		if err != nil {
			return TxResult{}, err
		}

		next, err := runUpdate(fn, current)
		if errors.Is(err, ErrAbort) {
			return TxResult{Committed: false, Value: RawNode{Raw: current}}, nil
		} else if err != nil {
			return TxResult{}, err
		}

		var res sql.Result
		if version == 0 {
			res, err = s.db.ExecContext(ctx, insertDocumentIfAbsent, clean, parentOf(clean), string(next))
		} else {
			res, err = s.db.ExecContext(ctx, compareAndSwapDocument, clean, string(next), version)
		}
		if isRetryable(err) {
			continue
		} else if err != nil {
			return TxResult{}, err
		}

		n, err := res.RowsAffected()
		if err != nil {
			return TxResult{}, err
		}
		if n == 1 {
			return TxResult{Committed: true, Value: RawNode{Raw: next}}, nil
		}
	}
	return TxResult{}, ErrTooManyRetries
}

// SetRetries changes how many times Transaction re-runs its callback after losing a race.
func (s *PostgresStore) SetRetries(n int) {
	if n > 0 {
		s.retries = n
	}
}
