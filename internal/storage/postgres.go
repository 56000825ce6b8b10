package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// queryTimeout is applied to every database query.
const queryTimeout = 5 * time.Second

// pgTable describes where a collection lives in Postgres.
type pgTable struct {
	name   string
	keyCol string
}

// pgTables is the fixed collection → table mapping. Table and column names
// are never taken from user input.
var pgTables = map[string]pgTable{
	CollectionShipments:     {name: "shipments", keyCol: "code"},
	CollectionDrivers:       {name: "drivers", keyCol: "id"},
	CollectionUsers:         {name: "users", keyCol: "username"},
	CollectionSettings:      {name: "settings", keyCol: "key"},
	CollectionRefreshTokens: {name: "refresh_tokens", keyCol: "token_hash"},
}

// pgDocumentStore is the pgx-backed implementation of DocumentStore.
// Every table has a text key column, a JSONB data column and updated_at.
type pgDocumentStore struct {
	pool *pgxpool.Pool
}

// NewCloudBackend returns a Backend that stores documents in Postgres.
// The pool is owned by the caller; closing the Backend does not close it.
func NewCloudBackend(pool *pgxpool.Pool) *Backend {
	return &Backend{Kind: BackendCloud, Store: &pgDocumentStore{pool: pool}}
}

func (s *pgDocumentStore) table(collection string) (pgTable, error) {
	t, ok := pgTables[collection]
	if !ok {
		return pgTable{}, errUnknownCollection(collection)
	}
	return t, nil
}

// Get returns the document under key, or (nil, nil) if not found.
func (s *pgDocumentStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	t, err := s.table(collection)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var data []byte
	err = s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE %s = $1`, t.name, t.keyCol),
		key,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: Get %s/%s: %w", collection, key, err)
	}
	return data, nil
}

// Put upserts the document under key.
func (s *pgDocumentStore) Put(ctx context.Context, collection, key string, data []byte) error {
	t, err := s.table(collection)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	q := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (%[2]s)
		DO UPDATE SET
			data       = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`, t.name, t.keyCol)

	if _, err := s.pool.Exec(ctx, q, key, data); err != nil {
		return fmt.Errorf("storage: Put %s/%s: %w", collection, key, err)
	}
	return nil
}

// Delete removes the document under key.
func (s *pgDocumentStore) Delete(ctx context.Context, collection, key string) error {
	t, err := s.table(collection)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err = s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, t.name, t.keyCol),
		key)
	if err != nil {
		return fmt.Errorf("storage: Delete %s/%s: %w", collection, key, err)
	}
	return nil
}

// List returns all documents in collection ordered by key.
func (s *pgDocumentStore) List(ctx context.Context, collection string) ([]Document, error) {
	t, err := s.table(collection)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s, data, updated_at FROM %s ORDER BY %s`, t.keyCol, t.name, t.keyCol))
	if err != nil {
		return nil, fmt.Errorf("storage: List %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.Key, &d.Data, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: List %s: scan: %w", collection, err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: List %s: %w", collection, err)
	}
	return docs, nil
}

// Close is a no-op; the pool is closed by its owner.
func (s *pgDocumentStore) Close() error { return nil }
