package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SignatureStore implements fhe.Store for SQLite
type SignatureStore struct {
	db *DB
}

// NewSignatureStore creates a new SignatureStore
func NewSignatureStore(db *DB) *SignatureStore {
	return &SignatureStore{db: db}
}

// Get returns the payload stored under key.
func (s *SignatureStore) Get(ctx context.Context, key string) (string, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM decryption_signatures WHERE storage_key = ?`, key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get signature: %w", err)
	}
	return payload, true, nil
}

// Put inserts or replaces the payload under key.
func (s *SignatureStore) Put(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO decryption_signatures (storage_key, payload, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(storage_key) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to put signature: %w", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SignatureStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM decryption_signatures WHERE storage_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete signature: %w", err)
	}
	return nil
}

// Count returns the number of stored signatures.
func (s *SignatureStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decryption_signatures`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count signatures: %w", err)
	}
	return n, nil
}
