package postgres

import (
	"context"
)

// PutBlob stores data under key, replacing any previous value.
func (s *Store) PutBlob(ctx context.Context, key string, data []byte) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO blobs (key, data) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data`, key, data)
	return err
}

// GetBlob returns the bytes stored under key.
func (s *Store) GetBlob(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM blobs WHERE key = $1`, key).Scan(&data)
	if err != nil {
		return nil, notFound(err)
	}
	return data, nil
}

// DeleteBlob removes key.
func (s *Store) DeleteBlob(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM blobs WHERE key = $1`, key)
	return err
}
