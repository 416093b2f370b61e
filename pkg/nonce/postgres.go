// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package nonce

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

const nonceSchema = `
CREATE TABLE IF NOT EXISTS used_nonces (
	app_id VARCHAR(128) NOT NULL,
	nonce VARCHAR(128) NOT NULL,
	expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
	PRIMARY KEY (app_id, nonce)
);

CREATE INDEX IF NOT EXISTS idx_used_nonces_expires ON used_nonces(expires_at);
`

// An expired row is taken over by the new reservation, a live one is left untouched.
const reserveQuery = `
INSERT INTO used_nonces (app_id, nonce, expires_at)
VALUES ($1, $2, NOW() + $3::bigint * INTERVAL '1 millisecond')
ON CONFLICT (app_id, nonce) DO UPDATE SET
	expires_at = EXCLUDED.expires_at
WHERE used_nonces.expires_at <= NOW()
`

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgresStore on top of an open database and creates the schema.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	store := &PostgresStore{db: db}

	if err := store.migrate(ctx); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, nonceSchema)

	return err
}

// Reserve implements Store.
func (s *PostgresStore) Reserve(ctx context.Context, appID, nonce string, ttl time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx, reserveQuery, appID, nonce, ttl.Milliseconds())
	if err != nil {
		return false, fmt.Errorf("failed to reserve nonce: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// Purge deletes expired reservations and returns how many were removed.
func (s *PostgresStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM used_nonces WHERE expires_at <= NOW()")
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
