// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package secret

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // postgres driver
)

const resolveQuery = `
SELECT app_secret, cipher_key
FROM app_credentials
WHERE app_id = $1 AND status = 1
`

// PostgresResolver resolves secrets from the app_credentials table.
type PostgresResolver struct {
	db *sql.DB
}

// NewPostgresResolver creates a PostgresResolver on top of an open database.
func NewPostgresResolver(db *sql.DB) *PostgresResolver {
	return &PostgresResolver{db: db}
}

// Resolve implements Resolver.
func (r *PostgresResolver) Resolve(ctx context.Context, appID string) (*Secret, error) {
	s := Secret{AppID: appID}

	err := r.db.QueryRowContext(ctx, resolveQuery, appID).Scan(&s.AppSecret, &s.CipherKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, appID)
	}

	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}

	if err = s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}
