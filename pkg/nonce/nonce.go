// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package nonce provides one-time token stores used for replay protection.
package nonce

import (
	"context"
	"time"
)

// KeyPrefix is prepended to the keys of the stores which share a namespace with other data.
const KeyPrefix = "api_nonce:"

// Store reserves nonces.
//
// Reserve must be a single atomic operation: it returns true only if the nonce was not
// present and is now marked as used for at least ttl. Concurrent calls with the same
// appID and nonce must return true at most once.
type Store interface {
	Reserve(ctx context.Context, appID, nonce string, ttl time.Duration) (bool, error)
}

// Key returns the storage key of the nonce for the app.
func Key(appID, nonce string) string {
	return KeyPrefix + appID + ":" + nonce
}
