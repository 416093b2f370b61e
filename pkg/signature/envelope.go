// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package signature implements generation and verification of request signatures.
//
// A signature is the encryption of the canonical claims (app ID, timestamp, nonce, app secret
// and optionally the body hash) with the cipher key shared between the client and the server.
// The server accepts a signature once: freshness is bounded by the timestamp window, reuse by
// a nonce reservation.
package signature

import "time"

const (
	// DefaultWindow is the maximum allowed difference between the signer and the verifier clocks.
	DefaultWindow = 5 * time.Minute

	// DefaultNonceTTL is how long a nonce stays reserved. It must be at least the window.
	DefaultNonceTTL = 10 * time.Minute

	// DefaultDependencyTimeout bounds the nonce store and resolver calls.
	DefaultDependencyTimeout = 2 * time.Second
)

// Envelope is the signature sent along with a request.
type Envelope struct {
	// Ciphertext is the base64 encrypted canonical claims.
	Ciphertext string `json:"signature"`
	// Nonce is the one-time token of this signature.
	Nonce string `json:"nonce"`
	// IV is the base64 initialization vector.
	IV string `json:"iv"`
	// Timestamp is the creation time in milliseconds since the epoch.
	Timestamp int64 `json:"timestamp"`
}

// Time returns the envelope timestamp.
func (e *Envelope) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

func (e *Envelope) missingField() string {
	switch {
	case e.Ciphertext == "":
		return "signature"
	case e.Timestamp == 0:
		return "timestamp"
	case e.Nonce == "":
		return "nonce"
	case e.IV == "":
		return "iv"
	}

	return ""
}
