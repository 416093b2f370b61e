// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package message binds signature envelopes to HTTP requests and gRPC metadata.
package message

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/siderolabs/go-app-signature/pkg/signature"
)

const (
	// AppIDHeaderKey is the header name for the application identifier.
	AppIDHeaderKey = "appId"

	// SignatureHeaderKey is the header name for the signature ciphertext.
	SignatureHeaderKey = "signature"

	// TimestampHeaderKey is the header name for the millisecond timestamp.
	TimestampHeaderKey = "timestamp"

	// NonceHeaderKey is the header name for the nonce.
	NonceHeaderKey = "nonce"

	// IVHeaderKey is the header name for the base64 initialization vector.
	IVHeaderKey = "iv"
)

var (
	// ErrNotFound is returned when a metadata header is not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTimestamp is returned when the timestamp header is not an integer.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

type headerGetter func(key string) string

func parseTimestamp(value string) (int64, error) {
	if value == "" {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, TimestampHeaderKey)
	}

	timestamp, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
	}

	return timestamp, nil
}

// parseEnvelope reads the envelope headers.
//
// Missing headers are left empty, so that they are reported by the verifier.
func parseEnvelope(get headerGetter) (signature.Envelope, error) {
	env := signature.Envelope{
		Ciphertext: get(SignatureHeaderKey),
		Nonce:      get(NonceHeaderKey),
		IV:         get(IVHeaderKey),
	}

	timestamp, err := parseTimestamp(get(TimestampHeaderKey))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return env, err
	}

	env.Timestamp = timestamp

	return env, nil
}

func envelopeHeaders(appID string, env *signature.Envelope) [][2]string {
	return [][2]string{
		{AppIDHeaderKey, appID},
		{SignatureHeaderKey, env.Ciphertext},
		{TimestampHeaderKey, strconv.FormatInt(env.Timestamp, 10)},
		{NonceHeaderKey, env.Nonce},
		{IVHeaderKey, env.IV},
	}
}

func verify(get headerGetter, fn func(appID string, env signature.Envelope) signature.Result) signature.Result {
	env, err := parseEnvelope(get)
	if err != nil {
		// an unparsable timestamp is not a timestamp
		env.Timestamp = 0
	}

	return fn(get(AppIDHeaderKey), env)
}
