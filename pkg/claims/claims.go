// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package claims contains the canonical plaintext representation of a signature.
package claims

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Claim keys in their canonical order.
const (
	AppIDKey     = "appId"
	TimestampKey = "timestamp"
	NonceKey     = "nonce"
	AppSecretKey = "appSecret"
	DataHashKey  = "dataHash"
)

// ErrMalformed is returned when the plaintext can't be parsed into claims.
var ErrMalformed = errors.New("malformed claims")

// Claims is the plaintext which is encrypted to form a signature.
//
// Values must not contain '&' or '='.
type Claims struct {
	AppID     string
	Nonce     string
	AppSecret string
	DataHash  string
	Timestamp int64
}

// Encode serializes the claims in the fixed field order.
func Encode(c Claims) string {
	var sb strings.Builder

	sb.WriteString(AppIDKey + "=" + c.AppID)
	sb.WriteString("&" + TimestampKey + "=" + strconv.FormatInt(c.Timestamp, 10))
	sb.WriteString("&" + NonceKey + "=" + c.Nonce)
	sb.WriteString("&" + AppSecretKey + "=" + c.AppSecret)

	if c.DataHash != "" {
		sb.WriteString("&" + DataHashKey + "=" + c.DataHash)
	}

	return sb.String()
}

// Decode parses the output of Encode.
//
// Unknown keys are ignored.
func Decode(s string) (*Claims, error) {
	var (
		c    Claims
		seen = map[string]bool{}
	)

	for _, pair := range strings.Split(s, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		switch key {
		case AppIDKey:
			c.AppID = value
		case TimestampKey:
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid %s: %q", ErrMalformed, TimestampKey, value)
			}

			c.Timestamp = ts
		case NonceKey:
			c.Nonce = value
		case AppSecretKey:
			c.AppSecret = value
		case DataHashKey:
			c.DataHash = value
		default:
			continue
		}

		seen[key] = true
	}

	for _, key := range []string{AppIDKey, TimestampKey, NonceKey, AppSecretKey} {
		if !seen[key] {
			return nil, fmt.Errorf("%w: missing %s", ErrMalformed, key)
		}
	}

	return &c, nil
}

// HashBody returns the lowercase hex SHA-256 of the body.
func HashBody(body []byte) string {
	sum := sha256.Sum256(body)

	return hex.EncodeToString(sum[:])
}
