// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package secret

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/siderolabs/go-app-signature/pkg/cbc"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GeneratedSecretLength is the length of generated app secrets.
const GeneratedSecretLength = 16

// Generate creates new app credentials from the random source, crypto/rand if r is nil.
//
// The app ID is a random UUID without dashes, the secret and cipher key are alphanumeric.
func Generate(r io.Reader) (Secret, error) {
	if r == nil {
		r = rand.Reader
	}

	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		return Secret{}, fmt.Errorf("failed to generate app ID: %w", err)
	}

	appSecret, err := randomString(r, GeneratedSecretLength)
	if err != nil {
		return Secret{}, fmt.Errorf("failed to generate app secret: %w", err)
	}

	cipherKey, err := randomString(r, cbc.KeySize)
	if err != nil {
		return Secret{}, fmt.Errorf("failed to generate cipher key: %w", err)
	}

	return Secret{
		AppID:     strings.ReplaceAll(id.String(), "-", ""),
		AppSecret: appSecret,
		CipherKey: cipherKey,
	}, nil
}

// randomString draws n characters of the alphabet, rejecting bytes which would bias the result.
func randomString(r io.Reader, n int) (string, error) {
	const limit = 256 - 256%len(alphabet)

	var (
		sb  strings.Builder
		buf [1]byte
	)

	sb.Grow(n)

	for sb.Len() < n {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return "", err
		}

		if int(buf[0]) >= limit {
			continue
		}

		sb.WriteByte(alphabet[int(buf[0])%len(alphabet)])
	}

	return sb.String(), nil
}
