// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package signature_test

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-app-signature/pkg/cbc"
	"github.com/siderolabs/go-app-signature/pkg/claims"
	"github.com/siderolabs/go-app-signature/pkg/signature"
)

func TestGenerate(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	g := signature.NewGenerator(signature.WithGeneratorClock(func() time.Time { return now }))

	env, err := g.Generate(appID, appSecret, cipherKey, body)
	require.NoError(t, err)

	assert.Equal(t, int64(1700000000123), env.Timestamp)
	assert.Equal(t, now, env.Time())
	assert.Regexp(t, "^[0-9a-f]{32}$", env.Nonce)

	iv, err := base64.StdEncoding.DecodeString(env.IV)
	require.NoError(t, err)
	assert.Len(t, iv, cbc.IVSize)

	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	require.NoError(t, err)

	plaintext, err := cbc.Open(ciphertext, []byte(cipherKey), iv)
	require.NoError(t, err)

	c, err := claims.Decode(string(plaintext))
	require.NoError(t, err)

	assert.Equal(t, claims.Claims{
		AppID:     appID,
		Timestamp: env.Timestamp,
		Nonce:     env.Nonce,
		AppSecret: appSecret,
		DataHash:  claims.HashBody(body),
	}, *c)
}

func TestGenerateWithoutBody(t *testing.T) {
	env, err := signature.NewGenerator().Generate(appID, appSecret, cipherKey, nil)
	require.NoError(t, err)

	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	require.NoError(t, err)

	iv, err := base64.StdEncoding.DecodeString(env.IV)
	require.NoError(t, err)

	plaintext, err := cbc.Open(ciphertext, []byte(cipherKey), iv)
	require.NoError(t, err)

	assert.NotContains(t, string(plaintext), claims.DataHashKey)
}

func TestGenerateFreshness(t *testing.T) {
	g := signature.NewGenerator()

	env1, err := g.Generate(appID, appSecret, cipherKey, body)
	require.NoError(t, err)

	env2, err := g.Generate(appID, appSecret, cipherKey, body)
	require.NoError(t, err)

	assert.NotEqual(t, env1.Nonce, env2.Nonce)
	assert.NotEqual(t, env1.IV, env2.IV)
	assert.NotEqual(t, env1.Ciphertext, env2.Ciphertext)
}

type failingReader struct {
	remaining int
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, errors.New("entropy exhausted")
	}

	n := min(len(p), r.remaining)
	r.remaining -= n

	copy(p, bytes.Repeat([]byte{0x42}, n))

	return n, nil
}

func TestGenerateFailures(t *testing.T) {
	for _, tt := range []struct {
		expectedErr error
		generator   *signature.Generator
		name        string
		appID       string
		appSecret   string
		cipherKey   string
	}{
		{
			name:        "short key",
			generator:   signature.NewGenerator(),
			appID:       appID,
			appSecret:   appSecret,
			cipherKey:   "short",
			expectedErr: cbc.ErrInvalidKeyLength,
		},
		{
			name:        "app id with separator",
			generator:   signature.NewGenerator(),
			appID:       "app&1",
			appSecret:   appSecret,
			cipherKey:   cipherKey,
			expectedErr: signature.ErrInvalidClaimValue,
		},
		{
			name:        "empty secret",
			generator:   signature.NewGenerator(),
			appID:       appID,
			cipherKey:   cipherKey,
			expectedErr: signature.ErrInvalidClaimValue,
		},
		{
			name:      "no entropy for the nonce",
			generator: signature.NewGenerator(signature.WithRandom(&failingReader{})),
			appID:     appID,
			appSecret: appSecret,
			cipherKey: cipherKey,
		},
		{
			name:      "no entropy for the iv",
			generator: signature.NewGenerator(signature.WithRandom(&failingReader{remaining: 20})),
			appID:     appID,
			appSecret: appSecret,
			cipherKey: cipherKey,
		},
		{
			name:        "short read",
			generator:   signature.NewGenerator(signature.WithRandom(io.LimitReader(bytes.NewReader(make([]byte, 64)), 8))),
			appID:       appID,
			appSecret:   appSecret,
			cipherKey:   cipherKey,
			expectedErr: io.ErrUnexpectedEOF,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			env, err := tt.generator.Generate(tt.appID, tt.appSecret, tt.cipherKey, body)
			require.Error(t, err)
			assert.Nil(t, env)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			}
		})
	}
}
