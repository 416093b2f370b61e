// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package signature_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/siderolabs/go-app-signature/pkg/nonce"
	"github.com/siderolabs/go-app-signature/pkg/secret"
	"github.com/siderolabs/go-app-signature/pkg/signature"
)

const (
	appID     = "app1"
	appSecret = "s3cr3t"
	cipherKey = "0123456789abcdef"
)

var body = []byte(`{"x":1}`)

type clock struct {
	now time.Time
	mu  sync.Mutex
}

func newClock() *clock {
	return &clock{now: time.UnixMilli(1700000000000)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = t
}

type fixture struct {
	clock     *clock
	generator *signature.Generator
	verifier  *signature.Verifier
	store     *nonce.MemoryStore
}

func newFixture(t *testing.T, logger *zap.Logger, opt ...signature.VerifierOption) *fixture {
	t.Helper()

	resolver, err := secret.NewStaticResolver(
		secret.Secret{AppID: appID, AppSecret: appSecret, CipherKey: cipherKey},
		secret.Secret{AppID: "app2", AppSecret: "other", CipherKey: cipherKey},
	)
	require.NoError(t, err)

	c := newClock()
	store := nonce.NewMemoryStore(nonce.WithMemoryClock(c.Now))

	if logger == nil {
		logger = zap.NewNop()
	}

	opt = append([]signature.VerifierOption{signature.WithClock(c.Now), signature.WithLogger(logger)}, opt...)

	verifier, err := signature.NewVerifier(resolver, store, opt...)
	require.NoError(t, err)

	return &fixture{
		clock:     c,
		generator: signature.NewGenerator(signature.WithGeneratorClock(c.Now)),
		verifier:  verifier,
		store:     store,
	}
}

func (f *fixture) generate(t *testing.T) signature.Envelope {
	t.Helper()

	env, err := f.generator.Generate(appID, appSecret, cipherKey, body)
	require.NoError(t, err)

	return *env
}

func (f *fixture) verify(env signature.Envelope, payload []byte) signature.Result {
	return f.verifier.Verify(context.Background(), appID, env, payload)
}
