// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package signature

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/siderolabs/go-app-signature/pkg/cbc"
	"github.com/siderolabs/go-app-signature/pkg/claims"
	"github.com/siderolabs/go-app-signature/pkg/nonce"
	"github.com/siderolabs/go-app-signature/pkg/secret"
)

// Verifier checks signatures of inbound requests.
//
// It holds no per-request state and is safe for concurrent use; the nonce store is the only
// shared mutable resource.
type Verifier struct {
	resolver secret.Resolver
	store    nonce.Store
	logger   *zap.Logger
	metrics  *Metrics
	now      func() time.Time
	decoyKey []byte

	window   time.Duration
	nonceTTL time.Duration
	timeout  time.Duration
}

// VerifierOption customizes the Verifier.
type VerifierOption func(*Verifier)

// WithClock sets the clock used for the freshness check.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

// WithWindow sets the allowed clock difference.
func WithWindow(window time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.window = window
	}
}

// WithNonceTTL sets how long nonces stay reserved.
func WithNonceTTL(ttl time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.nonceTTL = ttl
	}
}

// WithDependencyTimeout bounds each nonce store and resolver call.
func WithDependencyTimeout(timeout time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.timeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// WithMetrics records verification outcomes.
func WithMetrics(metrics *Metrics) VerifierOption {
	return func(v *Verifier) {
		v.metrics = metrics
	}
}

// NewVerifier creates a new Verifier.
func NewVerifier(resolver secret.Resolver, store nonce.Store, opt ...VerifierOption) (*Verifier, error) {
	if resolver == nil {
		return nil, errors.New("resolver is required")
	}

	if store == nil {
		return nil, errors.New("nonce store is required")
	}

	v := &Verifier{
		resolver: resolver,
		store:    store,
		logger:   zap.NewNop(),
		now:      time.Now,
		window:   DefaultWindow,
		nonceTTL: DefaultNonceTTL,
		timeout:  DefaultDependencyTimeout,
	}

	for _, o := range opt {
		o(v)
	}

	if v.window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", v.window)
	}

	if v.nonceTTL < v.window {
		return nil, fmt.Errorf("nonce ttl %s must not be shorter than the window %s", v.nonceTTL, v.window)
	}

	if v.timeout <= 0 {
		return nil, fmt.Errorf("dependency timeout must be positive, got %s", v.timeout)
	}

	v.decoyKey = make([]byte, cbc.KeySize)

	if _, err := rand.Read(v.decoyKey); err != nil {
		return nil, fmt.Errorf("failed to generate decoy key: %w", err)
	}

	return v, nil
}

// Verify checks the envelope sent by the app along with the request body.
//
// The body is checked against the signed hash only if it is not empty. Every call reserves
// the envelope nonce once it passes the freshness check, whatever the final outcome.
func (v *Verifier) Verify(ctx context.Context, appID string, env Envelope, body []byte) Result {
	start := time.Now()

	result, cause := v.verify(ctx, appID, env, body)

	if v.metrics != nil {
		v.metrics.observe(result, time.Since(start))
	}

	if result.Accepted() {
		v.logger.Debug("signature accepted", zap.String("app_id", appID), zap.String("nonce", env.Nonce))

		return result
	}

	fields := []zap.Field{
		zap.String("app_id", appID),
		zap.String("nonce", env.Nonce),
		zap.Stringer("reason", result),
	}

	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}

	if result.Reason == ReasonDependencyUnavailable {
		v.logger.Warn("signature verification unavailable", fields...)
	} else {
		v.logger.Info("signature rejected", fields...)
	}

	return result
}

//nolint:gocyclo,cyclop
func (v *Verifier) verify(ctx context.Context, appID string, env Envelope, body []byte) (Result, error) {
	if appID == "" {
		return rejectedField(ReasonMissingField, claims.AppIDKey), nil
	}

	if field := env.missingField(); field != "" {
		return rejectedField(ReasonMissingField, field), nil
	}

	skew := v.now().UnixMilli() - env.Timestamp
	if skew < 0 {
		skew = -skew
	}

	if skew > v.window.Milliseconds() {
		return rejected(ReasonTimestampOutOfRange), fmt.Errorf("clock skew %s", time.Duration(skew)*time.Millisecond)
	}

	// the nonce is spent before anything else can fail, so concurrent replays race on the store only
	reserved, err := v.reserve(ctx, appID, env.Nonce)
	if err != nil {
		return rejected(ReasonDependencyUnavailable), err
	}

	if !reserved {
		return rejected(ReasonNonceReused), nil
	}

	s, err := v.resolve(ctx, appID)

	switch {
	case errors.Is(err, secret.ErrNotFound):
		// keep the unknown app path as close as possible to a wrong key
		v.decrypt(env, v.decoyKey) //nolint:errcheck

		return rejected(ReasonDecryptionFailed), err
	case err != nil:
		return rejected(ReasonDependencyUnavailable), err
	}

	plaintext, err := v.decrypt(env, []byte(s.CipherKey))
	if err != nil {
		return rejected(ReasonDecryptionFailed), err
	}

	c, err := claims.Decode(string(plaintext))
	if err != nil {
		return rejected(ReasonMalformedClaims), err
	}

	if c.AppID != appID {
		return rejectedField(ReasonFieldMismatch, claims.AppIDKey), nil
	}

	if subtle.ConstantTimeCompare([]byte(c.AppSecret), []byte(s.AppSecret)) != 1 {
		return rejectedField(ReasonFieldMismatch, claims.AppSecretKey), nil
	}

	if c.Timestamp != env.Timestamp {
		return rejectedField(ReasonFieldMismatch, claims.TimestampKey), nil
	}

	if c.Nonce != env.Nonce {
		return rejectedField(ReasonFieldMismatch, claims.NonceKey), nil
	}

	if len(body) > 0 {
		if c.DataHash == "" {
			return rejected(ReasonIntegrityMismatch), errors.New("signature does not cover the body")
		}

		if subtle.ConstantTimeCompare([]byte(c.DataHash), []byte(claims.HashBody(body))) != 1 {
			return rejected(ReasonIntegrityMismatch), nil
		}
	}

	return accepted(), nil
}

func (v *Verifier) reserve(ctx context.Context, appID, nonceValue string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	return v.store.Reserve(ctx, appID, nonceValue, v.nonceTTL)
}

func (v *Verifier) resolve(ctx context.Context, appID string) (*secret.Secret, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	return v.resolver.Resolve(ctx, appID)
}

func (v *Verifier) decrypt(env Envelope, key []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}

	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, fmt.Errorf("invalid iv encoding: %w", err)
	}

	return cbc.Open(ciphertext, key, iv)
}
