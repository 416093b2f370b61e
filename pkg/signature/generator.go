// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package signature

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/siderolabs/go-app-signature/pkg/cbc"
	"github.com/siderolabs/go-app-signature/pkg/claims"
)

// ErrInvalidClaimValue is returned when a claim value can't be represented in the canonical form.
var ErrInvalidClaimValue = errors.New("claim value must be non-empty and must not contain '&' or '='")

// Generator creates signatures.
type Generator struct {
	now  func() time.Time
	rand io.Reader
}

// GeneratorOption customizes the Generator.
type GeneratorOption func(*Generator)

// WithGeneratorClock sets the clock used for timestamps.
func WithGeneratorClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.now = now
	}
}

// WithRandom sets the entropy source for nonces and IVs.
func WithRandom(r io.Reader) GeneratorOption {
	return func(g *Generator) {
		g.rand = r
	}
}

// NewGenerator creates a new Generator.
func NewGenerator(opt ...GeneratorOption) *Generator {
	g := &Generator{
		now:  time.Now,
		rand: rand.Reader,
	}

	for _, o := range opt {
		o(g)
	}

	return g
}

// Generate signs a request of the app.
//
// A non-empty body is bound to the signature by its hash. Any error, including an entropy
// source failure, results in no signature.
func (g *Generator) Generate(appID, appSecret, cipherKey string, body []byte) (*Envelope, error) {
	key := []byte(cipherKey)

	if err := cbc.ValidateKey(key); err != nil {
		return nil, err
	}

	if !validClaimValue(appID) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidClaimValue, claims.AppIDKey)
	}

	if !validClaimValue(appSecret) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidClaimValue, claims.AppSecretKey)
	}

	nonce, err := g.nonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	iv := make([]byte, cbc.IVSize)

	if _, err = io.ReadFull(g.rand, iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	c := claims.Claims{
		AppID:     appID,
		Timestamp: g.now().UnixMilli(),
		Nonce:     nonce,
		AppSecret: appSecret,
	}

	if len(body) > 0 {
		c.DataHash = claims.HashBody(body)
	}

	ciphertext, err := cbc.Seal([]byte(claims.Encode(c)), key, iv)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		Timestamp:  c.Timestamp,
		Nonce:      nonce,
		IV:         base64.StdEncoding.EncodeToString(iv),
	}, nil
}

func (g *Generator) nonce() (string, error) {
	id, err := uuid.NewRandomFromReader(g.rand)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(id[:]), nil
}

func validClaimValue(value string) bool {
	return value != "" && !strings.ContainsAny(value, "&=")
}
