// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package secret contains the lookup of application secrets and cipher keys.
package secret

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/siderolabs/go-app-signature/pkg/cbc"
)

// ErrNotFound is returned when the application is unknown or disabled.
var ErrNotFound = errors.New("app not found")

// Secret is the shared material of an application.
type Secret struct {
	AppID     string `json:"app_id" yaml:"app_id"`
	AppSecret string `json:"app_secret" yaml:"app_secret"`
	CipherKey string `json:"cipher_key" yaml:"cipher_key"`
}

// Validate checks that the secret is usable for signing.
//
// The app ID and secret are embedded in the signed claims, and the app ID in nonce keys,
// so neither may contain the separators of those encodings.
func (s *Secret) Validate() error {
	if s.AppID == "" {
		return fmt.Errorf("app id is empty")
	}

	if strings.ContainsAny(s.AppID, "&=:") {
		return fmt.Errorf("app %q: id must not contain '&', '=' or ':'", s.AppID)
	}

	if s.AppSecret == "" {
		return fmt.Errorf("app %q: secret is empty", s.AppID)
	}

	if strings.ContainsAny(s.AppSecret, "&=") {
		return fmt.Errorf("app %q: secret must not contain '&' or '='", s.AppID)
	}

	if err := cbc.ValidateKey([]byte(s.CipherKey)); err != nil {
		return fmt.Errorf("app %q: %w", s.AppID, err)
	}

	return nil
}

// Resolver maps an application ID to its secret.
//
// Resolve returns ErrNotFound (possibly wrapped) for unknown applications.
type Resolver interface {
	Resolve(ctx context.Context, appID string) (*Secret, error)
}
