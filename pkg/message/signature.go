// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package message

import (
	"context"

	"github.com/siderolabs/go-app-signature/pkg/signature"
)

// Signer creates signature envelopes, e.g. signature.Generator.
type Signer interface {
	Generate(appID, appSecret, cipherKey string, body []byte) (*signature.Envelope, error)
}

// Verifier checks signature envelopes, e.g. signature.Verifier.
type Verifier interface {
	Verify(ctx context.Context, appID string, env signature.Envelope, body []byte) signature.Result
}
