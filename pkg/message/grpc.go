// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package message

import (
	"context"

	"google.golang.org/grpc/metadata"

	"github.com/siderolabs/go-app-signature/pkg/secret"
	"github.com/siderolabs/go-app-signature/pkg/signature"
)

// GRPC represents a gRPC message.
//
// The payload bound to the signature is supplied by the caller, usually the
// deterministic encoding of the request message.
type GRPC struct {
	Metadata metadata.MD
	Method   string
}

// NewGRPC creates a new GRPC from the given metadata and method.
func NewGRPC(md metadata.MD, method string) *GRPC {
	return &GRPC{
		Metadata: md,
		Method:   method,
	}
}

// AppID returns the application identifier header.
func (m *GRPC) AppID() string {
	return m.firstHeader(AppIDHeaderKey)
}

// Envelope returns the signature envelope on the message.
func (m *GRPC) Envelope() (signature.Envelope, error) {
	return parseEnvelope(m.firstHeader)
}

// Sign signs the payload on behalf of the app and sets the signature metadata.
func (m *GRPC) Sign(creds secret.Secret, signer Signer, payload []byte) error {
	env, err := signer.Generate(creds.AppID, creds.AppSecret, creds.CipherKey, payload)
	if err != nil {
		return err
	}

	// if the request is re-signed, the previous values are replaced
	for _, kv := range envelopeHeaders(creds.AppID, env) {
		m.Metadata.Set(kv[0], kv[1])
	}

	return nil
}

// Verify verifies the signature of the message against the payload.
func (m *GRPC) Verify(ctx context.Context, verifier Verifier, payload []byte) signature.Result {
	return verify(m.firstHeader, func(appID string, env signature.Envelope) signature.Result {
		return verifier.Verify(ctx, appID, env, payload)
	})
}

func (m *GRPC) firstHeader(name string) string {
	values := m.Metadata.Get(name)
	if len(values) == 0 {
		return ""
	}

	return values[0]
}
