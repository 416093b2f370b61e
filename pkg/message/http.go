// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package message

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/siderolabs/go-app-signature/pkg/secret"
	"github.com/siderolabs/go-app-signature/pkg/signature"
)

// MaxBodySize is the largest request body which can be signed or verified.
const MaxBodySize = 1024 * 1024

// ErrBodyTooLarge is returned when the request body exceeds MaxBodySize.
var ErrBodyTooLarge = errors.New("request body too large")

// HTTP represents an HTTP request message.
type HTTP struct {
	request *http.Request
	body    []byte
}

// NewHTTP returns a new HTTP message.
//
// The request body is read and replaced, so that it can be read in further handlers.
func NewHTTP(r *http.Request) (*HTTP, error) {
	var (
		bodyBytes []byte
		err       error
	)

	if r.Body != nil {
		bodyBytes, err = io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
		if err != nil {
			return nil, err
		}

		if err = r.Body.Close(); err != nil {
			return nil, err
		}

		if len(bodyBytes) > MaxBodySize {
			return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, MaxBodySize)
		}

		r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	return &HTTP{
		request: r,
		body:    bodyBytes,
	}, nil
}

// AppID returns the application identifier header.
func (m *HTTP) AppID() string {
	return m.header(AppIDHeaderKey)
}

// Body returns the captured request body.
func (m *HTTP) Body() []byte {
	return m.body
}

// Envelope returns the signature envelope on the message.
func (m *HTTP) Envelope() (signature.Envelope, error) {
	return parseEnvelope(m.header)
}

// Sign signs the message body on behalf of the app and sets the signature headers.
func (m *HTTP) Sign(creds secret.Secret, signer Signer) error {
	env, err := signer.Generate(creds.AppID, creds.AppSecret, creds.CipherKey, m.body)
	if err != nil {
		return err
	}

	for _, kv := range envelopeHeaders(creds.AppID, env) {
		m.request.Header.Set(kv[0], kv[1])
	}

	return nil
}

// Verify verifies the signature of the message including the body.
func (m *HTTP) Verify(ctx context.Context, verifier Verifier) signature.Result {
	return verify(m.header, func(appID string, env signature.Envelope) signature.Result {
		return verifier.Verify(ctx, appID, env, m.body)
	})
}

func (m *HTTP) header(key string) string {
	return m.request.Header.Get(key)
}
