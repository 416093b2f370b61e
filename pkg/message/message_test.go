// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package message_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-app-signature/pkg/nonce"
	"github.com/siderolabs/go-app-signature/pkg/secret"
	"github.com/siderolabs/go-app-signature/pkg/signature"
)

var creds = secret.Secret{
	AppID:     "app1",
	AppSecret: "s3cr3t",
	CipherKey: "0123456789abcdef",
}

func newVerifier(t *testing.T) *signature.Verifier {
	t.Helper()

	resolver, err := secret.NewStaticResolver(creds)
	require.NoError(t, err)

	verifier, err := signature.NewVerifier(resolver, nonce.NewMemoryStore())
	require.NoError(t, err)

	return verifier
}

// corrupt replaces the first character of the base64 string.
func corrupt(s string) string {
	if s[0] == 'A' {
		return "B" + s[1:]
	}

	return "A" + s[1:]
}
