// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package secret_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-app-signature/pkg/secret"
)

const credentialsYAML = `apps:
  - app_id: app1
    app_secret: s3cr3t
    cipher_key: 0123456789abcdef
  - app_id: app2
    app_secret: other
    cipher_key: fedcba9876543210
    disabled: true
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")

	require.NoError(t, os.WriteFile(path, []byte(credentialsYAML), 0o600))

	r, err := secret.LoadFile(path, nil)
	require.NoError(t, err)

	s, err := r.Resolve(context.Background(), "app1")
	require.NoError(t, err)
	assert.Equal(t, app1, *s)

	_, err = r.Resolve(context.Background(), "app2")
	require.ErrorIs(t, err, secret.ErrNotFound)
}

func TestEncryptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml.asc")
	passphrase := []byte("correct horse battery staple")

	f := &secret.File{
		Apps: []secret.FileEntry{{Secret: app1}},
	}

	require.NoError(t, f.WriteFile(path, passphrase))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.True(t, secret.IsEncrypted(data))
	assert.NotContains(t, string(data), app1.AppSecret)

	_, err = secret.ReadFile(path, nil)
	require.Error(t, err)

	_, err = secret.ReadFile(path, []byte("wrong"))
	require.Error(t, err)

	decoded, err := secret.ReadFile(path, passphrase)
	require.NoError(t, err)

	assert.Equal(t, f, decoded)
}

func TestCredentialsPath(t *testing.T) {
	t.Cleanup(xdg.Reload)

	// fake XDG paths
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	xdg.Reload()

	_, err := secret.CredentialsPath("")
	require.Error(t, err)

	path, err := secret.DefaultCredentialsPath()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(credentialsYAML), 0o600))

	found, err := secret.CredentialsPath("")
	require.NoError(t, err)
	assert.Equal(t, path, found)

	abs := filepath.Join(home, "elsewhere.yaml")

	found, err = secret.CredentialsPath(abs)
	require.NoError(t, err)
	assert.Equal(t, abs, found)
}
