// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package secret

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ProtonMail/gopenpgp/v2/helper"
	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/siderolabs/go-app-signature/pkg/fileutils"
)

// ConfigDirectory is the directory under the XDG config dirs where credentials files are searched.
const ConfigDirectory = "appsig"

// DefaultCredentialsFile is the default credentials file name.
const DefaultCredentialsFile = "credentials.yaml"

var armorHeader = []byte("-----BEGIN PGP MESSAGE-----")

// FileEntry is a single application in a credentials file.
type FileEntry struct {
	Secret `yaml:",inline"`

	Disabled bool `yaml:"disabled,omitempty"`
}

// File is the credentials file.
//
// It is a YAML document, optionally encrypted as an armored OpenPGP message with a passphrase.
type File struct {
	Apps []FileEntry `yaml:"apps"`
}

// CredentialsPath returns the path of the credentials file.
//
// Absolute paths and paths of existing files are returned as is, otherwise the name is searched
// in the XDG config directories.
func CredentialsPath(name string) (string, error) {
	if name == "" {
		name = DefaultCredentialsFile
	}

	if filepath.IsAbs(name) {
		return name, nil
	}

	if fileutils.FileExists(name) {
		return name, nil
	}

	return xdg.SearchConfigFile(filepath.Join(ConfigDirectory, name))
}

// DefaultCredentialsPath returns the credentials file path in the user XDG config dir, creating the directory.
func DefaultCredentialsPath() (string, error) {
	return xdg.ConfigFile(filepath.Join(ConfigDirectory, DefaultCredentialsFile))
}

// ReadFile reads and decodes a credentials file.
//
// Encrypted files require a passphrase.
func ReadFile(path string, passphrase []byte) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseFile(data, passphrase)
}

// ParseFile decodes the contents of a credentials file.
func ParseFile(data, passphrase []byte) (*File, error) {
	if IsEncrypted(data) {
		if len(passphrase) == 0 {
			return nil, fmt.Errorf("credentials file is encrypted, passphrase is required")
		}

		plaintext, err := helper.DecryptMessageWithPassword(passphrase, string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt credentials file: %w", err)
		}

		data = []byte(plaintext)
	}

	var f File

	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	return &f, nil
}

// IsEncrypted returns true if the data is an armored OpenPGP message.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(data), armorHeader)
}

// Marshal encodes the credentials file, encrypting it when the passphrase is not empty.
func (f *File) Marshal(passphrase []byte) ([]byte, error) {
	data, err := yaml.Marshal(f)
	if err != nil {
		return nil, err
	}

	if len(passphrase) == 0 {
		return data, nil
	}

	armored, err := helper.EncryptMessageWithPassword(passphrase, string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt credentials file: %w", err)
	}

	return []byte(armored), nil
}

// WriteFile writes the credentials file with owner-only permissions.
func (f *File) WriteFile(path string, passphrase []byte) error {
	data, err := f.Marshal(passphrase)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Resolver builds a StaticResolver out of the enabled entries.
func (f *File) Resolver() (*StaticResolver, error) {
	secrets := make([]Secret, 0, len(f.Apps))

	for _, app := range f.Apps {
		if app.Disabled {
			continue
		}

		secrets = append(secrets, app.Secret)
	}

	return NewStaticResolver(secrets...)
}

// LoadFile reads a credentials file and builds a StaticResolver from it.
func LoadFile(path string, passphrase []byte) (*StaticResolver, error) {
	f, err := ReadFile(path, passphrase)
	if err != nil {
		return nil, err
	}

	return f.Resolver()
}
