// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	appcli "github.com/siderolabs/go-app-signature/internal/cli"
	"github.com/siderolabs/go-app-signature/pkg/fileutils"
	"github.com/siderolabs/go-app-signature/pkg/secret"
)

var keygenCommand = &cli.Command{
	Name:  "keygen",
	Usage: "Generate new app credentials",
	Flags: []cli.Flag{
		appcli.OutputFileFlag,
		appcli.PassphraseFlag,
	},
	Action: func(c *cli.Context) error {
		creds, err := secret.Generate(nil)
		if err != nil {
			return err
		}

		if output := c.String(appcli.OutputFileFlag.Name); output != "" {
			if err = appendCredentials(output, []byte(c.String(appcli.PassphraseFlag.Name)), creds); err != nil {
				return err
			}
		}

		return printCredentials(c.App.Writer, creds)
	},
}

func printCredentials(w io.Writer, creds secret.Secret) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close() //nolint:errcheck

	return enc.Encode(creds)
}

// appendCredentials adds the app to the credentials file, creating the file if needed.
func appendCredentials(path string, passphrase []byte, creds secret.Secret) error {
	if !fileutils.IsWritable(filepath.Dir(path)) {
		return fmt.Errorf("directory of %q is not writable", path)
	}

	f := &secret.File{}

	if fileutils.FileExists(path) {
		var err error

		if f, err = secret.ReadFile(path, passphrase); err != nil {
			return err
		}
	}

	f.Apps = append(f.Apps, secret.FileEntry{Secret: creds})

	// the file must stay loadable
	if _, err := f.Resolver(); err != nil {
		return err
	}

	return f.WriteFile(path, passphrase)
}
