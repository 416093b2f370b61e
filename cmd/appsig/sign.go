// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	appcli "github.com/siderolabs/go-app-signature/internal/cli"
	"github.com/siderolabs/go-app-signature/pkg/message"
	"github.com/siderolabs/go-app-signature/pkg/secret"
	"github.com/siderolabs/go-app-signature/pkg/signature"
)

var signCommand = &cli.Command{
	Name:  "sign",
	Usage: "Print the signature headers of a request",
	Flags: []cli.Flag{
		appcli.AppIDFlag,
		appcli.AppSecretFlag,
		appcli.CipherKeyFlag,
		appcli.BodyFlag,
	},
	Action: func(c *cli.Context) error {
		body, err := readBody(c.String(appcli.BodyFlag.Name), c.App.Reader)
		if err != nil {
			return err
		}

		creds := secret.Secret{
			AppID:     c.String(appcli.AppIDFlag.Name),
			AppSecret: c.String(appcli.AppSecretFlag.Name),
			CipherKey: c.String(appcli.CipherKeyFlag.Name),
		}

		return writeHeaders(c.App.Writer, creds, signature.NewGenerator(), body)
	},
}

// readBody returns the literal body, or reads it from a file for @path and from stdin for @-.
//
// Bodies which the verifier would refuse are rejected with message.ErrBodyTooLarge.
func readBody(value string, stdin io.Reader) ([]byte, error) {
	path, ok := strings.CutPrefix(value, "@")
	if !ok {
		return checkBodySize([]byte(value))
	}

	if path == "-" {
		return readLimited(stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close() //nolint:errcheck

	return readLimited(f)
}

func readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, message.MaxBodySize+1))
	if err != nil {
		return nil, err
	}

	return checkBodySize(body)
}

func checkBodySize(body []byte) ([]byte, error) {
	if len(body) > message.MaxBodySize {
		return nil, fmt.Errorf("%w: limit is %d bytes", message.ErrBodyTooLarge, message.MaxBodySize)
	}

	return body, nil
}

func writeHeaders(w io.Writer, creds secret.Secret, signer message.Signer, body []byte) error {
	env, err := signer.Generate(creds.AppID, creds.AppSecret, creds.CipherKey, body)
	if err != nil {
		return err
	}

	for _, kv := range [][2]string{
		{message.AppIDHeaderKey, creds.AppID},
		{message.SignatureHeaderKey, env.Ciphertext},
		{message.TimestampHeaderKey, strconv.FormatInt(env.Timestamp, 10)},
		{message.NonceHeaderKey, env.Nonce},
		{message.IVHeaderKey, env.IV},
	} {
		if _, err = fmt.Fprintf(w, "%s: %s\n", kv[0], kv[1]); err != nil {
			return err
		}
	}

	return nil
}
