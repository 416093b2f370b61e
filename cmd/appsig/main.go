// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package main implements the appsig command.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	appcli "github.com/siderolabs/go-app-signature/internal/cli"
)

func main() {
	app := &cli.App{
		Name:  "appsig",
		Usage: "Sign and verify requests with app credentials",
		Flags: []cli.Flag{
			appcli.DebugFlag,
		},
		Commands: []*cli.Command{
			serveCommand,
			signCommand,
			keygenCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
