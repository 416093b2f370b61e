// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build unix

package fileutils

import (
	"os"

	"golang.org/x/sys/unix"
)

// IsWritable checks if the directory at path exists and the current user can create files in it.
func IsWritable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}

	return unix.Access(path, unix.W_OK|unix.X_OK) == nil
}
