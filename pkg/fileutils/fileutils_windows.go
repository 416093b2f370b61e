// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build windows

package fileutils

import "os"

// IsWritable checks if the directory at path exists and the current user can create files in it.
//
// ACLs are not reflected in the file mode on Windows, so a probe file is created and removed.
func IsWritable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}

	probe, err := os.CreateTemp(path, ".appsig-probe-*")
	if err != nil {
		return false
	}

	name := probe.Name()

	probe.Close()   //nolint:errcheck
	os.Remove(name) //nolint:errcheck

	return true
}
