// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncData flushes file contents without forcing a metadata write.
func syncData(file *os.File) error {
	return unix.Fdatasync(int(file.Fd()))
}
