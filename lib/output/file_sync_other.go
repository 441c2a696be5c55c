// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package output

import "os"

func syncData(file *os.File) error {
	return file.Sync()
}
