// SPDX-License-Identifier: MIT

// Package fsutil provides small filesystem helpers.
package fsutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/renameio/v2"
)

// WriteFileAtomic writes data to path atomically via a rename, so readers
// never observe a partially written file. Used for the bot-username file the
// HTTP redirect handler reads on every request.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := renameio.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("atomic write %s: %w", path, err)
	}
	return nil
}

// ReadTrimmed reads a small text file and trims surrounding whitespace.
func ReadTrimmed(path string) (string, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(buf)), nil
}
