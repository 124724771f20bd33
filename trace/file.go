// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// WriteFile writes the fragments as a trace to path.
//
// The file is replaced atomically: the trace is written to a temporary file
// which is renamed to path.
func WriteFile(path string, fragments []Fragment) error {
	tmpPath := path + ".tmp"

	if err := writeFile(tmpPath, fragments); err != nil {
		os.Remove(tmpPath) //nolint:errcheck

		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) //nolint:errcheck

		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

func writeFile(path string, fragments []Fragment) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	defer f.Close() //nolint:errcheck

	w, err := NewWriter(f)
	if err != nil {
		return err
	}

	for _, fragment := range fragments {
		if err = w.Write(fragment); err != nil {
			w.Close() //nolint:errcheck

			return err
		}
	}

	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to flush trace: %w", err)
	}

	return f.Close()
}

// ReadFile reads all fragments of the trace at path.
func ReadFile(path string) ([]Fragment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close() //nolint:errcheck

	r, err := NewReader(f)
	if err != nil {
		return nil, err
	}

	defer r.Close()

	var fragments []Fragment

	for {
		fragment, err := r.Next()
		if errors.Is(err, io.EOF) {
			return fragments, nil
		}

		if err != nil {
			return nil, err
		}

		fragments = append(fragments, fragment)
	}
}
