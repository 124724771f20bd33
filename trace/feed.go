// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package trace

import (
	"errors"
	"io"
)

// Recorder is an Inserter which writes every fragment to a trace before passing it on.
type Recorder struct {
	w    *Writer
	next Inserter
	err  error
}

// NewRecorder creates a Recorder writing to w and inserting into next.
func NewRecorder(w *Writer, next Inserter) *Recorder {
	return &Recorder{
		w:    w,
		next: next,
	}
}

// Insert implements Inserter.
//
// Fragments are always passed on, even if recording fails.
func (r *Recorder) Insert(offset uint64, data []byte, allocationSize int) {
	if r.err == nil {
		r.err = r.w.Write(Fragment{
			Offset:         offset,
			Data:           data,
			AllocationSize: allocationSize,
		})
	}

	r.next.Insert(offset, data, allocationSize)
}

// Err returns the first recording error.
func (r *Recorder) Err() error {
	return r.err
}

// Feed inserts all remaining fragments from r into dst.
//
// Feed returns number of fragments inserted.
func Feed(r *Reader, dst Inserter) (int, error) {
	var n int

	for {
		fragment, err := r.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}

		if err != nil {
			return n, err
		}

		dst.Insert(fragment.Offset, fragment.Data, fragment.AllocationSize)

		n++
	}
}
