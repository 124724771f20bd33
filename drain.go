// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package reassembly

import (
	"fmt"
	"io"
	"math"
)

// Drain writes all contiguous data available at BytesRead to w with ordered reads.
//
// Each write is at most maxLength bytes, a non-positive maxLength means no limit.
// Drain returns the number of bytes written.
func (a *Assembler) Drain(w io.Writer, maxLength int) (int64, error) {
	if maxLength <= 0 {
		maxLength = math.MaxInt
	}

	var n int64

	for {
		c, ok := a.Read(maxLength, true)
		if !ok {
			return n, nil
		}

		nn, err := w.Write(c.Bytes)
		n += int64(nn)

		if err != nil {
			return n, fmt.Errorf("failed to write chunk at offset %d: %w", c.Offset, err)
		}
	}
}

// DrainAt writes all buffered data to w at its stream offsets with unordered reads.
//
// The Assembler should be switched to unordered reads with EnsureOrdering first.
// Each write is at most maxLength bytes, a non-positive maxLength means no limit.
// DrainAt returns the number of bytes written.
func (a *Assembler) DrainAt(w io.WriterAt, maxLength int) (int64, error) {
	if maxLength <= 0 {
		maxLength = math.MaxInt
	}

	var n int64

	for {
		c, ok := a.Read(maxLength, false)
		if !ok {
			return n, nil
		}

		if c.End() > math.MaxInt64 {
			return n, fmt.Errorf("chunk offset %d is out of range", c.Offset)
		}

		nn, err := w.WriteAt(c.Bytes, int64(c.Offset))
		n += int64(nn)

		if err != nil {
			return n, fmt.Errorf("failed to write chunk at offset %d: %w", c.Offset, err)
		}
	}
}
