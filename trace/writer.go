// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package trace

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Writer writes fragments to a trace.
//
// Writer is not safe for concurrent use.
type Writer struct {
	enc *zstd.Encoder

	// record header scratch buffer
	header []byte

	count int
}

// NewWriter starts a new trace in w.
//
// Close should be called to flush the trace, it doesn't close w.
func NewWriter(w io.Writer, opts ...zstd.EOption) (*Writer, error) {
	enc, err := zstd.NewWriter(w, opts...)
	if err != nil {
		return nil, err
	}

	if _, err = enc.Write(append([]byte(magic), version)); err != nil {
		enc.Close() //nolint:errcheck

		return nil, fmt.Errorf("failed to write trace header: %w", err)
	}

	return &Writer{
		enc:    enc,
		header: make([]byte, 0, 3*binary.MaxVarintLen64),
	}, nil
}

// Write appends a fragment to the trace.
func (w *Writer) Write(f Fragment) error {
	if len(f.Data) > f.AllocationSize {
		return fmt.Errorf("fragment at offset %d: data length %d exceeds allocation size %d", f.Offset, len(f.Data), f.AllocationSize)
	}

	w.header = binary.AppendUvarint(w.header[:0], f.Offset)
	w.header = binary.AppendUvarint(w.header, uint64(f.AllocationSize))
	w.header = binary.AppendUvarint(w.header, uint64(len(f.Data)))

	if _, err := w.enc.Write(w.header); err != nil {
		return fmt.Errorf("failed to write fragment at offset %d: %w", f.Offset, err)
	}

	if _, err := w.enc.Write(f.Data); err != nil {
		return fmt.Errorf("failed to write fragment at offset %d: %w", f.Offset, err)
	}

	w.count++

	return nil
}

// Count returns number of fragments written.
func (w *Writer) Count() int {
	return w.count
}

// Close flushes the trace.
func (w *Writer) Close() error {
	return w.enc.Close()
}
