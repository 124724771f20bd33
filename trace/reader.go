// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package trace

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Reader reads fragments from a trace.
//
// Reader is not safe for concurrent use.
type Reader struct {
	dec *zstd.Decoder
	r   *bufio.Reader
}

// NewReader opens a trace from r and verifies the header.
//
// Close should be called to release decoder resources.
func NewReader(r io.Reader, opts ...zstd.DOption) (*Reader, error) {
	dec, err := zstd.NewReader(r, opts...)
	if err != nil {
		if dec != nil {
			dec.Close()
		}

		if errors.Is(err, io.EOF) || errors.Is(err, zstd.ErrMagicMismatch) {
			return nil, ErrBadMagic
		}

		return nil, fmt.Errorf("failed to open trace: %w", err)
	}

	tr := &Reader{
		dec: dec,
		r:   bufio.NewReader(dec),
	}

	var header [len(magic) + 1]byte

	if _, err = io.ReadFull(tr.r, header[:]); err != nil {
		tr.Close()

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, zstd.ErrMagicMismatch) {
			return nil, ErrBadMagic
		}

		return nil, fmt.Errorf("failed to read trace header: %w", err)
	}

	if string(header[:len(magic)]) != magic {
		tr.Close()

		return nil, ErrBadMagic
	}

	if header[len(magic)] != version {
		tr.Close()

		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header[len(magic)])
	}

	return tr, nil
}

// Next returns the next fragment, or io.EOF at the end of the trace.
//
// Data of each fragment is sliced from a fresh allocation of the recorded allocation size.
func (r *Reader) Next() (Fragment, error) {
	offset, err := binary.ReadUvarint(r.r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Fragment{}, io.EOF
		}

		return Fragment{}, fmt.Errorf("failed to read fragment offset: %w", err)
	}

	allocationSize, err := r.readUvarint()
	if err != nil {
		return Fragment{}, fmt.Errorf("failed to read allocation size at offset %d: %w", offset, err)
	}

	length, err := r.readUvarint()
	if err != nil {
		return Fragment{}, fmt.Errorf("failed to read data length at offset %d: %w", offset, err)
	}

	if allocationSize > MaxAllocationSize {
		return Fragment{}, fmt.Errorf("%w: allocation size %d at offset %d is too large", ErrCorrupt, allocationSize, offset)
	}

	if length > allocationSize {
		return Fragment{}, fmt.Errorf("%w: data length %d exceeds allocation size %d at offset %d", ErrCorrupt, length, allocationSize, offset)
	}

	allocation := make([]byte, allocationSize)

	if _, err = io.ReadFull(r.r, allocation[:length]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}

		return Fragment{}, fmt.Errorf("failed to read fragment data at offset %d: %w", offset, err)
	}

	return Fragment{
		Offset:         offset,
		Data:           allocation[:length],
		AllocationSize: int(allocationSize),
	}, nil
}

func (r *Reader) readUvarint() (uint64, error) {
	v, err := binary.ReadUvarint(r.r)
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}

	return v, err
}

// Close releases the decoder.
func (r *Reader) Close() {
	r.dec.Close()
}
