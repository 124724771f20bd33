// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package trace records and replays stream fragment arrivals.
//
// A trace is a zstd stream which starts with a header (magic and version),
// followed by fragment records. Each record is a uvarint offset, a uvarint
// allocation size, a uvarint data length and the data itself.
package trace

import "errors"

const (
	magic   = "RSMT"
	version = 1

	// MaxAllocationSize limits the allocation size accepted from a trace.
	MaxAllocationSize = 64 * 1024 * 1024
)

// Trace errors.
var (
	ErrBadMagic           = errors.New("not a fragment trace")
	ErrUnsupportedVersion = errors.New("unsupported trace version")
	ErrCorrupt            = errors.New("corrupt fragment record")
)

// Fragment is a single recorded fragment arrival.
type Fragment struct {
	Data []byte

	Offset         uint64
	AllocationSize int
}

// Inserter accepts stream fragments.
//
// reassembly.Assembler implements Inserter.
type Inserter interface {
	Insert(offset uint64, data []byte, allocationSize int)
}
