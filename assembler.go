// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package reassembly reassembles a byte stream from fragments which arrive
// out of order, overlapping and duplicated.
package reassembly

import (
	"fmt"

	"github.com/siderolabs/gen/optional"
	"go.uber.org/zap"

	"github.com/siderolabs/go-reassembly/rangeset"
)

// Assembler puts stream fragments back together.
//
// Fragment data is never copied on Insert or Read: chunks returned to the
// consumer share the memory of the inserted fragments. Copying happens only
// on defragmentation, when the memory retained by the partially used
// fragments grows too large compared to the buffered data.
//
// Assembler is not safe for concurrent use.
type Assembler struct {
	// set of stream offsets ever accepted, present only after switching to unordered reads
	received optional.Optional[*rangeset.Set]

	store *store

	// buffer options
	opt Options

	// sum of fragment lengths in the store
	buffered int
	// sum of allocation sizes backing the fragments in the store
	allocated int

	// number of bytes consumed by ordered reads, the stream read offset
	bytesRead uint64
}

// NewAssembler creates new Assembler with specified options.
func NewAssembler(opts ...OptionFunc) (*Assembler, error) {
	a := &Assembler{
		opt:   defaultOptions(),
		store: newStore(),
	}

	for _, o := range opts {
		if err := o(&a.opt); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// EnsureOrdering switches the Assembler to the requested read mode.
//
// Switching from ordered to unordered reads is allowed once, the other way
// around fails with ErrIllegalOrderedRead.
func (a *Assembler) EnsureOrdering(ordered bool) error {
	unordered := a.received.IsPresent()

	switch {
	case ordered && unordered:
		return ErrIllegalOrderedRead
	case !ordered && !unordered:
		received := rangeset.New()
		received.Insert(0, a.bytesRead)

		a.store.each(func(f *fragment) {
			received.Insert(f.offset, f.end())
		})

		a.received = optional.Some(received)

		a.opt.Logger.Debug("switched to unordered reads",
			zap.Uint64("bytes_read", a.bytesRead),
			zap.Int("buffered", a.buffered),
			zap.Int("received_ranges", received.Len()),
		)
	}

	return nil
}

// Ordered returns true until the Assembler is switched to unordered reads.
func (a *Assembler) Ordered() bool {
	return !a.received.IsPresent()
}

// Insert adds a fragment of the stream at the specified offset.
//
// The data slice is retained by the Assembler and should not be modified by the caller.
// allocationSize is the size of the allocation data was sliced from, it
// should be not less than len(data).
//
//nolint:gocognit
func (a *Assembler) Insert(offset uint64, data []byte, allocationSize int) {
	if len(data) > allocationSize {
		panic(fmt.Sprintf("allocation size less than data length: %d < %d", allocationSize, len(data)))
	}

	stored := false

	if a.received.IsPresent() {
		received := a.received.ValueOrZero()

		for _, seen := range received.Replace(offset, offset+uint64(len(data))) {
			if seen.Start > offset {
				// new data before the seen range goes in as a separate fragment
				n := int(seen.Start - offset)

				a.push(&fragment{
					offset:         offset,
					data:           data[:n:n],
					allocationSize: allocationSize,
				})

				data = data[n:]
				offset = seen.Start
				stored = true
			}

			n := int(seen.End - offset)

			a.opt.Metrics.DuplicateDiscarded(n)

			data = data[n:]
			offset = seen.End
		}
	} else if offset < a.bytesRead {
		if offset+uint64(len(data)) <= a.bytesRead {
			a.opt.Metrics.DuplicateDiscarded(len(data))

			return
		}

		n := int(a.bytesRead - offset)

		a.opt.Metrics.DuplicateDiscarded(n)

		data = data[n:]
		offset = a.bytesRead
	}

	if len(data) > 0 {
		a.push(&fragment{
			offset:         offset,
			data:           data,
			allocationSize: allocationSize,
		})

		stored = true
	}

	if stored && a.overAllocated() {
		a.defragment()
	}
}

func (a *Assembler) push(f *fragment) {
	a.store.push(f)

	a.buffered += f.size()
	a.allocated += f.allocationSize

	a.opt.Metrics.FragmentStored(f.size(), f.allocationSize)
}

// overAllocated checks whether memory retained on top of buffered data is too large.
//
// A peer sending tiny fragments each carved from a large allocation might otherwise
// force the Assembler to hold a lot of memory per useful byte.
func (a *Assembler) overAllocated() bool {
	overAllocation := float64(a.allocated - a.buffered)
	threshold := max(float64(a.buffered)*a.opt.DefragmentRatio, float64(a.opt.DefragmentFloor))

	return overAllocation > threshold
}

// Read returns the next chunk of at most maxLength bytes.
//
// With ordered reads, the chunk starts at BytesRead, and nothing is returned
// while the data at BytesRead hasn't arrived yet.
// With unordered reads, the buffered chunk with the lowest offset is returned.
//
// Read returns false if there is nothing to read.
func (a *Assembler) Read(maxLength int, ordered bool) (Chunk, bool) {
	if maxLength <= 0 {
		return Chunk{}, false
	}

	for {
		f, ok := a.store.peek()
		if !ok {
			return Chunk{}, false
		}

		if ordered {
			if f.offset > a.bytesRead {
				// gap before the next fragment
				return Chunk{}, false
			}

			if f.end() <= a.bytesRead {
				// already read
				a.store.pop()
				a.release(f)

				continue
			}
		}

		a.store.pop()

		if ordered {
			if n := int(a.bytesRead - f.offset); n > 0 {
				f.advance(n)
				a.buffered -= n
			}
		}

		var c Chunk

		if f.size() > maxLength {
			c = f.split(maxLength)

			a.buffered -= maxLength

			a.store.push(f)
		} else {
			c = Chunk{Offset: f.offset, Bytes: f.data}

			a.release(f)
		}

		if ordered {
			a.bytesRead += uint64(len(c.Bytes))
		}

		a.opt.Metrics.ChunkRead(len(c.Bytes), ordered)

		return c, true
	}
}

// release accounts for a fragment removed from the store.
func (a *Assembler) release(f *fragment) {
	a.buffered -= f.size()
	a.allocated -= f.allocationSize
}

// BytesRead returns number of bytes consumed by ordered reads.
func (a *Assembler) BytesRead() uint64 {
	return a.bytesRead
}

// SetBytesRead overrides the ordered read offset.
func (a *Assembler) SetBytesRead(n uint64) {
	a.bytesRead = n
}

// Buffered returns number of bytes stored in the fragments.
//
// Fragments might overlap while reading in order, so Buffered is not necessarily
// the number of unique stream bytes buffered.
func (a *Assembler) Buffered() int {
	return a.buffered
}

// Allocated returns the overall size of the allocations retained by the stored fragments.
func (a *Assembler) Allocated() int {
	return a.allocated
}

// Len returns number of stored fragments.
func (a *Assembler) Len() int {
	return a.store.len()
}

// Clear drops all buffered data.
//
// The read offset and the set of received ranges are kept.
func (a *Assembler) Clear() {
	a.opt.Logger.Debug("clearing buffered fragments",
		zap.Int("fragments", a.store.len()),
		zap.Int("buffered", a.buffered),
		zap.Int("allocated", a.allocated),
	)

	a.store.clear()
	a.buffered = 0
	a.allocated = 0
}
