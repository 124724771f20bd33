// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package reassembly

// fragment is a view into a received allocation.
//
// Many fragments might share the same backing array, so the data is never modified in place.
type fragment struct {
	data []byte
	// stream offset of data[0]
	offset uint64
	// size of the allocation data was sliced from, allocationSize >= len(data)
	allocationSize int
}

func (f *fragment) size() int {
	return len(f.data)
}

func (f *fragment) end() uint64 {
	return f.offset + uint64(len(f.data))
}

// tight fragments own an allocation of exactly their size.
func (f *fragment) tight() bool {
	return len(f.data) == f.allocationSize
}

// advance drops n leading bytes.
func (f *fragment) advance(n int) {
	f.data = f.data[n:]
	f.offset += uint64(n)
}

// split cuts off the first n bytes and returns them.
//
// The returned slice has its capacity limited, so that appending to it
// never overwrites the bytes retained by the fragment.
func (f *fragment) split(n int) Chunk {
	c := Chunk{
		Offset: f.offset,
		Bytes:  f.data[:n:n],
	}

	f.advance(n)

	return c
}
