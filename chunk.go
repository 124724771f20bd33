// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package reassembly

// Chunk is a contiguous piece of the stream returned by Assembler.Read.
//
// Bytes are never delivered twice, and the caller owns them.
type Chunk struct {
	Bytes []byte

	// stream offset of the first byte
	Offset uint64
}

// End returns the stream offset right after the last byte of the chunk.
func (c Chunk) End() uint64 {
	return c.Offset + uint64(len(c.Bytes))
}
