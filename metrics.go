// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package reassembly

// Metrics receives Assembler events.
//
// Methods are called synchronously from the Assembler methods, so they should be cheap.
// A Metrics shared between several Assemblers should be safe for concurrent use.
type Metrics interface {
	// FragmentStored is called for every fragment kept by the Assembler.
	FragmentStored(size, allocationSize int)
	// DuplicateDiscarded is called with the number of inserted bytes dropped as already seen or already read.
	DuplicateDiscarded(size int)
	// ChunkRead is called for every chunk returned to the consumer.
	ChunkRead(size int, ordered bool)
	// Defragmented is called after each defragmentation pass.
	Defragmented(fragmentsBefore, fragmentsAfter, bytesCopied int)
}

type nopMetrics struct{}

func (nopMetrics) FragmentStored(int, int) {}
func (nopMetrics) DuplicateDiscarded(int) {}
func (nopMetrics) ChunkRead(int, bool) {}
func (nopMetrics) Defragmented(int, int, int) {}
