// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package reassembly

import "go.uber.org/zap"

// defragment copies the fragments which don't own their allocation into a
// single new allocation, merging contiguous and overlapping fragments.
//
// Tight fragments are kept as is. The buffered contents do not change.
func (a *Assembler) defragment() {
	fragmentsBefore, allocatedBefore := a.store.len(), a.allocated

	fragments := a.store.drain()

	var wasteful int

	for _, f := range fragments {
		if !f.tight() {
			wasteful += f.size()
		}
	}

	// all the copies go to buf, it never grows, so the fragments carved
	// from it are tight
	buf := make([]byte, 0, wasteful)

	var (
		windowOffset uint64
		windowStart  int
	)

	a.buffered, a.allocated = 0, 0

	flush := func() {
		if len(buf) == windowStart {
			return
		}

		a.restore(&fragment{
			offset:         windowOffset,
			data:           buf[windowStart:len(buf):len(buf)],
			allocationSize: len(buf) - windowStart,
		})

		windowStart = len(buf)
	}

	for _, f := range fragments {
		if f.tight() {
			flush()
			a.restore(f)

			continue
		}

		windowEnd := windowOffset + uint64(len(buf)-windowStart)

		if len(buf) > windowStart && f.offset <= windowEnd {
			// overlapping or adjacent, data already in the window wins
			if overlap := windowEnd - f.offset; overlap < uint64(f.size()) {
				buf = append(buf, f.data[overlap:]...)
			}

			continue
		}

		flush()

		windowOffset = f.offset
		buf = append(buf, f.data...)
	}

	flush()

	a.opt.Metrics.Defragmented(fragmentsBefore, a.store.len(), len(buf))

	a.opt.Logger.Debug("defragmented buffered fragments",
		zap.Int("fragments_before", fragmentsBefore),
		zap.Int("fragments_after", a.store.len()),
		zap.Int("bytes_copied", len(buf)),
		zap.Int("allocated_before", allocatedBefore),
		zap.Int("allocated_after", a.allocated),
	)
}

// restore puts a fragment back into the store during defragmentation.
func (a *Assembler) restore(f *fragment) {
	a.store.push(f)

	a.buffered += f.size()
	a.allocated += f.allocationSize
}
