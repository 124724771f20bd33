// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package reassembly

// Defragment exposes defragmentation to tests.
func (a *Assembler) Defragment() {
	if a.store.len() > 0 {
		a.defragment()
	}
}
