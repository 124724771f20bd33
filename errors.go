// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package reassembly

import "errors"

// ErrIllegalOrderedRead is returned when ordered reads are requested after the Assembler switched to unordered reads.
var ErrIllegalOrderedRead = errors.New("ordered read after unordered read")
