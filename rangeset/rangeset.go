// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package rangeset implements a set of disjoint half-open uint64 ranges.
package rangeset

import (
	"fmt"

	rbt "github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
)

// Range is a half-open range [Start, End).
type Range struct {
	Start uint64
	End   uint64
}

// Len returns number of values covered by the range.
func (r Range) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}

	return r.End - r.Start
}

// Empty returns true if the range covers no values.
func (r Range) Empty() bool {
	return r.End <= r.Start
}

// String implements fmt.Stringer.
func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// Set is a set of disjoint ranges.
//
// Ranges stored in the set never overlap and never touch: inserting a range
// adjacent to an existing one merges them.
//
// Set is not safe for concurrent use.
type Set struct {
	// range start -> range end
	tree *rbt.Tree
}

// New creates an empty Set.
func New() *Set {
	return &Set{
		tree: rbt.NewWith(utils.UInt64Comparator),
	}
}

// Insert adds [start, end) to the set.
func (s *Set) Insert(start, end uint64) {
	s.replace(start, end, nil)
}

// Replace adds [start, end) to the set and returns the parts of [start, end)
// which were already present in the set, ordered by start.
func (s *Set) Replace(start, end uint64) []Range {
	var overlaps []Range

	s.replace(start, end, func(r Range) {
		overlaps = append(overlaps, r)
	})

	return overlaps
}

func (s *Set) replace(start, end uint64, overlap func(Range)) {
	if end <= start {
		return
	}

	mergedStart, mergedEnd := start, end

	// the range starting at or before start might cover or touch it
	if node, found := s.tree.Floor(start); found {
		nodeStart, nodeEnd := node.Key.(uint64), node.Value.(uint64)

		if nodeEnd >= start {
			if overlap != nil && nodeEnd > start {
				overlap(Range{Start: start, End: min(nodeEnd, end)})
			}

			mergedStart = nodeStart
			mergedEnd = max(mergedEnd, nodeEnd)

			s.tree.Remove(nodeStart)
		}
	}

	// ranges starting within (or right at the end of) [start, end]
	for {
		node, found := s.tree.Ceiling(start)
		if !found {
			break
		}

		nodeStart, nodeEnd := node.Key.(uint64), node.Value.(uint64)
		if nodeStart > end {
			break
		}

		if overlap != nil && nodeStart < end {
			overlap(Range{Start: nodeStart, End: min(nodeEnd, end)})
		}

		mergedEnd = max(mergedEnd, nodeEnd)

		s.tree.Remove(nodeStart)
	}

	s.tree.Put(mergedStart, mergedEnd)
}

// Contains returns true if pos is in the set.
func (s *Set) Contains(pos uint64) bool {
	node, found := s.tree.Floor(pos)
	if !found {
		return false
	}

	return pos < node.Value.(uint64)
}

// Len returns number of disjoint ranges in the set.
func (s *Set) Len() int {
	return s.tree.Size()
}

// Ranges returns all ranges in the set ordered by start.
func (s *Set) Ranges() []Range {
	ranges := make([]Range, 0, s.tree.Size())

	for it := s.tree.Iterator(); it.Next(); {
		ranges = append(ranges, Range{Start: it.Key().(uint64), End: it.Value().(uint64)})
	}

	return ranges
}

// Clear removes all ranges.
func (s *Set) Clear() {
	s.tree.Clear()
}
