// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package reassembly

import (
	"cmp"

	"github.com/emirpasic/gods/trees/binaryheap"
)

// store keeps fragments ordered by offset, and for the same offset
// the longest fragment comes first.
type store struct {
	heap *binaryheap.Heap
}

func compareFragments(a, b any) int {
	fa, fb := a.(*fragment), b.(*fragment)

	if c := cmp.Compare(fa.offset, fb.offset); c != 0 {
		return c
	}

	return cmp.Compare(fb.size(), fa.size())
}

func newStore() *store {
	return &store{
		heap: binaryheap.NewWith(compareFragments),
	}
}

func (s *store) push(f *fragment) {
	s.heap.Push(f)
}

// peek returns the fragment with the lowest offset.
//
// The returned fragment should not be modified while it is in the store, use pop & push instead.
func (s *store) peek() (*fragment, bool) {
	v, ok := s.heap.Peek()
	if !ok {
		return nil, false
	}

	return v.(*fragment), true
}

func (s *store) pop() (*fragment, bool) {
	v, ok := s.heap.Pop()
	if !ok {
		return nil, false
	}

	return v.(*fragment), true
}

func (s *store) len() int {
	return s.heap.Size()
}

// each calls fn for every fragment in no particular order.
func (s *store) each(fn func(*fragment)) {
	for _, v := range s.heap.Values() {
		fn(v.(*fragment))
	}
}

// drain removes all fragments and returns them in order.
func (s *store) drain() []*fragment {
	fragments := make([]*fragment, 0, s.heap.Size())

	for {
		f, ok := s.pop()
		if !ok {
			return fragments
		}

		fragments = append(fragments, f)
	}
}

func (s *store) clear() {
	s.heap.Clear()
}
