// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package reassembly_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chunkRecorder struct {
	chunks []string
}

func (r *chunkRecorder) Write(p []byte) (int, error) {
	r.chunks = append(r.chunks, string(p))

	return len(p), nil
}

var errBrokenWriter = errors.New("broken")

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errBrokenWriter
}

func TestDrain(t *testing.T) {
	t.Parallel()

	req := require.New(t)

	a := newAssembler(t)

	insert(a, in(0, "hello, ", 7), in(12, "!", 1), in(7, "world", 5))

	var rec chunkRecorder

	n, err := a.Drain(&rec, 4)
	req.NoError(err)
	req.EqualValues(13, n)
	req.Equal([]string{"hell", "o, ", "worl", "d", "!"}, rec.chunks)

	n, err = a.Drain(&rec, 0)
	req.NoError(err)
	req.Zero(n)

	insert(a, in(13, "?", 1))

	_, err = a.Drain(brokenWriter{}, 0)
	req.ErrorIs(err, errBrokenWriter)
	req.EqualError(err, "failed to write chunk at offset 13: broken")
}

func TestDrainAt(t *testing.T) {
	t.Parallel()

	req := require.New(t)

	a := newAssembler(t)
	req.NoError(a.EnsureOrdering(false))

	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	req.NoError(err)

	t.Cleanup(func() {
		assert.NoError(t, f.Close())
	})

	insert(a, in(6, "world", 5))

	n, err := a.DrainAt(f, 2)
	req.NoError(err)
	req.EqualValues(5, n)

	insert(a, in(0, "hello world", 11))

	n, err = a.DrainAt(f, 0)
	req.NoError(err)
	req.EqualValues(6, n)

	actual, err := os.ReadFile(f.Name())
	req.NoError(err)
	req.Equal([]byte("hello world"), actual)

	req.Zero(a.Buffered())
}
