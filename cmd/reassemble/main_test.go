// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/siderolabs/go-reassembly/trace"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func execute(t *testing.T, args ...string) error {
	t.Helper()

	cmd := newRootCommand()
	cmd.SetArgs(args)

	return cmd.Execute()
}

func writeStream(t *testing.T, size int) (string, []byte) {
	t.Helper()

	stream := make([]byte, size)

	rnd := rand.New(rand.NewPCG(1, 2))

	for i := range stream {
		stream[i] = byte(rnd.Uint32())
	}

	path := filepath.Join(t.TempDir(), "stream")

	require.NoError(t, os.WriteFile(path, stream, 0o644))

	return path, stream
}

func TestScrambleReplay(t *testing.T) {
	t.Parallel()

	in, stream := writeStream(t, 200_000)

	tracePath := filepath.Join(t.TempDir(), "stream.trace")

	require.NoError(t, execute(t, "scramble", "--in", in, "--out", tracePath, "--seed", "42", "--duplicates", "0.5"))

	for _, test := range []struct {
		name string

		args []string
	}{
		{
			name: "ordered",
		},
		{
			name: "ordered small reads",

			args: []string{"--read-size", "100B"},
		},
		{
			name: "unordered",

			args: []string{"--unordered"},
		},
		{
			name: "rate limited with metrics",

			args: []string{"--rate", "100MiB", "--metrics", "--verbose"},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			out := filepath.Join(t.TempDir(), "out")

			require.NoError(t, execute(t, slices.Concat([]string{"replay", "--trace", tracePath, "--out", out}, test.args)...))

			actual, err := os.ReadFile(out)
			require.NoError(t, err)

			require.Equal(t, stream, actual)
		})
	}
}

func TestScrambleDeterministic(t *testing.T) {
	t.Parallel()

	in, stream := writeStream(t, 10_000)

	dir := t.TempDir()

	for _, name := range []string{"a", "b"} {
		require.NoError(t, execute(t, "scramble", "--in", in, "--out", filepath.Join(dir, name), "--seed", "7", "--max-fragment", "100B", "--packet", "1KiB"))
	}

	a, err := trace.ReadFile(filepath.Join(dir, "a"))
	require.NoError(t, err)

	b, err := trace.ReadFile(filepath.Join(dir, "b"))
	require.NoError(t, err)

	require.Equal(t, a, b)

	covered := make([]bool, len(stream))

	for _, f := range a {
		assert.LessOrEqual(t, len(f.Data), 200)
		assert.Equal(t, max(len(f.Data), 1024), f.AllocationSize)
		assert.Equal(t, stream[f.Offset:int(f.Offset)+len(f.Data)], f.Data)

		for i := range f.Data {
			covered[int(f.Offset)+i] = true
		}
	}

	assert.NotContains(t, covered, false)
}

func TestReplayGaps(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tracePath := filepath.Join(dir, "gaps.trace")

	require.NoError(t, trace.WriteFile(tracePath, []trace.Fragment{
		{Offset: 4, Data: []byte("efgh"), AllocationSize: 4},
		{Offset: 0, Data: []byte("ab"), AllocationSize: 2},
	}))

	ordered := filepath.Join(dir, "ordered")

	require.NoError(t, execute(t, "replay", "--trace", tracePath, "--out", ordered))

	actual, err := os.ReadFile(ordered)
	require.NoError(t, err)
	assert.Equal(t, "ab", string(actual))

	unordered := filepath.Join(dir, "unordered")

	require.NoError(t, execute(t, "replay", "--trace", tracePath, "--out", unordered, "--unordered"))

	actual, err = os.ReadFile(unordered)
	require.NoError(t, err)
	assert.Equal(t, "ab\x00\x00efgh", string(actual))
}

func TestInvalidFlags(t *testing.T) {
	t.Parallel()

	in, _ := writeStream(t, 10)

	dir := t.TempDir()

	for _, test := range []struct {
		name string

		args []string

		expectedError string
	}{
		{
			name: "missing input",

			args: []string{"scramble", "--out", filepath.Join(dir, "x")},

			expectedError: `required flag(s) "in" not set`,
		},
		{
			name: "bad size",

			args: []string{"scramble", "--in", in, "--out", filepath.Join(dir, "x"), "--packet", "lots"},

			expectedError: "failed to parse packet",
		},
		{
			name: "zero fragment",

			args: []string{"scramble", "--in", in, "--out", filepath.Join(dir, "x"), "--max-fragment", "0"},

			expectedError: "max-fragment should be between",
		},
		{
			name: "not a trace",

			args: []string{"replay", "--trace", in, "--out", filepath.Join(dir, "y")},

			expectedError: "trace",
		},
		{
			name: "zero read size",

			args: []string{"replay", "--trace", in, "--out", filepath.Join(dir, "y"), "--read-size", "0"},

			expectedError: "read-size should be positive",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			err := execute(t, test.args...)
			require.Error(t, err)

			assert.Contains(t, err.Error(), test.expectedError)
		})
	}
}
