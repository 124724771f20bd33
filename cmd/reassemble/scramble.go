// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siderolabs/go-reassembly/trace"
)

type scrambleOptions struct {
	*rootOptions

	in          string
	out         string
	maxFragment string
	packet      string
	duplicates  float64
	seed        uint64
}

func newScrambleCommand(root *rootOptions) *cobra.Command {
	opts := &scrambleOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "scramble",
		Short: "Cut a file into a shuffled fragment trace",
		Long: `Scramble cuts the input file into fragments of random size, adds overlapping
duplicates and writes the shuffled fragments as a trace. Each fragment is carved
from a packet-sized allocation.`,
		Args: cobra.NoArgs,
		RunE: opts.run,
	}

	cmd.Flags().StringVar(&opts.in, "in", "", "input file")
	cmd.Flags().StringVar(&opts.out, "out", "", "output trace")
	cmd.Flags().StringVar(&opts.maxFragment, "max-fragment", "1KiB", "maximum fragment size")
	cmd.Flags().StringVar(&opts.packet, "packet", "1500B", "allocation size fragments are carved from")
	cmd.Flags().Float64Var(&opts.duplicates, "duplicates", 0.25, "number of overlapping duplicates per fragment")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "random seed (0 = random)")

	cmd.MarkFlagRequired("in")  //nolint:errcheck
	cmd.MarkFlagRequired("out") //nolint:errcheck

	return cmd
}

func (opts *scrambleOptions) run(*cobra.Command, []string) error {
	maxFragment, err := parseSize("max-fragment", opts.maxFragment)
	if err != nil {
		return err
	}

	if maxFragment == 0 || maxFragment > trace.MaxAllocationSize/2 {
		return fmt.Errorf("max-fragment should be between 1B and %s", humanize.IBytes(trace.MaxAllocationSize/2))
	}

	packet, err := parseSize("packet", opts.packet)
	if err != nil {
		return err
	}

	if opts.duplicates < 0 {
		return fmt.Errorf("duplicates should be non-negative: %f", opts.duplicates)
	}

	stream, err := os.ReadFile(opts.in)
	if err != nil {
		return err
	}

	seed := opts.seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	fragments := scramble(rand.New(rand.NewPCG(seed, seed)), stream, maxFragment, packet, opts.duplicates)

	if err = trace.WriteFile(opts.out, fragments); err != nil {
		return err
	}

	opts.logger.Info("trace written",
		zap.String("path", opts.out),
		zap.Int("fragments", len(fragments)),
		zap.String("stream_size", humanize.IBytes(uint64(len(stream)))),
		zap.Uint64("seed", seed),
	)

	return nil
}

// scramble cuts stream into fragments covering all of it, adds overlapping
// duplicates and shuffles the result.
func scramble(rnd *rand.Rand, stream []byte, maxFragment, packet int, duplicates float64) []trace.Fragment {
	var fragments []trace.Fragment

	carve := func(offset, length int) {
		allocation := make([]byte, max(length, packet))
		start := rnd.IntN(len(allocation) - length + 1)

		copy(allocation[start:], stream[offset:offset+length])

		fragments = append(fragments, trace.Fragment{
			Offset:         uint64(offset),
			Data:           allocation[start : start+length],
			AllocationSize: len(allocation),
		})
	}

	for offset := 0; offset < len(stream); {
		length := min(1+rnd.IntN(maxFragment), len(stream)-offset)

		carve(offset, length)

		offset += length
	}

	if len(stream) > 0 {
		for range int(float64(len(fragments)) * duplicates) {
			offset := rnd.IntN(len(stream))
			length := min(1+rnd.IntN(2*maxFragment), len(stream)-offset)

			carve(offset, length)
		}
	}

	rnd.Shuffle(len(fragments), func(i, j int) {
		fragments[i], fragments[j] = fragments[j], fragments[i]
	})

	return fragments
}

func parseSize(flag, value string) (int, error) {
	size, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", flag, err)
	}

	if size > trace.MaxAllocationSize {
		return 0, fmt.Errorf("%s is too large: %s", flag, humanize.IBytes(size))
	}

	return int(size), nil
}
