// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package reassembly

import (
	"fmt"

	"go.uber.org/zap"
)

// Options defines settings for Assembler.
type Options struct {
	Logger *zap.Logger

	Metrics Metrics

	// Defragmentation is triggered when allocated but unused memory
	// exceeds max(buffered * DefragmentRatio, DefragmentFloor).
	DefragmentRatio float64
	DefragmentFloor int
}

// defaultOptions returns default initial values.
func defaultOptions() Options {
	return Options{
		Logger:          zap.NewNop(),
		Metrics:         nopMetrics{},
		DefragmentRatio: 1.5,
		DefragmentFloor: 4096,
	}
}

// OptionFunc allows setting Assembler options.
type OptionFunc func(*Options) error

// WithLogger sets logger for Assembler.
func WithLogger(logger *zap.Logger) OptionFunc {
	return func(opt *Options) error {
		if logger == nil {
			return fmt.Errorf("logger should be set")
		}

		opt.Logger = logger

		return nil
	}
}

// WithMetrics sets metrics sink for Assembler.
func WithMetrics(metrics Metrics) OptionFunc {
	return func(opt *Options) error {
		if metrics == nil {
			return fmt.Errorf("metrics should be set")
		}

		opt.Metrics = metrics

		return nil
	}
}

// WithDefragmentThreshold sets the over-allocation limit which triggers defragmentation.
//
// Over-allocation is the difference between the size of the allocations retained by the buffered
// fragments and the buffered bytes. It is allowed to grow up to ratio times the buffered bytes,
// but never triggers defragmentation below floor bytes.
func WithDefragmentThreshold(ratio float64, floor int) OptionFunc {
	return func(opt *Options) error {
		if ratio <= 0 {
			return fmt.Errorf("defragment ratio should be positive: %f", ratio)
		}

		if floor < 0 {
			return fmt.Errorf("defragment floor should be non-negative: %d", floor)
		}

		opt.DefragmentRatio = ratio
		opt.DefragmentFloor = floor

		return nil
	}
}
