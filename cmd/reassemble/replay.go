// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/siderolabs/go-reassembly"
	"github.com/siderolabs/go-reassembly/otelmetrics"
	"github.com/siderolabs/go-reassembly/trace"
)

type replayOptions struct {
	*rootOptions

	trace     string
	out       string
	readSize  string
	rate      string
	unordered bool
	metrics   bool
}

func newReplayCommand(root *rootOptions) *cobra.Command {
	opts := &replayOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Feed a trace through an Assembler",
		Long: `Replay inserts the fragments of a trace into an Assembler one by one and
drains the Assembler into the output file after every insert.

Ordered replay appends the stream to the output, unordered replay writes
every chunk at its stream offset.`,
		Args: cobra.NoArgs,
		RunE: opts.run,
	}

	cmd.Flags().StringVar(&opts.trace, "trace", "", "input trace")
	cmd.Flags().StringVar(&opts.out, "out", "", "output file")
	cmd.Flags().StringVar(&opts.readSize, "read-size", "64KiB", "maximum chunk size")
	cmd.Flags().StringVar(&opts.rate, "rate", "0", "output rate limit per second (0 = unlimited)")
	cmd.Flags().BoolVar(&opts.unordered, "unordered", false, "read chunks as soon as they arrive")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "log assembler metrics after replay")

	cmd.MarkFlagRequired("trace") //nolint:errcheck
	cmd.MarkFlagRequired("out")   //nolint:errcheck

	return cmd
}

type replayStats struct {
	fragments int
	written   int64
}

//nolint:gocyclo
func (opts *replayOptions) run(cmd *cobra.Command, _ []string) error {
	readSize, err := parseSize("read-size", opts.readSize)
	if err != nil {
		return err
	}

	if readSize == 0 {
		return fmt.Errorf("read-size should be positive")
	}

	byteRate, err := humanize.ParseBytes(opts.rate)
	if err != nil {
		return fmt.Errorf("failed to parse rate: %w", err)
	}

	var limiter *rate.Limiter

	if byteRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(byteRate), readSize)
	}

	assemblerOpts := []reassembly.OptionFunc{reassembly.WithLogger(opts.logger)}

	var reader *sdkmetric.ManualReader

	if opts.metrics {
		reader = sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

		defer provider.Shutdown(context.Background()) //nolint:errcheck

		var m *otelmetrics.Metrics

		if m, err = otelmetrics.New(provider.Meter("reassemble")); err != nil {
			return err
		}

		assemblerOpts = append(assemblerOpts, reassembly.WithMetrics(m))
	}

	a, err := reassembly.NewAssembler(assemblerOpts...)
	if err != nil {
		return err
	}

	if opts.unordered {
		if err = a.EnsureOrdering(false); err != nil {
			return err
		}
	}

	in, err := os.Open(opts.trace)
	if err != nil {
		return err
	}

	defer in.Close() //nolint:errcheck

	r, err := trace.NewReader(in)
	if err != nil {
		return err
	}

	defer r.Close()

	out, err := os.Create(opts.out)
	if err != nil {
		return err
	}

	defer out.Close() //nolint:errcheck

	stats, err := opts.replay(cmd.Context(), a, r, out, readSize, limiter)
	if err != nil {
		return err
	}

	if err = out.Close(); err != nil {
		return err
	}

	fields := []zap.Field{
		zap.Int("fragments", stats.fragments),
		zap.String("written", humanize.IBytes(uint64(stats.written))),
		zap.String("left_buffered", humanize.IBytes(uint64(a.Buffered()))),
		zap.Int("left_fragments", a.Len()),
	}

	if opts.unordered || a.Len() == 0 {
		opts.logger.Info("replay finished", fields...)
	} else {
		opts.logger.Warn("stream has gaps", append(fields, zap.Uint64("bytes_read", a.BytesRead()))...)
	}

	if reader != nil {
		return logMetrics(opts.logger, reader)
	}

	return nil
}

func (opts *replayOptions) replay(
	ctx context.Context,
	a *reassembly.Assembler,
	r *trace.Reader,
	out *os.File,
	readSize int,
	limiter *rate.Limiter,
) (replayStats, error) {
	var stats replayStats

	drain := func() (int64, error) {
		if opts.unordered {
			return a.DrainAt(out, readSize)
		}

		return a.Drain(out, readSize)
	}

	for {
		fragment, err := r.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}

		if err != nil {
			return stats, err
		}

		a.Insert(fragment.Offset, fragment.Data, fragment.AllocationSize)

		stats.fragments++

		n, err := drain()
		if err != nil {
			return stats, err
		}

		stats.written += n

		if err = pace(ctx, limiter, n); err != nil {
			return stats, err
		}
	}
}

// pace waits until n bytes fit into the rate limit.
func pace(ctx context.Context, limiter *rate.Limiter, n int64) error {
	if limiter == nil {
		return nil
	}

	for n > 0 {
		step := min(n, int64(limiter.Burst()))

		if err := limiter.WaitN(ctx, int(step)); err != nil {
			return err
		}

		n -= step
	}

	return nil
}

func logMetrics(logger *zap.Logger, reader *sdkmetric.ManualReader) error {
	var rm metricdata.ResourceMetrics

	if err := reader.Collect(context.Background(), &rm); err != nil {
		return fmt.Errorf("failed to collect metrics: %w", err)
	}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					logger.Info("metric",
						zap.String("name", m.Name),
						zap.Int64("value", dp.Value),
						zap.String("attributes", dp.Attributes.Encoded(attribute.DefaultEncoder())),
					)
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					logger.Info("metric",
						zap.String("name", m.Name),
						zap.Uint64("count", dp.Count),
						zap.Int64("sum", dp.Sum),
					)
				}
			}
		}
	}

	return nil
}
