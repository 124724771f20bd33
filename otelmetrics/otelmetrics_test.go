// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package otelmetrics_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/go-reassembly"
	"github.com/siderolabs/go-reassembly/otelmetrics"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	metrics := map[string]metricdata.Aggregation{}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			metrics[m.Name] = m.Data
		}
	}

	return metrics
}

func sum(t *testing.T, metrics map[string]metricdata.Aggregation, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()

	data, ok := metrics[name]
	require.True(t, ok, "metric %q not found", name)

	s, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %q is not an int64 sum", name)

	set := attribute.NewSet(attrs...)

	for _, dp := range s.DataPoints {
		if dp.Attributes.Equals(&set) {
			return dp.Value
		}
	}

	return 0
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() {
		require.NoError(t, provider.Shutdown(context.Background()))
	})

	m, err := otelmetrics.New(provider.Meter("test"))
	require.NoError(t, err)

	a, err := reassembly.NewAssembler(
		reassembly.WithLogger(zaptest.NewLogger(t)),
		reassembly.WithMetrics(m),
	)
	require.NoError(t, err)

	a.Insert(0, []byte("abc"), 4)

	_, ok := a.Read(math.MaxInt, true)
	require.True(t, ok)

	a.Insert(0, []byte("abcd"), 4)

	_, ok = a.Read(math.MaxInt, true)
	require.True(t, ok)

	// second assembler shares the instruments
	u, err := reassembly.NewAssembler(
		reassembly.WithMetrics(m),
		reassembly.WithDefragmentThreshold(1, 0),
	)
	require.NoError(t, err)

	require.NoError(t, u.EnsureOrdering(false))

	u.Insert(10, []byte("x"), 100)

	_, ok = u.Read(math.MaxInt, false)
	require.True(t, ok)

	metrics := collect(t, reader)

	assert.EqualValues(t, 3, sum(t, metrics, otelmetrics.MetricFragmentsStored))
	assert.EqualValues(t, 5, sum(t, metrics, otelmetrics.MetricBytesStored))
	assert.EqualValues(t, 108, sum(t, metrics, otelmetrics.MetricBytesAllocated))
	assert.EqualValues(t, 3, sum(t, metrics, otelmetrics.MetricBytesDiscarded))

	assert.EqualValues(t, 2, sum(t, metrics, otelmetrics.MetricChunksRead, attribute.Bool("ordered", true)))
	assert.EqualValues(t, 4, sum(t, metrics, otelmetrics.MetricBytesRead, attribute.Bool("ordered", true)))
	assert.EqualValues(t, 1, sum(t, metrics, otelmetrics.MetricChunksRead, attribute.Bool("ordered", false)))
	assert.EqualValues(t, 1, sum(t, metrics, otelmetrics.MetricBytesRead, attribute.Bool("ordered", false)))

	assert.EqualValues(t, 1, sum(t, metrics, otelmetrics.MetricDefragmentations))
	assert.EqualValues(t, 1, sum(t, metrics, otelmetrics.MetricDefragmentBytesCopied))

	merged, ok := metrics[otelmetrics.MetricDefragmentMerged].(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, merged.DataPoints, 1)
	assert.EqualValues(t, 1, merged.DataPoints[0].Count)
	assert.EqualValues(t, 0, merged.DataPoints[0].Sum)
}

func TestNilMetrics(t *testing.T) {
	t.Parallel()

	var m *otelmetrics.Metrics

	assert.NotPanics(t, func() {
		m.FragmentStored(1, 1)
		m.DuplicateDiscarded(1)
		m.ChunkRead(1, true)
		m.Defragmented(2, 1, 1)
	})
}

func TestNoopMeter(t *testing.T) {
	t.Parallel()

	m, err := otelmetrics.New(noopmetric.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	a, err := reassembly.NewAssembler(reassembly.WithMetrics(m))
	require.NoError(t, err)

	a.Insert(0, []byte("abc"), 3)

	c, ok := a.Read(math.MaxInt, true)
	require.True(t, ok)
	assert.Equal(t, "abc", string(c.Bytes))
}
