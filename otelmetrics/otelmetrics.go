// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package otelmetrics reports Assembler metrics with OpenTelemetry instruments.
package otelmetrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/siderolabs/go-reassembly"
)

// Metric names.
const (
	MetricFragmentsStored       = "reassembly.fragments.stored"
	MetricBytesStored           = "reassembly.bytes.stored"
	MetricBytesAllocated        = "reassembly.bytes.allocated"
	MetricBytesDiscarded        = "reassembly.bytes.discarded"
	MetricChunksRead            = "reassembly.chunks.read"
	MetricBytesRead             = "reassembly.bytes.read"
	MetricDefragmentations      = "reassembly.defragmentations"
	MetricDefragmentBytesCopied = "reassembly.defragment.bytes.copied"
	MetricDefragmentMerged      = "reassembly.defragment.fragments.merged"

	attrOrdered = "ordered"
)

// Metrics implements reassembly.Metrics.
//
// Metrics is safe for concurrent use, so it can be shared by many Assemblers.
type Metrics struct {
	fragmentsStored       metric.Int64Counter
	bytesStored           metric.Int64Counter
	bytesAllocated        metric.Int64Counter
	bytesDiscarded        metric.Int64Counter
	chunksRead            metric.Int64Counter
	bytesRead             metric.Int64Counter
	defragmentations      metric.Int64Counter
	defragmentBytesCopied metric.Int64Counter
	fragmentsMerged       metric.Int64Histogram

	orderedAttrs   metric.AddOption
	unorderedAttrs metric.AddOption
}

var _ reassembly.Metrics = (*Metrics)(nil)

// New creates Metrics instruments from the given meter.
func New(mt metric.Meter) (*Metrics, error) {
	b := builder{meter: mt}

	m := &Metrics{
		fragmentsStored:       b.counter(MetricFragmentsStored, "Fragments stored by the assembler", "{fragment}"),
		bytesStored:           b.counter(MetricBytesStored, "Bytes stored by the assembler", "By"),
		bytesAllocated:        b.counter(MetricBytesAllocated, "Size of allocations retained by stored fragments", "By"),
		bytesDiscarded:        b.counter(MetricBytesDiscarded, "Inserted bytes dropped as duplicates", "By"),
		chunksRead:            b.counter(MetricChunksRead, "Chunks returned to the consumer", "{chunk}"),
		bytesRead:             b.counter(MetricBytesRead, "Bytes returned to the consumer", "By"),
		defragmentations:      b.counter(MetricDefragmentations, "Defragmentation passes", "{pass}"),
		defragmentBytesCopied: b.counter(MetricDefragmentBytesCopied, "Bytes copied by defragmentation", "By"),
		fragmentsMerged:       b.histogram(MetricDefragmentMerged, "Fragments removed by a single defragmentation pass", "{fragment}"),

		orderedAttrs:   metric.WithAttributes(attribute.Bool(attrOrdered, true)),
		unorderedAttrs: metric.WithAttributes(attribute.Bool(attrOrdered, false)),
	}

	if b.err != nil {
		return nil, b.err
	}

	return m, nil
}

// FragmentStored implements reassembly.Metrics.
func (m *Metrics) FragmentStored(size, allocationSize int) {
	if m == nil {
		return
	}

	ctx := context.Background()

	m.fragmentsStored.Add(ctx, 1)
	m.bytesStored.Add(ctx, int64(size))
	m.bytesAllocated.Add(ctx, int64(allocationSize))
}

// DuplicateDiscarded implements reassembly.Metrics.
func (m *Metrics) DuplicateDiscarded(size int) {
	if m == nil || size == 0 {
		return
	}

	m.bytesDiscarded.Add(context.Background(), int64(size))
}

// ChunkRead implements reassembly.Metrics.
func (m *Metrics) ChunkRead(size int, ordered bool) {
	if m == nil {
		return
	}

	attrs := m.unorderedAttrs
	if ordered {
		attrs = m.orderedAttrs
	}

	ctx := context.Background()

	m.chunksRead.Add(ctx, 1, attrs)
	m.bytesRead.Add(ctx, int64(size), attrs)
}

// Defragmented implements reassembly.Metrics.
func (m *Metrics) Defragmented(fragmentsBefore, fragmentsAfter, bytesCopied int) {
	if m == nil {
		return
	}

	ctx := context.Background()

	m.defragmentations.Add(ctx, 1)
	m.defragmentBytesCopied.Add(ctx, int64(bytesCopied))
	m.fragmentsMerged.Record(ctx, int64(fragmentsBefore-fragmentsAfter))
}

// builder accumulates instrument creation errors.
type builder struct {
	meter metric.Meter
	err   error
}

func (b *builder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

func (b *builder) histogram(name, desc, unit string) metric.Int64Histogram {
	h, err := b.meter.Int64Histogram(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return h
}

func (b *builder) setErr(name string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", name, err)
	}
}
