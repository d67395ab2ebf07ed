// Package bufferline provides durable, backpressure-aware buffering for
// telemetry pipelines: a disk-backed FIFO record queue with crash
// recovery, an in-memory bounded queue, and a producer/consumer channel
// that composes them with block, drop-newest and overflow policies.
package bufferline

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/telemetrydev/bufferline/internal/core/domain"
	"github.com/telemetrydev/bufferline/internal/core/ports"
	"github.com/telemetrydev/bufferline/internal/core/services/channel"
	"github.com/telemetrydev/bufferline/internal/core/services/disk"
	"github.com/telemetrydev/bufferline/internal/core/services/topology"
)

// Core types, re-exported so callers never import internal packages.
type (
	// Buffer is a durable disk-backed FIFO record queue.
	Buffer[T any] = disk.Buffer[T]

	// Sender is the producing half of a backpressure channel.
	Sender[T any] = channel.Sender[T]

	// Receiver is the consuming half of a backpressure channel.
	Receiver[T any] = channel.Receiver[T]

	// Pipeline is one composed buffer topology.
	Pipeline[T any] = topology.Pipeline[T]

	// Codec turns typed records into payload bytes and back.
	Codec[T any] = ports.Codec[T]

	// Stage describes one link of a buffer topology.
	Stage = topology.Stage

	// DiskOptions configures a disk buffer instance.
	DiskOptions = domain.DiskOptions

	// MemoryOptions configures an in-memory stage.
	MemoryOptions = domain.MemoryOptions

	// LedgerSummary is the operational snapshot of a disk buffer.
	LedgerSummary = domain.LedgerSummary

	// WhenFull is a stage's admission policy.
	WhenFull = domain.WhenFull
)

// When-full policies.
const (
	Block      = domain.Block
	DropNewest = domain.DropNewest
	Overflow   = domain.Overflow
)

// Stage kinds.
const (
	KindMemory = topology.KindMemory
	KindDisk   = topology.KindDisk
)

// Sentinel errors.
var (
	ErrBufferClosed   = domain.ErrBufferClosed
	ErrRecordTooLarge = domain.ErrRecordTooLarge
	ErrDecode         = domain.ErrDecode
	ErrCorrupt        = domain.ErrCorrupt
)

// Open opens a durable disk buffer in the configured directory, recovering
// any state a previous instance left behind.
func Open[T any](ctx context.Context, opts *DiskOptions, codec Codec[T], logger *zap.SugaredLogger) (*Buffer[T], error) {
	return disk.Open(ctx, opts, codec, logger)
}

// Build validates and wires a stage chain into one pipeline: a sender, a
// receiver and an acknowledgement handle. Metrics register on reg; pass
// nil to disable registration.
func Build[T any](
	ctx context.Context,
	stages []Stage,
	codec Codec[T],
	logger *zap.SugaredLogger,
	reg prometheus.Registerer,
) (*Pipeline[T], error) {
	return topology.Build(ctx, stages, codec, logger, reg)
}
