package topology

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/telemetrydev/bufferline/internal/core/domain"
	"github.com/telemetrydev/bufferline/internal/core/ports"
	"github.com/telemetrydev/bufferline/internal/core/services/channel"
	"github.com/telemetrydev/bufferline/internal/core/services/disk"
	validation "github.com/telemetrydev/bufferline/pkg/errors"
)

// StageKind selects the backing queue of one topology stage.
type StageKind string

const (
	KindMemory StageKind = "memory"
	KindDisk   StageKind = "disk"
)

// Stage describes one link of a buffer topology.
type Stage struct {
	// Kind selects the backing queue implementation.
	Kind StageKind

	// Name labels logs and metrics. Defaults to "<kind>-<index>".
	Name string

	// WhenFull is the stage's admission policy. Every stage followed by
	// another must use Overflow; the last stage must not.
	WhenFull domain.WhenFull

	// Memory configures a memory stage; ignored for disk stages.
	Memory *domain.MemoryOptions

	// Disk configures a disk stage; ignored for memory stages.
	Disk *domain.DiskOptions
}

// Topology validation errors.
var (
	ErrEmptyTopology   = errors.New("topology: at least one stage is required")
	ErrOverflowAtEnd   = errors.New("topology: the last stage cannot use the overflow policy")
	ErrStageUnreached  = errors.New("topology: a stage followed by another must use the overflow policy")
	ErrUnknownKind     = errors.New("topology: unknown stage kind")
	ErrMissingDiskOpts = errors.New("topology: disk stage requires disk options")
)

// Pipeline is one logical buffer edge: a producer handle, a consumer
// handle and an acknowledgement handle over a validated stage chain. Disk
// stages in the chain survive restarts; the pipeline re-opens them against
// their persisted state.
type Pipeline[T any] struct {
	id       string
	sender   *channel.Sender[T]
	receiver *channel.Receiver[T]
	buffers  []*disk.Buffer[T]
	logger   *zap.SugaredLogger
}

// Build validates the stage chain and wires it inside-out: each stage's
// sender overflows into the next one's, and the receiver drains all stages
// with rotating preference. The chain shape itself guarantees overflow
// links are acyclic and finite.
func Build[T any](
	ctx context.Context,
	stages []Stage,
	codec ports.Codec[T],
	logger *zap.SugaredLogger,
	reg prometheus.Registerer,
) (*Pipeline[T], error) {
	if err := validate(stages); err != nil {
		return nil, err
	}

	p := &Pipeline[T]{
		id:     uuid.NewString(),
		logger: logger,
	}

	queues := make([]stageHandle[T], len(stages))
	for i, stage := range stages {
		name := stage.Name
		if name == "" {
			name = fmt.Sprintf("%s-%d", stage.Kind, i)
		}

		queue, err := p.buildStage(ctx, stage, name, codec, reg)
		if err != nil {
			p.closeBuffers(ctx)
			return nil, err
		}
		queues[i] = stageHandle[T]{name: name, queue: queue, policy: stage.WhenFull}
	}

	// Senders nest back-to-front so each one can hold its overflow
	// target by value.
	var overflow *channel.Sender[T]
	sources := make([]channel.Source[T], len(queues))
	for i := len(queues) - 1; i >= 0; i-- {
		h := queues[i]
		overflow = channel.NewSender(h.name, h.queue, h.policy, overflow, channel.NewMetrics(reg, h.name), logger)
		sources[i] = h.queue
	}

	p.sender = overflow
	p.receiver = channel.NewReceiver(sources...)

	logger.Infow("built buffer topology", "pipeline_id", p.id, "stages", len(stages))
	return p, nil
}

type stageHandle[T any] struct {
	name   string
	queue  channel.Source[T]
	policy domain.WhenFull
}

func validate(stages []Stage) error {
	if len(stages) == 0 {
		return ErrEmptyTopology
	}

	for i, stage := range stages {
		last := i == len(stages)-1

		if last && stage.WhenFull == domain.Overflow {
			return validation.NewValidationError("whenFull", stage.WhenFull.String(), ErrOverflowAtEnd)
		}
		if !last && stage.WhenFull != domain.Overflow {
			return validation.NewValidationError("whenFull", stage.WhenFull.String(), ErrStageUnreached)
		}

		switch stage.Kind {
		case KindMemory:
		case KindDisk:
			if stage.Disk == nil {
				return validation.NewValidationError("disk", nil, ErrMissingDiskOpts)
			}
		default:
			return validation.NewValidationError("kind", string(stage.Kind), ErrUnknownKind)
		}
	}
	return nil
}

func (p *Pipeline[T]) buildStage(
	ctx context.Context,
	stage Stage,
	name string,
	codec ports.Codec[T],
	reg prometheus.Registerer,
) (channel.Source[T], error) {
	switch stage.Kind {
	case KindMemory:
		opts := stage.Memory
		if opts == nil {
			opts = &domain.MemoryOptions{}
		}
		return channel.NewMemoryStage[T](opts, codec.SizeHint), nil

	case KindDisk:
		buffer, err := disk.Open(ctx, stage.Disk, codec, p.logger)
		if err != nil {
			return nil, err
		}
		p.buffers = append(p.buffers, buffer)

		channel.NewUnackedGauge(reg, name, func() uint64 {
			return buffer.Summary().UnackedSize
		})
		return channel.NewDiskStage(buffer), nil

	default:
		return nil, ErrUnknownKind
	}
}

// ID identifies this pipeline instance in logs and metrics.
func (p *Pipeline[T]) ID() string { return p.id }

// Sender returns the producer handle of the pipeline.
func (p *Pipeline[T]) Sender() *channel.Sender[T] { return p.sender }

// Receiver returns the consumer handle of the pipeline.
func (p *Pipeline[T]) Receiver() *channel.Receiver[T] { return p.receiver }

// Ack reports the n oldest delivered records as durably processed.
func (p *Pipeline[T]) Ack(n int) { p.receiver.Ack(n) }

// Summary returns the operational snapshot of every disk stage, in stage
// order. Memory stages carry no durable state to report.
func (p *Pipeline[T]) Summary() []domain.LedgerSummary {
	summaries := make([]domain.LedgerSummary, 0, len(p.buffers))
	for _, buffer := range p.buffers {
		summaries = append(summaries, buffer.Summary())
	}
	return summaries
}

// Close shuts the pipeline down: the sender chain is closed and flushed,
// the receiver stops, and every disk buffer is fully torn down. The first
// error is reported; all parts still run.
func (p *Pipeline[T]) Close(ctx context.Context) error {
	var err error
	if p.sender != nil {
		err = p.sender.Close(ctx)
	}
	if p.receiver != nil {
		p.receiver.Close()
	}

	if cerr := p.closeBuffers(ctx); cerr != nil && err == nil {
		err = cerr
	}

	p.logger.Infow("closed buffer topology", "pipeline_id", p.id)
	return err
}

func (p *Pipeline[T]) closeBuffers(ctx context.Context) error {
	var err error
	for _, buffer := range p.buffers {
		if cerr := buffer.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
