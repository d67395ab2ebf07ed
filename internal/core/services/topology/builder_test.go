package topology

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	codecs "github.com/telemetrydev/bufferline/internal/adapters/codec"
	"github.com/telemetrydev/bufferline/internal/adapters/storage"
	"github.com/telemetrydev/bufferline/internal/core/domain"
	"github.com/telemetrydev/bufferline/pkg/logger"
)

func diskStageOptions(store *storage.Memory) *domain.DiskOptions {
	return &domain.DiskOptions{
		Storage:         store,
		MaxDataFileSize: 1024,
		MaxRecordSize:   256,
		MaxBufferSize:   8192,
		WriteBufferSize: 4096,
		FlushInterval:   5 * time.Millisecond,
	}
}

func TestBuildRejectsInvalidChains(t *testing.T) {
	ctx := context.Background()
	log := logger.NewNop()
	codec := codecs.NewBytes()

	_, err := Build(ctx, nil, codec, log, nil)
	require.ErrorIs(t, err, ErrEmptyTopology)

	_, err = Build(ctx, []Stage{
		{Kind: KindMemory, WhenFull: domain.Overflow},
	}, codec, log, nil)
	require.ErrorIs(t, err, ErrOverflowAtEnd)

	_, err = Build(ctx, []Stage{
		{Kind: KindMemory, WhenFull: domain.Block},
		{Kind: KindMemory, WhenFull: domain.Block},
	}, codec, log, nil)
	require.ErrorIs(t, err, ErrStageUnreached)

	_, err = Build(ctx, []Stage{
		{Kind: "tape", WhenFull: domain.Block},
	}, codec, log, nil)
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = Build(ctx, []Stage{
		{Kind: KindDisk, WhenFull: domain.Block},
	}, codec, log, nil)
	require.ErrorIs(t, err, ErrMissingDiskOpts)
}

func TestPipelineMemoryOverflowsToDisk(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	pipeline, err := Build(ctx, []Stage{
		{
			Kind:     KindMemory,
			WhenFull: domain.Overflow,
			Memory:   &domain.MemoryOptions{MaxEvents: 2},
		},
		{
			Kind:     KindDisk,
			WhenFull: domain.Block,
			Disk:     diskStageOptions(store),
		},
	}, codecs.NewBytes(), logger.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer pipeline.Close(ctx)

	sender := pipeline.Sender()
	sent := make(map[string]bool)
	for i := 0; i < 6; i++ {
		payload := fmt.Sprintf("event-%d", i)
		require.NoError(t, sender.RequestCapacity(ctx))
		require.NoError(t, sender.Commit(ctx, []byte(payload)))
		sent[payload] = true
	}
	require.NoError(t, sender.Flush(ctx))

	// Two items fit in memory; four overflowed onto disk. Order across
	// the two sources is unspecified, so collect the set.
	receiver := pipeline.Receiver()
	for i := 0; i < 6; i++ {
		item, err := receiver.Next(ctx)
		require.NoError(t, err)
		require.True(t, sent[string(item)], "unexpected item %q", item)
		delete(sent, string(item))
		pipeline.Ack(1)
	}
	require.Empty(t, sent)

	summaries := pipeline.Summary()
	require.Len(t, summaries, 1)
	require.Equal(t, uint64(0), summaries[0].UnackedSize)
	require.Equal(t, uint64(0), summaries[0].TotalRecords)
}

func TestPipelineDiskStageSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	stages := []Stage{{
		Kind:     KindDisk,
		WhenFull: domain.Block,
		Disk:     diskStageOptions(store),
	}}

	pipeline, err := Build(ctx, stages, codecs.NewBytes(), logger.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)

	sender := pipeline.Sender()
	for i := 0; i < 4; i++ {
		require.NoError(t, sender.RequestCapacity(ctx))
		require.NoError(t, sender.Commit(ctx, []byte(fmt.Sprintf("durable-%d", i))))
	}
	require.NoError(t, pipeline.Close(ctx))

	reopened, err := Build(ctx, stages, codecs.NewBytes(), logger.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer reopened.Close(ctx)

	receiver := reopened.Receiver()
	for i := 0; i < 4; i++ {
		item, err := receiver.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("durable-%d", i), string(item))
		reopened.Ack(1)
	}
}
