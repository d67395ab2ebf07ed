// Command bufferline exercises a buffer topology end to end: it builds
// the configured stage chain, pushes a batch of records through it, drains
// and acknowledges them, and prints the resulting ledger summaries.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/telemetrydev/bufferline"
	"github.com/telemetrydev/bufferline/config"
	"github.com/telemetrydev/bufferline/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "bufferline:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to the buffer topology config")
		count      = flag.Int("count", 100, "records to push through the topology")
	)
	flag.Parse()

	log := logger.New("bufferline")
	defer log.Sync()

	stages, err := loadStages(*configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pipeline, err := bufferline.Build(ctx, stages, bufferline.BytesCodec(), log, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer pipeline.Close(context.Background())

	sender := pipeline.Sender()
	for i := 0; i < *count; i++ {
		if err := sender.RequestCapacity(ctx); err != nil {
			return fmt.Errorf("request capacity: %w", err)
		}

		payload := []byte(fmt.Sprintf("record-%04d", i))
		if err := sender.Commit(ctx, payload); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}

	if err := sender.Flush(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	receiver := pipeline.Receiver()
	received := 0
	for received < *count {
		if _, err := receiver.Next(ctx); err != nil {
			return fmt.Errorf("next after %d records: %w", received, err)
		}

		received++
		pipeline.Ack(1)
	}

	log.Infow("drained topology", "records", received)
	for i, summary := range pipeline.Summary() {
		log.Infow("disk stage summary",
			"stage", i,
			"writer_file_id", summary.WriterFileID,
			"writer_offset", summary.WriterOffset,
			"reader_file_id", summary.ReaderFileID,
			"reader_offset", summary.ReaderOffset,
			"unacked_size", summary.UnackedSize,
			"total_records", summary.TotalRecords,
		)
	}
	return nil
}

// loadStages reads the configured topology, falling back to a memory
// stage overflowing into a disk stage under a temp directory.
func loadStages(path string) ([]bufferline.Stage, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		return cfg.TopologyStages()
	}

	dir, err := os.MkdirTemp("", "bufferline-demo-")
	if err != nil {
		return nil, err
	}

	return []bufferline.Stage{
		{
			Kind:     bufferline.KindMemory,
			WhenFull: bufferline.Overflow,
			Memory:   &bufferline.MemoryOptions{MaxEvents: 32},
		},
		{
			Kind:     bufferline.KindDisk,
			WhenFull: bufferline.Block,
			Disk:     &bufferline.DiskOptions{Directory: dir},
		},
	}, nil
}
