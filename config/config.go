// Package config maps the YAML buffer configuration consumed from the
// encompassing pipeline onto topology stages.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/telemetrydev/bufferline/internal/core/domain"
	"github.com/telemetrydev/bufferline/internal/core/services/topology"
	validation "github.com/telemetrydev/bufferline/pkg/errors"
)

// Config is the root of a buffer configuration document.
type Config struct {
	Stages []StageConfig `yaml:"stages"`
}

// Duration decodes Go duration strings ("250ms") or integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err == nil {
		parsed, perr := time.ParseDuration(text)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", text, perr)
		}
		*d = Duration(parsed)
		return nil
	}

	var nanos int64
	if err := value.Decode(&nanos); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	*d = Duration(nanos)
	return nil
}

// StageConfig is one stage entry. Zero values defer to the engine
// defaults; size relationships are validated when the topology opens the
// stage.
type StageConfig struct {
	Kind     string `yaml:"kind"`
	Name     string `yaml:"name"`
	WhenFull string `yaml:"when_full"`

	// Memory stage settings.
	MaxEvents int    `yaml:"max_events"`
	MaxBytes  uint64 `yaml:"max_bytes"`

	// Disk stage settings.
	Directory       string        `yaml:"directory"`
	MaxDataFileSize uint64        `yaml:"max_data_file_size"`
	MaxBufferSize   uint64        `yaml:"max_buffer_size"`
	MaxRecordSize   uint64        `yaml:"max_record_size"`
	WriteBufferSize uint32        `yaml:"write_buffer_size"`
	FlushInterval   Duration      `yaml:"flush_interval"`
	SyncOnFlush     *bool         `yaml:"sync_on_flush"`
	Checksum        string        `yaml:"checksum"`
	Compression     bool          `yaml:"compression"`
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a configuration document.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	for i, stage := range cfg.Stages {
		switch topology.StageKind(stage.Kind) {
		case topology.KindMemory, topology.KindDisk:
		default:
			return nil, validation.NewValidationError(
				fmt.Sprintf("stages[%d].kind", i), stage.Kind,
				fmt.Errorf("kind must be %q or %q", topology.KindMemory, topology.KindDisk),
			)
		}

		if _, err := domain.ParseWhenFull(stage.WhenFull); err != nil {
			return nil, validation.NewValidationError(
				fmt.Sprintf("stages[%d].when_full", i), stage.WhenFull, err,
			)
		}
	}

	return &cfg, nil
}

// TopologyStages translates the parsed stages into the builder's input.
func (c *Config) TopologyStages() ([]topology.Stage, error) {
	stages := make([]topology.Stage, 0, len(c.Stages))

	for _, sc := range c.Stages {
		whenFull, err := domain.ParseWhenFull(sc.WhenFull)
		if err != nil {
			return nil, err
		}

		stage := topology.Stage{
			Kind:     topology.StageKind(sc.Kind),
			Name:     sc.Name,
			WhenFull: whenFull,
		}

		switch stage.Kind {
		case topology.KindMemory:
			stage.Memory = &domain.MemoryOptions{
				MaxEvents: sc.MaxEvents,
				MaxBytes:  sc.MaxBytes,
			}

		case topology.KindDisk:
			opts := &domain.DiskOptions{
				Directory:       sc.Directory,
				MaxDataFileSize: sc.MaxDataFileSize,
				MaxBufferSize:   sc.MaxBufferSize,
				MaxRecordSize:   sc.MaxRecordSize,
				WriteBufferSize: sc.WriteBufferSize,
				FlushInterval:   time.Duration(sc.FlushInterval),
			}
			if sc.SyncOnFlush != nil && !*sc.SyncOnFlush {
				opts.DisableSyncOnFlush = true
			}
			if sc.Checksum != "" {
				opts.ChecksumOptions = &domain.ChecksumOptions{
					Algorithm: domain.ChecksumAlgorithm(sc.Checksum),
				}
			}
			if sc.Compression {
				opts.CompressionOptions = &domain.CompressionOptions{Enable: true}
			}
			stage.Disk = opts
		}

		stages = append(stages, stage)
	}

	return stages, nil
}
