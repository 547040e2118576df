// Package config holds the engine-wide tunables of spec §6's
// Configuration table: codec, compression level, filter pipeline,
// evaluation strategy, thread count, and block-size hint. Grounded on the
// teacher's hand-rolled flag/command dispatch (cmd/sentra/main.go,
// internal/commands/commands.go) rather than a flag-parsing library — the
// teacher never imports one, so neither does this.
package config

import (
	"encoding/json"
	"os"

	"iarray/internal/codec"
	"iarray/internal/evaluator"
	"iarray/internal/ierrors"
)

// Config is the engine-wide tunable set. Zero value is not valid on its
// own; use New to apply documented defaults.
type Config struct {
	Codec         codec.ID
	Level         int
	Filter        codec.Filter
	EvalStrategy  evaluator.Strategy
	MaxNumThreads int
	BlockSizeHint int
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithCodec selects the codec backend (spec §6's `codec` row).
func WithCodec(id codec.ID) Option { return func(c *Config) { c.Codec = id } }

// WithLevel sets the compression level, 0..9.
func WithLevel(level int) Option { return func(c *Config) { c.Level = level } }

// WithFilter sets the filter-pipeline bitmask.
func WithFilter(f codec.Filter) Option { return func(c *Config) { c.Filter = f } }

// WithEvalStrategy selects chunk-wise or block-wise evaluation.
func WithEvalStrategy(s evaluator.Strategy) Option { return func(c *Config) { c.EvalStrategy = s } }

// WithMaxNumThreads bounds the block-parallel worker pool.
func WithMaxNumThreads(n int) Option { return func(c *Config) { c.MaxNumThreads = n } }

// WithBlockSizeHint overrides the derived block byte size.
func WithBlockSizeHint(bytes int) Option { return func(c *Config) { c.BlockSizeHint = bytes } }

// New builds a Config from documented defaults (zstd level 3, no
// filters, chunk-wise evaluation, one thread) plus any opts.
func New(opts ...Option) Config {
	c := Config{
		Codec:         codec.Zstd,
		Level:         3,
		Filter:        codec.NoFilter,
		EvalStrategy:  evaluator.StrategyChunk,
		MaxNumThreads: 1,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Params derives a codec.Params from this Config; BlockBytes carries
// BlockSizeHint, while ItemSize/ChunkBytes (and BlockBytes, when the hint
// is <= 0) are filled in by the container package from the target shape.
func (c Config) Params() codec.Params {
	return codec.Params{
		CodecID:    c.Codec,
		Level:      c.Level,
		Filter:     c.Filter,
		BlockBytes: c.BlockSizeHint,
	}
}

// fileFormat mirrors the teacher's sentra.json manifest convention
// (internal/commands.InitCommand) adapted to this engine's tunables.
type fileFormat struct {
	Codec         string `json:"codec"`
	Level         int    `json:"level"`
	Filter        int    `json:"filter"`
	EvalStrategy  string `json:"eval_strategy"`
	MaxNumThreads int    `json:"max_num_threads"`
	BlockSizeHint int    `json:"block_size_hint"`
}

// Load reads a JSON config file, matching the teacher's sentra.json
// manifest shape.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, ierrors.NewFailed("config: read %s: %v", path, err)
	}
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return Config{}, ierrors.NewFailed("config: parse %s: %v", path, err)
	}
	id, err := parseCodecName(ff.Codec)
	if err != nil {
		return Config{}, err
	}
	strategy := evaluator.StrategyChunk
	if ff.EvalStrategy == "block" {
		strategy = evaluator.StrategyBlock
	}
	return New(
		WithCodec(id),
		WithLevel(ff.Level),
		WithFilter(codec.Filter(ff.Filter)),
		WithEvalStrategy(strategy),
		WithMaxNumThreads(ff.MaxNumThreads),
		WithBlockSizeHint(ff.BlockSizeHint),
	), nil
}

func parseCodecName(name string) (codec.ID, error) {
	switch name {
	case "", "zstd":
		return codec.Zstd, nil
	case "blosclz":
		return codec.BloscLZ, nil
	case "lz4":
		return codec.LZ4, nil
	case "lz4hc":
		return codec.LZ4HC, nil
	case "snappy":
		return codec.Snappy, nil
	case "zlib":
		return codec.Zlib, nil
	case "lizard":
		return codec.Lizard, nil
	default:
		return 0, ierrors.NewInvalidArgument("config: unknown codec %q", name)
	}
}
