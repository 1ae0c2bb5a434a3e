package orchestrator

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go/compress"
	"github.com/rs/zerolog/log"
	"github.com/thirdweb-dev/archive-exporter/internal/chunk"
	"github.com/thirdweb-dev/archive-exporter/internal/common"
	"github.com/thirdweb-dev/archive-exporter/internal/progress"
	"github.com/thirdweb-dev/archive-exporter/internal/publisher"
	"github.com/thirdweb-dev/archive-exporter/internal/schema"
	"github.com/thirdweb-dev/archive-exporter/internal/writer"
	"golang.org/x/sync/errgroup"
)

const DefaultChannelCapacity = 4

// Fetcher returns the records of one archive page starting at startHeight and
// the height the next page starts at.
type Fetcher interface {
	FetchChunk(ctx context.Context, dataset common.Dataset, startHeight uint64, fields []string, options common.FilterOptions) ([]common.RawRecord, uint64, error)
}

type Config struct {
	Dataset         common.Dataset
	Range           common.BlockRange
	Fields          []string
	Options         common.FilterOptions
	MaxChunkBytes   int
	ChannelCapacity int
	OutputDir       string
	Codec           compress.Codec
}

// Pipeline runs one export: a fetch loop feeding a writer and a progress
// reporter over bounded channels.
type Pipeline struct {
	cfg        Config
	fetcher    Fetcher
	writer     *writer.Writer
	publishers []publisher.Publisher
	progress   io.Writer
	delay      time.Duration
}

type Option func(*Pipeline)

func WithPublishers(publishers ...publisher.Publisher) Option {
	return func(p *Pipeline) {
		p.publishers = append(p.publishers, publishers...)
	}
}

// WithProgress renders the progress bar to out. Without it progress values
// are consumed silently.
func WithProgress(out io.Writer, delay time.Duration) Option {
	return func(p *Pipeline) {
		p.progress = out
		p.delay = delay
	}
}

func NewPipeline(cfg Config, fetcher Fetcher, opts ...Option) (*Pipeline, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("pipeline needs a fetcher")
	}
	if err := cfg.Range.Validate(); err != nil {
		return nil, err
	}
	fields, err := schema.ValidateFields(cfg.Dataset, cfg.Fields)
	if err != nil {
		return nil, err
	}
	cfg.Fields = fields
	if cfg.Options == nil {
		cfg.Options = common.FilterOptions{}
	}
	if cfg.MaxChunkBytes <= 0 {
		cfg.MaxChunkBytes = chunk.DefaultMaxBytes
	}
	if cfg.ChannelCapacity <= 0 {
		cfg.ChannelCapacity = DefaultChannelCapacity
	}

	p := &Pipeline{cfg: cfg, fetcher: fetcher}
	for _, opt := range opts {
		opt(p)
	}

	p.writer, err = writer.New(writer.Config{
		Dataset:   cfg.Dataset,
		Fields:    cfg.Fields,
		OutputDir: cfg.OutputDir,
		Codec:     cfg.Codec,
	}, writer.WithPublishers(p.publishers...))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Files returns the number of files the writer has persisted.
func (p *Pipeline) Files() int {
	return p.writer.Files()
}

// Run blocks until the range is exported or any stage fails. The first
// failure cancels the other stages and is returned.
func (p *Pipeline) Run(ctx context.Context) error {
	chunks := make(chan common.Chunk, p.cfg.ChannelCapacity)
	updates := make(chan uint64, p.cfg.ChannelCapacity)

	log.Info().
		Str("dataset", p.cfg.Dataset.String()).
		Str("range", p.cfg.Range.String()).
		Strs("fields", p.cfg.Fields).
		Msg("Starting export")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.FetchLoop(gctx, chunks, updates)
	})
	g.Go(func() error {
		return p.writer.Run(gctx, chunks)
	})
	g.Go(func() error {
		if p.progress == nil {
			return drainProgress(gctx, updates)
		}
		reporter := progress.NewReporter(p.progress, progress.WithDelay(p.delay), progress.WithLabel(p.cfg.Dataset.String()))
		return reporter.Run(gctx, updates)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Int("files", p.writer.Files()).Msg("Export failed")
		return err
	}
	log.Info().Int("files", p.writer.Files()).Msg("Export finished")
	return nil
}

func drainProgress(ctx context.Context, updates <-chan uint64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-updates:
			if !ok {
				return nil
			}
		}
	}
}
