package writer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go/compress"
	"github.com/rs/zerolog/log"
	"github.com/thirdweb-dev/archive-exporter/internal/common"
	"github.com/thirdweb-dev/archive-exporter/internal/metrics"
	"github.com/thirdweb-dev/archive-exporter/internal/publisher"
	"github.com/thirdweb-dev/archive-exporter/internal/table"
)

const DefaultOutputDir = "data"

type Config struct {
	Dataset   common.Dataset
	Fields    []string
	OutputDir string
	Codec     compress.Codec
}

// Writer persists chunks as numbered parquet files and hands each file to
// the configured publishers.
type Writer struct {
	cfg        Config
	publishers publisher.Publishers
	counter    int
}

type Option func(*Writer)

func WithPublishers(publishers ...publisher.Publisher) Option {
	return func(w *Writer) {
		w.publishers = append(w.publishers, publishers...)
	}
}

func New(cfg Config, opts ...Option) (*Writer, error) {
	if len(cfg.Fields) == 0 {
		return nil, fmt.Errorf("writer needs at least one field")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", cfg.OutputDir, err)
	}
	w := &Writer{cfg: cfg}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Files returns the number of files written so far.
func (w *Writer) Files() int {
	return w.counter
}

// Run consumes chunks until the channel closes, an empty chunk arrives, or
// ctx is done.
func (w *Writer) Run(ctx context.Context, chunks <-chan common.Chunk) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok || len(chunk) == 0 {
				log.Debug().Int("files", w.counter).Msg("Writer finished")
				return nil
			}
			if _, err := w.WriteChunk(ctx, chunk); err != nil {
				return err
			}
		}
	}
}

// WriteChunk materializes and persists one chunk, then publishes the file.
func (w *Writer) WriteChunk(ctx context.Context, chunk common.Chunk) (*publisher.FileWritten, error) {
	start := time.Now()

	tbl, err := Materialize(w.cfg.Dataset, w.cfg.Fields, chunk)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize chunk %d: %w", w.counter, err)
	}

	name := fmt.Sprintf("%s_%d.parquet", w.cfg.Dataset, w.counter)
	path := filepath.Join(w.cfg.OutputDir, name)
	size, sum, err := Persist(tbl, path, w.cfg.Codec)
	if err != nil {
		return nil, err
	}

	file := &publisher.FileWritten{
		Dataset: w.cfg.Dataset,
		Path:    path,
		File:    name,
		Counter: w.counter,
		Rows:    tbl.Rows(),
		Bytes:   size,
		SHA256:  sum,
		Columns: tbl.Names(),
		Table:   tbl,
	}
	file.FirstBlock, file.LastBlock = blockBounds(chunk)
	w.counter++

	metrics.FilesWritten.Inc()
	metrics.RowsWritten.Add(float64(file.Rows))
	metrics.WriteDuration.Observe(time.Since(start).Seconds())
	log.Debug().Str("file", path).Int("rows", file.Rows).Int64("bytes", size).Msg("Wrote chunk")

	if err := w.publishers.Publish(ctx, file); err != nil {
		return nil, err
	}
	return file, nil
}

// blockBounds reads the first and last header numbers of a chunk for
// publisher metadata. A record without one reports 0.
func blockBounds(chunk common.Chunk) (first, last uint64) {
	var err error
	if first, err = common.HeaderNumber(chunk[0]); err != nil {
		log.Debug().Err(err).Msg("Chunk has no first block number")
	}
	if last, err = common.HeaderNumber(chunk[len(chunk)-1]); err != nil {
		log.Debug().Err(err).Msg("Chunk has no last block number")
	}
	return first, last
}

// Persist writes the table to path and returns the file size and SHA-256.
func Persist(tbl *table.Table, path string, codec compress.Codec) (int64, string, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create parquet file: %w", err)
	}

	hash := sha256.New()
	counter := &countingWriter{}
	if err := tbl.WriteParquet(io.MultiWriter(f, hash, counter), codec); err != nil {
		f.Close()
		return 0, "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return 0, "", fmt.Errorf("failed to close parquet file: %w", err)
	}
	return counter.n, hex.EncodeToString(hash.Sum(nil)), nil
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
