package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	config "github.com/thirdweb-dev/archive-exporter/configs"
	"github.com/thirdweb-dev/archive-exporter/internal/common"
	"github.com/thirdweb-dev/archive-exporter/internal/metrics"
	"github.com/thirdweb-dev/archive-exporter/internal/table"
)

// FileWritten describes one persisted output file.
type FileWritten struct {
	Dataset    common.Dataset `json:"dataset"`
	Path       string         `json:"path"`
	File       string         `json:"file"`
	Counter    int            `json:"counter"`
	Rows       int            `json:"rows"`
	Bytes      int64          `json:"bytes"`
	SHA256     string         `json:"sha256"`
	Columns    []string       `json:"columns"`
	FirstBlock uint64         `json:"firstBlock"`
	LastBlock  uint64         `json:"lastBlock"`
	Table      *table.Table   `json:"-"`
}

// Publisher is a sink notified after every persisted file.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, file *FileWritten) error
	Close() error
}

// Publishers runs sinks in order and stops at the first failure.
type Publishers []Publisher

func (p Publishers) Publish(ctx context.Context, file *FileWritten) error {
	for _, pub := range p {
		if err := pub.Publish(ctx, file); err != nil {
			metrics.PublishErrors.WithLabelValues(pub.Name()).Inc()
			return fmt.Errorf("failed to publish %s to %s: %w", file.File, pub.Name(), err)
		}
		log.Debug().Str("sink", pub.Name()).Str("file", file.File).Msg("Published file")
	}
	return nil
}

func (p Publishers) Close() error {
	var errs []error
	for _, pub := range p {
		if err := pub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pub.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// NewPublishers connects every configured sink, in the order S3, ClickHouse,
// Kafka. Sinks opened before a failure are closed again.
func NewPublishers(ctx context.Context, cfg *config.PublisherConfig) (Publishers, error) {
	var out Publishers
	if cfg == nil {
		return out, nil
	}
	fail := func(err error) (Publishers, error) {
		if cerr := out.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to close publishers")
		}
		return nil, err
	}
	if cfg.S3 != nil {
		p, err := NewS3Publisher(ctx, cfg.S3)
		if err != nil {
			return fail(err)
		}
		out = append(out, p)
	}
	if cfg.Clickhouse != nil {
		p, err := NewClickHousePublisher(cfg.Clickhouse)
		if err != nil {
			return fail(err)
		}
		out = append(out, p)
	}
	if cfg.Kafka != nil {
		p, err := NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			return fail(err)
		}
		out = append(out, p)
	}
	return out, nil
}
