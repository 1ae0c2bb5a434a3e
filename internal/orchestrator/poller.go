package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/thirdweb-dev/archive-exporter/internal/chunk"
	"github.com/thirdweb-dev/archive-exporter/internal/common"
	"github.com/thirdweb-dev/archive-exporter/internal/metrics"
	"github.com/thirdweb-dev/archive-exporter/internal/progress"
)

var ErrStalledCursor = errors.New("archive cursor did not advance")

// FetchLoop pages through the range, splitting every page into size-bounded
// chunks for the writer and reporting progress after each page. It closes
// both channels when it returns.
func (p *Pipeline) FetchLoop(ctx context.Context, chunks chan<- common.Chunk, updates chan<- uint64) error {
	defer close(chunks)
	defer close(updates)

	r := p.cfg.Range
	cursor := r.Start
	for {
		records, next, err := p.fetcher.FetchChunk(ctx, p.cfg.Dataset, cursor, p.cfg.Fields, p.cfg.Options)
		if err != nil {
			return fmt.Errorf("fetch from block %d: %w", cursor, err)
		}
		if next <= cursor {
			return fmt.Errorf("%w: requested %d, next %d", ErrStalledCursor, cursor, next)
		}

		kept, err := trimToRange(records, r.End)
		if err != nil {
			return err
		}
		err = chunk.Split(kept, p.cfg.MaxChunkBytes, func(c common.Chunk) error {
			if err := send(ctx, chunks, c); err != nil {
				return err
			}
			metrics.ChunksEmitted.Inc()
			return nil
		})
		if err != nil {
			return err
		}

		log.Debug().Uint64("from", cursor).Uint64("next", next).Int("records", len(kept)).Msg("Fetched page")
		if err := send(ctx, updates, progress.Normalize(r.Start, r.End, next)); err != nil {
			return err
		}

		if next > r.End {
			return nil
		}
		cursor = next
	}
}

// trimToRange drops records past end. The archive has no upper bound in its
// query so the last page usually overshoots.
func trimToRange(records []common.RawRecord, end uint64) ([]common.RawRecord, error) {
	for i, record := range records {
		height, err := common.HeaderNumber(record)
		if err != nil {
			return nil, err
		}
		if height > end {
			return records[:i], nil
		}
	}
	return records, nil
}

func send[T any](ctx context.Context, ch chan<- T, v T) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ch <- v:
		return nil
	}
}
