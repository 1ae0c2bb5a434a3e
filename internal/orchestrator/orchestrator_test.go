package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thirdweb-dev/archive-exporter/internal/archive"
	"github.com/thirdweb-dev/archive-exporter/internal/common"
	"github.com/thirdweb-dev/archive-exporter/internal/publisher"
	"github.com/thirdweb-dev/archive-exporter/internal/query"
	"github.com/thirdweb-dev/archive-exporter/internal/table"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchChunk(ctx context.Context, dataset common.Dataset, startHeight uint64, fields []string, options common.FilterOptions) ([]common.RawRecord, uint64, error) {
	args := m.Called(ctx, dataset, startHeight, fields, options)
	records, _ := args.Get(0).([]common.RawRecord)
	return records, args.Get(1).(uint64), args.Error(2)
}

func block(n uint64) common.RawRecord {
	return common.RawRecord(fmt.Sprintf(
		`{"header":{"number":%d,"hash":"0x%x","parentHash":"0x%x","timestamp":%d,"miner":"0xminer"}}`,
		n, n, n-1, 1700000000+n))
}

func blocks(from, to uint64) []common.RawRecord {
	var out []common.RawRecord
	for n := from; n <= to; n++ {
		out = append(out, block(n))
	}
	return out
}

func collect(t *testing.T, p *Pipeline) ([]common.Chunk, []uint64, error) {
	t.Helper()
	chunks := make(chan common.Chunk, 64)
	updates := make(chan uint64, 64)
	err := p.FetchLoop(context.Background(), chunks, updates)

	var gotChunks []common.Chunk
	for c := range chunks {
		gotChunks = append(gotChunks, c)
	}
	var gotUpdates []uint64
	for u := range updates {
		gotUpdates = append(gotUpdates, u)
	}
	return gotChunks, gotUpdates, err
}

func TestRunBlocksSinglePage(t *testing.T) {
	dir := t.TempDir()
	fetcher := &mockFetcher{}
	fetcher.On("FetchChunk", mock.Anything, common.DatasetBlocks, uint64(1), mock.Anything, mock.Anything).
		Return([]common.RawRecord{block(10)}, uint64(11), nil).Once()

	var bar bytes.Buffer
	p, err := NewPipeline(Config{
		Dataset:   common.DatasetBlocks,
		Range:     common.BlockRange{Start: 1, End: 10},
		OutputDir: dir,
	}, fetcher, WithProgress(&bar, 0))
	require.NoError(t, err)

	require.NoError(t, p.Run(context.Background()))
	fetcher.AssertExpectations(t)

	assert.Equal(t, 1, p.Files())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "blocks_0.parquet", entries[0].Name())
	assert.Contains(t, bar.String(), "100%")

	tbl, err := table.ReadParquet(filepath.Join(dir, "blocks_0.parquet"))
	require.NoError(t, err)
	assert.Equal(t, []string{"hash", "number", "timestamp", "miner", "parentHash"}, tbl.Names())
	number, ok := tbl.Column("number")
	require.True(t, ok)
	assert.Equal(t, []uint64{10}, number.Uint64s)
}

func TestFetchLoopSingleProgressMessage(t *testing.T) {
	fetcher := &mockFetcher{}
	fetcher.On("FetchChunk", mock.Anything, common.DatasetBlocks, uint64(1), mock.Anything, mock.Anything).
		Return([]common.RawRecord{block(10)}, uint64(11), nil).Once()

	p, err := NewPipeline(Config{
		Dataset:   common.DatasetBlocks,
		Range:     common.BlockRange{Start: 1, End: 10},
		OutputDir: t.TempDir(),
	}, fetcher)
	require.NoError(t, err)

	chunks, updates, err := collect(t, p)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
	assert.Equal(t, []uint64{100}, updates)
}

func TestFetchLoopPagesAndTrims(t *testing.T) {
	fetcher := &mockFetcher{}
	fetcher.On("FetchChunk", mock.Anything, common.DatasetBlocks, uint64(0), mock.Anything, mock.Anything).
		Return(blocks(0, 49), uint64(50), nil).Once()
	fetcher.On("FetchChunk", mock.Anything, common.DatasetBlocks, uint64(50), mock.Anything, mock.Anything).
		Return(blocks(50, 120), uint64(121), nil).Once()

	p, err := NewPipeline(Config{
		Dataset:   common.DatasetBlocks,
		Range:     common.BlockRange{Start: 0, End: 100},
		OutputDir: t.TempDir(),
	}, fetcher)
	require.NoError(t, err)

	chunks, updates, err := collect(t, p)
	require.NoError(t, err)
	fetcher.AssertExpectations(t)

	var all []common.RawRecord
	for _, c := range chunks {
		assert.NotEmpty(t, c)
		all = append(all, c...)
	}
	assert.Equal(t, blocks(0, 100), all)
	assert.Equal(t, []uint64{50, 100}, updates)
}

func TestFetchLoopSplitsBySize(t *testing.T) {
	records := blocks(1, 10)
	fetcher := &mockFetcher{}
	fetcher.On("FetchChunk", mock.Anything, common.DatasetBlocks, uint64(1), mock.Anything, mock.Anything).
		Return(records, uint64(11), nil).Once()

	p, err := NewPipeline(Config{
		Dataset:       common.DatasetBlocks,
		Range:         common.BlockRange{Start: 1, End: 10},
		OutputDir:     t.TempDir(),
		MaxChunkBytes: 3 * len(records[0]),
	}, fetcher)
	require.NoError(t, err)

	chunks, _, err := collect(t, p)
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)

	var all []common.RawRecord
	for _, c := range chunks {
		all = append(all, c...)
	}
	assert.Equal(t, records, all)
}

func TestFetchLoopStalledCursor(t *testing.T) {
	fetcher := &mockFetcher{}
	fetcher.On("FetchChunk", mock.Anything, common.DatasetBlocks, uint64(5), mock.Anything, mock.Anything).
		Return([]common.RawRecord{}, uint64(5), nil).Once()

	p, err := NewPipeline(Config{
		Dataset:   common.DatasetBlocks,
		Range:     common.BlockRange{Start: 5, End: 10},
		OutputDir: t.TempDir(),
	}, fetcher)
	require.NoError(t, err)

	_, _, err = collect(t, p)
	assert.ErrorIs(t, err, ErrStalledCursor)
}

func TestFetchLoopPropagatesFetchError(t *testing.T) {
	boom := errors.New("boom")
	fetcher := &mockFetcher{}
	fetcher.On("FetchChunk", mock.Anything, common.DatasetBlocks, uint64(1), mock.Anything, mock.Anything).
		Return(nil, uint64(0), boom).Once()

	p, err := NewPipeline(Config{
		Dataset:   common.DatasetBlocks,
		Range:     common.BlockRange{Start: 1, End: 10},
		OutputDir: t.TempDir(),
	}, fetcher)
	require.NoError(t, err)

	assert.ErrorIs(t, p.Run(context.Background()), boom)
}

// endlessFetcher serves two-block pages forever.
type endlessFetcher struct {
	calls atomic.Int64
}

func (f *endlessFetcher) FetchChunk(ctx context.Context, _ common.Dataset, start uint64, _ []string, _ common.FilterOptions) ([]common.RawRecord, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	f.calls.Add(1)
	return blocks(start, start+1), start + 2, nil
}

type failingPublisher struct {
	err error
}

func (f *failingPublisher) Name() string { return "failing" }

func (f *failingPublisher) Publish(context.Context, *publisher.FileWritten) error { return f.err }

func (f *failingPublisher) Close() error { return nil }

func TestRunWriterFailureStopsFetch(t *testing.T) {
	boom := errors.New("sink down")
	fetcher := &endlessFetcher{}

	p, err := NewPipeline(Config{
		Dataset:         common.DatasetBlocks,
		Range:           common.BlockRange{Start: 1, End: 1 << 40},
		OutputDir:       t.TempDir(),
		ChannelCapacity: 1,
	}, fetcher, WithPublishers(&failingPublisher{err: boom}))
	require.NoError(t, err)

	err = p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Less(t, fetcher.calls.Load(), int64(1000))
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := NewPipeline(Config{
		Dataset:   common.DatasetBlocks,
		Range:     common.BlockRange{Start: 1, End: 1 << 40},
		OutputDir: t.TempDir(),
	}, &endlessFetcher{})
	require.NoError(t, err)

	assert.ErrorIs(t, p.Run(ctx), context.Canceled)
}

func TestRunLogsNotImplemented(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	client := archive.NewClient(archive.Config{URL: srv.URL, MaxAttempts: 1})
	p, err := NewPipeline(Config{
		Dataset:   common.DatasetLogs,
		Range:     common.BlockRange{Start: 1, End: 10},
		OutputDir: dir,
	}, client)
	require.NoError(t, err)

	err = p.Run(context.Background())
	assert.ErrorIs(t, err, query.ErrNotImplemented)
	assert.Zero(t, hits.Load())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewPipelineValidation(t *testing.T) {
	fetcher := &mockFetcher{}

	_, err := NewPipeline(Config{
		Dataset:   common.DatasetBlocks,
		Range:     common.BlockRange{Start: 10, End: 10},
		OutputDir: t.TempDir(),
	}, fetcher)
	assert.ErrorIs(t, err, common.ErrInvalidRange)

	_, err = NewPipeline(Config{
		Dataset:   common.DatasetBlocks,
		Range:     common.BlockRange{Start: 1, End: 10},
		Fields:    []string{"bogus"},
		OutputDir: t.TempDir(),
	}, fetcher)
	assert.Error(t, err)

	_, err = NewPipeline(Config{
		Dataset: common.DatasetBlocks,
		Range:   common.BlockRange{Start: 1, End: 10},
	}, nil)
	assert.Error(t, err)

	fetcher.AssertNotCalled(t, "FetchChunk", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
