package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thirdweb-dev/archive-exporter/internal/common"
	"github.com/thirdweb-dev/archive-exporter/internal/metrics"
	"github.com/thirdweb-dev/archive-exporter/internal/query"
)

var (
	ErrNoWorker          = errors.New("archive returned no worker")
	ErrEmptyResponse     = errors.New("archive returned no records")
	ErrMalformedResponse = errors.New("malformed archive response")
)

const DefaultURL = "https://v2.archive.subsquid.io/network/ethereum-mainnet"

type Config struct {
	URL             string
	RequestTimeout  time.Duration
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 5
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 15 * time.Second
	}
	return c
}

// PageCache stores raw response pages keyed by request.
type PageCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      PageCache
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithPageCache(cache PageCache) ClientOption {
	return func(c *Client) {
		c.cache = cache
	}
}

func NewClient(cfg Config, opts ...ClientOption) *Client {
	c := &Client{cfg: cfg.withDefaults()}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.cfg.RequestTimeout}
	}
	return c
}

// ResolveWorker asks the archive router which worker serves height.
func (c *Client) ResolveWorker(ctx context.Context, height uint64) (string, error) {
	return withRetry(ctx, c, "worker", func(ctx context.Context) (string, error) {
		body, err := c.get(ctx, fmt.Sprintf("%s/%d/worker", c.cfg.URL, height))
		if err != nil {
			return "", fmt.Errorf("failed to resolve worker for height %d: %w", height, err)
		}
		worker := strings.TrimSpace(string(body))
		if worker == "" {
			return "", fmt.Errorf("%w for height %d", ErrNoWorker, height)
		}
		return worker, nil
	})
}

// Height returns the highest block the archive can serve.
func (c *Client) Height(ctx context.Context) (uint64, error) {
	return withRetry(ctx, c, "height", func(ctx context.Context) (uint64, error) {
		body, err := c.get(ctx, c.cfg.URL+"/height")
		if err != nil {
			return 0, fmt.Errorf("failed to get archive height: %w", err)
		}
		height, err := strconv.ParseUint(strings.TrimSpace(string(body)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: height %q", ErrMalformedResponse, string(body))
		}
		return height, nil
	})
}

// FetchChunk fetches one page of records starting at startHeight and
// returns them with the height the next page starts at.
func (c *Client) FetchChunk(ctx context.Context, dataset common.Dataset, startHeight uint64, fields []string, options common.FilterOptions) ([]common.RawRecord, uint64, error) {
	q, err := query.Build(dataset, startHeight, fields, options)
	if err != nil {
		return nil, 0, err
	}
	body, err := q.Marshal()
	if err != nil {
		return nil, 0, err
	}

	start := time.Now()
	page, err := c.page(ctx, startHeight, body)
	if err != nil {
		return nil, 0, err
	}

	records, err := parsePage(page)
	if err != nil {
		return nil, 0, fmt.Errorf("page at height %d: %w", startHeight, err)
	}
	last, err := common.HeaderNumber(records[len(records)-1])
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	metrics.PagesFetched.Inc()
	metrics.RecordsFetched.Add(float64(len(records)))
	metrics.ResponseBytes.Add(float64(len(page)))
	metrics.LastFetchedBlock.Set(float64(last))
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	log.Debug().Str("dataset", dataset.String()).Uint64("from_block", startHeight).Uint64("to_block", last).Int("records", len(records)).Msg("Fetched archive page")

	return records, last + 1, nil
}

func (c *Client) page(ctx context.Context, startHeight uint64, body []byte) ([]byte, error) {
	key := c.cacheKey(body)
	if c.cache != nil {
		cached, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Msg("Page cache read failed, fetching from archive")
		} else if ok {
			metrics.CacheHits.Inc()
			return cached, nil
		}
		metrics.CacheMisses.Inc()
	}

	worker, err := c.ResolveWorker(ctx, startHeight)
	if err != nil {
		return nil, err
	}
	page, err := withRetry(ctx, c, "query", func(ctx context.Context) ([]byte, error) {
		return c.post(ctx, worker, body)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query worker %s: %w", worker, err)
	}

	if c.cache != nil {
		// only well-formed pages are worth caching
		if _, err := parsePage(page); err == nil {
			if err := c.cache.Put(ctx, key, page); err != nil {
				log.Warn().Err(err).Msg("Page cache write failed")
			}
		}
	}
	return page, nil
}

func (c *Client) cacheKey(body []byte) string {
	h := sha256.New()
	h.Write([]byte(c.cfg.URL))
	h.Write([]byte{'\n'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func parsePage(page []byte) ([]common.RawRecord, error) {
	var records []common.RawRecord
	if err := json.Unmarshal(page, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyResponse
	}
	return records, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retryable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retryable(fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, retryable(fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL, resp.StatusCode, snippet(body)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL, resp.StatusCode, snippet(body))
	}
	return body, nil
}

func snippet(body []byte) string {
	const max = 256
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
