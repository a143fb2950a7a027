package arxiv

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/praxos/paperscout/internal/metrics"
)

const defaultEndpoint = "http://export.arxiv.org/api/query"

// Config holds paper-search client settings.
type Config struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// RateInterval is the minimum spacing between requests. The arXiv API
	// terms ask for no more than one request every three seconds.
	RateInterval time.Duration `mapstructure:"rate_interval"`
	MaxRetries   uint64        `mapstructure:"max_retries"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// Searcher is the lookup collaborator interface used by workflows.
type Searcher interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]Paper, error)
}

// Client queries the arXiv Atom API. Requests are rate limited and retried
// with exponential backoff on transport and 5xx failures; results may be
// served from an optional Redis read-through cache.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	cache   *redis.Client
	logger  *zap.Logger
}

// NewClient returns a search client. A nil redis client disables caching.
func NewClient(cfg Config, cache *redis.Client, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateInterval <= 0 {
		cfg.RateInterval = 3 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(cfg.RateInterval), 1),
		cache:   cache,
		logger:  logger,
	}
}

// Search runs one query and projects each returned record onto
// opts.Fields. Used read-only; retries wrap the HTTP exchange only, so a
// caller observes exactly one outcome per Search call.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) ([]Paper, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 10
	}

	if papers, ok := c.fromCache(ctx, query, opts); ok {
		metrics.LookupCacheHits.Inc()
		return papers, nil
	}

	var body []byte
	op := func() error {
		// Every attempt, retries included, honors the request spacing.
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limit wait: %w", err))
		}
		var err error
		body, err = c.fetch(ctx, query, opts.MaxResults)
		return err
	}
	notify := func(err error, next time.Duration) {
		metrics.LookupRetries.Inc()
		c.logger.Warn("lookup retry",
			zap.String("query", query),
			zap.Duration("backoff", next),
			zap.Error(err),
		)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.cfg.MaxRetries), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		metrics.LookupRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("arxiv query %q: %w", query, err)
	}
	metrics.LookupRequests.WithLabelValues("ok").Inc()

	var f feed
	if err := xml.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("decode arxiv feed: %w", err)
	}

	papers := make([]Paper, 0, len(f.Entries))
	for _, e := range f.Entries {
		papers = append(papers, e.project(opts.Fields))
	}
	c.toCache(ctx, query, opts, papers)

	c.logger.Debug("lookup",
		zap.String("query", query),
		zap.Int("results", len(papers)),
	)
	return papers, nil
}

func (c *Client) fetch(ctx context.Context, query string, maxResults int) ([]byte, error) {
	q := url.Values{}
	q.Set("search_query", "all:"+query)
	q.Set("start", "0")
	q.Set("max_results", fmt.Sprintf("%d", maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("HTTP %d from arxiv", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("HTTP %d from arxiv", resp.StatusCode))
	}
	return io.ReadAll(resp.Body)
}

func cacheKey(query string, opts SearchOptions) string {
	return fmt.Sprintf("paperscout:lookup:%s:%d:%s",
		query, opts.MaxResults, strings.Join(opts.Fields, ","))
}

func (c *Client) fromCache(ctx context.Context, query string, opts SearchOptions) ([]Paper, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, err := c.cache.Get(ctx, cacheKey(query, opts)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("lookup cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var papers []Paper
	if err := json.Unmarshal([]byte(raw), &papers); err != nil {
		return nil, false
	}
	return papers, true
}

func (c *Client) toCache(ctx context.Context, query string, opts SearchOptions, papers []Paper) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(papers)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey(query, opts), raw, c.cfg.CacheTTL).Err(); err != nil {
		c.logger.Warn("lookup cache write failed", zap.Error(err))
	}
}
