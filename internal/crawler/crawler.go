// Package crawler discovers drug pages through a site's sitemaps, scrapes
// them and stores complete records in the drug catalog.
package crawler

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/medilink/internal/catalog"
)

// Stats summarizes one crawl.
type Stats struct {
	Discovered int64 `json:"discovered"`
	Fetched    int64 `json:"fetched"`
	Stored     int64 `json:"stored"`
	Dropped    int64 `json:"dropped"`
	Failed     int64 `json:"failed"`
	Disallowed int64 `json:"disallowed"`
}

type counters struct {
	fetched, stored, dropped, failed, disallowed atomic.Int64
}

// Crawler scrapes drug pages into a catalog.Store.
type Crawler struct {
	cfg    Config
	store  catalog.Store
	fetch  *fetcher
	robots *robotsRules
	logger *zap.Logger
}

// New builds a Crawler. client may be nil; logger nil means no logging.
func New(cfg Config, store catalog.Store, client *http.Client, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Crawler{
		cfg:    cfg,
		store:  store,
		fetch:  newFetcher(cfg, client, logger),
		logger: logger,
	}
}

// Run discovers pages from the configured sitemap and crawls them with
// cfg.Concurrency workers. Per-page failures are counted, not returned; the
// error is non-nil only when discovery fails or ctx ends.
func (c *Crawler) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	if c.cfg.ObeyRobots {
		c.robots = c.loadRobots(ctx, c.cfg.SitemapURL)
	}

	urls, err := c.discover(ctx, c.cfg.SitemapURL)
	if err != nil {
		c.logger.Error("crawl.discover.failed", zap.String("sitemap", c.cfg.SitemapURL), zap.Error(err))
		return Stats{}, err
	}
	c.logger.Info("crawl.discover.ok", zap.Int("pages", len(urls)))

	var n counters
	jobs := make(chan string)
	g, gctx := errgroup.WithContext(ctx)

	var pace <-chan time.Time
	if c.cfg.Delay > 0 {
		t := time.NewTicker(c.cfg.Delay)
		defer t.Stop()
		pace = t.C
	}

	g.Go(func() error {
		defer close(jobs)
		for _, u := range urls {
			select {
			case jobs <- u:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for i := 0; i < min(c.cfg.Concurrency, max(len(urls), 1)); i++ {
		g.Go(func() error {
			for u := range jobs {
				if pace != nil {
					select {
					case <-pace:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
				c.crawlOne(gctx, u, &n)
			}
			return nil
		})
	}
	err = g.Wait()

	stats := Stats{
		Discovered: int64(len(urls)),
		Fetched:    n.fetched.Load(),
		Stored:     n.stored.Load(),
		Dropped:    n.dropped.Load(),
		Failed:     n.failed.Load(),
		Disallowed: n.disallowed.Load(),
	}
	c.logger.Info("crawl.done",
		zap.Int64("discovered", stats.Discovered),
		zap.Int64("fetched", stats.Fetched),
		zap.Int64("stored", stats.Stored),
		zap.Int64("dropped", stats.Dropped),
		zap.Int64("failed", stats.Failed),
		zap.Int64("disallowed", stats.Disallowed),
		zap.Duration("elapsed", time.Since(start)),
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		return stats, err
	}
	return stats, ctx.Err()
}

func (c *Crawler) crawlOne(ctx context.Context, url string, n *counters) {
	if !c.robots.allowed(url) {
		n.disallowed.Add(1)
		return
	}
	body, err := c.fetch.get(ctx, url)
	if err != nil {
		n.failed.Add(1)
		c.logger.Warn("crawl.page.fetch_failed", zap.String("url", url), zap.Error(err))
		return
	}
	n.fetched.Add(1)

	d, err := ParseDrug(url, body)
	if err != nil {
		n.failed.Add(1)
		c.logger.Error("crawl.page.parse_failed", zap.String("url", url), zap.Error(err))
		return
	}
	if err := d.Validate(); err != nil {
		n.dropped.Add(1)
		c.logger.Info("crawl.page.dropped", zap.String("url", url), zap.Error(err))
		return
	}
	if err := c.store.Upsert(ctx, d); err != nil {
		n.failed.Add(1)
		c.logger.Error("crawl.page.store_failed", zap.String("url", url), zap.Error(err))
		return
	}
	n.stored.Add(1)
	c.logger.Info("crawl.page.stored", zap.String("url", url), zap.String("title", d.Title))
}
