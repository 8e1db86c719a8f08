package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/medilink/internal/catalog"
	"github.com/joseph-ayodele/medilink/internal/common"
	"github.com/joseph-ayodele/medilink/internal/crawler"
)

func main() {
	cfg := common.LoadConfig()

	var (
		sitemap     = flag.String("sitemap", cfg.Crawl.SitemapURL, "root sitemap URL")
		concurrency = flag.Int("concurrency", cfg.Crawl.Concurrency, "concurrent page fetches")
		delay       = flag.Duration("delay", cfg.Crawl.Delay, "minimum spacing between page requests")
		retries     = flag.Int("retries", cfg.Crawl.Retries, "retries for 5xx, 429 and transport errors")
		maxPages    = flag.Int("max-pages", 0, "stop discovery after this many pages (0 = all)")
		noRobots    = flag.Bool("ignore-robots", false, "do not consult robots.txt")
		xlsxOut     = flag.String("xlsx", "", "write the catalog to this XLSX file after crawling")
	)
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	log := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storeLogger := cfg.NewLogger()
	store, err := catalog.Open(ctx, cfg.Catalog, storeLogger)
	if err != nil {
		log.Fatalf("open drug catalog (%s): %v", cfg.Catalog.Backend, err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Errorw("close drug catalog", "error", err)
		}
	}()

	if *retries < 0 {
		*retries = 0
	}
	c := crawler.New(crawler.Config{
		SitemapURL:   *sitemap,
		Concurrency:  *concurrency,
		Delay:        *delay,
		Retries:      uint64(*retries),
		FetchTimeout: cfg.Crawl.FetchTimeout,
		UserAgent:    cfg.Crawl.UserAgent,
		MaxPages:     *maxPages,
		ObeyRobots:   !*noRobots,
	}, store, nil, logger)

	stats, err := c.Run(ctx)
	if err != nil {
		log.Errorw("crawl ended early", "error", err)
	}
	log.Infow("crawl summary",
		"discovered", stats.Discovered,
		"stored", stats.Stored,
		"dropped", stats.Dropped,
		"failed", stats.Failed,
		"disallowed", stats.Disallowed,
	)

	if *xlsxOut != "" {
		xlsx, err := catalog.ExportXLSX(context.Background(), store, "", storeLogger)
		if err != nil {
			log.Fatalf("export catalog: %v", err)
		}
		if err := os.WriteFile(*xlsxOut, xlsx, 0o644); err != nil {
			log.Fatalf("write %s: %v", *xlsxOut, err)
		}
		log.Infow("catalog exported", "path", *xlsxOut)
	}
	if err != nil {
		os.Exit(1)
	}
}
