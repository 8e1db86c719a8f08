package crawler

import "time"

const (
	DefaultSitemapURL   = "https://www.1mg.com/sitemap.xml"
	DefaultConcurrency  = 32
	DefaultDelay        = 250 * time.Millisecond
	DefaultRetries      = 3
	DefaultFetchTimeout = 20 * time.Second
	DefaultUserAgent    = "MediLink Drug Information Spider"
	DefaultBackoff      = 1 * time.Second
)

// Config controls discovery, politeness and retries.
type Config struct {
	SitemapURL   string
	Concurrency  int
	Delay        time.Duration // minimum spacing between page requests
	Retries      uint64
	FetchTimeout time.Duration
	UserAgent    string
	Backoff      time.Duration // Fibonacci base
	MaxPages     int           // 0 = no limit
	ObeyRobots   bool
}

// DefaultConfig returns the crawl policy used in production.
func DefaultConfig() Config {
	return Config{
		SitemapURL:   DefaultSitemapURL,
		Concurrency:  DefaultConcurrency,
		Delay:        DefaultDelay,
		Retries:      DefaultRetries,
		FetchTimeout: DefaultFetchTimeout,
		UserAgent:    DefaultUserAgent,
		Backoff:      DefaultBackoff,
		ObeyRobots:   true,
	}
}

func (c Config) withDefaults() Config {
	if c.SitemapURL == "" {
		c.SitemapURL = DefaultSitemapURL
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Delay < 0 {
		c.Delay = 0
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	return c
}
