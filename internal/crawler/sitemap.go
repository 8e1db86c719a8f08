package crawler

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var (
	// Nested sitemaps are followed when their loc matches.
	followRule = regexp.MustCompile(`sitemap`)
	// Page URLs are kept when they match any rule.
	pageRules = []*regexp.Regexp{
		regexp.MustCompile(`/drugs/`),
		regexp.MustCompile(`/otc/`),
	}
)

type sitemapDoc struct {
	XMLName  xml.Name
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// parseSitemap returns the child sitemaps and page URLs listed in body. Both
// <urlset> and <sitemapindex> roots are accepted.
func parseSitemap(body []byte) (sitemaps, pages []string, err error) {
	var doc sitemapDoc
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("parse sitemap: %w", err)
	}
	for _, s := range doc.Sitemaps {
		if loc := strings.TrimSpace(s.Loc); loc != "" {
			sitemaps = append(sitemaps, loc)
		}
	}
	for _, u := range doc.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			pages = append(pages, loc)
		}
	}
	return sitemaps, pages, nil
}

func wantPage(u string) bool {
	for _, re := range pageRules {
		if re.MatchString(u) {
			return true
		}
	}
	return false
}

// discover walks the sitemap tree from root and returns the matching page
// URLs in discovery order, without duplicates. A sitemap that fails to load
// is logged and skipped unless it is the root.
func (c *Crawler) discover(ctx context.Context, root string) ([]string, error) {
	queue := []string{root}
	seenMaps := map[string]struct{}{root: {}}
	seenPages := map[string]struct{}{}
	var out []string

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		loc := queue[0]
		queue = queue[1:]

		if !c.robots.allowed(loc) {
			c.logger.Info("crawl.sitemap.disallowed", zap.String("url", loc))
			continue
		}
		body, err := c.fetch.get(ctx, loc)
		if err != nil {
			if loc == root {
				return nil, fmt.Errorf("fetch root sitemap: %w", err)
			}
			c.logger.Warn("crawl.sitemap.fetch_failed", zap.String("url", loc), zap.Error(err))
			continue
		}
		maps, pages, err := parseSitemap(body)
		if err != nil {
			if loc == root {
				return nil, err
			}
			c.logger.Warn("crawl.sitemap.parse_failed", zap.String("url", loc), zap.Error(err))
			continue
		}

		for _, m := range maps {
			if _, ok := seenMaps[m]; ok || !followRule.MatchString(m) {
				continue
			}
			seenMaps[m] = struct{}{}
			queue = append(queue, m)
		}
		kept := 0
		for _, p := range pages {
			if _, ok := seenPages[p]; ok || !wantPage(p) {
				continue
			}
			seenPages[p] = struct{}{}
			out = append(out, p)
			kept++
		}
		c.logger.Debug("crawl.sitemap.ok",
			zap.String("url", loc),
			zap.Int("sitemaps", len(maps)),
			zap.Int("pages", len(pages)),
			zap.Int("kept", kept),
		)
		if c.cfg.MaxPages > 0 && len(out) >= c.cfg.MaxPages {
			return out[:c.cfg.MaxPages], nil
		}
	}
	return out, nil
}
