package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// robotsRules is the robots.txt group that applies to our agent. A nil
// value allows everything.
type robotsRules struct {
	group *robotstxt.Group
}

// allowed tests the path and query of raw against the group, honoring
// "*" and "$" patterns and longest-match precedence.
func (r *robotsRules) allowed(raw string) bool {
	if r == nil || r.group == nil {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return r.group.Test(path)
}

// parseRobots picks the group for userAgent, falling back to "*". An
// unparsable file allows everything.
func parseRobots(body []byte, userAgent string) *robotsRules {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil
	}
	return &robotsRules{group: data.FindGroup(userAgent)}
}

// loadRobots fetches robots.txt for the host of site. A missing file or a
// fetch failure allows everything.
func (c *Crawler) loadRobots(ctx context.Context, site string) *robotsRules {
	u, err := url.Parse(site)
	if err != nil || u.Host == "" {
		return nil
	}
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
	body, err := c.fetch.get(ctx, robotsURL)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil
		}
		c.logger.Warn("crawl.robots.fetch_failed", zap.String("url", robotsURL), zap.Error(err))
		return nil
	}
	rules := parseRobots(body, c.cfg.UserAgent)
	if rules == nil {
		c.logger.Warn("crawl.robots.parse_failed", zap.String("url", robotsURL))
	}
	return rules
}
