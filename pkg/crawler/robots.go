package crawler

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/docvector/docvector/pkg/httpclient"
)

// robotsRule is a single Allow/Disallow prefix for a matched agent group.
type robotsRule struct {
	allow  bool
	prefix string
}

// robotsRules holds the rules applying to one host for our user agent.
type robotsRules struct {
	rules []robotsRule
}

// allowed applies longest-prefix-match semantics: the most specific rule
// wins, ties favor Allow, no match means allowed.
func (r *robotsRules) allowed(path string) bool {
	if r == nil || len(r.rules) == 0 {
		return true
	}
	if path == "" {
		path = "/"
	}

	bestLen := -1
	bestAllow := true
	for _, rule := range r.rules {
		if rule.prefix == "" {
			// "Disallow:" with no value allows everything.
			continue
		}
		if strings.HasPrefix(path, rule.prefix) {
			n := len(rule.prefix)
			if n > bestLen || (n == bestLen && rule.allow && !bestAllow) {
				bestLen = n
				bestAllow = rule.allow
			}
		}
	}
	if bestLen < 0 {
		return true
	}
	return bestAllow
}

// RobotsCache caches per-host robots.txt exclusion rules. Fetch errors
// produce a permissive entry (fail-open).
type RobotsCache struct {
	client    *httpclient.Client
	userAgent string

	mu      sync.Mutex
	entries map[string]*robotsRules
}

// NewRobotsCache creates a robots cache using the given client and
// user agent for fetching and group matching.
func NewRobotsCache(client *httpclient.Client, userAgent string) *RobotsCache {
	return &RobotsCache{
		client:    client,
		userAgent: userAgent,
		entries:   make(map[string]*robotsRules),
	}
}

// Allowed reports whether the URL may be fetched under the host's
// robots.txt policy.
func (c *RobotsCache) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	rules := c.rulesFor(ctx, u)
	p := u.Path
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return rules.allowed(p)
}

func (c *RobotsCache) rulesFor(ctx context.Context, u *url.URL) *robotsRules {
	host := strings.ToLower(u.Host)

	c.mu.Lock()
	if rules, ok := c.entries[host]; ok {
		c.mu.Unlock()
		return rules
	}
	c.mu.Unlock()

	rules := c.fetch(ctx, u.Scheme, host)

	c.mu.Lock()
	c.entries[host] = rules
	c.mu.Unlock()

	return rules
}

func (c *RobotsCache) fetch(ctx context.Context, scheme, host string) *robotsRules {
	robotsURL := scheme + "://" + host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return &robotsRules{}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Debug("robots.txt fetch failed, allowing all", "host", host, "error", err)
		return &robotsRules{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &robotsRules{}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return &robotsRules{}
	}

	return parseRobots(string(body), c.userAgent)
}

// parseRobots extracts the Allow/Disallow rules from the group matching
// userAgent, falling back to the wildcard group.
func parseRobots(content, userAgent string) *robotsRules {
	agentToken := strings.ToLower(userAgent)
	if i := strings.IndexAny(agentToken, "/ "); i > 0 {
		agentToken = agentToken[:i]
	}

	var wildcard, specific []robotsRule
	var currentAgents []string
	inGroup := false

	appendRule := func(rule robotsRule) {
		for _, agent := range currentAgents {
			if agent == "*" {
				wildcard = append(wildcard, rule)
			} else if agentToken != "" && strings.Contains(agentToken, agent) {
				specific = append(specific, rule)
			}
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			if inGroup {
				// A new group starts after rules were seen.
				currentAgents = nil
				inGroup = false
			}
			currentAgents = append(currentAgents, strings.ToLower(value))
		case "disallow":
			inGroup = true
			appendRule(robotsRule{allow: false, prefix: value})
		case "allow":
			inGroup = true
			appendRule(robotsRule{allow: true, prefix: value})
		}
	}

	if len(specific) > 0 {
		return &robotsRules{rules: specific}
	}
	return &robotsRules{rules: wildcard}
}
