package fetcher

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const robotsAgent = "dealscout"

// RobotsPolicy answers whether a listing URL may be fetched according to
// the host's robots.txt. Rules are fetched once per host and cached.
type RobotsPolicy struct {
	client *http.Client
	cache  map[string]*robotsRules
	mu     sync.Mutex
}

// robotsRules holds the rules of the group that applies to us.
type robotsRules struct {
	allow    []string
	disallow []string
}

// NewRobotsPolicy creates a policy using client for robots.txt requests.
func NewRobotsPolicy(client *http.Client) *RobotsPolicy {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsPolicy{
		client: client,
		cache:  make(map[string]*robotsRules),
	}
}

// Allowed reports whether rawURL may be fetched. A missing or unreadable
// robots.txt allows everything.
func (p *RobotsPolicy) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	rules := p.rulesFor(ctx, u.Scheme+"://"+u.Host)
	if rules == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return rules.allows(path)
}

func (p *RobotsPolicy) rulesFor(ctx context.Context, origin string) *robotsRules {
	p.mu.Lock()
	rules, ok := p.cache[origin]
	p.mu.Unlock()
	if ok {
		return rules
	}

	rules = p.fetch(ctx, origin)

	p.mu.Lock()
	p.cache[origin] = rules
	p.mu.Unlock()
	return rules
}

func (p *RobotsPolicy) fetch(ctx context.Context, origin string) *robotsRules {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	return parseRobots(io.LimitReader(resp.Body, 512*1024))
}

// parseRobots keeps the group addressed to us, falling back to "*".
func parseRobots(r io.Reader) *robotsRules {
	var (
		ours, star     robotsRules
		inOurs, inStar bool
		sawOurs        bool
		groupHasRules  bool
	)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			// consecutive user-agent lines share one group
			if groupHasRules {
				inOurs, inStar, groupHasRules = false, false, false
			}
			agent := strings.ToLower(value)
			if strings.Contains(agent, robotsAgent) {
				inOurs, sawOurs = true, true
			} else if agent == "*" {
				inStar = true
			}
		case "allow", "disallow":
			groupHasRules = true
			if value == "" {
				continue
			}
			if inOurs {
				ours.add(key, value)
			}
			if inStar {
				star.add(key, value)
			}
		}
	}

	if sawOurs {
		return &ours
	}
	return &star
}

func (r *robotsRules) add(kind, pattern string) {
	if kind == "allow" {
		r.allow = append(r.allow, pattern)
	} else {
		r.disallow = append(r.disallow, pattern)
	}
}

// allows applies the longest matching rule; allow wins ties.
func (r *robotsRules) allows(path string) bool {
	best, allowed := -1, true
	for _, p := range r.disallow {
		if matchRobotsPattern(p, path) && len(p) > best {
			best, allowed = len(p), false
		}
	}
	for _, p := range r.allow {
		if matchRobotsPattern(p, path) && len(p) >= best {
			best, allowed = len(p), true
		}
	}
	return allowed
}

// matchRobotsPattern matches a robots.txt path pattern with * and $
// wildcards against path.
func matchRobotsPattern(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	pattern = strings.TrimSuffix(pattern, "$")

	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(path, parts[0]) {
		return false
	}
	if len(parts) == 1 {
		return !anchored || path == pattern
	}

	pos := len(parts[0])
	middle, last := parts[1:len(parts)-1], parts[len(parts)-1]
	for _, part := range middle {
		idx := strings.Index(path[pos:], part)
		if idx < 0 {
			return false
		}
		pos += idx + len(part)
	}
	if !anchored {
		return strings.Contains(path[pos:], last)
	}
	return len(path)-pos >= len(last) && strings.HasSuffix(path, last)
}
