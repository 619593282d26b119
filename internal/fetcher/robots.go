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

	"biaslens/internal/observability"
)

type RobotsCache struct {
	cache     map[string]*RobotsTxt
	ttl       time.Duration
	userAgent string
	mu        sync.RWMutex
	logger    *observability.Logger
}

type RobotsTxt struct {
	groups    []robotsGroup
	expiresAt time.Time
}

type robotsGroup struct {
	agents   []string
	allow    []string
	disallow []string
}

func NewRobotsCache(ttl time.Duration, userAgent string, logger *observability.Logger) *RobotsCache {
	return &RobotsCache{
		cache:     make(map[string]*RobotsTxt),
		ttl:       ttl,
		userAgent: userAgent,
		logger:    logger,
	}
}

// IsAllowed проверяет URL по robots.txt его хоста. Если robots.txt недоступен,
// загрузка разрешена.
func (rc *RobotsCache) IsAllowed(ctx context.Context, target *url.URL, client *http.Client) (bool, error) {
	key := target.Scheme + "://" + target.Host

	rc.mu.RLock()
	cached, exists := rc.cache[key]
	rc.mu.RUnlock()

	if exists && time.Now().Before(cached.expiresAt) {
		return cached.allows(rc.userAgent, requestPath(target)), nil
	}

	robots := &RobotsTxt{expiresAt: time.Now().Add(rc.ttl)}

	content, ok := rc.fetch(ctx, key+"/robots.txt", client)
	if ok {
		robots.groups = parseRobots(content)
	}

	rc.mu.Lock()
	rc.cache[key] = robots
	rc.mu.Unlock()

	return robots.allows(rc.userAgent, requestPath(target)), nil
}

func (rc *RobotsCache) fetch(ctx context.Context, robotsURL string, client *http.Client) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		rc.logger.Debug("robots.txt unavailable", "url", robotsURL, "error", err.Error())
		return "", false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return "", false
	}
	return string(body), true
}

func requestPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

// allows выбирает группу нашего агента (или "*") и применяет самое длинное
// совпавшее правило. При равной длине побеждает Allow.
func (r *RobotsTxt) allows(userAgent, path string) bool {
	group := r.selectGroup(userAgent)
	if group == nil {
		return true
	}

	bestLen := -1
	allowed := true
	for _, rule := range group.disallow {
		if rule == "" || !strings.HasPrefix(path, rule) {
			continue
		}
		if len(rule) > bestLen {
			bestLen = len(rule)
			allowed = false
		}
	}
	for _, rule := range group.allow {
		if rule == "" || !strings.HasPrefix(path, rule) {
			continue
		}
		if len(rule) >= bestLen {
			bestLen = len(rule)
			allowed = true
		}
	}
	return allowed
}

func (r *RobotsTxt) selectGroup(userAgent string) *robotsGroup {
	ua := strings.ToLower(userAgent)
	var wildcard *robotsGroup
	var best *robotsGroup
	bestLen := 0

	for i := range r.groups {
		g := &r.groups[i]
		for _, agent := range g.agents {
			if agent == "*" {
				if wildcard == nil {
					wildcard = g
				}
				continue
			}
			if strings.Contains(ua, agent) && len(agent) > bestLen {
				best = g
				bestLen = len(agent)
			}
		}
	}

	if best != nil {
		return best
	}
	return wildcard
}

func parseRobots(text string) []robotsGroup {
	scanner := bufio.NewScanner(strings.NewReader(text))
	var groups []robotsGroup
	var current robotsGroup
	inRules := false

	flush := func() {
		if len(current.agents) > 0 {
			groups = append(groups, current)
		}
		current = robotsGroup{}
		inRules = false
	}

	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(line[:colon]))
		val := strings.TrimSpace(line[colon+1:])

		switch key {
		case "user-agent":
			if inRules {
				flush()
			}
			current.agents = append(current.agents, strings.ToLower(val))
		case "allow":
			inRules = true
			current.allow = append(current.allow, val)
		case "disallow":
			inRules = true
			current.disallow = append(current.disallow, val)
		}
	}
	flush()

	return groups
}
