package crawler

import (
	"bufio"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// robotsRules are the Disallow rules of the groups that apply to this crawler.
type robotsRules struct {
	disallowAll bool
	prefixes    []string
}

func (r *robotsRules) allows(path string) bool {
	if r == nil {
		return true
	}
	if r.disallowAll {
		return false
	}
	for _, prefix := range r.prefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

// Robots answers whether URLs may be crawled according to robots.txt.
// Rules are fetched once per origin and kept for the Robots' lifetime.
// It is safe for concurrent use.
type Robots struct {
	fetcher *fetcher
	config  *Config
	mu      sync.Mutex
	origins map[string]*robotsRules
	logger  *slog.Logger
}

// NewRobots creates a robots.txt resolver. A nil client uses a default one.
func NewRobots(config *Config, client *http.Client) *Robots {
	return newRobots(config, newFetcher(client, config), slog.Default())
}

func newRobots(config *Config, f *fetcher, logger *slog.Logger) *Robots {
	return &Robots{
		fetcher: f,
		config:  config,
		origins: make(map[string]*robotsRules),
		logger:  logger.With("component", "robots"),
	}
}

// IsAllowed reports whether target may be crawled. It fails open: when
// robots.txt can't be fetched or answers with a non-2xx status, every URL
// of that origin is allowed.
func (r *Robots) IsAllowed(ctx context.Context, target *url.URL) bool {
	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	return r.rulesFor(ctx, target).allows(path)
}

func (r *Robots) rulesFor(ctx context.Context, target *url.URL) *robotsRules {
	origin := originOf(target)

	r.mu.Lock()
	rules, ok := r.origins[origin.String()]
	r.mu.Unlock()
	if ok {
		return rules
	}

	robotsURL := origin.JoinPath("robots.txt")
	resp, err := r.fetcher.get(ctx, robotsURL, r.config.RobotsTimeout)
	if err != nil {
		r.logger.Debug("robots.txt unavailable, allowing all", "origin", origin.String(), "err", err)
	} else {
		rules = parseRobots(string(resp.body), r.config.AgentTokens)
	}

	r.mu.Lock()
	r.origins[origin.String()] = rules
	r.mu.Unlock()
	return rules
}

// parseRobots collects the Disallow rules of every group whose user agents
// include "*" or contain one of tokens. Consecutive User-agent lines form one
// group. Directives other than User-agent and Disallow are ignored.
func parseRobots(body string, tokens []string) *robotsRules {
	rules := &robotsRules{}
	applies := false
	inAgents := false

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			if !inAgents {
				applies = false
				inAgents = true
			}
			if agentMatches(value, tokens) {
				applies = true
			}
		case "disallow":
			inAgents = false
			if !applies || value == "" {
				continue
			}
			if value == "/" {
				rules.disallowAll = true
				continue
			}
			rules.prefixes = append(rules.prefixes, value)
		default:
			inAgents = false
		}
	}
	return rules
}

func agentMatches(agent string, tokens []string) bool {
	agent = strings.ToLower(agent)
	if agent == "*" {
		return true
	}
	for _, token := range tokens {
		if token != "" && strings.Contains(agent, strings.ToLower(token)) {
			return true
		}
	}
	return false
}

// originOf returns scheme://host of u with a root path.
func originOf(u *url.URL) *url.URL {
	return &url.URL{Scheme: strings.ToLower(u.Scheme), Host: strings.ToLower(u.Host), Path: "/"}
}
