package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// RobotsChecker checks robots.txt rules for the hosts a batch will query
type RobotsChecker struct {
	cache      map[string]*robotstxt.RobotsData
	mu         sync.RWMutex
	httpClient *http.Client
	userAgent  string
	logger     *zap.Logger
}

// NewRobotsChecker creates a checker that fetches robots.txt with httpClient
func NewRobotsChecker(httpClient *http.Client, userAgent string, logger *zap.Logger) *RobotsChecker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RobotsChecker{
		cache:      make(map[string]*robotstxt.RobotsData),
		httpClient: httpClient,
		userAgent:  userAgent,
		logger:     logger,
	}
}

// CanFetch reports whether rawURL may be requested and the crawl delay the
// host asks for. An unreachable robots.txt allows everything.
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return false, 0, fmt.Errorf("parse URL: %q is not absolute", rawURL)
	}

	origin := parsed.Scheme + "://" + parsed.Host
	data, err := r.robotsData(ctx, origin)
	if err != nil {
		r.logger.Warn("robots.txt unavailable, allowing", zap.String("origin", origin), zap.Error(err))
		return true, 0, nil
	}

	agent := NormalizeUserAgent(r.userAgent)
	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	allowed := data.TestAgent(path, agent)

	var crawlDelay time.Duration
	if group := data.FindGroup(agent); group != nil {
		crawlDelay = group.CrawlDelay
	}

	return allowed, crawlDelay, nil
}

func (r *RobotsChecker) robotsData(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	r.mu.RLock()
	data, exists := r.cache[origin]
	r.mu.RUnlock()
	if exists {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// FromResponse treats 4xx as allow-all and 5xx as disallow-all.
	data, err = robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.mu.Lock()
	r.cache[origin] = data
	r.mu.Unlock()

	return data, nil
}

// NormalizeUserAgent reduces a User-Agent to its product token,
// "factordb-go/0.1 (+url)" becomes "factordb-go"
func NormalizeUserAgent(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) > 0 {
		return strings.Split(parts[0], "/")[0]
	}
	return ua
}
