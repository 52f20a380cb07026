package ws

import (
	"log"
	"net/http"
	"net/url"
	"strings"
)

// originChecker validates the Origin header of WebSocket upgrade
// requests against a configured allow-list. An empty list or a "*"
// entry allows every origin.
type originChecker struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginChecker(origins []string) *originChecker {
	c := &originChecker{allowed: make(map[string]struct{})}
	if len(origins) == 0 {
		c.allowAll = true
		return c
	}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			c.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Printf("ws: ignoring invalid origin in configuration: %q", origin)
			continue
		}
		c.allowed[normalized] = struct{}{}
	}
	return c
}

func (c *originChecker) check(r *http.Request) bool {
	if c.allowAll {
		return true
	}

	normalized, ok := normalizeOrigin(r.Header.Get("Origin"))
	if !ok {
		log.Printf("ws: blocked connection with missing or malformed origin: %q", r.Header.Get("Origin"))
		return false
	}

	if _, exists := c.allowed[normalized]; exists {
		return true
	}

	log.Printf("ws: blocked connection from disallowed origin: %q", r.Header.Get("Origin"))
	return false
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
