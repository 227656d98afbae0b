package gateway

import (
	"net/http"
	"net/url"

	"github.com/bmatcuk/doublestar/v4"
)

// originChecker matches the Origin header of an upgrade request against glob
// patterns such as "https://*.example.com" or "localhost:*". A pattern may
// match either the full origin or just its host.
type originChecker struct {
	patterns []string
}

func (o originChecker) check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(o.patterns) == 0 {
		return true
	}

	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Host
	}

	for _, pattern := range o.patterns {
		if ok, _ := doublestar.Match(pattern, origin); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, host); ok {
			return true
		}
	}
	return false
}
