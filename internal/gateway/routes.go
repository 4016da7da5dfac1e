package gateway

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Route forwards every request whose path starts with Prefix to Upstream.
type Route struct {
	Prefix   string
	Upstream *url.URL
}

// RouteTable resolves request paths to upstreams by longest matching prefix.
type RouteTable struct {
	routes []Route
}

// NewRouteTable validates the routes and orders them longest prefix first. A prefix
// matches a path when it is equal to it or followed by "/" in it.
func NewRouteTable(routes []Route) (*RouteTable, error) {
	seen := make(map[string]bool, len(routes))
	table := make([]Route, 0, len(routes))
	for _, route := range routes {
		prefix := normalizePrefix(route.Prefix)
		if prefix == "" {
			return nil, fmt.Errorf("route prefix must not be empty")
		}
		if route.Upstream == nil || route.Upstream.Scheme == "" || route.Upstream.Host == "" {
			return nil, fmt.Errorf("route %s: upstream must be an absolute URL", prefix)
		}
		if seen[prefix] {
			return nil, fmt.Errorf("route %s: duplicate prefix", prefix)
		}
		seen[prefix] = true
		table = append(table, Route{Prefix: prefix, Upstream: route.Upstream})
	}
	sort.SliceStable(table, func(i, j int) bool {
		return len(table[i].Prefix) > len(table[j].Prefix)
	})
	return &RouteTable{routes: table}, nil
}

// Match returns the route serving path.
func (t *RouteTable) Match(path string) (Route, bool) {
	for _, route := range t.routes {
		if route.Prefix == "/" || path == route.Prefix || strings.HasPrefix(path, route.Prefix+"/") {
			return route, true
		}
	}
	return Route{}, false
}

// Routes returns the table in match order.
func (t *RouteTable) Routes() []Route {
	return append([]Route(nil), t.routes...)
}

// ParseRoutes parses "prefix=url" pairs separated by commas, e.g.
// "/api/wallet=http://wallet:8080,/api/swap=http://swap:8080".
func ParseRoutes(raw string) ([]Route, error) {
	var routes []Route
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		prefix, target, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("route %q: expected prefix=url", pair)
		}
		upstream, err := url.Parse(strings.TrimSpace(target))
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", pair, err)
		}
		routes = append(routes, Route{Prefix: strings.TrimSpace(prefix), Upstream: upstream})
	}
	return routes, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if len(prefix) > 1 {
		prefix = strings.TrimRight(prefix, "/")
		if prefix == "" {
			prefix = "/"
		}
	}
	return prefix
}

// DefaultRoutes sends the API, swagger and health prefixes to the transaction service.
func DefaultRoutes(apiURL string) ([]Route, error) {
	upstream, err := url.Parse(strings.TrimSpace(apiURL))
	if err != nil {
		return nil, fmt.Errorf("api url: %w", err)
	}
	return []Route{
		{Prefix: "/api", Upstream: upstream},
		{Prefix: "/swagger", Upstream: upstream},
		{Prefix: "/health", Upstream: upstream},
	}, nil
}

// MergeRoutes appends overrides to base. An override replaces the base route with the
// same prefix.
func MergeRoutes(base, overrides []Route) []Route {
	replaced := make(map[string]bool, len(overrides))
	for _, route := range overrides {
		replaced[normalizePrefix(route.Prefix)] = true
	}
	merged := make([]Route, 0, len(base)+len(overrides))
	for _, route := range base {
		if !replaced[normalizePrefix(route.Prefix)] {
			merged = append(merged, route)
		}
	}
	return append(merged, overrides...)
}
