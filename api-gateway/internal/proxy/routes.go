// Package proxy routes /v1 requests to the backend service that owns the
// path and relays the response.
package proxy

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/services"
)

type Route struct {
	Service  string
	Prefix   string
	Target   *url.URL
	segments []string
}

// Table matches request paths against service prefixes. The route with the
// most matching segments wins, so /v1/accounts/*/transactions takes
// precedence over /v1/accounts.
type Table struct {
	routes []Route
}

// NewTable builds the routing table from the service catalog. baseURL
// resolves the upstream address of each service.
func NewTable(svcs []services.Service, baseURL func(services.Service) string) (*Table, error) {
	t := &Table{}
	for _, s := range svcs {
		target, err := url.Parse(baseURL(s))
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("invalid upstream url for %s: %q", s.Name, baseURL(s))
		}
		for _, p := range s.Prefixes {
			t.routes = append(t.routes, Route{
				Service:  s.Name,
				Prefix:   p,
				Target:   target,
				segments: splitPath(p),
			})
		}
	}
	sort.SliceStable(t.routes, func(i, j int) bool {
		return len(t.routes[i].segments) > len(t.routes[j].segments)
	})
	return t, nil
}

func (t *Table) Routes() []Route {
	return t.routes
}

func (t *Table) Match(path string) (Route, bool) {
	segs := splitPath(path)
	for _, r := range t.routes {
		if matchSegments(r.segments, segs) {
			return r, true
		}
	}
	return Route{}, false
}

func matchSegments(prefix, path []string) bool {
	if len(path) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if p != "*" && p != path[i] {
			return false
		}
	}
	return true
}

func splitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
}

// PublicRoute is reachable without a bearer token.
type PublicRoute struct {
	Method string
	Path   string
}

var PublicRoutes = []PublicRoute{
	{Method: http.MethodPost, Path: "/v1/auth/login"},
	{Method: http.MethodPost, Path: "/v1/auth/refresh"},
	{Method: http.MethodPost, Path: "/v1/users"},
}

func isPublic(routes []PublicRoute, method, path string) bool {
	path = "/" + strings.Join(splitPath(path), "/")
	for _, r := range routes {
		if r.Method == method && r.Path == path {
			return true
		}
	}
	return false
}
