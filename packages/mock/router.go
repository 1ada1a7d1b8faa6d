package mock

import (
	"net/http"
	"regexp"
	"strings"
)

// HandlerFunc serves a matched route; params holds the {name} path segments.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, params map[string]string)

// Route represents a mock route
type Route struct {
	Method      string
	PathPattern string
	PathRegex   *regexp.Regexp
	Handler     HandlerFunc
}

// Router matches incoming requests to routes
type Router struct {
	routes []*Route
}

func NewRouter() *Router {
	return &Router{
		routes: make([]*Route, 0),
	}
}

// Handle registers a route. Pattern segments like {id} match one path segment.
func (r *Router) Handle(method, pattern string, h HandlerFunc) {
	pattern = normalizePath(pattern)
	r.routes = append(r.routes, &Route{
		Method:      method,
		PathPattern: pattern,
		PathRegex:   createPathRegex(pattern),
		Handler:     h,
	})
}

// Match finds a route matching the given method and path
func (r *Router) Match(method, path string) (*Route, map[string]string) {
	path = normalizePath(path)

	for _, route := range r.routes {
		if !strings.EqualFold(route.Method, method) {
			continue
		}

		if params := matchPath(route, path); params != nil {
			return route, params
		}
	}

	return nil, nil
}

// Allowed reports whether any route matches path regardless of method.
func (r *Router) Allowed(path string) bool {
	path = normalizePath(path)
	for _, route := range r.routes {
		if matchPath(route, path) != nil {
			return true
		}
	}
	return false
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	// Remove trailing slash (except for root)
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

var paramPattern = regexp.MustCompile(`\\\{([A-Za-z_][A-Za-z0-9_]*)\\\}`)

func createPathRegex(pattern string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(pattern)
	return regexp.MustCompile("^" + paramPattern.ReplaceAllString(quoted, `(?P<$1>[^/]+)`) + "$")
}

func matchPath(route *Route, path string) map[string]string {
	matches := route.PathRegex.FindStringSubmatch(path)
	if matches == nil {
		return nil
	}
	params := make(map[string]string)
	for i, name := range route.PathRegex.SubexpNames() {
		if i > 0 && name != "" {
			params[name] = matches[i]
		}
	}
	return params
}
