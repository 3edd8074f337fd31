package corehttp

import (
	"strconv"
	"strings"
	"sync"
)

// segmentKind identifies one piece of a registered route pattern, per
// spec.md §9's structured-pattern redesign: literal segments and typed
// holes, matched explicitly rather than through a scanf-style matcher.
type segmentKind int

const (
	segLiteral segmentKind = iota
	segString
	segInt
	segRest
)

type patternSegment struct {
	kind    segmentKind
	literal string
}

// Pattern is a parsed route pattern: a sequence of literal segments and
// typed holes.
type Pattern struct {
	segments []patternSegment
}

// ParsePattern parses a path pattern such as "/users/{id}/posts/{n:int}"
// or "/static/{...}". A segment of the form "{name}" is a string hole,
// "{name:int}" is an integer hole, and "{...}" is a rest-of-path hole
// that must be the pattern's final segment.
func ParsePattern(p string) Pattern {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return Pattern{}
	}
	parts := strings.Split(trimmed, "/")
	segs := make([]patternSegment, 0, len(parts))
	for _, part := range parts {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") && len(part) >= 2 {
			inner := part[1 : len(part)-1]
			switch {
			case inner == "...":
				segs = append(segs, patternSegment{kind: segRest})
			case strings.HasSuffix(inner, ":int"):
				segs = append(segs, patternSegment{kind: segInt})
			default:
				segs = append(segs, patternSegment{kind: segString})
			}
			continue
		}
		segs = append(segs, patternSegment{kind: segLiteral, literal: part})
	}
	return Pattern{segments: segs}
}

// RouteValue is one extracted hole value; Kind says which field is
// meaningful.
type RouteValue struct {
	Kind segmentKind
	Str  string
	Int  int
}

func splitPath(path string) []string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func matchPattern(pat Pattern, segs []string) ([]RouteValue, bool) {
	var values []RouteValue
	si := 0
	for pi := 0; pi < len(pat.segments); pi++ {
		seg := pat.segments[pi]
		if seg.kind == segRest {
			values = append(values, RouteValue{Kind: segRest, Str: strings.Join(segs[si:], "/")})
			return values, true
		}
		if si >= len(segs) {
			return nil, false
		}
		switch seg.kind {
		case segLiteral:
			if segs[si] != seg.literal {
				return nil, false
			}
		case segString:
			values = append(values, RouteValue{Kind: segString, Str: segs[si]})
		case segInt:
			n, err := strconv.Atoi(segs[si])
			if err != nil {
				return nil, false
			}
			values = append(values, RouteValue{Kind: segInt, Int: n})
		}
		si++
	}
	if si != len(segs) {
		return nil, false
	}
	return values, true
}

// Handler handles a matched route: extracted hole values plus the
// string-bodied request. A non-nil error of type *Error aborts with its
// carried code/message; any other error is treated as an internal
// failure (500).
type Handler func(values []RouteValue, req RequestString) (Response, error)

// AcceptPredicate examines a headers-only request before its body is
// read, and may reject it with a carried status code/message.
type AcceptPredicate func(req RequestUnit) *Error

// TopHandler is the fallback invoked when no registered route matches.
type TopHandler func(req RequestString) (Response, error)

// Route is one registered pattern, with an optional method filter and
// accept-predicate.
type Route struct {
	pattern Pattern
	method  *Method
	accept  AcceptPredicate
	handler Handler
}

func defaultTopHandler(RequestString) (Response, error) {
	return NewResponse(StatusNotFound, StringBody("Not Found")), nil
}

// Router holds registered routes and matches incoming requests against
// them, per spec.md §4.G. Routes are tried in reverse registration order,
// so a later registration takes priority over an earlier, overlapping
// one. Mutation is guarded by a mutex: spec.md §9 leaves whether to lock
// the route list after Run begins as an open question; this module
// resolves it in favor of locking, since contention is expected to be
// low and undefined behavior is worse.
type Router struct {
	mu     sync.RWMutex
	routes []Route
	top    TopHandler
}

// NewRouter returns a Router whose top handler defaults to 404 Not Found.
func NewRouter() *Router {
	return &Router{top: defaultTopHandler}
}

// AddPathHandler registers a route. Registration order matters: later
// registrations are tried first.
func (rt *Router) AddPathHandler(pattern string, method *Method, accept AcceptPredicate, handler Handler) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.routes = append(rt.routes, Route{
		pattern: ParsePattern(pattern),
		method:  method,
		accept:  accept,
		handler: handler,
	})
}

// SetTopHandler replaces the fallback invoked when no route matches.
func (rt *Router) SetTopHandler(h TopHandler) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.top = h
}

// Dispatch matches unit against the registered routes in reverse order.
// readBody is invoked at most once, lazily: once a route has been
// selected and its accept-predicate (if any) has passed, or, when no
// route matches, just before the top handler runs — so a rejecting
// predicate never causes the body to be read, per spec.md §8's "accept
// predicate precedes body read" property.
func (rt *Router) Dispatch(unit RequestUnit, readBody func() (RequestString, error)) (Response, error) {
	rt.mu.RLock()
	routes := rt.routes
	top := rt.top
	rt.mu.RUnlock()

	segs := splitPath(unit.Path)
	for i := len(routes) - 1; i >= 0; i-- {
		route := routes[i]
		if route.method != nil && *route.method != unit.Method {
			continue
		}
		values, ok := matchPattern(route.pattern, segs)
		if !ok {
			continue
		}
		if route.accept != nil {
			if rejected := route.accept(unit); rejected != nil {
				return ResponseFromError(rejected), rejected
			}
		}
		req, err := readBody()
		if err != nil {
			return Response{}, err
		}
		resp, err := route.handler(values, req)
		return finalizeHandlerResult(resp, err)
	}

	req, err := readBody()
	if err != nil {
		return Response{}, err
	}
	resp, err := top(req)
	return finalizeHandlerResult(resp, err)
}

func finalizeHandlerResult(resp Response, err error) (Response, error) {
	if err == nil {
		return resp, nil
	}
	if herr, ok := err.(*Error); ok {
		return ResponseFromError(herr), herr
	}
	return ResponseFromError(errInternal(err, "handler error: %v", err)), err
}
