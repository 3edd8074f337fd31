package corehttp

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Method is the HTTP request method. Only the methods spec.md names are
// recognized; anything else fails to parse.
type Method int

const (
	MethodGet Method = iota
	MethodPut
	MethodPost
	MethodHead
	MethodDelete
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPut:
		return "PUT"
	case MethodPost:
		return "POST"
	case MethodHead:
		return "HEAD"
	case MethodDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// ParseMethod maps a request-line token to a Method, failing for anything
// not in {GET, PUT, POST, HEAD, DELETE}.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "GET":
		return MethodGet, nil
	case "PUT":
		return MethodPut, nil
	case "POST":
		return MethodPost, nil
	case "HEAD":
		return MethodHead, nil
	case "DELETE":
		return MethodDelete, nil
	default:
		return 0, fmt.Errorf("corehttp: unsupported method %q", s)
	}
}

// headerField is one (name, value) pair, order-preserved as received or
// set.
type headerField struct {
	Name  string
	Value string
}

// Header is an ordered sequence of (name, value) pairs. Lookup by name is
// case-insensitive; values are compared exactly. Grounded in the teacher's
// RequestHeader/ResponseHeader pair, collapsed into a single ordered-slice
// type since this module, unlike the teacher, does not pool or reuse
// header storage across requests.
type Header struct {
	fields []headerField
}

// ValidateHeaderName reports whether name is non-empty and consists only
// of RFC 7230 §3.2.6 token characters, and contains no CR or LF.
func ValidateHeaderName(name string) error {
	if name == "" {
		return fmt.Errorf("corehttp: empty header name")
	}
	if strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("corehttp: header name %q contains CR or LF", name)
	}
	if !httpguts.ValidHeaderFieldName(name) {
		return fmt.Errorf("corehttp: invalid header name %q", name)
	}
	return nil
}

// ValidateHeaderValue reports whether value contains no CR or LF and is a
// valid header field value per RFC 7230.
func ValidateHeaderValue(value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("corehttp: header value %q contains CR or LF", value)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("corehttp: invalid header value %q", value)
	}
	return nil
}

func headerNameEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Get returns the first value set for name, case-insensitively, and
// whether it was present at all.
func (h *Header) Get(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, f := range h.fields {
		if headerNameEqual(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces any existing entries matching name (case-insensitively)
// with a single (name, value) pair, appended at the position of the first
// removed match, or at the end if name was absent.
func (h *Header) Set(name, value string) {
	for i := range h.fields {
		if headerNameEqual(h.fields[i].Name, name) {
			h.fields[i] = headerField{Name: name, Value: value}
			h.removeFrom(i + 1, name)
			return
		}
	}
	h.fields = append(h.fields, headerField{Name: name, Value: value})
}

// Add appends a new (name, value) pair without disturbing any existing
// entries for name, used when a header is legitimately repeatable.
func (h *Header) Add(name, value string) {
	h.fields = append(h.fields, headerField{Name: name, Value: value})
}

// Remove deletes every entry matching name, case-insensitively.
func (h *Header) Remove(name string) {
	h.removeFrom(0, name)
}

func (h *Header) removeFrom(start int, name string) {
	out := h.fields[:start]
	for _, f := range h.fields[start:] {
		if !headerNameEqual(f.Name, name) {
			out = append(out, f)
		}
	}
	h.fields = out
}

// Int returns the named header's value parsed as a base-10 integer,
// failing softly: a missing header or a malformed value both report
// "absent" (ok == false), exactly as spec.md's helper prescribes.
func (h *Header) Int(name string) (int, bool) {
	v, ok := h.Get(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Len returns the number of (name, value) pairs currently stored.
func (h *Header) Len() int {
	return len(h.fields)
}

// VisitAll calls f for every (name, value) pair in registration order.
func (h *Header) VisitAll(f func(name, value string)) {
	for _, field := range h.fields {
		f(field.Name, field.Value)
	}
}

// Clone returns an independent copy of h.
func (h *Header) Clone() Header {
	out := Header{fields: make([]headerField, len(h.fields))}
	copy(out.fields, h.fields)
	return out
}

// ConnectionClose reports whether the first Connection header's value is
// "close", case-insensitively and ignoring surrounding whitespace. A
// comma-separated list of tokens is not split.
func (h *Header) ConnectionClose() bool {
	v, ok := h.Get("Connection")
	return ok && strings.EqualFold(strings.TrimSpace(v), "close")
}

// ConnectionKeepAlive reports whether the first Connection header's value
// is "keep-alive", case-insensitively and ignoring surrounding whitespace.
// A comma-separated list of tokens is not split.
func (h *Header) ConnectionKeepAlive() bool {
	v, ok := h.Get("Connection")
	return ok && strings.EqualFold(strings.TrimSpace(v), "keep-alive")
}
