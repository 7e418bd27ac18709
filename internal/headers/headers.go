package headers

import (
	"bytes"
	"errors"
	"strings"

	"golang.org/x/net/http/httpguts"
)

var (
	ErrMalformedFieldLine = errors.New("malformed header line")
	ErrMalformedFieldName = errors.New("malformed header name")
)

// ParseFieldLine parses a single "name: value" line without its CRLF.
// returns
// $1: name
// $2: value, trimmed
// $3: err
func ParseFieldLine(fieldLine []byte) (string, string, error) {
	parts := bytes.SplitN(fieldLine, []byte(":"), 2)
	if len(parts) != 2 {
		return "", "", ErrMalformedFieldLine
	}
	name := parts[0]
	value := bytes.TrimSpace(parts[1])

	// "Host : x" is rejected, not repaired
	if bytes.HasSuffix(name, []byte(" ")) || bytes.HasSuffix(name, []byte("\t")) {
		return "", "", ErrMalformedFieldName
	}
	name = bytes.TrimSpace(name)
	if !httpguts.ValidHeaderFieldName(string(name)) {
		return "", "", ErrMalformedFieldName
	}

	return string(name), string(value), nil
}

// Headers is the header field set shared by requests and responses.
// Names are lower-cased on insertion; ForEach walks fields in the order
// they were first set.
type Headers struct {
	headers map[string]string
	order   []string
}

func NewHeaders() *Headers {
	return &Headers{
		headers: map[string]string{},
	}
}

func (h *Headers) Get(name string) string {
	return h.headers[strings.ToLower(name)]
}

func (h *Headers) Lookup(name string) (string, bool) {
	v, ok := h.headers[strings.ToLower(name)]
	return v, ok
}

func (h *Headers) Has(name string) bool {
	_, ok := h.headers[strings.ToLower(name)]
	return ok
}

// Set stores value under name. A later Set of the same name wins.
func (h *Headers) Set(name, value string) {
	name = strings.ToLower(name)
	if _, ok := h.headers[name]; !ok {
		h.order = append(h.order, name)
	}
	h.headers[name] = value
}

func (h *Headers) Delete(name string) {
	name = strings.ToLower(name)
	if _, ok := h.headers[name]; !ok {
		return
	}
	delete(h.headers, name)
	for i, n := range h.order {
		if n == name {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

func (h *Headers) Len() int {
	return len(h.order)
}

func (h *Headers) ForEach(cb func(n, v string)) {
	for _, n := range h.order {
		cb(n, h.headers[n])
	}
}
