package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// HeaderField is a single "Name: Value" line
type HeaderField struct {
	Name  string
	Value string
}

// Headers is an ordered header list.
// Names are compared exactly as received; there is no canonicalization.
type Headers []HeaderField

// Get returns the value of the named header
func (h Headers) Get(name string) (string, bool) {
	for _, f := range h {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Value returns the named header or an empty string
func (h Headers) Value(name string) string {
	v, _ := h.Get(name)
	return v
}

// Set replaces the value of an existing header in place, or appends it
func (h *Headers) Set(name, value string) {
	for i := range *h {
		if (*h)[i].Name == name {
			(*h)[i].Value = value
			return
		}
	}
	*h = append(*h, HeaderField{Name: name, Value: value})
}

// Add appends a header without looking for an existing one
func (h *Headers) Add(name, value string) {
	*h = append(*h, HeaderField{Name: name, Value: value})
}

// Del removes every occurrence of the named header
func (h *Headers) Del(name string) {
	out := (*h)[:0]
	for _, f := range *h {
		if f.Name != name {
			out = append(out, f)
		}
	}
	*h = out
}

// Clone returns an independent copy
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	copy(out, h)
	return out
}

// ContentLength parses the Content-Length header.
// The value is informational only; the decoder never checks it against the body.
func (h Headers) ContentLength() (int, bool) {
	v, ok := h.Get(HeaderContentLength)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ValidateValue rejects values that would break out of a single line
// on the wire
func ValidateValue(v string) error {
	if strings.ContainsAny(v, "\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidValue, v)
	}
	return nil
}

// Validate checks every header name and value
func (h Headers) Validate() error {
	for _, f := range h {
		if err := ValidateValue(f.Name); err != nil {
			return err
		}
		if err := ValidateValue(f.Value); err != nil {
			return err
		}
	}
	return nil
}

// parseHeaderLine splits a header line on the first ": "
func parseHeaderLine(line string) (HeaderField, bool) {
	name, value, found := strings.Cut(line, ": ")
	if !found {
		return HeaderField{}, false
	}
	return HeaderField{Name: name, Value: value}, true
}
