package filescan

import "strings"

// Headers is the multi-map of request headers for the upload, as given by the
// host when the stream is started.
type Headers map[string][]string

// Values returns all values for name, matching it case-insensitively if there
// is no exact match.
func (h Headers) Values(name string) []string {
	if v, ok := h[name]; ok {
		return v
	}
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

// Get returns the first value for name, or the empty string.
func (h Headers) Get(name string) string {
	if v := h.Values(name); len(v) > 0 {
		return v[0]
	}
	return ""
}

// Clone returns a deep copy of h.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	c := make(Headers, len(h))
	for k, v := range h {
		c[k] = append([]string(nil), v...)
	}
	return c
}
