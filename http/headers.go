package http

import (
	"github.com/indigo-web/utils/strcomp"
)

// canonical maps the lowercased form of a well-known header name to its
// canonical rendering, so lookups are case-insensitive regardless of how a
// client or handler wrote the key. Unknown headers keep whatever case the
// client sent.
var canonical = map[string]string{
	"content-length":    "Content-Length",
	"content-type":      "Content-Type",
	"connection":        "Connection",
	"host":              "Host",
	"keep-alive":        "Keep-Alive",
	"transfer-encoding": "Transfer-Encoding",
	"server":            "Server",
	"user-agent":        "User-Agent",
	"accept":            "Accept",
}

func canonicalKey(key string) string {
	lower := toLower(key)
	if canon, ok := canonical[lower]; ok {
		return canon
	}

	return key
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}

	return string(b)
}

// Headers is a case-preserving, single-value-per-key dictionary: repeated
// headers last-wins. Iteration order follows insertion order, which only
// matters for Response serialization, where header order is unspecified
// anyway.
type Headers struct {
	keys   []string
	values []string
	index  map[string]int // canonical-lowercased key -> position in keys/values
}

// NewHeaders returns an empty Headers with room for n pairs, mirroring
// indigo-web/indigo's kv.Storage NewPrealloc convention.
func NewHeaders(n int) *Headers {
	return &Headers{
		keys:   make([]string, 0, n),
		values: make([]string, 0, n),
		index:  make(map[string]int, n),
	}
}

// Set stores value under key, normalizing key to canonical case for
// lookup and overwriting any previous value for the same header
// (last-wins).
func (h *Headers) Set(key, value string) {
	canon := canonicalKey(key)
	lower := toLower(canon)

	if i, ok := h.index[lower]; ok {
		h.keys[i] = canon
		h.values[i] = value
		return
	}

	h.index[lower] = len(h.keys)
	h.keys = append(h.keys, canon)
	h.values = append(h.values, value)
}

// Get returns the value stored for key (case-insensitively) and whether it
// was present.
func (h *Headers) Get(key string) (string, bool) {
	lower := toLower(key)
	i, ok := h.index[lower]
	if !ok {
		return "", false
	}

	return h.values[i], true
}

// GetDefault returns the stored value for key, or def if absent.
func (h *Headers) GetDefault(key, def string) string {
	if v, ok := h.Get(key); ok {
		return v
	}

	return def
}

// Is reports whether the value stored for key case-insensitively equals
// want, using strcomp.EqualFold to avoid allocating a lowercased copy.
func (h *Headers) Is(key, want string) bool {
	v, ok := h.Get(key)
	return ok && strcomp.EqualFold(v, want)
}

// Len returns the number of distinct headers stored.
func (h *Headers) Len() int {
	return len(h.keys)
}

// Each calls fn for every (key, value) pair in insertion order.
func (h *Headers) Each(fn func(key, value string)) {
	for i, k := range h.keys {
		fn(k, h.values[i])
	}
}

// Clear empties the dictionary while keeping its backing storage, so a
// Request/Response can be reset() without reallocating on the next
// keep-alive cycle.
func (h *Headers) Clear() {
	h.keys = h.keys[:0]
	h.values = h.values[:0]
	for k := range h.index {
		delete(h.index, k)
	}
}
