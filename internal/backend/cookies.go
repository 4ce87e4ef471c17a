package backend

import (
	"net/http"
	"strings"
)

// CookieSet maps cookie names to their latest value, keeping the order in
// which names were first seen. The zero value is an empty set.
type CookieSet struct {
	names  []string
	values map[string]string
}

// NewCookieSet builds a set from response cookies. Later entries win.
func NewCookieSet(cookies []*http.Cookie) CookieSet {
	cs := CookieSet{values: make(map[string]string, len(cookies))}
	for _, c := range cookies {
		cs.set(c.Name, c.Value)
	}
	return cs
}

// MergeCookies returns a new set holding every name from a and b. For names
// present in both, b's value is kept. Neither input is modified.
func MergeCookies(a, b CookieSet) CookieSet {
	out := CookieSet{
		names:  make([]string, 0, len(a.names)+len(b.names)),
		values: make(map[string]string, len(a.names)+len(b.names)),
	}
	for _, name := range a.names {
		out.set(name, a.values[name])
	}
	for _, name := range b.names {
		out.set(name, b.values[name])
	}
	return out
}

// Merge is shorthand for MergeCookies(cs, other).
func (cs CookieSet) Merge(other CookieSet) CookieSet {
	return MergeCookies(cs, other)
}

// MergeResponse folds the Set-Cookie headers of resp into the set.
func (cs CookieSet) MergeResponse(resp *http.Response) CookieSet {
	return MergeCookies(cs, NewCookieSet(resp.Cookies()))
}

// Get returns the value for name.
func (cs CookieSet) Get(name string) (string, bool) {
	v, ok := cs.values[name]
	return v, ok
}

// Names returns cookie names in first-seen order.
func (cs CookieSet) Names() []string {
	out := make([]string, len(cs.names))
	copy(out, cs.names)
	return out
}

// Len returns the number of cookies in the set.
func (cs CookieSet) Len() int {
	return len(cs.names)
}

// Header renders the set as a Cookie request header value.
func (cs CookieSet) Header() string {
	parts := make([]string, 0, len(cs.names))
	for _, name := range cs.names {
		parts = append(parts, name+"="+cs.values[name])
	}
	return strings.Join(parts, "; ")
}

// set binds name to value in place. Only used while building a new set.
func (cs *CookieSet) set(name, value string) {
	if _, exists := cs.values[name]; !exists {
		cs.names = append(cs.names, name)
	}
	cs.values[name] = value
}
