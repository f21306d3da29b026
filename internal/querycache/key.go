package querycache

import (
	"fmt"
	"strconv"
	"strings"
)

// Key identifies a logical query result as an ordered tuple of segments,
// e.g. ["websites", "2", "25", "search term"]. Invalidation matches on
// segment-wise prefixes: invalidating ["websites"] hits every page and
// detail key under it.
type Key []string

// NewKey builds a key from string, integer and boolean segments.
func NewKey(parts ...any) Key {
	k := make(Key, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			k = append(k, v)
		case int:
			k = append(k, strconv.Itoa(v))
		case int64:
			k = append(k, strconv.FormatInt(v, 10))
		case bool:
			k = append(k, strconv.FormatBool(v))
		default:
			k = append(k, fmt.Sprintf("%v", v))
		}
	}
	return k
}

// HasPrefix reports whether k starts with the given prefix. An empty prefix
// matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, seg := range prefix {
		if k[i] != seg {
			return false
		}
	}
	return true
}

// String renders the key for logs.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// id is the canonical map key. The separator cannot appear in URL or search
// segments, so distinct keys never collide.
func (k Key) id() string {
	return strings.Join(k, "\x1f")
}
