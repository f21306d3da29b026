package querycache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewKeySegments(t *testing.T) {
	key := NewKey("websites", 2, int64(25), true, "search term")
	assert.Equal(t, Key{"websites", "2", "25", "true", "search term"}, key)
}

func TestKeyHasPrefix(t *testing.T) {
	tests := []struct {
		name   string
		key    Key
		prefix Key
		want   bool
	}{
		{"exact match", NewKey("websites"), NewKey("websites"), true},
		{"parent prefix", NewKey("websites", "detail", 7), NewKey("websites"), true},
		{"deeper prefix", NewKey("websites", "detail", 7), NewKey("websites", "detail"), true},
		{"empty prefix matches all", NewKey("notifications"), Key{}, true},
		{"different root", NewKey("notifications"), NewKey("websites"), false},
		{"prefix longer than key", NewKey("websites"), NewKey("websites", "detail"), false},
		{"segment is not substring", NewKey("websites2"), NewKey("websites"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.HasPrefix(tt.prefix))
		})
	}
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "websites/detail/7", NewKey("websites", "detail", 7).String())
}
