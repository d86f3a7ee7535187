package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContentID(t *testing.T) {
	id := NewContentID()
	require.Len(t, id, len(ContentPrefix)+21)
	assert.True(t, IsContentID(id))
	assert.False(t, IsSessionID(id))
}

func TestNewSessionID(t *testing.T) {
	id := NewSessionID()
	require.Len(t, id, len(SessionPrefix)+21)
	assert.True(t, IsSessionID(id))
}

func TestIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewContentID()
		require.False(t, seen[id], "duplicate id generated: %s", id)
		seen[id] = true
	}
}

func TestIsContentID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"valid", NewContentID(), true},
		{"empty", "", false},
		{"wrong prefix", "sess_aaaaaaaaaaaaaaaaaaaaa", false},
		{"short suffix", "content_abc", false},
		{"long suffix", "content_aaaaaaaaaaaaaaaaaaaaaa", false},
		{"bad characters", "content_aaaaaaaaaaaaaaaaaaa!!", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsContentID(tt.id))
		})
	}
}
