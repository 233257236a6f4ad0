package mail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCursor_Ordering(t *testing.T) {
	t1 := time.Unix(100, 0)
	t2 := time.Unix(200, 0)

	tests := []struct {
		name string
		a, b Cursor
		want bool
	}{
		{
			name: "earlier timestamp wins",
			a:    Cursor{ReceivedAt: t1, ExternalID: "<z@mx>"},
			b:    Cursor{ReceivedAt: t2, ExternalID: "<a@mx>"},
			want: true,
		},
		{
			name: "equal timestamps break ties by external id",
			a:    Cursor{ReceivedAt: t1, ExternalID: "<a@mx>"},
			b:    Cursor{ReceivedAt: t1, ExternalID: "<b@mx>"},
			want: true,
		},
		{
			name: "identical cursors are not before each other",
			a:    Cursor{ReceivedAt: t1, ExternalID: "<a@mx>"},
			b:    Cursor{ReceivedAt: t1, ExternalID: "<a@mx>"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Before(tt.b))
		})
	}
}

func TestCursor_IsZero(t *testing.T) {
	assert.True(t, Cursor{}.IsZero())
	assert.False(t, Cursor{ExternalID: "<a@mx>"}.IsZero())
	assert.Equal(t, "<start>", Cursor{}.String())
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "bare address", raw: "Alice@Example.COM", want: "alice@example.com"},
		{name: "display name form", raw: "Alice Smith <alice@example.com>", want: "alice@example.com"},
		{name: "surrounding whitespace", raw: "  alice@example.com ", want: "alice@example.com"},
		{name: "garbage", raw: "not an address", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeAddress(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
