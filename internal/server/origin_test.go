package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOrigin(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		want   string
		ok     bool
	}{
		{name: "lowercases scheme and host", origin: "HTTP://Example.COM", want: "http://example.com", ok: true},
		{name: "keeps port", origin: "http://localhost:8080", want: "http://localhost:8080", ok: true},
		{name: "rejects missing scheme", origin: "example.com", ok: false},
		{name: "rejects garbage", origin: "://", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalizeOrigin(tt.origin)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestIsOriginAllowed(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(&Config{AllowedOrigins: []string{"http://chat.example.com"}})

	request := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, isOriginAllowed(request("http://chat.example.com")))
	assert.True(t, isOriginAllowed(request("HTTP://Chat.Example.Com")))
	assert.False(t, isOriginAllowed(request("http://evil.example.com")))
	assert.False(t, isOriginAllowed(request("")), "missing Origin header is rejected")
}

func TestWildcardAllowsAnyOrigin(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(&Config{AllowedOrigins: []string{"*"}})

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "http://anywhere.example.com")
	assert.True(t, isOriginAllowed(r))
}
