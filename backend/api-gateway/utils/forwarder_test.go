package utils

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUpgrade(t *testing.T) {
	tests := []struct {
		name       string
		connection string
		upgrade    string
		want       bool
	}{
		{"websocket", "Upgrade", "websocket", true},
		{"token list", "keep-alive, Upgrade", "websocket", true},
		{"lower case", "upgrade", "websocket", true},
		{"no upgrade header", "Upgrade", "", false},
		{"no connection token", "keep-alive", "websocket", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := http.NewRequest(http.MethodGet, "http://gw/orders/ws", nil)
			r.Header.Set("Connection", tt.connection)
			if tt.upgrade != "" {
				r.Header.Set("Upgrade", tt.upgrade)
			}
			assert.Equal(t, tt.want, IsUpgrade(r))
		})
	}
}

func TestRemoveHopHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Connection", "X-Trace, close")
	h.Set("X-Trace", "1")
	h.Set("Keep-Alive", "timeout=5")
	h.Set("Transfer-Encoding", "chunked")
	h.Set("Content-Type", "application/json")
	h.Add("Set-Cookie", "a=1")
	h.Add("Set-Cookie", "b=2")

	removeHopHeaders(h)

	assert.Empty(t, h.Get("Connection"))
	assert.Empty(t, h.Get("X-Trace"))
	assert.Empty(t, h.Get("Keep-Alive"))
	assert.Empty(t, h.Get("Transfer-Encoding"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Equal(t, []string{"a=1", "b=2"}, h.Values("Set-Cookie"))
}
