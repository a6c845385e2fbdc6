package server

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOriginPolicy(t *testing.T) {
	p := newOriginPolicy([]string{"http://Example.com", " ", "not-a-url", "https://chat.example.com:8443"}, zap.NewNop())

	cases := []struct {
		origin string
		want   bool
	}{
		{"http://example.com", true},
		{"HTTP://EXAMPLE.COM", true},
		{"https://chat.example.com:8443", true},
		{"https://example.com", false},
		{"http://evil.com", false},
		{"", false},
		{"not-a-url", false},
		{"javascript:alert(1)", false},
	}
	for _, tc := range cases {
		t.Run(tc.origin, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			if tc.origin != "" {
				r.Header.Set("Origin", tc.origin)
			}
			require.Equal(t, tc.want, p.checkOrigin(r))
		})
	}
}

func TestOriginPolicy_Wildcard_Still_Requires_Origin(t *testing.T) {
	req := require.New(t)
	p := newOriginPolicy([]string{"*"}, zap.NewNop())

	r := httptest.NewRequest("GET", "/ws", nil)
	req.False(p.isAllowed(r))

	r.Header.Set("Origin", "http://anything.example")
	req.True(p.isAllowed(r))
}

func TestOriginPolicy_Empty_List_Allows_Nothing(t *testing.T) {
	p := newOriginPolicy(nil, zap.NewNop())
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://localhost:8080")
	require.False(t, p.isAllowed(r))
}
