package httpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"", "http://localhost:1181"},
		{"frcvision.local", "http://frcvision.local:1181"},
		{"10.46.62.11:8080", "http://10.46.62.11:8080"},
		{"http://wpilibpi.local:1181/", "http://wpilibpi.local:1181"},
		{"https://example.org", "https://example.org"},
	}
	for _, tc := range tests {
		t.Run(tc.addr, func(t *testing.T) {
			assert.Equal(t, tc.want, BaseURL(tc.addr, "1181"))
		})
	}
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			http.Error(w, "nope", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"team": 4662, "cycles": 3}`))
	}))
	defer srv.Close()

	c := NewClient(0)

	var st struct {
		Team   int    `json:"team"`
		Cycles uint64 `json:"cycles"`
	}
	require.NoError(t, GetJSON(context.Background(), c, srv.URL+"/api/status", &st))
	assert.Equal(t, 4662, st.Team)
	assert.Equal(t, uint64(3), st.Cycles)

	err := GetJSON(context.Background(), c, srv.URL+"/missing", &st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
