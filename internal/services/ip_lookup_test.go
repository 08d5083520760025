package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sjperalta/eventra-api/internal/config"
	"github.com/stretchr/testify/assert"
)

func lookupAgainst(server *httptest.Server, timeoutMS int) IPLookup {
	return NewIPLookupService(&config.Config{
		IPLookupURL:       server.URL,
		IPLookupTimeoutMS: timeoutMS,
	})
}

func TestLookupCallerIP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("203.0.113.7\n"))
	}))
	defer server.Close()

	ip, err := lookupAgainst(server, 1000).LookupCallerIP(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestLookupCallerIP_InvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not an ip</html>"))
	}))
	defer server.Close()

	_, err := lookupAgainst(server, 1000).LookupCallerIP(context.Background())
	assert.Error(t, err)
}

func TestLookupCallerIP_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := lookupAgainst(server, 1000).LookupCallerIP(context.Background())
	assert.Error(t, err)
}

func TestLookupCallerIP_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte("203.0.113.7"))
	}))
	defer server.Close()

	start := time.Now()
	_, err := lookupAgainst(server, 50).LookupCallerIP(context.Background())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 250*time.Millisecond, "lookup must respect its deadline")
}
