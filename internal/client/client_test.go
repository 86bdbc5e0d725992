package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hologram-cli/pkg/fetcher"
)

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	c := New(ClientConfig{})
	assert.Equal(t, fetcher.DefaultBaseURL, c.Config.BaseURL)
	assert.Equal(t, DefaultTimeout, c.Config.Timeout)

	c = New(ClientConfig{BaseURL: "https://example.test/"})
	assert.Equal(t, "https://example.test", c.Config.BaseURL)
}

func TestGetReturnsStatusAndBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/1/csr/rdm", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("deviceid"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[],"continues":false}`))
	}))
	defer srv.Close()

	c := New(ClientConfig{BaseURL: srv.URL})
	status, body, err := c.Get(context.Background(), srv.URL+"/api/1/csr/rdm?deviceid=42")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"data":[],"continues":false}`, string(body))
}

func TestGetRelativeURLUsesBase(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/1/csr/rdm", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(ClientConfig{BaseURL: srv.URL})
	status, _, err := c.Get(context.Background(), "/api/1/csr/rdm")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestGetErrorStatusIsNotAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(ClientConfig{BaseURL: srv.URL})
	status, body, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, string(body), "boom")
}

func TestGetCancelled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := New(ClientConfig{BaseURL: srv.URL})
	status, _, err := c.Get(ctx, srv.URL)
	require.Error(t, err)
	assert.Zero(t, status)
}
