package rmclient_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/redmine-ws/pkg/redmine"
	"github.com/fivetwenty-io/redmine-ws/pkg/rmclient"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := rmclient.New(context.Background(), nil)
	require.ErrorIs(t, err, redmine.ErrConfigRequired)

	_, err = rmclient.New(context.Background(), &redmine.Config{})
	require.ErrorIs(t, err, redmine.ErrBaseURLRequired)
}

func TestNew_DoesNotModifyConfig(t *testing.T) {
	t.Parallel()

	config := &redmine.Config{BaseURL: "redmine.example.com/", APIKey: "k"}

	c, err := rmclient.New(context.Background(), config)
	require.NoError(t, err)

	defer func() { _ = c.Close() }()

	assert.Equal(t, "redmine.example.com/", config.BaseURL)
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"redmine.example.com":             "https://redmine.example.com",
		"  https://redmine.example.com/ ": "https://redmine.example.com",
		"http://localhost:3000//":         "http://localhost:3000",
		"https://example.com/redmine/":    "https://example.com/redmine",
	}

	for in, want := range tests {
		assert.Equal(t, want, rmclient.NormalizeURL(in), in)
	}
}

func TestNewWithKey(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("X-Redmine-API-Key"))
		_, _ = io.WriteString(w, `{"project":{"id":1,"name":"Ops"}}`)
	}))
	defer server.Close()

	c, err := rmclient.NewWithKey(context.Background(), server.URL+"/", "k")
	require.NoError(t, err)

	defer func() { _ = c.Close() }()

	p, err := c.Projects().Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Ops", redmine.AsProject(p).Name())
}

func TestNewWithPassword(t *testing.T) {
	t.Parallel()

	var handshakes atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ann", user)
		assert.Equal(t, "pw", pass)

		if r.URL.Path == "/" {
			handshakes.Add(1)

			return
		}

		_, _ = io.WriteString(w, `{"users":[{"id":1,"login":"ann"}],"total_count":1}`)
	}))
	defer server.Close()

	c, err := rmclient.NewWithPassword(context.Background(), server.URL, "ann", "pw")
	require.NoError(t, err)

	defer func() { _ = c.Close() }()

	users, err := c.Users().QueryToList(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int32(1), handshakes.Load())
}
