package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/redmine-ws/internal/client"
	"github.com/fivetwenty-io/redmine-ws/internal/constants"
	"github.com/fivetwenty-io/redmine-ws/pkg/redmine"
)

// recorder is a test server that remembers every request.
type recorder struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request, body []byte)
}

type recordedRequest struct {
	Method string
	Path   string
	Body   []byte
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	rec.mu.Lock()
	rec.requests = append(rec.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
	rec.mu.Unlock()

	if rec.handler != nil {
		rec.handler(w, r, body)
	}
}

func (rec *recorder) Requests() []recordedRequest {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	return append([]recordedRequest(nil), rec.requests...)
}

func newTestClient(t *testing.T, rec *recorder, mutate func(*redmine.Config)) *client.Client {
	t.Helper()

	server := httptest.NewServer(rec)
	t.Cleanup(server.Close)

	config := &redmine.Config{BaseURL: server.URL, APIKey: "secret"}
	if mutate != nil {
		mutate(config)
	}

	c, err := client.New(context.Background(), config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := client.New(context.Background(), &redmine.Config{})
	require.ErrorIs(t, err, client.ErrBaseURLRequired)
}

func TestNew_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.New(ctx, &redmine.Config{BaseURL: "https://redmine.example.com"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNew_BadServerVersion(t *testing.T) {
	t.Parallel()

	_, err := client.New(context.Background(), &redmine.Config{
		BaseURL:       "https://redmine.example.com",
		APIKey:        "k",
		ServerVersion: "banana",
	})
	require.Error(t, err)
}

func TestNew_AnonymousAccess(t *testing.T) {
	t.Parallel()

	rec := &recorder{handler: func(w http.ResponseWriter, r *http.Request, _ []byte) {
		assert.Empty(t, r.Header.Get(constants.APIKeyHeader))
		_, _ = io.WriteString(w, `{"news":[],"total_count":0}`)
	}}
	c := newTestClient(t, rec, func(config *redmine.Config) { config.APIKey = "" })

	list, err := c.News().QueryToList(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestClient_Managers(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &recorder{}, nil)

	assert.Same(t, redmine.IssueResource, c.Issues().Resource())
	assert.Same(t, redmine.ProjectResource, c.Projects().Resource())
	assert.Same(t, redmine.UserResource, c.Users().Resource())
	assert.Same(t, redmine.TimeEntryResource, c.TimeEntries().Resource())
	assert.Same(t, redmine.VersionResource, c.Versions().Resource())
	assert.Same(t, redmine.MembershipResource, c.Memberships().Resource())
	assert.Same(t, redmine.NewsResource, c.News().Resource())

	custom := &redmine.Resource{Type: "wiki_page", ItemPath: "projects/ops/wiki/%s.json"}
	assert.Same(t, custom, c.Manager(custom).Resource())
	assert.False(t, c.Transport().DryRun())
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_IssueLifecycle(t *testing.T) {
	t.Parallel()

	rec := &recorder{handler: func(w http.ResponseWriter, r *http.Request, body []byte) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/issues.json":
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"issue":{"id":77,"subject":"Printer on fire","status":{"id":1,"name":"New"},`+
				`"custom_fields":[{"id":3,"name":"Severity","value":"low"}]}}`)
		case r.Method == http.MethodGet && r.URL.Path == "/issues/77.json":
			_, _ = io.WriteString(w, `{"issue":{"id":77,"subject":"Printer on fire","status":{"id":1,"name":"New"},`+
				`"custom_fields":[{"id":3,"name":"Severity","value":"low"}]}}`)
		case r.Method == http.MethodPut && r.URL.Path == "/issues/77.json":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodDelete && r.URL.Path == "/issues/77.json":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}}
	c := newTestClient(t, rec, nil)
	ctx := context.Background()

	created, err := c.Issues().Create(ctx, redmine.Fields{
		"subject": "Printer on fire",
		"project": map[string]any{"id": 3},
	})
	require.NoError(t, err)
	assert.Equal(t, redmine.ID("77"), created.ID())

	issue, err := c.Issues().Lookup(ctx, "77")
	require.NoError(t, err)

	require.NoError(t, redmine.AsIssue(issue).SetStatus("5"))
	require.NoError(t, issue.SetCustomField("Severity", "high"))
	require.NoError(t, issue.Save(ctx, "escalating"))

	require.NoError(t, c.Issues().Delete(ctx, "77"))

	_, err = c.Issues().Lookup(ctx, "78")
	require.ErrorIs(t, err, redmine.ErrNoSuchKey)

	requests := rec.Requests()
	require.Len(t, requests, 5)

	var createBody map[string]map[string]any
	require.NoError(t, json.Unmarshal(requests[0].Body, &createBody))
	assert.Equal(t, map[string]any{"subject": "Printer on fire", "project_id": float64(3)}, createBody["issue"])

	var updateBody map[string]map[string]any
	require.NoError(t, json.Unmarshal(requests[2].Body, &updateBody))
	assert.Equal(t, map[string]any{
		"status_id":           float64(5),
		"notes":               "escalating",
		"custom_field_values": map[string]any{"3": "high"},
	}, updateBody["issue"])

	assert.Equal(t, http.MethodDelete, requests[3].Method)
}

func TestClient_DryRunSkipsWrites(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer

	rec := &recorder{handler: func(w http.ResponseWriter, r *http.Request, _ []byte) {
		_, _ = io.WriteString(w, `{"issue":{"id":1,"subject":"x"}}`)
	}}
	c := newTestClient(t, rec, func(config *redmine.Config) {
		config.DryRun = true
		config.Logger = client.NewDefaultLogger(&logs, "info")
	})
	ctx := context.Background()

	assert.True(t, c.Transport().DryRun())

	created, err := c.Issues().Create(ctx, redmine.Fields{"subject": "pretend"})
	require.NoError(t, err)
	assert.Equal(t, "pretend", created.GetString("subject"))

	issue, err := c.Issues().Get(ctx, "1")
	require.NoError(t, err)
	require.NoError(t, issue.Set("subject", "y"))
	require.NoError(t, issue.Save(ctx, ""))
	require.NoError(t, c.Issues().Delete(ctx, "1"))

	requests := rec.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodGet, requests[0].Method)

	assert.Contains(t, logs.String(), "dry run: pretending to create")
	assert.Contains(t, logs.String(), "dry run: pretending to update")
	assert.Contains(t, logs.String(), "dry run: pretending to delete")
}

func TestClient_BasicAuthHandshake(t *testing.T) {
	t.Parallel()

	rec := &recorder{handler: func(w http.ResponseWriter, r *http.Request, _ []byte) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "legacy-key", user)
		assert.Equal(t, constants.DummyPassword, pass)

		if r.URL.Path == "/users/current.json" {
			_, _ = io.WriteString(w, `{"user":{"id":1,"login":"ann"}}`)
		}
	}}
	c := newTestClient(t, rec, func(config *redmine.Config) {
		config.APIKey = "legacy-key"
		config.ServerVersion = "1.0.1"
	})

	me, err := c.Users().Get(context.Background(), "current")
	require.NoError(t, err)
	assert.Equal(t, "ann", redmine.AsUser(me).Login())

	requests := rec.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, "/", requests[0].Path)
	assert.Equal(t, "/users/current.json", requests[1].Path)
}
