package redmine_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/redmine-ws/pkg/redmine"
)

func notFound(path string) error {
	return &redmine.ResponseError{StatusCode: http.StatusNotFound, Method: "GET", Path: path}
}

func TestManager_Get(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().body("GET", "issues/42.json", issuePayload)
	m := redmine.NewManager(ft, redmine.IssueResource)

	e, err := m.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, redmine.ID("42"), e.ID())
	assert.Equal(t, "Printer on fire", redmine.AsIssue(e).Subject())

	calls := ft.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "issues/42.json", calls[0].Path)
}

func TestManager_GetEscapesID(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().body("GET", "projects/a%2Fb.json", `{"project":{"id":1}}`)
	m := redmine.NewManager(ft, redmine.ProjectResource)

	_, err := m.Get(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "projects/a%2Fb.json", ft.Calls()[0].Path)
}

func TestManager_GetEmptyID(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	m := redmine.NewManager(ft, redmine.IssueResource)

	_, err := m.Get(context.Background(), "")
	require.ErrorIs(t, err, redmine.ErrInvalidID)
	assert.Empty(t, ft.Calls())
}

func TestManager_LookupNotFound(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().fail("GET", "issues/9.json", notFound("issues/9.json"))
	m := redmine.NewManager(ft, redmine.IssueResource)

	_, err := m.Lookup(context.Background(), "9")
	require.Error(t, err)

	var keyErr *redmine.KeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, redmine.ID("9"), keyErr.ID)
	assert.Equal(t, "issue", keyErr.Kind)
	require.ErrorIs(t, err, redmine.ErrNoSuchKey)
	assert.True(t, redmine.IsNotFound(err))

	// Get reports the same miss as a plain response error.
	_, err = m.Get(context.Background(), "9")
	require.ErrorIs(t, err, redmine.ErrNotFound)
	require.NotErrorIs(t, err, redmine.ErrNoSuchKey)
}

func TestManager_LookupOtherStatusPassesThrough(t *testing.T) {
	t.Parallel()

	serverErr := &redmine.ResponseError{StatusCode: http.StatusInternalServerError}
	ft := newFakeTransport().fail("GET", "issues/9.json", serverErr)
	m := redmine.NewManager(ft, redmine.IssueResource)

	_, err := m.Lookup(context.Background(), "9")
	require.Error(t, err)
	require.NotErrorIs(t, err, redmine.ErrNoSuchKey)
	assert.Equal(t, http.StatusInternalServerError, redmine.StatusCode(err))
}

func TestManager_GetDecodeError(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().body("GET", "issues/1.json", "Server exploded")
	m := redmine.NewManager(ft, redmine.IssueResource)

	_, err := m.Get(context.Background(), "1")
	require.ErrorIs(t, err, redmine.ErrDecode)

	var decodeErr *redmine.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "Server exploded", string(decodeErr.Raw))
}

func TestManager_Create(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().body("POST", "issues.json", `{"issue":{"id":100,"subject":"New one","project":{"id":3}}}`)
	pub := &recordingPublisher{}
	m := redmine.NewManager(ft, redmine.IssueResource, redmine.WithPublisher(pub))

	fields := redmine.Fields{
		"subject": "New one",
		"project": map[string]any{"id": 3, "name": "Ops"},
		"tracker": redmine.Ref{ID: "2"},
	}

	e, err := m.Create(context.Background(), fields)
	require.NoError(t, err)
	assert.Equal(t, redmine.ID("100"), e.ID())

	// The caller's fields are untouched.
	assert.Contains(t, fields, "project")
	assert.NotContains(t, fields, "project_id")

	calls := ft.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "POST", calls[0].Method)
	assert.JSONEq(t, `{"issue":{"subject":"New one","project_id":3,"tracker_id":2}}`, string(calls[0].Payload))

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, redmine.OperationCreate, events[0].Operation)
	assert.Equal(t, redmine.ID("100"), events[0].ID)
	assert.Equal(t, "issue", events[0].Resource)

	// The created entity saves through the same manager.
	require.NoError(t, e.Set("subject", "Renamed"))
	require.NoError(t, e.Save(context.Background(), ""))

	calls = ft.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "PUT", calls[1].Method)
	assert.Equal(t, "issues/100.json", calls[1].Path)
	assert.JSONEq(t, `{"issue":{"subject":"Renamed"}}`, string(calls[1].Payload))
}

func TestManager_UnsupportedOperations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	news := redmine.NewManager(newFakeTransport(), redmine.NewsResource)
	versions := redmine.NewManager(newFakeTransport(), redmine.VersionResource)

	_, err := news.Get(ctx, "1")
	require.ErrorIs(t, err, redmine.ErrUnsupportedOperation)

	_, err = news.Create(ctx, redmine.Fields{"title": "x"})
	require.ErrorIs(t, err, redmine.ErrUnsupportedOperation)

	err = news.Update(ctx, "1", redmine.ChangeSet{"title": "x"})
	require.ErrorIs(t, err, redmine.ErrUnsupportedOperation)

	err = news.Delete(ctx, "1")
	require.ErrorIs(t, err, redmine.ErrUnsupportedOperation)

	_, err = versions.Query(ctx, nil)
	require.ErrorIs(t, err, redmine.ErrUnsupportedOperation)
	assert.True(t, redmine.IsUnsupported(err))

	_, err = versions.QueryToList(ctx, nil)
	require.ErrorIs(t, err, redmine.ErrUnsupportedOperation)

	for _, err := range versions.Items(ctx, nil) {
		require.ErrorIs(t, err, redmine.ErrUnsupportedOperation)
	}
}

func TestManager_UnsupportedMakesNoRequest(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	m := redmine.NewManager(ft, redmine.MembershipResource)

	_, err := m.Create(context.Background(), redmine.Fields{"user": 1})
	require.ErrorIs(t, err, redmine.ErrUnsupportedOperation)
	assert.Empty(t, ft.Calls())
}

func TestManager_Delete(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	pub := &recordingPublisher{}
	m := redmine.NewManager(ft, redmine.TimeEntryResource, redmine.WithPublisher(pub))

	require.NoError(t, m.Delete(context.Background(), "5"))

	calls := ft.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "DELETE", calls[0].Method)
	assert.Equal(t, "time_entries/5.json", calls[0].Path)

	require.Len(t, pub.Events(), 1)
	assert.Equal(t, redmine.OperationDelete, pub.Events()[0].Operation)
	assert.Len(t, pub.Events()[0].EventID, 36)
}

func TestManager_DeleteFailureWrapsError(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().fail("DELETE", "issues/5.json", notFound("issues/5.json"))
	pub := &recordingPublisher{}
	m := redmine.NewManager(ft, redmine.IssueResource, redmine.WithPublisher(pub))

	err := m.Delete(context.Background(), "5")
	require.ErrorIs(t, err, redmine.ErrNotFound)
	assert.Empty(t, pub.Events())
}

func TestManager_UpdateFailureKeepsEntityDirty(t *testing.T) {
	t.Parallel()

	unprocessable := &redmine.ResponseError{
		StatusCode: http.StatusUnprocessableEntity,
		Messages:   []string{"Subject cannot be blank"},
	}
	ft := newFakeTransport().
		body("GET", "issues/42.json", issuePayload).
		fail("PUT", "issues/42.json", unprocessable)
	m := redmine.NewManager(ft, redmine.IssueResource)

	e, err := m.Get(context.Background(), "42")
	require.NoError(t, err)

	require.NoError(t, e.Set("subject", ""))

	err = e.Save(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, redmine.StatusCode(err))
	assert.Contains(t, err.Error(), "Subject cannot be blank")
	assert.True(t, e.Dirty())
}

func TestManager_PublishSkippedInDryRun(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	ft.dryRun = true

	pub := &recordingPublisher{}
	m := redmine.NewManager(ft, redmine.IssueResource, redmine.WithPublisher(pub))

	_, err := m.Create(context.Background(), redmine.Fields{"subject": "x"})
	require.NoError(t, err)
	assert.Empty(t, pub.Events())
}

func TestManager_PublishFailureIsLogged(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	pub := &recordingPublisher{err: errBoom}
	logger := &recordingLogger{}
	m := redmine.NewManager(ft, redmine.IssueResource,
		redmine.WithPublisher(pub), redmine.WithManagerLogger(logger))

	require.NoError(t, m.Update(context.Background(), "1", redmine.ChangeSet{"subject": "x"}))
	assert.Equal(t, []string{"publishing change event failed"}, logger.warns)
}

func TestManager_NewEntitySavesThroughManager(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	m := redmine.NewManager(ft, redmine.ProjectResource)

	e := m.New(redmine.Fields{"id": 7, "name": "Ops"})
	assert.Equal(t, redmine.ID("7"), e.ID())
	assert.False(t, e.Dirty())

	require.NoError(t, redmine.AsProject(e).SetParent("2"))
	require.NoError(t, e.Save(context.Background(), ""))

	calls := ft.Calls()
	require.Len(t, calls, 1)

	var sent map[string]map[string]any
	require.NoError(t, json.Unmarshal(calls[0].Payload, &sent))
	assert.Equal(t, map[string]any{"parent_id": float64(2)}, sent["project"])
}
