package redmine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/redmine-ws/pkg/redmine"
)

// issuesPage renders a query page with ids from..to inclusive. A negative
// total omits total_count.
func issuesPage(from, to, total int) string {
	items := make([]string, 0, to-from+1)
	for id := from; id <= to; id++ {
		items = append(items, fmt.Sprintf(`{"id":%d,"subject":"issue %d"}`, id, id))
	}

	body := `{"issues":[` + strings.Join(items, ",") + `]`
	if total >= 0 {
		body += fmt.Sprintf(`,"total_count":%d`, total)
	}

	return body + "}"
}

func ids(entities []*redmine.Entity) []redmine.ID {
	out := make([]redmine.ID, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.ID())
	}

	return out
}

func offsets(calls []call) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Query.Get("offset"))
	}

	return out
}

func TestPaginator_WalksAllPages(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().
		page("issues.json", issuesPage(1, 2, 5)).
		page("issues.json", issuesPage(3, 4, 5)).
		page("issues.json", issuesPage(5, 5, 5))
	m := redmine.NewManager(ft, redmine.IssueResource)

	p, err := m.Query(context.Background(), redmine.NewQueryParams().WithLimit(2))
	require.NoError(t, err)

	// Nothing is fetched until an item is asked for.
	assert.Empty(t, ft.Calls())

	all, err := p.All()
	require.NoError(t, err)
	assert.Equal(t, []redmine.ID{"1", "2", "3", "4", "5"}, ids(all))
	assert.Equal(t, 3, p.Fetches())
	assert.Equal(t, []string{"0", "2", "4"}, offsets(ft.Calls()))

	for _, c := range ft.Calls() {
		assert.Equal(t, "2", c.Query.Get("limit"))
	}

	_, err = p.Next()
	require.ErrorIs(t, err, redmine.ErrNoMoreItems)
	assert.Equal(t, 3, p.Fetches())
}

func TestPaginator_DefaultLimit(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().page("issues.json", issuesPage(1, 3, 3))
	m := redmine.NewManager(ft, redmine.IssueResource)

	list, err := m.QueryToList(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	calls := ft.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "25", calls[0].Query.Get("limit"))
	assert.Equal(t, "0", calls[0].Query.Get("offset"))
}

func TestPaginator_StopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().
		page("issues.json", issuesPage(1, 2, 10)).
		page("issues.json", `{"issues":[],"total_count":10}`)
	m := redmine.NewManager(ft, redmine.IssueResource)

	list, err := m.QueryToList(context.Background(), redmine.NewQueryParams().WithLimit(2))
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Len(t, ft.Calls(), 2)
}

func TestPaginator_MissingTotalReadsOnePage(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().
		page("issues.json", issuesPage(1, 2, -1)).
		page("issues.json", issuesPage(3, 4, -1))
	m := redmine.NewManager(ft, redmine.IssueResource)

	list, err := m.QueryToList(context.Background(), redmine.NewQueryParams().WithLimit(2))
	require.NoError(t, err)
	assert.Equal(t, []redmine.ID{"1", "2"}, ids(list))
	assert.Len(t, ft.Calls(), 1)
}

func TestPaginator_TotalAsString(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().
		page("issues.json", `{"issues":[{"id":1}],"total_count":"2"}`).
		page("issues.json", `{"issues":[{"id":2}],"total_count":"2"}`)
	m := redmine.NewManager(ft, redmine.IssueResource)

	list, err := m.QueryToList(context.Background(), redmine.NewQueryParams().WithLimit(1))
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestPaginator_StopsWhenConsumerStops(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().
		page("issues.json", issuesPage(1, 2, 100)).
		page("issues.json", issuesPage(3, 4, 100))
	m := redmine.NewManager(ft, redmine.IssueResource)

	p, err := m.Query(context.Background(), redmine.NewQueryParams().WithLimit(2))
	require.NoError(t, err)

	var seen []redmine.ID

	for e, err := range p.Entities() {
		require.NoError(t, err)

		seen = append(seen, e.ID())
		if len(seen) == 3 {
			break
		}
	}

	assert.Equal(t, []redmine.ID{"1", "2", "3"}, seen)
	assert.Equal(t, 2, p.Fetches())
	assert.Equal(t, 4, p.Offset())
}

func TestPaginator_DecodeErrorIsSticky(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().
		page("issues.json", issuesPage(1, 2, 6)).
		page("issues.json", "<html>proxy error</html>")
	m := redmine.NewManager(ft, redmine.IssueResource)

	p, err := m.Query(context.Background(), redmine.NewQueryParams().WithLimit(2))
	require.NoError(t, err)

	page, err := p.NextPage()
	require.NoError(t, err)
	assert.Len(t, page, 2)

	_, err = p.Next()
	require.ErrorIs(t, err, redmine.ErrDecode)

	_, err = p.Next()
	require.ErrorIs(t, err, redmine.ErrDecode)
	require.ErrorIs(t, p.Err(), redmine.ErrDecode)

	assert.True(t, p.HasNext())
	assert.Equal(t, 2, p.Fetches())
}

func TestPaginator_MissingContainer(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().page("issues.json", `{"projects":[],"total_count":0}`)
	m := redmine.NewManager(ft, redmine.IssueResource)

	_, err := m.QueryToList(context.Background(), nil)
	require.ErrorIs(t, err, redmine.ErrMissingContainer)
	require.ErrorIs(t, err, redmine.ErrDecode)
}

func TestPaginator_NonObjectItem(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().page("issues.json", `{"issues":[1,2],"total_count":2}`)
	m := redmine.NewManager(ft, redmine.IssueResource)

	_, err := m.QueryToList(context.Background(), nil)
	require.ErrorIs(t, err, redmine.ErrDecode)
}

func TestPaginator_TransportErrorIsSticky(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().fail("GET", "issues.json", errBoom)
	m := redmine.NewManager(ft, redmine.IssueResource)

	p, err := m.Query(context.Background(), nil)
	require.NoError(t, err)

	err = p.ForEach(func(*redmine.Entity) error { return nil })
	require.ErrorIs(t, err, errBoom)

	_, err = p.Next()
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, p.Fetches())
}

func TestPaginator_CancelledContext(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().page("issues.json", issuesPage(1, 1, 1))
	m := redmine.NewManager(ft, redmine.IssueResource)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := m.Query(ctx, nil)
	require.NoError(t, err)

	_, err = p.Next()
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ft.Calls())
}

func TestPaginator_ForEachStopsOnCallbackError(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().page("issues.json", issuesPage(1, 3, 3))
	m := redmine.NewManager(ft, redmine.IssueResource)

	p, err := m.Query(context.Background(), nil)
	require.NoError(t, err)

	count := 0
	err = p.ForEach(func(*redmine.Entity) error {
		count++
		if count == 2 {
			return errBoom
		}

		return nil
	})
	require.True(t, errors.Is(err, errBoom))
	assert.Equal(t, 2, count)
}

func TestManager_ItemsAndQueryToMap(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().page("issues.json", issuesPage(1, 3, 3))
	m := redmine.NewManager(ft, redmine.IssueResource)

	var got []redmine.ID

	for item, err := range m.Items(context.Background(), nil) {
		require.NoError(t, err)
		assert.Equal(t, item.ID, item.Entity.ID())

		got = append(got, item.ID)
	}

	assert.Equal(t, []redmine.ID{"1", "2", "3"}, got)

	ft2 := newFakeTransport().page("issues.json", issuesPage(1, 3, 3))
	byID, err := redmine.NewManager(ft2, redmine.IssueResource).QueryToMap(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, byID, 3)
	assert.Equal(t, "issue 2", byID["2"].GetString("subject"))
}

func TestPaginator_EntitiesSaveThroughManager(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().page("issues.json", issuesPage(1, 1, 1))
	m := redmine.NewManager(ft, redmine.IssueResource)

	list, err := m.QueryToList(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, list[0].Set("subject", "changed"))
	require.NoError(t, list[0].Save(context.Background(), ""))

	calls := ft.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "PUT", calls[1].Method)
	assert.Equal(t, "issues/1.json", calls[1].Path)
}

func TestPaginator_PassesFilters(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport().page("issues.json", issuesPage(1, 1, 1))
	m := redmine.NewManager(ft, redmine.IssueResource)

	params := redmine.NewQueryParams().
		WithFilter("project_id", "3").
		WithFilter("status_id", "1", "2").
		WithSort("updated_on:desc")

	_, err := m.QueryToList(context.Background(), params)
	require.NoError(t, err)

	q := ft.Calls()[0].Query
	assert.Equal(t, "3", q.Get("project_id"))
	assert.Equal(t, "1|2", q.Get("status_id"))
	assert.Equal(t, "updated_on:desc", q.Get("sort"))
}
