package redmine

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// DefaultLimit is the page size used when QueryParams.Limit is unset.
const DefaultLimit = 25

// QueryParams holds filter and sort options for Query. Offset is owned by
// the paginator and cannot be set here.
type QueryParams struct {
	// Limit is the page size; DefaultLimit when zero.
	Limit int
	// Sort is passed as "sort", e.g. "updated_on:desc".
	Sort string
	// Include is passed comma-joined as "include".
	Include []string
	// Filters are passed as-is; multiple values are joined with "|".
	Filters map[string][]string
}

// NewQueryParams creates empty query params.
func NewQueryParams() *QueryParams {
	return &QueryParams{
		Filters: make(map[string][]string),
	}
}

// WithLimit sets the page size.
func (q *QueryParams) WithLimit(limit int) *QueryParams {
	q.Limit = limit

	return q
}

// WithSort sets the sort expression.
func (q *QueryParams) WithSort(sort string) *QueryParams {
	q.Sort = sort

	return q
}

// WithInclude adds associations to include.
func (q *QueryParams) WithInclude(include ...string) *QueryParams {
	q.Include = append(q.Include, include...)

	return q
}

// WithFilter adds a filter.
func (q *QueryParams) WithFilter(key string, values ...string) *QueryParams {
	if q.Filters == nil {
		q.Filters = make(map[string][]string)
	}

	q.Filters[key] = append(q.Filters[key], values...)

	return q
}

// PageSize returns Limit or DefaultLimit.
func (q *QueryParams) PageSize() int {
	if q == nil || q.Limit <= 0 {
		return DefaultLimit
	}

	return q.Limit
}

// ToValues converts the params to url.Values without limit or offset.
func (q *QueryParams) ToValues() url.Values {
	values := url.Values{}
	if q == nil {
		return values
	}

	if q.Sort != "" {
		values.Set("sort", q.Sort)
	}

	if len(q.Include) > 0 {
		values.Set("include", strings.Join(q.Include, ","))
	}

	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		if k == "limit" || k == "offset" || len(q.Filters[k]) == 0 {
			continue
		}

		values.Set(k, strings.Join(q.Filters[k], "|"))
	}

	return values
}

func (q *QueryParams) pageValues(offset int) url.Values {
	values := q.ToValues()
	values.Set("limit", strconv.Itoa(q.PageSize()))
	values.Set("offset", strconv.Itoa(offset))

	return values
}
