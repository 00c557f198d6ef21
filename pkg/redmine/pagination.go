package redmine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strconv"
)

// Item pairs an entity with its identifier.
type Item struct {
	ID     ID
	Entity *Entity
}

// Paginator walks a collection one page at a time, fetching lazily. Pages
// are requested at offsets 0, limit, 2*limit, ... and iteration stops when
//
//   - a page comes back empty,
//   - total_count <= offset + items on the current page, or
//   - the response carries no total_count (the current page is treated as
//     the last one).
//
// The first fetch or decode error is sticky: it is returned by every later
// call and no further requests are made. A Paginator is single-use and not
// safe for concurrent use.
type Paginator struct {
	ctx     context.Context //nolint:containedctx // bound to one query
	manager *Manager
	params  *QueryParams
	limit   int
	offset  int
	buffer  []*Entity
	done    bool
	err     error
	fetches int
}

func newPaginator(ctx context.Context, m *Manager, params *QueryParams) *Paginator {
	return &Paginator{
		ctx:     ctx,
		manager: m,
		params:  params,
		limit:   params.PageSize(),
	}
}

// HasNext reports whether Next would return an entity or an error. It may
// fetch the next page.
func (p *Paginator) HasNext() bool {
	if len(p.buffer) == 0 && !p.done && p.err == nil {
		p.fetch()
	}

	return len(p.buffer) > 0 || p.err != nil
}

// Next returns the next entity, ErrNoMoreItems once the collection is
// exhausted, or the sticky error.
func (p *Paginator) Next() (*Entity, error) {
	if !p.HasNext() {
		return nil, ErrNoMoreItems
	}

	if len(p.buffer) == 0 {
		return nil, p.err
	}

	e := p.buffer[0]
	p.buffer = p.buffer[1:]

	return e, nil
}

// NextPage returns the remainder of the current page, fetching a new page
// when the current one is used up.
func (p *Paginator) NextPage() ([]*Entity, error) {
	if !p.HasNext() {
		return nil, ErrNoMoreItems
	}

	if len(p.buffer) == 0 {
		return nil, p.err
	}

	page := p.buffer
	p.buffer = nil

	return page, nil
}

// All drains the paginator into a slice.
func (p *Paginator) All() ([]*Entity, error) {
	var all []*Entity

	for {
		e, err := p.Next()
		if errors.Is(err, ErrNoMoreItems) {
			return all, nil
		}

		if err != nil {
			return nil, err
		}

		all = append(all, e)
	}
}

// ForEach calls fn for every entity, stopping at the first error.
func (p *Paginator) ForEach(fn func(*Entity) error) error {
	for {
		e, err := p.Next()
		if errors.Is(err, ErrNoMoreItems) {
			return nil
		}

		if err != nil {
			return err
		}

		err = fn(e)
		if err != nil {
			return err
		}
	}
}

// Entities returns a range-over-func sequence. A failure is yielded once as
// (nil, err) and ends the sequence.
func (p *Paginator) Entities() iter.Seq2[*Entity, error] {
	return func(yield func(*Entity, error) bool) {
		for {
			e, err := p.Next()
			if errors.Is(err, ErrNoMoreItems) {
				return
			}

			if !yield(e, err) || err != nil {
				return
			}
		}
	}
}

// Items is Entities keyed by identifier.
func (p *Paginator) Items() iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		for e, err := range p.Entities() {
			if err != nil {
				yield(Item{}, err)

				return
			}

			if !yield(Item{ID: e.ID(), Entity: e}, nil) {
				return
			}
		}
	}
}

// Err returns the sticky error, if any.
func (p *Paginator) Err() error {
	return p.err
}

// Offset returns the offset the next page will be requested at.
func (p *Paginator) Offset() int {
	return p.offset
}

// Fetches returns the number of page requests made so far.
func (p *Paginator) Fetches() int {
	return p.fetches
}

func (p *Paginator) fetch() {
	err := p.ctx.Err()
	if err != nil {
		p.err = err

		return
	}

	p.fetches++

	page, err := p.manager.fetchPage(p.ctx, p.params, p.offset)
	if err != nil {
		p.err = err

		return
	}

	p.buffer = page.entities

	switch {
	case len(page.entities) == 0:
		p.done = true
	case !page.hasTotal:
		p.done = true
	case page.total <= p.offset+len(page.entities):
		p.done = true
	default:
		p.offset += p.limit
	}
}

type queryPage struct {
	entities []*Entity
	total    int
	hasTotal bool
}

func (m *Manager) decodePage(body []byte) (*queryPage, error) {
	data, err := decodeObject(body)
	if err != nil {
		return nil, err
	}

	raw, ok := data[m.resource.QueryContainer]
	if !ok {
		return nil, &DecodeError{
			Raw: body,
			Err: fmt.Errorf("%w: %q", ErrMissingContainer, m.resource.QueryContainer),
		}
	}

	list, ok := raw.([]any)
	if !ok && raw != nil {
		return nil, &DecodeError{
			Raw: body,
			Err: fmt.Errorf("%w: %q is not a list", ErrMissingContainer, m.resource.QueryContainer),
		}
	}

	page := &queryPage{entities: make([]*Entity, 0, len(list))}

	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &DecodeError{Raw: body, Err: fmt.Errorf("%s entry is %T, not an object", m.resource.Type, item)}
		}

		page.entities = append(page.entities, m.entityFromMap(obj))
	}

	page.total, page.hasTotal = totalCount(data["total_count"])

	return page, nil
}

func totalCount(value any) (int, bool) {
	switch v := value.(type) {
	case json.Number:
		n, err := strconv.Atoi(v.String())

		return n, err == nil
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)

		return n, err == nil
	default:
		return 0, false
	}
}
