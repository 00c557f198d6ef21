package redmine

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("redmine-ws/manager")

// Manager is the gateway for one resource type: it builds endpoint paths,
// wraps payloads, and turns responses into Entities bound back to it for
// Save.
type Manager struct {
	transport Transport
	resource  *Resource
	publisher ChangePublisher
	logger    Logger
	tracer    trace.Tracer
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPublisher sends a ChangeEvent after every accepted write.
func WithPublisher(p ChangePublisher) ManagerOption {
	return func(m *Manager) {
		if p != nil {
			m.publisher = p
		}
	}
}

// WithManagerLogger sets the logger.
func WithManagerLogger(l Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) ManagerOption {
	return func(m *Manager) {
		if t != nil {
			m.tracer = t
		}
	}
}

// NewManager creates a Manager for res on top of t.
func NewManager(t Transport, res *Resource, opts ...ManagerOption) *Manager {
	m := &Manager{
		transport: t,
		resource:  res,
		logger:    NoopLogger{},
		tracer:    tracer,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Resource returns the managed resource descriptor.
func (m *Manager) Resource() *Resource {
	return m.resource
}

// New builds a local, unsaved Entity from fields. Its Save issues an update
// against whatever id the fields carry.
func (m *Manager) New(fields Fields) *Entity {
	return m.entityFromMap(fields)
}

// Get fetches a single entity. A missing entity surfaces as a *ResponseError
// matching ErrNotFound; use Lookup for the keyed-lookup form.
func (m *Manager) Get(ctx context.Context, id ID) (e *Entity, err error) {
	if !m.resource.CanGet() {
		return nil, unsupported("get", m.resource.DisplayName())
	}

	if id == "" {
		return nil, fmt.Errorf("%w: empty %s id", ErrInvalidID, m.resource.Type)
	}

	ctx, span := m.start(ctx, "redmine.get", attribute.String("redmine.id", string(id)))
	defer func() { endSpan(span, err) }()

	body, err := m.transport.Fetch(ctx, m.resource.itemPath(id), nil)
	if err != nil {
		return nil, fmt.Errorf("getting %s %s: %w", m.resource.Type, id, err)
	}

	return m.entity(body)
}

// Lookup is Get with a not-found response reported as a *KeyError.
func (m *Manager) Lookup(ctx context.Context, id ID) (*Entity, error) {
	e, err := m.Get(ctx, id)
	if err != nil && IsNotFound(err) {
		return nil, &KeyError{Kind: m.resource.Type, ID: id, Err: err}
	}

	return e, err
}

// Create sends fields as a new entity and returns what the service stored.
// Relationship shorthand is remapped on a copy; fields is not modified.
func (m *Manager) Create(ctx context.Context, fields Fields) (e *Entity, err error) {
	if !m.resource.CanCreate() {
		return nil, unsupported("create", m.resource.DisplayName())
	}

	ctx, span := m.start(ctx, "redmine.create")
	defer func() { endSpan(span, err) }()

	data := make(map[string]any, len(fields))
	for k, v := range fields {
		data[k] = v
	}

	m.resource.RemapToIDFields(data)

	payload, err := m.resource.wrap(data)
	if err != nil {
		return nil, err
	}

	body, err := m.transport.Create(ctx, m.resource.ItemNewPath, payload)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", m.resource.Type, err)
	}

	e, err = m.entity(body)
	if err != nil {
		return nil, err
	}

	m.publish(ctx, OperationCreate, e.ID(), ChangeSet(data))

	return e, nil
}

// Update pushes changes for id. The response body is ignored. This is the
// callback every Entity built by this Manager saves through.
func (m *Manager) Update(ctx context.Context, id ID, changes ChangeSet) (err error) {
	if !m.resource.CanGet() {
		return unsupported("update", m.resource.DisplayName())
	}

	ctx, span := m.start(ctx, "redmine.update",
		attribute.String("redmine.id", string(id)),
		attribute.Int("redmine.changes", len(changes)),
	)
	defer func() { endSpan(span, err) }()

	payload, err := m.resource.wrap(changes)
	if err != nil {
		return err
	}

	err = m.transport.Replace(ctx, m.resource.itemPath(id), payload)
	if err != nil {
		return fmt.Errorf("updating %s %s: %w", m.resource.Type, id, err)
	}

	m.publish(ctx, OperationUpdate, id, changes.Clone())

	return nil
}

// Delete removes an entity.
func (m *Manager) Delete(ctx context.Context, id ID) (err error) {
	if !m.resource.CanGet() {
		return unsupported("delete", m.resource.DisplayName())
	}

	ctx, span := m.start(ctx, "redmine.delete", attribute.String("redmine.id", string(id)))
	defer func() { endSpan(span, err) }()

	err = m.transport.Remove(ctx, m.resource.itemPath(id))
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", m.resource.Type, id, err)
	}

	m.publish(ctx, OperationDelete, id, nil)

	return nil
}

// Query returns a lazy Paginator over the collection. No request is made
// until the first item is asked for. params may be nil.
func (m *Manager) Query(ctx context.Context, params *QueryParams) (*Paginator, error) {
	if !m.resource.CanQuery() {
		return nil, unsupported("query", m.resource.DisplayName())
	}

	if params == nil {
		params = NewQueryParams()
	}

	return newPaginator(ctx, m, params), nil
}

// Items is Query exposed as (id, entity) pairs.
func (m *Manager) Items(ctx context.Context, params *QueryParams) iter.Seq2[Item, error] {
	p, err := m.Query(ctx, params)
	if err != nil {
		return func(yield func(Item, error) bool) {
			yield(Item{}, err)
		}
	}

	return p.Items()
}

// QueryToList drains a query into a slice.
func (m *Manager) QueryToList(ctx context.Context, params *QueryParams) ([]*Entity, error) {
	p, err := m.Query(ctx, params)
	if err != nil {
		return nil, err
	}

	return p.All()
}

// QueryToMap drains a query into a map keyed by identifier. A later entity
// with the same identifier replaces an earlier one.
func (m *Manager) QueryToMap(ctx context.Context, params *QueryParams) (map[ID]*Entity, error) {
	p, err := m.Query(ctx, params)
	if err != nil {
		return nil, err
	}

	out := make(map[ID]*Entity)

	err = p.ForEach(func(e *Entity) error {
		out[e.ID()] = e

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (m *Manager) fetchPage(ctx context.Context, params *QueryParams, offset int) (page *queryPage, err error) {
	ctx, span := m.start(ctx, "redmine.query.page",
		attribute.Int("redmine.offset", offset),
		attribute.Int("redmine.limit", params.PageSize()),
	)
	defer func() { endSpan(span, err) }()

	body, err := m.transport.Fetch(ctx, m.resource.QueryPath, params.pageValues(offset))
	if err != nil {
		return nil, fmt.Errorf("querying %s at offset %d: %w", m.resource.QueryPath, offset, err)
	}

	return m.decodePage(body)
}

func (m *Manager) entity(body []byte) (*Entity, error) {
	data, err := decodeObject(body)
	if err != nil {
		return nil, err
	}

	return m.entityFromMap(data), nil
}

func (m *Manager) entityFromMap(data map[string]any) *Entity {
	return NewEntityFromMap(m.resource, data, m.Update)
}

func (m *Manager) publish(ctx context.Context, op string, id ID, changes ChangeSet) {
	if m.publisher == nil {
		return
	}

	if dr, ok := m.transport.(DryRunner); ok && dr.DryRun() {
		return
	}

	event := ChangeEvent{
		EventID:   uuid.NewString(),
		Resource:  m.resource.Type,
		Operation: op,
		ID:        id,
		Changes:   changes,
		Time:      time.Now().UTC(),
	}

	err := m.publisher.Publish(ctx, event)
	if err != nil {
		m.logger.Warn("publishing change event failed", map[string]interface{}{
			"resource":  m.resource.Type,
			"operation": op,
			"id":        string(id),
			"error":     err.Error(),
		})
	}
}

func (m *Manager) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("redmine.resource", m.resource.Type))

	return m.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}
