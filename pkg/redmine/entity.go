package redmine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

const (
	fieldID                = "id"
	fieldName              = "name"
	fieldNotes             = "notes"
	fieldCustomFields      = "custom_fields"
	fieldCustomFieldValues = "custom_field_values"
)

// protectedFields cannot be written through Set.
var protectedFields = map[string]struct{}{
	fieldID: {},
}

// ErrInvalidCustomFields is returned when custom_fields is assigned a value
// that is neither an overlay nor a list of records.
var ErrInvalidCustomFields = errors.New("custom_fields must be *CustomFields or a list of records")

// customFieldChange records how custom-field edits reached the entity. It is
// set at the point of assignment so Save never has to probe for a shape.
type customFieldChange int

const (
	// customFieldsUntouched: only edits made through the overlay, if any.
	customFieldsUntouched customFieldChange = iota
	// customFieldsReplaced: a whole overlay was assigned; send every value.
	customFieldsReplaced
	// customFieldsRawList: a raw record list was assigned; send {id: value}.
	customFieldsRawList
)

// Entity is one fetched or created instance of a resource type. It keeps the
// decoded attributes, records every assignment in a change set, and pushes
// only that change set on Save through the update callback it was built with.
//
// An Entity is not safe for concurrent mutation.
type Entity struct {
	resource *Resource
	id       ID
	attrs    map[string]any
	custom   *CustomFields
	changes  ChangeSet
	customIn customFieldChange
	update   UpdateFunc
}

// NewEntity parses a raw JSON payload into an Entity. A payload that is not
// a JSON object yields a *DecodeError carrying the raw bytes.
func NewEntity(res *Resource, payload []byte, update UpdateFunc) (*Entity, error) {
	data, err := decodeObject(payload)
	if err != nil {
		return nil, err
	}

	return NewEntityFromMap(res, data, update), nil
}

// NewEntityFromMap builds an Entity from an already decoded body. Both
// {"<type>": {...}} and bare {...} shapes are accepted.
func NewEntityFromMap(res *Resource, data map[string]any, update UpdateFunc) *Entity {
	if inner, ok := data[res.Type].(map[string]any); ok {
		data = inner
	}

	e := &Entity{
		resource: res,
		attrs:    make(map[string]any, len(data)),
		update:   update,
	}

	for k, v := range data {
		e.attrs[k] = v
	}

	if id, ok := IDOf(e.attrs[fieldID]); ok {
		e.id = id
	}

	if raw, ok := e.attrs[fieldCustomFields]; ok {
		if overlay, ok := customFieldsFromValue(raw); ok {
			e.custom = overlay
			e.attrs[fieldCustomFields] = overlay
		}
	}

	// Tracking starts only once the decoded state is in place.
	e.changes = ChangeSet{}

	return e
}

func decodeObject(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var data map[string]any

	err := dec.Decode(&data)
	if err != nil {
		return nil, &DecodeError{Raw: payload, Err: err}
	}

	if data == nil {
		return nil, &DecodeError{Raw: payload}
	}

	return data, nil
}

// ID returns the service-assigned identifier. There is no setter.
func (e *Entity) ID() ID {
	return e.id
}

// Kind returns the resource type name, e.g. "issue".
func (e *Entity) Kind() string {
	return e.resource.Type
}

// Resource returns the resource descriptor the entity was built for.
func (e *Entity) Resource() *Resource {
	return e.resource
}

// Get returns the live value of an attribute.
func (e *Entity) Get(name string) (any, bool) {
	v, ok := e.attrs[name]

	return v, ok
}

// GetString returns a string attribute, or "" when absent or not a string.
func (e *Entity) GetString(name string) string {
	switch v := e.attrs[name].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// GetInt returns an integer attribute.
func (e *Entity) GetInt(name string) (int, bool) {
	switch v := e.attrs[name].(type) {
	case json.Number:
		n, err := strconv.Atoi(v.String())

		return n, err == nil
	case int:
		return v, true
	case float64:
		return int(v), v == float64(int(v))
	case string:
		n, err := strconv.Atoi(v)

		return n, err == nil
	default:
		return 0, false
	}
}

// GetBool returns a boolean attribute.
func (e *Entity) GetBool(name string) bool {
	b, _ := e.attrs[name].(bool)

	return b
}

// GetRef returns a relationship-shorthand attribute such as "status".
func (e *Entity) GetRef(name string) (Ref, bool) {
	switch v := e.attrs[name].(type) {
	case map[string]any:
		id, ok := IDOf(v[fieldID])
		if !ok {
			return Ref{}, false
		}

		n, _ := v[fieldName].(string)

		return Ref{ID: id, Name: n}, true
	case Ref:
		return v, true
	case *Ref:
		if v == nil {
			return Ref{}, false
		}

		return *v, true
	case Identifiable:
		return Ref{ID: v.ID()}, true
	default:
		if id, ok := IDOf(v); ok {
			return Ref{ID: id}, true
		}

		return Ref{}, false
	}
}

// Set assigns an attribute and records it in the change set. Assigning a
// value equal to the current one is still recorded. Protected fields are
// rejected before anything is recorded.
func (e *Entity) Set(name string, value any) error {
	if _, protected := protectedFields[name]; protected {
		return fmt.Errorf("%w: can't set %s on %s", ErrProtectedField, name, e.resource.Type)
	}

	if name == fieldCustomFields {
		return e.setCustomFields(value)
	}

	e.changes[name] = value
	e.attrs[name] = value

	return nil
}

func (e *Entity) setCustomFields(value any) error {
	switch v := value.(type) {
	case *CustomFields:
		if v == nil {
			return ErrInvalidCustomFields
		}

		// Copy so the overlay is never shared with another entity.
		e.custom = NewCustomFields(v.Records())
		e.custom.ClearChanges()
		e.customIn = customFieldsReplaced
		e.changes[fieldCustomFields] = e.custom
		e.attrs[fieldCustomFields] = e.custom
	default:
		records, ok := customFieldRecords(value)
		if !ok {
			return ErrInvalidCustomFields
		}

		e.custom = NewCustomFields(records)
		e.custom.ClearChanges()
		e.customIn = customFieldsRawList
		e.changes[fieldCustomFields] = records
		e.attrs[fieldCustomFields] = e.custom
	}

	return nil
}

// CustomFields returns the entity's custom-field overlay, or nil when the
// service sent none.
func (e *Entity) CustomFields() *CustomFields {
	return e.custom
}

// SetCustomField writes one custom field through the overlay.
func (e *Entity) SetCustomField(key any, value any) error {
	if e.custom == nil {
		return fmt.Errorf("%w: %s has no custom fields", ErrNoSuchKey, e.resource.Type)
	}

	return e.custom.Set(key, value)
}

// Changes returns a copy of the pending change set, not including
// overlay-only custom-field edits.
func (e *Entity) Changes() ChangeSet {
	return e.changes.Clone()
}

// Dirty reports whether Save would issue an update.
func (e *Entity) Dirty() bool {
	return len(e.changes) > 0 || (e.custom != nil && e.custom.Changed())
}

// Attributes returns a shallow copy of the live attribute bag.
func (e *Entity) Attributes() map[string]any {
	out := make(map[string]any, len(e.attrs))
	for k, v := range e.attrs {
		out[k] = v
	}

	return out
}

// Extra returns the attributes outside the resource's declared field set.
func (e *Entity) Extra() map[string]any {
	out := make(map[string]any)
	for k, v := range e.attrs {
		if k == fieldID || k == fieldCustomFields || e.resource.known(k) {
			continue
		}

		out[k] = v
	}

	return out
}

// Keys returns the attribute names in sorted order.
func (e *Entity) Keys() []string {
	keys := make([]string, 0, len(e.attrs))
	for k := range e.attrs {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Decode copies the attribute bag into v through a JSON round trip.
func (e *Entity) Decode(v any) error {
	raw, err := json.Marshal(e.attrs)
	if err != nil {
		return fmt.Errorf("encoding %s attributes: %w", e.resource.Type, err)
	}

	err = json.Unmarshal(raw, v)
	if err != nil {
		return fmt.Errorf("decoding %s attributes: %w", e.resource.Type, err)
	}

	return nil
}

// MarshalJSON writes the live attributes.
func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.attrs)
}

// String returns the entity's name when it has one.
func (e *Entity) String() string {
	if name, ok := e.attrs[fieldName].(string); ok && name != "" {
		return name
	}

	return e.GoString()
}

// GoString implements fmt.GoStringer.
func (e *Entity) GoString() string {
	return fmt.Sprintf("<Redmine %s #%s>", e.resource.Type, e.id)
}

// Save pushes the pending changes through the update callback. notes, when
// non-empty, is sent as a journal comment alongside the changes.
//
// With nothing to send Save returns nil without calling out. Non-empty notes
// count as something to send: Save(ctx, "text") on an untouched entity still
// issues one update carrying only the journal comment. On failure the
// callback's error is returned unchanged and the entity keeps its change set
// and custom-field flags exactly as they were; on success the change set is
// cleared and attributes are left as assigned.
func (e *Entity) Save(ctx context.Context, notes string) error {
	var flags []bool
	if e.custom != nil {
		flags = e.custom.snapshotFlags()
	}

	outgoing := e.outgoingChanges()
	if notes != "" {
		outgoing[fieldNotes] = notes
	}

	if len(outgoing) == 0 {
		return nil
	}

	if e.update == nil {
		if e.custom != nil {
			e.custom.restoreFlags(flags)
		}

		return unsupported("save", e.resource.DisplayName())
	}

	err := e.update(ctx, e.id, outgoing)
	if err != nil {
		if e.custom != nil {
			e.custom.restoreFlags(flags)
		}

		return err
	}

	clear(e.changes)
	e.customIn = customFieldsUntouched

	if e.custom != nil {
		e.custom.ClearChanges()
	}

	return nil
}

// outgoingChanges builds the payload for the next update from a copy of the
// change set: custom fields folded into custom_field_values, relationship
// shorthand remapped to *_id. Overlay deltas are consumed here.
func (e *Entity) outgoingChanges() ChangeSet {
	out := e.changes.Clone()

	switch e.customIn {
	case customFieldsReplaced:
		delete(out, fieldCustomFields)

		out[fieldCustomFieldValues] = e.custom.All()
	case customFieldsRawList:
		// The overlay was rebuilt from the list, so it carries the list's
		// values plus any SetCustomField made since.
		delete(out, fieldCustomFields)

		out[fieldCustomFieldValues] = e.custom.All()
	case customFieldsUntouched:
		if e.custom != nil && e.custom.Changed() {
			out[fieldCustomFieldValues] = e.custom.Changes()
		}
	}

	e.resource.RemapToIDFields(out)

	return out
}
