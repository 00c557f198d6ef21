package redmine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CustomFields is a keyed, change-tracking view over the service's
// list-of-records representation of custom fields:
//
//	[{"id": 3, "name": "Severity", "value": "high"}, ...]
//
// Fields are addressed either by id or by name. Each entity owns its own
// overlay; overlays are never shared.
type CustomFields struct {
	fields  []*customField
	byID    map[ID]*customField
	byName  map[string]*customField
	changed bool
}

type customField struct {
	id      ID
	record  map[string]any
	changed bool
}

// NewCustomFields builds an overlay from decoded records. Records without a
// usable id are kept for serialisation but cannot be addressed.
func NewCustomFields(records []map[string]any) *CustomFields {
	cf := &CustomFields{
		fields: make([]*customField, 0, len(records)),
		byID:   make(map[ID]*customField, len(records)),
		byName: make(map[string]*customField, len(records)),
	}

	for _, rec := range records {
		field := &customField{record: make(map[string]any, len(rec))}
		for k, v := range rec {
			field.record[k] = v
		}

		if flag, ok := field.record["changed"].(bool); ok {
			field.changed = flag
			cf.changed = cf.changed || flag
		}

		delete(field.record, "changed")

		if id, ok := IDOf(field.record["id"]); ok {
			field.id = id
			cf.byID[id] = field
		}

		if name, ok := field.record["name"].(string); ok && name != "" {
			cf.byName[name] = field
		}

		cf.fields = append(cf.fields, field)
	}

	return cf
}

// customFieldsFromValue accepts the shapes custom_fields arrive in from a
// decoded body: []any of map[string]any, or []map[string]any.
func customFieldsFromValue(value any) (*CustomFields, bool) {
	records, ok := customFieldRecords(value)
	if !ok {
		return nil, false
	}

	return NewCustomFields(records), true
}

func customFieldRecords(value any) ([]map[string]any, bool) {
	switch v := value.(type) {
	case []map[string]any:
		return v, true
	case []any:
		records := make([]map[string]any, 0, len(v))
		for _, item := range v {
			rec, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}

			records = append(records, rec)
		}

		return records, true
	default:
		return nil, false
	}
}

func (cf *CustomFields) lookup(key any) (*customField, bool) {
	if name, ok := key.(string); ok {
		if field, found := cf.byName[name]; found {
			return field, true
		}
	}

	id, ok := IDOf(key)
	if !ok {
		return nil, false
	}

	field, found := cf.byID[id]

	return field, found
}

// Get returns the value of the field addressed by id or name. The boolean is
// false when no such field exists.
func (cf *CustomFields) Get(key any) (any, bool) {
	field, ok := cf.lookup(key)
	if !ok {
		return nil, false
	}

	return field.record["value"], true
}

// Set stores value under the field addressed by key and marks both the field
// and the overlay as changed.
func (cf *CustomFields) Set(key any, value any) error {
	field, ok := cf.lookup(key)
	if !ok {
		return fmt.Errorf("%w: custom field %v", ErrNoSuchKey, key)
	}

	field.record["value"] = value
	field.changed = true
	cf.changed = true

	return nil
}

// Changed reports whether any field was written since the last clear.
func (cf *CustomFields) Changed() bool {
	return cf.changed
}

// FieldChanged reports whether the addressed field was written since the last clear.
func (cf *CustomFields) FieldChanged(key any) bool {
	field, ok := cf.lookup(key)

	return ok && field.changed
}

// All returns id -> value for every addressable field.
func (cf *CustomFields) All() map[string]any {
	out := make(map[string]any, len(cf.fields))
	for _, field := range cf.fields {
		if field.id == "" {
			continue
		}

		out[string(field.id)] = field.value()
	}

	return out
}

// Changes returns id -> value for the changed fields only and then clears all
// change flags. The result is built before the flags are cleared.
func (cf *CustomFields) Changes() map[string]any {
	out := cf.pending()
	cf.ClearChanges()

	return out
}

func (cf *CustomFields) pending() map[string]any {
	out := make(map[string]any)
	for _, field := range cf.fields {
		if field.changed && field.id != "" {
			out[string(field.id)] = field.value()
		}
	}

	return out
}

// ClearChanges resets the per-field and aggregate flags.
func (cf *CustomFields) ClearChanges() {
	cf.changed = false
	for _, field := range cf.fields {
		field.changed = false
	}
}

// Len returns the number of fields.
func (cf *CustomFields) Len() int {
	return len(cf.fields)
}

// Names returns the field names in service order; unnamed fields are skipped.
func (cf *CustomFields) Names() []string {
	names := make([]string, 0, len(cf.fields))
	for _, field := range cf.fields {
		if name, ok := field.record["name"].(string); ok && name != "" {
			names = append(names, name)
		}
	}

	return names
}

// Records returns a copy of the underlying records without change flags.
func (cf *CustomFields) Records() []map[string]any {
	out := make([]map[string]any, 0, len(cf.fields))
	for _, field := range cf.fields {
		rec := make(map[string]any, len(field.record))
		for k, v := range field.record {
			rec[k] = v
		}

		out = append(out, rec)
	}

	return out
}

// MarshalJSON writes the overlay back in its list-of-records form.
func (cf *CustomFields) MarshalJSON() ([]byte, error) {
	return json.Marshal(cf.Records())
}

// String implements fmt.Stringer.
func (cf *CustomFields) String() string {
	parts := make([]string, 0, len(cf.fields))
	for _, field := range cf.fields {
		parts = append(parts, fmt.Sprintf("%s=%v", field.id, field.value()))
	}

	return "<Custom Fields: " + strings.Join(parts, ", ") + ">"
}

func (f *customField) value() any {
	v, ok := f.record["value"]
	if !ok || v == nil {
		return ""
	}

	return v
}

// snapshotFlags and restoreFlags let Entity.Save roll back a consumed delta
// when the update call fails.
func (cf *CustomFields) snapshotFlags() []bool {
	flags := make([]bool, len(cf.fields))
	for i, field := range cf.fields {
		flags[i] = field.changed
	}

	return flags
}

func (cf *CustomFields) restoreFlags(flags []bool) {
	cf.changed = false
	for i, field := range cf.fields {
		if i < len(flags) {
			field.changed = flags[i]
		}

		cf.changed = cf.changed || field.changed
	}
}
