package redmine

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Resource describes one resource type: the key its payloads are wrapped
// under, its endpoint templates, its relationship-shorthand fields, and its
// declared field set. An empty template disables the matching operation.
type Resource struct {
	// Type is the wrapper key used on the wire, e.g. "issue".
	Type string
	// Name is used in error messages; defaults to Type.
	Name string

	// QueryPath is the collection endpoint, e.g. "issues.json".
	QueryPath string
	// QueryContainer is the key the item list is nested under in query responses.
	QueryContainer string
	// ItemPath is a template with a single %s for the identifier, e.g. "issues/%s.json".
	ItemPath string
	// ItemNewPath is the creation endpoint.
	ItemNewPath string

	// RemapToID lists fields sent as "<field>_id" holding a raw identifier.
	RemapToID []string
	// Fields lists the attributes modelled by the typed wrapper; anything
	// else decoded from the service lands in Entity.Extra.
	Fields []string
}

// DisplayName returns Name, falling back to Type.
func (r *Resource) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}

	return r.Type
}

// CanQuery reports whether Query is available.
func (r *Resource) CanQuery() bool {
	return r.QueryPath != "" && r.QueryContainer != ""
}

// CanGet reports whether single-item operations are available.
func (r *Resource) CanGet() bool {
	return r.ItemPath != ""
}

// CanCreate reports whether Create is available.
func (r *Resource) CanCreate() bool {
	return r.ItemNewPath != ""
}

func (r *Resource) itemPath(id ID) string {
	return fmt.Sprintf(r.ItemPath, url.PathEscape(string(id)))
}

func (r *Resource) known(field string) bool {
	for _, f := range r.Fields {
		if f == field {
			return true
		}
	}

	return false
}

// RemapToIDFields rewrites every relationship-shorthand field present in data
// from "<field>" to "<field>_id". A mapping with an "id" key, a Ref, or an
// Identifiable contributes its identifier; anything else is used verbatim.
func (r *Resource) RemapToIDFields(data map[string]any) {
	for _, tag := range r.RemapToID {
		remapTagToID(tag, data)
	}
}

func remapTagToID(tag string, data map[string]any) {
	value, ok := data[tag]
	if !ok {
		return
	}

	data[tag+"_id"] = relationshipID(value)
	delete(data, tag)
}

func relationshipID(value any) any {
	switch v := value.(type) {
	case map[string]any:
		if id, ok := v["id"]; ok {
			return id
		}
	case Ref:
		return v.ID
	case *Ref:
		if v != nil {
			return v.ID
		}
	case Identifiable:
		return v.ID()
	}

	return value
}

// wrap serialises fields as {"<type>": {...}}.
func (r *Resource) wrap(fields map[string]any) ([]byte, error) {
	payload, err := json.Marshal(map[string]any{r.Type: fields})
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", r.Type, err)
	}

	return payload, nil
}

// String implements fmt.Stringer.
func (r *Resource) String() string {
	ops := make([]string, 0, 4)
	if r.CanQuery() {
		ops = append(ops, "query")
	}

	if r.CanGet() {
		ops = append(ops, "get", "update", "delete")
	}

	if r.CanCreate() {
		ops = append(ops, "create")
	}

	return fmt.Sprintf("%s(%s)", r.DisplayName(), strings.Join(ops, ","))
}
