package redmine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ID is the opaque identifier assigned to an entity by the service.
type ID string

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// Int returns the identifier as an integer when it is numeric.
func (id ID) Int() (int, error) {
	n, err := strconv.Atoi(string(id))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, string(id))
	}

	return n, nil
}

// MarshalJSON writes numeric identifiers as JSON numbers.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}

	return json.Marshal(string(id))
}

// IDOf converts a decoded JSON value into an ID.
func IDOf(value any) (ID, bool) {
	switch v := value.(type) {
	case ID:
		return v, v != ""
	case string:
		return ID(v), v != ""
	case json.Number:
		return ID(v.String()), true
	case int:
		return ID(strconv.Itoa(v)), true
	case int32:
		return ID(strconv.FormatInt(int64(v), 10)), true
	case int64:
		return ID(strconv.FormatInt(v, 10)), true
	case uint:
		return ID(strconv.FormatUint(uint64(v), 10)), true
	case uint64:
		return ID(strconv.FormatUint(v, 10)), true
	case float64:
		if v != math.Trunc(v) {
			return "", false
		}

		return ID(strconv.FormatFloat(v, 'f', -1, 64)), true
	default:
		return "", false
	}
}

// Identifiable is anything exposing a service identifier, typically an Entity.
type Identifiable interface {
	ID() ID
}

// Ref is the relationship shorthand the service nests inside an entity, e.g.
// "status": {"id": 1, "name": "New"}.
type Ref struct {
	ID   ID     `json:"id"             yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// ChangeSet maps field names to the values to be sent on the next save.
type ChangeSet map[string]any

// Clone returns a shallow copy.
func (c ChangeSet) Clone() ChangeSet {
	out := make(ChangeSet, len(c))
	for k, v := range c {
		out[k] = v
	}

	return out
}

// Fields is a free-form field set used to create entities.
type Fields map[string]any

// UpdateFunc pushes a change set for the entity with the given id. The
// collection manager binds its Update method into every entity it builds.
type UpdateFunc func(ctx context.Context, id ID, changes ChangeSet) error
