package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/redmine-ws/internal/constants"
	"github.com/fivetwenty-io/redmine-ws/pkg/redmine"
)

// Common string constants used throughout the commands package.
const (
	NotAvailable = "N/A"

	// JSON formatting.
	defaultJSONIndent = 2
)

// Common static errors used throughout the commands package.
var (
	ErrNothingToUpdate = errors.New("nothing to update, use --set or --notes")
	ErrLoginFailed     = errors.New("login failed: the server returned no API key")
)

// StandardJSONRenderer writes data as indented JSON.
func StandardJSONRenderer[T any](w io.Writer, data T) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to JSON: %w", err)
	}

	return nil
}

// StandardYAMLRenderer writes data as YAML.
func StandardYAMLRenderer[T any](w io.Writer, data T) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(defaultJSONIndent)

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to YAML: %w", err)
	}

	return nil
}

// outputFormat returns the validated --output value.
func outputFormat() (string, error) {
	output := viper.GetString(constants.ConfigKeyOutput)
	switch output {
	case "", constants.FormatTable:
		return constants.FormatTable, nil
	case constants.FormatJSON, constants.FormatYAML:
		return output, nil
	default:
		return "", fmt.Errorf("%w: %s", constants.ErrInvalidOutputFormat, output)
	}
}

// renderEntities writes entities in the selected format. columns picks the
// table columns; JSON and YAML carry every attribute.
func renderEntities(w io.Writer, entities []*redmine.Entity, columns []column) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	switch format {
	case constants.FormatJSON:
		return StandardJSONRenderer(w, plainEntities(entities))
	case constants.FormatYAML:
		return StandardYAMLRenderer(w, plainEntities(entities))
	}

	if len(entities) == 0 {
		_, _ = io.WriteString(w, "No results found\n")

		return nil
	}

	table := tablewriter.NewWriter(w)

	headers := make([]any, 0, len(columns))
	for _, c := range columns {
		headers = append(headers, c.header)
	}

	table.Header(headers...)

	for _, e := range entities {
		row := make([]any, 0, len(columns))
		for _, c := range columns {
			row = append(row, truncate(c.value(e)))
		}

		_ = table.Append(row...)
	}

	err = table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// renderEntity writes one entity as a property/value table.
func renderEntity(w io.Writer, e *redmine.Entity) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	switch format {
	case constants.FormatJSON:
		return StandardJSONRenderer(w, plainEntity(e))
	case constants.FormatYAML:
		return StandardYAMLRenderer(w, plainEntity(e))
	}

	table := tablewriter.NewWriter(w)
	table.Header("Property", "Value")

	for _, k := range e.Keys() {
		v, _ := e.Get(k)
		_ = table.Append(k, truncate(formatValue(v)))
	}

	err = table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// plainEntity converts the attribute bag to plain maps and slices so the
// YAML encoder sees the same shapes the JSON one does.
func plainEntity(e *redmine.Entity) map[string]any {
	raw, err := json.Marshal(e)
	if err != nil {
		return e.Attributes()
	}

	var out map[string]any

	err = json.Unmarshal(raw, &out)
	if err != nil {
		return e.Attributes()
	}

	return out
}

func plainEntities(entities []*redmine.Entity) []map[string]any {
	out := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		out = append(out, plainEntity(e))
	}

	return out
}

// formatValue renders an attribute for a table cell. Relationship shorthand
// shows its name, falling back to its id.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any:
		if name, ok := val["name"].(string); ok && name != "" {
			return name
		}

		if id, ok := redmine.IDOf(val["id"]); ok {
			return "#" + id.String()
		}
	case *redmine.CustomFields:
		return val.String()
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}

	return string(raw)
}

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= constants.MaxTableColumnWidth {
		return s
	}

	return s[:constants.MaxTableColumnWidth-3] + "..."
}

// parseFieldArgs turns name=value pairs into fields. Integers, booleans and
// null are converted; everything else stays a string. A name of the form
// cf.<id or name> addresses a custom field.
func parseFieldArgs(args []string) (redmine.Fields, map[string]any, error) {
	fields := redmine.Fields{}
	custom := map[string]any{}

	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("%w: %q", constants.ErrInvalidFieldArg, arg)
		}

		if cf, isCustom := strings.CutPrefix(name, "cf."); isCustom {
			custom[cf] = value

			continue
		}

		fields[name] = parseScalar(value)
	}

	return fields, custom, nil
}

func parseScalar(value string) any {
	switch value {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}

	n, err := strconv.Atoi(value)
	if err == nil {
		return n
	}

	return value
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
