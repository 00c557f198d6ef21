package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/redmine-ws/internal/constants"
	"github.com/fivetwenty-io/redmine-ws/pkg/redmine"
)

// column is one table column of a list view.
type column struct {
	header string
	value  func(*redmine.Entity) string
}

func attrColumn(header, name string) column {
	return column{
		header: header,
		value: func(e *redmine.Entity) string {
			v, _ := e.Get(name)

			return formatValue(v)
		},
	}
}

var idColumn = column{header: "ID", value: func(e *redmine.Entity) string { return e.ID().String() }}

// resourceCommand describes the CLI surface of one resource type.
type resourceCommand struct {
	use      string
	aliases  []string
	short    string
	resource *redmine.Resource
	columns []column
	// filters are exposed as --<name> flags on list.
	filters []string
}

// clientFactory builds the client commands run against. Tests replace it.
var clientFactory = CreateClient

func (rc resourceCommand) build() *cobra.Command {
	cmd := &cobra.Command{
		Use:     rc.use,
		Aliases: rc.aliases,
		Short:   rc.short,
	}

	if rc.resource.CanQuery() {
		cmd.AddCommand(rc.listCommand())
	}

	if rc.resource.CanGet() {
		cmd.AddCommand(rc.getCommand())
		cmd.AddCommand(rc.updateCommand())
		cmd.AddCommand(rc.deleteCommand())
	}

	if rc.resource.CanCreate() {
		cmd.AddCommand(rc.createCommand())
	}

	return cmd
}

func (rc resourceCommand) withManager(cmd *cobra.Command, fn func(context.Context, *redmine.Manager) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cli, err := clientFactory(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	defer func() { _ = cli.Close() }()

	return fn(ctx, cli.Manager(rc.resource))
}

func (rc resourceCommand) listCommand() *cobra.Command {
	var (
		limit      int
		maxResults int
		sort       string
		where      []string
	)

	filterValues := make(map[string]*string, len(rc.filters))

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List " + rc.use,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := redmine.NewQueryParams().WithLimit(limit).WithSort(sort)

			for _, name := range sortedKeys(filterValues) {
				if v := *filterValues[name]; v != "" {
					params.WithFilter(strings.ReplaceAll(name, "-", "_"), v)
				}
			}

			for _, w := range where {
				name, value, ok := strings.Cut(w, "=")
				if !ok {
					return fmt.Errorf("%w: %q", constants.ErrInvalidFieldArg, w)
				}

				params.WithFilter(name, value)
			}

			return rc.withManager(cmd, func(ctx context.Context, m *redmine.Manager) error {
				entities, err := collect(ctx, m, params, maxResults)
				if err != nil {
					return fmt.Errorf("failed to list %s: %w", rc.use, err)
				}

				return renderEntities(cmd.OutOrStdout(), entities, rc.columns)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", constants.DefaultPageSize, "page size")
	cmd.Flags().IntVar(&maxResults, "max", 0, "stop after this many results (0 for all)")
	cmd.Flags().StringVar(&sort, "sort", "", "sort expression, e.g. updated_on:desc")
	cmd.Flags().StringArrayVar(&where, "where", nil, "extra filter as name=value (repeatable)")

	for _, f := range rc.filters {
		filterValues[f] = cmd.Flags().String(f, "", "filter by "+strings.ReplaceAll(f, "-", " "))
	}

	return cmd
}

// collect drains a query, stopping early at limit when positive. Pages past
// the one holding the last wanted item are never fetched.
func collect(ctx context.Context, m *redmine.Manager, params *redmine.QueryParams, limit int) ([]*redmine.Entity, error) {
	p, err := m.Query(ctx, params)
	if err != nil {
		return nil, err
	}

	var out []*redmine.Entity

	for e, err := range p.Entities() {
		if err != nil {
			return nil, err
		}

		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	return out, nil
}

func (rc resourceCommand) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one of " + rc.use,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rc.withManager(cmd, func(ctx context.Context, m *redmine.Manager) error {
				e, err := m.Lookup(ctx, redmine.ID(args[0]))
				if err != nil {
					return err
				}

				return renderEntity(cmd.OutOrStdout(), e)
			})
		},
	}
}

func (rc resourceCommand) createCommand() *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create one of " + rc.use,
		Example: fmt.Sprintf("  redmine %s create --set subject=\"Printer on fire\" --set project=3",
			rc.use),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, custom, err := parseFieldArgs(sets)
			if err != nil {
				return err
			}

			if len(fields) == 0 && len(custom) == 0 {
				return constants.ErrNoFieldsGiven
			}

			if len(custom) > 0 {
				fields["custom_fields"] = customFieldRecords(custom)
			}

			return rc.withManager(cmd, func(ctx context.Context, m *redmine.Manager) error {
				e, err := m.Create(ctx, fields)
				if err != nil {
					return err
				}

				return renderEntity(cmd.OutOrStdout(), e)
			})
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "field as name=value; cf.<id> for custom fields (repeatable)")

	return cmd
}

// customFieldRecords builds the create-time list form [{id, value}].
func customFieldRecords(custom map[string]any) []map[string]any {
	records := make([]map[string]any, 0, len(custom))
	for _, k := range sortedKeys(custom) {
		records = append(records, map[string]any{"id": parseScalar(k), "value": custom[k]})
	}

	return records
}

func (rc resourceCommand) updateCommand() *cobra.Command {
	var (
		sets  []string
		notes string
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update one of " + rc.use,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, custom, err := parseFieldArgs(sets)
			if err != nil {
				return err
			}

			if len(fields) == 0 && len(custom) == 0 && notes == "" {
				return ErrNothingToUpdate
			}

			return rc.withManager(cmd, func(ctx context.Context, m *redmine.Manager) error {
				e, err := m.Lookup(ctx, redmine.ID(args[0]))
				if err != nil {
					return err
				}

				err = applyFields(e, fields, custom)
				if err != nil {
					return err
				}

				err = e.Save(ctx, notes)
				if err != nil {
					return fmt.Errorf("failed to update %s %s: %w", m.Resource().DisplayName(), e.ID(), err)
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %s\n", m.Resource().DisplayName(), e.ID())

				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "field as name=value; cf.<id or name> for custom fields (repeatable)")
	cmd.Flags().StringVar(&notes, "notes", "", "journal note to add")

	return cmd
}

func applyFields(e *redmine.Entity, fields redmine.Fields, custom map[string]any) error {
	for _, name := range sortedKeys(fields) {
		err := e.Set(name, fields[name])
		if err != nil {
			return err
		}
	}

	for _, key := range sortedKeys(custom) {
		err := e.SetCustomField(key, custom[key])
		if err != nil {
			return err
		}
	}

	return nil
}

func (rc resourceCommand) deleteCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete one of " + rc.use,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), "Really delete "+args[0]+"? [y/N] ") {
				_, _ = io.WriteString(cmd.OutOrStdout(), "Aborted\n")

				return nil
			}

			return rc.withManager(cmd, func(ctx context.Context, m *redmine.Manager) error {
				err := m.Delete(ctx, redmine.ID(args[0]))
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", m.Resource().DisplayName(), args[0])

				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")

	return cmd
}

func confirm(in io.Reader, out io.Writer, question string) bool {
	_, _ = io.WriteString(out, question)

	var answer string

	_, _ = fmt.Fscanln(in, &answer)

	answer = strings.ToLower(strings.TrimSpace(answer))

	return answer == "y" || answer == "yes"
}
