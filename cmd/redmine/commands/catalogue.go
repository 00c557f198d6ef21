package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/redmine-ws/pkg/redmine"
)

// NewIssuesCommand creates the issues command group.
func NewIssuesCommand() *cobra.Command {
	return resourceCommand{
		use:      "issues",
		aliases:  []string{"issue", "i"},
		short:    "Manage issues",
		resource: redmine.IssueResource,
		columns: []column{
			idColumn,
			attrColumn("Project", "project"),
			attrColumn("Tracker", "tracker"),
			attrColumn("Status", "status"),
			attrColumn("Priority", "priority"),
			attrColumn("Assignee", "assigned_to"),
			attrColumn("Subject", "subject"),
		},
		filters: []string{"project-id", "status-id", "assigned-to-id", "tracker-id"},
	}.build()
}

// NewProjectsCommand creates the projects command group.
func NewProjectsCommand() *cobra.Command {
	return resourceCommand{
		use:      "projects",
		aliases:  []string{"project", "p"},
		short:    "Manage projects",
		resource: redmine.ProjectResource,
		columns: []column{
			idColumn,
			attrColumn("Identifier", "identifier"),
			attrColumn("Name", "name"),
			attrColumn("Parent", "parent"),
			{header: "Public", value: func(e *redmine.Entity) string {
				return strconv.FormatBool(redmine.AsProject(e).IsPublic())
			}},
		},
	}.build()
}

// NewUsersCommand creates the users command group.
func NewUsersCommand() *cobra.Command {
	return resourceCommand{
		use:      "users",
		aliases:  []string{"user", "u"},
		short:    "Manage users",
		resource: redmine.UserResource,
		columns: []column{
			idColumn,
			attrColumn("Login", "login"),
			{header: "Name", value: func(e *redmine.Entity) string { return redmine.AsUser(e).FullName() }},
			attrColumn("Mail", "mail"),
			{header: "Admin", value: func(e *redmine.Entity) string {
				return strconv.FormatBool(redmine.AsUser(e).Admin())
			}},
		},
		filters: []string{"status", "name", "group-id"},
	}.build()
}

// NewTimeEntriesCommand creates the time-entries command group.
func NewTimeEntriesCommand() *cobra.Command {
	return resourceCommand{
		use:      "time-entries",
		aliases:  []string{"time-entry", "te"},
		short:    "Manage time entries",
		resource: redmine.TimeEntryResource,
		columns: []column{
			idColumn,
			attrColumn("Spent on", "spent_on"),
			attrColumn("User", "user"),
			attrColumn("Issue", "issue"),
			attrColumn("Activity", "activity"),
			{header: "Hours", value: func(e *redmine.Entity) string {
				return strconv.FormatFloat(redmine.AsTimeEntry(e).Hours(), 'f', -1, 64)
			}},
			attrColumn("Comments", "comments"),
		},
		filters: []string{"project-id", "issue-id", "user-id", "from", "to"},
	}.build()
}

// NewVersionsCommand creates the versions command group. The service offers
// no flat listing, so only item operations are available.
func NewVersionsCommand() *cobra.Command {
	return resourceCommand{
		use:      "versions",
		short:    "Manage project versions",
		resource: redmine.VersionResource,
	}.build()
}

// NewMembershipsCommand creates the memberships command group.
func NewMembershipsCommand() *cobra.Command {
	return resourceCommand{
		use:      "memberships",
		short:    "Manage project memberships",
		resource: redmine.MembershipResource,
	}.build()
}

// NewNewsCommand creates the news command group.
func NewNewsCommand() *cobra.Command {
	return resourceCommand{
		use:      "news",
		short:    "List news",
		resource: redmine.NewsResource,
		columns: []column{
			idColumn,
			attrColumn("Project", "project"),
			attrColumn("Author", "author"),
			attrColumn("Title", "title"),
			attrColumn("Created", "created_on"),
		},
		filters: []string{"project-id"},
	}.build()
}

// NewResourcesCommand lists the resource catalogue and the operations each
// type supports.
func NewResourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List known resource types",
		RunE: func(cmd *cobra.Command, args []string) error {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Type", "Query", "Get", "Create", "Remapped fields")

			for _, res := range redmine.Resources() {
				_ = table.Append(
					res.Type,
					strconv.FormatBool(res.CanQuery()),
					strconv.FormatBool(res.CanGet()),
					strconv.FormatBool(res.CanCreate()),
					strings.Join(res.RemapToID, ", "),
				)
			}

			err := table.Render()
			if err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}
