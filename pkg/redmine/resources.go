package redmine

import (
	"time"
)

// Resource types known to the client.
var (
	IssueResource = &Resource{
		Type:           "issue",
		QueryPath:      "issues.json",
		QueryContainer: "issues",
		ItemPath:       "issues/%s.json",
		ItemNewPath:    "issues.json",
		RemapToID: []string{
			"project", "tracker", "status", "priority", "author",
			"assigned_to", "category", "fixed_version", "parent",
		},
		Fields: []string{
			"subject", "description", "project", "tracker", "status", "priority",
			"author", "assigned_to", "category", "fixed_version", "parent",
			"start_date", "due_date", "done_ratio", "estimated_hours",
			"is_private", "created_on", "updated_on", "closed_on", "notes",
		},
	}

	ProjectResource = &Resource{
		Type:           "project",
		QueryPath:      "projects.json",
		QueryContainer: "projects",
		ItemPath:       "projects/%s.json",
		ItemNewPath:    "projects.json",
		RemapToID:      []string{"parent"},
		Fields: []string{
			"name", "identifier", "description", "homepage", "parent",
			"status", "is_public", "created_on", "updated_on",
		},
	}

	UserResource = &Resource{
		Type:           "user",
		QueryPath:      "users.json",
		QueryContainer: "users",
		ItemPath:       "users/%s.json",
		ItemNewPath:    "users.json",
		Fields: []string{
			"login", "firstname", "lastname", "mail", "admin", "status",
			"created_on", "last_login_on",
		},
	}

	TimeEntryResource = &Resource{
		Type:           "time_entry",
		Name:           "time entry",
		QueryPath:      "time_entries.json",
		QueryContainer: "time_entries",
		ItemPath:       "time_entries/%s.json",
		ItemNewPath:    "time_entries.json",
		RemapToID:      []string{"issue", "project", "activity", "user"},
		Fields: []string{
			"issue", "project", "activity", "user", "hours", "comments",
			"spent_on", "created_on", "updated_on",
		},
	}

	VersionResource = &Resource{
		Type:      "version",
		ItemPath:  "versions/%s.json",
		RemapToID: []string{"project"},
		Fields: []string{
			"name", "project", "description", "status", "due_date",
			"sharing", "created_on", "updated_on",
		},
	}

	MembershipResource = &Resource{
		Type:      "membership",
		ItemPath:  "memberships/%s.json",
		RemapToID: []string{"project", "user"},
		Fields:    []string{"project", "user", "group", "roles"},
	}

	NewsResource = &Resource{
		Type:           "news",
		QueryPath:      "news.json",
		QueryContainer: "news",
		Fields: []string{
			"project", "author", "title", "summary", "description", "created_on",
		},
	}
)

// Resources lists every resource type in the catalogue.
func Resources() []*Resource {
	return []*Resource{
		IssueResource, ProjectResource, UserResource, TimeEntryResource,
		VersionResource, MembershipResource, NewsResource,
	}
}

// ResourceByType finds a catalogue entry by its wire type or plural path
// name, e.g. "issue", "issues" or "time_entries".
func ResourceByType(name string) (*Resource, bool) {
	for _, res := range Resources() {
		if res.Type == name || res.QueryContainer == name {
			return res, true
		}
	}

	switch name {
	case "versions":
		return VersionResource, true
	case "memberships":
		return MembershipResource, true
	}

	return nil, false
}

// timeField parses a service timestamp ("2024-01-02T15:04:05Z") or date
// ("2024-01-02").
func (e *Entity) timeField(name string) (time.Time, bool) {
	s := e.GetString(name)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// Issue is a typed view of an issue entity.
type Issue struct {
	*Entity
}

// AsIssue wraps e.
func AsIssue(e *Entity) *Issue { return &Issue{Entity: e} }

func (i *Issue) Subject() string     { return i.GetString("subject") }
func (i *Issue) Description() string { return i.GetString("description") }

func (i *Issue) Project() (Ref, bool)    { return i.GetRef("project") }
func (i *Issue) Tracker() (Ref, bool)    { return i.GetRef("tracker") }
func (i *Issue) Status() (Ref, bool)     { return i.GetRef("status") }
func (i *Issue) Priority() (Ref, bool)   { return i.GetRef("priority") }
func (i *Issue) Author() (Ref, bool)     { return i.GetRef("author") }
func (i *Issue) AssignedTo() (Ref, bool) { return i.GetRef("assigned_to") }

// DoneRatio returns the completion percentage.
func (i *Issue) DoneRatio() int {
	n, _ := i.GetInt("done_ratio")

	return n
}

func (i *Issue) StartDate() (time.Time, bool) { return i.timeField("start_date") }
func (i *Issue) DueDate() (time.Time, bool)   { return i.timeField("due_date") }
func (i *Issue) UpdatedOn() (time.Time, bool) { return i.timeField("updated_on") }

func (i *Issue) SetSubject(s string) error     { return i.Set("subject", s) }
func (i *Issue) SetDescription(s string) error { return i.Set("description", s) }
func (i *Issue) SetDoneRatio(n int) error      { return i.Set("done_ratio", n) }

// SetStatus moves the issue to another status; sent as status_id.
func (i *Issue) SetStatus(id ID) error     { return i.Set("status", Ref{ID: id}) }
func (i *Issue) SetPriority(id ID) error   { return i.Set("priority", Ref{ID: id}) }
func (i *Issue) SetTracker(id ID) error    { return i.Set("tracker", Ref{ID: id}) }
func (i *Issue) SetAssignedTo(id ID) error { return i.Set("assigned_to", Ref{ID: id}) }
func (i *Issue) SetProject(id ID) error    { return i.Set("project", Ref{ID: id}) }

// SetDueDate sets the due date; the zero time clears it.
func (i *Issue) SetDueDate(t time.Time) error {
	if t.IsZero() {
		return i.Set("due_date", "")
	}

	return i.Set("due_date", t.Format("2006-01-02"))
}

// Project is a typed view of a project entity.
type Project struct {
	*Entity
}

// AsProject wraps e.
func AsProject(e *Entity) *Project { return &Project{Entity: e} }

func (p *Project) Name() string           { return p.GetString("name") }
func (p *Project) Identifier() string     { return p.GetString("identifier") }
func (p *Project) Description() string    { return p.GetString("description") }
func (p *Project) Homepage() string       { return p.GetString("homepage") }
func (p *Project) IsPublic() bool         { return p.GetBool("is_public") }
func (p *Project) Parent() (Ref, bool)    { return p.GetRef("parent") }
func (p *Project) SetName(s string) error { return p.Set("name", s) }

func (p *Project) SetDescription(s string) error { return p.Set("description", s) }
func (p *Project) SetParent(id ID) error         { return p.Set("parent", Ref{ID: id}) }

// User is a typed view of a user entity.
type User struct {
	*Entity
}

// AsUser wraps e.
func AsUser(e *Entity) *User { return &User{Entity: e} }

func (u *User) Login() string     { return u.GetString("login") }
func (u *User) Firstname() string { return u.GetString("firstname") }
func (u *User) Lastname() string  { return u.GetString("lastname") }
func (u *User) Mail() string      { return u.GetString("mail") }
func (u *User) Admin() bool       { return u.GetBool("admin") }

// FullName joins first and last name.
func (u *User) FullName() string {
	switch {
	case u.Firstname() == "":
		return u.Lastname()
	case u.Lastname() == "":
		return u.Firstname()
	default:
		return u.Firstname() + " " + u.Lastname()
	}
}

// String implements fmt.Stringer; users carry no "name" attribute.
func (u *User) String() string {
	if n := u.FullName(); n != "" {
		return n
	}

	return u.Entity.String()
}

func (u *User) SetMail(s string) error { return u.Set("mail", s) }

// TimeEntry is a typed view of a time entry.
type TimeEntry struct {
	*Entity
}

// AsTimeEntry wraps e.
func AsTimeEntry(e *Entity) *TimeEntry { return &TimeEntry{Entity: e} }

// Hours returns the logged hours.
func (t *TimeEntry) Hours() float64 {
	raw, ok := t.Get("hours")
	if !ok {
		return 0
	}

	switch v := raw.(type) {
	case float64:
		return v
	case interface{ Float64() (float64, error) }:
		f, _ := v.Float64()

		return f
	default:
		return 0
	}
}

func (t *TimeEntry) Comments() string           { return t.GetString("comments") }
func (t *TimeEntry) Issue() (Ref, bool)         { return t.GetRef("issue") }
func (t *TimeEntry) Project() (Ref, bool)       { return t.GetRef("project") }
func (t *TimeEntry) Activity() (Ref, bool)      { return t.GetRef("activity") }
func (t *TimeEntry) User() (Ref, bool)          { return t.GetRef("user") }
func (t *TimeEntry) SpentOn() (time.Time, bool) { return t.timeField("spent_on") }
func (t *TimeEntry) SetHours(h float64) error   { return t.Set("hours", h) }
func (t *TimeEntry) SetComments(s string) error { return t.Set("comments", s) }
func (t *TimeEntry) SetActivity(id ID) error    { return t.Set("activity", Ref{ID: id}) }

// Version is a typed view of a project version.
type Version struct {
	*Entity
}

// AsVersion wraps e.
func AsVersion(e *Entity) *Version { return &Version{Entity: e} }

func (v *Version) Name() string                  { return v.GetString("name") }
func (v *Version) Status() string                { return v.GetString("status") }
func (v *Version) Project() (Ref, bool)          { return v.GetRef("project") }
func (v *Version) DueDate() (time.Time, bool)    { return v.timeField("due_date") }
func (v *Version) SetStatus(s string) error      { return v.Set("status", s) }
func (v *Version) SetDescription(s string) error { return v.Set("description", s) }

// Membership is a typed view of a project membership.
type Membership struct {
	*Entity
}

// AsMembership wraps e.
func AsMembership(e *Entity) *Membership { return &Membership{Entity: e} }

func (m *Membership) Project() (Ref, bool) { return m.GetRef("project") }
func (m *Membership) User() (Ref, bool)    { return m.GetRef("user") }

// Roles returns the membership's roles.
func (m *Membership) Roles() []Ref {
	raw, _ := m.Get("roles")

	list, _ := raw.([]any)
	roles := make([]Ref, 0, len(list))

	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		id, ok := IDOf(obj[fieldID])
		if !ok {
			continue
		}

		name, _ := obj[fieldName].(string)
		roles = append(roles, Ref{ID: id, Name: name})
	}

	return roles
}

// News is a typed view of a news item.
type News struct {
	*Entity
}

// AsNews wraps e.
func AsNews(e *Entity) *News { return &News{Entity: e} }

func (n *News) Title() string                { return n.GetString("title") }
func (n *News) Summary() string              { return n.GetString("summary") }
func (n *News) Description() string          { return n.GetString("description") }
func (n *News) Author() (Ref, bool)          { return n.GetRef("author") }
func (n *News) CreatedOn() (time.Time, bool) { return n.timeField("created_on") }

// String implements fmt.Stringer.
func (n *News) String() string {
	if t := n.Title(); t != "" {
		return t
	}

	return n.Entity.String()
}
