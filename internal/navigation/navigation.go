package navigation

import "schoolhub/internal/modules"

// Entry is one sidebar item. SubItems are shown whenever the parent is.
type Entry struct {
	Name     string  `json:"name"`
	Href     string  `json:"href"`
	Icon     string  `json:"icon,omitempty"`
	SubItems []Entry `json:"sub_items,omitempty"`
}

// always shown regardless of module flags
var exempt = map[string]bool{
	"Dashboard":         true,
	"Private Dashboard": true,
	"Settings":          true,
}

var moduleByName = map[string]modules.Key{
	"Students":       modules.Students,
	"Teachers":       modules.Teachers,
	"Classes":        modules.Classes,
	"Subjects":       modules.Subjects,
	"Exams":          modules.Exams,
	"CBT":            modules.CBT,
	"Question Bank":  modules.CBT,
	"Timetable":      modules.Timetable,
	"Attendance":     modules.Attendance,
	"Fees":           modules.Fees,
	"Library":        modules.Library,
	"Transport":      modules.Transport,
	"Messaging":      modules.Messaging,
	"Groups":         modules.Groups,
	"Announcements":  modules.Announcements,
	"Parent Portal":  modules.ParentPortal,
	"Student Portal": modules.StudentPortal,
	"Reports":        modules.Reports,
	"Recruitment":    modules.Recruitment,
}

// ModuleFor returns the module key an entry name is gated on
func ModuleFor(name string) (modules.Key, bool) {
	k, ok := moduleByName[name]
	return k, ok
}

// DefaultEntries returns the sidebar in display order
func DefaultEntries() []Entry {
	return []Entry{
		{Name: "Dashboard", Href: "/dashboard", Icon: "home"},
		{Name: "Private Dashboard", Href: "/dashboard/private", Icon: "lock"},
		{Name: "Students", Href: "/students", Icon: "users", SubItems: []Entry{
			{Name: "All Students", Href: "/students"},
			{Name: "Admissions", Href: "/students/admissions"},
		}},
		{Name: "Teachers", Href: "/teachers", Icon: "user-check"},
		{Name: "Classes", Href: "/classes", Icon: "layers"},
		{Name: "Subjects", Href: "/subjects", Icon: "book"},
		{Name: "Exams", Href: "/exams", Icon: "clipboard", SubItems: []Entry{
			{Name: "Schedule", Href: "/exams"},
			{Name: "Results", Href: "/exams/results"},
		}},
		{Name: "CBT", Href: "/cbt", Icon: "monitor"},
		{Name: "Question Bank", Href: "/cbt/questions", Icon: "help-circle"},
		{Name: "Timetable", Href: "/timetable", Icon: "calendar"},
		{Name: "Attendance", Href: "/attendance", Icon: "check-square"},
		{Name: "Fees", Href: "/fees", Icon: "credit-card", SubItems: []Entry{
			{Name: "Invoices", Href: "/fees/invoices"},
			{Name: "Payments", Href: "/fees/payments"},
			{Name: "Categories", Href: "/fees/categories"},
		}},
		{Name: "Library", Href: "/library", Icon: "book-open"},
		{Name: "Transport", Href: "/transport", Icon: "truck"},
		{Name: "Messaging", Href: "/messaging", Icon: "mail"},
		{Name: "Groups", Href: "/groups", Icon: "message-circle"},
		{Name: "Announcements", Href: "/announcements", Icon: "bell"},
		{Name: "Parent Portal", Href: "/portal/parent", Icon: "heart"},
		{Name: "Student Portal", Href: "/portal/student", Icon: "smile"},
		{Name: "Reports", Href: "/reports", Icon: "bar-chart"},
		{Name: "Recruitment", Href: "/recruitment", Icon: "briefcase", SubItems: []Entry{
			{Name: "Jobs", Href: "/recruitment/jobs"},
			{Name: "Candidates", Href: "/recruitment/candidates"},
			{Name: "Interviews", Href: "/recruitment/interviews"},
			{Name: "Offers", Href: "/recruitment/offers"},
		}},
		{Name: "Settings", Href: "/settings", Icon: "settings", SubItems: []Entry{
			{Name: "Roles & Permissions", Href: "/settings/roles"},
			{Name: "Modules", Href: "/settings/modules"},
			{Name: "School Profile", Href: "/settings/profile"},
		}},
	}
}

// Filter returns the entries the holder of vis may see, in their original order.
// Exempt and unmapped entries are always kept.
func Filter(vis modules.Visibility, entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if exempt[e.Name] {
			out = append(out, e)
			continue
		}
		key, mapped := moduleByName[e.Name]
		if !mapped || vis[key] {
			out = append(out, e)
		}
	}
	return out
}
