package modules

import (
	"encoding/json"
	"strings"
)

// Key identifies a module that can be shown or hidden per role
type Key string

const (
	Students      Key = "students"
	Teachers      Key = "teachers"
	Classes       Key = "classes"
	Subjects      Key = "subjects"
	Exams         Key = "exams"
	Timetable     Key = "timetable"
	Attendance    Key = "attendance"
	Fees          Key = "fees"
	Library       Key = "library"
	Transport     Key = "transport"
	Messaging     Key = "messaging"
	Groups        Key = "groups"
	Announcements Key = "announcements"
	ParentPortal  Key = "parent_portal"
	StudentPortal Key = "student_portal"
	Reports       Key = "reports"
	CBT           Key = "cbt"
	Recruitment   Key = "recruitment"
)

// declared order; VisibleModules and the navigation filter rely on it
var keys = []Key{
	Students, Teachers, Classes, Subjects, Exams, Timetable, Attendance, Fees, Library,
	Transport, Messaging, Groups, Announcements, ParentPortal, StudentPortal, Reports,
	CBT, Recruitment,
}

var keySet = func() map[Key]struct{} {
	m := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}()

// Keys returns every module key in declared order
func Keys() []Key {
	out := make([]Key, len(keys))
	copy(out, keys)
	return out
}

// KeyStrings is Keys as plain strings, the form used on the wire as available_modules
func KeyStrings() []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, string(k))
	}
	return out
}

// Valid reports whether k belongs to the fixed module set
func (k Key) Valid() bool {
	_, ok := keySet[k]
	return ok
}

// Visibility is a complete record of module flags. Values produced by this package
// always carry every key.
type Visibility map[Key]bool

// Default returns the all-false record
func Default() Visibility {
	v := make(Visibility, len(keys))
	for _, k := range keys {
		v[k] = false
	}
	return v
}

// All returns the all-true record
func All() Visibility {
	v := make(Visibility, len(keys))
	for _, k := range keys {
		v[k] = true
	}
	return v
}

// Parse normalizes a module flag map into a complete Visibility. The input may be a
// native map, a JSON document (string, []byte or json.RawMessage) or nil. Parse never
// fails: anything it cannot read yields Default().
func Parse(input any) Visibility {
	out := Default()

	var raw map[string]any
	switch in := input.(type) {
	case nil:
		return out
	case Visibility:
		for k, v := range in {
			if k.Valid() {
				out[k] = v
			}
		}
		return out
	case map[Key]bool:
		for k, v := range in {
			if k.Valid() {
				out[k] = v
			}
		}
		return out
	case map[string]bool:
		for k, v := range in {
			if Key(k).Valid() {
				out[Key(k)] = v
			}
		}
		return out
	case map[string]any:
		raw = in
	case string:
		if !decode([]byte(in), &raw) {
			return out
		}
	case []byte:
		if !decode(in, &raw) {
			return out
		}
	case json.RawMessage:
		if !decode(in, &raw) {
			return out
		}
	default:
		return out
	}

	for k, v := range raw {
		key := Key(k)
		if !key.Valid() {
			continue
		}
		b, ok := v.(bool)
		out[key] = ok && b
	}
	return out
}

func decode(data []byte, dst *map[string]any) bool {
	if len(strings.TrimSpace(string(data))) == 0 {
		return false
	}
	// a JSON array, number or null decodes into the map with an error or as nil
	if err := json.Unmarshal(data, dst); err != nil {
		return false
	}
	return *dst != nil
}

// IsVisible resolves input and reports the flag for key
func IsVisible(input any, key Key) bool {
	return Parse(input)[key]
}

// VisibleModules returns the enabled keys in declared order
func VisibleModules(input any) []Key {
	return Parse(input).Enabled()
}

// Enabled returns the keys of v set to true, in declared order
func (v Visibility) Enabled() []Key {
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		if v[k] {
			out = append(out, k)
		}
	}
	return out
}

// Clone returns a copy of v normalized to the full key set
func (v Visibility) Clone() Visibility {
	return Parse(v)
}

// Strings converts v into the wire form keyed by plain strings
func (v Visibility) Strings() map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[string(k)] = v[k]
	}
	return out
}
