package bot

import (
	"github.com/shulebot/shulebot/core/admin"
)

// Slot names. Slots hold strings only; numeric references are parsed at
// the point of use.
const (
	SlotActiveForm = "active_form"

	SlotStudentName = "student_name"
	SlotAdmissionNo = "admission_no"
	SlotClassName   = "class_name"

	SlotLevel  = "level"
	SlotStream = "stream"

	SlotGuardianStudent  = "guardian_student"
	SlotGuardianName     = "guardian_name"
	SlotGuardianPhone    = "guardian_phone"
	SlotGuardianRelation = "guardian_relation"
)

// Intents as classified by the external NLU layer.
const (
	IntentCreateStudent          = "create_student"
	IntentSearchStudent          = "search_student"
	IntentListStudents           = "list_students"
	IntentListStudentsByClass    = "list_students_by_class"
	IntentListUnassignedStudents = "list_unassigned_students"
	IntentEnrollStudent          = "enroll_student"

	IntentCreateClass      = "create_class"
	IntentAddStreamToClass = "add_stream_to_class"
	IntentListStreams      = "list_streams"
	IntentListClasses      = "list_classes"
	IntentListEmptyClasses = "list_empty_classes"
	IntentDeleteClass      = "delete_class"
	IntentRenameClass      = "rename_class"

	IntentCheckAcademicSetup = "check_academic_setup"
	IntentGetCurrentTerm     = "get_current_term"
	IntentCreateYear         = "create_year"
	IntentActivateYear       = "activate_year"
	IntentListYears          = "list_years"
	IntentCreateTerm         = "create_term"
	IntentActivateTerm       = "activate_term"

	IntentAddGuardian    = "add_guardian"
	IntentUpdateGuardian = "update_guardian"
	IntentListGuardians  = "list_guardians"

	IntentGreet      = "greet"
	IntentGoodbye    = "goodbye"
	IntentAskHelp    = "ask_help"
	IntentCancelForm = "cancel_form"
)

// Entity types the NLU layer may attach to an utterance.
const (
	EntityStudentName = "student_name"
	EntityAdmissionNo = "admission_no"
	EntityClassName   = "class_name"
	EntityLevel       = "level"
	EntityStream      = "stream"
	EntityTermName    = "term_name"
	EntityYearName    = "year_name"
	EntityPhone       = "phone"
	EntityRelation    = "relation"
	EntityName        = "name"
)

// Utterance is one classified user turn. Immutable; built by the
// transport layer from the chat request and its headers.
type Utterance struct {
	Text     string
	Intent   string
	Entities map[string]string
	Session  admin.Session
}

// Entity returns the value of the named entity, or "".
func (u Utterance) Entity(name string) string {
	if u.Entities == nil {
		return ""
	}
	return u.Entities[name]
}

// Slots is the per-conversation slot snapshot handed to the interpreter
// each turn. The interpreter never mutates it; changes travel back as a
// SlotDelta.
type Slots map[string]string

func (s Slots) Get(name string) string {
	if s == nil {
		return ""
	}
	return s[name]
}

func (s Slots) Clone() Slots {
	out := make(Slots, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// SlotDelta is the set/clear instruction list returned by a turn.
type SlotDelta struct {
	Set   map[string]string
	Clear []string
}

func (d *SlotDelta) set(name, value string) {
	if d.Set == nil {
		d.Set = make(map[string]string)
	}
	d.Set[name] = value
}

func (d *SlotDelta) clear(names ...string) {
	d.Clear = append(d.Clear, names...)
}

func (d *SlotDelta) merge(other SlotDelta) {
	for k, v := range other.Set {
		d.set(k, v)
	}
	d.clear(other.Clear...)
}

// Empty reports whether applying the delta would be a no-op.
func (d SlotDelta) Empty() bool {
	return len(d.Set) == 0 && len(d.Clear) == 0
}

// Apply returns a new snapshot with the delta applied; clears win over
// sets for the same name.
func (d SlotDelta) Apply(slots Slots) Slots {
	out := slots.Clone()
	for k, v := range d.Set {
		out[k] = v
	}
	for _, k := range d.Clear {
		delete(out, k)
	}
	return out
}

// Result is the interpreter's answer for one turn.
type Result struct {
	Replies []string
	Delta   SlotDelta
}

func (r *Result) reply(texts ...string) {
	r.Replies = append(r.Replies, texts...)
}
