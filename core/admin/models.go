package admin

import "time"

// Session carries the per-conversation credentials forwarded to the
// administrative API on every call. The token is opaque to us.
type Session struct {
	Token    string
	SchoolID string
	UserID   string
}

// Authenticated reports whether the session carries everything the
// administrative API needs; calls made without it are pointless.
func (s Session) Authenticated() bool {
	return s.Token != "" && s.SchoolID != ""
}

type Year struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"is_active"`
}

type NewYear struct {
	Name string `json:"name"`
}

type Term struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	YearID int    `json:"academic_year_id"`
	Active bool   `json:"is_active"`
}

type NewTerm struct {
	Name   string `json:"name"`
	YearID int    `json:"academic_year_id"`
}

// Setup is the school's current academic configuration.
type Setup struct {
	Year *Year `json:"academic_year"`
	Term *Term `json:"current_term"`
}

// Complete reports whether both an active academic year and a current
// term exist; student/enrollment operations require it.
func (s Setup) Complete() bool {
	return s.Year != nil && s.Year.Active && s.Term != nil && s.Term.Active
}

type Class struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Level     string    `json:"level"`
	Stream    string    `json:"stream"`
	YearID    int       `json:"academic_year_id"`
	CreatedAt time.Time `json:"created_at"`
}

type NewClass struct {
	Name   string `json:"name"`
	Level  string `json:"level"`
	Stream string `json:"stream,omitempty"`
	YearID int    `json:"academic_year_id"`
}

type ClassQuery struct {
	Search string
	Level  string
	YearID int
	Empty  bool // only classes with no enrolled students
}

type Stream struct {
	ID      int    `json:"id"`
	ClassID int    `json:"class_id"`
	Name    string `json:"name"`
}

type Student struct {
	ID          int    `json:"id"`
	AdmissionNo string `json:"admission_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	ClassID     int    `json:"class_id,omitempty"`
}

func (s Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

type NewStudent struct {
	AdmissionNo string `json:"admission_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	ClassID     int    `json:"class_id,omitempty"`
}

type StudentQuery struct {
	Search     string
	ClassID    int
	Unassigned bool // students with no active enrollment
}

type Enrollment struct {
	ID        int `json:"id"`
	StudentID int `json:"student_id"`
	ClassID   int `json:"class_id"`
	TermID    int `json:"term_id"`
}

type NewEnrollment struct {
	StudentID int `json:"student_id"`
	ClassID   int `json:"class_id"`
	TermID    int `json:"term_id"`
}

type Guardian struct {
	ID           int    `json:"id"`
	StudentID    int    `json:"student_id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship"`
}

type NewGuardian struct {
	StudentID    int    `json:"student_id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship"`
}

// GuardianUpdate is a partial update; empty fields are left untouched.
type GuardianUpdate struct {
	Name         string `json:"name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}
