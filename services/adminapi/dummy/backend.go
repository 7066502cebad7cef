package dummyadmin

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shulebot/shulebot/core/admin"
)

// Backend is an in-memory stand-in for the administrative API with the
// same outcome semantics (conflicts, not-found, duplicate tolerance).
// Used by tests and the local shell.
type Backend struct {
	mutex sync.RWMutex
	now   func() time.Time

	setup       admin.Setup
	years       []admin.Year
	terms       []admin.Term
	classes     map[int]*admin.Class
	streams     map[int][]admin.Stream
	students    map[int]*admin.Student
	enrollments []admin.Enrollment
	guardians   map[int][]admin.Guardian

	pkCount int

	err        error            // when set, every call fails with it
	streamErrs map[string]error // per-name stream creation failures
}

var _ admin.Client = (*Backend)(nil)

func NewBackend() *Backend {
	return &Backend{
		now:        time.Now,
		classes:    make(map[int]*admin.Class),
		streams:    make(map[int][]admin.Stream),
		students:   make(map[int]*admin.Student),
		guardians:  make(map[int][]admin.Guardian),
		streamErrs: make(map[string]error),
	}
}

// --- test/seed helpers ---

// SetSetup installs an active year and current term.
func (b *Backend) SetSetup(yearName, termName string) (admin.Year, admin.Term) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.pkCount++
	year := admin.Year{ID: b.pkCount, Name: yearName, Active: true}
	b.pkCount++
	term := admin.Term{ID: b.pkCount, Name: termName, YearID: year.ID, Active: true}
	b.setup = admin.Setup{Year: &year, Term: &term}
	b.years = append(b.years, year)
	b.terms = append(b.terms, term)
	return year, term
}

// SetError makes every call fail with err until cleared with nil.
func (b *Backend) SetError(err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.err = err
}

// FailStream makes AddStream fail for the named stream (case-insensitively).
func (b *Backend) FailStream(name string, err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.streamErrs[strings.ToLower(name)] = err
}

// SeedClass inserts a class row directly, bypassing conflict checks;
// duplicate base classes included, as found in legacy data.
func (b *Backend) SeedClass(level string, yearID int, createdAt time.Time) admin.Class {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.pkCount++
	cls := admin.Class{ID: b.pkCount, Name: level, Level: level, YearID: yearID, CreatedAt: createdAt}
	b.classes[cls.ID] = &cls
	return cls
}

// --- admin.Client ---

func (b *Backend) CurrentSetup(context.Context, admin.Session) (admin.Setup, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if b.err != nil {
		return admin.Setup{}, b.err
	}
	return b.setup, nil
}

func (b *Backend) ListYears(context.Context, admin.Session) ([]admin.Year, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if b.err != nil {
		return nil, b.err
	}
	return append([]admin.Year(nil), b.years...), nil
}

func (b *Backend) CreateYear(_ context.Context, _ admin.Session, ny admin.NewYear) (admin.Year, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.err != nil {
		return admin.Year{}, b.err
	}
	for _, y := range b.years {
		if strings.EqualFold(y.Name, ny.Name) {
			return admin.Year{}, admin.ErrConflict
		}
	}
	b.pkCount++
	year := admin.Year{ID: b.pkCount, Name: ny.Name}
	b.years = append(b.years, year)
	return year, nil
}

func (b *Backend) ActivateYear(_ context.Context, _ admin.Session, yearID int) (admin.Year, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.err != nil {
		return admin.Year{}, b.err
	}
	for i := range b.years {
		if b.years[i].ID == yearID {
			for j := range b.years {
				b.years[j].Active = b.years[j].ID == yearID
			}
			year := b.years[i]
			b.setup.Year = &year
			// the current term belongs to the previous year
			if b.setup.Term != nil && b.setup.Term.YearID != year.ID {
				b.setup.Term = nil
			}
			return year, nil
		}
	}
	return admin.Year{}, admin.ErrNotFound
}

func (b *Backend) ListTerms(_ context.Context, _ admin.Session, yearID int) ([]admin.Term, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if b.err != nil {
		return nil, b.err
	}
	var terms []admin.Term
	for _, t := range b.terms {
		if t.YearID == yearID {
			terms = append(terms, t)
		}
	}
	return terms, nil
}

func (b *Backend) CreateTerm(_ context.Context, _ admin.Session, nt admin.NewTerm) (admin.Term, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.err != nil {
		return admin.Term{}, b.err
	}
	for _, t := range b.terms {
		if t.YearID == nt.YearID && strings.EqualFold(t.Name, nt.Name) {
			return admin.Term{}, admin.ErrConflict
		}
	}
	b.pkCount++
	term := admin.Term{ID: b.pkCount, Name: nt.Name, YearID: nt.YearID}
	b.terms = append(b.terms, term)
	return term, nil
}

func (b *Backend) ActivateTerm(_ context.Context, _ admin.Session, termID int) (admin.Term, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.err != nil {
		return admin.Term{}, b.err
	}
	for i := range b.terms {
		if b.terms[i].ID == termID {
			for j := range b.terms {
				b.terms[j].Active = b.terms[j].ID == termID
			}
			term := b.terms[i]
			b.setup.Term = &term
			return term, nil
		}
	}
	return admin.Term{}, admin.ErrNotFound
}

func (b *Backend) SearchClasses(_ context.Context, _ admin.Session, q admin.ClassQuery) ([]admin.Class, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if b.err != nil {
		return nil, b.err
	}
	var classes []admin.Class
	for _, cls := range b.classes {
		if q.YearID != 0 && cls.YearID != q.YearID {
			continue
		}
		if q.Level != "" && !strings.EqualFold(cls.Level, q.Level) {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(cls.Name), strings.ToLower(q.Search)) {
			continue
		}
		if q.Empty && b.enrolledCount(cls.ID) > 0 {
			continue
		}
		classes = append(classes, *cls)
	}
	return classes, nil
}

func (b *Backend) enrolledCount(classID int) int {
	var n int
	for _, e := range b.enrollments {
		if e.ClassID == classID {
			n++
		}
	}
	return n
}

// CreateClass never rejects duplicates: the legacy store holds
// duplicate base-class rows and the interpreter must tolerate them.
func (b *Backend) CreateClass(_ context.Context, _ admin.Session, nc admin.NewClass) (admin.Class, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.err != nil {
		return admin.Class{}, b.err
	}
	b.pkCount++
	cls := admin.Class{
		ID: b.pkCount, Name: nc.Name, Level: nc.Level, Stream: nc.Stream,
		YearID: nc.YearID, CreatedAt: b.now(),
	}
	b.classes[cls.ID] = &cls
	return cls, nil
}

func (b *Backend) RenameClass(_ context.Context, _ admin.Session, classID int, name string) (admin.Class, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.err != nil {
		return admin.Class{}, b.err
	}
	cls, ok := b.classes[classID]
	if !ok {
		return admin.Class{}, admin.ErrNotFound
	}
	cls.Name = name
	return *cls, nil
}

func (b *Backend) DeleteClass(_ context.Context, _ admin.Session, classID int) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.err != nil {
		return b.err
	}
	if _, ok := b.classes[classID]; !ok {
		return admin.ErrNotFound
	}
	delete(b.classes, classID)
	delete(b.streams, classID)
	return nil
}

func (b *Backend) ListStreams(_ context.Context, _ admin.Session, classID int) ([]admin.Stream, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if b.err != nil {
		return nil, b.err
	}
	return append([]admin.Stream(nil), b.streams[classID]...), nil
}

func (b *Backend) AddStream(_ context.Context, _ admin.Session, classID int, name string) (admin.Stream, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.err != nil {
		return admin.Stream{}, b.err
	}
	if err, ok := b.streamErrs[strings.ToLower(name)]; ok {
		return admin.Stream{}, err
	}
	if _, ok := b.classes[classID]; !ok {
		return admin.Stream{}, admin.ErrNotFound
	}
	for _, st := range b.streams[classID] {
		if strings.EqualFold(st.Name, name) {
			return admin.Stream{}, admin.ErrConflict
		}
	}
	b.pkCount++
	stream := admin.Stream{ID: b.pkCount, ClassID: classID, Name: name}
	b.streams[classID] = append(b.streams[classID], stream)
	return stream, nil
}

func (b *Backend) SearchStudents(_ context.Context, _ admin.Session, q admin.StudentQuery) ([]admin.Student, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if b.err != nil {
		return nil, b.err
	}
	search := strings.ToLower(q.Search)
	var students []admin.Student
	for _, st := range b.students {
		if q.ClassID != 0 && st.ClassID != q.ClassID {
			continue
		}
		if q.Unassigned && b.hasEnrollment(st.ID) {
			continue
		}
		if search != "" {
			haystack := strings.ToLower(st.AdmissionNo + " " + st.FullName())
			if !strings.Contains(haystack, search) {
				continue
			}
		}
		students = append(students, *st)
	}
	return students, nil
}

func (b *Backend) hasEnrollment(studentID int) bool {
	for _, e := range b.enrollments {
		if e.StudentID == studentID {
			return true
		}
	}
	return false
}

func (b *Backend) CreateStudent(_ context.Context, _ admin.Session, ns admin.NewStudent) (admin.Student, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.err != nil {
		return admin.Student{}, b.err
	}
	for _, st := range b.students {
		if strings.EqualFold(st.AdmissionNo, ns.AdmissionNo) {
			return admin.Student{}, admin.ErrConflict
		}
	}
	b.pkCount++
	student := admin.Student{
		ID: b.pkCount, AdmissionNo: ns.AdmissionNo,
		FirstName: ns.FirstName, LastName: ns.LastName, ClassID: ns.ClassID,
	}
	b.students[student.ID] = &student
	return student, nil
}

func (b *Backend) CreateEnrollment(_ context.Context, _ admin.Session, ne admin.NewEnrollment) (admin.Enrollment, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.err != nil {
		return admin.Enrollment{}, b.err
	}
	if _, ok := b.students[ne.StudentID]; !ok {
		return admin.Enrollment{}, admin.ErrNotFound
	}
	if _, ok := b.classes[ne.ClassID]; !ok {
		return admin.Enrollment{}, admin.ErrNotFound
	}
	for _, e := range b.enrollments {
		if e.StudentID == ne.StudentID && e.TermID == ne.TermID {
			return admin.Enrollment{}, admin.ErrConflict
		}
	}
	b.pkCount++
	enr := admin.Enrollment{ID: b.pkCount, StudentID: ne.StudentID, ClassID: ne.ClassID, TermID: ne.TermID}
	b.enrollments = append(b.enrollments, enr)
	return enr, nil
}

func (b *Backend) StudentGuardians(_ context.Context, _ admin.Session, studentID int) ([]admin.Guardian, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if b.err != nil {
		return nil, b.err
	}
	if _, ok := b.students[studentID]; !ok {
		return nil, admin.ErrNotFound
	}
	return append([]admin.Guardian(nil), b.guardians[studentID]...), nil
}

func (b *Backend) AddGuardian(_ context.Context, _ admin.Session, ng admin.NewGuardian) (admin.Guardian, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.err != nil {
		return admin.Guardian{}, b.err
	}
	if _, ok := b.students[ng.StudentID]; !ok {
		return admin.Guardian{}, admin.ErrNotFound
	}
	for _, g := range b.guardians[ng.StudentID] {
		if strings.EqualFold(g.Name, ng.Name) {
			return admin.Guardian{}, admin.ErrConflict
		}
	}
	b.pkCount++
	guardian := admin.Guardian{
		ID: b.pkCount, StudentID: ng.StudentID,
		Name: ng.Name, Phone: ng.Phone, Relationship: ng.Relationship,
	}
	b.guardians[ng.StudentID] = append(b.guardians[ng.StudentID], guardian)
	return guardian, nil
}

func (b *Backend) UpdateGuardian(_ context.Context, _ admin.Session, guardianID int, gu admin.GuardianUpdate) (admin.Guardian, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.err != nil {
		return admin.Guardian{}, b.err
	}
	for studentID, list := range b.guardians {
		for i, g := range list {
			if g.ID != guardianID {
				continue
			}
			if gu.Name != "" {
				g.Name = gu.Name
			}
			if gu.Phone != "" {
				g.Phone = gu.Phone
			}
			if gu.Relationship != "" {
				g.Relationship = gu.Relationship
			}
			b.guardians[studentID][i] = g
			return g, nil
		}
	}
	return admin.Guardian{}, admin.ErrNotFound
}
