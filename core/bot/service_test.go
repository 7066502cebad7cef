package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shulebot/shulebot/core/admin"
	dummyadmin "github.com/shulebot/shulebot/services/adminapi/dummy"
)

// turn runs one turn and folds the delta into the snapshot, the way the
// transport layer does between requests.
func turn(t *testing.T, svc *Service, utt Utterance, slots Slots) (Result, Slots) {
	t.Helper()
	res, err := svc.HandleTurn(context.Background(), utt, slots)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	return res, res.Delta.Apply(slots)
}

func assertReply(t *testing.T, res Result, want string) {
	t.Helper()
	for _, r := range res.Replies {
		if r == want {
			return
		}
	}
	t.Errorf("missing reply %q in %q", want, res.Replies)
}

func TestService_HandleTurn_authRequired(t *testing.T) {
	backend := dummyadmin.NewBackend()
	backend.SetSetup("2026", "Term 1")
	backend.SetError(admin.ErrUnavailable) // must never be reached
	svc := NewService(backend, testLogger)

	res, err := svc.HandleTurn(context.Background(), Utterance{
		Text:   "create grade 6",
		Intent: IntentCreateClass,
	}, nil)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	assertReply(t, res, msgAuthRequired)
	if !res.Delta.Empty() {
		t.Errorf("unauthenticated turn changed slots: %+v", res.Delta)
	}
}

func TestService_HandleTurn_createClass(t *testing.T) {
	backend := dummyadmin.NewBackend()
	backend.SetSetup("2026", "Term 1")
	svc := NewService(backend, testLogger)

	utt := Utterance{Text: "create grade 6 blue", Intent: IntentCreateClass, Session: testSession}

	res, _ := turn(t, svc, utt, nil)
	assertReply(t, res, "Created Class 6 for 2026.")
	assertReply(t, res, "Added streams: Blue.")
	assertReply(t, res, "Class 6 now has streams: Blue.")

	// the same turn again changes nothing
	res, _ = turn(t, svc, utt, nil)
	assertReply(t, res, "Class 6 already exists for 2026.")
	assertReply(t, res, "Already existed: Blue.")

	classes, err := backend.SearchClasses(context.Background(), testSession, admin.ClassQuery{})
	if err != nil {
		t.Fatalf("SearchClasses() error = %v", err)
	}
	if len(classes) != 1 {
		t.Errorf("backend holds %d classes; want 1", len(classes))
	}
}

func TestService_HandleTurn_createClassManyStreams(t *testing.T) {
	backend := dummyadmin.NewBackend()
	backend.SetSetup("2026", "Term 1")
	backend.FailStream("Green", admin.ErrUnavailable)
	svc := NewService(backend, testLogger)

	res, _ := turn(t, svc, Utterance{
		Text:    "create grade 7 with streams blue, green and red",
		Intent:  IntentCreateClass,
		Session: testSession,
	}, nil)

	assertReply(t, res, "Created Class 7 for 2026.")
	assertReply(t, res, "Added streams: Blue, Red.")
	assertReply(t, res, "Could not add: Green. Please try those again.")
}

func TestService_HandleTurn_setupGate(t *testing.T) {
	backend := dummyadmin.NewBackend() // no setup
	svc := NewService(backend, testLogger)

	slots := Slots{SlotStudentName: "Joshua Mwangi"}
	res, next := turn(t, svc, Utterance{
		Text:    "register a student",
		Intent:  IntentCreateStudent,
		Session: testSession,
	}, slots)

	if len(res.Replies) == 0 || !strings.Contains(res.Replies[0], "academic setup isn't complete") {
		t.Fatalf("missing setup steps; got %q", res.Replies)
	}
	if len(next) != 0 {
		t.Errorf("collected slots survived the gate: %v", next)
	}
}

func TestService_HandleTurn_studentFlow(t *testing.T) {
	nowFunc = func() time.Time { return time.Unix(1726000123, 0) }
	defer func() { nowFunc = time.Now }()

	backend := dummyadmin.NewBackend()
	backend.SetSetup("2026", "Term 1")
	svc := NewService(backend, testLogger)
	var slots Slots

	// open the form
	res, slots := turn(t, svc, Utterance{
		Text: "register a student", Intent: IntentCreateStudent, Session: testSession,
	}, slots)
	assertReply(t, res, "What is the student's full name?")
	if slots.Get(SlotActiveForm) != studentFormName {
		t.Fatalf("active form = %q; want %q", slots.Get(SlotActiveForm), studentFormName)
	}

	// fill the name
	res, slots = turn(t, svc, Utterance{Text: "Joshua Mwangi", Session: testSession}, slots)
	assertReply(t, res, "What admission number should I use? Say 'auto' and I'll generate one.")

	// an interruption is serviced inline; collected slots survive
	res, slots = turn(t, svc, Utterance{
		Text: "list classes", Intent: IntentListClasses, Session: testSession,
	}, slots)
	if last := res.Replies[len(res.Replies)-1]; !strings.HasPrefix(last, "Now, back to where we were. ") {
		t.Fatalf("missing resume prompt; got %q", last)
	}
	if slots.Get(SlotStudentName) != "Joshua Mwangi" {
		t.Fatalf("interruption lost the collected name: %v", slots)
	}

	// generated admission number
	res, slots = turn(t, svc, Utterance{Text: "auto", Session: testSession}, slots)
	assertReply(t, res, "Alright, I'll generate an admission number.")
	assertReply(t, res, "Which class is the student joining?")

	// unknown class: warned once, confirmed on re-entry
	res, slots = turn(t, svc, Utterance{Text: "class 8 blue", Session: testSession}, slots)
	assertReply(t, res, "I don't know Class 8 Blue for this year — it will be created automatically. Enter the class once more to confirm.")
	res, slots = turn(t, svc, Utterance{Text: "class 8 blue", Session: testSession}, slots)

	assertReply(t, res, "Okay, Class 8 Blue will be created.")
	assertReply(t, res, "Student Joshua Mwangi registered with admission number 000123 in Class 8 Blue.")
	assertReply(t, res, "Keep a note of the generated admission number: 000123.")
	assertReply(t, res, "They are enrolled for Term 1.")
	if len(slots) != 0 {
		t.Errorf("slots survived completion: %v", slots)
	}

	students, err := backend.SearchStudents(context.Background(), testSession, admin.StudentQuery{})
	if err != nil {
		t.Fatalf("SearchStudents() error = %v", err)
	}
	if len(students) != 1 || students[0].AdmissionNo != "000123" {
		t.Errorf("backend students = %+v; want one with admission 000123", students)
	}
}

func TestService_HandleTurn_admissionConflict(t *testing.T) {
	ctx := context.Background()
	backend := dummyadmin.NewBackend()
	year, _ := backend.SetSetup("2026", "Term 1")
	svc := NewService(backend, testLogger)

	cls, err := backend.CreateClass(ctx, testSession, admin.NewClass{Name: "Class 8", Level: "Class 8", YearID: year.ID})
	if err != nil {
		t.Fatalf("CreateClass() error = %v", err)
	}
	if _, err = backend.CreateStudent(ctx, testSession, admin.NewStudent{
		AdmissionNo: "ADM001", FirstName: "Peter", LastName: "Otieno", ClassID: cls.ID,
	}); err != nil {
		t.Fatalf("CreateStudent() error = %v", err)
	}

	// the entities fill the whole form in one go
	res, slots := turn(t, svc, Utterance{
		Text:   "register Mary Atieno",
		Intent: IntentCreateStudent,
		Entities: map[string]string{
			EntityStudentName: "Mary Atieno",
			EntityAdmissionNo: "ADM001",
			EntityClassName:   "Class 8",
		},
		Session: testSession,
	}, nil)

	assertReply(t, res, "Admission number ADM001 is already taken — give me a different one.")
	if slots.Get(SlotStudentName) != "Mary Atieno" || slots.Get(SlotClassName) != "Class 8" {
		t.Fatalf("conflict cleared more than the admission slot: %v", slots)
	}
	if slots.Get(SlotAdmissionNo) != "" {
		t.Fatalf("offending slot kept its value: %v", slots)
	}

	// the retry resumes at the admission number only
	res, slots = turn(t, svc, Utterance{Text: "ADM002", Session: testSession}, slots)
	assertReply(t, res, "Student Mary Atieno registered with admission number ADM002 in Class 8.")
	if len(slots) != 0 {
		t.Errorf("slots survived completion: %v", slots)
	}
}

func TestService_HandleTurn_backendDownKeepsSlots(t *testing.T) {
	backend := dummyadmin.NewBackend()
	backend.SetSetup("2026", "Term 1")
	svc := NewService(backend, testLogger)

	slots := Slots{
		SlotActiveForm:  studentFormName,
		SlotStudentName: "Joshua Mwangi",
		SlotAdmissionNo: "ADM001",
	}
	backend.SetError(admin.ErrUnavailable)

	res, next := turn(t, svc, Utterance{Text: "class 9", Session: testSession}, slots)
	assertReply(t, res, msgUnavailable)
	if !res.Delta.Empty() {
		t.Errorf("transport failure changed slots: %+v", res.Delta)
	}
	if next.Get(SlotStudentName) != "Joshua Mwangi" || next.Get(SlotActiveForm) != studentFormName {
		t.Errorf("collected slots lost: %v", next)
	}
}

func TestService_HandleTurn_cancel(t *testing.T) {
	backend := dummyadmin.NewBackend()
	backend.SetSetup("2026", "Term 1")
	svc := NewService(backend, testLogger)

	slots := Slots{
		SlotActiveForm:  studentFormName,
		SlotStudentName: "Joshua Mwangi",
	}
	res, next := turn(t, svc, Utterance{Text: "never mind", Session: testSession}, slots)
	assertReply(t, res, msgCancelled)
	if len(next) != 0 {
		t.Errorf("cancel left slots behind: %v", next)
	}

	// the next turn dispatches normally again
	res, _ = turn(t, svc, Utterance{Text: "hi", Intent: IntentGreet, Session: testSession}, next)
	assertReply(t, res, "Hello! I'm your school assistant. Say 'help' to see what I can do.")
}

func TestService_HandleTurn_terms(t *testing.T) {
	backend := dummyadmin.NewBackend()
	backend.SetSetup("2026", "Term 1")
	svc := NewService(backend, testLogger)

	res, _ := turn(t, svc, Utterance{
		Text: "create term 2", Intent: IntentCreateTerm, Session: testSession,
	}, nil)
	assertReply(t, res, "Created Term 2 for 2026. Say 'activate term 2' to make it current.")

	// creating it again conflicts
	res, _ = turn(t, svc, Utterance{
		Text: "create term 2", Intent: IntentCreateTerm, Session: testSession,
	}, nil)
	assertReply(t, res, "Term 2 already exists for 2026.")

	res, _ = turn(t, svc, Utterance{
		Text: "activate term 2", Intent: IntentActivateTerm, Session: testSession,
	}, nil)
	assertReply(t, res, "Term 2 is now the current term.")

	res, _ = turn(t, svc, Utterance{
		Text: "what is the current term", Intent: IntentGetCurrentTerm, Session: testSession,
	}, nil)
	assertReply(t, res, "The current term is Term 2.")
}

func TestService_HandleTurn_guardianFlow(t *testing.T) {
	ctx := context.Background()
	backend := dummyadmin.NewBackend()
	year, _ := backend.SetSetup("2026", "Term 1")
	svc := NewService(backend, testLogger)

	cls, err := backend.CreateClass(ctx, testSession, admin.NewClass{Name: "Class 8", Level: "Class 8", YearID: year.ID})
	if err != nil {
		t.Fatalf("CreateClass() error = %v", err)
	}
	if _, err = backend.CreateStudent(ctx, testSession, admin.NewStudent{
		AdmissionNo: "ADM001", FirstName: "Joshua", LastName: "Mwangi", ClassID: cls.ID,
	}); err != nil {
		t.Fatalf("CreateStudent() error = %v", err)
	}

	var slots Slots
	res, slots := turn(t, svc, Utterance{
		Text: "add a guardian", Intent: IntentAddGuardian, Session: testSession,
	}, slots)
	assertReply(t, res, "Which student is this guardian for? A name or admission number works.")

	res, slots = turn(t, svc, Utterance{Text: "ADM001", Session: testSession}, slots)
	assertReply(t, res, "Got it — Joshua Mwangi (ADM001).")
	assertReply(t, res, "What is the guardian's full name?")

	res, slots = turn(t, svc, Utterance{Text: "Grace Mwangi", Session: testSession}, slots)
	assertReply(t, res, "What is the guardian's phone number?")

	// separators are tolerated
	res, slots = turn(t, svc, Utterance{Text: "0712 345 678", Session: testSession}, slots)
	assertReply(t, res, "What is their relationship to the student? (mother, father, guardian, ...)")

	res, slots = turn(t, svc, Utterance{Text: "mother", Session: testSession}, slots)
	assertReply(t, res, "Grace Mwangi (Mother, 0712345678) is now a guardian on record.")
	if len(slots) != 0 {
		t.Errorf("slots survived completion: %v", slots)
	}

	res, _ = turn(t, svc, Utterance{
		Text:     "list guardians of ADM001",
		Intent:   IntentListGuardians,
		Entities: map[string]string{EntityAdmissionNo: "ADM001"},
		Session:  testSession,
	}, nil)
	assertReply(t, res, "Guardians of Joshua Mwangi:\n- Grace Mwangi (Mother, 0712345678)")
}

// A bare "8 blue" is a valid class reference: the number is the level.
func TestService_HandleTurn_createClassBareLevel(t *testing.T) {
	backend := dummyadmin.NewBackend()
	backend.SetSetup("2026", "Term 1")
	svc := NewService(backend, testLogger)

	res, _ := turn(t, svc, Utterance{
		Text: "8 blue", Intent: IntentCreateClass, Session: testSession,
	}, nil)
	assertReply(t, res, "Created 8 for 2026.")
	assertReply(t, res, "Added streams: Blue.")
	assertReply(t, res, "8 now has streams: Blue.")
}

// From an empty school, the whole academic setup can be bootstrapped in
// conversation: year, term, activation of both.
func TestService_HandleTurn_yearBootstrap(t *testing.T) {
	backend := dummyadmin.NewBackend() // no setup at all
	svc := NewService(backend, testLogger)

	res, _ := turn(t, svc, Utterance{
		Text: "create year 2026", Intent: IntentCreateYear, Session: testSession,
	}, nil)
	assertReply(t, res, "Created academic year 2026. Say 'activate year 2026' to make it active.")

	// creating it again conflicts
	res, _ = turn(t, svc, Utterance{
		Text: "create year 2026", Intent: IntentCreateYear, Session: testSession,
	}, nil)
	assertReply(t, res, "Academic year 2026 already exists.")

	res, _ = turn(t, svc, Utterance{
		Text: "activate year 2026", Intent: IntentActivateYear, Session: testSession,
	}, nil)
	assertReply(t, res, "Academic year 2026 is now active. Next: create a term ('create term 1') and activate it.")

	res, _ = turn(t, svc, Utterance{
		Text: "list years", Intent: IntentListYears, Session: testSession,
	}, nil)
	assertReply(t, res, "Academic years:\n- 2026 (active)")

	res, _ = turn(t, svc, Utterance{
		Text: "create term 1", Intent: IntentCreateTerm, Session: testSession,
	}, nil)
	assertReply(t, res, "Created Term 1 for 2026. Say 'activate term 1' to make it current.")

	res, _ = turn(t, svc, Utterance{
		Text: "activate term 1", Intent: IntentActivateTerm, Session: testSession,
	}, nil)
	assertReply(t, res, "Term 1 is now the current term.")

	res, _ = turn(t, svc, Utterance{
		Text: "check setup", Intent: IntentCheckAcademicSetup, Session: testSession,
	}, nil)
	assertReply(t, res, "All set: academic year 2026 is active and the current term is Term 1.")
}

func TestService_HandleTurn_activateMissingYear(t *testing.T) {
	backend := dummyadmin.NewBackend()
	svc := NewService(backend, testLogger)

	res, _ := turn(t, svc, Utterance{
		Text: "activate year 2027", Intent: IntentActivateYear, Session: testSession,
	}, nil)
	assertReply(t, res, "I don't see academic year 2027. Create it first with 'create year 2027'.")
}

func TestService_HandleTurn_updateGuardian(t *testing.T) {
	ctx := context.Background()
	backend := dummyadmin.NewBackend()
	year, _ := backend.SetSetup("2026", "Term 1")
	svc := NewService(backend, testLogger)

	cls, err := backend.CreateClass(ctx, testSession, admin.NewClass{Name: "Class 8", Level: "Class 8", YearID: year.ID})
	if err != nil {
		t.Fatalf("CreateClass() error = %v", err)
	}
	student, err := backend.CreateStudent(ctx, testSession, admin.NewStudent{
		AdmissionNo: "ADM001", FirstName: "Joshua", LastName: "Mwangi", ClassID: cls.ID,
	})
	if err != nil {
		t.Fatalf("CreateStudent() error = %v", err)
	}
	if _, err = backend.AddGuardian(ctx, testSession, admin.NewGuardian{
		StudentID: student.ID, Name: "Grace Mwangi", Phone: "0712345678", Relationship: "Mother",
	}); err != nil {
		t.Fatalf("AddGuardian() error = %v", err)
	}

	// a lone guardian needs no name; separators in the phone are tolerated
	res, _ := turn(t, svc, Utterance{
		Text:     "update the guardian of ADM001, new number 0722 000 111",
		Intent:   IntentUpdateGuardian,
		Entities: map[string]string{EntityAdmissionNo: "ADM001", EntityPhone: "0722 000 111"},
		Session:  testSession,
	}, nil)
	assertReply(t, res, "Updated Grace Mwangi: Mother, 0722000111.")

	guardians, err := backend.StudentGuardians(ctx, testSession, student.ID)
	if err != nil {
		t.Fatalf("StudentGuardians() error = %v", err)
	}
	if len(guardians) != 1 || guardians[0].Phone != "0722000111" {
		t.Errorf("backend guardians = %+v; want one with phone 0722000111", guardians)
	}

	// nothing to change: ask instead of calling the backend
	res, _ = turn(t, svc, Utterance{
		Text:     "update guardian of ADM001",
		Intent:   IntentUpdateGuardian,
		Entities: map[string]string{EntityAdmissionNo: "ADM001"},
		Session:  testSession,
	}, nil)
	assertReply(t, res, "What should I change for Grace Mwangi? Give me the new phone number or relationship.")
}

func TestService_HandleTurn_fallback(t *testing.T) {
	backend := dummyadmin.NewBackend()
	backend.SetSetup("2026", "Term 1")
	svc := NewService(backend, testLogger)

	res, _ := turn(t, svc, Utterance{Text: "flibber", Session: testSession}, nil)
	assertReply(t, res, msgFallback)
}
