package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/shulebot/shulebot/core"
	"github.com/shulebot/shulebot/core/admin"
)

const (
	// AdmissionAuto marks an admission-number slot the dispatcher must
	// fill with a generated code.
	AdmissionAuto = "AUTO"

	maxAdmissionLen = 10
)

var (
	phoneTokenRegex = regexp.MustCompile(`^[\d+()\-./]+$`)
	admissionRegex  = regexp.MustCompile(`^[A-Z0-9/-]+$`)
	searchNoise     = regexp.MustCompile(`(?i)\b(find|search|look\s*up|show|me|student|students|named|called|for)\b`)

	autoAdmissionWords = map[string]struct{}{
		"auto": {}, "auto generate": {}, "auto-generate": {}, "autogenerate": {},
		"generate": {}, "generate one": {}, "any": {}, "system": {},
	}
)

// studentForm builds the student-creation form:
// name -> admission number -> class.
func (s *Service) studentForm() *Form {
	return &Form{
		Name: studentFormName,
		Slots: []SlotSpec{
			{
				Name:     SlotStudentName,
				Entity:   EntityStudentName,
				Prompt:   "What is the student's full name?",
				Validate: validatePersonName("student"),
			},
			{
				Name:     SlotAdmissionNo,
				Entity:   EntityAdmissionNo,
				Prompt:   "What admission number should I use? Say 'auto' and I'll generate one.",
				Validate: validateAdmissionNo,
			},
			{
				Name:     SlotClassName,
				Entity:   EntityClassName,
				Prompt:   "Which class is the student joining?",
				Validate: s.validateClassSlot,
			},
		},
	}
}

// validatePersonName requires at least two whitespace-separated tokens
// and rejects tokens that look like phone numbers or email addresses.
// The full token sequence is preserved: first token is the given name,
// the rest become the family name.
func validatePersonName(who string) Validator {
	return func(_ context.Context, _ Utterance, proposed string, _ Slots) (Validation, error) {
		tokens := strings.Fields(core.CleanString(proposed))
		if len(tokens) < 2 {
			return Validation{Replies: []string{
				fmt.Sprintf("I need the %s's full name — at least two names, e.g. 'Joshua Mwangi'.", who),
			}}, nil
		}
		for _, tok := range tokens {
			if strings.Contains(tok, "@") || phoneTokenRegex.MatchString(tok) {
				return Validation{Replies: []string{
					fmt.Sprintf("That doesn't look like a person's name. Please give the %s's full name.", who),
				}}, nil
			}
		}
		return Validation{Accept: true, Value: strings.Join(tokens, " ")}, nil
	}
}

func validateAdmissionNo(_ context.Context, _ Utterance, proposed string, _ Slots) (Validation, error) {
	s := core.CleanString(proposed)
	if _, ok := autoAdmissionWords[strings.ToLower(s)]; ok {
		return Validation{Accept: true, Value: AdmissionAuto,
			Replies: []string{"Alright, I'll generate an admission number."}}, nil
	}

	up := strings.ToUpper(strings.ReplaceAll(s, "#", ""))
	if len(up) > maxAdmissionLen {
		return Validation{Replies: []string{
			fmt.Sprintf("That's too long — admission numbers have at most %d characters.", maxAdmissionLen),
		}}, nil
	}
	if !admissionRegex.MatchString(up) {
		return Validation{Replies: []string{
			"Admission numbers can only contain letters and digits (a '#' prefix is fine).",
		}}, nil
	}
	return Validation{Accept: true, Value: up}, nil
}

// validateClassSlot normalizes the proposed class and checks it against
// the current year's known classes and level+stream composites. An
// unknown class is not accepted outright: the user is warned it will
// be auto-created and must enter it again to confirm, so a typo cannot
// silently mint a new class.
func (s *Service) validateClassSlot(ctx context.Context, utt Utterance, proposed string, slots Slots) (Validation, error) {
	name := NormalizeClassName(proposed)
	if name == "" {
		return Validation{Replies: []string{"Please give me a class, e.g. 'grade 8' or 'grade 8 blue'."}}, nil
	}

	setup, err := s.resolver.CurrentSetup(ctx, utt.Session)
	if err != nil {
		return Validation{}, err
	}
	var known map[string]string
	if setup.Year != nil {
		if known, err = s.knownClassNames(ctx, utt.Session, setup.Year.ID); err != nil {
			return Validation{}, err
		}
		if canonical, ok := known[strings.ToLower(name)]; ok {
			var v Validation
			v.Accept = true
			v.Value = canonical
			v.Delta.clear(SlotClassName + unconfirmedSuffix)
			return v, nil
		}
	}

	if slots.Get(SlotClassName+unconfirmedSuffix) == name {
		var v Validation
		v.Accept = true
		v.Value = name
		v.Delta.clear(SlotClassName + unconfirmedSuffix)
		v.Replies = []string{fmt.Sprintf("Okay, %s will be created.", name)}
		return v, nil
	}

	var v Validation
	v.Delta.set(SlotClassName+unconfirmedSuffix, name)
	v.Replies = []string{fmt.Sprintf(
		"I don't know %s for this year — it will be created automatically. Enter the class once more to confirm.", name,
	)}
	if suggestion := closestClassName(name, known); suggestion != "" {
		v.Replies = append(v.Replies, fmt.Sprintf("Did you mean %s?", suggestion))
	}
	return v, nil
}

// classSuggestionRatio is the minimum similarity for a "did you mean"
// suggestion on an unknown class name.
const classSuggestionRatio = 0.75

// closestClassName returns the known class name most similar to the
// given one, or "" when nothing comes close enough.
func closestClassName(name string, known map[string]string) string {
	var best string
	var bestRatio float64
	low := strings.Split(strings.ToLower(name), "")
	for _, display := range known {
		ratio := difflib.NewMatcher(low, strings.Split(strings.ToLower(display), "")).QuickRatio()
		if ratio > bestRatio {
			best, bestRatio = display, ratio
		}
	}
	if bestRatio < classSuggestionRatio {
		return ""
	}
	return best
}

// knownClassNames maps the current year's class names, levels and
// "level stream" composites (lower-cased) to their display form.
func (s *Service) knownClassNames(ctx context.Context, sess admin.Session, yearID int) (map[string]string, error) {
	classes, err := s.client.SearchClasses(ctx, sess, admin.ClassQuery{YearID: yearID})
	if err != nil {
		return nil, errors.Wrap(err, "listing classes")
	}

	known := make(map[string]string)
	for _, cls := range classes {
		known[strings.ToLower(cls.Name)] = cls.Name
		if cls.Level != "" {
			known[strings.ToLower(cls.Level)] = cls.Name
		}
		streams, err := s.client.ListStreams(ctx, sess, cls.ID)
		if err != nil {
			return nil, errors.Wrap(err, "listing streams")
		}
		for _, st := range streams {
			composite := cls.Name + " " + st.Name
			known[strings.ToLower(composite)] = composite
			if cls.Level != "" && !strings.EqualFold(cls.Level, cls.Name) {
				known[strings.ToLower(cls.Level+" "+st.Name)] = composite
			}
		}
	}
	return known, nil
}

// handleCreateStudent opens the student form. Registration needs a
// complete academic setup; without it the user gets the setup steps
// and any collected slots are cleared.
func (s *Service) handleCreateStudent(ctx context.Context, utt Utterance, slots Slots) Result {
	form := s.forms[studentFormName]

	if _, stop := s.requireSetup(ctx, utt.Session); stop != nil {
		res := *stop
		res.Delta.merge(form.Reset())
		return res
	}

	out := form.Activate(utt, slots)
	if out.Status != FormComplete {
		return Result{Replies: out.Replies, Delta: out.Delta}
	}

	res := s.dispatchCreateStudent(ctx, utt, out.Values)
	out.Delta.merge(res.Delta)
	res.Delta = out.Delta
	res.Replies = append(out.Replies, res.Replies...)
	return res
}

// classNameParts splits a stored class slot into (level, stream).
func classNameParts(name string) (string, string) {
	if lvl, st := ParseLevelAndStream(name); lvl != "" {
		return NormalizeLevelLabel(lvl), st
	}
	return NormalizeLevelLabel(name), ""
}

// dispatchCreateStudent is the terminal operation of the student form:
// resolve the class, create the student, enroll them in the current
// term. Conflicts clear only the offending slot; transport failures
// preserve everything for a retry.
func (s *Service) dispatchCreateStudent(ctx context.Context, utt Utterance, values Slots) Result {
	sess := utt.Session
	form := s.forms[studentFormName]

	setup, stop := s.requireSetup(ctx, sess)
	if stop != nil {
		res := *stop
		res.Delta.merge(form.Reset())
		return res
	}

	admission := values.Get(SlotAdmissionNo)
	var generated bool
	if admission == AdmissionAuto {
		admission = fmt.Sprintf("%06d", nowFunc().Unix()%1000000)
		generated = true
	}

	level, stream := classNameParts(values.Get(SlotClassName))
	cls, _, err := s.resolver.ResolveClass(ctx, sess, level, setup.Year.ID)
	if err != nil {
		return s.errorResult(err)
	}
	if stream != "" {
		if _, err = s.resolver.EnsureStream(ctx, sess, cls, stream); err != nil {
			return s.errorResult(err)
		}
	}

	tokens := strings.Fields(values.Get(SlotStudentName))
	student, err := s.client.CreateStudent(ctx, sess, admin.NewStudent{
		AdmissionNo: admission,
		FirstName:   tokens[0],
		LastName:    strings.Join(tokens[1:], " "),
		ClassID:     cls.ID,
	})
	if err != nil {
		switch cause := errors.Cause(err); {
		case cause == admin.ErrConflict:
			var res Result
			res.reply(fmt.Sprintf("Admission number %s is already taken — give me a different one.", admission))
			res.Delta.clear(SlotAdmissionNo)
			res.reply(form.Prompt(res.Delta.Apply(values)))
			return res
		default:
			if vErr, ok := cause.(*core.ValidationError); ok {
				res := s.errorResult(vErr)
				res.Delta.merge(s.clearRejectedStudentSlots(vErr))
				if prompt := form.Prompt(res.Delta.Apply(values)); prompt != "" {
					res.reply(prompt)
				}
				return res
			}
			return s.errorResult(errors.Wrap(err, "creating student"))
		}
	}

	display := cls.Name
	if stream != "" {
		display += " " + stream
	}

	var res Result
	res.reply(fmt.Sprintf(
		"Student %s registered with admission number %s in %s.",
		student.FullName(), student.AdmissionNo, display,
	))
	if generated {
		res.reply(fmt.Sprintf("Keep a note of the generated admission number: %s.", student.AdmissionNo))
	}

	if _, err = s.client.CreateEnrollment(ctx, sess, admin.NewEnrollment{
		StudentID: student.ID, ClassID: cls.ID, TermID: setup.Term.ID,
	}); err != nil {
		if errors.Cause(err) == admin.ErrConflict {
			res.reply(fmt.Sprintf("They already hold an enrollment for %s.", setup.Term.Name))
		} else {
			s.logger.Warn("enrollment after registration failed", errors.Wrap(err, "creating enrollment"))
			res.reply("I couldn't enroll them for the current term though — say 'enroll student' to retry.")
		}
	} else {
		res.reply(fmt.Sprintf("They are enrolled for %s.", setup.Term.Name))
	}

	res.Delta.merge(form.Reset())
	return res
}

// clearRejectedStudentSlots maps backend field rejections to the slots
// that must be re-collected; all other slots keep their values.
func (s *Service) clearRejectedStudentSlots(vErr *core.ValidationError) SlotDelta {
	var d SlotDelta
	for _, f := range vErr.Fields {
		switch f.Field {
		case "admission_number":
			d.clear(SlotAdmissionNo)
		case "first_name", "last_name":
			d.clear(SlotStudentName)
		case "class_id":
			d.clear(SlotClassName)
		}
	}
	if len(d.Clear) == 0 { // unattributed rejection: start over
		d = s.forms[studentFormName].Reset()
	}
	return d
}

func (s *Service) handleSearchStudent(ctx context.Context, utt Utterance) Result {
	query := core.CleanString(utt.Entity(EntityStudentName))
	if query == "" {
		query = core.CleanString(utt.Entity(EntityAdmissionNo))
	}
	if query == "" {
		query = core.CleanString(searchNoise.ReplaceAllString(utt.Text, " "))
		query = strings.Join(strings.Fields(query), " ")
	}
	if query == "" {
		return Result{Replies: []string{"Who am I looking for? A name or admission number works."}}
	}

	students, err := s.client.SearchStudents(ctx, utt.Session, admin.StudentQuery{Search: query})
	if err != nil {
		return s.errorResult(errors.Wrap(err, "searching students"))
	}
	if len(students) == 0 {
		return Result{Replies: []string{fmt.Sprintf("No students match %q.", query)}}
	}
	return Result{Replies: []string{
		fmt.Sprintf("Found %d:", len(students)),
		formatStudents(students, 10),
	}}
}

func (s *Service) handleListStudents(ctx context.Context, utt Utterance) Result {
	students, err := s.client.SearchStudents(ctx, utt.Session, admin.StudentQuery{})
	if err != nil {
		return s.errorResult(errors.Wrap(err, "listing students"))
	}
	if len(students) == 0 {
		return Result{Replies: []string{"No students registered yet."}}
	}
	return Result{Replies: []string{
		fmt.Sprintf("There are %d students:", len(students)),
		formatStudents(students, 15),
	}}
}

func (s *Service) handleListStudentsByClass(ctx context.Context, utt Utterance) Result {
	level, _ := classRef(utt)
	if level == "" {
		return Result{Replies: []string{"Which class? For example: 'list students in grade 8'."}}
	}

	setup, stop := s.requireSetup(ctx, utt.Session)
	if stop != nil {
		return *stop
	}

	cls, err := s.resolver.FindClass(ctx, utt.Session, level, setup.Year.ID)
	if err != nil {
		if errors.Cause(err) == admin.ErrNotFound {
			return Result{Replies: []string{fmt.Sprintf("I don't know %s for %s.", level, setup.Year.Name)}}
		}
		return s.errorResult(err)
	}

	students, err := s.client.SearchStudents(ctx, utt.Session, admin.StudentQuery{ClassID: cls.ID})
	if err != nil {
		return s.errorResult(errors.Wrap(err, "listing students by class"))
	}
	if len(students) == 0 {
		return Result{Replies: []string{fmt.Sprintf("%s has no students yet.", cls.Name)}}
	}
	return Result{Replies: []string{
		fmt.Sprintf("%s has %d students:", cls.Name, len(students)),
		formatStudents(students, 15),
	}}
}

func (s *Service) handleListUnassignedStudents(ctx context.Context, utt Utterance) Result {
	students, err := s.client.SearchStudents(ctx, utt.Session, admin.StudentQuery{Unassigned: true})
	if err != nil {
		return s.errorResult(errors.Wrap(err, "listing unassigned students"))
	}
	if len(students) == 0 {
		return Result{Replies: []string{"Every student has an active enrollment."}}
	}
	return Result{Replies: []string{
		fmt.Sprintf("%d students have no active enrollment:", len(students)),
		formatStudents(students, 15),
	}}
}

func (s *Service) handleEnrollStudent(ctx context.Context, utt Utterance) Result {
	student, stop := s.findOneStudent(ctx, utt)
	if stop != nil {
		return *stop
	}

	level, _ := classRef(utt)
	if level == "" {
		return Result{Replies: []string{
			fmt.Sprintf("Which class should %s join? For example: 'enroll %s in grade 8'.",
				student.FullName(), student.AdmissionNo),
		}}
	}

	setup, stop := s.requireSetup(ctx, utt.Session)
	if stop != nil {
		return *stop
	}

	cls, err := s.resolver.FindClass(ctx, utt.Session, level, setup.Year.ID)
	if err != nil {
		if errors.Cause(err) == admin.ErrNotFound {
			return Result{Replies: []string{fmt.Sprintf(
				"There's no %s for %s yet — create it first.", level, setup.Year.Name)}}
		}
		return s.errorResult(err)
	}

	if _, err = s.client.CreateEnrollment(ctx, utt.Session, admin.NewEnrollment{
		StudentID: student.ID, ClassID: cls.ID, TermID: setup.Term.ID,
	}); err != nil {
		if errors.Cause(err) == admin.ErrConflict {
			return Result{Replies: []string{fmt.Sprintf(
				"%s already has an active enrollment for %s.", student.FullName(), setup.Term.Name)}}
		}
		return s.errorResult(errors.Wrap(err, "creating enrollment"))
	}
	return Result{Replies: []string{fmt.Sprintf(
		"%s is enrolled in %s for %s.", student.FullName(), cls.Name, setup.Term.Name)}}
}

// findOneStudent resolves this turn's student reference to exactly one
// student; zero or several matches stop the operation with a reply.
func (s *Service) findOneStudent(ctx context.Context, utt Utterance) (admin.Student, *Result) {
	query := core.CleanString(utt.Entity(EntityAdmissionNo))
	if query == "" {
		query = core.CleanString(utt.Entity(EntityStudentName))
	}
	if query == "" {
		res := Result{Replies: []string{"Which student? A name or admission number works."}}
		return admin.Student{}, &res
	}

	students, err := s.client.SearchStudents(ctx, utt.Session, admin.StudentQuery{Search: query})
	if err != nil {
		res := s.errorResult(errors.Wrap(err, "searching students"))
		return admin.Student{}, &res
	}
	switch len(students) {
	case 0:
		res := Result{Replies: []string{fmt.Sprintf("No students match %q.", query)}}
		return admin.Student{}, &res
	case 1:
		return students[0], nil
	}
	res := Result{Replies: []string{
		fmt.Sprintf("%q matches several students — which one?", query),
		formatStudents(students, 10),
	}}
	return admin.Student{}, &res
}

func formatStudents(students []admin.Student, max int) string {
	lines := make([]string, 0, len(students))
	for i, st := range students {
		if i == max {
			lines = append(lines, fmt.Sprintf("... and %d more", len(students)-max))
			break
		}
		lines = append(lines, fmt.Sprintf("- %s — %s", st.AdmissionNo, st.FullName()))
	}
	return strings.Join(lines, "\n")
}
