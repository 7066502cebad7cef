package bot

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/shulebot/shulebot/core"
	"github.com/shulebot/shulebot/core/admin"
)

var (
	phoneSeparators = regexp.MustCompile(`[\s\-().]`)
	phoneRegex      = regexp.MustCompile(`^\+?\d{9,15}$`)

	relationships = map[string]struct{}{
		"mother": {}, "father": {}, "guardian": {}, "aunt": {}, "uncle": {},
		"brother": {}, "sister": {}, "grandmother": {}, "grandfather": {},
		"other": {},
	}
)

// guardianForm builds the guardian-creation form:
// student -> guardian name -> phone -> relationship.
func (s *Service) guardianForm() *Form {
	return &Form{
		Name: guardianFormName,
		Slots: []SlotSpec{
			{
				Name:     SlotGuardianStudent,
				Entity:   EntityAdmissionNo,
				Prompt:   "Which student is this guardian for? A name or admission number works.",
				Validate: s.validateGuardianStudent,
			},
			{
				Name:     SlotGuardianName,
				Entity:   EntityName,
				Prompt:   "What is the guardian's full name?",
				Validate: validatePersonName("guardian"),
			},
			{
				Name:     SlotGuardianPhone,
				Entity:   EntityPhone,
				Prompt:   "What is the guardian's phone number?",
				Validate: validatePhone,
			},
			{
				Name:     SlotGuardianRelation,
				Entity:   EntityRelation,
				Prompt:   "What is their relationship to the student? (mother, father, guardian, ...)",
				Validate: validateRelationship,
			},
		},
	}
}

// validateGuardianStudent resolves the student reference to exactly
// one student and stores the student id; several matches ask the user
// to disambiguate without attempting anything.
func (s *Service) validateGuardianStudent(ctx context.Context, utt Utterance, proposed string, _ Slots) (Validation, error) {
	query := core.CleanString(proposed)
	if query == "" {
		return Validation{Replies: []string{"I need a student name or admission number."}}, nil
	}

	students, err := s.client.SearchStudents(ctx, utt.Session, admin.StudentQuery{Search: query})
	if err != nil {
		return Validation{}, errors.Wrap(err, "searching students")
	}
	switch len(students) {
	case 0:
		return Validation{Replies: []string{fmt.Sprintf("No students match %q.", query)}}, nil
	case 1:
		return Validation{
			Accept:  true,
			Value:   strconv.Itoa(students[0].ID),
			Replies: []string{fmt.Sprintf("Got it — %s (%s).", students[0].FullName(), students[0].AdmissionNo)},
		}, nil
	}
	return Validation{Replies: []string{
		fmt.Sprintf("%q matches several students — give me the admission number instead:", query),
		formatStudents(students, 10),
	}}, nil
}

func validatePhone(_ context.Context, _ Utterance, proposed string, _ Slots) (Validation, error) {
	phone := phoneSeparators.ReplaceAllString(core.CleanString(proposed), "")
	if !phoneRegex.MatchString(phone) {
		return Validation{Replies: []string{
			"That doesn't look like a phone number — digits only, e.g. '0712 345 678'.",
		}}, nil
	}
	return Validation{Accept: true, Value: phone}, nil
}

func validateRelationship(_ context.Context, _ Utterance, proposed string, _ Slots) (Validation, error) {
	rel := core.CleanString(proposed, true)
	if _, ok := relationships[rel]; !ok {
		return Validation{Replies: []string{
			"Please pick one of: mother, father, guardian, aunt, uncle, brother, sister, grandmother, grandfather, other.",
		}}, nil
	}
	return Validation{Accept: true, Value: title(rel)}, nil
}

func (s *Service) handleAddGuardian(ctx context.Context, utt Utterance, slots Slots) Result {
	form := s.forms[guardianFormName]

	out := form.Activate(utt, slots)
	if out.Status != FormComplete {
		return Result{Replies: out.Replies, Delta: out.Delta}
	}

	res := s.dispatchAddGuardian(ctx, utt, out.Values)
	out.Delta.merge(res.Delta)
	res.Delta = out.Delta
	res.Replies = append(out.Replies, res.Replies...)
	return res
}

func (s *Service) dispatchAddGuardian(ctx context.Context, utt Utterance, values Slots) Result {
	form := s.forms[guardianFormName]

	studentID, err := strconv.Atoi(values.Get(SlotGuardianStudent))
	if err != nil {
		// the slot was prefilled with a raw reference; re-collect it
		var res Result
		res.reply("Let's double-check the student.")
		res.Delta.clear(SlotGuardianStudent)
		res.reply(form.Prompt(res.Delta.Apply(values)))
		return res
	}

	guardian, err := s.client.AddGuardian(ctx, utt.Session, admin.NewGuardian{
		StudentID:    studentID,
		Name:         values.Get(SlotGuardianName),
		Phone:        values.Get(SlotGuardianPhone),
		Relationship: values.Get(SlotGuardianRelation),
	})
	if err != nil {
		if errors.Cause(err) == admin.ErrConflict {
			res := Result{Replies: []string{"That guardian is already registered for this student."}}
			res.Delta.merge(form.Reset())
			return res
		}
		return s.errorResult(errors.Wrap(err, "adding guardian"))
	}

	res := Result{Replies: []string{fmt.Sprintf(
		"%s (%s, %s) is now a guardian on record.",
		guardian.Name, guardian.Relationship, guardian.Phone,
	)}}
	res.Delta.merge(form.Reset())
	return res
}

// handleUpdateGuardian changes the phone number or relationship of a
// guardian already on record. The student reference picks the record
// set; the guardian is matched by name, or taken as-is when the
// student has exactly one.
func (s *Service) handleUpdateGuardian(ctx context.Context, utt Utterance) Result {
	student, stop := s.findOneStudent(ctx, utt)
	if stop != nil {
		return *stop
	}

	guardians, err := s.client.StudentGuardians(ctx, utt.Session, student.ID)
	if err != nil {
		return s.errorResult(errors.Wrap(err, "listing guardians"))
	}
	if len(guardians) == 0 {
		return Result{Replies: []string{fmt.Sprintf(
			"%s has no guardians on record. Say 'add a guardian' first.", student.FullName(),
		)}}
	}

	guardian, found := matchGuardian(guardians, utt.Entity(EntityName))
	if !found {
		lines := []string{fmt.Sprintf("Which guardian of %s? I have:", student.FullName())}
		for _, g := range guardians {
			lines = append(lines, fmt.Sprintf("- %s (%s)", g.Name, g.Relationship))
		}
		return Result{Replies: []string{strings.Join(lines, "\n")}}
	}

	var update admin.GuardianUpdate
	if p := utt.Entity(EntityPhone); p != "" {
		phone := phoneSeparators.ReplaceAllString(core.CleanString(p), "")
		if !phoneRegex.MatchString(phone) {
			return Result{Replies: []string{
				"That doesn't look like a phone number; digits only, e.g. '0712 345 678'.",
			}}
		}
		update.Phone = phone
	}
	if r := utt.Entity(EntityRelation); r != "" {
		rel := core.CleanString(r, true)
		if _, ok := relationships[rel]; !ok {
			return Result{Replies: []string{
				"Please pick one of: mother, father, guardian, aunt, uncle, brother, sister, grandmother, grandfather, other.",
			}}
		}
		update.Relationship = title(rel)
	}
	if update == (admin.GuardianUpdate{}) {
		return Result{Replies: []string{fmt.Sprintf(
			"What should I change for %s? Give me the new phone number or relationship.", guardian.Name,
		)}}
	}

	updated, err := s.client.UpdateGuardian(ctx, utt.Session, guardian.ID, update)
	if err != nil {
		return s.errorResult(errors.Wrap(err, "updating guardian"))
	}
	return Result{Replies: []string{fmt.Sprintf(
		"Updated %s: %s, %s.", updated.Name, updated.Relationship, updated.Phone,
	)}}
}

// matchGuardian picks the guardian the turn refers to; a lone guardian
// needs no name.
func matchGuardian(guardians []admin.Guardian, name string) (admin.Guardian, bool) {
	if name == "" {
		if len(guardians) == 1 {
			return guardians[0], true
		}
		return admin.Guardian{}, false
	}
	for _, g := range guardians {
		if strings.EqualFold(g.Name, name) {
			return g, true
		}
	}
	return admin.Guardian{}, false
}

func (s *Service) handleListGuardians(ctx context.Context, utt Utterance) Result {
	student, stop := s.findOneStudent(ctx, utt)
	if stop != nil {
		return *stop
	}

	guardians, err := s.client.StudentGuardians(ctx, utt.Session, student.ID)
	if err != nil {
		return s.errorResult(errors.Wrap(err, "listing guardians"))
	}
	if len(guardians) == 0 {
		return Result{Replies: []string{fmt.Sprintf("%s has no guardians on record.", student.FullName())}}
	}

	lines := make([]string, 0, len(guardians)+1)
	lines = append(lines, fmt.Sprintf("Guardians of %s:", student.FullName()))
	for _, g := range guardians {
		lines = append(lines, fmt.Sprintf("- %s (%s, %s)", g.Name, g.Relationship, g.Phone))
	}
	return Result{Replies: []string{strings.Join(lines, "\n")}}
}
