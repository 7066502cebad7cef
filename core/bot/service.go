package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/shulebot/shulebot/core"
	"github.com/shulebot/shulebot/core/admin"
)

var nowFunc = time.Now // mockable

const (
	studentFormName  = "student_form"
	guardianFormName = "guardian_form"

	msgAuthRequired  = "I can't reach your school account. Please sign in again before we continue."
	msgNotAuthorized = "Your session is no longer authorized. Please sign in again."
	msgUnavailable   = "I couldn't reach the school system just now. Nothing was lost — please try again in a moment."
	msgUnexpected    = "Something went wrong on my side. Please try again."
	msgCancelled     = "Okay, I've cancelled that. What else can I do for you?"
	msgFallback      = "Sorry, I didn't get that. Say 'help' to see what I can do."
)

// interruptionIntents may be serviced inline while a form is
// collecting; the pending slot is re-prompted afterwards.
var interruptionIntents = map[string]struct{}{
	IntentListClasses:        {},
	IntentListStudents:       {},
	IntentCheckAcademicSetup: {},
	IntentGetCurrentTerm:     {},
	IntentListYears:          {},
	IntentAskHelp:            {},
	IntentSearchStudent:      {},
}

var cancelPhrases = []string{"cancel", "stop", "never mind", "nevermind", "forget it", "quit"}

// Service is the action dispatcher: it receives one classified turn
// plus the conversation's slot snapshot and produces replies and a
// slot delta. One conversation is processed one turn at a time; the
// Service itself holds no per-conversation state.
type Service struct {
	client    admin.Client
	logger    core.Logger
	resolver  *Resolver
	extractor *Extractor
	forms     map[string]*Form
}

func NewService(client admin.Client, logger core.Logger, extraStreamWords ...string) *Service {
	s := &Service{
		client:    client,
		logger:    logger,
		resolver:  NewResolver(client, logger),
		extractor: NewExtractor(extraStreamWords...),
	}
	s.forms = map[string]*Form{
		studentFormName:  s.studentForm(),
		guardianFormName: s.guardianForm(),
	}
	return s
}

// HandleTurn runs one turn of the conversation. The returned error is
// reserved for programming errors; expected failures (backend down,
// invalid input, conflicts) are translated into user-facing replies.
func (s *Service) HandleTurn(ctx context.Context, utt Utterance, slots Slots) (Result, error) {
	// fail fast: nothing may be resolved without credentials
	if !utt.Session.Authenticated() {
		return Result{Replies: []string{msgAuthRequired}}, nil
	}

	if active := slots.Get(SlotActiveForm); active != "" {
		if form, ok := s.forms[active]; ok {
			return s.continueForm(ctx, form, utt, slots), nil
		}
		// stale pointer from an older build; drop it and dispatch normally
		res := s.dispatch(ctx, utt, slots)
		res.Delta.clear(SlotActiveForm)
		return res, nil
	}
	return s.dispatch(ctx, utt, slots), nil
}

func (s *Service) continueForm(ctx context.Context, form *Form, utt Utterance, slots Slots) Result {
	if utt.Intent == IntentCancelForm || isCancelText(utt.Text) {
		return Result{Replies: []string{msgCancelled}, Delta: form.Reset()}
	}

	// a recognized unrelated intent is serviced inline, then we come
	// back to the slot being collected; collected slots are untouched
	if _, ok := interruptionIntents[utt.Intent]; ok {
		res := s.dispatch(ctx, utt, slots)
		if prompt := form.Prompt(slots); prompt != "" {
			res.reply("Now, back to where we were. " + prompt)
		}
		return res
	}

	out, err := form.Step(ctx, utt, slots)
	if err != nil {
		return s.errorResult(err)
	}
	if out.Status != FormComplete {
		return Result{Replies: out.Replies, Delta: out.Delta}
	}

	res := s.completeForm(ctx, form, utt, out.Values)
	// the delta that validated the final slot must still be applied so
	// a conflict re-prompt starts from a consistent snapshot
	out.Delta.merge(res.Delta)
	res.Delta = out.Delta
	res.Replies = append(out.Replies, res.Replies...)
	return res
}

func (s *Service) completeForm(ctx context.Context, form *Form, utt Utterance, values Slots) Result {
	switch form.Name {
	case studentFormName:
		return s.dispatchCreateStudent(ctx, utt, values)
	case guardianFormName:
		return s.dispatchAddGuardian(ctx, utt, values)
	}
	return Result{Replies: []string{msgUnexpected}, Delta: form.Reset()}
}

func (s *Service) dispatch(ctx context.Context, utt Utterance, slots Slots) Result {
	switch utt.Intent {
	case IntentCreateStudent:
		return s.handleCreateStudent(ctx, utt, slots)
	case IntentSearchStudent:
		return s.handleSearchStudent(ctx, utt)
	case IntentListStudents:
		return s.handleListStudents(ctx, utt)
	case IntentListStudentsByClass:
		return s.handleListStudentsByClass(ctx, utt)
	case IntentListUnassignedStudents:
		return s.handleListUnassignedStudents(ctx, utt)
	case IntentEnrollStudent:
		return s.handleEnrollStudent(ctx, utt)

	case IntentCreateClass:
		return s.handleCreateClass(ctx, utt, slots)
	case IntentAddStreamToClass:
		return s.handleAddStreamToClass(ctx, utt, slots)
	case IntentListStreams:
		return s.handleListStreams(ctx, utt)
	case IntentListClasses:
		return s.handleListClasses(ctx, utt)
	case IntentListEmptyClasses:
		return s.handleListEmptyClasses(ctx, utt)
	case IntentDeleteClass:
		return s.handleDeleteClass(ctx, utt)
	case IntentRenameClass:
		return s.handleRenameClass(ctx, utt)

	case IntentCheckAcademicSetup:
		return s.handleCheckAcademicSetup(ctx, utt)
	case IntentGetCurrentTerm:
		return s.handleGetCurrentTerm(ctx, utt)
	case IntentCreateYear:
		return s.handleCreateYear(ctx, utt)
	case IntentActivateYear:
		return s.handleActivateYear(ctx, utt)
	case IntentListYears:
		return s.handleListYears(ctx, utt)
	case IntentCreateTerm:
		return s.handleCreateTerm(ctx, utt)
	case IntentActivateTerm:
		return s.handleActivateTerm(ctx, utt)

	case IntentAddGuardian:
		return s.handleAddGuardian(ctx, utt, slots)
	case IntentUpdateGuardian:
		return s.handleUpdateGuardian(ctx, utt)
	case IntentListGuardians:
		return s.handleListGuardians(ctx, utt)

	case IntentGreet:
		return Result{Replies: []string{"Hello! I'm your school assistant. Say 'help' to see what I can do."}}
	case IntentGoodbye:
		return Result{Replies: []string{"Goodbye! I'll be here when you need me."}}
	case IntentAskHelp, IntentCancelForm:
		return s.handleHelp()
	}
	return Result{Replies: []string{msgFallback}}
}

func (s *Service) handleHelp() Result {
	return Result{Replies: []string{strings.Join([]string{
		"Here's what I can help with:",
		"- students: 'register a student', 'find student Joshua', 'list students in grade 8'",
		"- classes: 'create grade 7 with streams blue and red', 'add stream green to class 5', 'list classes'",
		"- academics: 'check setup', 'create year 2026', 'what is the current term', 'create term 2'",
		"- guardians: 'add a guardian', 'update guardian', 'list guardians of ADM001'",
		"Say 'cancel' at any point to abandon what we're doing.",
	}, "\n")}}
}

// errorResult maps a backend error to its user-facing reply. Collected
// slots are preserved for retryable failures so a multi-turn form need
// not restart.
func (s *Service) errorResult(err error) Result {
	switch errors.Cause(err) {
	case admin.ErrNotAuthorized:
		return Result{Replies: []string{msgNotAuthorized}}
	case admin.ErrUnavailable:
		return Result{Replies: []string{msgUnavailable}}
	case admin.ErrNotFound:
		return Result{Replies: []string{"I couldn't find that record. Could you double-check the name?"}}
	case admin.ErrConflict:
		return Result{Replies: []string{"That record already exists."}}
	}
	if vErr, ok := errors.Cause(err).(*core.ValidationError); ok {
		res := Result{Replies: []string{"The school system rejected that:"}}
		if len(vErr.Fields) == 0 {
			res.reply("- " + vErr.Error())
		}
		for _, f := range vErr.Fields {
			res.reply(fmt.Sprintf("- %s: %s", f.Field, f.Error))
		}
		return res
	}
	s.logger.Error("turn failed", err)
	return Result{Replies: []string{msgUnexpected}}
}

func isCancelText(text string) bool {
	t := core.CleanString(text, true)
	for _, phrase := range cancelPhrases {
		if t == phrase {
			return true
		}
	}
	return false
}

// requireSetup returns the academic setup when complete; otherwise a
// step-by-step reply telling the user how to finish configuration.
func (s *Service) requireSetup(ctx context.Context, sess admin.Session) (admin.Setup, *Result) {
	setup, err := s.resolver.CurrentSetup(ctx, sess)
	if err != nil {
		res := s.errorResult(err)
		return admin.Setup{}, &res
	}
	if setup.Complete() {
		return setup, nil
	}
	res := Result{Replies: []string{strings.Join([]string{
		"Your academic setup isn't complete yet. Before registering students:",
		"1. Create an academic year ('create year 2026'), then 'activate year 2026'.",
		"2. Create at least one term ('create term 1').",
		"3. Activate the current term ('activate term 1').",
		"Then try again.",
	}, "\n")}}
	return admin.Setup{}, &res
}

// classRef recovers the class reference of this turn: explicit
// entities first, then the heuristic text parse.
func classRef(utt Utterance) (level, stream string) {
	if name := utt.Entity(EntityClassName); name != "" {
		if lvl, st := ParseLevelAndStream(name); lvl != "" {
			return NormalizeLevelLabel(lvl), st
		}
		return NormalizeLevelLabel(name), ""
	}
	if lvl := utt.Entity(EntityLevel); lvl != "" {
		st, _ := NormalizeStreamName(utt.Entity(EntityStream), lvl)
		return NormalizeLevelLabel(lvl), st
	}
	if lvl, st := ParseLevelAndStream(utt.Text); lvl != "" {
		return NormalizeLevelLabel(lvl), st
	}
	return "", ""
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
