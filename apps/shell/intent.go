package main

import (
	"strings"

	"github.com/shulebot/shulebot/core/bot"
)

// matchIntent is a deliberately naive stand-in for the NLU classifier:
// first keyword rule wins. Entities are left to the interpreter's own
// text heuristics.
func matchIntent(text string) (string, map[string]string) {
	t := strings.ToLower(text)
	has := func(sub string) bool { return strings.Contains(t, sub) }

	switch {
	case t == "hi" || t == "hello" || has("good morning"):
		return bot.IntentGreet, nil
	case t == "bye" || has("goodbye"):
		return bot.IntentGoodbye, nil
	case t == "help" || has("what can you do"):
		return bot.IntentAskHelp, nil
	case t == "cancel" || t == "stop" || has("never mind"):
		return bot.IntentCancelForm, nil

	case has("setup"):
		return bot.IntentCheckAcademicSetup, nil
	case has("current term") || has("which term"):
		return bot.IntentGetCurrentTerm, nil
	case has("list years") || has("show years"):
		return bot.IntentListYears, nil
	case has("activate year"):
		return bot.IntentActivateYear, nil
	case has("create year") || has("new year"):
		return bot.IntentCreateYear, nil
	case has("activate term"):
		return bot.IntentActivateTerm, nil
	case has("create term") || has("new term"):
		return bot.IntentCreateTerm, nil

	case has("empty classes"):
		return bot.IntentListEmptyClasses, nil
	case has("list classes") || has("show classes"):
		return bot.IntentListClasses, nil
	case has("streams of") || has("list streams"):
		return bot.IntentListStreams, nil
	case has("delete class") || has("remove class"):
		return bot.IntentDeleteClass, nil
	case has("rename"):
		return bot.IntentRenameClass, nil
	case has("add stream"):
		return bot.IntentAddStreamToClass, nil
	case has("create") && (has("class") || has("grade") || has("form") || has("jss") || has("pp")):
		return bot.IntentCreateClass, nil

	case has("register") || has("new student") || has("create student") || has("add a student"):
		return bot.IntentCreateStudent, nil
	case has("unassigned"):
		return bot.IntentListUnassignedStudents, nil
	case has("students in"):
		return bot.IntentListStudentsByClass, nil
	case has("list students") || has("show students"):
		return bot.IntentListStudents, nil
	case has("enroll"):
		return bot.IntentEnrollStudent, nil
	case has("find") || has("search"):
		return bot.IntentSearchStudent, nil

	case has("add guardian") || has("add a guardian"):
		return bot.IntentAddGuardian, nil
	case has("update guardian"):
		return bot.IntentUpdateGuardian, nil
	case has("guardians"):
		return bot.IntentListGuardians, nil
	}
	return "", nil
}
