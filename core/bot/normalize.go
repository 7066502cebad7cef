package bot

import (
	"regexp"
	"strings"

	"github.com/shulebot/shulebot/core"
)

// Pure text-canonicalization helpers. These never fail: empty input
// yields empty output, and NormalizeStreamName signals "not a valid
// stream" distinctly from "no stream given".

var (
	gradeLevelRegex  = regexp.MustCompile(`(?i)^(?:grade|class)\s*(\d+)$`)
	namedLevelRegex  = regexp.MustCompile(`(?i)^(form|jss|pp|standard)\s*(\d+)$`)
	digitsRegex      = regexp.MustCompile(`^\d+$`)
	levelNumberRegex = regexp.MustCompile(`(\d+)\s*$`)

	compoundClassRegex = regexp.MustCompile(`(?i)^([a-z]+)\s*(\d+)\s*([a-z])$`)
	shortClassRegex    = regexp.MustCompile(`(?i)^(\d+)\s*([a-z])$`)
)

// NormalizeLevelLabel canonicalizes a class-level label: "grade N" and
// "class N" become "Class N"; Form/JSS/PP/Standard levels keep their
// keyword; a bare number passes through unchanged; anything else is
// title-cased. Idempotent.
func NormalizeLevelLabel(text string) string {
	s := core.CleanString(text)
	if s == "" {
		return ""
	}
	if digitsRegex.MatchString(s) {
		return s
	}
	if m := gradeLevelRegex.FindStringSubmatch(s); m != nil {
		return "Class " + m[1]
	}
	if m := namedLevelRegex.FindStringSubmatch(s); m != nil {
		return formatLevelKeyword(m[1]) + " " + m[2]
	}
	return title(s)
}

// NormalizeStreamName canonicalizes a stream label relative to the
// class level being addressed. It strips a leading numeric token that
// duplicates the level ("8 Blue" for Class 8 is just "Blue"). The
// second return is false when the residue is purely numeric: the user
// gave a class number where a stream name was expected, and the caller
// should re-prompt instead of silently dropping it.
func NormalizeStreamName(text, level string) (string, bool) {
	s := core.CleanString(text)
	if s == "" {
		return "", true
	}

	fields := strings.Fields(s)
	if len(fields) > 1 && fields[0] == levelNumber(level) {
		fields = fields[1:]
	}
	s = strings.Join(fields, " ")

	if digitsRegex.MatchString(strings.ReplaceAll(s, " ", "")) {
		return "", false
	}
	return canonStream(s), true
}

// NormalizeClassName canonicalizes a full class name, splitting
// compound tokens like "grade8a" into "Grade 8A" and "8a" into "8A";
// anything else is title-cased.
func NormalizeClassName(text string) string {
	s := core.CleanString(text)
	if s == "" {
		return ""
	}
	if m := compoundClassRegex.FindStringSubmatch(s); m != nil {
		return formatLevelKeyword(m[1]) + " " + m[2] + strings.ToUpper(m[3])
	}
	if m := shortClassRegex.FindStringSubmatch(s); m != nil {
		return m[1] + strings.ToUpper(m[2])
	}
	return title(s)
}

// formatLevelKeyword title-cases a level keyword, keeping the
// all-caps abbreviations (JSS, PP) as-is.
func formatLevelKeyword(kw string) string {
	switch strings.ToLower(kw) {
	case "jss":
		return "JSS"
	case "pp":
		return "PP"
	default:
		return title(kw)
	}
}

// levelNumber extracts the trailing number of a level label ("Class 8" -> "8").
func levelNumber(level string) string {
	if m := levelNumberRegex.FindStringSubmatch(core.CleanString(level)); m != nil {
		return m[1]
	}
	return ""
}

// canonStream uppercases single-letter streams, title-cases the rest.
func canonStream(s string) string {
	if len(s) == 1 {
		return strings.ToUpper(s)
	}
	return title(s)
}

func title(s string) string {
	return strings.Title(strings.ToLower(s))
}
