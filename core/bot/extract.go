package bot

import (
	"regexp"
	"strings"
)

// Heuristic fragment parsers: best-effort recovery of level and stream
// names from raw text when the NLU entities are missing or ambiguous.
// Kept pure and behind this file's two entry points so the heuristics
// can be replaced without touching the form machine or the resolver.

var (
	levelStreamRegex = regexp.MustCompile(`(?i)\b(?:(grade|class|form|standard|jss|pp)\s*)?(\d+)\s+([a-z]+)\b`)
	levelOnlyRegex   = regexp.MustCompile(`(?i)\b(?:(grade|class|form|standard|jss|pp)\s*)?(\d+)[a-z]?\b`)
	fragmentSplitter = regexp.MustCompile(`\band\b|,`)

	// words that may trail a level reference without being a stream
	levelStopWords = map[string]struct{}{
		"with": {}, "stream": {}, "streams": {}, "and": {}, "to": {},
		"in": {}, "for": {}, "the": {}, "a": {}, "an": {}, "called": {},
		"named": {}, "please": {},
	}

	// common words excluded before the vocabulary check; streams "A"
	// and "I" are therefore only reachable via the stream entity.
	extractStopWords = map[string]struct{}{
		"a": {}, "an": {}, "i": {}, "the": {}, "and": {}, "with": {},
		"to": {}, "in": {}, "of": {}, "for": {},
	}
)

// defaultStreamWords is the closed stream-name vocabulary: colors,
// compass directions, Greek letters, single letters A-Z and a curated
// set of name-like tokens. Arbitrary school-specific names are not
// recognized here; they reach the interpreter through NLU entities, or
// through the configurable extra words (core.BotConfig).
var defaultStreamWords = buildVocab(
	// colors
	"blue", "red", "green", "yellow", "orange", "purple", "pink", "white",
	"black", "brown", "grey", "gray", "gold", "silver", "maroon", "violet",
	"indigo", "crimson", "cyan", "magenta",
	// compass directions
	"north", "south", "east", "west",
	// Greek letters
	"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta",
	"iota", "kappa", "lambda", "mu", "nu", "xi", "omicron", "pi", "rho",
	"sigma", "tau", "upsilon", "phi", "chi", "psi", "omega",
	// name-like tokens seen in the wild
	"eagle", "falcon", "hawk", "dove", "sparrow", "lion", "tiger",
	"leopard", "cheetah", "elephant", "rhino", "buffalo", "giraffe",
	"zebra", "antelope", "gazelle", "impala", "simba", "chui", "twiga",
	"ndovu", "unity", "victory", "hope", "faith", "peace", "joy",
	"mercury", "venus", "mars", "jupiter", "saturn", "neptune",
)

func buildVocab(words ...string) map[string]struct{} {
	vocab := make(map[string]struct{}, len(words)+26)
	for _, w := range words {
		vocab[strings.ToLower(w)] = struct{}{}
	}
	for c := 'a'; c <= 'z'; c++ {
		vocab[string(c)] = struct{}{}
	}
	return vocab
}

// Extractor recognizes stream names against the closed vocabulary,
// optionally extended with school-specific words from config.
type Extractor struct {
	vocab map[string]struct{}
}

func NewExtractor(extraWords ...string) *Extractor {
	if len(extraWords) == 0 {
		return &Extractor{vocab: defaultStreamWords}
	}
	vocab := make(map[string]struct{}, len(defaultStreamWords)+len(extraWords))
	for w := range defaultStreamWords {
		vocab[w] = struct{}{}
	}
	for _, w := range extraWords {
		vocab[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &Extractor{vocab: vocab}
}

var defaultExtractor = NewExtractor()

// ParseLevelAndStream pulls a (level, stream) pair out of free text:
// first a level number + single trailing word ("grade 8 blue",
// "8 blue"), then a bare level reference ("grade 8", "5"). The level
// keyword is optional; without one the number alone is the level.
// First match wins; no match yields ("", "").
func ParseLevelAndStream(text string) (string, string) {
	if m := levelStreamRegex.FindStringSubmatch(text); m != nil {
		trailing := strings.ToLower(m[3])
		if _, stop := levelStopWords[trailing]; !stop {
			return levelLabel(m[1], m[2]), canonStream(m[3])
		}
	}
	if m := levelOnlyRegex.FindStringSubmatch(text); m != nil {
		return levelLabel(m[1], m[2]), ""
	}
	return "", ""
}

func levelLabel(keyword, number string) string {
	if keyword == "" {
		return number
	}
	return formatLevelKeyword(keyword) + " " + number
}

// ExtractAllStreams returns the distinct stream names found in text, in
// first-seen order, using the default vocabulary.
func ExtractAllStreams(text, levelContext string) []string {
	return defaultExtractor.ExtractAllStreams(text, levelContext)
}

// ExtractAllStreams strips the level reference and command phrasing
// from the text, splits the remainder on commas and "and", and keeps
// the words found in the vocabulary, de-duplicated case-insensitively.
func (e *Extractor) ExtractAllStreams(text, levelContext string) []string {
	low := strings.ToLower(text)

	// strip level references first so a level number is never misread
	// as a stream, then the number from the caller's level context
	low = levelOnlyRegex.ReplaceAllString(low, " ")
	if n := levelNumber(levelContext); n != "" {
		low = regexp.MustCompile(`\b`+n+`\b`).ReplaceAllString(low, " ")
	}

	var streams []string
	seen := make(map[string]struct{})
	for _, frag := range fragmentSplitter.Split(low, -1) {
		for _, word := range strings.Fields(frag) {
			word = strings.Trim(word, ".,!?;:\"'")
			if word == "" {
				continue
			}
			if _, stop := extractStopWords[word]; stop {
				continue
			}
			if _, ok := e.vocab[word]; !ok {
				continue
			}
			if _, dup := seen[word]; dup {
				continue
			}
			seen[word] = struct{}{}
			streams = append(streams, canonStream(word))
		}
	}
	return streams
}
