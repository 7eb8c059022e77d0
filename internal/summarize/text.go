package summarize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// terminatorRuns splits key-message candidates.
	terminatorRuns = regexp.MustCompile(`[.!?]+`)
	// sentenceEnd marks the end of a summary sentence: terminators followed
	// by optional closing quotes or brackets, then whitespace or end of text.
	sentenceEnd = regexp.MustCompile(`[.!?]+["')\]]*(\s+|$)`)
)

// splitSentences breaks text into trimmed sentences, keeping terminators.
// Line breaks inside a sentence are treated as spaces.
func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// words lower-cases s and returns its content words.
func words(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

var stopWords = toSet(`a about above after again against all am an and any are as at be because been
before being below between both but by can could did do does doing down during each few for from
further had has have having he her here hers herself him himself his how i if in into is it its
itself just me more most my myself no nor not now of off on once only or other our ours ourselves
out over own same she should so some such than that the their theirs them themselves then there
these they this those through to too under until up very was we were what when where which while
who whom why will with would you your yours yourself yourselves also may might must shall upon`)

func toSet(list string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.Fields(list) {
		out[w] = struct{}{}
	}
	return out
}
