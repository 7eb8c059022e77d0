package summarize

import (
	"strings"
	"unicode/utf8"

	"digest-backend/internal/shared/faults"
	"digest-backend/internal/shared/telemetry"
)

const (
	// SummaryTooShort is returned when the text is below MinTextLength.
	SummaryTooShort = "Text too short to summarize."
	// SummaryFailed is returned when sentence ranking fails.
	SummaryFailed = "Unable to generate summary."
	// SummaryNoText is used by Process when extraction produced nothing.
	SummaryNoText = "Unable to extract text from PDF."

	MinTextLength        = 100
	DefaultSentenceCount = 3
	DefaultMaxMessages   = 5
)

// Method selects the sentence-graph similarity used for ranking.
type Method string

const (
	MethodLexRank  Method = "lexrank"
	MethodTextRank Method = "textrank"
)

// Digest is the summarized view of one document.
type Digest struct {
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	KeyMessages []string `json:"keyMessages"`
}

// Engine produces extractive digests. The zero value uses the defaults.
type Engine struct {
	SentenceCount int
	MaxMessages   int
	Method        Method
}

// NewEngine returns an engine with the default sentence and key-message counts.
func NewEngine() Engine {
	return Engine{
		SentenceCount: DefaultSentenceCount,
		MaxMessages:   DefaultMaxMessages,
		Method:        MethodLexRank,
	}
}

// Process builds the full digest. Title, summary and key messages are
// computed independently so a fault in one leaves the others intact.
func (e Engine) Process(text, filename string) Digest {
	if strings.TrimSpace(text) == "" {
		return Digest{Title: filename, Summary: SummaryNoText, KeyMessages: []string{}}
	}
	return Digest{
		Title:       e.Title(text, filename),
		Summary:     e.Summarize(text, e.sentenceCount()),
		KeyMessages: e.KeyMessages(text, e.maxMessages()),
	}
}

// Summarize returns the n most central sentences in document order.
func (e Engine) Summarize(text string, n int) (summary string) {
	if tooShort(text) {
		return SummaryTooShort
	}
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Warn("summarize.failed", map[string]any{"error": faults.FromPanic(rec)})
			summary = SummaryFailed
		}
	}()

	out, err := rank(text, n, e.Method)
	if err != nil {
		telemetry.Warn("summarize.failed", map[string]any{"error": err})
		return SummaryFailed
	}
	return out
}

func (e Engine) sentenceCount() int {
	if e.SentenceCount <= 0 {
		return DefaultSentenceCount
	}
	return e.SentenceCount
}

func (e Engine) maxMessages() int {
	if e.MaxMessages <= 0 {
		return DefaultMaxMessages
	}
	return e.MaxMessages
}

func tooShort(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) < MinTextLength
}
