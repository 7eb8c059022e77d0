package summarize

import (
	"sort"
	"strings"
	"unicode/utf8"

	"digest-backend/internal/shared/faults"
	"digest-backend/internal/shared/telemetry"
)

const (
	minCandidateLength = 20
	edgePositions      = 3
	preferredMinLength = 50
	preferredMaxLength = 200
)

var importanceKeywords = []string{
	"important", "key", "main", "primary", "essential", "critical",
	"significant", "major", "conclusion", "result", "finding",
	"recommendation", "summary", "overview", "objective", "goal",
}

// ScoredMessage is a key-message candidate with its heuristic score.
type ScoredMessage struct {
	Text     string
	Position int
	Score    int
}

// KeyMessages returns up to max candidate sentences ranked by keyword hits,
// position and length. Only candidates scoring above zero are kept.
func (e Engine) KeyMessages(text string, max int) (out []string) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Warn("key_messages.failed", map[string]any{"error": faults.FromPanic(rec)})
			out = []string{}
		}
	}()

	scored := ScoreMessages(text)
	if max <= 0 {
		max = DefaultMaxMessages
	}
	if len(scored) > max {
		scored = scored[:max]
	}
	out = make([]string, 0, len(scored))
	for _, m := range scored {
		if m.Score > 0 {
			out = append(out, m.Text)
		}
	}
	return out
}

// ScoreMessages splits text into candidates and returns them sorted by
// descending score. Equal scores keep document order.
func ScoreMessages(text string) []ScoredMessage {
	if tooShort(text) {
		return nil
	}
	var candidates []string
	for _, part := range terminatorRuns.Split(text, -1) {
		part = strings.Join(strings.Fields(part), " ")
		if utf8.RuneCountInString(part) > minCandidateLength {
			candidates = append(candidates, part)
		}
	}

	scored := make([]ScoredMessage, len(candidates))
	for i, c := range candidates {
		scored[i] = ScoredMessage{Text: c, Position: i, Score: scoreCandidate(c, i, len(candidates))}
	}
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})
	return scored
}

func scoreCandidate(candidate string, position, total int) int {
	score := 0
	lower := strings.ToLower(candidate)
	for _, kw := range importanceKeywords {
		if strings.Contains(lower, kw) {
			score++
		}
	}
	if position < edgePositions || position >= total-edgePositions {
		score++
	}
	if n := utf8.RuneCountInString(candidate); n >= preferredMinLength && n <= preferredMaxLength {
		score++
	}
	return score
}
