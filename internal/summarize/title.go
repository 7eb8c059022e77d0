package summarize

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"digest-backend/internal/shared/faults"
	"digest-backend/internal/shared/telemetry"
)

const (
	titleScanLines = 10
	titleMinLength = 10
	titleMaxLength = 100
	titleMinWords  = 2
	titleMaxWords  = 10
)

// Title returns the first title-looking line among the opening lines of
// text, or a title derived from filename.
func (e Engine) Title(text, filename string) (title string) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Warn("title.failed", map[string]any{"error": faults.FromPanic(rec), "filename": filename})
			title = filename
		}
	}()

	lines := strings.Split(text, "\n")
	if len(lines) > titleScanLines {
		lines = lines[:titleScanLines]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if looksLikeTitle(line) {
			return line
		}
	}
	return TitleFromFilename(filename)
}

func looksLikeTitle(line string) bool {
	n := utf8.RuneCountInString(line)
	if n < titleMinLength || n > titleMaxLength {
		return false
	}
	words := strings.Fields(line)
	if len(words) < titleMinWords || len(words) > titleMaxWords {
		return false
	}
	upper := 0
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return upper*2 >= len(words)
}

// TitleFromFilename strips the extension, turns '_' and '-' into spaces
// and capitalises each word.
func TitleFromFilename(filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	return titleCase(stem)
}

// titleCase upper-cases letters that follow a non-letter and lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}
