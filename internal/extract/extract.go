package extract

import (
	"bytes"
	"context"
	"os"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ledongthuc/pdf"

	"digest-backend/internal/shared/faults"
	"digest-backend/internal/shared/telemetry"
)

var (
	disallowed      = regexp.MustCompile("[^\\p{L}\\p{N}_\\s.,!?;:\\-()\\[\\]{}\"'/@#$%&*+=<>~`|\\\\]")
	horizontalSpace = regexp.MustCompile(`[^\S\n]+`)
	newlineRuns     = regexp.MustCompile(`\s*\n\s*`)
)

// FromFile extracts normalized text from a PDF on disk.
// Faults are logged and reported as an empty string.
func FromFile(ctx context.Context, path string) string {
	text, err := TextFromFile(ctx, path)
	if err != nil {
		telemetry.Warn("extract.failed", map[string]any{"path": path, "error": err})
		return ""
	}
	return text
}

// FromBytes extracts normalized text from an in-memory PDF.
// Faults are logged and reported as an empty string.
func FromBytes(ctx context.Context, data []byte) string {
	text, err := TextFromBytes(ctx, data)
	if err != nil {
		telemetry.Warn("extract.failed", map[string]any{"size_bytes": len(data), "error": err})
		return ""
	}
	return text
}

// TextFromFile is FromFile with the fault surfaced to the caller.
func TextFromFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, reader, err := openPDF(path)
	if err != nil {
		return "", faults.Extraction(err, "open pdf")
	}
	defer f.Close()

	raw, err := pages(reader)
	if err != nil {
		return "", faults.Extraction(err, "read pages")
	}
	return Normalize(raw), nil
}

// TextFromBytes is FromBytes with the fault surfaced to the caller.
func TextFromBytes(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", faults.Extraction(errors.New("empty pdf data"), "read pdf")
	}
	reader, err := newReader(data)
	if err != nil {
		return "", faults.Extraction(err, "read pdf")
	}
	raw, err := pages(reader)
	if err != nil {
		return "", faults.Extraction(err, "read pages")
	}
	return Normalize(raw), nil
}

// Normalize collapses whitespace, keeps single newlines between lines and
// strips characters outside the printable allow-list.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = disallowed.ReplaceAllString(text, "")
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = newlineRuns.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

func openPDF(path string) (f *os.File, r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if f != nil {
				f.Close()
			}
			f, r, err = nil, nil, faults.FromPanic(rec)
		}
	}()
	return pdf.Open(path)
}

func newReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, faults.FromPanic(rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// pages joins per-page text with single newlines. Pages without text are skipped.
func pages(reader *pdf.Reader) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = "", faults.FromPanic(rec)
		}
	}()

	var buf strings.Builder
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", errors.Wrapf(err, "page %d", i)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}
