package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"digest-backend/internal/extract/extracttest"
	"digest-backend/internal/shared/faults"
)

func TestTextFromBytes_JoinsPages(t *testing.T) {
	data := extracttest.BuildPDF("QUARTERLY REPORT\nRevenue grew strongly.", "", "Second page text.")

	got, err := TextFromBytes(context.Background(), data)
	if err != nil {
		t.Fatalf("expected extraction to succeed, got %v", err)
	}
	if !strings.Contains(got, "QUARTERLY REPORT") {
		t.Fatalf("expected first page text, got %q", got)
	}
	if !strings.Contains(got, "Second page text.") {
		t.Fatalf("expected last page text, got %q", got)
	}
	if strings.Contains(got, "\n\n") {
		t.Fatalf("expected blank lines collapsed, got %q", got)
	}
}

func TestFromFile_ReadsDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, extracttest.BuildPDF("Hello from disk."), 0o600); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	if got := FromFile(context.Background(), path); !strings.Contains(got, "Hello from disk.") {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestFromBytes_GarbageReturnsEmpty(t *testing.T) {
	if got := FromBytes(context.Background(), []byte("this is not a pdf")); got != "" {
		t.Fatalf("expected empty text for garbage, got %q", got)
	}
	if got := FromBytes(context.Background(), nil); got != "" {
		t.Fatalf("expected empty text for nil data, got %q", got)
	}
}

func TestFromFile_MissingReturnsEmpty(t *testing.T) {
	if got := FromFile(context.Background(), filepath.Join(t.TempDir(), "missing.pdf")); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}

func TestTextFromBytes_FaultKind(t *testing.T) {
	_, err := TextFromBytes(context.Background(), []byte("%PDF-1.4 truncated"))
	if err == nil {
		t.Fatalf("expected error for truncated pdf")
	}
	if kind := faults.Kind(err); kind != "extraction" {
		t.Fatalf("expected extraction kind, got %s", kind)
	}
}

func TestTextFromBytes_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := TextFromBytes(ctx, extracttest.BuildPDF("text")); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "collapses spaces", in: "a   b\t\tc", want: "a b c"},
		{name: "keeps single newlines", in: "TITLE\r\n\r\n\r\nbody  line", want: "TITLE\nbody line"},
		{name: "strips control chars", in: "ok\x00\x07 done", want: "ok done"},
		{name: "keeps punctuation", in: "cost: $5 (approx.) - 10% [est]", want: "cost: $5 (approx.) - 10% [est]"},
		{name: "keeps letters beyond ascii", in: "Résumé Übersicht", want: "Résumé Übersicht"},
		{name: "trims", in: "  \n padded \n ", want: "padded"},
		{name: "empty", in: "", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
