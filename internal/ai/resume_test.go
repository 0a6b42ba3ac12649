package ai_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/garnizeh/prep/internal/ai"
)

func TestParseResumeAnalysis(t *testing.T) {
	l, err := ai.NewDefaultLoader()
	if err != nil {
		t.Fatalf("NewDefaultLoader: %v", err)
	}
	ctx := context.Background()

	wrapped := "Here you go:\n```json\n" + validAnalysis + "\n```"
	r, err := ai.ParseResumeAnalysis(ctx, l, wrapped)
	if err != nil {
		t.Fatalf("parse wrapped output: %v", err)
	}
	if r.KeywordCoverage.Score != 5 {
		t.Fatalf("unexpected keyword score %v", r.KeywordCoverage.Score)
	}

	bad := strings.Replace(validAnalysis, `"strength"`, `"praise"`, 1)
	cases := map[string]string{
		"empty":        "   ",
		"no object":    "sorry, I cannot help",
		"wrong enum":   bad,
		"out of range": strings.Replace(validAnalysis, `"overallScore":7`, `"overallScore":11`, 1),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ai.ParseResumeAnalysis(ctx, l, in); !errors.Is(err, ai.ErrInvalidObject) {
				t.Fatalf("expected ErrInvalidObject, got %v", err)
			}
		})
	}
}

func TestFeedbackType(t *testing.T) {
	for _, s := range []string{"strength", "minor-improvement", "major-improvement"} {
		ft, err := ai.ParseFeedbackType(s)
		if err != nil {
			t.Fatalf("ParseFeedbackType(%q): %v", s, err)
		}
		if ft.Label() == s {
			t.Fatalf("label should be human readable for %q", s)
		}
	}
	if _, err := ai.ParseFeedbackType("meh"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestSupportedResumeType(t *testing.T) {
	ok := []string{ai.MimePDF, ai.MimeDOC, ai.MimeDOCX, "text/plain; charset=utf-8", "Application/PDF"}
	for _, m := range ok {
		if !ai.SupportedResumeType(m) {
			t.Fatalf("%q should be supported", m)
		}
	}
	for _, m := range []string{"image/png", "", "application/zip"} {
		if ai.SupportedResumeType(m) {
			t.Fatalf("%q should not be supported", m)
		}
	}
}

func TestExtractResumeText(t *testing.T) {
	text, err := ai.ExtractResumeText(strings.NewReader("  Jane Doe\nGo developer \n"), "text/plain; charset=utf-8")
	if err != nil {
		t.Fatalf("ExtractResumeText: %v", err)
	}
	if text != "Jane Doe\nGo developer" {
		t.Fatalf("unexpected text %q", text)
	}

	if _, err := ai.ExtractResumeText(strings.NewReader("x"), "image/png"); !errors.Is(err, ai.ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}

	big := strings.NewReader(strings.Repeat("a", ai.MaxResumeSize+1))
	if _, err := ai.ExtractResumeText(big, ai.MimeText); err == nil {
		t.Fatalf("expected size error")
	}
}
