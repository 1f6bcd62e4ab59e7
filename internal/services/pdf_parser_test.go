package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"alfredoptarigan/policy-analyzer/internal/testutil"
)

const filler = "This schedule describes the terms that apply to the insured person during the period of cover stated below."

func TestExtractPreservesPageOrderWithDoubleNewline(t *testing.T) {
	data := testutil.BuildPDF(
		[]string{"PAGE-ONE-MARKER " + filler},
		[]string{"PAGE-TWO-MARKER " + filler},
		[]string{"PAGE-THREE-MARKER " + filler},
	)

	doc, err := NewPDFParserService(100).Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if doc.PageCount != 3 {
		t.Fatalf("expected 3 pages, got %d", doc.PageCount)
	}

	one := strings.Index(doc.Text, "PAGE-ONE-MARKER")
	two := strings.Index(doc.Text, "PAGE-TWO-MARKER")
	three := strings.Index(doc.Text, "PAGE-THREE-MARKER")
	if one < 0 || two < 0 || three < 0 {
		t.Fatalf("missing page markers in %q", doc.Text)
	}
	if !(one < two && two < three) {
		t.Fatalf("page order not preserved: %d %d %d", one, two, three)
	}

	parts := strings.Split(doc.Text, "\n\n")
	if len(parts) != 3 {
		t.Fatalf("expected pages separated by a double newline, got %d parts: %q", len(parts), doc.Text)
	}
	if doc.CharCount != len([]rune(doc.Text)) {
		t.Fatalf("char count %d does not match text length %d", doc.CharCount, len([]rune(doc.Text)))
	}
}

func TestExtractJoinsRunsWithSingleSpace(t *testing.T) {
	data := testutil.BuildPDF(testutil.Paragraph(filler+" "+filler, 30))

	doc, err := NewPDFParserService(100).Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if strings.Contains(doc.Text, "  ") {
		t.Fatalf("runs must be joined with single spaces, got %q", doc.Text)
	}
	if !strings.Contains(doc.Text, "insured person") {
		t.Fatalf("expected phrase spanning runs to survive, got %q", doc.Text)
	}
}

func TestExtractShortTextIsScanned(t *testing.T) {
	cases := map[string][]byte{
		"forty characters":  testutil.BuildPDF([]string{strings.Repeat("x", 40)}),
		"single blank page": testutil.BuildPDF([]string{}),
		"nearly blank page": testutil.BuildPDF([]string{"   ", "Page 1"}),
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewPDFParserService(100).Extract(context.Background(), data)
			assertExtractionKind(t, err, ExtractionScannedOrImageOnly)
		})
	}
}

func TestExtractThresholdIsInclusive(t *testing.T) {
	data := testutil.BuildPDF([]string{strings.Repeat("y", 100)})

	doc, err := NewPDFParserService(100).Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("exactly 100 characters must pass, got %v", err)
	}
	if doc.CharCount != 100 {
		t.Fatalf("expected 100 characters, got %d", doc.CharCount)
	}
}

func TestExtractGarbageIsCorrupted(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":     nil,
		"text file": []byte("Dear hiring manager, please find my resume attached."),
		"truncated": testutil.BuildPDF([]string{filler})[:60],
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewPDFParserService(100).Extract(context.Background(), data)
			assertExtractionKind(t, err, ExtractionCorrupted)
		})
	}
}

func TestExtractPasswordProtected(t *testing.T) {
	data := testutil.BuildEncryptedPDF([]string{filler})

	_, err := NewPDFParserService(100).Extract(context.Background(), data)
	assertExtractionKind(t, err, ExtractionPasswordProtected)

	var extErr *ExtractionError
	errors.As(err, &extErr)
	if !strings.Contains(extErr.UserMessage(), "unlocked") {
		t.Fatalf("unexpected user message %q", extErr.UserMessage())
	}
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPDFParserService(100).Extract(ctx, testutil.BuildPDF([]string{filler}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClassifyOpenError(t *testing.T) {
	cases := []struct {
		err  error
		want ExtractionKind
	}{
		{errors.New("encrypted PDF: invalid password"), ExtractionPasswordProtected},
		{errors.New("unsupported PDF: encryption version V=5"), ExtractionPasswordProtected},
		{errors.New("not a PDF file: invalid header"), ExtractionCorrupted},
		{errors.New("malformed PDF: cannot find startxref"), ExtractionCorrupted},
		{errors.New("something odd"), ExtractionUnknown},
	}
	for _, tc := range cases {
		assertExtractionKind(t, classifyOpenError(tc.err), tc.want)
	}
}

func assertExtractionKind(t *testing.T, err error, want ExtractionKind) {
	t.Helper()
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	var extErr *ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected *ExtractionError, got %T", err)
	}
	if extErr.Kind != want {
		t.Fatalf("expected kind %s, got %s (%v)", want, extErr.Kind, err)
	}
}
