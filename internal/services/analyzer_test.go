package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"alfredoptarigan/policy-analyzer/internal/models"
	"alfredoptarigan/policy-analyzer/internal/testutil"
)

type memoryRecorder struct {
	mu   sync.Mutex
	runs []models.AnalysisRun
	err  error
}

func (r *memoryRecorder) Create(run *models.AnalysisRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, *run)
	return r.err
}

func (r *memoryRecorder) last(t *testing.T) models.AnalysisRun {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.runs) == 0 {
		t.Fatalf("no run recorded")
	}
	return r.runs[len(r.runs)-1]
}

func newTestAnalyzer(t *testing.T, o PolicyOracle, rec RunRecorder) AnalyzerService {
	t.Helper()
	lex, err := DefaultLexicons()
	if err != nil {
		t.Fatalf("lexicons: %v", err)
	}
	return NewAnalyzerService(
		NewPDFParserService(DefaultScannedTextThreshold),
		NewPrequalifier(lex, DefaultGeneralThreshold, DefaultLineOfBusinessThreshold),
		NewRequestFormatter(DefaultMinTextLength, DefaultMaxTextLength, DefaultMaxRequestBytes),
		newTestClassifier(o, time.Second),
		rec,
		nil,
		20*1024*1024,
	)
}

func upload(data []byte) UploadInput {
	return UploadInput{RequestID: "req-test", Data: data, ContentType: "application/pdf", DeclaredSize: int64(len(data))}
}

func TestAnalyzeValidPolicy(t *testing.T) {
	o := &scriptedOracle{responses: []scriptedResponse{{analysis: populatedAnalysis()}}}
	rec := &memoryRecorder{}

	resp, err := newTestAnalyzer(t, o, rec).Analyze(context.Background(), upload(testutil.HealthPolicyPDF()))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if o.Calls() != 1 {
		t.Fatalf("expected one oracle call, got %d", o.Calls())
	}
	if resp.Analysis.PolicyName != "Optima Secure" || len(resp.Warnings) != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Meta.PageCount != 2 || resp.Meta.LineOfBusiness != "health" || resp.Meta.RequestID != "req-test" {
		t.Fatalf("unexpected meta %+v", resp.Meta)
	}

	run := rec.last(t)
	if run.Outcome != models.OutcomeCompleted || run.Source != models.SourceUpload {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.PageCount != 2 || run.GeneralMatches < 3 || run.GreatCount != 1 || run.OracleAttempts != 1 {
		t.Fatalf("run metadata not recorded: %+v", run)
	}
	for _, category := range []string{"general", "health", "life", "auto", "home"} {
		if _, ok := run.CategoryScores[category]; !ok {
			t.Fatalf("score for %s not recorded: %v", category, run.CategoryScores)
		}
	}
	if run.CategoryScores["health"] < 2 || run.CategoryScores["general"] != run.GeneralMatches {
		t.Fatalf("unexpected category scores %v", run.CategoryScores)
	}
}

func TestAnalyzeRecordsScoresOfRejectedDocument(t *testing.T) {
	o := &scriptedOracle{responses: []scriptedResponse{{analysis: populatedAnalysis()}}}
	rec := &memoryRecorder{}

	_, err := newTestAnalyzer(t, o, rec).Analyze(context.Background(), upload(testutil.ResumePDF()))
	if !errors.Is(err, ErrNotAPolicy) {
		t.Fatalf("expected ErrNotAPolicy, got %v", err)
	}
	run := rec.last(t)
	if len(run.CategoryScores) != 5 || run.CategoryScores["general"] >= DefaultGeneralThreshold {
		t.Fatalf("unexpected category scores %v", run.CategoryScores)
	}
}

func TestAnalyzeRejectsBeforeOracle(t *testing.T) {
	tests := []struct {
		name  string
		input UploadInput
		check func(t *testing.T, err error)
	}{
		{
			name:  "scanned",
			input: upload(testutil.ScannedPDF()),
			check: func(t *testing.T, err error) { assertExtractionKind(t, err, ExtractionScannedOrImageOnly) },
		},
		{
			name:  "not a policy",
			input: upload(testutil.ResumePDF()),
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrNotAPolicy) {
					t.Fatalf("expected ErrNotAPolicy, got %v", err)
				}
			},
		},
		{
			name:  "password protected",
			input: upload(testutil.BuildEncryptedPDF(testutil.Paragraph(testutil.HealthPolicyText, 80))),
			check: func(t *testing.T, err error) { assertExtractionKind(t, err, ExtractionPasswordProtected) },
		},
		{
			name: "wrong content type",
			input: UploadInput{
				Data:        []byte("PK\x03\x04"),
				ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			},
			check: func(t *testing.T, err error) { assertValidationKind(t, err, ValidationUnsupportedType) },
		},
		{
			name:  "over upload limit",
			input: UploadInput{Data: testutil.HealthPolicyPDF(), ContentType: "application/pdf", DeclaredSize: 21 * 1024 * 1024},
			check: func(t *testing.T, err error) { assertValidationKind(t, err, ValidationPayloadTooLarge) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &scriptedOracle{responses: []scriptedResponse{{analysis: populatedAnalysis()}}}
			rec := &memoryRecorder{}

			resp, err := newTestAnalyzer(t, o, rec).Analyze(context.Background(), tt.input)
			if resp != nil {
				t.Fatalf("no partial result may be returned")
			}
			tt.check(t, err)
			if o.Calls() != 0 {
				t.Fatalf("oracle must not be called, got %d calls", o.Calls())
			}
			if run := rec.last(t); run.Outcome != models.OutcomeRejected {
				t.Fatalf("expected rejected run, got %+v", run)
			}
		})
	}
}

func TestAnalyzeOracleRejectsDocument(t *testing.T) {
	rejection := &OracleError{Kind: OracleInvalidDocument, Reason: "This is a sales brochure, not a policy wording.", DetectedType: "brochure"}
	o := &scriptedOracle{responses: []scriptedResponse{{err: rejection}}}
	rec := &memoryRecorder{}

	_, err := newTestAnalyzer(t, o, rec).Analyze(context.Background(), upload(testutil.HealthPolicyPDF()))
	var orErr *OracleError
	if !errors.As(err, &orErr) || orErr.UserMessage() != rejection.Reason {
		t.Fatalf("expected oracle reason verbatim, got %v", err)
	}
	if run := rec.last(t); run.Outcome != models.OutcomeRejected || run.ErrorKind != string(OracleInvalidDocument) {
		t.Fatalf("unexpected run %+v", run)
	}
}

func TestAnalyzeTextTooLongMakesNoOracleCall(t *testing.T) {
	o := &scriptedOracle{responses: []scriptedResponse{{analysis: populatedAnalysis()}}}

	_, err := newTestAnalyzer(t, o, nil).AnalyzeText(context.Background(), "req-long", strings.Repeat("a", 500001))
	assertValidationKind(t, err, ValidationTooLong)
	if o.Calls() != 0 {
		t.Fatalf("expected zero oracle calls, got %d", o.Calls())
	}
}

func TestAnalyzeTextSkipsPrequalification(t *testing.T) {
	o := &scriptedOracle{responses: []scriptedResponse{{analysis: populatedAnalysis()}}}

	resp, err := newTestAnalyzer(t, o, nil).AnalyzeText(context.Background(), "req-text", testutil.ResumeText)
	if err != nil {
		t.Fatalf("analyze text: %v", err)
	}
	if resp.Meta.CharCount != len(testutil.ResumeText) || resp.Meta.LineOfBusiness != "" {
		t.Fatalf("unexpected meta %+v", resp.Meta)
	}
}

func TestAnalyzeDiscardsResultAfterCancellation(t *testing.T) {
	o := &scriptedOracle{responses: []scriptedResponse{{block: true}}}
	rec := &memoryRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	resp, err := newTestAnalyzer(t, o, rec).Analyze(ctx, upload(testutil.HealthPolicyPDF()))
	if !errors.Is(err, context.Canceled) || resp != nil {
		t.Fatalf("expected cancellation without result, got %v, %+v", err, resp)
	}
	if run := rec.last(t); run.Outcome != models.OutcomeCancelled {
		t.Fatalf("expected cancelled run, got %+v", run)
	}
}

func TestRecorderFailureDoesNotFailRequest(t *testing.T) {
	o := &scriptedOracle{responses: []scriptedResponse{{analysis: populatedAnalysis()}}}
	rec := &memoryRecorder{err: errors.New("database unavailable")}

	if _, err := newTestAnalyzer(t, o, rec).Analyze(context.Background(), upload(testutil.HealthPolicyPDF())); err != nil {
		t.Fatalf("audit failure leaked into the response: %v", err)
	}
}

func TestPrequalifyEndpointService(t *testing.T) {
	o := &scriptedOracle{responses: []scriptedResponse{{analysis: populatedAnalysis()}}}
	svc := newTestAnalyzer(t, o, nil)

	resp, err := svc.Prequalify(context.Background(), upload(testutil.ResumePDF()))
	if err != nil {
		t.Fatalf("prequalify: %v", err)
	}
	if resp.Verdict.Accepted || resp.Document.PageCount != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if o.Calls() != 0 {
		t.Fatalf("prequalify must never call the oracle")
	}
}

func assertValidationKind(t *testing.T, err error, want ValidationKind) {
	t.Helper()
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if valErr.Kind != want {
		t.Fatalf("expected kind %s, got %s", want, valErr.Kind)
	}
}
