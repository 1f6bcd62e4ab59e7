//go:build cucumber

package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/cucumber/godog"

	"alfredoptarigan/policy-analyzer/internal/models"
	"alfredoptarigan/policy-analyzer/internal/testutil"
)

// TestAnalysisPipelineScenarios runs the end-to-end pipeline scenarios.
func TestAnalysisPipelineScenarios(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "analysis-pipeline",
		ScenarioInitializer: InitializePipelineScenario,
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{filepath.Join("features", "analysis_pipeline.feature")},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

// InitializePipelineScenario wires steps for the pipeline feature.
func InitializePipelineScenario(ctx *godog.ScenarioContext) {
	state := &pipelineScenarioState{}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		state.reset()
		return ctx, nil
	})

	ctx.Step(`^a two-page PDF mentioning "([^"]+)", "([^"]+)", "([^"]+)", "([^"]+)", "([^"]+)" and "([^"]+)"$`, state.givenPolicyPDF)
	ctx.Step(`^a PDF whose text layer has only (\d+) characters$`, state.givenThinPDF)
	ctx.Step(`^a resume PDF$`, state.givenResumePDF)
	ctx.Step(`^the classifier returns a populated analysis$`, state.givenPopulatedAnswer)
	ctx.Step(`^the classifier returns an empty analysis every time$`, state.givenEmptyAnswers)
	ctx.Step(`^the classifier returns an empty analysis and then a populated one$`, state.givenEmptyThenPopulated)
	ctx.Step(`^the document is analyzed$`, state.whenAnalyzed)
	ctx.Step(`^the analysis succeeds$`, state.thenSucceeds)
	ctx.Step(`^the classifier was called (\d+) times?$`, state.thenCalls)
	ctx.Step(`^the classifier received the full extracted text$`, state.thenReceivedFullText)
	ctx.Step(`^the line of business is "([^"]+)"$`, state.thenLineOfBusiness)
	ctx.Step(`^extraction fails with "([^"]+)"$`, state.thenExtractionFails)
	ctx.Step(`^prequalification rejects the document$`, state.thenNotAPolicy)
	ctx.Step(`^the user is told "([^"]+)"$`, state.thenUserMessageContains)
	ctx.Step(`^the response carries the warning "([^"]+)"$`, state.thenWarning)
	ctx.Step(`^the response has no warnings$`, state.thenNoWarnings)
}

// recordingOracle wraps scriptedOracle and keeps what it was sent.
type recordingOracle struct {
	scriptedOracle

	mu             sync.Mutex
	texts          []string
	lineOfBusiness string
}

func (o *recordingOracle) Classify(ctx context.Context, req ValidatedRequest, lob string) (*models.PolicyAnalysis, error) {
	o.mu.Lock()
	o.texts = append(o.texts, req.Text)
	o.lineOfBusiness = lob
	o.mu.Unlock()
	return o.scriptedOracle.Classify(ctx, req, lob)
}

type pipelineScenarioState struct {
	pdf      []byte
	keywords []string
	oracle   *recordingOracle
	resp     *models.AnalysisResponse
	err      error
}

func (s *pipelineScenarioState) reset() {
	s.pdf = nil
	s.keywords = nil
	s.oracle = &recordingOracle{}
	s.resp = nil
	s.err = nil
}

func (s *pipelineScenarioState) givenPolicyPDF(k1, k2, k3, k4, k5, k6 string) error {
	s.keywords = []string{k1, k2, k3, k4, k5, k6}
	first := fmt.Sprintf("This %s %s sets out the %s payable each year and the %s for the plan.", k1, k2, k3, k4)
	second := fmt.Sprintf("It pays for %s costs and offers %s admission at partner facilities near you.", k5, k6)
	s.pdf = testutil.BuildPDF(testutil.Paragraph(first, 60), testutil.Paragraph(second, 60))
	return nil
}

func (s *pipelineScenarioState) givenThinPDF(n int) error {
	s.pdf = testutil.BuildPDF([]string{strings.Repeat("x", n)})
	return nil
}

func (s *pipelineScenarioState) givenResumePDF() error {
	s.pdf = testutil.ResumePDF()
	return nil
}

func (s *pipelineScenarioState) givenPopulatedAnswer() error {
	s.oracle.responses = []scriptedResponse{{analysis: populatedAnalysis()}}
	return nil
}

func (s *pipelineScenarioState) givenEmptyAnswers() error {
	s.oracle.responses = []scriptedResponse{{analysis: emptyAnalysis()}}
	return nil
}

func (s *pipelineScenarioState) givenEmptyThenPopulated() error {
	s.oracle.responses = []scriptedResponse{{analysis: emptyAnalysis()}, {analysis: populatedAnalysis()}}
	return nil
}

func (s *pipelineScenarioState) whenAnalyzed() error {
	lex, err := DefaultLexicons()
	if err != nil {
		return err
	}
	analyzer := NewAnalyzerService(
		NewPDFParserService(DefaultScannedTextThreshold),
		NewPrequalifier(lex, DefaultGeneralThreshold, DefaultLineOfBusinessThreshold),
		NewRequestFormatter(DefaultMinTextLength, DefaultMaxTextLength, DefaultMaxRequestBytes),
		NewPolicyClassifier(s.oracle, testExecutor(), nil, 0, nil),
		nil,
		nil,
		20*1024*1024,
	)
	s.resp, s.err = analyzer.Analyze(context.Background(), UploadInput{
		RequestID:    "scenario",
		Data:         s.pdf,
		ContentType:  "application/pdf",
		DeclaredSize: int64(len(s.pdf)),
	})
	return nil
}

func (s *pipelineScenarioState) thenSucceeds() error {
	if s.err != nil {
		return fmt.Errorf("expected success, got %v", s.err)
	}
	if s.resp == nil || s.resp.Analysis == nil {
		return fmt.Errorf("expected an analysis in the response")
	}
	return nil
}

func (s *pipelineScenarioState) thenCalls(n int) error {
	if got := s.oracle.Calls(); got != n {
		return fmt.Errorf("expected %d classifier calls, got %d", n, got)
	}
	return nil
}

func (s *pipelineScenarioState) thenReceivedFullText() error {
	doc, err := NewPDFParserService(DefaultScannedTextThreshold).Extract(context.Background(), s.pdf)
	if err != nil {
		return err
	}
	s.oracle.mu.Lock()
	defer s.oracle.mu.Unlock()
	if len(s.oracle.texts) == 0 {
		return fmt.Errorf("classifier received nothing")
	}
	got := s.oracle.texts[0]
	if got != SanitizeText(doc.Text) {
		return fmt.Errorf("classifier text differs from extracted text:\n%q\n%q", got, doc.Text)
	}
	for _, k := range s.keywords {
		if !strings.Contains(got, k) {
			return fmt.Errorf("keyword %q missing from classifier input", k)
		}
	}
	return nil
}

func (s *pipelineScenarioState) thenLineOfBusiness(lob string) error {
	if s.resp == nil || s.resp.Meta == nil || s.resp.Meta.LineOfBusiness != lob {
		return fmt.Errorf("expected line of business %q, got %+v", lob, s.resp)
	}
	s.oracle.mu.Lock()
	defer s.oracle.mu.Unlock()
	if s.oracle.lineOfBusiness != lob {
		return fmt.Errorf("classifier hint was %q", s.oracle.lineOfBusiness)
	}
	return nil
}

func (s *pipelineScenarioState) thenExtractionFails(kind string) error {
	var extErr *ExtractionError
	if !errors.As(s.err, &extErr) {
		return fmt.Errorf("expected an extraction error, got %v", s.err)
	}
	if string(extErr.Kind) != kind {
		return fmt.Errorf("expected kind %s, got %s", kind, extErr.Kind)
	}
	return nil
}

func (s *pipelineScenarioState) thenNotAPolicy() error {
	if !errors.Is(s.err, ErrNotAPolicy) {
		return fmt.Errorf("expected ErrNotAPolicy, got %v", s.err)
	}
	return nil
}

func (s *pipelineScenarioState) thenUserMessageContains(fragment string) error {
	var um UserMessenger
	if !errors.As(s.err, &um) {
		return fmt.Errorf("error %v has no user message", s.err)
	}
	if !strings.Contains(um.UserMessage(), fragment) {
		return fmt.Errorf("user message %q does not mention %q", um.UserMessage(), fragment)
	}
	return nil
}

func (s *pipelineScenarioState) thenWarning(warning string) error {
	if s.resp == nil || !slices.Contains(s.resp.Warnings, warning) {
		return fmt.Errorf("expected warning %q, got %+v", warning, s.resp)
	}
	return nil
}

func (s *pipelineScenarioState) thenNoWarnings() error {
	if s.resp == nil || len(s.resp.Warnings) != 0 {
		return fmt.Errorf("expected no warnings, got %+v", s.resp)
	}
	return nil
}
