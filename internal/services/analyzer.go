package services

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"strings"
	"time"

	"alfredoptarigan/policy-analyzer/internal/metrics"
	"alfredoptarigan/policy-analyzer/internal/models"
)

const (
	stageExtract    = "extract"
	stagePrequalify = "prequalify"
	stagePrepare    = "prepare"
	stageClassify   = "classify"
)

// RunRecorder persists run metadata. It is satisfied by
// repositories.AnalysisRunRepository.
type RunRecorder interface {
	Create(run *models.AnalysisRun) error
}

// UploadInput is an uploaded file as declared by the caller.
type UploadInput struct {
	RequestID    string
	Data         []byte
	ContentType  string
	DeclaredSize int64
}

type AnalyzerService interface {
	// Analyze runs extract, prequalify, prepare and classify on a PDF.
	Analyze(ctx context.Context, in UploadInput) (*models.AnalysisResponse, error)
	// AnalyzeText runs prepare and classify on already extracted text.
	AnalyzeText(ctx context.Context, requestID, text string) (*models.AnalysisResponse, error)
	// Prequalify runs extraction and the keyword gate only.
	Prequalify(ctx context.Context, in UploadInput) (*models.PrequalifyResponse, error)
	CheckDeclaredSize(size int64) error
}

type analyzerService struct {
	parser         PDFParserService
	prequalifier   *Prequalifier
	formatter      *RequestFormatter
	classifier     *PolicyClassifier
	recorder       RunRecorder
	metrics        *metrics.PipelineMetrics
	maxUploadBytes int64
}

// NewAnalyzerService wires the pipeline. recorder and m may be nil.
func NewAnalyzerService(
	parser PDFParserService,
	prequalifier *Prequalifier,
	formatter *RequestFormatter,
	classifier *PolicyClassifier,
	recorder RunRecorder,
	m *metrics.PipelineMetrics,
	maxUploadBytes int64,
) AnalyzerService {
	return &analyzerService{
		parser:         parser,
		prequalifier:   prequalifier,
		formatter:      formatter,
		classifier:     classifier,
		recorder:       recorder,
		metrics:        m,
		maxUploadBytes: maxUploadBytes,
	}
}

func (a *analyzerService) CheckDeclaredSize(size int64) error {
	return a.formatter.CheckDeclaredSize(size)
}

func (a *analyzerService) Analyze(ctx context.Context, in UploadInput) (resp *models.AnalysisResponse, err error) {
	run := &models.AnalysisRun{RequestID: in.RequestID, Source: models.SourceUpload}
	started := time.Now()
	defer func() { a.finish(run, started, resp, err) }()

	doc, err := a.extract(ctx, in)
	if err != nil {
		return nil, err
	}
	run.PageCount = doc.PageCount
	run.CharCount = doc.CharCount

	verdict, err := a.prequalify(ctx, doc.Text)
	run.GeneralMatches = verdict.Scores[generalCategory]
	run.LineOfBusiness = verdict.LineOfBusiness
	run.CategoryScores = verdict.Scores
	if err != nil {
		return nil, err
	}

	resp, err = a.classify(ctx, run, doc.Text, verdict.LineOfBusiness)
	if err != nil {
		return nil, err
	}
	resp.Meta.PageCount = doc.PageCount
	return resp, nil
}

func (a *analyzerService) AnalyzeText(ctx context.Context, requestID, text string) (resp *models.AnalysisResponse, err error) {
	run := &models.AnalysisRun{RequestID: requestID, Source: models.SourceText}
	started := time.Now()
	defer func() { a.finish(run, started, resp, err) }()

	return a.classify(ctx, run, text, "")
}

func (a *analyzerService) Prequalify(ctx context.Context, in UploadInput) (*models.PrequalifyResponse, error) {
	doc, err := a.extract(ctx, in)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	verdict := a.prequalifier.Prequalify(doc.Text)
	a.metrics.ObserveStage(stagePrequalify, verdictOutcome(verdict), time.Since(started))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &models.PrequalifyResponse{Document: *doc, Verdict: verdict}, nil
}

func (a *analyzerService) extract(ctx context.Context, in UploadInput) (*models.ExtractedDocument, error) {
	if err := checkPDFContentType(in.ContentType); err != nil {
		return nil, err
	}
	if a.maxUploadBytes > 0 && in.DeclaredSize > a.maxUploadBytes {
		return nil, &ValidationError{Kind: ValidationPayloadTooLarge, Limit: a.maxUploadBytes, Actual: in.DeclaredSize}
	}

	started := time.Now()
	doc, err := a.parser.Extract(ctx, in.Data)
	a.metrics.ObserveStage(stageExtract, stageOutcome(err), time.Since(started))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.metrics.ObserveExtractedChars(doc.CharCount)
	slog.Info("pipeline.extract.ok",
		"request_id", in.RequestID,
		"pages", doc.PageCount,
		"chars", doc.CharCount,
	)
	return doc, nil
}

func (a *analyzerService) prequalify(ctx context.Context, text string) (models.Verdict, error) {
	started := time.Now()
	verdict, err := a.prequalifier.Check(text)
	a.metrics.ObserveStage(stagePrequalify, verdictOutcome(verdict), time.Since(started))
	if err != nil {
		return verdict, err
	}
	return verdict, ctx.Err()
}

func (a *analyzerService) classify(ctx context.Context, run *models.AnalysisRun, text, lineOfBusiness string) (*models.AnalysisResponse, error) {
	started := time.Now()
	req, err := a.formatter.Prepare(text)
	a.metrics.ObserveStage(stagePrepare, stageOutcome(err), time.Since(started))
	if err != nil {
		return nil, err
	}
	if run.CharCount == 0 {
		run.CharCount = req.CharCount
	}

	started = time.Now()
	result, err := a.classifier.Classify(ctx, req, lineOfBusiness)
	a.metrics.ObserveStage(stageClassify, stageOutcome(err), time.Since(started))
	if err != nil {
		return nil, err
	}
	// A result that lands after the caller gave up is dropped.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run.OracleAttempts = result.Attempts
	return &models.AnalysisResponse{
		Analysis: result.Analysis,
		Warnings: result.Warnings,
		Meta: &models.AnalysisMeta{
			RequestID:      run.RequestID,
			CharCount:      req.CharCount,
			LineOfBusiness: lineOfBusiness,
			Attempts:       result.Attempts,
		},
	}, nil
}

// finish logs the run and hands its metadata to the recorder. Recorder
// failures are logged and never change the response.
func (a *analyzerService) finish(run *models.AnalysisRun, started time.Time, resp *models.AnalysisResponse, err error) {
	run.DurationMs = time.Since(started).Milliseconds()
	run.Outcome = runOutcome(err)

	if err != nil {
		run.ErrorKind = ErrorKind(err)
		level := slog.LevelWarn
		if run.Outcome == models.OutcomeFailed {
			level = slog.LevelError
		}
		slog.Log(context.Background(), level, "pipeline.run.failed",
			"request_id", run.RequestID,
			"source", run.Source,
			"kind", run.ErrorKind,
			"duration_ms", run.DurationMs,
			"error", err,
		)
	} else if resp != nil && resp.Analysis != nil {
		s := resp.Analysis.Summary
		run.GreatCount, run.GoodCount, run.BadCount, run.UnclearCount = s.Great, s.Good, s.Bad, s.Unclear
		run.Warnings = strings.Join(resp.Warnings, ",")
		slog.Info("pipeline.run.completed",
			"request_id", run.RequestID,
			"source", run.Source,
			"attempts", run.OracleAttempts,
			"features", resp.Analysis.TotalFeatures(),
			"warnings", resp.Warnings,
			"duration_ms", run.DurationMs,
		)
	}

	if a.recorder == nil {
		return
	}
	if recErr := a.recorder.Create(run); recErr != nil {
		slog.Error("pipeline.audit.failed", "request_id", run.RequestID, "error", recErr)
	}
}

func runOutcome(err error) models.RunOutcome {
	switch {
	case err == nil:
		return models.OutcomeCompleted
	case isContextError(err) && !errors.Is(err, ErrOracle):
		return models.OutcomeCancelled
	case errors.Is(err, ErrExtraction), errors.Is(err, ErrNotAPolicy), errors.Is(err, ErrValidation):
		return models.OutcomeRejected
	case oracleKind(err) == OracleInvalidDocument:
		return models.OutcomeRejected
	}
	return models.OutcomeFailed
}

func stageOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	return ErrorKind(err)
}

func verdictOutcome(v models.Verdict) string {
	if v.Accepted {
		return "accepted"
	}
	return "rejected"
}

// checkPDFContentType accepts PDFs and the generic types browsers send for
// unknown files. An empty type is left to the parser.
func checkPDFContentType(contentType string) error {
	if strings.TrimSpace(contentType) == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return &ValidationError{Kind: ValidationUnsupportedType}
	}
	switch mediaType {
	case "application/pdf", "application/x-pdf", "application/octet-stream":
		return nil
	}
	return &ValidationError{Kind: ValidationUnsupportedType}
}
