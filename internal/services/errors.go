package services

import (
	"context"
	"errors"
	"fmt"

	"alfredoptarigan/policy-analyzer/internal/models"
)

// Stage sentinels. Every typed error below matches exactly one of them with
// errors.Is.
var (
	ErrExtraction = errors.New("extraction failed")
	ErrNotAPolicy = errors.New("not an insurance policy document")
	ErrValidation = errors.New("validation failed")
	ErrOracle     = errors.New("oracle failed")
)

type ExtractionKind string

const (
	ExtractionPasswordProtected  ExtractionKind = "password_protected"
	ExtractionScannedOrImageOnly ExtractionKind = "scanned_or_image_only"
	ExtractionCorrupted          ExtractionKind = "corrupted"
	ExtractionUnknown            ExtractionKind = "unknown"
)

var extractionMessages = map[ExtractionKind]string{
	ExtractionPasswordProtected:  "This PDF is password protected. Please upload an unlocked version.",
	ExtractionScannedOrImageOnly: "This PDF appears to be scanned or image-based and we cannot extract text from it. Please upload a text-based (digital) version of your policy document, usually available from your insurer.",
	ExtractionCorrupted:          "We couldn't read this file. Please try uploading again.",
	ExtractionUnknown:            "We couldn't read this file.",
}

type ExtractionError struct {
	Kind  ExtractionKind
	Cause error
}

func newExtractionError(kind ExtractionKind, cause error) *ExtractionError {
	return &ExtractionError{Kind: kind, Cause: cause}
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %v", ErrExtraction, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s (%s)", ErrExtraction, e.Kind)
}

func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }
func (e *ExtractionError) Unwrap() error        { return e.Cause }

func (e *ExtractionError) UserMessage() string {
	return extractionMessages[e.Kind]
}

// PrequalificationError carries a rejecting verdict.
type PrequalificationError struct {
	Verdict models.Verdict
}

func (e *PrequalificationError) Error() string {
	return fmt.Sprintf("%s: %v", ErrNotAPolicy, e.Verdict.Reasons)
}

func (e *PrequalificationError) Is(target error) bool { return target == ErrNotAPolicy }

func (e *PrequalificationError) UserMessage() string {
	return "This doesn't appear to be an insurance policy document. Please upload a valid insurance policy PDF."
}

type ValidationKind string

const (
	ValidationTooShort        ValidationKind = "too_short"
	ValidationTooLong         ValidationKind = "too_long"
	ValidationPayloadTooLarge ValidationKind = "payload_too_large"
	ValidationMissingText     ValidationKind = "missing_text"
	ValidationUnsupportedType ValidationKind = "unsupported_type"
	ValidationMissingFile     ValidationKind = "missing_file"
)

type ValidationError struct {
	Kind   ValidationKind
	Limit  int64
	Actual int64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s (%s): got %d, limit %d", ErrValidation, e.Kind, e.Actual, e.Limit)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) UserMessage() string {
	switch e.Kind {
	case ValidationTooShort:
		return fmt.Sprintf("Policy text is too short to analyze (minimum %d characters).", e.Limit)
	case ValidationTooLong:
		return fmt.Sprintf("Policy text is too long to analyze (maximum %d characters).", e.Limit)
	case ValidationPayloadTooLarge:
		return fmt.Sprintf("Request is too large (maximum %d MB).", e.Limit/(1024*1024))
	case ValidationMissingText:
		return "Policy text is required."
	case ValidationUnsupportedType:
		return "Please upload a PDF file."
	case ValidationMissingFile:
		return "Please choose a PDF file to upload."
	}
	return "The request could not be validated."
}

type OracleKind string

const (
	OracleInvalidDocument    OracleKind = "invalid_document"
	OracleTransientFailure   OracleKind = "transient_failure"
	OracleMalformedResponse  OracleKind = "malformed_response"
	OracleConfigurationError OracleKind = "configuration_error"
)

// OracleError is a failure at the classification boundary. Reason is the
// oracle's own explanation and is only set for InvalidDocument.
type OracleError struct {
	Kind         OracleKind
	Reason       string
	DetectedType string
	Cause        error
}

func (e *OracleError) Error() string {
	msg := fmt.Sprintf("%s (%s)", ErrOracle, e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *OracleError) Is(target error) bool { return target == ErrOracle }
func (e *OracleError) Unwrap() error        { return e.Cause }

func (e *OracleError) UserMessage() string {
	if e.Kind == OracleInvalidDocument && e.Reason != "" {
		return e.Reason
	}
	return "Failed to analyze policy. Please try again."
}

// UserMessenger is implemented by every pipeline error that has a safe
// user-facing text.
type UserMessenger interface {
	UserMessage() string
}

// ErrorKind returns the stage-specific kind label of err, or "internal".
func ErrorKind(err error) string {
	var (
		extErr *ExtractionError
		preErr *PrequalificationError
		valErr *ValidationError
		orErr  *OracleError
	)
	switch {
	case errors.As(err, &extErr):
		return string(extErr.Kind)
	case errors.As(err, &preErr):
		return "not_a_policy"
	case errors.As(err, &valErr):
		return string(valErr.Kind)
	case errors.As(err, &orErr):
		return string(orErr.Kind)
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "internal"
}
