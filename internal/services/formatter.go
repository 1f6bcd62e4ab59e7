package services

import (
	"strings"
	"unicode/utf8"

	"alfredoptarigan/policy-analyzer/internal/models"
)

const (
	DefaultMinTextLength   = 100
	DefaultMaxTextLength   = 500000
	DefaultMaxRequestBytes = 25 * 1024 * 1024
)

// ValidatedRequest is sanitized policy text that is within length bounds.
type ValidatedRequest struct {
	Text      string
	CharCount int
}

// Request returns the oracle wire body for the validated text.
func (v ValidatedRequest) Request() models.AnalyzePolicyRequest {
	return models.AnalyzePolicyRequest{PolicyText: v.Text}
}

// RequestFormatter enforces size and length bounds before any oracle call.
type RequestFormatter struct {
	minChars        int
	maxChars        int
	maxRequestBytes int64
}

func NewRequestFormatter(minChars, maxChars int, maxRequestBytes int64) *RequestFormatter {
	if minChars <= 0 {
		minChars = DefaultMinTextLength
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxTextLength
	}
	if maxRequestBytes <= 0 {
		maxRequestBytes = DefaultMaxRequestBytes
	}
	return &RequestFormatter{minChars: minChars, maxChars: maxChars, maxRequestBytes: maxRequestBytes}
}

func (f *RequestFormatter) MaxRequestBytes() int64 { return f.maxRequestBytes }

// CheckDeclaredSize rejects a request whose declared body size is over the
// limit. Call it before reading the body. A negative size means unknown and
// passes.
func (f *RequestFormatter) CheckDeclaredSize(declared int64) error {
	if declared > f.maxRequestBytes {
		return &ValidationError{Kind: ValidationPayloadTooLarge, Limit: f.maxRequestBytes, Actual: declared}
	}
	return nil
}

// Prepare strips control characters and checks the character bounds. Length
// is measured in runes after sanitizing.
func (f *RequestFormatter) Prepare(text string) (ValidatedRequest, error) {
	if text == "" {
		return ValidatedRequest{}, &ValidationError{Kind: ValidationMissingText, Limit: int64(f.minChars)}
	}

	clean := SanitizeText(text)
	n := utf8.RuneCountInString(clean)

	if n < f.minChars {
		return ValidatedRequest{}, &ValidationError{Kind: ValidationTooShort, Limit: int64(f.minChars), Actual: int64(n)}
	}
	if n > f.maxChars {
		return ValidatedRequest{}, &ValidationError{Kind: ValidationTooLong, Limit: int64(f.maxChars), Actual: int64(n)}
	}

	return ValidatedRequest{Text: clean, CharCount: n}, nil
}

// SanitizeText removes C0 control characters and DEL, keeping tab, line feed
// and carriage return.
func SanitizeText(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t', r == '\n', r == '\r':
			return r
		case r < 0x20, r == 0x7F:
			return -1
		}
		return r
	}, text)
}
