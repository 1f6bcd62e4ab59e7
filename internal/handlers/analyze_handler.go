package handlers

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"alfredoptarigan/policy-analyzer/internal/models"
	"alfredoptarigan/policy-analyzer/internal/services"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

type AnalyzeHandler struct {
	analyzer    services.AnalyzerService
	maxFileSize int64
}

func NewAnalyzeHandler(analyzer services.AnalyzerService, maxFileSize int64) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzer:    analyzer,
		maxFileSize: maxFileSize,
	}
}

// HandleAnalyze handles POST /analyze
func (h *AnalyzeHandler) HandleAnalyze(c *fiber.Ctx) error {
	in, err := h.readUpload(c)
	if err != nil {
		return respondError(c, err)
	}

	resp, err := h.analyzer.Analyze(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

// HandlePrequalify handles POST /prequalify
func (h *AnalyzeHandler) HandlePrequalify(c *fiber.Ctx) error {
	in, err := h.readUpload(c)
	if err != nil {
		return respondError(c, err)
	}

	resp, err := h.analyzer.Prequalify(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

// HandleAnalyzePolicy handles POST /analyze-policy, the text-only contract.
// The declared size is checked before the body is parsed.
func (h *AnalyzeHandler) HandleAnalyzePolicy(c *fiber.Ctx) error {
	if err := h.analyzer.CheckDeclaredSize(int64(c.Request().Header.ContentLength())); err != nil {
		return respondError(c, err)
	}

	var req models.AnalyzePolicyRequest
	if err := c.BodyParser(&req); err != nil || req.PolicyText == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Policy text is required",
			Message: "Send a JSON body with a non-empty policyText field.",
		})
	}

	resp, err := h.analyzer.AnalyzeText(c.UserContext(), requestID(c), req.PolicyText)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *AnalyzeHandler) readUpload(c *fiber.Ctx) (services.UploadInput, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return services.UploadInput{}, &services.ValidationError{Kind: services.ValidationMissingFile}
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") && !strings.Contains(contentType, "pdf") {
		return services.UploadInput{}, &services.ValidationError{Kind: services.ValidationUnsupportedType}
	}
	if h.maxFileSize > 0 && fileHeader.Size > h.maxFileSize {
		return services.UploadInput{}, &services.ValidationError{
			Kind:   services.ValidationPayloadTooLarge,
			Limit:  h.maxFileSize,
			Actual: fileHeader.Size,
		}
	}

	f, err := fileHeader.Open()
	if err != nil {
		return services.UploadInput{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return services.UploadInput{}, err
	}

	return services.UploadInput{
		RequestID:    requestID(c),
		Data:         data,
		ContentType:  contentType,
		DeclaredSize: fileHeader.Size,
	}, nil
}

// requestID returns the caller's X-Request-ID or a fresh one, and remembers
// it for the rest of the request.
func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestIDKey).(string); ok && id != "" {
		return id
	}
	id := strings.TrimSpace(c.Get(requestIDHeader))
	if id == "" || len(id) > 64 {
		id = uuid.NewString()
	}
	c.Locals(requestIDKey, id)
	c.Set(requestIDHeader, id)
	return id
}
