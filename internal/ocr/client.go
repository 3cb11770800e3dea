// Package ocr talks to the prescription analysis service that turns an
// uploaded image into a structured medicine list.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"medeasy/marketplace/domain"
)

type Reason string

const (
	ReasonUnreadableImage    Reason = "unreadable_image"
	ReasonUnsupportedFormat  Reason = "unsupported_format"
	ReasonMissingCredential  Reason = "missing_credential"
	ReasonServiceUnavailable Reason = "service_unavailable"
)

// ErrFailure matches every *Failure.
var ErrFailure = errors.New("prescription extraction failed")

// Failure is the OCR collaborator's own error kind. Callers pass it through
// unchanged.
type Failure struct {
	Reason Reason
	Detail string
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return fmt.Sprintf("ocr: %s", f.Reason)
	}
	return fmt.Sprintf("ocr: %s: %s", f.Reason, f.Detail)
}

func (f *Failure) Unwrap() error { return ErrFailure }

// Result is a successful extraction.
type Result struct {
	Medicines     []domain.ExtractedMedicine `json:"medicines"`
	ExtractedText string                     `json:"extracted_text"`
	Note          string                     `json:"note,omitempty"`
}

// Extractor is what the fulfillment service needs from the OCR service.
type Extractor interface {
	Extract(ctx context.Context, image []byte, filename string) (*Result, error)
}

var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".pdf":  true,
}

// Client is the HTTP Extractor.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type analyzeResponse struct {
	Success   bool                       `json:"success"`
	Medicines []domain.ExtractedMedicine `json:"medicines"`
	RawText   string                     `json:"raw_text"`
	Note      string                     `json:"note,omitempty"`
	Error     string                     `json:"error,omitempty"`
	ErrorCode string                     `json:"error_code,omitempty"`
}

// Extract uploads the image and decodes the medicine list.
func (c *Client) Extract(ctx context.Context, image []byte, filename string) (*Result, error) {
	if c.apiKey == "" {
		return nil, &Failure{Reason: ReasonMissingCredential, Detail: "OCR_API_KEY is not configured"}
	}
	if !supportedExtensions[strings.ToLower(filepath.Ext(filename))] {
		return nil, &Failure{Reason: ReasonUnsupportedFormat, Detail: filename}
	}
	if len(image) == 0 {
		return nil, &Failure{Reason: ReasonUnreadableImage, Detail: "empty image"}
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(image)); err != nil {
		return nil, fmt.Errorf("failed to copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze-prescription", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("ocr service unreachable", zap.Error(err))
		return nil, &Failure{Reason: ReasonServiceUnavailable, Detail: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Failure{Reason: ReasonServiceUnavailable, Detail: "failed to read response"}
	}

	c.logger.Debug("ocr service responded",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, &Failure{Reason: reasonForStatus(resp.StatusCode), Detail: strings.TrimSpace(string(raw))}
	}

	var out analyzeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Failure{Reason: ReasonServiceUnavailable, Detail: fmt.Sprintf("malformed response: %v", err)}
	}
	if !out.Success {
		return nil, &Failure{Reason: reasonForCode(out.ErrorCode), Detail: out.Error}
	}

	return &Result{
		Medicines:     out.Medicines,
		ExtractedText: out.RawText,
		Note:          out.Note,
	}, nil
}

func reasonForStatus(code int) Reason {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ReasonMissingCredential
	case http.StatusUnsupportedMediaType:
		return ReasonUnsupportedFormat
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ReasonUnreadableImage
	default:
		return ReasonServiceUnavailable
	}
}

func reasonForCode(code string) Reason {
	switch Reason(code) {
	case ReasonUnsupportedFormat, ReasonMissingCredential, ReasonServiceUnavailable:
		return Reason(code)
	default:
		return ReasonUnreadableImage
	}
}
