package handlers

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/pdfvision/internal/domain"
	"github.com/your-org/pdfvision/internal/middleware"
)

const (
	defaultFilename   = "document.pdf"
	multipartMemoryMB = 32

	noFileMessage = "No PDF file provided. Upload a file using multipart/form-data with 'file' field or send raw PDF with Content-Type: application/pdf"
)

//go:embed static/index.html
var indexHTML []byte

// ExtractionService runs one extraction
type ExtractionService interface {
	Extract(ctx context.Context, document []byte, req domain.ExtractionRequest) (*domain.ExtractionResult, error)
}

// Defaults fill the parts of a request the client does not send
type Defaults struct {
	MaxPages       int
	PageTimeout    time.Duration
	RetryCount     int
	ProcessPerPage bool
	MaxUploadBytes int64
}

// ExtractResponse is the body of a successful extraction
type ExtractResponse struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
	Method   string `json:"method"`
	// ProcessPerPage is null for text extraction
	ProcessPerPage *bool `json:"processPerPage"`
}

// ExtractHandler handles HTTP requests for text extraction
type ExtractHandler struct {
	service  ExtractionService
	defaults Defaults
	logger   *zap.Logger
}

// NewExtractHandler creates a new extract handler
func NewExtractHandler(service ExtractionService, defaults Defaults, logger *zap.Logger) *ExtractHandler {
	return &ExtractHandler{
		service:  service,
		defaults: defaults,
		logger:   logger,
	}
}

// Index handles GET /
func (h *ExtractHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(indexHTML)
}

// ExtractText handles POST /extract-text
func (h *ExtractHandler) ExtractText(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	method := r.URL.Query().Get("method")
	if method == "" {
		method = string(domain.ModeVision)
	}
	mode, err := domain.ParseMode(method)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	processPerPage := h.defaults.ProcessPerPage
	if raw := r.URL.Query().Get("processPerPage"); raw != "" {
		processPerPage, err = strconv.ParseBool(raw)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid processPerPage value %q", raw), requestID)
			return
		}
	}

	if h.defaults.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.defaults.MaxUploadBytes)
	}

	content, filename, uploadErr := h.readDocument(r)
	if uploadErr != nil {
		h.logger.Warn("rejected upload",
			zap.String("request_id", requestID),
			zap.Int("status", uploadErr.status),
			zap.String("detail", uploadErr.detail),
		)
		h.respondError(w, uploadErr.status, uploadErr.detail, requestID)
		return
	}

	h.logger.Info("extracting text",
		zap.String("request_id", requestID),
		zap.String("filename", filename),
		zap.Int("bytes", len(content)),
		zap.String("method", string(mode)),
		zap.Bool("process_per_page", processPerPage),
	)

	req := domain.ExtractionRequest{
		Mode:           mode,
		ProcessPerPage: processPerPage,
		MaxPages:       h.defaults.MaxPages,
		PageTimeout:    h.defaults.PageTimeout,
		RetryCount:     h.defaults.RetryCount,
	}

	result, err := h.service.Extract(ctx, content, req)
	if err != nil {
		h.logger.Error("failed to process file",
			zap.String("request_id", requestID),
			zap.String("filename", filename),
			zap.String("kind", string(domain.KindOf(err))),
			zap.Error(err),
		)
		if domain.IsKind(err, domain.KindValidation) {
			h.respondError(w, http.StatusBadRequest, err.Error(), requestID)
			return
		}
		h.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Error processing file: %v", err), requestID)
		return
	}

	resp := ExtractResponse{
		Filename: filename,
		Text:     result.FullText,
		Method:   string(mode),
	}
	if mode == domain.ModeVision {
		resp.ProcessPerPage = &processPerPage
	}

	h.respondJSON(w, http.StatusOK, resp, requestID)
}

// uploadError carries the status and client-facing detail of a rejected upload
type uploadError struct {
	status int
	detail string
}

func (e *uploadError) Error() string {
	return e.detail
}

func badUpload(detail string) *uploadError {
	return &uploadError{status: http.StatusBadRequest, detail: detail}
}

func readFailure(what string, err error) *uploadError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &uploadError{
			status: http.StatusRequestEntityTooLarge,
			detail: fmt.Sprintf("File exceeds the %d byte upload limit", tooLarge.Limit),
		}
	}
	return badUpload(fmt.Sprintf("failed to read %s: %v", what, err))
}

// readDocument accepts a multipart "file" field or a raw application/pdf body
func (h *ExtractHandler) readDocument(r *http.Request) ([]byte, string, *uploadError) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/pdf":
		content, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, "", readFailure("request body", err)
		}
		if len(content) == 0 {
			return nil, "", badUpload("Empty PDF content")
		}
		filename := r.Header.Get("File-Name")
		if filename == "" {
			filename = defaultFilename
		}
		return content, filename, nil

	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemoryMB << 20); err != nil {
			return nil, "", readFailure("multipart form", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", badUpload(noFileMessage)
		}
		defer file.Close()

		if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
			return nil, "", badUpload("Only PDF files are supported")
		}
		content, err := io.ReadAll(file)
		if err != nil {
			return nil, "", readFailure("uploaded file", err)
		}
		if len(content) == 0 {
			return nil, "", badUpload("Empty PDF content")
		}
		return content, header.Filename, nil

	default:
		return nil, "", badUpload(noFileMessage)
	}
}

// respondJSON sends a JSON response
func (h *ExtractHandler) respondJSON(w http.ResponseWriter, status int, data interface{}, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
}

// respondError sends an error response
func (h *ExtractHandler) respondError(w http.ResponseWriter, status int, detail, requestID string) {
	h.respondJSON(w, status, map[string]string{
		"detail":     detail,
		"request_id": requestID,
	}, requestID)
}
