package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/pdfvision/internal/domain"
)

// MockExtractionService is a mock implementation of ExtractionService
type MockExtractionService struct {
	mock.Mock
}

var _ ExtractionService = (*MockExtractionService)(nil)

func (m *MockExtractionService) Extract(ctx context.Context, document []byte, req domain.ExtractionRequest) (*domain.ExtractionResult, error) {
	args := m.Called(ctx, document, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionResult), args.Error(1)
}

var testDefaults = Defaults{
	MaxPages:       10,
	PageTimeout:    90 * time.Second,
	RetryCount:     2,
	ProcessPerPage: true,
	MaxUploadBytes: 1 << 20,
}

var pdfContent = []byte("%PDF-1.4 fake")

func newTestHandler(t *testing.T) (*ExtractHandler, *MockExtractionService) {
	service := new(MockExtractionService)
	return NewExtractHandler(service, testDefaults, zaptest.NewLogger(t)), service
}

func multipartRequest(t *testing.T, target, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func rawRequest(target string, content []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(content))
	req.Header.Set("Content-Type", "application/pdf")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestExtractTextMultipartVision(t *testing.T) {
	handler, service := newTestHandler(t)

	expected := domain.ExtractionRequest{
		Mode:           domain.ModeVision,
		ProcessPerPage: true,
		MaxPages:       10,
		PageTimeout:    90 * time.Second,
		RetryCount:     2,
	}
	service.On("Extract", mock.Anything, pdfContent, expected).
		Return(&domain.ExtractionResult{FullText: "\n--- Page 1 ---\nhello", PageCount: 1}, nil).Once()

	rec := httptest.NewRecorder()
	handler.ExtractText(rec, multipartRequest(t, "/extract-text", "report.pdf", pdfContent))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "report.pdf", body["filename"])
	assert.Equal(t, "\n--- Page 1 ---\nhello", body["text"])
	assert.Equal(t, "vision", body["method"])
	assert.Equal(t, true, body["processPerPage"])
	service.AssertExpectations(t)
}

func TestExtractTextRawBody(t *testing.T) {
	handler, service := newTestHandler(t)

	service.On("Extract", mock.Anything, pdfContent, mock.MatchedBy(func(req domain.ExtractionRequest) bool {
		return req.Mode == domain.ModeVision && !req.ProcessPerPage
	})).Return(&domain.ExtractionResult{FullText: "batch text"}, nil).Once()

	req := rawRequest("/extract-text?method=vision&processPerPage=false", pdfContent)
	req.Header.Set("File-Name", "scan.pdf")
	rec := httptest.NewRecorder()
	handler.ExtractText(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "scan.pdf", body["filename"])
	assert.Equal(t, "batch text", body["text"])
	assert.Equal(t, false, body["processPerPage"])
	service.AssertExpectations(t)
}

func TestExtractTextRawBodyDefaultFilename(t *testing.T) {
	handler, service := newTestHandler(t)
	service.On("Extract", mock.Anything, pdfContent, mock.Anything).
		Return(&domain.ExtractionResult{FullText: "text"}, nil).Once()

	rec := httptest.NewRecorder()
	handler.ExtractText(rec, rawRequest("/extract-text", pdfContent))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "document.pdf", decodeBody(t, rec)["filename"])
}

func TestExtractTextMethodHasNullProcessPerPage(t *testing.T) {
	handler, service := newTestHandler(t)
	service.On("Extract", mock.Anything, pdfContent, mock.MatchedBy(func(req domain.ExtractionRequest) bool {
		return req.Mode == domain.ModeText
	})).Return(&domain.ExtractionResult{FullText: "clean"}, nil).Once()

	rec := httptest.NewRecorder()
	handler.ExtractText(rec, rawRequest("/extract-text?method=text", pdfContent))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"processPerPage":null`)
	assert.Equal(t, "text", decodeBody(t, rec)["method"])
}

func TestExtractTextBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		detail string
	}{
		{
			name: "no file",
			req: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/extract-text", bytes.NewReader([]byte(`{}`)))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			detail: "No PDF file provided",
		},
		{
			name: "not a pdf filename",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/extract-text", "notes.txt", []byte("hello"))
			},
			detail: "Only PDF files are supported",
		},
		{
			name: "empty raw body",
			req: func(t *testing.T) *http.Request {
				return rawRequest("/extract-text", nil)
			},
			detail: "Empty PDF content",
		},
		{
			name: "empty multipart file",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/extract-text", "empty.pdf", nil)
			},
			detail: "Empty PDF content",
		},
		{
			name: "invalid method",
			req: func(t *testing.T) *http.Request {
				return rawRequest("/extract-text?method=ocr", pdfContent)
			},
			detail: "unknown extraction method",
		},
		{
			name: "invalid processPerPage",
			req: func(t *testing.T) *http.Request {
				return rawRequest("/extract-text?processPerPage=maybe", pdfContent)
			},
			detail: "invalid processPerPage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, service := newTestHandler(t)

			rec := httptest.NewRecorder()
			handler.ExtractText(rec, tt.req(t))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeBody(t, rec)["detail"], tt.detail)
			service.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestExtractTextUploadTooLarge(t *testing.T) {
	service := new(MockExtractionService)
	defaults := testDefaults
	defaults.MaxUploadBytes = 8
	handler := NewExtractHandler(service, defaults, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	handler.ExtractText(rec, rawRequest("/extract-text", bytes.Repeat([]byte("x"), 64)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	service.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything)
}

func TestExtractTextProcessingFailure(t *testing.T) {
	handler, service := newTestHandler(t)
	service.On("Extract", mock.Anything, pdfContent, mock.Anything).
		Return(nil, domain.RenderError("failed to open PDF", errors.New("bad xref"))).Once()

	rec := httptest.NewRecorder()
	handler.ExtractText(rec, rawRequest("/extract-text", pdfContent))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error processing file: failed to open PDF: bad xref", decodeBody(t, rec)["detail"])
}

func TestExtractTextCancelledIsFailure(t *testing.T) {
	handler, service := newTestHandler(t)
	service.On("Extract", mock.Anything, pdfContent, mock.Anything).
		Return(&domain.ExtractionResult{FullText: "partial", Partial: true},
			domain.CanceledError("extraction cancelled after 1 of 3 pages", context.Canceled)).Once()

	rec := httptest.NewRecorder()
	handler.ExtractText(rec, rawRequest("/extract-text", pdfContent))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], "extraction cancelled")
}

func TestExtractTextValidationErrorIsBadRequest(t *testing.T) {
	handler, service := newTestHandler(t)
	service.On("Extract", mock.Anything, pdfContent, mock.Anything).
		Return(nil, domain.ValidationError("max pages must be positive", nil)).Once()

	rec := httptest.NewRecorder()
	handler.ExtractText(rec, rawRequest("/extract-text", pdfContent))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "max pages must be positive", decodeBody(t, rec)["detail"])
}

func TestIndexServesUploadForm(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.Index(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/extract-text")
}
