package domain

import (
	"fmt"
	"time"
)

// Mode selects how text is obtained from a document
type Mode string

const (
	// ModeVision renders pages to images and sends them to a multimodal model
	ModeVision Mode = "vision"
	// ModeText reads the PDF text layer and asks the model to clean it up
	ModeText Mode = "text"
)

// ParseMode converts a query value into a Mode
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeVision:
		return ModeVision, nil
	case ModeText:
		return ModeText, nil
	default:
		return "", ValidationError(fmt.Sprintf("unknown extraction method %q, expected text or vision", s), nil)
	}
}

// PageImage is a single rendered page, 1-based and contiguous within a document
type PageImage struct {
	PageNumber int
	Data       []byte
}

// SizeKB returns the encoded image size in kilobytes
func (p PageImage) SizeKB() float64 {
	return float64(len(p.Data)) / 1024
}

// ExtractionRequest is the immutable configuration of one extraction call
type ExtractionRequest struct {
	Mode           Mode
	ProcessPerPage bool
	MaxPages       int
	PageTimeout    time.Duration
	RetryCount     int
}

// Validate checks the request ranges
func (r ExtractionRequest) Validate() error {
	if r.Mode != ModeVision && r.Mode != ModeText {
		return ValidationError(fmt.Sprintf("unknown extraction method %q", r.Mode), nil)
	}
	if r.MaxPages < 1 {
		return ValidationError("max pages must be positive", nil)
	}
	if r.PageTimeout <= 0 {
		return ValidationError("page timeout must be positive", nil)
	}
	if r.RetryCount < 0 {
		return ValidationError("retry count must be non-negative", nil)
	}
	return nil
}

// Outcome tells apart the ways a call to the model can end
type Outcome string

const (
	// OutcomeText means the model returned content
	OutcomeText Outcome = "text"
	// OutcomeEmpty means the endpoint answered but the reply carried no content
	OutcomeEmpty Outcome = "empty"
	// OutcomeFailed means every attempt failed and a placeholder was substituted
	OutcomeFailed Outcome = "failed"
)

// PageResult is the text produced for one page in page-by-page mode
type PageResult struct {
	PageNumber int     `json:"page_number"`
	Text       string  `json:"text"`
	Succeeded  bool    `json:"succeeded"`
	Outcome    Outcome `json:"outcome"`
	Attempts   int     `json:"attempts"`
}

// ExtractionResult is the terminal output of one extraction
type ExtractionResult struct {
	FullText  string       `json:"text"`
	PageCount int          `json:"page_count"`
	Pages     []PageResult `json:"pages,omitempty"`
	// Partial is set when cancellation stopped the run before every page was processed
	Partial bool `json:"partial,omitempty"`
}

// FailedPages counts pages that ended with a placeholder error
func (r *ExtractionResult) FailedPages() int {
	n := 0
	for _, p := range r.Pages {
		if !p.Succeeded {
			n++
		}
	}
	return n
}

// Reply is the result of one successful inference call
type Reply struct {
	Text    string
	Outcome Outcome
}
