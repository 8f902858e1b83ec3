// Package pdfinfo reads document level facts from a PDF without rendering it.
package pdfinfo

import (
	"bytes"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/your-org/pdfvision/internal/domain"
)

// Info describes a PDF
type Info struct {
	PageCount int   `json:"page_count"`
	Encrypted bool  `json:"encrypted"`
	SizeBytes int64 `json:"size_bytes"`
}

// PagesToProcess returns how many pages an extraction capped at maxPages will send to the model
func (i Info) PagesToProcess(maxPages int) int {
	if maxPages > 0 && i.PageCount > maxPages {
		return maxPages
	}
	return i.PageCount
}

// Inspect parses the document structure with pdfcpu
func Inspect(document []byte) (Info, error) {
	if len(document) == 0 {
		return Info{}, domain.ValidationError("empty document", nil)
	}

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadContext(bytes.NewReader(document), conf)
	if err != nil {
		return Info{}, domain.RenderError("failed to read PDF structure", err)
	}

	return Info{
		PageCount: ctx.PageCount,
		Encrypted: ctx.Encrypt != nil,
		SizeBytes: int64(len(document)),
	}, nil
}
