package pdfvalidation

import (
	"bytes"
	"fmt"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/ledongthuc/pdf"
)

// Limits bounds an uploaded PDF
type Limits struct {
	MaxFileSizeMB int
	MaxPages      int
	Label         string // used in messages, e.g. "notes"
}

var (
	DefaultLimits = Limits{MaxFileSizeMB: 50, MaxPages: 500, Label: "document"}

	NotesLimits        = Limits{MaxFileSizeMB: 100, MaxPages: 2000, Label: "notes"}
	PYQLimits          = Limits{MaxFileSizeMB: 50, MaxPages: 100, Label: "question paper"}
	PresentationLimits = Limits{MaxFileSizeMB: 100, MaxPages: 500, Label: "presentation"}
)

// LimitsFor picks the limits for a resource type
func LimitsFor(t model.ResourceType) Limits {
	switch t {
	case model.ResourceTypeNotes:
		return NotesLimits
	case model.ResourceTypePYQ, model.ResourceTypeImportantQuestions:
		return PYQLimits
	case model.ResourceTypePresentation:
		return PresentationLimits
	default:
		return DefaultLimits
	}
}

// Result is the outcome of Validate. Error holds a user-facing reason when Valid is false.
type Result struct {
	Valid     bool
	PageCount int
	FileSize  int64
	Error     string
}

// IsPDF reports whether content starts with the PDF header
func IsPDF(content []byte) bool {
	return bytes.HasPrefix(content, []byte("%PDF-"))
}

// Validate checks size, header and page count. Only I/O style failures are
// returned as errors; an unacceptable file yields a Result with Valid=false.
func Validate(content []byte, limits Limits) (*Result, error) {
	result := &Result{FileSize: int64(len(content))}

	maxSize := int64(limits.MaxFileSizeMB) * 1024 * 1024
	if result.FileSize > maxSize {
		result.Error = fmt.Sprintf("File size exceeds maximum allowed size of %dMB", limits.MaxFileSizeMB)
		return result, nil
	}

	if !IsPDF(content) {
		result.Error = "Invalid PDF file: missing PDF header"
		return result, nil
	}

	pageCount, err := PageCount(content)
	if err != nil {
		result.Error = fmt.Sprintf("Failed to read PDF: %v", err)
		return result, nil
	}
	result.PageCount = pageCount

	if pageCount == 0 {
		result.Error = "PDF has no pages"
		return result, nil
	}
	if pageCount > limits.MaxPages {
		result.Error = fmt.Sprintf("PDF has %d pages, which exceeds the maximum of %d pages for %s",
			pageCount, limits.MaxPages, limits.Label)
		return result, nil
	}

	result.Valid = true
	return result, nil
}

// sanitize drops trailing bytes after the last %%EOF marker
func sanitize(content []byte) []byte {
	lastEOF := bytes.LastIndex(content, []byte("%%EOF"))
	if lastEOF == -1 {
		return content
	}

	end := lastEOF + len("%%EOF")
	for end < len(content) && (content[end] == '\n' || content[end] == '\r') {
		end++
	}
	return content[:end]
}

// PageCount returns the number of pages in a PDF
func PageCount(content []byte) (int, error) {
	content = sanitize(content)
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse PDF: %w", err)
	}
	return reader.NumPage(), nil
}
