package billpipe

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/billparse/internal/extract"
)

// Kind classifies pipeline failures.
type Kind string

const (
	// KindDownload is a failure fetching the source document. Fatal.
	KindDownload Kind = "download"
	// KindRasterization is a failure turning the document into page images. Fatal.
	KindRasterization Kind = "rasterization"
	// KindOCR is a text detection failure. Fatal.
	KindOCR Kind = "ocr"
	// KindExtraction is a failed model call for one page. The page is skipped.
	KindExtraction Kind = "extraction"
	// KindMalformedOutput is an unrepairable model reply for one page. The page is skipped.
	KindMalformedOutput Kind = "malformed_output"
)

// Fatal reports whether errors of this kind abort the request.
func (k Kind) Fatal() bool {
	return k == KindDownload || k == KindRasterization || k == KindOCR
}

// Error is a classified pipeline failure. Page is 1-based; 0 means the whole
// document.
type Error struct {
	Kind    Kind
	Page    int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Page > 0 {
		return fmt.Sprintf("page %d: %s", e.Page, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, page int, msg string, cause error) *Error {
	return &Error{Kind: kind, Page: page, Message: msg, Cause: cause}
}

// IsKind reports whether err is a pipeline error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}

// KindOf returns the kind of a pipeline error, or "" for other errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func classifyPageError(page int, err error) *Error {
	if errors.Is(err, extract.ErrMalformedOutput) {
		return newError(KindMalformedOutput, page, "model output could not be repaired", err)
	}
	return newError(KindExtraction, page, "extraction failed", err)
}
