// Package extract turns one page of bill text into raw line items by prompting
// a language model and repairing its reply into the payload schema.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MeKo-Tech/billparse/internal/bill"
	"github.com/MeKo-Tech/billparse/internal/llm"
)

var (
	// ErrEmptyPage is returned for blank page text; no model call is made.
	ErrEmptyPage = errors.New("empty page text")
	// ErrCompletion wraps failures of the model call itself.
	ErrCompletion = errors.New("model completion failed")
)

// Result is the outcome of one page extraction. Usage is set even when the
// reply could not be parsed.
type Result struct {
	Document bill.RawDocument
	Usage    bill.TokenUsage
	Raw      string
	Notes    []string
}

// Extractor prompts the model once per page.
type Extractor struct {
	completer llm.Completer
	prompt    string
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTimeout caps each model call.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSystemPrompt replaces SystemPrompt.
func WithSystemPrompt(p string) Option {
	return func(e *Extractor) {
		if strings.TrimSpace(p) != "" {
			e.prompt = p
		}
	}
}

// New creates an Extractor around a completer.
func New(c llm.Completer, opts ...Option) *Extractor {
	e := &Extractor{
		completer: c,
		prompt:    SystemPrompt,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract sends pageText to the model and decodes the reply.
func (e *Extractor) Extract(ctx context.Context, pageText string) (*Result, error) {
	res := &Result{}
	if strings.TrimSpace(pageText) == "" {
		return res, ErrEmptyPage
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	comp, err := e.completer.Complete(callCtx, e.prompt, pageText)
	if comp != nil {
		res.Raw = comp.Text
		res.Usage = bill.TokenUsage{Total: comp.Usage.Total, Input: comp.Usage.Input, Output: comp.Usage.Output}
	}
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrCompletion, err)
	}

	doc, notes, err := Decode(comp.Text)
	res.Notes = notes
	if err != nil {
		return res, err
	}
	if len(notes) > 0 {
		e.logger.Debug("coerced model output", "notes", notes)
	}
	res.Document = doc
	return res, nil
}

// Decode repairs, coerces, validates and decodes a raw model reply.
func Decode(raw string) (bill.RawDocument, []string, error) {
	var doc bill.RawDocument
	candidate, err := Candidate(raw)
	if err != nil {
		return doc, nil, err
	}

	coerced, notes, err := bill.Coerce([]byte(candidate))
	if err != nil {
		return doc, nil, &MalformedOutputError{Raw: candidate, Err: err}
	}
	if err := Validate(coerced); err != nil {
		return doc, notes, &MalformedOutputError{Raw: candidate, Err: err}
	}
	if err := json.Unmarshal(coerced, &doc); err != nil {
		return doc, notes, &MalformedOutputError{Raw: candidate, Err: err}
	}
	return doc, notes, nil
}
