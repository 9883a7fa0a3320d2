package extract

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedOutput marks model output that could not be turned into the
// expected JSON payload.
var ErrMalformedOutput = errors.New("malformed model output")

// MalformedOutputError carries the raw candidate text for diagnostics.
type MalformedOutputError struct {
	Raw string
	Err error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("%s: %v", ErrMalformedOutput, e.Err)
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

// Is matches ErrMalformedOutput.
func (e *MalformedOutputError) Is(target error) bool { return target == ErrMalformedOutput }

var fenceMarkers = []string{"```json", "```JSON", "```"}

// StripFences removes markdown code fence markers.
func StripFences(s string) string {
	for _, f := range fenceMarkers {
		s = strings.ReplaceAll(s, f, "")
	}
	return strings.TrimSpace(s)
}

// FirstObject returns the first balanced JSON object in s. Depth is counted
// from the first '{'; braces inside string literals are ignored.
func FirstObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", errors.New("no JSON object found")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errors.New("unbalanced braces in JSON object")
}

// Candidate strips fences and isolates the first JSON object of a raw model
// reply.
func Candidate(raw string) (string, error) {
	cleaned := StripFences(raw)
	obj, err := FirstObject(cleaned)
	if err != nil {
		return "", &MalformedOutputError{Raw: cleaned, Err: err}
	}
	return obj, nil
}
