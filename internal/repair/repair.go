// Package repair salvages a structured JSON value from raw language-model text.
//
// Model output is not schema-enforced: it may be wrapped in markdown fences,
// carry trailing commas, line comments or raw control characters, or be cut off
// mid-structure when the model hits its token limit. Parse runs a fixed ladder
// of increasingly invasive repairs and re-attempts a parse after each one. It
// never invents structure: when every stage fails the caller gets a *ParseError
// holding the original text.
package repair

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNoStructure = errors.New("no JSON object or array found")
	ErrUnbalanced  = errors.New("mismatched brackets")
)

// fencePattern matches markdown code fence markers with an optional language tag.
var fencePattern = regexp.MustCompile("```[A-Za-z0-9_-]*")

// Stage identifies which repair step produced a parseable document.
type Stage int

const (
	StageDirect    Stage = iota + 1 // parsed as extracted
	StageSanitized                  // control characters, comments, trailing commas removed
	StageTrimmed                    // trailing incomplete element dropped
	StageClosed                     // open brackets closed after trimming
)

func (s Stage) String() string {
	switch s {
	case StageDirect:
		return "direct"
	case StageSanitized:
		return "sanitized"
	case StageTrimmed:
		return "trimmed"
	case StageClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Result is a successfully parsed document.
type Result struct {
	// Value is a map[string]any or []any.
	Value any
	// Text is the repaired JSON text that was parsed.
	Text  string
	Stage Stage
}

// ParseError is returned when no stage produced valid JSON. Raw is the unmodified input.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("repair: unparseable model output (%d bytes): %v", len(e.Raw), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse extracts and repairs the widest JSON object or array in raw.
func Parse(raw string) (Result, error) {
	body := fencePattern.ReplaceAllString(raw, "")

	start := strings.IndexAny(body, "{[")
	if start < 0 {
		return Result{}, &ParseError{Raw: raw, Err: ErrNoStructure}
	}
	tail := body[start:]
	span := tail
	if end := strings.LastIndexAny(tail, "}]"); end >= 0 {
		span = tail[:end+1]
	}

	v, err := decode(span)
	if err == nil {
		return Result{Value: v, Text: span, Stage: StageDirect}, nil
	}
	lastErr := err

	cleaned := stripTrailingCommas(sanitize(span))
	if v, err := decode(cleaned); err == nil {
		return Result{Value: v, Text: cleaned, Stage: StageSanitized}, nil
	}

	// Truncation handling works on everything after the first opener: in a
	// cut-off document the last closer usually sits in the middle of an element.
	trimmed, open, err := trimIncomplete(stripTrailingCommas(sanitize(tail)))
	if err != nil {
		return Result{}, &ParseError{Raw: raw, Err: err}
	}
	trimmed = stripTrailingCommas(trimmed)

	if len(open) == 0 {
		v, err := decode(trimmed)
		if err == nil {
			return Result{Value: v, Text: trimmed, Stage: StageTrimmed}, nil
		}
		return Result{}, &ParseError{Raw: raw, Err: err}
	}

	closed := stripTrailingCommas(trimmed + closers(open))
	v, err = decode(closed)
	if err == nil {
		return Result{Value: v, Text: closed, Stage: StageClosed}, nil
	}
	return Result{}, &ParseError{Raw: raw, Err: errors.Join(lastErr, err)}
}

// Unmarshal repairs raw and decodes the result into v.
func Unmarshal(raw string, v any) (Stage, error) {
	res, err := Parse(raw)
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal([]byte(res.Text), v); err != nil {
		return res.Stage, &ParseError{Raw: raw, Err: err}
	}
	return res.Stage, nil
}

func decode(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, nil
	default:
		return nil, ErrNoStructure
	}
}
