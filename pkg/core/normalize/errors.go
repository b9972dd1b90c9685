package normalize

import (
	"fmt"
	"unicode/utf8"
)

// maxSample bounds the raw text carried by a ParseError.
const maxSample = 250

// ParseError means the model output was not JSON. Sample and StopReason let
// the user judge whether a retry is worthwhile (a "length"/"MAX_TOKENS" stop
// usually means the answer was cut off).
type ParseError struct {
	Sample     string
	StopReason string
	Cause      error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("model output is not valid JSON: %v; output starts with %q", e.Cause, e.Sample)
	if e.StopReason != "" {
		msg += fmt.Sprintf(" (stop reason %s)", e.StopReason)
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ShapeError means the JSON parsed but its top level is not what the caller expects.
type ShapeError struct {
	Expected string
	Got      string
	Detail   string
}

func (e *ShapeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("unexpected model output: expected %s, got %s (%s)", e.Expected, e.Got, e.Detail)
	}
	return fmt.Sprintf("unexpected model output: expected %s, got %s", e.Expected, e.Got)
}

// sample cuts s to maxSample runes.
func sample(s string) string {
	if utf8.RuneCountInString(s) <= maxSample {
		return s
	}
	r := []rune(s)
	return string(r[:maxSample])
}
