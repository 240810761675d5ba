package protocol

import "errors"

var (
	// ErrUnknownAspect indicates an aspect code outside of r, g, fr, fg, d.
	ErrUnknownAspect = errors.New("unknown aspect code")

	// ErrUnknownCommand indicates a frame whose first token is not a known
	// command family.
	ErrUnknownCommand = errors.New("unknown command")
)

// ParseError describes a frame that failed to decode. It retains the raw
// frame text so the receiver can echo it back to the sender.
type ParseError struct {
	// Raw is the offending frame as received, without the delimiter.
	Raw string
	// Reason describes why decoding failed.
	Reason string
}

func (e *ParseError) Error() string {
	return "parse " + e.Raw + ": " + e.Reason
}

// Diagnostic renders the reply frame reported back to the sender of the
// offending frame.
func (e *ParseError) Diagnostic() string {
	return e.Raw + ":ERROR - " + e.Reason
}

func parseErrorf(raw, reason string) *ParseError {
	return &ParseError{Raw: raw, Reason: reason}
}
