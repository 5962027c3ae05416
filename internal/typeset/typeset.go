package typeset

import (
	"errors"
	"fmt"
)

// Typesetter turns LaTeX math source into displayable text.
//
// Implementations report malformed source with a *ParseError. Any other error
// is treated by callers as a transient failure of the capability.
type Typesetter interface {
	Typeset(source string, display bool) (string, error)
}

// Func adapts an ordinary function to the Typesetter interface.
type Func func(source string, display bool) (string, error)

// Typeset calls f(source, display).
func (f Func) Typeset(source string, display bool) (string, error) {
	return f(source, display)
}

// ParseError describes math source that could not be typeset.
type ParseError struct {
	Source string
	Pos    int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("math parse error at position %d: %s", e.Pos, e.Msg)
}

// IsParseError reports whether err is (or wraps) a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
