package markup

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ZaguanLabs/mathgpt/internal/typeset"
)

// Unit is a rendered fragment, ready for a Formatter.
type Unit struct {
	Fragment Fragment

	// Text is the displayable content: the fragment's Raw text for
	// structural kinds, the typeset output for math, or the verbatim
	// delimited source when typesetting failed.
	Text string

	// Fallback marks math that could not be typeset.
	Fallback bool

	// Err is the typesetter failure behind a fallback unit.
	Err error
}

// Renderer maps fragments to units, typesetting math on the way.
type Renderer struct {
	typesetter typeset.Typesetter
	logger     *zap.Logger
}

// NewRenderer returns a Renderer using ts for math fragments. A nil logger
// disables logging.
func NewRenderer(ts typeset.Typesetter, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{typesetter: ts, logger: logger}
}

// Render converts one fragment. It never fails: a math fragment the
// typesetter rejects becomes a fallback unit holding the fragment's source.
func (r *Renderer) Render(f Fragment) Unit {
	if !f.IsMath() {
		return Unit{Fragment: f, Text: f.Raw}
	}

	out, err := r.typeset(strings.TrimSpace(f.Raw), f.Kind == DisplayMath)
	if err != nil {
		r.logger.Debug("math fallback",
			zap.String("kind", f.Kind.String()),
			zap.String("source", f.Source),
			zap.Error(err),
		)
		return Unit{Fragment: f, Text: f.Source, Fallback: true, Err: err}
	}
	return Unit{Fragment: f, Text: out}
}

func (r *Renderer) typeset(source string, display bool) (out string, err error) {
	if r.typesetter == nil {
		return "", fmt.Errorf("no typesetter configured")
	}
	defer func() {
		if p := recover(); p != nil {
			out, err = "", fmt.Errorf("typesetter panic: %v", p)
		}
	}()
	return r.typesetter.Typeset(source, display)
}
