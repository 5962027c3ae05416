package markup

import "fmt"

// Kind identifies what a fragment of message text is.
type Kind int

const (
	Plain Kind = iota
	InlineMath
	DisplayMath
	Heading
	Bold
	Italic
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case InlineMath:
		return "inline-math"
	case DisplayMath:
		return "display-math"
	case Heading:
		return "heading"
	case Bold:
		return "bold"
	case Italic:
		return "italic"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Fragment is a typed, contiguous piece of a message.
//
// Source is the verbatim substring of the input, delimiters included, so
// joining the Source of every fragment returned by Segment gives back the
// input. Raw is the content between the delimiters with escapes resolved.
// Level is the heading depth (1-3) and zero for every other kind.
type Fragment struct {
	Kind   Kind
	Raw    string
	Source string
	Level  int
}

// IsMath reports whether the fragment must be typeset.
func (f Fragment) IsMath() bool {
	return f.Kind == InlineMath || f.Kind == DisplayMath
}
