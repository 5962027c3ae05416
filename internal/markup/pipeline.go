package markup

// Formatter turns rendered units into output for one display medium.
// Implementations must escape every unit's Text for that medium.
type Formatter interface {
	Format(units []Unit) string
}

// Result is the outcome of rendering one piece of content.
type Result struct {
	Units  []Unit
	Output string
}

// HasFallback reports whether any math in the result failed to typeset.
func (r Result) HasFallback() bool {
	for _, u := range r.Units {
		if u.Fallback {
			return true
		}
	}
	return false
}

// Pipeline segments, renders and formats content.
type Pipeline struct {
	renderer  *Renderer
	formatter Formatter
}

// NewPipeline returns a Pipeline writing through f.
func NewPipeline(r *Renderer, f Formatter) *Pipeline {
	return &Pipeline{renderer: r, formatter: f}
}

// RenderContent renders text. Units follow the order of Segment(text), one
// per fragment. The same input always yields the same output.
func (p *Pipeline) RenderContent(text string) Result {
	frags := Segment(text)
	units := make([]Unit, 0, len(frags))
	for _, f := range frags {
		units = append(units, p.renderer.Render(f))
	}
	return Result{Units: units, Output: p.formatter.Format(units)}
}
