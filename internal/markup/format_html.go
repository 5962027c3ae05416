package markup

import (
	"fmt"
	"html"
	"strings"
)

// HTMLFormatter writes units as an HTML fragment. All text, typeset math
// included, is escaped; only the wrapping tags are generated markup.
type HTMLFormatter struct{}

// Format implements Formatter.
func (HTMLFormatter) Format(units []Unit) string {
	var b strings.Builder
	for _, u := range units {
		text := escapeHTML(u.Text)
		if u.Fallback {
			fmt.Fprintf(&b, `<code class="math-error" title="%s">%s</code>`,
				html.EscapeString(errorTitle(u.Err)), text)
			continue
		}

		switch u.Fragment.Kind {
		case Heading:
			fmt.Fprintf(&b, "<h%d>%s</h%d>", u.Fragment.Level, text, u.Fragment.Level)
		case Bold:
			fmt.Fprintf(&b, "<strong>%s</strong>", text)
		case Italic:
			fmt.Fprintf(&b, "<em>%s</em>", text)
		case InlineMath:
			fmt.Fprintf(&b, `<span class="math math-inline">%s</span>`, text)
		case DisplayMath:
			fmt.Fprintf(&b, `<div class="math math-display">%s</div>`, text)
		default:
			b.WriteString(text)
		}
	}
	return b.String()
}

// escapeHTML escapes s and turns newlines into <br>.
func escapeHTML(s string) string {
	s = html.EscapeString(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "<br>")
}

func errorTitle(err error) string {
	if err == nil {
		return "math could not be rendered"
	}
	return err.Error()
}
