package markup

import "strings"

// Segment splits text into fragments in input order.
//
// Math is recognised first: display math ($$...$$, \[...\]) wins over inline
// math ($...$, \(...\)) starting at the same position. The text left between
// math fragments is then scanned for headings (one to three '#' and a space
// at the start of a line) and finally for **bold** and *italic* emphasis.
// Delimiters without a closing partner are plain text. Segment never fails;
// the empty string yields no fragments.
func Segment(text string) []Fragment {
	var s segmenter
	s.text = text

	last := 0
	for _, m := range findMath(text) {
		s.structure(last, m.start)
		s.add(m.frag)
		last = m.end
	}
	s.structure(last, len(text))

	return s.out
}

type segmenter struct {
	text string
	out  []Fragment
}

// add appends f, merging adjacent plain fragments.
func (s *segmenter) add(f Fragment) {
	if f.Source == "" {
		return
	}
	if n := len(s.out); n > 0 && f.Kind == Plain && s.out[n-1].Kind == Plain {
		s.out[n-1].Source += f.Source
		s.out[n-1].Raw += f.Raw
		return
	}
	s.out = append(s.out, f)
}

func (s *segmenter) plain(src string) {
	s.add(Fragment{Kind: Plain, Raw: unescape(src), Source: src})
}

// structure segments text[start:end], which contains no math, into headings,
// emphasis and plain runs. Line starts are judged against the whole text.
func (s *segmenter) structure(start, end int) {
	runStart := start
	for i := start; i < end; {
		if i == 0 || s.text[i-1] == '\n' {
			if level, contentAt, lineEnd, ok := heading(s.text, i, end); ok {
				s.emphasis(s.text[runStart:i])
				s.add(Fragment{
					Kind:   Heading,
					Raw:    unescape(s.text[contentAt:lineEnd]),
					Source: s.text[i:lineEnd],
					Level:  level,
				})
				i = lineEnd
				runStart = i
				continue
			}
		}

		nl := strings.IndexByte(s.text[i:end], '\n')
		if nl < 0 {
			break
		}
		i += nl + 1
	}
	s.emphasis(s.text[runStart:end])
}

// heading matches "#{1,3} content" at position i, ending at the newline or
// at limit. Heading content is not scanned for emphasis.
func heading(text string, i, limit int) (level, contentAt, lineEnd int, ok bool) {
	for level < 3 && i+level < limit && text[i+level] == '#' {
		level++
	}
	if level == 0 || i+level >= limit || text[i+level] != ' ' {
		return 0, 0, 0, false
	}

	contentAt = i + level + 1
	lineEnd = limit
	if nl := strings.IndexByte(text[contentAt:limit], '\n'); nl >= 0 {
		lineEnd = contentAt + nl
	}
	// A CRLF line break stays in the following plain run.
	if lineEnd > contentAt && text[lineEnd-1] == '\r' {
		lineEnd--
	}
	if strings.TrimSpace(text[contentAt:lineEnd]) == "" {
		return 0, 0, 0, false
	}
	return level, contentAt, lineEnd, true
}

// emphasis segments a run into **bold**, *italic* and plain fragments.
func (s *segmenter) emphasis(run string) {
	plainStart := 0
	for i := 0; i < len(run); {
		if run[i] != '*' {
			i++
			continue
		}

		if strings.HasPrefix(run[i:], "**") {
			if end := closing(run, i+2, "**"); end >= 0 {
				s.plain(run[plainStart:i])
				s.add(Fragment{Kind: Bold, Raw: unescape(run[i+2 : end]), Source: run[i : end+2]})
				i = end + 2
				plainStart = i
				continue
			}
			i += 2
			continue
		}

		if end := closing(run, i+1, "*"); end >= 0 {
			s.plain(run[plainStart:i])
			s.add(Fragment{Kind: Italic, Raw: unescape(run[i+1 : end]), Source: run[i : end+1]})
			i = end + 1
			plainStart = i
			continue
		}
		i++
	}
	s.plain(run[plainStart:])
}

// closing returns the index of the delimiter that closes an emphasis opened
// just before from, or -1. Emphasis stays on one line and its content may
// not begin or end with whitespace.
func closing(run string, from int, delim string) int {
	line := run[from:]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}

	idx := strings.Index(line, delim)
	if idx <= 0 {
		return -1
	}
	if delim == "*" && idx+1 < len(line) && line[idx+1] == '*' {
		return -1
	}

	content := line[:idx]
	if isSpace(content[0]) || isSpace(content[len(content)-1]) {
		return -1
	}
	return from + idx
}

type mathSpan struct {
	start, end int
	frag       Fragment
}

// findMath locates every math fragment in text, left to right.
func findMath(text string) []mathSpan {
	var spans []mathSpan
	n := len(text)

	for i := 0; i < n; {
		switch {
		case text[i] == '\\' && i+1 < n:
			var opener, closer string
			kind := DisplayMath
			switch text[i+1] {
			case '[':
				opener, closer = `\[`, `\]`
			case '(':
				opener, closer, kind = `\(`, `\)`, InlineMath
			default:
				// \$, \\ and other escapes are plain
				i += 2
				continue
			}
			if span, ok := delimited(text, i, opener, closer, kind); ok {
				spans = append(spans, span)
				i = span.end
				continue
			}
			i += 2

		case text[i] == '$' && i+1 < n && text[i+1] == '$':
			if span, ok := delimited(text, i, "$$", "$$", DisplayMath); ok {
				spans = append(spans, span)
				i = span.end
				continue
			}
			// An unmatched $$ never opens inline math.
			i += 2

		case text[i] == '$':
			if end := inlineClose(text, i+1); end >= 0 {
				spans = append(spans, mathSpan{
					start: i,
					end:   end + 1,
					frag:  Fragment{Kind: InlineMath, Raw: text[i+1 : end], Source: text[i : end+1]},
				})
				i = end + 1
				continue
			}
			i++

		default:
			i++
		}
	}
	return spans
}

func delimited(text string, i int, opener, closer string, kind Kind) (mathSpan, bool) {
	from := i + len(opener)
	idx := strings.Index(text[from:], closer)
	if idx < 0 {
		return mathSpan{}, false
	}
	raw := text[from : from+idx]
	if strings.TrimSpace(raw) == "" {
		return mathSpan{}, false
	}
	end := from + idx + len(closer)
	return mathSpan{
		start: i,
		end:   end,
		frag:  Fragment{Kind: kind, Raw: raw, Source: text[i:end]},
	}, true
}

// inlineClose finds the single '$' closing inline math opened before from.
// Escaped dollars are skipped; a "$$" ends the search unmatched.
func inlineClose(text string, from int) int {
	for j := from; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case '$':
			if j+1 < len(text) && text[j+1] == '$' {
				return -1
			}
			if strings.TrimSpace(text[from:j]) == "" {
				return -1
			}
			return j
		}
	}
	return -1
}

func unescape(s string) string {
	if !strings.Contains(s, `\$`) {
		return s
	}
	return strings.ReplaceAll(s, `\$`, "$")
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// HasMath reports whether text contains at least one math fragment. It gates
// the live preview.
func HasMath(text string) bool {
	return len(findMath(text)) > 0
}
