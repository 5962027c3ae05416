package typeset

import (
	"fmt"
	"strings"
	"unicode"
)

// Unicode typesets a practical subset of LaTeX math as plain Unicode text,
// suitable for terminals and for HTML without a math font.
type Unicode struct{}

// NewUnicode returns a Unicode typesetter.
func NewUnicode() *Unicode {
	return &Unicode{}
}

// Typeset renders source. Undefined control sequences, unbalanced braces,
// unclosed environments and missing arguments are reported as *ParseError.
func (u *Unicode) Typeset(source string, display bool) (string, error) {
	p := &parser{
		src:     []rune(source),
		source:  source,
		display: display,
	}

	out, err := p.parseSequence(0)
	if err != nil {
		return "", err
	}
	if len(p.envs) > 0 {
		return "", p.errorf("missing \\end{%s}", p.envs[len(p.envs)-1])
	}

	return tidy(out, display), nil
}

type parser struct {
	src     []rune
	source  string
	pos     int
	display bool
	envs    []string
}

func (p *parser) errorf(format string, args ...interface{}) *ParseError {
	return &ParseError{
		Source: p.source,
		Pos:    p.pos,
		Msg:    fmt.Sprintf(format, args...),
	}
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() rune {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

// parseSequence consumes atoms until closing (left unconsumed) or end of
// input. A zero closing means top level.
func (p *parser) parseSequence(closing rune) (string, error) {
	var b strings.Builder
	for !p.eof() {
		r := p.src[p.pos]
		if closing != 0 && r == closing {
			return b.String(), nil
		}
		if r == '}' {
			return "", p.errorf("unexpected '}'")
		}

		atom, err := p.parseAtom()
		if err != nil {
			return "", err
		}
		if atom == envEnd {
			// Only an environment body may be closed by \end.
			if closing != 0 {
				return "", p.errorf("missing '%c'", closing)
			}
			return b.String(), errEnvEnd
		}
		b.WriteString(atom)
	}

	if closing != 0 {
		return "", p.errorf("missing '%c'", closing)
	}
	return b.String(), nil
}

func (p *parser) parseAtom() (string, error) {
	r := p.src[p.pos]
	switch {
	case r == '{':
		return p.parseGroup()
	case r == '^' || r == '_':
		p.pos++
		arg, err := p.parseArgument(string(r))
		if err != nil {
			return "", err
		}
		return script(arg, r == '^'), nil
	case r == '\\':
		return p.parseCommand()
	case r == '&':
		p.pos++
		return " ", nil
	case r == '~':
		p.pos++
		return " ", nil
	case r == '$':
		return "", p.errorf("unexpected '$' in math mode")
	case unicode.IsSpace(r):
		p.skipSpace()
		return " ", nil
	}

	p.pos++
	if s, ok := operators[r]; ok {
		return s, nil
	}
	return string(r), nil
}

func (p *parser) parseGroup() (string, error) {
	p.pos++ // '{'
	inner, err := p.parseSequence('}')
	if err != nil {
		return "", err
	}
	p.pos++ // '}'
	return inner, nil
}

// parseArgument reads one macro argument: a group, a command or a single rune.
func (p *parser) parseArgument(macro string) (string, error) {
	p.skipSpace()
	if p.eof() {
		return "", p.errorf("missing argument for %s", macro)
	}

	switch r := p.src[p.pos]; r {
	case '{':
		return p.parseGroup()
	case '\\':
		arg, err := p.parseCommand()
		if err != nil {
			return "", err
		}
		if arg == envEnd {
			return "", p.errorf("missing argument for %s", macro)
		}
		return arg, nil
	case '}', '^', '_', '&', '$':
		return "", p.errorf("missing argument for %s", macro)
	default:
		p.pos++
		if s, ok := operators[r]; ok {
			return s, nil
		}
		return string(r), nil
	}
}

// readRawGroup returns the text of a brace group without interpreting it.
func (p *parser) readRawGroup(macro string) (string, error) {
	p.skipSpace()
	if p.peek() != '{' {
		return "", p.errorf("missing argument for \\%s", macro)
	}
	start := p.pos + 1
	depth := 0
	for ; !p.eof(); p.pos++ {
		switch p.src[p.pos] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				raw := string(p.src[start:p.pos])
				p.pos++
				return raw, nil
			}
		}
	}
	return "", p.errorf("missing '}'")
}

func (p *parser) readName() string {
	p.pos++ // '\'
	if p.eof() {
		return ""
	}
	start := p.pos
	if !isLetter(p.src[p.pos]) {
		p.pos++
		return string(p.src[start:p.pos])
	}
	for !p.eof() && isLetter(p.src[p.pos]) {
		p.pos++
	}
	// align* and friends
	if !p.eof() && p.src[p.pos] == '*' && p.pos > start {
		p.pos++
	}
	return string(p.src[start:p.pos])
}

func (p *parser) parseCommand() (string, error) {
	at := p.pos
	name := p.readName()
	if name == "" {
		p.pos = at
		return "", p.errorf("trailing backslash")
	}

	if s, ok := symbols[name]; ok {
		return s, nil
	}
	if functions[name] {
		return name, nil
	}
	if mark, ok := accents[name]; ok {
		arg, err := p.parseArgument("\\" + name)
		if err != nil {
			return "", err
		}
		return accent(arg, mark), nil
	}
	if styles[name] {
		return p.parseArgument("\\" + name)
	}
	if sizing[name] {
		p.skipSpace()
		if p.peek() == '.' {
			p.pos++
		}
		return "", nil
	}

	switch name {
	case "\\":
		return "\n", nil
	case "frac", "dfrac", "tfrac":
		num, err := p.parseArgument("\\" + name)
		if err != nil {
			return "", err
		}
		den, err := p.parseArgument("\\" + name)
		if err != nil {
			return "", err
		}
		return wrap(num) + "/" + wrap(den), nil
	case "sqrt":
		return p.parseSqrt()
	case "text", "textrm", "textit", "textbf", "mbox":
		return p.readRawGroup(name)
	case "mathbb":
		arg, err := p.parseArgument("\\mathbb")
		if err != nil {
			return "", err
		}
		var b strings.Builder
		for _, r := range arg {
			if s, ok := blackboard[r]; ok {
				b.WriteString(s)
			} else {
				b.WriteRune(r)
			}
		}
		return b.String(), nil
	case "mod", "bmod":
		return " mod ", nil
	case "pmod":
		arg, err := p.parseArgument("\\pmod")
		if err != nil {
			return "", err
		}
		return " (mod " + arg + ")", nil
	case "begin":
		return p.parseEnvironment()
	case "end":
		env, err := p.readRawGroup("end")
		if err != nil {
			return "", err
		}
		if len(p.envs) == 0 || p.envs[len(p.envs)-1] != env {
			return "", p.errorf("unexpected \\end{%s}", env)
		}
		return envEnd, nil
	}

	p.pos = at
	return "", p.errorf("undefined control sequence \\%s", name)
}

func (p *parser) parseSqrt() (string, error) {
	index := ""
	p.skipSpace()
	if p.peek() == '[' {
		p.pos++
		inner, err := p.parseSequence(']')
		if err != nil {
			return "", err
		}
		p.pos++ // ']'
		index = script(strings.TrimSpace(inner), true)
	}
	arg, err := p.parseArgument("\\sqrt")
	if err != nil {
		return "", err
	}
	return index + "√" + wrap(arg), nil
}

func (p *parser) parseEnvironment() (string, error) {
	env, err := p.readRawGroup("begin")
	if err != nil {
		return "", err
	}
	delims, ok := environments[env]
	if !ok {
		return "", p.errorf("unknown environment %q", env)
	}

	p.envs = append(p.envs, env)
	body, err := p.parseSequence(0)
	if err != errEnvEnd {
		if err != nil {
			return "", err
		}
		return "", p.errorf("missing \\end{%s}", env)
	}
	p.envs = p.envs[:len(p.envs)-1]

	if !p.display {
		rows := strings.Split(body, "\n")
		for i := range rows {
			rows[i] = strings.TrimSpace(rows[i])
		}
		body = strings.Join(rows, "; ")
	}
	return delims[0] + strings.TrimSpace(body) + delims[1], nil
}

// envEnd is the sentinel atom produced by a matching \end.
const envEnd = "\x00end"

var errEnvEnd = &ParseError{Msg: "end of environment"}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// script renders a super- or subscript, using Unicode forms when every rune
// has one.
func script(arg string, sup bool) string {
	table := subscripts
	marker := "_"
	if sup {
		table = superscripts
		marker = "^"
	}

	arg = strings.TrimSpace(arg)
	var b strings.Builder
	for _, r := range arg {
		mapped, ok := table[r]
		if !ok {
			if len([]rune(arg)) == 1 {
				return marker + arg
			}
			return marker + "(" + arg + ")"
		}
		b.WriteRune(mapped)
	}
	return b.String()
}

func accent(arg string, mark rune) string {
	var b strings.Builder
	for _, r := range arg {
		b.WriteRune(r)
		if !unicode.IsSpace(r) {
			b.WriteRune(mark)
		}
	}
	return b.String()
}

// wrap parenthesises multi-rune operands of fractions and roots.
func wrap(s string) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= 1 {
		return s
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") && strings.Count(s, "(") == 1 {
		return s
	}
	return "(" + s + ")"
}

// tidy collapses runs of spaces and trims every line.
func tidy(s string, display bool) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	if !display {
		return strings.Join(lines, " ")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}
