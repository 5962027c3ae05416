package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegment_Empty(t *testing.T) {
	assert.Empty(t, Segment(""))
}

func TestSegment_PlainWithoutDelimiters(t *testing.T) {
	inputs := []string{
		"hello world",
		"first line\nsecond line\n\nthird",
		"2 * 3 = 6",
		"#hashtag and a # in the middle",
		"#### four hashes is not a heading",
		"unicode: αβγ ∑ ü",
	}

	for _, s := range inputs {
		frags := Segment(s)
		require.Len(t, frags, 1, "input %q", s)
		assert.Equal(t, Plain, frags[0].Kind)
		assert.Equal(t, s, frags[0].Raw)
		assert.Equal(t, s, frags[0].Source)
	}
}

func TestSegment_Math(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind Kind
		raw  string
	}{
		{"display dollars", "$$a$$", DisplayMath, "a"},
		{"inline dollars", "$a$", InlineMath, "a"},
		{"display brackets", `\[x^2\]`, DisplayMath, "x^2"},
		{"inline parens", `\(x_1\)`, InlineMath, "x_1"},
		{"multi-line display", "$$\na+b\n$$", DisplayMath, "\na+b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frags := Segment(tt.in)
			require.Len(t, frags, 1)
			assert.Equal(t, tt.kind, frags[0].Kind)
			assert.Equal(t, tt.raw, frags[0].Raw)
			assert.Equal(t, tt.in, frags[0].Source)
		})
	}
}

func TestSegment_UnterminatedIsPlain(t *testing.T) {
	for _, s := range []string{"$x", "$$x", "$$x$", `\[x`, `\(x`, "**bold", "*it", "$ $", "$$  $$"} {
		frags := Segment(s)
		require.Len(t, frags, 1, "input %q", s)
		assert.Equal(t, Plain, frags[0].Kind, "input %q", s)
		assert.Equal(t, s, frags[0].Source)
	}
}

func TestSegment_Mixed(t *testing.T) {
	in := "Solve $x^2=4$ and\n$$y=1$$\ndone"
	frags := Segment(in)

	want := []Fragment{
		{Kind: Plain, Raw: "Solve ", Source: "Solve "},
		{Kind: InlineMath, Raw: "x^2=4", Source: "$x^2=4$"},
		{Kind: Plain, Raw: " and\n", Source: " and\n"},
		{Kind: DisplayMath, Raw: "y=1", Source: "$$y=1$$"},
		{Kind: Plain, Raw: "\ndone", Source: "\ndone"},
	}
	assert.Equal(t, want, frags)
}

func TestSegment_Headings(t *testing.T) {
	frags := Segment("# Title\nbody\n### Small\n#### not")

	want := []Fragment{
		{Kind: Heading, Raw: "Title", Source: "# Title", Level: 1},
		{Kind: Plain, Raw: "\nbody\n", Source: "\nbody\n"},
		{Kind: Heading, Raw: "Small", Source: "### Small", Level: 3},
		{Kind: Plain, Raw: "\n#### not", Source: "\n#### not"},
	}
	assert.Equal(t, want, frags)
}

func TestSegment_HeadingCRLF(t *testing.T) {
	frags := Segment("# h\r\nx")

	want := []Fragment{
		{Kind: Heading, Raw: "h", Source: "# h", Level: 1},
		{Kind: Plain, Raw: "\r\nx", Source: "\r\nx"},
	}
	assert.Equal(t, want, frags)
}

func TestSegment_HeadingKeepsAsterisks(t *testing.T) {
	frags := Segment("# **Bold** head")
	require.Len(t, frags, 1)
	assert.Equal(t, Heading, frags[0].Kind)
	assert.Equal(t, "**Bold** head", frags[0].Raw)
}

func TestSegment_HeadingAfterMath(t *testing.T) {
	frags := Segment("$x$\n## Next")
	require.Len(t, frags, 3)
	assert.Equal(t, InlineMath, frags[0].Kind)
	assert.Equal(t, Plain, frags[1].Kind)
	assert.Equal(t, Heading, frags[2].Kind)
	assert.Equal(t, 2, frags[2].Level)
	assert.Equal(t, "Next", frags[2].Raw)
}

func TestSegment_Emphasis(t *testing.T) {
	frags := Segment("a **b** c *d* e")

	want := []Fragment{
		{Kind: Plain, Raw: "a ", Source: "a "},
		{Kind: Bold, Raw: "b", Source: "**b**"},
		{Kind: Plain, Raw: " c ", Source: " c "},
		{Kind: Italic, Raw: "d", Source: "*d*"},
		{Kind: Plain, Raw: " e", Source: " e"},
	}
	assert.Equal(t, want, frags)
}

func TestSegment_EmphasisDoesNotSpanLines(t *testing.T) {
	frags := Segment("*a\nb*")
	require.Len(t, frags, 1)
	assert.Equal(t, Plain, frags[0].Kind)
}

func TestSegment_DisplayWinsOverInline(t *testing.T) {
	frags := Segment("$$a$ b$$")
	require.Len(t, frags, 1)
	assert.Equal(t, DisplayMath, frags[0].Kind)
	assert.Equal(t, "a$ b", frags[0].Raw)
}

func TestSegment_EscapedDollar(t *testing.T) {
	in := `costs \$5 and \$6`
	frags := Segment(in)
	require.Len(t, frags, 1)
	assert.Equal(t, Plain, frags[0].Kind)
	assert.Equal(t, "costs $5 and $6", frags[0].Raw)
	assert.Equal(t, in, frags[0].Source)
}

func TestSegment_SourcesReconstructInput(t *testing.T) {
	inputs := []string{
		"",
		"$",
		"$$",
		"$$$",
		`\`,
		`\[`,
		`\(\)`,
		"*",
		"**",
		"# ",
		"\n#",
		"# \r\n",
		"## a\r\nb\r\n# c\r",
		"# Heading with $x$ math\nand **bold *mixed* text**",
		"Let $f(x) = x^2$. Then $$f'(x) = 2x$$ and \\(g\\) is *nice*.",
		"### $$a$$ ## b",
		"tail $$",
		"ünï *cödé* $π$",
	}

	for _, s := range inputs {
		var b strings.Builder
		for _, f := range Segment(s) {
			assert.NotEmpty(t, f.Source, "input %q", s)
			b.WriteString(f.Source)
		}
		assert.Equal(t, s, b.String(), "input %q", s)
	}
}

func TestSegment_Deterministic(t *testing.T) {
	in := "# T\n$a$ **b** $$c$$ *d*"
	assert.Equal(t, Segment(in), Segment(in))
}

func TestHasMath(t *testing.T) {
	assert.True(t, HasMath("what is $x$?"))
	assert.True(t, HasMath(`\[y\]`))
	assert.False(t, HasMath("plain $5"))
	assert.False(t, HasMath(`escaped \$5 and \$6`))
	assert.False(t, HasMath(""))
}
