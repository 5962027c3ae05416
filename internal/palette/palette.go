// Package palette lists the math symbols offered for quick insertion.
package palette

import (
	"strings"
)

// Symbol is one palette entry.
type Symbol struct {
	Name   string // lookup key, e.g. "not-equal"
	Label  string
	Group  string
	Insert string // markup appended to the input
}

var symbols = []Symbol{
	{Group: "Operations", Label: "Plus", Insert: `$+$`},
	{Group: "Operations", Label: "Minus", Insert: `$-$`},
	{Group: "Operations", Label: "Times", Insert: `$\times$`},
	{Group: "Operations", Label: "Divide", Insert: `$\div$`},
	{Group: "Operations", Label: "Equals", Insert: `$=$`},
	{Group: "Operations", Label: "Not equal", Insert: `$\neq$`},
	{Group: "Operations", Label: "Less than", Insert: `$<$`},
	{Group: "Operations", Label: "Greater than", Insert: `$>$`},
	{Group: "Operations", Label: "Less or equal", Insert: `$\leq$`},
	{Group: "Operations", Label: "Greater or equal", Insert: `$\geq$`},

	{Group: "Fractions and powers", Label: "Power", Insert: `$^$`},
	{Group: "Fractions and powers", Label: "Square root", Insert: `$\sqrt{}$`},
	{Group: "Fractions and powers", Label: "Nth root", Insert: `$\sqrt[n]{}$`},
	{Group: "Fractions and powers", Label: "Fraction", Insert: `$\frac{}{}$`},

	{Group: "Greek", Label: "Alpha", Insert: `$\alpha$`},
	{Group: "Greek", Label: "Beta", Insert: `$\beta$`},
	{Group: "Greek", Label: "Gamma", Insert: `$\gamma$`},
	{Group: "Greek", Label: "Delta", Insert: `$\delta$`},
	{Group: "Greek", Label: "Epsilon", Insert: `$\epsilon$`},
	{Group: "Greek", Label: "Theta", Insert: `$\theta$`},
	{Group: "Greek", Label: "Lambda", Insert: `$\lambda$`},
	{Group: "Greek", Label: "Mu", Insert: `$\mu$`},
	{Group: "Greek", Label: "Pi", Insert: `$\pi$`},
	{Group: "Greek", Label: "Sigma", Insert: `$\sigma$`},
	{Group: "Greek", Label: "Phi", Insert: `$\phi$`},
	{Group: "Greek", Label: "Omega", Insert: `$\omega$`},

	{Group: "Functions", Label: "Sine", Insert: `$\sin$`},
	{Group: "Functions", Label: "Cosine", Insert: `$\cos$`},
	{Group: "Functions", Label: "Tangent", Insert: `$\tan$`},
	{Group: "Functions", Label: "Logarithm", Insert: `$\log$`},
	{Group: "Functions", Label: "Natural log", Insert: `$\ln$`},
	{Group: "Functions", Label: "Exponential", Insert: `$\exp$`},

	{Group: "Sets and logic", Label: "Element of", Insert: `$\in$`},
	{Group: "Sets and logic", Label: "Not element of", Insert: `$\notin$`},
	{Group: "Sets and logic", Label: "Subset", Insert: `$\subset$`},
	{Group: "Sets and logic", Label: "Superset", Insert: `$\supset$`},
	{Group: "Sets and logic", Label: "Union", Insert: `$\cup$`},
	{Group: "Sets and logic", Label: "Intersection", Insert: `$\cap$`},
	{Group: "Sets and logic", Label: "Empty set", Insert: `$\emptyset$`},
	{Group: "Sets and logic", Label: "Infinity", Insert: `$\infty$`},

	{Group: "Calculus", Label: "Integral", Insert: `$\int$`},
	{Group: "Calculus", Label: "Sum", Insert: `$\sum$`},
	{Group: "Calculus", Label: "Product", Insert: `$\prod$`},
	{Group: "Calculus", Label: "Limit", Insert: `$\lim$`},
	{Group: "Calculus", Label: "Derivative", Insert: `$\frac{d}{dx}$`},
	{Group: "Calculus", Label: "Partial derivative", Insert: `$\frac{\partial}{\partial x}$`},

	{Group: "Geometry", Label: "Angle", Insert: `$\angle$`},
	{Group: "Geometry", Label: "Triangle", Insert: `$\triangle$`},
	{Group: "Geometry", Label: "Square", Insert: `$\square$`},
	{Group: "Geometry", Label: "Circle", Insert: `$\circ$`},
	{Group: "Geometry", Label: "Parallel", Insert: `$\parallel$`},
	{Group: "Geometry", Label: "Perpendicular", Insert: `$\perp$`},
}

func init() {
	for i := range symbols {
		symbols[i].Name = slug(symbols[i].Label)
	}
}

func slug(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "-")
}

// All returns every symbol in palette order.
func All() []Symbol {
	return append([]Symbol(nil), symbols...)
}

// Groups returns the group names in palette order.
func Groups() []string {
	var groups []string
	for _, s := range symbols {
		if len(groups) == 0 || groups[len(groups)-1] != s.Group {
			groups = append(groups, s.Group)
		}
	}
	return groups
}

// Lookup finds a symbol by name or label, ignoring case. The LaTeX command
// without the backslash ("alpha", "neq") is accepted too.
func Lookup(name string) (Symbol, bool) {
	key := slug(name)
	if key == "" {
		return Symbol{}, false
	}
	for _, s := range symbols {
		if s.Name == key {
			return s, true
		}
	}
	for _, s := range symbols {
		if strings.Trim(s.Insert, "$") == `\`+key {
			return s, true
		}
	}
	return Symbol{}, false
}

// Insert appends sym to input.
func Insert(input string, sym Symbol) string {
	return input + sym.Insert
}
