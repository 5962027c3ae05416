package typeset

// symbols maps control sequences that render as a fixed string.
var symbols = map[string]string{
	// Greek lowercase
	"alpha": "α", "beta": "β", "gamma": "γ", "delta": "δ", "epsilon": "ϵ",
	"varepsilon": "ε", "zeta": "ζ", "eta": "η", "theta": "θ", "vartheta": "ϑ",
	"iota": "ι", "kappa": "κ", "lambda": "λ", "mu": "μ", "nu": "ν", "xi": "ξ",
	"pi": "π", "varpi": "ϖ", "rho": "ρ", "varrho": "ϱ", "sigma": "σ",
	"varsigma": "ς", "tau": "τ", "upsilon": "υ", "phi": "ϕ", "varphi": "φ",
	"chi": "χ", "psi": "ψ", "omega": "ω",

	// Greek uppercase
	"Gamma": "Γ", "Delta": "Δ", "Theta": "Θ", "Lambda": "Λ", "Xi": "Ξ",
	"Pi": "Π", "Sigma": "Σ", "Upsilon": "Υ", "Phi": "Φ", "Psi": "Ψ", "Omega": "Ω",

	// Binary operators
	"times": "×", "div": "÷", "pm": "±", "mp": "∓", "cdot": "·", "ast": "∗",
	"star": "⋆", "circ": "∘", "bullet": "∙", "oplus": "⊕", "otimes": "⊗",
	"setminus": "∖", "wedge": "∧", "land": "∧", "vee": "∨", "lor": "∨",

	// Relations
	"neq": "≠", "ne": "≠", "leq": "≤", "le": "≤", "geq": "≥", "ge": "≥",
	"lt": "<", "gt": ">", "ll": "≪", "gg": "≫", "approx": "≈", "equiv": "≡",
	"sim": "∼", "simeq": "≃", "cong": "≅", "propto": "∝", "mid": "∣",
	"parallel": "∥", "perp": "⊥",

	// Sets and logic
	"in": "∈", "notin": "∉", "ni": "∋", "subset": "⊂", "supset": "⊃",
	"subseteq": "⊆", "supseteq": "⊇", "cup": "∪", "cap": "∩",
	"emptyset": "∅", "varnothing": "∅", "forall": "∀", "exists": "∃",
	"nexists": "∄", "neg": "¬", "lnot": "¬",

	// Arrows
	"to": "→", "rightarrow": "→", "leftarrow": "←", "gets": "←",
	"leftrightarrow": "↔", "Rightarrow": "⇒", "Leftarrow": "⇐",
	"Leftrightarrow": "⇔", "implies": "⟹", "iff": "⟺", "mapsto": "↦",
	"uparrow": "↑", "downarrow": "↓",

	// Calculus and big operators
	"infty": "∞", "partial": "∂", "nabla": "∇", "int": "∫", "iint": "∬",
	"iiint": "∭", "oint": "∮", "sum": "∑", "prod": "∏", "coprod": "∐",
	"bigcup": "⋃", "bigcap": "⋂",

	// Geometry
	"angle": "∠", "measuredangle": "∡", "triangle": "△", "square": "□",
	"degree": "°",

	// Delimiters
	"langle": "⟨", "rangle": "⟩", "lfloor": "⌊", "rfloor": "⌋",
	"lceil": "⌈", "rceil": "⌉", "lvert": "|", "rvert": "|", "vert": "|",
	"Vert": "‖", "|": "‖",

	// Dots and misc
	"cdots": "⋯", "ldots": "…", "dots": "…", "vdots": "⋮", "ddots": "⋱",
	"prime": "′", "aleph": "ℵ", "hbar": "ℏ", "ell": "ℓ", "Re": "ℜ", "Im": "ℑ",
	"therefore": "∴", "because": "∵",

	// Escaped characters and spacing
	"{": "{", "}": "}", "$": "$", "%": "%", "#": "#", "&": "&", "_": "_",
	",": " ", ";": " ", ":": " ", " ": " ", "quad": " ", "qquad": " ", "!": "",
}

// functions are upright operator names rendered by name.
var functions = map[string]bool{
	"sin": true, "cos": true, "tan": true, "cot": true, "sec": true, "csc": true,
	"arcsin": true, "arccos": true, "arctan": true, "sinh": true, "cosh": true,
	"tanh": true, "log": true, "ln": true, "lg": true, "exp": true, "lim": true,
	"max": true, "min": true, "sup": true, "inf": true, "det": true, "gcd": true,
	"deg": true, "dim": true, "ker": true, "arg": true, "Pr": true,
}

// blackboard maps \mathbb letters.
var blackboard = map[rune]string{
	'N': "ℕ", 'Z': "ℤ", 'Q': "ℚ", 'R': "ℝ", 'C': "ℂ", 'P': "ℙ", 'H': "ℍ",
}

// accents maps accent commands to the combining mark appended to each rune.
var accents = map[string]rune{
	"bar":      '\u0304',
	"overline": '\u0305',
	"hat":      '\u0302',
	"widehat":  '\u0302',
	"tilde":    '\u0303',
	"vec":      '\u20d7',
	"dot":      '\u0307',
	"ddot":     '\u0308',
}

// styles are font commands whose argument is typeset unchanged.
var styles = map[string]bool{
	"mathrm": true, "mathbf": true, "mathit": true, "mathsf": true,
	"mathcal": true, "boldsymbol": true, "operatorname": true,
}

// sizing commands are ignored; the delimiter that follows is kept.
var sizing = map[string]bool{
	"left": true, "right": true, "big": true, "Big": true, "bigg": true,
	"Bigg": true, "bigl": true, "bigr": true, "Bigl": true, "Bigr": true,
	"displaystyle": true, "textstyle": true, "limits": true, "nolimits": true,
}

// environments lists the supported \begin blocks and their delimiters.
var environments = map[string][2]string{
	"matrix":   {"", ""},
	"pmatrix":  {"(", ")"},
	"bmatrix":  {"[", "]"},
	"vmatrix":  {"|", "|"},
	"cases":    {"{", ""},
	"aligned":  {"", ""},
	"align":    {"", ""},
	"align*":   {"", ""},
	"gathered": {"", ""},
}

var superscripts = map[rune]rune{
	'0': '⁰', '1': '¹', '2': '²', '3': '³', '4': '⁴', '5': '⁵', '6': '⁶',
	'7': '⁷', '8': '⁸', '9': '⁹', '+': '⁺', '-': '⁻', '−': '⁻', '=': '⁼',
	'(': '⁽', ')': '⁾', 'a': 'ᵃ', 'b': 'ᵇ', 'c': 'ᶜ', 'd': 'ᵈ', 'e': 'ᵉ',
	'f': 'ᶠ', 'g': 'ᵍ', 'h': 'ʰ', 'i': 'ⁱ', 'j': 'ʲ', 'k': 'ᵏ', 'l': 'ˡ',
	'm': 'ᵐ', 'n': 'ⁿ', 'o': 'ᵒ', 'p': 'ᵖ', 'r': 'ʳ', 's': 'ˢ', 't': 'ᵗ',
	'u': 'ᵘ', 'v': 'ᵛ', 'w': 'ʷ', 'x': 'ˣ', 'y': 'ʸ', 'z': 'ᶻ', 'T': 'ᵀ',
	'′': '′',
}

var subscripts = map[rune]rune{
	'0': '₀', '1': '₁', '2': '₂', '3': '₃', '4': '₄', '5': '₅', '6': '₆',
	'7': '₇', '8': '₈', '9': '₉', '+': '₊', '-': '₋', '−': '₋', '=': '₌',
	'(': '₍', ')': '₎', 'a': 'ₐ', 'e': 'ₑ', 'h': 'ₕ', 'i': 'ᵢ', 'j': 'ⱼ',
	'k': 'ₖ', 'l': 'ₗ', 'm': 'ₘ', 'n': 'ₙ', 'o': 'ₒ', 'p': 'ₚ', 'r': 'ᵣ',
	's': 'ₛ', 't': 'ₜ', 'u': 'ᵤ', 'v': 'ᵥ', 'x': 'ₓ',
}

// operators rewrites ASCII characters that have a typographic math form.
var operators = map[rune]string{
	'-':  "−",
	'*':  "∗",
	'\'': "′",
}
