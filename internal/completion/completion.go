// Package completion talks to the service that writes tutor replies.
package completion

import (
	"context"
	"strings"

	"github.com/ZaguanLabs/mathgpt/internal/conversation"
)

// Request is one tutoring turn: the new user message and the conversation
// that preceded it.
type Request struct {
	Message string
	History []conversation.Message
}

// Completer produces the assistant reply to a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Tutoring modes select the default system prompt.
const (
	ModeDirect   = "direct"
	ModeSocratic = "socratic"
)

const directPrompt = `You are a math homework assistant. Help students with their math problems by:
1. Providing step-by-step solutions
2. Explaining mathematical concepts clearly
3. Using LaTeX notation for mathematical expressions (wrap in $$ for display math or $ for inline math)
4. Being encouraging and educational

Always format mathematical expressions using LaTeX notation:
- Use $$ for display equations (centered, on their own line)
- Use $ for inline math expressions
- Example: "To solve $$x^2 + 5x - 6 = 0$$, we can use the quadratic formula: $$x = \frac{-b \pm \sqrt{b^2 - 4ac}}{2a}$$"

Be thorough but clear in your explanations.`

const socraticPrompt = `You are a patient math tutor who teaches by asking questions. Do not give the final answer straight away. Instead:
1. Ask what the student already knows about the problem
2. Offer one hint or guiding question at a time
3. Check the student's reasoning and point out mistakes gently
4. Confirm the answer only once the student has worked it out

Write mathematics in LaTeX: $...$ for inline math and $$...$$ for display equations.`

// SystemPrompt returns override when it is set, otherwise the default
// prompt for mode.
func SystemPrompt(mode, override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	if strings.EqualFold(strings.TrimSpace(mode), ModeSocratic) {
		return socraticPrompt
	}
	return directPrompt
}
