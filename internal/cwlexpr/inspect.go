// Package cwlexpr inspects CWL expressions without evaluating them.
// It recognizes parameter references $(...) and JavaScript code blocks ${...},
// checks their syntax with goja, and reports which step inputs they read.
package cwlexpr

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dop251/goja"
)

// Kind classifies a CWL expression string.
type Kind int

const (
	// KindLiteral is a plain string with no unescaped expression.
	KindLiteral Kind = iota
	// KindReference contains one or more $(...) parameter references.
	KindReference
	// KindCodeBlock is a ${...} JavaScript function body.
	KindCodeBlock
)

func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindReference:
		return "reference"
	case KindCodeBlock:
		return "code"
	default:
		return "unknown"
	}
}

// Expression is the result of inspecting a CWL expression string.
type Expression struct {
	Source string
	Kind   Kind
	// Inputs lists the input names read through inputs.x or inputs["x"], sorted.
	Inputs []string
}

var (
	inputDotRef     = regexp.MustCompile(`\binputs\.([A-Za-z_$][A-Za-z0-9_$]*)`)
	inputBracketRef = regexp.MustCompile(`\binputs\[\s*['"]([^'"]+)['"]\s*\]`)
)

// Inspect classifies expr, compiles every JavaScript fragment with goja and
// collects the inputs it references. A syntax error is returned together
// with whatever could be gathered before it.
func Inspect(expr string) (*Expression, error) {
	e := &Expression{Source: expr, Kind: KindLiteral}
	if !containsExpression(expr) {
		return e, nil
	}

	var fragments []string
	trimmed := strings.TrimSpace(expr)
	if strings.HasPrefix(trimmed, "${") {
		idx := findMatchingBrace(trimmed)
		if idx < 0 {
			return e, fmt.Errorf("unterminated code block in %q", expr)
		}
		e.Kind = KindCodeBlock
		body := strings.TrimSpace(trimmed[2:idx])
		fragments = append(fragments, fmt.Sprintf("(function() { %s })()", body))
	} else {
		e.Kind = KindReference
		for _, m := range findExpressions(expr) {
			code := m.expr
			// Object literals need parentheses to parse as expressions.
			if strings.HasPrefix(strings.TrimSpace(code), "{") {
				code = "(" + code + ")"
			}
			fragments = append(fragments, code)
		}
		if len(fragments) == 0 {
			return e, fmt.Errorf("unterminated parameter reference in %q", expr)
		}
	}

	seen := make(map[string]bool)
	for _, code := range fragments {
		for _, m := range inputDotRef.FindAllStringSubmatch(code, -1) {
			seen[m[1]] = true
		}
		for _, m := range inputBracketRef.FindAllStringSubmatch(code, -1) {
			seen[m[1]] = true
		}
	}
	for name := range seen {
		e.Inputs = append(e.Inputs, name)
	}
	sort.Strings(e.Inputs)

	for _, code := range fragments {
		if _, err := goja.Compile("", code, false); err != nil {
			return e, fmt.Errorf("expression error in %q: %w", expr, err)
		}
	}
	return e, nil
}

// containsExpression reports whether s has an unescaped $( or ${.
func containsExpression(s string) bool {
	for i := 0; i < len(s)-1; i++ {
		if s[i] == '$' && (s[i+1] == '(' || s[i+1] == '{') && (i == 0 || s[i-1] != '\\') {
			return true
		}
	}
	return false
}

// findMatchingBrace finds the index of the closing brace for a ${...} code block.
// Returns -1 if no matching brace is found.
func findMatchingBrace(s string) int {
	if !strings.HasPrefix(s, "${") {
		return -1
	}
	depth := 0
	for i, c := range s {
		if c == '{' {
			depth++
		} else if c == '}' {
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// exprMatch represents a matched CWL parameter reference.
type exprMatch struct {
	start int    // start index of "$(" in the string
	end   int    // end index (after closing ")")
	expr  string // the expression content (without $( and ))
}

// findExpressions finds all $(expr) patterns in a string, handling nested parentheses.
func findExpressions(s string) []exprMatch {
	var matches []exprMatch
	i := 0
	for i < len(s)-1 {
		if s[i] == '$' && s[i+1] == '(' && (i == 0 || s[i-1] != '\\') {
			start := i
			depth := 1
			j := i + 2
			for j < len(s) && depth > 0 {
				if s[j] == '(' {
					depth++
				} else if s[j] == ')' {
					depth--
				}
				j++
			}
			if depth == 0 {
				matches = append(matches, exprMatch{
					start: start,
					end:   j,
					expr:  s[start+2 : j-1],
				})
				i = j
				continue
			}
		}
		i++
	}
	return matches
}
