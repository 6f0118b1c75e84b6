package repl

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/ihontarenko/jmouse-sub007/engine"
)

var (
	signatureStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	signatureNameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	currentParamStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

// functionCall is a call whose argument list contains the cursor.
type functionCall struct {
	name     string // qualified name, e.g. "str.upper"
	argIndex int    // 0-based argument under the cursor
	filter   bool   // called as "| name("
	inCall   bool
}

// detectFunctionCall finds the innermost unclosed call before cursor.
func detectFunctionCall(input string, cursor int) functionCall {
	cursor = min(max(cursor, 0), len(input))

	open, depth := -1, 0

	for i := cursor; i > 0 && open < 0; {
		r, size := utf8.DecodeLastRuneInString(input[:i])
		i -= size

		switch r {
		case ')', ']':
			depth++
		case '(', '[':
			if depth == 0 {
				if r == '[' {
					return functionCall{}
				}

				open = i
			}

			depth--
		}
	}

	if open < 0 {
		return functionCall{}
	}

	start := open
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if r != '.' && r != '_' && !isIdentRune(r) {
			break
		}

		start -= size
	}

	name := input[start:open]
	if name == "" {
		return functionCall{}
	}

	index := 0
	depth = 0

	for _, r := range input[open+1 : cursor] {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				index++
			}
		}
	}

	before := strings.TrimRight(input[:start], " \t")

	return functionCall{
		name:     name,
		argIndex: index,
		filter:   strings.HasSuffix(before, "|") && !strings.HasSuffix(before, "||"),
		inCall:   true,
	}
}

func isIdentRune(r rune) bool {
	return r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}

// signature returns the parameter labels of the call, or false when the
// name is not registered. A filter's operand is not listed.
func (s symbols) signature(call functionCall) ([]string, bool) {
	reg := s.engine.Functions()
	if call.filter {
		reg = s.engine.Filters()
	}

	c, err := reg.Lookup(call.name)
	if err != nil {
		return nil, false
	}

	params := paramLabels(c)
	if call.filter && len(params) > 0 {
		params = params[1:]
	}

	return params, true
}

// paramLabels names the parameters of c by position: required ones plain,
// optional ones in brackets and a variadic tail with a leading ellipsis.
func paramLabels(c engine.Callable) []string {
	var out []string

	for i := range c.MinArgs {
		out = append(out, "arg"+strconv.Itoa(i+1))
	}

	if c.Variadic {
		return append(out, "...args")
	}

	for i := c.MinArgs; i < c.MaxArgs; i++ {
		out = append(out, "[arg"+strconv.Itoa(i+1)+"]")
	}

	return out
}

// renderSignatureHint renders name(params) with the parameter at index
// highlighted. A variadic tail stays highlighted past its position.
func renderSignatureHint(name string, params []string, index int) string {
	var b strings.Builder

	b.WriteString(signatureNameStyle.Render(name))
	b.WriteString(signatureStyle.Render("("))

	for i, p := range params {
		if i > 0 {
			b.WriteString(signatureStyle.Render(", "))
		}

		current := i == index || strings.HasPrefix(p, "...") && index >= i
		if current {
			b.WriteString(currentParamStyle.Render(p))
		} else {
			b.WriteString(signatureStyle.Render(p))
		}
	}

	b.WriteString(signatureStyle.Render(")"))

	return b.String()
}
