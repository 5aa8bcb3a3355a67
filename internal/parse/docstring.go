package parse

import (
	"strconv"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/pyoutline/internal/lang"
)

const tabSize = 8

// docstring returns the cleaned docstring of a class or function body, or
// nil when the first statement is not a lone string literal.
func docstring(body *sitter.Node, source []byte) *string {
	stmt := lang.PythonFirstStatement(body)
	if stmt == nil || stmt.Type() != "expression_statement" || stmt.NamedChildCount() != 1 {
		return nil
	}
	expr := stmt.NamedChild(0)
	for expr.Type() == "parenthesized_expression" && expr.NamedChildCount() == 1 {
		expr = expr.NamedChild(0)
	}
	value, ok := stringValue(expr, source)
	if !ok {
		return nil
	}
	doc := cleanDoc(value)
	return &doc
}

// stringValue evaluates a str literal. Bytes and f-strings are not str
// constants and report false.
func stringValue(node *sitter.Node, source []byte) (string, bool) {
	switch node.Type() {
	case "string":
		return decodeLiteral(lang.NodeText(node, source))
	case "concatenated_string":
		var b strings.Builder
		for i := 0; i < int(node.NamedChildCount()); i++ {
			part := node.NamedChild(i)
			if part.Type() != "string" {
				continue
			}
			s, ok := decodeLiteral(lang.NodeText(part, source))
			if !ok {
				return "", false
			}
			b.WriteString(s)
		}
		return b.String(), true
	}
	return "", false
}

// decodeLiteral strips prefix and quotes from a single string literal and
// decodes its escape sequences.
func decodeLiteral(raw string) (string, bool) {
	i := strings.IndexAny(raw, `'"`)
	if i < 0 {
		return "", false
	}
	prefix := strings.ToLower(raw[:i])
	if strings.ContainsAny(prefix, "bft") {
		return "", false
	}

	body := raw[i:]
	quote := body[:1]
	if strings.HasPrefix(body, `"""`) || strings.HasPrefix(body, `'''`) {
		quote = body[:3]
	}
	if len(body) < 2*len(quote) || !strings.HasSuffix(body, quote) {
		return "", false
	}
	content := normalizeNewlines(body[len(quote) : len(body)-len(quote)])

	if strings.Contains(prefix, "r") {
		return content, true
	}
	return unescape(content), true
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// unescape decodes Python string escapes. Unknown escapes and \N{...} with an
// unknown character name are kept verbatim.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := s[i]; e {
		case '\n':
		case '\\', '\'', '"':
			b.WriteByte(e)
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(s[i:j], 8, 32)
			b.WriteRune(rune(v))
			i = j - 1
		case 'N':
			if r, n, ok := namedRune(s[i+1:]); ok {
				b.WriteRune(r)
				i += n
				continue
			}
			b.WriteByte('\\')
			b.WriteByte(e)
		case 'x', 'u', 'U':
			width := escapeWidth(e)
			if r, ok := hexRune(s[i+1:], width); ok {
				b.WriteRune(r)
				i += width
				continue
			}
			b.WriteByte('\\')
			b.WriteByte(e)
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String()
}

func escapeWidth(e byte) int {
	switch e {
	case 'x':
		return 2
	case 'u':
		return 4
	}
	return 8
}

func hexRune(s string, width int) (rune, bool) {
	if len(s) < width {
		return 0, false
	}
	v, err := strconv.ParseUint(s[:width], 16, 32)
	if err != nil || v > unicode.MaxRune {
		return 0, false
	}
	return rune(v), true
}

// cleanDoc normalizes docstring indentation the way inspect.cleandoc does.
func cleanDoc(doc string) string {
	lines := strings.Split(doc, "\n")
	runes := make([][]rune, len(lines))
	for i, line := range lines {
		runes[i] = []rune(expandTabs(line))
	}

	margin := -1
	for _, line := range runes[1:] {
		indent := leadingSpace(line)
		if indent == len(line) {
			continue
		}
		if margin < 0 || indent < margin {
			margin = indent
		}
	}

	runes[0] = runes[0][leadingSpace(runes[0]):]
	if margin >= 0 {
		for i := 1; i < len(runes); i++ {
			if len(runes[i]) > margin {
				runes[i] = runes[i][margin:]
			} else {
				runes[i] = nil
			}
		}
	}

	for len(runes) > 0 && len(runes[len(runes)-1]) == 0 {
		runes = runes[:len(runes)-1]
	}
	for len(runes) > 0 && len(runes[0]) == 0 {
		runes = runes[1:]
	}

	out := make([]string, len(runes))
	for i, line := range runes {
		out[i] = string(line)
	}
	return strings.Join(out, "\n")
}

func leadingSpace(line []rune) int {
	n := 0
	for n < len(line) && unicode.IsSpace(line[n]) {
		n++
	}
	return n
}

func expandTabs(line string) string {
	if !strings.Contains(line, "\t") {
		return line
	}
	var b strings.Builder
	col := 0
	for _, r := range line {
		switch r {
		case '\t':
			pad := tabSize - col%tabSize
			b.WriteString(strings.Repeat(" ", pad))
			col += pad
		case '\r':
			b.WriteRune(r)
			col = 0
		default:
			b.WriteRune(r)
			col++
		}
	}
	return b.String()
}
