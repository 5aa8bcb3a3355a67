// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/pyoutline/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encoder renders a report as TOON tables. It implements model.Consumer.
type Encoder struct{}

// Consume implements model.Consumer.
func (Encoder) Consume(_ context.Context, r *model.Report) ([]byte, error) {
	return []byte(Encode(r) + "\n"), nil
}

// Encode converts a Report into TOON format. Lists inside a cell are joined
// with single spaces; absent values are written as null.
func Encode(r *model.Report) string {
	var parts []string

	var moduleRows [][]any
	for i := range r.Modules {
		m := &r.Modules[i]
		var ref any
		switch {
		case m.Module.Kind == model.Import:
			ref = strings.Join(m.Module.Names, " ")
		case m.Module.Module != nil:
			ref = *m.Module.Module
		}
		moduleRows = append(moduleRows, []any{string(m.Module.Kind), ref, m.File})
	}
	parts = append(parts, formatTabular("modules", []string{"kind", "module", "file"}, moduleRows))

	var classRows [][]any
	for i := range r.Classes {
		c := &r.Classes[i]
		classRows = append(classRows, []any{
			c.Name,
			strings.Join(c.Methods, " "),
			c.Docstring,
			c.File,
			c.LineStart,
			c.LineEnd,
		})
	}
	parts = append(parts, formatTabular("classes",
		[]string{"name", "methods", "docstring", "file", "line_start", "line_end"}, classRows))

	var funcRows [][]any
	for i := range r.Functions {
		f := &r.Functions[i]
		funcRows = append(funcRows, []any{
			f.Name,
			strings.Join(f.Parameters, " "),
			f.Docstring,
			f.File,
			f.LineStart,
			f.LineEnd,
		})
	}
	parts = append(parts, formatTabular("functions",
		[]string{"name", "parameters", "docstring", "file", "line_start", "line_end"}, funcRows))

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeCell(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeCell(cell any) string {
	switch v := cell.(type) {
	case nil:
		return "null"
	case string:
		return encodeValue(v)
	case *string:
		if v == nil {
			return "null"
		}
		return encodeValue(*v)
	case int:
		return strconv.Itoa(v)
	case *int:
		if v == nil {
			return "null"
		}
		return strconv.Itoa(*v)
	}
	return encodeValue(fmt.Sprint(cell))
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return quote(value)
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
