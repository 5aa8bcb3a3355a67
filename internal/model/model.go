// Package model defines the declaration records and the analysis report.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// ImportKind distinguishes plain imports from import-from statements.
type ImportKind string

const (
	Import     ImportKind = "import"
	ImportFrom ImportKind = "from"
)

// ModuleRef is the module reference of an import statement.
//
// A plain import names one or more modules (Names). An import-from names a
// single source module (Module), which is nil for a relative import such as
// "from . import x".
type ModuleRef struct {
	Kind   ImportKind
	Names  []string
	Module *string
}

// PlainImport returns the reference of "import a, b.c".
func PlainImport(names ...string) ModuleRef {
	if names == nil {
		names = []string{}
	}
	return ModuleRef{Kind: Import, Names: names}
}

// FromImport returns the reference of "from module import ...".
func FromImport(module string) ModuleRef {
	return ModuleRef{Kind: ImportFrom, Module: &module}
}

// RelativeImport returns the reference of an import-from that names no module.
func RelativeImport() ModuleRef {
	return ModuleRef{Kind: ImportFrom}
}

// MarshalJSON encodes a plain import as an array of names and an import-from
// as a string or null.
func (m ModuleRef) MarshalJSON() ([]byte, error) {
	if m.Kind == Import {
		names := m.Names
		if names == nil {
			names = []string{}
		}
		return json.Marshal(names)
	}
	return json.Marshal(m.Module)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (m *ModuleRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*m = RelativeImport()
	case len(data) > 0 && data[0] == '[':
		var names []string
		if err := json.Unmarshal(data, &names); err != nil {
			return fmt.Errorf("module reference: %w", err)
		}
		*m = PlainImport(names...)
	default:
		var module string
		if err := json.Unmarshal(data, &module); err != nil {
			return fmt.Errorf("module reference: %w", err)
		}
		*m = FromImport(module)
	}
	return nil
}

// ImportRecord is one import statement.
type ImportRecord struct {
	Module ModuleRef `json:"module"`
	File   string    `json:"file"`
}

// ClassRecord summarizes one class definition.
type ClassRecord struct {
	Name      string   `json:"name"`
	Methods   []string `json:"methods"`
	Docstring *string  `json:"docstring"`
	File      string   `json:"file"`
	LineStart int      `json:"line_start"`
	LineEnd   *int     `json:"line_end"`
}

// FunctionRecord summarizes one function definition, methods included.
type FunctionRecord struct {
	Name       string   `json:"name"`
	Parameters []string `json:"parameters"`
	Docstring  *string  `json:"docstring"`
	File       string   `json:"file"`
	LineStart  int      `json:"line_start"`
	LineEnd    *int     `json:"line_end"`
}

// Report is the ordered, append-only log of every record produced by a run.
type Report struct {
	Modules   []ImportRecord   `json:"modules"`
	Classes   []ClassRecord    `json:"classes"`
	Functions []FunctionRecord `json:"functions"`
}

// NewReport returns an empty report whose sequences encode as [] rather than null.
func NewReport() *Report {
	return &Report{
		Modules:   []ImportRecord{},
		Classes:   []ClassRecord{},
		Functions: []FunctionRecord{},
	}
}

// Append extends the report with the records of one file, preserving order.
func (r *Report) Append(classes []ClassRecord, functions []FunctionRecord, imports []ImportRecord) {
	r.Classes = append(r.Classes, classes...)
	r.Functions = append(r.Functions, functions...)
	r.Modules = append(r.Modules, imports...)
}

// Encode writes the report as indented JSON without HTML escaping.
func (r *Report) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(r)
}

// Consumer derives a document from a finished report. Consumers treat the
// report as read-only input.
type Consumer interface {
	Consume(ctx context.Context, r *Report) ([]byte, error)
}

// JSON is the Consumer that produces the canonical JSON document.
type JSON struct{}

// Consume implements Consumer.
func (JSON) Consume(_ context.Context, r *Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return buf.Bytes(), nil
}
