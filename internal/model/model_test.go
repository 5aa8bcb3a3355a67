package model

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestEmptyReportEncodesEmptyArrays(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, NewReport().Encode(&buf))

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	for _, key := range []string{"modules", "classes", "functions"} {
		assert.JSONEq(t, "[]", string(doc[key]), key)
	}
}

func TestModuleRefJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ref  ModuleRef
		want string
	}{
		{"plain", PlainImport("os", "sys"), `["os","sys"]`},
		{"plain empty", PlainImport(), `[]`},
		{"from", FromImport("os.path"), `"os.path"`},
		{"relative", RelativeImport(), `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := json.Marshal(tt.ref)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))

			var back ModuleRef
			require.NoError(t, json.Unmarshal(got, &back))
			assert.Equal(t, tt.ref, back)
		})
	}
}

func TestModuleRefUnmarshalRejectsObjects(t *testing.T) {
	t.Parallel()

	var ref ModuleRef
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &ref))
}

func TestAppendPreservesOrderAndDuplicates(t *testing.T) {
	t.Parallel()

	r := NewReport()
	r.Append(
		[]ClassRecord{{Name: "A", Methods: []string{"run"}, File: "a.py", LineStart: 1}},
		[]FunctionRecord{{Name: "run", Parameters: []string{"self"}, File: "a.py", LineStart: 2}},
		[]ImportRecord{{Module: PlainImport("os"), File: "a.py"}},
	)
	r.Append(
		[]ClassRecord{{Name: "A", Methods: []string{}, File: "b.py", LineStart: 1}},
		nil,
		[]ImportRecord{{Module: FromImport("os"), File: "b.py"}},
	)

	require.Len(t, r.Classes, 2)
	assert.Equal(t, "a.py", r.Classes[0].File)
	assert.Equal(t, "b.py", r.Classes[1].File)
	require.Len(t, r.Functions, 1)
	require.Len(t, r.Modules, 2)
	assert.Equal(t, ImportFrom, r.Modules[1].Module.Kind)
}

func TestEncodeShape(t *testing.T) {
	t.Parallel()

	r := NewReport()
	r.Append(
		[]ClassRecord{{Name: "A", Methods: []string{"f"}, Docstring: ptr("Doc <b>"), File: "a.py", LineStart: 1, LineEnd: ptr(3)}},
		[]FunctionRecord{{Name: "f", Parameters: []string{}, File: "a.py", LineStart: 2, LineEnd: ptr(3)}},
		[]ImportRecord{{Module: RelativeImport(), File: "a.py"}},
	)

	out, err := JSON{}.Consume(context.Background(), r)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"modules": [{"module": null, "file": "a.py"}],
		"classes": [{"name": "A", "methods": ["f"], "docstring": "Doc <b>", "file": "a.py", "line_start": 1, "line_end": 3}],
		"functions": [{"name": "f", "parameters": [], "docstring": null, "file": "a.py", "line_start": 2, "line_end": 3}]
	}`, string(out))
	assert.Contains(t, string(out), "Doc <b>", "HTML must not be escaped")
	assert.Contains(t, string(out), "\n    \"modules\"", "four-space indentation")
}
