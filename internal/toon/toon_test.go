package toon

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/pyoutline/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "hello", "hello"},
		{"leading space", " hello", `" hello"`},
		{"trailing space", "hello ", `"hello "`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"true keyword", "true", `"true"`},
		{"True keyword", "True", `"True"`},
		{"null keyword", "null", `"null"`},
		{"numeric string", "42", `"42"`},
		{"comma", "a,b", `"a,b"`},
		{"colon", "a:b", `"a:b"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"bracket", "a[b", `"a[b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"path", "src/main.py", "src/main.py"},
		{"dunder", "__init__", "__init__"},
		{"space list", "self name", "self name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, encodeValue(tt.in))
		})
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	r := model.NewReport()
	r.Append(
		[]model.ClassRecord{{
			Name: "User", Methods: []string{"__init__", "greet"}, Docstring: ptr("A user.\n\nDetails."),
			File: "models.py", LineStart: 3, LineEnd: ptr(9),
		}},
		[]model.FunctionRecord{
			{Name: "__init__", Parameters: []string{"self", "name"}, File: "models.py", LineStart: 5, LineEnd: ptr(6)},
			{Name: "greet", Parameters: []string{}, File: "models.py", LineStart: 8},
		},
		[]model.ImportRecord{
			{Module: model.PlainImport("os", "sys"), File: "models.py"},
			{Module: model.FromImport("os.path"), File: "models.py"},
			{Module: model.RelativeImport(), File: "models.py"},
		},
	)

	want := strings.Join([]string{
		"modules[3]{kind,module,file}:",
		"  import,os sys,models.py",
		"  from,os.path,models.py",
		"  from,null,models.py",
		"classes[1]{name,methods,docstring,file,line_start,line_end}:",
		`  User,__init__ greet,"A user.\n\nDetails.",models.py,3,9`,
		"functions[2]{name,parameters,docstring,file,line_start,line_end}:",
		"  __init__,self name,null,models.py,5,6",
		`  greet,"",null,models.py,8,null`,
	}, "\n")

	assert.Equal(t, want, Encode(r))
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	got := Encode(model.NewReport())
	assert.Equal(t, "modules[0]{kind,module,file}:\n"+
		"classes[0]{name,methods,docstring,file,line_start,line_end}:\n"+
		"functions[0]{name,parameters,docstring,file,line_start,line_end}:", got)
}

func TestEncoderIsConsumer(t *testing.T) {
	t.Parallel()

	var c model.Consumer = Encoder{}
	out, err := c.Consume(context.Background(), model.NewReport())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(out), "\n"))
	assert.True(t, strings.HasPrefix(string(out), "modules[0]"))
}
