package analyzer

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/pyoutline/internal/discover"
	"github.com/phobologic/pyoutline/internal/model"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createSampleProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "models.py", `import os, sys

class User:
    """A user."""

    def __init__(self, name):
        self.name = name

    def greet(self, other):
        return other
`)
	writeFile(t, dir, "app/main.py", `from models import User

def run(argv):
    "Entry point."
    return User(argv[0])
`)
	writeFile(t, dir, "app/broken.py", "def oops(:\n    pass\n")
	writeFile(t, dir, "notes.txt", "ignored")
	return dir
}

func encode(t *testing.T, r *model.Report) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, r.Encode(&buf))
	return buf.String()
}

func TestRunSampleProject(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	res, err := New(Options{Logger: quietLogger()}).Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Files)

	r := res.Report
	// Sorted order: app/broken.py (skipped), app/main.py, models.py.
	require.Len(t, r.Modules, 2)
	assert.Equal(t, filepath.Join(dir, "app", "main.py"), r.Modules[0].File)
	assert.Equal(t, model.FromImport("models"), r.Modules[0].Module)
	assert.Equal(t, model.PlainImport("os", "sys"), r.Modules[1].Module)

	require.Len(t, r.Classes, 1)
	assert.Equal(t, "User", r.Classes[0].Name)
	assert.Equal(t, []string{"__init__", "greet"}, r.Classes[0].Methods)

	var fnames []string
	for _, f := range r.Functions {
		fnames = append(fnames, f.Name)
	}
	assert.Equal(t, []string{"run", "__init__", "greet"}, fnames)

	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, ParseFailure, d.Kind)
	assert.Equal(t, filepath.Join(dir, "app", "broken.py"), d.File)
	for _, f := range r.Functions {
		assert.NotEqual(t, "oops", f.Name, "failed files contribute no records")
	}
}

func TestRunFlatteningLaw(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	res, err := New(Options{Logger: quietLogger()}).Run(context.Background(), dir)
	require.NoError(t, err)

	for _, c := range res.Report.Classes {
		for _, m := range c.Methods {
			found := false
			for _, f := range res.Report.Functions {
				if f.Name == m && f.File == c.File {
					found = true
				}
			}
			assert.True(t, found, "method %s.%s has no FunctionRecord", c.Name, m)
		}
	}
}

func TestRunMissingRoot(t *testing.T) {
	t.Parallel()

	res, err := New(Options{Logger: quietLogger()}).Run(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, res.Report.Modules)
	assert.Empty(t, res.Report.Classes)
	assert.Empty(t, res.Report.Functions)
	assert.JSONEq(t, `{"modules":[],"classes":[],"functions":[]}`, encode(t, res.Report))
}

func TestRunIdempotentAcrossWorkerCounts(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	for i := range 20 {
		writeFile(t, dir, filepath.Join("pkg", strings.Repeat("m", i+1)+".py"),
			"class C:\n    def m(self, x):\n        pass\n\ndef f(a):\n    pass\n")
	}

	var outputs []string
	for _, workers := range []int{1, 1, 4, 0} {
		res, err := New(Options{Workers: workers, Logger: quietLogger()}).Run(context.Background(), dir)
		require.NoError(t, err)
		outputs = append(outputs, encode(t, res.Report))
	}
	for i := 1; i < len(outputs); i++ {
		assert.Equal(t, outputs[0], outputs[i], "run %d differs", i)
	}
}

func TestRunReadFailureRecoveredByDefault(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	a := New(Options{Logger: quietLogger()})
	a.readFile = failingReader(filepath.Join(dir, "models.py"))

	res, err := a.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, res.Report.Classes)
	require.Len(t, res.Report.Functions, 1)

	var kinds []Kind
	for _, d := range res.Diagnostics {
		kinds = append(kinds, d.Kind)
	}
	assert.Equal(t, []Kind{ParseFailure, ReadFailure}, kinds)
}

func TestRunStrictReadAborts(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	a := New(Options{StrictRead: true, Logger: quietLogger()})
	a.readFile = failingReader(filepath.Join(dir, "models.py"))

	res, err := a.Run(context.Background(), dir)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Contains(t, err.Error(), "models.py")
}

func TestRunParseFailureLogged(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	_, err := New(Options{Logger: logger}).Run(context.Background(), dir)
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, "skipping file with syntax error")
	assert.Contains(t, out, "broken.py")
	assert.Contains(t, out, "line=1")
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{Logger: quietLogger()}).Run(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunWalkOptions(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	writeFile(t, dir, ".venv/lib/site.py", "def vendored(): pass\n")

	res, err := New(Options{
		Walk:   discover.Options{Suffix: ".py", SkipVendorDirs: true, Exclude: []string{"app/**"}},
		Logger: quietLogger(),
	}).Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	assert.Empty(t, res.Diagnostics)
}

type recordingObserver struct {
	total    int
	done     []string
	finished bool
}

func (o *recordingObserver) Start(total int)      { o.total = total }
func (o *recordingObserver) FileDone(path string) { o.done = append(o.done, path) }
func (o *recordingObserver) Finish()              { o.finished = true }

func TestRunObserver(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	obs := &recordingObserver{}
	_, err := New(Options{Workers: 2, Observer: obs, Logger: quietLogger()}).Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, obs.total)
	assert.Len(t, obs.done, 3)
	assert.True(t, obs.finished)
}

func failingReader(path string) func(string) ([]byte, error) {
	return func(name string) ([]byte, error) {
		if name == path {
			return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
		}
		return os.ReadFile(name)
	}
}
