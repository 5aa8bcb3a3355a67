// Package discover finds candidate source files under a root directory.
package discover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	ignore "github.com/sabhiram/go-gitignore"
)

var vendorDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	".git":          {},
	".hg":           {},
	".svn":          {},
	"venv":          {},
	".venv":         {},
	"env":           {},
	".env":          {},
	"build":         {},
	"dist":          {},
	".tox":          {},
	".nox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
	"site-packages": {},
}

// Options controls which files a Walker yields. The zero value (apart from
// Suffix) visits every directory.
type Options struct {
	Suffix         string
	Exclude        []string
	SkipHidden     bool
	SkipVendorDirs bool
	UseGitignore   bool
}

// UnreadableError is yielded for an entry the walk could not inspect. It
// never stops the walk.
type UnreadableError struct {
	Path string
	Err  error
}

func (e *UnreadableError) Error() string {
	return fmt.Sprintf("%s: unreadable: %v", e.Path, e.Err)
}

func (e *UnreadableError) Unwrap() error {
	return e.Err
}

// Walker enumerates files under a root directory.
type Walker struct {
	root    string
	opts    Options
	exclude []glob.Glob
	gi      *ignore.GitIgnore
}

// NewWalker compiles the exclude patterns and, if requested, the root
// .gitignore. An empty suffix is rejected.
func NewWalker(root string, opts Options) (*Walker, error) {
	if opts.Suffix == "" {
		return nil, errors.New("discover: empty file suffix")
	}

	w := &Walker{root: root, opts: opts}
	for _, pattern := range opts.Exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
		w.exclude = append(w.exclude, g)

		// "**/x" should also match "x" at the root.
		if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
			if g, err := glob.Compile(rest, '/'); err == nil {
				w.exclude = append(w.exclude, g)
			}
		}
	}
	if opts.UseGitignore {
		w.gi = loadGitignore(root)
	}
	return w, nil
}

// Walk lazily yields the paths of matching files, joined onto the root as
// given. Per-entry failures are yielded as *UnreadableError with an empty
// path; a cancelled context is yielded once and ends the walk. A root that
// does not exist or is not a directory yields nothing. Order follows
// filepath.WalkDir; use Files for the sorted set.
func (w *Walker) Walk(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		info, err := os.Stat(w.root)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				yield("", &UnreadableError{Path: w.root, Err: err})
			}
			return
		}
		if !info.IsDir() {
			return
		}

		_ = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				yield("", ctxErr)
				return filepath.SkipAll
			}
			if err != nil {
				if !yield("", &UnreadableError{Path: path, Err: err}) {
					return filepath.SkipAll
				}
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if path == w.root {
				return nil
			}

			rel, err := filepath.Rel(w.root, path)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if w.skipDir(d.Name(), rel) {
					return filepath.SkipDir
				}
				return nil
			}

			if !w.wantFile(d.Name(), rel) {
				return nil
			}

			if d.Type()&fs.ModeSymlink != 0 {
				target, err := os.Stat(path)
				if err != nil {
					if !yield("", &UnreadableError{Path: path, Err: err}) {
						return filepath.SkipAll
					}
					return nil
				}
				if !target.Mode().IsRegular() {
					return nil
				}
			} else if !d.Type().IsRegular() {
				return nil
			}

			if !yield(path, nil) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

func (w *Walker) skipDir(name, rel string) bool {
	if w.opts.SkipHidden && strings.HasPrefix(name, ".") {
		return true
	}
	if w.opts.SkipVendorDirs {
		if _, ok := vendorDirs[name]; ok || strings.HasSuffix(name, ".egg-info") {
			return true
		}
	}
	return w.excluded(rel)
}

func (w *Walker) wantFile(name, rel string) bool {
	if !strings.HasSuffix(name, w.opts.Suffix) {
		return false
	}
	if w.opts.SkipHidden && strings.HasPrefix(name, ".") {
		return false
	}
	return !w.excluded(rel)
}

func (w *Walker) excluded(rel string) bool {
	for _, g := range w.exclude {
		if g.Match(rel) {
			return true
		}
	}
	return w.gi != nil && w.gi.MatchesPath(rel)
}

// Files walks root and returns the matching paths sorted lexicographically,
// together with the non-fatal unreadable-entry events. Only an invalid
// configuration or a cancelled context is returned as an error.
func Files(ctx context.Context, root string, opts Options) ([]string, []error, error) {
	w, err := NewWalker(root, opts)
	if err != nil {
		return nil, nil, err
	}

	files := []string{}
	var events []error
	for path, err := range w.Walk(ctx) {
		if err != nil {
			var ue *UnreadableError
			if errors.As(err, &ue) {
				events = append(events, err)
				continue
			}
			return nil, nil, err
		}
		files = append(files, path)
	}

	sort.Strings(files)
	return files, events, nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
