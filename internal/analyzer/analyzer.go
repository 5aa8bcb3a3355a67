// Package analyzer wires discovery, parsing and extraction into a report.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/phobologic/pyoutline/internal/discover"
	"github.com/phobologic/pyoutline/internal/lang"
	"github.com/phobologic/pyoutline/internal/model"
	"github.com/phobologic/pyoutline/internal/parse"
)

// Kind classifies a per-file diagnostic.
type Kind string

const (
	WalkFailure  Kind = "walk"
	ReadFailure  Kind = "read"
	ParseFailure Kind = "parse"
)

// Diagnostic records a file that contributed no records.
type Diagnostic struct {
	File string
	Kind Kind
	Err  error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %v", d.Kind, d.File, d.Err)
}

// Observer is notified as files are processed. Calls come from a single
// goroutine.
type Observer interface {
	Start(total int)
	FileDone(path string)
	Finish()
}

// Options configures an Analyzer.
type Options struct {
	Walk discover.Options

	// Workers bounds concurrent parsing; 0 means GOMAXPROCS, 1 is sequential.
	Workers int

	// StrictRead makes a file read failure abort the run instead of being
	// recorded as a diagnostic.
	StrictRead bool

	Logger   *slog.Logger
	Observer Observer
}

// Result is the outcome of a run.
type Result struct {
	Report      *model.Report
	Diagnostics []Diagnostic
	Files       int
}

// Analyzer runs the walk, parse, extract, accumulate pipeline.
type Analyzer struct {
	opts      Options
	logger    *slog.Logger
	newParser func() parse.SourceParser
	readFile  func(string) ([]byte, error)
}

// New creates an Analyzer for Python sources.
func New(opts Options) *Analyzer {
	if opts.Walk.Suffix == "" {
		opts.Walk.Suffix = lang.Python.DefaultSuffix()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		opts:      opts,
		logger:    logger,
		newParser: func() parse.SourceParser { return parse.NewParser(lang.Python) },
		readFile:  os.ReadFile,
	}
}

type fileResult struct {
	decls parse.Declarations
	diag  *Diagnostic
	err   error
}

// Run analyzes every matching file under root. Files are processed in sorted
// order and their records appended in that order regardless of which worker
// finished first. A missing root yields an empty report.
func (a *Analyzer) Run(ctx context.Context, root string) (*Result, error) {
	files, events, err := discover.Files(ctx, root, a.opts.Walk)
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	a.logger.Debug("discovered files", slog.String("root", root), slog.Int("count", len(files)))

	res := &Result{Report: model.NewReport(), Files: len(files)}
	for _, ev := range events {
		d := Diagnostic{Kind: WalkFailure, Err: ev}
		var ue *discover.UnreadableError
		if errors.As(ev, &ue) {
			d.File = ue.Path
		}
		a.logger.Warn("skipping unreadable entry", slog.String("file", d.File), slog.Any("err", ev))
		res.Diagnostics = append(res.Diagnostics, d)
	}

	if obs := a.opts.Observer; obs != nil {
		obs.Start(len(files))
		defer obs.Finish()
	}

	results, err := a.processFiles(ctx, files)
	if err != nil {
		return nil, err
	}

	for i, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		if r.diag != nil {
			if r.diag.Kind == ReadFailure && a.opts.StrictRead {
				return nil, fmt.Errorf("reading %s: %w", files[i], r.diag.Err)
			}
			a.logDiagnostic(*r.diag)
			res.Diagnostics = append(res.Diagnostics, *r.diag)
			continue
		}
		res.Report.Append(r.decls.Classes, r.decls.Functions, r.decls.Imports)
	}

	a.logger.Debug("analysis complete",
		slog.Int("files", len(files)),
		slog.Int("classes", len(res.Report.Classes)),
		slog.Int("functions", len(res.Report.Functions)),
		slog.Int("modules", len(res.Report.Modules)),
		slog.Int("diagnostics", len(res.Diagnostics)))

	return res, nil
}

func (a *Analyzer) logDiagnostic(d Diagnostic) {
	switch d.Kind {
	case ParseFailure:
		attrs := []any{slog.String("file", d.File), slog.Any("err", d.Err)}
		var pe *parse.ParseError
		if errors.As(d.Err, &pe) {
			attrs = append(attrs, slog.Int("line", pe.Line))
		}
		a.logger.Warn("skipping file with syntax error", attrs...)
	default:
		a.logger.Warn("skipping unreadable file", slog.String("file", d.File), slog.Any("err", d.Err))
	}
}

// processFiles parses files on a bounded worker pool. Each worker owns its
// parser; results are indexed by file position.
func (a *Analyzer) processFiles(ctx context.Context, files []string) ([]fileResult, error) {
	results := make([]fileResult, len(files))
	if len(files) == 0 {
		return results, nil
	}

	numWorkers := a.opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	numWorkers = min(numWorkers, len(files))

	work := make(chan int, len(files))
	done := make(chan int, len(files))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			p := a.newParser()
			defer p.Close()

			for idx := range work {
				if err := ctx.Err(); err != nil {
					results[idx] = fileResult{err: err}
				} else {
					results[idx] = a.processFile(ctx, p, files[idx])
				}
				done <- idx
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(done)
	}()

	for idx := range done {
		if obs := a.opts.Observer; obs != nil {
			obs.FileDone(files[idx])
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *Analyzer) processFile(ctx context.Context, p parse.SourceParser, path string) fileResult {
	source, err := a.readFile(path)
	if err != nil {
		return fileResult{diag: &Diagnostic{File: path, Kind: ReadFailure, Err: err}}
	}

	tree, err := p.Parse(ctx, source, path)
	if err != nil {
		var pe *parse.ParseError
		if errors.As(err, &pe) {
			return fileResult{diag: &Diagnostic{File: path, Kind: ParseFailure, Err: err}}
		}
		return fileResult{err: err}
	}
	defer tree.Close()

	return fileResult{decls: parse.Extract(tree, path)}
}
