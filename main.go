// pyoutline extracts classes, functions and imports from a Python source tree.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/phobologic/pyoutline/internal/analyzer"
	"github.com/phobologic/pyoutline/internal/config"
	"github.com/phobologic/pyoutline/internal/model"
	"github.com/phobologic/pyoutline/internal/store"
	"github.com/phobologic/pyoutline/internal/toon"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := runContext(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	return runContext(context.Background(), args, stdout, stderr)
}

func runContext(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

type rootOptions struct {
	configFile  string
	verbose     bool
	quiet       bool
	progress    bool
	showVersion bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts rootOptions
	def := config.Default()

	cmd := &cobra.Command{
		Use:   "pyoutline [path]",
		Short: "Outline the classes, functions and imports of a Python project",
		Long: `pyoutline walks a directory, parses every Python file it finds and
reports each class, function and import statement with its file, line span,
parameters and docstring.

Files are processed in sorted path order, so output is byte-identical across
runs. Files that cannot be read or parsed are skipped with a warning.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				_, _ = fmt.Fprintf(stdout, "pyoutline %s\n", version)
				return nil
			}
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return runAnalyze(cmd, root, &opts, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringVar(&opts.configFile, "config", "", "config file (default <path>/"+config.FileName+")")
	f.String("format", def.Format, "output format: json or toon")
	f.StringP("output", "o", "", "write output to a file instead of stdout")
	f.String("sqlite", "", "also save the report to this SQLite database")
	f.String("suffix", def.Suffix, "file name suffix to analyze")
	f.IntP("workers", "j", def.Workers, "parallel parsers (0 = number of CPUs)")
	f.Bool("strict", false, "abort on unreadable files instead of skipping them")
	f.StringSlice("exclude", nil, "glob patterns to skip, relative to path (repeatable)")
	f.Bool("gitignore", false, "skip files matched by the root .gitignore")
	f.Bool("skip-hidden", false, "skip dot-files and dot-directories")
	f.Bool("skip-vendor", false, "skip virtualenv, cache and build directories")
	f.BoolVar(&opts.progress, "progress", false, "draw a progress bar on stderr")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "only log errors")
	f.BoolVarP(&opts.showVersion, "version", "V", false, "show version and exit")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(newInitCmd(stdout, stderr))
	return cmd
}

func newLogger(w io.Writer, opts *rootOptions) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case opts.verbose:
		level = slog.LevelDebug
	case opts.quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func runAnalyze(cmd *cobra.Command, root string, opts *rootOptions, stdout, stderr io.Writer) error {
	logger := newLogger(stderr, opts)

	loader := config.NewLoader(root).WithConfigFile(opts.configFile).WithFlags(cmd.Flags())
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if used := loader.UsedFile(); used != "" {
		logger.Debug("loaded config", slog.String("file", used))
	}

	aopts := cfg.AnalyzerOptions()
	aopts.Logger = logger
	if opts.progress {
		aopts.Observer = newProgressObserver(stderr)
	}

	ctx := cmd.Context()
	res, err := analyzer.New(aopts).Run(ctx, root)
	if err != nil {
		return err
	}
	if len(res.Diagnostics) > 0 {
		logger.Info("some files were skipped",
			slog.Int("skipped", len(res.Diagnostics)),
			slog.Int("files", res.Files))
	}

	out, err := consumerFor(cfg.Format).Consume(ctx, res.Report)
	if err != nil {
		return err
	}

	if cfg.SQLite != "" {
		if err := saveReport(ctx, cfg.SQLite, res.Report); err != nil {
			return err
		}
		logger.Debug("saved report", slog.String("db", cfg.SQLite))
	}

	if cfg.Output != "" {
		if err := os.WriteFile(cfg.Output, out, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", cfg.Output, err)
		}
		return nil
	}
	_, err = stdout.Write(out)
	return err
}

func consumerFor(format string) model.Consumer {
	if format == "toon" {
		return toon.Encoder{}
	}
	return model.JSON{}
}

func saveReport(ctx context.Context, dbPath string, r *model.Report) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", dbPath, err)
	}
	defer s.Close()
	if err := s.Save(ctx, r); err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}
