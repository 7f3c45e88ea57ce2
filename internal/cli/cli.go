// Package cli implements rankctl, the administrative command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	goflags "github.com/jessevdk/go-flags"

	"rank_tracker/internal/app"
	"rank_tracker/internal/config"
)

// env carries the process dependencies of every command.
type env struct {
	globals *GlobalFlags
	out     io.Writer
	loadCfg func() (*config.Config, error)
	newApp  func(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app.App, error)
}

type commands struct {
	Migrate  *MigrateCommand
	Collect  *CollectCommand
	Backfill *BackfillCommand
	Prune    *PruneCommand
	Import   *ImportCommand
}

func buildParser(e *env) (*goflags.Parser, *commands) {
	parser := goflags.NewParser(e.globals, goflags.HelpFlag|goflags.PassDoubleDash)
	parser.Name = "rankctl"
	parser.LongDescription = "Administrative commands for the rank tracker."

	cmds := &commands{
		Migrate:  &MigrateCommand{env: e},
		Collect:  &CollectCommand{env: e},
		Backfill: &BackfillCommand{env: e},
		Prune:    &PruneCommand{env: e},
		Import:   &ImportCommand{env: e},
	}

	// AddCommand only fails on a nil data argument.
	_, _ = parser.AddCommand("migrate", "Run a schema migration command", "Run a goose command against the database: up, up-one, down, status, version or reset.", cmds.Migrate)
	_, _ = parser.AddCommand("collect", "Run a weekly collection", "Collect the current period for all URLs, or for one URL with --url-id.", cmds.Collect)
	_, _ = parser.AddCommand("backfill", "Backfill past weeks", "Collect past periods without overwriting existing snapshots.", cmds.Backfill)
	_, _ = parser.AddCommand("prune", "Delete snapshots past the archive horizon", "Delete snapshots older than the archive_weeks setting.", cmds.Prune)
	_, _ = parser.AddCommand("import", "Import URLs and keywords from YAML", "Create tracked URLs from a YAML file. Keywords of URLs that already exist are added to.", cmds.Import)

	return parser, cmds
}

// Run parses os.Args and executes the selected command.
func Run() error {
	return RunWithArgs(os.Args[1:], os.Stdout)
}

// RunWithArgs executes the command in args, writing results to out.
func RunWithArgs(args []string, out io.Writer) error {
	e := &env{
		globals: &GlobalFlags{},
		out:     out,
		loadCfg: config.Load,
		newApp:  app.New,
	}
	return e.run(args)
}

func (e *env) run(args []string) error {
	parser, _ := buildParser(e)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *goflags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == goflags.ErrHelp {
			_, _ = fmt.Fprintln(e.out, flagsErr.Message)
			return nil
		}
		return err
	}
	return nil
}

// config loads the environment configuration with the --db override.
func (e *env) config() (*config.Config, error) {
	cfg, err := e.loadCfg()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if e.globals.DB != "" {
		cfg.DatabasePath = e.globals.DB
	}
	return cfg, nil
}

func (e *env) logger(cfg *config.Config) *slog.Logger {
	level := cfg.LogLevel
	if e.globals.Verbose {
		level = "debug"
	}
	return app.NewLogger(level)
}

// withApp builds the application for the duration of fn.
func (e *env) withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := e.config()
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := e.newApp(ctx, cfg, e.logger(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(ctx, a)
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
