package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"formcoach/internal/config"
	"formcoach/internal/store"
)

const usage = `usage: formcoach [-json] [-quiet] <command> [flags]

commands:
  init       write an example config file
  sync       fetch activities from Strava
  balance    show current fitness, fatigue and form
  analyze    show trends, warnings and a short prediction
  predict    project form to a target date
  taper      plan a taper for a race date
  recovery   estimate days until recovered
  scenario   simulate a planned load
  status     show stored activities, the last sync and cached history
  serve      run the HTTP API with scheduled sync
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs
type app struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
	json   bool
}

func run(args []string) error {
	g, rest, err := parseGlobal(args)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("no command given")
	}
	name, cmdArgs := rest[0], rest[1:]

	if name == "init" {
		return runInit()
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", name)
	}

	// Load configuration
	cfg, err := config.Load()
	if errors.Is(err, config.ErrNoConfig) {
		path, _ := config.Path()
		return fmt.Errorf("no config file at %s, run \"formcoach init\" first", path)
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		path, _ := config.Path()
		return fmt.Errorf("config %s: %w", path, err)
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	if g.quiet {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Open database
	dbPath, err := cfg.DBPath()
	if err != nil {
		return err
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, store: db, logger: logger, json: g.json}
	return cmd(ctx, a, cmdArgs)
}

func runInit() error {
	created, err := config.CreateExample()
	if err != nil {
		return fmt.Errorf("creating example config: %w", err)
	}
	path, _ := config.Path()
	if !created {
		fmt.Printf("Config already exists at:\n  %s\n", path)
		return nil
	}
	fmt.Printf("Example config written to:\n  %s\n\n", path)
	fmt.Println("Add your Strava API credentials and a refresh token before running sync.")
	fmt.Println("Get them from: https://www.strava.com/settings/api")
	return nil
}
