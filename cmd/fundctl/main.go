package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"time"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"

	"github.com/zargusta/fundtracker/cmd/fundctl/internal/command"
	"github.com/zargusta/fundtracker/internal/config"
)

var plain = flag.Bool("plain", false, "Print markdown without terminal styling")

func main() {
	// Exits early when the shell asks for completions.
	command.Completion(flag.CommandLine).Complete(path.Base(os.Args[0]))

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(cfg.Logger(os.Stderr))

	env := &command.Env{
		Config: cfg,
		Out:    os.Stdout,
		Err:    os.Stderr,
		Now:    time.Now,
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	command.Register(commander, env)

	flag.Parse()
	env.Plain = *plain

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	status := commander.Execute(ctx)

	stop()

	if err := env.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}

	os.Exit(int(status))
}
