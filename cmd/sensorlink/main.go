// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Sensorlink drives a device producer through a connector. The
// configuration file decides where the producer lives: in this
// process, behind a running producer's socket, or in a producer
// process spawned on demand.
//
// Commands:
//
//	status          print the device snapshot and upload status
//	server-status   print the upload pipeline status
//	start           start recording
//	stop            stop recording
//	records TOPIC   print the most recent records of a topic
//	watch           print status changes until interrupted
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/radarcns/sensorlink/lib/config"
	"github.com/radarcns/sensorlink/lib/process"
	"github.com/radarcns/sensorlink/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		process.Fatal(err)
	}
}

// command is one sensorlink subcommand. The session is bound before
// run is called and unbound after it returns.
type command struct {
	summary string
	run     func(ctx context.Context, s *session, args []string, out io.Writer) error
}

var commands = map[string]command{
	"status":        {"print the device snapshot and upload status", runStatus},
	"server-status": {"print the upload pipeline status", runServerStatus},
	"start":         {"start recording", runStart},
	"stop":          {"stop recording", runStop},
	"records":       {"print the most recent records of a topic", runRecords},
	"watch":         {"print status changes until interrupted", runWatch},
}

func usage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: sensorlink [flags] <command> [args]\n\nCommands:\n")
	for _, name := range []string{"status", "server-status", "start", "stop", "records", "watch"} {
		fmt.Fprintf(os.Stderr, "  %-14s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(os.Stderr, "\nFlags:\n")
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}

func run(args []string, out io.Writer) error {
	var configPath string
	var verbose, showVersion bool

	flagSet := pflag.NewFlagSet("sensorlink", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&configPath, "config", "", "config file (default: $"+config.EnvConfig+")")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() { usage(flagSet) }
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if showVersion {
		fmt.Fprintf(out, "sensorlink %s\n", version.Full())
		return nil
	}
	if flagSet.NArg() == 0 {
		usage(flagSet)
		return errors.New("no command given")
	}
	name := flagSet.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := process.NewLogger(level).With("command", name)

	ctx, stop := process.SignalContext()
	defer stop()

	s, err := newSession(cfg, logger)
	if err != nil {
		return err
	}
	if err := s.bind(ctx); err != nil {
		return err
	}
	defer s.close()

	return cmd.run(ctx, s, flagSet.Args()[1:], out)
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}
