package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/chazu/michelangelo/pkg/config"
	"github.com/spf13/cobra"
)

// cli holds the state shared by every subcommand of one invocation.
type cli struct {
	configPath string
	logLevel   string

	cfg config.Config
	log *slog.Logger

	// onBuild, if set, is called after every watch rebuild.
	onBuild func(error)
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "michelangelo",
		Short: "Build, inspect and mesh smooth-blended CSG scenes",
		Long: `michelangelo reads a CSG scene, either an edit log (any extension) or a
Lisp script (.lisp, .zy), and evaluates, prints or tessellates it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ./"+config.DefaultFile+" if present)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		c.evalCmd(),
		c.inspectCmd(),
		c.fmtCmd(),
		c.meshCmd(),
		c.watchCmd(),
		c.sampleCmd(),
		c.configCmd(),
	)
	return root
}

func (c *cli) setup(stderr io.Writer) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid --log-level %q", c.logLevel)
		}
	}
	logger, err := newLogger(stderr, cfg.Log)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.log = logger
	c.log.Debug("configuration loaded", "path", c.configPath, "cells", cfg.Mesh.Cells, "timeout", cfg.Eval.Timeout)
	return nil
}

func newLogger(w io.Writer, lc config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func (c *cli) app() *App {
	return NewApp(c.cfg, c.log)
}
