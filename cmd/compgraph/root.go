// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/compgraph/services/compgraph/config"
	"github.com/AleutianAI/compgraph/services/compgraph/engine"
)

// envPrefix is the prefix of environment overrides, e.g. COMPGRAPH_DB.
const envPrefix = "COMPGRAPH"

// cli holds state shared by all subcommands for one invocation.
type cli struct {
	v      *viper.Viper
	logger *slog.Logger

	stdout io.Writer
	stderr io.Writer

	shutdownTracing func(context.Context) error
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	app := &cli{
		v:      viper.New(),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	cmd := &cobra.Command{
		Use:   "compgraph",
		Short: "Component graph analysis for React projects",
		Long: `compgraph parses TSX/JSX sources into a component graph, derives
containment and prop/state/context/event flows, and scores structural
patterns and anti-patterns such as god components and prop drilling.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return app.teardown(cmd.Context())
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text or json")
	pf.Bool("trace-stdout", false, "Export OpenTelemetry spans to stderr")
	pf.String("config", "", "Engine configuration YAML overlaid on the defaults")
	pf.Int("workers", 0, "Parse workers (0 uses the configured value)")
	pf.String("db", "", "Snapshot database directory")

	cmd.AddCommand(
		newAnalyzeCmd(app),
		newWatchCmd(app),
		newServeCmd(app),
		newSnapshotCmd(app),
	)
	return cmd
}

// setup binds flags and environment, then configures logging and tracing.
func (a *cli) setup(cmd *cobra.Command) error {
	a.stdout = cmd.OutOrStdout()
	a.stderr = cmd.ErrOrStderr()

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := a.v.BindPFlag(f.Name, f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return fmt.Errorf("binding flags: %w", bindErr)
	}

	logger, err := newLogger(a.stderr, a.v.GetString("log-level"), a.v.GetString("log-format"))
	if err != nil {
		return err
	}
	a.logger = logger
	slog.SetDefault(logger)

	if a.v.GetBool("trace-stdout") {
		shutdown, err := setupStdoutTracing(a.stderr)
		if err != nil {
			return err
		}
		a.shutdownTracing = shutdown
	}
	return nil
}

func (a *cli) teardown(ctx context.Context) error {
	if a.shutdownTracing == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return a.shutdownTracing(ctx)
}

// engineConfig loads --config over the defaults, or the process default.
func (a *cli) engineConfig(ctx context.Context) (*config.EngineConfig, error) {
	if path := a.v.GetString("config"); path != "" {
		return config.LoadEngineConfigFile(ctx, path)
	}
	return config.GetEngineConfig(ctx)
}

// newEngine creates an engine from the resolved configuration.
func (a *cli) newEngine(ctx context.Context) (*engine.Engine, error) {
	cfg, err := a.engineConfig(ctx)
	if err != nil {
		return nil, err
	}
	return engine.New(ctx,
		engine.WithConfig(cfg),
		engine.WithWorkers(a.v.GetInt("workers")),
		engine.WithLogger(a.logger),
	)
}

// newLogger builds the process logger.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// setupStdoutTracing installs a global TracerProvider that writes spans to w.
func setupStdoutTracing(w io.Writer) (func(context.Context) error, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating stdout trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
