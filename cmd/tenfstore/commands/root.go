// Package commands implements the tenfstore command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	tenf "github.com/Redshadow31/tenf-v2-sub007"
	"github.com/Redshadow31/tenf-v2-sub007/backend"
	"github.com/Redshadow31/tenf-v2-sub007/codec"
	"github.com/Redshadow31/tenf-v2-sub007/config"
	"github.com/Redshadow31/tenf-v2-sub007/internal/telemetry"
)

// Version is set at build time with -ldflags "-X ...commands.Version=...".
var Version = "dev"

// Exit codes.
const (
	exitError    = 1
	exitNotFound = 2
	exitUsage    = 3
)

// annotationNoStore marks commands that run without opening a backend.
const annotationNoStore = "tenfstore/no-store"

// app holds the state shared by one command invocation.
type app struct {
	v       *viper.Viper
	cfgFile string

	cfg      config.Config
	logger   *tenf.Logger
	stats    *tenf.BasicMetricsCollector
	store    *tenf.Store
	shutdown telemetry.ShutdownFunc
}

func newApp() *app {
	return &app{
		v:     viper.New(),
		stats: &tenf.BasicMetricsCollector{},
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	a := newApp()
	defer a.close(context.WithoutCancel(ctx))
	return a.rootCmd().ExecuteContext(ctx)
}

// ExitCode maps a command error onto a process exit status.
func ExitCode(err error) int {
	var uerr usageError
	switch {
	case err == nil:
		return 0
	case tenf.IsNotFound(err):
		return exitNotFound
	case errors.As(err, &uerr), tenf.IsInvalidKey(err):
		return exitUsage
	default:
		return exitError
	}
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

// usageArgs reports argument validation failures as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return usageError{msg: err.Error()}
		}
		return nil
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tenfstore",
		Short: "Inspect and migrate TENF records",
		Long: `tenfstore reads and writes the JSON records of the TENF data layer on any
configured backend (local directory, S3, MinIO, DynamoDB, NATS).

Configuration comes from --config (YAML), TENF_* environment variables and
the flags below, in increasing order of precedence.`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Annotations:       map[string]string{annotationNoStore: ""},
		PersistentPreRunE: a.setup,
		// Runnable, so an unknown subcommand fails in Args as a usage error.
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{msg: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Path to a YAML config file")
	pf.String("backend", "", fmt.Sprintf("Storage backend %v", config.Kinds()))
	pf.String("base-dir", "", "Root directory of the local backend")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("log-format", "", "Log format (text, json)")
	pf.String("otlp-endpoint", "", "OTLP/HTTP trace endpoint (host:port or URL)")

	for key, flag := range map[string]string{
		"storage.kind":            "backend",
		"storage.base_dir":        "base-dir",
		"log.level":               "log-level",
		"log.format":              "log-format",
		"telemetry.otlp_endpoint": "otlp-endpoint",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(
		a.getCmd(),
		a.putCmd(),
		a.lsCmd(),
		a.rmCmd(),
		a.keyCmd(),
		a.exportCmd(),
		a.importCmd(),
		a.configCmd(),
	)
	return root
}

// setup loads configuration and, unless the command is annotated otherwise,
// opens the backend.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, _ := cfg.Log.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Log.Format, "json") {
		a.logger = tenf.NewLogger(slog.NewJSONHandler(cmd.ErrOrStderr(), opts))
	} else {
		a.logger = tenf.NewLogger(slog.NewTextHandler(cmd.ErrOrStderr(), opts))
	}

	if _, ok := cmd.Annotations[annotationNoStore]; ok {
		return nil
	}

	ctx := cmd.Context()

	tcfg := cfg.Telemetry
	if tcfg.OTLPEndpoint == "" {
		tcfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	shutdown, err := telemetry.Init(ctx, tcfg, Version)
	if err != nil {
		return err
	}
	a.shutdown = shutdown

	blobs, kind, err := backend.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	c, _ := codec.ByName(cfg.Storage.Codec)

	a.store = tenf.New(blobs,
		tenf.WithBackendName(string(kind)),
		tenf.WithCodec(c),
		tenf.WithLogger(a.logger),
		tenf.WithMetricsCollector(a.stats),
	)
	a.logger.Debug("backend opened", "backend", kind, "codec", c.Name())
	return nil
}

func (a *app) close(ctx context.Context) {
	if a.store != nil {
		stats := a.stats.GetStats()
		a.logger.Debug("store stats",
			"reads", stats.ReadCount,
			"read_errors", stats.ReadErrors,
			"writes", stats.WriteCount,
			"write_errors", stats.WriteErrors,
			"lists", stats.ListCount,
			"deletes", stats.DeleteCount,
			"exists", stats.ExistsCount,
		)
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close backend", "error", err)
		}
		a.store = nil
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			a.logger.Warn("shutdown telemetry", "error", err)
		}
		a.shutdown = nil
	}
}
