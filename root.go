package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dandels/dmodman-core/internal/appconfig"
	"github.com/dandels/dmodman-core/internal/ipc"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagGame       string
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// skipConfigAnnotation marks commands that don't need configuration loaded
// before they run. The root command carries it since a bare `dmodman
// nxm://...` invocation only needs the socket path, not a loaded profile.
const skipConfigAnnotation = "skipConfig"

// CLIContext bundles resolved configuration, paths, and the logger built
// from it. Populated once in PersistentPreRunE.
type CLIContext struct {
	Cfg    *appconfig.Config
	Paths  appconfig.Paths
	Game   string
	Logger *slog.Logger
}

type cliContextKey struct{}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		return nil
	}

	return cc
}

// mustCLIContext extracts the CLIContext or panics. A panic here is always
// a programmer error: every command but those annotated skipConfigAnnotation
// is guaranteed a populated context by PersistentPreRunE before RunE runs.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — command does not skip config loading")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dmodman [nxm_url]",
		Short:         "Concurrent data-coherence engine for a mod-hosting API",
		Long:          "dmodman tracks downloaded archives, extracted installs, and remote update status for mods fetched from a game-mod hosting API.",
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		Annotations:   map[string]string{skipConfigAnnotation: "true"},
		// A bare positional argument is a mod-protocol URL forwarded to a
		// running `serve` daemon over the local socket (§6 "CLI surface"):
		// the browser/desktop "download with manager" handoff invokes the
		// CLI this way. No subcommand needed, so RunE only fires when cobra
		// finds no closer-matching subcommand for the given args.
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return nil
			}

			return ipc.SendLine(appSocketPath(), args[0])
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}

			return loadCLIContext(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagGame, "game", "", "game domain (overrides config default_game)")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newIgnoreCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}

// loadCLIContext resolves paths and configuration, builds the logger, and
// stores the bundle in the command's context for use by RunE handlers.
func loadCLIContext(cmd *cobra.Command) error {
	logger := buildLogger(nil)

	configPath := flagConfigPath
	if configPath == "" {
		configPath = appconfig.DefaultConfigPath()
	}

	cfg, err := appconfig.LoadOrDefault(configPath, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	finalLogger := buildLogger(cfg)

	game := flagGame
	if game == "" {
		game = cfg.DefaultGame
	}

	cc := &CLIContext{
		Cfg:    cfg,
		Paths:  appconfig.DefaultPaths(),
		Game:   game,
		Logger: finalLogger,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Pass nil for pre-config bootstrap. Config-file log level
// provides the baseline; --verbose/--debug/--quiet (mutually exclusive via
// cobra) override it since CLI flags always win.
func buildLogger(cfg *appconfig.Config) *slog.Logger {
	level := slog.LevelWarn

	if cfg != nil {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}

	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagVerbose:
		level = slog.LevelInfo
	case flagQuiet:
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
