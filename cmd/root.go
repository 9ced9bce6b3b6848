package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/access-cli/internal/config"
)

var cfg *config.Config

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:          "access-cli",
	Short:        "Spatial accessibility and equity analysis",
	Long:         "Measures how far people live from services (straight-line or over a street network) and reports coverage and per-capita equity per service category.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		applyLogFlags(cmd, &c.Log)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		zap.ReplaceGlobals(zap.L().With(
			zap.String("command", cmd.Name()),
			zap.String("study", cfg.Analysis.Study),
		))
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = zap.L().Sync()
	},
}

// applyLogFlags lets --log-level and --log-format override the config.
func applyLogFlags(cmd *cobra.Command, lc *config.LogConfig) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		lc.Level = logLevel
	}
	if flags.Changed("log-format") {
		lc.Format = logFormat
	}
}

// run executes the command tree and maps the outcome to an exit code. An
// interrupt cancels the context handed to every command, so a long network
// study stops between categories.
func run(ctx context.Context, args []string) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			zap.L().Warn("interrupted")
			return 130
		}
		zap.L().Error("command failed", zap.Error(err))
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log.format (json or console)")
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}
