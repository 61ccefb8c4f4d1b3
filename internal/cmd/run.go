package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/plugspan/internal/config"
	"github.com/Iron-Ham/plugspan/internal/lifespan"
	"github.com/Iron-Ham/plugspan/internal/logging"
	"github.com/Iron-Ham/plugspan/internal/notify"
	"github.com/Iron-Ham/plugspan/internal/orchestrator"
	"github.com/Iron-Ham/plugspan/internal/plugins"
)

var (
	runEcho            bool
	runEchoImmediately bool
	runDebug           bool
	runWatchPath       string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the built-in plugins until interrupted",
	Long: `Run starts the countdown plugin plus any plugins enabled by flags,
then waits for the countdown to finish, a task to fail, or an
interrupt. Teardown happens in reverse registration order either way.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("from", 0, "countdown start value")
	runCmd.Flags().Int("sleep", 0, "milliseconds between countdown steps")
	runCmd.Flags().Int("grace", 0, "milliseconds to wait for tasks to stop before abandoning them")
	runCmd.Flags().Int("pool-size", 0, "task scheduler capacity")
	runCmd.Flags().BoolVar(&runEcho, "echo", false, "log each countdown update")
	runCmd.Flags().BoolVar(&runEchoImmediately, "echo-immediately", false, "echo the current value before the next update")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "react to keypresses on a raw terminal")
	runCmd.Flags().StringVar(&runWatchPath, "watch", "", "publish filesystem events under this path")
	runCmd.Flags().String("watch-glob", "", "only publish watch events whose path matches this glob")

	_ = viper.BindPFlag("countdown.from", runCmd.Flags().Lookup("from"))
	_ = viper.BindPFlag("countdown.sleep_ms", runCmd.Flags().Lookup("sleep"))
	_ = viper.BindPFlag("shutdown.grace_ms", runCmd.Flags().Lookup("grace"))
	_ = viper.BindPFlag("registry.pool_size", runCmd.Flags().Lookup("pool-size"))
	_ = viper.BindPFlag("watch.glob", runCmd.Flags().Lookup("watch-glob"))
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	orch := orchestrator.New(orchestrator.Options{
		Logger:        logger,
		PoolSize:      cfg.Registry.PoolSize,
		ShutdownGrace: cfg.Shutdown.Grace(),
	})

	pctx := &plugins.Context{
		Hub:    notify.NewHub(),
		Logger: logger,
		Orch:   orch,
	}

	// Registration order is teardown order reversed: the debug plugin
	// registers last so its terminal restore runs first on the way out.
	plugs := []lifespan.Plugin{
		plugins.Countdown(pctx, cfg.Countdown.From, cfg.Countdown.Sleep()),
	}
	if runEcho || runEchoImmediately {
		plugs = append(plugs, plugins.Echo(pctx, runEchoImmediately))
	}
	if runWatchPath != "" {
		plugs = append(plugs, plugins.Watch(pctx, runWatchPath, cfg.Watch.Glob))
	}
	if runDebug {
		plugs = append(plugs, plugins.Debug(pctx))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return orch.Run(ctx, plugs)
}
