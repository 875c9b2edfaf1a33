// Command breadstamp manages a bakery stamp book: visited bakeries, the
// breads eaten there, statistics and achievement badges. It can run the
// REST API or operate on the configured store directly.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"breadstamp/internal/config"
	"breadstamp/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var exitFunc = os.Exit

type app struct {
	configPath string
	verbose    bool
	asJSON     bool

	out    io.Writer
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out, logger: zap.NewNop()}
	root := &cobra.Command{
		Use:           "breadstamp",
		Short:         "Bakery stamp book",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log, a.verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "path to a YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print results as JSON")

	root.AddCommand(
		a.serveCmd(),
		a.seedCmd(),
		a.bakeryCmd(),
		a.breadCmd(),
		a.categoriesCmd(),
		a.statsCmd(),
		a.achievementsCmd(),
		a.exportCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		exitFunc(1)
	}
}
