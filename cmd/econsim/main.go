// Command econsim runs the colony economy simulation: it seeds a world from
// YAML configs, steps it at the configured tick rate and serves health,
// metrics and an observer stream over HTTP.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var paths configPaths

var rootCmd = &cobra.Command{
	Use:   "econsim",
	Short: "Colony economy simulation",
	Long: `econsim runs the resource economy of a colony sim headless: team ledgers,
construction sites, crafting buildings and the task dispatcher that keeps
civilians busy.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&paths.dir, "configs", "./configs", "config directory")
	rootCmd.PersistentFlags().StringVar(&paths.tuning, "tuning", "", "path to tuning.yaml (default <configs>/tuning.yaml)")
	rootCmd.PersistentFlags().StringVar(&paths.resources, "resources", "", "path to resources.yaml (default <configs>/resources.yaml)")
	rootCmd.PersistentFlags().StringVar(&paths.scenario, "scenario", "", "path to scenario.yaml (default <configs>/scenario.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *log.Logger {
	return log.New(os.Stdout, "[econsim] ", log.LstdFlags|log.Lmicroseconds)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
