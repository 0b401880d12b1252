package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ValentinKolb/tally/cmd/ingest"
	"github.com/ValentinKolb/tally/cmd/kv"
	"github.com/ValentinKolb/tally/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "tally",
		Short: "deduplicating signal counter on a persistent map",
		Long: fmt.Sprintf(`tally (v%s)

A local storage and deduplication layer for telemetry signals. Counters are
kept in a persistent map backed by a durable (bolt) or volatile (memory)
engine, repeated signals are suppressed within a time window.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of tally",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tally v%s\n", Version)
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(ingest.IngestCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
