package cmd

import (
	"fmt"
	"github.com/ValentinKolb/wbKV/cmd/diag"
	"github.com/ValentinKolb/wbKV/cmd/kv"
	"github.com/ValentinKolb/wbKV/cmd/serve"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "wbkv",
		Short: "write-behind key-value save service",
		Long: fmt.Sprintf(`wbKV (v%s)

A cache backed key-value save service written in Go. Saves are answered from
memory and written to SQLite in periodic batches, loads are served from the
cache, the pending writes or the database.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of wbKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wbKV v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(diag.DiagCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
