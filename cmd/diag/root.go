package diag

import (
	"errors"
	"fmt"
	cmdUtil "github.com/ValentinKolb/wbKV/cmd/util"
	"github.com/ValentinKolb/wbKV/lib/savesvc"
	"github.com/ValentinKolb/wbKV/lib/store/sqlstore"
	"github.com/ValentinKolb/wbKV/rpc/common"
	"github.com/spf13/cobra"
)

// ErrCheckFailed is returned by a diag command if its check did not pass
var ErrCheckFailed = errors.New("diagnostic check failed")

var (
	diagnostics *Diagnostics
	diagSvc     *savesvc.Service

	// DiagCommands represents the diagnostic command group
	DiagCommands = &cobra.Command{
		Use:   "diag",
		Short: "Run self checks against a locally opened save service",
		Long: `Opens the save service with the given server configuration (the same flags, environment
variables and config file as serve) and runs diagnostic checks against it. The checks
write and delete their own test keys, the service is flushed and closed afterwards.`,
		PersistentPreRunE: setupDiagnostics,
	}
)

// check creates a sub command that runs a single check
func check(use, short string, fn func(d *Diagnostics, args []string) bool) *cobra.Command {
	return &cobra.Command{
		Use:          use,
		Short:        short,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			passed := fn(diagnostics, args)
			if err := closeDiagnostics(); err != nil {
				return err
			}
			if !passed {
				return ErrCheckFailed
			}
			return nil
		},
	}
}

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)
	cmdUtil.SetupServerFlags(DiagCommands)

	DiagCommands.AddCommand(
		check("status", "Check whether the service is enabled", func(d *Diagnostics, _ []string) bool { return d.Status() }),
		check("config", "Print and validate the configuration", func(d *Diagnostics, _ []string) bool { return d.Config() }),
		check("database", "Test the database connectivity and table layout", func(d *Diagnostics, _ []string) bool { return d.Database() }),
		check("serialization", "Test the payload serialization", func(d *Diagnostics, _ []string) bool { return d.Serialization() }),
		check("operations", "Test save, load, exists and delete", func(d *Diagnostics, _ []string) bool { return d.Operations() }),
		check("cache", "Test that saved values are served from the cache", func(d *Diagnostics, _ []string) bool { return d.Cache() }),
		check("full", "Run all diagnostics", func(d *Diagnostics, _ []string) bool { return d.Full() }),
	)

	stressCmd := check("stress [count]", fmt.Sprintf("Run a save/load/delete stress test (default %d, max %d iterations)", DefaultStressCount, MaxStressCount),
		func(d *Diagnostics, args []string) bool {
			n := DefaultStressCount
			if len(args) > 0 {
				n = ParseCount(args[0])
			}
			return d.Stress(n)
		})
	stressCmd.Args = cobra.MaximumNArgs(1)
	DiagCommands.AddCommand(stressCmd)
}

// setupDiagnostics reads the server configuration and opens the save service
func setupDiagnostics(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	conf, err := cmdUtil.GetServerConfig()
	if err != nil {
		return err
	}
	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return err
	}

	diagSvc = savesvc.NewSaveService(conf.ToServiceConfig(), sqlstore.NewFactory(conf.ToStoreOptions()))
	diagnostics = NewDiagnostics(*conf, diagSvc, cmd.OutOrStdout())
	return nil
}

// closeDiagnostics flushes and closes the service
func closeDiagnostics() error {
	if diagSvc == nil {
		return nil
	}
	return diagSvc.Close()
}
