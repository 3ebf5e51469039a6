package serve

import (
	"errors"
	cmdUtil "github.com/ValentinKolb/wbKV/cmd/util"
	"github.com/ValentinKolb/wbKV/lib/savesvc"
	"github.com/ValentinKolb/wbKV/lib/store/sqlstore"
	"github.com/ValentinKolb/wbKV/rpc/common"
	"github.com/ValentinKolb/wbKV/rpc/server"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"os"
	"os/signal"
	"syscall"
)

var Logger = logger.GetLogger("cmd")

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the wbKV server",
		Long:    `Start the wbKV server with the specified configuration. The configuration can be set via command line flags, environment variables or a YAML config file. The format of the environment variables is WBKV_<flag> (e.g. WBKV_FLUSH_INTERVAL=30). On SIGINT or SIGTERM the server stops accepting requests and flushes all pending values before it exits.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	cmdUtil.SetupServerFlags(ServeCmd)
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	conf, err := cmdUtil.GetServerConfig()
	if err != nil {
		return err
	}
	*serveCmdConfig = *conf
	return nil
}

// run starts the wbKV server and blocks until it is stopped by a signal
func run(cmd *cobra.Command, _ []string) error {
	if err := common.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}
	Logger.Infof("configuration:\n%s", serveCmdConfig.String())

	svc := savesvc.NewSaveService(
		serveCmdConfig.ToServiceConfig(),
		sqlstore.NewFactory(serveCmdConfig.ToStoreOptions()),
	)
	if !svc.Enabled() {
		Logger.Warningf("save service is offline, all operations will return %s", savesvc.RetCOffline)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := server.NewRPCServer(*serveCmdConfig, svc).Serve(ctx)

	// final flush
	closeErr := svc.Close()

	return errors.Join(serveErr, closeErr)
}
