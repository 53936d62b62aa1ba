package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cosmossdk.io/log"
	"github.com/cometbft/cometbft/abci/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"prizevault/chain/internal/app"
)

const envPrefix = "PVD"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pvd",
		Short: "Prizevault ABCI application server",
		Long: `pvd runs the Prizevault settlement engine as an ABCI application.
Point a CometBFT node at it with --proxy_app matching --addr.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			viper.SetEnvPrefix(envPrefix)
			viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
			viper.AutomaticEnv()
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: runServer,
	}

	cmd.Flags().String("home", ".pvd", "app home directory (state is stored under <home>/app)")
	cmd.Flags().String("addr", "tcp://127.0.0.1:26658", "ABCI listen address")
	cmd.Flags().String("transport", "socket", "ABCI transport (socket|grpc)")
	cmd.Flags().String("log-level", "info", "log level (debug|info|warn|error)")

	return cmd
}

func runServer(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(viper.GetString("log-level"))
	if err != nil {
		return err
	}

	a, err := app.New(viper.GetString("home"), logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	addr := viper.GetString("addr")
	srv, err := server.NewServer(addr, viper.GetString("transport"), a)
	if err != nil {
		return fmt.Errorf("create abci server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start abci server: %w", err)
	}
	defer func() { _ = srv.Stop() }()

	logger.Info("abci server listening", "addr", addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")
	return nil
}

func newLogger(level string) (log.Logger, error) {
	filter, err := log.ParseLogLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	return log.NewLogger(os.Stderr, log.FilterOption(filter)), nil
}

func Execute() error {
	return newRootCmd().Execute()
}
