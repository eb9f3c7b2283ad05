package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mihaisavezi/polychat/internal/process"
	"github.com/mihaisavezi/polychat/internal/server"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway",
	Long:  `Start the chat gateway in the foreground.`,
	RunE:  runStart,
}

func runStart(cmd *cobra.Command, _ []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logFile, _ := cmd.Flags().GetBool("log-file")

	cleanup, err := setupLogging(verbose, logFile)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := ensureConfigExists(); err != nil {
		return err
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	color.Green("Starting %s v%s...", AppName, Version)
	logger.Info("Starting server",
		"host", cfg.Host,
		"port", cfg.Port,
		"request_timeout", cfg.RequestTimeout(),
		"history", cfg.History.Enabled,
	)

	procMgr := process.NewManager(baseDir)
	if err := procMgr.Register(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)); err != nil {
		return err
	}
	defer procMgr.Cleanup()

	srv := server.New(cfgMgr, logger)

	return srv.Start()
}
