package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mihaisavezi/polychat/internal/config"
)

const (
	AppName = "polychat"
	Version = "0.3.0"

	LogFilename = "polychat.log"
)

var (
	logger  *slog.Logger
	homeDir string
	baseDir string
	cfgMgr  *config.Manager
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	logger = slog.New(handler)

	// A missing .env is fine; keys usually come from the config file.
	_ = godotenv.Load()

	var err error

	homeDir, err = os.UserHomeDir()
	if err != nil {
		logger.Error("Failed to get home directory", "error", err)
		os.Exit(1)
	}

	baseDir = filepath.Join(homeDir, "."+AppName)
	cfgMgr = config.NewManager(baseDir)
}

var rootCmd = &cobra.Command{
	Use:     AppName,
	Short:   "polychat - multi-provider AI chat gateway",
	Long:    `A chat gateway that routes one inbound contract to OpenAI, Claude, Gemini, DeepSeek, Grok, OpenRouter and Mistral, with web-search augmentation, code mode and delegate fallbacks.`,
	Version: Version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolP("log-file", "l", false, "also write logs to "+LogFilename+" in the config directory")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

// setupLogging replaces the package logger. The returned func releases the
// log file, if one was opened.
func setupLogging(verbose, logFile bool) (func(), error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var (
		out     io.Writer = os.Stdout
		cleanup           = func() {}
	)

	if logFile {
		if err := os.MkdirAll(baseDir, 0o750); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}

		f, err := os.OpenFile(filepath.Join(baseDir, LogFilename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}

		out = io.MultiWriter(os.Stdout, f)
		cleanup = func() { _ = f.Close() }
	}

	logger = slog.New(slog.NewTextHandler(out, opts))

	return cleanup, nil
}

func ensureConfigExists() error {
	if !cfgMgr.Exists() {
		color.Yellow("Configuration not found, writing an example to %s", filepath.Join(baseDir, config.DefaultYAMLFilename))

		if err := cfgMgr.CreateExampleYAML(); err != nil {
			return err
		}

		color.Cyan("Edit it or run '%s config init', then start again", AppName)

		return fmt.Errorf("configuration required")
	}

	return nil
}
