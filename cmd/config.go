package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mihaisavezi/polychat/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the gateway configuration.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration interactively",
	Long:  `Initialize configuration by prompting for the gateway key and collaborator settings.`,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration with keys masked.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the current configuration for errors.`,
	RunE:  runConfigValidate,
}

func init() {
	configInitCmd.Flags().Bool("example", false, "write a commented example config.yaml instead of prompting")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	if example, _ := cmd.Flags().GetBool("example"); example {
		if err := cfgMgr.CreateExampleYAML(); err != nil {
			return err
		}

		color.Green("Example configuration written to: %s", cfgMgr.GetPath())

		return nil
	}

	color.Blue("%s configuration setup", AppName)
	color.Yellow("Press enter to skip optional values.")

	reader := bufio.NewReader(os.Stdin)

	prompt := func(label string) string {
		fmt.Print(label)
		s, _ := reader.ReadString('\n')

		return strings.TrimSpace(s)
	}

	cfg := &config.Config{
		Host:                  config.DefaultHost,
		Port:                  config.DefaultPort,
		RequestTimeoutSeconds: config.DefaultRequestTimeoutSeconds,
	}

	cfg.APIKey = prompt("\nGateway API key (optional): ")
	cfg.PublicURL = prompt("Public URL of the delegate endpoints (optional): ")
	cfg.Search.BraveAPIKey = prompt("Brave Search API key (optional): ")

	if origins := prompt("Allowed origins, comma separated (optional): "); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if strings.HasPrefix(strings.ToLower(prompt("Keep chat history? [y/N]: ")), "y") {
		cfg.History.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfgMgr.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	color.Green("Configuration saved successfully to: %s", cfgMgr.GetPath())
	color.Cyan("You can now start the gateway with: %s start", AppName)

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		color.Yellow("No configuration found. Run '%s config init' to create one.", AppName)
		return nil
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	color.Blue("Current Configuration:")
	fmt.Printf("  %-18s: %s\n", "Host", cfg.Host)
	fmt.Printf("  %-18s: %d\n", "Port", cfg.Port)
	fmt.Printf("  %-18s: %s\n", "API Key", maskString(cfg.APIKey))
	fmt.Printf("  %-18s: %v\n", "Allowed Origins", cfg.AllowedOrigins)
	fmt.Printf("  %-18s: %s\n", "Public URL", orNone(cfg.PublicURL))
	fmt.Printf("  %-18s: %s\n", "Request Timeout", cfg.RequestTimeout())
	fmt.Printf("  %-18s: %s\n", "Config Path", cfgMgr.GetPath())

	fmt.Println("\nSearch:")
	fmt.Printf("  %-18s: %s\n", "Endpoint", orNone(cfg.Search.Endpoint))
	fmt.Printf("  %-18s: %s\n", "Brave API Key", maskString(cfg.Search.BraveAPIKey))
	fmt.Printf("  %-18s: %d\n", "Max Results", cfg.Search.MaxResults)

	code, image, video := cfg.DelegateURLs()
	fmt.Println("\nDelegates:")
	fmt.Printf("  %-18s: %s\n", "Code", orNone(code))
	fmt.Printf("  %-18s: %s\n", "Image", orNone(image))
	fmt.Printf("  %-18s: %s\n", "Video", orNone(video))

	fmt.Println("\nHistory:")
	fmt.Printf("  %-18s: %v\n", "Enabled", cfg.History.Enabled)
	fmt.Printf("  %-18s: %s\n", "Path", cfg.History.Path)

	if len(cfg.Providers) > 0 {
		fmt.Println("\nProvider Overrides:")

		for name, p := range cfg.Providers {
			fmt.Printf("  - Name: %s\n", name)
			fmt.Printf("    Base URL: %s\n", orNone(p.BaseURL))

			if len(p.Extra) > 0 {
				fmt.Printf("    Extra: %v\n", p.Extra)
			}
		}
	}

	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		return errors.New("no configuration found")
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		color.Red("Configuration validation failed:")

		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Printf("  - %s\n", line)
		}

		return errors.New("configuration validation failed")
	}

	color.Green("Configuration is valid!")

	return nil
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}

	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}

	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
