package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mihaisavezi/polychat/internal/config"
	"github.com/mihaisavezi/polychat/internal/process"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway status",
	Long:  `Display whether the gateway is running and how it is wired.`,
	Run:   runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) {
	procMgr := process.NewManager(baseDir)
	cfg := cfgMgr.Get()

	running := procMgr.IsRunning()

	color.Blue("Status for %s:", AppName)
	fmt.Printf("  %-15s: %v\n", "Running", running)

	if st, ok := procMgr.Read(); running && ok {
		fmt.Printf("  %-15s: %d\n", "PID", st.PID)
		fmt.Printf("  %-15s: %s\n", "Uptime", time.Since(st.StartedAt).Round(time.Second))
		fmt.Printf("  %-15s: %v\n", "Healthy", procMgr.Ready(cmd.Context()))
	}

	fmt.Printf("  %-15s: %s\n", "Endpoint", fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port))
	fmt.Printf("  %-15s: %s\n", "Gateway Auth", onOff(cfg.APIKey != ""))
	fmt.Printf("  %-15s: %s\n", "Web Search", searchMode(cfg))

	code, image, video := cfg.DelegateURLs()
	fmt.Printf("  %-15s: %s\n", "Code Delegate", orNone(code))
	fmt.Printf("  %-15s: %s\n", "Image Delegate", orNone(image))
	fmt.Printf("  %-15s: %s\n", "Video Delegate", orNone(video))

	if cfg.History.Enabled {
		fmt.Printf("  %-15s: %s\n", "History", cfg.History.Path)
	} else {
		fmt.Printf("  %-15s: %s\n", "History", "off")
	}

	fmt.Printf("  %-15s: %s\n", "Config Path", cfgMgr.GetPath())
	fmt.Printf("  %-15s: v%s\n", "Version", Version)
}

func searchMode(cfg *config.Config) string {
	switch {
	case cfg.Search.Endpoint != "":
		return "remote " + cfg.Search.Endpoint
	case cfg.Search.BraveAPIKey != "":
		return "brave"
	default:
		return "off"
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}

	return "off"
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}

	return s
}
