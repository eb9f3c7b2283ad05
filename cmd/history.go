package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mihaisavezi/polychat/internal/history"
)

const historyPromptWidth = 60

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent chat exchanges",
	Long:  `Print the most recent exchanges recorded by the gateway, newest first. Requires history to be enabled in the configuration.`,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 10, "number of exchanges to show")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg := cfgMgr.Get()
	if !cfg.History.Enabled {
		color.Yellow("History is disabled; set history.enabled in %s", cfgMgr.GetPath())
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 1 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	exchanges, err := store.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if len(exchanges) == 0 {
		color.Cyan("No exchanges recorded yet")
		return nil
	}

	for _, ex := range exchanges {
		status := color.GreenString("ok")
		if ex.IsError {
			status = color.RedString("error")
		}

		if ex.Retried {
			status += color.YellowString(" retried")
		}

		fmt.Printf("%s  %-10s %-28s %s\n", ex.CreatedAt.Format("2006-01-02 15:04:05"), ex.Provider, ex.Model, status)
		fmt.Printf("  > %s\n", oneLine(ex.Prompt, historyPromptWidth))
		fmt.Printf("  < %s\n", oneLine(ex.Response, historyPromptWidth))
	}

	return nil
}

func oneLine(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")

	r := []rune(s)
	if len(r) <= width {
		return s
	}

	return string(r[:width]) + "..."
}
