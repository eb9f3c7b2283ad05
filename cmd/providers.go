package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mihaisavezi/polychat/internal/chat"
	"github.com/mihaisavezi/polychat/internal/handlers"
	"github.com/mihaisavezi/polychat/internal/providers"
	"github.com/mihaisavezi/polychat/internal/server"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List chat providers",
	Long:  `List the chat providers the gateway can call, with their default model and budget.`,
	Run:   runProviders,
}

func newRegistry() *providers.Registry {
	registry := providers.NewRegistry()
	registry.Initialize(server.ProviderOptions(cfgMgr.Get()))

	return registry
}

func runProviders(cmd *cobra.Command, _ []string) {
	color.Blue("Chat providers:")

	for _, p := range handlers.Describe(newRegistry()) {
		vision := ""
		if p.Vision {
			vision = color.CyanString(" vision")
		}

		fmt.Printf("  %-11s %-28s %4ds %6d tokens%s\n", p.Name, p.DefaultModel, p.TimeoutSeconds, p.MaxTokens, vision)
	}

	color.Blue("\nDelegate-only providers:")
	fmt.Printf("  %-11s video generation\n", chat.ProviderVEO2)
	fmt.Printf("  %-11s image generation\n", chat.ProviderRunway)
}
