package providers

import (
	"sort"

	"github.com/mihaisavezi/polychat/internal/chat"
)

// Registry manages adapter instances keyed by provider id.
type Registry struct {
	providers map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Adapter),
	}
}

// Register adds an adapter to the registry
func (r *Registry) Register(adapter Adapter) {
	r.providers[adapter.Name()] = adapter
}

// Get retrieves an adapter by provider id
func (r *Registry) Get(name string) (Adapter, bool) {
	adapter, exists := r.providers[name]
	return adapter, exists
}

// List returns all registered provider ids, sorted
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Initialize registers all built-in chat adapters. opts is keyed by provider
// id; missing entries use the vendor defaults.
func (r *Registry) Initialize(opts map[string]Options) {
	r.Register(NewOpenAIProvider(opts[chat.ProviderOpenAI]))
	r.Register(NewClaudeProvider(opts[chat.ProviderClaude]))
	r.Register(NewGeminiProvider(opts[chat.ProviderGemini]))
	r.Register(NewDeepSeekProvider(opts[chat.ProviderDeepSeek]))
	r.Register(NewGrokProvider(opts[chat.ProviderGrok]))
	r.Register(NewOpenRouterProvider(opts[chat.ProviderOpenRouter]))
	r.Register(NewMistralProvider(opts[chat.ProviderMistral]))
}
