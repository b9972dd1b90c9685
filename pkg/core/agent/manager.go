package agent

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"financial_extractor/pkg/config"
	"financial_extractor/pkg/core/llm"
)

// Manager owns the configured providers and the active selection.
type Manager struct {
	mu        sync.RWMutex
	active    string
	providers map[string]llm.Provider
}

// NewManager builds the three provider variants from configuration.
func NewManager(cfg config.LLMConfig) *Manager {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	client := &http.Client{Timeout: timeout}

	return NewManagerWith(cfg.ActiveProvider,
		&llm.GeminiProvider{
			APIKey:     cfg.Gemini.APIKey,
			Model:      cfg.Gemini.Model,
			HTTPClient: client,
		},
		&llm.AzureOpenAIProvider{
			APIKey:     cfg.Azure.APIKey,
			Endpoint:   cfg.Azure.Endpoint,
			Deployment: cfg.Azure.Deployment,
			APIVersion: cfg.Azure.APIVersion,
			HTTPClient: client,
		},
		&llm.OllamaProvider{
			BaseURL:    cfg.Ollama.BaseURL,
			Model:      cfg.Ollama.Model,
			HTTPClient: client,
		},
	)
}

// NewManagerWith registers arbitrary providers; the first one is the fallback
// when active names none of them.
func NewManagerWith(active string, providers ...llm.Provider) *Manager {
	m := &Manager{providers: make(map[string]llm.Provider, len(providers))}
	for _, p := range providers {
		m.providers[p.Name()] = p
	}
	if _, ok := m.providers[active]; !ok && len(providers) > 0 {
		zap.L().Warn("unknown active provider, falling back",
			zap.String("requested", active),
			zap.String("fallback", providers[0].Name()),
		)
		active = providers[0].Name()
	}
	m.active = active
	return m
}

// Active returns the provider currently selected.
func (m *Manager) Active() llm.Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.providers[m.active]
}

// GetProviderByName retrieves a provider instance by its name (e.g. "ollama").
func (m *Manager) GetProviderByName(name string) llm.Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.providers[name]
}

// SetGlobalProvider switches the active provider.
func (m *Manager) SetGlobalProvider(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[name]; !ok {
		return fmt.Errorf("provider %s not found", name)
	}
	m.active = name
	zap.L().Info("active provider switched", zap.String("provider", name))
	return nil
}

// GetActiveProvider returns the active provider's name.
func (m *Manager) GetActiveProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// ProviderInfo describes one provider for the config endpoint.
type ProviderInfo struct {
	Name       string `json:"name"`
	Multimodal bool   `json:"multimodal"`
}

// Available lists providers sorted by name.
func (m *Manager) Available() []ProviderInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ProviderInfo, 0, len(m.providers))
	for name, p := range m.providers {
		_, mm := p.(llm.MultimodalProvider)
		out = append(out, ProviderInfo{Name: name, Multimodal: mm})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
