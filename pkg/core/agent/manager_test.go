package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financial_extractor/pkg/config"
)

func TestNewManagerBuildsAllVariants(t *testing.T) {
	m := NewManager(config.LLMConfig{ActiveProvider: "azure"})

	assert.Equal(t, "azure", m.GetActiveProvider())
	assert.Equal(t, "azure", m.Active().Name())
	assert.Equal(t, []ProviderInfo{
		{Name: "azure", Multimodal: true},
		{Name: "gemini", Multimodal: true},
		{Name: "ollama", Multimodal: false},
	}, m.Available())
}

func TestUnknownActiveFallsBackToFirst(t *testing.T) {
	m := NewManager(config.LLMConfig{ActiveProvider: "openai"})
	assert.Equal(t, "gemini", m.GetActiveProvider())
}

func TestSetGlobalProvider(t *testing.T) {
	m := NewManager(config.LLMConfig{ActiveProvider: "gemini"})

	require.NoError(t, m.SetGlobalProvider("ollama"))
	assert.Equal(t, "ollama", m.Active().Name())

	assert.Error(t, m.SetGlobalProvider("kimi"))
	assert.Equal(t, "ollama", m.GetActiveProvider())

	assert.NotNil(t, m.GetProviderByName("gemini"))
	assert.Nil(t, m.GetProviderByName("kimi"))
}
