package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"financial_extractor/pkg/config"
	"financial_extractor/pkg/core/agent"
	"financial_extractor/pkg/core/document"
	"financial_extractor/pkg/core/normalize"
	"financial_extractor/pkg/core/prompt"
	"financial_extractor/pkg/core/session"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:          "pipeline",
	Short:        "Batch extraction and conversion of financial data sources",
	Long:         "Extracts numeric facts and charts from PDF/HTML documents with a language model, converts legacy JSON files to the canonical envelope and bundles sources into ZIP or XLSX exports.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newController wires a session from the loaded configuration. The CLI has no
// snapshot store; every run starts from an empty registry.
func newController() (*session.Controller, error) {
	prompts, err := loadPrompts()
	if err != nil {
		return nil, err
	}
	return session.New(session.Options{
		Providers:  agent.NewManager(cfg.LLM),
		Documents:  document.NewSet(cfg.Extraction.PdftoppmPath, cfg.Extraction.RenderDPI),
		Prompts:    prompts,
		Normalizer: normalize.New(cfg.Normalize.Lenient),
		ChartRPS:   cfg.Extraction.ChartRPS,
	}), nil
}

// loadPrompts returns the embedded prompt library with the configured
// directory overrides applied.
func loadPrompts() (*prompt.Registry, error) {
	prompts := prompt.Get()
	if cfg.Prompt.Dir != "" {
		if err := prompt.LoadFromDirectory(prompts, cfg.Prompt.Dir); err != nil {
			return nil, eris.Wrapf(err, "load prompts from %s", cfg.Prompt.Dir)
		}
	}
	return prompts, nil
}

// importFiles loads every path into ctrl, stopping at the first failure.
func importFiles(_ context.Context, ctrl *session.Controller, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "read %s", path)
		}
		src, err := ctrl.ImportJSON(data, filepath.Base(path))
		if err != nil {
			return eris.Wrapf(err, "import %s", path)
		}
		zap.L().Info("source imported",
			zap.String("file", path),
			zap.String("name", src.Name),
			zap.String("data_type", string(src.DataType)),
			zap.Int("records", src.Len()),
		)
	}
	return nil
}

func writeOutput(dir, name string, content []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "create %s", dir)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", eris.Wrapf(err, "write %s", path)
	}
	return path, nil
}
