package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

//go:embed templates/*.yaml
var embedded embed.FS

// LoadEmbedded registers the templates compiled into the binary.
func LoadEmbedded(r *Registry) error {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return err
	}
	return loadPrompts(r, sub)
}

// LoadFromDirectory loads every .yaml/.yml file under dir into the registry.
// Files override embedded prompts with the same ID.
// Expected structure:
//
//	dir/
//	  extraction/
//	    numeric.yaml      -> extraction.numeric (unless the file sets id)
//	  chat/
//	    qa.yaml
func LoadFromDirectory(r *Registry, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("prompts directory not found: %s", dir)
	}
	if err := loadPrompts(r, os.DirFS(dir)); err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}

	zap.L().Info("prompt overrides loaded", zap.String("dir", dir), zap.Int("prompts", r.Count()))
	return nil
}

// loadPrompts walks fsys and registers all YAML prompt files.
func loadPrompts(r *Registry, fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		ext := filepath.Ext(path)
		if d.IsDir() || (ext != ".yaml" && ext != ".yml") {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		var pt PromptTemplate
		if err := yaml.Unmarshal(data, &pt); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		// Auto-generate ID from path if not specified
		if pt.ID == "" {
			pt.ID = generateIDFromPath(path)
		}

		// Auto-detect category from folder name if not specified
		if pt.Category == "" {
			pt.Category = detectCategory(pt.ID)
		}

		if err := r.Register(&pt); err != nil {
			return fmt.Errorf("failed to register %s: %w", pt.ID, err)
		}
		return nil
	})
}

// generateIDFromPath creates a prompt ID from the file path
// e.g., "extraction/numeric.yaml" -> "extraction.numeric"
func generateIDFromPath(path string) string {
	path = strings.TrimSuffix(path, filepath.Ext(path))
	return strings.ReplaceAll(path, "/", ".")
}

// detectCategory takes the first ID segment as the category
func detectCategory(id string) string {
	if head, _, ok := strings.Cut(id, "."); ok {
		return head
	}
	return "default"
}

// RenderUserPrompt executes the user prompt template with the given context
func RenderUserPrompt(pt *PromptTemplate, ctx *PromptExecutionContext) (string, error) {
	if pt.UserPromptTmpl == "" {
		return "", nil
	}

	tmpl, err := template.New(pt.ID).Parse(pt.UserPromptTmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx.Variables); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
