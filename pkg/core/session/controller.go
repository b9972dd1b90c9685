// Package session owns the mutable state of one extraction session: the data
// source registry and the chat log. Every mutation goes through Controller,
// which the HTTP handlers and the CLI share.
package session

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"financial_extractor/pkg/core/document"
	"financial_extractor/pkg/core/importer"
	"financial_extractor/pkg/core/llm"
	"financial_extractor/pkg/core/normalize"
	"financial_extractor/pkg/core/prompt"
	"financial_extractor/pkg/core/registry"
	"financial_extractor/pkg/core/store"
	"financial_extractor/pkg/core/validate"
	"financial_extractor/pkg/models"
)

// Providers hands out the provider selected by configuration.
type Providers interface {
	Active() llm.Provider
}

// Documents resolves extractors and renderers per document kind.
type Documents interface {
	For(kind validate.DocumentKind) (document.Extractor, error)
	RendererFor(kind validate.DocumentKind, fileName string) (document.Renderer, error)
}

// Snapshots persists registry state.
type Snapshots interface {
	Save(ctx context.Context, name string, sources []*models.DataSource, activeID string) error
	Load(ctx context.Context, name string) (*store.Snapshot, error)
}

var (
	// ErrNoProvider means no provider is configured at all.
	ErrNoProvider = eris.New("no model provider configured")
	// ErrNoSnapshots means persistence was requested without a database.
	ErrNoSnapshots = eris.New("session snapshots need a configured database")
	// ErrStaleAnswer means the chat was cleared while the answer was pending;
	// the answer was discarded.
	ErrStaleAnswer = eris.New("chat was cleared before the answer arrived")
)

// Options wires a Controller.
type Options struct {
	Providers  Providers
	Documents  Documents
	Prompts    *prompt.Registry
	Normalizer *normalize.Normalizer
	Snapshots  Snapshots // optional
	// ChartRPS paces chart page calls; 0 means unpaced.
	ChartRPS float64
}

// Controller is safe for concurrent use.
type Controller struct {
	providers  Providers
	docs       Documents
	prompts    *prompt.Registry
	normalizer *normalize.Normalizer
	snapshots  Snapshots
	limiter    *rate.Limiter
	registry   *registry.Registry

	chatMu     sync.Mutex
	chat       []models.ChatMessage
	generation uint64
}

// New creates a Controller with an empty registry.
func New(opts Options) *Controller {
	limit := rate.Inf
	if opts.ChartRPS > 0 {
		limit = rate.Limit(opts.ChartRPS)
	}
	prompts := opts.Prompts
	if prompts == nil {
		prompts = prompt.Get()
	}
	normalizer := opts.Normalizer
	if normalizer == nil {
		normalizer = normalize.New(false)
	}

	return &Controller{
		providers:  opts.Providers,
		docs:       opts.Documents,
		prompts:    prompts,
		normalizer: normalizer,
		snapshots:  opts.Snapshots,
		limiter:    rate.NewLimiter(limit, 1),
		registry:   registry.New(),
	}
}

// Registry exposes the source registry for read access and subscriptions.
func (c *Controller) Registry() *registry.Registry {
	return c.registry
}

func (c *Controller) provider() (llm.Provider, error) {
	if c.providers == nil {
		return nil, ErrNoProvider
	}
	p := c.providers.Active()
	if p == nil {
		return nil, ErrNoProvider
	}
	return p, nil
}

// =============================================================================
// SOURCES
// =============================================================================

// ImportJSON classifies an uploaded JSON file and adds it as a new source.
func (c *Controller) ImportJSON(data []byte, fileName string) (*models.DataSource, error) {
	if err := validate.CheckJSONUpload(fileName); err != nil {
		return nil, err
	}
	src, err := importer.Import(data, fileName)
	if err != nil {
		return nil, err
	}
	c.registry.Add(src)
	return src, nil
}

// Sources lists the registry in insertion order.
func (c *Controller) Sources() []*models.DataSource {
	return c.registry.Snapshot()
}

// Source returns one source.
func (c *Controller) Source(id string) (*models.DataSource, bool) {
	return c.registry.Get(id)
}

// Select makes id active; unknown ids are ignored.
func (c *Controller) Select(id string) bool {
	return c.registry.Select(id)
}

// Remove deletes a source.
func (c *Controller) Remove(id string) bool {
	return c.registry.Remove(id)
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// SnapshotsEnabled reports whether a database is configured.
func (c *Controller) SnapshotsEnabled() bool {
	return c.snapshots != nil
}

// SaveSnapshot persists the registry under name.
func (c *Controller) SaveSnapshot(ctx context.Context, name string) error {
	if c.snapshots == nil {
		return ErrNoSnapshots
	}
	return c.snapshots.Save(ctx, name, c.registry.Snapshot(), c.registry.ActiveID())
}

// LoadSnapshot replaces the registry with the snapshot called name. The chat
// log is cleared since it refers to the previous sources.
func (c *Controller) LoadSnapshot(ctx context.Context, name string) (*store.Snapshot, error) {
	if c.snapshots == nil {
		return nil, ErrNoSnapshots
	}
	snap, err := c.snapshots.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	c.registry.Replace(snap.Sources, snap.ActiveID)
	c.ClearChat()

	zap.L().Info("session snapshot loaded", zap.String("session", name), zap.Int("sources", len(snap.Sources)))
	return snap, nil
}
