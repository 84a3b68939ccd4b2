// Package extension implements the pm extension mechanism: long-lived
// capabilities (cluster submission, status database connectivity, QC
// collection) that controllers share. Extensions are registered explicitly by
// name at startup and initialized together during application setup.
package extension

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pm/config"
)

// Extension is a named capability initialized at setup and torn down at close.
type Extension interface {
	Name() string
	Setup(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error
	Close(ctx context.Context) error
}

// Registry holds the extensions registered for this process. Registration
// order is preserved: Setup runs in order, Close in reverse.
type Registry struct {
	byName map[string]Extension
	order  []Extension
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Extension)}
}

// Register adds an extension. A second registration under the same name is
// an error, never a silent replacement.
func (r *Registry) Register(ext Extension) error {
	name := ext.Name()
	if name == "" {
		return fmt.Errorf("extension has no name")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("extension %q is already registered", name)
	}
	r.byName[name] = ext
	r.order = append(r.order, ext)
	return nil
}

// Get looks up a registered extension by name.
func (r *Registry) Get(name string) (Extension, bool) {
	ext, ok := r.byName[name]
	return ext, ok
}

// Names returns the registered extension names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.order))
	for _, ext := range r.order {
		names = append(names, ext.Name())
	}
	return names
}

// Setup initializes every registered extension in registration order. The
// first failure aborts and is returned.
func (r *Registry) Setup(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	for _, ext := range r.order {
		if err := ext.Setup(ctx, cfg, logger); err != nil {
			return fmt.Errorf("setting up extension %q: %w", ext.Name(), err)
		}
	}
	return nil
}

// Close tears down extensions in reverse registration order. All extensions
// are closed even when some fail; the first error is returned.
func (r *Registry) Close(ctx context.Context) error {
	var firstErr error
	for i := len(r.order) - 1; i >= 0; i-- {
		if err := r.order[i].Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing extension %q: %w", r.order[i].Name(), err)
		}
	}
	return firstErr
}
