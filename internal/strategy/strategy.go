// Package strategy defines the Strategy interface for signal-generating
// trading strategies and provides a Registry for managing implementations.
package strategy

import (
	"context"
	"sort"

	"tradesim/internal/domain"
)

// Strategy generates trading signals from historical price data. Strategies
// are pure signal producers; sizing against cash and portfolio constraints
// happens later in the execution engine.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Generate scans the price series and returns the signals the strategy
	// would have emitted, in date order. params carries strategy-specific
	// tuning values; unknown keys are ignored and missing keys fall back to
	// the strategy's defaults.
	Generate(ctx context.Context, series *domain.PriceSeries, params map[string]float64) ([]domain.Signal, error)
}

// Registry holds a named collection of strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry, keyed by its Name().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
