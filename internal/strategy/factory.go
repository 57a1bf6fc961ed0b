package strategy

import (
	"errors"
	"fmt"
	"sort"

	"solana-dex-bot/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategyType         = errors.New("unknown strategy type")
	ErrDuplicateType               = errors.New("strategy type already registered")
	ErrDuplicateName               = errors.New("duplicate strategy name")
	ErrInvalidParams               = errors.New("invalid strategy parameters")
	ErrMissingConsecutiveBuyParams = errors.New("consecutive_buy requires consecutive_buy params")
	ErrMissingMomentumParams       = errors.New("momentum requires momentum params")
)

// Constructor builds a strategy instance from its configuration.
type Constructor func(cfg domain.StrategyConfig, env Env) (Strategy, error)

// Registry maps strategy type names to constructors.
type Registry struct {
	ctors map[string]Constructor
}

// NewRegistry returns a registry with the built-in strategy types.
func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[string]Constructor)}
	_ = r.Register(domain.StrategyTypeConsecutiveBuy, func(cfg domain.StrategyConfig, env Env) (Strategy, error) {
		return NewConsecutiveBuyStrategy(cfg, env)
	})
	_ = r.Register(domain.StrategyTypeMomentum, func(cfg domain.StrategyConfig, env Env) (Strategy, error) {
		return NewMomentumStrategy(cfg, env)
	})
	return r
}

// Register adds a constructor for typ.
func (r *Registry) Register(typ string, ctor Constructor) error {
	if _, ok := r.ctors[typ]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateType, typ)
	}
	r.ctors[typ] = ctor
	return nil
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.ctors))
	for typ := range r.ctors {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// Known reports whether typ is registered.
func (r *Registry) Known(typ string) bool {
	_, ok := r.ctors[typ]
	return ok
}

// FromConfig creates a Strategy from domain.StrategyConfig.
// An empty Type falls back to the instance name.
func (r *Registry) FromConfig(cfg domain.StrategyConfig, env Env) (Strategy, error) {
	typ := cfg.Type
	if typ == "" {
		typ = cfg.Name
	}
	ctor, ok := r.ctors[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategyType, typ)
	}
	s, err := ctor(cfg, env)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", cfg.Name, err)
	}
	return s, nil
}

// Build creates every enabled strategy, preserving configuration order.
func (r *Registry) Build(cfgs []domain.StrategyConfig, env Env) ([]Strategy, error) {
	seen := make(map[string]struct{}, len(cfgs))
	out := make([]Strategy, 0, len(cfgs))
	for _, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		if _, dup := seen[cfg.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, cfg.Name)
		}
		seen[cfg.Name] = struct{}{}

		s, err := r.FromConfig(cfg, env)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

var defaultRegistry = NewRegistry()

// FromConfig creates a Strategy using the built-in types.
func FromConfig(cfg domain.StrategyConfig, env Env) (Strategy, error) {
	return defaultRegistry.FromConfig(cfg, env)
}

// KnownType reports whether typ is a built-in strategy type.
func KnownType(typ string) bool {
	return defaultRegistry.Known(typ)
}
