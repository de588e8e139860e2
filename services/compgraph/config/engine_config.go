// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Defaults
// =============================================================================

//go:embed engine_defaults.yaml
var defaultEngineConfigYAML []byte

// DefaultEngineConfigYAML returns a copy of the embedded default configuration.
func DefaultEngineConfigYAML() []byte {
	out := make([]byte, len(defaultEngineConfigYAML))
	copy(out, defaultEngineConfigYAML)
	return out
}

var configTracer = otel.Tracer("compgraph.config")

// MaxYAMLFileSize bounds configuration input (1MB).
const MaxYAMLFileSize = 1 << 20

// =============================================================================
// Configuration Types
// =============================================================================

// EngineConfig holds every tunable of the component graph engine.
//
// Description:
//
//	Loaded from YAML. Name tables drive the heuristic matcher, the assembly
//	section bounds depth computations, and the engine section sizes the
//	worker pool and parse cache. Rule formulas are not configurable.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type EngineConfig struct {
	Parser     ParserConfig     `yaml:"parser"`
	Heuristics HeuristicsConfig `yaml:"heuristics"`
	Assembly   AssemblyConfig   `yaml:"assembly"`
	Engine     RunConfig        `yaml:"engine"`
}

// ParserConfig configures component recognition and hook classification.
type ParserConfig struct {
	// MaxFileSize rejects larger files as parse failures.
	MaxFileSize int64 `yaml:"max_file_size" validate:"gt=0"`

	// WarnFileSize logs a warning for files above this size.
	WarnFileSize int64 `yaml:"warn_file_size" validate:"gte=0"`

	// MaxWalkDepth caps recursive syntax tree scans.
	MaxWalkDepth int `yaml:"max_walk_depth" validate:"gt=0"`

	// HookPrefix is the reserved naming prefix of hooks.
	HookPrefix string `yaml:"hook_prefix" validate:"required"`

	StateHooks   []string `yaml:"state_hooks" validate:"min=1,dive,required"`
	ReducerHooks []string `yaml:"reducer_hooks" validate:"dive,required"`
	EffectHooks  []string `yaml:"effect_hooks" validate:"dive,required"`
	ContextHooks []string `yaml:"context_hooks" validate:"min=1,dive,required"`
	OtherHooks   []string `yaml:"other_hooks" validate:"dive,required"`

	// ComponentBases are heritage names that mark a class as a component.
	ComponentBases []string `yaml:"component_bases" validate:"min=1,dive,required"`

	// ClosureWrappers are calls unwrapped when looking for closure components.
	ClosureWrappers []string `yaml:"closure_wrappers" validate:"dive,required"`

	// FunctionComponentTypes are variable annotations whose type argument
	// declares the props of a closure component.
	FunctionComponentTypes []string `yaml:"function_component_types" validate:"dive,required"`
}

// HeuristicsConfig configures the name-matching strategy of the assembler
// and the rules.
type HeuristicsConfig struct {
	ProviderMarker       string   `yaml:"provider_marker" validate:"required"`
	ContextPrefixes      []string `yaml:"context_prefixes" validate:"dive,required"`
	ContextSuffixes      []string `yaml:"context_suffixes" validate:"dive,required"`
	SetterPrefix         string   `yaml:"setter_prefix" validate:"required"`
	HandlerPrefixes      []string `yaml:"handler_prefixes" validate:"min=1,dive,required"`
	EventAttributePrefix string   `yaml:"event_attribute_prefix" validate:"required"`
	RenderPropNames      []string `yaml:"render_prop_names" validate:"dive,required"`
	RenderPropPrefixes   []string `yaml:"render_prop_prefixes" validate:"dive,required"`
	RenderPropTypes      []string `yaml:"render_prop_types" validate:"dive,required"`
	IgnoredAttributes    []string `yaml:"ignored_attributes" validate:"dive,required"`
}

// AssemblyConfig bounds graph computations.
type AssemblyConfig struct {
	// MaxPropDepth caps the longest containment chain computation.
	MaxPropDepth int `yaml:"max_prop_depth" validate:"gt=0,lte=10000"`
}

// RunConfig sizes the engine.
type RunConfig struct {
	// Workers is the parse worker count. 0 means runtime.NumCPU().
	Workers int `yaml:"workers" validate:"gte=0,lte=1024"`

	// CacheSize is the parse cache capacity in files. 0 disables caching.
	CacheSize int `yaml:"cache_size" validate:"gte=0"`
}

// =============================================================================
// Defaults
// =============================================================================

const (
	// DefaultMaxFileSize is the default parse size limit (10MB).
	DefaultMaxFileSize int64 = 10 * 1024 * 1024

	// DefaultMaxWalkDepth is the default recursion cap for tree scans.
	DefaultMaxWalkDepth = 512

	// DefaultMaxPropDepth is the default containment depth cap.
	DefaultMaxPropDepth = 20

	// DefaultHookPrefix is the React hook naming prefix.
	DefaultHookPrefix = "use"
)

// =============================================================================
// Singleton
// =============================================================================

var (
	engineConfigMu      sync.RWMutex
	engineConfigOnce    sync.Once
	cachedEngineConfig  *EngineConfig
	engineConfigLoadErr error

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// GetEngineConfig returns the cached default configuration.
//
// Description:
//
//	Loads the embedded defaults on first call and caches them for later
//	calls. Uses sync.Once for thread-safe initialization.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//
// Outputs:
//
//	*EngineConfig - The loaded configuration. Never nil on success.
//	error - Non-nil if the embedded defaults fail to load.
//
// Thread Safety: Safe for concurrent use via sync.Once.
func GetEngineConfig(ctx context.Context) (*EngineConfig, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetEngineConfig: ctx must not be nil")
	}

	engineConfigMu.RLock()
	if cachedEngineConfig != nil || engineConfigLoadErr != nil {
		cfg, err := cachedEngineConfig, engineConfigLoadErr
		engineConfigMu.RUnlock()
		return cfg, err
	}
	engineConfigMu.RUnlock()

	engineConfigMu.Lock()
	defer engineConfigMu.Unlock()

	engineConfigOnce.Do(func() {
		cachedEngineConfig, engineConfigLoadErr = LoadEngineConfig(ctx, defaultEngineConfigYAML)
	})

	return cachedEngineConfig, engineConfigLoadErr
}

// ResetEngineConfig clears the cached configuration for tests.
func ResetEngineConfig() {
	engineConfigMu.Lock()
	defer engineConfigMu.Unlock()
	cachedEngineConfig = nil
	engineConfigLoadErr = nil
	engineConfigOnce = sync.Once{}
}

// =============================================================================
// Loading
// =============================================================================

// LoadEngineConfig loads and validates an EngineConfig from YAML bytes.
//
// Description:
//
//	Parses the YAML, applies defaults for missing scalar fields, then
//	validates struct tags and cross-field rules (no hook name in two
//	tables, every hook name carries the prefix).
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - Raw YAML bytes to parse.
//
// Outputs:
//
//	*EngineConfig - The validated configuration.
//	error - Non-nil if parsing or validation fails.
func LoadEngineConfig(ctx context.Context, data []byte) (*EngineConfig, error) {
	return loadEngineConfig(ctx, "config.LoadEngineConfig", data)
}

// LoadEngineConfigOverlay applies overlay on top of base.
//
// Description:
//
//	Both documents decode into the same struct. Fields present in overlay
//	replace the base values; lists are replaced wholesale, never merged.
//
// Inputs:
//
//	ctx - Context for tracing.
//	base - Base YAML, usually DefaultEngineConfigYAML().
//	overlay - User YAML. May be empty.
//
// Outputs:
//
//	*EngineConfig - The validated configuration.
//	error - Non-nil if either document fails to parse or the result is invalid.
func LoadEngineConfigOverlay(ctx context.Context, base, overlay []byte) (*EngineConfig, error) {
	if len(overlay) > MaxYAMLFileSize {
		return nil, fmt.Errorf("LoadEngineConfig: overlay exceeds maximum size (%d > %d)", len(overlay), MaxYAMLFileSize)
	}
	cfg, err := decodeEngineConfig(base)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(overlay))) > 0 {
		if err := yaml.Unmarshal(overlay, cfg); err != nil {
			return nil, fmt.Errorf("LoadEngineConfig: parsing overlay YAML: %w", err)
		}
	}
	return finishEngineConfig(ctx, "config.LoadEngineConfigOverlay", cfg)
}

// LoadEngineConfigFile overlays the YAML file at path on the embedded defaults.
func LoadEngineConfigFile(ctx context.Context, path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadEngineConfig: reading %s: %w", path, err)
	}
	return LoadEngineConfigOverlay(ctx, defaultEngineConfigYAML, data)
}

func loadEngineConfig(ctx context.Context, spanName string, data []byte) (*EngineConfig, error) {
	cfg, err := decodeEngineConfig(data)
	if err != nil {
		return nil, err
	}
	return finishEngineConfig(ctx, spanName, cfg)
}

func decodeEngineConfig(data []byte) (*EngineConfig, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("LoadEngineConfig: empty YAML data")
	}
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("LoadEngineConfig: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}
	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("LoadEngineConfig: parsing YAML: %w", err)
	}
	return &cfg, nil
}

func finishEngineConfig(ctx context.Context, spanName string, cfg *EngineConfig) (*EngineConfig, error) {
	_, span := configTracer.Start(ctx, spanName)
	defer span.End()

	applyEngineDefaults(cfg)

	if err := validate.Struct(cfg); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return nil, fmt.Errorf("LoadEngineConfig: validation: %w", err)
	}
	if err := validateHookTables(&cfg.Parser); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return nil, fmt.Errorf("LoadEngineConfig: validation: %w", err)
	}

	span.SetAttributes(
		attribute.Int("component_bases", len(cfg.Parser.ComponentBases)),
		attribute.Int("other_hooks", len(cfg.Parser.OtherHooks)),
		attribute.Int("max_prop_depth", cfg.Assembly.MaxPropDepth),
		attribute.Int("workers", cfg.Engine.Workers),
	)

	slog.Debug("engine config loaded",
		slog.String("hook_prefix", cfg.Parser.HookPrefix),
		slog.Int("max_prop_depth", cfg.Assembly.MaxPropDepth),
		slog.Int("cache_size", cfg.Engine.CacheSize),
	)

	return cfg, nil
}

func applyEngineDefaults(cfg *EngineConfig) {
	if cfg.Parser.MaxFileSize <= 0 {
		cfg.Parser.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Parser.MaxWalkDepth <= 0 {
		cfg.Parser.MaxWalkDepth = DefaultMaxWalkDepth
	}
	if cfg.Parser.HookPrefix == "" {
		cfg.Parser.HookPrefix = DefaultHookPrefix
	}
	if cfg.Assembly.MaxPropDepth <= 0 {
		cfg.Assembly.MaxPropDepth = DefaultMaxPropDepth
	}
}

// validateHookTables rejects names that would make kind lookup ambiguous.
func validateHookTables(p *ParserConfig) error {
	seen := make(map[string]string)
	tables := []struct {
		name  string
		hooks []string
	}{
		{"state_hooks", p.StateHooks},
		{"reducer_hooks", p.ReducerHooks},
		{"effect_hooks", p.EffectHooks},
		{"context_hooks", p.ContextHooks},
		{"other_hooks", p.OtherHooks},
	}
	for _, tbl := range tables {
		for _, h := range tbl.hooks {
			if !strings.HasPrefix(h, p.HookPrefix) {
				return fmt.Errorf("%s: %q does not start with hook prefix %q", tbl.name, h, p.HookPrefix)
			}
			if prev, ok := seen[h]; ok {
				return fmt.Errorf("%s: %q already listed in %s", tbl.name, h, prev)
			}
			seen[h] = tbl.name
		}
	}
	return nil
}
