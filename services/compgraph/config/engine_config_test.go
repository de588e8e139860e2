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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEngineConfig_LoadsEmbeddedDefaults(t *testing.T) {
	ResetEngineConfig()
	t.Cleanup(ResetEngineConfig)

	cfg, err := GetEngineConfig(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "use", cfg.Parser.HookPrefix)
	assert.Contains(t, cfg.Parser.StateHooks, "useState")
	assert.Contains(t, cfg.Parser.ReducerHooks, "useReducer")
	assert.Contains(t, cfg.Parser.EffectHooks, "useEffect")
	assert.Contains(t, cfg.Parser.ContextHooks, "useContext")
	assert.Contains(t, cfg.Parser.ComponentBases, "React.Component")
	assert.Equal(t, "provider", cfg.Heuristics.ProviderMarker)
	assert.Equal(t, DefaultMaxPropDepth, cfg.Assembly.MaxPropDepth)

	again, err := GetEngineConfig(context.Background())
	require.NoError(t, err)
	assert.Same(t, cfg, again, "second call must return the cached instance")
}

func TestGetEngineConfig_NilContext(t *testing.T) {
	//nolint:staticcheck // exercising the nil guard
	_, err := GetEngineConfig(nil)
	assert.Error(t, err)
}

func TestLoadEngineConfig_EmptyData(t *testing.T) {
	_, err := LoadEngineConfig(context.Background(), nil)
	assert.Error(t, err)
}

func TestLoadEngineConfig_AppliesDefaults(t *testing.T) {
	yamlData := []byte(`
parser:
  state_hooks: [useState]
  context_hooks: [useContext]
  component_bases: [Component]
heuristics:
  provider_marker: provider
  setter_prefix: set
  handler_prefixes: [handle]
  event_attribute_prefix: "on"
`)
	cfg, err := LoadEngineConfig(context.Background(), yamlData)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxFileSize, cfg.Parser.MaxFileSize)
	assert.Equal(t, DefaultMaxWalkDepth, cfg.Parser.MaxWalkDepth)
	assert.Equal(t, DefaultHookPrefix, cfg.Parser.HookPrefix)
	assert.Equal(t, DefaultMaxPropDepth, cfg.Assembly.MaxPropDepth)
}

func TestLoadEngineConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "hook listed twice",
			yaml: `
parser:
  state_hooks: [useState]
  effect_hooks: [useState]
  context_hooks: [useContext]
  component_bases: [Component]
heuristics:
  provider_marker: provider
  setter_prefix: set
  handler_prefixes: [handle]
  event_attribute_prefix: "on"
`,
		},
		{
			name: "hook without prefix",
			yaml: `
parser:
  state_hooks: [createSignal]
  context_hooks: [useContext]
  component_bases: [Component]
heuristics:
  provider_marker: provider
  setter_prefix: set
  handler_prefixes: [handle]
  event_attribute_prefix: "on"
`,
		},
		{
			name: "missing component bases",
			yaml: `
parser:
  state_hooks: [useState]
  context_hooks: [useContext]
heuristics:
  provider_marker: provider
  setter_prefix: set
  handler_prefixes: [handle]
  event_attribute_prefix: "on"
`,
		},
		{
			name: "missing provider marker",
			yaml: `
parser:
  state_hooks: [useState]
  context_hooks: [useContext]
  component_bases: [Component]
heuristics:
  setter_prefix: set
  handler_prefixes: [handle]
  event_attribute_prefix: "on"
`,
		},
		{
			name: "negative workers",
			yaml: `
parser:
  state_hooks: [useState]
  context_hooks: [useContext]
  component_bases: [Component]
heuristics:
  provider_marker: provider
  setter_prefix: set
  handler_prefixes: [handle]
  event_attribute_prefix: "on"
engine:
  workers: -1
`,
		},
		{
			name: "malformed yaml",
			yaml: "parser: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadEngineConfig(context.Background(), []byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadEngineConfigOverlay(t *testing.T) {
	overlay := []byte(`
assembly:
  max_prop_depth: 5
heuristics:
  context_suffixes: [Ctx, Context]
`)
	cfg, err := LoadEngineConfigOverlay(context.Background(), DefaultEngineConfigYAML(), overlay)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Assembly.MaxPropDepth)
	assert.Equal(t, []string{"Ctx", "Context"}, cfg.Heuristics.ContextSuffixes)
	// untouched sections keep their defaults
	assert.Contains(t, cfg.Parser.StateHooks, "useState")
	assert.Equal(t, "provider", cfg.Heuristics.ProviderMarker)
}

func TestLoadEngineConfigOverlay_EmptyOverlay(t *testing.T) {
	cfg, err := LoadEngineConfigOverlay(context.Background(), DefaultEngineConfigYAML(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxPropDepth, cfg.Assembly.MaxPropDepth)
}

func TestLoadEngineConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "compgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  workers: 3\n"), 0o600))

	cfg, err := LoadEngineConfigFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Engine.Workers)

	_, err = LoadEngineConfigFile(context.Background(), filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultEngineConfigYAML_ReturnsCopy(t *testing.T) {
	a := DefaultEngineConfigYAML()
	a[0] = '!'
	b := DefaultEngineConfigYAML()
	assert.NotEqual(t, a[0], b[0])
}
