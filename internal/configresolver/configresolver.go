// Package configresolver implements the Configuration Resolver (spec.md
// §4.3): per-component merged configuration plus namespace-scoped string
// interpolation over same-component and cross-component values with
// dependency-scoped visibility. Grounded directly on
// original_source/.../KernelConfigResolver.java's resolve/getServiceConfig/
// interpolate/replace/getMainConfig methods — the single richest grounding
// source in the retrieval pack for this package.
package configresolver

import (
	"fmt"

	"edgecored/internal/jsonvalue"
	"edgecored/internal/model"
)

// ResolvedComponentConfig is spec.md §4.3's per-component output tree:
// {lifecycle, dependencies, version, configuration, parameters}. The
// deprecated `parameters` field from the Java source is intentionally
// absent — see SPEC_FULL.md §4 and DESIGN.md for the Open Question
// decision to implement only the `configuration` namespace path.
type ResolvedComponentConfig struct {
	Name          string
	Version       string
	PrevVersion   string // copied from Input.PrevVersions; empty when the caller supplies none
	ComponentType model.ComponentType
	Dependencies  map[string]model.DependencyKind
	Configuration *jsonvalue.Value
	Lifecycle     map[model.LifecycleStageName]model.LifecycleStage // interpolated
}

// ResolvedConfig is spec.md §4.3's output: one entry per component plus a
// synthetic "main" entry, keyed by component name.
type ResolvedConfig map[string]*ResolvedComponentConfig

// PathProvider resolves a component-version's artifact paths for the
// `artifacts` interpolation namespace (spec.md §4.3's recognized
// namespaces table). Backed by internal/store.Store.ArtifactsDir /
// DecompressedDir in production.
type PathProvider func(name, version string) (artifactsPath, decompressedPath string)

// LogFunc receives a human-readable note for every interpolation that was
// left in place (unrecognized namespace, missing value, non-dependency
// cross-component reference), mirroring KernelConfigResolver's
// LOGGER.atError() calls.
type LogFunc func(componentName, placeholder, reason string)

type Input struct {
	// Assignment is the Dependency Resolver's output: name -> recipe.
	Assignment map[string]*model.ComponentRecipe
	// RootComponentNames is the deployment document's root set.
	RootComponentNames []string
	// BuiltinAutoStartDependencies are the supervisor's own always-on
	// services, unioned into the synthetic main entry's dependency list
	// per SPEC_FULL.md §4 / original_source's getMainConfig.
	BuiltinAutoStartDependencies []string
	// ConfigurationUpdates is the deployment document's per-component
	// reset/merge instructions (spec.md §3/§6), root-only.
	ConfigurationUpdates map[string]model.ConfigurationUpdate
	// PersistedConfiguration is each component's currently-running
	// configuration tree, if any.
	PersistedConfiguration map[string]*jsonvalue.Value
	// PrevVersions carries a prior in-progress bootstrap deployment's
	// version rotation (original_source's handleComponentVersionConfigs).
	PrevVersions map[string]string
	Paths        PathProvider
	KernelRootPath string
	Log          LogFunc
}

// Resolve computes the full ResolvedConfig for a deployment, per spec.md
// §4.3.
func Resolve(in Input) (ResolvedConfig, error) {
	out := ResolvedConfig{}

	for name, recipe := range in.Assignment {
		update := in.ConfigurationUpdates[name]
		persisted := in.PersistedConfiguration[name]

		var resetLog jsonvalue.ResetLog
		if in.Log != nil {
			resetLog = func(pointer, reason string) {
				in.Log(name, "RESET "+pointer, reason)
			}
		}
		configuration := jsonvalue.ResolveConfiguration(persisted, recipe.DefaultConfiguration, update.Reset, update.Merge, resetLog)

		deps := map[string]model.DependencyKind{}
		for _, d := range recipe.Dependencies {
			deps[d.Name] = d.Kind
		}

		out[name] = &ResolvedComponentConfig{
			Name:          name,
			Version:       recipe.Identifier.Version.Original(),
			PrevVersion:   in.PrevVersions[name],
			ComponentType: recipe.Type,
			Dependencies:  deps,
			Configuration: configuration,
			Lifecycle:     cloneLifecycle(recipe.Lifecycle),
		}
	}

	out["main"] = buildMainEntry(in.RootComponentNames, in.BuiltinAutoStartDependencies)

	for name, comp := range out {
		if name == "main" {
			continue
		}
		for stageName, stage := range comp.Lifecycle {
			comp.Lifecycle[stageName] = model.LifecycleStage{
				Script:      interpolate(stage.Script, comp, out, in.Paths, in.KernelRootPath, in.Log),
				UpdateCheck: interpolate(stage.UpdateCheck, comp, out, in.Paths, in.KernelRootPath, in.Log),
				SkipIf:      interpolate(stage.SkipIf, comp, out, in.Paths, in.KernelRootPath, in.Log),
			}
		}
	}

	return out, nil
}

func cloneLifecycle(in map[model.LifecycleStageName]model.LifecycleStage) map[model.LifecycleStageName]model.LifecycleStage {
	out := make(map[model.LifecycleStageName]model.LifecycleStage, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// buildMainEntry is original_source's getMainConfig: the synthetic main
// component's dependency list is the union of rootComponents and the
// kernel's built-in auto-start dependencies.
func buildMainEntry(roots, builtins []string) *ResolvedComponentConfig {
	deps := map[string]model.DependencyKind{}
	for _, r := range roots {
		deps[r] = model.DependencyHard
	}
	for _, b := range builtins {
		if _, ok := deps[b]; !ok {
			deps[b] = model.DependencyHard
		}
	}
	return &ResolvedComponentConfig{
		Name:         "main",
		Dependencies: deps,
	}
}

// valueToText implements spec.md §4.3's `configuration` namespace value
// rule: a scalar becomes its text form, a container is JSON-serialized.
func valueToText(v *jsonvalue.Value) (string, bool) {
	if v == nil || v.IsNull() {
		return "", false
	}
	if s, ok := v.StringValue(); ok {
		return s, true
	}
	if b, ok := v.BoolValue(); ok {
		return fmt.Sprintf("%v", b), true
	}
	if n, ok := v.NumberValue(); ok {
		return fmt.Sprintf("%v", n), true
	}
	data, err := v.ToJSON()
	if err != nil {
		return "", false
	}
	return string(data), true
}
