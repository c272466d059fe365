package model

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"edgecored/internal/jsonvalue"
)

// recipeDoc mirrors spec.md §6's recipe file schema for YAML/JSON decoding
// before being normalized into a ComponentRecipe.
type recipeDoc struct {
	ComponentName          string `yaml:"ComponentName"`
	ComponentVersion       string `yaml:"ComponentVersion"`
	ComponentType          string `yaml:"ComponentType"`
	ComponentConfiguration struct {
		DefaultConfiguration map[string]interface{} `yaml:"DefaultConfiguration"`
	} `yaml:"ComponentConfiguration"`
	ComponentDependencies map[string]struct {
		VersionRequirement string `yaml:"VersionRequirement"`
		DependencyType     string `yaml:"DependencyType"`
	} `yaml:"ComponentDependencies"`
	Manifests []struct {
		Platform struct {
			OS   string `yaml:"os"`
			Arch string `yaml:"architecture"`
		} `yaml:"Platform"`
		Artifacts []struct {
			URI       string `yaml:"URI"`
			Digest    string `yaml:"Digest"`
			Unarchive string `yaml:"Unarchive"` // "ZIP", "TAR_GZ", "NONE"
		} `yaml:"Artifacts"`
	} `yaml:"Manifests"`
	Lifecycle map[string]interface{} `yaml:"Lifecycle"`
}

// ParseRecipe decodes a recipe file (spec.md §6) from YAML or JSON bytes
// (YAML is a superset, so one decoder handles both) into a ComponentRecipe.
func ParseRecipe(data []byte) (*ComponentRecipe, error) {
	var doc recipeDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse recipe: %w", err)
	}
	id, err := NewComponentIdentifier(doc.ComponentName, doc.ComponentVersion)
	if err != nil {
		return nil, err
	}

	recipe := &ComponentRecipe{
		Identifier:           id,
		Type:                 ComponentType(defaultString(doc.ComponentType, string(ComponentTypeGeneric))),
		DefaultConfiguration: jsonvalue.FromInterface(toInterfaceMap(doc.ComponentConfiguration.DefaultConfiguration)),
		Lifecycle:            map[LifecycleStageName]LifecycleStage{},
	}

	for name, dep := range doc.ComponentDependencies {
		constraint, err := parseConstraint(dep.VersionRequirement)
		if err != nil {
			return nil, fmt.Errorf("dependency %s: %w", name, err)
		}
		kind := DependencyHard
		if dep.DependencyType == string(DependencySoft) {
			kind = DependencySoft
		}
		recipe.Dependencies = append(recipe.Dependencies, DependencyRequirement{
			Name: name, Constraint: constraint, Kind: kind,
		})
	}

	for stage, raw := range doc.Lifecycle {
		recipe.Lifecycle[LifecycleStageName(stage)] = normalizeStage(raw)
	}

	for _, manifest := range doc.Manifests {
		for _, art := range manifest.Artifacts {
			recipe.Artifacts = append(recipe.Artifacts, ArtifactDescriptor{
				URI:             art.URI,
				Digest:          art.Digest,
				Unarchive:       art.Unarchive != "" && art.Unarchive != "NONE",
				UnarchiveFormat: unarchiveFormat(art.Unarchive),
			})
		}
		if recipe.Platform.OS == "" {
			recipe.Platform = PlatformFilter{OS: manifest.Platform.OS, Arch: manifest.Platform.Arch}
		}
	}

	return recipe, nil
}

// unarchiveFormat normalizes a recipe's Unarchive field ("ZIP", "TAR_GZ",
// "NONE") into the lowercase format tag internal/store.unarchive switches
// on.
func unarchiveFormat(raw string) string {
	switch raw {
	case "ZIP":
		return "zip"
	case "TAR_GZ":
		return "tar.gz"
	default:
		return ""
	}
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func toInterfaceMap(m map[string]interface{}) interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

// normalizeStage accepts either a bare string (the script itself) or a map
// with Script/UpdateCheck/SkipIf keys, matching how Greengrass recipes let a
// lifecycle stage be a scalar shorthand or a structured map.
func normalizeStage(raw interface{}) LifecycleStage {
	switch t := raw.(type) {
	case string:
		return LifecycleStage{Script: t}
	case map[string]interface{}:
		stage := LifecycleStage{}
		if s, ok := t["Script"].(string); ok {
			stage.Script = s
		}
		if s, ok := t["SetEnv"].(string); ok && stage.Script == "" {
			stage.Script = s
		}
		if s, ok := t["UpdateCheck"].(map[string]interface{}); ok {
			if script, ok := s["Script"].(string); ok {
				stage.UpdateCheck = script
			}
		}
		if s, ok := t["SkipIf"].(string); ok {
			stage.SkipIf = s
		}
		return stage
	default:
		return LifecycleStage{}
	}
}
