package configresolver

import (
	"regexp"

	"edgecored/internal/jsonvalue"
)

// crossComponentRegex and sameComponentRegex mirror
// KernelConfigResolver.CROSS_COMPONENT_INTERPOLATION_REGEX and
// SAME_COMPONENT_INTERPOLATION_REGEX in original_source. Per SPEC_FULL.md
// §4's Open Question decision, only the current `configuration` namespace
// path is implemented — the deprecated double-brace `params` namespace
// regexes from the Java source are not ported.
var (
	crossComponentRegex = regexp.MustCompile(`\{([\w.\-]+):([\w.\-]+):([^:}]+)\}`)
	sameComponentRegex  = regexp.MustCompile(`\{([\w.\-]+):([^:}]+)\}`)
)

// interpolate scans s for same-component and cross-component placeholders
// and replaces every one it can resolve. Iteration is non-nested — a
// replacement's own text is never re-scanned, per spec.md §4.3.
func interpolate(s string, current *ResolvedComponentConfig, all ResolvedConfig, paths PathProvider, kernelRootPath string, logf LogFunc) string {
	if s == "" {
		return s
	}

	s = crossComponentRegex.ReplaceAllStringFunc(s, func(match string) string {
		groups := crossComponentRegex.FindStringSubmatch(match)
		targetName, namespace, key := groups[1], groups[2], groups[3]

		if _, isDependency := current.Dependencies[targetName]; !isDependency {
			logIfSet(logf, current.Name, match, "target is not a declared dependency")
			return match
		}
		target, ok := all[targetName]
		if !ok {
			logIfSet(logf, current.Name, match, "target component is not present in the resolved set")
			return match
		}
		value, ok := lookupNamespace(namespace, key, target, paths, kernelRootPath)
		if !ok {
			logIfSet(logf, current.Name, match, "unrecognized namespace or missing value")
			return match
		}
		return value
	})

	s = sameComponentRegex.ReplaceAllStringFunc(s, func(match string) string {
		groups := sameComponentRegex.FindStringSubmatch(match)
		namespace, key := groups[1], groups[2]

		value, ok := lookupNamespace(namespace, key, current, paths, kernelRootPath)
		if !ok {
			logIfSet(logf, current.Name, match, "unrecognized namespace or missing value")
			return match
		}
		return value
	})

	return s
}

func logIfSet(logf LogFunc, component, placeholder, reason string) {
	if logf != nil {
		logf(component, placeholder, reason)
	}
}

// lookupNamespace implements spec.md §4.3's recognized-namespaces table.
func lookupNamespace(namespace, key string, comp *ResolvedComponentConfig, paths PathProvider, kernelRootPath string) (string, bool) {
	switch namespace {
	case "configuration":
		v, ok := jsonvalue.Get(comp.Configuration, jsonvalue.ParsePointer(key))
		if !ok {
			return "", false
		}
		return valueToText(v)
	case "artifacts":
		if paths == nil {
			return "", false
		}
		artifactsPath, decompressedPath := paths(comp.Name, comp.Version)
		switch key {
		case "path":
			return artifactsPath, true
		case "decompressedPath":
			return decompressedPath, true
		default:
			return "", false
		}
	case "kernel":
		if key == "rootPath" {
			return kernelRootPath, true
		}
		return "", false
	default:
		return "", false
	}
}
