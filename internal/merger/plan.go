package merger

import (
	"sort"

	"edgecored/internal/configresolver"
	"edgecored/internal/jsonvalue"
	"edgecored/internal/model"
)

// Plan is spec.md §4.4 phase 1's diff of the current and target
// configuration trees: which components are added, removed, updated, or
// unchanged, and which updates require a supervisor bootstrap.
type Plan struct {
	Added     []string
	Removed   []string
	Updated   []string
	Unchanged []string
	// BootstrapRequired holds the names (a subset of Updated) whose
	// transition is bootstrap-requiring per spec.md §4.4.1.
	BootstrapRequired map[string]bool
}

// ComputePlan diffs current against target, skipping the synthetic "main"
// entry — it is never itself started, stopped, or bootstrapped.
func ComputePlan(current, target configresolver.ResolvedConfig) *Plan {
	plan := &Plan{BootstrapRequired: map[string]bool{}}

	for name, t := range target {
		if name == "main" {
			continue
		}
		c, existed := current[name]
		switch {
		case !existed:
			plan.Added = append(plan.Added, name)
		case componentChanged(c, t):
			plan.Updated = append(plan.Updated, name)
			if isBootstrapRequiring(c, t) {
				plan.BootstrapRequired[name] = true
			}
		default:
			plan.Unchanged = append(plan.Unchanged, name)
		}
	}
	for name := range current {
		if name == "main" {
			continue
		}
		if _, stillPresent := target[name]; !stillPresent {
			plan.Removed = append(plan.Removed, name)
		}
	}

	sort.Strings(plan.Added)
	sort.Strings(plan.Removed)
	sort.Strings(plan.Updated)
	sort.Strings(plan.Unchanged)
	return plan
}

func componentChanged(c, t *configresolver.ResolvedComponentConfig) bool {
	if c.Version != t.Version {
		return true
	}
	if !jsonvalue.Equal(c.Configuration, t.Configuration) {
		return true
	}
	return lifecycleChanged(c.Lifecycle, t.Lifecycle)
}

func lifecycleChanged(a, b map[model.LifecycleStageName]model.LifecycleStage) bool {
	if len(a) != len(b) {
		return true
	}
	for stage, av := range a {
		bv, ok := b[stage]
		if !ok || av != bv {
			return true
		}
	}
	return false
}

// isBootstrapRequiring is spec.md §4.4.1: the new recipe declares a
// bootstrap stage AND (the version changed OR the bootstrap stage text
// changed).
func isBootstrapRequiring(c, t *configresolver.ResolvedComponentConfig) bool {
	targetBootstrap, hasBootstrap := t.Lifecycle[model.StageBootstrap]
	if !hasBootstrap || targetBootstrap.Script == "" {
		return false
	}
	if c.Version != t.Version {
		return true
	}
	currentBootstrap := c.Lifecycle[model.StageBootstrap]
	return currentBootstrap.Script != targetBootstrap.Script
}

// topoOrder returns names in forward dependency order (a dependency always
// precedes its dependents) restricted to the given set, via DFS postorder
// over cfg's declared Dependencies. Names outside the resolved config (e.g.
// a dependency that is not itself being started/stopped this deployment)
// are ignored.
func topoOrder(cfg configresolver.ResolvedConfig, names []string) []string {
	visited := map[string]bool{}
	var order []string

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		comp, ok := cfg[name]
		if ok {
			depNames := make([]string, 0, len(comp.Dependencies))
			for dep := range comp.Dependencies {
				depNames = append(depNames, dep)
			}
			sort.Strings(depNames)
			for _, dep := range depNames {
				if dep == "main" {
					continue
				}
				visit(dep)
			}
		}
		order = append(order, name)
	}

	sorted := append([]string{}, names...)
	sort.Strings(sorted)
	for _, name := range sorted {
		visit(name)
	}

	wanted := map[string]bool{}
	for _, n := range names {
		wanted[n] = true
	}
	out := make([]string, 0, len(names))
	for _, n := range order {
		if wanted[n] {
			out = append(out, n)
		}
	}
	return out
}

// reverseOf returns names in the reverse of their forward topological
// order — the order spec.md §5 requires for stopping services.
func reverseOf(order []string) []string {
	out := make([]string, len(order))
	for i, n := range order {
		out[len(order)-1-i] = n
	}
	return out
}
