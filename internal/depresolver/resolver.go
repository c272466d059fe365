// Package depresolver implements the Dependency Resolver (spec.md §4.1):
// given the union of root components across all known groups plus a new
// deployment's roots, produce a concrete, acyclic assignment name ->
// (version, recipe) satisfying every declared version requirement, via
// backtracking over candidates ordered highest-version-first.
package depresolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-version"

	"edgecored/internal/model"
)

// Source supplies the candidate versions and recipes the resolver needs —
// implemented by an adapter over internal/store.Store, kept as its own
// interface here so the resolver doesn't depend on the store's disk
// layout or fetch-coalescing mechanics.
type Source interface {
	// LocalVersions returns every version of name already present in the
	// component store.
	LocalVersions(name string) ([]*version.Version, error)
	// LoadOrFetch returns the recipe for id, fetching through the
	// artifact collaborator on miss (spec.md §4.1 step 2).
	LoadOrFetch(ctx context.Context, id model.ComponentIdentifier) (*model.ComponentRecipe, error)
}

// Requirement is one root (name, constraint) pair.
type Requirement struct {
	Name       string
	Constraint version.Constraints
	// ExactVersion, if non-empty, additionally offers this specific
	// version as a remote candidate even if it is not yet in the local
	// store — the usual case for a deployment document's rootComponents,
	// which name an exact version rather than a range.
	ExactVersion string
}

// UnresolvedError is spec.md §4.1's UNRESOLVED(name, conflicting_requirements) outcome.
type UnresolvedError struct {
	Name         string
	Requirements []string
	Cause        error
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("UNRESOLVED(%s, %v): %v", e.Name, e.Requirements, e.Cause)
}
func (e *UnresolvedError) Unwrap() error { return e.Cause }

type CycleError struct{ Name string }

func (e *CycleError) Error() string { return fmt.Sprintf("dependency cycle detected at %s", e.Name) }

type Resolver struct {
	source Source
	// Running carries the currently-running version per component name,
	// used for tie-break (a): prefer the running version over a newer
	// candidate when both satisfy the active constraints.
	Running map[string]*version.Version
}

func New(source Source, running map[string]*version.Version) *Resolver {
	if running == nil {
		running = map[string]*version.Version{}
	}
	return &Resolver{source: source, Running: running}
}

type resolveState struct {
	constraints map[string][]version.Constraints
	exact       map[string]string
	assigned    map[string]*model.ComponentRecipe
	visiting    map[string]bool
}

func newState() *resolveState {
	return &resolveState{
		constraints: map[string][]version.Constraints{},
		exact:       map[string]string{},
		assigned:    map[string]*model.ComponentRecipe{},
		visiting:    map[string]bool{},
	}
}

func (s *resolveState) addConstraint(name string, c version.Constraints) {
	s.constraints[name] = append(s.constraints[name], c)
}

func (s *resolveState) popConstraint(name string) {
	cs := s.constraints[name]
	if len(cs) > 0 {
		s.constraints[name] = cs[:len(cs)-1]
	}
}

func (s *resolveState) satisfiesAll(name string, v *version.Version) bool {
	for _, c := range s.constraints[name] {
		if !c.Check(v) {
			return false
		}
	}
	return true
}

// Resolve runs the backtracking algorithm over every root requirement and
// returns the full transitive assignment, or an UnresolvedError/CycleError
// on failure. Per spec.md §4.1, resolution failure is terminal for the
// deployment — the live topology is left untouched by the caller.
func (r *Resolver) Resolve(ctx context.Context, roots []Requirement) (map[string]*model.ComponentRecipe, error) {
	state := newState()
	for _, req := range roots {
		state.addConstraint(req.Name, req.Constraint)
		if req.ExactVersion != "" {
			state.exact[req.Name] = req.ExactVersion
		}
	}

	var resolveOne func(name string) error
	resolveOne = func(name string) error {
		if assigned, ok := state.assigned[name]; ok {
			if !state.satisfiesAll(name, assigned.Identifier.Version) {
				return &UnresolvedError{Name: name, Cause: fmt.Errorf("assigned version %s does not satisfy every requirement", assigned.Identifier.Version.Original())}
			}
			return nil
		}
		if state.visiting[name] {
			return &CycleError{Name: name}
		}
		state.visiting[name] = true
		defer delete(state.visiting, name)

		candidates, err := r.candidatesFor(ctx, name, state.exact[name])
		if err != nil {
			return &UnresolvedError{Name: name, Cause: err}
		}

		var lastErr error
		for _, id := range candidates {
			if !state.satisfiesAll(name, id.Version) {
				continue
			}
			recipe, err := r.source.LoadOrFetch(ctx, id)
			if err != nil {
				lastErr = err
				continue
			}
			state.assigned[name] = recipe

			ok := true
			var touched []string
			for _, dep := range recipe.Dependencies {
				state.addConstraint(dep.Name, dep.Constraint)
				touched = append(touched, dep.Name)
				if err := resolveOne(dep.Name); err != nil {
					ok = false
					lastErr = err
					break
				}
			}
			if ok {
				return nil
			}
			delete(state.assigned, name)
			for _, n := range touched {
				state.popConstraint(n)
			}
		}
		return &UnresolvedError{Name: name, Cause: lastErr}
	}

	for _, req := range roots {
		if err := resolveOne(req.Name); err != nil {
			return nil, err
		}
	}
	return state.assigned, nil
}

// candidatesFor returns candidate versions for name ordered per spec.md
// §4.1's tie-break rule: the currently-running version first (if any),
// then strictly-decreasing semver, with exactVersion injected as a remote
// candidate if it isn't already present locally.
func (r *Resolver) candidatesFor(ctx context.Context, name, exactVersion string) ([]model.ComponentIdentifier, error) {
	local, err := r.source.LocalVersions(name)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var all []*version.Version
	for _, v := range local {
		if !seen[v.Original()] {
			seen[v.Original()] = true
			all = append(all, v)
		}
	}
	if exactVersion != "" && !seen[exactVersion] {
		v, err := version.NewVersion(exactVersion)
		if err == nil {
			all = append(all, v)
			seen[exactVersion] = true
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].GreaterThan(all[j]) })

	running := r.Running[name]
	var ordered []*version.Version
	if running != nil && seen[running.Original()] {
		ordered = append(ordered, running)
		for _, v := range all {
			if v.Original() != running.Original() {
				ordered = append(ordered, v)
			}
		}
	} else {
		ordered = all
	}

	out := make([]model.ComponentIdentifier, len(ordered))
	for i, v := range ordered {
		out[i] = model.ComponentIdentifier{Name: name, Version: v}
	}
	return out, nil
}
