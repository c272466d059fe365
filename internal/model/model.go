// Package model holds the data model shared by every stage of the
// deployment pipeline (spec.md §3): component identity, recipes, artifacts,
// deployment documents, and the service lifecycle state machine. It
// mirrors the shape of the teacher's internal/models package but is built
// fresh for this domain — the teacher's models describe a component/process
// manager's own bookkeeping, not a dependency-resolved deployment pipeline.
package model

import (
	"fmt"

	"github.com/hashicorp/go-version"

	"edgecored/internal/jsonvalue"
)

// ComponentIdentifier is the (name, version) tuple spec.md §3 defines as
// immutable and compared by value.
type ComponentIdentifier struct {
	Name    string
	Version *version.Version
}

func NewComponentIdentifier(name, ver string) (ComponentIdentifier, error) {
	if name == "" {
		return ComponentIdentifier{}, fmt.Errorf("component name must not be empty")
	}
	v, err := version.NewVersion(ver)
	if err != nil {
		return ComponentIdentifier{}, fmt.Errorf("invalid version %q for %s: %w", ver, name, err)
	}
	return ComponentIdentifier{Name: name, Version: v}, nil
}

func (id ComponentIdentifier) Equal(other ComponentIdentifier) bool {
	return id.Name == other.Name && id.Version.Equal(other.Version)
}

func (id ComponentIdentifier) String() string {
	return fmt.Sprintf("%s-%s", id.Name, id.Version.Original())
}

// ComponentType mirrors spec.md §3's ComponentType enum.
type ComponentType string

const (
	ComponentTypeGeneric ComponentType = "GENERIC"
	ComponentTypeNucleus ComponentType = "NUCLEUS"
	ComponentTypePlugin  ComponentType = "PLUGIN"
)

// DependencyKind mirrors spec.md §3's dependency kind.
type DependencyKind string

const (
	DependencyHard DependencyKind = "HARD"
	DependencySoft DependencyKind = "SOFT"
)

// DependencyRequirement names a version constraint and kind on a named
// dependency, as carried in a ComponentRecipe.
type DependencyRequirement struct {
	Name       string
	Constraint version.Constraints
	Kind       DependencyKind
}

// LifecycleStageName enumerates the recipe lifecycle namespace's ordered
// stages (spec.md §3).
type LifecycleStageName string

const (
	StageInstall  LifecycleStageName = "install"
	StageStartup  LifecycleStageName = "startup"
	StageRun      LifecycleStageName = "run"
	StageShutdown LifecycleStageName = "shutdown"
	StageBootstrap LifecycleStageName = "bootstrap"
	StageRecover  LifecycleStageName = "recover"
)

// LifecycleStage is one stage's command line plus its optional update-check
// and skipIf predicates (spec.md §4.4.1/§4.4.3 and §6 recipe schema).
type LifecycleStage struct {
	Script       string // command line, may contain interpolation placeholders
	UpdateCheck  string // command that votes on PreComponentUpdate, empty if none
	SkipIf       string // predicate; a non-empty, successfully-evaluated skipIf skips this stage
}

// ArtifactDescriptor is a declared artifact on a recipe manifest (spec.md §3).
type ArtifactDescriptor struct {
	URI             string
	Digest          string // expected content digest, algorithm-prefixed e.g. "sha256:..."
	Unarchive       bool
	UnarchiveFormat string // "zip", "tar.gz", ... when Unarchive is true
}

// PlatformFilter restricts a recipe or manifest to a set of OS/architectures.
// Empty values mean "any".
type PlatformFilter struct {
	OS   string
	Arch string
}

// ComponentRecipe is the declarative description of a component (spec.md §3).
type ComponentRecipe struct {
	Identifier           ComponentIdentifier
	Type                 ComponentType
	Platform             PlatformFilter
	DefaultConfiguration *jsonvalue.Value
	Dependencies         []DependencyRequirement
	Lifecycle            map[LifecycleStageName]LifecycleStage
	Artifacts            []ArtifactDescriptor
}

func (r *ComponentRecipe) Dependency(name string) (DependencyRequirement, bool) {
	for _, d := range r.Dependencies {
		if d.Name == name {
			return d, true
		}
	}
	return DependencyRequirement{}, false
}

// ServiceState is spec.md §3's service lifecycle state machine.
type ServiceState string

const (
	StateNew      ServiceState = "NEW"
	StateInstalled ServiceState = "INSTALLED"
	StateStarting ServiceState = "STARTING"
	StateRunning  ServiceState = "RUNNING"
	StateStopping ServiceState = "STOPPING"
	StateFinished ServiceState = "FINISHED"
	StateErrored  ServiceState = "ERRORED"
	StateBroken   ServiceState = "BROKEN"
)

// IsSuccess reports whether s is one of the two states spec.md §3 counts as
// success for deployment evaluation.
func (s ServiceState) IsSuccess() bool {
	return s == StateRunning || s == StateFinished
}

// IsTerminal reports whether s is a sink state — BROKEN is the only sink
// reachable from anywhere; FINISHED ends a one-shot service normally.
func (s ServiceState) IsTerminal() bool {
	return s == StateBroken || s == StateFinished
}

// DeploymentStage is spec.md §3's deployment lifecycle state machine,
// spanning a possible supervisor restart for bootstrap-requiring updates.
type DeploymentStage string

const (
	StageDefault          DeploymentStage = "DEFAULT"
	StageBootstrapPhase   DeploymentStage = "BOOTSTRAP"
	StageKernelActivation DeploymentStage = "KERNEL_ACTIVATION"
	StageKernelRollback   DeploymentStage = "KERNEL_ROLLBACK"
)

// FailureHandlingPolicy is spec.md §3's per-document failure policy.
type FailureHandlingPolicy string

const (
	PolicyDoNothing FailureHandlingPolicy = "DO_NOTHING"
	PolicyRollback  FailureHandlingPolicy = "ROLLBACK"
)

// DeploymentStatus is the result status vocabulary from spec.md §4.5/§8.
type DeploymentStatus string

const (
	StatusSuccessful              DeploymentStatus = "SUCCESSFUL"
	StatusFailedNoStateChange     DeploymentStatus = "FAILED_NO_STATE_CHANGE"
	StatusFailedRollbackNotReq    DeploymentStatus = "FAILED_ROLLBACK_NOT_REQUESTED"
	StatusFailedRollbackComplete  DeploymentStatus = "FAILED_ROLLBACK_COMPLETE"
	StatusFailedUnableToRollback  DeploymentStatus = "FAILED_UNABLE_TO_ROLLBACK"
	StatusQueued                 DeploymentStatus = "QUEUED"
	StatusInProgress              DeploymentStatus = "IN_PROGRESS"
)

// ConfigurationUpdate is a single component's configurationUpdate entry in
// a deployment document (spec.md §3 and §6).
type ConfigurationUpdate struct {
	Reset []string         // JSON pointers to reset before merge
	Merge *jsonvalue.Value // tree to deep-merge after reset
}

// RootComponentRequirement is one entry of a DeploymentDocument's
// rootComponents map.
type RootComponentRequirement struct {
	Name       string
	Constraint string // raw version constraint string as received
}

// ComponentUpdatePolicy is spec.md §3's componentUpdatePolicy.
type ComponentUpdatePolicy struct {
	TimeoutSeconds       int
	SkipNotifyComponents []string
}

func (p ComponentUpdatePolicy) Skips(name string) bool {
	for _, n := range p.SkipNotifyComponents {
		if n == name {
			return true
		}
	}
	return false
}

// DeploymentDocument is spec.md §3's deployment request.
type DeploymentDocument struct {
	GroupName             string
	Timestamp             int64
	RootComponents        []RootComponentRequirement
	ConfigurationUpdates   map[string]ConfigurationUpdate
	FailureHandlingPolicy FailureHandlingPolicy
	ComponentUpdatePolicy ComponentUpdatePolicy
	DeploymentID          string // absent from spec.md's wire schema; assigned by internal/deployment
}

// GroupToRootComponents is the persisted groupName -> {componentName ->
// version} mapping from spec.md §3. The union across groups is the
// device-wide root set dependencies are closed under.
type GroupToRootComponents map[string]map[string]string

// Clone deep-copies the map so callers can mutate a snapshot safely.
func (g GroupToRootComponents) Clone() GroupToRootComponents {
	out := make(GroupToRootComponents, len(g))
	for group, roots := range g {
		rc := make(map[string]string, len(roots))
		for k, v := range roots {
			rc[k] = v
		}
		out[group] = rc
	}
	return out
}

// UnionRoots computes the device-wide root set: name -> chosen version
// string, across every group. Ties across groups on the same name are the
// Dependency Resolver's job to reconcile (§4.1), not this map's.
func (g GroupToRootComponents) UnionRoots() map[string][]string {
	out := map[string][]string{}
	for _, roots := range g {
		for name, ver := range roots {
			out[name] = append(out[name], ver)
		}
	}
	return out
}

// Context is the one owned supervisor-state struct SPEC_FULL.md §9 calls
// for: builtin auto-start dependencies and the device's group membership
// are registered here at construction, not discovered reflectively, and
// every subsystem receives what it needs as an explicit constructor
// parameter.
type Context struct {
	RootDir                     string
	DeviceGroups                []string
	BuiltinAutoStartDependencies []string
}
