package deployment

import (
	"fmt"

	"github.com/google/uuid"

	"edgecored/internal/jsonvalue"
	"edgecored/internal/model"
)

// LocalOverrideRequest is the Local IPC surface's CreateLocalDeployment
// input (spec.md §6), grounded directly on original_source's
// LocalOverrideRequest.java: a one-off deployment request scoped to this
// device, expressed as additions/removals/configuration updates against
// whatever the device is currently running, rather than a full group
// deployment document from the cloud. The Java source's deprecated
// componentNameToConfig field is intentionally absent here — it predates
// the configurationUpdate map and SPEC_FULL.md's Open Question decision
// already excludes that code path's Go analogue (internal/configresolver's
// deprecated params namespace).
type LocalOverrideRequest struct {
	RequestID               string
	RequestTimestamp        int64
	RootComponentVersionsToAdd map[string]string // name -> version
	RootComponentsToRemove  []string
	GroupName               string
	ConfigurationUpdate     map[string]model.ConfigurationUpdate
}

// ToDeploymentDocument converts a LocalOverrideRequest into the
// DeploymentDocument the orchestrator's pipeline actually consumes,
// merging it against the device's current root set for GroupName so that
// "add RedSignal" doesn't silently drop every other already-running root
// in that group.
func (r LocalOverrideRequest) ToDeploymentDocument(currentRoots map[string]string) (*model.DeploymentDocument, error) {
	if r.GroupName == "" {
		return nil, fmt.Errorf("local override request must name a groupName")
	}
	merged := map[string]string{}
	for name, version := range currentRoots {
		merged[name] = version
	}
	for _, name := range r.RootComponentsToRemove {
		delete(merged, name)
	}
	for name, version := range r.RootComponentVersionsToAdd {
		merged[name] = version
	}

	roots := make([]model.RootComponentRequirement, 0, len(merged))
	for name, version := range merged {
		roots = append(roots, model.RootComponentRequirement{Name: name, Constraint: version})
	}

	deploymentID := r.RequestID
	if deploymentID == "" {
		deploymentID = uuid.NewString()
	}

	return &model.DeploymentDocument{
		GroupName:             r.GroupName,
		Timestamp:             r.RequestTimestamp,
		RootComponents:        roots,
		ConfigurationUpdates:  r.ConfigurationUpdate,
		FailureHandlingPolicy: model.PolicyRollback,
		DeploymentID:          deploymentID,
	}, nil
}

// ApplyJSONMerge is a convenience constructor for one component's
// configurationUpdate entry from raw JSON-decoded reset pointers and a
// merge tree, used by the Local IPC handler translating an HTTP request
// body into model.ConfigurationUpdate.
func ApplyJSONMerge(reset []string, merge *jsonvalue.Value) model.ConfigurationUpdate {
	return model.ConfigurationUpdate{Reset: reset, Merge: merge}
}
