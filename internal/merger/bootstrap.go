package merger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"edgecored/internal/configresolver"
	"edgecored/internal/model"
)

// BootstrapRecord is the persisted cross-restart state machine spec.md
// §4.4.1/§9 call for: on restart, internal/deployment's orchestrator reads
// this back before accepting new tasks and resumes at the recorded stage.
// Doc and Target carry everything Merger.ResumeKernelActivation needs to
// finish the merge without the orchestrator having to re-resolve or
// re-plan the deployment from scratch.
type BootstrapRecord struct {
	DeploymentID string                `json:"deploymentId"`
	Stage        model.DeploymentStage `json:"stage"`
	// PendingComponents are the bootstrap-requiring component names this
	// deployment was still waiting on when the record was last written.
	PendingComponents []string                     `json:"pendingComponents"`
	Doc               *model.DeploymentDocument     `json:"doc"`
	Target            configresolver.ResolvedConfig `json:"-"`
}

// bootstrapRecordWire is BootstrapRecord's on-disk projection: Target goes
// through the same componentWire/marshalConfig boundary snapshotWire uses,
// since *jsonvalue.Value round-trips through ToJSON/FromJSON rather than
// struct tags.
type bootstrapRecordWire struct {
	DeploymentID      string                      `json:"deploymentId"`
	Stage             model.DeploymentStage       `json:"stage"`
	PendingComponents []string                    `json:"pendingComponents"`
	Doc               *model.DeploymentDocument   `json:"doc"`
	Target            map[string]componentWire    `json:"target"`
}

// BootstrapStore persists and resumes a BootstrapRecord, one per
// in-progress bootstrap-requiring deployment. Grounded on the teacher's
// own temp+rename transactional-write idiom (internal/store.Store.install,
// internal/config's collectConfig), generalized to the deployment
// directory's bootstrap/ subfolder (spec.md §4.6).
type BootstrapStore struct {
	Dir string
}

func (b *BootstrapStore) path(deploymentID string) string {
	return filepath.Join(b.Dir, deploymentID, "bootstrap", "state.json")
}

// Begin persists a new BootstrapRecord in stage BOOTSTRAP.
func (b *BootstrapStore) Begin(deploymentID string, pending []string, doc *model.DeploymentDocument, target configresolver.ResolvedConfig) error {
	return b.save(BootstrapRecord{
		DeploymentID:      deploymentID,
		Stage:             model.StageBootstrapPhase,
		PendingComponents: pending,
		Doc:               doc,
		Target:            target,
	})
}

// Advance moves a persisted record to a new stage, e.g. BOOTSTRAP ->
// KERNEL_ACTIVATION after the supervisor restarts and resumes the
// deployment, or KERNEL_ACTIVATION -> KERNEL_ROLLBACK if the post-restart
// topology doesn't match the target.
func (b *BootstrapStore) Advance(deploymentID string, stage model.DeploymentStage) error {
	rec, err := b.Load(deploymentID)
	if err != nil {
		return err
	}
	rec.Stage = stage
	return b.save(rec)
}

func (b *BootstrapStore) save(rec BootstrapRecord) error {
	path := b.path(rec.DeploymentID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("bootstrap mkdir: %w", err)
	}
	data, err := json.Marshal(bootstrapRecordWire{
		DeploymentID:      rec.DeploymentID,
		Stage:             rec.Stage,
		PendingComponents: rec.PendingComponents,
		Doc:               rec.Doc,
		Target:            marshalConfig(rec.Target),
	})
	if err != nil {
		return fmt.Errorf("bootstrap marshal: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("bootstrap write: %w", err)
	}
	return os.Rename(tmp, path)
}

func (b *BootstrapStore) Load(deploymentID string) (BootstrapRecord, error) {
	data, err := os.ReadFile(b.path(deploymentID))
	if err != nil {
		return BootstrapRecord{}, err
	}
	var wire bootstrapRecordWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return BootstrapRecord{}, fmt.Errorf("bootstrap unmarshal: %w", err)
	}
	return BootstrapRecord{
		DeploymentID:      wire.DeploymentID,
		Stage:             wire.Stage,
		PendingComponents: wire.PendingComponents,
		Doc:               wire.Doc,
		Target:            unmarshalConfig(wire.Target),
	}, nil
}

func (b *BootstrapStore) Clear(deploymentID string) error {
	err := os.RemoveAll(filepath.Join(b.Dir, deploymentID, "bootstrap"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ListPending scans Dir for every deployment with a persisted bootstrap
// record, for the orchestrator's startup resume pass (spec.md §9
// "Bootstrap resumption").
func (b *BootstrapStore) ListPending() ([]BootstrapRecord, error) {
	entries, err := os.ReadDir(b.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []BootstrapRecord
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		rec, err := b.Load(e.Name())
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
