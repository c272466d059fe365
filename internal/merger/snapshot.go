package merger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"edgecored/internal/configresolver"
	"edgecored/internal/jsonvalue"
	"edgecored/internal/model"
)

// Snapshot is spec.md §4.4 phase 2's rollback record: the configuration
// tree and running-version manifest immediately before a merge began.
// GroupToRoots is persisted and loaded with the rest, but Merge does not
// fill it, so the snapshots Merge takes carry an empty group-to-roots map.
type Snapshot struct {
	Config          configresolver.ResolvedConfig
	GroupToRoots    model.GroupToRootComponents
	RunningVersions map[string]string // component name -> version string
}

// SnapshotStore persists and retrieves a deployment's rollback Snapshot.
// Implemented by FileSnapshotStore below; kept as its own interface so the
// merger never depends on the deployment directory's on-disk layout.
type SnapshotStore interface {
	SaveSnapshot(deploymentID string, snap Snapshot) error
	LoadSnapshot(deploymentID string) (Snapshot, error)
	DeleteSnapshot(deploymentID string) error
}

// FileSnapshotStore is the straightforward filesystem-backed SnapshotStore:
// one JSON file per deployment under <dir>/<deploymentID>/snapshot.json,
// grounded on the teacher's temp+rename write pattern used throughout
// internal/store and internal/config for transactional writes.
type FileSnapshotStore struct {
	Dir string
}

func (f *FileSnapshotStore) path(deploymentID string) string {
	return filepath.Join(f.Dir, deploymentID, "snapshot.json")
}

func (f *FileSnapshotStore) SaveSnapshot(deploymentID string, snap Snapshot) error {
	path := f.path(deploymentID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("snapshot mkdir: %w", err)
	}
	data, err := json.Marshal(snapshotWire{
		GroupToRoots:    snap.GroupToRoots,
		RunningVersions: snap.RunningVersions,
		Components:      marshalConfig(snap.Config),
	})
	if err != nil {
		return fmt.Errorf("snapshot marshal: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("snapshot write: %w", err)
	}
	return os.Rename(tmp, path)
}

func (f *FileSnapshotStore) LoadSnapshot(deploymentID string) (Snapshot, error) {
	data, err := os.ReadFile(f.path(deploymentID))
	if err != nil {
		return Snapshot{}, err
	}
	var wire snapshotWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot unmarshal: %w", err)
	}
	return Snapshot{
		GroupToRoots:    wire.GroupToRoots,
		RunningVersions: wire.RunningVersions,
		Config:          unmarshalConfig(wire.Components),
	}, nil
}

func (f *FileSnapshotStore) DeleteSnapshot(deploymentID string) error {
	err := os.RemoveAll(filepath.Join(f.Dir, deploymentID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// snapshotWire is the JSON-serializable projection of Snapshot: lifecycle
// scripts and dependency kinds round-trip directly, but the configuration
// tree goes through jsonvalue's own ToJSON/FromJSON boundary rather than
// struct tags, since *jsonvalue.Value has no exported fields.
type snapshotWire struct {
	GroupToRoots    model.GroupToRootComponents `json:"groupToRoots"`
	RunningVersions map[string]string           `json:"runningVersions"`
	Components      map[string]componentWire    `json:"components"`
}

type componentWire struct {
	Name          string                                             `json:"name"`
	Version       string                                             `json:"version"`
	PrevVersion   string                                             `json:"prevVersion"`
	ComponentType model.ComponentType                                `json:"componentType"`
	Dependencies  map[string]model.DependencyKind                    `json:"dependencies"`
	Configuration json.RawMessage                                    `json:"configuration"`
	Lifecycle     map[model.LifecycleStageName]model.LifecycleStage  `json:"lifecycle"`
}

func marshalConfig(cfg configresolver.ResolvedConfig) map[string]componentWire {
	out := make(map[string]componentWire, len(cfg))
	for name, comp := range cfg {
		var raw json.RawMessage
		if comp.Configuration != nil {
			if data, err := comp.Configuration.ToJSON(); err == nil {
				raw = data
			}
		}
		out[name] = componentWire{
			Name:          comp.Name,
			Version:       comp.Version,
			PrevVersion:   comp.PrevVersion,
			ComponentType: comp.ComponentType,
			Dependencies:  comp.Dependencies,
			Configuration: raw,
			Lifecycle:     comp.Lifecycle,
		}
	}
	return out
}

func unmarshalConfig(wire map[string]componentWire) configresolver.ResolvedConfig {
	out := configresolver.ResolvedConfig{}
	for name, w := range wire {
		cfgValue := jsonvalue.NewNull()
		if len(w.Configuration) > 0 {
			if v, err := jsonvalue.FromJSON(w.Configuration); err == nil {
				cfgValue = v
			}
		}
		out[name] = &configresolver.ResolvedComponentConfig{
			Name:          w.Name,
			Version:       w.Version,
			PrevVersion:   w.PrevVersion,
			ComponentType: w.ComponentType,
			Dependencies:  w.Dependencies,
			Configuration: cfgValue,
			Lifecycle:     w.Lifecycle,
		}
	}
	return out
}
