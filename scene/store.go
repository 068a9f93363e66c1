package scene

import (
	"encoding/json"
	"fmt"
)

// Store is the collaborator contract recon.Optimize's callers use to
// persist and duplicate a Project; the core never implements more than
// one Store itself and never assumes a particular backing medium -- a
// host may swap in a database-backed Store without recon or candidate
// or outlier changing at all.
type Store interface {
	Load(data []byte) (*Project, error)
	Save(project *Project) ([]byte, error)
	Clone(project *Project) *Project
}

// JSONStore is the reference Store implementation: it serializes a
// Project using the same MarshalJSON/UnmarshalJSON pair (and constraint
// registry) the Project type already exposes, and clones via Snapshot
// rather than a JSON round-trip, since Snapshot already performs a full
// deep copy without the allocation and registry-lookup cost of encoding.
type JSONStore struct{}

// Load decodes data into a new Project.
func (JSONStore) Load(data []byte) (*Project, error) {
	project := NewProject()
	if err := json.Unmarshal(data, project); err != nil {
		return nil, fmt.Errorf("scene: JSONStore.Load: %w", err)
	}
	return project, nil
}

// Save encodes project to its JSON wire form.
func (JSONStore) Save(project *Project) ([]byte, error) {
	data, err := json.Marshal(project)
	if err != nil {
		return nil, fmt.Errorf("scene: JSONStore.Save: %w", err)
	}
	return data, nil
}

// Clone returns an independent deep copy of project.
func (JSONStore) Clone(project *Project) *Project {
	return project.Snapshot()
}
