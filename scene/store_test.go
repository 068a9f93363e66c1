package scene_test

import (
	"testing"

	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
)

func TestJSONStoreRoundTrip(t *testing.T) {
	project := scene.NewProject()
	id := project.AddWorldPoint(scene.NewWorldPoint("corner"))

	var store scene.JSONStore
	data, err := store.Save(project)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	wp, ok := loaded.WorldPoint(id)
	if !ok {
		t.Fatalf("loaded project is missing world point %d", id)
	}
	if wp.Name != "corner" {
		t.Errorf("loaded world point name = %q, want %q", wp.Name, "corner")
	}
}

func TestJSONStoreCloneIsIndependent(t *testing.T) {
	project := scene.NewProject()
	id := project.AddWorldPoint(scene.NewWorldPoint("corner"))

	var store scene.JSONStore
	clone := store.Clone(project)

	wp, _ := clone.WorldPoint(id)
	wp.Name = "renamed"

	original, _ := project.WorldPoint(id)
	if original.Name != "corner" {
		t.Errorf("mutating clone changed original: got %q, want %q", original.Name, "corner")
	}
}
