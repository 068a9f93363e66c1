package scene

import (
	"encoding/json"
	"fmt"
	"math"
)

// Project is the full entity graph for one reconstruction: a set of
// WorldPoints, a set of Viewpoints (each owning its own ImagePoints and
// VanishingLines), a set of Lines connecting WorldPoints, and a set of
// Constraints over all of the above. It plays the role phys/scene.go's
// Scene plays for a render: the aggregate Validate()-checked root that
// marshals to JSON with its polymorphic fields intact.
type Project struct {
	worldPoints Arena[*WorldPoint]
	viewpoints  Arena[*Viewpoint]
	lines       Arena[Line]
	constraints Arena[Constraint]
}

// NewProject returns an empty Project.
func NewProject() *Project {
	return &Project{}
}

// AddWorldPoint adds a WorldPoint to the project and returns its ID.
func (p *Project) AddWorldPoint(w *WorldPoint) ID { return p.worldPoints.Add(w) }

// WorldPoint returns the WorldPoint with the given ID.
func (p *Project) WorldPoint(id ID) (*WorldPoint, bool) { return p.worldPoints.Get(id) }

// WorldPoints returns every live WorldPoint with its ID, in insertion
// order.
func (p *Project) WorldPoints() []IDItem[*WorldPoint] { return p.worldPoints.All() }

// AddViewpoint adds a Viewpoint to the project and returns its ID.
func (p *Project) AddViewpoint(v *Viewpoint) ID { return p.viewpoints.Add(v) }

// Viewpoint returns the Viewpoint with the given ID.
func (p *Project) Viewpoint(id ID) (*Viewpoint, bool) { return p.viewpoints.Get(id) }

// Viewpoints returns every live Viewpoint with its ID, in insertion
// order.
func (p *Project) Viewpoints() []IDItem[*Viewpoint] { return p.viewpoints.All() }

// AddLine adds a Line to the project and returns its ID.
func (p *Project) AddLine(l Line) ID { return p.lines.Add(l) }

// Line returns the Line with the given ID.
func (p *Project) Line(id ID) (Line, bool) { return p.lines.Get(id) }

// Lines returns every live Line with its ID, in insertion order.
func (p *Project) Lines() []IDItem[Line] { return p.lines.All() }

// AddConstraint adds a Constraint to the project and returns its ID.
func (p *Project) AddConstraint(c Constraint) ID { return p.constraints.Add(c) }

// Constraints returns every live Constraint with its ID, in insertion
// order.
func (p *Project) Constraints() []IDItem[Constraint] { return p.constraints.All() }

// AllImagePoints returns every (Viewpoint ID, image point index) pair
// across every viewpoint, in insertion order. This is the flat
// enumeration residual and varlayout need to build the reprojection
// residual set and the callers that need to locate every observation of
// a given WorldPoint (e.g. RecomputeOptimizationInfo, outlier detection).
func (p *Project) AllImagePoints() []ImagePointRef {
	var out []ImagePointRef
	for _, vp := range p.viewpoints.All() {
		for i := range vp.Item.imagePoints {
			out = append(out, ImagePointRef{ViewpointID: vp.ID, Index: i})
		}
	}
	return out
}

// ImagePointRef locates a single ImagePoint within its owning Viewpoint.
type ImagePointRef struct {
	ViewpointID ID
	Index       int
}

// Resolve returns the referenced ImagePoint and its owning Viewpoint.
func (r ImagePointRef) Resolve(p *Project) (*Viewpoint, *ImagePoint, bool) {
	vp, ok := p.Viewpoint(r.ViewpointID)
	if !ok || r.Index < 0 || r.Index >= len(vp.imagePoints) {
		return nil, nil, false
	}
	return vp, &vp.imagePoints[r.Index], true
}

// RecomputeOptimizationInfo refreshes every WorldPoint's cached
// OptimizationInfo from the current LastResidual of every non-excluded
// ImagePoint referencing it. recon.Optimize calls this once after each
// solve attempt so reports and candidate scoring see up to date numbers.
func (p *Project) RecomputeOptimizationInfo() {
	sums := make(map[ID]float64)
	counts := make(map[ID]int)
	for _, ref := range p.AllImagePoints() {
		_, ip, ok := ref.Resolve(p)
		if !ok || ip.Excluded {
			continue
		}
		d2 := ip.LastResidual.X*ip.LastResidual.X + ip.LastResidual.Y*ip.LastResidual.Y
		sums[ip.WorldPointID] += d2
		counts[ip.WorldPointID]++
	}
	for _, wp := range p.worldPoints.All() {
		n := counts[wp.ID]
		var rms float64
		if n > 0 {
			rms = math.Sqrt(sums[wp.ID] / float64(n))
		}
		wp.Item.info = OptimizationInfo{NumObservations: n, RMSReprojection: rms}
	}
}

// Validate checks every entity's own Validate method and every
// cross-entity reference (Constraint and Line endpoints, ImagePoint
// WorldPoint references) for referential integrity.
func (p *Project) Validate() error {
	for _, wp := range p.worldPoints.All() {
		if err := wp.Item.Validate(); err != nil {
			return fmt.Errorf("scene: world point %d: %w", wp.ID, err)
		}
	}
	for _, vp := range p.viewpoints.All() {
		if err := vp.Item.Validate(); err != nil {
			return fmt.Errorf("scene: viewpoint %d: %w", vp.ID, err)
		}
		for i, ip := range vp.Item.imagePoints {
			if _, ok := p.worldPoints.Get(ip.WorldPointID); !ok {
				return fmt.Errorf("scene: viewpoint %d image point %d references unknown world point %d", vp.ID, i, ip.WorldPointID)
			}
		}
	}
	for _, l := range p.lines.All() {
		if err := l.Item.Validate(); err != nil {
			return fmt.Errorf("scene: line %d: %w", l.ID, err)
		}
		if _, ok := p.worldPoints.Get(l.Item.A); !ok {
			return fmt.Errorf("scene: line %d references unknown world point %d", l.ID, l.Item.A)
		}
		if _, ok := p.worldPoints.Get(l.Item.B); !ok {
			return fmt.Errorf("scene: line %d references unknown world point %d", l.ID, l.Item.B)
		}
	}
	for _, c := range p.constraints.All() {
		if err := c.Item.Validate(); err != nil {
			return fmt.Errorf("scene: constraint %d (%s): %w", c.ID, c.Item.Kind(), err)
		}
		wps, lns := c.Item.Refs()
		for _, id := range wps {
			if _, ok := p.worldPoints.Get(id); !ok {
				return fmt.Errorf("scene: constraint %d (%s) references unknown world point %d", c.ID, c.Item.Kind(), id)
			}
		}
		for _, id := range lns {
			if _, ok := p.lines.Get(id); !ok {
				return fmt.Errorf("scene: constraint %d (%s) references unknown line %d", c.ID, c.Item.Kind(), id)
			}
		}
	}
	return nil
}

// Snapshot captures a deep copy of the project suitable for Restore,
// used by recon.Optimize and outlier detection to roll back a solve
// attempt that made things worse. WorldPoint and Viewpoint arenas hold
// pointers, so the snapshot clones the pointees as well as the arena's
// own slice; Line and Constraint arenas hold plain values, so Arena.Clone
// alone is enough.
func (p *Project) Snapshot() *Project {
	wpClone := p.worldPoints.Clone()
	for i, item := range wpClone.items {
		if item == nil || wpClone.deleted[i] {
			continue
		}
		cp := *item
		wpClone.items[i] = &cp
	}
	vpClone := p.viewpoints.Clone()
	for i, item := range vpClone.items {
		if item == nil || vpClone.deleted[i] {
			continue
		}
		cp := *item
		cp.imagePoints = append([]ImagePoint(nil), item.imagePoints...)
		cp.vanishingLines = append([]VanishingLine(nil), item.vanishingLines...)
		vpClone.items[i] = &cp
	}
	return &Project{
		worldPoints: wpClone,
		viewpoints:  vpClone,
		lines:       p.lines.Clone(),
		constraints: p.constraints.Clone(),
	}
}

// Restore overwrites the project's contents with a previously captured
// Snapshot. The receiver's identity is preserved so callers holding a
// *Project across the restore keep seeing the restored state.
func (p *Project) Restore(snapshot *Project) {
	*p = *snapshot
}

// MarshalJSON encodes the project, using the constraint registry to
// preserve each Constraint's concrete type.
func (p *Project) MarshalJSON() ([]byte, error) {
	type wireConstraint struct {
		ID   ID              `json:"id"`
		Data json.RawMessage `json:"data"`
	}
	wireConstraints := make([]wireConstraint, 0, p.constraints.Len())
	for _, c := range p.constraints.All() {
		data, err := marshalConstraint(c.Item)
		if err != nil {
			return nil, fmt.Errorf("scene: marshal constraint %d: %w", c.ID, err)
		}
		wireConstraints = append(wireConstraints, wireConstraint{ID: c.ID, Data: data})
	}
	return json.Marshal(struct {
		WorldPoints []IDItem[*WorldPoint] `json:"world_points"`
		Viewpoints  []IDItem[*Viewpoint]  `json:"viewpoints"`
		Lines       []IDItem[Line]        `json:"lines"`
		Constraints []wireConstraint      `json:"constraints"`
	}{
		WorldPoints: p.worldPoints.All(),
		Viewpoints:  p.viewpoints.All(),
		Lines:       p.lines.All(),
		Constraints: wireConstraints,
	})
}

// UnmarshalJSON decodes a project previously encoded by MarshalJSON,
// recovering each Constraint's concrete type from the registry.
func (p *Project) UnmarshalJSON(data []byte) error {
	var wire struct {
		WorldPoints []IDItem[*WorldPoint] `json:"world_points"`
		Viewpoints  []IDItem[*Viewpoint]  `json:"viewpoints"`
		Lines       []IDItem[Line]        `json:"lines"`
		Constraints []struct {
			ID   ID              `json:"id"`
			Data json.RawMessage `json:"data"`
		} `json:"constraints"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*p = Project{}
	for _, item := range wire.WorldPoints {
		p.worldPoints.Add(item.Item)
	}
	for _, item := range wire.Viewpoints {
		p.viewpoints.Add(item.Item)
	}
	for _, item := range wire.Lines {
		p.lines.Add(item.Item)
	}
	for _, c := range wire.Constraints {
		parsed, err := unmarshalConstraint(c.Data)
		if err != nil {
			return fmt.Errorf("scene: unmarshal constraint %d: %w", c.ID, err)
		}
		p.constraints.Add(parsed)
	}
	return nil
}
