package residual

import (
	"fmt"

	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
	"github.com/scottlawsonbc/slam/code/photon/recon/varlayout"
)

// Build assembles every Provider for a project: one Reprojection per
// non-excluded observation in an enabled Viewpoint, one Distance and/or
// LineDirection per Line carrying those constraints, one provider per
// scene.Constraint, and one QuaternionUnit per Viewpoint whose pose is
// free. Providers are returned in a fixed order -- reprojection first (in
// AllImagePoints order), then lines, then constraints, then quaternion
// units -- so that row offsets, and therefore the Jacobian's row
// ordering, are reproducible across runs over the same project.
func Build(project *scene.Project, layout *varlayout.Layout) ([]Provider, error) {
	var providers []Provider

	for _, ref := range project.AllImagePoints() {
		vp, ip, ok := ref.Resolve(project)
		if !ok || ip.Excluded || !vp.EnabledInSolve {
			continue
		}
		wp, ok := project.WorldPoint(ip.WorldPointID)
		if !ok {
			return nil, fmt.Errorf("residual: image point references unknown world point %d", ip.WorldPointID)
		}
		providers = append(providers, NewReprojection(layout, vp, ref.ViewpointID, wp, ip.WorldPointID, ip.Pixel.X, ip.Pixel.Y, 1))
	}

	for _, l := range project.Lines() {
		wpA, ok := project.WorldPoint(l.Item.A)
		if !ok {
			return nil, fmt.Errorf("residual: line %d references unknown world point %d", l.ID, l.Item.A)
		}
		wpB, ok := project.WorldPoint(l.Item.B)
		if !ok {
			return nil, fmt.Errorf("residual: line %d references unknown world point %d", l.ID, l.Item.B)
		}
		if l.Item.HasLength {
			weight := 1.0
			if l.Item.Tolerance > 0 {
				weight = 1 / (l.Item.Tolerance * l.Item.Tolerance)
			}
			providers = append(providers, NewDistance(layout, wpA, l.Item.A, wpB, l.Item.B, l.Item.Length, weight))
		}
		if l.Item.HasAxis {
			providers = append(providers, NewLineDirection(layout, wpA, l.Item.A, wpB, l.Item.B, int(l.Item.Axis), 1))
		}
	}

	for _, c := range project.Constraints() {
		p, err := buildConstraintProvider(project, layout, c.Item)
		if err != nil {
			return nil, fmt.Errorf("residual: constraint %d (%s): %w", c.ID, c.Item.Kind(), err)
		}
		providers = append(providers, p)
	}

	for _, vp := range project.Viewpoints() {
		if _, ok := layout.ViewpointQuaternionColumns(vp.ID); ok {
			providers = append(providers, NewQuaternionUnit(layout, vp.Item, vp.ID, 1))
		}
	}

	return providers, nil
}

func buildConstraintProvider(project *scene.Project, layout *varlayout.Layout, c scene.Constraint) (Provider, error) {
	wp := func(id scene.ID) (*scene.WorldPoint, error) {
		w, ok := project.WorldPoint(id)
		if !ok {
			return nil, fmt.Errorf("references unknown world point %d", id)
		}
		return w, nil
	}
	line := func(id scene.ID) (scene.Line, error) {
		l, ok := project.Line(id)
		if !ok {
			return scene.Line{}, fmt.Errorf("references unknown line %d", id)
		}
		return l, nil
	}
	lineEndpoints := func(id scene.ID) (*scene.WorldPoint, scene.ID, *scene.WorldPoint, scene.ID, error) {
		l, err := line(id)
		if err != nil {
			return nil, 0, nil, 0, err
		}
		a, err := wp(l.A)
		if err != nil {
			return nil, 0, nil, 0, err
		}
		b, err := wp(l.B)
		if err != nil {
			return nil, 0, nil, 0, err
		}
		return a, l.A, b, l.B, nil
	}

	switch c := c.(type) {
	case scene.Distance:
		a, err := wp(c.A)
		if err != nil {
			return nil, err
		}
		b, err := wp(c.B)
		if err != nil {
			return nil, err
		}
		return NewDistance(layout, a, c.A, b, c.B, c.Target, c.Weight), nil

	case scene.Angle:
		a, err := wp(c.A)
		if err != nil {
			return nil, err
		}
		b, err := wp(c.B)
		if err != nil {
			return nil, err
		}
		cc, err := wp(c.C)
		if err != nil {
			return nil, err
		}
		return NewAngle(layout, a, c.A, b, c.B, cc, c.C, c.TargetRad, c.Weight), nil

	case scene.ParallelLines:
		a0, a0id, b0, b0id, err := lineEndpoints(c.LineA)
		if err != nil {
			return nil, err
		}
		a1, a1id, b1, b1id, err := lineEndpoints(c.LineB)
		if err != nil {
			return nil, err
		}
		return NewParallelLines(layout, a0, a0id, b0, b0id, a1, a1id, b1, b1id, c.Weight), nil

	case scene.PerpendicularLines:
		a0, a0id, b0, b0id, err := lineEndpoints(c.LineA)
		if err != nil {
			return nil, err
		}
		a1, a1id, b1, b1id, err := lineEndpoints(c.LineB)
		if err != nil {
			return nil, err
		}
		return NewPerpendicularLines(layout, a0, a0id, b0, b0id, a1, a1id, b1, b1id, c.Weight), nil

	case scene.FixedPoint:
		p, err := wp(c.Point)
		if err != nil {
			return nil, err
		}
		return NewFixedPoint(layout, p, c.Point, c.Target, c.Weight), nil

	case scene.CollinearPoints:
		wps := make([]*scene.WorldPoint, len(c.Points))
		for i, id := range c.Points {
			w, err := wp(id)
			if err != nil {
				return nil, err
			}
			wps[i] = w
		}
		return NewCollinearPoints(layout, wps, c.Points, c.Weight), nil

	case scene.EqualDistances:
		a0, a0id, b0, b0id, err := lineEndpoints(c.LineA)
		if err != nil {
			return nil, err
		}
		a1, a1id, b1, b1id, err := lineEndpoints(c.LineB)
		if err != nil {
			return nil, err
		}
		return NewEqualDistances(layout, a0, a0id, b0, b0id, a1, a1id, b1, b1id, c.Weight), nil

	case scene.EqualAngles:
		a, err := wp(c.A)
		if err != nil {
			return nil, err
		}
		b, err := wp(c.B)
		if err != nil {
			return nil, err
		}
		cc, err := wp(c.C)
		if err != nil {
			return nil, err
		}
		d, err := wp(c.D)
		if err != nil {
			return nil, err
		}
		e, err := wp(c.E)
		if err != nil {
			return nil, err
		}
		f, err := wp(c.F)
		if err != nil {
			return nil, err
		}
		return NewEqualAngles(layout, a, c.A, b, c.B, cc, c.C, d, c.D, e, c.E, f, c.F, c.Weight), nil

	case scene.CoplanarPoints:
		wps := make([]*scene.WorldPoint, len(c.Points))
		for i, id := range c.Points {
			w, err := wp(id)
			if err != nil {
				return nil, err
			}
			wps[i] = w
		}
		return NewCoplanarPoints(layout, wps, c.Points, c.Weight), nil

	default:
		return nil, fmt.Errorf("unhandled constraint type %T", c)
	}
}
