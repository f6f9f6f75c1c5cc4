package measure

import "strconv"

// AxisMode says how one plane axis (Z or T) of a shape is selected.
type AxisMode int

const (
	// AxisUnspecified leaves the axis unresolved: one pass without an index.
	AxisUnspecified AxisMode = iota
	// AxisExplicit selects the single index the shape is bound to.
	AxisExplicit
	// AxisAll expands the axis over every index of the image.
	AxisAll
)

// AxisSelection is the three-state plane selection of one axis.
type AxisSelection struct {
	Mode  AxisMode
	Index int // meaningful for AxisExplicit only
}

func Explicit(index int) AxisSelection { return AxisSelection{Mode: AxisExplicit, Index: index} }
func AllPlanes() AxisSelection          { return AxisSelection{Mode: AxisAll} }
func Unspecified() AxisSelection        { return AxisSelection{Mode: AxisUnspecified} }

// SelectAxis derives the selection for a shape axis. index is the shape's own
// zero-based Z or T (nil when unset).
func SelectAxis(index *int, allPlanes bool) AxisSelection {
	switch {
	case index != nil:
		return Explicit(*index)
	case allPlanes:
		return AllPlanes()
	default:
		return Unspecified()
	}
}

func (a AxisSelection) indexes(size int) []Optional[int] {
	switch a.Mode {
	case AxisExplicit:
		return []Optional[int]{Some(a.Index)}
	case AxisAll:
		out := make([]Optional[int], size)
		for i := range out {
			out[i] = Some(i)
		}
		return out
	default:
		return []Optional[int]{{}}
	}
}

// Plane is a zero-based (z, t) pair. An axis that was never resolved is
// invalid and displays blank.
type Plane struct {
	Z, T Optional[int]
}

// HasStats reports whether both axes are concrete, the only case in which
// statistics are requested.
func (p Plane) HasStats() bool {
	return p.Z.Valid && p.T.Valid
}

// DisplayZ returns the 1-based Z index, or "" when unresolved.
func (p Plane) DisplayZ() string { return display(p.Z) }

// DisplayT returns the 1-based T index, or "" when unresolved.
func (p Plane) DisplayT() string { return display(p.T) }

func display(i Optional[int]) string {
	if !i.Valid {
		return ""
	}
	return strconv.Itoa(i.Value + 1)
}

// Planes returns the cartesian product of the Z and T selections, Z outer.
func Planes(z, t AxisSelection, sizeZ, sizeT int) []Plane {
	zs := z.indexes(sizeZ)
	ts := t.indexes(sizeT)

	planes := make([]Plane, 0, len(zs)*len(ts))
	for _, zi := range zs {
		for _, ti := range ts {
			planes = append(planes, Plane{Z: zi, T: ti})
		}
	}
	return planes
}
