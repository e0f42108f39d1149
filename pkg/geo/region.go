package geo

import (
	"fmt"
	"sort"
)

// RegionKind is the level of a node in the administrative hierarchy.
type RegionKind string

const (
	KindTop      RegionKind = "top"
	KindSub      RegionKind = "sub"
	KindLocality RegionKind = "locality"
)

// Region is one node of the top/sub/locality hierarchy. Parent is stored as
// an id reference into the owning Hierarchy, never as a pointer.
type Region struct {
	ID       string     `json:"id" yaml:"id"`
	Kind     RegionKind `json:"kind" yaml:"kind"`
	Name     string     `json:"name" yaml:"name"`
	ParentID string     `json:"parent_id,omitempty" yaml:"parent_id"`
	Lat      float64    `json:"lat" yaml:"lat"`
	Lng      float64    `json:"lng" yaml:"lng"`
	RadiusM  float64    `json:"radius_m" yaml:"radius_m"`
	Priority int        `json:"priority" yaml:"priority"`
}

// Hierarchy is an arena of regions keyed by id. It is built once at seed
// time and read-only afterwards, so lookups need no locking during a scan.
type Hierarchy struct {
	regions  map[string]Region
	children map[string][]string
}

func NewHierarchy() *Hierarchy {
	return &Hierarchy{
		regions:  make(map[string]Region),
		children: make(map[string][]string),
	}
}

// Add inserts a region after validating its kind/parent chain: a top has no
// parent, a sub's parent is a top, a locality's parent is a sub.
func (h *Hierarchy) Add(r Region) error {
	if r.ID == "" {
		return fmt.Errorf("region has no id")
	}
	if _, dup := h.regions[r.ID]; dup {
		return fmt.Errorf("duplicate region id %q", r.ID)
	}
	switch r.Kind {
	case KindTop:
		if r.ParentID != "" {
			return fmt.Errorf("top region %q must not have a parent", r.ID)
		}
	case KindSub, KindLocality:
		parent, ok := h.regions[r.ParentID]
		if !ok {
			return fmt.Errorf("region %q references unknown parent %q", r.ID, r.ParentID)
		}
		want := KindTop
		if r.Kind == KindLocality {
			want = KindSub
		}
		if parent.Kind != want {
			return fmt.Errorf("region %q (%s) has parent of kind %s, want %s", r.ID, r.Kind, parent.Kind, want)
		}
	default:
		return fmt.Errorf("region %q has unknown kind %q", r.ID, r.Kind)
	}
	if r.RadiusM <= 0 {
		return fmt.Errorf("region %q has non-positive radius", r.ID)
	}
	h.regions[r.ID] = r
	if r.ParentID != "" {
		h.children[r.ParentID] = append(h.children[r.ParentID], r.ID)
	}
	return nil
}

// Region returns the region with the given id.
func (h *Hierarchy) Region(id string) (Region, bool) {
	r, ok := h.regions[id]
	return r, ok
}

// Children returns the direct children of a region, sorted by id for
// deterministic iteration.
func (h *Hierarchy) Children(id string) []Region {
	ids := append([]string(nil), h.children[id]...)
	sort.Strings(ids)
	out := make([]Region, 0, len(ids))
	for _, cid := range ids {
		out = append(out, h.regions[cid])
	}
	return out
}

// ScanTargets resolves a region id to the list of regions a session should
// actually scan: the node itself if it is a locality, otherwise all locality
// descendants. Results are ordered by priority ascending then id, so a
// resumed session walks them in a known order.
func (h *Hierarchy) ScanTargets(id string) ([]Region, error) {
	root, ok := h.regions[id]
	if !ok {
		return nil, fmt.Errorf("unknown region %q", id)
	}
	var out []Region
	var walk func(r Region)
	walk = func(r Region) {
		if r.Kind == KindLocality {
			out = append(out, r)
			return
		}
		for _, c := range h.Children(r.ID) {
			walk(c)
		}
	}
	walk(root)
	if len(out) == 0 {
		// A top/sub with no locality children is still scannable as itself.
		out = append(out, root)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Len returns the number of regions in the hierarchy.
func (h *Hierarchy) Len() int { return len(h.regions) }

// All returns every region, sorted by id.
func (h *Hierarchy) All() []Region {
	out := make([]Region, 0, len(h.regions))
	for _, r := range h.regions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
