package geo

import "testing"

func buildTestHierarchy(t *testing.T) *Hierarchy {
	t.Helper()
	h := NewHierarchy()
	regions := []Region{
		{ID: "madrid", Kind: KindTop, Name: "Comunidad de Madrid", Lat: 40.4168, Lng: -3.7038, RadiusM: 40000, Priority: 1},
		{ID: "madrid-capital", Kind: KindSub, Name: "Madrid Capital", ParentID: "madrid", Lat: 40.4168, Lng: -3.7038, RadiusM: 12000, Priority: 1},
		{ID: "centro", Kind: KindLocality, Name: "Centro", ParentID: "madrid-capital", Lat: 40.4150, Lng: -3.7074, RadiusM: 2000, Priority: 1},
		{ID: "chamberi", Kind: KindLocality, Name: "Chamberí", ParentID: "madrid-capital", Lat: 40.4340, Lng: -3.7038, RadiusM: 2500, Priority: 2},
		{ID: "norte", Kind: KindSub, Name: "Zona Norte", ParentID: "madrid", Lat: 40.5500, Lng: -3.6900, RadiusM: 15000, Priority: 3},
		{ID: "alcobendas", Kind: KindLocality, Name: "Alcobendas", ParentID: "norte", Lat: 40.5410, Lng: -3.6350, RadiusM: 3500, Priority: 3},
	}
	for _, r := range regions {
		if err := h.Add(r); err != nil {
			t.Fatalf("add %s: %v", r.ID, err)
		}
	}
	return h
}

func TestHierarchyValidation(t *testing.T) {
	h := NewHierarchy()
	if err := h.Add(Region{ID: "t1", Kind: KindTop, Name: "Top", RadiusM: 1000}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		r    Region
	}{
		{"top with parent", Region{ID: "t2", Kind: KindTop, ParentID: "t1", RadiusM: 1000}},
		{"locality under top", Region{ID: "l1", Kind: KindLocality, ParentID: "t1", RadiusM: 1000}},
		{"unknown parent", Region{ID: "s1", Kind: KindSub, ParentID: "nope", RadiusM: 1000}},
		{"duplicate id", Region{ID: "t1", Kind: KindTop, RadiusM: 1000}},
		{"zero radius", Region{ID: "s2", Kind: KindSub, ParentID: "t1"}},
		{"bad kind", Region{ID: "x", Kind: "country", RadiusM: 1000}},
	}
	for _, tc := range tests {
		if err := h.Add(tc.r); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestScanTargetsOrdering(t *testing.T) {
	h := buildTestHierarchy(t)

	targets, err := h.ScanTargets("madrid")
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 3 {
		t.Fatalf("expected 3 localities under madrid, got %d", len(targets))
	}
	// Priority ascending: centro (1), chamberi (2), alcobendas (3).
	want := []string{"centro", "chamberi", "alcobendas"}
	for i, id := range want {
		if targets[i].ID != id {
			t.Errorf("target %d: got %s, want %s", i, targets[i].ID, id)
		}
	}
}

func TestScanTargetsLocalityIsItself(t *testing.T) {
	h := buildTestHierarchy(t)
	targets, err := h.ScanTargets("centro")
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 1 || targets[0].ID != "centro" {
		t.Fatalf("scanning a locality should target just itself, got %v", targets)
	}
}

func TestScanTargetsUnknownRegion(t *testing.T) {
	h := buildTestHierarchy(t)
	if _, err := h.ScanTargets("atlantis"); err == nil {
		t.Fatal("expected error for unknown region")
	}
}
