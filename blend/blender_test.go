package blend

import (
	"errors"
	"math"
	"testing"

	"github.com/openfluke/neuralterrain/tensor"
)

func filled(w, h int, v float32) *Heightmap {
	m := NewHeightmap(w, h)
	for i := range m.Data {
		m.Data[i] = v
	}
	return m
}

func ramp(w, h int) *Heightmap {
	m := NewHeightmap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.Set(x, y, float32(x+y)/float32(w+h))
		}
	}
	return m
}

func TestRegionWeight(t *testing.T) {
	r := Region{InnerRadius: 2, OuterRadius: 6, Shape: 2.5}
	if r.Weight(0) != 1 || r.Weight(2) != 1 {
		t.Error("Weight should saturate to 1 inside r1")
	}
	if r.Weight(6) != 0 || r.Weight(10) != 0 {
		t.Error("Weight should vanish beyond r2")
	}
	prev := 1.0
	for d := 2.0; d <= 6; d += 0.25 {
		w := r.Weight(d)
		if w > prev {
			t.Errorf("Weight increased at d=%f", d)
		}
		prev = w
	}
	steep := Region{InnerRadius: 2, OuterRadius: 6, Shape: 5}
	if steep.Weight(4) <= r.Weight(4) {
		t.Error("A larger shape exponent should keep more neighbour influence mid-band")
	}
}

func TestBlendFarPointsUnaffected(t *testing.T) {
	tile := ramp(16, 16)
	orig := tile.Clone()
	neighbors := map[Direction]*Heightmap{}
	for _, d := range Directions {
		neighbors[d] = filled(16, 16, 0.9)
	}
	p := Params{InnerRadius: 1, OuterRadius: 3, Shape: 3}

	if err := Blend(tile, neighbors, p); err != nil {
		t.Fatalf("Blend: %v", err)
	}
	for y := 3; y <= 12; y++ {
		for x := 3; x <= 12; x++ {
			if tile.At(x, y) != orig.At(x, y) {
				t.Fatalf("(%d,%d) at distance >= r2 changed from %f to %f", x, y, orig.At(x, y), tile.At(x, y))
			}
		}
	}
}

func TestBlendSaturatedNeighbour(t *testing.T) {
	tile := ramp(16, 16)
	west := ramp(16, 16)
	for y := 0; y < 16; y++ {
		west.Set(15, y, 0.1*float32(y))
	}
	p := Params{InnerRadius: 2, OuterRadius: 6, Shape: 2.5}

	if err := Blend(tile, map[Direction]*Heightmap{West: west}, p); err != nil {
		t.Fatalf("Blend: %v", err)
	}
	for y := 0; y < 16; y++ {
		for x := 0; x <= 2; x++ {
			want := 0.1 * float32(y)
			if math.Abs(float64(tile.At(x, y)-want)) > 1e-6 {
				t.Fatalf("(%d,%d): want neighbour edge %f, got %f", x, y, want, tile.At(x, y))
			}
		}
	}
}

func TestBlendFalloffBand(t *testing.T) {
	tile := filled(16, 16, 0)
	north := filled(16, 16, 1)
	p := Params{InnerRadius: 2, OuterRadius: 6, Shape: 3, KeepNeighborHeights: true}

	if err := Blend(tile, map[Direction]*Heightmap{North: north}, p); err != nil {
		t.Fatalf("Blend: %v", err)
	}
	r := Region{InnerRadius: 2, OuterRadius: 6, Shape: 3}
	for y := 0; y < 8; y++ {
		want := r.Weight(float64(y))
		if math.Abs(float64(tile.At(5, y))-want) > 1e-6 {
			t.Errorf("row %d: want %f, got %f", y, want, tile.At(5, y))
		}
	}
}

func TestBlendOrderIndependent(t *testing.T) {
	p := Params{InnerRadius: 3, OuterRadius: 10, Shape: 4}
	build := func(order []Direction) *Heightmap {
		tile := ramp(12, 12)
		neighbors := make(map[Direction]*Heightmap)
		for i, d := range order {
			neighbors[d] = filled(12, 12, float32(i+1)/10)
		}
		if err := Blend(tile, neighbors, p); err != nil {
			t.Fatalf("Blend: %v", err)
		}
		return tile
	}
	// same neighbour contents, inserted in different orders
	a := build([]Direction{West, North, NorthWest})
	tile := ramp(12, 12)
	neighbors := make(map[Direction]*Heightmap)
	neighbors[NorthWest] = filled(12, 12, 0.3)
	neighbors[North] = filled(12, 12, 0.2)
	neighbors[West] = filled(12, 12, 0.1)
	if err := Blend(tile, neighbors, p); err != nil {
		t.Fatalf("Blend: %v", err)
	}
	for i := range a.Data {
		if a.Data[i] != tile.Data[i] {
			t.Fatalf("index %d differs: %f vs %f", i, a.Data[i], tile.Data[i])
		}
	}
}

func TestBlendKeepNeighborHeights(t *testing.T) {
	p := Params{InnerRadius: 2, OuterRadius: 6, Shape: 2.5, KeepNeighborHeights: true}
	tile := ramp(8, 8)
	west := filled(8, 8, 0.2)
	north := filled(8, 8, 0.8)
	westOrig, northOrig := west.Clone(), north.Clone()

	if err := Blend(tile, map[Direction]*Heightmap{West: west, North: north}, p); err != nil {
		t.Fatalf("Blend: %v", err)
	}
	for i := range west.Data {
		if west.Data[i] != westOrig.Data[i] || north.Data[i] != northOrig.Data[i] {
			t.Fatal("Neighbours must not be written when KeepNeighborHeights is set")
		}
	}
}

func TestBlendSyncsSharedEdges(t *testing.T) {
	p := Params{InnerRadius: 2, OuterRadius: 6, Shape: 2.5}
	tile := ramp(8, 8)
	west := filled(8, 8, 0.2)
	north := filled(8, 8, 0.8)

	if err := Blend(tile, map[Direction]*Heightmap{West: west, North: north}, p); err != nil {
		t.Fatalf("Blend: %v", err)
	}
	for y := 0; y < 8; y++ {
		if west.At(7, y) != tile.At(0, y) {
			t.Errorf("west shared edge row %d: %f vs tile %f", y, west.At(7, y), tile.At(0, y))
		}
	}
	for x := 0; x < 8; x++ {
		if north.At(x, 7) != tile.At(x, 0) {
			t.Errorf("north shared edge column %d: %f vs tile %f", x, north.At(x, 7), tile.At(x, 0))
		}
	}
	// corner sample sits inside both bands and averages the two edges
	if math.Abs(float64(tile.At(0, 0))-0.5) > 1e-6 {
		t.Errorf("corner should average both neighbours, got %f", tile.At(0, 0))
	}
}

func TestBlendValidation(t *testing.T) {
	tile := ramp(8, 8)
	tests := []struct {
		name string
		p    Params
	}{
		{"inner equals outer", Params{InnerRadius: 4, OuterRadius: 4, Shape: 3}},
		{"negative inner", Params{InnerRadius: -1, OuterRadius: 4, Shape: 3}},
		{"shape too small", Params{InnerRadius: 1, OuterRadius: 4, Shape: 2}},
		{"shape too large", Params{InnerRadius: 1, OuterRadius: 4, Shape: 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Blend(tile, nil, tt.p); !errors.Is(err, ErrInvalidRegion) {
				t.Errorf("Expected ErrInvalidRegion, got %v", err)
			}
		})
	}

	err := Blend(tile, map[Direction]*Heightmap{East: ramp(4, 4)}, DefaultParams(8))
	if !errors.Is(err, tensor.ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch for a differently sized neighbour, got %v", err)
	}
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams(512)
	if p.InnerRadius != 256 || p.OuterRadius != 512 || p.Shape != MinShape {
		t.Errorf("Unexpected defaults %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}
