package shipping

import "testing"

func TestEffectiveVolumeZeroDimensions(t *testing.T) {
	lines := []Line{
		{ItemID: "a", Qty: 3, Stackable: true},
		{ItemID: "b", Qty: 1},
	}
	if vol := EffectiveVolume(lines); vol != 0 {
		t.Fatalf("expected zero effective volume, got %f", vol)
	}
}

func TestEffectiveVolumeNonStackableFullVolume(t *testing.T) {
	lines := []Line{
		{ItemID: "crate", Qty: 2, Dims: Dimensions{Length: 10, Width: 10, Height: 10}},
	}
	if vol := EffectiveVolume(lines); vol != 2000 {
		t.Fatalf("expected 2000, got %f", vol)
	}
}

func TestEffectiveVolumeNesting(t *testing.T) {
	lines := []Line{
		{ItemID: "large", Qty: 1, Stackable: true, Dims: Dimensions{Length: 100, Width: 1, Height: 1}},
		{ItemID: "small", Qty: 3, Stackable: true, Dims: Dimensions{Length: 10, Width: 1, Height: 1}},
	}
	// 100 + 10*0.2*3 = 106
	if vol := EffectiveVolume(lines); vol != 106 {
		t.Fatalf("expected 106, got %f", vol)
	}
}

func TestEffectiveVolumeSameLargestItemDoesNotNest(t *testing.T) {
	// Identical largest items are each charged full volume.
	lines := []Line{
		{ItemID: "basket", Qty: 2, Stackable: true, Dims: Dimensions{Length: 50, Width: 1, Height: 1}},
	}
	if vol := EffectiveVolume(lines); vol != 100 {
		t.Fatalf("expected 100, got %f", vol)
	}
}

func TestEffectiveVolumeMixed(t *testing.T) {
	lines := []Line{
		{ItemID: "rigid", Qty: 1, Dims: Dimensions{Length: 10, Width: 10, Height: 10}},
		{ItemID: "big", Qty: 1, Stackable: true, Dims: Dimensions{Length: 20, Width: 10, Height: 10}},
		{ItemID: "nested", Qty: 2, Stackable: true, Dims: Dimensions{Length: 5, Width: 10, Height: 10}},
	}
	// 1000 + 2000 + 500*0.2*2 = 3200
	if vol := EffectiveVolume(lines); vol != 3200 {
		t.Fatalf("expected 3200, got %f", vol)
	}
}

func TestEffectiveVolumeSkipsNonPositiveQty(t *testing.T) {
	lines := []Line{
		{ItemID: "ghost", Qty: 0, Dims: Dimensions{Length: 10, Width: 10, Height: 10}},
		{ItemID: "neg", Qty: -2, Stackable: true, Dims: Dimensions{Length: 10, Width: 10, Height: 10}},
	}
	if vol := EffectiveVolume(lines); vol != 0 {
		t.Fatalf("expected 0, got %f", vol)
	}
}
