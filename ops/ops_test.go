package ops

import "testing"

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= 1e-5
}

func vecAlmostEqual(a, b Vec) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !almostEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// TestColorMixScenarioS1 covers spec.md scenario S1.
func TestColorMixScenarioS1(t *testing.T) {
	a := Vec{1, 0, 0, 1}
	b := Vec{0, 1, 0, 0.5}
	got := ColorMix(a, b)
	want := Vec{0.5, 0.5, 0, 1}
	if !vecAlmostEqual(got, want) {
		t.Errorf("ColorMix(%v, %v) = %v, want %v", a, b, got, want)
	}
}

// TestSwizzleScenarioS2 covers spec.md scenario S2.
func TestSwizzleScenarioS2(t *testing.T) {
	v := Vec{1, 2, 3, 4}
	got, err := Swizzle(v, "wzyx")
	if err != nil {
		t.Fatal(err)
	}
	want := Vec{4, 3, 2, 1}
	if !vecAlmostEqual(got, want) {
		t.Errorf("Swizzle(wzyx) = %v, want %v", got, want)
	}
}

// TestSwizzleExpansionScenarioS3 covers spec.md scenario S3.
func TestSwizzleExpansionScenarioS3(t *testing.T) {
	v := Vec{1, 2}
	got, err := Swizzle(v, "yxy")
	if err != nil {
		t.Fatal(err)
	}
	want := Vec{2, 1, 2}
	if !vecAlmostEqual(got, want) {
		t.Errorf("Swizzle(yxy) = %v, want %v", got, want)
	}
}

func TestConstructFlexibleWithInlineSwizzleScenarioS4(t *testing.T) {
	// local c: float4 = (0.2, 0.4, 0.6, 1.0); float3{xy: c.xy, z: 1.0}
	c := Vec{0.2, 0.4, 0.6, 1.0}
	cxy, err := Swizzle(c, "xy")
	if err != nil {
		t.Fatal(err)
	}
	got, err := Construct(3, nil, []ComponentGroup{
		{Channels: "xy", Value: cxy},
		{Channels: "z", Value: Scalar(1.0)},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := Vec{0.2, 0.4, 1.0}
	if !vecAlmostEqual(got, want) {
		t.Errorf("Construct = %v, want %v", got, want)
	}
}

func TestConstructRejectsGapAndOverlap(t *testing.T) {
	if _, err := Construct(3, nil, []ComponentGroup{{Channels: "xy", Value: Vec{1, 2}}}); err == nil {
		t.Error("expected an error for a gap (missing z)")
	}
	if _, err := Construct(3, nil, []ComponentGroup{
		{Channels: "xy", Value: Vec{1, 2}},
		{Channels: "y", Value: Vec{9}},
		{Channels: "z", Value: Vec{3}},
	}); err == nil {
		t.Error("expected an error for an overlap on y")
	}
}

func TestBroadcast(t *testing.T) {
	got := Broadcast(4, 2.5)
	want := Vec{2.5, 2.5, 2.5, 2.5}
	if !vecAlmostEqual(got, want) {
		t.Errorf("Broadcast(4, 2.5) = %v, want %v", got, want)
	}
}

func TestModMatchesFloorDefinition(t *testing.T) {
	got, err := Mod(Scalar(5.5), Scalar(2))
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(got[0], 1.5) {
		t.Errorf("Mod(5.5, 2) = %v, want 1.5", got[0])
	}
}

func TestBroadcastingBinaryOp(t *testing.T) {
	got, err := Add(Vec{1, 2, 3}, Scalar(10))
	if err != nil {
		t.Fatal(err)
	}
	want := Vec{11, 12, 13}
	if !vecAlmostEqual(got, want) {
		t.Errorf("Add(vec, scalar) = %v, want %v", got, want)
	}
}

func TestComparisonReturnsZeroOneScalar(t *testing.T) {
	got, err := Lt(Scalar(1), Scalar(2))
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 1 {
		t.Errorf("Lt(1,2) = %v, want [1]", got)
	}
	got2, _ := Lt(Scalar(2), Scalar(1))
	if got2[0] != 0 {
		t.Errorf("Lt(2,1) = %v, want [0]", got2)
	}
}
