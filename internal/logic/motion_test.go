package logic

import (
	"testing"
	"time"
)

func accel(x, y, z float64) AccelerationSample {
	return AccelerationSample{X: x, Y: y, Z: z, Time: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestMotionFilterInitiallyStill(t *testing.T) {
	var f MotionFilter
	if f.Moving() {
		t.Error("new motion filter should not be moving")
	}
	if f.EWMA() != 0 {
		t.Errorf("expected ewma 0, got %v", f.EWMA())
	}
}

func TestMotionFilterCrossesThresholdOnFirstSample(t *testing.T) {
	var f MotionFilter

	changed := f.OnAcceleration(accel(12, 0, 0))
	if !changed {
		t.Error("expected state change on first sample above threshold")
	}
	if !f.Moving() {
		t.Error("expected moving after magnitude-12 sample")
	}
	if f.EWMA() != 6 {
		t.Errorf("expected ewma 6, got %v", f.EWMA())
	}
}

func TestMotionFilterSmoothing(t *testing.T) {
	var f MotionFilter
	want := []float64{6, 9, 10.5}
	for i, w := range want {
		f.OnAcceleration(accel(0, 12, 0))
		if f.EWMA() != w {
			t.Errorf("sample %d: expected ewma %v, got %v", i, w, f.EWMA())
		}
		if !f.Moving() {
			t.Errorf("sample %d: expected moving", i)
		}
	}
}

func TestMotionFilterStopsWithoutDebounce(t *testing.T) {
	var f MotionFilter
	f.OnAcceleration(accel(2, 0, 0)) // ewma 1

	// ewma halves each zero sample: 0.5, 0.25, 0.125, 0.0625
	wantMoving := []bool{true, true, true, false}
	for i, want := range wantMoving {
		changed := f.OnAcceleration(accel(0, 0, 0))
		if f.Moving() != want {
			t.Errorf("zero sample %d: expected moving=%v (ewma %v)", i, want, f.EWMA())
		}
		if changed != (i == 3) {
			t.Errorf("zero sample %d: unexpected changed=%v", i, changed)
		}
	}
}

func TestMotionFilterRestartsImmediately(t *testing.T) {
	var f MotionFilter
	seq := []float64{1, 0, 0, 0, 1, 0, 0, 0}
	want := []bool{true, true, true, false, true, true, true, false}

	for i, m := range seq {
		f.OnAcceleration(accel(m, 0, 0))
		if f.Moving() != want[i] {
			t.Errorf("sample %d: expected moving=%v, got %v (ewma %v)", i, want[i], f.Moving(), f.EWMA())
		}
	}
}

func TestMotionFilterMagnitudeIsRounded(t *testing.T) {
	tests := []struct {
		name     string
		x, y, z  float64
		wantEWMA float64
		moving   bool
	}{
		{"below half rounds to zero", 0.2, 0.2, 0.2, 0, false}, // |v| ≈ 0.346
		{"above half rounds to one", 0.3, 0.3, 0.3, 0.5, true}, // |v| ≈ 0.520
		{"pythagorean", 3, 4, 0, 2.5, true},
		{"negative axes", -3, 0, -4, 2.5, true},
		{"rounds up", 0, 1.6, 0, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f MotionFilter
			f.OnAcceleration(accel(tt.x, tt.y, tt.z))
			if f.EWMA() != tt.wantEWMA {
				t.Errorf("expected ewma %v, got %v", tt.wantEWMA, f.EWMA())
			}
			if f.Moving() != tt.moving {
				t.Errorf("expected moving=%v, got %v", tt.moving, f.Moving())
			}
		})
	}
}

func TestMotionFilterSmallNoiseNeverMoves(t *testing.T) {
	var f MotionFilter
	for i := 0; i < 100; i++ {
		f.OnAcceleration(accel(0.1, -0.2, 0.15))
		if f.Moving() {
			t.Fatalf("sample %d: sub-0.5 magnitude should never register as moving", i)
		}
	}
}
