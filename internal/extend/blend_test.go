package extend

import "testing"

func constBuf(n int, v float32) []float32 {
	buf := make([]float32, n)
	for i := range buf {
		buf[i] = v
	}
	return buf
}

func TestCrossfadeBlendedRegion(t *testing.T) {
	buf := constBuf(10000, 1.0)
	seg := constBuf(10000, 0.0)

	result := Crossfade(buf, seg, 2000, 1000)

	// 10000 + 10000 - min(1000, 10000) samples.
	if len(result) != 19000 {
		t.Fatalf("result length = %d, want 19000", len(result))
	}

	// Every blended sample is a convex combination of 1.0 and 0.0.
	start := 10000 - 1000
	for k := 0; k < 1000; k++ {
		v := result[start+k]
		if v < 0 || v > 1 {
			t.Fatalf("blended sample %d = %v, want within [0,1]", k, v)
		}
	}

	// Strictly interior samples are strictly between the inputs.
	if v := result[start+1]; v <= 0 || v >= 1 {
		t.Errorf("sample just inside fade = %v, want strictly in (0,1)", v)
	}

	// Midpoint of the fade sits halfway between the two levels.
	mid := result[start+500]
	if mid < 0.45 || mid > 0.55 {
		t.Errorf("fade midpoint = %v, want ~0.5", mid)
	}
}

func TestCrossfadeRampDirection(t *testing.T) {
	buf := constBuf(100, 1.0)
	seg := constBuf(100, 0.0)

	result := Crossfade(buf, seg, 50, 20)

	// Fade position 0 keeps the old buffer entirely.
	if got := result[80]; got != 1.0 {
		t.Errorf("first blended sample = %v, want 1.0", got)
	}
	// Blend weight toward seg grows monotonically across the fade.
	for k := 81; k < 100; k++ {
		if result[k] > result[k-1] {
			t.Fatalf("fade not monotonically decreasing toward seg at %d: %v > %v", k, result[k], result[k-1])
		}
	}
}

func TestCrossfadeInsufficientOverlapConcatenates(t *testing.T) {
	buf := constBuf(500, 1.0)
	seg := constBuf(300, 0.25)

	result := Crossfade(buf, seg, 1000, 200)

	if len(result) != 800 {
		t.Fatalf("result length = %d, want 800 (plain concatenation)", len(result))
	}
	for i := 0; i < 500; i++ {
		if result[i] != 1.0 {
			t.Fatalf("sample %d = %v, want untouched 1.0", i, result[i])
		}
	}
	for i := 500; i < 800; i++ {
		if result[i] != 0.25 {
			t.Fatalf("sample %d = %v, want appended 0.25", i, result[i])
		}
	}
}

func TestCrossfadeShortSegment(t *testing.T) {
	// Segment shorter than the fade: only len(seg) samples blend, nothing
	// remains to append.
	buf := constBuf(1000, 1.0)
	seg := constBuf(100, 0.0)

	result := Crossfade(buf, seg, 500, 400)

	if len(result) != 1000 {
		t.Errorf("result length = %d, want 1000", len(result))
	}
}

func TestCrossfadeZeroFade(t *testing.T) {
	buf := constBuf(100, 1.0)
	seg := constBuf(50, 0.5)

	result := Crossfade(buf, seg, 10, 0)

	if len(result) != 150 {
		t.Fatalf("result length = %d, want 150", len(result))
	}
	if result[99] != 1.0 || result[100] != 0.5 {
		t.Errorf("zero fade must not blend: got boundary %v, %v", result[99], result[100])
	}
}

func TestApplySmoothingNoOpOnShortBuffer(t *testing.T) {
	buf := constBuf(99, 1.0)
	ApplySmoothing(buf, 50)
	for i, v := range buf {
		if v != 1.0 {
			t.Fatalf("sample %d = %v, want untouched 1.0", i, v)
		}
	}
}

func TestApplySmoothingRamps(t *testing.T) {
	const window = 100
	buf := constBuf(1000, 1.0)
	ApplySmoothing(buf, window)

	if buf[0] != 0 {
		t.Errorf("first sample = %v, want 0", buf[0])
	}
	// Rising edge: buf[k] = k/window.
	for k := 0; k < window; k++ {
		want := float32(k) / float32(window)
		if buf[k] != want {
			t.Fatalf("leading ramp sample %d = %v, want %v", k, buf[k], want)
		}
	}
	// Middle untouched.
	for k := window; k < 1000-window; k++ {
		if buf[k] != 1.0 {
			t.Fatalf("middle sample %d = %v, want 1.0", k, buf[k])
		}
	}
	// Trailing edge, applied from the end inward: buf[len-1-k] = (window-k)/window.
	for k := 0; k < window; k++ {
		want := float32(window-k) / float32(window)
		if buf[999-k] != want {
			t.Fatalf("trailing ramp sample %d = %v, want %v", 999-k, buf[999-k], want)
		}
	}
}
