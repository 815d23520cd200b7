package extend

// Crossfade merges seg into the tail of buf with a linear amplitude ramp and
// returns the combined buffer. The last crossfadeSamples of buf are blended
// with the first samples of seg (fade position 0 keeps buf, approaching 1
// keeps seg), then the unconsumed remainder of seg is appended. This is a
// plain amplitude interpolation, not an equal-power fade.
//
// When buf holds fewer than overlapSamples there is not enough history to
// overlap; the buffers are concatenated without blending.
func Crossfade(buf, seg []float32, overlapSamples, crossfadeSamples int) []float32 {
	if len(buf) < overlapSamples {
		return append(buf, seg...)
	}

	start := len(buf) - crossfadeSamples
	if start < 0 {
		start = 0
	}

	blend := crossfadeSamples
	if len(seg) < blend {
		blend = len(seg)
	}
	for k := 0; k < blend; k++ {
		idx := start + k
		if idx >= len(buf) {
			break
		}
		p := float32(k) / float32(crossfadeSamples)
		buf[idx] = buf[idx]*(1-p) + seg[k]*p
	}

	return append(buf, seg[blend:]...)
}

// ApplySmoothing ramps the buffer's edges to suppress clicks at hard
// boundaries. The first windowSize samples are scaled by a rising linear ramp
// and the last windowSize samples by a falling ramp applied from the end
// inward. Buffers shorter than two windows are left untouched.
func ApplySmoothing(buf []float32, windowSize int) {
	if windowSize <= 0 || len(buf) < 2*windowSize {
		return
	}

	for k := 0; k < windowSize; k++ {
		buf[k] *= float32(k) / float32(windowSize)
	}
	last := len(buf) - 1
	for k := 0; k < windowSize; k++ {
		buf[last-k] *= float32(windowSize-k) / float32(windowSize)
	}
}
