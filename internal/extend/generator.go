package extend

import "log"

// SegmentGenerator produces one bounded-duration segment of audio.
//
// Implementations must return roughly duration*sampleRate mono float32 samples
// and may call onProgress zero or more times with increasing values in [0,1]
// reporting their own progress. Failures abort the whole request; the caller
// does not retry.
type SegmentGenerator interface {
	GenerateSegment(prompt string, duration, index int, onProgress func(float64)) ([]float32, error)
}

// Generator stitches bounded segments into arbitrarily long audio using
// overlap-add crossfading. A Generator is immutable after construction and
// safe to share across concurrent requests; each call owns its own buffer.
type Generator struct {
	plan       Plan
	sampleRate int
}

// NewGenerator validates the plan and returns a generator for the given
// sample rate.
func NewGenerator(plan Plan, sampleRate int) (*Generator, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, &ConfigError{Reason: "sample rate must be positive"}
	}
	return &Generator{plan: plan, sampleRate: sampleRate}, nil
}

// Plan returns the generator's plan.
func (g *Generator) Plan() Plan {
	return g.plan
}

// Generate runs the segment loop: each segment is requested with a positional
// prompt hint, blended into the accumulated buffer, and the result is
// truncated to exactly TargetDuration*sampleRate samples. A shorter result can
// only happen when the backend under-delivers samples and is returned as-is.
// onProgress receives monotonically non-decreasing values in [0,1].
func (g *Generator) Generate(gen SegmentGenerator, prompt string, onProgress func(float64)) ([]float32, error) {
	return g.GenerateWithCancel(gen, prompt, onProgress, nil)
}

// GenerateWithCancel is Generate with a cancel predicate polled before each
// segment. When it reports true the run stops with ErrAborted and the partial
// buffer is discarded. Segments themselves cannot be interrupted; a pending
// segment always runs to completion.
func (g *Generator) GenerateWithCancel(gen SegmentGenerator, prompt string, onProgress func(float64), cancelled func() bool) ([]float32, error) {
	n := g.plan.SegmentCount()
	log.Printf("Generating %d segments for %d-second audio", n, g.plan.TargetDuration)

	var out []float32
	for i := 0; i < n; i++ {
		if cancelled != nil && cancelled() {
			return nil, ErrAborted
		}

		base := float64(i) / float64(n)
		segPrompt := segmentPrompt(prompt, i, n)
		log.Printf("Generating segment %d/%d: %s", i+1, n, segPrompt)

		seg, err := gen.GenerateSegment(segPrompt, g.plan.SegmentDuration, i, func(p float64) {
			if onProgress != nil {
				onProgress(base + p/float64(n))
			}
		})
		if err != nil {
			return nil, &SegmentError{Index: i, Err: err}
		}

		if i == 0 {
			out = seg
		} else {
			overlap := g.plan.OverlapDuration * g.sampleRate
			fade := int(g.plan.CrossfadeDuration * float64(g.sampleRate))
			out = Crossfade(out, seg, overlap, fade)
		}
	}

	if target := g.plan.TargetDuration * g.sampleRate; len(out) > target {
		out = out[:target]
	}
	log.Printf("Extended generation complete: %d samples", len(out))
	return out, nil
}

// segmentPrompt appends a positional hint to the base prompt so long pieces
// develop over time. The conditions can coincide for small segment counts;
// the first match wins and only one hint is applied.
func segmentPrompt(prompt string, index, total int) string {
	switch {
	case index == 0:
		return prompt + " (introduction, opening)"
	case index == total-1:
		return prompt + " (conclusion, ending, outro)"
	case index == total/2:
		return prompt + " (bridge, development, variation)"
	case index < total/3:
		return prompt + " (building, developing)"
	default:
		return prompt
	}
}
