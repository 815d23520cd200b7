package extend

// MaxSegmentSeconds is the longest clip a single synthesis call can produce.
const MaxSegmentSeconds = 30

// Plan configures long-form generation: how long the result should be and how
// the bounded segments overlap and blend into each other.
type Plan struct {
	TargetDuration    int     // seconds of audio requested
	SegmentDuration   int     // seconds per segment, capped by the model at 30
	OverlapDuration   int     // seconds of overlap between adjacent segments
	CrossfadeDuration float64 // seconds of linear crossfade inside the overlap
}

// DefaultPlan returns generation parameters that leave headroom below the
// model's 30-second ceiling.
func DefaultPlan() Plan {
	return Plan{
		TargetDuration:    240,
		SegmentDuration:   28,
		OverlapDuration:   4,
		CrossfadeDuration: 2.0,
	}
}

// Validate checks the plan's field ordering. An invalid plan must never reach
// the generation loop.
func (p Plan) Validate() error {
	if p.SegmentDuration > MaxSegmentSeconds {
		return &ConfigError{Reason: "segment duration cannot exceed 30 seconds"}
	}
	if p.OverlapDuration >= p.SegmentDuration {
		return &ConfigError{Reason: "overlap duration must be less than segment duration"}
	}
	if p.CrossfadeDuration > float64(p.OverlapDuration) {
		return &ConfigError{Reason: "crossfade duration must not exceed overlap duration"}
	}
	return nil
}

// SegmentCount returns how many segments the plan needs. Each segment advances
// the timeline by SegmentDuration-OverlapDuration seconds; the count is the
// ceiling division of the target by that step, and never less than one.
func (p Plan) SegmentCount() int {
	step := p.SegmentDuration - p.OverlapDuration
	n := (p.TargetDuration + step - 1) / step
	if n < 1 {
		n = 1
	}
	return n
}
