package extend

import "sync/atomic"

// ProgressFunc reports generation progress as elapsed out of total. Returning
// true asks the producer to abort.
type ProgressFunc func(elapsed, total float64) bool

// Processor is the externally visible generation contract: synthesize secs
// seconds of audio for a prompt, reporting progress along the way.
type Processor interface {
	Process(prompt string, secs int, onProgress ProgressFunc) ([]float32, error)
}

// ExtendedProcessor wraps a base Processor that can only synthesize clips up
// to 30 seconds and extends it to arbitrary durations. It satisfies Processor
// itself, so it is substitutable wherever the base would be used.
type ExtendedProcessor struct {
	base       Processor
	plan       Plan
	sampleRate int
}

// NewExtendedProcessor validates the plan template and wraps base. The plan's
// TargetDuration is replaced per request by the requested seconds.
func NewExtendedProcessor(base Processor, plan Plan, sampleRate int) (*ExtendedProcessor, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, &ConfigError{Reason: "sample rate must be positive"}
	}
	return &ExtendedProcessor{base: base, plan: plan, sampleRate: sampleRate}, nil
}

// Process routes requests of 30 seconds or less straight to the base
// processor, abort callback and all. Longer requests run the segment pipeline:
// abort requests coming back through onProgress are latched and honored at the
// next segment boundary. A segment already in flight cannot be stopped; the
// base contract has no cancellation hook once wrapped per segment.
func (p *ExtendedProcessor) Process(prompt string, secs int, onProgress ProgressFunc) ([]float32, error) {
	if secs <= MaxSegmentSeconds {
		return p.base.Process(prompt, secs, onProgress)
	}

	plan := p.plan
	plan.TargetDuration = secs
	gen, err := NewGenerator(plan, p.sampleRate)
	if err != nil {
		return nil, err
	}

	var aborted atomic.Bool
	report := func(frac float64) {
		if onProgress != nil && onProgress(frac, 1.0) {
			aborted.Store(true)
		}
	}
	return gen.GenerateWithCancel(&segmentAdapter{base: p.base}, prompt, report, aborted.Load)
}

// segmentAdapter exposes a Processor as a SegmentGenerator. Requested
// durations are capped at the model's 30-second ceiling and the base
// processor's (elapsed, total) progress is remapped to a plain fraction. The
// abort return is always false here: a single segment runs to completion and
// the pipeline decides between segments whether to continue.
type segmentAdapter struct {
	base Processor
}

func (a *segmentAdapter) GenerateSegment(prompt string, duration, index int, onProgress func(float64)) ([]float32, error) {
	if duration > MaxSegmentSeconds {
		duration = MaxSegmentSeconds
	}
	return a.base.Process(prompt, duration, func(elapsed, total float64) bool {
		if onProgress != nil && total > 0 {
			onProgress(elapsed / total)
		}
		return false
	})
}
