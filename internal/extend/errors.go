package extend

import (
	"errors"
	"fmt"
)

// ErrAborted is returned when the caller's progress callback requested an
// abort and the run stopped at the next segment boundary.
var ErrAborted = errors.New("generation aborted")

// ConfigError reports an invalid generation plan. Generation never starts
// with an invalid plan.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid generation plan: " + e.Reason
}

// SegmentError reports that a single segment's generation failed. The whole
// request is aborted; partial buffers are discarded.
type SegmentError struct {
	Index int
	Err   error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d generation failed: %v", e.Index, e.Err)
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}
