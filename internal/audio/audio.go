package audio

import "time"

const (
	Channels      = 1 // generation output is mono
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
)

// FrameSize returns the number of samples in one 20ms preview frame at the
// given sample rate.
func FrameSize(sampleRate int) int {
	return sampleRate * int(FrameDuration/time.Millisecond) / 1000
}
