package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
)

// EncodeWAV wraps mono float samples in a PCM16 WAV container.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteWAVTo(&buf, samples, sampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAVTo writes mono float samples to out as a PCM16 WAV stream.
func WriteWAVTo(out io.Writer, samples []float32, sampleRate int) error {
	const audioFormat = 1 // PCM

	pcm := SamplesToBytes(Float32ToPCM16(samples))
	dataSize := uint32(len(pcm))
	byteRate := uint32(sampleRate * Channels * BitDepth / 8)
	blockAlign := uint16(Channels * BitDepth / 8)

	w := bufio.NewWriter(out)

	// RIFF header.
	if _, err := w.WriteString("RIFF"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(36)+dataSize); err != nil {
		return err
	}
	if _, err := w.WriteString("WAVE"); err != nil {
		return err
	}

	// fmt chunk.
	if _, err := w.WriteString("fmt "); err != nil {
		return err
	}
	for _, v := range []any{
		uint32(16),
		uint16(audioFormat),
		uint16(Channels),
		uint32(sampleRate),
		byteRate,
		blockAlign,
		uint16(BitDepth),
	} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	// data chunk.
	if _, err := w.WriteString("data"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, dataSize); err != nil {
		return err
	}
	if _, err := w.Write(pcm); err != nil {
		return err
	}

	return w.Flush()
}
