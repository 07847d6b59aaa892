// Package audio holds the PCM plumbing shared by playback and capture: the
// [Clip] and [Format] value types, WAV encode/decode, format conversion, the
// playback-speed time stretch, and subprocess-backed [Player] and [Recorder]
// implementations for ALSA devices.
//
// All PCM in this package is 16-bit signed little-endian.
package audio

import "time"

// BitsPerSample is fixed at 16 for every buffer handled by this package.
const BitsPerSample = 16

// Format describes the sample rate and channel count of a PCM buffer.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond returns the byte rate of f, or 0 for an invalid format.
func (f Format) BytesPerSecond() int {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	return f.SampleRate * f.Channels * (BitsPerSample / 8)
}

// frameSize is the number of bytes in one sample frame (all channels).
func (f Format) frameSize() int {
	if f.Channels <= 0 {
		return 2
	}
	return f.Channels * (BitsPerSample / 8)
}

// Clip is a complete, decoded utterance ready for playback.
type Clip struct {
	// Data is raw PCM.
	Data []byte

	// Format describes Data.
	Format Format
}

// Duration returns the playback length of c at normal speed.
func (c Clip) Duration() time.Duration {
	return BytesDuration(len(c.Data), c.Format)
}

// Empty reports whether c has no audio.
func (c Clip) Empty() bool { return len(c.Data) < c.Format.frameSize() }

// BytesDuration returns how long n bytes of PCM in format f last.
// Returns 0 for invalid inputs.
func BytesDuration(n int, f Format) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

// DurationBytes returns the number of bytes covering d in format f, rounded
// down to a whole frame.
func DurationBytes(d time.Duration, f Format) int {
	bps := f.BytesPerSecond()
	if bps == 0 || d <= 0 {
		return 0
	}
	n := int(int64(d) * int64(bps) / int64(time.Second))
	return n - n%f.frameSize()
}
