package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
)

// Normalize converts c to the target format. Multi-channel audio is
// down-mixed first, then resampled, so only one channel is interpolated.
// If c already matches target it is returned unchanged.
func Normalize(c Clip, target Format) Clip {
	if c.Format == target {
		return c
	}
	if len(c.Data)%2 != 0 {
		slog.Warn("audio: odd byte count in PCM data, truncating",
			"bytes", len(c.Data),
			"format", c.Format.String(),
		)
		c.Data = c.Data[:len(c.Data)-1]
	}

	pcm := c.Data
	channels := c.Format.Channels
	if channels == 2 && target.Channels == 1 {
		pcm = StereoToMono(pcm)
		channels = 1
	}
	if c.Format.SampleRate != target.SampleRate && channels == 1 {
		pcm = ResampleMono16(pcm, c.Format.SampleRate, target.SampleRate)
	}
	rate := target.SampleRate
	if channels != 1 {
		// Only mono resampling is supported; keep the source rate.
		rate = c.Format.SampleRate
	}
	if channels == 1 && target.Channels == 2 {
		pcm = MonoToStereo(pcm)
		channels = 2
	}
	return Clip{Data: pcm, Format: Format{SampleRate: rate, Channels: channels}}
}

// MonoToStereo duplicates each mono sample into an L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		j := i * 2
		out[j], out[j+1] = pcm[i], pcm[i+1]
		out[j+2], out[j+3] = pcm[i], pcm[i+1]
	}
	return out
}

// StereoToMono averages L+R per 4-byte frame.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(sampleAt(pcm, i*2))
		r := int32(sampleAt(pcm, i*2+1))
		putSample(out, i, clamp16((l+r)/2))
	}
	return out
}

// ResampleMono16 resamples mono PCM from srcRate to dstRate using linear
// interpolation. The input is returned unchanged when the rates match or are
// invalid.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstSamples {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		s0 := sampleAt(pcm, idx)
		s1 := s0
		if idx+1 < srcSamples {
			s1 = sampleAt(pcm, idx+1)
		}
		putSample(out, i, int32(float64(s0)*(1-frac)+float64(s1)*frac))
	}
	return out
}

// RMS returns the root-mean-square energy of a PCM buffer in sample units
// (0–32767). Returns 0 for buffers shorter than one sample.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(sampleAt(pcm, i))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// String returns a human-readable description such as "16000Hz mono".
func (f Format) String() string {
	ch := "mono"
	switch {
	case f.Channels == 2:
		ch = "stereo"
	case f.Channels > 2:
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(pcm[i*2:]))
}

func putSample(pcm []byte, i int, v int32) {
	binary.LittleEndian.PutUint16(pcm[i*2:], uint16(clamp16(v)))
}

func clamp16(v int32) int32 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return v
}
