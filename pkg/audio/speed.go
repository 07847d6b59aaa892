package audio

import (
	"math"
	"time"
)

const (
	speedupChunk     = 150 * time.Millisecond
	speedupCrossfade = 25 * time.Millisecond
)

// Speedup shortens c by the factor speed without changing pitch, using the
// chunk-drop-and-crossfade scheme: the clip is cut into fixed chunks, the tail
// of every chunk but the last is removed, and neighbours are joined with a
// short linear crossfade.
//
// speed <= 1 or clips too short to hold two chunks are returned unchanged.
func Speedup(c Clip, speed float64) Clip {
	if speed <= 1 || c.Format.BytesPerSecond() == 0 {
		return c
	}

	chunkMs := float64(speedupChunk.Milliseconds())
	atk := 1 / speed
	var removeMs float64
	if speed < 2 {
		removeMs = math.Floor(chunkMs * (1 - atk) / atk)
	} else {
		removeMs = chunkMs
		chunkMs = math.Floor(atk * chunkMs / (1 - atk))
	}
	crossfadeMs := min(float64(speedupCrossfade.Milliseconds()), removeMs-1)
	if crossfadeMs < 0 {
		crossfadeMs = 0
	}

	step := DurationBytes(msDuration(chunkMs+removeMs), c.Format)
	if step == 0 || len(c.Data) < 2*step {
		return c
	}
	cut := DurationBytes(msDuration(removeMs-crossfadeMs), c.Format)
	fade := DurationBytes(msDuration(crossfadeMs), c.Format)

	var chunks [][]byte
	for off := 0; off < len(c.Data); off += step {
		chunks = append(chunks, c.Data[off:min(off+step, len(c.Data))])
	}
	last := chunks[len(chunks)-1]

	out := make([]byte, 0, int(float64(len(c.Data))/speed)+step)
	for i, ch := range chunks[:len(chunks)-1] {
		piece := ch[:max(len(ch)-cut, 0)]
		if i == 0 {
			out = append(out, piece...)
			continue
		}
		out = appendCrossfade(out, piece, fade, c.Format)
	}
	out = append(out, last...)
	return Clip{Data: out, Format: c.Format}
}

// appendCrossfade appends b to a, overlapping up to fade bytes with a linear
// fade-out of a and fade-in of b.
func appendCrossfade(a, b []byte, fade int, f Format) []byte {
	fs := f.frameSize()
	fade = min(fade, len(a), len(b))
	fade -= fade % fs
	if fade == 0 {
		return append(a, b...)
	}

	frames := fade / fs
	start := len(a) - fade
	for fr := range frames {
		gain := float64(fr) / float64(frames)
		for ch := range f.Channels {
			idx := (start/2 + fr*f.Channels + ch)
			bIdx := fr*f.Channels + ch
			mixed := float64(sampleAt(a, idx))*(1-gain) + float64(sampleAt(b, bIdx))*gain
			putSample(a, idx, int32(mixed))
		}
	}
	return append(a, b[fade:]...)
}

func msDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
