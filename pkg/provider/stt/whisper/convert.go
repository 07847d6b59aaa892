package whisper

import (
	"encoding/binary"

	"github.com/MrWong99/visionreader/pkg/audio"
)

// modelFormat is the input format whisper.cpp models are trained on.
var modelFormat = audio.Format{SampleRate: 16000, Channels: 1}

// clipToFloat32 converts a clip to 16 kHz mono float32 samples normalised to
// [-1.0, 1.0].
func clipToFloat32(c audio.Clip) []float32 {
	return pcmToFloat32(audio.Normalize(c, modelFormat).Data)
}

// pcmToFloat32 converts 16-bit signed little-endian PCM audio to float32
// samples. A trailing odd byte is ignored.
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}
