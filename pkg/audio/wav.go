package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNotWAV is returned by [DecodeWAV] when the input lacks a RIFF/WAVE header.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE stream")

// EncodeWAV wraps PCM in a canonical 44-byte RIFF/WAV header.
func EncodeWAV(pcm []byte, f Format) []byte {
	byteRate := f.BytesPerSecond()
	blockAlign := f.frameSize()
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)
	le := binary.LittleEndian

	copy(buf[0:4], "RIFF")
	le.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	le.PutUint32(buf[16:20], 16)
	le.PutUint16(buf[20:22], 1) // PCM
	le.PutUint16(buf[22:24], uint16(f.Channels))
	le.PutUint32(buf[24:28], uint32(f.SampleRate))
	le.PutUint32(buf[28:32], uint32(byteRate))
	le.PutUint16(buf[32:34], uint16(blockAlign))
	le.PutUint16(buf[34:36], BitsPerSample)

	copy(buf[36:40], "data")
	le.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)
	return buf
}

// DecodeWAV walks the RIFF chunks of a PCM WAV file and returns its audio as
// a [Clip]. Only 16-bit integer PCM is accepted.
func DecodeWAV(wav []byte) (Clip, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return Clip{}, ErrNotWAV
	}

	var (
		f        Format
		foundFmt bool
		le       = binary.LittleEndian
	)
	offset := 12
	for offset+8 <= len(wav) {
		id := string(wav[offset : offset+4])
		size := int(le.Uint32(wav[offset+4 : offset+8]))
		body := offset + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(wav) {
				return Clip{}, errors.New("audio: truncated fmt chunk")
			}
			if tag := le.Uint16(wav[body:]); tag != 1 && tag != 0xFFFE {
				return Clip{}, fmt.Errorf("audio: unsupported WAV encoding tag %#x", tag)
			}
			f.Channels = int(le.Uint16(wav[body+2:]))
			f.SampleRate = int(le.Uint32(wav[body+4:]))
			if bits := le.Uint16(wav[body+14:]); bits != BitsPerSample {
				return Clip{}, fmt.Errorf("audio: unsupported WAV bit depth %d", bits)
			}
			foundFmt = true
		case "data":
			if !foundFmt {
				return Clip{}, errors.New("audio: WAV data chunk precedes fmt chunk")
			}
			end := body + size
			// Streaming encoders write 0 or 0xFFFFFFFF when the length is unknown.
			if size == 0 || end > len(wav) || end < body {
				end = len(wav)
			}
			pcm := wav[body:end]
			pcm = pcm[:len(pcm)-len(pcm)%f.frameSize()]
			return Clip{Data: pcm, Format: f}, nil
		}

		offset = body + size
		if size%2 != 0 {
			offset++
		}
	}
	return Clip{}, errors.New("audio: WAV missing data chunk")
}
