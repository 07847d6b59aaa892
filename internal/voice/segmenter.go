package voice

import (
	"time"

	"github.com/MrWong99/visionreader/pkg/audio"
)

const (
	// minThreshold is the lowest RMS level accepted as speech, so a silent
	// room does not turn breathing into an utterance.
	minThreshold = 300.0

	// noiseMultiplier scales the calibrated noise floor into the speech
	// threshold.
	noiseMultiplier = 2.0

	// preRoll is kept from before the first loud frame so the onset of the
	// first syllable is not clipped.
	preRoll = 300 * time.Millisecond
)

// segmenter cuts one utterance out of a stream of fixed-size frames using an
// energy threshold calibrated on the first frames.
type segmenter struct {
	cfg       timing
	format    audio.Format
	threshold float64

	calibrated time.Duration
	noiseSum   float64
	noiseN     int

	waited   time.Duration
	speaking bool
	spoken   time.Duration
	quiet    time.Duration

	pending [][]byte
	speech  []byte
}

type timing struct {
	calibration     time.Duration
	silence         time.Duration
	maxUtterance    time.Duration
	noSpeechTimeout time.Duration
}

func newSegmenter(cfg timing, f audio.Format) *segmenter {
	return &segmenter{cfg: cfg, format: f}
}

// push consumes one frame and reports whether the utterance is complete.
func (s *segmenter) push(frame []byte) bool {
	d := audio.BytesDuration(len(frame), s.format)
	level := audio.RMS(frame)

	if s.calibrated < s.cfg.calibration {
		s.calibrated += d
		s.noiseSum += level
		s.noiseN++
		if s.calibrated >= s.cfg.calibration {
			s.threshold = max(s.noiseSum/float64(s.noiseN)*noiseMultiplier, minThreshold)
		}
		return false
	}
	if s.threshold == 0 {
		s.threshold = minThreshold
	}

	loud := level >= s.threshold
	if !s.speaking {
		s.waited += d
		s.keepPending(frame)
		if !loud {
			return s.waited >= s.cfg.noSpeechTimeout
		}
		s.speaking = true
		for _, p := range s.pending {
			s.speech = append(s.speech, p...)
		}
		s.pending = nil
		s.spoken = d
		return false
	}

	s.speech = append(s.speech, frame...)
	s.spoken += d
	if loud {
		s.quiet = 0
	} else {
		s.quiet += d
	}
	return s.quiet >= s.cfg.silence || s.spoken >= s.cfg.maxUtterance
}

// keepPending retains the last preRoll worth of frames, frame included.
func (s *segmenter) keepPending(frame []byte) {
	s.pending = append(s.pending, frame)
	var total time.Duration
	for i := len(s.pending) - 1; i >= 0; i-- {
		total += audio.BytesDuration(len(s.pending[i]), s.format)
		if total > preRoll+audio.BytesDuration(len(frame), s.format) {
			s.pending = s.pending[i+1:]
			return
		}
	}
}

// utterance returns the captured speech, or nil when nobody spoke.
func (s *segmenter) utterance() []byte {
	if !s.speaking {
		return nil
	}
	return s.speech
}
