package vad

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/smallnest/ringbuffer"

	"github.com/hearthlabs/hearth/pkg/Logger"
)

// Segmenter constants, sized to 100 ms client chunks.
const (
	// Consecutive speech chunks required to latch "speaking" (~200 ms).
	SpeechStartChunks = 2
	// Consecutive silence chunks that end an utterance (~1 s).
	SilenceEndChunks = 10
	// Minimum speech chunks for an utterance to be emitted (~300 ms);
	// buffered trailing silence does not count.
	MinSpeechChunks = 3
	// Hard cap on utterance length; breach forces an emit.
	MaxUtteranceMS = 30000
)

const (
	stateIdle     = "idle"
	stateSpeaking = "speaking"

	eventLatch  = "latch"
	eventFinish = "finish"
)

// bytes per millisecond of 16 kHz mono signed-16 PCM
const segBytesPerMS = 32

// Segmenter is the per-session utterance boundary state machine. It latches
// into speaking after SpeechStartChunks consecutive speech chunks, captures
// trailing silence, and declares end-of-speech after SilenceEndChunks of
// silence.
type Segmenter struct {
	sessionID string
	sm        *fsm.FSM
	buf       *ringbuffer.RingBuffer

	speechRun    int
	silenceRun   int
	chunks       int
	speechChunks int
	bufferedMS   int

	logger *Logger.Logger
}

func NewSegmenter(sessionID string, logger *Logger.Logger) *Segmenter {
	// Ring sized past the hard cap so the force-emit always fires first.
	capacity := (MaxUtteranceMS + 2000) * segBytesPerMS
	return &Segmenter{
		sessionID: sessionID,
		sm: fsm.NewFSM(
			stateIdle,
			fsm.Events{
				{Name: eventLatch, Src: []string{stateIdle}, Dst: stateSpeaking},
				{Name: eventFinish, Src: []string{stateSpeaking}, Dst: stateIdle},
			},
			fsm.Callbacks{},
		),
		buf:    ringbuffer.New(capacity).SetBlocking(false),
		logger: logger,
	}
}

// Speaking reports whether the session has latched into an utterance.
func (s *Segmenter) Speaking() bool {
	return s.sm.Current() == stateSpeaking
}

// BufferedChunks reports how many chunks are held for the open utterance.
func (s *Segmenter) BufferedChunks() int {
	return s.chunks
}

// Push feeds one chunk and its detector verdict through the state machine.
// When an utterance completes, the concatenated PCM is returned with
// emitted=true and the session state is fully reset. A too-short utterance
// resets without emitting.
func (s *Segmenter) Push(ctx context.Context, chunk []byte, speech bool) (pcm []byte, emitted bool) {
	if speech {
		s.speechRun++
		s.silenceRun = 0
		s.append(chunk)
		s.speechChunks++
		if !s.Speaking() && s.speechRun >= SpeechStartChunks {
			if err := s.sm.Event(ctx, eventLatch); err == nil {
				s.logger.Infow("speech_started", "session_id", s.sessionID)
			}
		}
		if s.Speaking() && s.bufferedMS >= MaxUtteranceMS {
			s.logger.Warnw("utterance_cap_reached", "session_id", s.sessionID, "buffered_ms", s.bufferedMS)
			return s.emit(), true
		}
		return nil, false
	}

	s.silenceRun++
	s.speechRun = 0
	if s.Speaking() {
		s.append(chunk) // capture trailing silence
	}
	if s.Speaking() && s.silenceRun >= SilenceEndChunks {
		// Trailing silence is buffered for audio quality but does not count
		// toward the minimum speech length.
		if s.speechChunks >= MinSpeechChunks {
			return s.emit(), true
		}
		s.logger.Infow("too_short", "session_id", s.sessionID, "speech_chunks", s.speechChunks)
		s.reset()
	}
	return nil, false
}

func (s *Segmenter) append(chunk []byte) {
	if _, err := s.buf.Write(chunk); err != nil {
		s.logger.Errorw("segment_buffer_write_failed", "session_id", s.sessionID, "error", err)
		return
	}
	s.chunks++
	s.bufferedMS += len(chunk) / segBytesPerMS
}

func (s *Segmenter) emit() []byte {
	pcm := make([]byte, s.buf.Length())
	if _, err := s.buf.Read(pcm); err != nil {
		s.logger.Errorw("segment_buffer_read_failed", "session_id", s.sessionID, "error", err)
	}
	s.reset()
	return pcm
}

// reset clears all per-session state; emission always implies reset.
func (s *Segmenter) reset() {
	s.buf.Reset()
	s.speechRun = 0
	s.silenceRun = 0
	s.chunks = 0
	s.speechChunks = 0
	s.bufferedMS = 0
	s.sm.SetState(stateIdle)
}
