package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/cgonzaleza9671/estampas/internal/domain"
)

// SpeakerConfig holds audio output configuration
type SpeakerConfig struct {
	FramesPerBuffer int
}

// GetDefaultSpeakerConfig returns the default output configuration
func GetDefaultSpeakerConfig() SpeakerConfig {
	return SpeakerConfig{
		FramesPerBuffer: 1024,
	}
}

// Speaker plays decoded narration through the default PortAudio output.
// The playback rate steps through the sample buffer, so speed changes also
// shift pitch.
type Speaker struct {
	config SpeakerConfig
	logger *slog.Logger

	mu         sync.Mutex
	samples    []int16 // interleaved stereo
	sampleRate int
	pos        float64 // frame position
	rate       float64
	playing    bool
	ended      bool
	stream     *portaudio.Stream
	buf        []int16
	stop       chan struct{}
	done       chan struct{}
	closed     bool
}

var _ domain.Playback = (*Speaker)(nil)

// OpenSpeaker decodes MP3 data and initializes PortAudio. Close releases it.
func OpenSpeaker(data []byte, config SpeakerConfig, logger *slog.Logger) (*Speaker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.FramesPerBuffer <= 0 {
		config.FramesPerBuffer = GetDefaultSpeakerConfig().FramesPerBuffer
	}

	samples, sampleRate, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	s := newSpeaker(samples, sampleRate, config, logger)
	logger.Debug("speaker opened", "sampleRate", sampleRate, "duration", s.Duration())
	return s, nil
}

func newSpeaker(samples []int16, sampleRate int, config SpeakerConfig, logger *slog.Logger) *Speaker {
	return &Speaker{
		config:     config,
		logger:     logger,
		samples:    samples,
		sampleRate: sampleRate,
		rate:       1,
		buf:        make([]int16, config.FramesPerBuffer*channels),
	}
}

func (s *Speaker) totalFrames() int {
	return len(s.samples) / channels
}

func (s *Speaker) CurrentTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameTime(s.pos)
}

func (s *Speaker) Duration() time.Duration {
	return framesToDuration(int64(s.totalFrames()), s.sampleRate)
}

func (s *Speaker) frameTime(pos float64) time.Duration {
	if s.sampleRate <= 0 {
		return 0
	}
	return time.Duration(pos / float64(s.sampleRate) * float64(time.Second))
}

func (s *Speaker) PlaybackRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

func (s *Speaker) SetPlaybackRate(rate float64) {
	if rate <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = rate
}

func (s *Speaker) Seek(pos time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := pos.Seconds() * float64(s.sampleRate)
	if frame < 0 {
		frame = 0
	}
	if limit := float64(s.totalFrames()); frame > limit {
		frame = limit
	}
	s.pos = frame
	s.ended = false
}

// Play opens the output stream on first use and starts pumping buffers
func (s *Speaker) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("speaker closed")
	}
	if s.playing {
		return nil
	}
	if s.totalFrames() == 0 {
		return domain.ErrNoAudio
	}
	if s.ended || int(s.pos) >= s.totalFrames() {
		s.pos = 0
		s.ended = false
	}

	if s.stream == nil {
		stream, err := portaudio.OpenDefaultStream(0, channels, float64(s.sampleRate), s.config.FramesPerBuffer, s.buf)
		if err != nil {
			return fmt.Errorf("failed to open audio stream: %w", err)
		}
		s.stream = stream
	}
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	s.playing = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.pump(s.stream, s.stop, s.done)
	return nil
}

func (s *Speaker) pump(stream *portaudio.Stream, stop, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			stream.Stop()
			return
		default:
		}

		s.mu.Lock()
		n := s.fillLocked()
		s.mu.Unlock()

		if n > 0 {
			if err := stream.Write(); err != nil {
				s.logger.Warn("error writing audio", "error", err)
			}
		}
		if n < s.config.FramesPerBuffer {
			break
		}
	}

	// track finished on its own
	stream.Stop()
	s.mu.Lock()
	s.ended = true
	s.playing = false
	s.mu.Unlock()
}

// fillLocked copies the next buffer of frames, stepping by rate, and
// zero-fills the rest. Returns the number of frames taken from the track.
func (s *Speaker) fillLocked() int {
	total := s.totalFrames()
	frames := len(s.buf) / channels

	n := 0
	for ; n < frames; n++ {
		idx := int(s.pos)
		if idx >= total {
			break
		}
		s.buf[n*channels] = s.samples[idx*channels]
		s.buf[n*channels+1] = s.samples[idx*channels+1]
		s.pos += s.rate
	}
	for i := n * channels; i < len(s.buf); i++ {
		s.buf[i] = 0
	}
	if int(s.pos) > total {
		s.pos = float64(total)
	}
	return n
}

func (s *Speaker) Pause() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

func (s *Speaker) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.playing
}

func (s *Speaker) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Close stops playback and releases the stream and PortAudio
func (s *Speaker) Close() error {
	s.Pause()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.stream != nil {
		err = s.stream.Close()
		s.stream = nil
	}
	if termErr := portaudio.Terminate(); err == nil {
		err = termErr
	}
	return err
}
