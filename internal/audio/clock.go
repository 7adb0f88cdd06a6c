package audio

import (
	"sync"
	"time"

	"github.com/cgonzaleza9671/estampas/internal/domain"
)

// ClockPlayer is a silent playback collaborator: a position that advances
// with wall time scaled by the playback rate. It backs the "silent" player
// backend and headless reading when no audio device is available.
type ClockPlayer struct {
	mu       sync.Mutex
	now      func() time.Time
	duration time.Duration
	base     time.Duration // position at anchor
	anchor   time.Time
	rate     float64
	playing  bool
}

var _ domain.Playback = (*ClockPlayer)(nil)

// NewClockPlayer creates a paused clock of the given length
func NewClockPlayer(duration time.Duration) *ClockPlayer {
	return newClockPlayer(duration, time.Now)
}

func newClockPlayer(duration time.Duration, now func() time.Time) *ClockPlayer {
	return &ClockPlayer{
		now:      now,
		duration: duration,
		rate:     1,
	}
}

// positionLocked returns the clamped position; caller holds mu
func (p *ClockPlayer) positionLocked() time.Duration {
	pos := p.base
	if p.playing {
		elapsed := p.now().Sub(p.anchor)
		pos += time.Duration(float64(elapsed) * p.rate)
	}
	if pos < 0 {
		return 0
	}
	if p.duration > 0 && pos > p.duration {
		return p.duration
	}
	return pos
}

// reanchorLocked freezes the current position as the new base
func (p *ClockPlayer) reanchorLocked() {
	p.base = p.positionLocked()
	p.anchor = p.now()
}

func (p *ClockPlayer) endedLocked() bool {
	return p.duration > 0 && p.positionLocked() >= p.duration
}

func (p *ClockPlayer) CurrentTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *ClockPlayer) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

func (p *ClockPlayer) PlaybackRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

func (p *ClockPlayer) SetPlaybackRate(rate float64) {
	if rate <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reanchorLocked()
	p.rate = rate
}

func (p *ClockPlayer) Seek(pos time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pos < 0 {
		pos = 0
	}
	if p.duration > 0 && pos > p.duration {
		pos = p.duration
	}
	p.base = pos
	p.anchor = p.now()
}

// Play starts the clock. An ended clock restarts from zero.
func (p *ClockPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.duration <= 0 {
		return domain.ErrNoAudio
	}
	if p.endedLocked() {
		p.base = 0
	} else {
		p.base = p.positionLocked()
	}
	p.anchor = p.now()
	p.playing = true
	return nil
}

func (p *ClockPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return
	}
	p.reanchorLocked()
	p.playing = false
}

func (p *ClockPlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.playing || p.endedLocked()
}

func (p *ClockPlayer) Ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endedLocked()
}

func (p *ClockPlayer) Close() error {
	p.Pause()
	return nil
}
