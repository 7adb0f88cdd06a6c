package narration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cgonzaleza9671/estampas/internal/coexist"
	"github.com/cgonzaleza9671/estampas/internal/domain"
)

var (
	// ErrUnavailable is returned for seeks when the model is empty or the
	// audio duration is unknown
	ErrUnavailable = errors.New("synchronization unavailable")

	// ErrClosed is returned by commands issued after Close
	ErrClosed = errors.New("syncer closed")
)

// publisher abstracts the coexistence bus (consumer-defined interface)
type publisher interface {
	Publish(event coexist.Event)
}

// ticker abstracts time.Ticker so tests can drive the loop by hand
type ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type timeTicker struct{ *time.Ticker }

func (t timeTicker) Chan() <-chan time.Time { return t.C }

func newTimeTicker(d time.Duration) ticker { return timeTicker{time.NewTicker(d)} }

// Option configures a Syncer
type Option func(*Syncer)

// WithObserver sets the state observer
func WithObserver(o Observer) Option {
	return func(s *Syncer) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithSource sets the id published with coexistence events
func WithSource(id string) Option {
	return func(s *Syncer) { s.source = id }
}

func withTicker(f func(time.Duration) ticker) Option {
	return func(s *Syncer) { s.newTicker = f }
}

// snapshot is a state plus the version it was committed at
type snapshot struct {
	state   SyncState
	version uint64
}

// Syncer is the playback sync loop for one story. It samples the playback
// collaborator every RefreshInterval while Running and moves the active token.
type Syncer struct {
	model    *WeightModel
	player   domain.Playback
	params   Params
	bus      publisher
	source   string
	observer Observer
	logger   *slog.Logger

	newTicker func(time.Duration) ticker

	tickMu sync.Mutex // one sample-and-apply at a time

	mu      sync.Mutex
	state   SyncState
	run     uint64 // bumped on every start/stop; a tick of an older run is dropped
	seekSeq uint64 // bumped on every seek; a sample taken before it is dropped
	floor   int    // lowest index ticks may resolve after a seek, -1 = none
	version uint64
	cancel  context.CancelFunc
	closed  bool

	notifyMu sync.Mutex
	notified uint64

	wg sync.WaitGroup
}

// NewSyncer creates an idle syncer over model and player. bus may be nil.
func NewSyncer(model *WeightModel, player domain.Playback, bus publisher, params Params, logger *slog.Logger, opts ...Option) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if model == nil {
		model = &WeightModel{}
	}
	s := &Syncer{
		model:     model,
		player:    player,
		params:    params.withDefaults(),
		bus:       bus,
		observer:  NoOpObserver{},
		logger:    logger,
		newTicker: newTimeTicker,
		state:     ResetState(),
		floor:     -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Model returns the token table the syncer resolves against
func (s *Syncer) Model() *WeightModel { return s.model }

// State returns the current sync state
func (s *Syncer) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running reports whether the loop is ticking
func (s *Syncer) Running() bool {
	return s.State().Loop == Running
}

// Play starts the audio and the loop. A rejected play leaves the loop idle.
func (s *Syncer) Play() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state.Loop == Running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.player.Play(); err != nil {
		s.logger.Warn("narration playback rejected", "source", s.source, "error", err)
		return fmt.Errorf("%w: %v", domain.ErrPlaybackRejected, err)
	}

	s.start()
	return nil
}

// Pause halts the audio and the loop, keeping the highlighted token
func (s *Syncer) Pause() {
	s.player.Pause()
	s.stopLoop()
}

// Toggle plays when idle and pauses when running
func (s *Syncer) Toggle() error {
	if s.Running() {
		s.Pause()
		return nil
	}
	return s.Play()
}

// Stop pauses, rewinds and clears the highlight
func (s *Syncer) Stop() {
	s.Pause()
	s.player.Seek(0)

	s.mu.Lock()
	s.seekSeq++
	s.floor = -1
	s.state.ActiveTokenIndex = -1
	s.state.ProgressPercent = 0
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// SetRate changes the reading speed. The loop samples the audio clock, so
// the weight model needs no adjustment.
func (s *Syncer) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	s.player.SetPlaybackRate(rate)
	s.logger.Debug("narration rate changed", "source", s.source, "rate", rate)
}

// Rate returns the current playback rate
func (s *Syncer) Rate() float64 {
	return s.player.PlaybackRate()
}

// Cue moves audio and highlight to the start of token index without
// changing the loop state.
func (s *Syncer) Cue(index int) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	duration := s.player.Duration()
	pos, ok := s.model.ResolveTime(index, duration)
	if !ok {
		return ErrUnavailable
	}
	s.player.Seek(pos)

	s.mu.Lock()
	s.seekSeq++
	s.floor = index
	s.state.ActiveTokenIndex = index
	s.state.ProgressPercent = percent(pos, duration)
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// SeekToToken is a manual word pick: the token becomes active immediately,
// the audio seeks to its start, and the loop starts if it was idle.
func (s *Syncer) SeekToToken(index int) error {
	if err := s.Cue(index); err != nil {
		return err
	}
	if s.Running() {
		return nil
	}
	return s.Play()
}

// Sample runs one tick synchronously: it reads the audio clock and moves the
// highlight. It returns false when the loop is idle afterwards.
func (s *Syncer) Sample() bool {
	s.mu.Lock()
	run := s.run
	running := s.state.Loop == Running
	s.mu.Unlock()
	if !running {
		return false
	}
	return s.tick(run)
}

// Close tears the loop down and waits for its goroutine. Safe to call more
// than once. Must not be called from an Observer.
func (s *Syncer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wg.Wait()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.stopLoop()
	s.wg.Wait()
}

func (s *Syncer) start() {
	s.mu.Lock()
	if s.closed || s.state.Loop == Running {
		s.mu.Unlock()
		return
	}
	s.run++
	run := s.run
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.state.Loop = Running
	snap := s.commitLocked()
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Debug("narration sync started", "source", s.source)
	s.publish(coexist.NarrationStarted)
	s.notify(snap)

	go s.loop(ctx, run)
}

func (s *Syncer) loop(ctx context.Context, run uint64) {
	defer s.wg.Done()

	t := s.newTicker(s.params.RefreshInterval)
	defer t.Stop()

	if !s.tick(run) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			if !s.tick(run) {
				return
			}
		}
	}
}

// tick samples the audio clock for run and applies the resolved index.
// Returns false once run is no longer current.
func (s *Syncer) tick(run uint64) bool {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.mu.Lock()
	if run != s.run || s.state.Loop != Running {
		s.mu.Unlock()
		return false
	}
	seq := s.seekSeq
	s.mu.Unlock()

	if s.player.Ended() {
		s.halt(run, true)
		return false
	}
	if s.player.Paused() {
		s.halt(run, false)
		return false
	}

	current := s.player.CurrentTime()
	duration := s.player.Duration()

	s.mu.Lock()
	if run != s.run || s.state.Loop != Running {
		s.mu.Unlock()
		return false
	}
	if seq != s.seekSeq {
		// sampled before a manual seek landed
		s.mu.Unlock()
		return true
	}

	index, pct, ok := s.resolveLocked(current, duration)
	if !ok || (index == s.state.ActiveTokenIndex && pct == s.state.ProgressPercent) {
		s.mu.Unlock()
		return true
	}
	s.state.ActiveTokenIndex = index
	s.state.ProgressPercent = pct
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// resolveLocked maps an audio position to a token index and progress percent
func (s *Syncer) resolveLocked(current, duration time.Duration) (int, int, bool) {
	if s.model.Empty() || duration <= 0 {
		return -1, 0, false
	}

	t := current + s.params.LatencyOffset
	if t < 0 {
		t = 0
	}
	progress := clamp01(t.Seconds() / duration.Seconds())
	index := s.model.ResolveProgress(progress)

	if s.floor >= 0 {
		if index < s.floor {
			index = s.floor
		} else {
			s.floor = -1
		}
	}
	return index, int(progress * 100), true
}

// halt moves run to Idle after the audio paused or ended on its own
func (s *Syncer) halt(run uint64, ended bool) {
	s.mu.Lock()
	if run != s.run || s.state.Loop != Running {
		s.mu.Unlock()
		return
	}
	s.run++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state.Loop = Idle
	if ended && !s.model.Empty() {
		s.state.ActiveTokenIndex = s.model.Len() - 1
		s.state.ProgressPercent = 100
	}
	snap := s.commitLocked()
	s.mu.Unlock()

	s.logger.Debug("narration sync halted", "source", s.source, "ended", ended)
	s.publish(coexist.NarrationStopped)
	s.notify(snap)
}

func (s *Syncer) stopLoop() {
	s.mu.Lock()
	if s.state.Loop != Running {
		s.mu.Unlock()
		return
	}
	s.run++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state.Loop = Idle
	snap := s.commitLocked()
	s.mu.Unlock()

	s.logger.Debug("narration sync stopped", "source", s.source)
	s.publish(coexist.NarrationStopped)
	s.notify(snap)
}

func (s *Syncer) commitLocked() snapshot {
	s.version++
	return snapshot{state: s.state, version: s.version}
}

// notify delivers snap unless a newer state was already delivered
func (s *Syncer) notify(snap snapshot) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if snap.version <= s.notified {
		return
	}
	s.notified = snap.version
	s.observer.OnSync(snap.state)
}

func (s *Syncer) publish(kind coexist.Kind) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(coexist.Event{Kind: kind, Source: s.source})
}

func percent(pos, duration time.Duration) int {
	if duration <= 0 {
		return 0
	}
	return int(clamp01(pos.Seconds()/duration.Seconds()) * 100)
}
