package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cgonzaleza9671/estampas/internal/coexist"
	"github.com/cgonzaleza9671/estampas/internal/domain"
	"github.com/cgonzaleza9671/estampas/internal/narration"
)

// playbackOpener prepares the audio for a story (consumer-defined interface)
type playbackOpener interface {
	Open(ctx context.Context, story domain.Story) (domain.Playback, error)
}

// positionStore persists reading positions (consumer-defined interface)
type positionStore interface {
	GetPosition(storyID string) (domain.ReadingPosition, bool)
	SavePosition(pos domain.ReadingPosition) error
}

// ReaderConfig tunes the reader
type ReaderConfig struct {
	Params      narration.Params
	Rates       []float64 // ascending rate steps cycled by NextRate/PrevRate
	DefaultRate float64
}

// ReaderService opens stories for narrated reading. At most one session is
// open at a time; opening another story closes the current one.
type ReaderService struct {
	opener    playbackOpener
	models    narration.ModelCache
	positions positionStore
	bus       *coexist.Bus
	config    ReaderConfig
	logger    *slog.Logger

	mu      sync.Mutex
	current *ReaderSession
}

// NewReaderService creates a new reader service. models and positions may be nil.
func NewReaderService(
	opener playbackOpener,
	models narration.ModelCache,
	positions positionStore,
	bus *coexist.Bus,
	config ReaderConfig,
	logger *slog.Logger,
) *ReaderService {
	if logger == nil {
		logger = slog.Default()
	}
	if len(config.Rates) == 0 {
		config.Rates = []float64{1}
	}
	if config.DefaultRate <= 0 {
		config.DefaultRate = 1
	}
	return &ReaderService{
		opener:    opener,
		models:    models,
		positions: positions,
		bus:       bus,
		config:    config,
		logger:    logger,
	}
}

// Open builds the weight model for story, opens its audio and restores the
// saved position. A story without audio opens as text only.
func (s *ReaderService) Open(ctx context.Context, story *domain.Story, observer narration.Observer) (*ReaderSession, error) {
	if story == nil {
		return nil, domain.ErrStoryNotFound
	}
	s.Close()

	model := narration.LoadOrBuild(s.models, story.Text, s.config.Params, s.logger)

	sess := &ReaderSession{
		service: s,
		story:   story,
		model:   model,
		rates:   s.config.Rates,
	}

	player, err := s.opener.Open(ctx, *story)
	switch {
	case errors.Is(err, domain.ErrNoAudio):
		s.logger.Info("story opened as text only", "story", story.ID)
	case err != nil:
		s.logger.Error("failed to open narration audio", "story", story.ID, "error", err)
		return nil, fmt.Errorf("failed to open narration audio: %w", err)
	default:
		sess.attach(player, observer, s.config.Params)
		sess.restore(s.config.DefaultRate)
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.logger.Info("story opened", "story", story.ID, "title", story.Title, "tokens", model.Len())
	return sess, nil
}

// Reload reopens the current session with new text for the same story,
// keeping the playback position and rate where the text allows it.
func (s *ReaderService) Reload(ctx context.Context, story *domain.Story, observer narration.Observer) (*ReaderSession, error) {
	cur := s.Current()
	if cur == nil || story == nil || cur.story.ID != story.ID {
		return nil, domain.ErrStoryNotFound
	}
	// Close saves the position that Open restores
	return s.Open(ctx, story, observer)
}

// Current returns the open session, nil if none
func (s *ReaderService) Current() *ReaderSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close closes the open session, if any
func (s *ReaderService) Close() {
	s.mu.Lock()
	cur := s.current
	s.current = nil
	s.mu.Unlock()

	if cur != nil {
		cur.Close()
	}
}

func (s *ReaderService) release(sess *ReaderSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == sess {
		s.current = nil
	}
}

// ReaderSession is one open story: its weight model, audio and sync loop
type ReaderSession struct {
	service *ReaderService
	story   *domain.Story
	model   *narration.WeightModel
	rates   []float64

	player domain.Playback   // nil for text-only stories
	syncer *narration.Syncer // nil for text-only stories
	unsub  func()

	closeOnce sync.Once
}

func (r *ReaderSession) attach(player domain.Playback, observer narration.Observer, params narration.Params) {
	s := r.service
	r.player = player

	var bus interface{ Publish(coexist.Event) }
	if s.bus != nil {
		bus = s.bus
	}
	r.syncer = narration.NewSyncer(r.model, player, bus, params, s.logger,
		narration.WithObserver(observer),
		narration.WithSource(r.story.ID),
	)

	if s.bus != nil {
		r.unsub = s.bus.Subscribe(coexist.MediaStarted, func(e coexist.Event) {
			if r.syncer.Running() {
				s.logger.Debug("pausing narration for media", "story", r.story.ID, "media", e.Source)
				r.syncer.Pause()
			}
		})
	}
}

func (r *ReaderSession) restore(defaultRate float64) {
	rate := defaultRate
	if r.service.positions != nil {
		if pos, ok := r.service.positions.GetPosition(r.story.ID); ok {
			if pos.Rate > 0 {
				rate = pos.Rate
			}
			if pos.TokenIndex >= 0 && pos.TokenIndex < r.model.Len() {
				if err := r.syncer.Cue(pos.TokenIndex); err != nil {
					r.service.logger.Debug("saved position not restored", "story", r.story.ID, "error", err)
				}
			}
		}
	}
	r.syncer.SetRate(rate)
}

// Story returns the open story
func (r *ReaderSession) Story() *domain.Story { return r.story }

// Model returns the story's token table
func (r *ReaderSession) Model() *narration.WeightModel { return r.model }

// HasAudio reports whether the session can narrate
func (r *ReaderSession) HasAudio() bool { return r.syncer != nil }

// State returns the current sync state
func (r *ReaderSession) State() narration.SyncState {
	if r.syncer == nil {
		return narration.ResetState()
	}
	return r.syncer.State()
}

// Position returns the audio position and total length
func (r *ReaderSession) Position() (time.Duration, time.Duration) {
	if r.player == nil {
		return 0, 0
	}
	return r.player.CurrentTime(), r.player.Duration()
}

// Play starts narration
func (r *ReaderSession) Play() error {
	if r.syncer == nil {
		return domain.ErrNoAudio
	}
	return r.syncer.Play()
}

// Pause halts narration, keeping the highlight
func (r *ReaderSession) Pause() {
	if r.syncer != nil {
		r.syncer.Pause()
	}
}

// Toggle plays when idle and pauses when running
func (r *ReaderSession) Toggle() error {
	if r.syncer == nil {
		return domain.ErrNoAudio
	}
	return r.syncer.Toggle()
}

// Stop rewinds to the start and clears the highlight
func (r *ReaderSession) Stop() {
	if r.syncer != nil {
		r.syncer.Stop()
	}
}

// SeekToToken jumps narration to the start of word index
func (r *ReaderSession) SeekToToken(index int) error {
	if r.syncer == nil {
		return domain.ErrNoAudio
	}
	return r.syncer.SeekToToken(index)
}

// Sample runs one sync tick synchronously
func (r *ReaderSession) Sample() bool {
	if r.syncer == nil {
		return false
	}
	return r.syncer.Sample()
}

// Rate returns the playback rate, 1 for text-only stories
func (r *ReaderSession) Rate() float64 {
	if r.syncer == nil {
		return 1
	}
	return r.syncer.Rate()
}

// NextRate moves to the next faster rate step and returns it
func (r *ReaderSession) NextRate() float64 {
	return r.stepRate(1)
}

// PrevRate moves to the next slower rate step and returns it
func (r *ReaderSession) PrevRate() float64 {
	return r.stepRate(-1)
}

func (r *ReaderSession) stepRate(dir int) float64 {
	if r.syncer == nil {
		return 1
	}
	cur := r.syncer.Rate()

	// closest step to the current rate
	idx := 0
	for i, step := range r.rates {
		if math.Abs(step-cur) < math.Abs(r.rates[idx]-cur) {
			idx = i
		}
	}
	idx += dir
	if idx < 0 {
		idx = 0
	}
	if idx >= len(r.rates) {
		idx = len(r.rates) - 1
	}

	r.syncer.SetRate(r.rates[idx])
	return r.rates[idx]
}

// Close saves the reading position and releases the audio. Safe to call
// more than once. Must not be called from an Observer.
func (r *ReaderSession) Close() {
	r.closeOnce.Do(func() {
		s := r.service
		if r.unsub != nil {
			r.unsub()
		}
		if r.syncer != nil {
			r.syncer.Close()
			r.savePosition()
		}
		if r.player != nil {
			if err := r.player.Close(); err != nil {
				s.logger.Warn("failed to close narration audio", "story", r.story.ID, "error", err)
			}
		}
		s.release(r)
		s.logger.Debug("story closed", "story", r.story.ID)
	})
}

func (r *ReaderSession) savePosition() {
	s := r.service
	if s.positions == nil {
		return
	}
	state := r.syncer.State()
	pos := domain.ReadingPosition{
		StoryID:    r.story.ID,
		TokenIndex: state.ActiveTokenIndex,
		Offset:     r.player.CurrentTime(),
		Rate:       r.syncer.Rate(),
		UpdatedAt:  time.Now().Unix(),
	}
	if err := s.positions.SavePosition(pos); err != nil {
		s.logger.Warn("failed to save reading position", "story", r.story.ID, "error", err)
	}
}
