package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cgonzaleza9671/estampas/internal/coexist"
	"github.com/cgonzaleza9671/estampas/internal/domain"
)

// Process is a running external player
type Process interface {
	Done() <-chan struct{}
	Detached() bool
	Stop() error
}

// LaunchFunc starts an external player for url
type LaunchFunc func(url string, startOffset time.Duration, audioOnly bool) (Process, error)

type mediaRun struct {
	item *domain.MediaItem
	proc Process
	gen  uint64
}

// MediaService plays recordings and videos in an external player and keeps
// them from sounding over the story narration.
type MediaService struct {
	launch LaunchFunc
	bus    *coexist.Bus
	logger *slog.Logger

	mu      sync.Mutex
	current *mediaRun
	gen     uint64
	unsub   func()
	wg      sync.WaitGroup
}

// NewMediaService creates a new media service. bus may be nil.
func NewMediaService(launch LaunchFunc, bus *coexist.Bus, logger *slog.Logger) *MediaService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MediaService{
		launch: launch,
		bus:    bus,
		logger: logger,
	}
	if bus != nil {
		s.unsub = bus.Subscribe(coexist.NarrationStarted, func(e coexist.Event) {
			if _, playing := s.Playing(); playing {
				s.logger.Debug("stopping media for narration", "story", e.Source)
				s.Stop()
			}
		})
	}
	return s
}

// Play starts item from the beginning, stopping whatever was playing
func (s *MediaService) Play(ctx context.Context, item *domain.MediaItem) error {
	return s.playItem(ctx, item, 0)
}

// PlayFrom starts item at offset
func (s *MediaService) PlayFrom(ctx context.Context, item *domain.MediaItem, offset time.Duration) error {
	return s.playItem(ctx, item, offset)
}

func (s *MediaService) playItem(ctx context.Context, item *domain.MediaItem, offset time.Duration) error {
	if item == nil || item.URL == "" {
		return domain.ErrItemNotFound
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Stop()

	s.logger.Info("launching playback", "title", item.Title, "itemID", item.ID, "offset", offset)

	proc, err := s.launch(item.URL, offset, item.Type == domain.MediaTypeRecording)
	if err != nil {
		s.logger.Error("failed to launch player", "itemID", item.ID, "error", err)
		return fmt.Errorf("failed to launch player: %w", err)
	}

	// a concurrent Play may have launched while this one was starting
	s.mu.Lock()
	s.gen++
	run := &mediaRun{item: item, proc: proc, gen: s.gen}
	prev := s.current
	s.current = run
	s.mu.Unlock()

	if prev != nil {
		if err := prev.proc.Stop(); err != nil {
			s.logger.Warn("failed to stop player", "itemID", prev.item.ID, "error", err)
		}
		s.publish(coexist.MediaStopped, prev.item.ID)
	}
	s.publish(coexist.MediaStarted, item.ID)

	if !proc.Detached() {
		s.wg.Add(1)
		go s.watch(run)
	}
	return nil
}

// watch reports the player's own exit
func (s *MediaService) watch(run *mediaRun) {
	defer s.wg.Done()
	<-run.proc.Done()

	s.mu.Lock()
	if s.current == nil || s.current.gen != run.gen {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.mu.Unlock()

	s.logger.Debug("player exited", "itemID", run.item.ID)
	s.publish(coexist.MediaStopped, run.item.ID)
}

// Playing returns the item in the external player, if any
func (s *MediaService) Playing() (*domain.MediaItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, false
	}
	return s.current.item, true
}

// Stop closes the external player. Players handed to the OS cannot be
// stopped and are only forgotten.
func (s *MediaService) Stop() {
	s.mu.Lock()
	run := s.current
	s.current = nil
	s.mu.Unlock()

	if run == nil {
		return
	}
	if err := run.proc.Stop(); err != nil {
		s.logger.Warn("failed to stop player", "itemID", run.item.ID, "error", err)
	}
	s.publish(coexist.MediaStopped, run.item.ID)
}

// Close stops playback and waits for the exit watchers
func (s *MediaService) Close() {
	if s.unsub != nil {
		s.unsub()
	}
	s.Stop()
	s.wg.Wait()
}

func (s *MediaService) publish(kind coexist.Kind, source string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(coexist.Event{Kind: kind, Source: source})
}
