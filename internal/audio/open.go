// Package audio provides the playback collaborators the narration
// synchronizer drives: a PortAudio speaker and a silent software clock.
package audio

import (
	"context"
	"log/slog"
	"time"

	"github.com/cgonzaleza9671/estampas/internal/domain"
)

// Backend selects the playback implementation
type Backend string

const (
	BackendSpeaker Backend = "speaker" // decode and play through PortAudio
	BackendSilent  Backend = "silent"  // software clock only
)

// Opener turns a story's audio reference into a playback collaborator
type Opener struct {
	backend Backend
	speaker SpeakerConfig
	logger  *slog.Logger
}

// NewOpener creates an opener for the configured backend
func NewOpener(backend string, speaker SpeakerConfig, logger *slog.Logger) *Opener {
	if logger == nil {
		logger = slog.Default()
	}
	b := Backend(backend)
	if b != BackendSpeaker {
		b = BackendSilent
	}
	return &Opener{backend: b, speaker: speaker, logger: logger}
}

// Open fetches the story audio and returns a paused player. When the
// speaker cannot be opened the opener falls back to a silent clock so the
// reader still follows along.
func (o *Opener) Open(ctx context.Context, story domain.Story) (domain.Playback, error) {
	if !story.HasAudio() {
		return nil, domain.ErrNoAudio
	}

	data, err := Fetch(ctx, story.AudioURL)
	if err != nil {
		if story.Duration > 0 {
			o.logger.Warn("audio unavailable, following declared duration", "story", story.ID, "error", err)
			return NewClockPlayer(story.Duration), nil
		}
		return nil, err
	}

	if o.backend == BackendSpeaker {
		sp, err := OpenSpeaker(data, o.speaker, o.logger)
		if err == nil {
			return sp, nil
		}
		o.logger.Warn("speaker unavailable, using silent clock", "story", story.ID, "error", err)
	}

	duration, err := o.duration(data, story)
	if err != nil {
		return nil, err
	}
	return NewClockPlayer(duration), nil
}

func (o *Opener) duration(data []byte, story domain.Story) (time.Duration, error) {
	d, err := Probe(data)
	if err == nil && d > 0 {
		return d, nil
	}
	if story.Duration > 0 {
		return story.Duration, nil
	}
	return 0, err
}
