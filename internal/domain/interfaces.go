package domain

import "time"

// ListItem is the polymorphic interface for items shown in the archive lists.
// Story and MediaItem implement it directly.
type ListItem interface {
	// GetID returns the unique identifier for this item
	GetID() string

	// GetTitle returns the display title
	GetTitle() string

	// GetDescription returns secondary info for display (author, length, year)
	GetDescription() string

	// GetItemType returns the archive content type
	GetItemType() MediaType

	// GetDuration returns the playable length (0 if unknown)
	GetDuration() time.Duration
}

// Playback is the audio element the narration synchronizer reads from and
// commands. Implementations own decoding and buffering.
type Playback interface {
	// CurrentTime returns the playback position
	CurrentTime() time.Duration

	// Duration returns the total length, 0 when unknown
	Duration() time.Duration

	// PlaybackRate returns the speed multiplier (1.0 = normal)
	PlaybackRate() float64

	// SetPlaybackRate changes the speed multiplier
	SetPlaybackRate(rate float64)

	// Seek moves the playback position, clamped to [0, Duration]
	Seek(pos time.Duration)

	// Play starts or resumes playback. Returns an error if the output refuses.
	Play() error

	// Pause halts playback, keeping the position
	Pause()

	// Paused reports whether playback is halted
	Paused() bool

	// Ended reports whether playback reached the end
	Ended() bool

	// Close releases the output device
	Close() error
}
