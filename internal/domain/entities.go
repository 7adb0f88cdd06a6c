package domain

import (
	"fmt"
	"strings"
	"time"
)

// MediaType distinguishes archive content types
type MediaType int

const (
	MediaTypeStory MediaType = iota
	MediaTypeRecording
	MediaTypeVideo
)

// String returns the lowercase type name used in logs and list descriptions
func (t MediaType) String() string {
	switch t {
	case MediaTypeStory:
		return "story"
	case MediaTypeRecording:
		return "recording"
	case MediaTypeVideo:
		return "video"
	default:
		return "unknown"
	}
}

// Story is a narrated text with an optional audio track
type Story struct {
	ID        string        // Backend row identifier
	Title     string        // Display title
	Author    string        // Narrator or author credit
	Text      string        // Raw story text, paragraphs separated by blank lines
	AudioURL  string        // Narration audio (http(s) URL or local path), empty if none
	Duration  time.Duration // Declared narration length, 0 when unknown
	CreatedAt int64         // Unix timestamp
}

// HasAudio reports whether the story can be narrated
func (s Story) HasAudio() bool {
	return strings.TrimSpace(s.AudioURL) != ""
}

// Excerpt returns the first n runes of the text on a single line
func (s Story) Excerpt(n int) string {
	flat := strings.Join(strings.Fields(s.Text), " ")
	runes := []rune(flat)
	if len(runes) <= n {
		return flat
	}
	return string(runes[:n]) + "…"
}

// FormattedDuration returns the narration length as m:ss
func (s Story) FormattedDuration() string {
	return FormatClock(s.Duration)
}

// MediaItem is a standalone recording or video played outside the reader
type MediaItem struct {
	ID          string
	Title       string
	Description string
	URL         string // Playable URL handed to the external player
	Year        int
	Duration    time.Duration
	Type        MediaType // MediaTypeRecording or MediaTypeVideo
}

// Biography is the archive's single biography page
type Biography struct {
	Name     string
	Born     string
	Sections []BiographySection
}

// BiographySection is a titled block of biography text
type BiographySection struct {
	Heading string
	Body    string
}

// ReadingPosition is the saved place in a story
type ReadingPosition struct {
	StoryID    string        `json:"storyId"`
	TokenIndex int           `json:"tokenIndex"`
	Offset     time.Duration `json:"offset"`
	Rate       float64       `json:"rate"`
	UpdatedAt  int64         `json:"updatedAt"`
}

// FormatClock formats a duration as m:ss (or h:mm:ss)
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ListItem interface implementation for Story

func (s *Story) GetID() string              { return s.ID }
func (s *Story) GetTitle() string           { return s.Title }
func (s *Story) GetItemType() MediaType     { return MediaTypeStory }
func (s *Story) GetDuration() time.Duration { return s.Duration }

func (s *Story) GetDescription() string {
	parts := make([]string, 0, 2)
	if s.Author != "" {
		parts = append(parts, s.Author)
	}
	if s.Duration > 0 {
		parts = append(parts, s.FormattedDuration())
	} else if !s.HasAudio() {
		parts = append(parts, "text only")
	}
	return strings.Join(parts, " · ")
}

// ListItem interface implementation for MediaItem

func (m *MediaItem) GetID() string              { return m.ID }
func (m *MediaItem) GetTitle() string           { return m.Title }
func (m *MediaItem) GetItemType() MediaType     { return m.Type }
func (m *MediaItem) GetDuration() time.Duration { return m.Duration }

func (m *MediaItem) GetDescription() string {
	if m.Year > 0 {
		return fmt.Sprintf("%d", m.Year)
	}
	if m.Duration > 0 {
		return FormatClock(m.Duration)
	}
	return m.Type.String()
}
