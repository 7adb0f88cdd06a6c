package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/cgonzaleza9671/estampas/internal/domain"
)

// MapStories converts backend rows to domain stories, skipping rows with no id
func MapStories(rows []StoryRow) []*domain.Story {
	stories := make([]*domain.Story, 0, len(rows))
	for _, r := range rows {
		if r.ID == "" {
			continue
		}
		stories = append(stories, &domain.Story{
			ID:        string(r.ID),
			Title:     strings.TrimSpace(r.Title),
			Author:    strings.TrimSpace(r.Author),
			Text:      r.Content,
			AudioURL:  strings.TrimSpace(r.AudioURL),
			Duration:  seconds(r.DurationSeconds),
			CreatedAt: parseTimestamp(r.CreatedAt),
		})
	}
	return stories
}

// MapMedia converts backend rows to media items of the given type
func MapMedia(rows []MediaRow, kind domain.MediaType) []*domain.MediaItem {
	items := make([]*domain.MediaItem, 0, len(rows))
	for _, r := range rows {
		if r.ID == "" {
			continue
		}
		items = append(items, &domain.MediaItem{
			ID:          string(r.ID),
			Title:       strings.TrimSpace(r.Title),
			Description: strings.TrimSpace(r.Description),
			URL:         strings.TrimSpace(r.URL),
			Year:        r.Year,
			Duration:    seconds(r.DurationSeconds),
			Type:        kind,
		})
	}
	return items
}

// MapBiography folds section rows into a single biography ordered by position
func MapBiography(rows []BiographyRow) *domain.Biography {
	sorted := make([]BiographyRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})

	bio := &domain.Biography{}
	for _, r := range sorted {
		if bio.Name == "" {
			bio.Name = r.Name
		}
		if bio.Born == "" {
			bio.Born = r.Born
		}
		if r.Heading == "" && r.Body == "" {
			continue
		}
		bio.Sections = append(bio.Sections, domain.BiographySection{
			Heading: r.Heading,
			Body:    r.Body,
		})
	}
	return bio
}

func seconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// parseTimestamp accepts RFC 3339 with or without a zone
func parseTimestamp(s string) int64 {
	if s == "" {
		return 0
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix()
		}
	}
	return 0
}
