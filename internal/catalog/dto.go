package catalog

import "encoding/json"

// Row shapes returned by the hosted backend (PostgREST JSON arrays)

// StoryRow is a row of the stories table
type StoryRow struct {
	ID              FlexID  `json:"id"`
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	Content         string  `json:"content"`
	AudioURL        string  `json:"audio_url"`
	DurationSeconds float64 `json:"duration_seconds"`
	CreatedAt       string  `json:"created_at"`
}

// MediaRow is a row of the recordings or videos table
type MediaRow struct {
	ID              FlexID  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	URL             string  `json:"url"`
	Year            int     `json:"year"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// BiographyRow is a row of the biography table, one per section
type BiographyRow struct {
	Name     string `json:"name"`
	Born     string `json:"born"`
	Heading  string `json:"heading"`
	Body     string `json:"body"`
	Position int    `json:"position"`
}

// FlexID accepts both numeric and string primary keys
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	if string(data) == "null" {
		*f = ""
		return nil
	}
	*f = FlexID(data)
	return nil
}
