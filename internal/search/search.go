package search

import (
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/cgonzaleza9671/estampas/internal/domain"
)

// maxBodyDistance is how many extra runes a body word may have around the
// query term and still count as a hit
const maxBodyDistance = 3

// FilterItem represents a searchable item
type FilterItem struct {
	Item  domain.ListItem // *Story or *MediaItem
	Title string
	Type  domain.MediaType
}

// FilterResult represents a search result with match metadata
type FilterResult struct {
	FilterItem
	MatchedIndexes []int  // title rune positions, empty for body hits
	Score          int    // lower = better
	Snippet        string // body context for body hits
}

// catalogQueries is the cache-only read side the search runs over
type catalogQueries interface {
	GetCachedStories() ([]*domain.Story, bool)
	GetCachedMedia(kind domain.MediaType) ([]*domain.MediaItem, bool)
}

// Service handles fuzzy search across the cached catalog
type Service struct {
	queries catalogQueries
	logger  *slog.Logger
}

// NewService creates a new search service
func NewService(queries catalogQueries, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		queries: queries,
		logger:  logger,
	}
}

// Search matches titles first. When no title matches, it falls back to the
// story text, ignoring accents and case.
func (s *Service) Search(query string, types []domain.MediaType) []FilterResult {
	results := s.FilterLocal(query, types)
	if len(results) > 0 {
		return results
	}

	typeSet := makeTypeSet(types)
	if len(typeSet) > 0 && !typeSet[domain.MediaTypeStory] {
		return nil
	}
	results = s.SearchBodies(query)
	s.logger.Debug("title search empty, searched story text", "query", query, "results", len(results))
	return results
}

// FilterLocal fuzzy-matches titles of cached items
// types: filter by media types (nil = all types)
func (s *Service) FilterLocal(query string, types []domain.MediaType) []FilterResult {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	items := s.gatherItems(makeTypeSet(types))
	if len(items) == 0 {
		return nil
	}

	titles := make([]string, len(items))
	for i, item := range items {
		titles[i] = item.Title
	}

	matches := FuzzySearch(query, titles)

	results := make([]FilterResult, len(matches))
	for i, match := range matches {
		results[i] = FilterResult{
			FilterItem:     items[match.Index],
			MatchedIndexes: match.MatchedIndexes,
			Score:          match.Score,
		}
	}
	return results
}

// SearchBodies finds stories whose text contains every query word (allowing
// accents, case and short affixes to differ)
func (s *Service) SearchBodies(query string) []FilterResult {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil
	}

	stories, ok := s.queries.GetCachedStories()
	if !ok {
		return nil
	}

	var results []FilterResult
	for _, story := range stories {
		words := bodyWords(story.Text)
		if len(words) == 0 {
			continue
		}

		score := 0
		first := ""
		matchedAll := true
		for _, term := range terms {
			ranks := fuzzy.RankFindNormalizedFold(term, words)
			if len(ranks) == 0 {
				matchedAll = false
				break
			}
			sort.Sort(ranks)
			if ranks[0].Distance > maxBodyDistance {
				matchedAll = false
				break
			}
			score += ranks[0].Distance
			if first == "" {
				first = ranks[0].Target
			}
		}
		if !matchedAll {
			continue
		}

		results = append(results, FilterResult{
			FilterItem: FilterItem{Item: story, Title: story.Title, Type: domain.MediaTypeStory},
			Score:      200 + score*10,
			Snippet:    snippet(story.Text, first, 60),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score < results[j].Score
	})
	return results
}

// bodyWords returns the distinct words of text, punctuation trimmed
func bodyWords(text string) []string {
	seen := make(map[string]bool)
	var words []string
	for _, f := range strings.Fields(text) {
		w := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return words
}

// snippet returns about width runes of text around the first occurrence of word
func snippet(text, word string, width int) string {
	flat := []rune(strings.Join(strings.Fields(text), " "))
	at := strings.Index(string(flat), word)
	if at < 0 {
		if len(flat) > width {
			return string(flat[:width]) + "…"
		}
		return string(flat)
	}
	runeAt := len([]rune(string(flat)[:at]))

	start := runeAt - width/3
	if start < 0 {
		start = 0
	}
	end := start + width
	if end > len(flat) {
		end = len(flat)
	}

	out := string(flat[start:end])
	if start > 0 {
		out = "…" + out
	}
	if end < len(flat) {
		out += "…"
	}
	return out
}

func (s *Service) gatherItems(types map[domain.MediaType]bool) []FilterItem {
	var items []FilterItem

	isTypeAllowed := func(t domain.MediaType) bool {
		return len(types) == 0 || types[t]
	}

	if isTypeAllowed(domain.MediaTypeStory) {
		if stories, ok := s.queries.GetCachedStories(); ok {
			for _, st := range stories {
				items = append(items, FilterItem{Item: st, Title: st.Title, Type: domain.MediaTypeStory})
			}
		}
	}

	for _, kind := range []domain.MediaType{domain.MediaTypeRecording, domain.MediaTypeVideo} {
		if !isTypeAllowed(kind) {
			continue
		}
		if media, ok := s.queries.GetCachedMedia(kind); ok {
			for _, m := range media {
				items = append(items, FilterItem{Item: m, Title: m.Title, Type: kind})
			}
		}
	}

	return items
}

func makeTypeSet(types []domain.MediaType) map[domain.MediaType]bool {
	if len(types) == 0 {
		return nil
	}
	set := make(map[domain.MediaType]bool)
	for _, t := range types {
		set[t] = true
	}
	return set
}
