// Package narration keeps a highlighted reading position in a story aligned
// with the narration audio.
//
// The text is turned into a table of weighted tokens once per story. Each
// weight approximates how long the narrator spends on the word, including
// the pause after punctuation, so the cumulative weight of a token divided by
// the total weight estimates where in the audio that word ends. The Syncer
// samples the audio position on every display refresh and binary-searches
// that table.
package narration

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// Default tuning. The latency offset and the paragraph gap are empirical and
// can be overridden from configuration.
const (
	DefaultLengthFactor    = 1.8
	DefaultMinWeight       = 12.0
	DefaultParagraphGap    = 180.0
	DefaultLatencyOffset   = -300 * time.Millisecond
	DefaultRefreshInterval = 16 * time.Millisecond
)

// Params tunes model building and the sync loop.
type Params struct {
	LengthFactor    float64       // weight per character
	MinWeight       float64       // floor for short words
	ParagraphGap    float64       // pause weight added before every paragraph but the first
	LatencyOffset   time.Duration // added to the sampled audio time (negative = look behind)
	RefreshInterval time.Duration // sync loop tick
}

// DefaultParams returns the stock tuning
func DefaultParams() Params {
	return Params{
		LengthFactor:    DefaultLengthFactor,
		MinWeight:       DefaultMinWeight,
		ParagraphGap:    DefaultParagraphGap,
		LatencyOffset:   DefaultLatencyOffset,
		RefreshInterval: DefaultRefreshInterval,
	}
}

// withDefaults fills zero fields. ParagraphGap is taken as given so that a
// zero gap disables paragraph pauses.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.LengthFactor <= 0 {
		p.LengthFactor = d.LengthFactor
	}
	if p.MinWeight <= 0 {
		p.MinWeight = d.MinWeight
	}
	if p.ParagraphGap < 0 {
		p.ParagraphGap = 0
	}
	if p.RefreshInterval <= 0 {
		p.RefreshInterval = d.RefreshInterval
	}
	return p
}

// punctuationBonus lists trailing-punctuation pauses in priority order.
// The first suffix that matches wins, so "..." is caught by ".".
var punctuationBonus = []struct {
	suffixes []string
	bonus    float64
}{
	{[]string{".", ":"}, 80},
	{[]string{";", "..."}, 50},
	{[]string{","}, 35},
	{[]string{"?", "!"}, 60},
}

// Token is one whitespace-delimited word of the story
type Token struct {
	Index            int     `json:"index"`
	Text             string  `json:"text"`
	Weight           float64 `json:"weight"`
	ParagraphIndex   int     `json:"paragraph"`
	CumulativeWeight float64 `json:"cumulative"`
}

// WeightModel is the immutable token table for one text
type WeightModel struct {
	Tokens         []Token `json:"tokens"`
	TotalWeight    float64 `json:"totalWeight"`
	ParagraphCount int     `json:"paragraphCount"`
}

// Empty reports whether no synchronization is possible
func (m *WeightModel) Empty() bool {
	return m == nil || len(m.Tokens) == 0 || m.TotalWeight <= 0
}

// Len returns the number of tokens
func (m *WeightModel) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Tokens)
}

// Paragraphs groups the tokens by paragraph, in order
func (m *WeightModel) Paragraphs() [][]Token {
	if m.Empty() {
		return nil
	}
	out := make([][]Token, m.ParagraphCount)
	for _, tok := range m.Tokens {
		out[tok.ParagraphIndex] = append(out[tok.ParagraphIndex], tok)
	}
	return out
}

// Build converts raw text into a weight model
func Build(text string, params Params) *WeightModel {
	params = params.withDefaults()

	paragraphs := SplitParagraphs(text)
	model := &WeightModel{
		Tokens:         make([]Token, 0, len(strings.Fields(text))),
		ParagraphCount: len(paragraphs),
	}

	var total float64
	for p, paragraph := range paragraphs {
		if p > 0 {
			total += params.ParagraphGap
		}
		for _, word := range strings.Fields(paragraph) {
			w := TokenWeight(word, params)
			total += w
			model.Tokens = append(model.Tokens, Token{
				Index:            len(model.Tokens),
				Text:             word,
				Weight:           w,
				ParagraphIndex:   p,
				CumulativeWeight: total,
			})
		}
	}
	model.TotalWeight = total

	return model
}

// TokenWeight returns the weight of a single word
func TokenWeight(word string, params Params) float64 {
	params = params.withDefaults()
	w := math.Max(float64(utf8.RuneCountInString(word))*params.LengthFactor, params.MinWeight)
	return w + PunctuationBonus(word)
}

// PunctuationBonus returns the pause weight for a word's trailing punctuation
func PunctuationBonus(word string) float64 {
	for _, rule := range punctuationBonus {
		for _, suffix := range rule.suffixes {
			if strings.HasSuffix(word, suffix) {
				return rule.bonus
			}
		}
	}
	return 0
}

// SplitParagraphs splits text on blank lines, dropping empty paragraphs.
// A line holding only whitespace counts as blank.
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var (
		paragraphs []string
		current    []string
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		paragraph := strings.Join(current, "\n")
		if len(strings.Fields(paragraph)) > 0 {
			paragraphs = append(paragraphs, paragraph)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return paragraphs
}
