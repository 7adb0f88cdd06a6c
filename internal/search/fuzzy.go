package search

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// FuzzyMatch represents a search match result
type FuzzyMatch struct {
	Index          int   // Index in source slice
	Score          int   // Match score (lower = better)
	MatchedIndexes []int // Rune positions that matched (for highlighting)
}

// FuzzySearch performs token-based fuzzy matching tuned for Spanish titles.
//
// Every query word must match some title word (AND semantics), word order
// does not matter, longer words tolerate typos, and accents are ignored so
// "arbol" finds "El Árbol". Matched positions are rune offsets into the
// original title.
//
// Returns matches sorted by score (lower = better).
func FuzzySearch(query string, titles []string) []FuzzyMatch {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	var matches []FuzzyMatch
	for i, title := range titles {
		if match, ok := matchTitle(title, queryTokens, i); ok {
			matches = append(matches, match)
		}
	}

	// ties go to the shorter title
	slices.SortStableFunc(matches, func(a, b FuzzyMatch) int {
		return cmp.Or(
			cmp.Compare(a.Score, b.Score),
			cmp.Compare(utf8.RuneCountInString(titles[a.Index]), utf8.RuneCountInString(titles[b.Index])),
		)
	})
	return matches
}

// Token is a folded word and its rune span in the original string
type Token struct {
	Text  string
	Start int
	End   int // exclusive
}

// foldRune lowercases r and strips combining accents, keeping one rune per
// input rune so positions stay aligned. ñ is kept distinct.
func foldRune(r rune) rune {
	r = unicode.ToLower(r)
	if r == 'ñ' || r < 0x80 {
		return r
	}
	for _, d := range norm.NFD.String(string(r)) {
		return d
	}
	return r
}

// fold applies foldRune to every rune of s
func fold(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = foldRune(r)
	}
	return runes
}

// tokenize splits text into folded words of letters and digits, keeping
// each word's rune span
func tokenize(text string) []Token {
	runes := fold(text)
	isWord := func(i int) bool { return unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) }

	var tokens []Token
	for i := 0; i < len(runes); {
		if !isWord(i) {
			i++
			continue
		}
		start := i
		for i < len(runes) && isWord(i) {
			i++
		}
		tokens = append(tokens, Token{Text: string(runes[start:i]), Start: start, End: i})
	}
	return tokens
}

// TokenMatch represents how a query token matched a title
type TokenMatch struct {
	Score          int
	MatchedIndexes []int
}

// matchTitle attempts to match all query tokens against the title
func matchTitle(title string, queryTokens []Token, index int) (FuzzyMatch, bool) {
	foldedTitle := string(fold(title))
	titleTokens := tokenize(title)

	// each title word can satisfy one query word
	used := make([]bool, len(titleTokens))

	var matched []int
	total := 0

	for _, qt := range queryTokens {
		best, bestIdx := findBestTokenMatch(qt, titleTokens, foldedTitle, used)
		if best.Score < 0 {
			return FuzzyMatch{}, false
		}
		if bestIdx >= 0 {
			used[bestIdx] = true
		}
		total += best.Score
		matched = append(matched, best.MatchedIndexes...)
	}

	// prefer titles without many extra words
	if extra := len(titleTokens) - len(queryTokens); extra > 0 {
		total += extra * 5
	}

	return FuzzyMatch{Index: index, Score: total, MatchedIndexes: dedupeAndSort(matched)}, true
}

// findBestTokenMatch finds the best unused title token for a query token,
// falling back to a substring anywhere in the title
func findBestTokenMatch(qt Token, titleTokens []Token, foldedTitle string, used []bool) (TokenMatch, int) {
	best := TokenMatch{Score: -1}
	bestIdx := -1

	for i, tt := range titleTokens {
		if used[i] {
			continue
		}
		m := matchTokenToToken(qt.Text, tt)
		if m.Score >= 0 && (best.Score < 0 || m.Score < best.Score) {
			best = m
			bestIdx = i
		}
	}

	if best.Score < 0 {
		if m := matchSubstring(qt.Text, foldedTitle); m.Score >= 0 {
			return m, -1
		}
	}
	return best, bestIdx
}

// matchTokenToToken scores a query word against a title word; < 0 is no match
func matchTokenToToken(query string, tt Token) TokenMatch {
	title := tt.Text
	qLen := len([]rune(query))

	switch {
	case query == title:
		return TokenMatch{Score: 0, MatchedIndexes: indexRange(tt.Start, tt.End)}
	case strings.HasPrefix(title, query):
		return TokenMatch{Score: 10, MatchedIndexes: indexRange(tt.Start, tt.Start+qLen)}
	case strings.HasPrefix(query, title) && 2*utf8.RuneCountInString(title) >= qLen:
		return TokenMatch{Score: 20, MatchedIndexes: indexRange(tt.Start, tt.End)}
	}

	if idx := strings.Index(title, query); idx >= 0 {
		start := tt.Start + len([]rune(title[:idx]))
		return TokenMatch{Score: 50 + idx, MatchedIndexes: indexRange(start, start+qLen)}
	}

	if maxTypos := allowedTypos(qLen); maxTypos > 0 {
		dist, indexes := levenshteinWithPositions(query, title, tt.Start)
		if dist <= maxTypos {
			return TokenMatch{Score: 100 + dist*20, MatchedIndexes: indexes}
		}
	}

	return TokenMatch{Score: -1}
}

// matchSubstring finds query anywhere in the folded title
func matchSubstring(query, foldedTitle string) TokenMatch {
	if idx := strings.Index(foldedTitle, query); idx >= 0 {
		runeIdx := len([]rune(foldedTitle[:idx]))
		return TokenMatch{Score: 150 + runeIdx, MatchedIndexes: indexRange(runeIdx, runeIdx+len([]rune(query)))}
	}
	return TokenMatch{Score: -1}
}

// allowedTypos: 1-3 runes = 0, 4-6 = 1, 7+ = 2
func allowedTypos(length int) int {
	switch {
	case length <= 3:
		return 0
	case length <= 6:
		return 1
	default:
		return 2
	}
}

// levenshteinWithPositions returns the edit distance and the title positions
// aligned with the query
func levenshteinWithPositions(query, title string, offset int) (int, []int) {
	q := []rune(query)
	t := []rune(title)

	if len(q) == 0 {
		return len(t), nil
	}
	if len(t) == 0 {
		return len(q), nil
	}

	d := make([][]int, len(q)+1)
	for i := range d {
		d[i] = make([]int, len(t)+1)
		d[i][0] = i
	}
	for j := 0; j <= len(t); j++ {
		d[0][j] = j
	}

	for i := 1; i <= len(q); i++ {
		for j := 1; j <= len(t); j++ {
			cost := 1
			if q[i-1] == t[j-1] {
				cost = 0
			}
			d[i][j] = min(d[i-1][j]+1, d[i][j-1]+1, d[i-1][j-1]+cost)
		}
	}

	var matched []int
	i, j := len(q), len(t)
	for i > 0 && j > 0 {
		switch {
		case q[i-1] == t[j-1], d[i-1][j-1] <= d[i-1][j] && d[i-1][j-1] <= d[i][j-1]:
			matched = append(matched, offset+j-1)
			i--
			j--
		case d[i-1][j] < d[i][j-1]:
			i--
		default:
			j--
		}
	}
	slices.Reverse(matched)
	return d[len(q)][len(t)], matched
}

// indexRange returns start, start+1, ... end-1
func indexRange(start, end int) []int {
	out := make([]int, max(end-start, 0))
	for i := range out {
		out[i] = start + i
	}
	return out
}

func dedupeAndSort(indexes []int) []int {
	slices.Sort(indexes)
	return slices.Compact(indexes)
}
