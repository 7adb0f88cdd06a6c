package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/cgonzaleza9671/estampas/internal/domain"
	"github.com/cgonzaleza9671/estampas/internal/narration"
	"github.com/cgonzaleza9671/estampas/internal/tui/styles"
)

// Reader chrome: title + blank above the text, blank + status line below
const (
	readerHeaderLines = 2
	readerFooterLines = 2
	readerMaxWidth    = 88
)

// readerLine is one wrapped line of token indexes; nil is a paragraph break
type readerLine []int

// ReaderView renders a story with the narrated word highlighted
type ReaderView struct {
	story    *domain.Story
	tokens   []narration.Token
	hasAudio bool

	state   narration.SyncState
	cursor  int // word picked for a jump, -1 = none
	rate    float64
	elapsed time.Duration
	total   time.Duration

	width  int
	height int
	scroll int
	follow bool

	lines     []readerLine
	tokenLine []int // token index -> line index
}

// NewReaderView creates an empty reader
func NewReaderView() ReaderView {
	return ReaderView{
		state:  narration.ResetState(),
		cursor: -1,
		rate:   1,
		follow: true,
	}
}

// SetStory loads a story and its token table
func (r *ReaderView) SetStory(story *domain.Story, model *narration.WeightModel, hasAudio bool) {
	r.story = story
	r.tokens = nil
	if model != nil {
		r.tokens = model.Tokens
	}
	r.hasAudio = hasAudio
	r.state = narration.ResetState()
	r.cursor = -1
	r.scroll = 0
	r.follow = true
	r.elapsed, r.total = 0, 0
	r.layout()
}

// Story returns the story on display
func (r *ReaderView) Story() *domain.Story { return r.story }

// SetSize sets the view dimensions
func (r *ReaderView) SetSize(width, height int) {
	r.width = width
	r.height = height
	r.layout()
}

// SetState applies a sync update. A running loop brings the view back to
// following the narrated word.
func (r *ReaderView) SetState(state narration.SyncState) {
	r.state = state
	if state.Loop == narration.Running {
		r.follow = true
	}
	if r.follow && state.ActiveTokenIndex >= 0 {
		r.ensureVisible(state.ActiveTokenIndex)
	}
}

// State returns the last applied sync state
func (r *ReaderView) State() narration.SyncState { return r.state }

// SetClock updates the audio position and rate shown in the status line
func (r *ReaderView) SetClock(elapsed, total time.Duration, rate float64) {
	r.elapsed = elapsed
	r.total = total
	if rate > 0 {
		r.rate = rate
	}
}

// MoveCursor moves the jump cursor by delta words
func (r *ReaderView) MoveCursor(delta int) {
	if len(r.tokens) == 0 {
		return
	}
	from := r.cursor
	if from < 0 {
		from = max(r.state.ActiveTokenIndex, 0)
		if delta > 0 && r.state.ActiveTokenIndex < 0 {
			delta--
		}
	}
	r.cursor = clampIndex(from+delta, len(r.tokens))
	r.follow = false
	r.ensureVisible(r.cursor)
}

// MoveParagraph moves the jump cursor to the first word of the previous or
// next paragraph
func (r *ReaderView) MoveParagraph(delta int) {
	if len(r.tokens) == 0 {
		return
	}
	from := r.cursor
	if from < 0 {
		from = max(r.state.ActiveTokenIndex, 0)
	}
	para := r.tokens[from].ParagraphIndex
	if delta < 0 && r.tokens[from].Index != r.firstOfParagraph(para) {
		// back to the start of the current paragraph first
		delta++
	}
	target := para + delta
	if target < 0 {
		target = 0
	}
	last := r.tokens[len(r.tokens)-1].ParagraphIndex
	if target > last {
		target = last
	}
	r.cursor = r.firstOfParagraph(target)
	r.follow = false
	r.ensureVisible(r.cursor)
}

func (r *ReaderView) firstOfParagraph(p int) int {
	for _, tok := range r.tokens {
		if tok.ParagraphIndex == p {
			return tok.Index
		}
	}
	return 0
}

// JumpTarget returns the word a jump should start from: the cursor, else
// the active word. ok is false when neither is set.
func (r *ReaderView) JumpTarget() (int, bool) {
	if r.cursor >= 0 {
		return r.cursor, true
	}
	if r.state.ActiveTokenIndex >= 0 {
		return r.state.ActiveTokenIndex, true
	}
	return 0, len(r.tokens) > 0
}

// ClearCursor drops the jump cursor
func (r *ReaderView) ClearCursor() {
	r.cursor = -1
	r.follow = true
}

// Scroll moves the text by delta lines and stops following the narration
func (r *ReaderView) Scroll(delta int) {
	r.follow = false
	r.scroll = clampIndex(r.scroll+delta, max(len(r.lines)-r.textHeight()+1, 1))
}

func (r *ReaderView) textWidth() int {
	return max(min(r.width-4, readerMaxWidth), 10)
}

func (r *ReaderView) textHeight() int {
	return max(r.height-readerHeaderLines-readerFooterLines, 1)
}

// layout wraps the tokens to the text width
func (r *ReaderView) layout() {
	r.lines = nil
	r.tokenLine = make([]int, len(r.tokens))
	if len(r.tokens) == 0 {
		return
	}

	width := r.textWidth()
	var (
		line      readerLine
		lineWidth int
		para      = r.tokens[0].ParagraphIndex
	)
	flush := func() {
		if len(line) > 0 {
			r.lines = append(r.lines, line)
		}
		line, lineWidth = nil, 0
	}

	for _, tok := range r.tokens {
		if tok.ParagraphIndex != para {
			flush()
			r.lines = append(r.lines, nil)
			para = tok.ParagraphIndex
		}
		w := lipgloss.Width(tok.Text)
		if lineWidth > 0 && lineWidth+1+w > width {
			flush()
		}
		if lineWidth > 0 {
			lineWidth++
		}
		lineWidth += w
		line = append(line, tok.Index)
		r.tokenLine[tok.Index] = len(r.lines)
	}
	flush()

	r.scroll = clampIndex(r.scroll, max(len(r.lines), 1))
}

// ensureVisible scrolls so token index sits in the upper third when it
// leaves the screen
func (r *ReaderView) ensureVisible(index int) {
	if index < 0 || index >= len(r.tokenLine) {
		return
	}
	line := r.tokenLine[index]
	h := r.textHeight()
	if line < r.scroll || line >= r.scroll+h {
		r.scroll = max(line-h/3, 0)
	}
}

// View renders the reader
func (r ReaderView) View() string {
	if r.story == nil {
		return ""
	}
	width := r.textWidth()
	margin := strings.Repeat(" ", max((r.width-width)/2, 0))

	var b strings.Builder

	header := styles.TitleStyle.Render(styles.Truncate(r.story.Title, width))
	if r.story.Author != "" {
		header += styles.DimStyle.Render(" · " + r.story.Author)
	}
	b.WriteString(margin + header + "\n\n")

	h := r.textHeight()
	end := min(r.scroll+h, len(r.lines))
	written := 0
	for i := r.scroll; i < end; i++ {
		b.WriteString(margin + r.renderLine(r.lines[i]) + "\n")
		written++
	}
	for ; written < h; written++ {
		b.WriteString("\n")
	}

	b.WriteString("\n" + margin + r.statusLine(width))
	return b.String()
}

func (r ReaderView) renderLine(line readerLine) string {
	if line == nil {
		return ""
	}
	active := r.state.ActiveTokenIndex
	words := make([]string, len(line))
	for i, idx := range line {
		text := r.tokens[idx].Text
		switch {
		case idx == active:
			words[i] = styles.ActiveWordStyle.Render(text)
		case idx == r.cursor:
			words[i] = styles.CursorWordStyle.Render(text)
		case active >= 0 && idx < active:
			words[i] = styles.ReadWordStyle.Render(text)
		case active >= 0:
			words[i] = styles.UnreadWordStyle.Render(text)
		default:
			words[i] = styles.ReadWordStyle.Render(text)
		}
	}
	return strings.Join(words, " ")
}

func (r ReaderView) statusLine(width int) string {
	if !r.hasAudio {
		return styles.DimStyle.Render("text only · no narration for this story")
	}

	icon := "❚❚"
	if r.state.Loop == narration.Running {
		icon = "▶"
	}
	clock := fmt.Sprintf("%s / %s", domain.FormatClock(r.elapsed), domain.FormatClock(r.total))
	rate := fmt.Sprintf("%.2gx", r.rate)
	percent := fmt.Sprintf("%3d%%", r.state.ProgressPercent)

	fixed := lipgloss.Width(icon) + lipgloss.Width(clock) + lipgloss.Width(rate) + lipgloss.Width(percent) + 4
	bar := styles.RenderProgressBar(float64(r.state.ProgressPercent), width-fixed)

	return styles.AccentStyle.Render(icon) + " " + bar + " " + percent + " " +
		styles.SubtitleStyle.Render(clock) + " " + styles.DimStyle.Render(rate)
}

// clampIndex limits i to [0, n), 0 when n is 0
func clampIndex(i, n int) int {
	return max(min(i, n-1), 0)
}
