package components

import "github.com/charmbracelet/bubbles/key"

func bind(help, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

// ListColumnKeyMap holds the collection list bindings
type ListColumnKeyMap struct {
	Up, Down         key.Binding
	Home, End        key.Binding
	HalfUp, HalfDown key.Binding
	Escape, Enter    key.Binding
	Filter           key.Binding
}

func DefaultListColumnKeyMap() ListColumnKeyMap {
	return ListColumnKeyMap{
		Up:       bind("k/↑", "up", "k", "up"),
		Down:     bind("j/↓", "down", "j", "down"),
		Home:     bind("g", "first", "g", "home"),
		End:      bind("G", "last", "G", "end"),
		HalfUp:   bind("C-u", "half page up", "ctrl+u", "pgup"),
		HalfDown: bind("C-d", "half page down", "ctrl+d", "pgdown"),
		Escape:   bind("esc", "clear filter", "esc"),
		Enter:    bind("enter", "keep filter", "enter"),
		Filter:   bind("/", "filter", "/"),
	}
}

// GlobalSearchKeyMap holds the search modal bindings
type GlobalSearchKeyMap struct {
	Escape, Enter key.Binding
	Up, Down      key.Binding
	Scope         key.Binding
}

func DefaultGlobalSearchKeyMap() GlobalSearchKeyMap {
	return GlobalSearchKeyMap{
		Escape: bind("esc", "close", "esc"),
		Enter:  bind("enter", "open", "enter"),
		Up:     bind("↑/C-p", "previous", "up", "ctrl+p"),
		Down:   bind("↓/C-n", "next", "down", "ctrl+n"),
		Scope:  bind("tab", "collection", "tab"),
	}
}

// ReaderKeyMap holds the story reader bindings
type ReaderKeyMap struct {
	Toggle, Stop         key.Binding
	PrevWord, NextWord   key.Binding
	PrevPara, NextPara   key.Binding
	Jump                 key.Binding
	Faster, Slower       key.Binding
	ScrollUp, ScrollDown key.Binding
	Close                key.Binding
}

func DefaultReaderKeyMap() ReaderKeyMap {
	return ReaderKeyMap{
		Toggle:     bind("space", "play/pause", " "),
		Stop:       bind("s", "stop", "s"),
		PrevWord:   bind("←", "previous word", "left", "h"),
		NextWord:   bind("→", "next word", "right", "l"),
		PrevPara:   bind("[", "previous paragraph", "["),
		NextPara:   bind("]", "next paragraph", "]"),
		Jump:       bind("enter", "read from word", "enter"),
		Faster:     bind("+", "faster", "+", "="),
		Slower:     bind("-", "slower", "-", "_"),
		ScrollUp:   bind("k/↑", "scroll up", "k", "up"),
		ScrollDown: bind("j/↓", "scroll down", "j", "down"),
		Close:      bind("esc", "close", "esc", "q"),
	}
}

var (
	ListColumnKeys   = DefaultListColumnKeyMap()
	GlobalSearchKeys = DefaultGlobalSearchKeyMap()
	ReaderKeys       = DefaultReaderKeyMap()
)
