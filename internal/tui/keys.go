package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMap holds the bindings active while browsing the tabs
type KeyMap struct {
	NextTab, PrevTab key.Binding
	GoTo             [tabCount]key.Binding // digit per tab

	Enter        key.Binding
	Filter       key.Binding
	GlobalSearch key.Binding
	Refresh      key.Binding
	StopMedia    key.Binding
	Help         key.Binding
	Quit         key.Binding
}

func bind(help, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

func DefaultKeyMap() KeyMap {
	km := KeyMap{
		NextTab:      bind("tab", "next tab", "tab", "L"),
		PrevTab:      bind("S-tab", "previous tab", "shift+tab", "H"),
		Enter:        bind("enter", "read/play", "enter", "l", "right"),
		Filter:       bind("/", "filter", "/"),
		GlobalSearch: bind("f", "search", "f"),
		Refresh:      bind("r", "refresh", "r"),
		StopMedia:    bind("x", "stop player", "x"),
		Help:         bind("?", "help", "?"),
		Quit:         bind("q", "quit", "q", "ctrl+c"),
	}
	for t := Tab(0); t < tabCount; t++ {
		digit := strconv.Itoa(int(t) + 1)
		km.GoTo[t] = bind(digit, strings.ToLower(t.String()), digit)
	}
	return km
}

var Keys = DefaultKeyMap()
