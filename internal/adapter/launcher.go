package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"
)

// Launcher opens recordings and videos in an external player
type Launcher struct {
	command   string   // configured player command, empty to auto-detect
	args      []string // additional arguments for the player
	startFlag string   // offset flag prefix, e.g., "--start=" or "-ss "
	logger    *slog.Logger
}

// Process is a running external player. A detached process was handed to
// the OS (open, xdg-open) and cannot be stopped from here.
type Process struct {
	Player   string
	detached bool

	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	err     error
	stopped bool
}

func startProcess(player string, cmd *exec.Cmd, detached bool) (*Process, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &Process{Player: player, detached: detached, cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	}()
	return p, nil
}

// Detached reports whether the player was handed to the OS
func (p *Process) Detached() bool { return p.detached }

// Done is closed when the player exits
func (p *Process) Done() <-chan struct{} { return p.done }

// Err returns the exit error once Done is closed. A player stopped through
// Stop reports nil.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}
	return p.err
}

// Stop kills the player and waits for it to exit
func (p *Process) Stop() error {
	if p.detached {
		return nil
	}
	select {
	case <-p.done:
		return nil
	default:
	}

	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to stop player: %w", err)
	}
	<-p.done
	return nil
}

// playerSpec describes a known external player
type playerSpec struct {
	offsetFlag string   // "--start=" style, or "-ss " when the value is a separate arg
	audioArgs  []string // keep the player windowless for recordings
	bin        []string // OS names the binary is launched on
	macApp     string   // app bundle opened with "open -a" on darwin
	macFlags   []string // extra flags for "open"
}

var players = map[string]playerSpec{
	"mpv":       {offsetFlag: "--start=", audioArgs: []string{"--force-window=no"}, bin: []string{"darwin", "linux", "windows"}},
	"vlc":       {offsetFlag: "--start-time=", bin: []string{"darwin", "linux", "windows"}, macApp: "VLC"},
	"ffplay":    {offsetFlag: "-ss ", audioArgs: []string{"-nodisp", "-autoexit"}, bin: []string{"darwin", "linux", "windows"}},
	"iina":      {offsetFlag: "--mpv-start=", macApp: "IINA", macFlags: []string{"-n"}},
	"celluloid": {offsetFlag: "--mpv-start=", bin: []string{"linux"}},
}

// preference order of auto-detected players per OS
var playerOrder = map[string][]string{
	"darwin":  {"mpv", "iina", "vlc", "ffplay"},
	"linux":   {"mpv", "vlc", "ffplay", "celluloid"},
	"windows": {"vlc", "mpv", "ffplay"},
}

// playerName reduces a command path to its registry key
func playerName(command string) string {
	base := filepath.Base(command)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// NewLauncher creates a launcher. An empty command auto-detects a player;
// an empty startFlag is looked up for known players.
func NewLauncher(command string, args []string, startFlag string, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	if startFlag == "" && command != "" {
		if spec, ok := players[playerName(command)]; ok {
			startFlag = spec.offsetFlag
			logger.Debug("using known player offset flag", "player", playerName(command), "flag", startFlag)
		}
	}
	return &Launcher{command: command, args: args, startFlag: startFlag, logger: logger}
}

// offsetArgs renders offset for flag; a flag ending in a space takes the
// seconds as its own argument
func offsetArgs(flag string, offset time.Duration) []string {
	if offset <= 0 || flag == "" {
		return nil
	}
	secs := fmt.Sprintf("%.0f", offset.Seconds())
	if name, ok := strings.CutSuffix(flag, " "); ok {
		return []string{name, secs}
	}
	return []string{flag + secs}
}

// Command builds the argument list for the configured player
func (l *Launcher) Command(url string, startOffset time.Duration, audioOnly bool) []string {
	args := slices.Clone(l.args)
	if audioOnly {
		args = append(args, players[playerName(l.command)].audioArgs...)
	}
	args = append(args, offsetArgs(l.startFlag, startOffset)...)
	return append(args, url)
}

// attempt is one way of starting a player
type attempt struct {
	player   string
	argv     []string
	detached bool
	lookup   bool // argv[0] must be on PATH
}

// openApp wraps a player invocation in macOS "open -a"
func openApp(flags []string, app string, args []string, url string) []string {
	argv := append([]string{"open"}, flags...)
	argv = append(argv, "-a", app)
	if len(args) > 0 {
		argv = append(append(argv, "--args"), args...)
	}
	return append(argv, url)
}

// plan lists the attempts Launch makes in order for goos: the configured
// command alone, or each detected player followed by the system handler
func (l *Launcher) plan(goos, url string, startOffset time.Duration, audioOnly bool) []attempt {
	if l.command != "" {
		args := l.Command(url, startOffset, audioOnly)
		if goos == "darwin" {
			if _, err := exec.LookPath(l.command); err != nil {
				return []attempt{{player: l.command, argv: openApp(nil, l.command, args[:len(args)-1], url), detached: true}}
			}
		}
		return []attempt{{player: playerName(l.command), argv: append([]string{l.command}, args...)}}
	}

	// unknown unix-likes are treated as linux for both order and binaries
	if _, ok := playerOrder[goos]; !ok {
		goos = "linux"
	}
	order := playerOrder[goos]
	var plan []attempt
	for _, name := range order {
		spec := players[name]
		var args []string
		if audioOnly {
			args = slices.Clone(spec.audioArgs)
		}
		args = append(args, offsetArgs(spec.offsetFlag, startOffset)...)

		if slices.Contains(spec.bin, goos) {
			argv := append(append([]string{name}, args...), url)
			plan = append(plan, attempt{player: name, argv: argv, lookup: true})
		}
		if goos == "darwin" && spec.macApp != "" {
			plan = append(plan, attempt{player: name, argv: openApp(spec.macFlags, spec.macApp, args, url), detached: true})
		}
	}
	return append(plan, attempt{player: "default", argv: systemOpen(goos, url), detached: true})
}

func systemOpen(goos, url string) []string {
	switch goos {
	case "darwin":
		return []string{"open", url}
	case "windows":
		return []string{"cmd", "/c", "start", "", url}
	default:
		return []string{"xdg-open", url}
	}
}

// Launch opens a media URL in the configured player, a detected player, or
// the system default handler, in that order. audioOnly asks known players
// not to open a window.
func (l *Launcher) Launch(url string, startOffset time.Duration, audioOnly bool) (*Process, error) {
	if l.command != "" && startOffset > 0 && l.startFlag == "" {
		l.logger.Warn("cannot set start offset for unknown player, set player.start_flag",
			"command", l.command, "offset", startOffset)
	}

	var lastErr error
	for _, a := range l.plan(runtime.GOOS, url, startOffset, audioOnly) {
		if a.lookup {
			if _, err := exec.LookPath(a.argv[0]); err != nil {
				l.logger.Debug("player not installed", "player", a.player)
				continue
			}
		}
		p, err := startProcess(a.player, exec.Command(a.argv[0], a.argv[1:]...), a.detached)
		if err != nil {
			l.logger.Debug("launch failed", "player", a.player, "error", err)
			lastErr = err
			continue
		}
		l.logger.Info("launched player", "player", a.player, "args", a.argv[1:])
		return p, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no player available")
	}
	return nil, fmt.Errorf("failed to launch player: %w", lastErr)
}
