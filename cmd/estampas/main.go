package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cgonzaleza9671/estampas/internal/adapter"
	"github.com/cgonzaleza9671/estampas/internal/audio"
	"github.com/cgonzaleza9671/estampas/internal/catalog"
	"github.com/cgonzaleza9671/estampas/internal/coexist"
	"github.com/cgonzaleza9671/estampas/internal/domain"
	"github.com/cgonzaleza9671/estampas/internal/library"
	"github.com/cgonzaleza9671/estampas/internal/search"
	"github.com/cgonzaleza9671/estampas/internal/service"
	"github.com/cgonzaleza9671/estampas/internal/store"
	"github.com/cgonzaleza9671/estampas/internal/tui"
	"github.com/cgonzaleza9671/estampas/internal/tui/styles"
)

// Version is set at build time via -ldflags
var Version = "dev"

// Global flags
var (
	libraryDir string
	silent     bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "estampas",
	Short: "Read narrated stories with the spoken word highlighted",
	Long: `Estampas browses a story archive from a hosted backend or a local
directory of YAML stories. Opening a story plays its narration and
highlights each word as it is spoken. Recordings and videos open in an
external player, and only one of them plays at a time.

Without a subcommand the terminal interface starts.`,
	SilenceUsage: true,
	RunE:         runTUI,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("estampas %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&libraryDir, "library", "l", "", "Local story directory (overrides the backend)")
	rootCmd.PersistentFlags().BoolVar(&silent, "silent", false, "Follow the narration clock without audio output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(versionCmd, readCmd, listCmd, searchCmd, syncCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the wired services shared by every subcommand
type app struct {
	cfg    *adapter.Config
	logger *slog.Logger

	store   *store.ArchiveStore
	local   *catalog.Local
	library *library.Commands
	queries *library.Queries
	search  *search.Service
	reader  *service.ReaderService
	media   *service.MediaService

	closeLog func() error
}

func newApp() (*app, error) {
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if libraryDir != "" {
		cfg.Library.Dir = libraryDir
	}
	if silent {
		cfg.Player.Backend = string(audio.BackendSilent)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, closeLog, err := adapter.SetupLogger(cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger, closeLog = adapter.NullLogger(), func() error { return nil }
	}
	slog.SetDefault(logger)
	logger.Info("starting estampas", "version", Version)

	if !cfg.IsConfigured() {
		closeLog()
		return nil, fmt.Errorf("%w: set backend.url in the config file, ESTAMPAS_BACKEND_URL, or pass --library", domain.ErrNotConfigured)
	}

	st, err := store.NewArchiveStore(cfg.Cache.Dir, cfg.Source())
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, store: st, closeLog: closeLog}

	var repo domain.CatalogRepository
	if cfg.UsesBackend() {
		repo = catalog.NewRemote(cfg.Backend.URL, cfg.Backend.APIKey, cfg.CatalogTables(), logger)
	} else {
		a.local = catalog.NewLocal(cfg.Library.Dir, logger)
		repo = a.local
	}

	a.library = library.NewCommands(repo, st, logger)
	a.queries = library.NewQueries(st)
	a.search = search.NewService(a.queries, logger)

	bus := coexist.NewBus()
	opener := audio.NewOpener(cfg.Player.Backend, audio.SpeakerConfig{FramesPerBuffer: cfg.Player.FramesPerBuffer}, logger)
	a.reader = service.NewReaderService(opener, st, st, bus, service.ReaderConfig{
		Params:      cfg.Narration.Params(),
		Rates:       cfg.Narration.RateSteps(),
		DefaultRate: cfg.Narration.DefaultRate,
	}, logger)

	launcher := adapter.NewLauncher(cfg.Player.Command, cfg.Player.Args, cfg.Player.StartFlag, logger)
	a.media = service.NewMediaService(func(url string, offset time.Duration, audioOnly bool) (service.Process, error) {
		p, err := launcher.Launch(url, offset, audioOnly)
		if err != nil {
			return nil, err
		}
		return p, nil
	}, bus, logger)

	return a, nil
}

// Close saves the open reading position and releases the cache
func (a *app) Close() {
	a.reader.Close()
	a.media.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close cache", "error", err)
	}
	a.logger.Info("shutting down")
	a.closeLog()
}

func runTUI(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("not a terminal: use the list, search or read subcommands")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	styles.Apply(a.cfg.UI.Theme)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	svc := tui.Services{
		Library: a.library,
		Queries: a.queries,
		Search:  a.search,
		Reader:  a.reader,
		Media:   a.media,
	}
	if a.local != nil && a.cfg.Library.Watch {
		changes := make(chan string, 8)
		go func() {
			err := a.local.Watch(ctx, func(storyID string) {
				select {
				case changes <- storyID:
				default:
				}
			})
			if err != nil {
				a.logger.Warn("library watcher stopped", "error", err)
			}
		}()
		svc.StoryChanges = changes
	}

	p := tea.NewProgram(tui.NewModel(svc), tea.WithAltScreen())

	a.logger.Info("starting TUI")
	if _, err := p.Run(); err != nil {
		a.logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
