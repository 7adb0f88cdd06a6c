package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cgonzaleza9671/estampas/internal/domain"
	"github.com/cgonzaleza9671/estampas/internal/library"
	"github.com/cgonzaleza9671/estampas/internal/narration"
	"github.com/cgonzaleza9671/estampas/internal/search"
	"github.com/cgonzaleza9671/estampas/internal/tui/styles"
)

const fetchTimeout = time.Minute

var readCmd = &cobra.Command{
	Use:   "read <story-id>",
	Short: "Play a story and print each word as it is narrated",
	Args:  cobra.ExactArgs(1),
	RunE:  runRead,
}

var listType string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stories, recordings or videos",
	RunE:  runList,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search titles, then story text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the cached catalog",
	RunE:  runSync,
}

func init() {
	listCmd.Flags().StringVarP(&listType, "type", "t", "stories", "Collection to list: stories, recordings or videos")
}

// ensureCatalog loads the catalog, fetching it when the cache is empty
func (a *app) ensureCatalog(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	if _, err := a.library.Sync(ctx, false, nil); err != nil {
		if library.IsOffline(err) {
			a.logger.Warn("archive unreachable, using cache", "error", err)
			return nil
		}
		return err
	}
	return nil
}

func runRead(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	story, err := a.library.Story(fetchCtx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, styles.TitleStyle.Render(story.Title))

	printer := &wordPrinter{last: -1, done: make(chan struct{})}
	sess, err := a.reader.Open(fetchCtx, story, printer)
	if err != nil {
		return err
	}
	printer.attach(sess.Model(), func(s string) { fmt.Fprint(out, s) })

	if !sess.HasAudio() {
		fmt.Fprintln(out, story.Text)
		return nil
	}
	if err := sess.Play(); err != nil {
		return err
	}

	select {
	case <-printer.done:
	case <-ctx.Done():
		sess.Pause()
	}
	fmt.Fprintln(out)
	return nil
}

// wordPrinter writes each newly highlighted word and signals when the
// narration stops on its own
type wordPrinter struct {
	mu      sync.Mutex
	model   *narration.WeightModel
	write   func(string)
	last    int
	para    int
	started bool
	once    sync.Once
	done    chan struct{}
}

func (p *wordPrinter) attach(model *narration.WeightModel, write func(string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = model
	p.write = write
}

func (p *wordPrinter) OnSync(state narration.SyncState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if state.Loop == narration.Running {
		p.started = true
	} else if p.started {
		p.once.Do(func() { close(p.done) })
	}
	if p.model == nil || p.write == nil {
		return
	}

	i := state.ActiveTokenIndex
	if i < 0 || i == p.last || i >= len(p.model.Tokens) {
		return
	}
	tok := p.model.Tokens[i]
	sep := " "
	switch {
	case p.last < 0:
		sep = ""
	case tok.ParagraphIndex != p.para:
		sep = "\n\n"
	}
	p.write(sep + tok.Text)
	p.last = i
	p.para = tok.ParagraphIndex
}

func parseKind(name string) (domain.MediaType, error) {
	switch strings.ToLower(name) {
	case "stories", "story":
		return domain.MediaTypeStory, nil
	case "recordings", "recording":
		return domain.MediaTypeRecording, nil
	case "videos", "video":
		return domain.MediaTypeVideo, nil
	}
	return 0, fmt.Errorf("unknown collection %q", name)
}

func runList(cmd *cobra.Command, args []string) error {
	kind, err := parseKind(listType)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ensureCatalog(cmd.Context()); err != nil {
		return err
	}

	items, _ := a.queries.GetCachedItems(kind)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", item.GetID(), item.GetTitle(), item.GetDescription())
	}
	return w.Flush()
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ensureCatalog(cmd.Context()); err != nil {
		return err
	}

	results := a.search.Search(strings.Join(args, " "), nil)
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no matches")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Type, r.Item.GetID(), r.Title, resultSnippet(r))
	}
	return w.Flush()
}

func resultSnippet(r search.FilterResult) string {
	if r.Snippet == "" {
		return ""
	}
	return "…" + r.Snippet + "…"
}

// progressPrinter prints one line per synced collection
type progressPrinter struct {
	mu    sync.Mutex
	write func(string)
}

func (p *progressPrinter) OnProgress(progress domain.SyncProgress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if progress.Error != nil {
		p.write(fmt.Sprintf("✗ %-10s %v\n", progress.Collection, progress.Error))
		return
	}
	p.write(fmt.Sprintf("✓ %-10s %d\n", progress.Collection, progress.Count))
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), fetchTimeout)
	defer cancel()

	out := cmd.OutOrStdout()
	printer := &progressPrinter{write: func(s string) { fmt.Fprint(out, s) }}
	result, err := a.library.Sync(ctx, true, printer)
	if err != nil {
		if errors.Is(err, domain.ErrAuthFailed) {
			return fmt.Errorf("%w: check backend.api_key", err)
		}
		return err
	}
	fmt.Fprintf(out, "synced %d stories, %d recordings, %d videos\n", result.Stories, result.Recordings, result.Videos)
	return nil
}
