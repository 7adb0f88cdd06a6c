package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/cgonzaleza9671/estampas/internal/domain"
)

// Reserved collection files inside the library directory. Every other
// *.yaml file is one story.
const (
	recordingsFile = "recordings.yaml"
	videosFile     = "videos.yaml"
	biographyFile  = "biography.yaml"
)

const defaultDebounce = 250 * time.Millisecond

// storyFile is the on-disk shape of a story
type storyFile struct {
	ID       string  `yaml:"id"`
	Title    string  `yaml:"title"`
	Author   string  `yaml:"author"`
	Audio    string  `yaml:"audio"`
	Duration float64 `yaml:"duration"` // seconds
	Text     string  `yaml:"text"`
}

type mediaFile struct {
	ID          string  `yaml:"id"`
	Title       string  `yaml:"title"`
	Description string  `yaml:"description"`
	URL         string  `yaml:"url"`
	Year        int     `yaml:"year"`
	Duration    float64 `yaml:"duration"`
}

type biographyDoc struct {
	Name     string `yaml:"name"`
	Born     string `yaml:"born"`
	Sections []struct {
		Heading string `yaml:"heading"`
		Body    string `yaml:"body"`
	} `yaml:"sections"`
}

// Local implements domain.CatalogRepository over a directory of YAML files
type Local struct {
	dir      string
	logger   *slog.Logger
	debounce time.Duration

	mu    sync.Mutex
	paths map[string]string // story file path -> story id, from the last scan
}

var _ domain.CatalogRepository = (*Local)(nil)

// NewLocal creates a library rooted at dir
func NewLocal(dir string, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		dir:      dir,
		logger:   logger,
		debounce: defaultDebounce,
		paths:    make(map[string]string),
	}
}

// Dir returns the library directory
func (l *Local) Dir() string { return l.dir }

func isReserved(name string) bool {
	switch name {
	case recordingsFile, videosFile, biographyFile:
		return true
	}
	return false
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// storyID falls back to the file name when the document has no id
func storyID(path string, doc storyFile) string {
	if id := strings.TrimSpace(doc.ID); id != "" {
		return id
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func readStory(path string) (*domain.Story, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc storyFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	info, _ := os.Stat(path)
	var created int64
	if info != nil {
		created = info.ModTime().Unix()
	}

	audio := strings.TrimSpace(doc.Audio)
	if audio != "" && !strings.Contains(audio, "://") && !filepath.IsAbs(audio) {
		audio = filepath.Join(filepath.Dir(path), audio)
	}

	return &domain.Story{
		ID:        storyID(path, doc),
		Title:     strings.TrimSpace(doc.Title),
		Author:    strings.TrimSpace(doc.Author),
		Text:      doc.Text,
		AudioURL:  audio,
		Duration:  seconds(doc.Duration),
		CreatedAt: created,
	}, nil
}

// Stories reads every story file. Unparseable files are logged and skipped.
func (l *Local) Stories(ctx context.Context) ([]*domain.Story, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read library: %w", err)
	}

	paths := make(map[string]string)
	stories := make([]*domain.Story, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !isYAML(e.Name()) || isReserved(e.Name()) {
			continue
		}
		path := filepath.Join(l.dir, e.Name())
		story, err := readStory(path)
		if err != nil {
			l.logger.Warn("skipping story file", "path", path, "error", err)
			continue
		}
		paths[path] = story.ID
		stories = append(stories, story)
	}

	sort.SliceStable(stories, func(i, j int) bool {
		return strings.ToLower(stories[i].Title) < strings.ToLower(stories[j].Title)
	})

	l.mu.Lock()
	l.paths = paths
	l.mu.Unlock()

	return stories, nil
}

func (l *Local) readMedia(name string, kind domain.MediaType) ([]*domain.MediaItem, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	var docs []mediaFile
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}

	items := make([]*domain.MediaItem, 0, len(docs))
	for i, d := range docs {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			id = fmt.Sprintf("%s-%d", kind, i+1)
		}
		items = append(items, &domain.MediaItem{
			ID:          id,
			Title:       strings.TrimSpace(d.Title),
			Description: strings.TrimSpace(d.Description),
			URL:         strings.TrimSpace(d.URL),
			Year:        d.Year,
			Duration:    seconds(d.Duration),
			Type:        kind,
		})
	}
	return items, nil
}

// Recordings reads recordings.yaml; a missing file is an empty collection
func (l *Local) Recordings(ctx context.Context) ([]*domain.MediaItem, error) {
	return l.readMedia(recordingsFile, domain.MediaTypeRecording)
}

// Videos reads videos.yaml; a missing file is an empty collection
func (l *Local) Videos(ctx context.Context) ([]*domain.MediaItem, error) {
	return l.readMedia(videosFile, domain.MediaTypeVideo)
}

// Biography reads biography.yaml; a missing file is an empty page
func (l *Local) Biography(ctx context.Context) (*domain.Biography, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, biographyFile))
	if errors.Is(err, os.ErrNotExist) {
		return &domain.Biography{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", biographyFile, err)
	}

	var doc biographyDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", biographyFile, err)
	}

	bio := &domain.Biography{Name: doc.Name, Born: doc.Born}
	for _, s := range doc.Sections {
		bio.Sections = append(bio.Sections, domain.BiographySection{Heading: s.Heading, Body: s.Body})
	}
	return bio, nil
}

// Watch reports story files that change on disk until ctx is cancelled.
// Rapid saves of the same file are coalesced into one callback with the
// story id. onChange runs on the watcher goroutine.
func (l *Local) Watch(ctx context.Context, onChange func(storyID string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("failed to watch library: %w", err)
	}
	l.logger.Debug("watching library", "dir", l.dir)

	pending := make(map[string]time.Time)
	flush := time.NewTicker(l.debounce / 2)
	defer flush.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if !isYAML(name) || isReserved(name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("library watcher error", "error", err)

		case now := <-flush.C:
			for path, at := range pending {
				if now.Sub(at) < l.debounce {
					continue
				}
				delete(pending, path)
				if id := l.resolveChanged(path); id != "" {
					l.logger.Info("story file changed", "path", path, "story", id)
					onChange(id)
				}
			}
		}
	}
}

// resolveChanged maps a changed path to its story id, reading the file when
// it still exists and falling back to the last scan when it was removed
func (l *Local) resolveChanged(path string) string {
	story, err := readStory(path)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err == nil {
		l.paths[path] = story.ID
		return story.ID
	}
	if id, ok := l.paths[path]; ok {
		delete(l.paths, path)
		return id
	}
	if errors.Is(err, os.ErrNotExist) {
		return ""
	}
	l.logger.Warn("changed story file unreadable", "path", path, "error", err)
	return ""
}
