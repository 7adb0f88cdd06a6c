package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cgonzaleza9671/estampas/internal/audio"
	"github.com/cgonzaleza9671/estampas/internal/coexist"
	"github.com/cgonzaleza9671/estampas/internal/domain"
	"github.com/cgonzaleza9671/estampas/internal/narration"
	"github.com/cgonzaleza9671/estampas/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeOpener struct {
	err     error
	players []*audio.ClockPlayer
}

func (o *fakeOpener) Open(ctx context.Context, story domain.Story) (domain.Playback, error) {
	if !story.HasAudio() {
		return nil, domain.ErrNoAudio
	}
	if o.err != nil {
		return nil, o.err
	}
	p := audio.NewClockPlayer(story.Duration)
	o.players = append(o.players, p)
	return p, nil
}

type fakeProcess struct {
	once     sync.Once
	done     chan struct{}
	detached bool
	stops    int
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{done: make(chan struct{})}
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) Detached() bool        { return p.detached }
func (p *fakeProcess) exit()                 { p.once.Do(func() { close(p.done) }) }

func (p *fakeProcess) Stop() error {
	p.stops++
	p.exit()
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []coexist.Event
}

func (l *eventLog) record(e coexist.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) kinds() []coexist.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]coexist.Kind, len(l.events))
	for i, e := range l.events {
		out[i] = e.Kind
	}
	return out
}

var story = &domain.Story{
	ID:       "7",
	Title:    "El aljibe",
	Text:     "uno dos tres cuatro\n\ncinco seis",
	AudioURL: "https://cdn.example/7.mp3",
	Duration: 12 * time.Second,
}

func newReader(t *testing.T, opener playbackOpener, bus *coexist.Bus) (*ReaderService, *store.ArchiveStore) {
	t.Helper()
	st, err := store.NewArchiveStore("", "")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	params := narration.DefaultParams()
	params.RefreshInterval = time.Hour // ticks only via Sample

	svc := NewReaderService(opener, st, st, bus, ReaderConfig{
		Params:      params,
		Rates:       []float64{0.75, 1, 1.25, 1.5},
		DefaultRate: 1,
	}, nil)
	t.Cleanup(svc.Close)
	return svc, st
}

func TestReader_OpenRestoresPosition(t *testing.T) {
	svc, st := newReader(t, &fakeOpener{}, coexist.NewBus())
	require.NoError(t, st.SavePosition(domain.ReadingPosition{StoryID: "7", TokenIndex: 3, Rate: 1.25}))

	sess, err := svc.Open(context.Background(), story, nil)
	require.NoError(t, err)

	assert.True(t, sess.HasAudio())
	assert.Equal(t, 6, sess.Model().Len())
	assert.Equal(t, 3, sess.State().ActiveTokenIndex)
	assert.Equal(t, narration.Idle, sess.State().Loop)
	assert.Equal(t, 1.25, sess.Rate())
	assert.Same(t, sess, svc.Current())
}

func TestReader_CloseSavesPosition(t *testing.T) {
	svc, st := newReader(t, &fakeOpener{}, nil)

	sess, err := svc.Open(context.Background(), story, nil)
	require.NoError(t, err)
	require.NoError(t, sess.SeekToToken(2))
	assert.Equal(t, narration.Running, sess.State().Loop)
	assert.Equal(t, 1.25, sess.NextRate())

	sess.Close()
	sess.Close()
	assert.Nil(t, svc.Current())

	pos, ok := st.GetPosition("7")
	require.True(t, ok)
	assert.Equal(t, 2, pos.TokenIndex)
	assert.Equal(t, 1.25, pos.Rate)
	assert.Greater(t, pos.Offset, time.Duration(0))
}

func TestReader_TextOnlyStory(t *testing.T) {
	svc, _ := newReader(t, &fakeOpener{}, nil)

	sess, err := svc.Open(context.Background(), &domain.Story{ID: "9", Title: "Sin voz", Text: "solo texto"}, nil)
	require.NoError(t, err)

	assert.False(t, sess.HasAudio())
	assert.Equal(t, 2, sess.Model().Len())
	assert.ErrorIs(t, sess.Play(), domain.ErrNoAudio)
	assert.ErrorIs(t, sess.SeekToToken(0), domain.ErrNoAudio)
	assert.Equal(t, -1, sess.State().ActiveTokenIndex)
	assert.Equal(t, 1.0, sess.NextRate())
}

func TestReader_OpenError(t *testing.T) {
	svc, _ := newReader(t, &fakeOpener{err: errors.New("device busy")}, nil)

	_, err := svc.Open(context.Background(), story, nil)
	assert.ErrorContains(t, err, "device busy")
	assert.Nil(t, svc.Current())
}

func TestReader_OpenClosesPrevious(t *testing.T) {
	opener := &fakeOpener{}
	svc, _ := newReader(t, opener, nil)
	ctx := context.Background()

	first, err := svc.Open(ctx, story, nil)
	require.NoError(t, err)
	require.NoError(t, first.Play())

	other := *story
	other.ID = "8"
	second, err := svc.Open(ctx, &other, nil)
	require.NoError(t, err)

	assert.Same(t, second, svc.Current())
	assert.ErrorIs(t, first.Play(), narration.ErrClosed)
	assert.True(t, opener.players[0].Paused())
}

func TestReader_RateSteps(t *testing.T) {
	svc, _ := newReader(t, &fakeOpener{}, nil)
	sess, err := svc.Open(context.Background(), story, nil)
	require.NoError(t, err)

	assert.Equal(t, 1.25, sess.NextRate())
	assert.Equal(t, 1.5, sess.NextRate())
	assert.Equal(t, 1.5, sess.NextRate())
	assert.Equal(t, 1.25, sess.PrevRate())
	assert.Equal(t, 1.0, sess.PrevRate())
	assert.Equal(t, 0.75, sess.PrevRate())
	assert.Equal(t, 0.75, sess.PrevRate())
	assert.Equal(t, 0.75, sess.Rate())
}

func TestReader_ReloadKeepsPlace(t *testing.T) {
	svc, _ := newReader(t, &fakeOpener{}, nil)
	ctx := context.Background()

	sess, err := svc.Open(ctx, story, nil)
	require.NoError(t, err)
	require.NoError(t, sess.SeekToToken(4))
	sess.Pause()

	edited := *story
	edited.Text = "uno dos tres cuatro cinco\n\nseis siete"
	reloaded, err := svc.Reload(ctx, &edited, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, reloaded.Model().Len())
	assert.Equal(t, 4, reloaded.State().ActiveTokenIndex)

	other := *story
	other.ID = "other"
	_, err = svc.Reload(ctx, &other, nil)
	assert.ErrorIs(t, err, domain.ErrStoryNotFound)
}

func TestMedia_PlayAndExit(t *testing.T) {
	bus := coexist.NewBus()
	log := &eventLog{}
	bus.SubscribeMultiple([]coexist.Kind{coexist.MediaStarted, coexist.MediaStopped}, log.record)

	proc := newFakeProcess()
	var gotURL string
	var gotAudioOnly bool
	media := NewMediaService(func(url string, offset time.Duration, audioOnly bool) (Process, error) {
		gotURL, gotAudioOnly = url, audioOnly
		return proc, nil
	}, bus, nil)
	defer media.Close()

	item := &domain.MediaItem{ID: "r1", URL: "https://cdn.example/r1.mp3", Type: domain.MediaTypeRecording}
	require.NoError(t, media.Play(context.Background(), item))
	assert.Equal(t, "https://cdn.example/r1.mp3", gotURL)
	assert.True(t, gotAudioOnly)

	playing, ok := media.Playing()
	require.True(t, ok)
	assert.Equal(t, "r1", playing.ID)

	proc.exit()
	assert.Eventually(t, func() bool {
		_, ok := media.Playing()
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return len(log.kinds()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []coexist.Kind{coexist.MediaStarted, coexist.MediaStopped}, log.kinds())
}

func TestMedia_Errors(t *testing.T) {
	media := NewMediaService(func(string, time.Duration, bool) (Process, error) {
		return nil, errors.New("no player found")
	}, nil, nil)
	defer media.Close()
	ctx := context.Background()

	assert.ErrorIs(t, media.Play(ctx, &domain.MediaItem{ID: "v1"}), domain.ErrItemNotFound)
	assert.ErrorContains(t, media.Play(ctx, &domain.MediaItem{ID: "v1", URL: "x.mp4"}), "no player found")
	_, ok := media.Playing()
	assert.False(t, ok)
}

func TestMedia_DetachedIsForgottenOnStop(t *testing.T) {
	proc := newFakeProcess()
	proc.detached = true
	media := NewMediaService(func(string, time.Duration, bool) (Process, error) {
		return proc, nil
	}, nil, nil)

	require.NoError(t, media.Play(context.Background(), &domain.MediaItem{ID: "v1", URL: "x.mp4"}))
	media.Close()

	_, ok := media.Playing()
	assert.False(t, ok)
	assert.Equal(t, 1, proc.stops)
}

func TestMedia_OverlappingPlaysKeepOnePlayer(t *testing.T) {
	first, second := newFakeProcess(), newFakeProcess()
	firstLaunching := make(chan struct{})
	releaseFirst := make(chan struct{})

	media := NewMediaService(func(url string, _ time.Duration, _ bool) (Process, error) {
		if url == "a.mp4" {
			close(firstLaunching)
			<-releaseFirst
			return first, nil
		}
		return second, nil
	}, nil, nil)
	defer media.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, media.Play(ctx, &domain.MediaItem{ID: "a", URL: "a.mp4"}))
	}()

	<-firstLaunching
	require.NoError(t, media.Play(ctx, &domain.MediaItem{ID: "b", URL: "b.mp4"}))
	close(releaseFirst)
	wg.Wait()

	playing, ok := media.Playing()
	require.True(t, ok)
	assert.Equal(t, "a", playing.ID, "the launch that finished last wins")
	assert.Equal(t, 1, second.stops, "the overtaken player is stopped")
	assert.Equal(t, 0, first.stops)
}

// narration and external media never sound together
func TestCoexistence_OneSourceAtATime(t *testing.T) {
	bus := coexist.NewBus()
	opener := &fakeOpener{}
	reader, _ := newReader(t, opener, bus)

	var procs []*fakeProcess
	media := NewMediaService(func(string, time.Duration, bool) (Process, error) {
		p := newFakeProcess()
		procs = append(procs, p)
		return p, nil
	}, bus, nil)
	defer media.Close()

	ctx := context.Background()
	sess, err := reader.Open(ctx, story, nil)
	require.NoError(t, err)
	player := opener.players[0]

	audible := func() int {
		n := 0
		if !player.Paused() {
			n++
		}
		if _, ok := media.Playing(); ok {
			n++
		}
		return n
	}

	require.NoError(t, sess.Play())
	assert.Equal(t, 1, audible())

	// media start pauses narration
	require.NoError(t, media.Play(ctx, &domain.MediaItem{ID: "v1", URL: "v1.mp4", Type: domain.MediaTypeVideo}))
	assert.Equal(t, narration.Idle, sess.State().Loop)
	assert.True(t, player.Paused())
	assert.Equal(t, 1, audible())

	// narration start stops media
	require.NoError(t, sess.Toggle())
	assert.Equal(t, narration.Running, sess.State().Loop)
	assert.Equal(t, 1, procs[0].stops)
	assert.Equal(t, 1, audible())

	// switching media items keeps one player
	require.NoError(t, media.Play(ctx, &domain.MediaItem{ID: "r1", URL: "r1.mp3", Type: domain.MediaTypeRecording}))
	require.NoError(t, media.Play(ctx, &domain.MediaItem{ID: "r2", URL: "r2.mp3", Type: domain.MediaTypeRecording}))
	assert.Equal(t, 1, procs[1].stops)
	assert.Equal(t, 1, audible())

	// a closed session no longer reacts
	sess.Close()
	require.NoError(t, media.Play(ctx, &domain.MediaItem{ID: "r3", URL: "r3.mp3", Type: domain.MediaTypeRecording}))
	assert.Equal(t, 0, bus.Subscribers(coexist.MediaStarted))
}
