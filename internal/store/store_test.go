package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgonzaleza9671/estampas/internal/domain"
	"github.com/cgonzaleza9671/estampas/internal/narration"
)

func testStories() []*domain.Story {
	return []*domain.Story{
		{ID: "1", Title: "El árbol de la plaza", Author: "Ana", Text: "Había una vez.", AudioURL: "https://cdn.example/1.mp3", Duration: 95 * time.Second},
		{ID: "2", Title: "La siesta", Text: "Calor.\n\nSilencio."},
	}
}

func TestArchiveStore_MemoryOnly(t *testing.T) {
	s, err := NewArchiveStore("", "")
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.GetStories()
	assert.False(t, ok)

	require.NoError(t, s.SaveStories(testStories()))
	got, ok := s.GetStories()
	require.True(t, ok)
	if diff := cmp.Diff(testStories(), got); diff != "" {
		t.Errorf("stories mismatch (-want +got):\n%s", diff)
	}
}

func TestArchiveStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewArchiveStore(dir, "https://archive.example")
	require.NoError(t, err)

	recordings := []*domain.MediaItem{{ID: "r1", Title: "Entrevista radial", URL: "https://cdn.example/r1.mp3", Year: 1987, Type: domain.MediaTypeRecording}}
	bio := &domain.Biography{Name: "Ana", Born: "1931", Sections: []domain.BiographySection{{Heading: "Infancia", Body: "Nació en el campo."}}}

	require.NoError(t, s.SaveStories(testStories()))
	require.NoError(t, s.SaveMedia(domain.MediaTypeRecording, recordings))
	require.NoError(t, s.SaveBiography(bio))
	require.NoError(t, s.SavePosition(domain.ReadingPosition{StoryID: "1", TokenIndex: 4, Offset: 3 * time.Second, Rate: 1.25}))
	require.NoError(t, s.Close())

	s, err = NewArchiveStore(dir, "https://archive.example/")
	require.NoError(t, err)
	defer s.Close()

	stories, ok := s.GetStories()
	require.True(t, ok)
	assert.Len(t, stories, 2)

	got, ok := s.GetMedia(domain.MediaTypeRecording)
	require.True(t, ok)
	assert.Equal(t, recordings, got)

	_, ok = s.GetMedia(domain.MediaTypeVideo)
	assert.False(t, ok)

	gotBio, ok := s.GetBiography()
	require.True(t, ok)
	assert.Equal(t, bio, gotBio)

	pos, ok := s.GetPosition("1")
	require.True(t, ok)
	assert.Equal(t, 4, pos.TokenIndex)
	assert.Equal(t, 1.25, pos.Rate)
}

func TestArchiveStore_SourcesAreSeparate(t *testing.T) {
	dir := t.TempDir()

	a, err := NewArchiveStore(dir, "https://one.example")
	require.NoError(t, err)
	require.NoError(t, a.SaveStories(testStories()))
	require.NoError(t, a.Close())

	b, err := NewArchiveStore(dir, "https://two.example")
	require.NoError(t, err)
	defer b.Close()

	_, ok := b.GetStories()
	assert.False(t, ok)
}

func TestArchiveStore_ModelCache(t *testing.T) {
	s, err := NewArchiveStore(t.TempDir(), "")
	require.NoError(t, err)
	defer s.Close()

	params := narration.DefaultParams()
	text := "Primer párrafo, breve.\n\nSegundo."
	key := narration.ModelKey(text, params)

	first := narration.LoadOrBuild(s, text, params, nil)
	cached, ok := s.GetModel(key)
	require.True(t, ok)
	if diff := cmp.Diff(first, cached); diff != "" {
		t.Errorf("cached model mismatch (-built +cached):\n%s", diff)
	}

	second := narration.LoadOrBuild(s, text, params, nil)
	assert.Equal(t, first.TotalWeight, second.TotalWeight)
}

func TestArchiveStore_SavePositionRequiresID(t *testing.T) {
	s, err := NewArchiveStore("", "")
	require.NoError(t, err)
	assert.Error(t, s.SavePosition(domain.ReadingPosition{TokenIndex: 3}))
}

func TestArchiveStore_InvalidateCatalogKeepsPositions(t *testing.T) {
	s, err := NewArchiveStore(t.TempDir(), "")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveStories(testStories()))
	require.NoError(t, s.SaveModel("k", narration.Build("hola", narration.DefaultParams())))
	require.NoError(t, s.SavePosition(domain.ReadingPosition{StoryID: "1", TokenIndex: 2}))

	require.NoError(t, s.InvalidateCatalog())

	_, ok := s.GetStories()
	assert.False(t, ok)
	_, ok = s.GetModel("k")
	assert.False(t, ok)
	_, ok = s.GetPosition("1")
	assert.True(t, ok)

	require.NoError(t, s.InvalidateAll())
	_, ok = s.GetPosition("1")
	assert.False(t, ok)
}

func TestArchiveStore_SchemaChangeDropsDerivedRows(t *testing.T) {
	dir := t.TempDir()

	s, err := NewArchiveStore(dir, "")
	require.NoError(t, err)
	require.NoError(t, s.SaveStories(testStories()))
	require.NoError(t, s.SaveModel("k", narration.Build("hola", narration.DefaultParams())))
	require.NoError(t, s.SavePosition(domain.ReadingPosition{StoryID: "1", TokenIndex: 2}))
	require.NoError(t, s.Close())

	// same version: nothing is dropped
	s, err = NewArchiveStore(dir, "")
	require.NoError(t, err)
	_, ok := s.GetStories()
	assert.True(t, ok)
	require.NoError(t, s.Close())

	// a file written by another version
	db, err := openDB(filepath.Join(dir, "estampas.db"), schemaVersion+1)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err = NewArchiveStore(dir, "")
	require.NoError(t, err)
	defer s.Close()

	_, ok = s.GetStories()
	assert.False(t, ok)
	_, ok = s.GetModel("k")
	assert.False(t, ok)
	pos, ok := s.GetPosition("1")
	require.True(t, ok)
	assert.Equal(t, 2, pos.TokenIndex)
}

func TestArchiveStore_InvalidateReportsClosedDB(t *testing.T) {
	s, err := NewArchiveStore(t.TempDir(), "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Error(t, s.InvalidateCatalog())
	assert.Error(t, s.InvalidateAll())

	_, ok := s.GetStories()
	assert.False(t, ok, "a failed read is a miss")
}
