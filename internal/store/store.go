// Package store persists the archive catalog, weight models and reading
// positions in a bbolt file, fronted by an in-memory copy of every row read
// or written during the session.
package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cgonzaleza9671/estampas/internal/domain"
	"github.com/cgonzaleza9671/estampas/internal/narration"
)

// schemaVersion is bumped whenever a cached row changes shape. Opening a file
// stamped with another version drops the derived buckets; positions survive.
const schemaVersion uint32 = 1

type bucket string

const (
	catalogBucket   bucket = "catalog"
	modelsBucket    bucket = "models"
	positionsBucket bucket = "positions"
	metaBucket      bucket = "meta"
)

var (
	dataBuckets    = []bucket{catalogBucket, modelsBucket, positionsBucket}
	derivedBuckets = []bucket{catalogBucket, modelsBucket}
	versionKey     = []byte("schema")
)

const (
	storiesKey   = "stories"
	biographyKey = "biography"
)

func mediaKey(kind domain.MediaType) string { return "media:" + kind.String() }

// ArchiveStore implements domain.Store and narration.ModelCache. With no
// directory it runs from memory only.
type ArchiveStore struct {
	db     *bolt.DB
	logger *slog.Logger

	mu  sync.RWMutex
	mem map[bucket]map[string][]byte
}

var (
	_ domain.Store         = (*ArchiveStore)(nil)
	_ narration.ModelCache = (*ArchiveStore)(nil)
)

// NewArchiveStore opens the cache for source under dir. Each source gets its
// own file so switching backends never mixes catalogs.
func NewArchiveStore(dir, source string) (*ArchiveStore, error) {
	s := &ArchiveStore{mem: make(map[bucket]map[string][]byte), logger: slog.Default()}
	if dir == "" {
		return s, nil
	}

	if source != "" {
		dir = filepath.Join(dir, sourceDir(source))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	db, err := openDB(filepath.Join(dir, "estampas.db"), schemaVersion)
	if err != nil {
		return nil, err
	}
	s.db = db
	return s, nil
}

// sourceDir names the per-source directory; case and trailing slashes of the
// source do not matter
func sourceDir(source string) string {
	sum := sha256.Sum256([]byte(strings.TrimRight(strings.ToLower(source), "/")))
	return hex.EncodeToString(sum[:6])
}

func openDB(path string, version uint32) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error { return migrate(tx, version) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare cache db: %w", err)
	}
	return db, nil
}

func migrate(tx *bolt.Tx, version uint32) error {
	meta, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
	if err != nil {
		return err
	}
	if v := meta.Get(versionKey); len(v) == 4 && binary.BigEndian.Uint32(v) != version {
		for _, b := range derivedBuckets {
			if err := tx.DeleteBucket([]byte(b)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
		}
	}
	for _, b := range dataBuckets {
		if _, err := tx.CreateBucketIfNotExists([]byte(b)); err != nil {
			return err
		}
	}
	return meta.Put(versionKey, binary.BigEndian.AppendUint32(nil, version))
}

func (s *ArchiveStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// read returns the raw row, from memory when it has been seen before
func (s *ArchiveStore) read(b bucket, key string) []byte {
	s.mu.RLock()
	data, ok := s.mem[b][key]
	s.mu.RUnlock()
	if ok || s.db == nil {
		return data
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(b))
		if bk == nil {
			return fmt.Errorf("bucket %s missing", b)
		}
		if v := bk.Get([]byte(key)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to read cache row", "bucket", string(b), "key", key, "error", err)
		return nil
	}
	if data != nil {
		s.remember(b, key, data)
	}
	return data
}

func (s *ArchiveStore) remember(b bucket, key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mem[b] == nil {
		s.mem[b] = make(map[string][]byte)
	}
	s.mem[b][key] = data
}

func (s *ArchiveStore) write(b bucket, key string, data []byte) error {
	s.remember(b, key, data)
	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(b)).Put([]byte(key), data)
	})
}

func load[T any](s *ArchiveStore, b bucket, key string) (T, bool) {
	var v T
	data := s.read(b, key)
	if data == nil {
		return v, false
	}
	return v, json.Unmarshal(data, &v) == nil
}

func save[T any](s *ArchiveStore, b bucket, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", b, key, err)
	}
	return s.write(b, key, data)
}

// reset empties the buckets in memory and on disk
func (s *ArchiveStore) reset(buckets ...bucket) error {
	s.mu.Lock()
	for _, b := range buckets {
		delete(s.mem, b)
	}
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if err := tx.DeleteBucket([]byte(b)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket([]byte(b)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reset cache: %w", err)
	}
	return nil
}

func (s *ArchiveStore) GetStories() ([]*domain.Story, bool) {
	return load[[]*domain.Story](s, catalogBucket, storiesKey)
}

func (s *ArchiveStore) SaveStories(stories []*domain.Story) error {
	return save(s, catalogBucket, storiesKey, stories)
}

func (s *ArchiveStore) GetMedia(kind domain.MediaType) ([]*domain.MediaItem, bool) {
	return load[[]*domain.MediaItem](s, catalogBucket, mediaKey(kind))
}

func (s *ArchiveStore) SaveMedia(kind domain.MediaType, items []*domain.MediaItem) error {
	return save(s, catalogBucket, mediaKey(kind), items)
}

func (s *ArchiveStore) GetBiography() (*domain.Biography, bool) {
	bio, ok := load[*domain.Biography](s, catalogBucket, biographyKey)
	return bio, ok && bio != nil
}

func (s *ArchiveStore) SaveBiography(bio *domain.Biography) error {
	return save(s, catalogBucket, biographyKey, bio)
}

// GetModel looks up a weight model by narration.ModelKey
func (s *ArchiveStore) GetModel(key string) (*narration.WeightModel, bool) {
	model, ok := load[*narration.WeightModel](s, modelsBucket, key)
	return model, ok && model != nil
}

func (s *ArchiveStore) SaveModel(key string, model *narration.WeightModel) error {
	return save(s, modelsBucket, key, model)
}

func (s *ArchiveStore) GetPosition(storyID string) (domain.ReadingPosition, bool) {
	return load[domain.ReadingPosition](s, positionsBucket, storyID)
}

func (s *ArchiveStore) SavePosition(pos domain.ReadingPosition) error {
	if pos.StoryID == "" {
		return errors.New("failed to save position: empty story id")
	}
	return save(s, positionsBucket, pos.StoryID, pos)
}

// InvalidateCatalog drops catalog rows and weight models, keeping positions
func (s *ArchiveStore) InvalidateCatalog() error { return s.reset(derivedBuckets...) }

func (s *ArchiveStore) InvalidateAll() error { return s.reset(dataBuckets...) }
