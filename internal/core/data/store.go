package data

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store persists levels for the game servers.
type Store interface {
	// LoadLevel returns the level with the given id, or nil if it does not exist.
	LoadLevel(ctx context.Context, id int64) (*LevelSave, error)
	// SaveLevel inserts or replaces the level.
	SaveLevel(ctx context.Context, level *LevelSave) error
	// NewLevel creates and saves a level with the starting resources. An id
	// of 0 assigns a new id and an empty token generates one.
	NewLevel(ctx context.Context, id int64, token string) (*LevelSave, error)
}

// StoreOptions configures the contents of new levels and the read cache.
type StoreOptions struct {
	StartingGems    int32
	StartingVillage string
	// CacheTTL is how long a level stays in the read cache. Zero keeps it forever.
	CacheTTL time.Duration
}

// DBStore is a Store backed by a gorm database.
type DBStore struct {
	db      *gorm.DB
	options StoreOptions
	cache   *levelCache
}

func NewDBStore(db *gorm.DB, options StoreOptions) *DBStore {
	return &DBStore{
		db:      db,
		options: options,
		cache:   newLevelCache(options.CacheTTL),
	}
}

func (s *DBStore) LoadLevel(ctx context.Context, id int64) (*LevelSave, error) {
	if level, ok := s.cache.get(id); ok {
		return level, nil
	}

	level, err := FindLevelByID(s.db.WithContext(ctx), id)
	if err != nil || level == nil {
		return nil, err
	}
	s.cache.put(level)
	return level, nil
}

func (s *DBStore) SaveLevel(ctx context.Context, level *LevelSave) error {
	if level.ID < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLevelID, level.ID)
	}
	if err := UpsertLevel(s.db.WithContext(ctx), level); err != nil {
		s.cache.remove(level.ID)
		return fmt.Errorf("saving level %d: %w", level.ID, err)
	}
	s.cache.put(level)
	return nil
}

func (s *DBStore) NewLevel(ctx context.Context, id int64, token string) (*LevelSave, error) {
	if id < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevelID, id)
	}

	if token == "" {
		var err error
		if token, err = GenerateToken(); err != nil {
			return nil, err
		}
	}

	level := &LevelSave{
		ID:          id,
		Token:       token,
		Gems:        s.options.StartingGems,
		ExpLevel:    1,
		VillageJSON: s.options.StartingVillage,
	}
	if err := s.SaveLevel(ctx, level); err != nil {
		return nil, err
	}
	return level, nil
}
