package data

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidLevelID is returned for level ids that can never exist.
var ErrInvalidLevelID = errors.New("invalid level id")

// tokenSize is the number of random bytes in a generated token (40 hex characters).
const tokenSize = 20

// LevelSave is the persisted state of one account: its credentials, avatar
// progress and village.
type LevelSave struct {
	ID    int64  `gorm:"primaryKey"`
	Token string `gorm:"not null"`

	Name    string
	IsNamed bool

	Gems       int32
	FreeGems   int32
	ExpLevel   int32
	ExpPoints  int32
	Trophies   int32
	LoginCount int32
	// PlayTime is the total number of seconds spent logged in.
	PlayTime int32

	// VillageJSON is the serialized village layout sent with OwnHomeData.
	VillageJSON string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// GenerateToken returns a random token used to authenticate a level's owner.
func GenerateToken() (string, error) {
	b := make([]byte, tokenSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// FindLevelByID returns the level with the given id or nil if there is no match.
func FindLevelByID(db *gorm.DB, id int64) (*LevelSave, error) {
	if id < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevelID, id)
	}

	var level LevelSave
	err := db.First(&level, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &level, nil
}

// UpsertLevel inserts the level or replaces every column of the existing row
// with the same id. A level with ID 0 is assigned the next free id.
func UpsertLevel(db *gorm.DB, level *LevelSave) error {
	return db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(level).Error
	})
}

// DeleteLevel permanently removes a level.
func DeleteLevel(db *gorm.DB, id int64) error {
	return db.Delete(&LevelSave{}, id).Error
}

// CountLevels returns the number of stored levels.
func CountLevels(db *gorm.DB) (int64, error) {
	var n int64
	err := db.Model(&LevelSave{}).Count(&n).Error
	return n, err
}
