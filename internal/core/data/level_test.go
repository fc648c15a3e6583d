package data

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/go-test/deep"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var ignoreTimestamps = cmpopts.IgnoreFields(LevelSave{}, "CreatedAt", "UpdatedAt")

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() returned an unexpected error: %v", err)
	}
	if !regexp.MustCompile(`^[0-9a-f]{40}$`).MatchString(token) {
		t.Errorf("unexpected token format: %q", token)
	}
	if other, _ := GenerateToken(); other == token {
		t.Errorf("expected two generated tokens to differ")
	}
}

func TestFindLevelByID(t *testing.T) {
	db := setUpDatabase(t)

	tests := []struct {
		name    string
		id      int64
		seed    *LevelSave
		want    *LevelSave
		wantErr error
	}{
		{
			name:    "zero id",
			id:      0,
			wantErr: ErrInvalidLevelID,
		},
		{
			name:    "negative id",
			id:      -4,
			wantErr: ErrInvalidLevelID,
		},
		{
			name: "level does not exist",
			id:   1000,
			want: nil,
		},
		{
			name: "level exists",
			id:   7,
			seed: &LevelSave{ID: 7, Token: "abc", Name: "Chief", Gems: 500},
			want: &LevelSave{ID: 7, Token: "abc", Name: "Chief", Gems: 500},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.seed != nil {
				if err := UpsertLevel(db, tt.seed); err != nil {
					t.Fatalf("error seeding level: %v", err)
				}
			}

			got, err := FindLevelByID(db, tt.id)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("FindLevelByID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got, ignoreTimestamps); diff != "" {
				t.Errorf("FindLevelByID() mismatch; diff:\n%s", diff)
			}
		})
	}
}

func TestUpsertLevel_AssignsID(t *testing.T) {
	db := setUpDatabase(t)

	first := &LevelSave{Token: "one"}
	second := &LevelSave{Token: "two"}
	for _, level := range []*LevelSave{first, second} {
		if err := UpsertLevel(db, level); err != nil {
			t.Fatalf("UpsertLevel() returned an unexpected error: %v", err)
		}
	}

	if first.ID < 1 || second.ID <= first.ID {
		t.Errorf("expected increasing assigned ids, got %d and %d", first.ID, second.ID)
	}
	if n, _ := CountLevels(db); n != 2 {
		t.Errorf("expected 2 levels, got %d", n)
	}
}

func TestDBStore_SaveIsIdempotent(t *testing.T) {
	db := setUpDatabase(t)
	store := NewDBStore(db, StoreOptions{})
	ctx := context.Background()

	level := &LevelSave{ID: 3, Token: "token", Name: "Builder", ExpLevel: 4, Trophies: 120}
	for i := 0; i < 3; i++ {
		if err := store.SaveLevel(ctx, level); err != nil {
			t.Fatalf("SaveLevel() #%d returned an unexpected error: %v", i, err)
		}
	}

	if n, _ := CountLevels(db); n != 1 {
		t.Fatalf("expected repeated saves to leave one row, got %d", n)
	}

	// Read from the database directly to bypass the cache.
	got, err := FindLevelByID(db, 3)
	if err != nil {
		t.Fatalf("FindLevelByID() returned an unexpected error: %v", err)
	}
	if diff := cmp.Diff(level, got, ignoreTimestamps); diff != "" {
		t.Errorf("saved level mismatch; diff:\n%s", diff)
	}

	level.Trophies = 200
	if err := store.SaveLevel(ctx, level); err != nil {
		t.Fatalf("SaveLevel() returned an unexpected error: %v", err)
	}
	got, _ = FindLevelByID(db, 3)
	if got.Trophies != 200 {
		t.Errorf("expected the update to be persisted, got %d trophies", got.Trophies)
	}
}

func TestDBStore_NewLevel(t *testing.T) {
	db := setUpDatabase(t)
	store := NewDBStore(db, StoreOptions{StartingGems: 750, StartingVillage: `{"buildings":[]}`})
	ctx := context.Background()

	created, err := store.NewLevel(ctx, 0, "")
	if err != nil {
		t.Fatalf("NewLevel() returned an unexpected error: %v", err)
	}
	if created.ID < 1 {
		t.Errorf("expected an id to be assigned, got %d", created.ID)
	}
	if len(created.Token) != 2*tokenSize {
		t.Errorf("expected a generated token, got %q", created.Token)
	}

	want := &LevelSave{
		ID:          created.ID,
		Token:       created.Token,
		Gems:        750,
		ExpLevel:    1,
		VillageJSON: `{"buildings":[]}`,
	}
	// A fresh store has an empty cache, so this reads from the database.
	loaded, err := NewDBStore(db, StoreOptions{}).LoadLevel(ctx, created.ID)
	if err != nil {
		t.Fatalf("LoadLevel() returned an unexpected error: %v", err)
	}
	loaded.CreatedAt, loaded.UpdatedAt = want.CreatedAt, want.UpdatedAt
	if diff := deep.Equal(want, loaded); diff != nil {
		t.Errorf("loaded level mismatch: %v", diff)
	}

	explicit, err := store.NewLevel(ctx, 42, "given-token")
	if err != nil {
		t.Fatalf("NewLevel() returned an unexpected error: %v", err)
	}
	if explicit.ID != 42 || explicit.Token != "given-token" {
		t.Errorf("expected id and token to be kept, got %d %q", explicit.ID, explicit.Token)
	}

	if _, err := store.NewLevel(ctx, -1, ""); !errors.Is(err, ErrInvalidLevelID) {
		t.Errorf("expected ErrInvalidLevelID for a negative id, got %v", err)
	}
}

func TestDBStore_LoadLevel(t *testing.T) {
	db := setUpDatabase(t)
	store := NewDBStore(db, StoreOptions{})
	ctx := context.Background()

	if _, err := store.LoadLevel(ctx, 0); !errors.Is(err, ErrInvalidLevelID) {
		t.Errorf("expected ErrInvalidLevelID, got %v", err)
	}

	missing, err := store.LoadLevel(ctx, 99)
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for a missing level, got %v, %v", missing, err)
	}

	level := &LevelSave{ID: 5, Token: "t", Gems: 10}
	if err := store.SaveLevel(ctx, level); err != nil {
		t.Fatalf("SaveLevel() returned an unexpected error: %v", err)
	}

	// Changes to returned levels must not leak into the cache.
	level.Gems = 1
	loaded, _ := store.LoadLevel(ctx, 5)
	if loaded.Gems != 10 {
		t.Errorf("expected cached copy with 10 gems, got %d", loaded.Gems)
	}
	loaded.Gems = 2
	again, _ := store.LoadLevel(ctx, 5)
	if again.Gems != 10 {
		t.Errorf("expected cached copy with 10 gems, got %d", again.Gems)
	}
}

func TestOpen(t *testing.T) {
	db, err := Open(EngineSQLite, filepath.Join(t.TempDir(), "open.db"), false)
	if err != nil {
		t.Fatalf("Open() returned an unexpected error: %v", err)
	}
	defer Close(db)

	if err := UpsertLevel(db, &LevelSave{ID: 1, Token: "x"}); err != nil {
		t.Errorf("expected the schema to be migrated: %v", err)
	}

	if _, err := Open("oracle", "", false); err == nil {
		t.Errorf("expected Open() to reject an unknown engine")
	}
}
