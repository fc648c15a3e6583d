package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/dcrodman/bastion/internal/core"
	"github.com/dcrodman/bastion/internal/core/data"
)

var levelCmd = &cobra.Command{
	Use:   "level",
	Short: "Level (account) management tools",
}

var levelShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Prints a stored level",
	Args:  cobra.ExactArgs(1),
	RunE:  LevelShowCommand,
}

var levelCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Creates a level with the starting resources",
	Args:  cobra.NoArgs,
	RunE:  LevelCreateCommand,
}

var levelDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Permanently deletes a level",
	Args:  cobra.ExactArgs(1),
	RunE:  LevelDeleteCommand,
}

var (
	LevelIDFlag    int64
	LevelTokenFlag string
)

func initDB() (*core.Config, *gorm.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := data.Open(cfg.Database.Engine, cfg.DatabaseURL(), false)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func parseLevelID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid level id %q: %w", arg, err)
	}
	return id, nil
}

func LevelShowCommand(cmd *cobra.Command, args []string) error {
	id, err := parseLevelID(args[0])
	if err != nil {
		return err
	}
	_, db, err := initDB()
	if err != nil {
		return err
	}
	defer data.Close(db)

	level, err := data.FindLevelByID(db, id)
	if err != nil {
		return fmt.Errorf("error finding level: %w", err)
	} else if level == nil {
		return fmt.Errorf("level %d does not exist", id)
	}

	fmt.Printf("ID:          %d\n", level.ID)
	fmt.Printf("Token:       %s\n", level.Token)
	fmt.Printf("Name:        %q (named: %v)\n", level.Name, level.IsNamed)
	fmt.Printf("Exp level:   %d (%d points)\n", level.ExpLevel, level.ExpPoints)
	fmt.Printf("Gems:        %d (%d free)\n", level.Gems, level.FreeGems)
	fmt.Printf("Trophies:    %d\n", level.Trophies)
	fmt.Printf("Logins:      %d\n", level.LoginCount)
	fmt.Printf("Created:     %s\n", level.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Last played: %s\n", level.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func LevelCreateCommand(cmd *cobra.Command, args []string) error {
	cfg, db, err := initDB()
	if err != nil {
		return err
	}
	defer data.Close(db)

	if LevelIDFlag != 0 {
		existing, err := data.FindLevelByID(db, LevelIDFlag)
		if err != nil {
			return fmt.Errorf("error finding level: %w", err)
		} else if existing != nil {
			return fmt.Errorf("level %d already exists", LevelIDFlag)
		}
	}

	var village []byte
	if cfg.Game.StartingVillageFile != "" {
		if village, err = os.ReadFile(cfg.Game.StartingVillageFile); err != nil {
			return fmt.Errorf("error reading starting village: %w", err)
		}
	}

	store := data.NewDBStore(db, data.StoreOptions{
		StartingGems:    cfg.Game.StartingGems,
		StartingVillage: string(village),
	})
	level, err := store.NewLevel(context.Background(), LevelIDFlag, LevelTokenFlag)
	if err != nil {
		return fmt.Errorf("error creating level: %w", err)
	}
	fmt.Printf("created level %d (token: %s)\n", level.ID, level.Token)
	return nil
}

func LevelDeleteCommand(cmd *cobra.Command, args []string) error {
	id, err := parseLevelID(args[0])
	if err != nil {
		return err
	}
	_, db, err := initDB()
	if err != nil {
		return err
	}
	defer data.Close(db)

	if err := data.DeleteLevel(db, id); err != nil {
		return fmt.Errorf("error deleting level: %w", err)
	}
	fmt.Println("deleted level", id)
	return nil
}
