package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_DatabaseURL(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Engine = "postgres"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.Name = "testdb"
	cfg.Database.Username = "testuser"
	cfg.Database.Password = "testpassword"

	url := cfg.DatabaseURL()
	expected := "host=localhost port=5432 dbname=testdb user=testuser password=testpassword sslmode="
	if url != expected {
		t.Errorf("DatabaseURL() want = %s, got = %s", expected, url)
	}

	cfg.Database.Engine = "sqlite"
	cfg.Database.Filename = "levels.db"
	if url := cfg.DatabaseURL(); url != "levels.db" {
		t.Errorf("DatabaseURL() want = levels.db, got = %s", url)
	}
}

func TestConfig_Address(t *testing.T) {
	cfg := &Config{Hostname: "127.0.0.1", Port: 12345}

	addr := cfg.Address()
	expected := "127.0.0.1:12345"
	if addr != expected {
		t.Errorf("Address() want = %s, got = %s", expected, addr)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig() returned an unexpected error: %v", err)
	}

	if cfg.Port != 9339 {
		t.Errorf("expected default port 9339, got %d", cfg.Port)
	}
	if cfg.Network.IdleTimeout != 2*time.Minute {
		t.Errorf("expected default idle timeout of 2m, got %v", cfg.Network.IdleTimeout)
	}
	if cfg.Database.Engine != "sqlite" {
		t.Errorf("expected default engine sqlite, got %s", cfg.Database.Engine)
	}
	if cfg.Game.StartingGems != 750 {
		t.Errorf("expected 750 starting gems, got %d", cfg.Game.StartingGems)
	}
	if cfg.Database.CacheTTL != 30*time.Minute {
		t.Errorf("expected default cache ttl of 30m, got %v", cfg.Database.CacheTTL)
	}
}

func TestLoadConfig_EnvWithoutFileEntry(t *testing.T) {
	t.Setenv("BASTION_DATABASE_CACHE_TTL", "5m")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig() returned an unexpected error: %v", err)
	}
	if cfg.Database.CacheTTL != 5*time.Minute {
		t.Errorf("expected the cache ttl from the environment, got %v", cfg.Database.CacheTTL)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	contents := []byte(`
hostname: 127.0.0.1
port: 9400
network:
  max_frame_size: 2048
  idle_timeout: 30s
database:
  engine: postgres
  host: db.local
game:
  starting_gems: 10
`)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), contents, 0644); err != nil {
		t.Fatalf("error writing config file: %v", err)
	}
	t.Setenv("BASTION_DATABASE_HOST", "db.override")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig() returned an unexpected error: %v", err)
	}

	if cfg.Address() != "127.0.0.1:9400" {
		t.Errorf("unexpected address %s", cfg.Address())
	}
	if cfg.Network.MaxFrameSize != 2048 || cfg.Network.IdleTimeout != 30*time.Second {
		t.Errorf("unexpected network section: %+v", cfg.Network)
	}
	if cfg.Database.Engine != "postgres" || cfg.Database.Host != "db.override" {
		t.Errorf("unexpected database section: engine=%s host=%s", cfg.Database.Engine, cfg.Database.Host)
	}
	if cfg.Game.StartingGems != 10 {
		t.Errorf("expected 10 starting gems, got %d", cfg.Game.StartingGems)
	}
	// Untouched keys keep their defaults.
	if cfg.Network.SendQueueSize != 64 {
		t.Errorf("expected default send queue size, got %d", cfg.Network.SendQueueSize)
	}
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{LogLevel: "warn", LogFilePath: filepath.Join(t.TempDir(), "bastion.log")}
	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() returned an unexpected error: %v", err)
	}
	logger.Warn("written")
	logger.Info("filtered")

	b, err := os.ReadFile(cfg.LogFilePath)
	if err != nil {
		t.Fatalf("error reading log file: %v", err)
	}
	if len(b) == 0 {
		t.Errorf("expected the warning to be written to the log file")
	}

	if _, err := NewLogger(&Config{LogLevel: "loud"}); err == nil {
		t.Errorf("expected NewLogger() to reject an invalid level")
	}
}
