package internal

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dcrodman/bastion/internal/core"
	"github.com/dcrodman/bastion/internal/core/data"
	"github.com/dcrodman/bastion/internal/core/debug"
	"github.com/dcrodman/bastion/internal/home"
	"github.com/dcrodman/bastion/internal/packets"
)

// Controller is the main entrypoint for bastion. It's responsible for initializing
// any shared resources (such as database and logging), defining the servers, and
// launching everything.
type Controller struct {
	Config *core.Config

	logger *logrus.Logger
	db     *gorm.DB
	wg     sync.WaitGroup

	servers []*frontend
}

// Start runs the servers until ctx is cancelled. It returns an error if any
// of the shared resources or servers could not be initialized.
func (c *Controller) Start(ctx context.Context) error {
	defer c.Shutdown()
	// Stops any servers already running if a later one fails to start.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var err error
	// Set up the logger, which will be used by all servers.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	// Start any debug utilities if we're configured to do so.
	if c.Config.Debugging.Enabled {
		debug.StartPprofServer(c.logger, c.Config.Debugging.PprofPort)
	}

	c.db, err = data.Open(c.Config.Database.Engine, c.Config.DatabaseURL(), c.Config.Debugging.DatabaseLoggingEnabled)
	if err != nil {
		return err
	}
	levels, err := data.CountLevels(c.db)
	if err != nil {
		return fmt.Errorf("error counting levels: %w", err)
	}
	c.logger.Infof("connected to %s database (%d levels)", c.Config.Database.Engine, levels)

	village, err := c.loadStartingVillage()
	if err != nil {
		return err
	}
	store := data.NewDBStore(c.db, data.StoreOptions{
		StartingGems:    c.Config.Game.StartingGems,
		StartingVillage: village,
		CacheTTL:        c.Config.Database.CacheTTL,
	})

	// Configure and run all of our servers.
	c.declareServers(store)
	return c.run(ctx)
}

// loadStartingVillage reads the village JSON given to new levels. No file
// configured means new levels start with an empty village.
func (c *Controller) loadStartingVillage() (string, error) {
	path := c.Config.Game.StartingVillageFile
	if path == "" {
		c.logger.Warn("no starting village configured; new levels will have an empty home")
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("error reading starting village: %w", err)
	}
	return string(b), nil
}

// Set up all of the servers we want to run.
func (c *Controller) declareServers(store data.Store) {
	c.servers = []*frontend{
		{
			Address:  c.Config.Address(),
			Registry: packets.DefaultRegistry,
			Backend: &home.Server{
				Name:   "HOME",
				Config: c.Config,
				Logger: c.logger,
				Store:  store,
			},
		},
	}
}

func (c *Controller) run(ctx context.Context) error {
	// Start all of our servers. Failure to initialize one of the registered servers is considered terminal.
	for _, server := range c.servers {
		server.Config = c.Config
		server.Logger = c.logger

		if err := server.Start(ctx, &c.wg); err != nil {
			return fmt.Errorf("error starting %s server: %w", server.Backend.Identifier(), err)
		}
	}

	c.wg.Wait()
	return nil
}

// Shutdown waits for the servers to stop and then releases the database.
func (c *Controller) Shutdown() {
	c.wg.Wait()
	if c.db == nil {
		return
	}
	if err := data.Close(c.db); err != nil {
		c.logger.Warnf("error closing database: %v", err)
	}
	c.db = nil
}
