package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dcrodman/bastion/internal"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Runs the game server",
	RunE:  ServerCommand,
}

func ServerCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Printf("starting bastion on %s\n", cfg.Address())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	controller := &internal.Controller{Config: cfg}
	return controller.Start(ctx)
}
