package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ukydev/fleet-maintenance/internal/config"
)

// cli holds the state shared by every fleetd command.
type cli struct {
	configFile string
	envFile    string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "fleetd",
		Short: "Fleet maintenance workflow service",
		Long: `fleetd runs the maintenance request workflow: requests move through
Comment, Review, Approve and Commit, and the Review stage waits for a cost
deliberation in which selected mechanics and reviewers negotiate a price.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Options{File: c.configFile, EnvFile: c.envFile})
			if err != nil {
				return err
			}
			if err := config.ConfigureLogging(cfg.Log); err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", config.DefaultFile("fleetd.yaml"), "YAML config file")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file (ignored when missing)")

	root.AddCommand(
		c.serveCmd(),
		c.migrateCmd(),
		c.seedCmd(),
		c.tokenCmd(),
		c.historyCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("fleetd failed")
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
