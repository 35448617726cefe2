package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/handlers"
)

const insecureSecret = "default-secret-key-change-in-production"

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if c.cfg.Auth.JWTSecret == insecureSecret {
				log.Warn("Using the default JWT secret; set JWT_SECRET in production")
			}
			authService, err := auth.NewService(c.cfg.Auth.JWTSecret, c.cfg.Auth.JWTExpiry)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              ":" + c.cfg.Server.Port,
				Handler:           handlers.NewRouter(a.svc, authService, c.cfg.Server),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.WithError(err).Warn("HTTP server shutdown failed")
				}
			}()

			log.WithFields(log.Fields{
				"port":    c.cfg.Server.Port,
				"storage": c.cfg.Storage.Driver,
				"events":  c.cfg.Events.Driver,
				"lock":    c.cfg.Lock.Driver,
			}).Info("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			log.Info("HTTP server stopped")
			return nil
		},
	}
}
