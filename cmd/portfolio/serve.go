package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/contact"
	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/relay"
	"github.com/Zachkp/portfolio/internal/server"
	"github.com/Zachkp/portfolio/internal/store"
)

const cleanupInterval = 24 * time.Hour

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the site",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func newLogger(mode string) (*zap.Logger, error) {
	if mode == gin.DebugMode {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	gin.SetMode(cfg.Mode)

	log, err := newLogger(cfg.Mode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	site, err := content.Load(cfg.ContentFile)
	if err != nil {
		return err
	}
	sender, err := relay.New(cfg.Relay, log)
	if err != nil {
		return err
	}
	forms := contact.NewRegistry(sender, cfg.Contact.FormTTL, cfg.Contact.MaxForms, log,
		contact.WithAutoDismiss(cfg.Contact.AutoDismiss))

	st, err := store.Open(ctx, cfg.DatabasePath, log)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := server.New(server.Deps{
		Config:  cfg,
		Content: site,
		Forms:   forms,
		Store:   st,
		Log:     log,
	})
	if err != nil {
		return err
	}

	log.Info("contact relay configured", zap.String("relay", cfg.Relay.Kind))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return forms.Run(ctx, cfg.Contact.SweepInterval) })
	g.Go(func() error { return st.RunCleanup(ctx, cleanupInterval) })
	return g.Wait()
}
