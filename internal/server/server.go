// Package server wires the portfolio pages, the contact form endpoints and
// the admin dashboard into a gin engine.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/contact"
	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/store"
	"github.com/Zachkp/portfolio/web"
)

// Deps are the collaborators the server needs. Store may be nil, which
// turns off visitor tracking and the admin dashboard.
type Deps struct {
	Config  *config.Config
	Content *content.Content
	Forms   *contact.Registry
	Store   *store.Store
	Log     *zap.Logger
}

// Server serves the site.
type Server struct {
	cfg     *config.Config
	content *content.Content
	forms   *contact.Registry
	store   *store.Store
	log     *zap.Logger

	engine     *gin.Engine
	background sync.WaitGroup

	adminMu    sync.Mutex
	adminToken string
}

// New builds the engine and registers every route.
func New(d Deps) (*Server, error) {
	if d.Config == nil || d.Content == nil || d.Forms == nil {
		return nil, errors.New("server: config, content and forms are required")
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	tmpl, err := template.New("").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(web.Templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		cfg:     d.Config,
		content: d.Content,
		forms:   d.Forms,
		store:   d.Store,
		log:     log,
		engine:  gin.New(),
	}

	r := s.engine
	r.Use(requestLogger(log), gin.Recovery())
	if s.store != nil {
		r.Use(s.visitorTracking())
	}
	r.SetHTMLTemplate(tmpl)
	r.StaticFS("/static", http.FS(web.Static()))

	s.routes()
	s.adminRoutes()
	return s, nil
}

// Handler exposes the engine, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Info("portfolio listening", zap.String("addr", s.cfg.Address))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.Close()
	return nil
}

// Close waits for background metric writes.
func (s *Server) Close() {
	s.background.Wait()
}

// goBackground runs fn detached from the request.
func (s *Server) goBackground(fn func(ctx context.Context)) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		fn(ctx)
	}()
}
