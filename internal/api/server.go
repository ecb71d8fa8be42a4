package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"samstore/ingest/internal/cache"
	"samstore/ingest/internal/config"
	"samstore/ingest/internal/repository"
	"samstore/ingest/internal/service"

	log "github.com/sirupsen/logrus"
)

// Server is the thin HTTP caller around the ingestion core and the
// catalog read endpoints.
type Server struct {
	config     config.ServerConfig
	router     http.Handler
	httpServer *http.Server

	service    *service.Service
	categories repository.CategoryRepository
	products   repository.ProductRepository
	home       repository.HomeRepository
	cache      cache.CatalogCache

	inferCategoryContext bool
}

func NewServer(
	cfg config.ServerConfig,
	svc *service.Service,
	categories repository.CategoryRepository,
	products repository.ProductRepository,
	home repository.HomeRepository,
	catalogCache cache.CatalogCache,
	inferCategoryContext bool,
) *Server {
	s := &Server{
		config:               cfg,
		service:              svc,
		categories:           categories,
		products:             products,
		home:                 home,
		cache:                catalogCache,
		inferCategoryContext: inferCategoryContext,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	log.Infof("HTTP API listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
