package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/attax1994/qiankun/internal/config"
	"github.com/attax1994/qiankun/internal/dom"
	"github.com/attax1994/qiankun/internal/engine"
	hosthttp "github.com/attax1994/qiankun/internal/http"
	"github.com/attax1994/qiankun/internal/loader"
	"github.com/attax1994/qiankun/internal/logging"
	"github.com/attax1994/qiankun/internal/middleware"
	"github.com/attax1994/qiankun/internal/monitoring"
	"github.com/attax1994/qiankun/internal/registry"
	"github.com/attax1994/qiankun/internal/sandbox"
	"github.com/attax1994/qiankun/internal/shared/types"
	"github.com/attax1994/qiankun/internal/ws"
)

// defaultHostPage is the built-in skeleton used when no host page file is
// configured.
const defaultHostPage = `<!DOCTYPE html>
<html>
<head><title>qiankun host</title></head>
<body><div id="root"></div></body>
</html>`

// Server wires the host document, lifecycle engine, application registry,
// and the HTTP/WebSocket transports.
type Server struct {
	cfg      *config.Config
	router   *gin.Engine
	engine   *engine.Engine
	registry *registry.Manager
	metrics  *monitoring.Metrics
	log      *logging.Logger
	http     *http.Server
}

// Options configures a server. Everything defaults to production wiring;
// tests typically inject a Document and a static Loader.
type Options struct {
	Config *config.Config
	Logger *logging.Logger

	// Document is the host page. Defaults to the configured host page
	// file, or a built-in skeleton with a #root container.
	Document *dom.Document

	// Loader fetches application bundles. Defaults to the HTTP loader.
	Loader types.ContentLoader

	// Prometheus backs /metrics and all collectors. Defaults to a fresh
	// registry.
	Prometheus *prometheus.Registry
}

// New builds a server.
func New(opts Options) (*Server, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewDefault()
	}

	prom := opts.Prometheus
	if prom == nil {
		prom = prometheus.NewRegistry()
	}
	metrics := monitoring.NewMetricsWith(prom)

	doc := opts.Document
	if doc == nil {
		var err error
		doc, err = hostDocument(cfg.Server.HostPage)
		if err != nil {
			return nil, err
		}
	}

	ldr := opts.Loader
	if ldr == nil {
		ldr = loader.New(cfg.Loader, log)
	}

	eng, err := engine.New(engine.Options{
		Document: doc,
		Loader:   ldr,
		Sandbox:  sandbox.NewFactory(sandbox.NewHost(log, doc), log, metrics),
		Config:   cfg.Engine,
		Logger:   log,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, err
	}

	manager := registry.NewManager(eng, log, metrics)

	// Seeding failures are not fatal; a bad manifest dir should not keep
	// the host from serving.
	if err := registry.NewSeeder(manager, cfg.Registry.SeedDir, log).Seed(); err != nil {
		log.Warn("registry seeding failed", zap.Error(err))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Trace(log))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	router.Use(monitoring.Middleware(metrics))

	handlers := hosthttp.NewHandlers(manager, eng, metrics, log)
	wsHandler := ws.NewHandler(eng.Bus(), metrics, log)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Application lifecycle
	router.GET("/apps", handlers.ListApps)
	router.POST("/apps", handlers.RegisterApp)
	router.GET("/apps/:name", handlers.GetApp)
	router.DELETE("/apps/:name", handlers.DeregisterApp)
	router.POST("/apps/:name/mount", handlers.MountApp)
	router.POST("/apps/:name/unmount", handlers.UnmountApp)
	router.POST("/apps/:name/update", handlers.UpdateApp)

	// Shared state
	router.GET("/state", handlers.GlobalState)

	// Telemetry
	router.GET("/stats", handlers.Stats)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(prom, promhttp.HandlerOpts{})))

	// WebSocket
	router.GET("/stream", wsHandler.HandleConnection)

	if dir := cfg.Server.StaticDir; dir != "" {
		fs := gzhttp.GzipHandler(http.FileServer(http.Dir(dir)))
		router.GET("/static/*filepath", gin.WrapH(http.StripPrefix("/static", fs)))
	}

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	return &Server{
		cfg:      cfg,
		router:   router,
		engine:   eng,
		registry: manager,
		metrics:  metrics,
		log:      log,
		http:     &http.Server{Addr: addr, Handler: router},
	}, nil
}

// NewServer wires a production server from config alone.
func NewServer(cfg *config.Config, log *logging.Logger) (*Server, error) {
	return New(Options{Config: cfg, Logger: log})
}

// Router exposes the handler tree, for tests and embedding.
func (s *Server) Router() http.Handler { return s.router }

// Registry returns the application registry.
func (s *Server) Registry() *registry.Manager { return s.registry }

// Engine returns the lifecycle engine.
func (s *Server) Engine() *engine.Engine { return s.engine }

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.log.Info("host server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener, then unmounts every mounted application so
// their unmount lifecycles run before the process exits.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down host server")
	err := s.http.Shutdown(ctx)
	s.registry.UnmountAll(ctx)
	return err
}

// hostDocument loads the configured host page, or the built-in skeleton.
func hostDocument(path string) (*dom.Document, error) {
	if path == "" {
		return dom.ParseString(defaultHostPage)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read host page: %w", err)
	}
	doc, err := dom.ParseString(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse host page %s: %w", path, err)
	}
	return doc, nil
}
