package server

import (
	"context"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openchat/openchat-pc/backend/internal/config"
	"github.com/openchat/openchat-pc/backend/internal/http"
	"github.com/openchat/openchat-pc/backend/internal/logging"
	"github.com/openchat/openchat-pc/backend/internal/middleware"
	"github.com/openchat/openchat-pc/backend/internal/monitoring"
	"github.com/openchat/openchat-pc/backend/internal/terminal"
	"github.com/openchat/openchat-pc/backend/internal/ws"
)

// Server wires the terminal manager, push channel, and HTTP surface.
type Server struct {
	cfg      *config.Config
	log      *logging.Logger
	terminal *terminal.Manager
	hub      *ws.Hub
	metrics  *monitoring.Metrics
	httpSrv  *stdhttp.Server
}

// New builds a server from configuration. The hub is the manager's
// emitter: session output flows forwarder → hub → connected clients.
func New(cfg *config.Config, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NewDefault()
	}

	metrics := monitoring.NewMetrics()
	hub := ws.NewHub(log.Named("ws"), metrics)
	manager := terminal.NewManager(hub, log.Named("terminal"), terminal.Options{
		DefaultShell: cfg.Terminal.DefaultShell,
		WriteTimeout: cfg.Terminal.WriteTimeout,
	}).WithMetrics(metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(monitoring.Middleware(metrics))

	handlers := http.NewHandlers(manager)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Session commands
	router.POST("/sessions", handlers.CreateSession)
	router.GET("/sessions", handlers.ListSessions)
	router.GET("/sessions/:id", handlers.GetSession)
	router.POST("/sessions/:id/input", handlers.WriteSession)
	router.POST("/sessions/:id/resize", handlers.ResizeSession)
	router.DELETE("/sessions/:id", handlers.DestroySession)

	// Push channel
	router.GET("/stream", hub.HandleConnection)

	srv := &stdhttp.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	return &Server{
		cfg:      cfg,
		log:      log,
		terminal: manager,
		hub:      hub,
		metrics:  metrics,
		httpSrv:  srv,
	}
}

// Run serves until the listener fails or Close is called.
func (s *Server) Run() error {
	s.log.Info("server listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts the HTTP listener down and destroys all live sessions.
// Sessions are process-lifetime resources; nothing persists.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.httpSrv.Shutdown(ctx)
	s.terminal.Shutdown()
	s.log.Info("server stopped")
	return err
}
