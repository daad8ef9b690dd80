// Package server exposes the automations over HTTP: a balance lookup and
// two websocket endpoints that stream run progress.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"engageflow/config"
	"engageflow/internal/metrics"
	"engageflow/internal/platform"
	"engageflow/internal/token"
	"engageflow/logger"
)

const defaultPort = "8000"

// Server hosts the balance API and the automation websockets.
type Server struct {
	cfg        *config.Config
	log        *logger.Log
	address    string
	httpServer *http.Server
	upgrader   websocket.Upgrader

	logs    *logStore
	sampler *resourceSampler
	active  atomic.Int64
	served  atomic.Int64

	// sessions outlive their HTTP handler once the connection is hijacked,
	// so they hang off a context of their own.
	sessionCtx   context.Context
	stopSessions context.CancelFunc
	sessions     sync.WaitGroup
	mu           sync.Mutex
	closing      bool
}

func NewServer(cfg *config.Config, log *logger.Log) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:          cfg,
		log:          log,
		address:      normalizeAddress(cfg.Server.Address),
		sessionCtx:   ctx,
		stopSessions: cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.originAllowed,
	}
	if status := cfg.Server.Status; status.Enabled {
		s.logs = newLogStore(status.LogHistory)
		log.AddHook(s.logs)
		s.sampler = newResourceSampler(status.SampleHistory, status.SampleInterval, log)
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down the listener and
// cancels every live session.
func (s *Server) Run(ctx context.Context) error {
	router, err := s.Handler()
	if err != nil {
		return err
	}
	defer s.cleanup()
	if s.sampler != nil {
		s.sampler.start(ctx)
	}

	s.httpServer = &http.Server{
		Addr:              s.address,
		Handler:           router,
		ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithComponent("server").WithField("address", s.address).Info("listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		timeout := s.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)
		s.drainSessions()
		<-errCh
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case err := <-errCh:
		s.drainSessions()
		return err
	}
}

// trackSession registers a session unless the server is draining.
func (s *Server) trackSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.sessions.Add(1)
	return true
}

// drainSessions refuses new sessions, cancels live ones and waits for them
// to finish.
func (s *Server) drainSessions() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	s.stopSessions()
	s.sessions.Wait()
}

func (s *Server) cleanup() {
	if s.logs != nil {
		s.logs.close()
	}
	if s.sampler != nil {
		s.sampler.stop()
	}
}

// Address reports the network address the server listens on.
func (s *Server) Address() string {
	return s.address
}

// Handler builds the router.
func (s *Server) Handler() (http.Handler, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	allowCORS, err := corsMiddleware(s.cfg.Server.AllowedOrigins)
	if err != nil {
		return nil, err
	}
	if allowCORS != nil {
		router.Use(allowCORS)
	}
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.cfg.App.Version})
	})
	if s.cfg.Metrics.Prometheus {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	if s.logs != nil {
		router.GET("/api/status", s.handleStatus)
	}
	router.POST("/api/balance", s.handleBalance)
	router.GET("/ws/tasks", func(c *gin.Context) { s.serveSession(c, tasksSession) })
	router.GET("/ws/spin", func(c *gin.Context) { s.serveSession(c, spinSession) })

	return router, nil
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleBalance(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "token is required"})
		return
	}

	userID, err := token.Identify(req.Token)
	if err != nil {
		s.log.WithComponent("balance").WithError(err).Debug("rejected token")
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid token"})
		return
	}

	client := platform.NewClient(s.cfg.Platform, token.StripBearer(req.Token))
	defer client.Close()

	report := client.Report(c.Request.Context(), userID)
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleStatus(c *gin.Context) {
	var resources []resourceSnapshot
	if s.sampler != nil {
		resources = s.sampler.snapshot()
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": gin.H{
			"active": s.active.Load(),
			"total":  s.served.Load(),
		},
		"warnings":  s.logs.snapshot(),
		"resources": resources,
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	log := s.log.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logger.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("request")
	}
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:" + defaultPort
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if host := parsed.Host; host != "" {
				addr = host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = defaultPort
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, defaultPort)
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, defaultPort)
	}

	return addr
}
