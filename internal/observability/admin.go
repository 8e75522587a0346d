package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/titpd/internal/auth"
	"github.com/danmuck/titpd/internal/processor"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const Version = "0.1.0"

// StatusSource reports transaction server state to the admin endpoints.
type StatusSource interface {
	Ready() bool
	ActiveSessions() int64
}

// ProcessorLister exposes the registered processors.
type ProcessorLister interface {
	Entries() []processor.Entry
}

type AdminConfig struct {
	Addr        string
	CORSOrigins []string
	// Token guards /metrics and /processors when set.
	Token string
}

// AdminServer is the HTTP side channel: health, readiness, Prometheus
// metrics and the processor table.
type AdminServer struct {
	cfg        AdminConfig
	router     *gin.Engine
	status     StatusSource
	processors ProcessorLister
	started    time.Time
}

func NewAdminServer(cfg AdminConfig, status StatusSource, processors ProcessorLister) *AdminServer {
	RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestObserver(log.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &AdminServer{
		cfg:        cfg,
		router:     r,
		status:     status,
		processors: processors,
		started:    time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *AdminServer) Handler() http.Handler {
	return s.router
}

func (s *AdminServer) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"version": Version,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		ready := s.status != nil && s.status.Ready()
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		var sessions int64
		if s.status != nil {
			sessions = s.status.ActiveSessions()
		}
		c.JSON(code, gin.H{
			"ready":           ready,
			"active_sessions": sessions,
			"uptime":          time.Since(s.started).String(),
		})
	})

	guarded := s.router.Group("/")
	if s.cfg.Token != "" {
		guarded.Use(requireToken(auth.StaticToken{Token: s.cfg.Token}))
	}

	guarded.GET("/metrics", gin.WrapH(promhttp.Handler()))

	guarded.GET("/processors", func(c *gin.Context) {
		var entries []processor.Entry
		if s.processors != nil {
			entries = s.processors.Entries()
		}
		c.JSON(http.StatusOK, gin.H{"processors": entries})
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *AdminServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *AdminServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("admin_listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requireToken(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.CheckHeader(v, c.GetHeader("Authorization")); err != nil {
			log.Warn().Str("path", c.Request.URL.Path).Str("client_ip", c.ClientIP()).Msg("admin_unauthorized")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
