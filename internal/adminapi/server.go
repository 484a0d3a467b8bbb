// Package adminapi exposes the core's own read-only status surface: a
// health check, per-instrument run status, and a Prometheus /metrics
// endpoint. /metrics serves the process-wide default registry; collectors
// that internal/app registers on its own isolated registry do not appear
// there. It is not the CLI (which selects strategy, data
// source and input files) and not the GUI — both are external per
// spec.md §6 — just the core's own introspection endpoint for a local
// dashboard or supervisor to poll.
package adminapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// InstrumentStatus is one instrument's run state as last passed to
// StatusStore.Update. The coordinator does not call Update itself.
type InstrumentStatus struct {
	Instrument    string    `json:"instrument"`
	StrategyIndex int       `json:"strategy_index"`
	Processed     int       `json:"messages_processed"`
	Dropped       int       `json:"messages_dropped"`
	FinalPosition int32     `json:"final_position"`
	FinalPnL      float64   `json:"final_pnl"`
	FileDropped   uint64    `json:"file_log_dropped"`
	DBDropped     uint64    `json:"db_log_dropped"`
	Err           string    `json:"error,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StatusStore is the admin server's view of run state, updated by
// whatever owns the coordinator and read by the HTTP handlers. Safe for
// concurrent use.
type StatusStore struct {
	mu     sync.RWMutex
	byInst map[string]InstrumentStatus
}

func NewStatusStore() *StatusStore {
	return &StatusStore{byInst: make(map[string]InstrumentStatus)}
}

func (s *StatusStore) Update(st InstrumentStatus) {
	st.UpdatedAt = time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byInst[st.Instrument] = st
}

func (s *StatusStore) Snapshot() []InstrumentStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]InstrumentStatus, 0, len(s.byInst))
	for _, st := range s.byInst {
		out = append(out, st)
	}
	return out
}

// Server is the admin HTTP surface: /healthz, /status, /metrics, and
// (when enabled) a websocket tail of telemetry lines at /tail.
type Server struct {
	router *gin.Engine
	http   *http.Server
	logger *zap.Logger
	status *StatusStore
	tail   *TailHub
}

// Config controls the listen address, CORS origins, and whether the
// websocket tail endpoint is mounted.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	EnableWSTail bool
}

func New(cfg Config, status *StatusStore, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(cfg.CORSOrigins))

	s := &Server{
		router: router,
		logger: logger,
		status: status,
	}

	router.GET("/healthz", s.handleHealthz)
	router.GET("/status", s.handleStatus)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.EnableWSTail {
		s.tail = NewTailHub(logger)
		router.GET("/tail", s.tail.HandleUpgrade)
	}

	s.http = &http.Server{Addr: cfg.ListenAddr, Handler: router}
	return s
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet},
	})
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.status.Snapshot())
}

// Tail returns the hub for the file-log consumer to fan lines into, or
// nil when the websocket tail is disabled.
func (s *Server) Tail() *TailHub { return s.tail }

// Start runs the HTTP server until Shutdown is called. Intended to be
// launched in its own goroutine by an fx lifecycle hook.
func (s *Server) Start() error {
	s.logger.Info("admin server listening", zap.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.tail != nil {
		s.tail.Close()
	}
	return s.http.Shutdown(ctx)
}
