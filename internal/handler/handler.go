package handler

import (
	"database/sql"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"memorialwall/internal/config"
	"memorialwall/internal/model"
)

// Handler holds application dependencies
type Handler struct {
	DB        *sql.DB
	Config    config.Config
	Log       *zap.SugaredLogger
	Clients   map[*websocket.Conn]string // conn -> subscribed scope
	ClientMu  sync.RWMutex
	Broadcast chan model.Event

	limiter *limiterPool
}

// New creates a new Handler with the given dependencies
func New(db *sql.DB, cfg config.Config, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{
		DB:        db,
		Config:    cfg,
		Log:       log,
		Clients:   make(map[*websocket.Conn]string),
		Broadcast: make(chan model.Event, 100),
		limiter:   newLimiterPool(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
}

// SetupRouter configures and returns the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	// REST API
	r.HandleFunc("/entries", h.GetEntries).Methods("GET")
	r.HandleFunc("/entries", h.CreateEntry).Methods("POST")
	r.HandleFunc("/entries/{id}", h.DeleteEntry).Methods("DELETE")

	// WebSocket
	r.HandleFunc("/ws", h.HandleWebSocket).Methods("GET")

	r.HandleFunc("/healthz", h.Healthz).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}
