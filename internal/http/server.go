package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/taxi-admin/internal/assignment"
	"github.com/example/taxi-admin/internal/cache"
	"github.com/example/taxi-admin/internal/commissions"
	"github.com/example/taxi-admin/internal/config"
	"github.com/example/taxi-admin/internal/dispatch"
	"github.com/example/taxi-admin/internal/events"
	"github.com/example/taxi-admin/internal/hires"
	"github.com/example/taxi-admin/internal/payments"
	"github.com/example/taxi-admin/internal/pending"
	"github.com/example/taxi-admin/internal/recordstore"
	"github.com/example/taxi-admin/internal/storage"
)

// Server wires the queue aggregator, the assignment coordinator and the
// desk services behind the admin HTTP API.
type Server struct {
	Store       *recordstore.Client
	Queue       *pending.Aggregator
	Coordinator *assignment.Coordinator
	Hires       *hires.Service
	Commissions *commissions.Service
	WSReg       *dispatch.WSRegistry

	logger *slog.Logger
	mux    *mux.Router
}

// NewServer builds the full dependency graph from config. Optional
// backends (Redis, Kafka, Postgres, push) are wired only when configured;
// everything degrades to in-process equivalents.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) *Server {
	store := recordstore.New(cfg.StoreBaseURL, cfg.StoreTimeout)

	var profiles cache.ProfileCache
	if cfg.RedisAddr != "" {
		profiles = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisProfileKey, cfg.ProfileCacheTTL)
	} else {
		profiles = cache.NewMemoryCache(cfg.ProfileCacheTTL)
	}

	wsreg := dispatch.NewWSRegistry(logger)
	queue := &pending.Aggregator{
		Store:    store,
		Cache:    profiles,
		Logger:   logger,
		PageSize: cfg.PageSize,
		OnUpdate: func(snap pending.Snapshot) {
			wsreg.Broadcast(map[string]any{"type": "queue", "snapshot": snap})
		},
	}

	var audit storage.AuditStore
	if cfg.PGDSN != "" {
		if ps, err := storage.NewPostgresStore(cfg.PGDSN); err == nil {
			audit = ps
		} else {
			logger.Warn("postgres audit store unavailable, using memory", "error", err)
		}
	}
	if audit == nil {
		audit = storage.NewMemoryStore()
	}

	var producer assignment.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	var notify assignment.Notifier
	if cfg.PushEndpoint != "" {
		notify = dispatch.NewPushNotifier(cfg.PushEndpoint, cfg.PushKey)
	}

	coordinator := &assignment.Coordinator{
		Store:  store,
		Audit:  audit,
		Events: producer,
		Notify: notify,
		Logger: logger,
	}

	hireSvc := &hires.Service{Store: store, Logger: logger, PageSize: cfg.PageSize}
	commissionSvc := &commissions.Service{
		Store:             store,
		Payments:          payments.NewStripeClient(),
		Logger:            logger,
		PageSize:          cfg.PageSize,
		Rate:              cfg.CommissionRate,
		DefaultBaseAmount: cfg.DefaultBaseAmount,
	}

	return newServer(store, queue, coordinator, hireSvc, commissionSvc, wsreg, logger)
}

func newServer(store *recordstore.Client, queue *pending.Aggregator, coordinator *assignment.Coordinator,
	hireSvc *hires.Service, commissionSvc *commissions.Service, wsreg *dispatch.WSRegistry, logger *slog.Logger) *Server {
	s := &Server{
		Store:       store,
		Queue:       queue,
		Coordinator: coordinator,
		Hires:       hireSvc,
		Commissions: commissionSvc,
		WSReg:       wsreg,
		logger:      logger,
		mux:         mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/queue", s.handleQueue).Methods("GET")
	api.HandleFunc("/queue/refresh", s.handleQueueRefresh).Methods("POST")

	api.HandleFunc("/hires", s.handleListHires).Methods("GET")
	api.HandleFunc("/hires", s.handleCreateHire).Methods("POST")
	api.HandleFunc("/hires/{id}/complete", s.handleCompleteHire).Methods("POST")
	api.HandleFunc("/hires/{id}/cancel", s.handleCancelHire).Methods("POST")
	api.HandleFunc("/hires/{id}/candidates", s.handleCandidates).Methods("GET")
	api.HandleFunc("/hires/{id}/assign", s.handleAssign).Methods("POST")
	api.HandleFunc("/hires/{id}/assign/retry-acceptance", s.handleRetryAcceptance).Methods("POST")

	api.HandleFunc("/commissions", s.handleListCommissions).Methods("GET")
	api.HandleFunc("/commissions/generate", s.handleGenerateCommissions).Methods("POST")
	api.HandleFunc("/commissions/{id}/pay", s.handlePayCommission).Methods("POST")
	api.HandleFunc("/commissions/{id}/collect-card", s.handleCollectCommissionCard).Methods("POST")
	api.HandleFunc("/drivers/{id}/annual-fee/pay", s.handlePayAnnualFee).Methods("POST")

	api.HandleFunc("/vehicle-types", s.handleVehicleTypes).Methods("GET")
	api.HandleFunc("/vehicle-models", s.handleVehicleModels).Methods("GET")

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
