package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/AdeshRathod/OktaGuard/internal/config"
	"github.com/AdeshRathod/OktaGuard/internal/detection"
	"github.com/AdeshRathod/OktaGuard/internal/geoip"
	"github.com/AdeshRathod/OktaGuard/internal/ingestion"
	"github.com/AdeshRathod/OktaGuard/internal/mfa"
	"github.com/AdeshRathod/OktaGuard/internal/models"
	"github.com/AdeshRathod/OktaGuard/internal/remediation"
	"github.com/AdeshRathod/OktaGuard/internal/storage"
	"github.com/AdeshRathod/OktaGuard/pkg/okta"
)

// Server represents the HTTP API server
type Server struct {
	config         *config.Config
	router         *mux.Router
	httpServer     *http.Server
	store          storage.DocumentStore
	engine         *detection.Engine
	worker         *ingestion.Worker
	remediationSvc *remediation.Service
	auditor        *mfa.Auditor
	logger         *zap.Logger
}

// NewServer creates a new API server instance wired to the detection engine,
// scan worker and remediation service.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	store, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	client := okta.NewClient(cfg.Okta.OrgURL, cfg.Okta.APIToken)
	remediationSvc := remediation.NewService(client, logger)

	var resolver detection.CountryResolver
	if cfg.GeoIP.Enabled {
		r, err := geoip.Open(cfg.GeoIP.DBPath)
		if err != nil {
			logger.Warn("geoip enrichment disabled", zap.Error(err))
		} else {
			resolver = r
		}
	}

	engine := detection.NewEngine(cfg, store, remediationSvc, resolver, logger)
	worker := ingestion.NewWorker(cfg, client, engine, store, logger)

	router := mux.NewRouter()

	corsMiddleware := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "Accept"}),
	)

	server := &Server{
		config:         cfg,
		router:         router,
		store:          store,
		engine:         engine,
		worker:         worker,
		remediationSvc: remediationSvc,
		auditor:        mfa.NewAuditor(client),
		logger:         logger,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
			Handler:      corsMiddleware(router),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	server.setupRoutes()
	return server, nil
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.healthCheck).Methods("GET")

	api := s.router.PathPrefix(s.config.Server.APIPrefix).Subrouter()
	api.HandleFunc("/alerts", s.listAlerts).Methods("GET")
	api.HandleFunc("/remediate/{userId}", s.remediateUser).Methods("POST")
	api.HandleFunc("/rescan", s.rescan).Methods("POST")
	api.HandleFunc("/mfa/audit", s.mfaAudit).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// StartWorker starts the background scan loop.
func (s *Server) StartWorker(ctx context.Context) error {
	return s.worker.Start(ctx)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// listAlerts returns a snapshot of the persisted alert log.
func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	db, err := s.store.Load(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list alerts: %v", err), http.StatusInternalServerError)
		return
	}

	alerts := db.Alerts
	if alerts == nil {
		alerts = []*models.Alert{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// remediateUser suspends an account on request and marks its alerts as
// manually remediated.
func (s *Server) remediateUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := s.remediationSvc.Suspend(ctx, userID); err != nil {
		http.Error(w, fmt.Sprintf("Remediation failed: %v", err), http.StatusInternalServerError)
		return
	}

	updated, err := s.engine.MarkRemediated(ctx, userID)
	if err != nil {
		s.logger.Error("failed to mark alerts remediated",
			zap.String("account_id", userID),
			zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"updated": updated,
	})
}

// rescan triggers an immediate scan.
func (s *Server) rescan(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.worker.RunOnce(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Rescan failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"found":   len(alerts),
	})
}

// mfaAudit reports accounts with weak MFA enrollment.
func (s *Server) mfaAudit(w http.ResponseWriter, r *http.Request) {
	findings, err := s.auditor.Audit(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("MFA audit failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"findings": findings,
		"count":    len(findings),
	})
}
