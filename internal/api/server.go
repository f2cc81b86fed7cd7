package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/TrumanStellar/Story-Creation/internal/chain"
	"github.com/TrumanStellar/Story-Creation/internal/chain/stellar"
	"github.com/TrumanStellar/Story-Creation/internal/config"
	"github.com/TrumanStellar/Story-Creation/internal/database"
)

// Server is the HTTP API server.
type Server struct {
	cfg      *config.Config
	db       *database.DB
	registry *chain.Registry
	stellar  *stellar.Service // nil when the integration is disabled
	mux      *http.ServeMux
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, db *database.DB, registry *chain.Registry, st *stellar.Service) *Server {
	s := &Server{
		cfg:      cfg,
		db:       db,
		registry: registry,
		stellar:  st,
		mux:      http.NewServeMux(),
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	// Health/status
	s.mux.HandleFunc("/health", s.corsMiddleware(s.health))

	// Read endpoints over the local store
	s.mux.HandleFunc("/api/v1/stories", s.corsMiddleware(s.listStories))
	s.mux.HandleFunc("/api/v1/tasks", s.corsMiddleware(s.listTasks))
	s.mux.HandleFunc("/api/v1/submits", s.corsMiddleware(s.listSubmits))
	s.mux.HandleFunc("/api/v1/assets", s.corsMiddleware(s.listAssets))
	s.mux.HandleFunc("/api/v1/transactions", s.corsMiddleware(s.listTransactions))

	// Envelope builders
	s.mux.HandleFunc("/api/v1/assets/publish", s.corsMiddleware(s.publishAsset))
	s.mux.HandleFunc("/api/v1/assets/buy", s.corsMiddleware(s.buyAsset))
	s.mux.HandleFunc("/api/v1/assets/claim", s.corsMiddleware(s.claimAsset))
	s.mux.HandleFunc("/api/v1/tasks/transfer", s.corsMiddleware(s.taskRewardTransfer))
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.loggingMiddleware(s.mux)
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, ErrorResponse{Error: message})
}

func (s *Server) listResponse(w http.ResponseWriter, data interface{}, count int) {
	// Handle nil slice
	if data == nil {
		data = []interface{}{}
	}

	s.jsonResponse(w, http.StatusOK, ListResponse{
		Data:  data,
		Count: count,
	})
}
