package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/arya-gaj/veri/internal/agent"
	"github.com/arya-gaj/veri/internal/models"
	"github.com/arya-gaj/veri/internal/store"
	"github.com/arya-gaj/veri/internal/util"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// queryTimeout caps one query request at the transport layer, above the
// resolver's own deadline.
const queryTimeout = 60 * time.Second

// Themed error bodies. Internal detail stays in the logs; clients only ever
// see these.
const (
	errMsgInvalidAddress = "The Great Oz cannot divine that address. A wallet address must begin with 0x followed by 40 hexadecimal characters."
	errMsgEmptyQuery     = "The Great Oz awaits your question, but none was asked. Speak, traveler."
	errMsgInternal       = "The curtain has fallen unexpectedly. The Great Oz could not complete your request; please try again shortly."
)

// Server is the HTTP front of the query service
type Server struct {
	resolver   *agent.Resolver
	feed       BlockFeed
	network    models.Network
	store      store.Store
	httpServer *http.Server
	log        zerolog.Logger

	// pingInterval is the SSE keep-alive cadence, shortened in tests
	pingInterval time.Duration
}

// NewServer creates the HTTP server. feed and queryStore may be nil, which
// disables the stream and history endpoints respectively.
func NewServer(addr string, resolver *agent.Resolver, feed BlockFeed, network models.Network, queryStore store.Store, log zerolog.Logger) *Server {
	s := &Server{
		resolver:     resolver,
		feed:         feed,
		network:      network,
		store:        queryStore,
		log:          log.With().Str("component", "api").Logger(),
		pingInterval: 30 * time.Second,
	}

	router := mux.NewRouter()
	router.Use(s.requestIDMiddleware, s.loggingMiddleware, s.corsMiddleware, s.recoveryMiddleware)

	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/api/v1/query", s.handleQuery).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/v1/stream", s.handleStream).Methods("GET")
	router.HandleFunc("/api/v1/network", s.handleNetwork).Methods("GET")
	router.HandleFunc("/api/v1/history/{address}", s.handleHistory).Methods("GET")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start begins serving. Blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"network": s.network.Name,
		"chainId": s.network.ID,
	})
}

func (s *Server) handleNetwork(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.network.ToPublic())
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeDecline(w, http.StatusBadRequest, errMsgEmptyQuery)
		return
	}

	if req.Query == "" {
		s.writeDecline(w, http.StatusBadRequest, errMsgEmptyQuery)
		return
	}

	response, err := s.resolver.Resolve(ctx, req.Query, req.WalletAddress)
	if err != nil {
		if errors.Is(err, agent.ErrInvalidAddress) {
			s.writeDecline(w, http.StatusBadRequest, errMsgInvalidAddress)
			return
		}
		s.log.Error().Err(err).Msg("query resolution failed")
		s.writeDecline(w, http.StatusInternalServerError, errMsgInternal)
		return
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if !util.IsHexAddress(address) {
		s.writeError(w, http.StatusBadRequest, errMsgInvalidAddress)
		return
	}

	// No store configured means no archives, not a fault
	if s.store == nil {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"address": address,
			"history": []store.QueryLog{},
		})
		return
	}

	limit := int64(20)
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := s.store.History(r.Context(), address, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("history read failed")
		s.writeError(w, http.StatusInternalServerError, errMsgInternal)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"address": address,
		"history": entries,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("response encode failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeDecline is the query endpoint's failure shape: same envelope as a
// success, unverified, with the themed text as the summary.
func (s *Server) writeDecline(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, &models.QueryResponse{
		Summary:  message,
		Verified: false,
	})
}

// requestIDMiddleware tags every request with an ID for log correlation
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(
			s.log.With().Str("request_id", requestID).Logger().WithContext(r.Context()),
		))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		zerolog.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panicked")
				s.writeError(w, http.StatusInternalServerError, errMsgInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
