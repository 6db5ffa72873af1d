package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verushub/stakewatch/internal/core/domain"
	"github.com/verushub/stakewatch/internal/indexing/gaps"
	"github.com/verushub/stakewatch/internal/indexing/scan"
	"github.com/verushub/stakewatch/internal/infra/chain"
	"github.com/verushub/stakewatch/internal/infra/storage"
)

// Server exposes the scan trigger and query endpoints.
type Server struct {
	coordinator *scan.Coordinator
	detector    *gaps.Detector
	store       storage.Store
	node        chain.Node
	server      *http.Server
}

// NewServer creates the HTTP server on port.
func NewServer(
	port int,
	coordinator *scan.Coordinator,
	detector *gaps.Detector,
	store storage.Store,
	node chain.Node,
) *Server {
	mux := http.NewServeMux()
	s := &Server{
		coordinator: coordinator,
		detector:    detector,
		store:       store,
		node:        node,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("POST /scan/fast", s.handleFastScan)
	mux.HandleFunc("POST /scan/backfill", s.handleBackfill)
	mux.HandleFunc("GET /coverage", s.handleCoverage)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /rewards", s.handleRewards)
	mux.HandleFunc("GET /summary", s.handleSummary)
	mux.HandleFunc("GET /identity", s.handleIdentity)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusCode maps a trigger outcome to its HTTP status. A run is always
// observable afterwards via /status; no trigger ends in a dropped connection.
func writeTriggerStatus(w http.ResponseWriter, status scan.Status) {
	switch status {
	case scan.StatusAccepted:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": string(status)})
	case scan.StatusAlreadyRunning:
		writeJSON(w, http.StatusConflict, map[string]string{"status": string(status)})
	case scan.StatusCapabilityUnavailable:
		writeJSON(w, http.StatusNotImplemented, map[string]string{
			"status": string(status),
			"hint":   "node has no address index; use POST /scan/backfill for a full range walk",
		})
	default:
		writeError(w, http.StatusInternalServerError, "unknown trigger status")
	}
}

func (s *Server) handleFastScan(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if !domain.IsIdentityAddress(address) {
		writeError(w, http.StatusBadRequest, "address must be an identity address")
		return
	}
	writeTriggerStatus(w, s.coordinator.RequestFastScan(r.Context(), address))
}

type backfillRequest struct {
	Start   uint64  `json:"start"`
	End     *uint64 `json:"end"`
	Address string  `json:"address"`
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	var req backfillRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.End != nil && *req.End < req.Start {
		writeError(w, http.StatusBadRequest, "end must be >= start")
		return
	}
	if req.Address != "" {
		if !domain.IsIdentityAddress(req.Address) {
			writeError(w, http.StatusBadRequest, "address must be an identity address")
			return
		}
		writeTriggerStatus(w, s.coordinator.RequestAddressBackfill(r.Context(), req.Address))
		return
	}
	writeTriggerStatus(w, s.coordinator.RequestBackfill(r.Context(), req.Start, req.End))
}

type coverageResponse struct {
	Covered []gaps.Range                            `json:"covered"`
	Gaps    []gaps.Range                            `json:"gaps"`
	Tip     uint64                                  `json:"chain_tip"`
	Targets map[domain.ScanTarget]scan.TargetStatus `json:"targets"`
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	covered, err := s.detector.Coverage(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	tip, err := s.node.CurrentHeight(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("node unreachable: %v", err))
		return
	}
	uncovered, err := s.detector.FindGaps(r.Context(), tip)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, coverageResponse{
		Covered: covered,
		Gaps:    uncovered,
		Tip:     tip,
		Targets: s.coordinator.Status(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.Status())
}

func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if !domain.IsIdentityAddress(address) {
		writeError(w, http.StatusBadRequest, "address must be an identity address")
		return
	}
	rewards, err := s.store.Rewards().GetByAddress(r.Context(), address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": address,
		"count":   len(rewards),
		"rewards": rewards,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if !domain.IsIdentityAddress(address) {
		writeError(w, http.StatusBadRequest, "address must be an identity address")
		return
	}
	sum, err := s.store.Summaries().Get(r.Context(), address)
	if errors.Is(err, storage.ErrSummaryNotFound) {
		writeError(w, http.StatusNotFound, "no rewards indexed for address")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleIdentity resolves an identity name through the node, returns its
// stored summary, and kicks off a fast scan when the address has no rows yet.
func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	identity, err := s.node.Identity(r.Context(), name)
	if err != nil {
		if errors.Is(err, chain.ErrBlockNotFound) {
			writeError(w, http.StatusNotFound, "identity not found")
			return
		}
		writeError(w, http.StatusBadGateway, fmt.Sprintf("identity lookup failed: %v", err))
		return
	}

	resp := map[string]any{"identity": identity}
	sum, err := s.store.Summaries().Get(r.Context(), identity.IdentityAddr)
	switch {
	case errors.Is(err, storage.ErrSummaryNotFound):
		resp["scan"] = string(s.coordinator.RequestFastScan(r.Context(), identity.IdentityAddr))
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	default:
		resp["summary"] = sum
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := s.node.CurrentHeight(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"node":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
