package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bizradar/pkg/scanner"
	"bizradar/pkg/storage"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.DB.GetStats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(stats)
}

func (s *Server) handleBusinesses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := storage.ListOptions{
		RegionID: q.Get("region"),
		Category: q.Get("category"),
	}
	if v := q.Get("min_confidence"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "min_confidence must be an integer", http.StatusBadRequest)
			return
		}
		opts.MinConfidence = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "since must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		opts.FirstSeenSince = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "limit must be an integer", http.StatusBadRequest)
			return
		}
		opts.Limit = n
	}

	businesses, err := s.DB.ListBusinesses(r.Context(), opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(businesses)
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	h, err := s.DB.LoadHierarchy(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(h.All())
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	sessions, err := s.DB.ListSessions(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(sessions)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.DB.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(sess)
}

type StartSessionRequest struct {
	Region     string   `json:"region"`
	Categories []string `json:"categories"`
	Kind       string   `json:"kind"`
	MaxCalls   int64    `json:"max_calls"`
	MaxCostUSD float64  `json:"max_cost_usd"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	if s.Tracker == nil {
		http.Error(w, "scanning is not enabled on this server", http.StatusServiceUnavailable)
		return
	}
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Kind == "" {
		req.Kind = "manual"
	}

	id, err := s.Tracker.Start(r.Context(), req.Region, req.Categories, req.Kind,
		scanner.Budget{MaxCalls: req.MaxCalls, MaxCostUSD: req.MaxCostUSD})
	if err != nil {
		if strings.Contains(err.Error(), "unknown region") || strings.Contains(err.Error(), "invalid session kind") {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"session_id": id})
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	if s.Tracker == nil {
		http.Error(w, "scanning is not enabled on this server", http.StatusServiceUnavailable)
		return
	}
	if err := s.Tracker.Cancel(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "session not found or already finished", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
