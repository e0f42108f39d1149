package server

import (
	"log"
	"net/http"

	"bizradar/pkg/scanner"
	"bizradar/pkg/storage"
)

type Server struct {
	DB       *storage.DB
	Tracker  *scanner.Tracker
	Username string
	Password string
}

func New(db *storage.DB, tracker *scanner.Tracker, user, pass string) *Server {
	return &Server{
		DB:       db,
		Tracker:  tracker,
		Username: user,
		Password: pass,
	}
}

func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/stats", s.basicAuth(s.handleStats))
	mux.HandleFunc("GET /api/businesses", s.basicAuth(s.handleBusinesses))
	mux.HandleFunc("GET /api/regions", s.basicAuth(s.handleRegions))
	mux.HandleFunc("GET /api/sessions", s.basicAuth(s.handleSessions))
	mux.HandleFunc("GET /api/sessions/{id}", s.basicAuth(s.handleSession))
	mux.HandleFunc("POST /api/sessions", s.basicAuth(s.handleStartSession))
	mux.HandleFunc("POST /api/sessions/{id}/cancel", s.basicAuth(s.handleCancelSession))

	log.Printf("Starting server on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
