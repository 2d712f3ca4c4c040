package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"refgrow/internal/config"
	"refgrow/internal/referral"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"
)

const authRealm = "refgrow admin"

type Server struct {
	cfg     config.AdminConfig
	log     *slog.Logger
	svc     *referral.Service
	metrics http.Handler
	mux     *chi.Mux
}

// New builds the admin router. metricsHandler may be nil, in which case
// /metrics is not mounted.
func New(cfg config.AdminConfig, logger *slog.Logger, svc *referral.Service, metricsHandler http.Handler) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		log:     logger,
		svc:     svc,
		metrics: metricsHandler,
		mux:     chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/participants", s.handleParticipants)
		r.Get("/participants/{id}", s.handleParticipant)
	})
}

// authMiddleware enforces HTTP basic auth against the configured bcrypt
// hash. With no hash configured every request is refused.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.cfg.PasswordHash) == 0 {
			writeError(w, http.StatusServiceUnavailable, "admin api is disabled")
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="`+authRealm+`"`)
			writeError(w, http.StatusUnauthorized, "missing credentials")
			return
		}
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.User)) == 1
		passErr := bcrypt.CompareHashAndPassword(s.cfg.PasswordHash, []byte(pass))
		if !userOK || passErr != nil {
			s.log.Warn("admin auth rejected", "user", user, "remote", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Basic realm="`+authRealm+`"`)
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type participantView struct {
	referral.Participant
	Link      string     `json:"link"`
	InvitedBy *int64     `json:"invited_by,omitempty"`
	JoinedAt  *time.Time `json:"joined_at,omitempty"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := referral.DefaultTopN
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	rows, err := s.svc.TopN(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) {
	all, err := s.svc.ListAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]participantView, 0, len(all))
	for _, p := range all {
		out = append(out, participantView{Participant: p, Link: s.svc.Link(p.ID)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": out})
}

func (s *Server) handleParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid participant id")
		return
	}
	p, err := s.svc.Participant(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	view := participantView{Participant: p, Link: s.svc.Link(p.ID)}
	join, ok, err := s.svc.InvitedBy(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if ok {
		view.InvitedBy = &join.InviterID
		view.JoinedAt = &join.JoinedAt
	}
	writeJSON(w, http.StatusOK, view)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, referral.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, referral.ErrInvalidParticipant):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
