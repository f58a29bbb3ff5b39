package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Semhkaramn/msharleyrandy/internal/models"
	"github.com/Semhkaramn/msharleyrandy/internal/service"
)

// Server provides the read-only ops HTTP surface: health, metrics and JSON
// views over the raffle and roll state.
type Server struct {
	svc    *service.Service
	logger *logrus.Logger
	mux    *http.ServeMux
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, logger *logrus.Logger) *Server {
	s := &Server{svc: svc, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /api/raffles", s.handleGetRaffle)
	s.mux.HandleFunc("GET /api/rolls/{group}", s.handleGetRoll)
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// requireGroupID reads the group query parameter. It writes an error
// response and returns 0 when the parameter is absent or invalid.
func (s *Server) requireGroupID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("group")
	if raw == "" {
		s.respondError(w, http.StatusBadRequest, "group query parameter is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "group must be an integer")
		return 0, false
	}
	return id, true
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------------------------------------------------------------------------
// Raffles
// ---------------------------------------------------------------------------

type raffleView struct {
	Raffle   *models.Raffle          `json:"raffle"`
	Entrants int                     `json:"entrants"`
	Channels []*models.RaffleChannel `json:"channels"`
}

func (s *Server) handleGetRaffle(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.requireGroupID(w, r)
	if !ok {
		return
	}

	raffle, err := s.svc.ActiveRaffle(r.Context(), groupID)
	if err != nil {
		s.logger.WithError(err).Error("failed to get active raffle")
		s.respondError(w, http.StatusInternalServerError, "failed to get active raffle")
		return
	}
	if raffle == nil {
		s.respondError(w, http.StatusNotFound, "no active raffle for this group")
		return
	}

	entrants, err := s.svc.Participants.CountEntrants(r.Context(), raffle.ID)
	if err != nil {
		s.logger.WithError(err).Error("failed to count entrants")
		s.respondError(w, http.StatusInternalServerError, "failed to count entrants")
		return
	}

	channels, err := s.svc.Raffles.ListChannels(r.Context(), raffle.ID)
	if err != nil {
		s.logger.WithError(err).Error("failed to list raffle channels")
		s.respondError(w, http.StatusInternalServerError, "failed to list raffle channels")
		return
	}

	s.respondJSON(w, http.StatusOK, raffleView{Raffle: raffle, Entrants: entrants, Channels: channels})
}

// ---------------------------------------------------------------------------
// Rolls
// ---------------------------------------------------------------------------

type rollView struct {
	Status models.RollStatus  `json:"status"`
	Step   int                `json:"step"`
	Steps  []*models.RollStep `json:"steps"`
}

func (s *Server) handleGetRoll(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("group")
	groupID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid group id")
		return
	}

	res, err := s.svc.RollStatus(r.Context(), groupID, time.Now())
	if err != nil {
		s.logger.WithError(err).Error("failed to get roll status")
		s.respondError(w, http.StatusInternalServerError, "failed to get roll status")
		return
	}
	if res.Outcome == service.RollNoSession {
		s.respondError(w, http.StatusNotFound, "no roll session for this group")
		return
	}

	s.respondJSON(w, http.StatusOK, rollView{Status: res.Status, Step: res.Step, Steps: res.Steps})
}
