package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"rackrent/internal/config"
	"rackrent/internal/engine"
	"rackrent/internal/notify"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

type Server struct {
	cfg      config.APIConfig
	log      *slog.Logger
	engine   *engine.Engine
	hub      *notify.Hub
	upgrader websocket.Upgrader
	mux      *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, eng *engine.Engine, hub *notify.Hub) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		log:    logger,
		engine: eng,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		mux: chi.NewRouter(),
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
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/company", s.handleCompany)

		r.Get("/requests", s.handleRequestsList)
		r.Post("/requests", s.handleRequestSubmit)
		r.Get("/requests/{id}", s.handleRequestDetail)
		r.Post("/requests/{id}/accept", s.handleRequestAccept)
		r.Post("/requests/{id}/reject", s.handleRequestReject)
		r.Post("/requests/{id}/archive", s.handleRequestArchive)

		r.Get("/capacity", s.handleCapacity)
		r.Post("/capacity/servers", s.handleBuyServer)

		r.Get("/skills", s.handleSkills)
		r.Post("/skills/{category}/upgrade", s.handleSkillUpgrade)

		r.Get("/events", s.handleEvents)
		r.Get("/ws", s.handleWebsocket)
	})
}

func (s *Server) handleCompany(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Company().View())
}

func (s *Server) handleRequestsList(w http.ResponseWriter, r *http.Request) {
	state := engine.RequestState(strings.TrimSpace(r.URL.Query().Get("state")))
	switch state {
	case "", engine.StatePending, engine.StateAccepted, engine.StateActive,
		engine.StateExpired, engine.StateArchived:
	default:
		writeError(w, http.StatusBadRequest, "unknown state filter")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": s.engine.ListRequests(state)})
}

func (s *Server) handleRequestSubmit(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Customer         string               `json:"customer"`
		Tier             string               `json:"tier"`
		Shape            engine.ResourceShape `json:"shape"`
		Period           string               `json:"period"`
		TermPeriods      int                  `json:"term_periods"`
		BasePriceCredits int64                `json:"base_price_credits"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tier, ok := engine.ParseCustomerTier(strings.TrimSpace(in.Tier))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown customer tier")
		return
	}
	period := engine.RentalPeriod(strings.TrimSpace(in.Period))
	if !period.Valid() {
		writeError(w, http.StatusBadRequest, "unknown rental period")
		return
	}
	if in.Customer == "" || in.BasePriceCredits <= 0 ||
		in.Shape.VCPU <= 0 || in.Shape.RAMGB <= 0 || in.Shape.DiskGB <= 0 {
		writeError(w, http.StatusBadRequest, "customer, positive price and a positive shape are required")
		return
	}
	req := engine.NewCustomerRequest(in.Customer, tier, in.Shape, period,
		in.TermPeriods, in.BasePriceCredits*engine.CentsPerCredit, time.Now())
	s.engine.SubmitRequest(req)
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleRequestDetail(w http.ResponseWriter, r *http.Request) {
	req, err := s.engine.Request(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleRequestAccept(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Provided *engine.ResourceShape `json:"provided,omitempty"`
		ServerID string                `json:"server_id,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	id := chi.URLParam(r, "id")
	// Provisioning outlives the request; only server shutdown cancels it.
	results, err := s.engine.AcceptRequest(context.WithoutCancel(r.Context()), id, in.Provided, in.ServerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	go func() {
		if res := <-results; res.Err != nil {
			s.log.Warn("accepted request failed to provision", "request_id", id, "err", res.Err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "state": engine.StateAccepted})
}

func (s *Server) handleRequestReject(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RejectRequest(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRequestArchive(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ArchiveRequest(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleCapacity(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"servers": s.engine.ListCapacity()})
}

func (s *Server) handleBuyServer(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string               `json:"name"`
		Capacity engine.ResourceShape `json:"capacity"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Name == "" || in.Capacity.VCPU <= 0 || in.Capacity.RAMGB <= 0 || in.Capacity.DiskGB <= 0 {
		writeError(w, http.StatusBadRequest, "name and a positive capacity are required")
		return
	}
	srv, err := s.engine.BuyServer(in.Name, in.Capacity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, srv)
}

func (s *Server) handleSkills(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"skills":       s.engine.Skills().Views(),
		"skill_points": s.engine.Company().SkillPoints(),
	})
}

func (s *Server) handleSkillUpgrade(w http.ResponseWriter, r *http.Request) {
	cat := engine.SkillCategory(chi.URLParam(r, "category"))
	if !cat.Valid() {
		writeError(w, http.StatusBadRequest, "unknown skill category")
		return
	}
	if !s.engine.UpgradeSkill(cat) {
		writeError(w, http.StatusBadRequest, "upgrade rejected: level maxed or not enough skill points")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": cat,
		"level":    s.engine.Skills().Level(cat),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": s.engine.EventHistory()})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	client := notify.NewClient(conn, s.log)
	s.hub.Register(client)
	// Drain the read side until the peer goes away.
	go func() {
		defer s.hub.Unregister(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrRequestNotFound), errors.Is(err, engine.ErrServerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrBadTransition), errors.Is(err, engine.ErrVMAssigned):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrInsufficientFunds), errors.Is(err, engine.ErrNoCapacity):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
