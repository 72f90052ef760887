package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"roumble-sim/internal/engine"
	"roumble-sim/internal/metrics"
	"roumble-sim/internal/packet"
)

// Server exposes the simulation to external collaborators: a websocket
// event stream, JSON inspection endpoints, an injection endpoint and a
// Prometheus scrape target. Rendering and interaction live entirely on the
// other side of this boundary.
type Server struct {
	eng  *engine.SimulationEngine
	log  *slog.Logger
	reg  *prometheus.Registry
	view *metrics.PromView

	upgrader websocket.Upgrader
}

func New(eng *engine.SimulationEngine, log *slog.Logger) *Server {
	reg := prometheus.NewRegistry()
	return &Server{
		eng:  eng,
		log:  log,
		reg:  reg,
		view: metrics.NewPromView(reg),
		upgrader: websocket.Upgrader{
			// Front ends connect from arbitrary origins during development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP mux for all endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/inject", s.handleInject)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/node", s.handleNode)
	mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	return mux
}

// Run serves until ctx is cancelled, refreshing the Prometheus view once a
// second of wall time.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
				return
			case <-ticker.C:
				s.view.Update(s.eng.SnapshotMetrics())
			}
		}
	}()

	s.log.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleWS upgrades the connection and pushes the live event stream.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", "err", err)
		return
	}
	defer conn.Close()

	eventCh := s.eng.Bus().Subscribe()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-eventCh:
			if err := conn.WriteJSON(ev); err != nil {
				s.log.Debug("websocket write", "err", err)
				return
			}
		}
	}
}

type injectRequest struct {
	Kind   string `json:"kind"`   // "data" | "beacon"
	Source int    `json:"source"` // originating node id
	Sink   *int   `json:"sink"`   // destination sink id; null for none
}

// handleInject synthesizes an externally originated packet.
func (s *Server) handleInject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req injectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var kind packet.Kind
	switch req.Kind {
	case "data":
		kind = packet.Data
	case "beacon":
		kind = packet.Beacon
	default:
		http.Error(w, "kind must be \"data\" or \"beacon\"", http.StatusBadRequest)
		return
	}
	sink := packet.NoSink
	if req.Sink != nil {
		sink = *req.Sink
	}

	if err := s.eng.InjectPacket(kind, req.Source, sink); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.eng.SnapshotMetrics(), s.log)
}

// handleNode serves the inspection view for ?id=N, or the id list without
// the parameter.
func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		writeJSON(w, s.eng.NodeIDs(), s.log)
		return
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "id must be an integer", http.StatusBadRequest)
		return
	}
	view, err := s.eng.NodeSnapshot(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, view, s.log)
}

func writeJSON(w http.ResponseWriter, v any, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("write response", "err", err)
	}
}
