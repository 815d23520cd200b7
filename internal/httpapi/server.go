package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lunarsound/longwave/internal/jobs"
	"github.com/lunarsound/longwave/internal/observability"
	"github.com/lunarsound/longwave/internal/store"
)

// Server exposes the generation service as a JSON API: submit jobs, watch
// their progress, download finished tracks, and attach to the live preview.
type Server struct {
	manager  *jobs.Manager
	tracks   *store.Store
	preview  http.Handler // WebRTC SDP negotiation, optional
	upgrader websocket.Upgrader
}

func New(manager *jobs.Manager, tracks *store.Store, preview http.Handler) *Server {
	return &Server{
		manager: manager,
		tracks:  tracks,
		preview: preview,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Progress streams carry no secrets and no commands; any origin
			// may watch.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/api/generate", s.handleGenerate)
	r.Get("/api/jobs/{id}", s.handleGetJob)
	r.Delete("/api/jobs/{id}", s.handleCancelJob)
	r.Get("/api/jobs/{id}/ws", s.handleJobWS)
	r.Get("/api/tracks", s.handleListTracks)
	r.Get("/api/tracks/{id}/audio", s.handleTrackAudio)

	if s.preview != nil {
		r.Handle("/offer", s.preview)
		r.Options("/offer", s.preview.ServeHTTP)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type generateRequest struct {
	Prompt  string `json:"prompt"`
	Seconds int    `json:"seconds"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := s.manager.Submit(req.Prompt, req.Seconds)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.manager.Get(chi.URLParam(r, "id"))
	if errors.Is(err, jobs.ErrJobNotFound) {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	err := s.manager.Cancel(chi.URLParam(r, "id"))
	if errors.Is(err, jobs.ErrJobNotFound) {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleJobWS streams job updates over a websocket until the job reaches a
// terminal state or the client goes away.
func (s *Server) handleJobWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	updates, unsubscribe, err := s.manager.Subscribe(id)
	if errors.Is(err, jobs.ErrJobNotFound) {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Job %s: websocket upgrade: %v", id, err)
		return
	}
	defer conn.Close()

	// Drain client frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for update := range updates {
		if err := conn.WriteJSON(update); err != nil {
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.tracks.List(50)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tracks == nil {
		tracks = []*store.Track{}
	}
	respondJSON(w, http.StatusOK, tracks)
}

func (s *Server) handleTrackAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	wav, err := s.tracks.GetAudio(id)
	if errors.Is(err, store.ErrTrackNotFound) {
		respondError(w, http.StatusNotFound, "track not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.wav"`, id))
	w.Write(wav)
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
