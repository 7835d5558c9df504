package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verbascape/verbascape/internal/observe"
	"github.com/verbascape/verbascape/pkg/audio/capture"
	"github.com/verbascape/verbascape/pkg/provider/image"
)

// maxSceneDescriptionLen caps learner scene prompts to keep image requests
// within provider limits.
const maxSceneDescriptionLen = 2000

// sceneRequest is the body of POST /v1/scene.
type sceneRequest struct {
	Scene string `json:"scene"`
}

// sceneResponse is the body returned by scene endpoints.
type sceneResponse struct {
	Scene       string    `json:"scene"`
	MIMEType    string    `json:"mime_type"`
	DataURL     string    `json:"data_url"`
	GeneratedAt time.Time `json:"generated_at"`
}

// sessionResponse is the body returned by session endpoints.
type sessionResponse struct {
	SessionID    string    `json:"session_id"`
	Provider     string    `json:"provider"`
	State        string    `json:"state"`
	Speaking     bool      `json:"speaking"`
	PartialUser  string    `json:"partial_user,omitempty"`
	PartialAgent string    `json:"partial_agent,omitempty"`
	StartedAt    time.Time `json:"started_at"`
}

// transcriptTurn is one finalized turn in the transcript response.
type transcriptTurn struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// transcriptResponse is the body of GET /v1/transcript.
type transcriptResponse struct {
	Turns []transcriptTurn `json:"turns"`
}

// errorResponse is the body of all non-2xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// routes builds the HTTP mux with all API endpoints wrapped in the
// observability middleware. Probe and metrics endpoints stay unwrapped so
// scrapes do not pollute request metrics.
func (a *App) routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/scene", a.handleSceneGenerate)
	api.HandleFunc("GET /v1/scene", a.handleSceneGet)
	api.HandleFunc("POST /v1/session", a.handleSessionStart)
	api.HandleFunc("GET /v1/session", a.handleSessionGet)
	api.HandleFunc("DELETE /v1/session", a.handleSessionStop)
	api.HandleFunc("GET /v1/transcript", a.handleTranscript)

	root := http.NewServeMux()
	root.Handle("/v1/", observe.Middleware(a.metrics)(api))
	root.Handle("GET /metrics", promhttp.Handler())
	a.health.Register(root)

	return root
}

// handleSceneGenerate generates a new panorama from the learner's description
// and makes it the current scene.
func (a *App) handleSceneGenerate(w http.ResponseWriter, r *http.Request) {
	if a.providers.Image == nil {
		writeError(w, http.StatusServiceUnavailable, "no image provider configured")
		return
	}

	var req sceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Scene = strings.TrimSpace(req.Scene)
	if req.Scene == "" {
		writeError(w, http.StatusBadRequest, "scene description is required")
		return
	}
	if len(req.Scene) > maxSceneDescriptionLen {
		writeError(w, http.StatusBadRequest, "scene description too long")
		return
	}

	start := time.Now()
	pano, err := a.providers.Image.GeneratePanorama(r.Context(), req.Scene)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		status := "error"
		if errors.Is(err, image.ErrNoImage) {
			status = "no_image"
		}
		a.metrics.RecordSceneGeneration(r.Context(), elapsed, a.imageProvName, status)
		slog.Error("scene generation failed", "err", err, "scene", req.Scene)
		writeError(w, http.StatusBadGateway, "scene generation failed")
		return
	}
	a.metrics.RecordSceneGeneration(r.Context(), elapsed, a.imageProvName, "ok")

	scene := Scene{
		Description: req.Scene,
		Panorama:    pano,
		GeneratedAt: time.Now().UTC(),
	}
	a.scenes.Set(scene)

	slog.Info("scene generated",
		"scene", req.Scene,
		"mime_type", pano.MIMEType,
		"bytes", len(pano.Data),
		"duration", time.Since(start),
	)

	writeJSON(w, http.StatusOK, sceneResponse{
		Scene:       scene.Description,
		MIMEType:    pano.MIMEType,
		DataURL:     pano.DataURL(),
		GeneratedAt: scene.GeneratedAt,
	})
}

// handleSceneGet returns the current scene.
func (a *App) handleSceneGet(w http.ResponseWriter, _ *http.Request) {
	scene, ok := a.scenes.Get()
	if !ok {
		writeError(w, http.StatusNotFound, "no scene generated yet")
		return
	}
	writeJSON(w, http.StatusOK, sceneResponse{
		Scene:       scene.Description,
		MIMEType:    scene.Panorama.MIMEType,
		DataURL:     scene.Panorama.DataURL(),
		GeneratedAt: scene.GeneratedAt,
	})
}

// handleSessionStart opens a new conversation session. Only one session can
// be live at a time.
func (a *App) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if a.sessions.Active() {
		writeError(w, http.StatusConflict, "a session is already active")
		return
	}

	info, err := a.sessions.Start(r.Context())
	if err != nil {
		slog.Error("session start failed", "err", err)
		if errors.Is(err, capture.ErrDeviceUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "audio device unavailable")
			return
		}
		writeError(w, http.StatusBadGateway, "could not open session")
		return
	}

	st, _ := a.sessions.State()
	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: info.SessionID,
		Provider:  info.Provider,
		State:     st.String(),
		StartedAt: info.StartedAt,
	})
}

// handleSessionGet reports the current session's state.
func (a *App) handleSessionGet(w http.ResponseWriter, _ *http.Request) {
	info, ok := a.sessions.Info()
	if !ok {
		writeError(w, http.StatusNotFound, "no session")
		return
	}
	st, _ := a.sessions.State()
	partialUser, partialAgent := a.sessions.Partial()
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:    info.SessionID,
		Provider:     info.Provider,
		State:        st.String(),
		Speaking:     a.sessions.Speaking(),
		PartialUser:  partialUser,
		PartialAgent: partialAgent,
		StartedAt:    info.StartedAt,
	})
}

// handleSessionStop closes the live session.
func (a *App) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Stop(r.Context()); err != nil {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTranscript returns the most recent session's finalized turns.
func (a *App) handleTranscript(w http.ResponseWriter, _ *http.Request) {
	turns, ok := a.sessions.Transcript()
	if !ok {
		writeError(w, http.StatusNotFound, "no session")
		return
	}

	resp := transcriptResponse{Turns: make([]transcriptTurn, 0, len(turns))}
	for _, t := range turns {
		resp.Turns = append(resp.Turns, transcriptTurn{
			Sender:    t.Sender.String(),
			Text:      t.Text,
			Timestamp: t.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
