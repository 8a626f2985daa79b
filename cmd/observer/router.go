package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/plonkdeck/plonkdeck/internal/domain/card"
	"github.com/plonkdeck/plonkdeck/internal/types"
)

// SetupRouter configures all routes and returns the HTTP handler
func SetupRouter(deps *Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestLogger(deps.Logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", deps.handleStatus)
		r.Get("/rounds", deps.handleListRounds)
		r.Get("/rounds/current", deps.handleCurrentRound)
		r.Get("/rounds/{session}/{round}", deps.handleGetRound)
		r.Post("/rounds/{session}/{round}/card", deps.handleCreateCard)
		r.Delete("/rounds/{session}/{round}/card", deps.handleDeclineCard)
	})

	// Browser clients: a userscript or extension panel on the game page.
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{
			"https://www.geoguessr.com",
			"http://localhost:3000",
		},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	})

	return corsHandler.Handler(r)
}

// requestLogger logs one line per request after it completes.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)))
		})
	}
}

func (d *Dependencies) handleStatus(w http.ResponseWriter, _ *http.Request) {
	state, key := d.Machine.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"state":     state.String(),
		"round_key": key,
	})
}

func (d *Dependencies) handleListRounds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rounds": d.Store.Keys()})
}

func (d *Dependencies) handleCurrentRound(w http.ResponseWriter, r *http.Request) {
	_, key := d.Machine.State()
	if key == "" {
		writeError(w, http.StatusNotFound, "no round in progress")
		return
	}
	d.writeRound(w, key)
}

func (d *Dependencies) handleGetRound(w http.ResponseWriter, r *http.Request) {
	d.writeRound(w, roundKeyParam(r))
}

func (d *Dependencies) writeRound(w http.ResponseWriter, key types.RoundKey) {
	record, err := d.Store.Snapshot(key)
	if err != nil {
		writeError(w, http.StatusNotFound, "round not found")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type createCardRequest struct {
	Force             bool   `json:"force"`
	ClueText          string `json:"clueText"`
	IncludeAnswerLink bool   `json:"includeAnswerLink"`
}

func (d *Dependencies) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}

	noteID, err := d.Machine.ResolveCard(r.Context(), roundKeyParam(r), card.Overrides{
		Force:             req.Force,
		ClueText:          req.ClueText,
		IncludeAnswerLink: req.IncludeAnswerLink,
	})
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"note_id": noteID})
}

func (d *Dependencies) handleDeclineCard(w http.ResponseWriter, r *http.Request) {
	if err := d.Machine.Decline(roundKeyParam(r)); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// roundKeyParam reassembles the key from its two path segments; keys embed a
// slash ("<session>/r<n>") so a single path param cannot carry them.
func roundKeyParam(r *http.Request) types.RoundKey {
	return types.RoundKey(chi.URLParam(r, "session") + "/" + chi.URLParam(r, "round"))
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrCardAlreadyCreated):
		return http.StatusConflict
	case errors.Is(err, types.ErrIncompleteRound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrConfigurationMismatch):
		return http.StatusBadGateway
	case errors.Is(err, types.ErrServiceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, types.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
