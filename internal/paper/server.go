package paper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/GoPolymarket/parlay-builder/internal/backend"
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

// Handler exposes the simulator on the same routes as the remote API. The
// caller is identified by the user_id query parameter or the bearer token.
func Handler(sim *Simulator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(latency(sim))

	r.Get("/entitlements", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sim.Entitlements(caller(r)))
	})
	r.Get("/nfl/weeks", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, sim.Weeks())
	})
	r.Get("/parlay/candidate-legs-count", func(w http.ResponseWriter, r *http.Request) {
		q, err := candidateQuery(r)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, sim.CandidateCount(q))
	})
	r.Post("/parlay/suggest", func(w http.ResponseWriter, r *http.Request) {
		var req backend.SuggestRequest
		if !decode(w, r, &req) {
			return
		}
		resp, err := sim.Suggest(caller(r), req)
		respond(w, resp, err)
	})
	r.Post("/parlay/suggest-triple", func(w http.ResponseWriter, r *http.Request) {
		var req backend.TripleRequest
		if !decode(w, r, &req) {
			return
		}
		resp, err := sim.SuggestTriple(caller(r), req)
		respond(w, resp, err)
	})
	r.Post("/parlays", func(w http.ResponseWriter, r *http.Request) {
		var req backend.SaveRequest
		if !decode(w, r, &req) {
			return
		}
		saved, err := sim.Save(caller(r), req)
		respond(w, saved, err)
	})
	return r
}

func latency(sim *Simulator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d := sim.Latency(); d > 0 && r.Method == http.MethodPost {
				if !sleep(r.Context(), d) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func caller(r *http.Request) string {
	if q := r.URL.Query(); q.Has("user_id") {
		return strings.TrimSpace(q.Get("user_id"))
	}
	return strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
}

func candidateQuery(r *http.Request) (parlay.CandidateQuery, error) {
	v := r.URL.Query()
	sport, err := parlay.ParseSport(v.Get("sport"))
	if err != nil {
		return parlay.CandidateQuery{}, err
	}
	q := parlay.CandidateQuery{Sport: sport, Mode: parlay.Mode(v.Get("mode"))}
	if raw := v.Get("week"); raw != "" {
		w, err := strconv.Atoi(raw)
		if err != nil {
			return parlay.CandidateQuery{}, errors.New("week must be an integer")
		}
		q.Week = &w
	}
	if raw := v.Get("num_legs"); raw != "" {
		q.LegCountHint, _ = strconv.Atoi(raw)
	}
	q.IncludePlayerProps, _ = strconv.ParseBool(v.Get("include_player_props"))
	return q, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "invalid JSON body"})
		return false
	}
	return true
}

func respond(w http.ResponseWriter, v any, err error) {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		writeJSON(w, se.Status, se.Body)
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": err.Error()})
	default:
		writeJSON(w, http.StatusOK, v)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
