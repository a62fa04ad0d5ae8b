package api

import (
	"net/http"

	"github.com/BTreeMap/CalmPipe/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(limitBody)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	})

	r.Get("/health", s.healthHandler)

	r.Route("/api", func(r chi.Router) {
		// Classifier-compatible endpoints answer with bare JSON bodies.
		r.HandleFunc("/triage", s.triageHandler)
		r.HandleFunc("/insights", s.insightsHandler)
		r.HandleFunc("/reframe", s.reframeHandler)

		r.Post("/episodes", s.addEpisodeHandler)
		r.Get("/episodes", s.listEpisodesHandler)
		r.Get("/stats/weekly", s.weeklyStatsHandler)
		r.Get("/insights/weekly", s.weeklyInsightHandler)

		r.Post("/thoughts", s.addThoughtHandler)
		r.Get("/thoughts", s.listThoughtsHandler)

		r.Post("/worries", s.addWorryHandler)
		r.Get("/worries", s.listWorriesHandler)
		r.Post("/worries/{id}/addressed", s.worryAddressedHandler)

		r.Post("/safety-events", s.addSafetyEventHandler)
		r.Get("/safety-events", s.listSafetyEventsHandler)
		r.Get("/resources", s.resourcesHandler)
		r.Post("/next-steps", s.nextStepsHandler)
		r.Get("/vocabulary", s.vocabularyHandler)
	})
	return r
}

// corsMiddleware allows any origin and answers preflight requests with an
// empty 200.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
