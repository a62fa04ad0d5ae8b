package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BTreeMap/CalmPipe/internal/insight"
	"github.com/BTreeMap/CalmPipe/internal/models"
	"github.com/BTreeMap/CalmPipe/internal/safety"
	"github.com/BTreeMap/CalmPipe/internal/store"
	"github.com/BTreeMap/CalmPipe/internal/triage"
	"github.com/go-chi/chi/v5"
)

// DefaultEpisodeDays is the look-back used by GET /api/episodes.
const DefaultEpisodeDays = 7

// Actions recorded with automatic safety events.
const (
	ActionCrisisSupport = string(models.FlowCrisisSupport)
	ActionMedicalCheck  = string(models.FlowMedicalCheck)
)

// decodeFailure maps a body decode error to a status and message. Bodies
// cut off by the size limit are 413.
func decodeFailure(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, "Request body too large"
	}
	return http.StatusBadRequest, "Invalid JSON format"
}

// decodeBare decodes a POST body for a classifier-compatible endpoint,
// writing the bare error itself when it fails.
func decodeBare(w http.ResponseWriter, r *http.Request, handler string, v interface{}) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn(handler+": method not allowed", "method", r.Method)
		writeBareError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		status, message := decodeFailure(err)
		slog.Warn(handler+": failed to decode JSON", "error", err, "status", status)
		writeBareError(w, status, message)
		return false
	}
	return true
}

func decodeEnvelope(w http.ResponseWriter, r *http.Request, handler string, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		status, message := decodeFailure(err)
		slog.Warn(handler+": failed to decode JSON", "error", err, "status", status)
		writeJSONResponse(w, status, models.Error(message))
		return false
	}
	return true
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"service":          "calmpipe",
		"remoteConfigured": s.remoteSet,
	}))
}

func (s *Server) triageHandler(w http.ResponseWriter, r *http.Request) {
	var in models.TriageInput
	if !decodeBare(w, r, "Server.triageHandler", &in) {
		return
	}

	result, check := s.coordinator.TriageWithCheck(r.Context(), in)
	if check.IsCrisis {
		s.recordSafetyEvent(models.SafetyEventCrisisDetected, ActionCrisisSupport)
	} else if check.IsMedicalConcern {
		s.recordSafetyEvent(models.SafetyEventMedicalWarning, ActionMedicalCheck)
	}
	slog.Debug("Server.triageHandler: triage complete", "severity", result.Severity, "flow", result.SuggestedFlow)
	writeJSONResponse(w, http.StatusOK, result)
}

// recordSafetyEvent logs an audit event without any user text. Failures are
// logged and never change the triage response.
func (s *Server) recordSafetyEvent(t models.SafetyEventType, action string) {
	ev, err := s.st.AddSafetyEvent(models.SafetyEvent{Type: t, ActionTaken: action})
	if err != nil {
		slog.Error("Server.recordSafetyEvent: failed to store safety event", "error", err, "type", t)
		return
	}
	slog.Info("Server.recordSafetyEvent: safety event recorded", "id", ev.ID, "type", t)
}

func (s *Server) insightsHandler(w http.ResponseWriter, r *http.Request) {
	var req models.InsightRequest
	if !decodeBare(w, r, "Server.insightsHandler", &req) {
		return
	}
	writeJSONResponse(w, http.StatusOK, s.insights.Generate(r.Context(), req))
}

func (s *Server) reframeHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ReframeRequest
	if !decodeBare(w, r, "Server.reframeHandler", &req) {
		return
	}
	result := s.reframer.Reframe(r.Context(), req)
	if result.IsCrisis {
		s.recordSafetyEvent(models.SafetyEventCrisisDetected, ActionCrisisSupport)
	}
	writeJSONResponse(w, http.StatusOK, result)
}

func (s *Server) addEpisodeHandler(w http.ResponseWriter, r *http.Request) {
	var e models.Episode
	if !decodeEnvelope(w, r, "Server.addEpisodeHandler", &e) {
		return
	}
	if err := e.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	saved, err := s.st.AddEpisode(e)
	if err != nil {
		slog.Error("Server.addEpisodeHandler: failed to store episode", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store episode"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.RecordedWithResult(saved))
}

// positiveQueryInt reads a positive integer query parameter, returning def
// when it is absent.
func positiveQueryInt(r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (s *Server) listEpisodesHandler(w http.ResponseWriter, r *http.Request) {
	days, ok := positiveQueryInt(r, "days", DefaultEpisodeDays)
	if !ok {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("days must be a positive integer"))
		return
	}
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	episodes, err := s.st.GetRecentEpisodes(since)
	if err != nil {
		slog.Error("Server.listEpisodesHandler: failed to load episodes", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load episodes"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(episodes))
}

// weeklyStats computes stats over the trailing window ending at now.
func (s *Server) weeklyStats(now time.Time) (*models.WeeklyStats, error) {
	episodes, err := s.st.GetEpisodesByDateRange(now.Add(-insight.Window), now)
	if err != nil {
		return nil, err
	}
	return insight.ComputeWeeklyStats(episodes, now), nil
}

func (s *Server) weeklyStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.weeklyStats(s.now())
	if err != nil {
		slog.Error("Server.weeklyStatsHandler: failed to load episodes", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to compute weekly stats"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

func (s *Server) weeklyInsightHandler(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "true"
	if !refresh {
		cached, err := s.st.GetLatestWeeklyInsight()
		if err != nil {
			slog.Error("Server.weeklyInsightHandler: failed to load cached insight", "error", err)
		} else if cached != nil && s.now().Sub(cached.CreatedAt) < s.cacheTTL {
			writeJSONResponse(w, http.StatusOK, models.Success(cached))
			return
		}
	}

	wi, err := s.refreshWeeklyInsight(r.Context())
	if err != nil {
		slog.Error("Server.weeklyInsightHandler: failed to refresh insight", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to generate weekly insight"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(wi))
}

// refreshWeeklyInsight computes this week's stats, generates the insight and
// stores it as the latest cached record.
func (s *Server) refreshWeeklyInsight(ctx context.Context) (models.WeeklyInsight, error) {
	now := s.now()
	stats, err := s.weeklyStats(now)
	if err != nil {
		return models.WeeklyInsight{}, err
	}
	res := s.insights.GenerateForStats(ctx, stats)

	wi := models.WeeklyInsight{
		WeekStart:           now.Add(-insight.Window),
		WeekEnd:             now,
		GeneratedInsight:    res.Insight.Insight,
		SuggestedExperiment: res.Experiment,
		Source:              res.Source,
		CreatedAt:           now,
	}
	if stats != nil {
		wi.Stats = *stats
	} else {
		wi.Stats = models.WeeklyStats{
			TopTriggers:  []models.TriggerCount{},
			TopTools:     []models.ToolStat{},
			TimePatterns: []models.HourCount{},
		}
	}
	return s.st.SaveWeeklyInsight(wi)
}

func (s *Server) addThoughtHandler(w http.ResponseWriter, r *http.Request) {
	var rec models.ThoughtRecord
	if !decodeEnvelope(w, r, "Server.addThoughtHandler", &rec) {
		return
	}
	if err := rec.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	saved, err := s.st.SaveThoughtRecord(rec)
	if err != nil {
		slog.Error("Server.addThoughtHandler: failed to store thought record", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store thought record"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.RecordedWithResult(saved))
}

func (s *Server) listThoughtsHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := positiveQueryInt(r, "limit", store.DefaultThoughtRecordLimit)
	if !ok {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a positive integer"))
		return
	}
	records, err := s.st.GetThoughtRecords(limit)
	if err != nil {
		slog.Error("Server.listThoughtsHandler: failed to load thought records", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load thought records"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(records))
}

func (s *Server) addWorryHandler(w http.ResponseWriter, r *http.Request) {
	var worry models.PostponedWorry
	if !decodeEnvelope(w, r, "Server.addWorryHandler", &worry) {
		return
	}
	if err := worry.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	worry.Addressed = false
	saved, err := s.st.AddPostponedWorry(worry)
	if err != nil {
		slog.Error("Server.addWorryHandler: failed to store worry", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store worry"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.RecordedWithResult(saved))
}

func (s *Server) listWorriesHandler(w http.ResponseWriter, r *http.Request) {
	worries, err := s.st.GetPendingWorries()
	if err != nil {
		slog.Error("Server.listWorriesHandler: failed to load worries", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load worries"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(worries))
}

func (s *Server) worryAddressedHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.st.MarkWorryAddressed(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Worry not found"))
			return
		}
		slog.Error("Server.worryAddressedHandler: failed to update worry", "error", err, "id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update worry"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"id": id}))
}

func (s *Server) addSafetyEventHandler(w http.ResponseWriter, r *http.Request) {
	var ev models.SafetyEvent
	if !decodeEnvelope(w, r, "Server.addSafetyEventHandler", &ev) {
		return
	}
	if !models.IsValidSafetyEventType(ev.Type) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrInvalidSafetyEvent.Error()))
		return
	}
	saved, err := s.st.AddSafetyEvent(ev)
	if err != nil {
		slog.Error("Server.addSafetyEventHandler: failed to store safety event", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store safety event"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.RecordedWithResult(saved))
}

func (s *Server) listSafetyEventsHandler(w http.ResponseWriter, r *http.Request) {
	events, err := s.st.GetSafetyEvents()
	if err != nil {
		slog.Error("Server.listSafetyEventsHandler: failed to load safety events", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load safety events"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(events))
}

func (s *Server) resourcesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(safety.ResourcesFor(r.URL.Query().Get("region"))))
}

func (s *Server) nextStepsHandler(w http.ResponseWriter, r *http.Request) {
	var req triage.NextStepRequest
	if !decodeEnvelope(w, r, "Server.nextStepsHandler", &req) {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(triage.SuggestNextSteps(req)))
}

func (s *Server) vocabularyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string][]string{
		"triggers": models.DefaultTriggers,
		"symptoms": models.DefaultSymptoms,
		"tools":    models.DefaultTools,
	}))
}
