package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/CalmPipe/internal/models"
)

// sqlStore holds the queries shared by the SQLite and Postgres stores.
// Queries are written with ? placeholders and rebound per dialect.
type sqlStore struct {
	db   *sql.DB
	name string
	// dollar selects $1-style placeholders.
	dollar bool
}

// rebind rewrites ? placeholders for the store's dialect.
func (s *sqlStore) rebind(query string) string {
	if !s.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) exec(query string, args ...interface{}) (sql.Result, error) {
	return s.db.Exec(s.rebind(query), args...)
}

func (s *sqlStore) query(query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.Query(s.rebind(query), args...)
}

// encodeList marshals a string list for a JSON column.
func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeList unmarshals a JSON column into a string list. Empty or invalid
// values decode to an empty list.
func decodeList(raw []byte) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		slog.Warn("store.decodeList: invalid JSON list, using empty list", "error", err)
		return []string{}
	}
	return out
}

// nullableInt converts an optional int for a nullable column.
func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return int64(*v)
}

// intPtr converts a nullable column back to an optional int.
func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

const episodeColumns = `id, timestamp, intensity, duration_minutes, triggers, symptoms, tools_used, helpful_rating, notes, completed_flow`

func (s *sqlStore) AddEpisode(e models.Episode) (models.Episode, error) {
	prepareEpisode(&e)
	triggers, err := encodeList(e.Triggers)
	if err != nil {
		return e, fmt.Errorf("failed to encode triggers: %w", err)
	}
	symptoms, err := encodeList(e.Symptoms)
	if err != nil {
		return e, fmt.Errorf("failed to encode symptoms: %w", err)
	}
	tools, err := encodeList(e.ToolsUsed)
	if err != nil {
		return e, fmt.Errorf("failed to encode tools: %w", err)
	}

	_, err = s.exec(`INSERT INTO episodes (`+episodeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp, e.Intensity, nullableInt(e.DurationMinutes), triggers, symptoms, tools,
		nullableInt(e.HelpfulRating), e.Notes, e.CompletedFlow)
	if err != nil {
		slog.Error(s.name+" AddEpisode failed", "error", err, "id", e.ID)
		return e, fmt.Errorf("failed to insert episode %s: %w", e.ID, err)
	}
	slog.Debug(s.name+" AddEpisode succeeded", "id", e.ID, "intensity", e.Intensity)
	return e, nil
}

func (s *sqlStore) scanEpisodes(rows *sql.Rows) ([]models.Episode, error) {
	defer rows.Close()
	out := []models.Episode{}
	for rows.Next() {
		var (
			e                         models.Episode
			duration, rating          sql.NullInt64
			triggers, symptoms, tools []byte
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Intensity, &duration, &triggers, &symptoms, &tools,
			&rating, &e.Notes, &e.CompletedFlow); err != nil {
			slog.Error(s.name+" scanEpisodes scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan episode row: %w", err)
		}
		e.DurationMinutes = intPtr(duration)
		e.HelpfulRating = intPtr(rating)
		e.Triggers = decodeList(triggers)
		e.Symptoms = decodeList(symptoms)
		e.ToolsUsed = decodeList(tools)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		slog.Error(s.name+" scanEpisodes rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate episode rows: %w", err)
	}
	return out, nil
}

func (s *sqlStore) GetRecentEpisodes(since time.Time) ([]models.Episode, error) {
	rows, err := s.query(`SELECT `+episodeColumns+` FROM episodes WHERE timestamp >= ? ORDER BY timestamp DESC`, since.UTC())
	if err != nil {
		slog.Error(s.name+" GetRecentEpisodes query failed", "error", err)
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	episodes, err := s.scanEpisodes(rows)
	if err != nil {
		return nil, err
	}
	slog.Debug(s.name+" GetRecentEpisodes succeeded", "count", len(episodes))
	return episodes, nil
}

func (s *sqlStore) GetEpisodesByDateRange(start, end time.Time) ([]models.Episode, error) {
	rows, err := s.query(`SELECT `+episodeColumns+` FROM episodes WHERE timestamp >= ? AND timestamp <= ? ORDER BY timestamp ASC`,
		start.UTC(), end.UTC())
	if err != nil {
		slog.Error(s.name+" GetEpisodesByDateRange query failed", "error", err)
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	episodes, err := s.scanEpisodes(rows)
	if err != nil {
		return nil, err
	}
	slog.Debug(s.name+" GetEpisodesByDateRange succeeded", "count", len(episodes))
	return episodes, nil
}

func (s *sqlStore) AddSafetyEvent(ev models.SafetyEvent) (models.SafetyEvent, error) {
	prepareSafetyEvent(&ev)
	_, err := s.exec(`INSERT INTO safety_events (id, timestamp, type, action_taken) VALUES (?, ?, ?, ?)`,
		ev.ID, ev.Timestamp, string(ev.Type), ev.ActionTaken)
	if err != nil {
		slog.Error(s.name+" AddSafetyEvent failed", "error", err, "type", ev.Type)
		return ev, fmt.Errorf("failed to insert safety event: %w", err)
	}
	slog.Debug(s.name+" AddSafetyEvent succeeded", "id", ev.ID, "type", ev.Type)
	return ev, nil
}

func (s *sqlStore) GetSafetyEvents() ([]models.SafetyEvent, error) {
	rows, err := s.query(`SELECT id, timestamp, type, action_taken FROM safety_events ORDER BY timestamp DESC`)
	if err != nil {
		slog.Error(s.name+" GetSafetyEvents query failed", "error", err)
		return nil, fmt.Errorf("failed to query safety events: %w", err)
	}
	defer rows.Close()

	out := []models.SafetyEvent{}
	for rows.Next() {
		var ev models.SafetyEvent
		var typ string
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &typ, &ev.ActionTaken); err != nil {
			slog.Error(s.name+" GetSafetyEvents scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan safety event row: %w", err)
		}
		ev.Type = models.SafetyEventType(typ)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate safety event rows: %w", err)
	}
	slog.Debug(s.name+" GetSafetyEvents succeeded", "count", len(out))
	return out, nil
}

func (s *sqlStore) SaveThoughtRecord(r models.ThoughtRecord) (models.ThoughtRecord, error) {
	prepareThoughtRecord(&r)
	_, err := s.exec(`INSERT INTO thought_records (id, timestamp, situation, automatic_thought, emotion, emotion_intensity,
		cognitive_distortion, balanced_thought, new_emotion_intensity) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Timestamp, r.Situation, r.AutomaticThought, r.Emotion, r.EmotionIntensity,
		r.CognitiveDistortion, r.BalancedThought, nullableInt(r.NewEmotionIntensity))
	if err != nil {
		slog.Error(s.name+" SaveThoughtRecord failed", "error", err, "id", r.ID)
		return r, fmt.Errorf("failed to insert thought record %s: %w", r.ID, err)
	}
	slog.Debug(s.name+" SaveThoughtRecord succeeded", "id", r.ID)
	return r, nil
}

func (s *sqlStore) GetThoughtRecords(limit int) ([]models.ThoughtRecord, error) {
	if limit <= 0 {
		limit = DefaultThoughtRecordLimit
	}
	rows, err := s.query(`SELECT id, timestamp, situation, automatic_thought, emotion, emotion_intensity,
		cognitive_distortion, balanced_thought, new_emotion_intensity
		FROM thought_records ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		slog.Error(s.name+" GetThoughtRecords query failed", "error", err)
		return nil, fmt.Errorf("failed to query thought records: %w", err)
	}
	defer rows.Close()

	out := []models.ThoughtRecord{}
	for rows.Next() {
		var r models.ThoughtRecord
		var newIntensity sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Situation, &r.AutomaticThought, &r.Emotion, &r.EmotionIntensity,
			&r.CognitiveDistortion, &r.BalancedThought, &newIntensity); err != nil {
			slog.Error(s.name+" GetThoughtRecords scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan thought record row: %w", err)
		}
		r.NewEmotionIntensity = intPtr(newIntensity)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate thought record rows: %w", err)
	}
	slog.Debug(s.name+" GetThoughtRecords succeeded", "count", len(out))
	return out, nil
}

func (s *sqlStore) AddPostponedWorry(w models.PostponedWorry) (models.PostponedWorry, error) {
	prepareWorry(&w)
	_, err := s.exec(`INSERT INTO postponed_worries (id, worry, created_at, scheduled_for, addressed) VALUES (?, ?, ?, ?, ?)`,
		w.ID, w.Worry, w.CreatedAt, w.ScheduledFor, w.Addressed)
	if err != nil {
		slog.Error(s.name+" AddPostponedWorry failed", "error", err, "id", w.ID)
		return w, fmt.Errorf("failed to insert worry %s: %w", w.ID, err)
	}
	slog.Debug(s.name+" AddPostponedWorry succeeded", "id", w.ID, "scheduled_for", w.ScheduledFor)
	return w, nil
}

func (s *sqlStore) GetPendingWorries() ([]models.PostponedWorry, error) {
	rows, err := s.query(`SELECT id, worry, created_at, scheduled_for, addressed FROM postponed_worries
		WHERE addressed = ? ORDER BY scheduled_for ASC`, false)
	if err != nil {
		slog.Error(s.name+" GetPendingWorries query failed", "error", err)
		return nil, fmt.Errorf("failed to query worries: %w", err)
	}
	defer rows.Close()

	out := []models.PostponedWorry{}
	for rows.Next() {
		var w models.PostponedWorry
		if err := rows.Scan(&w.ID, &w.Worry, &w.CreatedAt, &w.ScheduledFor, &w.Addressed); err != nil {
			slog.Error(s.name+" GetPendingWorries scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan worry row: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate worry rows: %w", err)
	}
	slog.Debug(s.name+" GetPendingWorries succeeded", "count", len(out))
	return out, nil
}

func (s *sqlStore) MarkWorryAddressed(id string) error {
	res, err := s.exec(`UPDATE postponed_worries SET addressed = ? WHERE id = ?`, true, id)
	if err != nil {
		slog.Error(s.name+" MarkWorryAddressed failed", "error", err, "id", id)
		return fmt.Errorf("failed to update worry %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	slog.Debug(s.name+" MarkWorryAddressed succeeded", "id", id)
	return nil
}

func (s *sqlStore) SaveWeeklyInsight(wi models.WeeklyInsight) (models.WeeklyInsight, error) {
	prepareWeeklyInsight(&wi)
	stats, err := json.Marshal(wi.Stats)
	if err != nil {
		return wi, fmt.Errorf("failed to encode weekly stats: %w", err)
	}
	_, err = s.exec(`INSERT INTO weekly_insights (id, week_start, week_end, stats, generated_insight, suggested_experiment, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		wi.ID, wi.WeekStart, wi.WeekEnd, string(stats), wi.GeneratedInsight, wi.SuggestedExperiment, string(wi.Source), wi.CreatedAt)
	if err != nil {
		slog.Error(s.name+" SaveWeeklyInsight failed", "error", err, "id", wi.ID)
		return wi, fmt.Errorf("failed to insert weekly insight %s: %w", wi.ID, err)
	}
	slog.Debug(s.name+" SaveWeeklyInsight succeeded", "id", wi.ID, "source", wi.Source)
	return wi, nil
}

func (s *sqlStore) GetLatestWeeklyInsight() (*models.WeeklyInsight, error) {
	row := s.db.QueryRow(s.rebind(`SELECT id, week_start, week_end, stats, generated_insight, suggested_experiment, source, created_at
		FROM weekly_insights ORDER BY created_at DESC LIMIT 1`))

	var wi models.WeeklyInsight
	var stats []byte
	var source string
	err := row.Scan(&wi.ID, &wi.WeekStart, &wi.WeekEnd, &stats, &wi.GeneratedInsight, &wi.SuggestedExperiment, &source, &wi.CreatedAt)
	if err == sql.ErrNoRows {
		slog.Debug(s.name + " GetLatestWeeklyInsight not found")
		return nil, nil
	}
	if err != nil {
		slog.Error(s.name+" GetLatestWeeklyInsight failed", "error", err)
		return nil, fmt.Errorf("failed to query weekly insight: %w", err)
	}
	if err := json.Unmarshal(stats, &wi.Stats); err != nil {
		slog.Warn(s.name+" GetLatestWeeklyInsight stats decode failed", "error", err, "id", wi.ID)
		wi.Stats = models.WeeklyStats{}
	}
	wi.Source = models.InsightSource(source)
	return &wi, nil
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	slog.Debug("Closing " + s.name + " database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close "+s.name+" database", "error", err)
	} else {
		slog.Debug(s.name + " database connection closed successfully")
	}
	return err
}
