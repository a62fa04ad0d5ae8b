// Package store provides storage backends for CalmPipe.
//
// It includes an in-memory store plus SQLite and PostgreSQL stores for
// episodes, safety events, thought records, postponed worries and cached
// weekly insights.
package store

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/CalmPipe/internal/models"
	"github.com/BTreeMap/CalmPipe/internal/util"
)

// ErrNotFound is returned when a record addressed by ID does not exist.
var ErrNotFound = errors.New("record not found")

// DefaultThoughtRecordLimit is used when GetThoughtRecords is given a non-positive limit.
const DefaultThoughtRecordLimit = 10

// Store defines the interface for CalmPipe storage backends.
type Store interface {
	AddEpisode(e models.Episode) (models.Episode, error)
	// GetRecentEpisodes returns episodes at or after since, newest first.
	GetRecentEpisodes(since time.Time) ([]models.Episode, error)
	// GetEpisodesByDateRange returns episodes in [start, end], oldest first.
	GetEpisodesByDateRange(start, end time.Time) ([]models.Episode, error)

	AddSafetyEvent(ev models.SafetyEvent) (models.SafetyEvent, error)
	// GetSafetyEvents returns every safety event, newest first.
	GetSafetyEvents() ([]models.SafetyEvent, error)

	SaveThoughtRecord(r models.ThoughtRecord) (models.ThoughtRecord, error)
	// GetThoughtRecords returns up to limit records, newest first.
	GetThoughtRecords(limit int) ([]models.ThoughtRecord, error)

	AddPostponedWorry(w models.PostponedWorry) (models.PostponedWorry, error)
	// GetPendingWorries returns unaddressed worries, earliest scheduled first.
	GetPendingWorries() ([]models.PostponedWorry, error)
	MarkWorryAddressed(id string) error

	SaveWeeklyInsight(wi models.WeeklyInsight) (models.WeeklyInsight, error)
	// GetLatestWeeklyInsight returns the most recently created insight, or nil.
	GetLatestWeeklyInsight() (*models.WeeklyInsight, error)

	Close() error
}

// Opts holds configuration options for stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for stores.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports whether dsn addresses PostgreSQL ("postgres") or a
// SQLite file ("sqlite").
func DetectDSNType(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres"
	case strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname="):
		return "postgres"
	default:
		return "sqlite"
	}
}

// New opens the store addressed by the options. An empty DSN gives an
// in-memory store.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Debug("store.New: no DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(cfg.DSN) == "postgres" {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}

// prepareEpisode fills in the ID and timestamp and normalizes times to UTC.
func prepareEpisode(e *models.Episode) {
	if e.ID == "" {
		e.ID = util.NewID(util.EpisodePrefix)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.Timestamp = e.Timestamp.UTC()
	if e.Triggers == nil {
		e.Triggers = []string{}
	}
	if e.Symptoms == nil {
		e.Symptoms = []string{}
	}
	if e.ToolsUsed == nil {
		e.ToolsUsed = []string{}
	}
}

func prepareSafetyEvent(ev *models.SafetyEvent) {
	if ev.ID == "" {
		ev.ID = util.NewID(util.SafetyEventPrefix)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.Timestamp = ev.Timestamp.UTC()
}

func prepareThoughtRecord(r *models.ThoughtRecord) {
	if r.ID == "" {
		r.ID = util.NewID(util.ThoughtRecordPrefix)
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	r.Timestamp = r.Timestamp.UTC()
}

func prepareWorry(w *models.PostponedWorry) {
	if w.ID == "" {
		w.ID = util.NewID(util.WorryPrefix)
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	w.CreatedAt = w.CreatedAt.UTC()
	if w.ScheduledFor.IsZero() {
		w.ScheduledFor = w.CreatedAt
	}
	w.ScheduledFor = w.ScheduledFor.UTC()
}

func prepareWeeklyInsight(wi *models.WeeklyInsight) {
	if wi.ID == "" {
		wi.ID = util.NewID(util.InsightPrefix)
	}
	if wi.CreatedAt.IsZero() {
		wi.CreatedAt = time.Now()
	}
	wi.CreatedAt = wi.CreatedAt.UTC()
	wi.WeekStart = wi.WeekStart.UTC()
	wi.WeekEnd = wi.WeekEnd.UTC()
}

// InMemoryStore is a simple in-memory store. It is safe for concurrent use.
type InMemoryStore struct {
	mu       sync.RWMutex
	episodes []models.Episode
	events   []models.SafetyEvent
	thoughts []models.ThoughtRecord
	worries  []models.PostponedWorry
	insights []models.WeeklyInsight
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) AddEpisode(e models.Episode) (models.Episode, error) {
	prepareEpisode(&e)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.episodes = append(s.episodes, e)
	return e, nil
}

func (s *InMemoryStore) GetRecentEpisodes(since time.Time) ([]models.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Episode{}
	for _, e := range s.episodes {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s *InMemoryStore) GetEpisodesByDateRange(start, end time.Time) ([]models.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Episode{}
	for _, e := range s.episodes {
		if !e.Timestamp.Before(start) && !e.Timestamp.After(end) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *InMemoryStore) AddSafetyEvent(ev models.SafetyEvent) (models.SafetyEvent, error) {
	prepareSafetyEvent(&ev)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return ev, nil
}

func (s *InMemoryStore) GetSafetyEvents() ([]models.SafetyEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.SafetyEvent{}, s.events...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s *InMemoryStore) SaveThoughtRecord(r models.ThoughtRecord) (models.ThoughtRecord, error) {
	prepareThoughtRecord(&r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thoughts = append(s.thoughts, r)
	return r, nil
}

func (s *InMemoryStore) GetThoughtRecords(limit int) ([]models.ThoughtRecord, error) {
	if limit <= 0 {
		limit = DefaultThoughtRecordLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.ThoughtRecord{}, s.thoughts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) AddPostponedWorry(w models.PostponedWorry) (models.PostponedWorry, error) {
	prepareWorry(&w)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worries = append(s.worries, w)
	return w, nil
}

func (s *InMemoryStore) GetPendingWorries() ([]models.PostponedWorry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.PostponedWorry{}
	for _, w := range s.worries {
		if !w.Addressed {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

func (s *InMemoryStore) MarkWorryAddressed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.worries {
		if s.worries[i].ID == id {
			s.worries[i].Addressed = true
			return nil
		}
	}
	return ErrNotFound
}

func (s *InMemoryStore) SaveWeeklyInsight(wi models.WeeklyInsight) (models.WeeklyInsight, error) {
	prepareWeeklyInsight(&wi)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights = append(s.insights, wi)
	return wi, nil
}

func (s *InMemoryStore) GetLatestWeeklyInsight() (*models.WeeklyInsight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.WeeklyInsight
	for i := range s.insights {
		if latest == nil || !s.insights[i].CreatedAt.Before(latest.CreatedAt) {
			wi := s.insights[i]
			latest = &wi
		}
	}
	return latest, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
