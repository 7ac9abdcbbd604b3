package annotation

import (
	"log/slog"
	"sync"
	"time"

	"marginalia/internal/config"
	repo "marginalia/internal/domain/repositories/annotation"
	svc "marginalia/internal/domain/services/annotation"
	"marginalia/internal/highlight"
)

type sessionEntry struct {
	session  *svc.Session
	lastUsed time.Time
}

// Sessions hands each reader an exclusively owned store and the services built on it.
// Sessions idle for longer than the idle timeout are evicted on a later ForOwner call.
type Sessions struct {
	repo    repo.SnapshotRepository
	palette Palette
	applier *highlight.Applier
	logger  *slog.Logger

	idleTimeout time.Duration
	now         func() time.Time

	mu        sync.Mutex
	sessions  map[string]*sessionEntry
	lastSweep time.Time
}

// NewSessions creates an empty session registry
func NewSessions(snapshots repo.SnapshotRepository, palette Palette, logger *slog.Logger) *Sessions {
	return &Sessions{
		repo:        snapshots,
		palette:     palette,
		applier:     highlight.NewApplier(palette, logger),
		logger:      logger,
		idleTimeout: config.SessionIdleTimeout,
		now:         time.Now,
		sessions:    make(map[string]*sessionEntry),
	}
}

// ForOwner returns the reader's session, creating it on first use
func (s *Sessions) ForOwner(ownerID string) *svc.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictIdle(now)

	if entry, ok := s.sessions[ownerID]; ok {
		entry.lastUsed = now
		return entry.session
	}

	store := NewStore(ownerID, s.repo, s.palette, s.logger)
	sess := &svc.Session{
		OwnerID:     ownerID,
		Annotations: store,
		Notes:       NewNoteLinker(store, s.logger),
		Pages:       NewPageAnnotator(store, s.applier, s.palette, s.logger),
	}
	s.sessions[ownerID] = &sessionEntry{session: sess, lastUsed: now}

	s.logger.Debug("reader session created", "owner_id", ownerID)
	return sess
}

// evictIdle drops sessions unused for longer than the idle timeout. The scan runs at most
// twice per timeout period. Callers hold s.mu.
func (s *Sessions) evictIdle(now time.Time) {
	if s.idleTimeout <= 0 || now.Sub(s.lastSweep) < s.idleTimeout/2 {
		return
	}
	s.lastSweep = now

	evicted := 0
	for owner, entry := range s.sessions {
		if now.Sub(entry.lastUsed) > s.idleTimeout {
			delete(s.sessions, owner)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Debug("idle reader sessions evicted",
			"evicted", evicted,
			"remaining", len(s.sessions),
		)
	}
}

var _ svc.SessionProvider = (*Sessions)(nil)
