package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"turngames/internal/game"
	"turngames/internal/storage"
)

// Manager manages all active sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	registry *game.Registry
	store    *storage.Store
	log      *zap.Logger
}

// NewManager creates a session manager.
func NewManager(registry *game.Registry, store *storage.Store, log *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		registry: registry,
		store:    store,
		log:      log,
	}
}

// Create makes a new session and persists it.
func (m *Manager) Create(gameType string) (*Session, error) {
	k, ok := m.registry.Get(gameType)
	if !ok {
		return nil, fmt.Errorf("unknown game type: %s", gameType)
	}
	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	if err := m.store.CreateSession(code, gameType); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	s := NewSession(code, gameType, k)
	m.mu.Lock()
	m.sessions[code] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns a session by code.
func (m *Manager) Get(code string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[code]
	return s, ok
}

// List returns info for all active sessions.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.Info())
	}
	return infos
}

// SaveSession persists a session's status and seating.
func (m *Manager) SaveSession(s *Session) error {
	s.mu.RLock()
	status := s.Status
	players := make([]uint32, 0, len(s.order))
	for _, id := range s.order {
		players = append(players, uint32(id))
	}
	s.mu.RUnlock()

	if err := m.store.UpdateSessionStatus(s.Code, string(status)); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if err := m.store.SavePlayers(s.Code, players); err != nil {
		return fmt.Errorf("save players: %w", err)
	}
	return nil
}

// Apply submits an action and persists it while the session still holds its
// lock, keeping the stored log in step with the match.
func (m *Manager) Apply(s *Session, playerID game.PlayerID, action []byte) (Applied, error) {
	return s.Apply(playerID, action, func(a Applied) {
		if err := m.RecordAction(s, a); err != nil {
			m.log.Error("record action", zap.String("session", s.Code), zap.Int("seq", a.Seq), zap.Error(err))
		}
	})
}

// RecordAction appends an accepted action to the session's stored log.
func (m *Manager) RecordAction(s *Session, a Applied) error {
	if err := m.store.AppendAction(s.Code, a.Seq, a.Action); err != nil {
		return fmt.Errorf("append action %d: %w", a.Seq, err)
	}
	if a.Finished {
		if err := m.store.UpdateSessionStatus(s.Code, string(StatusFinished)); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
	}
	return nil
}

// Restore loads sessions from the database on startup. Matches in progress
// are rebuilt by replaying their stored action log into a fresh match.
func (m *Manager) Restore() error {
	rows, err := m.store.ListSessions("")
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	for _, row := range rows {
		if row.Status == string(StatusFinished) {
			continue
		}
		log := m.log.With(zap.String("session", row.Code), zap.String("game_type", row.GameType))
		k, ok := m.registry.Get(row.GameType)
		if !ok {
			log.Warn("skipping session: unknown game type")
			continue
		}
		s, err := m.restoreSession(row, k)
		if err != nil {
			log.Warn("skipping session", zap.Error(err))
			continue
		}
		log.Info("restored session", zap.Int("actions", s.Info().Actions))
		m.mu.Lock()
		m.sessions[row.Code] = s
		m.mu.Unlock()
	}
	return nil
}

func (m *Manager) restoreSession(row storage.SessionRow, k game.Kind) (*Session, error) {
	ids, err := m.store.ListPlayers(row.Code)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	s := NewSession(row.Code, row.GameType, k)
	for _, id := range ids {
		s.addLocked(game.PlayerID(id))
	}
	if row.Status != string(StatusPlaying) {
		return s, nil
	}

	if err := s.Start(); err != nil {
		return nil, err
	}
	actions, err := m.store.ListActions(row.Code)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	for _, a := range actions {
		if _, err := s.Match.Apply(a.Action); err != nil {
			return nil, fmt.Errorf("replay action %d: %w", a.Seq, err)
		}
	}
	if s.Match.IsFinished() {
		s.Status = StatusFinished
	}
	return s, nil
}

// Remove deletes a session from memory and storage.
func (m *Manager) Remove(code string) {
	m.mu.Lock()
	delete(m.sessions, code)
	m.mu.Unlock()
	if err := m.store.DeleteSession(code); err != nil {
		m.log.Warn("delete session", zap.String("session", code), zap.Error(err))
	}
}

// CleanupLoop removes stale sessions periodically until ctx is done.
func (m *Manager) CleanupLoop(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanup(maxAge)
		}
	}
}

func (m *Manager) cleanup(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for code, s := range m.sessions {
		s.mu.RLock()
		empty := len(s.Players) == 0
		finished := s.Status == StatusFinished
		s.mu.RUnlock()

		if finished || empty {
			row, err := m.store.GetSession(code)
			if err != nil {
				delete(m.sessions, code)
				continue
			}
			if now.Sub(row.CreatedAt) > maxAge || empty {
				m.log.Info("cleaning up session", zap.String("session", code))
				if err := m.store.DeleteSession(code); err != nil {
					m.log.Warn("delete session", zap.String("session", code), zap.Error(err))
				}
				delete(m.sessions, code)
			}
		}
	}
}

func generateCode() (string, error) {
	b := make([]byte, 3) // 6 hex chars
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session code: %w", err)
	}
	return hex.EncodeToString(b), nil
}
