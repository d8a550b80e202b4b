package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"turngames/internal/game"
)

// Status represents the session lifecycle.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// ErrNotPlaying is returned for actions sent outside the playing state.
var ErrNotPlaying = errors.New("game not in progress")

// Player represents a connected player.
type Player struct {
	ID   game.PlayerID
	Send chan []byte // outbound messages
}

// Session is one game session with connected players.
type Session struct {
	mu       sync.RWMutex
	Code     string
	GameType string
	Status   Status
	HostID   game.PlayerID
	Players  map[game.PlayerID]*Player
	Match    game.Match
	order    []game.PlayerID // join order, becomes turn order on Start
	kind     game.Kind
}

// Applied describes an action the match accepted.
type Applied struct {
	Seq      int // 1-based position in the action log
	Player   game.PlayerID
	Action   []byte
	Finished bool
}

// NewSession creates a session in the waiting state.
func NewSession(code, gameType string, k game.Kind) *Session {
	return &Session{
		Code:     code,
		GameType: gameType,
		Status:   StatusWaiting,
		Players:  make(map[game.PlayerID]*Player),
		kind:     k,
	}
}

// AddPlayer adds a player to the session. Returns error if full or already playing.
func (s *Session) AddPlayer(playerID game.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusWaiting {
		return fmt.Errorf("session is not accepting players")
	}
	info := s.kind.Info()
	if len(s.Players) >= info.MaxPlayers {
		return fmt.Errorf("session is full")
	}
	if _, exists := s.Players[playerID]; exists {
		return fmt.Errorf("player %d already in session", playerID)
	}
	s.addLocked(playerID)
	return nil
}

func (s *Session) addLocked(playerID game.PlayerID) {
	s.Players[playerID] = &Player{
		ID:   playerID,
		Send: make(chan []byte, 64),
	}
	if len(s.order) == 0 {
		s.HostID = playerID
	}
	s.order = append(s.order, playerID)
}

// Leave handles a dropped connection. In the lobby the player gives up their
// seat and the host passes to the next joiner; once the game has started the
// seat is kept for ConnectPlayer. Nothing happens if send is no longer the
// player's channel. Leave reports whether the seating changed.
func (s *Session) Leave(playerID game.PlayerID, send chan []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Players[playerID]
	if !ok || p.Send != send || s.Status != StatusWaiting {
		return false
	}
	close(p.Send)
	delete(s.Players, playerID)
	s.order = slices.DeleteFunc(s.order, func(id game.PlayerID) bool { return id == playerID })
	if s.HostID == playerID && len(s.order) > 0 {
		s.HostID = s.order[0]
	}
	return true
}

// ConnectPlayer replaces the Send channel for a reconnecting player. Seated
// players of a started game may reconnect at any time.
func (s *Session) ConnectPlayer(playerID game.PlayerID, send chan []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.Players[playerID]; ok {
		p.Send = send
		return true
	}
	if s.Status != StatusWaiting && slices.Contains(s.order, playerID) {
		s.Players[playerID] = &Player{ID: playerID, Send: send}
		return true
	}
	return false
}

// PlayerIDs returns player IDs in turn order.
func (s *Session) PlayerIDs() []game.PlayerID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Start transitions the session from waiting to playing.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusWaiting {
		return fmt.Errorf("session is not in waiting state")
	}
	info := s.kind.Info()
	if len(s.order) < info.MinPlayers {
		return fmt.Errorf("need at least %d players, have %d", info.MinPlayers, len(s.order))
	}
	m, err := s.kind.NewMatch(slices.Clone(s.order))
	if err != nil {
		return fmt.Errorf("new match: %w", err)
	}
	s.Match = m
	s.Status = StatusPlaying
	return nil
}

// Apply submits one encoded action on behalf of playerID. Only the player
// whose turn it is may act, so a match sees at most one writer at a time.
// record, when non-nil, runs for an accepted action before the session
// lock is released, so records arrive in log order.
func (s *Session) Apply(playerID game.PlayerID, action []byte, record func(Applied)) (Applied, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusPlaying || s.Match == nil {
		return Applied{}, ErrNotPlaying
	}
	if cur := s.Match.CurrentPlayer(); cur != playerID {
		return Applied{}, game.InvalidAction("player %d acted out of turn, waiting for %d", playerID, cur)
	}
	canonical, err := s.Match.Apply(action)
	if err != nil {
		return Applied{}, err
	}
	finished := s.Match.IsFinished()
	if finished {
		s.Status = StatusFinished
	}
	a := Applied{
		Seq:      s.Match.Len(),
		Player:   playerID,
		Action:   canonical,
		Finished: finished,
	}
	if record != nil {
		record(a)
	}
	return a, nil
}

// Broadcast sends a message to all connected players.
func (s *Session) Broadcast(msg []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.Players {
		select {
		case p.Send <- msg:
		default:
			// drop message if buffer full
		}
	}
}

// Info returns session info for the API.
type Info struct {
	Code     string          `json:"code"`
	GameType string          `json:"gameType"`
	Status   Status          `json:"status"`
	Players  []game.PlayerID `json:"players"`
	HostID   game.PlayerID   `json:"hostId"`
	Actions  int             `json:"actions"`
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.infoLocked()
}

// InfoLocked returns info without acquiring the lock (caller must hold it).
func (s *Session) InfoLocked() Info {
	return s.infoLocked()
}

func (s *Session) infoLocked() Info {
	info := Info{
		Code:     s.Code,
		GameType: s.GameType,
		Status:   s.Status,
		Players:  slices.Clone(s.order),
		HostID:   s.HostID,
	}
	if s.Match != nil {
		info.Actions = s.Match.Len()
	}
	return info
}

// RLock/RUnlock expose the read lock for the server's handlers.
func (s *Session) RLock()   { s.mu.RLock() }
func (s *Session) RUnlock() { s.mu.RUnlock() }
