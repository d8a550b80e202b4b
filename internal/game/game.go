package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PlayerID identifies a participant. Values carry no meaning beyond identity;
// the order of IDs in a game's player list defines turn rotation.
type PlayerID uint32

var (
	// ErrInvalidAction matches every error produced by InvalidAction.
	ErrInvalidAction = errors.New("invalid action")
	// ErrEmptyPlayerList is returned when a game is constructed without players.
	ErrEmptyPlayerList = errors.New("empty player list")
	// ErrDuplicatePlayer is returned when a player list names the same ID twice.
	ErrDuplicatePlayer = errors.New("duplicate player")
)

// ActionError is the single error kind a game reports for a rejected action.
type ActionError struct {
	Reason string
}

func (e *ActionError) Error() string {
	return "invalid action: " + e.Reason
}

// Is reports whether target is ErrInvalidAction.
func (e *ActionError) Is(target error) bool {
	return target == ErrInvalidAction
}

// InvalidAction builds an *ActionError with a formatted reason.
func InvalidAction(format string, args ...any) error {
	return &ActionError{Reason: fmt.Sprintf(format, args...)}
}

// View is the read-only part of a game. A game's own State may share memory
// with its live state; presentation code should read through Engine.Game or
// Engine.StateSnapshot, which hand out copies.
type View[S any] interface {
	State() S
	CurrentPlayer() PlayerID
	IsFinished() bool
	Players() []PlayerID
}

// Game is the contract every concrete ruleset implements. S is the state
// type, A the action type; both must survive a codec round trip.
//
// ApplyAction either mutates the state and advances the turn, or returns an
// error matching ErrInvalidAction and leaves the state untouched.
type Game[S, A any] interface {
	View[S]
	ApplyAction(action A) error
}

// Constructor builds a fresh game for the given rotation. The first player
// starts.
type Constructor[S, A any] func(players []PlayerID) (Game[S, A], error)

// GameInfo describes a game type for the lobby.
type GameInfo struct {
	Name       string `json:"name"`
	MinPlayers int    `json:"minPlayers"`
	MaxPlayers int    `json:"maxPlayers"`
}

// Match is a running game with its types erased, so sessions and the
// registry can hold any kind of game. States and actions cross this boundary
// encoded.
type Match interface {
	Players() []PlayerID
	CurrentPlayer() PlayerID
	IsFinished() bool
	// State returns the encoded current state.
	State() (json.RawMessage, error)
	// Apply decodes one action and applies it. On success it returns the
	// action re-encoded in canonical form.
	Apply(data []byte) ([]byte, error)
	// Log returns every applied action, encoded, in application order.
	Log() ([][]byte, error)
	Len() int
}

// Kind describes a game type (tic-tac-toe, etc.) that can start matches.
type Kind interface {
	Info() GameInfo
	NewMatch(players []PlayerID) (Match, error)
}
