package engine

import (
	"bytes"
	"errors"
	"fmt"

	"turngames/internal/game"
)

// ErrReplayDiverged indicates a replayed game ended in a different state
// than the engine it was replayed from.
var ErrReplayDiverged = errors.New("replay diverged")

// ReplayError reports the log entry a replay stopped at.
type ReplayError struct {
	Index int
	Err   error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("replay action %d: %v", e.Index, e.Err)
}

func (e *ReplayError) Unwrap() error {
	return e.Err
}

// Replay constructs a fresh game for players and reapplies actions in order.
// The first rejected action aborts the replay with a *ReplayError.
func Replay[S, A any](construct func([]game.PlayerID) (game.Game[S, A], error), players []game.PlayerID, actions []A) (game.Game[S, A], error) {
	g, err := construct(players)
	if err != nil {
		return nil, fmt.Errorf("construct game: %w", err)
	}
	for i, action := range actions {
		if err := g.ApplyAction(action); err != nil {
			return nil, &ReplayError{Index: i, Err: err}
		}
	}
	return g, nil
}

// Verify replays the engine's log against a fresh game built by construct
// and checks that the encoded states match. It only holds for engines that
// wrapped a freshly constructed game.
func (e *Engine[S, A]) Verify(construct game.Constructor[S, A]) error {
	replayed, err := Replay[S, A](construct, e.game.Players(), e.log)
	if err != nil {
		return err
	}
	want, err := e.codec.Marshal(e.game.State())
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	got, err := e.codec.Marshal(replayed.State())
	if err != nil {
		return fmt.Errorf("encode replayed state: %w", err)
	}
	if !bytes.Equal(want, got) {
		return ErrReplayDiverged
	}
	return nil
}
