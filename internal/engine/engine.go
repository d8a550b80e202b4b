// Package engine drives a single game instance and records every action it
// accepts, so the final state can be rebuilt by replaying the log against a
// fresh instance of the same game.
//
// An Engine is single-owner: callers that share one across goroutines must
// serialise ApplyAction themselves.
package engine

import (
	"slices"

	"turngames/internal/codec"
	"turngames/internal/game"
)

// Cloner is implemented by state types that can produce an independent deep
// copy of themselves.
type Cloner[S any] interface {
	Clone() S
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	codec codec.Codec
}

// WithCodec sets the codec used to encode actions for relay. Defaults to
// codec.JSON.
func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.codec = c }
}

// Engine owns one game and the ordered log of actions it accepted.
type Engine[S Cloner[S], A any] struct {
	game  game.Game[S, A]
	log   []A
	codec codec.Codec
}

// New wraps g. The log starts empty even if g is already mid-game; replay
// guarantees hold from this point forward.
func New[S Cloner[S], A any](g game.Game[S, A], opts ...Option) *Engine[S, A] {
	o := options{codec: codec.JSON}
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine[S, A]{game: g, codec: o.codec}
}

// ApplyAction forwards action to the game. The action is logged only if the
// game accepts it; a rejection is returned unchanged.
func (e *Engine[S, A]) ApplyAction(action A) error {
	if err := e.game.ApplyAction(action); err != nil {
		return err
	}
	e.log = append(e.log, action)
	return nil
}

// StateSnapshot returns an independent copy of the current state.
func (e *Engine[S, A]) StateSnapshot() S {
	return e.game.State().Clone()
}

// ReplayLog returns the accepted actions in application order. The returned
// slice is a copy.
func (e *Engine[S, A]) ReplayLog() []A {
	return slices.Clone(e.log)
}

// Len returns the number of logged actions.
func (e *Engine[S, A]) Len() int {
	return len(e.log)
}

// Game returns read-only access to the wrapped game. The view cannot be
// asserted back to a game.Game, and its State is a copy like StateSnapshot.
func (e *Engine[S, A]) Game() game.View[S] {
	return view[S, A]{g: e.game}
}

type view[S Cloner[S], A any] struct {
	g game.Game[S, A]
}

func (v view[S, A]) State() S                     { return v.g.State().Clone() }
func (v view[S, A]) CurrentPlayer() game.PlayerID { return v.g.CurrentPlayer() }
func (v view[S, A]) IsFinished() bool             { return v.g.IsFinished() }
func (v view[S, A]) Players() []game.PlayerID     { return v.g.Players() }

// Codec returns the codec used for EncodeAction and DecodeAction.
func (e *Engine[S, A]) Codec() codec.Codec {
	return e.codec
}

// EncodeAction serialises one action for relay to remote players.
func (e *Engine[S, A]) EncodeAction(action A) ([]byte, error) {
	return e.codec.Marshal(action)
}

// DecodeAction is the inverse of EncodeAction.
func (e *Engine[S, A]) DecodeAction(data []byte) (A, error) {
	var action A
	err := e.codec.Unmarshal(data, &action)
	return action, err
}
