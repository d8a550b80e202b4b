package engine

import (
	"encoding/json"
	"fmt"

	"turngames/internal/game"
)

// match adapts an Engine to game.Match.
type match[S Cloner[S], A any] struct {
	e *Engine[S, A]
}

// NewMatch erases e's state and action types. Actions cross the boundary in
// e's codec; states are always JSON.
func NewMatch[S Cloner[S], A any](e *Engine[S, A]) game.Match {
	return &match[S, A]{e: e}
}

func (m *match[S, A]) Players() []game.PlayerID     { return m.e.game.Players() }
func (m *match[S, A]) CurrentPlayer() game.PlayerID { return m.e.game.CurrentPlayer() }
func (m *match[S, A]) IsFinished() bool             { return m.e.game.IsFinished() }
func (m *match[S, A]) Len() int                     { return m.e.Len() }

func (m *match[S, A]) State() (json.RawMessage, error) {
	return json.Marshal(m.e.StateSnapshot())
}

func (m *match[S, A]) Apply(data []byte) ([]byte, error) {
	action, err := m.e.DecodeAction(data)
	if err != nil {
		return nil, game.InvalidAction("malformed payload: %v", err)
	}
	if err := m.e.ApplyAction(action); err != nil {
		return nil, err
	}
	out, err := m.e.EncodeAction(action)
	if err != nil {
		return nil, fmt.Errorf("encode action: %w", err)
	}
	return out, nil
}

func (m *match[S, A]) Log() ([][]byte, error) {
	out := make([][]byte, 0, len(m.e.log))
	for i, action := range m.e.log {
		data, err := m.e.EncodeAction(action)
		if err != nil {
			return nil, fmt.Errorf("encode action %d: %w", i, err)
		}
		out = append(out, data)
	}
	return out, nil
}
