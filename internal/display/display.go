// Package display is the boundary to presentation code. Renderers only ever
// see copies of a game's state.
package display

import (
	"io"

	"turngames/internal/engine"
)

// Renderer draws one game's state.
type Renderer[S any] interface {
	Render(w io.Writer, state S) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc[S any] func(w io.Writer, state S) error

func (f RendererFunc[S]) Render(w io.Writer, state S) error {
	return f(w, state)
}

// Show renders a snapshot of e's current state.
func Show[S engine.Cloner[S], A any](w io.Writer, e *engine.Engine[S, A], r Renderer[S]) error {
	return r.Render(w, e.StateSnapshot())
}
