package tictactoe

import (
	"fmt"
	"io"
	"strings"
)

// TextRenderer draws a board as three rows of X, O and -.
type TextRenderer struct{}

func (TextRenderer) Render(w io.Writer, b Board) error {
	var sb strings.Builder
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			if col > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(markLabel(b.Cells[row*3+col]))
		}
		sb.WriteByte('\n')
	}
	switch {
	case b.Done && b.Draw:
		sb.WriteString("draw\n")
	case b.Done:
		fmt.Fprintf(&sb, "winner: player %d\n", b.Winner)
	default:
		fmt.Fprintf(&sb, "to move: player %d\n", b.Current)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func markLabel(v uint8) string {
	switch v {
	case 0:
		return "-"
	case 1:
		return "X"
	case 2:
		return "O"
	default:
		return "?"
	}
}
