package tictactoe

import (
	"errors"

	"turngames/internal/codec"
	"turngames/internal/engine"
	"turngames/internal/game"
)

// ErrPlayerCount is returned when a game is not started with two players.
var ErrPlayerCount = errors.New("tictactoe needs exactly 2 players")

// TicTacToe implements game.Kind.
type TicTacToe struct {
	// Codec encodes logged and relayed moves. Nil means codec.JSON.
	Codec codec.Codec
}

// Info describes tic-tac-toe for the lobby.
func (t TicTacToe) Info() game.GameInfo {
	return game.GameInfo{
		Name:       "tictactoe",
		MinPlayers: 2,
		MaxPlayers: 2,
	}
}

// NewMatch starts an engine-backed match; players[0] plays X.
func (t TicTacToe) NewMatch(players []game.PlayerID) (game.Match, error) {
	var opts []engine.Option
	if t.Codec != nil {
		opts = append(opts, engine.WithCodec(t.Codec))
	}
	e, err := NewEngine(players, opts...)
	if err != nil {
		return nil, err
	}
	return engine.NewMatch(e), nil
}

// Board is the full game state.
type Board struct {
	Cells   [9]uint8      `json:"cells" msgpack:"cells"` // 0=empty, otherwise seat+1 (1=X, 2=O)
	Current game.PlayerID `json:"current" msgpack:"current"`
	Done    bool          `json:"done" msgpack:"done"`
	Draw    bool          `json:"draw,omitempty" msgpack:"draw"`
	Winner  game.PlayerID `json:"winner,omitempty" msgpack:"winner"` // valid when Done && !Draw
}

// Clone returns a copy of b. Board holds no references.
func (b Board) Clone() Board {
	return b
}

// Move places the mover's mark on Index (0-8, row-major).
type Move struct {
	Player game.PlayerID `json:"player" msgpack:"player"`
	Index  int           `json:"index" msgpack:"index"`
}

// Game is a tic-tac-toe game for exactly two players.
type Game struct {
	board    Board
	rotation game.Rotation
}

// New starts a game; players[0] plays X and moves first.
func New(players []game.PlayerID) (*Game, error) {
	r, err := game.NewRotation(players)
	if err != nil {
		return nil, err
	}
	if r.Len() != 2 {
		return nil, ErrPlayerCount
	}
	return &Game{board: Board{Current: r.First()}, rotation: r}, nil
}

// Construct is New as a game.Constructor.
func Construct(players []game.PlayerID) (game.Game[Board, Move], error) {
	g, err := New(players)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// NewEngine wraps a fresh game in an engine.
func NewEngine(players []game.PlayerID, opts ...engine.Option) (*engine.Engine[Board, Move], error) {
	g, err := Construct(players)
	if err != nil {
		return nil, err
	}
	return engine.New(g, opts...), nil
}

// State returns the live board; read through the engine for a copy.
func (g *Game) State() Board                 { return g.board }
func (g *Game) CurrentPlayer() game.PlayerID { return g.board.Current }
func (g *Game) IsFinished() bool             { return g.board.Done }
func (g *Game) Players() []game.PlayerID     { return g.rotation.Players() }

// ApplyAction places the current player's mark. It rejects moves after the
// game ended, out of turn, off the board, or onto an occupied cell.
func (g *Game) ApplyAction(m Move) error {
	if g.board.Done {
		return game.InvalidAction("game is finished")
	}
	if m.Player != g.board.Current {
		return game.InvalidAction("player %d moved out of turn", m.Player)
	}
	if m.Index < 0 || m.Index > 8 {
		return game.InvalidAction("cell %d out of range", m.Index)
	}
	if g.board.Cells[m.Index] != 0 {
		return game.InvalidAction("cell %d already occupied", m.Index)
	}

	mark := uint8(g.rotation.Seat(m.Player) + 1)
	g.board.Cells[m.Index] = mark
	switch {
	case g.checkWin(mark):
		g.board.Done = true
		g.board.Winner = m.Player
	case g.boardFull():
		g.board.Done = true
		g.board.Draw = true
	default:
		g.board.Current = g.rotation.Next(m.Player)
	}
	return nil
}

var winLines = [][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // cols
	{0, 4, 8}, {2, 4, 6}, // diags
}

func (g *Game) checkWin(mark uint8) bool {
	for _, line := range winLines {
		if g.board.Cells[line[0]] == mark && g.board.Cells[line[1]] == mark && g.board.Cells[line[2]] == mark {
			return true
		}
	}
	return false
}

func (g *Game) boardFull() bool {
	for _, v := range g.board.Cells {
		if v == 0 {
			return false
		}
	}
	return true
}
