package game

import "slices"

// Rotation is a fixed cyclic turn order, established at construction.
type Rotation struct {
	players []PlayerID
}

// NewRotation validates players and copies them into a rotation.
func NewRotation(players []PlayerID) (Rotation, error) {
	if len(players) == 0 {
		return Rotation{}, ErrEmptyPlayerList
	}
	seen := make(map[PlayerID]struct{}, len(players))
	for _, p := range players {
		if _, ok := seen[p]; ok {
			return Rotation{}, ErrDuplicatePlayer
		}
		seen[p] = struct{}{}
	}
	return Rotation{players: slices.Clone(players)}, nil
}

// First returns the player who opens the game.
func (r Rotation) First() PlayerID {
	return r.players[0]
}

// Next returns the player after current, wrapping around. An unknown player
// yields the first player.
func (r Rotation) Next(current PlayerID) PlayerID {
	i := r.Seat(current)
	if i < 0 {
		return r.players[0]
	}
	return r.players[(i+1)%len(r.players)]
}

// Seat returns the index of p in the rotation, or -1.
func (r Rotation) Seat(p PlayerID) int {
	return slices.Index(r.players, p)
}

// Players returns a copy of the rotation order.
func (r Rotation) Players() []PlayerID {
	return slices.Clone(r.players)
}

// Len returns the number of players.
func (r Rotation) Len() int {
	return len(r.players)
}
