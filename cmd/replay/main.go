// Command replay rebuilds a tic-tac-toe game from a recorded move list and
// prints the resulting board.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"turngames/internal/codec"
	"turngames/internal/display"
	"turngames/internal/engine"
	"turngames/internal/game"
	"turngames/internal/game/tictactoe"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(stdout)
	fs.Usage = func() {
		fmt.Fprint(stdout, `
Usage:
  replay [options] [LOG_PATH]

Reads a move list (from LOG_PATH, or stdin when omitted) and replays it.

Options:
`)
		fs.PrintDefaults()
	}
	codecName := fs.String("codec", "json", "Log encoding. Options: 'json' or 'msgpack'.")
	playersFlag := fs.String("players", "1,2", "Comma-separated player ids in seat order.")
	step := fs.Bool("step", false, "Print the board after every move.")
	verify := fs.Bool("verify", true, "Check that a fresh replay reproduces the final state.")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := codec.ByName(*codecName)
	if err != nil {
		return err
	}
	players, err := parsePlayers(*playersFlag)
	if err != nil {
		return err
	}

	in := stdin
	if fs.NArg() > 0 {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read log: %w", err)
	}
	var moves []tictactoe.Move
	if err := c.Unmarshal(data, &moves); err != nil {
		return fmt.Errorf("decode log: %w", err)
	}

	e, err := tictactoe.NewEngine(players, engine.WithCodec(c))
	if err != nil {
		return err
	}
	for i, m := range moves {
		if err := e.ApplyAction(m); err != nil {
			return &engine.ReplayError{Index: i, Err: err}
		}
		if *step {
			fmt.Fprintf(stdout, "move %d: player %d -> %d\n", i+1, m.Player, m.Index)
			if err := display.Show(stdout, e, tictactoe.TextRenderer{}); err != nil {
				return err
			}
		}
	}
	if !*step {
		if err := display.Show(stdout, e, tictactoe.TextRenderer{}); err != nil {
			return err
		}
	}
	if *verify {
		if err := e.Verify(tictactoe.Construct); err != nil {
			return err
		}
	}
	fmt.Fprintf(stdout, "%d moves replayed\n", e.Len())
	return nil
}

func parsePlayers(s string) ([]game.PlayerID, error) {
	var players []game.PlayerID
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid player id %q: %w", part, err)
		}
		players = append(players, game.PlayerID(id))
	}
	return players, nil
}
