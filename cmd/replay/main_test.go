package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"turngames/internal/codec"
	"turngames/internal/engine"
	"turngames/internal/game"
	"turngames/internal/game/tictactoe"
)

var xWins = []tictactoe.Move{
	{Player: 1, Index: 0},
	{Player: 2, Index: 4},
	{Player: 1, Index: 1},
	{Player: 2, Index: 5},
	{Player: 1, Index: 2},
}

func TestRunJSONFromStdin(t *testing.T) {
	data, err := codec.JSON.Marshal(xWins)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out bytes.Buffer
	if err := run(nil, bytes.NewReader(data), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "X X X\n- O O\n- - -\nwinner: player 1\n5 moves replayed\n"
	if out.String() != want {
		t.Fatalf("unexpected output:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestRunMsgpackFromFile(t *testing.T) {
	data, err := codec.Msgpack.Marshal(xWins[:2])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "game.log")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out bytes.Buffer
	if err := run([]string{"-codec", "msgpack", path}, strings.NewReader(""), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "to move: player 1") {
		t.Fatalf("expected player 1 to move, got:\n%s", out.String())
	}
}

func TestRunStep(t *testing.T) {
	data, _ := codec.JSON.Marshal(xWins[:1])
	var out bytes.Buffer
	if err := run([]string{"-step"}, bytes.NewReader(data), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(out.String(), "move 1: player 1 -> 0\nX - -\n") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestRunRejectedMove(t *testing.T) {
	moves := append(append([]tictactoe.Move{}, xWins...), tictactoe.Move{Player: 2, Index: 0})
	data, _ := codec.JSON.Marshal(moves)

	err := run(nil, bytes.NewReader(data), &bytes.Buffer{})
	var re *engine.ReplayError
	if !errors.As(err, &re) || re.Index != 5 {
		t.Fatalf("expected replay error at index 5, got %v", err)
	}
	if !errors.Is(err, game.ErrInvalidAction) {
		t.Fatalf("expected invalid action, got %v", err)
	}
}

func TestRunBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
		in   string
	}{
		{"unknown codec", []string{"-codec", "xml"}, "[]"},
		{"bad player id", []string{"-players", "1,x"}, "[]"},
		{"wrong player count", []string{"-players", "1"}, "[]"},
		{"malformed log", nil, "{"},
		{"missing file", []string{filepath.Join(t.TempDir(), "nope")}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(tt.args, strings.NewReader(tt.in), &bytes.Buffer{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParsePlayers(t *testing.T) {
	got, err := parsePlayers(" 7, 9 ,")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 || got[0] != 7 || got[1] != 9 {
		t.Fatalf("unexpected players %v", got)
	}
}
