package main

// The 3x3 marking game. The host always moves first.

type tttOutcome int

const (
	tttIgnored tttOutcome = iota
	tttContinue
	tttWin
	tttDraw
)

var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

type tttGame struct {
	Board  [9]string `json:"board"`
	Turn   string    `json:"turn"`
	Active bool      `json:"active"`
}

func newTTTGame() *tttGame {
	return &tttGame{Turn: roleHost}
}

func (g *tttGame) restart() {
	*g = tttGame{Turn: roleHost, Active: true}
}

// move applies one mark. Illegal input (inactive game, out of turn,
// out-of-range index, occupied cell) is ignored without an event.
func (g *tttGame) move(role string, index int) tttOutcome {
	if !g.Active || g.Turn != role || index < 0 || index > 8 || g.Board[index] != "" {
		return tttIgnored
	}

	g.Board[index] = role

	for _, line := range winLines {
		a, b, c := g.Board[line[0]], g.Board[line[1]], g.Board[line[2]]
		if a != "" && a == b && a == c {
			g.Active = false
			return tttWin
		}
	}

	full := true
	for _, cell := range g.Board {
		if cell == "" {
			full = false
			break
		}
	}
	if full {
		g.Active = false
		return tttDraw
	}

	g.Turn = otherRole(role)

	return tttContinue
}
