package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTTHostWinsTopRow(t *testing.T) {
	g := newTTTGame()
	g.Active = true

	moves := []struct {
		role    string
		index   int
		outcome tttOutcome
	}{
		{roleHost, 0, tttContinue},
		{roleGuest, 4, tttContinue},
		{roleHost, 1, tttContinue},
		{roleGuest, 5, tttContinue},
		{roleHost, 2, tttWin},
	}

	for _, m := range moves {
		assert.Equal(t, m.outcome, g.move(m.role, m.index), "move %s@%d", m.role, m.index)
	}

	assert.Equal(t, [9]string{roleHost, roleHost, roleHost, "", roleGuest, roleGuest, "", "", ""}, g.Board)
	assert.False(t, g.Active)

	// Terminal state accepts no further moves until restart.
	assert.Equal(t, tttIgnored, g.move(roleGuest, 6))
	assert.Equal(t, tttIgnored, g.move(roleHost, 6))

	g.restart()
	assert.True(t, g.Active)
	assert.Equal(t, roleHost, g.Turn)
	assert.Equal(t, [9]string{}, g.Board)
}

func TestTTTAllWinLines(t *testing.T) {
	for _, line := range winLines {
		g := newTTTGame()
		g.Active = true
		g.Board[line[0]] = roleGuest
		g.Board[line[1]] = roleGuest
		g.Turn = roleGuest

		assert.Equal(t, tttWin, g.move(roleGuest, line[2]), "line %v", line)
		assert.False(t, g.Active)
	}
}

func TestTTTDraw(t *testing.T) {
	g := newTTTGame()
	g.Active = true

	// host guest host
	// host guest guest
	// guest host host
	moves := []struct {
		role  string
		index int
	}{
		{roleHost, 0}, {roleGuest, 1}, {roleHost, 2},
		{roleGuest, 4}, {roleHost, 3}, {roleGuest, 5},
		{roleHost, 7}, {roleGuest, 6},
	}
	for _, m := range moves {
		require.Equal(t, tttContinue, g.move(m.role, m.index), "move %s@%d", m.role, m.index)
	}

	assert.Equal(t, tttDraw, g.move(roleHost, 8))
	assert.False(t, g.Active)
}

func TestTTTIllegalMovesIgnored(t *testing.T) {
	g := newTTTGame()

	// Inactive game.
	assert.Equal(t, tttIgnored, g.move(roleHost, 0))

	g.Active = true

	// Out of turn.
	assert.Equal(t, tttIgnored, g.move(roleGuest, 0))

	// Out of range.
	assert.Equal(t, tttIgnored, g.move(roleHost, -1))
	assert.Equal(t, tttIgnored, g.move(roleHost, 9))

	// Occupied cell is never overwritten.
	require.Equal(t, tttContinue, g.move(roleHost, 4))
	assert.Equal(t, tttIgnored, g.move(roleGuest, 4))
	assert.Equal(t, roleHost, g.Board[4])
}

func TestTTTTurnAlternatesStrictly(t *testing.T) {
	g := newTTTGame()
	g.Active = true

	require.Equal(t, tttContinue, g.move(roleHost, 0))
	assert.Equal(t, roleGuest, g.Turn)

	// Host cannot move twice in a row.
	assert.Equal(t, tttIgnored, g.move(roleHost, 1))

	require.Equal(t, tttContinue, g.move(roleGuest, 1))
	assert.Equal(t, roleHost, g.Turn)
}
