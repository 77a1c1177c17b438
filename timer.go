package main

import (
	"time"
)

// The turn timer is the one time-driven actor competing with client
// moves for room state. Expiry is delivered as a message on the room's
// channel, tagged with the generation it was armed under; the room
// re-validates player, game, and generation before acting, so a timer
// that loses the race with a move is a no-op.
type timerExpiry struct {
	player     string
	generation uint64
}

type turnTimer struct {
	timer *time.Timer
}

func (t *turnTimer) arm(d time.Duration, player string, generation uint64, out chan<- timerExpiry) {
	t.cancel()
	t.timer = time.AfterFunc(d, func() {
		out <- timerExpiry{player: player, generation: generation}
	})
}

func (t *turnTimer) cancel() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
