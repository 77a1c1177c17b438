package main

import (
	"crypto/rand"
	"encoding/binary"
)

// The shedding card game. 108 cards: per color one 0, two each of 1-9,
// two each of skip/reverse/draw2; four wild and four wild4.

const (
	cardNumber = "number"
	cardAction = "action"
	cardWild   = "wild"

	colorWild = "black"
)

var (
	unoColors  = []string{"red", "blue", "green", "yellow"}
	unoActions = []string{"skip", "reverse", "draw2"}
)

type unoCard struct {
	Type  string `json:"type"`
	Color string `json:"color"`
	Value string `json:"value"`
}

type unoHand struct {
	Hand    []unoCard `json:"hand"`
	SaidUno bool      `json:"saidUno"`
}

type unoGame struct {
	Active        bool                `json:"active"`
	Deck          []unoCard           `json:"deck"`
	Discard       []unoCard           `json:"discardPile"`
	Players       map[string]*unoHand `json:"players"`
	CurrentPlayer string              `json:"currentPlayer"`
	CurrentColor  string              `json:"currentColor"`
	Direction     int                 `json:"direction"`
}

type unoPlayResult struct {
	applied   bool
	penalized bool
	won       bool
}

func buildUnoDeck() []unoCard {
	deck := make([]unoCard, 0, 108)

	for _, color := range unoColors {
		deck = append(deck, unoCard{Type: cardNumber, Color: color, Value: "0"})
		for _, value := range []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"} {
			deck = append(deck,
				unoCard{Type: cardNumber, Color: color, Value: value},
				unoCard{Type: cardNumber, Color: color, Value: value})
		}
		for _, action := range unoActions {
			deck = append(deck,
				unoCard{Type: cardAction, Color: color, Value: action},
				unoCard{Type: cardAction, Color: color, Value: action})
		}
	}

	for _, special := range []string{"wild", "wild4"} {
		for i := 0; i < 4; i++ {
			deck = append(deck, unoCard{Type: cardWild, Color: colorWild, Value: special})
		}
	}

	return deck
}

func randomIndex(n int) int {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return int(binary.BigEndian.Uint64(b[:]) % uint64(n))
}

// Fisher-Yates shuffle using crypto/rand.
func shuffleCards(cards []unoCard) []unoCard {
	for i := len(cards) - 1; i > 0; i-- {
		j := randomIndex(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
	return cards
}

func randomColor() string {
	return unoColors[randomIndex(len(unoColors))]
}

func validColor(color string) bool {
	for _, c := range unoColors {
		if c == color {
			return true
		}
	}
	return false
}

// newUnoGame shuffles a fresh deck, deals 7 cards to each role, and
// reveals the first non-wild card as the discard top. Wild cards drawn
// for the opener are cycled to the bottom of the deck, not reshuffled.
func newUnoGame() *unoGame {
	deck := shuffleCards(buildUnoDeck())

	g := &unoGame{
		Active:        true,
		Players:       make(map[string]*unoHand),
		CurrentPlayer: roleHost,
		Direction:     1,
	}

	for _, role := range []string{roleHost, roleGuest} {
		hand := make([]unoCard, 7)
		copy(hand, deck[:7])
		deck = deck[7:]
		g.Players[role] = &unoHand{Hand: hand}
	}

	top := deck[len(deck)-1]
	deck = deck[:len(deck)-1]
	for top.Color == colorWild {
		deck = append([]unoCard{top}, deck...)
		top = deck[len(deck)-1]
		deck = deck[:len(deck)-1]
	}

	g.Deck = deck
	g.Discard = []unoCard{top}
	g.CurrentColor = top.Color

	return g
}

func (g *unoGame) nextPlayer() string {
	order := [2]string{roleHost, roleGuest}
	i := 0
	if g.CurrentPlayer == roleGuest {
		i = 1
	}
	n := (i + g.Direction) % 2
	if n < 0 {
		n += 2
	}
	return order[n]
}

// recycleDiscard rebuilds the draw pile from the discard pile, keeping
// only the top card behind.
func (g *unoGame) recycleDiscard() {
	if len(g.Discard) <= 1 {
		return
	}

	top := g.Discard[len(g.Discard)-1]
	rest := make([]unoCard, len(g.Discard)-1)
	copy(rest, g.Discard[:len(g.Discard)-1])

	g.Deck = shuffleCards(rest)
	g.Discard = []unoCard{top}
}

// drawInto moves n cards from the draw pile into a role's hand,
// recycling the discard pile whenever the draw pile runs dry.
func (g *unoGame) drawInto(role string, n int) {
	p := g.Players[role]
	for i := 0; i < n; i++ {
		if len(g.Deck) == 0 {
			g.recycleDiscard()
		}
		if len(g.Deck) == 0 {
			return
		}
		card := g.Deck[len(g.Deck)-1]
		g.Deck = g.Deck[:len(g.Deck)-1]
		p.Hand = append(p.Hand, card)
	}
}

// canPlayCard holds if the card is wild, matches the current color, or
// matches the discard top's rank. Rank matches count across colors.
func canPlayCard(card, top unoCard, currentColor string) bool {
	if card.Type == cardWild || card.Color == colorWild {
		return true
	}
	if card.Color == currentColor {
		return true
	}
	return card.Value == top.Value
}

// playCard sheds one card. Illegal plays are ignored. A player shedding
// down from two cards without a prior low-hand declaration draws a
// two-card penalty before the play is finalized.
func (g *unoGame) playCard(role string, handIndex int, chosenColor string) unoPlayResult {
	var res unoPlayResult

	if !g.Active || g.CurrentPlayer != role {
		return res
	}
	p := g.Players[role]
	if handIndex < 0 || handIndex >= len(p.Hand) {
		return res
	}

	card := p.Hand[handIndex]
	top := g.Discard[len(g.Discard)-1]
	if !canPlayCard(card, top, g.CurrentColor) {
		return res
	}

	res.applied = true

	if len(p.Hand) == 2 && !p.SaidUno {
		g.drawInto(role, 2)
		res.penalized = true
	}

	p.Hand = append(p.Hand[:handIndex], p.Hand[handIndex+1:]...)

	played := card
	if card.Type == cardWild {
		if !validColor(chosenColor) {
			chosenColor = randomColor()
		}
		played.Color = chosenColor
		g.CurrentColor = chosenColor
	} else {
		g.CurrentColor = card.Color
	}
	g.Discard = append(g.Discard, played)
	p.SaidUno = false

	switch card.Value {
	case "skip":
		g.CurrentPlayer = g.nextPlayer()
	case "reverse":
		g.Direction = -g.Direction
	case "draw2":
		g.drawInto(g.nextPlayer(), 2)
	case "wild4":
		g.drawInto(g.nextPlayer(), 4)
	}

	if len(p.Hand) == 0 {
		g.Active = false
		res.won = true
		return res
	}

	g.CurrentPlayer = g.nextPlayer()
	g.Players[g.CurrentPlayer].SaidUno = false

	return res
}

// drawCard draws one card and passes the turn.
func (g *unoGame) drawCard(role string) bool {
	if !g.Active || g.CurrentPlayer != role {
		return false
	}

	g.drawInto(role, 1)
	g.CurrentPlayer = g.nextPlayer()
	g.Players[g.CurrentPlayer].SaidUno = false

	return true
}

// declareLowHand sets the low-hand flag; only meaningful at exactly two
// cards.
func (g *unoGame) declareLowHand(role string) bool {
	if !g.Active {
		return false
	}
	p := g.Players[role]
	if p == nil || len(p.Hand) != 2 {
		return false
	}
	p.SaidUno = true
	return true
}

// forceTimeout punishes an expired turn: the named player draws two and
// the turn passes on.
func (g *unoGame) forceTimeout(role string) {
	g.drawInto(role, 2)
	g.CurrentPlayer = g.nextPlayer()
}

// cardCount totals every card across draw pile, discard pile, and hands.
func (g *unoGame) cardCount() int {
	total := len(g.Deck) + len(g.Discard)
	for _, p := range g.Players {
		total += len(p.Hand)
	}
	return total
}
