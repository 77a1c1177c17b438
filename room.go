// Duo room: pairs exactly two participants into a shared session for
// chat, tic-tac-toe, and a shedding card game.
//
// Features:
// - WebSockets per room key: /room/:roomid and /room/:roomid/ws
// - Two fixed roles per room (host/guest); third connections are refused
// - Explicit role pick when both seats are free, auto-assign otherwise
// - Chat broadcast with server timestamps
// - Game selection and restart gated on an offer/accept handshake
// - Unilateral leave, deduplicated within a short grace window
// - Card-game turn timer forcing a two-card draw on expiry
// - Per-room win/draw tally persisted across restarts
// - In-browser QR button to share the current room, backed by go-qrcode
//
// All state of one room is owned by its goroutine: registrations, client
// messages, timer expiries, and grace expiries arrive on channels and
// are handled to completion, so no message ever observes a half-applied
// mutation.

package main

import (
	"crypto/rand"
	_ "embed"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	roleHost  = "host"
	roleGuest = "guest"

	returnToListDelay = 3 * time.Second
)

func otherRole(role string) string {
	if role == roleHost {
		return roleGuest
	}
	return roleHost
}

func roleLabel(role string) string {
	switch role {
	case roleHost:
		return "Host"
	case roleGuest:
		return "Guest"
	}
	return "Someone"
}

// Client is the per-connection session record.
type Client struct {
	conn *websocket.Conn
	send chan any
	id   string
	room string
	role string // written only by the room goroutine
}

type inboundMessage struct {
	client *Client
	msg    ClientMessage
}

// Room binds two roles together for chat and one active game at a time.
type Room struct {
	key    string
	cfg    *Config
	scores ScoreStore

	register chan *Client
	unreg    chan *Client
	inbound  chan inboundMessage
	expiries chan timerExpiry
	graces   chan string
	notices  chan uint64

	// Owned by run(); no lock needed.
	clients       map[*Client]bool
	players       map[string]*Client
	ttt           *tttGame
	uno           *unoGame
	requests      *handshakeTable
	turnTimer     turnTimer
	generation    uint64
	lastGame      string
	noticePending bool
}

func newRoom(key string, cfg *Config, scores ScoreStore) *Room {
	return &Room{
		key:      key,
		cfg:      cfg,
		scores:   scores,
		register: make(chan *Client),
		unreg:    make(chan *Client),
		inbound:  make(chan inboundMessage),
		expiries: make(chan timerExpiry, 4),
		graces:   make(chan string, 4),
		notices:  make(chan uint64, 2),
		clients:  make(map[*Client]bool),
		players: map[string]*Client{
			roleHost:  nil,
			roleGuest: nil,
		},
		ttt:      newTTTGame(),
		requests: newHandshakeTable(),
	}
}

func (r *Room) run() {
	for {
		select {
		case c := <-r.register:
			r.handleRegister(c)
		case c := <-r.unreg:
			r.handleUnregister(c)
		case in := <-r.inbound:
			r.dispatch(in.client, in.msg)
		case exp := <-r.expiries:
			r.handleExpiry(exp)
		case id := <-r.graces:
			r.requests.drop(id)
		case gen := <-r.notices:
			r.handleNotice(gen)
		}
	}
}

// send delivers msg to one client, dropping the client if its buffer is
// full (the teacherly alternative to blocking the room).
func (r *Room) send(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		r.forget(c)
	}
}

func (r *Room) forget(c *Client) {
	if _, ok := r.clients[c]; ok {
		delete(r.clients, c)
		close(c.send)
	}
}

func (r *Room) broadcast(msg any) {
	for c := range r.clients {
		r.send(c, msg)
	}
}

func (r *Room) occupiedSlots() int {
	n := 0
	for _, c := range r.players {
		if c != nil {
			n++
		}
	}
	return n
}

func (r *Room) anyActive() bool {
	if r.ttt.Active {
		return true
	}
	return r.uno != nil && r.uno.Active
}

func (r *Room) broadcastPresence() {
	for role, c := range r.players {
		if c == nil {
			continue
		}
		other := otherRole(role)
		r.send(c, PresenceMessage{
			Type:           "presence",
			You:            role,
			OtherConnected: r.players[other] != nil,
			OtherLabel:     roleLabel(other),
		})
	}
}

func (r *Room) fetchScores() ScoreTally {
	tally, err := r.scores.Scores(r.key)
	if err != nil {
		logf(r.cfg, "ROOMS: score read failed for %s: %v", r.key, err)
		return ScoreTally{}
	}
	return tally
}

func scoresMessage(t ScoreTally) ScoresMessage {
	return ScoresMessage{Type: "scores", Host: t.Host, Guest: t.Guest, Draws: t.Draws}
}

func (r *Room) handleRegister(c *Client) {
	if r.occupiedSlots() >= 2 {
		c.send <- RoomFullMessage{Type: "room_full"}
		close(c.send)
		return
	}

	r.clients[c] = true

	hostFree := r.players[roleHost] == nil
	guestFree := r.players[roleGuest] == nil

	if hostFree && guestFree {
		r.send(c, RoleChooseMessage{Type: "role_choose", HostFree: true, GuestFree: true})
		r.broadcastPresence()
		return
	}

	role := roleHost
	if !hostFree {
		role = roleGuest
	}
	r.players[role] = c
	c.role = role
	r.send(c, RoleAutoAssignedMessage{Type: "role_auto_assigned", Role: role})
	logf(r.cfg, "ROOMS: %s auto-assigned in %s", role, r.key)

	r.broadcastPresence()
	r.send(c, scoresMessage(r.fetchScores()))
}

func (r *Room) handleUnregister(c *Client) {
	if _, ok := r.clients[c]; !ok {
		return
	}
	delete(r.clients, c)
	close(c.send)

	// A disconnect invalidates every in-flight handshake and timer.
	r.requests.reset()
	r.turnTimer.cancel()
	r.generation++

	if c.role != "" && r.players[c.role] == c {
		r.players[c.role] = nil
	}

	var remaining *Client
	for _, other := range r.players {
		if other != nil {
			remaining = other
			break
		}
	}

	if remaining != nil {
		r.send(remaining, RequestClearedMessage{Type: "request_cleared"})
	}

	if r.anyActive() {
		r.ttt.Active = false
		if r.uno != nil {
			r.uno.Active = false
		}
		if remaining != nil {
			r.send(remaining, PlayerLeftMessage{Type: "player_left", Who: roleLabel(c.role), DuringGame: true})
			r.send(remaining, ReturnToListMessage{Type: "return_to_list"})
		}
	}

	// A post-win return notice is still owed to the survivor; the
	// generation bump above would otherwise suppress it.
	if r.noticePending {
		if remaining != nil {
			r.send(remaining, ReturnToListMessage{Type: "return_to_list"})
		}
		r.noticePending = false
	}

	r.broadcastPresence()

	if r.occupiedSlots() == 0 {
		r.ttt = newTTTGame()
		r.uno = nil
		r.lastGame = ""
	}
}

// dispatch validates each payload at the boundary before touching engine
// state.
func (r *Room) dispatch(c *Client, msg ClientMessage) {
	if _, ok := r.clients[c]; !ok {
		return
	}

	switch msg.Type {
	case "pick_role":
		r.handlePickRole(c, msg.Role)
	case "chat":
		r.handleChat(c, msg.Text)
	case "select_game":
		r.handleSelectGame(c, msg.GameName)
	case "restart":
		r.handleRestart(c)
	case "respond":
		if msg.RequestID != "" && msg.Accept != nil {
			r.handleRespond(c, msg.RequestID, *msg.Accept)
		}
	case "leave":
		r.handleLeave(c)
	case "ttt_move":
		if msg.Index != nil {
			r.handleTTTMove(c, *msg.Index)
		}
	case "uno_play":
		if msg.HandIndex != nil {
			r.handleUnoPlay(c, *msg.HandIndex, msg.ChosenColor)
		}
	case "uno_draw":
		r.handleUnoDraw(c)
	case "uno_declare":
		r.handleUnoDeclare(c)
	default:
		// ignore unknown types
	}
}

func (r *Room) handlePickRole(c *Client, role string) {
	if c.role != "" {
		return
	}
	if role != roleHost && role != roleGuest {
		return
	}
	if r.players[role] != nil {
		r.send(c, RoleUnavailableMessage{Type: "role_unavailable"})
		return
	}

	r.players[role] = c
	c.role = role
	r.send(c, RoleConfirmedMessage{Type: "role_confirmed", Role: role})
	logf(r.cfg, "ROOMS: %s picked in %s", role, r.key)

	remaining := otherRole(role)
	if r.players[remaining] == nil {
		for other := range r.clients {
			if other == c || other.role != "" {
				continue
			}
			r.players[remaining] = other
			other.role = remaining
			r.send(other, RoleAutoAssignedMessage{Type: "role_auto_assigned", Role: remaining})
			break
		}
	}

	r.broadcastPresence()
	r.broadcast(scoresMessage(r.fetchScores()))
}

func (r *Room) handleChat(c *Client, text string) {
	if text == "" {
		return
	}
	role := c.role
	if role == "" {
		role = "spectator"
	}
	r.broadcast(ChatMessage{Type: "chat", Text: text, Ts: time.Now().UnixMilli(), Role: role})
}

func (r *Room) proposalFailed(c *Client, kind handshakeKind, err error) {
	reason := "no_opponent"
	if err == errAlreadyPending {
		reason = "already_pending"
	}
	r.send(c, RequestFailedMessage{Type: "request_failed", Kind: string(kind), Reason: reason})
}

func (r *Room) handleSelectGame(c *Client, gameName string) {
	if c.role == "" {
		return
	}
	if gameName != "tictactoe" && gameName != "uno" {
		return
	}

	opponent := r.players[otherRole(c.role)]
	req, err := r.requests.propose(kindSelection, c.role, gameName, opponent != nil)
	if err != nil {
		r.proposalFailed(c, kindSelection, err)
		return
	}

	r.send(opponent, OfferMessage{
		Type:      "offer",
		Kind:      string(kindSelection),
		RequestID: req.id,
		FromRole:  c.role,
		GameName:  gameName,
	})
	r.send(c, RequestPendingMessage{Type: "request_pending", Kind: string(kindSelection)})
}

// handleRestart proposes replaying the most recently selected game.
// Concluded games count: replaying after a win or draw is the main use.
func (r *Room) handleRestart(c *Client) {
	if c.role == "" {
		return
	}
	gameName := r.lastGame
	if gameName == "" {
		return
	}

	opponent := r.players[otherRole(c.role)]
	req, err := r.requests.propose(kindRestart, c.role, gameName, opponent != nil)
	if err != nil {
		r.proposalFailed(c, kindRestart, err)
		return
	}

	r.send(opponent, OfferMessage{
		Type:      "offer",
		Kind:      string(kindRestart),
		RequestID: req.id,
		FromRole:  c.role,
		GameName:  gameName,
	})
	r.send(c, RequestPendingMessage{Type: "request_pending", Kind: string(kindRestart)})
}

func (r *Room) handleRespond(c *Client, requestID string, accept bool) {
	req, ok := r.requests.get(requestID)
	if !ok {
		// Already resolved, expired, or invalidated by a disconnect.
		return
	}
	if req.kind == kindLeave {
		return
	}
	// Only the side that did not propose may answer.
	if c.role == "" || c.role == req.initiator {
		return
	}

	r.requests.resolve(req)

	if !accept {
		if initiator := r.players[req.initiator]; initiator != nil {
			r.send(initiator, RequestDeniedMessage{
				Type:   "request_denied",
				Kind:   string(req.kind),
				ByRole: c.role,
			})
		}
		return
	}

	switch req.kind {
	case kindSelection:
		r.startGame(req.gameName)
	case kindRestart:
		r.restartLastGame()
	}
}

func (r *Room) connectedPlayers() map[string]string {
	players := make(map[string]string, 2)
	for role, cl := range r.players {
		if cl != nil {
			players[role] = cl.id
		}
	}
	return players
}

func (r *Room) startGame(gameName string) {
	r.generation++
	r.turnTimer.cancel()
	r.lastGame = gameName
	r.noticePending = false

	switch gameName {
	case "tictactoe":
		if r.uno != nil {
			r.uno.Active = false
		}
		r.ttt.restart()
		r.broadcast(GameStartMessage{
			Type:     "game_start",
			Players:  r.connectedPlayers(),
			GameName: gameName,
			State:    r.ttt,
		})
		r.broadcast(TTTStateMessage{Type: "ttt_state", tttGame: r.ttt})
	case "uno":
		r.ttt.Active = false
		r.uno = newUnoGame()
		r.broadcast(GameStartMessage{
			Type:     "game_start",
			Players:  r.connectedPlayers(),
			GameName: gameName,
			State:    r.uno,
		})
		r.broadcast(UnoStateMessage{Type: "uno_state", unoGame: r.uno})
		r.armTimer()
	}

	logf(r.cfg, "ROOMS: started %s in %s", gameName, r.key)
}

// restartLastGame replays the most recently selected game, whether it
// is still running or already concluded.
func (r *Room) restartLastGame() {
	switch r.lastGame {
	case "tictactoe":
		if r.uno != nil {
			r.uno.Active = false
		}
		r.ttt.restart()
		r.broadcast(TTTStateMessage{Type: "ttt_state", tttGame: r.ttt})
	case "uno":
		r.ttt.Active = false
		r.uno = newUnoGame()
		r.broadcast(UnoStateMessage{Type: "uno_state", unoGame: r.uno})
		r.armTimer()
	}
	r.noticePending = false
}

func (r *Room) handleLeave(c *Client) {
	if c.role == "" {
		return
	}

	if r.players[otherRole(c.role)] == nil {
		r.resetGames()
		r.send(c, LeftOkMessage{Type: "left_ok"})
		r.broadcastPresence()
		return
	}

	// Leaving is unilateral; the handshake only deduplicates repeat
	// clicks inside the grace window.
	req, err := r.requests.propose(kindLeave, c.role, "", true)
	if err != nil {
		r.proposalFailed(c, kindLeave, err)
		return
	}

	r.broadcast(PlayerLeftMessage{
		Type:       "player_left",
		Who:        roleLabel(c.role),
		DuringGame: r.anyActive(),
	})
	r.resetGames()
	r.broadcast(ReturnToListMessage{Type: "return_to_list"})

	id := req.id
	time.AfterFunc(r.cfg.leaveGrace, func() {
		r.graces <- id
	})
}

func (r *Room) resetGames() {
	r.generation++
	r.turnTimer.cancel()
	r.ttt = newTTTGame()
	r.uno = nil
	r.lastGame = ""
	r.noticePending = false
}

// armTimer starts the clock on the current card-game turn. Each arm
// advances the generation, so an expiry queued for an earlier turn reads
// as stale even when the same seat's turn has come around again.
func (r *Room) armTimer() {
	r.generation++
	r.turnTimer.arm(r.cfg.turnTimeout, r.uno.CurrentPlayer, r.generation, r.expiries)
}

func (r *Room) handleTTTMove(c *Client, index int) {
	if c.role == "" {
		return
	}

	switch r.ttt.move(c.role, index) {
	case tttIgnored:
		return
	case tttWin:
		tally, err := r.scores.AddWin(r.key, c.role)
		if err != nil {
			logf(r.cfg, "ROOMS: score write failed for %s: %v", r.key, err)
		}
		r.broadcast(TTTWinMessage{Type: "ttt_win", Winner: c.role, Board: r.ttt.Board})
		r.broadcast(scoresMessage(tally))
	case tttDraw:
		tally, err := r.scores.AddDraw(r.key)
		if err != nil {
			logf(r.cfg, "ROOMS: score write failed for %s: %v", r.key, err)
		}
		r.broadcast(TTTDrawMessage{Type: "ttt_draw", Board: r.ttt.Board})
		r.broadcast(scoresMessage(tally))
	case tttContinue:
	}

	r.broadcast(TTTStateMessage{Type: "ttt_state", tttGame: r.ttt})
}

func (r *Room) handleUnoPlay(c *Client, handIndex int, chosenColor string) {
	if c.role == "" || r.uno == nil {
		return
	}

	res := r.uno.playCard(c.role, handIndex, chosenColor)
	if !res.applied {
		return
	}

	if res.penalized {
		r.broadcast(UnoPenaltyMessage{Type: "uno_penalty", Player: c.role, Reason: "undeclared_low_hand"})
	}

	if res.won {
		r.generation++
		r.turnTimer.cancel()

		tally, err := r.scores.AddWin(r.key, c.role)
		if err != nil {
			logf(r.cfg, "ROOMS: score write failed for %s: %v", r.key, err)
		}
		r.broadcast(UnoWinMessage{Type: "uno_win", Winner: c.role})
		r.broadcast(scoresMessage(tally))

		r.noticePending = true
		gen := r.generation
		time.AfterFunc(returnToListDelay, func() {
			r.notices <- gen
		})
		return
	}

	r.armTimer()
	r.broadcast(UnoStateMessage{Type: "uno_state", unoGame: r.uno})
}

func (r *Room) handleUnoDraw(c *Client) {
	if c.role == "" || r.uno == nil {
		return
	}
	if !r.uno.drawCard(c.role) {
		return
	}

	r.armTimer()
	r.broadcast(UnoStateMessage{Type: "uno_state", unoGame: r.uno})
}

func (r *Room) handleUnoDeclare(c *Client) {
	if c.role == "" || r.uno == nil {
		return
	}
	if !r.uno.declareLowHand(c.role) {
		return
	}
	r.broadcast(UnoDeclaredMessage{Type: "uno_declared", Player: c.role})
}

// handleExpiry applies a turn timeout, unless the timer lost the race
// with a move, restart, or disconnect since it was armed.
func (r *Room) handleExpiry(exp timerExpiry) {
	if exp.generation != r.generation {
		return
	}
	if r.uno == nil || !r.uno.Active || r.uno.CurrentPlayer != exp.player {
		return
	}

	r.uno.forceTimeout(exp.player)
	r.broadcast(UnoTimeoutMessage{Type: "uno_timeout", Player: exp.player})
	r.broadcast(UnoStateMessage{Type: "uno_state", unoGame: r.uno})
	r.armTimer()
}

// handleNotice returns the room to the game list a moment after a card
// game concludes, unless something else started in the meantime.
func (r *Room) handleNotice(gen uint64) {
	if gen != r.generation || r.anyActive() {
		return
	}
	r.noticePending = false
	r.broadcast(ReturnToListMessage{Type: "return_to_list"})
}

func (c *Client) readPump(r *Room) {
	defer func() {
		r.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		r.inbound <- inboundMessage{client: c, msg: msg}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RoomManager is the explicit room registry: a keyed store accessed only
// through getRoom, so no ambient shared room table exists elsewhere.
type RoomManager struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	cfg    *Config
	scores ScoreStore
}

func newRoomManager(cfg *Config, scores ScoreStore) *RoomManager {
	return &RoomManager{
		rooms:  make(map[string]*Room),
		cfg:    cfg,
		scores: scores,
	}
}

// getRoom creates the room lazily on first reference. Rooms are never
// deleted; they reset their games when both seats empty out.
func (rm *RoomManager) getRoom(key string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if room, ok := rm.rooms[key]; ok {
		return room
	}

	room := newRoom(key, rm.cfg, rm.scores)
	rm.rooms[key] = room
	go room.run()
	return room
}

// newRoomKey generates a crypto-random room key and ensures it doesn't
// collide with existing rooms.
func (rm *RoomManager) newRoomKey() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		key := string(out)

		rm.mu.Lock()
		_, exists := rm.rooms[key]
		rm.mu.Unlock()

		if !exists {
			return key
		}
	}
}

// WebSocket handler that picks the room based on :roomid
func serveWSForRooms(cfg *Config, rm *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomKey := ps.ByName("roomid")
		if roomKey == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		room := rm.getRoom(roomKey)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 8),
			id:   uuid.NewString(),
			room: roomKey,
		}

		room.register <- client

		go client.writePump()
		client.readPump(room)
	}
}

// QR handler: generates a PNG QR code for the current room URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomKey := ps.ByName("roomid")
	if roomKey == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:roomid/qr; strip trailing "/qr" to get the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

//go:embed room/index.html
var roomIndexHTML []byte

func getRoomIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(roomIndexHTML)
	}
}

// redirectNewRoom handles GET /room by generating a new random room key
// (with server-side collision detection) and redirecting to /room/:roomid.
func redirectNewRoom(cfg *Config, path string, rm *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		roomKey := rm.newRoomKey()
		logf(cfg, "ROOMS: Created room %s/%s", path, roomKey)
		http.Redirect(w, r, cfg.prefix+path+"/"+roomKey, http.StatusTemporaryRedirect)
	}
}

// registerDuoRoom sets up routes so that:
//   - $path              → redirects to new random room (8-char key)
//   - $path/:roomid      → HTML client
//   - $path/:roomid/ws   → WebSocket for that room
//   - $path/:roomid/qr   → PNG QR code for that room URL
func registerDuoRoom(cfg *Config, path string, mux *httprouter.Router, scores ScoreStore) {
	rm := newRoomManager(cfg, scores)

	// Root path → redirect to new random room
	mux.GET(cfg.prefix+path, redirectNewRoom(cfg, path, rm))

	// Per-room client view (HTML)
	mux.GET(cfg.prefix+path+"/:roomid", getRoomIndexHandler(cfg))

	// Per-room websocket
	mux.GET(cfg.prefix+path+"/:roomid/ws", serveWSForRooms(cfg, rm))

	// Per-room QR code
	mux.GET(cfg.prefix+path+"/:roomid/qr", qrHandler)
}
