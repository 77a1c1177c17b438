package main

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// A handshake gates a state change on the opponent's consent: one side
// proposes, the other accepts or denies. At most one request per kind may
// be outstanding in a room. Leave requests reuse the table purely to
// deduplicate repeat clicks; they are never answered.
type handshakeKind string

const (
	kindSelection handshakeKind = "selection"
	kindRestart   handshakeKind = "restart"
	kindLeave     handshakeKind = "leave"
)

var (
	errNoOpponent     = errors.New("no opponent present")
	errAlreadyPending = errors.New("request of this kind already pending")
)

type pendingRequest struct {
	id        string
	kind      handshakeKind
	initiator string // role of the proposing side
	gameName  string // selection only
	created   time.Time
}

type handshakeTable struct {
	requests map[string]*pendingRequest
	flags    map[handshakeKind]string // kind -> outstanding request id
}

func newHandshakeTable() *handshakeTable {
	return &handshakeTable{
		requests: make(map[string]*pendingRequest),
		flags:    make(map[handshakeKind]string),
	}
}

// propose registers a new request, enforcing single-flight per kind.
func (t *handshakeTable) propose(kind handshakeKind, initiator, gameName string, hasOpponent bool) (*pendingRequest, error) {
	if t.flags[kind] != "" {
		return nil, errAlreadyPending
	}
	if !hasOpponent {
		return nil, errNoOpponent
	}

	req := &pendingRequest{
		id:        uuid.NewString(),
		kind:      kind,
		initiator: initiator,
		gameName:  gameName,
		created:   time.Now(),
	}
	t.requests[req.id] = req
	t.flags[kind] = req.id

	return req, nil
}

// get looks up a request without resolving it. Unknown ids are the
// expected outcome of disconnect and resolution races, never an error.
func (t *handshakeTable) get(id string) (*pendingRequest, bool) {
	req, ok := t.requests[id]
	return req, ok
}

// resolve removes a request and clears its kind's flag.
func (t *handshakeTable) resolve(req *pendingRequest) {
	delete(t.requests, req.id)
	if t.flags[req.kind] == req.id {
		t.flags[req.kind] = ""
	}
}

// drop removes a request by id if it is still outstanding. Used by the
// leave grace window.
func (t *handshakeTable) drop(id string) {
	if req, ok := t.requests[id]; ok {
		t.resolve(req)
	}
}

func (t *handshakeTable) pending(kind handshakeKind) bool {
	return t.flags[kind] != ""
}

// reset invalidates every outstanding request, as on disconnect.
func (t *handshakeTable) reset() {
	t.requests = make(map[string]*pendingRequest)
	t.flags = make(map[handshakeKind]string)
}
