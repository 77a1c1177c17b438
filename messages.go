package main

// Messages coming from clients. One struct with a type tag; fields not
// relevant to a given type are left at their zero value and ignored.
type ClientMessage struct {
	Type        string `json:"type"` // "pick_role", "chat", "select_game", "restart", "respond", "leave", "ttt_move", "uno_play", "uno_draw", "uno_declare"
	Role        string `json:"role,omitempty"`        // pick_role
	Text        string `json:"text,omitempty"`        // chat
	GameName    string `json:"gameName,omitempty"`    // select_game
	RequestID   string `json:"requestId,omitempty"`   // respond
	Accept      *bool  `json:"accept,omitempty"`      // respond
	Index       *int   `json:"index,omitempty"`       // ttt_move
	HandIndex   *int   `json:"handIndex,omitempty"`   // uno_play
	ChosenColor string `json:"chosenColor,omitempty"` // uno_play
}

// RoomFullMessage rejects a third connection to an occupied room.
type RoomFullMessage struct {
	Type string `json:"type"` // "room_full"
}

// RoleChooseMessage offers an explicit role pick when both slots are free.
type RoleChooseMessage struct {
	Type      string `json:"type"` // "role_choose"
	HostFree  bool   `json:"hostFree"`
	GuestFree bool   `json:"guestFree"`
}

type RoleConfirmedMessage struct {
	Type string `json:"type"` // "role_confirmed"
	Role string `json:"role"`
}

type RoleAutoAssignedMessage struct {
	Type string `json:"type"` // "role_auto_assigned"
	Role string `json:"role"`
}

type RoleUnavailableMessage struct {
	Type string `json:"type"` // "role_unavailable"
}

// PresenceMessage tells an assigned client who it is and whether the
// other seat is occupied.
type PresenceMessage struct {
	Type           string `json:"type"` // "presence"
	You            string `json:"you"`
	OtherConnected bool   `json:"otherConnected"`
	OtherLabel     string `json:"otherLabel"`
}

type ChatMessage struct {
	Type string `json:"type"` // "chat"
	Text string `json:"text"`
	Ts   int64  `json:"ts"`
	Role string `json:"role"`
}

// RequestPendingMessage acknowledges a handshake proposal to its initiator.
type RequestPendingMessage struct {
	Type string `json:"type"` // "request_pending"
	Kind string `json:"kind"`
}

// RequestFailedMessage carries the reported-to-sender rejections:
// "no_opponent" and "already_pending".
type RequestFailedMessage struct {
	Type   string `json:"type"` // "request_failed"
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// OfferMessage delivers a handshake proposal to the opponent only.
type OfferMessage struct {
	Type      string `json:"type"` // "offer"
	Kind      string `json:"kind"`
	RequestID string `json:"requestId"`
	FromRole  string `json:"fromRole"`
	GameName  string `json:"gameName,omitempty"`
}

type RequestDeniedMessage struct {
	Type   string `json:"type"` // "request_denied"
	Kind   string `json:"kind"`
	ByRole string `json:"byRole"`
}

// RequestClearedMessage tells the survivor that a disconnect invalidated
// any in-flight handshake.
type RequestClearedMessage struct {
	Type string `json:"type"` // "request_cleared"
}

type GameStartMessage struct {
	Type     string            `json:"type"` // "game_start"
	Players  map[string]string `json:"players"`
	GameName string            `json:"gameName"`
	State    any               `json:"state"`
}

type TTTStateMessage struct {
	Type string `json:"type"` // "ttt_state"
	*tttGame
}

type TTTWinMessage struct {
	Type   string    `json:"type"` // "ttt_win"
	Winner string    `json:"winner"`
	Board  [9]string `json:"board"`
}

type TTTDrawMessage struct {
	Type  string    `json:"type"` // "ttt_draw"
	Board [9]string `json:"board"`
}

type UnoStateMessage struct {
	Type string `json:"type"` // "uno_state"
	*unoGame
}

type UnoPenaltyMessage struct {
	Type   string `json:"type"` // "uno_penalty"
	Player string `json:"player"`
	Reason string `json:"reason"`
}

type UnoTimeoutMessage struct {
	Type   string `json:"type"` // "uno_timeout"
	Player string `json:"player"`
}

type UnoDeclaredMessage struct {
	Type   string `json:"type"` // "uno_declared"
	Player string `json:"player"`
}

type UnoWinMessage struct {
	Type   string `json:"type"` // "uno_win"
	Winner string `json:"winner"`
}

type PlayerLeftMessage struct {
	Type       string `json:"type"` // "player_left"
	Who        string `json:"who"`
	DuringGame bool   `json:"duringGame"`
}

type ReturnToListMessage struct {
	Type string `json:"type"` // "return_to_list"
}

type LeftOkMessage struct {
	Type string `json:"type"` // "left_ok"
}

type ScoresMessage struct {
	Type  string `json:"type"` // "scores"
	Host  int    `json:"host"`
	Guest int    `json:"guest"`
	Draws int    `json:"draws"`
}
