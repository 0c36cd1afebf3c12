package main

import (
	"time"
)

type GameMode string

const (
	ModeSkewer GameMode = "skewer"
	ModeHalli  GameMode = "halli"
)

type Phase int

const (
	PhaseLobby Phase = iota
	PhaseInProgress
	PhaseEnded
)

// Card is one face-down unit of the bell game. Immutable once dealt; it
// only ever moves between a deck, an open card slot, and an open stack.
type Card struct {
	Fruit int `json:"fruit"` // 1-4
	Count int `json:"count"` // 1-5
}

// Ingredient is one element of a skewer recipe.
type Ingredient struct {
	ID    int `json:"id"`    // 1-5
	Angle int `json:"angle"` // 0, 90, 180, or 270
}

// Skewer is an ordered sequence of ingredients.
type Skewer []Ingredient

// Player holds the server-side state for one seat in a room. Seating
// order is the order of Room.players and defines turn order.
type Player struct {
	ID       string
	Nickname string
	Ready    bool

	// bell game
	Eliminated bool
	Deck       []Card // stack; the top is the final element
	OpenCard   *Card
	OpenStack  []Card // face-up cards shown since the last bell collection

	// skewer game
	Score     int
	Progress  int
	Current   Skewer
	Completed []Skewer
	Finished  bool
}

// Room is a lobby/match container identified by a short numeric code.
// All fields are owned by the registry loop; nothing else may touch them.
type Room struct {
	code     string
	mode     GameMode
	hostID   string
	capacity int
	phase    Phase
	players  []*Player
	clients  map[string]*Client // playerID -> live connection

	createdAt  time.Time
	lastActive time.Time

	// bell game
	turnIndex  int
	flipLocked bool
	flipSeq    int // invalidates stale settle-delay continuations

	// skewer game
	recipes     []Skewer
	submitCount int
	roundSeq    int // invalidates stale round-end continuations
}

func newRoom(code string, mode GameMode, capacity int) *Room {
	now := time.Now()
	return &Room{
		code:       code,
		mode:       mode,
		capacity:   capacity,
		clients:    make(map[string]*Client),
		createdAt:  now,
		lastActive: now,
	}
}

func (room *Room) touch() {
	room.lastActive = time.Now()
}

func (room *Room) playerByID(id string) *Player {
	for _, p := range room.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (room *Room) playerIndex(id string) int {
	for i, p := range room.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// currentPlayer clamps turnIndex before use; departures shrink the
// players slice without always adjusting the index proactively.
func (room *Room) currentPlayer() *Player {
	if len(room.players) == 0 {
		return nil
	}
	room.turnIndex %= len(room.players)
	return room.players[room.turnIndex]
}

func (room *Room) snapshot() []PlayerSnapshot {
	players := make([]PlayerSnapshot, 0, len(room.players))
	for _, p := range room.players {
		players = append(players, PlayerSnapshot{
			ID:         p.ID,
			Nickname:   p.Nickname,
			IsReady:    p.Ready,
			Eliminated: p.Eliminated,
			Cards:      len(p.Deck),
			OpenCard:   p.OpenCard,
			Score:      p.Score,
			Progress:   p.Progress,
		})
	}
	return players
}

func (room *Room) stateMessage(msgType string) RoomStateMessage {
	return RoomStateMessage{
		Type:    msgType,
		RoomID:  room.code,
		Players: room.snapshot(),
		HostID:  room.hostID,
		Max:     room.capacity,
	}
}

// broadcast fans a message out to every connection in the room. Sends are
// non-blocking: a client too slow to drain its buffer misses this message
// and reconciles from the next full snapshot.
func (room *Room) broadcast(msg any) {
	for _, c := range room.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// sendTo delivers a message to a single player's connection, if present.
func (room *Room) sendTo(playerID string, msg any) {
	c, ok := room.clients[playerID]
	if !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// addPlayer appends a seat for the client, or reuses the existing one when
// the same playerID joins again after a client-side refresh.
func (room *Room) addPlayer(c *Client) *Player {
	room.clients[c.playerID] = c
	if p := room.playerByID(c.playerID); p != nil {
		p.Nickname = c.nickname
		return p
	}
	p := &Player{
		ID:       c.playerID,
		Nickname: c.nickname,
	}
	room.players = append(room.players, p)
	return p
}

// setNickname updates the seat's nickname and announces the new roster.
func (room *Room) setNickname(c *Client) {
	p := room.playerByID(c.playerID)
	if p == nil {
		return
	}
	p.Nickname = c.nickname
	room.touch()
	room.broadcast(room.stateMessage("playerJoined"))
}

// toggleReady flips the caller's ready state. The host has no ready state;
// their request to start is the host's ready signal.
func (room *Room) toggleReady(c *Client) {
	if c.playerID == room.hostID {
		return
	}
	p := room.playerByID(c.playerID)
	if p == nil {
		return
	}
	p.Ready = !p.Ready
	room.touch()
	room.broadcast(room.stateMessage("readyStatusUpdated"))
}

// checkStart validates the host's request to begin a match: at least one
// guest, and every guest ready. Rejections go to the caller only.
func (room *Room) checkStart() error {
	guests := 0
	for _, p := range room.players {
		if p.ID == room.hostID {
			continue
		}
		guests++
		if !p.Ready {
			return errPlayersNotReady
		}
	}
	if guests == 0 {
		return errNotEnoughPlayers
	}
	return nil
}

// resetForStart clears every seat's ready flag and per-round state.
func (room *Room) resetForStart() {
	for _, p := range room.players {
		p.Ready = false
		p.Eliminated = false
		p.Deck = nil
		p.OpenCard = nil
		p.OpenStack = nil
		p.Progress = 0
		p.Current = nil
		p.Completed = nil
		p.Finished = false
	}
	room.flipLocked = false
	room.turnIndex = 0
	room.submitCount = 0
	room.phase = PhaseInProgress
	room.touch()
}
