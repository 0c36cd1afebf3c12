package main

import (
	"context"
	"strconv"
	"strings"
	"time"
)

type intent struct {
	client *Client
	msg    ClientMessage
}

type roomInfo struct {
	ok   bool
	mode GameMode
}

type lookup struct {
	code  string
	reply chan roomInfo
}

// Registry owns every room in the process. All room and player state is
// mutated exclusively on the run loop's goroutine: each inbound intent is
// processed to completion before the next, so two near-simultaneous
// ringBell calls are totally ordered by arrival and the loser legitimately
// sees an empty table. Deferred work (settle-delay flip resolution, round
// endings) re-enters through the tasks channel instead of mutating from a
// timer goroutine.
type Registry struct {
	cfg     *Config
	rooms   map[string]*Room
	clients map[*Client]bool

	joins   chan *Client
	parts   chan *Client
	intents chan intent
	tasks   chan func()
	lookups chan lookup
	done    chan struct{}
}

func newRegistry(cfg *Config) *Registry {
	return &Registry{
		cfg:     cfg,
		rooms:   make(map[string]*Room),
		clients: make(map[*Client]bool),
		joins:   make(chan *Client),
		parts:   make(chan *Client),
		intents: make(chan intent),
		tasks:   make(chan func(), 16),
		lookups: make(chan lookup),
		done:    make(chan struct{}),
	}
}

func (reg *Registry) run(ctx context.Context) {
	var reap <-chan time.Time
	if reg.cfg.sessionTimeout > 0 {
		ticker := time.NewTicker(reg.cfg.sessionTimeout / 2)
		defer ticker.Stop()
		reap = ticker.C
	}

	for {
		select {
		case c := <-reg.joins:
			reg.clients[c] = true

		case c := <-reg.parts:
			if !reg.clients[c] {
				continue
			}
			delete(reg.clients, c)
			close(c.send)
			reg.removeFromRoom(c)

		case in := <-reg.intents:
			if reg.clients[in.client] {
				reg.handleIntent(in.client, in.msg)
			}

		case fn := <-reg.tasks:
			fn()

		case l := <-reg.lookups:
			room, ok := reg.rooms[l.code]
			if ok {
				l.reply <- roomInfo{ok: true, mode: room.mode}
			} else {
				l.reply <- roomInfo{}
			}

		case <-reap:
			reg.reapIdleRooms()

		case <-ctx.Done():
			close(reg.done)
			return
		}
	}
}

// lookupRoom answers HTTP-side queries (the QR endpoint) without letting
// any other goroutine hold a room reference.
func (reg *Registry) lookupRoom(code string) roomInfo {
	reply := make(chan roomInfo, 1)
	select {
	case reg.lookups <- lookup{code: code, reply: reply}:
		return <-reply
	case <-reg.done:
		return roomInfo{}
	}
}

// scheduleTask runs fn on the registry loop after d. With a zero delay it
// runs inline, which keeps resolution synchronous for tests and for
// operators who disable animation windows.
func (reg *Registry) scheduleTask(d time.Duration, fn func()) {
	if d <= 0 {
		fn()
		return
	}
	time.AfterFunc(d, func() {
		select {
		case reg.tasks <- fn:
		case <-reg.done:
		}
	})
}

// roomAlive reports whether the given room is still the registered owner
// of its code, guarding deferred continuations against acting on a room
// that was deleted or recycled while the timer was pending.
func (reg *Registry) roomAlive(room *Room) bool {
	return reg.rooms[room.code] == room
}

// newRoomCode generates a 4-digit numeric room code, retrying on collision.
// The code space dwarfs any plausible number of concurrent rooms, so
// exhausting the retry budget is effectively unreachable.
func (reg *Registry) newRoomCode() (string, error) {
	for i := 0; i < 128; i++ {
		code := strconv.Itoa(1000 + randomInt(9000))
		if _, exists := reg.rooms[code]; !exists {
			return code, nil
		}
	}
	return "", errDuplicateCode
}

func (reg *Registry) handleIntent(c *Client, msg ClientMessage) {
	switch msg.Type {
	case "setNickname":
		reg.handleSetNickname(c, msg)
	case "createRoom":
		reg.handleCreateRoom(c, msg)
	case "joinRoom":
		reg.handleJoinRoom(c, msg)
	case "leaveRoom":
		reg.removeFromRoom(c)
	default:
		room, ok := reg.rooms[c.roomCode]
		if !ok {
			return
		}
		reg.handleRoomIntent(room, c, msg)
	}
}

func (reg *Registry) handleRoomIntent(room *Room, c *Client, msg ClientMessage) {
	switch msg.Type {
	case "toggleReady":
		room.toggleReady(c)
	case "startGameRequest", "requestNextRecipe":
		reg.handleStart(room, c)
	case "flipCard":
		reg.handleFlip(room, c)
	case "ringBell":
		reg.handleRingBell(room, c)
	case "syncMySkewer":
		reg.handleSyncSkewer(room, c, msg)
	case "updateProgress":
		reg.handleUpdateProgress(room, c, msg)
	case "submit":
		reg.handleSubmit(room, c, msg)
	default:
		// unknown intents are client bugs, not errors
	}
}

func (reg *Registry) handleSetNickname(c *Client, msg ClientMessage) {
	if n := strings.TrimSpace(msg.Nickname); n != "" {
		c.nickname = n
	}
	if room, ok := reg.rooms[c.roomCode]; ok {
		room.setNickname(c)
	}
}

func (reg *Registry) handleCreateRoom(c *Client, msg ClientMessage) {
	if _, ok := reg.rooms[c.roomCode]; ok {
		reg.reject(c, "error", "already in a room")
		return
	}
	if len(reg.rooms) >= reg.cfg.maxRooms {
		reg.reject(c, "joinRoomError", errTooManyRooms.Error())
		return
	}

	code, err := reg.newRoomCode()
	if err != nil {
		reg.reject(c, "joinRoomError", err.Error())
		return
	}

	if n := strings.TrimSpace(msg.Nickname); n != "" {
		c.nickname = n
	}

	capacity := msg.MaxPlayers
	if capacity < 2 || capacity > 8 {
		capacity = 4
	}

	room := newRoom(code, c.mode, capacity)
	room.hostID = c.playerID
	room.addPlayer(c)
	c.roomCode = code
	reg.rooms[code] = room

	logf(reg.cfg, "ROOMS: %q created %s room %s (capacity %d)", c.nickname, room.mode, code, capacity)

	room.sendTo(c.playerID, room.stateMessage("roomCreated"))
}

func (reg *Registry) handleJoinRoom(c *Client, msg ClientMessage) {
	code := strings.TrimSpace(msg.RoomID)
	if n := strings.TrimSpace(msg.Nickname); n != "" {
		c.nickname = n
	}

	room, ok := reg.rooms[code]
	if !ok || room.mode != c.mode {
		reg.reject(c, "joinRoomError", errRoomNotFound.Error())
		return
	}

	// switching rooms implies leaving the previous one
	if c.roomCode != "" && c.roomCode != code {
		reg.removeFromRoom(c)
	}

	rejoining := room.playerByID(c.playerID) != nil
	if !rejoining {
		if len(room.players) >= room.capacity {
			reg.reject(c, "joinRoomError", errRoomFull.Error())
			return
		}
		if room.phase == PhaseInProgress {
			reg.reject(c, "joinRoomError", errRoomInProgress.Error())
			return
		}
	}

	room.addPlayer(c)
	c.roomCode = code

	// repair the host pointer if it no longer references a seated player
	if room.hostID == "" || room.playerByID(room.hostID) == nil {
		room.hostID = room.players[0].ID
	}

	room.touch()
	if !rejoining {
		logf(reg.cfg, "ROOMS: %q joined room %s (%d/%d)", c.nickname, code, len(room.players), room.capacity)
	}
	room.broadcast(room.stateMessage("playerJoined"))
}

// reject reports a caller-only rejection without touching room state.
func (reg *Registry) reject(c *Client, msgType, text string) {
	select {
	case c.send <- ErrorMessage{Type: msgType, Message: text}:
	default:
	}
}

// handleStart is the host's start/next-round request for either game mode.
func (reg *Registry) handleStart(room *Room, c *Client) {
	if c.playerID != room.hostID {
		return
	}
	if room.phase == PhaseInProgress {
		return
	}
	if err := room.checkStart(); err != nil {
		room.sendTo(c.playerID, ErrorMessage{Type: "startBlocked", Message: err.Error()})
		return
	}

	room.resetForStart()

	switch room.mode {
	case ModeHalli:
		reg.deal(room)
	case ModeSkewer:
		reg.startRecipeRound(room)
	}
}

// removeFromRoom takes the client's player out of whatever room they are
// in, repairing the host pointer and turn index, and deletes the room once
// it empties.
func (reg *Registry) removeFromRoom(c *Client) {
	room, ok := reg.rooms[c.roomCode]
	c.roomCode = ""
	if !ok {
		return
	}

	// a newer connection for the same player supersedes this one
	if room.clients[c.playerID] != c {
		return
	}
	delete(room.clients, c.playerID)

	idx := room.playerIndex(c.playerID)
	if idx < 0 {
		return
	}
	leaving := room.players[idx]
	wasHost := room.hostID == c.playerID

	room.players = append(room.players[:idx], room.players[idx+1:]...)
	room.touch()

	if len(room.players) == 0 {
		delete(reg.rooms, room.code)
		logf(reg.cfg, "ROOMS: Deleted empty room %s", room.code)
		return
	}

	if wasHost {
		room.hostID = room.players[0].ID
		room.broadcast(room.stateMessage("hostChanged"))
	} else {
		room.broadcast(PlayerLeftMessage{
			Type:     "playerLeft",
			ID:       leaving.ID,
			Nickname: leaving.Nickname,
			Players:  room.snapshot(),
			HostID:   room.hostID,
			Max:      room.capacity,
		})
	}

	logf(reg.cfg, "ROOMS: %q left room %s (%d remain)", leaving.Nickname, room.code, len(room.players))

	if room.phase != PhaseInProgress {
		return
	}

	switch room.mode {
	case ModeHalli:
		// cancel any in-flight flip resolution so it cannot advance the
		// turn a second time after the sweep below announces a holder
		if room.flipLocked {
			room.flipSeq++
			room.flipLocked = false
		}
		// eager reclamp: departures above the turn index shift it left
		if idx < room.turnIndex {
			room.turnIndex--
		}
		room.turnIndex %= len(room.players)
		reg.ensureTurn(room)
	case ModeSkewer:
		room.broadcast(ScoresMessage{Type: "updateScores", Players: room.snapshot()})
		reg.maybeEndRecipeRound(room)
	}
}

// reapIdleRooms closes rooms whose last activity predates the idle cutoff.
func (reg *Registry) reapIdleRooms() {
	cutoff := time.Now().Add(-reg.cfg.sessionTimeout)

	for code, room := range reg.rooms {
		if !room.lastActive.Before(cutoff) {
			continue
		}
		for _, c := range room.clients {
			if reg.clients[c] {
				delete(reg.clients, c)
				close(c.send)
				if c.conn != nil {
					_ = c.conn.Close()
				}
			}
			c.roomCode = ""
		}
		delete(reg.rooms, code)
		logf(reg.cfg, "ROOMS: Reaped idle room %s", code)
	}
}
