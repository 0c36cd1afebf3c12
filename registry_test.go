package main

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig returns a config with every delay zeroed so deferred work
// runs inline on the caller's goroutine.
func testConfig() *Config {
	return &Config{
		maxRooms:       512,
		port:           8080,
		sessionTimeout: time.Hour,
	}
}

func newTestRegistry() *Registry {
	return newRegistry(testConfig())
}

// newTestClient registers a connectionless client directly with the
// registry, bypassing the websocket layer. Intents are then delivered by
// calling handleIntent on the test goroutine, which mirrors the run
// loop's one-at-a-time processing.
func newTestClient(reg *Registry, mode GameMode, id, nickname string) *Client {
	c := &Client{
		send:     make(chan any, 64),
		playerID: id,
		mode:     mode,
		nickname: nickname,
	}
	reg.clients[c] = true
	return c
}

// received returns every message of type T buffered for c, leaving
// messages of other types queued in their original order so a test can
// inspect one broadcast's types independently.
func received[T any](c *Client) []T {
	var out []T
	var rest []any
	for {
		select {
		case msg := <-c.send:
			if v, ok := msg.(T); ok {
				out = append(out, v)
			} else {
				rest = append(rest, msg)
			}
		default:
			// the channel was just emptied, so the leftovers fit
			for _, msg := range rest {
				c.send <- msg
			}
			return out
		}
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func createRoom(t *testing.T, reg *Registry, host *Client, capacity int) *Room {
	t.Helper()

	reg.handleIntent(host, ClientMessage{Type: "createRoom", MaxPlayers: capacity})
	require.NotEmpty(t, host.roomCode)

	room, ok := reg.rooms[host.roomCode]
	require.True(t, ok)

	return room
}

func joinRoom(t *testing.T, reg *Registry, c *Client, code string) {
	t.Helper()

	reg.handleIntent(c, ClientMessage{Type: "joinRoom", RoomID: code})
	require.Equal(t, code, c.roomCode)
}

func TestCreateRoomAssignsHostAndCode(t *testing.T) {
	reg := newTestRegistry()
	host := newTestClient(reg, ModeHalli, "p1", "Alice")

	room := createRoom(t, reg, host, 4)

	assert.Len(t, room.code, 4)
	code, err := strconv.Atoi(room.code)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, code, 1000)
	assert.LessOrEqual(t, code, 9999)

	assert.Equal(t, "p1", room.hostID)
	assert.Equal(t, PhaseLobby, room.phase)

	created := received[RoomStateMessage](host)
	require.Len(t, created, 1)
	assert.Equal(t, "roomCreated", created[0].Type)
	assert.Equal(t, room.code, created[0].RoomID)
	require.Len(t, created[0].Players, 1)
	assert.Equal(t, "Alice", created[0].Players[0].Nickname)
}

func TestCreateRoomCapacityClamped(t *testing.T) {
	reg := newTestRegistry()

	for _, tc := range []struct {
		requested int
		want      int
	}{
		{0, 4},
		{1, 4},
		{2, 2},
		{6, 6},
		{8, 8},
		{9, 4},
	} {
		c := newTestClient(reg, ModeHalli, "p"+strconv.Itoa(tc.requested), "")
		room := createRoom(t, reg, c, tc.requested)
		assert.Equal(t, tc.want, room.capacity, "requested %d", tc.requested)
	}
}

func TestCreateRoomWhileSeatedRejected(t *testing.T) {
	reg := newTestRegistry()
	host := newTestClient(reg, ModeHalli, "p1", "Alice")

	room := createRoom(t, reg, host, 4)
	drain(host)

	reg.handleIntent(host, ClientMessage{Type: "createRoom"})

	errs := received[ErrorMessage](host)
	require.Len(t, errs, 1)
	assert.Equal(t, "error", errs[0].Type)
	assert.Len(t, reg.rooms, 1)
	assert.Equal(t, room.code, host.roomCode)
}

func TestCreateRoomLimit(t *testing.T) {
	reg := newTestRegistry()
	reg.cfg.maxRooms = 1

	first := newTestClient(reg, ModeHalli, "p1", "")
	createRoom(t, reg, first, 4)

	second := newTestClient(reg, ModeHalli, "p2", "")
	reg.handleIntent(second, ClientMessage{Type: "createRoom"})

	errs := received[ErrorMessage](second)
	require.Len(t, errs, 1)
	assert.Equal(t, "joinRoomError", errs[0].Type)
	assert.Equal(t, errTooManyRooms.Error(), errs[0].Message)
	assert.Empty(t, second.roomCode)
}

func TestJoinUnknownRoom(t *testing.T) {
	reg := newTestRegistry()
	c := newTestClient(reg, ModeHalli, "p1", "")

	reg.handleIntent(c, ClientMessage{Type: "joinRoom", RoomID: "0000"})

	errs := received[ErrorMessage](c)
	require.Len(t, errs, 1)
	assert.Equal(t, errRoomNotFound.Error(), errs[0].Message)
}

func TestJoinWrongModeTreatedAsNotFound(t *testing.T) {
	reg := newTestRegistry()
	host := newTestClient(reg, ModeHalli, "p1", "")
	room := createRoom(t, reg, host, 4)

	c := newTestClient(reg, ModeSkewer, "p2", "")
	reg.handleIntent(c, ClientMessage{Type: "joinRoom", RoomID: room.code})

	errs := received[ErrorMessage](c)
	require.Len(t, errs, 1)
	assert.Equal(t, errRoomNotFound.Error(), errs[0].Message)
	assert.Empty(t, c.roomCode)
}

func TestJoinFullRoom(t *testing.T) {
	reg := newTestRegistry()
	host := newTestClient(reg, ModeHalli, "p1", "")
	room := createRoom(t, reg, host, 2)

	second := newTestClient(reg, ModeHalli, "p2", "")
	joinRoom(t, reg, second, room.code)

	third := newTestClient(reg, ModeHalli, "p3", "")
	reg.handleIntent(third, ClientMessage{Type: "joinRoom", RoomID: room.code})

	errs := received[ErrorMessage](third)
	require.Len(t, errs, 1)
	assert.Equal(t, errRoomFull.Error(), errs[0].Message)
	assert.Len(t, room.players, 2)
}

func TestJoinInProgressRejectedButRejoinAllowed(t *testing.T) {
	reg := newTestRegistry()
	room, clients := startedRoom(t, reg, ModeHalli, 2)

	late := newTestClient(reg, ModeHalli, "late", "")
	reg.handleIntent(late, ClientMessage{Type: "joinRoom", RoomID: room.code})

	errs := received[ErrorMessage](late)
	require.Len(t, errs, 1)
	assert.Equal(t, errRoomInProgress.Error(), errs[0].Message)

	// the same player on a fresh connection takes over their seat
	replacement := newTestClient(reg, ModeHalli, clients[1].playerID, "Bob2")
	joinRoom(t, reg, replacement, room.code)
	assert.Len(t, room.players, 2)
	assert.Same(t, replacement, room.clients[clients[1].playerID])
}

func TestSupersededConnectionLeavesSeatAlone(t *testing.T) {
	reg := newTestRegistry()
	host := newTestClient(reg, ModeHalli, "p1", "")
	room := createRoom(t, reg, host, 4)

	guest := newTestClient(reg, ModeHalli, "p2", "Bob")
	joinRoom(t, reg, guest, room.code)

	// second connection for the same player supersedes the first
	replacement := newTestClient(reg, ModeHalli, "p2", "Bob")
	joinRoom(t, reg, replacement, room.code)

	// the stale connection's departure must not unseat the player
	reg.removeFromRoom(guest)

	assert.Len(t, room.players, 2)
	assert.Same(t, replacement, room.clients["p2"])
}

func TestLeaveDeletesEmptyRoom(t *testing.T) {
	reg := newTestRegistry()
	host := newTestClient(reg, ModeHalli, "p1", "")
	room := createRoom(t, reg, host, 4)

	reg.handleIntent(host, ClientMessage{Type: "leaveRoom"})

	assert.Empty(t, host.roomCode)
	assert.NotContains(t, reg.rooms, room.code)
}

func TestLeaveReassignsHost(t *testing.T) {
	reg := newTestRegistry()
	host := newTestClient(reg, ModeHalli, "p1", "Alice")
	room := createRoom(t, reg, host, 4)

	guest := newTestClient(reg, ModeHalli, "p2", "Bob")
	joinRoom(t, reg, guest, room.code)
	drain(guest)

	reg.handleIntent(host, ClientMessage{Type: "leaveRoom"})

	assert.Equal(t, "p2", room.hostID)

	states := received[RoomStateMessage](guest)
	require.NotEmpty(t, states)
	last := states[len(states)-1]
	assert.Equal(t, "hostChanged", last.Type)
	assert.Equal(t, "p2", last.HostID)
}

func TestLeaveAnnouncesDeparture(t *testing.T) {
	reg := newTestRegistry()
	host := newTestClient(reg, ModeHalli, "p1", "Alice")
	room := createRoom(t, reg, host, 4)

	guest := newTestClient(reg, ModeHalli, "p2", "Bob")
	joinRoom(t, reg, guest, room.code)
	drain(host)

	reg.handleIntent(guest, ClientMessage{Type: "leaveRoom"})

	left := received[PlayerLeftMessage](host)
	require.Len(t, left, 1)
	assert.Equal(t, "p2", left[0].ID)
	assert.Equal(t, "Bob", left[0].Nickname)
	assert.Len(t, left[0].Players, 1)
}

func TestSetNicknameUpdatesRoster(t *testing.T) {
	reg := newTestRegistry()
	host := newTestClient(reg, ModeHalli, "p1", "Chef-001")
	room := createRoom(t, reg, host, 4)
	drain(host)

	reg.handleIntent(host, ClientMessage{Type: "setNickname", Nickname: "Alice"})

	assert.Equal(t, "Alice", room.players[0].Nickname)

	states := received[RoomStateMessage](host)
	require.NotEmpty(t, states)
	assert.Equal(t, "Alice", states[len(states)-1].Players[0].Nickname)
}

func TestNewRoomCodeFormat(t *testing.T) {
	reg := newTestRegistry()

	for i := 0; i < 32; i++ {
		code, err := reg.newRoomCode()
		require.NoError(t, err)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1000)
		assert.LessOrEqual(t, n, 9999)
	}
}

func TestRegistryLoopAndLookup(t *testing.T) {
	reg := newTestRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	go reg.run(ctx)

	c := &Client{send: make(chan any, 64), playerID: "p1", mode: ModeHalli, nickname: "Alice"}
	reg.joins <- c
	reg.intents <- intent{client: c, msg: ClientMessage{Type: "createRoom"}}

	var created RoomStateMessage
	select {
	case msg := <-c.send:
		var ok bool
		created, ok = msg.(RoomStateMessage)
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("no roomCreated reply")
	}

	info := reg.lookupRoom(created.RoomID)
	assert.True(t, info.ok)
	assert.Equal(t, ModeHalli, info.mode)
	assert.False(t, reg.lookupRoom("0000").ok)

	cancel()
	select {
	case <-reg.done:
	case <-time.After(time.Second):
		t.Fatal("registry loop did not stop")
	}

	// lookups after shutdown fail instead of hanging
	assert.False(t, reg.lookupRoom(created.RoomID).ok)
}

func TestReapIdleRooms(t *testing.T) {
	reg := newTestRegistry()
	host := newTestClient(reg, ModeHalli, "p1", "")
	room := createRoom(t, reg, host, 4)

	fresh := newTestClient(reg, ModeHalli, "p2", "")
	createRoom(t, reg, fresh, 4)

	room.lastActive = time.Now().Add(-2 * reg.cfg.sessionTimeout)
	reg.reapIdleRooms()

	assert.NotContains(t, reg.rooms, room.code)
	assert.NotContains(t, reg.clients, host)
	assert.Len(t, reg.rooms, 1)
	assert.Contains(t, reg.clients, fresh)

	// the reaped client's outbound channel is closed
	for {
		if _, open := <-host.send; !open {
			break
		}
	}
}
