package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const playerCookieName = "skewerbox_id"

// Client is one live websocket connection: an opaque player identity, a
// nickname, and at most one room membership at a time. The mutable fields
// are owned by the registry loop once the client has been registered.
type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
	mode     GameMode
	nickname string
	roomCode string
}

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// placeholderNickname names players who never set one, matching the
// "Chef-NNN" placeholders the game clients show.
func placeholderNickname() string {
	return fmt.Sprintf("Chef-%03d", randomInt(1000))
}

func newUpgrader(cfg *Config) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(cfg.origins) == 0 {
				// same-origin only
				origin := r.Header.Get("Origin")
				return origin == "" || origin == cfg.scheme()+"://"+r.Host
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range cfg.origins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}
}

// serveWS upgrades the connection and hands it to the registry. The game
// mode is fixed by the route the socket was opened on.
func serveWS(cfg *Config, reg *Registry, mode GameMode) httprouter.Handle {
	upgrader := newUpgrader(cfg)

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		playerID := getOrSetPlayerID(w, r)
		if playerID == "" {
			http.Error(w, "unable to assign player id", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "WS: Upgrade error from %s: %v", realIP(r), err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 16),
			playerID: playerID,
			mode:     mode,
			nickname: placeholderNickname(),
		}

		reg.joins <- client

		go client.writePump()
		client.readPump(reg)
	}
}

func (c *Client) readPump(reg *Registry) {
	defer func() {
		reg.parts <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		reg.intents <- intent{client: c, msg: msg}
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
