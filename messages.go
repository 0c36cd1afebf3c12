package main

// Messages coming from clients. A single envelope carries every intent;
// unused fields are simply omitted by the sender.
type ClientMessage struct {
	Type       string       `json:"type"`                    // "setNickname", "createRoom", "joinRoom", "toggleReady", "startGameRequest", "requestNextRecipe", "flipCard", "ringBell", "syncMySkewer", "updateProgress", "submit", "leaveRoom"
	Nickname   string       `json:"nickname,omitempty"`      // setNickname / createRoom / joinRoom
	RoomID     string       `json:"roomId,omitempty"`        // joinRoom
	MaxPlayers int          `json:"maxPlayers,omitempty"`    // createRoom
	Skewer     []Ingredient `json:"skewer,omitempty"`        // syncMySkewer
	Completed  []Skewer     `json:"completedList,omitempty"` // updateProgress
	Count      int          `json:"count,omitempty"`         // updateProgress
	Submission []Skewer     `json:"submission,omitempty"`    // submit
}

// PlayerSnapshot is the public view of one seat, included in every
// roster-bearing broadcast so clients can reconcile from any message.
type PlayerSnapshot struct {
	ID         string `json:"id"`
	Nickname   string `json:"nickname"`
	IsReady    bool   `json:"isReady"`
	Eliminated bool   `json:"eliminated,omitempty"`
	Cards      int    `json:"cards"`                // remaining deck size
	OpenCard   *Card  `json:"openCard,omitempty"`   // currently face-up card
	Score      int    `json:"score"`
	Progress   int    `json:"currentProgress"`
}

// RoomStateMessage is the shared shape of roomCreated, playerJoined,
// readyStatusUpdated, and hostChanged broadcasts.
type RoomStateMessage struct {
	Type    string           `json:"type"`
	RoomID  string           `json:"roomId"`
	Players []PlayerSnapshot `json:"players"`
	HostID  string           `json:"hostId"`
	Max     int              `json:"max"`
}

// PlayerLeftMessage announces a departure along with the updated roster.
type PlayerLeftMessage struct {
	Type     string           `json:"type"` // "playerLeft"
	ID       string           `json:"id"`
	Nickname string           `json:"nickname"`
	Players  []PlayerSnapshot `json:"players"`
	HostID   string           `json:"hostId"`
	Max      int              `json:"max"`
}

// ErrorMessage is sent to a single client when a request is rejected.
type ErrorMessage struct {
	Type    string `json:"type"` // "joinRoomError", "startBlocked", "error"
	Message string `json:"message"`
}

// GameStartMessage begins a match in either mode. Recipes is populated for
// skewer rooms, FirstTurnID for card rooms.
type GameStartMessage struct {
	Type        string           `json:"type"` // "gameStart"
	RoomID      string           `json:"roomId"`
	Players     []PlayerSnapshot `json:"players"`
	HostID      string           `json:"hostId"`
	Recipes     []Skewer         `json:"recipes,omitempty"`
	FirstTurnID string           `json:"firstTurnId,omitempty"`
}

// CardFlippedMessage is broadcast immediately on a flip, before turn
// resolution, so clients can start the reveal animation.
type CardFlippedMessage struct {
	Type           string `json:"type"` // "cardFlipped"
	PlayerID       string `json:"playerId"`
	Card           Card   `json:"card"`
	RemainingCount int    `json:"remainingCount"`
}

// TurnChangedMessage announces whose turn it is after resolution.
type TurnChangedMessage struct {
	Type       string `json:"type"` // "turnChanged"
	NextTurnID string `json:"nextTurnId"`
}

// BellResultMessage reports the outcome of a ringBell attempt.
type BellResultMessage struct {
	Type           string           `json:"type"` // "bellResult"
	Success        bool             `json:"success"`
	WinnerID       string           `json:"winnerId,omitempty"`
	WinnerNickname string           `json:"winnerNickname,omitempty"`
	PenaltyID      string           `json:"penaltyId,omitempty"`
	Players        []PlayerSnapshot `json:"players"`
	Message        string           `json:"message,omitempty"`
}

// GameEndedMessage carries the final ranking, best score first.
type GameEndedMessage struct {
	Type       string           `json:"type"` // "gameEnded"
	Ranking    []PlayerSnapshot `json:"ranking"`
	WinnerName string           `json:"winnerName"`
	HostID     string           `json:"hostId"`
}

// ScoresMessage is the skewer game's frequent roster refresh.
type ScoresMessage struct {
	Type    string           `json:"type"` // "updateScores"
	Players []PlayerSnapshot `json:"players"`
}

// ResultMessage answers a skewer submission, to the submitter only.
type ResultMessage struct {
	Type    string `json:"type"` // "result"
	Success bool   `json:"success"`
}

// RecipeEndedMessage closes a skewer round with score-ordered standings.
type RecipeEndedMessage struct {
	Type    string           `json:"type"` // "recipeEnded"
	Players []PlayerSnapshot `json:"players"`
	HostID  string           `json:"hostId"`
}
