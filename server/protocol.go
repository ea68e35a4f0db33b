package server

import "github.com/brensch/snekarena/game"

// Client to server message types.
const (
	MsgRegister    = "register"
	MsgDirection   = "changeDirection"
	MsgTogglePause = "togglePause"
	MsgSetDuration = "setGameDuration"
	MsgStartGame   = "startGame"
	MsgAddBot      = "addBot"
	MsgRemoveBot   = "removeBot"
	MsgBackToLobby = "backToLobby"
)

// Server to client message types. Simulation events use their own type
// names.
const (
	MsgWelcome = "welcome"
	MsgLobby   = "lobbyUpdate"
	MsgError   = "error"
)

type RegisterPayload struct {
	Name string `json:"name"`
}

type DirectionPayload struct {
	Direction string `json:"direction"`
}

type DurationPayload struct {
	Seconds int `json:"seconds"`
}

// AddBotPayload carries a profile such as "hard(Aggressive)" or
// "easy safe".
type AddBotPayload struct {
	Profile string `json:"profile"`
}

type RemoveBotPayload struct {
	Name string `json:"name"`
}

type Welcome struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	IsHost   bool   `json:"isHost"`
}

type Member struct {
	ID     string           `json:"-"`
	Name   string           `json:"name"`
	Color  string           `json:"color"`
	IsHost bool             `json:"isHost"`
	Bot    *game.BotProfile `json:"bot,omitempty"`
}

type LobbyState struct {
	Players    []Member `json:"players"`
	MaxPlayers int      `json:"maxPlayers"`
	InRound    bool     `json:"inRound"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
