package sim

import (
	"github.com/brensch/snekarena/game"
)

// Command is a request for the simulation goroutine. Commands that fail
// validation are dropped without an event.
type Command interface {
	command()
}

// Entrant is a player taking part in a round.
type Entrant struct {
	Name string
	Bot  *game.BotProfile
}

// StartRound places up to game.MaxSlots entrants and starts the countdown.
// Ignored while a round is counting down or running.
type StartRound struct {
	Players []Entrant
}

// SetDirection queues a turn for a registered, live snake.
type SetDirection struct {
	Player    string
	Direction game.Direction
}

// SetDuration changes the round length between rounds.
type SetDuration struct {
	Seconds int
}

// TogglePause flips the pause flag. Ignored during the countdown.
type TogglePause struct {
	Player string
}

type BackToLobby struct{}

// RemovePlayer drops a disconnected player's snake. A round with one or
// no snakes left returns to the lobby.
type RemovePlayer struct {
	Player string
}

// Query asks for a snapshot. Reply must be buffered.
type Query struct {
	Reply chan<- Snapshot
}

func (StartRound) command()   {}
func (SetDirection) command() {}
func (SetDuration) command()  {}
func (TogglePause) command()  {}
func (BackToLobby) command()  {}
func (RemovePlayer) command() {}
func (Query) command()        {}
