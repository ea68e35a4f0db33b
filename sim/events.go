package sim

import (
	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/rules"
)

type EventType string

const (
	EventGameState     EventType = "gameStateUpdate"
	EventCollisions    EventType = "collisions"
	EventBatchAdded    EventType = "resourceBatchAdded"
	EventTimer         EventType = "timerUpdate"
	EventGameOver      EventType = "gameOver"
	EventCountdown     EventType = "countdown"
	EventPauseChanged  EventType = "gamePauseStateChanged"
	EventGameDuration  EventType = "gameDuration"
	EventBackToLobby   EventType = "backToLobby"
	EventStartGame     EventType = "startGame"
	EventPlayerRemoved EventType = "playerQuit"
)

// Event is one message for the broadcast boundary. Payload is one of the
// payload types below, an int for timer and duration events, or a string
// for countdown events.
type Event struct {
	Type    EventType `json:"type"`
	RoundID string    `json:"roundId,omitempty"`
	Payload any       `json:"payload"`
}

// Publisher receives events from the simulation goroutine. Publish must not
// block; slow consumers drop.
type Publisher interface {
	Publish(Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(e Event) { f(e) }

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

// Snapshot is the full per-tick state.
type Snapshot struct {
	Phase     Phase            `json:"phase"`
	Paused    bool             `json:"isPaused"`
	Started   bool             `json:"isStarted"`
	Timer     int              `json:"timer"`
	Duration  int              `json:"duration"`
	GameSpeed int64            `json:"gameSpeed"` // move interval in ms
	Board     game.Board       `json:"board"`
	Resources []game.Resource  `json:"resources"`
	Players   []PlayerSnapshot `json:"players"`
}

type PlayerSnapshot struct {
	Name            string           `json:"name"`
	Score           int              `json:"score"`
	SpeedMultiplier float64          `json:"speedMultiplier"`
	IsAlive         bool             `json:"isAlive"`
	Bot             *game.BotProfile `json:"bot,omitempty"`
	Snake           SnakeSnapshot    `json:"snake"`
}

type SnakeSnapshot struct {
	Direction             game.Direction `json:"direction"`
	PredictedPosition     game.Position  `json:"predictedPosition"`
	LastConfirmedPosition game.Position  `json:"lastConfirmedPosition"`
}

type BatchAdded struct {
	Added       int `json:"added"`
	NewTotal    int `json:"newTotal"`
	NextBatchIn int `json:"nextBatchIn"`
}

type Score struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type GameOver struct {
	Scores []Score `json:"scores"`
	Winner *Score  `json:"winner,omitempty"`
}

type PauseChanged struct {
	IsPaused bool   `json:"isPaused"`
	PausedBy string `json:"pausedBy"`
}

type PlayerRemoved struct {
	PlayerName string `json:"playerName"`
}

// Collisions is the payload of a collisions event.
type Collisions []rules.CollisionEvent
