// Package sim runs the authoritative arena. A Simulation owns every snake,
// the resource pool and the round clock, and mutates them only from the
// goroutine that calls Run. Everything else talks to it through Submit.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"time"

	"github.com/brensch/snekarena/ai"
	"github.com/brensch/snekarena/game"
)

var ErrStopped = errors.New("simulation stopped")

// Phase is the round lifecycle state.
type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseCountdown Phase = "countdown"
	PhaseRunning   Phase = "running"
	PhaseEnded     Phase = "ended"
)

type Config struct {
	Board            game.Board
	DefaultDuration  int   // seconds
	AllowedDurations []int // seconds
	MoveInterval     time.Duration
	SpeedupFactor    float64
	PollInterval     time.Duration
	Countdown        int

	FirstBatchDelay int
	BatchInterval   int
	BaseBatch       int
	PerPlayerBatch  int
	Resources       []game.ResourceSpec

	AI ai.Config
}

func DefaultConfig() Config {
	return Config{
		Board:            game.Board{Width: 32, Height: 26},
		DefaultDuration:  60,
		AllowedDurations: []int{60, 120, 180},
		MoveInterval:     200 * time.Millisecond,
		SpeedupFactor:    1.2,
		PollInterval:     10 * time.Millisecond,
		Countdown:        3,
		FirstBatchDelay:  1,
		BatchInterval:    30,
		BaseBatch:        30,
		PerPlayerBatch:   20,
		Resources:        game.DefaultResourceSpecs,
		AI:               ai.DefaultConfig(),
	}
}

// Observer receives per-tick phase timings.
type Observer interface {
	StartTick()
	StartPhase(name string)
	EndTick()
}

// DecisionRecorder receives every bot decision.
type DecisionRecorder interface {
	RecordDecision(roundID string, tick uint64, d ai.Decision)
}

// RoundFlusher is implemented by recorders that want to know when a round
// is over.
type RoundFlusher interface {
	FlushRound(roundID string)
}

type Option func(*Simulation)

func WithPublisher(p Publisher) Option       { return func(s *Simulation) { s.pub = p } }
func WithClock(c Clock) Option               { return func(s *Simulation) { s.clock = c } }
func WithLogger(l *slog.Logger) Option       { return func(s *Simulation) { s.logger = l } }
func WithRand(r *rand.Rand) Option           { return func(s *Simulation) { s.rng = r } }
func WithObserver(o Observer) Option         { return func(s *Simulation) { s.observer = o } }
func WithRecorder(r DecisionRecorder) Option { return func(s *Simulation) { s.recorder = r } }

type Simulation struct {
	cfg      Config
	pub      Publisher
	clock    Clock
	logger   *slog.Logger
	rng      *rand.Rand
	observer Observer
	recorder DecisionRecorder

	engine *ai.Engine
	pool   *game.Pool

	inbox chan Command
	done  chan struct{}

	phase    Phase
	roundID  string
	snakes   []*game.Snake
	paused   bool
	pausedBy string

	duration      int
	timeRemaining int
	moveInterval  time.Duration
	iteration     uint64
	countdown     int

	lastUpdate    time.Time
	lastPoll      time.Time
	pauseDuration time.Duration

	pollTicker      Ticker
	secondTicker    Ticker
	countdownTicker Ticker
}

func New(cfg Config, opts ...Option) *Simulation {
	s := &Simulation{
		cfg:   cfg,
		inbox: make(chan Command, 256),
		done:  make(chan struct{}),
		phase: PhaseLobby,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pub == nil {
		s.pub = nopPublisher{}
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.cfg.DefaultDuration <= 0 {
		s.cfg.DefaultDuration = 60
	}
	if s.cfg.SpeedupFactor <= 0 {
		s.cfg.SpeedupFactor = 1.2
	}
	if s.cfg.PollInterval <= 0 {
		s.cfg.PollInterval = 10 * time.Millisecond
	}

	s.engine = ai.NewEngine(cfg.Board, cfg.AI, s.rng, s.logger.With("component", "ai"))
	if s.recorder != nil {
		s.engine.OnDecision = func(d ai.Decision) {
			s.recorder.RecordDecision(s.roundID, s.iteration, d)
		}
	}
	s.pool = game.NewPool(cfg.Board, cfg.Resources, s.rng, cfg.FirstBatchDelay)
	s.duration = s.cfg.DefaultDuration
	s.timeRemaining = s.duration
	s.moveInterval = cfg.MoveInterval
	return s
}

// Run owns the simulation until ctx is cancelled. It tears the round down
// before returning.
func (s *Simulation) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.teardown()

	s.logger.Info("simulation started", "board", fmt.Sprintf("%dx%d", s.cfg.Board.Width, s.cfg.Board.Height))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulation stopping", "reason", ctx.Err())
			return nil
		case cmd := <-s.inbox:
			s.handle(cmd)
		case <-tickerChan(s.pollTicker):
			s.poll(s.clock.Now())
		case <-tickerChan(s.secondTicker):
			s.second()
		case <-tickerChan(s.countdownTicker):
			s.countdownTick()
		}
	}
}

// Submit queues cmd for the simulation goroutine.
func (s *Simulation) Submit(ctx context.Context, cmd Command) error {
	select {
	case <-s.done:
		return ErrStopped
	default:
	}
	select {
	case s.inbox <- cmd:
		return nil
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot asks the simulation goroutine for the current state.
func (s *Simulation) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := s.Submit(ctx, Query{Reply: reply}); err != nil {
		return Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-s.done:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (s *Simulation) handle(cmd Command) {
	switch c := cmd.(type) {
	case StartRound:
		s.startRound(c.Players)
	case SetDirection:
		s.setDirection(c.Player, c.Direction)
	case SetDuration:
		s.setDuration(c.Seconds)
	case TogglePause:
		s.togglePause(c.Player)
	case BackToLobby:
		s.backToLobby()
	case RemovePlayer:
		s.removePlayer(c.Player)
	case Query:
		c.Reply <- s.snapshot()
	default:
		s.logger.Warn("unknown command", "type", fmt.Sprintf("%T", cmd))
	}
}

func (s *Simulation) publish(t EventType, payload any) {
	s.pub.Publish(Event{Type: t, RoundID: s.roundID, Payload: payload})
}

func (s *Simulation) snake(name string) *game.Snake {
	for _, sn := range s.snakes {
		if sn.Name == name {
			return sn
		}
	}
	return nil
}

func (s *Simulation) setDirection(player string, d game.Direction) {
	if s.phase != PhaseRunning && s.phase != PhaseCountdown {
		return
	}
	if s.paused {
		return
	}
	sn := s.snake(player)
	if sn == nil || !sn.Alive {
		return
	}
	sn.SetDirection(d)
}

func (s *Simulation) setDuration(seconds int) {
	if s.phase != PhaseLobby {
		return
	}
	if !slices.Contains(s.cfg.AllowedDurations, seconds) || seconds == s.duration {
		return
	}
	s.duration = seconds
	s.timeRemaining = seconds
	s.logger.Info("round duration changed", "seconds", seconds)
	s.publish(EventGameDuration, seconds)
}

func (s *Simulation) togglePause(player string) {
	if s.phase != PhaseRunning {
		return
	}
	if s.snake(player) == nil {
		return
	}
	s.paused = !s.paused
	s.pausedBy = player
	s.logger.Info("pause toggled", "paused", s.paused, "by", player)
	s.publish(EventPauseChanged, PauseChanged{IsPaused: s.paused, PausedBy: player})
}

func (s *Simulation) backToLobby() {
	s.teardown()
	s.phase = PhaseLobby
	s.timeRemaining = s.duration
	s.logger.Info("back to lobby", "round", s.roundID)
	s.publish(EventBackToLobby, s.snapshot())
}

func (s *Simulation) removePlayer(player string) {
	idx := slices.IndexFunc(s.snakes, func(sn *game.Snake) bool { return sn.Name == player })
	if idx < 0 {
		return
	}
	s.snakes = slices.Delete(s.snakes, idx, idx+1)
	s.logger.Info("player removed", "player", player, "remaining", len(s.snakes))
	s.publish(EventPlayerRemoved, PlayerRemoved{PlayerName: player})

	if s.phase != PhaseLobby && len(s.snakes) <= 1 {
		s.backToLobby()
	}
}

func (s *Simulation) snapshot() Snapshot {
	snap := Snapshot{
		Phase:     s.phase,
		Paused:    s.paused,
		Started:   s.phase != PhaseLobby,
		Timer:     s.timeRemaining,
		Duration:  s.duration,
		GameSpeed: s.moveInterval.Milliseconds(),
		Board:     s.cfg.Board,
		Resources: s.pool.Resources(),
		Players:   make([]PlayerSnapshot, 0, len(s.snakes)),
	}
	for _, sn := range s.snakes {
		snap.Players = append(snap.Players, PlayerSnapshot{
			Name:            sn.Name,
			Score:           sn.Score,
			SpeedMultiplier: sn.SpeedMultiplier,
			IsAlive:         sn.Alive,
			Bot:             sn.Bot,
			Snake: SnakeSnapshot{
				Direction:             sn.Direction,
				PredictedPosition:     sn.Predicted.Clone(),
				LastConfirmedPosition: sn.Confirmed.Clone(),
			},
		})
	}
	return snap
}
