package sim

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/rules"
)

func (s *Simulation) startRound(players []Entrant) {
	if s.phase == PhaseCountdown || s.phase == PhaseRunning {
		return
	}
	if len(players) == 0 {
		return
	}

	s.teardown()
	s.pool.Reset()
	s.roundID = uuid.NewString()
	s.timeRemaining = s.duration
	s.paused = false
	s.pausedBy = ""

	slots := game.StartingSlots(s.cfg.Board)
	s.snakes = s.snakes[:0]
	for _, p := range players {
		if len(s.snakes) == len(slots) {
			s.logger.Warn("no starting slot left", "player", p.Name)
			break
		}
		if s.snake(p.Name) != nil {
			continue
		}
		sn := game.NewSnake(p.Name, slots[len(s.snakes)])
		if p.Bot != nil {
			bot := *p.Bot
			sn.Bot = &bot
		}
		s.snakes = append(s.snakes, sn)
	}

	s.phase = PhaseCountdown
	s.countdown = s.cfg.Countdown
	s.logger.Info("round starting", "round", s.roundID, "players", len(s.snakes), "duration", s.duration)
	s.publish(EventStartGame, s.snapshot())

	if s.countdown <= 0 {
		s.beginRunning()
		return
	}
	s.publish(EventCountdown, strconv.Itoa(s.countdown))
	s.countdownTicker = s.clock.NewTicker(time.Second)
}

func (s *Simulation) countdownTick() {
	if s.phase != PhaseCountdown {
		stopTicker(&s.countdownTicker)
		return
	}
	s.countdown--
	if s.countdown > 0 {
		s.publish(EventCountdown, strconv.Itoa(s.countdown))
		return
	}
	stopTicker(&s.countdownTicker)
	s.beginRunning()
}

func (s *Simulation) beginRunning() {
	s.publish(EventCountdown, "start")
	s.phase = PhaseRunning
	now := s.clock.Now()
	s.lastUpdate = now
	s.lastPoll = now
	s.pollTicker = s.clock.NewTicker(s.cfg.PollInterval)
	s.secondTicker = s.clock.NewTicker(time.Second)
	s.logger.Info("round running", "round", s.roundID)
}

// poll is the fine-grained check. It runs one step once half a move
// interval of unpaused time has passed. Paused time is tracked and added
// to the baseline on resume.
func (s *Simulation) poll(now time.Time) {
	dt := now.Sub(s.lastPoll)
	s.lastPoll = now
	if s.phase != PhaseRunning {
		return
	}
	if s.paused {
		s.pauseDuration += dt
		return
	}
	if s.pauseDuration > 0 {
		s.lastUpdate = s.lastUpdate.Add(s.pauseDuration)
		s.pauseDuration = 0
	}

	for _, sn := range s.snakes {
		if sn.Alive && sn.TickBuff(dt) {
			s.logger.Debug("buff expired", "player", sn.Name, "speed", sn.SpeedMultiplier)
		}
	}

	if now.Sub(s.lastUpdate) >= s.moveInterval/2 {
		s.step(s.iteration%2 == 1)
		s.lastUpdate = now
		s.iteration++
	}
}

// step is one sub-tick. On boost-only sub-ticks only snakes faster than
// normal move. Bots decide, every eligible snake moves, then collisions
// are resolved against the post-move board.
func (s *Simulation) step(boostOnly bool) {
	if s.observer != nil {
		s.observer.StartTick()
		defer s.observer.EndTick()
	}
	eligible := func(sn *game.Snake) bool {
		return sn.Alive && (!boostOnly || sn.Boosted())
	}

	s.phaseMark("ai")
	s.engine.Step(s.snakes, s.pool.Resources(), func(sn *game.Snake) bool {
		return eligible(sn) && sn.WillMove()
	})

	s.phaseMark("move")
	moved := make([]bool, len(s.snakes))
	for i, sn := range s.snakes {
		if eligible(sn) {
			moved[i] = sn.Advance()
		}
	}

	s.phaseMark("collide")
	events := rules.Resolve(s.cfg.Board, s.snakes, moved, s.pool)

	s.phaseMark("publish")
	s.publish(EventGameState, s.snapshot())
	if len(events) > 0 {
		for _, e := range events {
			if e.Lethal() {
				s.logger.Info("snake died", "player", e.PlayerName, "reason", e.Outcome.Type)
			}
		}
		s.publish(EventCollisions, Collisions(events))
	}

	if rules.AliveCount(s.snakes) == 0 {
		s.endRound()
	}
}

func (s *Simulation) phaseMark(name string) {
	if s.observer != nil {
		s.observer.StartPhase(name)
	}
}

// second is the one-second round timer.
func (s *Simulation) second() {
	if s.phase != PhaseRunning || s.paused {
		return
	}
	s.timeRemaining--

	if quarter := s.duration / 4; quarter > 0 && s.timeRemaining > 0 && s.timeRemaining%quarter == 0 {
		s.moveInterval = shrink(s.moveInterval, s.cfg.SpeedupFactor)
		s.logger.Debug("move interval shortened", "interval", s.moveInterval)
	}

	if s.pool.BatchTimer <= 0 {
		s.spawnBatch()
	}
	s.pool.BatchTimer--

	if s.timeRemaining > 0 {
		s.publish(EventTimer, s.timeRemaining)
		return
	}
	s.endRound()
}

func (s *Simulation) spawnBatch() {
	count := s.cfg.BaseBatch + s.cfg.PerPlayerBatch*rules.AliveCount(s.snakes)
	added := s.pool.SpawnBatch(count, s.snakes)
	s.pool.BatchTimer = s.cfg.BatchInterval
	s.logger.Info("resource batch", "requested", count, "added", len(added), "total", s.pool.Len())
	s.publish(EventBatchAdded, BatchAdded{
		Added:       len(added),
		NewTotal:    s.pool.Len(),
		NextBatchIn: s.pool.BatchTimer,
	})
}

// shrink divides d by factor, rounded to the millisecond.
func shrink(d time.Duration, factor float64) time.Duration {
	ms := math.Round(float64(d.Milliseconds()) / factor)
	return time.Duration(ms) * time.Millisecond
}

func (s *Simulation) endRound() {
	if s.phase == PhaseEnded {
		return
	}
	s.teardown()
	s.phase = PhaseEnded

	scores := FinalScores(s.snakes)
	over := GameOver{Scores: scores}
	if len(scores) > 0 {
		winner := scores[0]
		over.Winner = &winner
	}
	s.logger.Info("round over", "round", s.roundID, "scores", scores)
	s.publish(EventGameOver, over)

	if f, ok := s.recorder.(RoundFlusher); ok {
		f.FlushRound(s.roundID)
	}
}

// FinalScores orders snakes by score, highest first. Ties keep join order.
func FinalScores(snakes []*game.Snake) []Score {
	scores := make([]Score, 0, len(snakes))
	for _, sn := range snakes {
		scores = append(scores, Score{Name: sn.Name, Score: sn.Score})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores
}

// teardown stops every timer before any round state is reset. Safe to call
// when nothing is running. The round timer keeps its value so a finished
// round still reports where it stopped.
func (s *Simulation) teardown() {
	stopTicker(&s.pollTicker)
	stopTicker(&s.secondTicker)
	stopTicker(&s.countdownTicker)

	for _, sn := range s.snakes {
		sn.ClearBuff()
	}
	s.iteration = 0
	s.pauseDuration = 0
	s.paused = false
	s.moveInterval = s.cfg.MoveInterval
}
