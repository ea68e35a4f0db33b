// Package ai steers computer controlled snakes. Each tick a bot picks a
// target through its behavior's Strategy, then resolves a direction by
// direct approach, A* fallback or a random safe move, in that order.
package ai

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"time"

	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/pathfind"
	"github.com/brensch/snekarena/rules"
)

var (
	ErrNotBot        = errors.New("snake is not bot controlled")
	ErrDecisionPanic = errors.New("bot decision panicked")
)

// Config tunes bot difficulty.
type Config struct {
	// Proximity is the Manhattan distance at which aggressive bots switch
	// to chasing a head. Hard ignores it.
	Proximity map[game.Tier]int
	// Hesitation is the chance a bot keeps its heading without thinking.
	Hesitation        map[game.Tier]float64
	DisableHesitation bool
	MaxIterations     int
}

func DefaultConfig() Config {
	return Config{
		Proximity:     map[game.Tier]int{game.Easy: 3, game.Medium: 5},
		Hesitation:    map[game.Tier]float64{game.Easy: 0.10, game.Medium: 0.05, game.Hard: 0},
		MaxIterations: pathfind.DefaultMaxIterations,
	}
}

// Method records how a direction was chosen.
type Method string

const (
	MethodDirect   Method = "direct"
	MethodPath     Method = "path"
	MethodRandom   Method = "random"
	MethodKeep     Method = "keep"
	MethodHesitate Method = "hesitate"
)

type Decision struct {
	Bot        string
	Profile    game.BotProfile
	Direction  game.Direction
	Method     Method
	Target     game.Point
	HasTarget  bool
	PathLen    int
	Iterations int
	Elapsed    time.Duration
}

type Engine struct {
	board      game.Board
	cfg        Config
	rng        *rand.Rand
	planner    *pathfind.Planner
	strategies map[game.Behavior]Strategy
	logger     *slog.Logger

	// OnDecision, when set, observes every successful decision.
	OnDecision func(Decision)
}

func NewEngine(board game.Board, cfg Config, rng *rand.Rand, logger *slog.Logger) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = slog.Default()
	}
	strategies := make(map[game.Behavior]Strategy, 3)
	for _, b := range []game.Behavior{game.SafeEfficient, game.Aggressive, game.BoldFast} {
		strategies[b] = StrategyFor(b, cfg)
	}
	return &Engine{
		board:      board,
		cfg:        cfg,
		rng:        rng,
		planner:    pathfind.NewPlanner(board, cfg.MaxIterations),
		strategies: strategies,
		logger:     logger,
	}
}

// Step decides for every live bot that eligible accepts and queues the
// chosen direction. Cells claimed by earlier bots are unsafe for later
// ones. A failing bot is logged and keeps its heading.
func (e *Engine) Step(snakes []*game.Snake, resources []game.Resource, eligible func(*game.Snake) bool) []Decision {
	reserved := pathfind.Obstacles{}
	var out []Decision

	for _, s := range snakes {
		if s.Bot == nil || !s.Alive {
			continue
		}
		if eligible != nil && !eligible(s) {
			continue
		}

		v := &View{
			Board:     e.board,
			Me:        s,
			Tier:      s.Bot.Tier,
			Snakes:    snakes,
			Resources: resources,
		}
		d, err := e.Decide(v, reserved)
		if err != nil {
			e.logger.Warn("bot decision failed", "bot", s.Name, "err", err)
			reserved.Add(s.Head().Add(s.NextDirection.Delta()))
			continue
		}

		s.SetDirection(d.Direction)
		reserved.Add(s.Head().Add(s.NextDirection.Delta()))
		out = append(out, d)
		if e.OnDecision != nil {
			e.OnDecision(d)
		}
	}
	return out
}

// Decide computes one bot's direction without mutating the snake. A panic
// inside the decision is returned as ErrDecisionPanic.
func (e *Engine) Decide(v *View, reserved pathfind.Obstacles) (d Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			d = Decision{}
			err = fmt.Errorf("%w: %v", ErrDecisionPanic, r)
		}
	}()
	if v == nil || v.Me == nil || v.Me.Bot == nil {
		return Decision{}, ErrNotBot
	}

	start := time.Now()
	me := v.Me
	d = Decision{
		Bot:       me.Name,
		Profile:   *me.Bot,
		Direction: me.NextDirection,
		Method:    MethodKeep,
	}
	defer func() { d.Elapsed = time.Since(start) }()

	if !e.cfg.DisableHesitation && e.rng.Float64() < e.cfg.Hesitation[v.Tier] {
		d.Method = MethodHesitate
		return d, nil
	}

	strategy, ok := e.strategies[me.Bot.Behavior]
	if !ok {
		strategy = safeEfficient{}
	}

	target, ok := strategy.SelectTarget(v)
	if !ok || target == me.Head() {
		e.survive(v, reserved, &d)
		return d, nil
	}
	d.Target, d.HasTarget = target, true

	if dir, ok := e.directApproach(v, reserved, target); ok {
		d.Direction, d.Method = dir, MethodDirect
		return d, nil
	}

	obstacles := e.obstacles(v, strategy.Avoidance(v.Tier), reserved)
	path := e.planner.FindPath(me.Head(), target, obstacles)
	d.Iterations = e.planner.Iterations
	d.PathLen = len(path)
	if len(path) >= 2 {
		if dir, ok := game.DirectionBetween(me.Head(), path[1]); ok && e.safe(v, reserved, dir) {
			d.Direction, d.Method = dir, MethodPath
			return d, nil
		}
	}

	e.randomSafe(v, reserved, &d)
	return d, nil
}

// directApproach moves along the axis with the larger delta, then the
// other one. Equal deltas try the vertical axis first.
func (e *Engine) directApproach(v *View, reserved pathfind.Obstacles, target game.Point) (game.Direction, bool) {
	head := v.Me.Head()
	dx, dy := target.X-head.X, target.Y-head.Y

	var horiz, vert []game.Direction
	switch {
	case dx > 0:
		horiz = []game.Direction{game.Right}
	case dx < 0:
		horiz = []game.Direction{game.Left}
	}
	switch {
	case dy > 0:
		vert = []game.Direction{game.Up}
	case dy < 0:
		vert = []game.Direction{game.Down}
	}

	order := append(vert, horiz...)
	if abs(dx) > abs(dy) {
		order = append(horiz, vert...)
	}
	for _, dir := range order {
		if e.safe(v, reserved, dir) {
			return dir, true
		}
	}
	return 0, false
}

// survive keeps the heading when it is safe, otherwise turns randomly.
func (e *Engine) survive(v *View, reserved pathfind.Obstacles, d *Decision) {
	if e.safe(v, reserved, v.Me.NextDirection) {
		d.Direction, d.Method = v.Me.NextDirection, MethodKeep
		return
	}
	e.randomSafe(v, reserved, d)
}

func (e *Engine) randomSafe(v *View, reserved pathfind.Obstacles, d *Decision) {
	head := v.Me.Head()
	safe := slices.DeleteFunc(rules.LegalMoves(v.Board, v.Snakes, v.Me), func(dir game.Direction) bool {
		return reserved.Has(head.Add(dir.Delta()))
	})
	if len(safe) == 0 {
		d.Direction, d.Method = v.Me.NextDirection, MethodKeep
		return
	}
	d.Direction, d.Method = safe[e.rng.Intn(len(safe))], MethodRandom
}

func (e *Engine) safe(v *View, reserved pathfind.Obstacles, dir game.Direction) bool {
	if !rules.SafeStep(v.Board, v.Snakes, v.Me, dir) {
		return false
	}
	return !reserved.Has(v.Me.Head().Add(dir.Delta()))
}

func (e *Engine) obstacles(v *View, a Avoidance, reserved pathfind.Obstacles) pathfind.Obstacles {
	obs := make(pathfind.Obstacles, len(reserved)+32)
	for p := range reserved {
		obs.Add(p)
	}
	if a.Has(OwnBody) {
		for _, p := range v.Me.Predicted.Body {
			obs.Add(p)
		}
	}
	for _, s := range v.Snakes {
		if s == v.Me || !s.Alive {
			continue
		}
		if a.Has(SnakeBodies) {
			for _, p := range s.Predicted.Body {
				obs.Add(p)
			}
		}
		if a.Has(SnakeHeads) {
			obs.Add(s.Predicted.Head)
		}
	}
	if a.Has(TeleportResources) || a.Has(SlowdownResources) {
		for _, r := range v.Resources {
			if (r.Type == game.Teleport && a.Has(TeleportResources)) ||
				(r.Type == game.Slowdown && a.Has(SlowdownResources)) {
				obs.Add(r.Point())
			}
		}
	}
	return obs
}

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
