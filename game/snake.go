package game

import "time"

// MaxSlots is the number of starting positions on a board.
const MaxSlots = 4

// GrowthThreshold is the number of plain pickups that add one segment.
const GrowthThreshold = 3

// Slot is a starting head position and facing.
type Slot struct {
	Head      Point
	Direction Direction
}

// StartingSlots returns the fixed starting table for a board, one slot per
// corner region, each facing away from its nearest wall.
func StartingSlots(b Board) [MaxSlots]Slot {
	return [MaxSlots]Slot{
		{Head: Point{X: 3, Y: 5}, Direction: Up},
		{Head: Point{X: b.Width - 3, Y: b.Height - 5}, Direction: Down},
		{Head: Point{X: b.Width - 5, Y: 3}, Direction: Left},
		{Head: Point{X: 5, Y: b.Height - 3}, Direction: Right},
	}
}

// Buff is an active speed effect. Remaining counts down in whole seconds of
// unpaused round time.
type Buff struct {
	Kind      ResourceType  `json:"kind,omitempty"`
	Remaining time.Duration `json:"remaining"`
	// Ending is set when a slowdown expires; the next real movement restores
	// normal speed so the current fractional step completes first.
	Ending bool `json:"ending,omitempty"`

	carry time.Duration
}

// Active reports whether a buff countdown is running.
func (b Buff) Active() bool {
	return b.Kind != 0 && b.Remaining > 0
}

type Snake struct {
	Name          string
	Direction     Direction
	NextDirection Direction

	// Confirmed is the last settled position, Predicted is one tick ahead.
	// Clients interpolate between the two.
	Confirmed Position
	Predicted Position

	SpeedMultiplier float64
	MoveCounter     int
	GrowthCounter   int
	Score           int
	Alive           bool
	Buff            Buff

	Bot *BotProfile
}

// NewSnake places a three cell snake at slot with its body trailing behind
// the head.
func NewSnake(name string, slot Slot) *Snake {
	back := slot.Direction.Opposite().Delta()
	pos := Position{
		Head: slot.Head,
		Body: []Point{
			slot.Head.Add(back),
			slot.Head.Add(back).Add(back),
		},
	}
	return &Snake{
		Name:            name,
		Direction:       slot.Direction,
		NextDirection:   slot.Direction,
		Confirmed:       pos.Clone(),
		Predicted:       pos,
		SpeedMultiplier: 1,
		Alive:           true,
	}
}

// Head is the current (predicted) head cell.
func (s *Snake) Head() Point {
	return s.Predicted.Head
}

// Occupies reports whether c is part of the snake's current position.
func (s *Snake) Occupies(c Point) bool {
	return s.Predicted.Occupies(c)
}

// Boosted reports whether the snake moves on boost-only sub-ticks.
func (s *Snake) Boosted() bool {
	return s.SpeedMultiplier > 1
}

// WillMove reports whether the next Advance call moves the snake. Slow
// snakes sit out the calls that only build up MoveCounter.
func (s *Snake) WillMove() bool {
	if !s.Alive {
		return false
	}
	return s.SpeedMultiplier >= 1 || float64(s.MoveCounter+1) >= 1/s.SpeedMultiplier
}

// SetDirection queues d for the next movement. A reversal of the committed
// direction is rejected and reported as false.
func (s *Snake) SetDirection(d Direction) bool {
	if d > Right || d == s.Direction.Opposite() {
		return false
	}
	s.NextDirection = d
	return true
}

// Advance runs the movement transition. It reports whether the snake moved.
//
// Slow snakes accumulate MoveCounter and only move once it reaches
// 1/SpeedMultiplier. A moving snake commits NextDirection, settles its
// predicted position into Confirmed and predicts one cell further.
func (s *Snake) Advance() bool {
	if !s.Alive {
		return false
	}
	if len(s.Predicted.Body) == 0 {
		panic("game: snake " + s.Name + " has no body")
	}

	if s.SpeedMultiplier < 1 {
		s.MoveCounter++
		if float64(s.MoveCounter) < 1/s.SpeedMultiplier {
			return false
		}
		if s.Buff.Ending {
			s.SpeedMultiplier = 1
			s.Buff = Buff{}
		}
	}
	s.MoveCounter = 0

	s.Direction = s.NextDirection
	s.Confirmed = s.Predicted.Clone()

	oldHead := s.Predicted.Head
	body := make([]Point, len(s.Predicted.Body))
	body[0] = oldHead
	copy(body[1:], s.Predicted.Body[:len(s.Predicted.Body)-1])

	s.Predicted = Position{
		Head: oldHead.Add(s.Direction.Delta()),
		Body: body,
	}
	return true
}

// Grow appends a tail segment extending the line of the last two segments.
func (s *Snake) Grow() {
	body := s.Predicted.Body
	n := len(body)
	var last, prev Point
	switch n {
	case 0:
		panic("game: snake " + s.Name + " has no body")
	case 1:
		last, prev = body[0], s.Predicted.Head
	default:
		last, prev = body[n-1], body[n-2]
	}
	s.Predicted.Body = append(body, Point{
		X: last.X + (last.X - prev.X),
		Y: last.Y + (last.Y - prev.Y),
	})
}

// StartBuff replaces any running speed effect.
func (s *Snake) StartBuff(kind ResourceType, d time.Duration, multiplier float64) {
	s.SpeedMultiplier = multiplier
	s.Buff = Buff{Kind: kind, Remaining: d}
}

// TickBuff advances the buff countdown by dt of unpaused time. The countdown
// decrements in whole seconds measured from pickup. It reports whether the
// buff expired during this call.
func (s *Snake) TickBuff(dt time.Duration) bool {
	if !s.Buff.Active() {
		return false
	}
	s.Buff.carry += dt
	for s.Buff.carry >= time.Second && s.Buff.Remaining > 0 {
		s.Buff.carry -= time.Second
		s.Buff.Remaining -= time.Second
	}
	if s.Buff.Remaining > 0 {
		return false
	}

	switch s.Buff.Kind {
	case Slowdown:
		s.Buff = Buff{Kind: Slowdown, Ending: true}
	default:
		s.SpeedMultiplier = 1
		s.Buff = Buff{}
	}
	return true
}

// ClearBuff cancels any running countdown without touching speed.
func (s *Snake) ClearBuff() {
	s.Buff.carry = 0
	s.Buff.Remaining = 0
}
