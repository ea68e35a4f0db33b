package rules

import (
	"github.com/brensch/snekarena/game"
)

// Kind names a collision outcome. Lethal kinds are wall, self and snake;
// pickups carry the resource type name.
type Kind string

const (
	KindWall  Kind = "wall"
	KindSelf  Kind = "self"
	KindSnake Kind = "snake"
)

// Outcome is what happened to one snake this tick.
type Outcome struct {
	Collision bool  `json:"collision"`
	Type      Kind  `json:"type"`
	X         int32 `json:"x"`
	Y         int32 `json:"y"`
}

// CollisionEvent pairs an outcome with the snake it happened to.
type CollisionEvent struct {
	PlayerName string  `json:"playerName"`
	Outcome    Outcome `json:"outcome"`
}

// Lethal reports whether the event killed its snake.
func (e CollisionEvent) Lethal() bool {
	return e.Outcome.Collision
}

// Resolve evaluates collisions for every live snake with moved[i] set,
// after all of them have moved. Checks run wall, self, other snake, then
// resource pickup; the first match is terminal for that snake this tick.
// Every snake is judged against the board as it stood before any death
// this tick, so slice order never changes who dies.
//
// moved may be nil, meaning every snake moved.
func Resolve(board game.Board, snakes []*game.Snake, moved []bool, pool *game.Pool) []CollisionEvent {
	alive := make([]bool, len(snakes))
	checked := make([]bool, len(snakes))
	for i, s := range snakes {
		alive[i] = s.Alive
		checked[i] = s.Alive && (moved == nil || (i < len(moved) && moved[i]))
	}

	deaths := make([]Kind, len(snakes))
	for i, s := range snakes {
		if !checked[i] {
			continue
		}
		head := s.Predicted.Head

		switch {
		case !board.Contains(head):
			deaths[i] = KindWall
		case bodyContains(s.Predicted.Body, head):
			deaths[i] = KindSelf
		default:
			for j, o := range snakes {
				if j == i || !alive[j] {
					continue
				}
				if o.Predicted.Head == head {
					deaths[i] = KindSnake
					// A snake that sat still this sub-tick gets no check of
					// its own, so the head-on is recorded for it here.
					if !checked[j] {
						deaths[j] = KindSnake
					}
				} else if bodyContains(o.Predicted.Body, head) {
					deaths[i] = KindSnake
				}
			}
		}
	}

	var events []CollisionEvent
	for i, s := range snakes {
		if deaths[i] == "" {
			continue
		}
		s.Alive = false
		events = append(events, death(s, deaths[i]))
	}

	if pool == nil {
		return events
	}
	for i, s := range snakes {
		if !checked[i] || deaths[i] != "" {
			continue
		}
		r, ok := pool.At(s.Predicted.Head)
		if !ok {
			continue
		}
		applyEffect(s, r, pool)
		pool.Consume(r)
		events = append(events, CollisionEvent{
			PlayerName: s.Name,
			Outcome:    Outcome{Type: Kind(r.Type.String()), X: r.X, Y: r.Y},
		})
	}
	return events
}

func death(s *game.Snake, k Kind) CollisionEvent {
	return CollisionEvent{
		PlayerName: s.Name,
		Outcome: Outcome{
			Collision: true,
			Type:      k,
			X:         s.Predicted.Head.X,
			Y:         s.Predicted.Head.Y,
		},
	}
}

func bodyContains(body []game.Point, p game.Point) bool {
	for _, b := range body {
		if b == p {
			return true
		}
	}
	return false
}

// applyEffect credits r to s. Teleport moves only the head; the body
// catches up on the next movement.
func applyEffect(s *game.Snake, r game.Resource, pool *game.Pool) {
	s.Score += r.Score

	switch r.Type {
	case game.Plain:
		s.GrowthCounter++
		if s.GrowthCounter >= game.GrowthThreshold {
			s.Grow()
			s.GrowthCounter = 0
		}
	case game.Slowdown, game.Speedup:
		s.StartBuff(r.Type, r.Duration, r.SpeedMultiplier)
	case game.Teleport:
		s.Predicted.Head = pool.RandomCell()
	}
}

// SafeStep reports whether moving me one cell in d is immediately
// survivable: inside the board, not a reversal and not onto any live
// snake's head or body.
func SafeStep(board game.Board, snakes []*game.Snake, me *game.Snake, d game.Direction) bool {
	if d == me.Direction.Opposite() {
		return false
	}
	p := me.Predicted.Head.Add(d.Delta())
	if !board.Contains(p) {
		return false
	}
	for _, s := range snakes {
		if !s.Alive && s != me {
			continue
		}
		if s != me && s.Predicted.Head == p {
			return false
		}
		if bodyContains(s.Predicted.Body, p) {
			return false
		}
	}
	return true
}

// LegalMoves returns every direction SafeStep accepts, in Directions order.
func LegalMoves(board game.Board, snakes []*game.Snake, me *game.Snake) []game.Direction {
	if me == nil || !me.Alive {
		return []game.Direction{}
	}
	moves := make([]game.Direction, 0, 4)
	for _, d := range game.Directions {
		if SafeStep(board, snakes, me, d) {
			moves = append(moves, d)
		}
	}
	return moves
}

// AliveCount returns the number of live snakes.
func AliveCount(snakes []*game.Snake) int {
	n := 0
	for _, s := range snakes {
		if s.Alive {
			n++
		}
	}
	return n
}
