package game

import (
	"math/rand"
	"strings"
	"testing"
	"time"
)

// dumpBoard is a test helper to visualize board state.
func dumpBoard(b Board, snakes []*Snake, resources []Resource) string {
	grid := make([][]byte, b.Height)
	for y := int32(0); y < b.Height; y++ {
		grid[y] = make([]byte, b.Width)
		for x := int32(0); x < b.Width; x++ {
			grid[y][x] = '.'
		}
	}
	for _, r := range resources {
		if b.Contains(r.Point()) {
			grid[r.Y][r.X] = "*svt"[r.Type-1]
		}
	}
	for i, s := range snakes {
		sym := byte('a' + i)
		for _, p := range s.Predicted.Body {
			if b.Contains(p) {
				grid[p.Y][p.X] = sym
			}
		}
		if h := s.Predicted.Head; b.Contains(h) {
			grid[h.Y][h.X] = sym - 32
		}
	}
	var sb strings.Builder
	for y := b.Height - 1; y >= 0; y-- {
		sb.Write(grid[y])
		sb.WriteByte('\n')
	}
	return sb.String()
}

func TestNewSnake_BodyTrailsHead(t *testing.T) {
	board := Board{Width: 32, Height: 26}
	slots := StartingSlots(board)

	wantBodies := [MaxSlots][]Point{
		{{X: 3, Y: 4}, {X: 3, Y: 3}},
		{{X: 29, Y: 22}, {X: 29, Y: 23}},
		{{X: 28, Y: 3}, {X: 29, Y: 3}},
		{{X: 4, Y: 23}, {X: 3, Y: 23}},
	}
	var snakes []*Snake
	for i, slot := range slots {
		s := NewSnake("s", slot)
		snakes = append(snakes, s)
		if !board.Contains(s.Head()) {
			t.Fatalf("slot %d head %v out of bounds", i, s.Head())
		}
		for j, want := range wantBodies[i] {
			if s.Predicted.Body[j] != want {
				t.Fatalf("slot %d body[%d]=%v want=%v", i, j, s.Predicted.Body[j], want)
			}
		}
		if s.Direction != slot.Direction || s.NextDirection != slot.Direction {
			t.Fatalf("slot %d direction=%v next=%v want=%v", i, s.Direction, s.NextDirection, slot.Direction)
		}
	}
	t.Logf("starting slots:\n%s", dumpBoard(board, snakes, nil))
}

func TestAdvance_MovesOneCellAndKeepsConfirmed(t *testing.T) {
	s := NewSnake("me", Slot{Head: Point{X: 3, Y: 3}, Direction: Up})
	before := s.Predicted.Clone()

	if !s.Advance() {
		t.Fatalf("expected snake to move")
	}
	if s.Predicted.Head != (Point{X: 3, Y: 4}) {
		t.Fatalf("head=%v want=(3,4)", s.Predicted.Head)
	}
	want := []Point{{X: 3, Y: 3}, {X: 3, Y: 2}}
	for i := range want {
		if s.Predicted.Body[i] != want[i] {
			t.Fatalf("body[%d]=%v want=%v", i, s.Predicted.Body[i], want[i])
		}
	}
	if s.Confirmed.Head != before.Head || len(s.Confirmed.Body) != len(before.Body) {
		t.Fatalf("confirmed=%v want=%v", s.Confirmed, before)
	}
	// Confirmed must not alias predicted.
	s.Predicted.Body[0] = Point{X: 99, Y: 99}
	if s.Confirmed.Body[0] == (Point{X: 99, Y: 99}) {
		t.Fatalf("confirmed body aliases predicted body")
	}
}

func TestAdvance_DeadSnakeDoesNotMove(t *testing.T) {
	s := NewSnake("me", Slot{Head: Point{X: 3, Y: 3}, Direction: Up})
	s.Alive = false
	if s.Advance() {
		t.Fatalf("dead snake moved")
	}
	if s.Predicted.Head != (Point{X: 3, Y: 3}) {
		t.Fatalf("head=%v want=(3,3)", s.Predicted.Head)
	}
}

func TestAdvance_CommitsPendingTurnOncePerMove(t *testing.T) {
	s := NewSnake("me", Slot{Head: Point{X: 5, Y: 5}, Direction: Up})
	s.SpeedMultiplier = 0.5

	if !s.SetDirection(Right) {
		t.Fatalf("turn right rejected")
	}
	if s.Advance() {
		t.Fatalf("slow snake moved on first call")
	}
	if s.Direction != Up {
		t.Fatalf("direction committed on skipped move: %v", s.Direction)
	}
	if !s.Advance() {
		t.Fatalf("slow snake did not move on second call")
	}
	if s.Direction != Right || s.Predicted.Head != (Point{X: 6, Y: 5}) {
		t.Fatalf("direction=%v head=%v want right (6,5)", s.Direction, s.Predicted.Head)
	}
}

func TestSetDirection_RejectsReversal(t *testing.T) {
	for _, d := range Directions {
		s := NewSnake("me", Slot{Head: Point{X: 5, Y: 5}, Direction: d})
		if s.SetDirection(d.Opposite()) {
			t.Fatalf("reversal %v -> %v accepted", d, d.Opposite())
		}
		if s.NextDirection != d {
			t.Fatalf("next=%v want=%v", s.NextDirection, d)
		}
	}
}

func TestSetDirection_NoReversalAcrossQueuedTurns(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := NewSnake("me", Slot{Head: Point{X: 500, Y: 500}, Direction: Up})
	for i := 0; i < 2000; i++ {
		for j := rng.Intn(4); j >= 0; j-- {
			s.SetDirection(Directions[rng.Intn(4)])
		}
		prev := s.Direction
		s.Advance()
		if s.Direction == prev.Opposite() {
			t.Fatalf("step %d: committed %v after %v", i, s.Direction, prev)
		}
	}
}

func TestAdvance_FractionalSpeed(t *testing.T) {
	s := NewSnake("me", Slot{Head: Point{X: 5, Y: 5}, Direction: Up})
	s.SpeedMultiplier = 0.5

	moves := 0
	for i := 0; i < 20; i++ {
		if s.Advance() {
			moves++
		}
	}
	if moves != 10 {
		t.Fatalf("moves=%d want=10", moves)
	}
}

func TestWillMove_PredictsAdvance(t *testing.T) {
	for _, mult := range []float64{0.5, 1, 1.5} {
		s := NewSnake("me", Slot{Head: Point{X: 5, Y: 5}, Direction: Up})
		s.SpeedMultiplier = mult
		for i := 0; i < 6; i++ {
			want := s.WillMove()
			if got := s.Advance(); got != want {
				t.Fatalf("mult=%v call %d: WillMove=%v Advance=%v", mult, i, want, got)
			}
		}
	}

	dead := NewSnake("dead", Slot{Head: Point{X: 5, Y: 5}, Direction: Up})
	dead.Alive = false
	if dead.WillMove() {
		t.Fatalf("dead snake reported as moving")
	}
}

func TestBuff_SpeedupExpiresImmediately(t *testing.T) {
	s := NewSnake("me", Slot{Head: Point{X: 5, Y: 5}, Direction: Up})
	s.StartBuff(Speedup, 2*time.Second, 1.5)

	if s.TickBuff(1500 * time.Millisecond) {
		t.Fatalf("expired after 1.5s")
	}
	if !s.TickBuff(500 * time.Millisecond) {
		t.Fatalf("did not expire after 2s")
	}
	if s.SpeedMultiplier != 1 {
		t.Fatalf("speed=%v want=1", s.SpeedMultiplier)
	}
}

func TestBuff_SlowdownFinishesFractionalStep(t *testing.T) {
	s := NewSnake("me", Slot{Head: Point{X: 5, Y: 5}, Direction: Up})
	s.StartBuff(Slowdown, time.Second, 0.5)

	if s.Advance() {
		t.Fatalf("slow snake moved on first call")
	}
	if !s.TickBuff(time.Second) {
		t.Fatalf("slowdown did not expire")
	}
	if s.SpeedMultiplier != 0.5 || !s.Buff.Ending {
		t.Fatalf("speed=%v ending=%v want 0.5 and ending", s.SpeedMultiplier, s.Buff.Ending)
	}
	if !s.Advance() {
		t.Fatalf("expected pending fractional step to complete")
	}
	if s.SpeedMultiplier != 1 || s.Buff.Ending {
		t.Fatalf("speed=%v ending=%v want 1 and cleared", s.SpeedMultiplier, s.Buff.Ending)
	}
	if !s.Advance() {
		t.Fatalf("normal speed snake did not move")
	}
}

func TestGrow_ExtendsTailColinear(t *testing.T) {
	s := NewSnake("me", Slot{Head: Point{X: 5, Y: 5}, Direction: Right})
	s.Grow()
	want := []Point{{X: 4, Y: 5}, {X: 3, Y: 5}, {X: 2, Y: 5}}
	if len(s.Predicted.Body) != len(want) {
		t.Fatalf("body len=%d want=%d", len(s.Predicted.Body), len(want))
	}
	for i := range want {
		if s.Predicted.Body[i] != want[i] {
			t.Fatalf("body[%d]=%v want=%v", i, s.Predicted.Body[i], want[i])
		}
	}
}

func TestDirectionBetween(t *testing.T) {
	origin := Point{X: 4, Y: 4}
	for _, d := range Directions {
		got, ok := DirectionBetween(origin, origin.Add(d.Delta()))
		if !ok || got != d {
			t.Fatalf("DirectionBetween(%v)=%v,%v want %v", d, got, ok, d)
		}
	}
	if _, ok := DirectionBetween(origin, Point{X: 6, Y: 4}); ok {
		t.Fatalf("expected non-neighbour to fail")
	}
}

func TestParseDirection(t *testing.T) {
	if d, err := ParseDirection(" Left "); err != nil || d != Left {
		t.Fatalf("ParseDirection(Left)=%v,%v", d, err)
	}
	if _, err := ParseDirection("north"); err == nil {
		t.Fatalf("expected error for north")
	}
}
