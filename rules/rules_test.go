package rules

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/brensch/snekarena/game"
)

func dumpState(board game.Board, snakes []*game.Snake, pool *game.Pool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Size=%dx%d\n", board.Width, board.Height)

	var resources []game.Resource
	if pool != nil {
		resources = pool.Resources()
	}
	fmt.Fprintf(&b, "Resources(%d):", len(resources))
	for _, r := range resources {
		fmt.Fprintf(&b, " %s(%d,%d)", r.Type, r.X, r.Y)
	}
	b.WriteString("\n")

	// Snakes (stable order)
	sorted := make([]*game.Snake, len(snakes))
	copy(sorted, snakes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, s := range sorted {
		fmt.Fprintf(&b, "Snake %s Alive=%v Score=%d Len=%d Head=(%d,%d) Body:",
			s.Name, s.Alive, s.Score, len(s.Predicted.Body)+1, s.Predicted.Head.X, s.Predicted.Head.Y)
		for _, p := range s.Predicted.Body {
			fmt.Fprintf(&b, " (%d,%d)", p.X, p.Y)
		}
		b.WriteString("\n")
	}

	w, h := int(board.Width), int(board.Height)
	if w > 0 && h > 0 && w <= 40 && h <= 40 {
		res := make(map[game.Point]bool, len(resources))
		for _, r := range resources {
			res[r.Point()] = true
		}
		occ := make(map[game.Point]int, 64)
		head := make(map[game.Point]bool, 8)
		for _, s := range snakes {
			head[s.Predicted.Head] = true
			for _, p := range s.Predicted.Body {
				occ[p]++
			}
		}

		b.WriteString("Board:\n")
		for y := h - 1; y >= 0; y-- {
			for x := 0; x < w; x++ {
				k := game.Point{X: int32(x), Y: int32(y)}
				switch {
				case head[k]:
					b.WriteByte('H')
				case res[k] && occ[k] > 0:
					b.WriteByte('*')
				case res[k]:
					b.WriteByte('R')
				case occ[k] > 0:
					c := occ[k]
					if c > 9 {
						c = 9
					}
					b.WriteByte(byte('0' + c))
				default:
					b.WriteByte('.')
				}
			}
			b.WriteByte('\n')
		}
	}

	return b.String()
}

func logResolve(t *testing.T, name string, board game.Board, snakes []*game.Snake, pool *game.Pool, events []CollisionEvent) {
	t.Helper()
	var ev strings.Builder
	ev.WriteString("Events:")
	for _, e := range events {
		fmt.Fprintf(&ev, " %s=%s", e.PlayerName, e.Outcome.Type)
	}
	ev.WriteByte('\n')
	t.Logf("=== %s ===\n%sAfter:\n%s", name, ev.String(), dumpState(board, snakes, pool))
}

func snakeAt(name string, head game.Point, d game.Direction) *game.Snake {
	return game.NewSnake(name, game.Slot{Head: head, Direction: d})
}

func newPool(board game.Board) *game.Pool {
	return game.NewPool(board, nil, rand.New(rand.NewSource(1)), 1)
}

func TestResolve_WallKills(t *testing.T) {
	board := game.Board{Width: 7, Height: 7}
	me := snakeAt("me", game.Point{X: 3, Y: 6}, game.Up)
	me.Advance()

	events := Resolve(board, []*game.Snake{me}, nil, nil)
	logResolve(t, "wall", board, []*game.Snake{me}, nil, events)

	if me.Alive {
		t.Fatalf("snake survived leaving the board")
	}
	if len(events) != 1 || events[0].Outcome.Type != KindWall || !events[0].Lethal() {
		t.Fatalf("events=%+v want one wall collision", events)
	}
}

func TestResolve_SelfKills(t *testing.T) {
	board := game.Board{Width: 7, Height: 7}
	me := snakeAt("me", game.Point{X: 3, Y: 3}, game.Up)
	me.Predicted.Body = []game.Point{{X: 3, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 3}, {X: 4, Y: 4}, {X: 3, Y: 4}}
	me.SetDirection(game.Right)
	me.Advance()
	// Head moved to (4,3) which the body still covers.

	events := Resolve(board, []*game.Snake{me}, nil, nil)
	logResolve(t, "self", board, []*game.Snake{me}, nil, events)

	if me.Alive || len(events) != 1 || events[0].Outcome.Type != KindSelf {
		t.Fatalf("alive=%v events=%+v want self collision", me.Alive, events)
	}
}

func TestResolve_HeadOnKillsBoth(t *testing.T) {
	board := game.Board{Width: 9, Height: 5}
	a := snakeAt("a", game.Point{X: 3, Y: 2}, game.Right)
	b := snakeAt("b", game.Point{X: 5, Y: 2}, game.Left)
	snakes := []*game.Snake{a, b}
	a.Advance()
	b.Advance()

	events := Resolve(board, snakes, nil, nil)
	logResolve(t, "head on", board, snakes, nil, events)

	if a.Alive || b.Alive {
		t.Fatalf("a.alive=%v b.alive=%v want both dead", a.Alive, b.Alive)
	}
	got := map[string]Kind{}
	for _, e := range events {
		got[e.PlayerName] = e.Outcome.Type
	}
	if len(events) != 2 || got["a"] != KindSnake || got["b"] != KindSnake {
		t.Fatalf("events=%+v want snake collision for a and b", events)
	}
}

func TestResolve_BodyHitKillsOnlyMover(t *testing.T) {
	board := game.Board{Width: 9, Height: 9}
	wall := snakeAt("wall", game.Point{X: 4, Y: 6}, game.Up)
	wall.Predicted.Body = []game.Point{{X: 4, Y: 5}, {X: 4, Y: 4}, {X: 4, Y: 3}}
	me := snakeAt("me", game.Point{X: 3, Y: 4}, game.Right)
	snakes := []*game.Snake{wall, me}
	me.Advance()

	events := Resolve(board, snakes, []bool{false, true}, nil)
	logResolve(t, "body hit", board, snakes, nil, events)

	if me.Alive || !wall.Alive {
		t.Fatalf("me.alive=%v wall.alive=%v want only me dead", me.Alive, wall.Alive)
	}
	if len(events) != 1 || events[0].PlayerName != "me" || events[0].Outcome.Type != KindSnake {
		t.Fatalf("events=%+v", events)
	}
}

func TestResolve_SwapKillsBothInAnyOrder(t *testing.T) {
	board := game.Board{Width: 9, Height: 5}
	for _, order := range [][]string{{"a", "b"}, {"b", "a"}} {
		a := snakeAt("a", game.Point{X: 3, Y: 2}, game.Right)
		b := snakeAt("b", game.Point{X: 4, Y: 2}, game.Left)
		byName := map[string]*game.Snake{"a": a, "b": b}
		snakes := []*game.Snake{byName[order[0]], byName[order[1]]}
		a.Advance()
		b.Advance()

		events := Resolve(board, snakes, nil, nil)
		logResolve(t, "swap "+strings.Join(order, ","), board, snakes, nil, events)

		if a.Alive || b.Alive {
			t.Fatalf("order %v: a.alive=%v b.alive=%v want both dead", order, a.Alive, b.Alive)
		}
		if len(events) != 2 || events[0].Outcome.Type != KindSnake || events[1].Outcome.Type != KindSnake {
			t.Fatalf("order %v: events=%+v want two snake collisions", order, events)
		}
	}
}

func TestResolve_ThreeWayHeadOnKillsAll(t *testing.T) {
	board := game.Board{Width: 9, Height: 7}
	for _, order := range [][]string{{"a", "b", "c"}, {"c", "b", "a"}, {"b", "c", "a"}} {
		a := snakeAt("a", game.Point{X: 3, Y: 2}, game.Right)
		b := snakeAt("b", game.Point{X: 5, Y: 2}, game.Left)
		c := snakeAt("c", game.Point{X: 4, Y: 3}, game.Down)
		byName := map[string]*game.Snake{"a": a, "b": b, "c": c}
		snakes := make([]*game.Snake, 0, 3)
		for _, n := range order {
			snakes = append(snakes, byName[n])
		}
		for _, sn := range snakes {
			sn.Advance()
		}

		events := Resolve(board, snakes, nil, nil)
		logResolve(t, "three way "+strings.Join(order, ","), board, snakes, nil, events)

		for _, sn := range snakes {
			if sn.Alive {
				t.Fatalf("order %v: %s survived a three way head-on", order, sn.Name)
			}
		}
		if len(events) != 3 {
			t.Fatalf("order %v: events=%+v want three", order, events)
		}
	}
}

func TestResolve_BodyOfSnakeDyingThisTickStillKills(t *testing.T) {
	board := game.Board{Width: 9, Height: 7}
	for _, wallFirst := range []bool{true, false} {
		w := snakeAt("w", game.Point{X: 4, Y: 6}, game.Up)
		me := snakeAt("me", game.Point{X: 3, Y: 5}, game.Right)
		snakes := []*game.Snake{me, w}
		if wallFirst {
			snakes = []*game.Snake{w, me}
		}
		w.Advance()
		me.Advance()
		// w leaves the board; me runs into w's neck at (4,5).

		events := Resolve(board, snakes, nil, nil)
		logResolve(t, fmt.Sprintf("dying body wallFirst=%v", wallFirst), board, snakes, nil, events)

		got := map[string]Kind{}
		for _, e := range events {
			got[e.PlayerName] = e.Outcome.Type
		}
		if w.Alive || me.Alive || got["w"] != KindWall || got["me"] != KindSnake {
			t.Fatalf("wallFirst=%v: w.alive=%v me.alive=%v events=%+v", wallFirst, w.Alive, me.Alive, events)
		}
	}
}

func TestResolve_DeadSnakeIsNotAnObstacle(t *testing.T) {
	board := game.Board{Width: 9, Height: 9}
	corpse := snakeAt("corpse", game.Point{X: 4, Y: 6}, game.Up)
	corpse.Predicted.Body = []game.Point{{X: 4, Y: 5}, {X: 4, Y: 4}}
	corpse.Alive = false
	me := snakeAt("me", game.Point{X: 3, Y: 4}, game.Right)
	me.Advance()

	events := Resolve(board, []*game.Snake{corpse, me}, nil, nil)
	if !me.Alive || len(events) != 0 {
		t.Fatalf("alive=%v events=%+v want no collision", me.Alive, events)
	}
}

func TestResolve_UnmovedSnakeIsNotChecked(t *testing.T) {
	board := game.Board{Width: 5, Height: 5}
	me := snakeAt("me", game.Point{X: 2, Y: 5}, game.Up)

	events := Resolve(board, []*game.Snake{me}, []bool{false}, nil)
	if !me.Alive || len(events) != 0 {
		t.Fatalf("alive=%v events=%+v want unmoved snake ignored", me.Alive, events)
	}
}

func TestResolve_PlainPickupGrowsEveryThird(t *testing.T) {
	board := game.Board{Width: 7, Height: 12}
	pool := newPool(board)
	me := snakeAt("me", game.Point{X: 3, Y: 2}, game.Up)

	for i := 0; i < 3; i++ {
		c := me.Predicted.Head.Add(game.Up.Delta())
		if _, ok := pool.Place(game.Plain, c); !ok {
			t.Fatalf("place %v failed", c)
		}
		lenBefore := len(me.Predicted.Body)
		me.Advance()
		events := Resolve(board, []*game.Snake{me}, nil, pool)
		logResolve(t, fmt.Sprintf("plain %d", i+1), board, []*game.Snake{me}, pool, events)

		if len(events) != 1 || events[0].Lethal() || events[0].Outcome.Type != Kind("plain") {
			t.Fatalf("pickup %d events=%+v", i+1, events)
		}
		if pool.Len() != 0 {
			t.Fatalf("pickup %d: resource not consumed", i+1)
		}
		grew := len(me.Predicted.Body) - lenBefore
		switch i {
		case 0, 1:
			if grew != 0 || me.GrowthCounter != i+1 {
				t.Fatalf("pickup %d grew=%d counter=%d", i+1, grew, me.GrowthCounter)
			}
		case 2:
			if grew != 1 || me.GrowthCounter != 0 {
				t.Fatalf("pickup 3 grew=%d counter=%d want 1 and 0", grew, me.GrowthCounter)
			}
		}
	}
	if me.Score != 3 {
		t.Fatalf("score=%d want=3", me.Score)
	}
	tail := me.Predicted.Body[len(me.Predicted.Body)-1]
	if tail != (game.Point{X: 3, Y: 2}) {
		t.Fatalf("tail=%v want=(3,2)", tail)
	}
}

func TestResolve_SpeedBuffs(t *testing.T) {
	board := game.Board{Width: 7, Height: 7}

	for _, tc := range []struct {
		typ   game.ResourceType
		speed float64
	}{
		{game.Speedup, 1.5},
		{game.Slowdown, 0.5},
	} {
		pool := newPool(board)
		me := snakeAt("me", game.Point{X: 3, Y: 2}, game.Up)
		me.StartBuff(game.Speedup, time.Second, 1.5)
		pool.Place(tc.typ, game.Point{X: 3, Y: 3})
		me.SpeedMultiplier = 1
		me.Advance()

		events := Resolve(board, []*game.Snake{me}, nil, pool)
		if len(events) != 1 || events[0].Outcome.Type != Kind(tc.typ.String()) {
			t.Fatalf("%v: events=%+v", tc.typ, events)
		}
		if me.SpeedMultiplier != tc.speed {
			t.Fatalf("%v: speed=%v want=%v", tc.typ, me.SpeedMultiplier, tc.speed)
		}
		if me.Buff.Kind != tc.typ || me.Buff.Remaining != 5*time.Second {
			t.Fatalf("%v: buff=%+v want fresh 5s countdown", tc.typ, me.Buff)
		}
		if me.Score != 2 {
			t.Fatalf("%v: score=%d want=2", tc.typ, me.Score)
		}
	}
}

func TestResolve_TeleportMovesHeadOnly(t *testing.T) {
	board := game.Board{Width: 20, Height: 20}
	pool := newPool(board)
	me := snakeAt("me", game.Point{X: 3, Y: 2}, game.Up)
	pool.Place(game.Teleport, game.Point{X: 3, Y: 3})
	me.Advance()
	bodyBefore := append([]game.Point(nil), me.Predicted.Body...)

	events := Resolve(board, []*game.Snake{me}, nil, pool)
	logResolve(t, "teleport", board, []*game.Snake{me}, pool, events)

	if len(events) != 1 || events[0].Outcome.Type != Kind("teleport") {
		t.Fatalf("events=%+v", events)
	}
	if !board.Contains(me.Predicted.Head) {
		t.Fatalf("teleported off board to %v", me.Predicted.Head)
	}
	for i := range bodyBefore {
		if me.Predicted.Body[i] != bodyBefore[i] {
			t.Fatalf("body moved on teleport: %v -> %v", bodyBefore, me.Predicted.Body)
		}
	}
	if me.Score != 10 {
		t.Fatalf("score=%d want=10", me.Score)
	}
}

func TestResolve_LethalBeatsPickup(t *testing.T) {
	board := game.Board{Width: 9, Height: 9}
	pool := newPool(board)
	a := snakeAt("a", game.Point{X: 3, Y: 4}, game.Right)
	b := snakeAt("b", game.Point{X: 5, Y: 4}, game.Left)
	pool.Place(game.Plain, game.Point{X: 4, Y: 4})
	a.Advance()
	b.Advance()

	events := Resolve(board, []*game.Snake{a, b}, nil, pool)
	if a.Alive || b.Alive {
		t.Fatalf("expected mutual kill")
	}
	if pool.Len() != 1 {
		t.Fatalf("resource consumed by a dying snake")
	}
	for _, e := range events {
		if !e.Lethal() {
			t.Fatalf("unexpected pickup event %+v", e)
		}
	}
}

func TestLegalMoves_AvoidsWallsBodiesAndReversal(t *testing.T) {
	board := game.Board{Width: 5, Height: 5}
	me := snakeAt("me", game.Point{X: 0, Y: 2}, game.Up)
	other := snakeAt("other", game.Point{X: 1, Y: 4}, game.Down)
	other.Predicted.Body = []game.Point{{X: 1, Y: 3}, {X: 1, Y: 2}, {X: 1, Y: 1}}

	moves := LegalMoves(board, []*game.Snake{me, other}, me)
	t.Logf("moves=%v\n%s", moves, dumpState(board, []*game.Snake{me, other}, nil))
	if len(moves) != 1 || moves[0] != game.Up {
		t.Fatalf("moves=%v want [up]", moves)
	}
}

func TestAliveCount(t *testing.T) {
	a := snakeAt("a", game.Point{X: 1, Y: 1}, game.Up)
	b := snakeAt("b", game.Point{X: 3, Y: 3}, game.Up)
	b.Alive = false
	if n := AliveCount([]*game.Snake{a, b}); n != 1 {
		t.Fatalf("alive=%d want=1", n)
	}
}
