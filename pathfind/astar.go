// Package pathfind implements grid A* over 4-connected board cells.
package pathfind

import (
	"container/heap"

	"github.com/brensch/snekarena/game"
)

// DefaultMaxIterations bounds a search on crowded or disconnected boards.
const DefaultMaxIterations = 1000

// Obstacles is a set of blocked cells.
type Obstacles map[game.Point]struct{}

// Add blocks p.
func (o Obstacles) Add(p game.Point) { o[p] = struct{}{} }

// Has reports whether p is blocked.
func (o Obstacles) Has(p game.Point) bool {
	_, ok := o[p]
	return ok
}

// neighbour expansion order: up, right, down, left.
var expandOrder = [4]game.Direction{game.Up, game.Right, game.Down, game.Left}

type node struct {
	p     game.Point
	g     int
	f     int
	seq   uint64 // insertion order, breaks f ties first-found first
	index int    // heap index, -1 once popped
}

type nodeHeap []*node

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].seq < h[j].seq
}
func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *nodeHeap) Push(x any) {
	n := x.(*node)
	n.index = len(*h)
	*h = append(*h, n)
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	nd := old[n-1]
	old[n-1] = nil
	nd.index = -1
	*h = old[0 : n-1]
	return nd
}

// Planner runs searches on one board. Its scratch maps are reused between
// calls, so a Planner must not be shared across goroutines.
type Planner struct {
	board         game.Board
	maxIterations int

	open     *nodeHeap
	nodes    map[game.Point]*node
	closed   map[game.Point]struct{}
	cameFrom map[game.Point]game.Point
	seq      uint64

	// Iterations is the number of nodes expanded by the last search.
	Iterations int
}

// NewPlanner returns a planner for board. maxIterations <= 0 uses
// DefaultMaxIterations.
func NewPlanner(board game.Board, maxIterations int) *Planner {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Planner{
		board:         board,
		maxIterations: maxIterations,
		open:          &nodeHeap{},
		nodes:         make(map[game.Point]*node, 256),
		closed:        make(map[game.Point]struct{}, 256),
		cameFrom:      make(map[game.Point]game.Point, 256),
	}
}

// FindPath returns the cells from start to goal inclusive, or nil.
//
// It returns nil when goal is blocked or equals start. When the goal can't
// be reached within the iteration cap, the path leads to the expanded cell
// closest to goal, but only if that cell is strictly closer than start.
func (pl *Planner) FindPath(start, goal game.Point, obstacles Obstacles) []game.Point {
	pl.Iterations = 0
	if obstacles.Has(goal) || start == goal {
		return nil
	}
	pl.reset()

	pl.push(start, 0, game.Manhattan(start, goal))

	for pl.open.Len() > 0 && pl.Iterations < pl.maxIterations {
		pl.Iterations++

		current := heap.Pop(pl.open).(*node)
		if current.p == goal {
			return pl.reconstruct(start, goal)
		}
		pl.closed[current.p] = struct{}{}

		for _, d := range expandOrder {
			np := current.p.Add(d.Delta())
			if !pl.board.Contains(np) || obstacles.Has(np) {
				continue
			}
			if _, ok := pl.closed[np]; ok {
				continue
			}

			g := current.g + 1
			existing, ok := pl.nodes[np]
			if ok && g >= existing.g {
				continue
			}
			pl.cameFrom[np] = current.p
			f := g + game.Manhattan(np, goal)
			if ok {
				existing.g, existing.f = g, f
				heap.Fix(pl.open, existing.index)
				continue
			}
			pl.push(np, g, f)
		}
	}

	return pl.partial(start, goal)
}

// partial falls back to the closed cell nearest the goal.
func (pl *Planner) partial(start, goal game.Point) []game.Point {
	if len(pl.closed) == 0 {
		return nil
	}
	best := start
	bestH := game.Manhattan(start, goal)
	found := false
	// Map order is random; pick the minimum h, breaking ties on the
	// earliest discovered cell so the result is stable.
	var bestSeq uint64
	for p := range pl.closed {
		h := game.Manhattan(p, goal)
		seq := pl.nodes[p].seq
		if h < bestH || (found && h == bestH && seq < bestSeq) {
			best, bestH, bestSeq, found = p, h, seq, true
		}
	}
	if !found {
		return nil
	}
	return pl.reconstruct(start, best)
}

func (pl *Planner) push(p game.Point, g, f int) {
	n := &node{p: p, g: g, f: f, seq: pl.seq}
	pl.seq++
	pl.nodes[p] = n
	heap.Push(pl.open, n)
}

func (pl *Planner) reconstruct(start, end game.Point) []game.Point {
	var rev []game.Point
	cur := end
	for cur != start {
		rev = append(rev, cur)
		prev, ok := pl.cameFrom[cur]
		if !ok {
			break
		}
		cur = prev
	}
	rev = append(rev, start)

	path := make([]game.Point, len(rev))
	for i := range rev {
		path[i] = rev[len(rev)-1-i]
	}
	return path
}

func (pl *Planner) reset() {
	*pl.open = (*pl.open)[:0]
	clear(pl.nodes)
	clear(pl.closed)
	clear(pl.cameFrom)
	pl.seq = 0
}

// FindPath runs a one-off search with a fresh planner.
func FindPath(board game.Board, start, goal game.Point, obstacles Obstacles, maxIterations int) []game.Point {
	return NewPlanner(board, maxIterations).FindPath(start, goal, obstacles)
}
