// resources.go implements the collectible item pool and batch spawning.

package game

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

type ResourceType uint8

const (
	Plain ResourceType = iota + 1
	Slowdown
	Speedup
	Teleport
)

func (t ResourceType) String() string {
	switch t {
	case Plain:
		return "plain"
	case Slowdown:
		return "slowdown"
	case Speedup:
		return "speedup"
	case Teleport:
		return "teleport"
	default:
		return fmt.Sprintf("resource(%d)", uint8(t))
	}
}

func ParseResourceType(s string) (ResourceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain":
		return Plain, nil
	case "slowdown":
		return Slowdown, nil
	case "speedup":
		return Speedup, nil
	case "teleport":
		return Teleport, nil
	}
	return 0, fmt.Errorf("unknown resource type %q", s)
}

func (t ResourceType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *ResourceType) UnmarshalText(b []byte) error {
	v, err := ParseResourceType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ResourceSpec describes one resource kind and its spawn weight.
type ResourceSpec struct {
	Type            ResourceType
	Probability     float64
	Score           int
	Duration        time.Duration
	SpeedMultiplier float64
}

// DefaultResourceSpecs is the standard table. Order matters for the
// cumulative probability draw.
var DefaultResourceSpecs = []ResourceSpec{
	{Type: Plain, Probability: 0.8, Score: 1},
	{Type: Slowdown, Probability: 0.08, Score: 2, Duration: 5 * time.Second, SpeedMultiplier: 0.5},
	{Type: Speedup, Probability: 0.08, Score: 2, Duration: 5 * time.Second, SpeedMultiplier: 1.5},
	{Type: Teleport, Probability: 0.04, Score: 10},
}

type Resource struct {
	ID              uint64        `json:"id"`
	X               int32         `json:"x"`
	Y               int32         `json:"y"`
	Type            ResourceType  `json:"type"`
	Score           int           `json:"score"`
	Duration        time.Duration `json:"duration,omitempty"`
	SpeedMultiplier float64       `json:"speedMultiplier,omitempty"`
}

func (r Resource) Point() Point {
	return Point{X: r.X, Y: r.Y}
}

// Pool owns the live resources on the board and the batch countdown.
type Pool struct {
	board  Board
	specs  []ResourceSpec
	rng    *rand.Rand
	nextID uint64

	items []Resource
	byPos map[Point]int

	// BatchTimer counts round seconds until the next batch.
	BatchTimer      int
	firstBatchDelay int
}

// NewPool creates an empty pool. specs defaults to DefaultResourceSpecs.
func NewPool(board Board, specs []ResourceSpec, rng *rand.Rand, firstBatchDelay int) *Pool {
	if len(specs) == 0 {
		specs = DefaultResourceSpecs
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Pool{
		board:           board,
		specs:           specs,
		rng:             rng,
		byPos:           make(map[Point]int),
		BatchTimer:      firstBatchDelay,
		firstBatchDelay: firstBatchDelay,
	}
}

// Resources returns a copy of the live resources in spawn order.
func (p *Pool) Resources() []Resource {
	out := make([]Resource, len(p.items))
	copy(out, p.items)
	return out
}

func (p *Pool) Len() int { return len(p.items) }

// At returns the resource on cell c, if any.
func (p *Pool) At(c Point) (Resource, bool) {
	i, ok := p.byPos[c]
	if !ok {
		return Resource{}, false
	}
	return p.items[i], true
}

// SpawnBatch tries up to 2*count random cells and keeps those free of
// resources and snakes. Fewer than count items may be placed.
func (p *Pool) SpawnBatch(count int, snakes []*Snake) []Resource {
	if count <= 0 || p.board.Width <= 0 || p.board.Height <= 0 {
		return nil
	}

	occupied := make(map[Point]struct{}, len(snakes)*4)
	for _, s := range snakes {
		occupied[s.Predicted.Head] = struct{}{}
		for _, c := range s.Predicted.Body {
			occupied[c] = struct{}{}
		}
	}

	added := make([]Resource, 0, count)
	maxAttempts := count * 2
	for attempts := 0; len(added) < count && attempts < maxAttempts; attempts++ {
		c := Point{
			X: int32(p.rng.Intn(int(p.board.Width))),
			Y: int32(p.rng.Intn(int(p.board.Height))),
		}
		if _, ok := p.byPos[c]; ok {
			continue
		}
		if _, ok := occupied[c]; ok {
			continue
		}

		if r, ok := p.Place(p.drawSpec().Type, c); ok {
			added = append(added, r)
		}
	}
	return added
}

// Place puts a resource of type t on c. It fails when c is off the board,
// already holds a resource, or t has no spec.
func (p *Pool) Place(t ResourceType, c Point) (Resource, bool) {
	if !p.board.Contains(c) {
		return Resource{}, false
	}
	if _, ok := p.byPos[c]; ok {
		return Resource{}, false
	}
	for _, s := range p.specs {
		if s.Type == t {
			return p.insert(c, s), true
		}
	}
	return Resource{}, false
}

func (p *Pool) insert(c Point, spec ResourceSpec) Resource {
	p.nextID++
	r := Resource{
		ID:              p.nextID,
		X:               c.X,
		Y:               c.Y,
		Type:            spec.Type,
		Score:           spec.Score,
		Duration:        spec.Duration,
		SpeedMultiplier: spec.SpeedMultiplier,
	}
	p.byPos[c] = len(p.items)
	p.items = append(p.items, r)
	return r
}

// drawSpec picks a spec by cumulative probability. The unmatched residual
// falls back to plain.
func (p *Pool) drawSpec() ResourceSpec {
	roll := p.rng.Float64()
	cumulative := 0.0
	for _, s := range p.specs {
		cumulative += s.Probability
		if roll < cumulative {
			return s
		}
	}
	for _, s := range p.specs {
		if s.Type == Plain {
			return s
		}
	}
	return p.specs[0]
}

// Consume removes the resource matching r by position and type.
func (p *Pool) Consume(r Resource) bool {
	c := r.Point()
	i, ok := p.byPos[c]
	if !ok || p.items[i].Type != r.Type {
		return false
	}
	p.items = append(p.items[:i], p.items[i+1:]...)
	delete(p.byPos, c)
	for j := i; j < len(p.items); j++ {
		p.byPos[p.items[j].Point()] = j
	}
	return true
}

// Reset clears all resources and rewinds the batch countdown.
func (p *Pool) Reset() {
	p.items = p.items[:0]
	clear(p.byPos)
	p.BatchTimer = p.firstBatchDelay
}

// RandomCell returns a uniformly random in-bounds cell.
func (p *Pool) RandomCell() Point {
	return Point{
		X: int32(p.rng.Intn(int(p.board.Width))),
		Y: int32(p.rng.Intn(int(p.board.Height))),
	}
}
