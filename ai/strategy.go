package ai

import (
	"github.com/brensch/snekarena/game"
)

// ObstacleKind is one class of cell a strategy plans around.
type ObstacleKind uint8

const (
	OwnBody ObstacleKind = 1 << iota
	SnakeBodies
	SnakeHeads
	TeleportResources
	SlowdownResources
)

// Avoidance is a set of obstacle kinds.
type Avoidance uint8

func avoid(kinds ...ObstacleKind) Avoidance {
	var a Avoidance
	for _, k := range kinds {
		a |= Avoidance(k)
	}
	return a
}

func (a Avoidance) Has(k ObstacleKind) bool { return a&Avoidance(k) != 0 }

// View is what a bot can see when deciding.
type View struct {
	Board     game.Board
	Me        *game.Snake
	Tier      game.Tier
	Snakes    []*game.Snake
	Resources []game.Resource
}

// Strategy picks where a bot wants to go and what it plans around.
type Strategy interface {
	SelectTarget(v *View) (game.Point, bool)
	Avoidance(tier game.Tier) Avoidance
}

// StrategyFor returns the strategy for a behavior. Unknown behaviors play
// safe.
func StrategyFor(b game.Behavior, cfg Config) Strategy {
	switch b {
	case game.Aggressive:
		return aggressive{proximity: cfg.Proximity}
	case game.BoldFast:
		return boldFast{}
	default:
		return safeEfficient{}
	}
}

type safeEfficient struct{}

func (safeEfficient) SelectTarget(v *View) (game.Point, bool) {
	return safeResourceTarget(v)
}

func (safeEfficient) Avoidance(tier game.Tier) Avoidance {
	switch tier {
	case game.Hard:
		return avoid(OwnBody, SnakeBodies, SnakeHeads, TeleportResources, SlowdownResources)
	case game.Medium:
		return avoid(OwnBody, SnakeBodies, TeleportResources)
	default:
		return avoid(OwnBody, SnakeBodies)
	}
}

// safeResourceTarget narrows the accepted resource types as difficulty
// rises. Hard takes a speedup whenever it isn't already boosted.
func safeResourceTarget(v *View) (game.Point, bool) {
	head := v.Me.Head()
	switch v.Tier {
	case game.Hard:
		if !v.Me.Boosted() {
			if r, ok := nearestOf(head, v.Resources, game.Speedup); ok {
				return r.Point(), true
			}
		}
		if r, ok := nearestOf(head, v.Resources, game.Plain); ok {
			return r.Point(), true
		}
		if r, ok := nearestOf(head, v.Resources, game.Speedup); ok {
			return r.Point(), true
		}
		return game.Point{}, false
	case game.Medium:
		r, ok := nearestOf(head, v.Resources, game.Plain, game.Speedup)
		return r.Point(), ok
	default:
		r, ok := nearestOf(head, v.Resources, game.Plain, game.Slowdown, game.Speedup)
		return r.Point(), ok
	}
}

type aggressive struct {
	proximity map[game.Tier]int
}

func (a aggressive) SelectTarget(v *View) (game.Point, bool) {
	if enemy, dist, ok := nearestHead(v); ok {
		if v.Tier == game.Hard || dist <= a.threshold(v.Tier) {
			return enemy, true
		}
	}
	return safeResourceTarget(v)
}

func (a aggressive) threshold(t game.Tier) int {
	if n, ok := a.proximity[t]; ok {
		return n
	}
	switch t {
	case game.Medium:
		return 5
	default:
		return 3
	}
}

func (aggressive) Avoidance(tier game.Tier) Avoidance {
	if tier == game.Hard {
		return avoid(OwnBody, SnakeBodies, TeleportResources)
	}
	return avoid(OwnBody, SnakeBodies)
}

type boldFast struct{}

func (boldFast) SelectTarget(v *View) (game.Point, bool) {
	head := v.Me.Head()
	for _, types := range [][]game.ResourceType{
		{game.Teleport, game.Speedup},
		{game.Plain},
		{game.Slowdown},
	} {
		if r, ok := nearestOf(head, v.Resources, types...); ok {
			return r.Point(), true
		}
	}
	return game.Point{}, false
}

func (boldFast) Avoidance(tier game.Tier) Avoidance {
	if tier == game.Hard {
		return avoid(OwnBody, SnakeBodies, SnakeHeads)
	}
	return avoid(OwnBody)
}

// nearestOf returns the closest resource of one of types by Manhattan
// distance. Ties keep the earlier resource.
func nearestOf(from game.Point, resources []game.Resource, types ...game.ResourceType) (game.Resource, bool) {
	var best game.Resource
	bestDist := -1
	for _, r := range resources {
		match := false
		for _, t := range types {
			if r.Type == t {
				match = true
				break
			}
		}
		if !match {
			continue
		}
		d := game.Manhattan(from, r.Point())
		if bestDist < 0 || d < bestDist {
			best, bestDist = r, d
		}
	}
	return best, bestDist >= 0
}

func nearestHead(v *View) (game.Point, int, bool) {
	head := v.Me.Head()
	var best game.Point
	bestDist := -1
	for _, s := range v.Snakes {
		if s == v.Me || !s.Alive {
			continue
		}
		d := game.Manhattan(head, s.Head())
		if bestDist < 0 || d < bestDist {
			best, bestDist = s.Head(), d
		}
	}
	return best, bestDist, bestDist >= 0
}
