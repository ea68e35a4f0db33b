// Package game defines the core arena types: board geometry, snakes and
// collectible resources, plus the per-snake movement transition.
//
// Coordinates are grid cells, not pixels. (0,0) is bottom-left and Up
// increases Y, matching the convention the clients render with.
package game

import (
	"errors"
	"fmt"
	"strings"
)

// Point is a board coordinate in cells.
type Point struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// Add returns p offset by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// Manhattan returns the 4-connected grid distance between a and b.
func Manhattan(a, b Point) int {
	return abs32(a.X-b.X) + abs32(a.Y-b.Y)
}

func abs32(v int32) int {
	if v < 0 {
		return int(-v)
	}
	return int(v)
}

// Board is the playable area. Valid cells are [0,Width) x [0,Height).
type Board struct {
	Width  int32 `json:"width"`
	Height int32 `json:"height"`
}

// Contains reports whether p lies inside the board.
func (b Board) Contains(p Point) bool {
	return p.X >= 0 && p.X < b.Width && p.Y >= 0 && p.Y < b.Height
}

// Cells returns the number of cells on the board.
func (b Board) Cells() int {
	return int(b.Width) * int(b.Height)
}

type Direction uint8

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Directions lists the four cardinal directions in a fixed order.
var Directions = [4]Direction{Up, Down, Left, Right}

var ErrInvalidDirection = errors.New("invalid direction")

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Opposite returns the 180 degree reverse of d.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	default:
		return Left
	}
}

// Delta is the one-cell offset for a move in direction d.
func (d Direction) Delta() Point {
	switch d {
	case Up:
		return Point{Y: 1}
	case Down:
		return Point{Y: -1}
	case Left:
		return Point{X: -1}
	default:
		return Point{X: 1}
	}
}

// ParseDirection accepts the wire names "up", "down", "left", "right".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

func (d Direction) MarshalText() ([]byte, error) {
	if d > Right {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// DirectionBetween returns the direction of a single orthogonal step from a
// to b. ok is false when b is not a 4-neighbour of a.
func DirectionBetween(a, b Point) (Direction, bool) {
	for _, d := range Directions {
		if a.Add(d.Delta()) == b {
			return d, true
		}
	}
	return 0, false
}

// Position is one snapshot of a snake: its head and the body behind it.
type Position struct {
	Head Point   `json:"head"`
	Body []Point `json:"body"`
}

// Clone performs a deep copy of the position.
func (p Position) Clone() Position {
	out := Position{Head: p.Head}
	if len(p.Body) > 0 {
		out.Body = make([]Point, len(p.Body))
		copy(out.Body, p.Body)
	}
	return out
}

// Occupies reports whether c is the head or any body cell.
func (p Position) Occupies(c Point) bool {
	if p.Head == c {
		return true
	}
	for _, b := range p.Body {
		if b == c {
			return true
		}
	}
	return false
}
