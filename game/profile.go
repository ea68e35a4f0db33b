package game

import (
	"fmt"
	"strings"
)

// Tier is a bot difficulty level.
type Tier uint8

const (
	Easy Tier = iota + 1
	Medium
	Hard
)

func (t Tier) String() string {
	switch t {
	case Easy:
		return "easy"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// Behavior is a bot play style.
type Behavior uint8

const (
	SafeEfficient Behavior = iota + 1
	Aggressive
	BoldFast
)

func (b Behavior) String() string {
	switch b {
	case SafeEfficient:
		return "safe"
	case Aggressive:
		return "aggressive"
	case BoldFast:
		return "bold"
	default:
		return fmt.Sprintf("behavior(%d)", uint8(b))
	}
}

// BotProfile marks a snake as computer controlled.
type BotProfile struct {
	Tier     Tier     `json:"tier"`
	Behavior Behavior `json:"behavior"`
}

func (p BotProfile) String() string {
	return p.Tier.String() + "/" + p.Behavior.String()
}

func (t Tier) MarshalText() ([]byte, error)     { return []byte(t.String()), nil }
func (b Behavior) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (t *Tier) UnmarshalText(b []byte) error {
	s := strings.ToLower(string(b))
	for _, v := range []Tier{Easy, Medium, Hard} {
		if v.String() == s {
			*t = v
			return nil
		}
	}
	return fmt.Errorf("unknown tier %q", b)
}

func (b *Behavior) UnmarshalText(text []byte) error {
	s := strings.ToLower(string(text))
	for _, v := range []Behavior{SafeEfficient, Aggressive, BoldFast} {
		if v.String() == s {
			*b = v
			return nil
		}
	}
	return fmt.Errorf("unknown behavior %q", text)
}
