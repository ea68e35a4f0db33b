package ai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brensch/snekarena/game"
)

var ErrUnknownProfile = errors.New("unknown bot profile")

// ParseProfile reads a bot profile. It accepts the combined lobby form
// "hard(Aggressive)" or "easy(Safe and Efficient)" as well as separate
// words such as "medium bold" or "hard/safe".
func ParseProfile(s string) (game.BotProfile, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("(", " ", ")", " ", "/", " ", ",", " ", "-", " ", "_", " ").Replace(norm)
	words := strings.Fields(norm)
	if len(words) < 2 {
		return game.BotProfile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, s)
	}

	tier, err := ParseTier(words[0])
	if err != nil {
		return game.BotProfile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, s)
	}
	behavior, err := ParseBehavior(strings.Join(words[1:], " "))
	if err != nil {
		return game.BotProfile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, s)
	}
	return game.BotProfile{Tier: tier, Behavior: behavior}, nil
}

func ParseTier(s string) (game.Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return game.Easy, nil
	case "medium":
		return game.Medium, nil
	case "hard":
		return game.Hard, nil
	}
	return 0, fmt.Errorf("%w: tier %q", ErrUnknownProfile, s)
}

// ParseBehavior matches on the first keyword, so "bold and fast paced"
// and "bold" are the same behavior.
func ParseBehavior(s string) (game.Behavior, error) {
	words := strings.Fields(strings.ToLower(s))
	if len(words) > 0 {
		switch words[0] {
		case "safe", "normal":
			return game.SafeEfficient, nil
		case "aggressive":
			return game.Aggressive, nil
		case "bold":
			return game.BoldFast, nil
		}
	}
	return 0, fmt.Errorf("%w: behavior %q", ErrUnknownProfile, s)
}
