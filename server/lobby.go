package server

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/sim"
)

var (
	ErrNameTaken     = errors.New("name already taken")
	ErrInvalidName   = errors.New("invalid name")
	ErrLobbyFull     = errors.New("lobby is full")
	ErrNotHost       = errors.New("only the host can do that")
	ErrNotRegistered = errors.New("not registered")
	ErrRoundRunning  = errors.New("round in progress")
	ErrUnknownBot    = errors.New("no such bot")
)

// Colors are handed out in order; a leaving player frees theirs.
var Colors = []string{"red", "blue", "yellow", "green"}

const maxNameLen = 24

// Lobby tracks who will play the next round. It is not safe for concurrent
// use; Server guards it.
type Lobby struct {
	max     int
	members []Member
	botSeq  int
}

func NewLobby(maxPlayers int) *Lobby {
	if maxPlayers < 1 || maxPlayers > game.MaxSlots {
		maxPlayers = game.MaxSlots
	}
	return &Lobby{max: maxPlayers}
}

func (l *Lobby) Full() bool { return len(l.members) >= l.max }

// Join registers a human. The first human becomes host.
func (l *Lobby) Join(id, name string) (Member, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLen {
		return Member{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, ok := l.Member(id); ok {
		return Member{}, fmt.Errorf("client %s already registered", id)
	}
	if l.Full() {
		return Member{}, ErrLobbyFull
	}
	if l.nameTaken(name) {
		return Member{}, fmt.Errorf("%w: %q", ErrNameTaken, name)
	}
	m := Member{ID: id, Name: name, Color: l.freeColor(), IsHost: l.host() < 0}
	l.members = append(l.members, m)
	return m, nil
}

// AddBot adds a bot on behalf of the host.
func (l *Lobby) AddBot(hostID string, profile game.BotProfile) (Member, error) {
	if !l.IsHost(hostID) {
		return Member{}, ErrNotHost
	}
	if l.Full() {
		return Member{}, ErrLobbyFull
	}
	var name string
	for {
		l.botSeq++
		name = fmt.Sprintf("%s %s bot %d", profile.Tier, profile.Behavior, l.botSeq)
		if !l.nameTaken(name) {
			break
		}
	}
	p := profile
	m := Member{ID: "bot:" + name, Name: name, Color: l.freeColor(), Bot: &p}
	l.members = append(l.members, m)
	return m, nil
}

func (l *Lobby) RemoveBot(hostID, name string) error {
	if !l.IsHost(hostID) {
		return ErrNotHost
	}
	i := slices.IndexFunc(l.members, func(m Member) bool { return m.Bot != nil && m.Name == name })
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownBot, name)
	}
	l.members = slices.Delete(l.members, i, i+1)
	return nil
}

// Leave removes a human. Host passes to the next human in join order; when
// no humans remain the bots go too.
func (l *Lobby) Leave(id string) (Member, bool) {
	i := slices.IndexFunc(l.members, func(m Member) bool { return m.ID == id })
	if i < 0 {
		return Member{}, false
	}
	left := l.members[i]
	l.members = slices.Delete(l.members, i, i+1)

	if !slices.ContainsFunc(l.members, func(m Member) bool { return m.Bot == nil }) {
		l.members = l.members[:0]
		return left, true
	}
	if left.IsHost {
		for j := range l.members {
			if l.members[j].Bot == nil {
				l.members[j].IsHost = true
				break
			}
		}
	}
	return left, true
}

func (l *Lobby) Member(id string) (Member, bool) {
	for _, m := range l.members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

func (l *Lobby) IsHost(id string) bool {
	m, ok := l.Member(id)
	return ok && m.IsHost
}

func (l *Lobby) Members() []Member {
	return slices.Clone(l.members)
}

func (l *Lobby) State(inRound bool) LobbyState {
	return LobbyState{Players: l.Members(), MaxPlayers: l.max, InRound: inRound}
}

// Entrants lists members in join order for StartRound.
func (l *Lobby) Entrants() []sim.Entrant {
	out := make([]sim.Entrant, 0, len(l.members))
	for _, m := range l.members {
		out = append(out, sim.Entrant{Name: m.Name, Bot: m.Bot})
	}
	return out
}

func (l *Lobby) host() int {
	return slices.IndexFunc(l.members, func(m Member) bool { return m.IsHost })
}

func (l *Lobby) nameTaken(name string) bool {
	return slices.ContainsFunc(l.members, func(m Member) bool { return strings.EqualFold(m.Name, name) })
}

func (l *Lobby) freeColor() string {
	for _, c := range Colors {
		if !slices.ContainsFunc(l.members, func(m Member) bool { return m.Color == c }) {
			return c
		}
	}
	return ""
}
