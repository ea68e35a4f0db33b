// Command arenaview plays a round in the terminal against in-process bots.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/snekarena/ai"
	"github.com/brensch/snekarena/config"
	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/logging"
	"github.com/brensch/snekarena/sim"
)

type model struct {
	sim      *sim.Simulation
	events   chan sim.Event
	player   string
	entrants []sim.Entrant
	duration int

	snap      sim.Snapshot
	countdown string
	paused    bool
	over      *sim.GameOver
	log       []string
}

func initialModel(s *sim.Simulation, events chan sim.Event, player string, entrants []sim.Entrant, duration int) model {
	return model{
		sim:      s,
		events:   events,
		player:   player,
		entrants: entrants,
		duration: duration,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), m.submit(sim.SetDuration{Seconds: m.duration}))
}

func waitForEvent(events chan sim.Event) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

func (m model) submit(cmd sim.Command) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := m.sim.Submit(ctx, cmd); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

type errMsg struct{ err error }

var keyDirections = map[string]game.Direction{
	"up": game.Up, "w": game.Up, "k": game.Up,
	"down": game.Down, "s": game.Down, "j": game.Down,
	"left": game.Left, "a": game.Left, "h": game.Left,
	"right": game.Right, "d": game.Right, "l": game.Right,
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "enter":
			m.over = nil
			return m, m.submit(sim.StartRound{Players: m.entrants})
		case "p", " ":
			return m, m.submit(sim.TogglePause{Player: m.pauseName()})
		case "b":
			return m, m.submit(sim.BackToLobby{})
		}
		if d, ok := keyDirections[key]; ok && m.player != "" {
			return m, m.submit(sim.SetDirection{Player: m.player, Direction: d})
		}
	case errMsg:
		m.note("error: " + msg.err.Error())
	case sim.Event:
		m.apply(msg)
		return m, waitForEvent(m.events)
	}
	return m, nil
}

// pauseName is the player a pause is attributed to. The simulation only
// accepts toggles from snakes in the round, so a bots-only view borrows the
// first entrant.
func (m model) pauseName() string {
	if m.player != "" {
		return m.player
	}
	return m.entrants[0].Name
}

func (m *model) note(line string) {
	m.log = append([]string{line}, m.log...)
	if len(m.log) > 6 {
		m.log = m.log[:6]
	}
}

func (m *model) apply(e sim.Event) {
	switch e.Type {
	case sim.EventStartGame, sim.EventGameState, sim.EventBackToLobby:
		if snap, ok := e.Payload.(sim.Snapshot); ok {
			m.snap = snap
		}
		if e.Type == sim.EventBackToLobby {
			m.countdown = ""
			m.paused = false
		}
	case sim.EventCountdown:
		m.countdown, _ = e.Payload.(string)
	case sim.EventTimer:
		if t, ok := e.Payload.(int); ok {
			m.snap.Timer = t
		}
	case sim.EventPauseChanged:
		if p, ok := e.Payload.(sim.PauseChanged); ok {
			m.paused = p.IsPaused
		}
	case sim.EventBatchAdded:
		if b, ok := e.Payload.(sim.BatchAdded); ok {
			m.note(fmt.Sprintf("%d resources dropped, next batch in %ds", b.Added, b.NextBatchIn))
		}
	case sim.EventCollisions:
		if cs, ok := e.Payload.(sim.Collisions); ok {
			for _, c := range cs {
				m.note(fmt.Sprintf("%+v", c))
			}
		}
	case sim.EventPlayerRemoved:
		if p, ok := e.Payload.(sim.PlayerRemoved); ok {
			m.note(p.PlayerName + " left")
		}
	case sim.EventGameOver:
		if over, ok := e.Payload.(sim.GameOver); ok {
			m.over = &over
		}
	}
}

var resourceGlyphs = map[game.ResourceType]byte{
	game.Plain:    '*',
	game.Slowdown: '-',
	game.Speedup:  '+',
	game.Teleport: '@',
}

func (m model) View() string {
	var b strings.Builder
	board := m.snap.Board
	if board.Width == 0 {
		b.WriteString("Lobby. enter: start  q: quit\n")
		return b.String()
	}

	grid := make([][]byte, board.Height)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(".", int(board.Width)))
	}
	set := func(p game.Point, c byte) {
		if board.Contains(p) {
			grid[p.Y][p.X] = c
		}
	}
	for _, r := range m.snap.Resources {
		set(r.Point(), resourceGlyphs[r.Type])
	}
	for i, p := range m.snap.Players {
		if !p.IsAlive {
			continue
		}
		pos := p.Snake.LastConfirmedPosition
		for _, c := range pos.Body {
			set(c, byte('a'+i))
		}
		set(pos.Head, byte('A'+i))
	}

	b.WriteString("+" + strings.Repeat("-", int(board.Width)) + "+\n")
	for y := board.Height - 1; y >= 0; y-- {
		b.WriteString("|")
		b.Write(grid[y])
		b.WriteString("|\n")
	}
	b.WriteString("+" + strings.Repeat("-", int(board.Width)) + "+\n")

	status := fmt.Sprintf("phase %s  time %ds  speed %dms", m.snap.Phase, m.snap.Timer, m.snap.GameSpeed)
	if m.countdown != "" && m.snap.Phase == sim.PhaseCountdown {
		status += "  countdown " + m.countdown
	}
	if m.paused {
		status += "  PAUSED"
	}
	b.WriteString(status + "\n")

	for i, p := range m.snap.Players {
		state := "alive"
		if !p.IsAlive {
			state = "dead"
		}
		kind := "human"
		if p.Bot != nil {
			kind = p.Bot.String()
		}
		fmt.Fprintf(&b, "%c %-24s %-18s %4d  %s\n", 'A'+i, p.Name, kind, p.Score, state)
	}

	if m.over != nil {
		b.WriteString("\nRound over.")
		if m.over.Winner != nil {
			fmt.Fprintf(&b, " Winner: %s (%d)", m.over.Winner.Name, m.over.Winner.Score)
		}
		b.WriteString("\n")
	}
	for _, line := range m.log {
		b.WriteString(line + "\n")
	}
	b.WriteString("\narrows/wasd: steer  p: pause  enter: start  b: lobby  q: quit\n")
	return b.String()
}

func main() {
	configPath := flag.String("config", getEnvOrDefault("ARENA_CONFIG", ""), "YAML config file overlaying the defaults")
	name := flag.String("name", getEnvOrDefault("PLAYER_NAME", "you"), "Your snake's name; empty to watch bots only")
	bots := flag.String("bots", getEnvOrDefault("BOTS", "medium safe,hard aggressive,easy bold"), "Comma separated bot profiles")
	duration := flag.Int("duration", 0, "Round length in seconds (defaults to round.default_duration)")
	logFile := flag.String("log-file", "", "Write logs to this file instead of discarding them")
	seed := flag.Int64("seed", 0, "Random seed; 0 uses the clock")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *duration == 0 {
		*duration = cfg.Round.DefaultDuration
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	var logOut io.Writer = io.Discard
	if *logFile != "" {
		f, err := os.Create(*logFile)
		if err != nil {
			log.Fatalf("log file: %v", err)
		}
		defer f.Close()
		logOut = f
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("log level: %v", err)
	}
	logger, err := logging.New(logOut, logging.Options{Level: level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	entrants, err := buildEntrants(*name, *bots)
	if err != nil {
		log.Fatalf("bots: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := make(chan sim.Event, 256)
	simulation := sim.New(cfg.SimConfig(),
		sim.WithLogger(logger),
		sim.WithRand(rand.New(rand.NewSource(*seed))),
		sim.WithPublisher(sim.PublisherFunc(func(e sim.Event) {
			select {
			case events <- e:
			default:
			}
		})),
	)
	go func() {
		if err := simulation.Run(ctx); err != nil {
			logger.Error("simulation stopped", "err", err)
		}
	}()

	p := tea.NewProgram(initialModel(simulation, events, *name, entrants, *duration), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		log.Fatalf("tui: %v", err)
	}
}

func buildEntrants(player, bots string) ([]sim.Entrant, error) {
	var out []sim.Entrant
	if player != "" {
		out = append(out, sim.Entrant{Name: player})
	}
	for i, spec := range strings.Split(bots, ",") {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		profile, err := ai.ParseProfile(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, sim.Entrant{
			Name: fmt.Sprintf("%s bot %d", profile, i+1),
			Bot:  &profile,
		})
	}
	if len(out) > game.MaxSlots {
		return nil, fmt.Errorf("%d entrants, at most %d fit", len(out), game.MaxSlots)
	}
	if len(out) < 2 {
		return nil, fmt.Errorf("need at least two snakes")
	}
	return out, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
