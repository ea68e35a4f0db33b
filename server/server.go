// Package server is the websocket boundary of the arena: it keeps the lobby,
// turns client messages into simulation commands and fans simulation events
// out to every connection.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/brensch/snekarena/ai"
	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/sim"
)

const submitTimeout = time.Second

type Config struct {
	MaxPlayers     int
	WriteTimeout   time.Duration
	SendBuffer     int
	AllowedOrigins []string // empty allows any origin
}

func DefaultConfig() Config {
	return Config{
		MaxPlayers:   game.MaxSlots,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   64,
	}
}

// Commander accepts simulation commands. *sim.Simulation implements it.
type Commander interface {
	Submit(ctx context.Context, cmd sim.Command) error
}

type Server struct {
	cfg      Config
	sim      Commander
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
	lobby   *Lobby

	inRound atomic.Bool
	dropped atomic.Int64
}

func New(cfg Config, commander Commander, logger *slog.Logger) *Server {
	def := DefaultConfig()
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		sim:     commander,
		logger:  logger,
		clients: map[string]*client{},
		lobby:   NewLobby(cfg.MaxPlayers),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.ServeWS)
	mux.HandleFunc("GET /lobby", s.serveLobby)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Dropped counts frames skipped because a client's buffer was full.
func (s *Server) Dropped() int64 { return s.dropped.Load() }

func (s *Server) serveLobby(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	state := s.lobby.State(s.inRound.Load())
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(state)
}

// ServeWS upgrades the request. Connections are refused while a round is
// running or the lobby is full. ?codec=msgpack selects binary frames.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	if s.inRound.Load() {
		http.Error(w, ErrRoundRunning.Error(), http.StatusServiceUnavailable)
		return
	}
	s.mu.Lock()
	full := s.lobby.Full()
	s.mu.Unlock()
	if full {
		http.Error(w, ErrLobbyFull.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "err", err)
		return
	}
	codec := CodecByName(r.URL.Query().Get("codec"))
	id := uuid.NewString()
	c := &client{
		id:     id,
		conn:   conn,
		codec:  codec,
		srv:    s,
		logger: s.logger.With("client", id, "codec", codec.Name()),
		send:   make(chan frame, s.cfg.SendBuffer),
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[id] = c
	state := s.lobby.State(s.inRound.Load())
	s.mu.Unlock()

	c.logger.Info("client connected", "remote", r.RemoteAddr)
	c.sendMessage(MsgLobby, state)
	go c.writePump()
	go c.readPump()
}

// Publish fans a simulation event out to every connection. Each codec
// encodes the event once. It never blocks.
func (s *Server) Publish(e sim.Event) {
	switch e.Type {
	case sim.EventStartGame:
		s.inRound.Store(true)
	case sim.EventGameOver, sim.EventBackToLobby:
		s.inRound.Store(false)
	}

	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	encoded := map[string][]byte{}
	for _, c := range clients {
		b, ok := encoded[c.codec.Name()]
		if !ok {
			var err error
			b, err = c.codec.Encode(string(e.Type), e.Payload)
			if err != nil {
				s.logger.Error("encode event", "type", e.Type, "codec", c.codec.Name(), "err", err)
				continue
			}
			encoded[c.codec.Name()] = b
		}
		if !c.enqueue(b) {
			s.dropped.Add(1)
			c.logger.Debug("event dropped", "type", e.Type)
		}
	}

	if e.Type == sim.EventGameOver || e.Type == sim.EventBackToLobby {
		s.broadcastLobby()
	}
}

func (s *Server) broadcastLobby() {
	s.mu.Lock()
	state := s.lobby.State(s.inRound.Load())
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		c.sendMessage(MsgLobby, state)
	}
}

func (s *Server) submit(cmd sim.Command) {
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()
	if err := s.sim.Submit(ctx, cmd); err != nil {
		s.logger.Warn("submit command", "err", err)
	}
}

func (s *Server) member(c *client) (Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lobby.Member(c.id)
}

func (s *Server) disconnect(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	m, wasMember := s.lobby.Leave(c.id)
	s.mu.Unlock()

	c.logger.Info("client disconnected", "player", m.Name)
	if !wasMember {
		return
	}
	s.submit(sim.RemovePlayer{Player: m.Name})
	s.broadcastLobby()
}

// dispatch handles one client message. Invalid game input is dropped;
// lobby errors are reported back to the sender.
func (s *Server) dispatch(c *client, env Envelope) {
	switch env.T {
	case MsgRegister:
		p, err := DecodePayload[RegisterPayload](env)
		if err != nil {
			c.sendMessage(MsgError, ErrorPayload{Message: ErrInvalidName.Error()})
			return
		}
		s.register(c, p.Name)

	case MsgDirection:
		m, ok := s.member(c)
		if !ok {
			return
		}
		p, err := DecodePayload[DirectionPayload](env)
		if err != nil {
			return
		}
		d, err := game.ParseDirection(p.Direction)
		if err != nil {
			return
		}
		s.submit(sim.SetDirection{Player: m.Name, Direction: d})

	case MsgTogglePause:
		if m, ok := s.member(c); ok {
			s.submit(sim.TogglePause{Player: m.Name})
		}

	case MsgSetDuration:
		m, ok := s.member(c)
		if !ok || !m.IsHost {
			return
		}
		p, err := DecodePayload[DurationPayload](env)
		if err != nil {
			return
		}
		s.submit(sim.SetDuration{Seconds: p.Seconds})

	case MsgStartGame:
		s.mu.Lock()
		isHost := s.lobby.IsHost(c.id)
		entrants := s.lobby.Entrants()
		s.mu.Unlock()
		if !isHost {
			c.sendMessage(MsgError, ErrorPayload{Message: ErrNotHost.Error()})
			return
		}
		s.logger.Info("host starting round", "players", len(entrants))
		s.submit(sim.StartRound{Players: entrants})

	case MsgAddBot:
		p, err := DecodePayload[AddBotPayload](env)
		if err != nil {
			return
		}
		profile, err := ai.ParseProfile(p.Profile)
		if err != nil {
			c.sendMessage(MsgError, ErrorPayload{Message: err.Error()})
			return
		}
		s.mu.Lock()
		bot, err := s.lobby.AddBot(c.id, profile)
		s.mu.Unlock()
		if err != nil {
			c.sendMessage(MsgError, ErrorPayload{Message: err.Error()})
			return
		}
		c.logger.Info("bot added", "bot", bot.Name)
		s.broadcastLobby()

	case MsgRemoveBot:
		p, err := DecodePayload[RemoveBotPayload](env)
		if err != nil {
			return
		}
		s.mu.Lock()
		err = s.lobby.RemoveBot(c.id, p.Name)
		s.mu.Unlock()
		if err != nil {
			c.sendMessage(MsgError, ErrorPayload{Message: err.Error()})
			return
		}
		s.broadcastLobby()

	case MsgBackToLobby:
		if s.lobbyHost(c) {
			s.submit(sim.BackToLobby{})
		}

	default:
		c.logger.Debug("unknown message type", "type", env.T)
	}
}

func (s *Server) lobbyHost(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lobby.IsHost(c.id)
}

func (s *Server) register(c *client, name string) {
	if s.inRound.Load() {
		c.sendMessage(MsgError, ErrorPayload{Message: ErrRoundRunning.Error()})
		return
	}
	s.mu.Lock()
	m, err := s.lobby.Join(c.id, name)
	s.mu.Unlock()
	if err != nil {
		msg := err.Error()
		if errors.Is(err, ErrNameTaken) {
			msg = ErrNameTaken.Error()
		}
		c.sendMessage(MsgError, ErrorPayload{Message: msg})
		return
	}
	c.logger.Info("player registered", "player", m.Name, "host", m.IsHost, "color", m.Color)
	c.sendMessage(MsgWelcome, Welcome{ClientID: c.id, Name: m.Name, Color: m.Color, IsHost: m.IsHost})
	s.broadcastLobby()
}
