// Package config loads arena configuration from the embedded defaults and
// an optional user YAML file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brensch/snekarena/ai"
	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/sim"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Board     BoardConfig     `yaml:"board"`
	Round     RoundConfig     `yaml:"round"`
	Resources ResourcesConfig `yaml:"resources"`
	AI        AIConfig        `yaml:"ai"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Trace     TraceConfig     `yaml:"trace"`
}

type BoardConfig struct {
	Width       int32 `yaml:"width"`  // cells
	Height      int32 `yaml:"height"` // cells
	SegmentSize int   `yaml:"segment_size"`
}

type RoundConfig struct {
	DefaultDuration  int           `yaml:"default_duration"`  // seconds
	AllowedDurations []int         `yaml:"allowed_durations"` // seconds
	MoveInterval     time.Duration `yaml:"move_interval"`
	SpeedupFactor    float64       `yaml:"speedup_factor"` // divides move_interval at each quarter
	PollInterval     time.Duration `yaml:"poll_interval"`
	Countdown        int           `yaml:"countdown"`
}

type ResourcesConfig struct {
	FirstBatchDelay int            `yaml:"first_batch_delay"` // seconds
	BatchInterval   int            `yaml:"batch_interval"`    // seconds
	BaseBatch       int            `yaml:"base_batch"`
	PerPlayer       int            `yaml:"per_player"` // extra per live snake
	Types           []ResourceType `yaml:"types"`
}

type ResourceType struct {
	Type            string        `yaml:"type"`
	Probability     float64       `yaml:"probability"`
	Score           int           `yaml:"score"`
	Duration        time.Duration `yaml:"duration"`
	SpeedMultiplier float64       `yaml:"speed_multiplier"`
}

// AIConfig keys its maps by tier name.
type AIConfig struct {
	Proximity     map[string]int     `yaml:"proximity"`
	Hesitation    map[string]float64 `yaml:"hesitation"`
	MaxIterations int                `yaml:"max_iterations"`
}

type ServerConfig struct {
	Listen         string        `yaml:"listen"`
	MaxPlayers     int           `yaml:"max_players"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	SendBuffer     int           `yaml:"send_buffer"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json or pretty
}

// TelemetryConfig controls tick timing stats. An empty dir disables CSV
// output; stats are still logged.
type TelemetryConfig struct {
	Dir    string `yaml:"dir"`
	Window int    `yaml:"window"` // ticks per stats row
}

// TraceConfig controls the bot decision trace. An empty dir disables it.
type TraceConfig struct {
	Dir       string `yaml:"dir"`
	FlushRows int    `yaml:"flush_rows"`
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load parses the embedded defaults, overlays the file at path if one is
// given, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func (c *Config) Validate() error {
	if c.Board.Width < 12 || c.Board.Height < 12 {
		return invalid("board %dx%d is smaller than 12x12", c.Board.Width, c.Board.Height)
	}

	r := c.Round
	if len(r.AllowedDurations) == 0 {
		return invalid("round.allowed_durations is empty")
	}
	found := false
	for _, d := range r.AllowedDurations {
		if d <= 0 {
			return invalid("round.allowed_durations has non-positive %d", d)
		}
		found = found || d == r.DefaultDuration
	}
	if !found {
		return invalid("round.default_duration %d not in allowed_durations", r.DefaultDuration)
	}
	if r.MoveInterval < 2*time.Millisecond {
		return invalid("round.move_interval %v too short", r.MoveInterval)
	}
	if r.SpeedupFactor < 1 {
		return invalid("round.speedup_factor %v must be >= 1", r.SpeedupFactor)
	}
	if r.PollInterval <= 0 || r.PollInterval > r.MoveInterval/2 {
		return invalid("round.poll_interval %v must be in (0, move_interval/2]", r.PollInterval)
	}
	if r.Countdown < 0 {
		return invalid("round.countdown is negative")
	}

	res := c.Resources
	if res.FirstBatchDelay < 0 || res.BatchInterval <= 0 || res.BaseBatch < 0 || res.PerPlayer < 0 {
		return invalid("resources batch settings must be non-negative with a positive interval")
	}
	if len(res.Types) == 0 {
		return invalid("resources.types is empty")
	}
	total := 0.0
	seen := map[game.ResourceType]bool{}
	for _, t := range res.Types {
		rt, err := game.ParseResourceType(t.Type)
		if err != nil {
			return invalid("resources.types: %v", err)
		}
		if seen[rt] {
			return invalid("resources.types: %s listed twice", rt)
		}
		seen[rt] = true
		if t.Probability < 0 {
			return invalid("resources.types: %s has negative probability", rt)
		}
		if (rt == game.Slowdown || rt == game.Speedup) && (t.Duration <= 0 || t.SpeedMultiplier <= 0) {
			return invalid("resources.types: %s needs a duration and speed_multiplier", rt)
		}
		total += t.Probability
	}
	// A residual below 1 falls back to plain.
	if total > 1+1e-9 {
		return invalid("resources.types probabilities sum to %v", total)
	}

	for name, p := range c.AI.Proximity {
		if _, err := ai.ParseTier(name); err != nil {
			return invalid("ai.proximity: %v", err)
		}
		if p < 0 {
			return invalid("ai.proximity.%s is negative", name)
		}
	}
	for name, h := range c.AI.Hesitation {
		if _, err := ai.ParseTier(name); err != nil {
			return invalid("ai.hesitation: %v", err)
		}
		if h < 0 || h > 1 {
			return invalid("ai.hesitation.%s=%v outside [0,1]", name, h)
		}
	}
	if c.AI.MaxIterations <= 0 {
		return invalid("ai.max_iterations must be positive")
	}

	if c.Server.MaxPlayers < 1 || c.Server.MaxPlayers > game.MaxSlots {
		return invalid("server.max_players %d outside [1,%d]", c.Server.MaxPlayers, game.MaxSlots)
	}
	if c.Server.SendBuffer <= 0 {
		return invalid("server.send_buffer must be positive")
	}
	switch c.Log.Format {
	case "text", "json", "pretty":
	default:
		return invalid("log.format %q", c.Log.Format)
	}
	if c.Telemetry.Window <= 0 {
		return invalid("telemetry.window must be positive")
	}
	if c.Trace.FlushRows <= 0 {
		return invalid("trace.flush_rows must be positive")
	}
	return nil
}

// ResourceSpecs converts the resource table. Validate has already checked
// every type name.
func (c *Config) ResourceSpecs() []game.ResourceSpec {
	specs := make([]game.ResourceSpec, 0, len(c.Resources.Types))
	for _, t := range c.Resources.Types {
		rt, _ := game.ParseResourceType(t.Type)
		specs = append(specs, game.ResourceSpec{
			Type:            rt,
			Probability:     t.Probability,
			Score:           t.Score,
			Duration:        t.Duration,
			SpeedMultiplier: t.SpeedMultiplier,
		})
	}
	return specs
}

func (c *Config) AIConfig() ai.Config {
	out := ai.DefaultConfig()
	out.MaxIterations = c.AI.MaxIterations
	for name, p := range c.AI.Proximity {
		if tier, err := ai.ParseTier(name); err == nil {
			out.Proximity[tier] = p
		}
	}
	for name, h := range c.AI.Hesitation {
		if tier, err := ai.ParseTier(name); err == nil {
			out.Hesitation[tier] = h
		}
	}
	return out
}

func (c *Config) SimConfig() sim.Config {
	return sim.Config{
		Board:            game.Board{Width: c.Board.Width, Height: c.Board.Height},
		DefaultDuration:  c.Round.DefaultDuration,
		AllowedDurations: append([]int(nil), c.Round.AllowedDurations...),
		MoveInterval:     c.Round.MoveInterval,
		SpeedupFactor:    c.Round.SpeedupFactor,
		PollInterval:     c.Round.PollInterval,
		Countdown:        c.Round.Countdown,
		FirstBatchDelay:  c.Resources.FirstBatchDelay,
		BatchInterval:    c.Resources.BatchInterval,
		BaseBatch:        c.Resources.BaseBatch,
		PerPlayerBatch:   c.Resources.PerPlayer,
		Resources:        c.ResourceSpecs(),
		AI:               c.AIConfig(),
	}
}
