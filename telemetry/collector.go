// Package telemetry times simulation ticks and summarises them per window.
package telemetry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat"
)

// Phase names reported by the simulation step.
const (
	PhaseAI      = "ai"
	PhaseMove    = "move"
	PhaseCollide = "collide"
	PhasePublish = "publish"
)

type sample struct {
	tick   time.Duration
	phases map[string]time.Duration
}

// WindowStats is one CSV row: tick timing over the last window of ticks.
type WindowStats struct {
	Window     int       `csv:"window"`
	EndedAt    time.Time `csv:"ended_at"`
	Ticks      int       `csv:"ticks"`
	MeanUS     float64   `csv:"mean_us"`
	StdDevUS   float64   `csv:"stddev_us"`
	P50US      float64   `csv:"p50_us"`
	P95US      float64   `csv:"p95_us"`
	P99US      float64   `csv:"p99_us"`
	MaxUS      float64   `csv:"max_us"`
	AIPct      float64   `csv:"ai_pct"`
	MovePct    float64   `csv:"move_pct"`
	CollidePct float64   `csv:"collide_pct"`
	PublishPct float64   `csv:"publish_pct"`
}

func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window", s.Window),
		slog.Int("ticks", s.Ticks),
		slog.Float64("mean_us", s.MeanUS),
		slog.Float64("p95_us", s.P95US),
		slog.Float64("max_us", s.MaxUS),
		slog.Float64("ai_pct", s.AIPct),
	)
}

// Collector implements the simulation's tick observer. Every window ticks
// it computes WindowStats, logs them at DEBUG and appends them to
// ticks.csv when a directory is configured.
type Collector struct {
	mu     sync.Mutex
	now    func() time.Time
	logger *slog.Logger
	window int

	samples    []sample
	current    map[string]time.Duration
	tickStart  time.Time
	phaseStart time.Time
	lastPhase  string

	windows       int
	file          *os.File
	headerWritten bool
	last          WindowStats

	// OnWindow, if set, receives every completed window.
	OnWindow func(WindowStats)
}

// NewCollector creates a collector. An empty dir disables CSV output.
func NewCollector(dir string, window int, logger *slog.Logger) (*Collector, error) {
	if window < 1 {
		window = 500
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collector{
		now:     time.Now,
		logger:  logger,
		window:  window,
		samples: make([]sample, 0, window),
	}
	if dir == "" {
		return c, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating telemetry directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "ticks.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating ticks.csv: %w", err)
	}
	c.file = f
	return c, nil
}

func (c *Collector) StartTick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tickStart = c.now()
	c.current = make(map[string]time.Duration, 4)
	c.lastPhase = ""
}

func (c *Collector) StartPhase(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if c.lastPhase != "" {
		c.current[c.lastPhase] += now.Sub(c.phaseStart)
	}
	c.phaseStart = now
	c.lastPhase = name
}

func (c *Collector) EndTick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if c.lastPhase != "" {
		c.current[c.lastPhase] += now.Sub(c.phaseStart)
		c.lastPhase = ""
	}
	c.samples = append(c.samples, sample{tick: now.Sub(c.tickStart), phases: c.current})
	if len(c.samples) >= c.window {
		c.flushLocked(now)
	}
}

// Last returns the most recent completed window.
func (c *Collector) Last() WindowStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Collector) flushLocked(now time.Time) {
	if len(c.samples) == 0 {
		return
	}
	c.windows++
	s := summarize(c.samples)
	s.Window = c.windows
	s.EndedAt = now.UTC()
	c.samples = c.samples[:0]
	c.last = s

	c.logger.Debug("tick timing", "stats", s)
	if c.OnWindow != nil {
		c.OnWindow(s)
	}
	if err := c.writeLocked(s); err != nil {
		c.logger.Warn("telemetry write failed", "err", err)
	}
}

func (c *Collector) writeLocked(s WindowStats) error {
	if c.file == nil {
		return nil
	}
	rows := []WindowStats{s}
	if !c.headerWritten {
		if err := gocsv.Marshal(rows, c.file); err != nil {
			return fmt.Errorf("writing ticks.csv: %w", err)
		}
		c.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(rows, c.file); err != nil {
		return fmt.Errorf("writing ticks.csv: %w", err)
	}
	return nil
}

func summarize(samples []sample) WindowStats {
	ticks := make([]float64, len(samples))
	phaseSum := map[string]float64{}
	var total float64
	for i, s := range samples {
		ticks[i] = float64(s.tick) / float64(time.Microsecond)
		total += ticks[i]
		for name, d := range s.phases {
			phaseSum[name] += float64(d) / float64(time.Microsecond)
		}
	}
	mean, std := stat.MeanStdDev(ticks, nil)
	if len(ticks) < 2 {
		std = 0
	}
	slices.Sort(ticks)

	pct := func(name string) float64 {
		if total <= 0 {
			return 0
		}
		return phaseSum[name] / total * 100
	}
	return WindowStats{
		Ticks:      len(samples),
		MeanUS:     mean,
		StdDevUS:   std,
		P50US:      stat.Quantile(0.50, stat.Empirical, ticks, nil),
		P95US:      stat.Quantile(0.95, stat.Empirical, ticks, nil),
		P99US:      stat.Quantile(0.99, stat.Empirical, ticks, nil),
		MaxUS:      ticks[len(ticks)-1],
		AIPct:      pct(PhaseAI),
		MovePct:    pct(PhaseMove),
		CollidePct: pct(PhaseCollide),
		PublishPct: pct(PhasePublish),
	}
}

// Close writes any partial window and closes the CSV file.
func (c *Collector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked(c.now())
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}
