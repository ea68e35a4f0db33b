package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brensch/snekarena/game"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arena.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sc := cfg.SimConfig()
	if sc.Board != (game.Board{Width: 32, Height: 26}) {
		t.Fatalf("board=%+v", sc.Board)
	}
	if sc.MoveInterval != 200*time.Millisecond || sc.PollInterval != 10*time.Millisecond {
		t.Fatalf("intervals move=%v poll=%v", sc.MoveInterval, sc.PollInterval)
	}
	if sc.DefaultDuration != 60 || len(sc.AllowedDurations) != 3 {
		t.Fatalf("durations default=%d allowed=%v", sc.DefaultDuration, sc.AllowedDurations)
	}
	if sc.FirstBatchDelay != 1 || sc.BatchInterval != 30 || sc.BaseBatch != 30 || sc.PerPlayerBatch != 20 {
		t.Fatalf("batch settings %+v", sc)
	}
	if len(sc.Resources) != len(game.DefaultResourceSpecs) {
		t.Fatalf("resources=%d want %d", len(sc.Resources), len(game.DefaultResourceSpecs))
	}
	for i, want := range game.DefaultResourceSpecs {
		if sc.Resources[i] != want {
			t.Fatalf("resource %d = %+v want %+v", i, sc.Resources[i], want)
		}
	}
	if sc.AI.Proximity[game.Easy] != 3 || sc.AI.Proximity[game.Medium] != 5 {
		t.Fatalf("proximity=%v", sc.AI.Proximity)
	}
	if sc.AI.Hesitation[game.Easy] != 0.10 || sc.AI.MaxIterations != 1000 {
		t.Fatalf("ai=%+v", sc.AI)
	}
	if cfg.Server.MaxPlayers != 4 || cfg.Log.Format != "text" {
		t.Fatalf("server=%+v log=%+v", cfg.Server, cfg.Log)
	}
}

func TestLoad_OverlayKeepsUnsetDefaults(t *testing.T) {
	path := writeConfig(t, `
board:
  width: 40
round:
  move_interval: 150ms
ai:
  proximity:
    easy: 2
log:
  level: debug
  format: pretty
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Board.Width != 40 || cfg.Board.Height != 26 {
		t.Fatalf("board=%+v", cfg.Board)
	}
	if cfg.Round.MoveInterval != 150*time.Millisecond || cfg.Round.Countdown != 3 {
		t.Fatalf("round=%+v", cfg.Round)
	}
	ac := cfg.AIConfig()
	if ac.Proximity[game.Easy] != 2 || ac.Proximity[game.Medium] != 5 {
		t.Fatalf("proximity=%v", ac.Proximity)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "pretty" {
		t.Fatalf("log=%+v", cfg.Log)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"tiny board":            "board: {width: 5}\n",
		"default not allowed":   "round: {default_duration: 90}\n",
		"slow factor":           "round: {speedup_factor: 0.5}\n",
		"poll too long":         "round: {poll_interval: 150ms}\n",
		"unknown tier":          "ai: {hesitation: {expert: 0.1}}\n",
		"too many players":      "server: {max_players: 6}\n",
		"bad log format":        "log: {format: xml}\n",
		"unknown resource":      "resources: {types: [{type: bomb, probability: 1}]}\n",
		"buff without duration": "resources: {types: [{type: speedup, probability: 1, speed_multiplier: 1.5}]}\n",
		"over one": `
resources:
  types:
    - {type: plain, probability: 0.9, score: 1}
    - {type: teleport, probability: 0.2, score: 10}
`,
	}
	for name, body := range cases {
		_, err := Load(writeConfig(t, body))
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: err=%v want ErrInvalid", name, err)
		}
	}
}

func TestLoad_ResourceTableReplacesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
resources:
  types:
    - {type: plain, probability: 0.5, score: 1}
    - {type: teleport, probability: 0.5, score: 10}
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	specs := cfg.ResourceSpecs()
	if len(specs) != 2 || specs[1].Type != game.Teleport || specs[1].Score != 10 {
		t.Fatalf("specs=%+v", specs)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
