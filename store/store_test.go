package store

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brensch/snekarena/ai"
	"github.com/brensch/snekarena/game"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func sampleRow(round string, tick int64) DecisionRow {
	return DecisionRow{
		RoundID:    round,
		Tick:       tick,
		Bot:        "hard-bot",
		Tier:       "hard",
		Behavior:   "aggressive",
		Direction:  "left",
		Method:     "path",
		HasTarget:  true,
		TargetX:    4,
		TargetY:    9,
		PathLen:    7,
		Iterations: 31,
		ElapsedUS:  120,
		RecordedAt: 1700000000000 + tick,
	}
}

func TestRowFromDecision(t *testing.T) {
	d := ai.Decision{
		Bot:        "b1",
		Profile:    game.BotProfile{Tier: game.Medium, Behavior: game.BoldFast},
		Direction:  game.Right,
		Method:     ai.MethodDirect,
		Target:     game.Point{X: 3, Y: 8},
		HasTarget:  true,
		PathLen:    0,
		Iterations: 0,
		Elapsed:    1500 * time.Microsecond,
	}
	row := RowFromDecision("r1", 42, d, 99)
	if row.RoundID != "r1" || row.Tick != 42 || row.Bot != "b1" || row.RecordedAt != 99 {
		t.Fatalf("row=%+v", row)
	}
	if row.Tier != "medium" || row.Behavior != "bold" || row.Direction != "right" || row.Method != "direct" {
		t.Fatalf("labels=%+v", row)
	}
	if row.TargetX != 3 || row.TargetY != 8 || row.ElapsedUS != 1500 {
		t.Fatalf("target/elapsed=%+v", row)
	}

	d.HasTarget = false
	if row := RowFromDecision("r1", 1, d, 0); row.TargetX != 0 || row.TargetY != 0 {
		t.Fatalf("untargeted row kept coordinates: %+v", row)
	}
}

func TestBatchWriter_PublishesAtomically(t *testing.T) {
	dir := t.TempDir()
	bw, err := NewBatchWriter(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rows := []DecisionRow{sampleRow("a", 1), sampleRow("a", 2), sampleRow("b", 1)}
	if err := bw.WriteRows(rows); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(bw.OutPath()); !os.IsNotExist(err) {
		t.Fatalf("output visible before finalize: %v", err)
	}
	if bw.Rounds() != 2 {
		t.Fatalf("rounds=%d want 2", bw.Rounds())
	}

	path, n, err := bw.Finalize()
	if err != nil || n != 3 || path == "" {
		t.Fatalf("finalize path=%q n=%d err=%v", path, n, err)
	}
	tmp, _ := os.ReadDir(filepath.Join(dir, "tmp"))
	if len(tmp) != 0 {
		t.Fatalf("tmp not empty: %d files", len(tmp))
	}

	got, err := ReadDecisions(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("rows=%d want %d", len(got), len(rows))
	}
	for i := range rows {
		if got[i] != rows[i] {
			t.Fatalf("row %d = %+v want %+v", i, got[i], rows[i])
		}
	}

	if path, n, err := bw.Finalize(); path != "" || n != 0 || err != nil {
		t.Fatalf("second finalize path=%q n=%d err=%v", path, n, err)
	}
	if err := bw.WriteRows(rows); err == nil {
		t.Fatalf("write after finalize succeeded")
	}
}

func TestBatchWriter_EmptyBatchLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	bw, err := NewBatchWriter(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	path, n, err := bw.Finalize()
	if path != "" || n != 0 || err != nil {
		t.Fatalf("path=%q n=%d err=%v", path, n, err)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*.parquet"))
	tmp, _ := os.ReadDir(filepath.Join(dir, "tmp"))
	if len(files) != 0 || len(tmp) != 0 {
		t.Fatalf("files=%v tmp=%d", files, len(tmp))
	}
}

func TestRecorder_BatchesByRowsAndRound(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, 2, 16, quiet())
	batches := make(chan int, 8)
	rec.OnBatch = func(_ string, rows int) { batches <- rows }

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- rec.Run(ctx) }()

	wait := func(want int) {
		t.Helper()
		select {
		case n := <-batches:
			if n != want {
				t.Fatalf("batch rows=%d want %d", n, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("no batch written")
		}
	}

	d := ai.Decision{Bot: "b", Profile: game.BotProfile{Tier: game.Easy, Behavior: game.SafeEfficient}, Method: ai.MethodKeep}
	rec.RecordDecision("r1", 1, d)
	rec.RecordDecision("r1", 2, d)
	wait(2)
	rec.RecordDecision("r1", 3, d)
	rec.FlushRound("r1")
	wait(1)
	rec.RecordDecision("r2", 1, d)

	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("run: %v", err)
	}
	wait(1)

	if rec.Written() != 4 || rec.Dropped() != 0 {
		t.Fatalf("written=%d dropped=%d", rec.Written(), rec.Dropped())
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if len(files) != 3 {
		t.Fatalf("files=%d want 3", len(files))
	}
	if rec.Record(sampleRow("late", 1)) {
		t.Fatalf("record accepted after run exited")
	}
}

func TestRecorder_RecordNeverBlocks(t *testing.T) {
	rec := NewRecorder(t.TempDir(), 10, 2, quiet())
	for i := 0; i < 2; i++ {
		if !rec.Record(sampleRow("r", int64(i))) {
			t.Fatalf("record %d rejected with room in the buffer", i)
		}
	}
	if rec.Record(sampleRow("r", 3)) {
		t.Fatalf("record accepted on a full buffer")
	}
	rec.FlushRound("r")
	if rec.Dropped() != 1 {
		t.Fatalf("dropped=%d want 1", rec.Dropped())
	}
}
