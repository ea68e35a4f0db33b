// Package store persists bot decision traces as zstd-compressed parquet
// batches.
package store

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/brensch/snekarena/ai"
)

// DecisionRow is one bot decision. Target fields are zero when the bot had
// no target.
type DecisionRow struct {
	RoundID    string `parquet:"round_id,dict"`
	Tick       int64  `parquet:"tick"`
	Bot        string `parquet:"bot,dict"`
	Tier       string `parquet:"tier,dict"`
	Behavior   string `parquet:"behavior,dict"`
	Direction  string `parquet:"direction,dict"`
	Method     string `parquet:"method,dict"`
	HasTarget  bool   `parquet:"has_target"`
	TargetX    int32  `parquet:"target_x"`
	TargetY    int32  `parquet:"target_y"`
	PathLen    int32  `parquet:"path_len"`
	Iterations int32  `parquet:"iterations"`
	ElapsedUS  int64  `parquet:"elapsed_us"`
	RecordedAt int64  `parquet:"recorded_at_ms"`
}

// SchemaVersion is stored in each file's key/value metadata.
const SchemaVersion = "decision_row_v1"

func RowFromDecision(roundID string, tick uint64, d ai.Decision, recordedAtMS int64) DecisionRow {
	row := DecisionRow{
		RoundID:    roundID,
		Tick:       int64(tick),
		Bot:        d.Bot,
		Tier:       d.Profile.Tier.String(),
		Behavior:   d.Profile.Behavior.String(),
		Direction:  d.Direction.String(),
		Method:     string(d.Method),
		HasTarget:  d.HasTarget,
		PathLen:    int32(d.PathLen),
		Iterations: int32(d.Iterations),
		ElapsedUS:  d.Elapsed.Microseconds(),
		RecordedAt: recordedAtMS,
	}
	if d.HasTarget {
		row.TargetX = d.Target.X
		row.TargetY = d.Target.Y
	}
	return row
}

// ReadDecisions loads every row from one batch file.
func ReadDecisions(path string) ([]DecisionRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[DecisionRow](pf)
	defer reader.Close()
	out := make([]DecisionRow, 0, int(pf.NumRows()))
	buf := make([]DecisionRow, 256)
	for {
		n, err := reader.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read rows: %w", err)
		}
	}
}
