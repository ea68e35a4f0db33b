package store

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/brensch/snekarena/ai"
)

type recorderItem struct {
	row   DecisionRow
	flush bool
}

// Recorder buffers decision rows off the simulation goroutine and writes
// them in batches. Record never blocks; rows that do not fit in the buffer
// are counted and dropped.
type Recorder struct {
	dir       string
	flushRows int
	logger    *slog.Logger
	now       func() time.Time

	in   chan recorderItem
	done chan struct{}

	dropped atomic.Int64
	written atomic.Int64

	// OnBatch, if set, is called from Run after each file is published.
	OnBatch func(path string, rows int)
}

func NewRecorder(dir string, flushRows, buffer int, logger *slog.Logger) *Recorder {
	if flushRows < 1 {
		flushRows = 4096
	}
	if buffer < 1 {
		buffer = flushRows
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		dir:       dir,
		flushRows: flushRows,
		logger:    logger,
		now:       time.Now,
		in:        make(chan recorderItem, buffer),
		done:      make(chan struct{}),
	}
}

func (r *Recorder) Record(row DecisionRow) bool {
	select {
	case <-r.done:
		r.dropped.Add(1)
		return false
	default:
	}
	select {
	case r.in <- recorderItem{row: row}:
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

func (r *Recorder) RecordDecision(roundID string, tick uint64, d ai.Decision) {
	r.Record(RowFromDecision(roundID, tick, d, r.now().UnixMilli()))
}

// FlushRound asks Run to write whatever it holds. A full buffer skips the
// request; those rows go out with the next batch.
func (r *Recorder) FlushRound(roundID string) {
	select {
	case r.in <- recorderItem{flush: true}:
	default:
		r.logger.Debug("trace flush skipped, buffer full", "round", roundID)
	}
}

func (r *Recorder) Dropped() int64 { return r.dropped.Load() }
func (r *Recorder) Written() int64 { return r.written.Load() }

// Run writes batches until ctx is cancelled, then drains the buffer and
// writes a final batch.
func (r *Recorder) Run(ctx context.Context) error {
	defer close(r.done)
	pending := make([]DecisionRow, 0, r.flushRows)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		r.write(pending)
		pending = pending[:0]
	}

	for {
		select {
		case <-ctx.Done():
		drain:
			for {
				select {
				case it := <-r.in:
					if !it.flush {
						pending = append(pending, it.row)
					}
				default:
					break drain
				}
			}
			flush()
			r.logger.Info("decision recorder stopped", "written", r.Written(), "dropped", r.Dropped())
			return nil
		case it := <-r.in:
			if it.flush {
				flush()
				continue
			}
			pending = append(pending, it.row)
			if len(pending) >= r.flushRows {
				flush()
			}
		}
	}
}

func (r *Recorder) write(rows []DecisionRow) {
	bw, err := NewBatchWriter(r.dir)
	if err != nil {
		r.logger.Error("open decision batch", "err", err)
		r.dropped.Add(int64(len(rows)))
		return
	}
	if err := bw.WriteRows(rows); err != nil {
		_, _, _ = bw.Finalize()
		r.logger.Error("write decision batch", "err", err)
		r.dropped.Add(int64(len(rows)))
		return
	}
	rounds := bw.Rounds()
	path, n, err := bw.Finalize()
	if err != nil {
		r.logger.Error("finalize decision batch", "err", err)
		r.dropped.Add(int64(len(rows)))
		return
	}
	r.written.Add(int64(n))
	r.logger.Info("decision batch written", "path", path, "rows", n, "rounds", rounds)
	if r.OnBatch != nil {
		r.OnBatch(path, n)
	}
}
