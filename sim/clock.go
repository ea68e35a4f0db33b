package sim

import "time"

// Clock supplies time and tickers to the simulation.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SystemClock is the wall clock with monotonic readings.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTicker struct{ t *time.Ticker }

func (t systemTicker) C() <-chan time.Time { return t.t.C }
func (t systemTicker) Stop()               { t.t.Stop() }

// tickerChan returns t's channel, or nil so a select never picks it.
func tickerChan(t Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C()
}

func stopTicker(t *Ticker) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
