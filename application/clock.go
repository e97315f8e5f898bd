package application

import "time"

// Clock abstracts wall-clock time so the engine's scheduling logic
// (retransmit deadlines, ack-flush interval, heartbeat interval) can be
// driven by a fake clock in tests.
type Clock interface {
	Now() time.Time
}

// Timer abstracts a periodic ticker. Tick returns a channel that
// delivers a time.Time every d; production code backs it with
// time.NewTicker, tests back it with a channel they control directly.
type Timer interface {
	Tick(d time.Duration) <-chan time.Time
}
