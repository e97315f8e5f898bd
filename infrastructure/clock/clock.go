// Package clock provides the production application.Clock/Timer
// implementations the engine runs against; tests substitute their own
// fakes instead of importing this package.
package clock

import (
	"time"

	"sipvpn/application"
)

// System implements application.Clock over the OS wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

var _ application.Clock = System{}

// Ticker implements application.Timer over time.NewTicker.
type Ticker struct{}

func (Ticker) Tick(d time.Duration) <-chan time.Time {
	return time.NewTicker(d).C
}

var _ application.Timer = Ticker{}
