package backtest

import (
	"sync/atomic"

	"hindsight/internal/domain"
)

// Observer receives run events from the orchestrator. Both methods are
// called synchronously from the replay loop, so implementations must not
// block; use ChannelObserver to hand events to a slow consumer.
type Observer interface {
	// OnTrade is called after each executed fill.
	OnTrade(trade domain.Trade)

	// OnReport is called once with the finished result. Observers must
	// treat the result as read-only.
	OnReport(result *domain.Result)
}

// Compile-time interface check.
var _ Observer = (*ChannelObserver)(nil)

// ChannelObserver bridges run events onto bounded channels. Sends never
// block: when a consumer falls behind, events are dropped and counted
// instead of stalling the replay loop.
type ChannelObserver struct {
	trades  chan domain.Trade
	reports chan *domain.Result
	dropped atomic.Uint64
}

// NewChannelObserver creates an observer whose trade channel buffers up to
// buffer events. Buffer values below 1 are raised to 1.
func NewChannelObserver(buffer int) *ChannelObserver {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelObserver{
		trades:  make(chan domain.Trade, buffer),
		reports: make(chan *domain.Result, 1),
	}
}

// Trades returns the channel of executed fills.
func (o *ChannelObserver) Trades() <-chan domain.Trade { return o.trades }

// Reports returns the channel carrying the final result.
func (o *ChannelObserver) Reports() <-chan *domain.Result { return o.reports }

// Dropped returns how many events were discarded because a channel was full.
func (o *ChannelObserver) Dropped() uint64 { return o.dropped.Load() }

// Close closes both channels. Call only after the run has returned.
func (o *ChannelObserver) Close() {
	close(o.trades)
	close(o.reports)
}

// OnTrade forwards the trade without blocking.
func (o *ChannelObserver) OnTrade(trade domain.Trade) {
	select {
	case o.trades <- trade:
	default:
		// Slow consumer, drop the event.
		o.dropped.Add(1)
	}
}

// OnReport forwards the result without blocking.
func (o *ChannelObserver) OnReport(result *domain.Result) {
	select {
	case o.reports <- result:
	default:
		o.dropped.Add(1)
	}
}
