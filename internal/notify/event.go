// Package notify fans bot events out to the log, external senders and
// in-process subscribers.
package notify

import (
	"fmt"
	"strings"

	"solana-dex-bot/internal/domain"
)

// EventType names a notification.
type EventType string

// Event types
const (
	EventPositionOpened  EventType = "position_opened"
	EventPositionClosed  EventType = "position_closed"
	EventSignalRejected  EventType = "signal_rejected"
	EventExecutionFailed EventType = "execution_failed"
	EventFeedError       EventType = "feed_error"
)

// KnownEventType reports whether name is a notification type.
func KnownEventType(name string) bool {
	switch EventType(name) {
	case EventPositionOpened, EventPositionClosed, EventSignalRejected,
		EventExecutionFailed, EventFeedError:
		return true
	}
	return false
}

// Event is one notification.
type Event struct {
	Type     EventType        `json:"type"`
	Time     int64            `json:"time"` // ms
	Mint     string           `json:"mint,omitempty"`
	Strategy string           `json:"strategy,omitempty"`
	Error    string           `json:"error,omitempty"`
	Position *domain.Position `json:"position,omitempty"`
	Signal   *SignalInfo      `json:"signal,omitempty"`
}

// SignalInfo is the wire form of a trade signal.
type SignalInfo struct {
	ID       string            `json:"id"`
	Type     domain.SignalType `json:"type"`
	Amount   float64           `json:"amount"`
	Reason   string            `json:"reason,omitempty"`
	Priority domain.Priority   `json:"priority"`
}

func signalInfo(sig domain.TradeSignal) *SignalInfo {
	return &SignalInfo{
		ID:       sig.ID,
		Type:     sig.Type,
		Amount:   sig.Amount,
		Reason:   sig.Reason,
		Priority: sig.Priority,
	}
}

// Text renders the event for humans.
func (e Event) Text() string {
	var b strings.Builder
	switch e.Type {
	case EventPositionOpened:
		fmt.Fprintf(&b, "Position opened: %s", e.Mint)
		if p := e.Position; p != nil {
			fmt.Fprintf(&b, "\nstrategy: %s\namount: %g @ %.10g SOL\ninvested: %.4f SOL", p.Strategy, p.Amount, p.EntryPrice, p.InvestedSol)
		}
	case EventPositionClosed:
		fmt.Fprintf(&b, "Position closed: %s", e.Mint)
		if p := e.Position; p != nil {
			fmt.Fprintf(&b, "\nstrategy: %s", p.Strategy)
			if p.ExitPrice != nil {
				fmt.Fprintf(&b, "\nexit: %.10g SOL (entry %.10g)", *p.ExitPrice, p.EntryPrice)
			}
			if p.RealizedPnL != nil {
				fmt.Fprintf(&b, "\npnl: %+.4f SOL", *p.RealizedPnL)
			}
		}
	case EventSignalRejected:
		fmt.Fprintf(&b, "Signal rejected: %s", e.Mint)
		e.writeSignal(&b)
	case EventExecutionFailed:
		fmt.Fprintf(&b, "Execution failed: %s", e.Mint)
		e.writeSignal(&b)
	case EventFeedError:
		b.WriteString("Feed error")
	default:
		b.WriteString(string(e.Type))
	}
	if e.Error != "" {
		fmt.Fprintf(&b, "\nerror: %s", e.Error)
	}
	return b.String()
}

func (e Event) writeSignal(b *strings.Builder) {
	if s := e.Signal; s != nil {
		fmt.Fprintf(b, "\n%s %s by %s", s.Type, formatAmount(s), e.Strategy)
		if s.Reason != "" {
			fmt.Fprintf(b, "\nreason: %s", s.Reason)
		}
	}
}

func formatAmount(s *SignalInfo) string {
	if s.Type == domain.SignalSell && s.Amount == domain.SellAll {
		return "all"
	}
	if s.Type == domain.SignalBuy {
		return fmt.Sprintf("%g SOL", s.Amount)
	}
	return fmt.Sprintf("%g tokens", s.Amount)
}
