package notify

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	auth "github.com/rideshare/go-rideshare-auth"
)

type BreakerConfig struct {
	Name        string
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// BreakerNotifier stops calling next after MaxFailures consecutive failures
// until Timeout has elapsed. While open, Send fails fast with
// gobreaker.ErrOpenState.
type BreakerNotifier struct {
	next auth.Notifier
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerNotifier(next auth.Notifier, cfg BreakerConfig, logger auth.Logger) *BreakerNotifier {
	if cfg.Name == "" {
		cfg.Name = "notifier"
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}

	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger != nil {
				logger.Warn("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
			}
		},
	}

	return &BreakerNotifier{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(st),
	}
}

func (n *BreakerNotifier) Send(ctx context.Context, msg auth.Message) error {
	_, err := n.cb.Execute(func() (any, error) {
		return nil, n.next.Send(ctx, msg)
	})
	return err
}

// State reports the breaker state.
func (n *BreakerNotifier) State() gobreaker.State {
	return n.cb.State()
}
