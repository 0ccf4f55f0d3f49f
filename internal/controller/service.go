// internal/controller/service.go
package controller

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/joshsymonds/mailrelay/internal/alert"
	"github.com/joshsymonds/mailrelay/internal/graph"
	"github.com/joshsymonds/mailrelay/internal/relay"
	"github.com/joshsymonds/mailrelay/internal/tick"
)

// Spec holds the timing and matching parameters for one controller run.
type Spec struct {
	Keyword            string
	PollInterval       time.Duration // cadence of mail checks
	RelayOnDuration    time.Duration // how long the relay stays on once triggered
	RelayCheckInterval time.Duration // cadence of relay-expiry checks
	StartupSettle      time.Duration // settle delay before the self-test pulse
	SelfTestPulse      time.Duration // duration of the startup relay pulse
	Tick               time.Duration // loop sleep granularity
}

// Service is the single control loop: it polls the mailbox, evaluates
// messages, and owns the relay activation window. All state is mutated
// from the one goroutine running Run.
type Service struct {
	Client graph.Client
	Relay  *relay.Driver
	Log    *slog.Logger
	Clock  func() time.Time
	Sleep  func(ctx context.Context, d time.Duration) error

	startupComplete bool
	activatedAt     time.Time // zero iff the relay is inactive
}

// NewService constructs a Service with sane defaults.
func NewService(client graph.Client, drv *relay.Driver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Client: client,
		Relay:  drv,
		Log:    logger,
		Clock:  time.Now,
		Sleep:  sleepContext,
	}
}

// Run executes the startup sequence and then the steady-state loop
// until the context is canceled. Per-cycle failures are logged and
// swallowed; the loop itself never fails.
func (s *Service) Run(ctx context.Context, spec Spec) error {
	if err := s.startup(ctx, spec); err != nil {
		return err
	}

	now := s.Clock()
	mailGate := tick.NewGate(spec.PollInterval, now)
	relayGate := tick.NewGate(spec.RelayCheckInterval, now)

	for {
		if err := s.Sleep(ctx, spec.Tick); err != nil {
			return err
		}
		now = s.Clock()
		if mailGate.Due(now) {
			s.CheckMail(ctx, spec)
		}
		if relayGate.Due(now) {
			s.CheckRelayTimer(spec)
		}
	}
}

// startup initializes the relay to off, waits out the settle delay,
// pulses the relay once as a physical self-test, and performs one
// immediate mail check. Activation is not permitted until it finishes.
func (s *Service) startup(ctx context.Context, spec Spec) error {
	s.Relay.Set(false)

	s.Log.Info("startup settle", "delay", spec.StartupSettle)
	if err := s.Sleep(ctx, spec.StartupSettle); err != nil {
		return err
	}

	s.Relay.Set(true)
	if err := s.Sleep(ctx, spec.SelfTestPulse); err != nil {
		s.Relay.Set(false)
		return err
	}
	s.Relay.Set(false)

	s.startupComplete = true
	s.Log.Info("startup complete")

	s.CheckMail(ctx, spec)
	return nil
}

// CheckMail runs one full mail-check cycle: list unread, evaluate each
// message, conditionally activate the relay, and mark messages read.
// Any failure leaves the relay state untouched and is retried on the
// next cycle.
func (s *Service) CheckMail(ctx context.Context, spec Spec) {
	log := s.Log.With("cycle", uuid.NewString())

	msgs, err := s.Client.ListUnread(ctx)
	if err != nil {
		log.Error("mail check failed", "error", err)
		return
	}
	if len(msgs) == 0 {
		log.Debug("no unread messages")
		return
	}
	log.Info("unread messages found", "count", len(msgs))

	for _, msg := range msgs {
		if alert.Match(msg, spec.Keyword) && s.startupComplete {
			log.Warn("alert message detected", "from", msg.SenderAddress, "subject", msg.Subject)
			if !s.Relay.Active() {
				s.Relay.Set(true)
				s.activatedAt = s.Clock()
				log.Info("relay activated", "at", s.activatedAt, "duration", spec.RelayOnDuration)
			} else {
				// First trigger wins; the activation clock is not reset.
				log.Info("relay already active, keeping original activation time")
			}
		}
		if err := s.Client.MarkRead(ctx, msg.ID); err != nil {
			// Leaves the message unread; it will be reprocessed next
			// cycle (at-least-once semantics).
			log.Error("mark read failed", "id", msg.ID, "error", err)
		}
	}
}

// CheckRelayTimer forces the relay off once the on-duration has fully
// elapsed since activation.
func (s *Service) CheckRelayTimer(spec Spec) {
	if !s.startupComplete || !s.Relay.Active() || s.activatedAt.IsZero() {
		return
	}
	elapsed := s.Clock().Sub(s.activatedAt)
	if elapsed < spec.RelayOnDuration {
		return
	}
	s.Log.Info("relay on-duration reached", "elapsed", elapsed, "duration", spec.RelayOnDuration)
	s.Relay.Set(false)
	s.activatedAt = time.Time{}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
