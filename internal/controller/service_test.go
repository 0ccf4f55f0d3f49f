package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/joshsymonds/mailrelay/internal/graph"
	"github.com/joshsymonds/mailrelay/internal/relay"
)

type fakeClient struct {
	msgs    []graph.Message
	listErr error
	listN   int
	marked  []graph.MessageID
	markErr error
}

func (f *fakeClient) ListUnread(ctx context.Context) ([]graph.Message, error) {
	_ = ctx
	f.listN++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.msgs, nil
}

func (f *fakeClient) MarkRead(ctx context.Context, id graph.MessageID) error {
	_ = ctx
	f.marked = append(f.marked, id)
	return f.markErr
}

type testRig struct {
	svc  *Service
	fake *fakeClient
	pin  *gpiotest.Pin
	now  time.Time
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	r := &testRig{
		fake: &fakeClient{},
		pin:  &gpiotest.Pin{N: "GPIO17", Num: 17},
		now:  time.Unix(1700000000, 0),
	}
	drv := relay.NewDriver(r.pin, slogDiscard())
	r.svc = NewService(r.fake, drv, slogDiscard())
	r.svc.Clock = func() time.Time { return r.now }
	r.svc.Sleep = func(ctx context.Context, d time.Duration) error {
		_ = ctx
		r.now = r.now.Add(d)
		return nil
	}
	return r
}

func TestCheckMailActivatesRelay(t *testing.T) {
	r := newTestRig(t)
	r.svc.startupComplete = true
	r.fake.msgs = []graph.Message{
		{ID: "m1", Subject: "anything at all", SenderAddress: "a@example.com"},
	}

	r.svc.CheckMail(context.Background(), Spec{Keyword: "", RelayOnDuration: 3 * time.Minute})

	if !r.svc.Relay.Active() {
		t.Fatalf("relay inactive after triggering message")
	}
	if r.pin.L != gpio.High {
		t.Fatalf("pin level %v, want High", r.pin.L)
	}
	if !r.svc.activatedAt.Equal(r.now) {
		t.Fatalf("activatedAt = %v, want %v", r.svc.activatedAt, r.now)
	}
	if len(r.fake.marked) != 1 || r.fake.marked[0] != "m1" {
		t.Fatalf("marked = %v, want [m1]", r.fake.marked)
	}
}

func TestCheckMailKeywordFilter(t *testing.T) {
	r := newTestRig(t)
	r.svc.startupComplete = true
	r.fake.msgs = []graph.Message{
		{ID: "m1", Subject: "newsletter", BodyPreview: "weekly digest"},
		{ID: "m2", Subject: "status", BodyPreview: "pump ALERT raised"},
	}

	r.svc.CheckMail(context.Background(), Spec{Keyword: "alert"})

	if !r.svc.Relay.Active() {
		t.Fatalf("relay inactive despite matching message")
	}
	// Both messages are marked read, matching or not.
	if len(r.fake.marked) != 2 {
		t.Fatalf("marked %d messages, want 2", len(r.fake.marked))
	}
}

func TestCheckMailNoMatchLeavesRelayOff(t *testing.T) {
	r := newTestRig(t)
	r.svc.startupComplete = true
	r.fake.msgs = []graph.Message{
		{ID: "m1", Subject: "newsletter", BodyPreview: "weekly digest"},
	}

	r.svc.CheckMail(context.Background(), Spec{Keyword: "alert"})

	if r.svc.Relay.Active() {
		t.Fatalf("relay active without a matching message")
	}
	if len(r.fake.marked) != 1 {
		t.Fatalf("non-matching message was not marked read")
	}
}

func TestCheckMailFirstTriggerWins(t *testing.T) {
	r := newTestRig(t)
	r.svc.startupComplete = true
	r.fake.msgs = []graph.Message{{ID: "m1", Subject: "alert one"}}

	r.svc.CheckMail(context.Background(), Spec{Keyword: ""})
	first := r.svc.activatedAt

	// A later triggering message must not reset the activation clock.
	r.now = r.now.Add(90 * time.Second)
	r.fake.msgs = []graph.Message{{ID: "m2", Subject: "alert two"}}
	r.svc.CheckMail(context.Background(), Spec{Keyword: ""})

	if !r.svc.activatedAt.Equal(first) {
		t.Fatalf("activatedAt moved from %v to %v", first, r.svc.activatedAt)
	}
	if !r.svc.Relay.Active() {
		t.Fatalf("relay deactivated by second trigger")
	}
}

func TestCheckMailListFailureLeavesRelayUnchanged(t *testing.T) {
	r := newTestRig(t)
	r.svc.startupComplete = true
	r.fake.listErr = errors.New("http 500")

	r.svc.CheckMail(context.Background(), Spec{Keyword: ""})
	if r.svc.Relay.Active() {
		t.Fatalf("relay activated on list failure")
	}

	// An already-active relay also stays untouched.
	r.fake.listErr = nil
	r.fake.msgs = []graph.Message{{ID: "m1"}}
	r.svc.CheckMail(context.Background(), Spec{Keyword: ""})
	r.fake.listErr = errors.New("http 500")
	r.svc.CheckMail(context.Background(), Spec{Keyword: ""})
	if !r.svc.Relay.Active() {
		t.Fatalf("active relay deactivated on list failure")
	}
}

func TestCheckMailMarkReadFailureDoesNotAffectRelay(t *testing.T) {
	r := newTestRig(t)
	r.svc.startupComplete = true
	r.fake.msgs = []graph.Message{{ID: "m1", Subject: "alert"}}
	r.fake.markErr = errors.New("http 503")

	r.svc.CheckMail(context.Background(), Spec{Keyword: "alert"})

	if !r.svc.Relay.Active() {
		t.Fatalf("mark-read failure prevented relay activation")
	}
	if r.svc.activatedAt.IsZero() {
		t.Fatalf("activatedAt not recorded")
	}
}

func TestCheckMailBeforeStartupDoesNotActivate(t *testing.T) {
	r := newTestRig(t)
	r.fake.msgs = []graph.Message{{ID: "m1", Subject: "alert"}}

	r.svc.CheckMail(context.Background(), Spec{Keyword: ""})

	if r.svc.Relay.Active() {
		t.Fatalf("relay activated before startup completed")
	}
	// Messages are still consumed.
	if len(r.fake.marked) != 1 {
		t.Fatalf("message not marked read before startup")
	}
}

func TestCheckRelayTimerBoundary(t *testing.T) {
	r := newTestRig(t)
	r.svc.startupComplete = true
	spec := Spec{Keyword: "", RelayOnDuration: 3 * time.Minute}

	r.fake.msgs = []graph.Message{{ID: "m1"}}
	r.svc.CheckMail(context.Background(), spec)
	activated := r.svc.activatedAt

	// One millisecond short of the on-duration: stays active.
	r.now = activated.Add(3*time.Minute - time.Millisecond)
	r.svc.CheckRelayTimer(spec)
	if !r.svc.Relay.Active() {
		t.Fatalf("relay deactivated before on-duration elapsed")
	}

	// Exactly at the on-duration: forced off, timestamp cleared.
	r.now = activated.Add(3 * time.Minute)
	r.svc.CheckRelayTimer(spec)
	if r.svc.Relay.Active() {
		t.Fatalf("relay still active after on-duration elapsed")
	}
	if r.pin.L != gpio.Low {
		t.Fatalf("pin level %v after deactivation, want Low", r.pin.L)
	}
	if !r.svc.activatedAt.IsZero() {
		t.Fatalf("activatedAt not cleared: %v", r.svc.activatedAt)
	}
}

func TestCheckRelayTimerInactiveNoop(t *testing.T) {
	r := newTestRig(t)
	r.svc.startupComplete = true
	r.svc.CheckRelayTimer(Spec{RelayOnDuration: 3 * time.Minute})
	if r.svc.Relay.Active() {
		t.Fatalf("timer check activated an inactive relay")
	}
}

func TestStartupSequence(t *testing.T) {
	r := newTestRig(t)
	var sleeps []time.Duration
	inner := r.svc.Sleep
	r.svc.Sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return inner(ctx, d)
	}

	spec := Spec{StartupSettle: 30 * time.Second, SelfTestPulse: time.Second}
	if err := r.svc.startup(context.Background(), spec); err != nil {
		t.Fatalf("startup: %v", err)
	}

	if !r.svc.startupComplete {
		t.Fatalf("startup did not complete")
	}
	if r.svc.Relay.Active() || r.pin.L != gpio.Low {
		t.Fatalf("relay not off after startup")
	}
	if r.fake.listN != 1 {
		t.Fatalf("expected one immediate mail check, got %d", r.fake.listN)
	}
	want := []time.Duration{30 * time.Second, time.Second}
	if len(sleeps) != len(want) || sleeps[0] != want[0] || sleeps[1] != want[1] {
		t.Fatalf("sleeps = %v, want %v", sleeps, want)
	}
}

func TestStartupCanceled(t *testing.T) {
	r := newTestRig(t)
	r.svc.Sleep = func(ctx context.Context, d time.Duration) error {
		_ = ctx
		_ = d
		return context.Canceled
	}

	err := r.svc.startup(context.Background(), Spec{StartupSettle: 30 * time.Second})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("startup error = %v, want context.Canceled", err)
	}
	if r.svc.startupComplete {
		t.Fatalf("startup marked complete despite cancellation")
	}
}

func TestRunGatesMailChecks(t *testing.T) {
	r := newTestRig(t)
	stop := errors.New("stop")

	ticks := 0
	r.svc.Sleep = func(ctx context.Context, d time.Duration) error {
		_ = ctx
		r.now = r.now.Add(d)
		if d == time.Second { // steady-state tick
			ticks++
			if ticks > 10 {
				return stop
			}
		}
		return nil
	}

	spec := Spec{
		Keyword:            "",
		PollInterval:       5 * time.Second,
		RelayOnDuration:    3 * time.Minute,
		RelayCheckInterval: 2 * time.Second,
		StartupSettle:      0,
		SelfTestPulse:      0,
		Tick:               time.Second,
	}
	if err := r.svc.Run(context.Background(), spec); !errors.Is(err, stop) {
		t.Fatalf("run error = %v, want sentinel", err)
	}

	// One startup check plus gated steady-state checks at t=5s and t=10s.
	if r.fake.listN != 3 {
		t.Fatalf("list calls = %d, want 3", r.fake.listN)
	}
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
