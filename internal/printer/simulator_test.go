package printer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"set_and_wait/internal/models"
)

// ---- Test doubles ----

type eventSink struct {
	mu     sync.Mutex
	events []LinkEvent
}

func (e *eventSink) on(ev LinkEvent) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *eventSink) list() []LinkEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]LinkEvent(nil), e.events...)
}

// ---- Tests ----

func TestSimulator_SendSetsTargets(t *testing.T) {
	sim := NewSimulator(2, true, nil, nil)
	ctx := context.Background()

	steps := []string{"M104 S200 T1", "M140 S60", "M141 S40", "T1", "M109 R180"}
	for _, s := range steps {
		if err := sim.Send(ctx, s); err != nil {
			t.Fatalf("Send(%q): %v", s, err)
		}
	}

	want := map[heaterKey]float64{
		{models.HeaterPrimary, 0}:   0,
		{models.HeaterPrimary, 1}:   180,
		{models.HeaterBed, 0}:       60,
		{models.HeaterEnclosure, 0}: 40,
	}
	for k, target := range want {
		r, err := sim.heaters.get(k.class, k.channel)
		if err != nil {
			t.Fatalf("get %v: %v", k, err)
		}
		if r.TargetC != target {
			t.Errorf("%s %d target: got %.1f, want %.1f", k.class, k.channel, r.TargetC, target)
		}
	}
	if sim.CurrentTool() != 1 {
		t.Fatalf("current tool: got %d, want 1", sim.CurrentTool())
	}
}

func TestSimulator_SendRejectsUnknownChannel(t *testing.T) {
	sim := NewSimulator(1, false, nil, nil)

	err := sim.Send(context.Background(), "M104 S200 T3")
	if !errors.Is(err, ErrChannelOutOfRange) {
		t.Fatalf("expected ErrChannelOutOfRange, got %v", err)
	}
	if err := sim.Send(context.Background(), "M141 S50"); !errors.Is(err, ErrChannelOutOfRange) {
		t.Fatalf("expected ErrChannelOutOfRange for missing chamber, got %v", err)
	}
}

func TestSimulator_StepRampsAndClamps(t *testing.T) {
	sim := NewSimulator(1, false, nil, nil)
	ctx := context.Background()
	_ = sim.Send(ctx, "M104 S30")
	_ = sim.Send(ctx, "M140 S20")

	sim.step(1, time.Now())

	tool, _ := sim.Actual(models.HeaterPrimary, 0)
	if want := AmbientC + rampRates[models.HeaterPrimary].up; tool != want {
		t.Fatalf("tool after 1s: got %.2f, want %.2f", tool, want)
	}
	bed, _ := sim.Actual(models.HeaterBed, 0)
	if want := AmbientC - rampRates[models.HeaterBed].down; bed != want {
		t.Fatalf("bed after 1s: got %.2f, want %.2f", bed, want)
	}

	sim.step(60, time.Now())
	tool, _ = sim.Actual(models.HeaterPrimary, 0)
	bed, _ = sim.Actual(models.HeaterBed, 0)
	if tool != 30 || bed != 20 {
		t.Fatalf("expected clamp to targets, got tool=%.2f bed=%.2f", tool, bed)
	}
}

func TestDriftToAmbient(t *testing.T) {
	if got := driftToAmbient(AmbientC+10, 4); got != AmbientC+6 {
		t.Fatalf("got %.2f", got)
	}
	if got := driftToAmbient(AmbientC+1, 10); got != AmbientC {
		t.Fatalf("expected clamp to AmbientC, got %.2f", got)
	}
	if got := driftToAmbient(AmbientC-3, 10); got != AmbientC-3 {
		t.Fatalf("did not expect change below ambient, got %.2f", got)
	}
}

func TestSimulator_OverheatRaisedOncePerExcursion(t *testing.T) {
	sink := &eventSink{}
	sim := NewSimulator(1, false, nil, sink.on)

	sim.detectOverheat(true)
	sim.detectOverheat(true)
	sim.detectOverheat(false)
	sim.detectOverheat(true)

	got := sink.list()
	if len(got) != 2 || got[0] != LinkError || got[1] != LinkError {
		t.Fatalf("expected two ERROR events, got %v", got)
	}
}

func TestSimulator_ProbesAndClose(t *testing.T) {
	sink := &eventSink{}
	sim := NewSimulator(1, false, nil, sink.on)

	_ = sim.Send(context.Background(), "M155 S2")
	if st := sim.TransportStatus(); !st.Operational || !st.AutoReporting {
		t.Fatalf("unexpected status %+v", st)
	}
	if err := sim.SendProbe(); err != nil {
		t.Fatalf("SendProbe: %v", err)
	}
	if sim.Probes() != 1 {
		t.Fatalf("probes: got %d, want 1", sim.Probes())
	}

	_ = sim.Close()
	_ = sim.Close()
	if st := sim.TransportStatus(); st.Operational || !st.Closing {
		t.Fatalf("expected closing status, got %+v", st)
	}
	if err := sim.SendProbe(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := sim.Send(context.Background(), "M104 S1"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if got := sink.list(); len(got) != 1 || got[0] != LinkDisconnected {
		t.Fatalf("expected one DISCONNECTED, got %v", got)
	}
}

func TestSimulator_RunStopsOnCancel(t *testing.T) {
	sink := &eventSink{}
	sim := NewSimulator(1, false, nil, sink.on)
	_ = sim.Send(context.Background(), "M104 S200")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sim.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if v, _ := sim.Actual(models.HeaterPrimary, 0); v > AmbientC {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("simulator did not heat")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if got := sink.list(); len(got) == 0 || got[0] != LinkConnected {
		t.Fatalf("expected CONNECTED first, got %v", got)
	}
}
