package service

import (
	"context"
	"testing"

	"set_and_wait/internal/models"
)

func TestEventBridge_Publish(t *testing.T) {
	cases := []struct {
		ev     HostEvent
		aborts bool
	}{
		{HostConnected, false},
		{HostPrintStarted, false},
		{HostPrintDone, false},
		{HostDisconnecting, true},
		{HostPrintCancelling, true},
		{HostError, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.ev), func(t *testing.T) {
			waiter := &fakeWaiter{}
			events := &fakeEventRepo{}
			b := NewEventBridge(waiter, events, nil)

			b.Publish(tc.ev)

			want := 0
			if tc.aborts {
				want = 1
			}
			if got := waiter.abortAllCount(); got != want {
				t.Fatalf("AbortAll calls: got %d, want %d", got, want)
			}
			if tc.aborts && waiter.lastActor() != models.HostActor(string(tc.ev)) {
				t.Fatalf("AbortAll actor: got %q", waiter.lastActor())
			}
			if len(events.appended) != 1 {
				t.Fatalf("expected one logged event, got %d", len(events.appended))
			}
			ev := events.appended[0]
			if ev.Type != models.EventHostEvent || ev.EventID == "" {
				t.Fatalf("unexpected event: %+v", ev)
			}
			meta := ev.Metadata.(map[string]any)
			if meta["event"] != string(tc.ev) || meta["aborts"] != tc.aborts {
				t.Fatalf("unexpected metadata: %#v", meta)
			}
		})
	}
}

func TestEventBridge_AbortsRealWaits(t *testing.T) {
	src := &scriptedSource{readings: []float64{20}, status: idleLink()}
	c, events := newTestController(src)
	b := NewEventBridge(c, nil, nil)

	src.onSample = func(n int) {
		if n == 3 {
			b.Publish(HostDisconnecting)
		}
	}
	out, err := c.RunWait(context.Background(), bedRequest(60))
	if err != nil || out != models.OutcomeAborted {
		t.Fatalf("expected aborted, got %v %v", out, err)
	}
	if c.Waiting() {
		t.Fatalf("waiting must be off after disconnect")
	}
	last := events.appended[len(events.appended)-1]
	meta := last.Metadata.(map[string]any)
	if last.Type != models.EventWaitAborted || meta["actor"] != "host:DISCONNECTING" {
		t.Fatalf("abort not attributed to the host event: %+v", last)
	}
}
