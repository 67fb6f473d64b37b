package isdnsig

import (
	"testing"
	"time"

	"github.com/pascaldekloe/isdnsig/internal/config"
	"github.com/pascaldekloe/isdnsig/internal/duplex"
	"github.com/pascaldekloe/isdnsig/q921"
	"github.com/pascaldekloe/isdnsig/q931"
)

func testConfig(network bool) config.Config {
	return config.Config{
		Link: q921.Config{Network: network},
		T303: q931.DefaultT303,
		T305: q931.DefaultT305,
		T308: q931.DefaultT308,
		T309: q931.DefaultT309,
		T310: q931.DefaultT310,
		T313: q931.DefaultT313,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func takeUntilCall(t *testing.T, ctl *Controller, kind q931.EventKind, timeout time.Duration) Event {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, e := range ctl.TakeEvents() {
			if e.Kind == EventCall && e.Call.Kind == kind {
				return e
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("event %v not observed before timeout", kind)
	return Event{}
}

// TestControllerEndToEndCall exercises a full network/user pair across
// real q921.Link handshakes and q931.Call state machines, wired only
// through Controller's public facade: link establishment, an outgoing
// SETUP answered on the peer, and the resulting ANSWER notification.
func TestControllerEndToEndCall(t *testing.T) {
	netEnd, userEnd := duplex.Pipe()

	netCtl := New(testConfig(true), netEnd, nil)
	userCtl := New(testConfig(false), userEnd, nil)

	go netCtl.ReadLoop()
	go userCtl.ReadLoop()

	userCtl.Establish()

	waitFor(t, time.Second, func() bool {
		return netCtl.LinkState() == q921.MultipleFrameEstablished &&
			userCtl.LinkState() == q921.MultipleFrameEstablished
	})

	called := q931.Number{Valid: true, Digits: "2000"}
	bearer := q931.BearerCapability{InfoTransferCap: q931.ITCSpeech}
	ref := userCtl.Originate(called, bearer, q931.ChannelID{Number: 1})

	ring := takeUntilCall(t, netCtl, q931.EventRing, time.Second)
	if ring.Call.Called.Digits != "2000" {
		t.Errorf("called number = %q, want 2000", ring.Call.Called.Digits)
	}

	if err := netCtl.Answer(ring.CallRef); err != nil {
		t.Fatal(err)
	}

	answer := takeUntilCall(t, userCtl, q931.EventAnswer, time.Second)
	_ = answer

	if err := userCtl.ConnectAck(ref); err != nil {
		t.Fatal(err)
	}

	waitFor(t, time.Second, func() bool {
		s, ok := netCtl.CallState(ring.CallRef)
		return ok && s == q931.StateActive
	})

	state, ok := userCtl.CallState(ref)
	if !ok {
		t.Fatal("originating call no longer tracked")
	}
	if state != q931.StateActive {
		t.Errorf("originating call state = %v, want Active", state)
	}

	netState, ok := netCtl.CallState(ring.CallRef)
	if !ok {
		t.Fatal("answering call no longer tracked")
	}
	if netState != q931.StateActive {
		t.Errorf("answering call state = %v, want Active", netState)
	}
}
