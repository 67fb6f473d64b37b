package q931

import (
	"testing"
	"time"

	"github.com/pascaldekloe/isdnsig/internal/sched"
)

func newTestCall(t *testing.T, side Side) (*Call, *sched.Scheduler, *[]Message) {
	t.Helper()
	sc := sched.New()
	var sent []Message
	call := NewCall(CallRef{Len: 2, Value: 1}, side, VariantEuroISDNE1, sc, func(m Message) {
		sent = append(sent, m)
	})
	return call, sc, &sent
}

// TestScenarioS1 matches spec.md scenario S1: incoming SETUP, ANSWER,
// then a peer DISCONNECT/RELEASE hangup sequence.
func TestScenarioS1(t *testing.T) {
	call, _, sent := newTestCall(t, Network)

	b := newBuilder(DiscQ931, call.CallRef, Setup)
	mustAdd(t, b, IEBearerCapability, EncodeBearerCapability(BearerCapability{InfoTransferCap: ITCSpeech}))
	mustAdd(t, b, IEChannelID, EncodeChannelIDNumber(true, true, 1))
	mustAdd(t, b, IECallingPartyNumber, EncodeNumber(Number{Type: TypeNational, Plan: PlanISDN, Digits: "5551212"}, true))
	mustAdd(t, b, IECalledPartyNumber, EncodeNumber(Number{Type: TypeUnknown, Plan: PlanISDN, Digits: "8000"}, false))
	call.ReceiveSetup(b.build())

	if call.State != StateCallPresent {
		t.Fatalf("state = %s, want CallPresent", call.State)
	}
	if len(call.Events) != 1 || call.Events[0].Kind != EventRing {
		t.Fatalf("events = %+v, want one RING", call.Events)
	}
	if call.Calling.Number.Digits != "5551212" || call.Called.Number.Digits != "8000" {
		t.Fatalf("got calling=%q called=%q", call.Calling.Number.Digits, call.Called.Number.Digits)
	}
	call.Events = nil

	call.Answer()
	if call.State != StateConnectRequest {
		t.Fatalf("state = %s, want ConnectRequest", call.State)
	}
	if len(*sent) != 1 || (*sent)[0].Type != Connect {
		t.Fatalf("sent = %v, want one CONNECT", *sent)
	}
	*sent = nil

	ackB := newBuilder(DiscQ931, call.CallRef, ConnectAcknowledge)
	call.ReceiveConnectAck(ackB.build())
	if call.State != StateActive {
		t.Fatalf("state = %s, want Active", call.State)
	}
	call.Events = nil

	disc := newBuilder(DiscQ931, call.CallRef, Disconnect)
	mustAdd(t, disc, IECause, EncodeCause(NewCause(LocUser, CauseNormalClearing)))
	call.ReceiveDisconnect(disc.build())
	if call.State != StateDisconnectIndication {
		t.Fatalf("state = %s, want DisconnectIndication", call.State)
	}
	if len(call.Events) != 1 || call.Events[0].Kind != EventHangupReq || call.Events[0].Cause.Value != CauseNormalClearing {
		t.Fatalf("events = %+v", call.Events)
	}
	call.Events = nil
	*sent = nil

	call.Hangup(NewCause(LocUser, CauseNormalClearing))
	if len(*sent) != 1 || (*sent)[0].Type != Release {
		t.Fatalf("sent = %v, want one RELEASE", *sent)
	}
	*sent = nil

	rc := newBuilder(DiscQ931, call.CallRef, ReleaseComplete)
	call.ReceiveReleaseComplete(rc.build())
	if !call.Destroyed() {
		t.Fatal("call not destroyed after RELEASE_COMPLETE")
	}
	if len(call.Events) != 1 || call.Events[0].Kind != EventHangupAck {
		t.Fatalf("events = %+v, want one HANGUP_ACK", call.Events)
	}
}

// TestScenarioS2 matches spec.md scenario S2: outgoing SETUP, T303
// expires twice, call clears with cause 18.
func TestScenarioS2(t *testing.T) {
	base := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	call, sc, sent := newTestCall(t, User)
	sc.SetClock(func() time.Time { return base })

	call.Setup(Number{Type: TypeUnknown, Plan: PlanISDN, Digits: "1234"}, BearerCapability{InfoTransferCap: ITCSpeech})
	if call.State != StateCallInitiated {
		t.Fatalf("state = %s, want CallInitiated", call.State)
	}
	setups := 0
	for _, m := range *sent {
		if m.Type == Setup {
			setups++
		}
	}
	if setups != 1 {
		t.Fatalf("got %d SETUPs, want 1", setups)
	}

	now := base
	for i := 0; i < 2; i++ {
		now = now.Add(DefaultT303 + time.Millisecond)
		for sc.RunDue(now) {
		}
	}

	setups = 0
	for _, m := range *sent {
		if m.Type == Setup {
			setups++
		}
	}
	if setups != 2 {
		t.Fatalf("got %d SETUPs on the wire, want 2", setups)
	}
	if !call.Destroyed() {
		t.Fatal("call not destroyed after second T303 expiry")
	}
	if len(call.Events) != 1 || call.Events[0].Kind != EventHangup || call.Events[0].Cause.Value != CauseNoUserResponding {
		t.Fatalf("events = %+v, want one HANGUP cause 18", call.Events)
	}
}

// TestScenarioS4 matches spec.md scenario S4: HOLD/RETRIEVE round trip.
func TestScenarioS4(t *testing.T) {
	call, _, sent := newTestCall(t, User)
	call.State = StateActive
	call.Channel = ChannelID{Exclusive: true, PRI: true, Number: 3}

	if ok := call.Hold(); !ok {
		t.Fatal("Hold refused from Active state")
	}
	if call.HoldState != HoldReq {
		t.Fatalf("hold state = %s, want Hold-Req", call.HoldState)
	}
	if len(*sent) != 1 || (*sent)[0].Type != Hold {
		t.Fatalf("sent = %v, want one HOLD", *sent)
	}
	*sent = nil

	ack := newBuilder(DiscQ931, call.CallRef, HoldAck)
	call.ReceiveHoldAck(ack.build())
	if call.HoldState != CallHeld {
		t.Fatalf("hold state = %s, want Call-Held", call.HoldState)
	}
	if call.Channel.Number != 0 {
		t.Fatalf("channel = %+v, want zeroed while held", call.Channel)
	}
	if len(call.Events) != 1 || call.Events[0].Kind != EventHoldAck {
		t.Fatalf("events = %+v, want one HOLD_ACK", call.Events)
	}
	call.Events = nil

	if ok := call.Retrieve(3); !ok {
		t.Fatal("Retrieve refused from Call-Held state")
	}
	if call.HoldState != RetrieveReq {
		t.Fatalf("hold state = %s, want Retrieve-Req", call.HoldState)
	}
	*sent = nil

	retAck := newBuilder(DiscQ931, call.CallRef, RetrieveAck)
	mustAdd(t, retAck, IEChannelID, EncodeChannelIDNumber(true, true, 3))
	call.ReceiveRetrieveAck(retAck.build())
	if call.HoldState != HoldIdle {
		t.Fatalf("hold state = %s, want Idle", call.HoldState)
	}
	if call.Channel.Number != 3 {
		t.Fatalf("channel = %+v, want restored to 3", call.Channel)
	}
}

// TestScenarioS6Recovery and TestScenarioS6Expiry match spec.md scenario
// S6: T309 recovery on layer-2 loss for an Active call. This one covers
// the recovery branch.
func TestScenarioS6Recovery(t *testing.T) {
	call, _, sent := newTestCall(t, Network)
	call.State = StateActive

	call.LinkDown(false)
	if call.timerKind != timerT309 {
		t.Fatal("T309 not armed on link-down for Active call")
	}

	call.LinkUp()
	if call.timerKind == timerT309 {
		t.Fatal("T309 still armed after LinkUp")
	}
	if len(*sent) != 1 || (*sent)[0].Type != Status {
		t.Fatalf("sent = %v, want one STATUS", *sent)
	}
}

func TestScenarioS6Expiry(t *testing.T) {
	base := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	call, sc, _ := newTestCall(t, Network)
	sc.SetClock(func() time.Time { return base })
	call.State = StateActive

	call.LinkDown(false)
	for sc.RunDue(base.Add(DefaultT309 + time.Millisecond)) {
	}

	if !call.Destroyed() {
		t.Fatal("call not cleared after T309 expiry")
	}
	if len(call.Events) != 1 || call.Events[0].Kind != EventHangup || call.Events[0].Cause.Value != CauseDestOutOfOrder {
		t.Fatalf("events = %+v, want one HANGUP cause 27", call.Events)
	}
}

func TestHoldRefusedOutsideEligibleState(t *testing.T) {
	call, _, _ := newTestCall(t, User)
	call.State = StateNull
	if call.Hold() {
		t.Fatal("Hold accepted from Null state")
	}
}
