package q931

import (
	"time"

	"github.com/pascaldekloe/isdnsig/internal/sched"
)

// Default timer values. A Call arms its timers with these constants
// directly, and so does the Controller's broadcast master: the per-timer
// durations in a Controller's configuration are not applied to calls.
// See spec.md §6 "Timers" and Q.931 annex C.
const (
	DefaultT303      = 4 * time.Second
	DefaultT305      = 30 * time.Second
	DefaultT308      = 4 * time.Second
	DefaultT309      = 6 * time.Second // suppressed under NFAS, see spec.md §4.6
	DefaultT310      = 30 * time.Second
	DefaultT312      = 6 * time.Second
	DefaultT313      = 4 * time.Second
	DefaultTHold     = 4 * time.Second
	DefaultTRetrieve = 4 * time.Second
)

// Sender transmits a built Q.931 message toward the peer. A Call never
// touches a q921.Link directly; the Controller supplies this function so
// call.go stays free of link-selection and broadcast-fan-out concerns.
type Sender func(m Message)

// EventKind classifies an upward-bound event a Call produces. See
// spec.md §4.6.
type EventKind int

const (
	EventRing EventKind = iota
	EventRinging
	EventProceeding
	EventProgress
	EventSetupAck
	EventAnswer
	EventConnectAck
	EventHangup
	EventHangupReq
	EventHangupAck
	EventInfoReceived
	EventNotify
	EventFacility
	EventKeypadDigit
	EventHoldAck
	EventHoldReject
	EventRetrieveAck
	EventRetrieveReject
	EventRestartAck
)

func (k EventKind) String() string {
	names := [...]string{
		"RING", "RINGING", "PROCEEDING", "PROGRESS", "SETUP_ACK", "ANSWER",
		"CONNECT_ACK", "HANGUP", "HANGUP_REQ", "HANGUP_ACK", "INFO_RECEIVED",
		"NOTIFY", "FACILITY", "KEYPAD_DIGIT", "HOLD_ACK", "HOLD_REJECT",
		"RETRIEVE_ACK", "RETRIEVE_REJECT", "RESTART_ACK",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "EVENT?"
}

// Event is one upward-bound notification produced by a Call's processing
// of a single Q.931 message, timer expiry, or facade request. See
// spec.md §4.6.
type Event struct {
	Kind     EventKind
	Channel  uint8
	Cause    CauseInfo
	Calling  Number
	Called   Number
	Redirect Redirecting
	Text     string // display / keypad / info payload, kind-dependent
	Facility []byte // raw Facility IE content for EventFacility, see rose
}

// Call is one Q.931 call-reference's state machine. See spec.md §3 "Data
// model" and §4.5.
type Call struct {
	CallRef CallRef
	Side    Side
	Variant Variant
	State   CallState

	HoldState HoldState

	Channel   ChannelID
	Bearer    BearerCapability
	Calling   PartyID
	Called    PartyID
	Connected PartyID
	Redirect  Redirecting
	Progress  ProgressIndicator
	Cause     CauseInfo

	heldChannel ChannelID
	retryCount  int

	// HangupFix selects the Q.931-conformant cause-to-message mapping
	// when true, or the legacy compatibility mapping (the default) when
	// false. See spec.md §9 Open Question #1: preserved for binary
	// compatibility with existing hosts.
	HangupFix bool

	// OverlapDial enables digit accumulation in Overlap-Receiving state.
	OverlapDial bool

	overlapDigits string

	sc   *sched.Scheduler
	send Sender

	timer     sched.ID
	timerKind timerKind

	// Events accumulates upward notifications produced by the most
	// recent call into Receive/timer/facade method; the Controller
	// drains it after each such call (drainCall, or absorbSubcallEvents
	// for broadcast subcalls). See spec.md §4.6 "at most one event
	// per poll".
	Events []Event

	// destroyed marks a Call no longer valid for facade operations, the
	// Go analogue of the pri_is_call_valid pool-membership check from
	// spec.md §9.
	destroyed bool
}

type timerKind int

const (
	timerNone timerKind = iota
	timerT303
	timerT305
	timerT308
	timerT309
	timerT310
	timerT313
	timerTHold
	timerTRetrieve
)

// NewCall creates a Call in Null state bound to sc for timer scheduling
// and send for outgoing message transmission.
func NewCall(cr CallRef, side Side, variant Variant, sc *sched.Scheduler, send Sender) *Call {
	return &Call{
		CallRef: cr,
		Side:    side,
		Variant: variant,
		State:   StateNull,
		sc:      sc,
		send:    send,
	}
}

// Destroyed reports whether this call has been torn down; a destroyed
// Call must not be re-dereferenced by the facade except to confirm this.
func (c *Call) Destroyed() bool { return c.destroyed }

func (c *Call) emit(e Event) { c.Events = append(c.Events, e) }

func (c *Call) armTimer(kind timerKind, d time.Duration) {
	c.cancelTimer()
	c.timerKind = kind
	c.timer = c.sc.Schedule(d, c.onTimer, nil)
}

func (c *Call) cancelTimer() {
	if c.timer != 0 {
		c.sc.Cancel(c.timer)
		c.timer = 0
	}
	c.timerKind = timerNone
}

func (c *Call) onTimer(any) {
	switch c.timerKind {
	case timerT303:
		c.onT303()
	case timerT305:
		c.clearWithCause(NewCause(LocUser, CauseRecoveryOnTimerExpiry))
	case timerT308:
		c.clearWithCause(NewCause(LocUser, CauseRecoveryOnTimerExpiry))
	case timerT309:
		c.clearWithCause(NewCause(LocUser, CauseDestOutOfOrder))
	case timerT310:
		c.clearWithCause(NewCause(LocUser, CauseRecoveryOnTimerExpiry))
	case timerT313:
		c.clearWithCause(NewCause(LocUser, CauseRecoveryOnTimerExpiry))
	case timerTHold:
		c.HoldState = HoldIdle
		c.emit(Event{Kind: EventHoldReject})
	case timerTRetrieve:
		c.HoldState = CallHeld
		c.emit(Event{Kind: EventRetrieveReject})
	}
}

// --- Outgoing call establishment (facade-originated) ---

// Setup issues an outgoing SETUP, entering Call-Initiated and arming
// T303. See spec.md scenario S2.
func (c *Call) Setup(called Number, bearer BearerCapability) {
	c.Called.Number = called
	c.Bearer = bearer
	c.State = StateCallInitiated
	c.retryCount = 0
	c.sendSetup()
	c.armTimer(timerT303, DefaultT303)
}

func (c *Call) sendSetup() {
	c.transmit(BuildSetup(c.CallRef, c.Channel, c.Calling.Number, c.Called.Number, c.Bearer))
}

// BuildSetup renders a standalone SETUP message without touching any
// Call's state. q931.Call.sendSetup uses it for the ordinary
// point-to-point case; the Controller's broadcast-SETUP fan-out (see
// SPEC_FULL.md §4.5/Non-goals and spec.md §4.5 "Broadcast SETUP (NT
// PTMP)") uses it directly to send the one UI SETUP on the group TEI
// before any subcall exists to own it.
func BuildSetup(cr CallRef, channel ChannelID, calling, called Number, bearer BearerCapability) Message {
	b := newBuilder(DiscQ931, cr, Setup)
	mustBuild(b, IEBearerCapability, EncodeBearerCapability(bearer))
	if channel.Exclusive || channel.Number != 0 {
		mustBuild(b, IEChannelID, EncodeChannelIDNumber(channel.Exclusive, channel.PRI, channel.Number))
	}
	if called.Valid {
		mustBuild(b, IECalledPartyNumber, EncodeNumber(called, false))
	}
	if calling.Valid {
		mustBuild(b, IECallingPartyNumber, EncodeNumber(calling, true))
	}
	return b.build()
}

// NewBroadcastSubcall creates a Call already in Call-Initiated state for
// one TEI leg of a broadcast SETUP fan-out: the SETUP itself was already
// sent once as UI on the group TEI (BuildSetup), so unlike Setup this
// does not transmit anything or arm T303 — the master call owns that
// timer. See spec.md §4.5 "Broadcast SETUP (NT PTMP)".
func NewBroadcastSubcall(cr CallRef, side Side, variant Variant, sc *sched.Scheduler, send Sender, called Number, bearer BearerCapability, channel ChannelID) *Call {
	c := NewCall(cr, side, variant, sc, send)
	c.Called.Number = called
	c.Bearer = bearer
	c.Channel = channel
	c.State = StateCallInitiated
	return c
}

// onT303 retransmits SETUP once; a second expiry clears the call with
// cause 18 (no user responding), per spec.md scenario S2.
func (c *Call) onT303() {
	c.retryCount++
	if c.retryCount >= 2 {
		c.clearWithCause(NewCause(LocUser, CauseNoUserResponding))
		return
	}
	c.sendSetup()
	c.armTimer(timerT303, DefaultT303)
}

func mustBuild(b *builder, tag IETag, content []byte) {
	// Outgoing IE content is always engine-generated and within the
	// 255-octet slot; the error path exists for caller-supplied
	// Diagnostics overflow only, which this engine never triggers.
	_ = b.add(0, tag, content)
}

func (c *Call) transmit(m Message) {
	if c.send != nil {
		c.send(m)
	}
}

// --- Incoming call establishment ---

// ReceiveSetup processes an incoming SETUP, entering Call-Present (or
// Overlap-Receiving, when the called number is incomplete and overlap
// dialing is enabled) and emitting RING. See spec.md scenario S1.
func (c *Call) ReceiveSetup(m Message) {
	if c.State != StateNull {
		c.sendStatus(CauseMsgNotCompatWithState)
		return
	}
	if _, missing := m.MissingMandatory(); missing {
		c.sendReleaseComplete(NewCause(LocUser, CauseMandatoryIEMissing))
		c.destroyed = true
		return
	}

	if ie, ok := m.Find(IEBearerCapability); ok {
		if bc, err := DecodeBearerCapability(ie.Content); err == nil {
			c.Bearer = bc
		}
	}
	if ie, ok := m.Find(IEChannelID); ok {
		if ch, err := DecodeChannelID(ie.Content); err == nil {
			c.Channel = ch
		}
	}
	if ie, ok := m.Find(IECallingPartyNumber); ok {
		if n, err := DecodeNumber(ie.Content, true); err == nil {
			c.Calling.Number = n
		}
	}
	if ie, ok := m.Find(IECalledPartyNumber); ok {
		if n, err := DecodeNumber(ie.Content, false); err == nil {
			c.Called.Number = n
		}
	}

	c.State = StateCallPresent
	if c.OverlapDial {
		if _, complete := m.Find(IESegmentedMessage); !complete {
			c.State = StateOverlapReceiving
			c.overlapDigits = c.Called.Number.Digits
		}
	}
	c.emit(Event{
		Kind:    EventRing,
		Channel: c.Channel.Number,
		Calling: c.Calling.Number,
		Called:  c.Called.Number,
	})
}

// Proceeding (network/user both may send CALL_PROCEEDING) transitions to
// {Outgoing,Incoming}-Call-Proceeding.
func (c *Call) SendProceeding() {
	c.State = StateOutgoingCallProceedingFor(c.Side)
	c.transmit(Message{Discriminator: DiscQ931, CallRef: c.CallRef, Type: CallProceeding})
}

// StateOutgoingCallProceedingFor picks the proceeding state for the side
// that is sending it: the calling side observes Outgoing-Call-Proceeding,
// the called side (answering) observes Incoming-Call-Proceeding.
func StateOutgoingCallProceedingFor(s Side) CallState {
	if s == Network {
		return StateIncomingCallProceeding
	}
	return StateOutgoingCallProceeding
}

// ReceiveCallProceeding processes an inbound CALL_PROCEEDING, canceling
// T303 (superseding the SETUP retransmit/give-up path in onT303) and
// entering Outgoing-Call-Proceeding.
func (c *Call) ReceiveCallProceeding(m Message) {
	c.cancelTimer()
	c.State = StateOutgoingCallProceeding
	c.emit(Event{Kind: EventProceeding})
}

// Alerting sends ALERTING and arms T301 is not modeled (no-answer
// timeout is a facade concern here); transitions to Call-Delivered /
// Call-Received.
func (c *Call) SendAlerting() {
	c.State = StateCallReceived
	c.transmit(Message{Discriminator: DiscQ931, CallRef: c.CallRef, Type: Alerting})
}

// ReceiveAlerting processes an inbound ALERTING, entering Call-Delivered
// and emitting RINGING.
func (c *Call) ReceiveAlerting(m Message) {
	if c.State != StateCallInitiated && c.State != StateOutgoingCallProceeding {
		c.sendStatus(CauseMsgNotCompatWithState)
		return
	}
	c.cancelTimer()
	c.State = StateCallDelivered
	c.emit(Event{Kind: EventRinging})
}

// Answer (facade pri_answer) sends CONNECT and arms T313 awaiting the
// peer's CONNECT_ACKNOWLEDGE. See spec.md scenario S1.
func (c *Call) Answer() {
	c.State = StateConnectRequest
	c.transmit(Message{Discriminator: DiscQ931, CallRef: c.CallRef, Type: Connect})
	c.armTimer(timerT313, DefaultT313)
}

// ReceiveConnect processes an inbound CONNECT, entering Active and
// emitting ANSWER.
func (c *Call) ReceiveConnect(m Message) {
	c.cancelTimer()
	c.State = StateActive
	if ie, ok := m.Find(IEConnectedNumber); ok {
		if n, err := DecodeNumber(ie.Content, true); err == nil && !n.Equal(c.Connected.Number) {
			c.Connected.Number = n
		}
	}
	c.emit(Event{Kind: EventAnswer})
}

// SendConnectAck sends CONNECT_ACKNOWLEDGE: mandatory on BRI point-to-
// multipoint interfaces, optional on PRI, where the answering side
// would otherwise sit in ConnectRequest until T313 expiry clears the
// call. See spec.md scenario S1.
func (c *Call) SendConnectAck() {
	c.transmit(Message{Discriminator: DiscQ931, CallRef: c.CallRef, Type: ConnectAcknowledge})
}

// ReceiveConnectAck processes CONNECT_ACKNOWLEDGE, settling Active.
func (c *Call) ReceiveConnectAck(m Message) {
	c.cancelTimer()
	c.State = StateActive
	c.emit(Event{Kind: EventConnectAck})
}

// --- Clearing ---

// Hangup is the facade request to clear an established/in-progress call
// with a given cause, mapped to the appropriate clearing message per
// spec.md §4.5 "Hangup cause mapping".
func (c *Call) Hangup(cause CauseInfo) {
	c.Cause = cause
	// A call already in Disconnect-Indication has already received the
	// peer's DISCONNECT; the correct reply is RELEASE regardless of
	// cause category (Q.931 subsection 5.3.3).
	msg := Release
	if c.State != StateDisconnectIndication {
		msg = c.hangupMessage(cause.Value)
	}
	c.State = StateReleaseRequest
	switch msg {
	case ReleaseComplete:
		b := newBuilder(DiscQ931, c.CallRef, ReleaseComplete)
		mustBuild(b, IECause, EncodeCause(cause))
		c.transmit(b.build())
		c.destroyed = true
	case Release:
		b := newBuilder(DiscQ931, c.CallRef, Release)
		mustBuild(b, IECause, EncodeCause(cause))
		c.transmit(b.build())
		c.armTimer(timerT308, DefaultT308)
	default:
		b := newBuilder(DiscQ931, c.CallRef, Disconnect)
		mustBuild(b, IECause, EncodeCause(cause))
		c.transmit(b.build())
		c.State = StateDisconnectRequest
		c.armTimer(timerT305, DefaultT305)
	}
}

// hangupMessage implements the cause-to-message table of spec.md §4.5.
func (c *Call) hangupMessage(cause Cause) MsgType {
	if !c.HangupFix {
		switch cause {
		case CauseUnallocatedNumber, CauseChannelUnavailable, CauseIdentifiedChannelNotExist:
			return ReleaseComplete
		}
	}

	switch cause {
	case CauseUnallocatedNumber, CauseChannelUnavailable, CauseIdentifiedChannelNotExist:
		if c.State == StateNull || c.State == StateCallPresent {
			return ReleaseComplete
		}
		if c.State == StateActive {
			return Disconnect
		}
		return Release
	case CauseInvalidCallReference:
		return ReleaseComplete
	case CauseChannelUnacceptable, CauseCallAwarded, CauseNonSelectedUserClearing:
		return Release
	case CauseIncompatibleDestination:
		if c.State == StateCallInitiated || c.State == StateCallPresent {
			return ReleaseComplete
		}
		return Disconnect
	default:
		return Disconnect
	}
}

func (c *Call) clearWithCause(cause CauseInfo) {
	c.Cause = cause
	c.emit(Event{Kind: EventHangup, Cause: cause})
	b := newBuilder(DiscQ931, c.CallRef, Release)
	mustBuild(b, IECause, EncodeCause(cause))
	c.transmit(b.build())
	c.State = StateReleaseRequest
	c.destroyed = true
}

// ReceiveDisconnect processes a peer-initiated DISCONNECT, emitting
// HANGUP-REQ and arming nothing further until the facade calls Hangup
// to send RELEASE. See spec.md scenario S1.
func (c *Call) ReceiveDisconnect(m Message) {
	cause := NewCause(LocUser, CauseNormalClearing)
	if ie, ok := m.Find(IECause); ok {
		if ci, err := DecodeCause(ie.Content); err == nil {
			cause = ci
		}
	}
	c.cancelTimer()
	c.Cause = cause
	c.State = StateDisconnectIndication
	c.emit(Event{Kind: EventHangupReq, Cause: cause})
}

// ReceiveRelease processes a RELEASE (peer answering our DISCONNECT, or
// a direct clear from pre-Active states); replies RELEASE_COMPLETE.
func (c *Call) ReceiveRelease(m Message) {
	c.cancelTimer()
	b := newBuilder(DiscQ931, c.CallRef, ReleaseComplete)
	c.transmit(b.build())
	c.destroyed = true
	c.emit(Event{Kind: EventHangupAck})
}

// ReceiveReleaseComplete processes RELEASE_COMPLETE, the terminal
// acknowledgement of our own RELEASE or DISCONNECT/RELEASE chain.
func (c *Call) ReceiveReleaseComplete(m Message) {
	c.cancelTimer()
	c.destroyed = true
	c.emit(Event{Kind: EventHangupAck})
}

// --- Status / failure handling ---

func (c *Call) sendStatus(cause Cause) {
	b := newBuilder(DiscQ931, c.CallRef, Status)
	mustBuild(b, IECause, EncodeCause(NewCause(LocUser, cause)))
	mustBuild(b, IECallState, EncodeCallStateIE(c.State))
	c.transmit(b.build())
}

func (c *Call) sendReleaseComplete(cause CauseInfo) {
	b := newBuilder(DiscQ931, c.CallRef, ReleaseComplete)
	mustBuild(b, IECause, EncodeCause(cause))
	c.transmit(b.build())
}

// ReceiveStatusEnquiry always answers with STATUS, cause "response to
// status enquiry" (30), carrying the current call state.
func (c *Call) ReceiveStatusEnquiry(m Message) {
	c.sendStatus(CauseResponseToStatusEnquiry)
}

// ReceiveStatus processes an inbound STATUS; a peer reporting Null while
// we are not in Null clears the call, per spec.md §4.5.
func (c *Call) ReceiveStatus(m Message) {
	ie, ok := m.Find(IECallState)
	if !ok {
		return
	}
	peerState, err := DecodeCallStateIE(ie.Content)
	if err == nil && peerState == StateNull && c.State != StateNull {
		c.clearWithCause(NewCause(LocUser, CauseRecoveryOnTimerExpiry))
	}
}

// --- Facility / supplementary services ---

// ReceiveFacility processes an inbound FACILITY message by handing the
// raw Facility IE content up as EventFacility; decoding the ROSE
// component stream itself is the Controller's job (package rose), since
// a Call has no operation registry of its own. See spec.md §4.1.
func (c *Call) ReceiveFacility(m Message) {
	ie, ok := m.Find(IEFacility)
	if !ok {
		return
	}
	c.emit(Event{Kind: EventFacility, Facility: ie.Content})
}

// SendFacility transmits a FACILITY message carrying a pre-encoded ROSE
// component stream (see rose.AppendFacility), outside of any state
// transition: Q.931 allows FACILITY in almost every non-Null state.
func (c *Call) SendFacility(content []byte) {
	b := newBuilder(DiscQ931, c.CallRef, Facility)
	mustBuild(b, IEFacility, content)
	c.transmit(b.build())
}

// --- Overlap dialing ---

// maxOverlapDigits bounds the overlap-dial accumulator at the IA5
// capacity of the called-number IE. See SPEC_FULL.md §4.3, grounded on
// original_source/libpri/q931.c's OVERLAP_DIALING digit limit.
const maxOverlapDigits = 20

// ReceiveInformation appends digits to the called-number accumulator
// while in Overlap-Receiving state and OverlapDial is enabled; a
// complete-indicator sentinel octet of 0x00 in the sending-complete IE
// ends accumulation. Once the accumulated number would exceed
// maxOverlapDigits, the appended digits are rejected and a STATUS with
// cause 28 (invalid number format) is sent instead. See spec.md §4.5
// "Overlap dialing" and SPEC_FULL.md §4.3.
func (c *Call) ReceiveInformation(m Message, complete bool) {
	if !c.OverlapDial || c.State != StateOverlapReceiving {
		ie, ok := m.Find(IEKeypadFacility)
		if ok {
			c.emit(Event{Kind: EventKeypadDigit, Text: DecodeKeypadFacility(ie.Content)})
		}
		return
	}
	if ie, ok := m.Find(IECalledPartyNumber); ok {
		n, err := DecodeNumber(ie.Content, false)
		if err == nil {
			if len(c.overlapDigits)+len(n.Digits) > maxOverlapDigits {
				c.sendStatus(CauseInvalidNumberFormat)
				return
			}
			c.overlapDigits += n.Digits
		}
	}
	c.Called.Number.Digits = c.overlapDigits
	c.emit(Event{Kind: EventInfoReceived, Text: c.overlapDigits})
	if complete {
		c.State = StateOutgoingCallProceeding
	}
}

// --- Hold / Retrieve ---

// Hold issues the facade HOLD request. It is a no-op (returns false)
// unless the own-state is hold-eligible, per spec.md §4.5 and the
// HoldEligible invariant in spec.md §8.
func (c *Call) Hold() bool {
	if !HoldEligible(c.State) || c.HoldState != HoldIdle {
		return false
	}
	c.HoldState = HoldReq
	c.transmit(Message{Discriminator: DiscQ931, CallRef: c.CallRef, Type: Hold})
	c.armTimer(timerTHold, DefaultTHold)
	return true
}

// ReceiveHold processes a peer HOLD. On collision (we already sent our
// own HOLD, i.e. HoldReq) the network side ignores the peer's request
// per spec.md §4.5 "collisions resolved by role".
func (c *Call) ReceiveHold(m Message) {
	if c.HoldState == HoldReq {
		if c.Side == Network {
			return // network wins the collision, ignore peer HOLD
		}
	}
	if !HoldEligible(c.State) {
		b := newBuilder(DiscQ931, c.CallRef, HoldReject)
		c.transmit(b.build())
		return
	}
	c.HoldState = HoldInd
	c.transmit(Message{Discriminator: DiscQ931, CallRef: c.CallRef, Type: HoldAck})
	c.HoldState = CallHeld
	c.zeroChannelOnHold()
}

// ReceiveHoldAck completes our own HOLD request.
func (c *Call) ReceiveHoldAck(m Message) {
	if c.HoldState != HoldReq {
		return
	}
	c.cancelTimer()
	c.HoldState = CallHeld
	c.zeroChannelOnHold()
	c.emit(Event{Kind: EventHoldAck})
}

// ReceiveHoldReject aborts our own HOLD request.
func (c *Call) ReceiveHoldReject(m Message) {
	c.cancelTimer()
	c.HoldState = HoldIdle
	c.emit(Event{Kind: EventHoldReject})
}

func (c *Call) zeroChannelOnHold() {
	// Per spec.md §4.5: "When a call is held its channel fields (ds1,
	// channelno, flags) are zeroed so upper-layer channel accounting
	// stays consistent."
	c.heldChannel = c.Channel
	c.Channel = ChannelID{}
}

// Retrieve issues the facade RETRIEVE request for the given channel.
func (c *Call) Retrieve(channel uint8) bool {
	if c.HoldState != CallHeld {
		return false
	}
	c.HoldState = RetrieveReq
	b := newBuilder(DiscQ931, c.CallRef, Retrieve)
	mustBuild(b, IEChannelID, EncodeChannelIDNumber(true, c.heldChannel.PRI, channel))
	c.transmit(b.build())
	c.armTimer(timerTRetrieve, DefaultTRetrieve)
	return true
}

// ReceiveRetrieve processes a peer RETRIEVE, symmetric to ReceiveHold.
func (c *Call) ReceiveRetrieve(m Message) {
	if c.HoldState == RetrieveReq && c.Side == Network {
		return
	}
	if c.HoldState != CallHeld {
		b := newBuilder(DiscQ931, c.CallRef, RetrieveReject)
		c.transmit(b.build())
		return
	}
	if ie, ok := m.Find(IEChannelID); ok {
		if ch, err := DecodeChannelID(ie.Content); err == nil {
			c.Channel = ch
		}
	} else {
		c.Channel = c.heldChannel
	}
	c.HoldState = RetrieveInd
	c.transmit(Message{Discriminator: DiscQ931, CallRef: c.CallRef, Type: RetrieveAck})
	c.HoldState = HoldIdle
}

// ReceiveRetrieveAck completes our own RETRIEVE request.
func (c *Call) ReceiveRetrieveAck(m Message) {
	if c.HoldState != RetrieveReq {
		return
	}
	c.cancelTimer()
	if ie, ok := m.Find(IEChannelID); ok {
		if ch, err := DecodeChannelID(ie.Content); err == nil {
			c.Channel = ch
		}
	} else {
		c.Channel = c.heldChannel
	}
	c.HoldState = HoldIdle
	c.emit(Event{Kind: EventRetrieveAck})
}

// ReceiveRetrieveReject aborts our own RETRIEVE request, restoring
// Call-Held.
func (c *Call) ReceiveRetrieveReject(m Message) {
	c.cancelTimer()
	c.HoldState = CallHeld
	c.emit(Event{Kind: EventRetrieveReject})
}

// --- Layer-2 loss recovery (T309) ---

// LinkDown arms T309 when this call is Active, per spec.md scenario S6;
// non-Active calls are cleared immediately (at delay 0, so the clearing
// runs off the event loop rather than from inside the link callback, per
// spec.md §4.5 "scheduled at delay 0").
func (c *Call) LinkDown(nfas bool) {
	if nfas {
		return // T309 is suppressed under NFAS; upper layer decides.
	}
	if c.State == StateActive {
		c.armTimer(timerT309, DefaultT309)
		return
	}
	c.sc.Schedule(0, func(any) {
		c.clearWithCause(NewCause(LocUser, CauseDestOutOfOrder))
	}, nil)
}

// LinkUp cancels an armed T309 and resynchronizes with STATUS, per
// spec.md scenario S6.
func (c *Call) LinkUp() {
	if c.timerKind != timerT309 {
		return
	}
	c.cancelTimer()
	c.sendStatus(CauseNormalUnspecified)
}
