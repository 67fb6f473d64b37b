// Package isdnsig wires a Q.921 link, a pool of Q.931 calls and a ROSE
// facility dispatcher into one D-channel signaling engine, the root
// "Controller" entity spec.md §2 describes. A Controller owns exactly
// one D-channel: one q921.Link on SAPICallControl plus the Q.931 call
// pool multiplexed over it, and, on the network side of a
// point-to-multipoint bus, one more Link per responding terminal's TEI
// (see broadcast.go). See SPEC_FULL.md §0 for the package layout.
package isdnsig

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pascaldekloe/isdnsig/internal/config"
	"github.com/pascaldekloe/isdnsig/internal/sched"
	"github.com/pascaldekloe/isdnsig/q921"
	"github.com/pascaldekloe/isdnsig/q931"
	"github.com/pascaldekloe/isdnsig/rose"
)

// Transport abstracts the D-channel device so a Controller can run
// against either a real dchan.Device or an internal/duplex.End in tests.
type Transport interface {
	Read(buf []byte) (int, error)
	Write(frame []byte) error
}

// Controller is one D-channel signaling engine: a Q.921 link, the Q.931
// calls multiplexed over it, and the ROSE operation registry for
// Facility traffic. See spec.md §2 "Layer boundary" and §3 "Data model".
type Controller struct {
	mu sync.Mutex

	cfg config.Config
	log *log.Logger
	sc  *sched.Scheduler

	Side q931.Side

	tp   Transport
	link *q921.Link

	calls   map[callKey]*q931.Call
	crWidth uint8 // CallRef.Len this Controller assigns to outgoing calls
	nextRef uint16

	// peerLinks holds one q921.Link per responding TEI for NT
	// point-to-multipoint broadcast SETUP fan-out, keyed by TEI. c.link
	// itself stays bound to q921.BroadcastTEI and only ever sends UI
	// frames for this mode. See spec.md §4.5 "Broadcast SETUP (NT
	// PTMP)" and broadcast.go.
	peerLinks map[uint8]*q921.Link

	// masters tracks in-progress broadcast SETUP fan-outs, keyed the
	// same way as calls.
	masters map[callKey]*masterCall

	Dispatcher *rose.Dispatcher

	// Events accumulates Controller-level notifications (link status,
	// restart, configuration problems) plus every per-call q931.Event,
	// tagged with the originating CallRef. Drain with TakeEvents.
	Events []Event
}

// New creates a Controller bound to tp for D-channel I/O. Establish must
// be called separately to bring the link up.
func New(cfg config.Config, tp Transport, logger *log.Logger) *Controller {
	if logger == nil {
		logger = NewLogger()
	}
	sc := sched.New()
	c := &Controller{
		cfg:        cfg,
		log:        logger,
		sc:         sc,
		Side:       sideOf(cfg.Link.Network),
		tp:         tp,
		calls:      make(map[callKey]*q931.Call),
		crWidth:    2,
		peerLinks:  make(map[uint8]*q921.Link),
		masters:    make(map[callKey]*masterCall),
		Dispatcher: rose.NewDispatcher(),
	}
	tei := uint8(0)
	if cfg.Link.PointToMultipoint {
		tei = q921.BroadcastTEI
	}
	c.link = q921.NewLink(cfg.Link, q921.SAPICallControl, tei, sc)
	c.link.Send = c.transmitFrame
	c.link.Notify = c.onLinkIndication
	c.link.Deliver = c.onFrame
	return c
}

func sideOf(network bool) q931.Side { return q931.Side(network) }

// Establish issues DL-ESTABLISH-REQUEST on the Q.921 link.
func (c *Controller) Establish() { c.link.Establish() }

// Release issues DL-RELEASE-REQUEST on the Q.921 link.
func (c *Controller) Release() { c.link.Release() }

// LinkState reports the Q.921 multi-frame-operation state.
func (c *Controller) LinkState() q921.LinkState { return c.link.State() }

func (c *Controller) transmitFrame(wire []byte) {
	if c.tp == nil {
		return
	}
	if err := c.tp.Write(wire); err != nil {
		c.log.Error("d-channel write failed", "err", err)
	}
}

// ReadLoop pulls frames off tp until it returns an error, routing each to
// the Q.921 link it is addressed to. Run it in its own goroutine; stop
// it by closing or otherwise unblocking tp's Read.
func (c *Controller) ReadLoop() error {
	buf := make([]byte, 2048)
	for {
		n, err := c.tp.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		c.routeFrame(buf[:n])
	}
}

// routeFrame hands a raw LAPD frame to the right Link: its own TEI's
// peer link when this Controller is an NT point-to-multipoint broadcast
// originator and the frame is not addressed to the group/dummy TEI,
// c.link otherwise. See broadcast.go / spec.md §4.5 "Broadcast SETUP
// (NT PTMP)".
func (c *Controller) routeFrame(wire []byte) {
	_, tei, ok := q921.PeekAddress(wire)
	if ok && c.cfg.Link.Network && c.cfg.Link.PointToMultipoint &&
		tei != q921.BroadcastTEI && tei != q921.DummyTEI {
		c.mu.Lock()
		l := c.peerLink(tei)
		c.mu.Unlock()
		if err := l.Receive(wire); err != nil {
			c.log.Warn("discarded malformed LAPD frame", "tei", tei, "err", err)
		}
		return
	}
	if err := c.link.Receive(wire); err != nil {
		c.log.Warn("discarded malformed LAPD frame", "err", err)
	}
}

// peerLink returns the Q.921 link for responding terminal tei, creating
// it on first use. Used only in NT point-to-multipoint mode: each
// terminal that answers a broadcast SETUP does so on the individual TEI
// it already holds from Q.921 TEI management, so this Link only ever
// receives a peer-initiated SABME, never sends one. See broadcast.go.
// Callers must already hold c.mu.
func (c *Controller) peerLink(tei uint8) *q921.Link {
	l, ok := c.peerLinks[tei]
	if ok {
		return l
	}
	l = q921.NewLink(c.cfg.Link, q921.SAPICallControl, tei, c.sc)
	l.Send = c.transmitFrame
	l.Notify = func(ind q921.Indication) { c.onPeerLinkIndication(tei, ind) }
	l.Deliver = func(info []byte) { c.onPeerFrame(tei, info) }
	c.peerLinks[tei] = l
	return l
}

func (c *Controller) onPeerLinkIndication(tei uint8, ind q921.Indication) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ind == q921.DLReleaseIndication || ind == q921.DLReleaseConfirm {
		// The terminal dropped its data link before (or after) being
		// selected; forget the Link so a later TEI reassignment to the
		// same value starts clean.
		delete(c.peerLinks, tei)
	}
}

func (c *Controller) onPeerFrame(tei uint8, info []byte) {
	m, err := q931.Parse(info)
	if err != nil {
		c.mu.Lock()
		c.Events = append(c.Events, Event{Kind: EventConfigErr, Err: fmt.Errorf("isdnsig: %w", err)})
		c.mu.Unlock()
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// A promoted pri_winner's Call already lives in c.calls and must keep
	// using the ordinary per-call dispatch/cleanup path for the rest of
	// its life; only traffic still belonging to an unresolved broadcast
	// fan-out goes to dispatchSubcallFrame.
	key := keyOf(m.CallRef)
	if call, ok := c.calls[key]; ok {
		c.dispatchToCall(call, m)
		c.drainCall(call)
		if call.Destroyed() {
			delete(c.calls, key)
		}
		return
	}

	c.dispatchSubcallFrame(tei, m)
}

// RunTimers advances the scheduler; call it from a ticker loop (the
// teacher's session package has no analogue since IEC 60870-5 timers
// live on the TCP stack, not a protocol engine the caller drives
// directly, so this is grounded on internal/sched's own RunDue contract
// instead).
func (c *Controller) RunTimers(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.sc.RunDue(now) {
	}
}

// NextTimerDeadline reports how long until the next scheduled timeout,
// for a caller driving RunTimers off a single select loop.
func (c *Controller) NextTimerDeadline(now time.Time) (time.Duration, bool) {
	return c.sc.NextDeadline(now)
}

func (c *Controller) onLinkIndication(ind q921.Indication) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ind {
	case q921.DLEstablishIndication, q921.DLEstablishConfirm:
		c.Events = append(c.Events, Event{Kind: EventDChanUp})
		for _, call := range c.calls {
			call.LinkUp()
			c.drainCall(call)
		}
	case q921.DLReleaseIndication, q921.DLReleaseConfirm:
		c.Events = append(c.Events, Event{Kind: EventDChanDown})
		nfas := false // NFAS backup-D-channel promotion is out of scope here
		for _, call := range c.calls {
			call.LinkDown(nfas)
			c.drainCall(call)
		}
	}
}

func (c *Controller) onFrame(info []byte) {
	m, err := q931.Parse(info)
	if err != nil {
		c.mu.Lock()
		c.Events = append(c.Events, Event{Kind: EventConfigErr, Err: fmt.Errorf("isdnsig: %w", err)})
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if m.Type == q931.RestartMsg || m.Type == q931.RestartAck {
		c.handleRestart(m)
		return
	}

	if m.CallRef.IsDummy() {
		c.handleDummyFacility(m)
		return
	}

	key := keyOf(m.CallRef)
	call, ok := c.calls[key]
	if !ok {
		if m.Type != q931.Setup {
			c.log.Debug("message for unknown call reference dropped", "type", m.Type)
			return
		}
		// The peer sent this SETUP as the call-reference originator,
		// so its messages always carry flag 0; our own messages for
		// this call must carry the opposite sense, flag 1, for the
		// rest of the call's life. See Q.931 subsection 4.3.
		ownRef := m.CallRef
		ownRef.FromOriginator = !m.CallRef.FromOriginator
		call = q931.NewCall(ownRef, c.Side, c.cfg.Variant, c.sc, c.sendCallMessage)
		call.HangupFix = c.cfg.HangupFix
		call.OverlapDial = c.cfg.Overlap
		c.calls[key] = call
	}

	c.dispatchToCall(call, m)
	c.drainCall(call)
	if call.Destroyed() {
		delete(c.calls, key)
	}
}

// callKey identifies a call independent of the call-reference flag bit,
// which differs between the two directions of the same call: the
// originating side always sends flag 0 and the other side always sends
// flag 1, so only (Len, Value) is a stable map key.
type callKey struct {
	len   uint8
	value uint16
}

func keyOf(cr q931.CallRef) callKey { return callKey{cr.Len, cr.Value} }

// sendCallMessage serializes m and hands it to the link. m.CallRef
// already carries the flag sense fixed when the Call was created;
// q931.Call never changes it between messages.
func (c *Controller) sendCallMessage(m q931.Message) {
	c.link.SendInfo(m.Append(nil))
}

func (c *Controller) dispatchToCall(call *q931.Call, m q931.Message) {
	switch m.Type {
	case q931.Setup:
		call.ReceiveSetup(m)
	case q931.CallProceeding:
		call.ReceiveCallProceeding(m)
	case q931.Alerting:
		call.ReceiveAlerting(m)
	case q931.Connect:
		call.ReceiveConnect(m)
	case q931.ConnectAcknowledge:
		call.ReceiveConnectAck(m)
	case q931.Disconnect:
		call.ReceiveDisconnect(m)
	case q931.Release:
		call.ReceiveRelease(m)
	case q931.ReleaseComplete:
		call.ReceiveReleaseComplete(m)
	case q931.StatusEnquiry:
		call.ReceiveStatusEnquiry(m)
	case q931.Status:
		call.ReceiveStatus(m)
	case q931.Information:
		_, complete := m.Find(q931.IESegmentedMessage)
		call.ReceiveInformation(m, complete)
	case q931.Facility:
		call.ReceiveFacility(m)
	case q931.Hold:
		call.ReceiveHold(m)
	case q931.HoldAck:
		call.ReceiveHoldAck(m)
	case q931.HoldReject:
		call.ReceiveHoldReject(m)
	case q931.Retrieve:
		call.ReceiveRetrieve(m)
	case q931.RetrieveAck:
		call.ReceiveRetrieveAck(m)
	case q931.RetrieveReject:
		call.ReceiveRetrieveReject(m)
	default:
		c.log.Debug("unhandled message type", "type", m.Type)
	}
}

// drainCall moves every q931.Event a Call produced since the last drain
// into Controller.Events, decoding EventFacility payloads through the
// ROSE dispatcher and sending any replies the dispatcher produced.
func (c *Controller) drainCall(call *q931.Call) {
	for _, e := range call.Events {
		if e.Kind == q931.EventFacility {
			c.handleCallFacility(call, e.Facility)
		}
		c.Events = append(c.Events, Event{Kind: EventCall, CallRef: call.CallRef, Call: e})
	}
	call.Events = call.Events[:0]
}

func (c *Controller) handleCallFacility(call *q931.Call, raw []byte) {
	f, err := rose.DecodeFacility(raw)
	if err != nil {
		c.log.Warn("facility decode failed", "err", err)
		return
	}
	replies, _ := c.Dispatcher.DispatchFacility(f)
	if len(replies) == 0 {
		return
	}
	out := rose.AppendFacility(nil, rose.Facility{Profile: rose.ProfileRose, Components: replies})
	call.SendFacility(out)
}

func (c *Controller) handleDummyFacility(m q931.Message) {
	ie, ok := m.Find(q931.IEFacility)
	if !ok {
		return
	}
	f, err := rose.DecodeFacility(ie.Content)
	if err != nil {
		c.log.Warn("dummy-reference facility decode failed", "err", err)
		return
	}
	replies, _ := c.Dispatcher.DispatchFacility(f)
	if len(replies) == 0 {
		return
	}
	content := rose.AppendFacility(nil, rose.Facility{Profile: rose.ProfileRose, Components: replies})
	reply := q931.Message{Discriminator: q931.DiscQ931, CallRef: q931.CallRef{Len: 0}, Type: q931.Facility}
	reply.IEs = append(reply.IEs, q931.RawIE{Tag: q931.IEFacility, Content: content})
	c.link.SendUI(reply.Append(nil))
}

// handleRestart answers a RESTART with RESTART ACKNOWLEDGE after clearing
// every call on the indicated channel(s), or every call on the interface
// when the restart indicator names the whole interface. A channel list
// or slot map produces one EventRestart per listed channel, in ascending
// order, before the single ack that follows the last of them. See
// spec.md §4.5 "Restart".
func (c *Controller) handleRestart(m q931.Message) {
	ie, ok := m.Find(q931.IERestartIndicator)
	wholeInterface := true
	if ok {
		if class, err := q931.DecodeRestartIndicator(ie.Content); err == nil {
			wholeInterface = class != q931.RestartSingleChannel
		}
	}

	channels := restartChannels(m)
	if wholeInterface || len(channels) == 0 {
		c.clearRestartedCalls(func(ch uint8) bool { return true })
		c.Events = append(c.Events, Event{Kind: EventRestart})
	} else {
		for _, ch := range channels {
			c.clearRestartedCalls(func(c uint8) bool { return c == ch })
			c.Events = append(c.Events, Event{Kind: EventRestart, Channel: ch})
		}
	}

	if m.Type == q931.RestartMsg {
		ack := q931.Message{Discriminator: q931.DiscQ931, CallRef: q931.CallRef{Len: c.crWidth}, Type: q931.RestartAck}
		c.link.SendInfo(ack.Append(nil))
	}
}

// clearRestartedCalls hangs up every call whose channel number matches
// selected, with cause 31 (normal, unspecified), the RESTART clearing
// cause.
func (c *Controller) clearRestartedCalls(selected func(channel uint8) bool) {
	for key, call := range c.calls {
		if !selected(call.Channel.Number) {
			continue
		}
		call.Hangup(q931.NewCause(q931.LocUser, q931.CauseNormalUnspecified))
		c.drainCall(call)
		delete(c.calls, key)
	}
}

// restartChannels decodes the RESTART's channel-id IE, if present, into
// the individual channel numbers it names (exclusive number or slot
// map). A nil/empty result means the restart indicator governs instead.
func restartChannels(m q931.Message) []uint8 {
	ie, ok := m.Find(q931.IEChannelID)
	if !ok {
		return nil
	}
	ch, err := q931.DecodeChannelID(ie.Content)
	if err != nil {
		return nil
	}
	return ch.Channels()
}
