package q921

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pascaldekloe/isdnsig/internal/sched"
)

// LinkState is the Q.921 multi-frame-operation state, Q.921 annex A.
type LinkState uint8

const (
	TEIUnassigned LinkState = iota
	AwaitingTEI
	AwaitingEstablishment
	AwaitingRelease
	MultipleFrameEstablished
	TimerRecovery
)

func (s LinkState) String() string {
	switch s {
	case TEIUnassigned:
		return "TEI-unassigned"
	case AwaitingTEI:
		return "awaiting-TEI"
	case AwaitingEstablishment:
		return "awaiting-establishment"
	case AwaitingRelease:
		return "awaiting-release"
	case MultipleFrameEstablished:
		return "multiple-frame-established"
	case TimerRecovery:
		return "timer-recovery"
	default:
		return fmt.Sprintf("LinkState(%d)", uint8(s))
	}
}

var (
	// ErrLinkDown signals an attempt to submit an I-frame while the link
	// is not in multiple-frame-established state.
	ErrLinkDown = errors.New("q921: link not established")
	// ErrInfoTooLong signals an I-frame payload exceeding Config.N201.
	ErrInfoTooLong = errors.New("q921: information field exceeds N201")
)

// Indication is a DL-primitive delivered to the Q.931 layer above.
// See spec.md §2 "Layer boundary".
type Indication int

const (
	// DLEstablishIndication reports that the peer originated
	// multi-frame establishment (SABME received, UA sent).
	DLEstablishIndication Indication = iota
	// DLEstablishConfirm reports that our own establishment request
	// completed (UA received for our SABME).
	DLEstablishConfirm
	// DLReleaseIndication reports that the peer released the link, or
	// that establishment failed after N200 retries of SABME.
	DLReleaseIndication
	// DLReleaseConfirm reports our own DISC completed.
	DLReleaseConfirm
)

func (i Indication) String() string {
	switch i {
	case DLEstablishIndication:
		return "DL-ESTABLISH-IND"
	case DLEstablishConfirm:
		return "DL-ESTABLISH-CONFIRM"
	case DLReleaseIndication:
		return "DL-RELEASE-IND"
	case DLReleaseConfirm:
		return "DL-RELEASE-CONFIRM"
	default:
		return "indication?"
	}
}

// Link is one Q.921 data-link entity: a (SAPI, TEI) pair with its own
// V(S)/V(R)/V(A) counters, retransmission queue and timers. A Controller
// keeps one Link for its own TEI on SAPICallControl, plus, on the network
// side of a point-to-multipoint bus, one Link per responding TEI. No Link
// is created on SAPILayer2Mgmt, so TEI-management frames are not
// processed. See spec.md §2.
//
// A Link is not safe for concurrent use from multiple goroutines except
// through its exported methods, which take the internal mutex; this
// mirrors the teacher's channel-free Station/Transport split by keeping
// all protocol state behind one lock instead of actor channels, which
// suits a LAPD entity driven synchronously off a single D-channel reader
// goroutine.
type Link struct {
	mu sync.Mutex

	cfg   Config
	sapi  SAPI
	tei   uint8
	cr    bool // the command bit value this side sends on commands

	state LinkState

	vs, vr, va uint8
	retry      uint
	peerBusy   bool // remote sent RNR
	ownBusy    bool

	unacked []queuedFrame

	sc      *sched.Scheduler
	t200    sched.ID
	t203    sched.ID

	// Send transmits a serialized LAPD frame toward the D-channel
	// device. It must not block indefinitely.
	Send func(wire []byte)

	// Notify delivers a DL-primitive to the layer above (q931).
	Notify func(Indication)

	// Deliver hands an accepted I-frame's information field to the
	// layer above, in receive order.
	Deliver func(info []byte)
}

type queuedFrame struct {
	ns   uint8
	info []byte
}

// NewLink creates a Q.921 link entity for (sapi, tei) using sc for timer
// scheduling. Send, Notify and Deliver must be assigned before Receive or
// Establish is called.
func NewLink(cfg Config, sapi SAPI, tei uint8, sc *sched.Scheduler) *Link {
	cfg.check()
	return &Link{
		cfg:   cfg,
		sapi:  sapi,
		tei:   tei,
		cr:    cfg.Network,
		state: TEIUnassigned,
		sc:    sc,
	}
}

// State returns the current link state.
func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Establish issues a DL-ESTABLISH-REQUEST: send SABME and arm T200.
// See Q.921 subsection 5.4.1.
func (l *Link) Establish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.vs, l.vr, l.va = 0, 0, 0
	l.retry = 0
	l.unacked = l.unacked[:0]
	l.state = AwaitingEstablishment
	l.sendU(uSABME, true)
	// A synchronous loopback transport may have driven the peer's UA
	// (and our own receiveU handling of it) to completion already,
	// inside sendU's Send callback; only arm T200 if we are still
	// waiting.
	if l.state == AwaitingEstablishment {
		l.armT200()
	}
}

// Release issues a DL-RELEASE-REQUEST: send DISC and arm T200.
func (l *Link) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != MultipleFrameEstablished && l.state != TimerRecovery {
		l.state = TEIUnassigned
		l.notify(DLReleaseConfirm)
		return
	}
	l.state = AwaitingRelease
	l.sendU(uDISC, true)
	if l.state == AwaitingRelease {
		l.armT200()
	}
}

// SendInfo submits one DL-DATA-REQUEST: an I-frame carrying info.
func (l *Link) SendInfo(info []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if uint(len(info)) > l.cfg.N201 {
		return ErrInfoTooLong
	}
	if l.state != MultipleFrameEstablished && l.state != TimerRecovery {
		return ErrLinkDown
	}
	l.queueAndSend(info)
	return nil
}

func (l *Link) queueAndSend(info []byte) {
	ns := l.vs
	l.unacked = append(l.unacked, queuedFrame{ns: ns, info: info})
	l.vs = seqAdd(l.vs, 1)
	f := frame{sapi: l.sapi, cr: l.cr, tei: l.tei, kind: iFrame, ns: ns, nr: l.vr, info: info}
	l.transmit(&f)
	if len(l.unacked) > 0 {
		l.armT200()
	}
}

// Receive processes one inbound LAPD frame, decoded by parseFrame from a
// device read. It is the caller's responsibility to pull frames
// addressed to this Link's (sapi, tei), or SAPILayer2Mgmt / BroadcastTEI
// for management frames, off the shared D-channel reader.
func (l *Link) Receive(wire []byte) error {
	f, err := parseFrame(wire)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	switch f.kind {
	case uFrame:
		l.receiveU(&f)
	case sFrame:
		l.receiveS(&f)
	case iFrame:
		l.receiveI(&f)
	}
	return nil
}

func (l *Link) receiveU(f *frame) {
	switch f.function {
	case uSABME:
		l.vs, l.vr, l.va = 0, 0, 0
		l.unacked = l.unacked[:0]
		l.sendU(uUA, f.pollFinal)
		wasUp := l.state == MultipleFrameEstablished || l.state == TimerRecovery
		l.state = MultipleFrameEstablished
		l.cancelT200()
		l.armT203()
		if !wasUp {
			l.notify(DLEstablishIndication)
		}
	case uUA:
		switch l.state {
		case AwaitingEstablishment:
			l.cancelT200()
			l.state = MultipleFrameEstablished
			l.armT203()
			l.notify(DLEstablishConfirm)
		case AwaitingRelease:
			l.cancelT200()
			l.state = TEIUnassigned
			l.notify(DLReleaseConfirm)
		}
	case uDM:
		switch l.state {
		case AwaitingEstablishment:
			l.cancelT200()
			l.state = TEIUnassigned
			l.notify(DLReleaseIndication)
		case AwaitingRelease:
			l.cancelT200()
			l.state = TEIUnassigned
			l.notify(DLReleaseConfirm)
		case MultipleFrameEstablished, TimerRecovery:
			l.cancelT200()
			l.cancelT203()
			l.state = TEIUnassigned
			l.notify(DLReleaseIndication)
		}
	case uDISC:
		l.sendU(uUA, f.pollFinal)
		if l.state == MultipleFrameEstablished || l.state == TimerRecovery {
			l.cancelT200()
			l.cancelT203()
			l.state = TEIUnassigned
			l.notify(DLReleaseIndication)
		}
	case uFRMR:
		// Peer rejected a frame we sent outside protocol: the link is
		// cleared and the layer above is told it is down.
		l.cancelT200()
		l.cancelT203()
		l.state = TEIUnassigned
		l.notify(DLReleaseIndication)
	}
}

func (l *Link) receiveS(f *frame) {
	if l.state != MultipleFrameEstablished && l.state != TimerRecovery {
		return
	}
	l.peerBusy = f.rrType == sRNR
	switch f.rrType {
	case sRR, sRNR:
		l.ackUpTo(f.nr)
		if f.pollFinal && l.cr == f.cr {
			l.sendRR(false)
		}
	case sREJ:
		l.ackUpTo(f.nr)
		l.retransmitFrom(f.nr)
	}
}

func (l *Link) receiveI(f *frame) {
	if l.state != MultipleFrameEstablished && l.state != TimerRecovery {
		return
	}
	if f.ns != l.vr {
		l.sendS(sREJ, false)
		return
	}
	l.vr = seqAdd(l.vr, 1)
	l.ackUpTo(f.nr)
	if l.ownBusy {
		l.sendS(sRNR, f.pollFinal)
	} else {
		l.sendS(sRR, f.pollFinal)
	}
	if l.Deliver != nil {
		info := f.info
		l.mu.Unlock()
		l.Deliver(info)
		l.mu.Lock()
	}
}

func (l *Link) ackUpTo(nr uint8) {
	if nr == l.va {
		return
	}
	l.va = nr
	i := 0
	for ; i < len(l.unacked); i++ {
		if l.unacked[i].ns == seqAdd(nr, 0xff) {
			i++
			break
		}
	}
	l.unacked = l.unacked[i:]
	if len(l.unacked) == 0 {
		l.cancelT200()
		l.armT203()
	} else {
		l.retry = 0
		l.armT200()
	}
}

func (l *Link) retransmitFrom(nr uint8) {
	// ackUpTo already trimmed l.unacked to frames at or after nr.
	for _, q := range l.unacked {
		f := frame{sapi: l.sapi, cr: l.cr, tei: l.tei, kind: iFrame, ns: q.ns, nr: l.vr, info: q.info}
		l.transmit(&f)
	}
	l.armT200()
}

// timeoutT200 is invoked by the scheduler on T200 expiry: the
// classic Q.921 figure B.7/B.8 retransmission-count machine.
func (l *Link) timeoutT200(cookie any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.t200 = 0

	l.retry++
	if l.retry > l.cfg.N200 {
		l.state = TEIUnassigned
		l.unacked = l.unacked[:0]
		l.notify(DLReleaseIndication)
		return
	}

	switch l.state {
	case AwaitingEstablishment:
		l.sendU(uSABME, true)
	case AwaitingRelease:
		l.sendU(uDISC, true)
	case MultipleFrameEstablished:
		l.state = TimerRecovery
		fallthrough
	case TimerRecovery:
		l.sendS(sRR, true)
	}
	l.armT200()
}

// timeoutT203 probes an idle link per Q.921 subsection 5.5.3 by
// soliciting an RR with the poll bit set.
func (l *Link) timeoutT203(cookie any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.t203 = 0
	if l.state != MultipleFrameEstablished {
		return
	}
	l.state = TimerRecovery
	l.retry = 0
	l.sendS(sRR, true)
	l.armT200()
}

func (l *Link) armT200() {
	if l.t200 != 0 {
		return
	}
	l.t200 = l.sc.Schedule(l.cfg.T200, l.timeoutT200, nil)
}

func (l *Link) cancelT200() {
	if l.t200 != 0 {
		l.sc.Cancel(l.t200)
		l.t200 = 0
	}
}

func (l *Link) armT203() {
	l.cancelT203()
	l.t203 = l.sc.Schedule(l.cfg.T203, l.timeoutT203, nil)
}

func (l *Link) cancelT203() {
	if l.t203 != 0 {
		l.sc.Cancel(l.t203)
		l.t203 = 0
	}
}

func (l *Link) sendU(fn uFunction, pf bool) {
	f := frame{sapi: l.sapi, cr: l.cr, tei: l.tei, kind: uFrame, function: fn, pollFinal: pf}
	l.transmit(&f)
}

func (l *Link) sendS(fn sFunction, pf bool) {
	f := frame{sapi: l.sapi, cr: l.cr, tei: l.tei, kind: sFrame, rrType: fn, nr: l.vr, pollFinal: pf}
	l.transmit(&f)
}

func (l *Link) sendRR(pf bool) { l.sendS(sRR, pf) }

// transmit serializes f and hands it to Send. The lock is released for
// the duration of the callback: Send may, through a synchronous loopback
// transport such as a unit test fixture, drive a chain of calls that
// reenters this same Link (e.g. the peer's immediate RR triggers our own
// Receive before Send returns), which would self-deadlock a plain
// sync.Mutex since it is not reentrant.
func (l *Link) transmit(f *frame) {
	if l.Send == nil {
		return
	}
	wire := f.appendTo(nil)
	l.mu.Unlock()
	l.Send(wire)
	l.mu.Lock()
}

func (l *Link) notify(i Indication) {
	if l.Notify != nil {
		l.mu.Unlock()
		l.Notify(i)
		l.mu.Lock()
	}
}

// SendUI submits a DL-UNIT-DATA-REQUEST: connectionless UI frame used for
// TEI-management and for Q.931 traffic on the dummy call reference
// before a multi-frame link exists. See spec.md §3 "dummy reference".
func (l *Link) SendUI(info []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f := frame{sapi: l.sapi, cr: l.cr, tei: l.tei, kind: uFrame, function: uUI, info: info}
	l.transmit(&f)
}
