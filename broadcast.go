package isdnsig

import (
	"github.com/pascaldekloe/isdnsig/internal/sched"
	"github.com/pascaldekloe/isdnsig/q931"
)

// maxSubcalls bounds how many responding terminals one broadcast SETUP
// may accumulate: a Basic Rate interface supports up to seven TEIs on
// one bus. See spec.md §8.2.
const maxSubcalls = 7

// rankState orders a broadcast call's forward progress. Only the
// subcall whose response advances the rank reports an upward event; a
// same-or-regressive report from another subcall is absorbed silently.
// See spec.md §4.5 "Broadcast SETUP (NT PTMP)".
type rankState int

const (
	rankPresent rankState = iota
	rankProceeding
	rankAlerting
	rankConnect
)

// rankOf maps a subcall's q931.EventKind to the rank it would advance
// the master to, if any.
func rankOf(k q931.EventKind) (rankState, bool) {
	switch k {
	case q931.EventProceeding:
		return rankProceeding, true
	case q931.EventRinging:
		return rankAlerting, true
	case q931.EventAnswer:
		return rankConnect, true
	default:
		return 0, false
	}
}

// subcall is one responding terminal's branch of a broadcast SETUP,
// identified by the TEI it answered on.
type subcall struct {
	tei  uint8
	call *q931.Call
}

// masterCall owns one NT point-to-multipoint broadcast SETUP: the single
// group SETUP sent on q921.BroadcastTEI (and retransmitted once on T303
// expiry), the subcalls a terminal's
// response spawns on its own TEI, and the T303/T312 timers, neither of
// which belongs to any individual subcall. See spec.md §3 "Data model"
// and §4.5 "Broadcast SETUP (NT PTMP)".
type masterCall struct {
	cr      q931.CallRef
	channel q931.ChannelID
	called  q931.Number
	bearer  q931.BearerCapability

	subcalls []*subcall
	rank     rankState
	winner   int // index into subcalls while promoteWinner clears the losers; -1 otherwise

	retransmitted bool
	t303          sched.ID
	t312          sched.ID
}

func newMasterCall(cr q931.CallRef, called q931.Number, bearer q931.BearerCapability, channel q931.ChannelID) *masterCall {
	return &masterCall{cr: cr, called: called, bearer: bearer, channel: channel, winner: -1}
}

func (m *masterCall) remove(tei uint8) {
	for i, sc := range m.subcalls {
		if sc.tei == tei {
			m.subcalls = append(m.subcalls[:i], m.subcalls[i+1:]...)
			return
		}
	}
}

// originateBroadcast sends the one group SETUP as UI on q921.BroadcastTEI
// and starts tracking the resulting master/subcall fan-out under ref.
// See spec.md §4.5 "Broadcast SETUP (NT PTMP)" and scenario S3.
func (c *Controller) originateBroadcast(ref q931.CallRef, called q931.Number, bearer q931.BearerCapability, channel q931.ChannelID) {
	m := newMasterCall(ref, called, bearer, channel)
	c.masters[keyOf(ref)] = m
	c.link.SendUI(q931.BuildSetup(ref, channel, q931.Number{}, called, bearer).Append(nil))
	c.armMasterT303(m)
}

func (c *Controller) armMasterT303(m *masterCall) {
	m.t303 = c.sc.Schedule(q931.DefaultT303, func(any) { c.onMasterT303(m) }, nil)
}

func (c *Controller) cancelMasterT303(m *masterCall) {
	if m.t303 != 0 {
		c.sc.Cancel(m.t303)
		m.t303 = 0
	}
}

func (c *Controller) armMasterT312(m *masterCall) {
	if m.t312 != 0 {
		return
	}
	m.t312 = c.sc.Schedule(q931.DefaultT312, func(any) { c.onMasterT312(m) }, nil)
}

func (c *Controller) cancelMasterT312(m *masterCall) {
	if m.t312 != 0 {
		c.sc.Cancel(m.t312)
		m.t312 = 0
	}
}

// onMasterT303 retransmits the group SETUP once; once retransmitted, the
// master falls back to T312 as the last window for a response before the
// zero-responder case applies. See spec.md §4.5 and §8 "Broadcast SETUP
// with zero responders".
func (c *Controller) onMasterT303(m *masterCall) {
	m.t303 = 0
	if !m.retransmitted {
		m.retransmitted = true
		c.link.SendUI(q931.BuildSetup(m.cr, m.channel, q931.Number{}, m.called, m.bearer).Append(nil))
		c.armMasterT303(m)
		return
	}
	c.armMasterT312(m)
}

// onMasterT312 closes a waiting window. With zero subcalls it is the
// final zero-responder timeout: the whole broadcast attempt is reported
// as a HANGUP with cause 18 (no user responding), without any q931.Call
// ever having existed. T312 does not outlive the winner: promoteWinner
// cancels it and clears the losing subcalls at once, so an expiry with
// subcalls present finds no winner and leaves those subcalls as they
// are.
func (c *Controller) onMasterT312(m *masterCall) {
	m.t312 = 0
	if len(m.subcalls) == 0 {
		c.Events = append(c.Events, Event{
			Kind:    EventCall,
			CallRef: m.cr,
			Call:    q931.Event{Kind: q931.EventHangup, Cause: q931.NewCause(q931.LocUser, q931.CauseNoUserResponding)},
		})
		delete(c.masters, keyOf(m.cr))
		return
	}
	if m.winner >= 0 {
		c.clearLosingSubcalls(m)
	}
}

// subcallFor returns the subcall already tracking tei, or creates one
// when msg is a response type that may legitimately start a subcall
// (CALL_PROCEEDING, ALERTING or CONNECT) and the master has not already
// reached its per-bus limit. Everything else addressed to an untracked
// TEI is dropped. See spec.md §8.2.
func (c *Controller) subcallFor(m *masterCall, tei uint8, msg q931.Message) (sc *subcall, isNew bool) {
	for _, sc := range m.subcalls {
		if sc.tei == tei {
			return sc, false
		}
	}
	switch msg.Type {
	case q931.CallProceeding, q931.Alerting, q931.Connect:
	default:
		return nil, false
	}
	if len(m.subcalls) >= maxSubcalls {
		return nil, false
	}
	call := q931.NewBroadcastSubcall(m.cr, q931.Network, c.cfg.Variant, c.sc,
		func(out q931.Message) { c.sendSubcallMessage(tei, out) },
		m.called, m.bearer, m.channel)
	call.HangupFix = c.cfg.HangupFix
	sc = &subcall{tei: tei, call: call}
	m.subcalls = append(m.subcalls, sc)
	return sc, true
}

func (c *Controller) sendSubcallMessage(tei uint8, m q931.Message) {
	c.peerLink(tei).SendInfo(m.Append(nil))
}

// dispatchSubcallFrame routes one inbound frame from a responding
// terminal's own TEI to its subcall, advancing or absorbing the
// master's rank, and selects pri_winner on the subcall that first
// reaches Active. See spec.md §4.5 "Broadcast SETUP (NT PTMP)".
func (c *Controller) dispatchSubcallFrame(tei uint8, msg q931.Message) {
	key := keyOf(msg.CallRef)
	master, ok := c.masters[key]
	if !ok {
		c.log.Debug("broadcast response for unknown master dropped", "type", msg.Type)
		return
	}

	sc, isNew := c.subcallFor(master, tei, msg)
	if sc == nil {
		return
	}
	if isNew {
		// A terminal responded: stop retransmitting the group SETUP and
		// open a fresh window for any further terminals still to answer.
		c.cancelMasterT303(master)
		c.cancelMasterT312(master)
		c.armMasterT312(master)
	}

	c.dispatchToCall(sc.call, msg)
	c.absorbSubcallEvents(master, sc)

	if master.winner < 0 && sc.call.State == q931.StateActive {
		c.promoteWinner(master, sc)
	}

	if sc.call.Destroyed() {
		master.remove(tei)
	}
	if len(master.subcalls) == 0 {
		delete(c.masters, key)
	}
}

// absorbSubcallEvents drains sc.call's Events into Controller.Events,
// suppressing a rank-type event (PROCEEDING/RINGING/ANSWER) that does not
// advance the master's rank past what an earlier subcall already
// reported. Non-rank events (FACILITY, HANGUP_ACK, ...) are always
// forwarded individually.
func (c *Controller) absorbSubcallEvents(m *masterCall, sc *subcall) {
	events := sc.call.Events
	sc.call.Events = sc.call.Events[:0]
	for _, e := range events {
		if e.Kind == q931.EventFacility {
			c.handleCallFacility(sc.call, e.Facility)
		}
		if rank, ok := rankOf(e.Kind); ok {
			if rank <= m.rank {
				continue
			}
			m.rank = rank
		}
		c.Events = append(c.Events, Event{Kind: EventCall, CallRef: m.cr, Call: e})
	}
}

// promoteWinner fixes pri_winner on sc, clears every other subcall with
// cause 26 (non-selected user clearing), and hands sc's Call over to the
// ordinary per-call dispatch path (c.calls) for the remainder of its
// life, since the broadcast fan-out itself is now resolved for it. The
// master keeps tracking only the losing subcalls, until each clears and
// the master is dropped. See spec.md §8.1 "pri_winner indexes a live
// subcall".
func (c *Controller) promoteWinner(m *masterCall, winner *subcall) {
	for i, sc := range m.subcalls {
		if sc == winner {
			m.winner = i
			break
		}
	}
	c.cancelMasterT303(m)
	c.cancelMasterT312(m)
	c.clearLosingSubcalls(m)
	c.calls[keyOf(m.cr)] = winner.call
	m.remove(winner.tei)
	m.winner = -1
}

// clearLosingSubcalls sends RELEASE with cause 26 to every subcall but
// the winner and drains each one's resulting events. Each stays in
// m.subcalls until dispatchSubcallFrame finds its call destroyed (on the
// peer's answer to the RELEASE) and removes it.
func (c *Controller) clearLosingSubcalls(m *masterCall) {
	for _, sc := range m.subcalls {
		if m.winner >= 0 && m.subcalls[m.winner] == sc {
			continue
		}
		if sc.call.Destroyed() {
			continue
		}
		sc.call.Hangup(q931.NewCause(q931.LocUser, q931.CauseNonSelectedUserClearing))
		c.drainCall(sc.call)
	}
}
