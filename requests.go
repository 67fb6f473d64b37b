package isdnsig

import (
	"errors"

	"github.com/pascaldekloe/isdnsig/q931"
	"github.com/pascaldekloe/isdnsig/rose"
)

// ErrNoSuchCall signals a facade request naming a CallRef the Controller
// does not hold (already cleared, or never existed).
var ErrNoSuchCall = errors.New("isdnsig: no such call")

// Originate starts an outgoing call: a fresh call reference is assigned
// and SETUP is sent immediately. See spec.md §4.5 "Outgoing call
// establishment".
func (c *Controller) Originate(called q931.Number, bearer q931.BearerCapability, channel q931.ChannelID) q931.CallRef {
	c.mu.Lock()
	defer c.mu.Unlock()

	ref := c.allocCallRef()

	if c.cfg.Link.Network && c.cfg.Link.PointToMultipoint {
		c.originateBroadcast(ref, called, bearer, channel)
		return ref
	}

	call := q931.NewCall(ref, c.Side, c.cfg.Variant, c.sc, c.sendCallMessage)
	call.HangupFix = c.cfg.HangupFix
	call.OverlapDial = c.cfg.Overlap
	call.Channel = channel
	c.calls[keyOf(ref)] = call
	call.Setup(called, bearer)
	c.drainCall(call)
	return ref
}

// allocCallRef returns the next free outgoing call reference. The
// originating side always sends FromOriginator false, per Q.931
// subsection 4.3.
func (c *Controller) allocCallRef() q931.CallRef {
	max := q931.CallRef{Len: c.crWidth}.Max()
	for i := uint16(0); i < max; i++ {
		c.nextRef++
		if c.nextRef == 0 || c.nextRef >= max {
			c.nextRef = 1
		}
		ref := q931.CallRef{Len: c.crWidth, Value: c.nextRef}
		if _, busy := c.calls[keyOf(ref)]; !busy {
			return ref
		}
	}
	// Exhausted: every value in range is in use. Returning a colliding
	// reference is the least-bad option available to a caller that
	// cannot be made to wait; the new Call simply displaces bookkeeping
	// for an already-saturated interface.
	return q931.CallRef{Len: c.crWidth, Value: c.nextRef}
}

func (c *Controller) call(ref q931.CallRef) (*q931.Call, bool) {
	call, ok := c.calls[keyOf(ref)]
	return call, ok
}

// Answer issues the facade ANSWER request on ref.
func (c *Controller) Answer(ref q931.CallRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.call(ref)
	if !ok {
		return ErrNoSuchCall
	}
	call.Answer()
	c.drainCall(call)
	return nil
}

// SendProceeding issues CALL_PROCEEDING on ref.
func (c *Controller) SendProceeding(ref q931.CallRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.call(ref)
	if !ok {
		return ErrNoSuchCall
	}
	call.SendProceeding()
	c.drainCall(call)
	return nil
}

// ConnectAck sends CONNECT_ACKNOWLEDGE on ref.
func (c *Controller) ConnectAck(ref q931.CallRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.call(ref)
	if !ok {
		return ErrNoSuchCall
	}
	call.SendConnectAck()
	c.drainCall(call)
	return nil
}

// SendAlerting issues ALERTING on ref.
func (c *Controller) SendAlerting(ref q931.CallRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.call(ref)
	if !ok {
		return ErrNoSuchCall
	}
	call.SendAlerting()
	c.drainCall(call)
	return nil
}

// Hangup clears ref with cause, removing it once the Call finishes
// tearing down.
func (c *Controller) Hangup(ref q931.CallRef, cause q931.CauseInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.call(ref)
	if !ok {
		return ErrNoSuchCall
	}
	call.Hangup(cause)
	c.drainCall(call)
	if call.Destroyed() {
		delete(c.calls, keyOf(ref))
	}
	return nil
}

// Hold issues the facade HOLD request on ref. It reports false when the
// call is not in a hold-eligible state.
func (c *Controller) Hold(ref q931.CallRef) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.call(ref)
	if !ok {
		return false, ErrNoSuchCall
	}
	ok2 := call.Hold()
	c.drainCall(call)
	return ok2, nil
}

// Retrieve issues the facade RETRIEVE request on ref, reactivating
// channel.
func (c *Controller) Retrieve(ref q931.CallRef, channel uint8) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.call(ref)
	if !ok {
		return false, ErrNoSuchCall
	}
	ok2 := call.Retrieve(channel)
	c.drainCall(call)
	return ok2, nil
}

// Invoke sends a single ROSE Invoke component on ref's call reference,
// or on the dummy reference when ref.IsDummy(). invokeID identifies the
// operation for a later ReturnResult/ReturnError/Reject correlation.
func (c *Controller) Invoke(ref q931.CallRef, invokeID int64, op rose.OperationCode, argument []byte) error {
	content := rose.AppendFacility(nil, rose.Facility{
		Profile: rose.ProfileRose,
		Components: []rose.Component{{
			Kind: rose.KindInvoke,
			Invoke: rose.Invoke{
				InvokeID:      invokeID,
				OperationCode: op,
				Argument:      argument,
			},
		}},
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if ref.IsDummy() {
		msg := q931.Message{Discriminator: q931.DiscQ931, CallRef: q931.CallRef{Len: 0}, Type: q931.Facility}
		msg.IEs = append(msg.IEs, q931.RawIE{Tag: q931.IEFacility, Content: content})
		c.link.SendUI(msg.Append(nil))
		return nil
	}

	call, ok := c.call(ref)
	if !ok {
		return ErrNoSuchCall
	}
	call.SendFacility(content)
	c.drainCall(call)
	return nil
}

// CallState reports ref's current Q.931 state and whether ref names an
// active call at all.
func (c *Controller) CallState(ref q931.CallRef) (q931.CallState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.call(ref)
	if !ok {
		return 0, false
	}
	return call.State, true
}
