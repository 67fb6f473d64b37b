package rose

// Handler decodes and reacts to one Invoke; it returns the encoded
// result argument (nil for a NULL result), whether a result is present
// at all, and an error when the operation should be reported back as a
// ReturnError instead.
type Handler func(inv Invoke) (result []byte, present bool, err *OperationError)

// Dispatcher routes Invoke components to per-operation handlers, the
// rose-package analogue of the teacher's ApplyDataUnit type-identifier
// switch in monitor.go, flattened from a giant switch to a map because
// ROSE operation codes, unlike IEC 60870-5 type identifiers, are sparse
// and variant-dependent (ETSI vs Q.SIG assign different codes to the
// same service).
type Dispatcher struct {
	handlers map[OperationCode]Handler
}

// NewDispatcher returns an empty Dispatcher; call Register for every
// operation the engine's Controller supports.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[OperationCode]Handler)}
}

// Register installs h for code, replacing any previous registration.
func (d *Dispatcher) Register(code OperationCode, h Handler) {
	d.handlers[code] = h
}

// Dispatch locates the handler for inv.OperationCode and runs it. A
// missing handler produces the Q.932 "unrecognised operation" Reject
// problem rather than silently dropping the invoke.
func (d *Dispatcher) Dispatch(inv Invoke) Component {
	h, ok := d.handlers[inv.OperationCode]
	if !ok {
		return Component{Kind: KindReject, Reject: Reject{
			InvokeID: &inv.InvokeID,
			Problem:  ProblemUnrecognizedOperation,
		}}
	}
	result, present, opErr := h(inv)
	if opErr != nil {
		return Component{Kind: KindReturnError, ReturnError: ReturnError{
			InvokeID:  inv.InvokeID,
			ErrorCode: opErr.Code,
		}}
	}
	return Component{Kind: KindReturnResult, Invoke: Invoke{OperationCode: inv.OperationCode}, ReturnResult: ReturnResult{
		InvokeID: inv.InvokeID,
		Present:  present,
		Argument: result,
	}}
}

// DispatchFacility decodes a FACILITY IE's content and runs every Invoke
// component in it through d, returning the reply components (if any) to
// send back in a FACILITY message of our own. Non-invoke components
// (ReturnResult/ReturnError/Reject answering our own prior invokes) are
// returned to the caller for correlation against outstanding requests,
// unchanged.
func (d *Dispatcher) DispatchFacility(f Facility) (replies []Component, passthrough []Component) {
	for _, c := range f.Components {
		if c.Kind != KindInvoke {
			passthrough = append(passthrough, c)
			continue
		}
		replies = append(replies, d.Dispatch(c.Invoke))
	}
	return replies, passthrough
}
