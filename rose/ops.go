package rose

import (
	"errors"
	"fmt"
)

// Component is the outer CHOICE of a ROSE APDU: exactly one of Invoke,
// ReturnResult, ReturnError or Reject is populated, selected by Kind.
// Component tagging follows X.229 section 3 ([1] Invoke, [2]
// ReturnResult, [3] ReturnError, [4] Reject), all IMPLICIT.
type Component struct {
	Kind ComponentKind

	Invoke       Invoke
	ReturnResult ReturnResult
	ReturnError  ReturnError
	Reject       Reject
}

// ComponentKind selects the populated field of Component.
type ComponentKind uint8

const (
	KindInvoke ComponentKind = iota + 1
	KindReturnResult
	KindReturnError
	KindReject
)

const (
	tagInvoke       = 1
	tagReturnResult = 2
	tagReturnError  = 3
	tagReject       = 4
)

// Invoke carries an operation request: invoke id, operation code and the
// operation's own argument sequence (left undecoded here; callers decode
// Argument with the per-operation codec once OperationCode identifies it).
type Invoke struct {
	InvokeID      int64
	LinkedID      *int64
	OperationCode OperationCode
	Argument      []byte
}

// ReturnResult carries a successful reply, paired to an Invoke by
// InvokeID. Result is absent (Present false, empty Argument) for
// operations whose result is NULL, e.g. CallCompletionCancel.
type ReturnResult struct {
	InvokeID int64
	Present  bool // false: result sequence was empty/absent (NULL result)
	Argument []byte
}

// ReturnError reports operation failure with a Q.932-defined error code.
type ReturnError struct {
	InvokeID  int64
	ErrorCode ErrorCode
	Parameter []byte
}

// Reject reports a protocol-level problem with an invoke/result/error
// component instead of an operation-level failure; InvokeID is absent
// (nil) when the rejecting side could not even parse the invoke id.
type Reject struct {
	InvokeID *int64
	Problem  Problem
}

// OperationCode identifies a Q.932/ETSI supplementary-service operation.
// See SPEC_FULL.md §4.1/§4.2 and Q.932 annex.
type OperationCode int64

// Operation codes this engine decodes/dispatches. Values match the
// ETSI EN 300 196-1 / Q-SIG operation-value registry used by the
// libpri original source's rose.c table.
const (
	OpDivertingLegInformation1 OperationCode = 173
	OpDivertingLegInformation2 OperationCode = 1
	OpDivertingLegInformation3 OperationCode = 175

	OpCallTransferComplete OperationCode = 6
	OpCallTransferIdentify OperationCode = 7
	OpEctInform            OperationCode = 4

	OpChargingRequest OperationCode = 30
	OpAOCSCurrency    OperationCode = 31
	OpAOCSSpecialArr  OperationCode = 32
	OpAOCDCurrency    OperationCode = 33
	OpAOCDChargingUnit OperationCode = 34
	OpAOCECurrency     OperationCode = 35
	OpAOCEChargingUnit OperationCode = 36

	OpCallCompletionRequest OperationCode = 40
	OpCallCompletionCancel  OperationCode = 41
	OpCCBSRequest           OperationCode = 40
	OpCCNRRequest           OperationCode = 27
	OpCCExec                OperationCode = 42

	OpCallRerouting   OperationCode = 7
	OpNameDisplay     OperationCode = 1000
	OpConnectedName   OperationCode = 1001
	OpCalledName      OperationCode = 1002
)

// ErrorCode is a Q.932 ROSE operation error value.
type ErrorCode int64

const (
	ErrNotSubscribed       ErrorCode = 0
	ErrNotAvailable        ErrorCode = 3
	ErrNotImplemented      ErrorCode = 4
	ErrInvalidCallState    ErrorCode = 10
	ErrInvalidParameter    ErrorCode = 20
	ErrBasicServiceNotProvided ErrorCode = 29
	ErrShortTermDenial     ErrorCode = 44
	ErrLongTermDenial      ErrorCode = 45
)

func (e ErrorCode) String() string {
	switch e {
	case ErrNotSubscribed:
		return "not subscribed"
	case ErrNotAvailable:
		return "not available"
	case ErrNotImplemented:
		return "not implemented"
	case ErrInvalidCallState:
		return "invalid call state"
	case ErrInvalidParameter:
		return "invalid parameter"
	case ErrBasicServiceNotProvided:
		return "basic service not provided"
	case ErrShortTermDenial:
		return "short term denial"
	case ErrLongTermDenial:
		return "long term denial"
	default:
		return fmt.Sprintf("error(%d)", int64(e))
	}
}

// Problem is a Q.932 Reject problem code, one of the four GeneralProblem/
// InvokeProblem/ReturnResultProblem/ReturnErrorProblem CHOICE arms,
// flattened to a single enumeration the way the engine's call-state enum
// flattens Q.931's per-side state tables.
type Problem int64

const (
	ProblemUnrecognizedComponent Problem = iota
	ProblemMistypedComponent
	ProblemBadlyStructuredComponent
	ProblemDuplicateInvokeID
	ProblemUnrecognizedOperation
	ProblemMistypedArgument
	ProblemUnrecognizedInvokeID
)

// OperationError is the engine's typed error for a failed Invoke,
// mirroring the teacher's CauseMis/CmdUnk struct-error idiom rather than
// an ad-hoc fmt.Errorf chain.
type OperationError struct {
	InvokeID int64
	Code     ErrorCode
}

func (e OperationError) Error() string {
	return fmt.Sprintf("rose: invoke %d rejected: %s", e.InvokeID, e.Code)
}

var (
	ErrBadComponent = errors.New("rose: malformed component")
	ErrUnknownKind  = errors.New("rose: unrecognised component tag")
)

// DecodeComponent parses one APDU component (the content of one element
// within the FACILITY IE's "Component" sequence).
func DecodeComponent(t TLV) (Component, error) {
	if t.Class != ClassContextSpecific {
		return Component{}, ErrUnknownKind
	}
	switch t.Tag {
	case tagInvoke:
		inv, err := decodeInvoke(t.Content)
		if err != nil {
			return Component{}, err
		}
		return Component{Kind: KindInvoke, Invoke: inv}, nil
	case tagReturnResult:
		rr, err := decodeReturnResult(t.Content)
		if err != nil {
			return Component{}, err
		}
		return Component{Kind: KindReturnResult, ReturnResult: rr}, nil
	case tagReturnError:
		re, err := decodeReturnError(t.Content)
		if err != nil {
			return Component{}, err
		}
		return Component{Kind: KindReturnError, ReturnError: re}, nil
	case tagReject:
		rj, err := decodeReject(t.Content)
		if err != nil {
			return Component{}, err
		}
		return Component{Kind: KindReject, Reject: rj}, nil
	default:
		return Component{}, ErrUnknownKind
	}
}

func decodeInvoke(b []byte) (Invoke, error) {
	var inv Invoke
	elem, rest, err := ReadTLV(b)
	if err != nil {
		return inv, err
	}
	inv.InvokeID, err = elem.Int()
	if err != nil {
		return inv, err
	}

	elem, rest, err = ReadTLV(rest)
	if err != nil {
		return inv, err
	}
	if elem.Class == ClassContextSpecific {
		// linked id present (rare; invokes linked to a prior invoke)
		id, err := elem.Int()
		if err != nil {
			return inv, err
		}
		inv.LinkedID = &id
		elem, rest, err = ReadTLV(rest)
		if err != nil {
			return inv, err
		}
	}

	code, err := elem.Int()
	if err != nil {
		return inv, err
	}
	inv.OperationCode = OperationCode(code)
	inv.Argument = rest
	return inv, nil
}

func decodeReturnResult(b []byte) (ReturnResult, error) {
	var rr ReturnResult
	elem, rest, err := ReadTLV(b)
	if err != nil {
		return rr, err
	}
	rr.InvokeID, err = elem.Int()
	if err != nil {
		return rr, err
	}
	if len(rest) > 0 {
		// sequence { operation-code, result }: skip the operation
		// code element, keep its argument payload.
		seq, _, err := ReadTLV(rest)
		if err != nil {
			return rr, err
		}
		_, arg, err := ReadTLV(seq.Content)
		if err != nil {
			return rr, err
		}
		rr.Present = true
		rr.Argument = arg
	}
	return rr, nil
}

func decodeReturnError(b []byte) (ReturnError, error) {
	var re ReturnError
	elem, rest, err := ReadTLV(b)
	if err != nil {
		return re, err
	}
	re.InvokeID, err = elem.Int()
	if err != nil {
		return re, err
	}
	elem, rest, err = ReadTLV(rest)
	if err != nil {
		return re, err
	}
	code, err := elem.Int()
	if err != nil {
		return re, err
	}
	re.ErrorCode = ErrorCode(code)
	re.Parameter = rest
	return re, nil
}

func decodeReject(b []byte) (Reject, error) {
	var rj Reject
	elem, rest, err := ReadTLV(b)
	if err != nil {
		return rj, err
	}
	if elem.Tag != TagNull || len(elem.Content) != 0 {
		id, err := elem.Int()
		if err != nil {
			return rj, err
		}
		rj.InvokeID = &id
	}
	elem, _, err = ReadTLV(rest)
	if err != nil {
		return rj, err
	}
	p, err := elem.Int()
	if err != nil {
		return rj, err
	}
	rj.Problem = Problem(p)
	return rj, nil
}

// AppendInvoke serializes an Invoke component.
func AppendInvoke(buf []byte, inv Invoke) []byte {
	var content []byte
	content = AppendInteger(content, inv.InvokeID)
	if inv.LinkedID != nil {
		content = AppendTLV(content, ClassContextSpecific, false, 0, minimalTwosComplement(*inv.LinkedID))
	}
	content = AppendInteger(content, int64(inv.OperationCode))
	content = append(content, inv.Argument...)
	return AppendTLV(buf, ClassContextSpecific, true, tagInvoke, content)
}

// AppendReturnResult serializes a ReturnResult component. Argument is the
// already-encoded operation-specific result value, or nil for NULL
// results.
func AppendReturnResult(buf []byte, rr ReturnResult, operationCode OperationCode) []byte {
	var content []byte
	content = AppendInteger(content, rr.InvokeID)
	if rr.Present {
		var seq []byte
		seq = AppendInteger(seq, int64(operationCode))
		seq = append(seq, rr.Argument...)
		content = AppendSequence(content, seq)
	}
	return AppendTLV(buf, ClassContextSpecific, true, tagReturnResult, content)
}

// AppendReturnError serializes a ReturnError component.
func AppendReturnError(buf []byte, re ReturnError) []byte {
	var content []byte
	content = AppendInteger(content, re.InvokeID)
	content = AppendInteger(content, int64(re.ErrorCode))
	content = append(content, re.Parameter...)
	return AppendTLV(buf, ClassContextSpecific, true, tagReturnError, content)
}

// AppendReject serializes a Reject component.
func AppendReject(buf []byte, rj Reject) []byte {
	var content []byte
	if rj.InvokeID == nil {
		content = AppendTLV(content, ClassUniversal, false, TagNull, nil)
	} else {
		content = AppendInteger(content, *rj.InvokeID)
	}
	content = AppendInteger(content, int64(rj.Problem))
	return AppendTLV(buf, ClassContextSpecific, true, tagReject, content)
}
