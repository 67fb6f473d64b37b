package rose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokeRoundTrip(t *testing.T) {
	inv := Invoke{InvokeID: 7, OperationCode: OpDivertingLegInformation2, Argument: []byte{0x01, 0x02}}
	buf := AppendInvoke(nil, inv)

	tlv, rest, err := ReadTLV(buf)
	require.NoError(t, err)
	assert.Empty(t, rest)

	c, err := DecodeComponent(tlv)
	require.NoError(t, err)
	assert.Equal(t, KindInvoke, c.Kind)
	assert.Equal(t, inv.InvokeID, c.Invoke.InvokeID)
	assert.Equal(t, inv.OperationCode, c.Invoke.OperationCode)
	assert.Equal(t, inv.Argument, c.Invoke.Argument)
}

func TestInvokeWithLinkedID(t *testing.T) {
	linked := int64(3)
	inv := Invoke{InvokeID: 9, LinkedID: &linked, OperationCode: OpCallTransferComplete}
	buf := AppendInvoke(nil, inv)

	tlv, _, err := ReadTLV(buf)
	require.NoError(t, err)
	c, err := DecodeComponent(tlv)
	require.NoError(t, err)
	require.NotNil(t, c.Invoke.LinkedID)
	assert.Equal(t, linked, *c.Invoke.LinkedID)
}

func TestReturnResultRoundTrip(t *testing.T) {
	rr := ReturnResult{InvokeID: 4, Present: true, Argument: []byte{0xaa}}
	buf := AppendReturnResult(nil, rr, OpChargingRequest)

	tlv, _, err := ReadTLV(buf)
	require.NoError(t, err)
	c, err := DecodeComponent(tlv)
	require.NoError(t, err)
	assert.Equal(t, KindReturnResult, c.Kind)
	assert.Equal(t, rr.InvokeID, c.ReturnResult.InvokeID)
	assert.True(t, c.ReturnResult.Present)
	assert.Equal(t, rr.Argument, c.ReturnResult.Argument)
}

func TestReturnResultAbsent(t *testing.T) {
	rr := ReturnResult{InvokeID: 4}
	buf := AppendReturnResult(nil, rr, OpCallCompletionCancel)
	tlv, _, err := ReadTLV(buf)
	require.NoError(t, err)
	c, err := DecodeComponent(tlv)
	require.NoError(t, err)
	assert.False(t, c.ReturnResult.Present)
}

func TestReturnErrorRoundTrip(t *testing.T) {
	re := ReturnError{InvokeID: 2, ErrorCode: ErrNotImplemented}
	buf := AppendReturnError(nil, re)
	tlv, _, err := ReadTLV(buf)
	require.NoError(t, err)
	c, err := DecodeComponent(tlv)
	require.NoError(t, err)
	assert.Equal(t, KindReturnError, c.Kind)
	assert.Equal(t, re.ErrorCode, c.ReturnError.ErrorCode)
}

func TestRejectRoundTripWithID(t *testing.T) {
	id := int64(5)
	rj := Reject{InvokeID: &id, Problem: ProblemMistypedArgument}
	buf := AppendReject(nil, rj)
	tlv, _, err := ReadTLV(buf)
	require.NoError(t, err)
	c, err := DecodeComponent(tlv)
	require.NoError(t, err)
	require.NotNil(t, c.Reject.InvokeID)
	assert.Equal(t, id, *c.Reject.InvokeID)
	assert.Equal(t, ProblemMistypedArgument, c.Reject.Problem)
}

func TestRejectRoundTripWithoutID(t *testing.T) {
	rj := Reject{Problem: ProblemUnrecognizedComponent}
	buf := AppendReject(nil, rj)
	tlv, _, err := ReadTLV(buf)
	require.NoError(t, err)
	c, err := DecodeComponent(tlv)
	require.NoError(t, err)
	assert.Nil(t, c.Reject.InvokeID)
}

func TestDispatcherUnregisteredOperationRejects(t *testing.T) {
	d := NewDispatcher()
	c := d.Dispatch(Invoke{InvokeID: 1, OperationCode: OpCCExec})
	assert.Equal(t, KindReject, c.Kind)
	assert.Equal(t, ProblemUnrecognizedOperation, c.Reject.Problem)
}

func TestDispatcherOperationError(t *testing.T) {
	d := NewDispatcher()
	d.Register(OpChargingRequest, func(inv Invoke) ([]byte, bool, *OperationError) {
		return nil, false, &OperationError{InvokeID: inv.InvokeID, Code: ErrNotSubscribed}
	})
	c := d.Dispatch(Invoke{InvokeID: 11, OperationCode: OpChargingRequest})
	assert.Equal(t, KindReturnError, c.Kind)
	assert.Equal(t, ErrNotSubscribed, c.ReturnError.ErrorCode)
}

func TestDispatcherSuccess(t *testing.T) {
	d := NewDispatcher()
	d.Register(OpCallCompletionCancel, func(inv Invoke) ([]byte, bool, *OperationError) {
		return nil, false, nil
	})
	c := d.Dispatch(Invoke{InvokeID: 2, OperationCode: OpCallCompletionCancel})
	assert.Equal(t, KindReturnResult, c.Kind)
	assert.False(t, c.ReturnResult.Present)
}
