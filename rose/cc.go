package rose

// Call-completion operations, grounded on original_source/libpri/q931.c's
// Q931_CC_STATE_* sub-machine (SPEC_FULL.md §4.2). CCBSRequest and
// CCNRRequest share an argument shape; CCExec/CCSuspend/CCResume/CCCancel
// carry only the call-completion record reference.

// CCRequest is the argument of CCBSRequest (busy) / CCNRRequest (no
// reply): the calling and called party numbers, enough for the network
// to set up the callback record.
type CCRequest struct {
	CallingNum string
	CalledNum  string
}

// CCRecordID identifies an established call-completion record; used by
// CCExec/CCCancel/CCSuspend/CCResume.
type CCRecordID struct {
	ID int64
}

// EncodeCCRequest serializes SEQUENCE { callingNum IA5, calledNum IA5 }.
func EncodeCCRequest(r CCRequest) []byte {
	var seq []byte
	seq = AppendOctetString(seq, []byte(r.CallingNum))
	seq = AppendOctetString(seq, []byte(r.CalledNum))
	return AppendSequence(nil, seq)
}

// DecodeCCRequest reverses EncodeCCRequest.
func DecodeCCRequest(arg []byte) (CCRequest, error) {
	var r CCRequest
	seq, _, err := ReadTLV(arg)
	if err != nil {
		return r, err
	}
	a, rest, err := ReadTLV(seq.Content)
	if err != nil {
		return r, err
	}
	r.CallingNum = string(a.Content)
	b, _, err := ReadTLV(rest)
	if err != nil {
		return r, err
	}
	r.CalledNum = string(b.Content)
	return r, nil
}

// EncodeCCRecordID serializes the bare INTEGER argument CCExec/CCCancel
// carry.
func EncodeCCRecordID(r CCRecordID) []byte {
	return AppendInteger(nil, r.ID)
}

// DecodeCCRecordID reverses EncodeCCRecordID.
func DecodeCCRecordID(arg []byte) (CCRecordID, error) {
	t, _, err := ReadTLV(arg)
	if err != nil {
		return CCRecordID{}, err
	}
	v, err := t.Int()
	return CCRecordID{ID: v}, err
}

// CCState enumerates the call-completion sub-state machine, one per
// pending CC record, matching Q931_CC_STATE_* from the original source.
type CCState uint8

const (
	CCIdle CCState = iota
	CCRequested
	CCActivated
	CCWaitCallback
	CCCallbackInProgress
)

func (s CCState) String() string {
	switch s {
	case CCIdle:
		return "Idle"
	case CCRequested:
		return "Requested"
	case CCActivated:
		return "Activated"
	case CCWaitCallback:
		return "WaitCallback"
	case CCCallbackInProgress:
		return "CallbackInProgress"
	default:
		return "CCState?"
	}
}
