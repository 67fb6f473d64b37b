package rose

// Diversion reason codes, ETSI EN 300 207-1 / Q.932 annex.
type DiversionReason uint8

const (
	DivReasonUnknown       DiversionReason = 0
	DivReasonCFU           DiversionReason = 1 // call forward unconditional
	DivReasonCFB           DiversionReason = 2 // call forward busy
	DivReasonCFNR          DiversionReason = 3 // call forward no reply
	DivReasonCD            DiversionReason = 4 // call deflection
	DivReasonImmediate     DiversionReason = 5
)

// DivertingLegInformation1 (operation 173) notifies the diverted-to party
// of the diversion on the *diverting* leg, carried in the SETUP toward
// the new destination. See SPEC_FULL.md §4.1.
type DivertingLegInformation1 struct {
	Reason         DiversionReason
	SubscriberNum  string // original called number, IA5 digits
	Present        bool   // presentation allowed for SubscriberNum
}

// DivertingLegInformation2 (operation 1) notifies the original party that
// their call has been diverted, carried toward the diverting party.
type DivertingLegInformation2 struct {
	InvokeID      int64 // diversion counter per Q.932 (reused as DiversionCounter here)
	Reason        DiversionReason
	DivertingNum  string
	DivertingPresent bool
	OriginalNum   string
	OriginalPresent bool
}

// DivertingLegInformation3 (operation 175) carries the presentation
// indicator of the diverted-to number toward the original caller.
type DivertingLegInformation3 struct {
	Presentation bool
}

// EncodeDivertingLegInformation2 appends the operation argument as a BER
// SEQUENCE: { diversionCounter INTEGER, diversionReason ENUMERATED,
// [2] divertingNr PartyNumber OPTIONAL, [4] originalCalledNr PartyNumber
// OPTIONAL }, matching the shape `pri_aoc.c`'s sibling
// `pri_destination_notify.c` uses for diversion (field numbering per
// Q.932 table 14).
func EncodeDivertingLegInformation2(d DivertingLegInformation2) []byte {
	var seq []byte
	seq = AppendInteger(seq, d.InvokeID)
	seq = AppendTLV(seq, ClassUniversal, false, TagEnum, []byte{byte(d.Reason)})
	if d.DivertingNum != "" {
		seq = AppendTLV(seq, ClassContextSpecific, true, 2, encodePartyNumber(d.DivertingNum, d.DivertingPresent))
	}
	if d.OriginalNum != "" {
		seq = AppendTLV(seq, ClassContextSpecific, true, 4, encodePartyNumber(d.OriginalNum, d.OriginalPresent))
	}
	return AppendSequence(nil, seq)
}

// DecodeDivertingLegInformation2 reverses EncodeDivertingLegInformation2.
func DecodeDivertingLegInformation2(arg []byte) (DivertingLegInformation2, error) {
	var d DivertingLegInformation2
	seq, _, err := ReadTLV(arg)
	if err != nil {
		return d, err
	}
	rest := seq.Content
	t, rest, err := ReadTLV(rest)
	if err != nil {
		return d, err
	}
	d.InvokeID, err = t.Int()
	if err != nil {
		return d, err
	}
	t, rest, err = ReadTLV(rest)
	if err != nil {
		return d, err
	}
	if len(t.Content) == 1 {
		d.Reason = DiversionReason(t.Content[0])
	}
	for len(rest) > 0 {
		t, rest, err = ReadTLV(rest)
		if err != nil {
			return d, err
		}
		num, present := decodePartyNumber(t.Content)
		switch t.Tag {
		case 2:
			d.DivertingNum, d.DivertingPresent = num, present
		case 4:
			d.OriginalNum, d.OriginalPresent = num, present
		}
	}
	return d, nil
}

// encodePartyNumber is the ROSE PartyNumber CHOICE, restricted to the
// "publicPartyNumber IA5String" arm this engine needs; presentation is
// folded in as a leading flag octet the way Q.931's Number IE keeps a
// presentation bit alongside its digit string (q931/ie.go Number type).
func encodePartyNumber(digits string, present bool) []byte {
	flag := byte(0)
	if !present {
		flag = 1
	}
	return append([]byte{flag}, digits...)
}

func decodePartyNumber(b []byte) (digits string, present bool) {
	if len(b) == 0 {
		return "", true
	}
	return string(b[1:]), b[0] == 0
}
