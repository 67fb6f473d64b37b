package q921

import (
	"errors"
	"fmt"
)

// SAPI identifies a service access point within the D-channel.
// See Q.921 subsection 3.2.
type SAPI uint8

const (
	// SAPICallControl carries Q.931/Q.932 signaling.
	SAPICallControl SAPI = 0
	// SAPIPacket carries X.25 packet-mode data (rare, carried for
	// completeness; this engine never originates it).
	SAPIPacket SAPI = 16
	// SAPILayer2Mgmt carries TEI-management frames.
	SAPILayer2Mgmt SAPI = 63
)

// frame is a single LAPD unit: a 2-octet address, a 1- or 2-octet
// control field, and up to N201 octets of information. It is a struct of
// decoded fields; parseFrame copies the information field out of the
// device read buffer.
//
// See spec.md §2 "Wire format" / Q.921 subsection 3.
type frame struct {
	sapi      SAPI
	cr        bool // command/response bit, meaning depends on Side
	tei       uint8
	kind      frameKind
	ns, nr    uint8 // 7-bit sequence numbers, valid per kind
	pollFinal bool
	function  uFunction // valid for kind == uFrame
	rrType    sFunction // valid for kind == sFrame
	info      []byte
}

type frameKind int

const (
	iFrame frameKind = iota
	sFrame
	uFrame
)

func (k frameKind) String() string {
	switch k {
	case iFrame:
		return "I"
	case sFrame:
		return "S"
	case uFrame:
		return "U"
	default:
		return "?"
	}
}

// sFunction is a supervisory function, Q.921 table 4.
type sFunction uint8

const (
	sRR  sFunction = 0x01 // receive ready
	sRNR sFunction = 0x05 // receive not ready
	sREJ sFunction = 0x09 // reject
)

func (f sFunction) String() string {
	switch f {
	case sRR:
		return "RR"
	case sRNR:
		return "RNR"
	case sREJ:
		return "REJ"
	default:
		return fmt.Sprintf("S(%#x)", uint8(f))
	}
}

// uFunction is an unnumbered function, Q.921 table 4.
type uFunction uint8

const (
	uSABME uFunction = 0x6c // set asynchronous balanced mode extended
	uDM    uFunction = 0x0c // disconnected mode
	uUI    uFunction = 0x00 // unnumbered information
	uDISC  uFunction = 0x40 // disconnect
	uUA    uFunction = 0x60 // unnumbered acknowledgement
	uFRMR  uFunction = 0x84 // frame reject
	uXID   uFunction = 0xac // exchange identification
)

func (f uFunction) String() string {
	switch f {
	case uSABME:
		return "SABME"
	case uDM:
		return "DM"
	case uUI:
		return "UI"
	case uDISC:
		return "DISC"
	case uUA:
		return "UA"
	case uFRMR:
		return "FRMR"
	case uXID:
		return "XID"
	default:
		return fmt.Sprintf("U(%#x)", uint8(f))
	}
}

var (
	errFrameShort  = errors.New("q921: frame shorter than address+control")
	errFrameAddr   = errors.New("q921: address field EA bits malformed")
	errFrameUFunc  = errors.New("q921: unrecognised U-frame function")
)

// String returns a compact description, in the style of the teacher's
// apdu.String().
func (f *frame) String() string {
	switch f.kind {
	case uFrame:
		return fmt.Sprintf("U[%s tei=%d pf=%v]", f.function, f.tei, f.pollFinal)
	case sFrame:
		return fmt.Sprintf("S[%s tei=%d nr=%d pf=%v]", f.rrType, f.tei, f.nr, f.pollFinal)
	default:
		return fmt.Sprintf("I[tei=%d ns=%d nr=%d pf=%v] %d byte(s)", f.tei, f.ns, f.nr, f.pollFinal, len(f.info))
	}
}

// parseFrame decodes a LAPD frame from b, the payload of one D-channel
// HDLC frame with flags and FCS already stripped (the device or the
// dchan transport does the bit-stuffing/CRC layer; q921 only sees the
// address-control-information payload, matching the teacher's Parse
// boundary at the ASDU, not the TCP stream).
func parseFrame(b []byte) (frame, error) {
	if len(b) < 3 {
		return frame{}, errFrameShort
	}
	if b[0]&0x01 != 0 || b[1]&0x01 != 1 {
		return frame{}, errFrameAddr
	}
	var f frame
	f.sapi = SAPI(b[0] >> 2)
	f.cr = b[0]&0x02 != 0
	f.tei = b[1] >> 1

	ctrl := b[2]
	rest := b[3:]
	switch {
	case ctrl&0x01 == 0:
		f.kind = iFrame
		f.ns = ctrl >> 1 & 0x7f
		if len(rest) < 1 {
			return frame{}, errFrameShort
		}
		f.nr = rest[0] >> 1 & 0x7f
		f.pollFinal = rest[0]&0x01 != 0
		f.info = append([]byte(nil), rest[1:]...)
	case ctrl&0x03 == 0x01:
		f.kind = sFrame
		f.rrType = sFunction(ctrl & 0x0f)
		if len(rest) < 1 {
			return frame{}, errFrameShort
		}
		f.nr = rest[0] >> 1 & 0x7f
		f.pollFinal = rest[0]&0x01 != 0
	default:
		f.kind = uFrame
		f.function = uFunction(ctrl &^ 0x13) // strip the "11" format bits and P/F
		f.pollFinal = ctrl&0x10 != 0
		f.info = append([]byte(nil), rest...)
	}
	return f, nil
}

// appendTo serializes f onto buf.
func (f *frame) appendTo(buf []byte) []byte {
	addr0 := byte(f.sapi) << 2
	if f.cr {
		addr0 |= 0x02
	}
	buf = append(buf, addr0, f.tei<<1|0x01)

	pf := byte(0)
	if f.pollFinal {
		pf = 0x01
	}

	switch f.kind {
	case iFrame:
		buf = append(buf, f.ns<<1)
		buf = append(buf, f.nr<<1|pf)
		buf = append(buf, f.info...)
	case sFrame:
		buf = append(buf, byte(f.rrType)|0x01)
		buf = append(buf, f.nr<<1|pf)
	case uFrame:
		ctrl := byte(f.function) | 0x03
		if f.pollFinal {
			ctrl |= 0x10
		}
		buf = append(buf, ctrl)
		buf = append(buf, f.info...)
	}
	return buf
}

// PeekAddress reads just the 2-octet LAPD address field of wire without
// parsing the rest of the frame, so a caller multiplexing several Links
// by TEI (see Controller.routeFrame) can pick the right one before
// handing wire to its Receive. ok is false when wire is too short or the
// address EA bits are malformed.
func PeekAddress(wire []byte) (sapi SAPI, tei uint8, ok bool) {
	if len(wire) < 2 {
		return 0, 0, false
	}
	if wire[0]&0x01 != 0 || wire[1]&0x01 != 1 {
		return 0, 0, false
	}
	return SAPI(wire[0] >> 2), wire[1] >> 1, true
}

// seqAdd adds n (usually 1) to a 7-bit modulus-128 sequence number.
func seqAdd(n, by uint8) uint8 { return (n + by) & 0x7f }

// seqDistance returns how many frames lie between from and to,
// modulus 128, used to validate an incoming N(R) against V(A)/V(S).
func seqDistance(from, to uint8) uint8 { return (to - from) & 0x7f }
