package q931

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Protocol discriminator octet values. See spec.md §6 "Wire".
const (
	DiscQ931       uint8 = 0x08
	DiscGR303      uint8 = 0x40
	DiscMaintenance uint8 = 0x03
	DiscMaintenanceAlt uint8 = 0x43
)

var (
	// ErrShortMessage signals a Q.931 message too short to carry even the
	// mandatory header.
	ErrShortMessage = errors.New("q931: message shorter than header")
	// ErrBadCallRefLen signals a call-reference length octet outside {0,1,2}.
	ErrBadCallRefLen = errors.New("q931: call reference length out of range")
	// ErrIllegalLockShift signals a locking shift to codeset 0 or downward,
	// which Q.931 subsection 4.5.3 forbids.
	ErrIllegalLockShift = errors.New("q931: illegal locking shift")
	// ErrIEOverflow signals that an encoder would exceed the 255-octet IE
	// slot the caller offered.
	ErrIEOverflow = errors.New("q931: information element overflow")
)

// CallRef is the 0/1/2-byte call-reference field. A zero-length CallRef is
// the dummy reference from spec.md §3, shared by TEI-scoped FACILITY
// traffic that is not bound to a specific call.
type CallRef struct {
	Len            uint8 // 0 (dummy), 1 (BRI), or 2 (PRI)
	Value          uint16
	FromOriginator bool // high bit of the first value octet
}

// IsDummy reports whether this is the all-zero-length dummy call reference.
func (c CallRef) IsDummy() bool { return c.Len == 0 }

// Max returns the modulus for this call-reference width: 128 for BRI
// (7-bit + flag in one octet) and 32768 for PRI (15-bit + flag in two
// octets). See spec.md §8 "Call-reference wrap".
func (c CallRef) Max() uint16 {
	if c.Len == 1 {
		return 128
	}
	return 32768
}

// appendTo serializes the call reference.
func (c CallRef) appendTo(buf []byte) []byte {
	buf = append(buf, c.Len)
	if c.Len == 0 {
		return buf
	}
	flag := uint16(0)
	if c.FromOriginator {
		flag = 0x80
	}
	if c.Len == 1 {
		return append(buf, byte(flag)|byte(c.Value&0x7f))
	}
	hi := byte(flag) | byte((c.Value>>8)&0x7f)
	lo := byte(c.Value)
	return append(buf, hi, lo)
}

func parseCallRef(b []byte) (CallRef, []byte, error) {
	if len(b) < 1 {
		return CallRef{}, nil, ErrShortMessage
	}
	n := b[0]
	if n > 2 {
		return CallRef{}, nil, ErrBadCallRefLen
	}
	if len(b) < int(1+n) {
		return CallRef{}, nil, ErrShortMessage
	}
	var cr CallRef
	cr.Len = n
	switch n {
	case 0:
		// dummy
	case 1:
		cr.FromOriginator = b[1]&0x80 != 0
		cr.Value = uint16(b[1] & 0x7f)
	case 2:
		cr.FromOriginator = b[1]&0x80 != 0
		cr.Value = uint16(b[1]&0x7f)<<8 | uint16(b[2])
	}
	return cr, b[1+n:], nil
}

// RawIE is an undecoded information element slot with its codeset context
// attached, the common currency the message envelope and the per-IE codec
// functions exchange. See spec.md §4.2.
type RawIE struct {
	Codeset uint8
	Tag     IETag
	// Content is nil and SingleOctet true for single-octet IEs, whose
	// entire content is the low 7 bits of Tag's byte value.
	SingleOctet bool
	Octet       uint8  // valid when SingleOctet
	Content     []byte // valid when !SingleOctet
}

// Message is a parsed or to-be-serialized Q.931/Q.932 datagram: the
// discriminator, call reference, message type and an ordered IE list.
// See spec.md §6 "Q.931 message".
type Message struct {
	Discriminator uint8
	CallRef       CallRef
	Type          MsgType
	IEs           []RawIE
}

// Append serializes m, inserting codeset shifts as needed, and returns the
// extended buffer. IEs are expected to already be in the numerical tag
// order Q.931 subsection 4.5 requires; Append does not reorder them.
func (m Message) Append(buf []byte) []byte {
	buf = append(buf, m.Discriminator)
	buf = m.CallRef.appendTo(buf)
	buf = append(buf, byte(m.Type))

	codeset := uint8(0)
	for _, ie := range m.IEs {
		if ie.Codeset != codeset {
			// Every codeset change is written as a locking shift; no
			// non-locking shift is emitted. IEs are written in the order
			// they were prepared, so IEs of a higher codeset must come
			// in contiguous runs after those of codeset 0.
			buf = append(buf, shiftLock|(ie.Codeset&shiftCodeMask))
			codeset = ie.Codeset
		}
		if ie.SingleOctet {
			buf = append(buf, byte(singleOctetFlag)|ie.Octet)
			continue
		}
		buf = append(buf, byte(ie.Tag), byte(len(ie.Content)))
		buf = append(buf, ie.Content...)
	}
	return buf
}

// Parse decodes a Q.931/Q.932 datagram from its ASDU-equivalent payload
// (the APDU's Payload, i.e. the I-frame body past the Q.921 header).
func Parse(b []byte) (Message, error) {
	if len(b) < 2 {
		return Message{}, ErrShortMessage
	}
	var m Message
	m.Discriminator = b[0]

	cr, rest, err := parseCallRef(b[1:])
	if err != nil {
		return Message{}, err
	}
	m.CallRef = cr

	if len(rest) < 1 {
		return Message{}, ErrShortMessage
	}
	m.Type = MsgType(rest[0])
	rest = rest[1:]

	codeset := uint8(0)
	lockedCodeset := uint8(0)
	for len(rest) > 0 {
		b0 := rest[0]
		if b0&0x80 != 0 && b0&shiftTagMask == shiftNonLock&shiftTagMask && (b0 == (shiftNonLock | (b0 & shiftCodeMask))) {
			codeset = b0 & shiftCodeMask
			rest = rest[1:]
			continue
		}
		if b0&0x80 != 0 && (b0&0xf8) == shiftLock {
			cs := b0 & shiftCodeMask
			if cs < lockedCodeset && cs != 0 {
				// a locking shift is permitted only upward; codeset 0 and
				// downward shifts are illegal per spec.md §4.2.
				return Message{}, ErrIllegalLockShift
			}
			if cs == 0 {
				return Message{}, ErrIllegalLockShift
			}
			lockedCodeset = cs
			codeset = cs
			rest = rest[1:]
			continue
		}

		if b0&0x80 != 0 {
			// single-octet IE
			m.IEs = append(m.IEs, RawIE{Codeset: codeset, SingleOctet: true, Octet: b0 & 0x7f, Tag: IETag(b0)})
			rest = rest[1:]
			// non-locking shift reverts after exactly one IE
			codeset = lockedCodeset
			continue
		}

		if len(rest) < 2 {
			return Message{}, ErrShortMessage
		}
		tag := IETag(b0)
		length := int(rest[1])
		if len(rest) < 2+length {
			return Message{}, ErrShortMessage
		}
		content := make([]byte, length)
		copy(content, rest[2:2+length])
		m.IEs = append(m.IEs, RawIE{Codeset: codeset, Tag: tag, Content: content})
		rest = rest[2+length:]
		codeset = lockedCodeset
	}

	return m, nil
}

// Find returns the first IE in codeset 0 matching tag, if present.
func (m Message) Find(tag IETag) (RawIE, bool) {
	return m.FindCodeset(0, tag)
}

// FindCodeset returns the first IE matching (codeset, tag), if present.
func (m Message) FindCodeset(codeset uint8, tag IETag) (RawIE, bool) {
	for _, ie := range m.IEs {
		if ie.Codeset == codeset && ie.Tag == tag {
			return ie, true
		}
	}
	return RawIE{}, false
}

// FindAll returns every IE in codeset 0 matching tag, in wire order, for
// IEs whose legal multiplicity is >1 (e.g. repeated channel restarts).
func (m Message) FindAll(tag IETag) []RawIE {
	var out []RawIE
	for _, ie := range m.IEs {
		if ie.Codeset == 0 && ie.Tag == tag {
			out = append(out, ie)
		}
	}
	return out
}

// mandatoryIEs lists the codeset-0 tags that must be present on receipt of
// each message type for the switch variants this engine supports, used by
// the call state machine to decide between STATUS (cause 96) and
// RELEASE_COMPLETE (cause 96) per spec.md §4.2 and §7.
var mandatoryIEs = map[MsgType][]IETag{
	Setup:   {IEBearerCapability, IEChannelID},
	Connect: {},
	Alerting: {},
	Disconnect: {IECause},
	Release:    {},
	ReleaseComplete: {},
}

// MissingMandatory returns the first mandatory IE tag absent from m, if
// any, for m.Type.
func (m Message) MissingMandatory() (IETag, bool) {
	for _, tag := range mandatoryIEs[m.Type] {
		if _, ok := m.Find(tag); !ok {
			return tag, true
		}
	}
	return 0, false
}

// builder accumulates IEs for outgoing messages in the order they are
// added; it does not sort them, so callers add IEs in the ascending tag
// order Q.931 subsection 4.5 requires. See spec.md §4.2.
type builder struct {
	m Message
}

func newBuilder(disc uint8, cr CallRef, t MsgType) *builder {
	return &builder{m: Message{Discriminator: disc, CallRef: cr, Type: t}}
}

func (b *builder) addSingleOctet(tag IETag, octet uint8) {
	b.m.IEs = append(b.m.IEs, RawIE{Tag: tag, SingleOctet: true, Octet: (uint8(tag) | octet) & 0x7f})
}

func (b *builder) add(codeset uint8, tag IETag, content []byte) error {
	if len(content) > 255 {
		return ErrIEOverflow
	}
	b.m.IEs = append(b.m.IEs, RawIE{Codeset: codeset, Tag: tag, Content: content})
	return nil
}

func (b *builder) build() Message { return b.m }

// uint16be is a small helper shared by several IE encoders.
func uint16be(v uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return buf
}

// String renders a compact description for logging, mirroring the
// apdu.String() idiom from the teacher's session package.
func (m Message) String() string {
	return fmt.Sprintf("%s cref=%#x(orig=%v) %d IE(s)", m.Type, m.CallRef.Value, m.CallRef.FromOriginator, len(m.IEs))
}
