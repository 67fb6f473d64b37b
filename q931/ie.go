package q931

import (
	"errors"
)

// ErrIEContent signals that an IE's content could not be decoded; per
// spec.md §7 the caller ignores the IE (or, if mandatory, treats it as
// missing) rather than aborting the whole message.
var ErrIEContent = errors.New("q931: information element content invalid")

// BearerCapability is the IECBearerCapability IE content.
// See spec.md §4.2 "Bearer capability".
type BearerCapability struct {
	CodingStandard uint8 // octet 3 bits 6-5
	InfoTransferCap uint8 // octet 3 bits 4-0
	TransferMode    uint8 // octet 4 bits 6-5
	TransferRate    uint8 // octet 4 bits 4-0

	// QSIGPlaceholder marks the 0x28,0x80 combination the Q.SIG variant
	// uses as a call-independent-signaling placeholder bearer capability,
	// per spec.md §4.2.
	QSIGPlaceholder bool
}

// Speech/3.1kHz-audio info transfer capability codes, Q.931 table 4-7.
const (
	ITCSpeech      uint8 = 0x00
	ITCUnrestrictedDigital uint8 = 0x08
	ITCRestrictedDigital uint8 = 0x09
	ITCAudio3_1kHz uint8 = 0x10
	ITCVideo       uint8 = 0x18
)

// EncodeBearerCapability renders the bearer-capability IE content.
func EncodeBearerCapability(bc BearerCapability) []byte {
	if bc.QSIGPlaceholder {
		return []byte{0x28 | 0x80, 0x90}
	}
	return []byte{
		0x80 | (bc.CodingStandard << 5) | bc.InfoTransferCap,
		0x80 | (bc.TransferMode << 5) | bc.TransferRate,
	}
}

// DecodeBearerCapability parses the bearer-capability IE content.
func DecodeBearerCapability(content []byte) (BearerCapability, error) {
	if len(content) < 2 {
		return BearerCapability{}, ErrIEContent
	}
	if content[0] == 0x28|0x80 || content[0] == 0x28 {
		if len(content) >= 2 && (content[1] == 0x80 || content[1] == 0x90) {
			return BearerCapability{QSIGPlaceholder: true}, nil
		}
	}
	return BearerCapability{
		CodingStandard:  (content[0] >> 5) & 3,
		InfoTransferCap: content[0] & 0x1f,
		TransferMode:    (content[1] >> 5) & 3,
		TransferRate:    content[1] & 0x1f,
	}, nil
}

// ChannelID is the IEChannelID IE content. See spec.md §4.2 "Channel
// identification".
type ChannelID struct {
	Exclusive    bool
	DChanInd     bool
	InterfaceID  uint8
	InterfaceIDPresent bool
	PRI          bool
	// Either Number (exclusive channel) or SlotMap (explicit-list form)
	// is populated, selected by the ds1 channel-count hint (31 for E1,
	// 24 for T1), per spec.md §4.2 and §8.
	Number  uint8
	SlotMap []byte // 3 octets (E1, 31 usable slots) or 4 octets (T1/J1, 24)
	// LogicalMapping, when true, means slot 16 (the E1 D-channel slot) is
	// skipped so caller-visible channel 17 maps to wire slot 18, etc.
	// See spec.md §4.2.
	LogicalMapping bool
}

// Channels enumerates the individual channel numbers this ChannelID
// names: the single exclusive Number, or every set bit of SlotMap in
// ascending order (bit 0 of SlotMap[0] is channel 1). A RESTART carrying
// a channel list uses this to generate one restart event per listed
// channel. See spec.md §4.5 "Restart".
func (c ChannelID) Channels() []uint8 {
	if len(c.SlotMap) == 0 {
		if c.Number == 0 {
			return nil
		}
		return []uint8{c.Number}
	}
	var chans []uint8
	for i, b := range c.SlotMap {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<uint(bit)) != 0 {
				chans = append(chans, uint8(i*8+bit+1))
			}
		}
	}
	return chans
}

// WireSlot maps a caller-visible BRI/PRI channel number to the physical
// E1 time slot, honouring the "logical channel mapping" skip-slot-16
// rule from spec.md §4.2.
func (c ChannelID) WireSlot(callerChannel uint8) uint8 {
	if !c.LogicalMapping || callerChannel < 16 {
		return callerChannel
	}
	return callerChannel + 1
}

// CallerChannel is the inverse of WireSlot.
func (c ChannelID) CallerChannel(wireSlot uint8) uint8 {
	if !c.LogicalMapping || wireSlot <= 16 {
		return wireSlot
	}
	return wireSlot - 1
}

// EncodeChannelIDNumber renders the channel-id IE content for the exclusive
// channel-number form.
func EncodeChannelIDNumber(exclusive, pri bool, number uint8) []byte {
	octet3 := byte(0x80) // IE8 octet-3 presence bit
	if exclusive {
		octet3 |= 1 << 3
	}
	octet3 |= 1 << 2 // indicated channel (not "any")
	if pri {
		octet3 |= 1 << 5 // interface type PRI
		return []byte{octet3, 0x80 | 1, 0x80 | number}
	}
	return []byte{octet3 | number}
}

// EncodeChannelIDSlotMap renders the channel-id IE content using the
// explicit slot-map form. width must be 3 (E1, 31 slots) or 4 (T1/J1, 24
// slots); see spec.md §8 "Slot map with 31 vs 24 bits".
func EncodeChannelIDSlotMap(width int, bits uint32) ([]byte, error) {
	if width != 3 && width != 4 {
		return nil, errors.New("q931: slot map width must be 3 or 4")
	}
	octet3 := byte(0x80) | (1 << 5) | (1 << 2) // PRI, indicated
	out := []byte{octet3, 0x80 | 3}
	for i := 0; i < width; i++ {
		out = append(out, byte(bits>>(8*i)))
	}
	return out, nil
}

// DecodeChannelID parses the channel-id IE content, in either the BRI
// 2-bit form, the PRI exclusive-number form, or the PRI slot-map form.
func DecodeChannelID(content []byte) (ChannelID, error) {
	if len(content) == 0 {
		return ChannelID{}, ErrIEContent
	}
	var c ChannelID
	octet3 := content[0]
	c.DChanInd = octet3&(1<<2) == 0 && false // not used on first octet for BRI; kept explicit
	c.Exclusive = octet3&(1<<3) != 0
	c.PRI = octet3&(1<<5) != 0

	if !c.PRI {
		// BRI: B1/B2 encoded in 2 bits of octet 3, per spec.md §4.2.
		c.Number = octet3 & 0x03
		return c, nil
	}

	if len(content) < 3 {
		return ChannelID{}, ErrIEContent
	}
	codingStd := content[1] & 0x60
	_ = codingStd
	isSlotMap := content[1]&0x0f == 3
	if isSlotMap {
		c.SlotMap = append([]byte(nil), content[2:]...)
		return c, nil
	}
	if len(content) < 3 {
		return ChannelID{}, ErrIEContent
	}
	c.Number = content[2] & 0x7f
	return c, nil
}

// NewCause builds a CauseInfo with the default coding standard (CCITT)
// and no diagnostics.
func NewCause(location uint8, value Cause) CauseInfo {
	return CauseInfo{CodingStandard: 0, Location: location, Value: value}
}

// EncodeCause renders the cause IE content. See spec.md §4.2 "Cause IE".
func EncodeCause(c CauseInfo) []byte {
	out := []byte{
		0x80 | (c.CodingStandard << 5) | (c.Location & 0x0f),
		0x80 | byte(c.Value),
	}
	return append(out, c.Diagnostics...)
}

// DecodeCause parses the cause IE content.
func DecodeCause(content []byte) (CauseInfo, error) {
	if len(content) < 2 {
		return CauseInfo{}, ErrIEContent
	}
	c := CauseInfo{
		CodingStandard: (content[0] >> 5) & 3,
		Location:       content[0] & 0x0f,
		Value:          Cause(content[1] & 0x7f),
	}
	if len(content) > 2 {
		c.Diagnostics = append([]byte(nil), content[2:]...)
	}
	return c, nil
}

// EncodeNumber renders a calling/called/connected/redirecting party
// number IE. Without presentation the extension bit 0x80 is set on the
// first octet, since no octet 3a follows; with presentation it is set on
// octet 3a instead.
// See spec.md §4.2 "Calling/called party number".
func EncodeNumber(n Number, withPresentation bool) []byte {
	digits, _ := stripNUL(n.Digits)
	octet3 := byte(n.Type)<<4 | byte(n.Plan)
	if !withPresentation {
		octet3 |= 0x80
		out := append([]byte{octet3}, []byte(digits)...)
		return out
	}
	octet3a := byte(n.Presentation)<<5 | 0x80 | byte(n.Screening)
	out := []byte{octet3, octet3a}
	out = append(out, []byte(digits)...)
	return out
}

// DecodeNumber parses a party-number IE content. withPresentation selects
// whether octet 3a (presentation+screening) is expected, which is true
// for calling-party numbers and false for called-party numbers.
func DecodeNumber(content []byte, withPresentation bool) (Number, error) {
	if len(content) < 1 {
		return Number{}, ErrIEContent
	}
	n := Number{Valid: true}
	n.Type = TypeOfNumber((content[0] >> 4) & 0x07)
	n.Plan = NumberPlan(content[0] & 0x0f)
	rest := content[1:]
	if withPresentation {
		if len(rest) < 1 {
			return Number{}, ErrIEContent
		}
		n.Presentation = Presentation((rest[0] >> 5) & 0x03)
		n.Screening = Screening(rest[0] & 0x03)
		rest = rest[1:]
	}
	digits, hadNUL := stripNUL(string(rest))
	n.Digits = digits
	_ = hadNUL
	return n, nil
}

// EncodeDisplay renders the display IE content. On Q.SIG/ETSI this is raw
// IA5 with no charset octet; elsewhere a leading 0xB1 charset octet is
// prepended, per spec.md §4.2 and the open question in spec.md §9 which
// this engine preserves exactly. Output is truncated at 80 octets (82
// with the charset prefix), per spec.md §8.
func EncodeDisplay(variant Variant, text string) []byte {
	const maxRaw = 80
	if variant.IsQSIGOrETSI() {
		if len(text) > maxRaw {
			text = text[:maxRaw]
		}
		return []byte(text)
	}
	if len(text) > maxRaw {
		text = text[:maxRaw]
	}
	out := make([]byte, 0, len(text)+1)
	out = append(out, byte(CharSetISO8859_1))
	out = append(out, text...)
	return out
}

// DecodeDisplay parses the display IE content per the same variant rule
// EncodeDisplay uses.
func DecodeDisplay(variant Variant, content []byte) string {
	if variant.IsQSIGOrETSI() {
		return string(content)
	}
	if len(content) > 0 && content[0] == byte(CharSetISO8859_1) {
		return string(content[1:])
	}
	return string(content)
}

// DateTime is the network-only date/time IE content (spec.md §4.2:
// "Only networks may send it; user-side never does.").
type DateTime struct {
	Year  int // 1900-offset per spec.md, i.e. store as full year
	Month uint8
	Day   uint8

	HasClock bool
	Hour     uint8
	Minute   uint8
	Second   uint8
}

// EncodeDateTime renders the date/time IE content.
func EncodeDateTime(dt DateTime) []byte {
	out := []byte{byte(dt.Year - 1900), dt.Month, dt.Day}
	if dt.HasClock {
		out = append(out, dt.Hour, dt.Minute, dt.Second)
	}
	return out
}

// DecodeDateTime parses the date/time IE content.
func DecodeDateTime(content []byte) (DateTime, error) {
	if len(content) < 3 {
		return DateTime{}, ErrIEContent
	}
	dt := DateTime{
		Year:  1900 + int(content[0]),
		Month: content[1],
		Day:   content[2],
	}
	if len(content) >= 5 {
		dt.HasClock = true
		dt.Hour = content[3]
		dt.Minute = content[4]
		if len(content) >= 6 {
			dt.Second = content[5]
		}
	}
	return dt, nil
}

// ProgressIndicator is the progress-indicator IE content.
type ProgressIndicator struct {
	CodingStandard uint8
	Location       uint8
	Description    uint8
}

// Progress description codes, Q.931 table 4-18 (subset in use).
const (
	ProgressNotEndToEndISDN     uint8 = 1
	ProgressDestNonISDN         uint8 = 2
	ProgressOriginNonISDN       uint8 = 3
	ProgressCallReturnedToISDN  uint8 = 4
	ProgressInbandAvailable     uint8 = 8
)

func EncodeProgressIndicator(p ProgressIndicator) []byte {
	return []byte{
		0x80 | (p.CodingStandard << 5) | (p.Location & 0x0f),
		0x80 | p.Description,
	}
}

func DecodeProgressIndicator(content []byte) (ProgressIndicator, error) {
	if len(content) < 2 {
		return ProgressIndicator{}, ErrIEContent
	}
	return ProgressIndicator{
		CodingStandard: (content[0] >> 5) & 3,
		Location:       content[0] & 0x0f,
		Description:    content[1] & 0x7f,
	}, nil
}

// RestartIndicatorClass selects single-channel, interface or whole-system
// restart scope. See spec.md §4.5 "Restart".
type RestartIndicatorClass uint8

const (
	RestartSingleChannel RestartIndicatorClass = 0
	RestartSingleInterface RestartIndicatorClass = 6
	RestartAllInterfaces RestartIndicatorClass = 7
)

func EncodeRestartIndicator(class RestartIndicatorClass) []byte {
	return []byte{0x80 | byte(class)}
}

func DecodeRestartIndicator(content []byte) (RestartIndicatorClass, error) {
	if len(content) < 1 {
		return 0, ErrIEContent
	}
	return RestartIndicatorClass(content[0] & 0x7f), nil
}

// CallStateIE is the call-state IE content, used mainly inside STATUS
// messages to carry the StatusConfig "suggested-call-state".
func EncodeCallStateIE(s CallState) []byte {
	if s == StateNotSet {
		return nil
	}
	return []byte{0x80 | byte(s)}
}

func DecodeCallStateIE(content []byte) (CallState, error) {
	if len(content) < 1 {
		return StateNotSet, ErrIEContent
	}
	return CallState(content[0] & 0x7f), nil
}

// KeypadFacility carries IA5 keypad digits (spec.md §3 "keypad digits").
func EncodeKeypadFacility(digits string) []byte {
	clean, _ := stripNUL(digits)
	return []byte(clean)
}

func DecodeKeypadFacility(content []byte) string {
	clean, _ := stripNUL(string(content))
	return clean
}

// UserUser carries opaque user-to-user signaling content.
// See spec.md §3 "user-user info".
func EncodeUserUser(protocolDiscriminator byte, data []byte) []byte {
	return append([]byte{protocolDiscriminator}, data...)
}

func DecodeUserUser(content []byte) (protocolDiscriminator byte, data []byte, err error) {
	if len(content) < 1 {
		return 0, nil, ErrIEContent
	}
	return content[0], append([]byte(nil), content[1:]...), nil
}
