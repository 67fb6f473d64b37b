package q931

import "strings"

// NumberPlan identifies the numbering plan of a party number.
// See Q.931 subsection 4.5.10, octet 3 low nibble.
type NumberPlan uint8

const (
	PlanUnknown      NumberPlan = 0
	PlanISDN         NumberPlan = 1 // E.164
	PlanData         NumberPlan = 3
	PlanTelex        NumberPlan = 4
	PlanNational     NumberPlan = 8
	PlanPrivate      NumberPlan = 9
	PlanReserved     NumberPlan = 15
)

// TypeOfNumber identifies the type of a party number.
// See Q.931 subsection 4.5.10, octet 3 bits 7-5.
type TypeOfNumber uint8

const (
	TypeUnknown        TypeOfNumber = 0
	TypeInternational  TypeOfNumber = 1
	TypeNational       TypeOfNumber = 2
	TypeNetworkSpecific TypeOfNumber = 3
	TypeSubscriber     TypeOfNumber = 4
	TypeAbbreviated    TypeOfNumber = 6
)

// Presentation controls whether a number/name may be shown to the remote
// party. See Q.931 subsection 4.5.10, octet 3a bits 7-6.
type Presentation uint8

const (
	PresentationAllowed     Presentation = 0
	PresentationRestricted  Presentation = 1
	PresentationUnavailable Presentation = 2
)

// Screening reports who vouches for the accuracy of a number.
// See Q.931 subsection 4.5.10, octet 3a bits 1-0.
type Screening uint8

const (
	ScreeningUserNotVerified Screening = 0
	ScreeningUserVerifiedPassed Screening = 1
	ScreeningUserVerifiedFailed Screening = 2
	ScreeningNetwork          Screening = 3
)

// Number is a calling/called/connected/redirecting party number.
// See spec.md §3 "Party name / number / subaddress / id / redirecting".
type Number struct {
	Valid        bool
	Plan         NumberPlan
	Type         TypeOfNumber
	Presentation Presentation
	Screening    Screening
	Digits       string // IA5, NUL bytes stripped per spec.md §4.2
}

// Equal reports whether two numbers carry the same addressable content.
// Valid is compared too, so a number becoming present counts as a change;
// Screening is not compared.
func (n Number) Equal(o Number) bool {
	return n.Valid == o.Valid && n.Plan == o.Plan && n.Type == o.Type &&
		n.Presentation == o.Presentation && n.Digits == o.Digits
}

// CharacterSet identifies the character set used by a Name, per the
// DisplayIE open question in spec.md §9 (Q.SIG/ETSI carry raw IA5, other
// variants prefix 0xB1).
type CharacterSet uint8

const (
	CharSetIA5  CharacterSet = 0
	CharSetISO8859_1 CharacterSet = 0xB1
)

// Name is a calling/connected/redirecting party name.
type Name struct {
	Valid        bool
	CharSet      CharacterSet
	Presentation Presentation
	Text         string
}

func (n Name) Equal(o Name) bool {
	return n.Valid == o.Valid && n.Presentation == o.Presentation && n.Text == o.Text
}

// SubaddrType identifies a subaddress encoding.
type SubaddrType uint8

const (
	SubaddrNSAP SubaddrType = 0
	SubaddrUser SubaddrType = 2
)

// Subaddress is a calling/called/connected party subaddress.
type Subaddress struct {
	Valid   bool
	Type    SubaddrType
	OddFlag bool // for User subaddresses only: odd/even digit count
	Bytes   []byte
}

// PartyID bundles a number, a name and a subaddress, used for the
// calling, called, connected and redirecting party identities a Call
// tracks. See spec.md §3.
type PartyID struct {
	Number     Number
	Name       Name
	Subaddress Subaddress
}

// Redirecting carries the IEs recovered from DivertingLegInformation
// facility operations, plus the Q.931 redirecting-number IE.
// See spec.md §4.5 "Connected-line / redirecting updates".
type Redirecting struct {
	From       Number
	Reason     RedirectReason
	Count      int
	OrigCalled Number
}

// RedirectReason is the Q.932 diverting/redirecting reason.
type RedirectReason uint8

const (
	RedirectUnknown RedirectReason = iota
	RedirectUnconditional
	RedirectBusy
	RedirectNoReply
	RedirectDeflection
	RedirectOutOfOrder
)

func (r RedirectReason) String() string {
	switch r {
	case RedirectUnconditional:
		return "unconditional"
	case RedirectBusy:
		return "busy"
	case RedirectNoReply:
		return "no-reply"
	case RedirectDeflection:
		return "deflection"
	case RedirectOutOfOrder:
		return "out-of-order"
	default:
		return "unknown"
	}
}

// stripNUL removes embedded NUL bytes from an IA5 digit/text field and
// reports whether any were found, per spec.md §4.2: "Nul bytes found in
// IA5 fields are stripped and reported."
func stripNUL(s string) (clean string, hadNUL bool) {
	if !strings.ContainsRune(s, 0) {
		return s, false
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == 0 {
			hadNUL = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), true
}
