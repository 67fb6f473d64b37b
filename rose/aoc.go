package rose

// AOC (Advice of Charge) structures, grounded on
// original_source/libpri/pri_aoc.c's recorded-currency/recorded-units
// shapes (SPEC_FULL.md §4.1), re-expressed as Go value types instead of
// the original's bit-field structs.

// Billing id values, Q.932/ETSI EN 300 182 annex.
type BillingID uint8

const (
	BillingNormal     BillingID = 0
	BillingReverse    BillingID = 1
	BillingCreditCard BillingID = 2
	BillingCallForward BillingID = 3
)

// AOCAmount is a charge amount with a power-of-ten exponent: the real
// value is Value * 10^Exponent.
type AOCAmount struct {
	Value    int32
	Exponent int8
}

// AOCRecordedCurrency is the AOC-D/E "recorded currency" information,
// amount plus a 3-letter ISO 4217-ish currency code (libpri truncates to
// the three octets the wire format allows).
type AOCRecordedCurrency struct {
	Amount   AOCAmount
	Currency [3]byte
}

// AOCUnitSubtotal is one element of a recorded-units list: a unit count
// and its type classifier (flat rate, distance-based, etc).
type AOCUnitSubtotal struct {
	NumberOfUnits uint32
	TypeOfUnit    uint8
	HasType       bool
}

// AOCRecordedUnits is the AOC-D/E "recorded units" information.
type AOCRecordedUnits struct {
	NotAvailable bool
	Units        []AOCUnitSubtotal
}

// ChargingRequest (operation 30) asks the network to report charges for
// the call, argument is a single ENUMERATED charging-case.
type ChargingRequest struct {
	Case uint8
}

// AOCDChargingUnit (operation 34) reports a during-call unit charge.
type AOCDChargingUnit struct {
	Units         AOCRecordedUnits
	Billing       BillingID
	HasBilling    bool
}

// AOCEChargingUnit (operation 36) reports the final end-of-call unit
// charge, identical shape to AOCDChargingUnit with a different operation
// code at the Invoke layer.
type AOCEChargingUnit struct {
	Units      AOCRecordedUnits
	Billing    BillingID
	HasBilling bool
}

// EncodeAOCDChargingUnit serializes the SEQUENCE { recordedUnitsList,
// [2] billingId OPTIONAL }.
func EncodeAOCDChargingUnit(a AOCDChargingUnit) []byte {
	var seq []byte
	seq = AppendSequence(seq, encodeRecordedUnits(a.Units))
	if a.HasBilling {
		seq = AppendTLV(seq, ClassContextSpecific, false, 2, []byte{byte(a.Billing)})
	}
	return AppendSequence(nil, seq)
}

func encodeRecordedUnits(u AOCRecordedUnits) []byte {
	if u.NotAvailable {
		return nil // choice arm "notAvailable NULL", empty content is fine for NULL
	}
	var list []byte
	for _, sub := range u.Units {
		var s []byte
		s = AppendInteger(s, int64(sub.NumberOfUnits))
		if sub.HasType {
			s = AppendTLV(s, ClassContextSpecific, false, 1, []byte{sub.TypeOfUnit})
		}
		list = AppendSequence(list, s)
	}
	return list
}

// DecodeAOCDChargingUnit reverses EncodeAOCDChargingUnit.
func DecodeAOCDChargingUnit(arg []byte) (AOCDChargingUnit, error) {
	var a AOCDChargingUnit
	seq, _, err := ReadTLV(arg)
	if err != nil {
		return a, err
	}
	rest := seq.Content
	unitsList, rest, err := ReadTLV(rest)
	if err != nil {
		return a, err
	}
	a.Units, err = decodeRecordedUnits(unitsList)
	if err != nil {
		return a, err
	}
	if len(rest) > 0 {
		t, _, err := ReadTLV(rest)
		if err != nil {
			return a, err
		}
		if len(t.Content) == 1 {
			a.HasBilling = true
			a.Billing = BillingID(t.Content[0])
		}
	}
	return a, nil
}

func decodeRecordedUnits(t TLV) (AOCRecordedUnits, error) {
	var u AOCRecordedUnits
	if len(t.Content) == 0 {
		u.NotAvailable = true
		return u, nil
	}
	rest := t.Content
	for len(rest) > 0 {
		var elem TLV
		var err error
		elem, rest, err = ReadTLV(rest)
		if err != nil {
			return u, err
		}
		var sub AOCUnitSubtotal
		n, innerRest, err := ReadTLV(elem.Content)
		if err != nil {
			return u, err
		}
		count, err := n.Int()
		if err != nil {
			return u, err
		}
		sub.NumberOfUnits = uint32(count)
		if len(innerRest) > 0 {
			typ, _, err := ReadTLV(innerRest)
			if err != nil {
				return u, err
			}
			if len(typ.Content) == 1 {
				sub.HasType = true
				sub.TypeOfUnit = typ.Content[0]
			}
		}
		u.Units = append(u.Units, sub)
	}
	return u, nil
}
