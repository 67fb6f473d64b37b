package q931

import (
	"testing"

	"pgregory.net/rapid"
)

// TestCauseRoundTrip exercises the §8 round-trip law: decoding what we
// encoded reproduces the same semantic content.
func TestCauseRoundTrip(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		c := CauseInfo{
			CodingStandard: uint8(rapid.IntRange(0, 3).Draw(tt, "coding")),
			Location:       uint8(rapid.IntRange(0, 15).Draw(tt, "location")),
			Value:          Cause(rapid.IntRange(0, 127).Draw(tt, "value")),
		}
		got, err := DecodeCause(EncodeCause(c))
		if err != nil {
			tt.Fatal(err)
		}
		if got.CodingStandard != c.CodingStandard || got.Location != c.Location || got.Value != c.Value {
			tt.Fatalf("got %+v, want %+v", got, c)
		}
	})
}

func TestNumberRoundTrip(t *testing.T) {
	digitAlphabet := "0123456789"
	rapid.Check(t, func(tt *rapid.T) {
		withPresentation := rapid.Bool().Draw(tt, "withPresentation")
		n := Number{
			Valid:  true,
			Type:   TypeOfNumber(rapid.IntRange(0, 7).Draw(tt, "type")),
			Plan:   NumberPlan(rapid.IntRange(0, 15).Draw(tt, "plan")),
			Digits: rapid.StringOfN(rapid.SampledFrom([]rune(digitAlphabet)), 0, 20, -1).Draw(tt, "digits"),
		}
		if withPresentation {
			n.Presentation = Presentation(rapid.IntRange(0, 2).Draw(tt, "presentation"))
			n.Screening = Screening(rapid.IntRange(0, 3).Draw(tt, "screening"))
		}

		got, err := DecodeNumber(EncodeNumber(n, withPresentation), withPresentation)
		if err != nil {
			tt.Fatal(err)
		}
		if got.Type != n.Type || got.Plan != n.Plan || got.Digits != n.Digits {
			tt.Fatalf("got %+v, want %+v", got, n)
		}
		if withPresentation && (got.Presentation != n.Presentation || got.Screening != n.Screening) {
			tt.Fatalf("got %+v, want %+v", got, n)
		}
	})
}

func TestBearerCapabilityRoundTrip(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		bc := BearerCapability{
			CodingStandard:  uint8(rapid.IntRange(0, 3).Draw(tt, "coding")),
			InfoTransferCap: uint8(rapid.IntRange(0, 31).Draw(tt, "itc")),
			TransferMode:    uint8(rapid.IntRange(0, 3).Draw(tt, "mode")),
			TransferRate:    uint8(rapid.IntRange(0, 31).Draw(tt, "rate")),
		}
		got, err := DecodeBearerCapability(EncodeBearerCapability(bc))
		if err != nil {
			tt.Fatal(err)
		}
		if got != bc {
			tt.Fatalf("got %+v, want %+v", got, bc)
		}
	})
}

func TestBearerCapabilityQSIGPlaceholder(t *testing.T) {
	bc := BearerCapability{QSIGPlaceholder: true}
	got, err := DecodeBearerCapability(EncodeBearerCapability(bc))
	if err != nil {
		t.Fatal(err)
	}
	if !got.QSIGPlaceholder {
		t.Fatalf("got %+v, want QSIGPlaceholder", got)
	}
}

func TestNumberStripsEmbeddedNUL(t *testing.T) {
	content := append([]byte{byte(PlanISDN)}, "12\x0034"...)
	n, err := DecodeNumber(content, false)
	if err != nil {
		t.Fatal(err)
	}
	if n.Digits != "1234" {
		t.Fatalf("got digits %q, want 1234", n.Digits)
	}
}

func TestDisplayEncodingVariesByVariant(t *testing.T) {
	qsig := EncodeDisplay(VariantQSIG, "hello")
	if string(qsig) != "hello" {
		t.Errorf("Q.SIG display got %q, want raw IA5", qsig)
	}

	dms := EncodeDisplay(VariantDMS100, "hello")
	if len(dms) != 6 || dms[0] != byte(CharSetISO8859_1) {
		t.Errorf("DMS-100 display got %x, want 0xB1 prefix", dms)
	}

	if got := DecodeDisplay(VariantQSIG, qsig); got != "hello" {
		t.Errorf("decode Q.SIG got %q", got)
	}
	if got := DecodeDisplay(VariantDMS100, dms); got != "hello" {
		t.Errorf("decode DMS-100 got %q", got)
	}
}

func TestDisplayTruncation(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	out := EncodeDisplay(VariantEuroISDNE1, string(long))
	if len(out) != 80 {
		t.Fatalf("got %d octets, want 80 (truncated)", len(out))
	}
}

func TestChannelIDLogicalMapping(t *testing.T) {
	c := ChannelID{LogicalMapping: true}
	if got := c.WireSlot(17); got != 18 {
		t.Errorf("got wire slot %d, want 18", got)
	}
	if got := c.CallerChannel(18); got != 17 {
		t.Errorf("got caller channel %d, want 17", got)
	}
	if got := c.WireSlot(15); got != 15 {
		t.Errorf("got wire slot %d, want 15 (below D-channel slot)", got)
	}
}

func TestDateTimeRoundTrip(t *testing.T) {
	dt := DateTime{Year: 2026, Month: 7, Day: 29, HasClock: true, Hour: 13, Minute: 45, Second: 9}
	got, err := DecodeDateTime(EncodeDateTime(dt))
	if err != nil {
		t.Fatal(err)
	}
	if got != dt {
		t.Fatalf("got %+v, want %+v", got, dt)
	}
}
